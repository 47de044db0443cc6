package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Sources is the per-project allow-list of CMS content tables that
// participate in synchronization. Mutations on tables outside the list are
// ignored by the change detection hook.
type Sources struct {
	projects map[string][]string
}

// NewSources creates Sources from a project→tables map.
func NewSources(projects map[string][]string) Sources {
	cp := make(map[string][]string, len(projects))
	for project, tables := range projects {
		t := make([]string, len(tables))
		copy(t, tables)
		cp[project] = t
	}
	return Sources{projects: cp}
}

// IsEmpty returns true if no projects are configured.
func (s Sources) IsEmpty() bool {
	return len(s.projects) == 0
}

// Projects returns the configured project identifiers.
func (s Sources) Projects() []string {
	out := make([]string, 0, len(s.projects))
	for project := range s.projects {
		out = append(out, project)
	}
	return out
}

// Tables returns the allow-listed tables for a project.
func (s Sources) Tables(projectID string) []string {
	tables := s.projects[projectID]
	cp := make([]string, len(tables))
	copy(cp, tables)
	return cp
}

// Allows reports whether the project/table pair is in scope for sync.
func (s Sources) Allows(projectID, table string) bool {
	for _, t := range s.projects[projectID] {
		if t == table {
			return true
		}
	}
	return false
}

// sourcesFile is the YAML shape of a sources file:
//
//	projects:
//	  - project: demo
//	    tables: [pages, articles]
type sourcesFile struct {
	Projects []struct {
		Project string   `yaml:"project"`
		Tables  []string `yaml:"tables"`
	} `yaml:"projects"`
}

// LoadSources reads a YAML sources file. A missing path returns empty
// Sources without error so a deployment can run ingestion-only.
func LoadSources(path string) (Sources, error) {
	if path == "" {
		return Sources{}, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Sources{}, nil
		}
		return Sources{}, fmt.Errorf("read sources file: %w", err)
	}

	var file sourcesFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return Sources{}, fmt.Errorf("parse sources file: %w", err)
	}

	projects := make(map[string][]string, len(file.Projects))
	for _, p := range file.Projects {
		if p.Project == "" {
			continue
		}
		projects[p.Project] = p.Tables
	}
	return NewSources(projects), nil
}
