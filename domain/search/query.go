// Package search provides query domain types for hybrid content retrieval.
package search

// Query represents one search request against a project's index.
type Query struct {
	projectID string
	text      string
	filters   Filters
	topK      int
}

// NewQuery creates a Query.
func NewQuery(projectID, text string, filters Filters, topK int) Query {
	return Query{
		projectID: projectID,
		text:      text,
		filters:   filters,
		topK:      topK,
	}
}

// ProjectID returns the project to search in.
func (q Query) ProjectID() string { return q.projectID }

// Text returns the query text.
func (q Query) Text() string { return q.text }

// Filters returns the search filters.
func (q Query) Filters() Filters { return q.filters }

// TopK returns the number of results to return.
func (q Query) TopK() int { return q.topK }

// Filters narrows a query to particular languages or source tables.
type Filters struct {
	languages []string
	tables    []string
}

// FiltersOption configures Filters.
type FiltersOption func(*Filters)

// WithLanguages filters results to the given languages.
func WithLanguages(languages ...string) FiltersOption {
	return func(f *Filters) {
		f.languages = append(f.languages, languages...)
	}
}

// WithTables filters results to the given source tables.
func WithTables(tables ...string) FiltersOption {
	return func(f *Filters) {
		f.tables = append(f.tables, tables...)
	}
}

// NewFilters creates Filters from options.
func NewFilters(opts ...FiltersOption) Filters {
	var f Filters
	for _, opt := range opts {
		opt(&f)
	}
	return f
}

// Languages returns the language filter values.
func (f Filters) Languages() []string {
	cp := make([]string, len(f.languages))
	copy(cp, f.languages)
	return cp
}

// Tables returns the source-table filter values.
func (f Filters) Tables() []string {
	cp := make([]string, len(f.tables))
	copy(cp, f.tables)
	return cp
}

// IsEmpty returns true if no filters are set.
func (f Filters) IsEmpty() bool {
	return len(f.languages) == 0 && len(f.tables) == 0
}
