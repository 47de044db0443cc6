package config

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
)

// LoadDotEnv loads a .env file if one exists at the given path. A missing
// file is not an error; a malformed one is.
func LoadDotEnv(path string) error {
	if path == "" {
		path = ".env"
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("load env file %s: %w", path, err)
	}
	return nil
}

// LoadConfig assembles the full application configuration: .env file,
// environment variables, then the sources file named by the environment.
func LoadConfig(envPath string) (AppConfig, error) {
	if err := LoadDotEnv(envPath); err != nil {
		return AppConfig{}, err
	}
	env, err := LoadFromEnv()
	if err != nil {
		return AppConfig{}, fmt.Errorf("process environment: %w", err)
	}
	cfg := env.ToAppConfig()
	if env.SourcesFile != "" {
		sources, err := LoadSources(env.SourcesFile)
		if err != nil {
			return AppConfig{}, err
		}
		WithSources(sources)(&cfg)
	}
	return cfg, nil
}
