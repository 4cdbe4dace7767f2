package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Loader reads and writes the config file of one working directory.
type Loader struct {
	workDir  string
	filePath string
}

func NewLoader(workDir string) *Loader {
	return &Loader{
		workDir:  workDir,
		filePath: filepath.Join(workDir, FileName),
	}
}

// NewFileLoader uses an explicit config path (the --config flag).
func NewFileLoader(path string) *Loader {
	return &Loader{
		workDir:  filepath.Dir(path),
		filePath: path,
	}
}

// Path returns the config file location.
func (l *Loader) Path() string {
	return l.filePath
}

// Load reads the config file. ${VAR} references are expanded from the
// environment, then DATABASE_URL is applied and the result validated.
func (l *Loader) Load() (*Config, error) {
	data, err := os.ReadFile(l.filePath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("config file not found: %s", l.filePath)
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	expanded := os.ExpandEnv(string(data))

	cfg := Defaults()
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", l.filePath, err)
	}

	cfg.ApplyEnv()
	l.resolvePaths(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", l.filePath, err)
	}
	return cfg, nil
}

// LoadOrDefault is Load, falling back to Defaults when there is no file.
func (l *Loader) LoadOrDefault() (*Config, error) {
	if _, err := os.Stat(l.filePath); errors.Is(err, os.ErrNotExist) {
		cfg := Defaults()
		cfg.ApplyEnv()
		l.resolvePaths(cfg)
		return cfg, nil
	}
	return l.Load()
}

// Save writes cfg to the config file.
func (l *Loader) Save(cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := os.WriteFile(l.filePath, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// SaveEntities replaces the entities section of the config file, leaving
// the rest of the file as written: environment references stay
// unexpanded and paths unresolved.
func (l *Loader) SaveEntities(entities []EntityConfig) error {
	cfg := Defaults()
	data, err := os.ReadFile(l.filePath)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return fmt.Errorf("failed to parse %s: %w", l.filePath, err)
		}
	case !errors.Is(err, os.ErrNotExist):
		return fmt.Errorf("failed to read config: %w", err)
	}

	cfg.Entities = entities
	return l.Save(cfg)
}

// resolvePaths makes a relative SQLite file path relative to the config
// directory rather than the process working directory.
func (l *Loader) resolvePaths(cfg *Config) {
	if cfg.Database.Driver != "sqlite" && cfg.Database.Driver != "sqlite3" {
		return
	}
	dsn := cfg.Database.ConnectionString
	if dsn == "" || dsn == ":memory:" || filepath.IsAbs(dsn) || hasScheme(dsn) {
		return
	}
	cfg.Database.ConnectionString = filepath.Join(l.workDir, dsn)
}

func hasScheme(dsn string) bool {
	return len(dsn) > 5 && dsn[:5] == "file:"
}

// Template returns a commented starter config.
func Template() string {
	return `# bulkdml configuration
version: "1"

database:
  # sqlite or postgres
  driver: "sqlite"
  # SQLite file path or postgres:// URL; DATABASE_URL overrides it
  connection_string: "bulkdml.db"
  max_connections: 10
  connection_timeout: 30

logging:
  # debug, info, warn or error
  level: "info"
  # console or json
  format: "console"

# off, sql or trace
debug: "off"

entities:
  - name: Car
    table: cars
    fields:
      - { name: Id, column: id, type: Int, primary_key: true }
      - { name: Name, column: name, type: String }
      - { name: Year, column: year, type: Int }
`
}
