package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/hashicorp/go-version"

	"github.com/chameleon-db/bulkdml/pkg/engine"
	"github.com/chameleon-db/bulkdml/pkg/engine/hql"
)

// FileName is the config file looked up in the working directory.
const FileName = ".bulkdml.yml"

// Config is the content of .bulkdml.yml
type Config struct {
	Version  string         `yaml:"version"`
	Database DatabaseConfig `yaml:"database"`
	Logging  LoggingConfig  `yaml:"logging"`
	Debug    string         `yaml:"debug,omitempty"`
	Entities []EntityConfig `yaml:"entities,omitempty"`
}

// DatabaseConfig selects the store sessions run against.
type DatabaseConfig struct {
	Driver            string `yaml:"driver"`
	ConnectionString  string `yaml:"connection_string"`
	MaxConnections    int    `yaml:"max_connections,omitempty"`
	ConnectionTimeout int    `yaml:"connection_timeout,omitempty"`
}

// LoggingConfig configures the zap logger built by the CLI.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// EntityConfig maps an entity without a Go struct.
type EntityConfig struct {
	Name   string        `yaml:"name"`
	Table  string        `yaml:"table,omitempty"`
	Fields []FieldConfig `yaml:"fields"`
}

// FieldConfig maps one property to a column.
type FieldConfig struct {
	Name       string `yaml:"name"`
	Column     string `yaml:"column,omitempty"`
	Type       string `yaml:"type,omitempty"`
	PrimaryKey bool   `yaml:"primary_key,omitempty"`
	Nullable   bool   `yaml:"nullable,omitempty"`
}

// Defaults returns the configuration used when no file exists.
func Defaults() *Config {
	return &Config{
		Version: "1",
		Database: DatabaseConfig{
			Driver:            "sqlite",
			ConnectionString:  "bulkdml.db",
			MaxConnections:    10,
			ConnectionTimeout: 30,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
		Debug: "off",
	}
}

// ApplyEnv lets DATABASE_URL override the configured connection. A
// postgres:// URL also switches the driver.
func (c *Config) ApplyEnv() {
	url := os.Getenv("DATABASE_URL")
	if url == "" {
		return
	}
	c.Database.ConnectionString = url
	if strings.HasPrefix(url, "postgres://") || strings.HasPrefix(url, "postgresql://") {
		c.Database.Driver = "postgres"
	}
}

// SupportedVersions is the range of config file versions this build reads.
const SupportedVersions = ">= 1, < 2"

// Validate checks the parts of the config the CLI depends on.
func (c *Config) Validate() error {
	if c.Version != "" {
		v, err := version.NewVersion(c.Version)
		if err != nil {
			return fmt.Errorf("version: %w", err)
		}
		supported, err := version.NewConstraint(SupportedVersions)
		if err != nil {
			return err
		}
		if !supported.Check(v) {
			return fmt.Errorf("version: %s is not supported (want %s)", c.Version, SupportedVersions)
		}
	}
	if _, err := hql.DialectFor(c.Database.Driver); err != nil {
		return fmt.Errorf("database.driver: %w", err)
	}
	if c.Database.ConnectionString == "" {
		return fmt.Errorf("database.connection_string is required")
	}
	if _, err := engine.ParseDebugLevel(c.Debug); err != nil {
		return fmt.Errorf("debug: %w", err)
	}
	switch strings.ToLower(c.Logging.Level) {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level: unknown level %q", c.Logging.Level)
	}

	seen := make(map[string]bool)
	for i, e := range c.Entities {
		if e.Name == "" {
			return fmt.Errorf("entities[%d]: name is required", i)
		}
		if seen[e.Name] {
			return fmt.Errorf("entities[%d]: duplicate entity %s", i, e.Name)
		}
		seen[e.Name] = true
		if len(e.Fields) == 0 {
			return fmt.Errorf("entity %s: at least one field is required", e.Name)
		}
		for j, f := range e.Fields {
			if f.Name == "" {
				return fmt.Errorf("entity %s: fields[%d]: name is required", e.Name, j)
			}
		}
	}
	return nil
}

// DebugLevel returns the parsed debug setting.
func (c *Config) DebugLevel() engine.DebugLevel {
	level, _ := engine.ParseDebugLevel(c.Debug)
	return level
}

// Schema builds the mapping declared in the entities section.
func (c *Config) Schema() *engine.Schema {
	schema := engine.NewSchema()
	for _, ec := range c.Entities {
		e := &engine.Entity{Name: ec.Name, Table: ec.Table}
		if e.Table == "" {
			e.Table = engine.TableName(ec.Name)
		}
		for _, fc := range ec.Fields {
			ft := engine.FieldTypeString
			if fc.Type != "" {
				ft = engine.FieldType{Kind: fc.Type}
			}
			e.AddField(&engine.Field{
				Name:       fc.Name,
				Column:     fc.Column,
				Type:       ft,
				PrimaryKey: fc.PrimaryKey,
				Nullable:   fc.Nullable,
			})
		}
		schema.Add(e)
	}
	return schema
}

// EntitiesFromSchema is the inverse of Schema: it renders a mapping as
// entity declarations, omitting columns and tables that match the
// defaults.
func EntitiesFromSchema(schema *engine.Schema) []EntityConfig {
	entities := make([]EntityConfig, 0, len(schema.Entities))
	for _, e := range schema.Entities {
		ec := EntityConfig{Name: e.Name}
		if e.Table != engine.TableName(e.Name) {
			ec.Table = e.Table
		}
		for _, name := range e.FieldNames() {
			f := e.Fields[name]
			fc := FieldConfig{
				Name:       f.Name,
				Type:       f.Type.Kind,
				PrimaryKey: f.PrimaryKey,
				Nullable:   f.Nullable,
			}
			if f.Column != engine.ToSnakeCase(f.Name) {
				fc.Column = f.Column
			}
			ec.Fields = append(ec.Fields, fc)
		}
		entities = append(entities, ec)
	}
	return entities
}
