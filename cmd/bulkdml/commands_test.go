package main

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"github.com/chameleon-db/bulkdml/internal/config"
	"github.com/chameleon-db/bulkdml/pkg/engine"
)

func testEntity() *engine.Entity {
	e := &engine.Entity{Name: "Car", Table: "cars"}
	e.AddField(&engine.Field{Name: "Id", Type: engine.FieldTypeInt, PrimaryKey: true})
	e.AddField(&engine.Field{Name: "Name", Type: engine.FieldTypeString})
	e.AddField(&engine.Field{Name: "Price", Type: engine.FieldTypeDecimal})
	e.AddField(&engine.Field{Name: "Sold", Type: engine.FieldTypeBool})
	return e
}

func TestParseClauses(t *testing.T) {
	clauses, err := parseClauses(testEntity(), []string{
		"Id=7",
		"Name=BMW M3",
		"Price=12.5",
		"Sold=true",
		"Name=a=b",
		"Name=null",
	})
	require.NoError(t, err)

	want := engine.Clauses{
		{Field: "Id", Value: int64(7)},
		{Field: "Name", Value: "BMW M3"},
		{Field: "Price", Value: 12.5},
		{Field: "Sold", Value: true},
		{Field: "Name", Value: "a=b"},
		{Field: "Name", Value: nil},
	}
	assert.Equal(t, want, clauses)
}

func TestParseClauses_Errors(t *testing.T) {
	tests := []struct {
		name string
		pair string
		want string
	}{
		{"missing equals", "Year", "expected Field=value"},
		{"empty field", "=1", "expected Field=value"},
		{"unknown field", "Colour=red", "unknown field 'Colour'"},
		{"bad int", "Id=seven", `cannot use "seven" as Int`},
		{"bad bool", "Sold=maybe", `cannot use "maybe" as Bool`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parseClauses(testEntity(), []string{tt.pair})
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestParseClauses_UnknownFieldIsTyped(t *testing.T) {
	_, err := parseClauses(testEntity(), []string{"Colour=red"})

	var unknown *engine.UnknownFieldError
	require.True(t, errors.As(err, &unknown))
	assert.Equal(t, "Car", unknown.Entity)
	assert.Equal(t, []string{"Id", "Name", "Price", "Sold"}, unknown.Available)
}

func TestRows(t *testing.T) {
	assert.Equal(t, "rows", rows(0))
	assert.Equal(t, "row", rows(1))
	assert.Equal(t, "rows", rows(2))
}

func TestVersionCommand(t *testing.T) {
	output, err := executeCommand(t, "version")
	require.NoError(t, err)

	if !strings.Contains(output, "bulkdml v") {
		t.Errorf("Expected output to contain 'bulkdml v', got: %s", output)
	}
	if strings.Contains(output, "Components:") {
		t.Errorf("Expected no components without --verbose, got: %s", output)
	}
}

func TestVersionCommandVerbose(t *testing.T) {
	output, err := executeCommand(t, "version", "--verbose")
	require.NoError(t, err)

	if !strings.Contains(output, "Components:") {
		t.Errorf("Expected verbose output to contain 'Components:', got: %s", output)
	}
	if !strings.Contains(output, "Drivers:") {
		t.Errorf("Expected verbose output to contain 'Drivers:', got: %s", output)
	}
}

func TestInitCommand(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "project")

	output, err := executeCommand(t, "init", dir)
	require.NoError(t, err)
	assert.Contains(t, output, "Created")

	data, err := os.ReadFile(filepath.Join(dir, config.FileName))
	require.NoError(t, err)
	assert.Equal(t, config.Template(), string(data))

	_, err = executeCommand(t, "init", dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")

	_, err = executeCommand(t, "init", dir, "--force")
	assert.NoError(t, err)
}

func TestSchemaCommand(t *testing.T) {
	configPath, _ := setupProject(t)

	output, err := executeCommand(t, "--config", configPath, "schema")
	require.NoError(t, err)

	assert.Contains(t, output, `"name": "Car"`)
	assert.Contains(t, output, `"table": "cars"`)
	assert.Contains(t, output, `"field_type": "Int"`)
}

func TestSchemaCommand_NoEntities(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	dir := t.TempDir()
	configPath := filepath.Join(dir, config.FileName)
	require.NoError(t, os.WriteFile(configPath, []byte("database:\n  driver: sqlite\n  connection_string: x.db\n"), 0644))

	output, err := executeCommand(t, "--config", configPath, "schema")
	require.NoError(t, err)
	assert.Contains(t, output, "No entities declared")
}

func TestNewLogger(t *testing.T) {
	verbose = false

	logger, err := newLogger(config.LoggingConfig{Level: "warn", Format: "json"})
	require.NoError(t, err)
	assert.False(t, logger.Core().Enabled(zapcore.DebugLevel), "debug should be disabled at warn")
	assert.True(t, logger.Core().Enabled(zapcore.WarnLevel), "warn should be enabled")

	logger, err = newLogger(config.LoggingConfig{Format: "console"})
	require.NoError(t, err)
	assert.NotNil(t, logger)

	_, err = newLogger(config.LoggingConfig{Level: "loud"})
	assert.Error(t, err)
}

func TestNewLogger_VerboseForcesDebug(t *testing.T) {
	verbose = true
	defer func() { verbose = false }()

	logger, err := newLogger(config.LoggingConfig{Level: "error"})
	require.NoError(t, err)
	assert.True(t, logger.Core().Enabled(zapcore.DebugLevel))
}

func TestConnectorConfig(t *testing.T) {
	cfg := config.Defaults()
	cfg.Database.Driver = "postgres"
	cfg.Database.ConnectionString = "postgres://ana:pw@db:6543/cars"
	cfg.Database.MaxConnections = 1

	cc, err := connectorConfig(cfg)
	require.NoError(t, err)

	assert.Equal(t, "db", cc.Host)
	assert.Equal(t, 6543, cc.Port)
	assert.Equal(t, int32(1), cc.MaxConns)
	assert.Equal(t, int32(1), cc.MinConns, "min conns is capped by max conns")
}

func TestConnectorConfig_Invalid(t *testing.T) {
	cfg := config.Defaults()
	cfg.Database.ConnectionString = "postgres://db:notaport/cars"

	_, err := connectorConfig(cfg)
	assert.Error(t, err)
}
