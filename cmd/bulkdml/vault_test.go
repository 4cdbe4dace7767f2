package main

import (
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chameleon-db/bulkdml/pkg/vault"
)

func TestVaultGuardsAndJournalsMutations(t *testing.T) {
	configPath, db := setupProject(t)

	output, err := executeCommand(t, "--config", configPath, "vault", "init")
	require.NoError(t, err)
	assert.Contains(t, output, "standard mode")

	_, err = executeCommand(t, "--config", configPath, "update", "Car", "--set", "Year=2001", "--where", "Id=1")
	require.NoError(t, err)

	_, err = executeCommand(t, "--config", configPath, "delete", "Car", "--all")
	var modeErr *vault.ModeError
	require.True(t, errors.As(err, &modeErr), "expected ModeError, got %v", err)
	assert.Equal(t, vault.ModeStandard, modeErr.Mode)
	assert.Equal(t, 3, countCars(t, db))

	output, err = executeCommand(t, "--config", configPath, "vault", "log", "--format", "json")
	require.NoError(t, err)

	var entries []vault.Entry
	require.NoError(t, json.Unmarshal([]byte(output), &entries))
	require.Len(t, entries, 2)
	assert.Equal(t, "INIT", entries[0].Action)
	assert.Equal(t, "UPDATE", entries[1].Action)
	assert.Equal(t, "Car", entries[1].Entity)
	assert.Equal(t, 1, entries[1].Affected)
	assert.Equal(t, "UPDATE Car entity SET entity.Year = :arg0 WHERE entity.Id = :filter0", entries[1].Statement)
	assert.Equal(t, map[string]string{"arg0": "2001", "filter0": "1"}, entries[1].Params)

	output, err = executeCommand(t, "--config", configPath, "vault", "verify")
	require.NoError(t, err)
	assert.Contains(t, output, "Journal intact (2 entries)")
}

func TestVaultJournalsTheExecutedStatement(t *testing.T) {
	configPath, db := setupProject(t)

	_, err := executeCommand(t, "--config", configPath, "vault", "init")
	require.NoError(t, err)

	// the table name resolves to Car; the journal keeps what actually ran
	_, err = executeCommand(t, "--config", configPath, "update", "cars", "--set", "Year=2005", "--set", "Name=Polo", "--where", "Name=Golf")
	require.NoError(t, err)
	_, err = executeCommand(t, "--config", configPath, "delete", "cars", "--where", "Year=2000", "--where", "Name=BMW")
	require.NoError(t, err)
	assert.Equal(t, 2, countCars(t, db))
	assert.Equal(t, int64(2005), yearOf(t, db, 1).Int64)

	v := vault.NewVault(filepath.Dir(configPath))
	entries, err := v.Last(2)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	update, del := entries[0], entries[1]
	assert.Equal(t, "Car", update.Entity)
	assert.Equal(t, 1, update.Affected)
	assert.Equal(t, "UPDATE Car entity SET entity.Year = :arg0, entity.Name = :arg1 WHERE entity.Name = :filter0", update.Statement)
	assert.Equal(t, map[string]string{"arg0": "2005", "arg1": "Polo", "filter0": "Golf"}, update.Params)

	assert.Equal(t, "Car", del.Entity)
	assert.Equal(t, 1, del.Affected)
	assert.Equal(t, "DELETE Car entity WHERE entity.Year = :filter0 AND entity.Name = :filter1", del.Statement)
	assert.Equal(t, map[string]string{"filter0": "2000", "filter1": "BMW"}, del.Params)
}

func TestVaultReadonlyRefusesUpdates(t *testing.T) {
	configPath, db := setupProject(t)

	_, err := executeCommand(t, "--config", configPath, "vault", "init")
	require.NoError(t, err)
	_, err = executeCommand(t, "--config", configPath, "vault", "mode", "readonly")
	require.NoError(t, err)

	_, err = executeCommand(t, "--config", configPath, "update", "Car", "--set", "Year=2001", "--where", "Id=1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "readonly")
	assert.Equal(t, int64(1999), yearOf(t, db, 1).Int64)

	// dry runs are never guarded
	_, err = executeCommand(t, "--config", configPath, "update", "Car", "--set", "Year=2001", "--dry-run")
	assert.NoError(t, err)
}

func TestVaultPrivilegedAllowsWholeTable(t *testing.T) {
	configPath, db := setupProject(t)

	_, err := executeCommand(t, "--config", configPath, "vault", "init")
	require.NoError(t, err)
	output, err := executeCommand(t, "--config", configPath, "vault", "mode", "admin")
	require.NoError(t, err)
	assert.Contains(t, output, "privileged")

	_, err = executeCommand(t, "--config", configPath, "delete", "Car", "--all")
	require.NoError(t, err)
	assert.Equal(t, 0, countCars(t, db))

	v := vault.NewVault(filepath.Dir(configPath))
	entries, err := v.Last(1)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "DELETE", entries[0].Action)
	assert.Equal(t, 3, entries[0].Affected)
	assert.Equal(t, vault.ModePrivileged, entries[0].Mode)
}

func TestVaultModeUpgradeNeedsPassword(t *testing.T) {
	configPath, _ := setupProject(t)

	_, err := executeCommand(t, "--config", configPath, "vault", "init")
	require.NoError(t, err)

	t.Setenv(modePasswordEnvVar, "supersecure123")
	_, err = executeCommand(t, "--config", configPath, "vault", "set-password")
	require.NoError(t, err)

	_, err = executeCommand(t, "--config", configPath, "vault", "mode", "readonly")
	require.NoError(t, err)

	t.Setenv(modePasswordEnvVar, "wrongpass")
	_, err = executeCommand(t, "--config", configPath, "vault", "mode", "privileged")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid mode password")

	t.Setenv(modePasswordEnvVar, "supersecure123")
	output, err := executeCommand(t, "--config", configPath, "vault", "mode", "privileged")
	require.NoError(t, err)
	assert.Contains(t, output, "privileged")

	output, err = executeCommand(t, "--config", configPath, "vault", "mode")
	require.NoError(t, err)
	assert.Equal(t, "privileged\n", output)
}

func TestVaultStatus(t *testing.T) {
	configPath, _ := setupProject(t)

	output, err := executeCommand(t, "--config", configPath, "vault", "status")
	require.NoError(t, err)
	assert.Contains(t, output, "No vault initialized")

	_, err = executeCommand(t, "--config", configPath, "vault", "init")
	require.NoError(t, err)

	output, err = executeCommand(t, "--config", configPath, "vault", "status")
	require.NoError(t, err)
	assert.Contains(t, output, "Mode:           standard")
	assert.Contains(t, output, "Entries:        1")
	assert.Contains(t, output, "INIT")
}

func TestVaultLog_Table(t *testing.T) {
	configPath, _ := setupProject(t)

	output, err := executeCommand(t, "--config", configPath, "vault", "log")
	require.NoError(t, err)
	assert.Contains(t, output, "No journal entries")

	_, err = executeCommand(t, "--config", configPath, "vault", "log", "--limit", "0")
	assert.Error(t, err)

	_, err = executeCommand(t, "--config", configPath, "vault", "log", "--format", "xml")
	assert.Error(t, err)
}

func TestFormatTimeSince(t *testing.T) {
	now := time.Now()

	tests := []struct {
		name     string
		t        time.Time
		expected string
	}{
		{name: "just now (30 seconds ago)", t: now.Add(-30 * time.Second), expected: "just now"},
		{name: "5 minutes ago", t: now.Add(-5 * time.Minute), expected: "5 minutes ago"},
		{name: "3 hours ago", t: now.Add(-3 * time.Hour), expected: "3 hours ago"},
		{name: "1 day ago", t: now.Add(-24 * time.Hour), expected: "1 day ago"},
		{name: "30 days ago", t: now.Add(-720 * time.Hour), expected: "30 days ago"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := formatTimeSince(tt.t)
			if got != tt.expected {
				t.Errorf("formatTimeSince(%v) = %q, want %q", tt.t, got, tt.expected)
			}
		})
	}
}
