package vault

import (
	"fmt"
	"os"
	"path/filepath"
)

const (
	VaultDirName     = ".bulkdml/vault"
	ModeFileName     = "mode.json"
	ModeAuthFileName = "mode_auth.json"
	JournalFileName  = "journal.log"
)

// NewVault creates a vault instance (does not initialize on disk)
func NewVault(rootPath string) *Vault {
	return &Vault{
		RootPath: rootPath,
	}
}

func (v *Vault) path(name string) string {
	return filepath.Join(v.RootPath, VaultDirName, name)
}

// Exists checks if vault exists on disk
func (v *Vault) Exists() bool {
	_, err := os.Stat(v.path(ModeFileName))
	return err == nil
}

// Initialize creates the vault directory in DefaultMode and opens the
// journal with an INIT entry.
func (v *Vault) Initialize() error {
	if v.Exists() {
		return fmt.Errorf("vault already initialized")
	}

	if err := os.MkdirAll(filepath.Join(v.RootPath, VaultDirName), 0755); err != nil {
		return fmt.Errorf("failed to create vault directory: %w", err)
	}

	if err := v.saveModeConfig(&ModeConfig{Mode: DefaultMode}); err != nil {
		return fmt.Errorf("failed to save mode config: %w", err)
	}

	if _, err := v.Append(Entry{
		Action:  "INIT",
		Mode:    DefaultMode,
		Details: map[string]string{"action": "vault_created"},
	}); err != nil {
		return fmt.Errorf("failed to log initialization: %w", err)
	}

	return nil
}

// GetStatus returns current vault state
func (v *Vault) GetStatus() (*VaultStatus, error) {
	if !v.Exists() {
		return &VaultStatus{Exists: false}, nil
	}

	mode, err := v.GetMode()
	if err != nil {
		return nil, err
	}

	entries, err := v.Entries()
	if err != nil {
		return nil, err
	}

	status := &VaultStatus{
		Exists:      true,
		Mode:        mode,
		HasPassword: v.HasModePassword(),
		Entries:     len(entries),
	}
	if len(entries) > 0 {
		status.LastEntry = &entries[len(entries)-1]
	}

	if info, err := os.Stat(v.path(JournalFileName)); err == nil {
		status.LastModified = info.ModTime()
	}

	return status, nil
}
