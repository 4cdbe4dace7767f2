package vault

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
)

// Mode decides which bulk statements the vault lets through.
type Mode string

const (
	// ModeReadonly refuses every mutation.
	ModeReadonly Mode = "readonly"
	// ModeStandard allows mutations that carry at least one filter.
	ModeStandard Mode = "standard"
	// ModePrivileged also allows whole-table updates and deletes.
	ModePrivileged Mode = "privileged"
)

const DefaultMode = ModeStandard

var modeRank = map[Mode]int{
	ModeReadonly:   0,
	ModeStandard:   1,
	ModePrivileged: 2,
}

// ParseMode normalizes mode; "admin" is accepted for privileged.
func ParseMode(mode string) (Mode, error) {
	normalized := Mode(strings.ToLower(strings.TrimSpace(mode)))
	if normalized == "admin" {
		normalized = ModePrivileged
	}

	if _, ok := modeRank[normalized]; !ok {
		return "", fmt.Errorf("invalid mode %q (allowed: readonly, standard, privileged)", mode)
	}

	return normalized, nil
}

// RequiresAuth reports whether moving from current to target is an
// upgrade. Unknown modes never require auth; SetMode rejects them anyway.
func RequiresAuth(current, target Mode) bool {
	currentRank, currentOK := modeRank[current]
	targetRank, targetOK := modeRank[target]
	if !currentOK || !targetOK {
		return false
	}
	return targetRank > currentRank
}

// ModeError is returned by Authorize when the current mode forbids a
// statement.
type ModeError struct {
	Mode     Mode
	Action   string
	Entity   string
	Filtered bool
}

func (e *ModeError) Error() string {
	if e.Mode == ModeReadonly {
		return fmt.Sprintf("%s %s refused: vault is in readonly mode", e.Action, e.Entity)
	}
	return fmt.Sprintf("%s of every %s refused in %s mode (switch to privileged or add a filter)",
		e.Action, e.Entity, e.Mode)
}

func (e *ModeError) Code() string { return "MODE_DENIED" }

// Authorize checks a statement against the current mode. action is
// UPDATE or DELETE; filtered reports whether it has a WHERE clause.
func (v *Vault) Authorize(action, entity string, filtered bool) error {
	mode, err := v.GetMode()
	if err != nil {
		return err
	}

	if mode == ModeReadonly || (mode == ModeStandard && !filtered) {
		return &ModeError{Mode: mode, Action: action, Entity: entity, Filtered: filtered}
	}
	return nil
}

func (v *Vault) saveModeConfig(cfg *ModeConfig) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize mode config: %w", err)
	}

	if err := os.WriteFile(v.path(ModeFileName), data, 0644); err != nil {
		return fmt.Errorf("failed to write mode config: %w", err)
	}

	return nil
}

// GetMode returns the current mode, DefaultMode without a vault.
func (v *Vault) GetMode() (Mode, error) {
	if !v.Exists() {
		return DefaultMode, nil
	}

	data, err := os.ReadFile(v.path(ModeFileName))
	if err != nil {
		return "", fmt.Errorf("failed to read mode config: %w", err)
	}

	var cfg ModeConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return "", fmt.Errorf("failed to parse mode config: %w", err)
	}

	return ParseMode(string(cfg.Mode))
}

// SetMode switches to mode. Upgrades need password once a mode password
// is configured; denied attempts are journaled too.
func (v *Vault) SetMode(mode, password string) (Mode, error) {
	if !v.Exists() {
		return "", fmt.Errorf("vault not initialized")
	}

	target, err := ParseMode(mode)
	if err != nil {
		return "", err
	}

	current, err := v.GetMode()
	if err != nil {
		return "", err
	}

	if RequiresAuth(current, target) && v.HasModePassword() {
		ok, err := v.VerifyModePassword(password)
		if err != nil {
			return "", err
		}
		if !ok {
			if _, err := v.Append(Entry{
				Action: "MODE",
				Mode:   current,
				Details: map[string]string{
					"action": "mode_change_denied",
					"target": string(target),
					"reason": "invalid_mode_password",
				},
			}); err != nil {
				return "", errors.Join(ErrInvalidModePassword, fmt.Errorf("failed to journal denied mode change: %w", err))
			}
			return "", ErrInvalidModePassword
		}
	}

	if err := v.saveModeConfig(&ModeConfig{Mode: target}); err != nil {
		return "", err
	}

	if _, err := v.Append(Entry{
		Action: "MODE",
		Mode:   target,
		Details: map[string]string{
			"action": "mode_updated",
			"from":   string(current),
		},
	}); err != nil {
		return "", err
	}

	return target, nil
}
