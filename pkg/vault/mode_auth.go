package vault

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
)

// MinModePasswordLength is the shortest accepted mode password, counted
// after surrounding spaces are trimmed.
const MinModePasswordLength = 8

const modeSaltBytes = 16

var (
	// ErrInvalidModePassword is returned by SetMode for an upgrade with
	// the wrong password.
	ErrInvalidModePassword = errors.New("invalid mode password")
	// ErrModePasswordNotSet is returned by VerifyModePassword when the
	// vault has no mode password.
	ErrModePasswordNotSet = errors.New("mode password is not configured")
)

// newModeAuthConfig salts and digests secret. Only the digest is kept.
func newModeAuthConfig(secret string) (*ModeAuthConfig, error) {
	var salt [modeSaltBytes]byte
	if _, err := rand.Read(salt[:]); err != nil {
		return nil, fmt.Errorf("failed to generate mode password salt: %w", err)
	}
	cfg := &ModeAuthConfig{Salt: hex.EncodeToString(salt[:])}
	cfg.Hash = cfg.digest(secret)
	return cfg, nil
}

// digest is HMAC-SHA256 of secret keyed by the salt, hex encoded.
func (c *ModeAuthConfig) digest(secret string) string {
	mac := hmac.New(sha256.New, []byte(c.Salt))
	mac.Write([]byte(secret))
	return hex.EncodeToString(mac.Sum(nil))
}

func (c *ModeAuthConfig) matches(password string) bool {
	want, err := hex.DecodeString(c.Hash)
	if err != nil {
		return false
	}
	got, _ := hex.DecodeString(c.digest(strings.TrimSpace(password)))
	return hmac.Equal(got, want)
}

// HasModePassword reports whether upgrading the mode asks for a password.
func (v *Vault) HasModePassword() bool {
	_, err := os.Stat(v.path(ModeAuthFileName))
	return err == nil
}

// SetModePassword stores a salted digest of password, replacing any
// previous one, and journals the change.
func (v *Vault) SetModePassword(password string) error {
	if !v.Exists() {
		return fmt.Errorf("vault not initialized")
	}

	secret := strings.TrimSpace(password)
	if len(secret) < MinModePasswordLength {
		return fmt.Errorf("password too short (minimum %d characters)", MinModePasswordLength)
	}

	cfg, err := newModeAuthConfig(secret)
	if err != nil {
		return err
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize mode password: %w", err)
	}
	// readable by the owner only
	if err := os.WriteFile(v.path(ModeAuthFileName), data, 0600); err != nil {
		return fmt.Errorf("failed to store mode password: %w", err)
	}

	_, err = v.Append(Entry{
		Action:  "MODE",
		Details: map[string]string{"action": "password_configured"},
	})
	return err
}

// VerifyModePassword reports whether password matches the stored one.
// Surrounding spaces are ignored, as they are when the password is set.
func (v *Vault) VerifyModePassword(password string) (bool, error) {
	data, err := os.ReadFile(v.path(ModeAuthFileName))
	if errors.Is(err, os.ErrNotExist) {
		return false, ErrModePasswordNotSet
	}
	if err != nil {
		return false, fmt.Errorf("failed to read mode password: %w", err)
	}

	var cfg ModeAuthConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return false, fmt.Errorf("failed to parse %s: %w", ModeAuthFileName, err)
	}
	if cfg.Salt == "" || cfg.Hash == "" {
		return false, fmt.Errorf("%s has no salt or digest", ModeAuthFileName)
	}

	return cfg.matches(password), nil
}
