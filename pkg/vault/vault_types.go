package vault

import (
	"time"
)

// Vault guards bulk mutations of one project: a mode file decides which
// statements may run and an append-only journal records the ones that did.
type Vault struct {
	RootPath string // project directory holding .bulkdml/vault/
}

// ModeConfig stores the current mode (source of truth)
type ModeConfig struct {
	Mode Mode `json:"mode"`
}

// ModeAuthConfig is the content of mode_auth.json: a random salt and the
// HMAC-SHA256 digest of the mode password keyed by it.
type ModeAuthConfig struct {
	Salt string `json:"salt"`
	Hash string `json:"hash"`
}

// Entry is one line of journal.log. Hash covers every other field and
// Prev links it to the entry before, so edits break the chain.
type Entry struct {
	ID        string            `json:"id"`
	Timestamp time.Time         `json:"timestamp"`
	Action    string            `json:"action"` // INIT, MODE, UPDATE, DELETE
	Entity    string            `json:"entity,omitempty"`
	Statement string            `json:"statement,omitempty"`
	Params    map[string]string `json:"params,omitempty"`
	Affected  int               `json:"affected"`
	Mode      Mode              `json:"mode,omitempty"`
	Details   map[string]string `json:"details,omitempty"`
	Prev      string            `json:"prev"`
	Hash      string            `json:"hash"`
}

// VaultStatus represents current vault state
type VaultStatus struct {
	Exists       bool
	Mode         Mode
	HasPassword  bool
	Entries      int
	LastEntry    *Entry
	LastModified time.Time
}

// VerificationResult represents integrity check results
type VerificationResult struct {
	Valid    bool
	Checked  int
	Issues   []string
	BrokenAt int // 1-based line of the first bad entry, 0 when valid
}
