package vault

import (
	"bufio"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Append stamps e with an id, the time, and the hash chain, then writes
// it as one JSON line to journal.log.
func (v *Vault) Append(e Entry) (Entry, error) {
	entries, err := v.Entries()
	if err != nil {
		return Entry{}, err
	}

	e.ID = uuid.NewString()
	e.Timestamp = time.Now().UTC()
	e.Prev = ""
	if len(entries) > 0 {
		e.Prev = entries[len(entries)-1].Hash
	}
	e.Hash, err = hashEntry(e)
	if err != nil {
		return Entry{}, err
	}

	line, err := json.Marshal(e)
	if err != nil {
		return Entry{}, fmt.Errorf("failed to serialize journal entry: %w", err)
	}

	f, err := os.OpenFile(v.path(JournalFileName), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return Entry{}, fmt.Errorf("failed to open journal: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(append(line, '\n')); err != nil {
		return Entry{}, fmt.Errorf("failed to write journal: %w", err)
	}

	return e, nil
}

// Entries reads the whole journal, oldest first.
func (v *Vault) Entries() ([]Entry, error) {
	f, err := os.Open(v.path(JournalFileName))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return []Entry{}, nil
		}
		return nil, fmt.Errorf("failed to read journal: %w", err)
	}
	defer f.Close()

	entries := []Entry{}
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for n := 1; scanner.Scan(); n++ {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var e Entry
		if err := json.Unmarshal([]byte(line), &e); err != nil {
			return nil, fmt.Errorf("journal line %d: %w", n, err)
		}
		entries = append(entries, e)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read journal: %w", err)
	}

	return entries, nil
}

// Last returns up to n of the most recent entries, oldest first.
func (v *Vault) Last(n int) ([]Entry, error) {
	entries, err := v.Entries()
	if err != nil {
		return nil, err
	}
	if n > 0 && len(entries) > n {
		entries = entries[len(entries)-n:]
	}
	return entries, nil
}

// VerifyIntegrity walks the hash chain and reports the first entry whose
// hash or link does not match.
func (v *Vault) VerifyIntegrity() (*VerificationResult, error) {
	if !v.Exists() {
		return &VerificationResult{
			Valid:  false,
			Issues: []string{"vault does not exist"},
		}, nil
	}

	entries, err := v.Entries()
	if err != nil {
		return &VerificationResult{
			Valid:  false,
			Issues: []string{err.Error()},
		}, nil
	}

	result := &VerificationResult{Valid: true, Issues: []string{}}
	prev := ""
	for i, e := range entries {
		result.Checked++

		if e.Prev != prev {
			result.fail(i+1, fmt.Sprintf("entry %d (%s): broken link to previous entry", i+1, e.ID))
		}

		want, err := hashEntry(e)
		if err != nil {
			return nil, err
		}
		if want != e.Hash {
			result.fail(i+1, fmt.Sprintf("entry %d (%s): hash mismatch", i+1, e.ID))
		}

		prev = e.Hash
	}

	return result, nil
}

func (r *VerificationResult) fail(line int, issue string) {
	r.Valid = false
	r.Issues = append(r.Issues, issue)
	if r.BrokenAt == 0 {
		r.BrokenAt = line
	}
}

// hashEntry is the SHA256 of the entry serialized without its own hash.
func hashEntry(e Entry) (string, error) {
	e.Hash = ""
	payload, err := json.Marshal(e)
	if err != nil {
		return "", fmt.Errorf("failed to serialize journal entry: %w", err)
	}
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:]), nil
}
