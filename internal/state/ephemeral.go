package state

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"tokwatch/internal/core/domain"
)

// EphemeralStore loads and saves the cache-backed file holding per-account
// last-checked timestamps and consecutive-failure counters. The backing file
// lives in an evictable cache layer, so an absent, empty, or corrupt file is
// never an error: the store just starts fresh.
type EphemeralStore struct {
	Path string
}

func NewEphemeralStore(path string) *EphemeralStore {
	return &EphemeralStore{Path: path}
}

// Load returns the cached ephemeral state, or a fresh empty one when the
// file is missing, empty, or unreadable.
func (s *EphemeralStore) Load() *domain.EphemeralState {
	data, err := os.ReadFile(s.Path)
	if err != nil || len(strings.TrimSpace(string(data))) == 0 {
		return domain.NewEphemeralState()
	}
	var st domain.EphemeralState
	if err := json.Unmarshal(data, &st); err != nil {
		return domain.NewEphemeralState()
	}
	if st.Accounts == nil {
		st.Accounts = map[string]*domain.AccountStatus{}
	}
	return &st
}

// Save writes the ephemeral state back, creating parent directories as
// needed. Callers treat a failure as a logged warning, not a fatal error:
// losing this file only resets failure counters.
func (s *EphemeralStore) Save(st *domain.EphemeralState) error {
	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return fmt.Errorf("encode ephemeral state: %w", err)
	}
	data = append(data, '\n')
	dir := filepath.Dir(s.Path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create ephemeral dir: %w", err)
		}
	}
	if err := os.WriteFile(s.Path, data, 0o644); err != nil {
		return fmt.Errorf("write ephemeral state: %w", err)
	}
	return nil
}
