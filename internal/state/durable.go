// Package state owns the two persisted tiers: the durable state document
// (known-item registry + analytics job table) and the ephemeral cache file
// (per-account check timestamps and failure counters). Runners never touch
// the files directly; they receive in-memory state and hand it back here.
package state

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"

	"tokwatch/internal/core/domain"
)

// ErrCorruptState means the durable document exists but cannot be accepted.
// It is fatal: the run aborts before any mutation so a possibly recoverable
// file is never overwritten with a reset state.
var ErrCorruptState = errors.New("corrupt state file")

//go:embed state_schema.json
var stateSchemaJSON []byte

var (
	stateSchemaOnce sync.Once
	stateSchema     *jsonschema.Schema
	stateSchemaErr  error
)

func compiledStateSchema() (*jsonschema.Schema, error) {
	stateSchemaOnce.Do(func() {
		doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(stateSchemaJSON))
		if err != nil {
			stateSchemaErr = err
			return
		}
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource("state_schema.json", doc); err != nil {
			stateSchemaErr = err
			return
		}
		stateSchema, stateSchemaErr = compiler.Compile("state_schema.json")
	})
	return stateSchema, stateSchemaErr
}

// DurableStore loads and saves the committed state document through a
// snapshot backend. Saves are whole-document and merge-safe: the freshest
// persisted snapshot is re-read and merged immediately before writing, so
// two overlapping invocations cannot silently drop each other's new
// registrations or jobs (the scheduler gives no mutual exclusion).
type DurableStore struct {
	backend    SnapshotBackend
	maxHistory int
	loaded     []byte // normalized snapshot at Load, for change detection
}

// NewDurableStore wraps a backend. maxHistory bounds the number of terminal
// jobs kept as collection history; <= 0 keeps everything.
func NewDurableStore(backend SnapshotBackend, maxHistory int) *DurableStore {
	return &DurableStore{backend: backend, maxHistory: maxHistory}
}

// Load returns the persisted state, or a fresh empty state when no snapshot
// exists yet. A snapshot that cannot be parsed or fails schema validation
// yields ErrCorruptState.
func (s *DurableStore) Load() (*domain.DurableState, error) {
	raw, err := s.backend.Load()
	if err != nil {
		return nil, fmt.Errorf("load state snapshot: %w", err)
	}
	if raw == nil {
		s.loaded = nil
		return domain.NewDurableState(), nil
	}
	st, err := decodeDurable(raw)
	if err != nil {
		return nil, err
	}
	s.loaded, err = encodeDurable(st)
	if err != nil {
		return nil, err
	}
	return st, nil
}

// Save merges the given state with the freshest persisted snapshot and
// writes the result back in full. The write is skipped when nothing changed
// since Load.
func (s *DurableStore) Save(st *domain.DurableState) error {
	raw, err := s.backend.Load()
	if err != nil {
		return fmt.Errorf("reload state snapshot: %w", err)
	}
	merged := st
	if raw != nil {
		persisted, err := decodeDurable(raw)
		if err != nil {
			// Whatever replaced the snapshot since Load is not something we
			// should clobber.
			return err
		}
		merged = mergeDurable(st, persisted)
	}
	merged.PruneTerminalJobs(s.maxHistory)

	data, err := encodeDurable(merged)
	if err != nil {
		return err
	}
	if s.loaded != nil && bytes.Equal(data, s.loaded) {
		return nil
	}
	if err := s.backend.Save(data); err != nil {
		return fmt.Errorf("save state snapshot: %w", err)
	}
	s.loaded = data
	return nil
}

func decodeDurable(raw []byte) (*domain.DurableState, error) {
	schema, err := compiledStateSchema()
	if err != nil {
		return nil, fmt.Errorf("compile state schema: %w", err)
	}
	inst, err := jsonschema.UnmarshalJSON(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptState, err)
	}
	if err := schema.Validate(inst); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptState, err)
	}
	var st domain.DurableState
	if err := json.Unmarshal(raw, &st); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptState, err)
	}
	if st.KnownItems == nil {
		st.KnownItems = []domain.KnownItem{}
	}
	if st.Jobs == nil {
		st.Jobs = []domain.AnalyticsJob{}
	}
	return &st, nil
}

// encodeDurable produces the canonical on-disk form: indented, stable field
// order, trailing newline. The file is committed to version control by the
// execution environment, so diffs must stay readable.
func encodeDurable(st *domain.DurableState) ([]byte, error) {
	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode state: %w", err)
	}
	return append(data, '\n'), nil
}

// mergeDurable folds our in-memory state into the freshest persisted one.
// Known items union by (account, item_id). Jobs union by item identity:
// a terminal record wins over a pending one, and among pendings the higher
// attempt count wins.
func mergeDurable(ours, persisted *domain.DurableState) *domain.DurableState {
	out := &domain.DurableState{
		Version:    ours.Version,
		KnownItems: make([]domain.KnownItem, 0, len(persisted.KnownItems)+len(ours.KnownItems)),
		Jobs:       make([]domain.AnalyticsJob, 0, len(persisted.Jobs)+len(ours.Jobs)),
	}
	if persisted.Version > out.Version {
		out.Version = persisted.Version
	}

	seen := map[[2]string]bool{}
	for _, k := range append(append([]domain.KnownItem{}, persisted.KnownItems...), ours.KnownItems...) {
		key := [2]string{k.Account, k.ItemID}
		if seen[key] {
			continue
		}
		seen[key] = true
		out.KnownItems = append(out.KnownItems, k)
	}

	jobIdx := map[[2]string]int{}
	for _, j := range persisted.Jobs {
		jobIdx[[2]string{j.Account, j.ItemID}] = len(out.Jobs)
		out.Jobs = append(out.Jobs, j)
	}
	for _, j := range ours.Jobs {
		key := [2]string{j.Account, j.ItemID}
		idx, ok := jobIdx[key]
		if !ok {
			jobIdx[key] = len(out.Jobs)
			out.Jobs = append(out.Jobs, j)
			continue
		}
		out.Jobs[idx] = preferJob(out.Jobs[idx], j)
	}
	return out
}

func preferJob(a, b domain.AnalyticsJob) domain.AnalyticsJob {
	switch {
	case a.Status.Terminal() && !b.Status.Terminal():
		return a
	case b.Status.Terminal() && !a.Status.Terminal():
		return b
	case b.Attempts > a.Attempts:
		return b
	default:
		return a
	}
}
