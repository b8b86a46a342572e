package state

import (
	"path/filepath"
	"testing"
)

func TestBuildSnapshotBackendBarePath(t *testing.T) {
	backend, err := BuildSnapshotBackend("data/state.json")
	if err != nil {
		t.Fatalf("bare path must select the file backend: %v", err)
	}
	fb, ok := backend.(*FileBackend)
	if !ok {
		t.Fatalf("expected *FileBackend, got %T", backend)
	}
	if fb.Path != "data/state.json" {
		t.Fatalf("unexpected path %q", fb.Path)
	}
}

func TestBuildSnapshotBackendFileScheme(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	backend, err := BuildSnapshotBackend("file://" + path)
	if err != nil {
		t.Fatalf("file scheme failed: %v", err)
	}
	if err := backend.Save([]byte(`{"version":1}`)); err != nil {
		t.Fatalf("file backend save failed: %v", err)
	}
	data, err := backend.Load()
	if err != nil || string(data) != `{"version":1}` {
		t.Fatalf("file backend round trip failed: %v %q", err, data)
	}
}

func TestBuildSnapshotBackendMemory(t *testing.T) {
	backend, err := BuildSnapshotBackend("memory://")
	if err != nil {
		t.Fatalf("memory scheme failed: %v", err)
	}
	if data, err := backend.Load(); err != nil || data != nil {
		t.Fatalf("fresh memory backend must be empty, got %q %v", data, err)
	}
	if err := backend.Save([]byte("snap")); err != nil {
		t.Fatal(err)
	}
	data, err := backend.Load()
	if err != nil || string(data) != "snap" {
		t.Fatalf("memory backend round trip failed: %v %q", err, data)
	}
}

func TestBuildSnapshotBackendPostgres(t *testing.T) {
	backend, err := BuildSnapshotBackend("postgres://localhost/tokwatch?sslmode=disable")
	if err != nil {
		t.Fatalf("postgres scheme must be accepted: %v", err)
	}
	if _, ok := backend.(*PostgresBackend); !ok {
		t.Fatalf("expected *PostgresBackend, got %T", backend)
	}
}

func TestBuildSnapshotBackendRejectsUnknownScheme(t *testing.T) {
	if _, err := BuildSnapshotBackend("mysql://localhost/tokwatch"); err == nil {
		t.Fatalf("expected error for unsupported scheme")
	}
	if _, err := BuildSnapshotBackend(""); err == nil {
		t.Fatalf("expected error for empty DSN")
	}
}

func TestFileBackendTreatsEmptyFileAsAbsent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	backend := NewFileBackend(path)
	if err := backend.Save(nil); err != nil {
		t.Fatal(err)
	}
	data, err := backend.Load()
	if err != nil || data != nil {
		t.Fatalf("empty file must read as absent, got %q %v", data, err)
	}
}
