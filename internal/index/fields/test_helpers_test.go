package fields

import (
	"path/filepath"
	"testing"
)

// createTestStore opens a SQLite store in a temp directory.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fields.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// createTestIndexer wraps a fresh store in an Indexer.
func createTestIndexer(t *testing.T, opts ...Option) *Indexer {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fields.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	ix := NewIndexer(s, opts...)
	t.Cleanup(func() { ix.Close() })
	return ix
}
