package store

import (
	"path/filepath"
	"testing"

	"github.com/google/uuid"

	"github.com/roach88/remap/internal/ir"
)

// createTestStore creates a new SQLite store in a temp directory.
func createTestStore(t *testing.T, opts ...Option) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path, opts...)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// testID returns a deterministic uuid whose every hex digit is d.
func testID(d byte) uuid.UUID {
	var id uuid.UUID
	for i := range id {
		id[i] = d<<4 | d
	}
	return id
}

// newRecord builds a record from name/value pairs.
func newRecord(typ string, id uuid.UUID, pairs ...any) *ir.Record {
	return &ir.Record{Type: typ, ID: id, Attrs: ir.AttributesOf(pairs...)}
}
