// Package snapshot reads and writes captured source records.
//
// A snapshot is a directory of JSON files, one batch per file. Files are read
// in lexical name order, which is the import order; writers prefix names with
// an ordinal ("001_businessunit.json"). Each file carries the batch's content
// hash, which is verified on read when present.
package snapshot

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/roach88/remap/internal/ir"
)

// ErrHashMismatch is returned when a file's content does not match its hash.
var ErrHashMismatch = errors.New("snapshot hash mismatch")

// File is the on-disk form of one batch.
type File struct {
	Type    string       `json:"type"`
	Hash    string       `json:"hash,omitempty"`
	Records []*ir.Record `json:"records"`
}

// Read loads every *.json file of dir in lexical order. Empty files yield
// empty batches so the order of types is preserved.
func Read(dir string) ([]ir.Batch, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), ".json") {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)

	batches := make([]ir.Batch, 0, len(names))
	for _, name := range names {
		b, err := ReadFile(filepath.Join(dir, name))
		if err != nil {
			return nil, err
		}
		batches = append(batches, b)
	}
	return batches, nil
}

// ReadFile loads one batch file.
func ReadFile(path string) (ir.Batch, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return ir.Batch{}, fmt.Errorf("read snapshot file: %w", err)
	}

	var f File
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&f); err != nil {
		return ir.Batch{}, fmt.Errorf("parse %s: %w", filepath.Base(path), err)
	}
	if strings.TrimSpace(f.Type) == "" {
		return ir.Batch{}, fmt.Errorf("parse %s: type is required", filepath.Base(path))
	}

	for i, r := range f.Records {
		if r == nil || r.ID == uuid.Nil {
			return ir.Batch{}, fmt.Errorf("parse %s: record %d has no id", filepath.Base(path), i)
		}
		if r.Type == "" {
			r.Type = f.Type
		}
		if !strings.EqualFold(r.Type, f.Type) {
			return ir.Batch{}, fmt.Errorf("parse %s: record %d is a %s, batch holds %s", filepath.Base(path), i, r.Type, f.Type)
		}
	}

	b := ir.Batch{Type: f.Type, Records: f.Records}
	if f.Hash != "" {
		got, err := ir.BatchHash(b)
		if err != nil {
			return ir.Batch{}, fmt.Errorf("hash %s: %w", filepath.Base(path), err)
		}
		if got != f.Hash {
			return ir.Batch{}, fmt.Errorf("%s: %w", filepath.Base(path), ErrHashMismatch)
		}
	}
	return b, nil
}

// WriteFile writes one batch with its content hash.
func WriteFile(path string, b ir.Batch) error {
	hash, err := ir.BatchHash(b)
	if err != nil {
		return fmt.Errorf("hash %s: %w", b.Type, err)
	}
	records := b.Records
	if records == nil {
		records = []*ir.Record{}
	}

	data, err := json.MarshalIndent(File{Type: b.Type, Hash: hash, Records: records}, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", b.Type, err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("write snapshot file: %w", err)
	}
	return nil
}

// FileName returns the name of the i-th batch file.
func FileName(i int, typ string) string {
	return fmt.Sprintf("%03d_%s.json", i+1, strings.ToLower(typ))
}

// Write writes batches into dir, creating it if needed, named so that Read
// returns them in the same order.
func Write(dir string, batches []ir.Batch) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create snapshot dir: %w", err)
	}
	for i, b := range batches {
		if err := WriteFile(filepath.Join(dir, FileName(i, b.Type)), b); err != nil {
			return err
		}
	}
	return nil
}
