package store

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/roach88/remap/internal/ir"
	"github.com/roach88/remap/internal/queryir"
)

// marshalAttributes converts a record's attributes to indexed JSON TEXT.
// The primary key attribute is dropped; the id column is authoritative.
func marshalAttributes(rec *ir.Record) (string, error) {
	attrs := rec.Attrs.Clone()
	for _, k := range attrs.Keys() {
		if strings.EqualFold(k, rec.PrimaryKey()) {
			attrs.Delete(k)
		}
	}
	data, err := ir.MarshalIndexed(attrs)
	if err != nil {
		return "", fmt.Errorf("marshal attributes: %w", err)
	}
	return string(data), nil
}

// unmarshalAttributes converts JSON TEXT back to attributes.
func unmarshalAttributes(data string) (*ir.Attributes, error) {
	attrs := ir.NewAttributes()
	if err := json.Unmarshal([]byte(data), attrs); err != nil {
		return nil, fmt.Errorf("unmarshal attributes: %w", err)
	}
	return attrs, nil
}

// project builds the record returned to callers: only the selected columns,
// in the order requested (stored order for AllColumns), with the primary key
// synthesized from the id column. Unset columns are omitted, as a server
// omits null columns from a result.
func project(typ string, id uuid.UUID, stored *ir.Attributes, cols queryir.ColumnSet) *ir.Record {
	rec := ir.NewRecord(typ, id)
	pk := ir.PrimaryKey(typ)

	if cols.All {
		for _, k := range stored.Keys() {
			v, _ := stored.Get(k)
			rec.Set(k, v)
		}
		rec.Set(pk, ir.ID(id))
		return rec
	}

	for _, name := range cols.Names {
		if strings.EqualFold(name, pk) {
			rec.Set(name, ir.ID(id))
			continue
		}
		if v, ok := stored.Get(name); ok && !ir.IsNull(v) {
			rec.Set(name, v)
		}
	}
	return rec
}
