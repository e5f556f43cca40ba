package snapshot

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/roach88/remap/internal/ir"
	"github.com/roach88/remap/internal/queryir"
	"github.com/roach88/remap/internal/service"
)

// Capture reads every record of the given types from an environment.
//
// When a type's metadata lists fields, only readable and creatable fields are
// captured and a field the record has no value for is captured as null, so
// importing it clears the target's value. Without field metadata every stored
// attribute is captured. Excluded fields are never captured.
func Capture(ctx context.Context, svc service.Service, meta service.MetadataProvider, types, excluded []string) ([]ir.Batch, error) {
	skip := make(map[string]bool, len(excluded))
	for _, f := range excluded {
		skip[strings.ToLower(f)] = true
	}

	batches := make([]ir.Batch, 0, len(types))
	for _, typ := range types {
		desc, err := meta.GetType(ctx, typ)
		if err != nil {
			return nil, err
		}

		var cols []string
		for _, f := range desc.Fields {
			if f.Readable && f.Creatable && !skip[strings.ToLower(f.Name)] {
				cols = append(cols, f.Name)
			}
		}
		columns := queryir.AllColumns()
		if len(cols) > 0 {
			columns = queryir.Columns(cols...)
		}

		recs, err := svc.Query(ctx, queryir.Query{Type: desc.LogicalName, Columns: columns})
		if err != nil {
			return nil, fmt.Errorf("capture %s: %w", typ, err)
		}
		for _, r := range recs {
			for _, k := range r.Attrs.Keys() {
				if skip[strings.ToLower(k)] {
					r.Attrs.Delete(k)
				}
			}
			for _, c := range cols {
				if !r.Has(c) {
					r.Set(c, ir.Null{})
				}
			}
		}

		slog.Debug("captured", "type", desc.LogicalName, "records", len(recs))
		batches = append(batches, ir.Batch{Type: desc.LogicalName, Records: recs})
	}
	return batches, nil
}

// Export captures types from an environment and writes them into dir.
func Export(ctx context.Context, svc service.Service, meta service.MetadataProvider, types, excluded []string, dir string) ([]ir.Batch, error) {
	batches, err := Capture(ctx, svc, meta, types, excluded)
	if err != nil {
		return nil, err
	}
	if err := Write(dir, batches); err != nil {
		return nil, err
	}
	return batches, nil
}
