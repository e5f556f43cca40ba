package engine

import (
	"context"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/roach88/remap/internal/ir"
	"github.com/roach88/remap/internal/logsink"
	"github.com/roach88/remap/internal/queryir"
)

// foreignKey is one side of an intersect record.
type foreignKey struct {
	Type  string
	Field string
	ID    uuid.UUID
}

// foreignKeys returns the id-valued attributes of an intersect record other
// than its own id. The referenced type is the field name without its
// trailing "id".
func foreignKeys(rec *ir.Record) []foreignKey {
	var out []foreignKey
	for _, k := range rec.Attrs.Keys() {
		id, ok := idOf(rec.Get(k))
		if !ok || id == rec.ID {
			continue
		}
		i := strings.LastIndex(strings.ToLower(k), "id")
		if i <= 0 {
			continue
		}
		out = append(out, foreignKey{Type: k[:i], Field: k, ID: id})
	}
	return out
}

func idOf(v ir.Value) (uuid.UUID, bool) {
	switch val := v.(type) {
	case ir.ID:
		return val.UUID(), true
	case ir.Ref:
		return val.ID, true
	case ir.String:
		id, err := uuid.Parse(string(val))
		return id, err == nil
	}
	return uuid.Nil, false
}

// upsertIntersect associates the two records an intersect record links,
// unless the pair already exists in the target.
func (e *Engine) upsertIntersect(ctx context.Context, rec *ir.Record, relationship string) (Outcome, error) {
	fks := foreignKeys(rec)
	if len(fks) != 2 {
		return OutcomeFailed, &RecordError{Step: "many to many data issue", Record: rec, Err: errMissingReferences}
	}
	from, to := fks[0], fks[1]

	existing, err := e.target.Query(ctx, queryir.Query{
		Type: rec.Type,
		Filter: queryir.AllOf(
			queryir.Equals{Field: from.Field, Value: ir.ID(from.ID)},
			queryir.Equals{Field: to.Field, Value: ir.ID(to.ID)},
		),
		Columns: queryir.Columns(from.Field, to.Field),
	})
	if err != nil {
		return OutcomeFailed, &RecordError{Step: "checking many to many", Record: rec, Err: err}
	}
	if len(existing) > 0 {
		logsink.Infof(ctx, e.sink, "many to many exists: %s", ir.Describe(rec))
		return OutcomeUnchanged, nil
	}

	err = e.target.Associate(ctx, from.Type, from.ID, relationship, []ir.Ref{{Type: to.Type, ID: to.ID}})
	if err != nil {
		slog.Debug("associate failed",
			"relationship", relationship,
			"from_type", from.Type, "from_id", from.ID,
			"to_type", to.Type, "to_id", to.ID)
		return OutcomeFailed, &RecordError{Step: "associating many to many", Record: rec, Err: err}
	}
	logsink.Infof(ctx, e.sink, "many to many created: %s", ir.Describe(rec))
	return OutcomeAssociated, nil
}
