package engine

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/roach88/remap/internal/ir"
	"github.com/roach88/remap/internal/logsink"
	"github.com/roach88/remap/internal/queryir"
	"github.com/roach88/remap/internal/service"
)

// stateOnlyTypes are read back with state and status only; their write path
// never compares attributes.
var stateOnlyTypes = map[string]bool{
	"duplicaterule": true,
	"sla":           true,
	"workflow":      true,
}

// retrieveColumns returns the columns read from an existing target record.
// Custom types are read back with state and status only, so an existing
// custom record that carries other attributes is always rewritten.
func retrieveColumns(desc ir.Descriptor, rec *ir.Record) queryir.ColumnSet {
	if desc.IsCustom || stateOnlyTypes[strings.ToLower(desc.LogicalName)] {
		return queryir.Columns("statecode", "statuscode")
	}
	return queryir.Columns(rec.Attrs.Keys()...)
}

// upsert writes one non-intersect record.
func (e *Engine) upsert(ctx context.Context, desc ir.Descriptor, rec *ir.Record) (Outcome, error) {
	const checking = "Checking if the source data exist in target"

	target, err := e.target.Retrieve(ctx, rec.Type, rec.ID, retrieveColumns(desc, rec))
	if err != nil {
		// any failure to read the target record is treated as absence;
		// the create below reports the real problem if there is one
		if !errors.Is(err, service.ErrNotFound) {
			slog.Debug("retrieve failed, creating", "type", rec.Type, "id", rec.ID, "error", err)
		}
		target = nil
	}

	var o Outcome
	switch strings.ToLower(rec.Type) {
	case "documenttemplate":
		o, err = e.upsertDocumentTemplate(ctx, rec, target)
	case "duplicaterule", "duplicaterulecondition":
		o, err = e.upsertDuplicateRule(ctx, rec, target)
	case "workflow", "sla", "slaitem":
		o, err = e.upsertWorkflowOrSLA(ctx, rec, target)
	default:
		o, err = e.upsertGeneric(ctx, rec, target)
	}
	if err != nil {
		return OutcomeFailed, recordError(rec, checking, err)
	}

	switch o {
	case OutcomeCreated:
		logsink.Infof(ctx, e.sink, "Inserted: %s", ir.Describe(rec))
	case OutcomeUnchanged:
		logsink.Infof(ctx, e.sink, "Unchanged: %s", ir.Describe(rec))
	default:
		logsink.Infof(ctx, e.sink, "Updated: %s", ir.Describe(rec))
	}
	return o, nil
}

// upsertGeneric creates, updates or skips a record of any type without
// special handling.
func (e *Engine) upsertGeneric(ctx context.Context, rec, target *ir.Record) (Outcome, error) {
	if target != nil {
		// the exchange rate of the base currency cannot be modified
		if strings.EqualFold(rec.Type, "transactioncurrency") {
			rec.Attrs.Delete("exchangerate")
		}
		if sameAsTarget(rec, target) {
			return OutcomeUnchanged, nil
		}
		return OutcomeUpdated, at("Updating", e.target.Update(ctx, rec))
	}

	if state, ok := rec.OptionCode("statecode"); ok && state == service.StateInactive {
		// inactive records cannot be created directly: create, then update
		if _, err := e.target.Create(ctx, ir.NewRecord(rec.Type, rec.ID)); err != nil {
			return OutcomeFailed, at("Inserting Inactive", err)
		}
		return OutcomeCreated, at("Inserting Inactive", e.target.Update(ctx, rec))
	}

	_, err := e.target.Create(ctx, rec)
	return OutcomeCreated, at("Inserting", err)
}

// sameAsTarget compares every source attribute with the target. An
// attribute the target lacks counts as null.
func sameAsTarget(rec, target *ir.Record) bool {
	for _, k := range rec.Attrs.Keys() {
		v, _ := rec.Attrs.Get(k)
		if !ir.Equal(v, target.Get(k)) {
			return false
		}
	}
	return true
}

// stateSnapshot holds a record's statecode and statuscode before the engine
// forces a writable state onto it.
type stateSnapshot struct {
	state, status       ir.Value
	hasState, hasStatus bool
}

func captureState(rec *ir.Record) stateSnapshot {
	var s stateSnapshot
	if rec.Has("statecode") {
		s.state, s.hasState = rec.Get("statecode"), true
	}
	if rec.Has("statuscode") {
		s.status, s.hasStatus = rec.Get("statuscode"), true
	}
	return s
}

func optionCode(v ir.Value) (int, bool) {
	switch o := v.(type) {
	case ir.Option:
		return o.Code, true
	case ir.Int:
		return int(o), true
	}
	return 0, false
}

// stateCode returns the captured statecode.
func (s stateSnapshot) stateCode() (int, bool) {
	if !s.hasState {
		return 0, false
	}
	return optionCode(s.state)
}

// statusCode returns the captured statuscode.
func (s stateSnapshot) statusCode() (int, bool) {
	if !s.hasStatus {
		return 0, false
	}
	return optionCode(s.status)
}

// restore copies the captured state back onto rec, so verification compares
// against the intended final state.
func (s stateSnapshot) restore(rec *ir.Record) {
	if s.hasState {
		rec.Set("statecode", s.state)
	}
	if s.hasStatus {
		rec.Set("statuscode", s.status)
	}
}

// setState forces statecode and statuscode onto rec.
func setState(rec *ir.Record, state, status int) {
	rec.Set("statecode", ir.Option{Code: state})
	rec.Set("statuscode", ir.Option{Code: status})
}

// stateRecord is a bare record carrying only a state change.
func stateRecord(typ string, rec *ir.Record, state, status int) *ir.Record {
	out := ir.NewRecord(typ, rec.ID)
	setState(out, state, status)
	return out
}
