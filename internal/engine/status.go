package engine

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/roach88/remap/internal/ir"
	"github.com/roach88/remap/internal/logsink"
	"github.com/roach88/remap/internal/queryir"
	"github.com/roach88/remap/internal/service"
)

// StatusResult counts what SetStatus did.
type StatusResult struct {
	Changed   int `json:"changed"`
	Unchanged int `json:"unchanged"`
	Failed    int `json:"failed"`
}

// SetStatus enables or disables target records of typ. ids restricts the
// records; an empty list means every record of the type. Records without a
// state and status are ignored. Enabled is (0, 1); disabled is (1, 2).
//
// Failures are logged per record and counted; only a failed query aborts.
func (e *Engine) SetStatus(ctx context.Context, typ string, ids []uuid.UUID, enable bool) (StatusResult, error) {
	var res StatusResult

	q := queryir.Query{Type: typ, Columns: queryir.Columns("statecode", "statuscode")}
	if len(ids) > 0 {
		q.Filter = queryir.In{Field: ir.PrimaryKey(typ), Values: queryir.IDs(ids)}
	}
	recs, err := e.target.Query(ctx, q)
	if err != nil {
		return res, fmt.Errorf("set status: %w", err)
	}

	state, status, label := service.StateInactive, 2, "Disable"
	if enable {
		state, status, label = service.StateActive, 1, "Enable"
	}

	found := 0
	for _, rec := range recs {
		cur, hasState := rec.OptionCode("statecode")
		curStatus, hasStatus := rec.OptionCode("statuscode")
		if !hasState || !hasStatus {
			continue
		}
		found++

		enabled := cur == service.StateActive && curStatus == 1
		if enabled == enable {
			logsink.Infof(ctx, e.sink, "Record '%s %s' already %s", typ, rec.ID, label)
			res.Unchanged++
			continue
		}

		_, err := e.target.Execute(ctx, service.SetState{Type: typ, ID: rec.ID, State: state, Status: status})
		if err != nil {
			logsink.Errorf(ctx, e.sink, "Failed to %s record '%s %s', message: %v", label, typ, rec.ID, err)
			res.Failed++
			continue
		}
		logsink.Infof(ctx, e.sink, "Record '%s %s' set to %s", typ, rec.ID, label)
		res.Changed++
	}

	if found == 0 {
		logsink.Infof(ctx, e.sink, "Warning - no %s records with a status found", typ)
	}
	slog.Debug("set status", "type", typ, "enable", enable,
		"changed", res.Changed, "unchanged", res.Unchanged, "failed", res.Failed)
	return res, nil
}

// SetAutoNumberSeed sets the next value of an auto-number attribute. The seed
// is only moved when the target has no records of typ yet, unless force is
// set. It reports whether the seed was set.
func (e *Engine) SetAutoNumberSeed(ctx context.Context, typ, attribute string, value int64, force bool) (bool, error) {
	if !force {
		recs, err := e.target.Query(ctx, queryir.Query{Type: typ, Columns: queryir.Columns(ir.PrimaryKey(typ))})
		if err != nil {
			return false, fmt.Errorf("count %s: %w", typ, err)
		}
		if len(recs) > 0 {
			logsink.Infof(ctx, e.sink, "Auto-number seed for %s.%s not set: target has %d record(s)", typ, attribute, len(recs))
			return false, nil
		}
	}

	_, err := e.target.Execute(ctx, service.SetAutoNumberSeed{Type: typ, Attribute: attribute, Value: value})
	if err != nil {
		return false, fmt.Errorf("set auto-number seed %s.%s: %w", typ, attribute, err)
	}
	logsink.Infof(ctx, e.sink, "Auto-number seed for %s.%s set to %d", typ, attribute, value)
	return true, nil
}
