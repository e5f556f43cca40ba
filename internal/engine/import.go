package engine

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/roach88/remap/internal/ir"
	"github.com/roach88/remap/internal/logsink"
	"github.com/roach88/remap/internal/verify"
)

// Outcome is the final state of one record after Import.
type Outcome int

const (
	OutcomeFailed Outcome = iota
	OutcomeCreated
	OutcomeUpdated
	OutcomeUnchanged
	OutcomeAssociated
)

func (o Outcome) String() string {
	switch o {
	case OutcomeCreated:
		return "created"
	case OutcomeUpdated:
		return "updated"
	case OutcomeUnchanged:
		return "unchanged"
	case OutcomeAssociated:
		return "associated"
	default:
		return "failed"
	}
}

// BatchResult reports what Import did with one batch.
type BatchResult struct {
	Type string

	// Skipped is set when the type is deployed outside this engine
	// (security roles, field security profiles); only mappings were seeded.
	Skipped bool

	// Passes is the number of passes made over the batch.
	Passes int

	// Outcomes holds the final outcome of each record, in batch order.
	Outcomes []Outcome

	// Report is the verification report; empty when verification was off or
	// found no discrepancies.
	Report string

	records []*ir.Record
}

// Count returns how many records ended with outcome o.
func (r *BatchResult) Count(o Outcome) int {
	n := 0
	for _, got := range r.Outcomes {
		if got == o {
			n++
		}
	}
	return n
}

// FailedIDs returns the ids of the records that failed every pass.
func (r *BatchResult) FailedIDs() []uuid.UUID {
	var out []uuid.UUID
	for i, o := range r.Outcomes {
		if o == OutcomeFailed {
			out = append(out, r.records[i].ID)
		}
	}
	return out
}

// typesNeedingSettle are published or activated asynchronously; verification
// waits for them first.
var typesNeedingSettle = map[string]bool{
	"duplicaterule": true,
	"workflow":      true,
	"sla":           true,
}

// Import writes batch into the target.
//
// Configuration errors (missing metadata, ambiguous seeding, intersect type
// without a relationship) abort and are returned. Per-record failures are
// logged with the ERROR! marker and reported through the result. When
// verifyImport is set, non-intersect batches are verified afterwards and the
// report is logged and returned; excluded names fields the comparison skips.
func (e *Engine) Import(ctx context.Context, batch ir.Batch, excluded []string, verifyImport bool) (*BatchResult, error) {
	if !e.prepared {
		return nil, ErrNotPrepared
	}

	res := &BatchResult{Type: batch.Type, records: batch.Records}
	if len(batch.Records) == 0 {
		return res, nil
	}

	proceed, err := e.seeder.Seed(ctx, batch)
	if err != nil {
		return nil, err
	}
	if !proceed {
		logsink.Infof(ctx, e.sink, "Skipping import of %s: mappings only", batch.Type)
		res.Skipped = true
		return res, nil
	}

	desc, err := e.catalog.Get(batch.Type)
	if err != nil {
		return nil, err
	}

	relationship := ""
	if desc.IsIntersect {
		if len(desc.ManyToMany) == 0 {
			return nil, &ir.ConfigError{
				Code:    ir.ErrCodeMissingRelationship,
				Message: "intersect type has no many-to-many relationship",
				Type:    batch.Type,
			}
		}
		relationship = desc.ManyToMany[0]
	}

	res.Outcomes = make([]Outcome, len(batch.Records))
	pending := make([]int, len(batch.Records))
	for i := range pending {
		pending[i] = i
	}

	for pass := 0; pass < e.maxPasses && len(pending) > 0; pass++ {
		res.Passes = pass + 1
		slog.Debug("import pass", "type", batch.Type, "pass", res.Passes, "records", len(pending))

		var failed []int
		for _, i := range pending {
			if err := ctx.Err(); err != nil {
				return res, err
			}
			rec := batch.Records[i]

			o, err := e.importRecord(ctx, desc, relationship, rec, pass == 0)
			if err != nil {
				slog.Debug("record failed", "type", rec.Type, "id", rec.ID, "pass", res.Passes, "error", err)
				logsink.Errorf(ctx, e.sink, "%s", err)
				failed = append(failed, i)
				continue
			}
			res.Outcomes[i] = o
		}
		pending = failed
	}

	if len(pending) > 0 {
		logsink.Infof(ctx, e.sink, "%d %s record(s) not imported after %d passes", len(pending), batch.Type, res.Passes)
	}
	slog.Info("batch imported",
		"type", batch.Type,
		"created", res.Count(OutcomeCreated),
		"updated", res.Count(OutcomeUpdated),
		"unchanged", res.Count(OutcomeUnchanged),
		"associated", res.Count(OutcomeAssociated),
		"failed", res.Count(OutcomeFailed),
		"passes", res.Passes)

	if verifyImport && !desc.IsIntersect {
		if err := e.verifyBatch(ctx, batch, excluded, res); err != nil {
			return res, err
		}
	}
	return res, nil
}

func (e *Engine) verifyBatch(ctx context.Context, batch ir.Batch, excluded []string, res *BatchResult) error {
	if typesNeedingSettle[strings.ToLower(batch.Type)] {
		if err := e.waiter.Settle(ctx, e.timings.VerifySettle); err != nil {
			return err
		}
	}

	report, err := verify.New(e.target, excluded).Verify(ctx, batch)
	if err != nil {
		return fmt.Errorf("verify %s: %w", batch.Type, err)
	}
	if report != "" {
		logsink.Infof(ctx, e.sink, "%s", report)
	}
	res.Report = report
	e.verified = append(e.verified, batch)
	return nil
}

// importRecord transforms rec on the first pass and routes it to the write
// logic for its type.
func (e *Engine) importRecord(ctx context.Context, desc ir.Descriptor, relationship string, rec *ir.Record, transform bool) (Outcome, error) {
	if transform {
		if err := e.resolver.ResolveRecord(rec); err != nil {
			return OutcomeFailed, &RecordError{Step: "Transforming", Record: rec, Err: err}
		}
	}
	if desc.IsIntersect {
		return e.upsertIntersect(ctx, rec, relationship)
	}
	return e.upsert(ctx, desc, rec)
}

// VerifyExtraTargetRecords reports target records of every verified type
// that have no counterpart in the imported batches.
func (e *Engine) VerifyExtraTargetRecords(ctx context.Context, excluded []string) (string, error) {
	return verify.New(e.target, excluded).VerifyExtraTargetRecords(ctx, e.verified)
}
