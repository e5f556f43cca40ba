package engine

import (
	"context"
	"fmt"

	"github.com/roach88/remap/internal/ir"
	"github.com/roach88/remap/internal/logsink"
)

// RunOptions configure Run.
type RunOptions struct {
	// Operator is the domain name of the user the run acts as.
	Operator string

	// Excluded names fields verification never compares.
	Excluded []string

	// Verify turns on per-batch verification and the final check for
	// extra target records.
	Verify bool
}

// TypeSummary is the outcome of one batch.
type TypeSummary struct {
	Type       string `json:"type"`
	Records    int    `json:"records"`
	Created    int    `json:"created"`
	Updated    int    `json:"updated"`
	Unchanged  int    `json:"unchanged"`
	Associated int    `json:"associated"`
	Failed     int    `json:"failed"`
	Passes     int    `json:"passes"`
	Skipped    bool   `json:"skipped,omitempty"`
	Verified   bool   `json:"verified,omitempty"`
	Report     string `json:"report,omitempty"`
}

// RunSummary is the outcome of a whole run.
type RunSummary struct {
	Types []TypeSummary `json:"types"`

	// ExtraRecords reports target records with no source counterpart.
	ExtraRecords string `json:"extra_records,omitempty"`
}

// Failed returns the number of records that could not be imported.
func (s *RunSummary) Failed() int {
	n := 0
	for _, t := range s.Types {
		n += t.Failed
	}
	return n
}

// Clean reports whether every record was imported and verification found
// nothing.
func (s *RunSummary) Clean() bool {
	if s.Failed() > 0 || s.ExtraRecords != "" {
		return false
	}
	for _, t := range s.Types {
		if t.Report != "" {
			return false
		}
	}
	return true
}

func summarize(res *BatchResult, verified bool) TypeSummary {
	return TypeSummary{
		Type:       res.Type,
		Records:    len(res.records),
		Created:    res.Count(OutcomeCreated),
		Updated:    res.Count(OutcomeUpdated),
		Unchanged:  res.Count(OutcomeUnchanged),
		Associated: res.Count(OutcomeAssociated),
		Failed:     res.Count(OutcomeFailed),
		Passes:     res.Passes,
		Skipped:    res.Skipped,
		Verified:   verified && !res.Skipped,
		Report:     res.Report,
	}
}

// Run prepares the engine (if needed) and imports batches in order. Batches
// must present foundation types before the types that reference them.
//
// A configuration error aborts the run and is returned together with the
// summary of the batches completed so far. Cancellation is checked between
// batches.
func (e *Engine) Run(ctx context.Context, batches []ir.Batch, opts RunOptions) (*RunSummary, error) {
	summary := &RunSummary{}

	if !e.prepared {
		if err := e.Prepare(ctx, opts.Operator); err != nil {
			return summary, err
		}
	}

	for _, batch := range batches {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		if len(batch.Records) == 0 {
			continue
		}

		logsink.Infof(ctx, e.sink, "---")
		logsink.Infof(ctx, e.sink, "Importing %s (%d records)", batch.Type, len(batch.Records))

		res, err := e.Import(ctx, batch, opts.Excluded, opts.Verify)
		if res != nil {
			summary.Types = append(summary.Types, summarize(res, opts.Verify))
		}
		if err != nil {
			return summary, fmt.Errorf("import %s: %w", batch.Type, err)
		}
	}

	if opts.Verify {
		report, err := e.VerifyExtraTargetRecords(ctx, opts.Excluded)
		if err != nil {
			return summary, err
		}
		if report != "" {
			logsink.Infof(ctx, e.sink, "%s", report)
		}
		summary.ExtraRecords = report
	}
	return summary, nil
}
