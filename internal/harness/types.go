package harness

import (
	"strings"
	"time"

	"github.com/roach88/remap/internal/engine"
)

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass indicates overall scenario success.
	Pass bool

	// Summary is the run outcome. It holds the batches completed before a
	// configuration error.
	Summary *engine.RunSummary

	// Err is the error the run stopped with, if any.
	Err error

	// Calls are the recorded writes, operations and waits, in order.
	Calls []string

	// Log holds every operator log line; LogErrors the ERROR! lines.
	Log       []string
	LogErrors []string

	// Waited is the total time the run would have slept.
	Waited time.Duration

	// Errors contains assertion failure messages.
	// Empty if Pass is true.
	Errors []string
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{Pass: true, Summary: &engine.RunSummary{}}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// Batch returns the summary of the batch of type typ.
func (r *Result) Batch(typ string) (engine.TypeSummary, bool) {
	for _, t := range r.Summary.Types {
		if strings.EqualFold(t.Type, typ) {
			return t, true
		}
	}
	return engine.TypeSummary{}, false
}
