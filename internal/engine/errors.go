package engine

import (
	"errors"
	"fmt"

	"github.com/roach88/remap/internal/ir"
)

// ErrNotPrepared is returned by Import and Run before Prepare has succeeded.
var ErrNotPrepared = errors.New("engine not prepared: call Prepare first")

// errMissingReferences marks an intersect record without exactly two
// foreign keys.
var errMissingReferences = errors.New("couldn't find references")

// RecordError is a per-record failure. It never aborts a batch: the record is
// logged, counted and retried on the next pass.
type RecordError struct {
	// Step names what was being done when the record failed.
	Step string

	// Record is the record being imported, after transformation.
	Record *ir.Record

	// Err is the underlying failure.
	Err error
}

// Error renders the failure the way the operator log shows it.
func (e *RecordError) Error() string {
	return fmt.Sprintf("%s: %s, message: %v", e.Step, ir.Describe(e.Record), e.Err)
}

func (e *RecordError) Unwrap() error {
	return e.Err
}

// IsRecordError reports whether err is a per-record failure.
// Uses errors.As to handle wrapped errors.
func IsRecordError(err error) bool {
	var re *RecordError
	return errors.As(err, &re)
}

// stepError tags an error with the choreography step that produced it.
type stepError struct {
	step string
	err  error
}

func (e *stepError) Error() string { return e.step + ": " + e.err.Error() }

func (e *stepError) Unwrap() error { return e.err }

// at tags err with step. A nil err stays nil.
func at(step string, err error) error {
	if err == nil {
		return nil
	}
	return &stepError{step: step, err: err}
}

// recordError turns a routing failure into a RecordError, lifting the step
// out of a stepError when there is one.
func recordError(rec *ir.Record, fallback string, err error) *RecordError {
	re := &RecordError{Step: fallback, Record: rec, Err: err}
	var se *stepError
	if errors.As(err, &se) {
		re.Step, re.Err = se.step, se.err
	}
	return re
}
