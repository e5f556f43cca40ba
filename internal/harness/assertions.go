package harness

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/roach88/remap/internal/engine"
	"github.com/roach88/remap/internal/ir"
	"github.com/roach88/remap/internal/queryir"
	"github.com/roach88/remap/internal/store"
)

// AssertionContext provides what final_state assertions read from.
type AssertionContext struct {
	Store *store.Store
	Ctx   context.Context
}

// AssertionError is returned when an assertion fails.
// It includes the recorded calls to help debug the failure.
type AssertionError struct {
	Type     string   // Assertion type for categorization
	Expected string   // Human-readable expected outcome
	Actual   string   // Human-readable actual outcome
	Calls    []string // Recorded calls for context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Calls) > 0 {
		fmt.Fprintf(&buf, "\nRecorded calls:\n")
		for i, c := range e.Calls {
			fmt.Fprintf(&buf, "  [%d] %s\n", i+1, c)
		}
	}
	return buf.String()
}

// EvaluateAssertions runs every assertion and returns the failure messages.
func EvaluateAssertions(result *Result, assertions []Assertion, actx *AssertionContext) []string {
	var out []string
	for i, a := range assertions {
		var err error
		switch a.Type {
		case AssertCounts:
			err = assertCounts(result, a)
		case AssertClean:
			err = assertClean(result)
		case AssertCallOrder:
			err = assertCallOrder(result.Calls, a)
		case AssertCallCount:
			err = assertCallCount(result.Calls, a)
		case AssertLogContains:
			err = assertLogContains(result.Log, a)
		case AssertFinalState:
			err = assertFinalState(actx, a)
		default:
			err = fmt.Errorf("unknown assertion type %q", a.Type)
		}
		if err != nil {
			out = append(out, fmt.Sprintf("assertions[%d]: %v", i, err))
		}
	}
	return out
}

func summaryFields(t engine.TypeSummary) map[string]any {
	return map[string]any{
		"records":    t.Records,
		"created":    t.Created,
		"updated":    t.Updated,
		"unchanged":  t.Unchanged,
		"associated": t.Associated,
		"failed":     t.Failed,
		"passes":     t.Passes,
		"skipped":    t.Skipped,
		"verified":   t.Verified,
	}
}

// assertCounts compares the named outcome counts of one batch.
func assertCounts(result *Result, a Assertion) error {
	t, ok := result.Batch(a.RecordType)
	if !ok {
		return &AssertionError{
			Type:     AssertCounts,
			Expected: fmt.Sprintf("a %s batch", a.RecordType),
			Actual:   "batch not imported",
		}
	}

	actual := summaryFields(t)
	keys := make([]string, 0, len(a.Expect))
	for k := range a.Expect {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var diffs []string
	for _, k := range keys {
		got, known := actual[k]
		if !known {
			return fmt.Errorf("counts: unknown field %q", k)
		}
		if fmt.Sprint(got) != fmt.Sprint(a.Expect[k]) {
			diffs = append(diffs, fmt.Sprintf("%s=%v (want %v)", k, got, a.Expect[k]))
		}
	}
	if len(diffs) == 0 {
		return nil
	}
	return &AssertionError{
		Type:     AssertCounts,
		Expected: fmt.Sprintf("%s %v", a.RecordType, a.Expect),
		Actual:   strings.Join(diffs, ", "),
		Calls:    result.Calls,
	}
}

// assertClean checks the run imported everything and verification found
// nothing.
func assertClean(result *Result) error {
	if result.Summary.Clean() && len(result.LogErrors) == 0 {
		return nil
	}
	return &AssertionError{
		Type:     AssertClean,
		Expected: "no failures, no ERROR! lines, empty verification reports",
		Actual:   fmt.Sprintf("%d failed, %d ERROR! line(s)", result.Summary.Failed(), len(result.LogErrors)),
	}
}

// assertCallOrder checks the calls appear in the given order. A recorded
// call matches an expected one when it starts with it; other calls may come
// in between.
func assertCallOrder(calls []string, a Assertion) error {
	next := 0
	for _, c := range calls {
		if next < len(a.Calls) && strings.HasPrefix(c, a.Calls[next]) {
			next++
		}
	}
	if next == len(a.Calls) {
		return nil
	}
	return &AssertionError{
		Type:     AssertCallOrder,
		Expected: fmt.Sprintf("calls in order: %v", a.Calls),
		Actual:   fmt.Sprintf("missing or out of order: %s", a.Calls[next]),
		Calls:    calls,
	}
}

// assertCallCount checks how many calls start with a.Call.
func assertCallCount(calls []string, a Assertion) error {
	n := 0
	for _, c := range calls {
		if strings.HasPrefix(c, a.Call) {
			n++
		}
	}
	if n == a.Count {
		return nil
	}
	return &AssertionError{
		Type:     AssertCallCount,
		Expected: fmt.Sprintf("%q %d time(s)", a.Call, a.Count),
		Actual:   fmt.Sprintf("%d time(s)", n),
		Calls:    calls,
	}
}

func assertLogContains(log []string, a Assertion) error {
	for _, line := range log {
		if strings.Contains(line, a.Text) {
			return nil
		}
	}
	return &AssertionError{
		Type:     AssertLogContains,
		Expected: fmt.Sprintf("a log line containing %q", a.Text),
		Actual:   fmt.Sprintf("%d line(s), none matching", len(log)),
	}
}

// assertFinalState reads one target record and compares the expected
// attribute values with their text form. A nil expectation means the
// attribute must be absent or null.
func assertFinalState(actx *AssertionContext, a Assertion) error {
	if actx == nil || actx.Store == nil {
		return fmt.Errorf("final_state: no store")
	}
	id, err := uuid.Parse(a.ID)
	if err != nil {
		return fmt.Errorf("final_state: bad id %q: %w", a.ID, err)
	}
	rec, err := actx.Store.Retrieve(actx.Ctx, a.RecordType, id, queryir.AllColumns())
	if err != nil {
		return &AssertionError{
			Type:     AssertFinalState,
			Expected: fmt.Sprintf("%s %s in target", a.RecordType, id),
			Actual:   err.Error(),
		}
	}

	keys := make([]string, 0, len(a.Expect))
	for k := range a.Expect {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var diffs []string
	for _, k := range keys {
		want := a.Expect[k]
		v := rec.Get(k)
		if want == nil {
			if !ir.IsNull(v) {
				diffs = append(diffs, fmt.Sprintf("%s=%s (want null)", k, ir.Text(v)))
			}
			continue
		}
		if ir.IsNull(v) || ir.Text(v) != fmt.Sprint(want) {
			diffs = append(diffs, fmt.Sprintf("%s=%s (want %v)", k, ir.Text(v), want))
		}
	}
	if len(diffs) == 0 {
		return nil
	}
	return &AssertionError{
		Type:     AssertFinalState,
		Expected: fmt.Sprintf("%s %s %v", a.RecordType, id, a.Expect),
		Actual:   strings.Join(diffs, ", "),
	}
}
