package harness

import (
	"bytes"
	"fmt"
	"strings"
	"testing"

	"github.com/sebdah/goldie/v2"
)

// Render writes the parts of a result that golden files pin down: the
// outcome of every batch, verification reports, ERROR! lines and the total
// wait. Recorded calls are left out; call assertions cover them.
func Render(name string, r *Result) []byte {
	var b bytes.Buffer
	fmt.Fprintf(&b, "scenario: %s\n", name)
	if r.Err != nil {
		fmt.Fprintf(&b, "error: %v\n", r.Err)
	}

	for _, t := range r.Summary.Types {
		fmt.Fprintf(&b, "%s: records=%d created=%d updated=%d unchanged=%d associated=%d failed=%d passes=%d",
			t.Type, t.Records, t.Created, t.Updated, t.Unchanged, t.Associated, t.Failed, t.Passes)
		if t.Skipped {
			b.WriteString(" skipped")
		}
		if t.Verified {
			b.WriteString(" verified")
		}
		b.WriteByte('\n')
	}

	for _, t := range r.Summary.Types {
		if t.Report != "" {
			fmt.Fprintf(&b, "--- report %s\n", t.Type)
			writeBlock(&b, t.Report)
		}
	}
	if r.Summary.ExtraRecords != "" {
		b.WriteString("--- extra records\n")
		writeBlock(&b, r.Summary.ExtraRecords)
	}
	if len(r.LogErrors) > 0 {
		b.WriteString("--- errors\n")
		for _, line := range r.LogErrors {
			writeBlock(&b, line)
		}
	}

	fmt.Fprintf(&b, "waited: %s\n", r.Waited)
	return b.Bytes()
}

func writeBlock(b *bytes.Buffer, s string) {
	b.WriteString(s)
	if !strings.HasSuffix(s, "\n") {
		b.WriteByte('\n')
	}
}

// RunWithGolden executes a scenario and compares its rendering against
// testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns the result so callers can check Pass and Errors too.
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}
	AssertGolden(t, scenario.Name, result)
	return result, nil
}

// AssertGolden compares an already computed result against a golden file.
func AssertGolden(t *testing.T, name string, result *Result) {
	t.Helper()

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, name, Render(name, result))
}
