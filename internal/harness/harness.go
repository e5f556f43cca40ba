package harness

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/roach88/remap/internal/config"
	"github.com/roach88/remap/internal/engine"
	"github.com/roach88/remap/internal/ir"
	"github.com/roach88/remap/internal/logsink"
	"github.com/roach88/remap/internal/snapshot"
	"github.com/roach88/remap/internal/store"
	"github.com/roach88/remap/internal/testutil"
	"github.com/roach88/remap/internal/transform"
)

// tracedMethods are the recorded calls kept in Result.Calls. Reads are left
// out; they depend on lookup strategy, not on what was written.
var tracedMethods = []string{"Create", "Update", "Execute", "Associate", "Sleep"}

// Run executes a scenario and returns the result.
//
// Each scenario runs against a fresh in-memory target for isolation.
//
// Execution flow:
// 1. Create the target store and load metadata and the target snapshot
// 2. Load transform rules and the source snapshot
// 3. Run the import with recorded calls and waits
// 4. Check the expected error and evaluate assertions
//
// The returned error reports a scenario that could not be set up; a run
// that fails is reported through the result.
func Run(scenario *Scenario) (*Result, error) {
	ctx := context.Background()

	var opts []store.Option
	if scenario.Integrity {
		opts = append(opts, store.WithReferentialIntegrity())
	}
	st, err := store.Open(":memory:", opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	if err := seedTarget(ctx, st, scenario); err != nil {
		return nil, err
	}

	batches, err := snapshot.Read(scenario.Snapshot)
	if err != nil {
		return nil, fmt.Errorf("failed to read source snapshot: %w", err)
	}
	rules, err := transform.LoadFiles(scenario.Transforms...)
	if err != nil {
		return nil, fmt.Errorf("failed to load transforms: %w", err)
	}

	excluded := scenario.Excluded
	if len(excluded) == 0 {
		excluded = config.DefaultExcludedFields
	}

	svc := testutil.NewRecordingService(st)
	sink := logsink.NewRecorder()
	eng := engine.New(svc, st, rules,
		engine.WithSleeper(svc),
		engine.WithSink(sink),
		engine.WithMaxPasses(scenario.MaxPasses),
	)

	summary, runErr := eng.Run(ctx, batches, engine.RunOptions{
		Operator: scenario.Operator,
		Excluded: excluded,
		Verify:   scenario.Verify,
	})

	result := NewResult()
	if summary != nil {
		result.Summary = summary
	}
	result.Err = runErr
	result.Calls = svc.Methods(tracedMethods...)
	result.Log = sink.Lines()
	result.LogErrors = sink.Errors()
	for _, c := range svc.Calls() {
		if c.Method != "Sleep" {
			continue
		}
		if d, err := time.ParseDuration(c.Detail); err == nil {
			result.Waited += d
		}
	}

	checkError(result, scenario.Error, runErr)

	actx := &AssertionContext{Store: st, Ctx: ctx}
	for _, msg := range EvaluateAssertions(result, scenario.Assertions, actx) {
		result.AddError(msg)
	}
	return result, nil
}

// seedTarget loads the metadata file and the target snapshot.
func seedTarget(ctx context.Context, st *store.Store, scenario *Scenario) error {
	descs, err := loadMetadata(scenario.Metadata)
	if err != nil {
		return err
	}
	if err := st.PutMetadata(ctx, descs...); err != nil {
		return fmt.Errorf("failed to load metadata: %w", err)
	}

	if scenario.Target == "" {
		return nil
	}
	seed, err := snapshot.Read(scenario.Target)
	if err != nil {
		return fmt.Errorf("failed to read target snapshot: %w", err)
	}
	for _, b := range seed {
		if err := st.Load(ctx, b.Records...); err != nil {
			return fmt.Errorf("failed to seed target: %w", err)
		}
	}
	return nil
}

// loadMetadata reads a JSON array of type descriptors.
func loadMetadata(path string) ([]ir.Descriptor, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read metadata: %w", err)
	}
	var descs []ir.Descriptor
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&descs); err != nil {
		return nil, fmt.Errorf("failed to parse metadata: %w", err)
	}
	return descs, nil
}

// checkError compares the run error with the expected one. want is matched
// against a configuration error's code first, then the error text.
func checkError(result *Result, want string, got error) {
	switch {
	case want == "" && got == nil:
	case want == "":
		result.AddError(fmt.Sprintf("run failed: %v", got))
	case got == nil:
		result.AddError(fmt.Sprintf("expected error %s, run succeeded", want))
	default:
		var ce *ir.ConfigError
		if errors.As(got, &ce) && string(ce.Code) == want {
			return
		}
		if !strings.Contains(got.Error(), want) {
			result.AddError(fmt.Sprintf("expected error %s, got: %v", want, got))
		}
	}
}
