package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/remap/internal/ir"
	"github.com/roach88/remap/internal/snapshot"
	"github.com/roach88/remap/internal/verify"
)

// VerifyOptions holds flags for the verify command.
type VerifyOptions struct {
	*RootOptions
	Env      EnvOptions
	NoExtras bool
}

// VerifyResult is the verify command's output.
type VerifyResult struct {
	Reports      map[string]string `json:"reports,omitempty"`
	ExtraRecords string            `json:"extra_records,omitempty"`
	Checked      []string          `json:"checked"`

	order []string
}

// NewVerifyCommand creates the verify command.
func NewVerifyCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &VerifyOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Compare a snapshot with the target environment",
		Long: `Compare every record of a snapshot with its counterpart in the target
environment without writing anything, then list target records that the
snapshot does not contain.

Snapshots are compared as captured, so run verify against a snapshot whose
identities need no remapping (for instance one exported after an import).

Exit codes:
  0 - No differences
  1 - Differences found
  2 - Command or configuration error`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runVerify(opts, cmd)
		},
	}

	opts.Env.addFlags(cmd)
	cmd.Flags().BoolVar(&opts.NoExtras, "no-extras", false, "skip the check for extra target records")

	return cmd
}

func runVerify(opts *VerifyOptions, cmd *cobra.Command) error {
	f := formatterFor(opts.RootOptions, cmd)

	run, err := opts.Env.loadRun()
	if err != nil {
		return fail(f, ErrCodeConfig, "invalid run configuration", err)
	}
	if err := requireSnapshotDir(run.Snapshot); err != nil {
		return fail(f, ErrCodeSnapshot, "cannot read snapshot", err)
	}
	batches, err := snapshot.Read(run.Snapshot)
	if err != nil {
		return fail(f, ErrCodeSnapshot, "cannot read snapshot", WrapExitError(ExitCommandError, "read snapshot", err))
	}

	ctx, cancel := commandContext(cmd)
	defer cancel()

	target, err := openEnvironment(ctx, run.Target)
	if err != nil {
		return fail(f, ErrCodeConnect, "cannot open target", err)
	}
	defer closeStore(target)

	v := verify.New(target, run.Excluded)
	result := &VerifyResult{Reports: map[string]string{}, Checked: []string{}}
	var checked []ir.Batch
	for _, b := range batches {
		if len(b.Records) == 0 {
			continue
		}
		desc, err := target.GetType(ctx, b.Type)
		if err != nil {
			return fail(f, ErrCodeVerify, "verification failed", err)
		}
		if desc.IsIntersect {
			continue
		}
		f.VerboseLog("Verifying %s (%d records)", b.Type, len(b.Records))
		report, err := v.Verify(ctx, b)
		if err != nil {
			return fail(f, ErrCodeVerify, "verification failed", err)
		}
		result.Checked = append(result.Checked, b.Type)
		if report != "" {
			result.Reports[b.Type] = report
			result.order = append(result.order, b.Type)
		}
		checked = append(checked, b)
	}

	if !opts.NoExtras {
		if result.ExtraRecords, err = v.VerifyExtraTargetRecords(ctx, checked); err != nil {
			return fail(f, ErrCodeVerify, "verification failed", err)
		}
	}

	var failure *CLIError
	if len(result.Reports) > 0 || result.ExtraRecords != "" {
		failure = &CLIError{
			Code:    ErrCodeVerify,
			Message: "verification found differences",
		}
	}
	err = f.Result(result, failure, func(w io.Writer) {
		for _, typ := range result.order {
			fmt.Fprint(w, result.Reports[typ])
		}
		fmt.Fprint(w, result.ExtraRecords)
		if failure == nil {
			fmt.Fprintf(w, "✓ %d type(s) verified, no differences\n", len(result.Checked))
		}
	})
	if err != nil {
		return err
	}
	if failure != nil {
		return NewExitError(ExitFailure, failure.Message)
	}
	return nil
}
