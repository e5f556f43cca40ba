package cli

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/roach88/remap/internal/engine"
	"github.com/roach88/remap/internal/logsink"
	"github.com/roach88/remap/internal/snapshot"
	"github.com/roach88/remap/internal/transform"
)

// ImportOptions holds flags for the import command.
type ImportOptions struct {
	*RootOptions
	Env       EnvOptions
	NoVerify  bool
	MaxPasses int
}

// NewImportCommand creates the import command.
func NewImportCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ImportOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import a snapshot into the target environment",
		Long: `Import every batch of a snapshot into the target environment.

Batches are imported in snapshot order. Identities are remapped through the
transform rules and the environment facts loaded from the target; records are
created, updated or left unchanged, and each batch is verified afterwards
unless --no-verify is given.

Exit codes:
  0 - Every record imported and verification found nothing
  1 - Records failed or verification found differences
  2 - Command or configuration error

Examples:
  remap import --run migrate.yaml
  remap import --run migrate.yaml --target "dsn=/tmp/target.db" --no-verify
  remap import --target "dsn=target.db" --snapshot ./snap --operator 'FABRIKAM\deployer' --transforms rules.yaml
  remap import --run migrate.yaml --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runImport(opts, cmd)
		},
	}

	opts.Env.addFlags(cmd)
	cmd.Flags().StringSliceVar(&opts.Env.Transforms, "transforms", nil, "transform rule files, in load order (overrides run file)")
	cmd.Flags().BoolVar(&opts.NoVerify, "no-verify", false, "skip verification")
	cmd.Flags().IntVar(&opts.MaxPasses, "max-passes", 0, "passes over each batch (overrides run file)")

	return cmd
}

func runImport(opts *ImportOptions, cmd *cobra.Command) error {
	f := formatterFor(opts.RootOptions, cmd)

	run, err := opts.Env.loadRun()
	if err != nil {
		return fail(f, ErrCodeConfig, "invalid run configuration", err)
	}
	if opts.NoVerify {
		run.Verify = false
	}
	if opts.MaxPasses > 0 {
		run.MaxPasses = opts.MaxPasses
	}

	if err := requireSnapshotDir(run.Snapshot); err != nil {
		return fail(f, ErrCodeSnapshot, "cannot read snapshot", err)
	}
	batches, err := snapshot.Read(run.Snapshot)
	if err != nil {
		return fail(f, ErrCodeSnapshot, "cannot read snapshot", WrapExitError(ExitCommandError, "read snapshot", err))
	}
	rules, err := transform.LoadFiles(run.Transforms...)
	if err != nil {
		return fail(f, ErrCodeRules, "invalid transform rules", WrapExitError(ExitCommandError, "load rules", err))
	}
	f.VerboseLog("Loaded %d batch(es) and %d rule(s)", len(batches), rules.Len())

	ctx, cancel := commandContext(cmd)
	defer cancel()

	target, err := openEnvironment(ctx, run.Target)
	if err != nil {
		return fail(f, ErrCodeConnect, "cannot open target", err)
	}
	defer closeStore(target)

	engOpts := append(run.EngineOptions(), engine.WithSink(logsink.NewSlog(slog.Default())))
	eng := engine.New(target, target, rules, engOpts...)

	summary, runErr := eng.Run(ctx, batches, engine.RunOptions{
		Operator: run.Operator,
		Excluded: run.Excluded,
		Verify:   run.Verify,
	})
	if runErr != nil {
		if summary != nil && len(summary.Types) > 0 {
			_ = f.Result(summary, &CLIError{Code: ErrCodeImport, Message: runErr.Error()}, func(w io.Writer) {
				renderSummary(w, summary)
			})
		} else if outErr := f.Error(ErrCodeImport, "import stopped", runErr.Error()); outErr != nil {
			return outErr
		}
		return WrapExitError(exitCodeFor(runErr), "import stopped", runErr)
	}

	var failure *CLIError
	if !summary.Clean() {
		failure = &CLIError{
			Code:    ErrCodeFailed,
			Message: fmt.Sprintf("%d record(s) failed or verification found differences", summary.Failed()),
		}
	}
	if err := f.Result(summary, failure, func(w io.Writer) { renderSummary(w, summary) }); err != nil {
		return err
	}
	if failure != nil {
		return NewExitError(ExitFailure, failure.Message)
	}
	return nil
}

// renderSummary writes one line per imported batch and the verification
// reports.
func renderSummary(w io.Writer, s *engine.RunSummary) {
	for _, t := range s.Types {
		if t.Skipped {
			fmt.Fprintf(w, "%-32s skipped (mappings only)\n", t.Type)
			continue
		}
		fmt.Fprintf(w, "%-32s %5d records: %d created, %d updated, %d unchanged, %d associated, %d failed (%d pass(es))\n",
			t.Type, t.Records, t.Created, t.Updated, t.Unchanged, t.Associated, t.Failed, t.Passes)
	}
	for _, t := range s.Types {
		if t.Report != "" {
			fmt.Fprint(w, t.Report)
		}
	}
	if s.ExtraRecords != "" {
		fmt.Fprint(w, s.ExtraRecords)
	}
	if s.Clean() {
		fmt.Fprintln(w, "✓ Import complete")
	}
}
