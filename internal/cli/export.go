package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/remap/internal/config"
	"github.com/roach88/remap/internal/snapshot"
)

// ExportOptions holds flags for the export command.
type ExportOptions struct {
	*RootOptions
	Env   EnvOptions
	Types []string
}

// ExportResult is the export command's output.
type ExportResult struct {
	Snapshot string         `json:"snapshot"`
	Counts   []ExportedType `json:"types"`
}

// ExportedType is the record count of one exported type.
type ExportedType struct {
	Type    string `json:"type"`
	Records int    `json:"records"`
}

// NewExportCommand creates the export command.
func NewExportCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ExportOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Capture records from the source environment into a snapshot",
		Long: `Capture every record of the given types from the source environment and
write them into the snapshot directory, one file per type, in the order given.

Only readable and creatable fields are captured when the source describes its
fields; excluded fields are never captured.

Examples:
  remap export --run migrate.yaml
  remap export --source "dsn=source.db" --snapshot ./snap --types businessunit,account`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExport(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Env.RunFile, "run", "", "run file (YAML)")
	cmd.Flags().StringVar(&opts.Env.Source, "source", "", "source connection string (overrides run file)")
	cmd.Flags().StringVar(&opts.Env.Snapshot, "snapshot", "", "snapshot directory to write (overrides run file)")
	cmd.Flags().StringSliceVar(&opts.Types, "types", nil, "types to export, in import order (overrides run file)")

	return cmd
}

func runExport(opts *ExportOptions, cmd *cobra.Command) error {
	f := formatterFor(opts.RootOptions, cmd)

	run, err := exportRun(opts)
	if err != nil {
		return fail(f, ErrCodeConfig, "invalid run configuration", err)
	}

	ctx, cancel := commandContext(cmd)
	defer cancel()

	source, err := openEnvironment(ctx, run.Source)
	if err != nil {
		return fail(f, ErrCodeConnect, "cannot open source", err)
	}
	defer closeStore(source)

	batches, err := snapshot.Export(ctx, source, source, run.Types, run.Excluded, run.Snapshot)
	if err != nil {
		return fail(f, ErrCodeSnapshot, "export failed", err)
	}

	result := ExportResult{Snapshot: run.Snapshot}
	for _, b := range batches {
		result.Counts = append(result.Counts, ExportedType{Type: b.Type, Records: len(b.Records)})
	}
	return f.Result(result, nil, func(w io.Writer) {
		for i, c := range result.Counts {
			fmt.Fprintf(w, "%s %5d records\n", snapshot.FileName(i, c.Type), c.Records)
		}
		fmt.Fprintf(w, "✓ Snapshot written to %s\n", result.Snapshot)
	})
}

// exportRun builds the run configuration export needs: a source, a
// snapshot directory and the types. The target and operator are not used.
func exportRun(opts *ExportOptions) (*config.Run, error) {
	run := &config.Run{}
	if opts.Env.RunFile != "" {
		var err error
		if run, err = config.LoadRun(opts.Env.RunFile); err != nil {
			return nil, WrapExitError(ExitCommandError, "failed to load run file", err)
		}
	}
	if opts.Env.Source != "" {
		run.Source = opts.Env.Source
	}
	if opts.Env.Snapshot != "" {
		run.Snapshot = opts.Env.Snapshot
	}
	if len(opts.Types) > 0 {
		run.Types = opts.Types
	}
	run.ApplyDefaults()

	switch {
	case run.Source == "":
		return nil, NewExitError(ExitCommandError, "source is required")
	case run.Snapshot == "":
		return nil, NewExitError(ExitCommandError, "snapshot is required")
	case len(run.Types) == 0:
		return nil, NewExitError(ExitCommandError, "types are required")
	}
	return run, nil
}
