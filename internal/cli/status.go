package cli

import (
	"fmt"
	"io"
	"log/slog"
	"strconv"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/roach88/remap/internal/engine"
	"github.com/roach88/remap/internal/logsink"
)

// StatusOptions holds flags for the set-status command.
type StatusOptions struct {
	*RootOptions
	Env     EnvOptions
	Enable  bool
	Disable bool
}

// NewSetStatusCommand creates the set-status command.
func NewSetStatusCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &StatusOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "set-status <type> [id]...",
		Short: "Enable or disable target records",
		Long: `Enable (state 0, status 1) or disable (state 1, status 2) records of one
type in the target environment. Without ids every record of the type is
changed. Records already in the requested state are left alone.

Examples:
  remap set-status workflow --disable --target "dsn=target.db"
  remap set-status sla 5a000000-0000-0000-0000-000000000001 --enable --run migrate.yaml`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSetStatus(opts, args[0], args[1:], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Env.RunFile, "run", "", "run file (YAML)")
	cmd.Flags().StringVar(&opts.Env.Target, "target", "", "target connection string (overrides run file)")
	cmd.Flags().BoolVar(&opts.Enable, "enable", false, "enable the records")
	cmd.Flags().BoolVar(&opts.Disable, "disable", false, "disable the records")
	cmd.MarkFlagsMutuallyExclusive("enable", "disable")
	cmd.MarkFlagsOneRequired("enable", "disable")

	return cmd
}

func runSetStatus(opts *StatusOptions, typ string, idArgs []string, cmd *cobra.Command) error {
	f := formatterFor(opts.RootOptions, cmd)

	ids := make([]uuid.UUID, 0, len(idArgs))
	for _, a := range idArgs {
		id, err := uuid.Parse(a)
		if err != nil {
			return fail(f, ErrCodeConfig, fmt.Sprintf("invalid id %q", a), WrapExitError(ExitCommandError, "parse id", err))
		}
		ids = append(ids, id)
	}

	conn, err := opts.Env.targetConnection()
	if err != nil {
		return fail(f, ErrCodeConfig, "invalid run configuration", err)
	}

	ctx, cancel := commandContext(cmd)
	defer cancel()

	target, err := openEnvironment(ctx, conn)
	if err != nil {
		return fail(f, ErrCodeConnect, "cannot open target", err)
	}
	defer closeStore(target)

	eng := engine.New(target, target, nil, engine.WithSink(logsink.NewSlog(slog.Default())))
	res, err := eng.SetStatus(ctx, typ, ids, opts.Enable)
	if err != nil {
		return fail(f, ErrCodeFailed, "set status failed", err)
	}

	var failure *CLIError
	if res.Failed > 0 {
		failure = &CLIError{Code: ErrCodeFailed, Message: fmt.Sprintf("%d record(s) could not be changed", res.Failed)}
	}
	err = f.Result(res, failure, func(w io.Writer) {
		fmt.Fprintf(w, "%s: %d changed, %d unchanged, %d failed\n", typ, res.Changed, res.Unchanged, res.Failed)
	})
	if err != nil {
		return err
	}
	if failure != nil {
		return NewExitError(ExitFailure, failure.Message)
	}
	return nil
}

// AutoNumberOptions holds flags for the autonumber command.
type AutoNumberOptions struct {
	*RootOptions
	Env   EnvOptions
	Force bool
}

// AutoNumberResult is the autonumber command's output.
type AutoNumberResult struct {
	Type      string `json:"type"`
	Attribute string `json:"attribute"`
	Value     int64  `json:"value"`
	Set       bool   `json:"set"`
}

// NewAutoNumberCommand creates the autonumber command.
func NewAutoNumberCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &AutoNumberOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "autonumber <type> <attribute> <seed>",
		Short: "Set the seed of an auto-number attribute in the target",
		Long: `Set the next value of an auto-number attribute in the target environment.

The seed is only set while the target has no records of the type, so numbers
already handed out are never reused; --force sets it regardless.`,
		Args:          cobra.ExactArgs(3),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAutoNumber(opts, args[0], args[1], args[2], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Env.RunFile, "run", "", "run file (YAML)")
	cmd.Flags().StringVar(&opts.Env.Target, "target", "", "target connection string (overrides run file)")
	cmd.Flags().BoolVar(&opts.Force, "force", false, "set the seed even when the target has records")

	return cmd
}

func runAutoNumber(opts *AutoNumberOptions, typ, attribute, seed string, cmd *cobra.Command) error {
	f := formatterFor(opts.RootOptions, cmd)

	value, err := strconv.ParseInt(seed, 10, 64)
	if err != nil || value < 0 {
		return fail(f, ErrCodeConfig, fmt.Sprintf("invalid seed %q", seed), NewExitError(ExitCommandError, "seed must be a non-negative integer"))
	}

	conn, err := opts.Env.targetConnection()
	if err != nil {
		return fail(f, ErrCodeConfig, "invalid run configuration", err)
	}

	ctx, cancel := commandContext(cmd)
	defer cancel()

	target, err := openEnvironment(ctx, conn)
	if err != nil {
		return fail(f, ErrCodeConnect, "cannot open target", err)
	}
	defer closeStore(target)

	eng := engine.New(target, target, nil, engine.WithSink(logsink.NewSlog(slog.Default())))
	set, err := eng.SetAutoNumberSeed(ctx, typ, attribute, value, opts.Force)
	if err != nil {
		return fail(f, ErrCodeFailed, "set auto-number seed failed", err)
	}

	result := AutoNumberResult{Type: typ, Attribute: attribute, Value: value, Set: set}
	return f.Result(result, nil, func(w io.Writer) {
		if set {
			fmt.Fprintf(w, "✓ %s.%s seeded at %d\n", typ, attribute, value)
			return
		}
		fmt.Fprintf(w, "%s.%s not seeded: the target already has records (use --force)\n", typ, attribute)
	})
}
