package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/roach88/remap/internal/config"
	"github.com/roach88/remap/internal/ir"
	"github.com/roach88/remap/internal/store"
)

// Error codes reported in CLIError.Code.
const (
	ErrCodeConfig   = "E_CONFIG"
	ErrCodeConnect  = "E_CONNECT"
	ErrCodeSnapshot = "E_SNAPSHOT"
	ErrCodeRules    = "E_RULES"
	ErrCodeImport   = "E_IMPORT"
	ErrCodeVerify   = "E_VERIFY"
	ErrCodeFailed   = "E_FAILED"
)

// EnvOptions are the flags that locate the environments of a run. Flags
// override the run file.
type EnvOptions struct {
	RunFile    string
	Target     string
	Source     string
	Snapshot   string
	Operator   string
	Transforms []string
}

func (o *EnvOptions) addFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&o.RunFile, "run", "", "run file (YAML)")
	cmd.Flags().StringVar(&o.Target, "target", "", "target connection string (overrides run file)")
	cmd.Flags().StringVar(&o.Snapshot, "snapshot", "", "snapshot directory (overrides run file)")
	cmd.Flags().StringVar(&o.Operator, "operator", "", "domain name of the user the run acts as (overrides run file)")
}

// loadRun reads the run file, if any, and applies flag overrides.
func (o *EnvOptions) loadRun() (*config.Run, error) {
	run := &config.Run{}
	if o.RunFile != "" {
		var err error
		if run, err = config.LoadRun(o.RunFile); err != nil {
			return nil, WrapExitError(ExitCommandError, "failed to load run file", err)
		}
	}
	if o.Target != "" {
		run.Target = o.Target
	}
	if o.Source != "" {
		run.Source = o.Source
	}
	if o.Snapshot != "" {
		run.Snapshot = o.Snapshot
	}
	if o.Operator != "" {
		run.Operator = o.Operator
	}
	if len(o.Transforms) > 0 {
		run.Transforms = o.Transforms
	}

	run.ApplyDefaults()
	if err := run.Validate(); err != nil {
		return nil, WrapExitError(ExitCommandError, "invalid run configuration", err)
	}
	return run, nil
}

// openEnvironment parses a connection string and opens the store behind it.
func openEnvironment(ctx context.Context, conn string) (*store.Store, error) {
	c, err := config.ParseConnection(conn)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "invalid connection string", err)
	}
	slog.Debug("opening environment", "connection", c.String())
	st, err := c.Open(ctx)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open environment", err)
	}
	return st, nil
}

// commandContext returns a context cancelled on SIGINT or SIGTERM.
// Uses the command's context if available (for testing).
func commandContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, cancel := context.WithCancel(parentCtx)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		defer signal.Stop(sigChan) // Prevent signal handler leak
		select {
		case sig := <-sigChan:
			slog.Info("received signal, stopping", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx, cancel
}

// exitCodeFor classifies an error returned by the engine: configuration
// errors and cancellation are command errors, anything else a failure.
func exitCodeFor(err error) int {
	if ir.IsConfigError(err) || errors.Is(err, context.Canceled) {
		return ExitCommandError
	}
	return ExitFailure
}

func closeStore(st *store.Store) {
	if err := st.Close(); err != nil {
		slog.Error("error closing environment", "error", err)
	}
}

func formatterFor(opts *RootOptions, cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(), // Verbose logs go to stderr to avoid corrupting JSON
		Verbose:   opts.Verbose,
	}
}

// fail reports err through the formatter and returns it as an ExitError.
func fail(f *OutputFormatter, code, message string, err error) error {
	exitCode := ExitFailure
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		exitCode = exitErr.Code
	} else if err != nil {
		exitCode = exitCodeFor(err)
	}
	var details any
	if err != nil {
		details = err.Error()
	}
	if outErr := f.Error(code, message, details); outErr != nil {
		return outErr
	}
	return WrapExitError(exitCode, message, err)
}

func requireSnapshotDir(dir string) error {
	info, err := os.Stat(dir)
	if err != nil {
		return WrapExitError(ExitCommandError, "snapshot directory not found", err)
	}
	if !info.IsDir() {
		return NewExitError(ExitCommandError, fmt.Sprintf("snapshot is not a directory: %s", dir))
	}
	return nil
}

// targetConnection returns the target connection string from --target or
// the run file.
func (o *EnvOptions) targetConnection() (string, error) {
	if o.Target != "" {
		return o.Target, nil
	}
	if o.RunFile == "" {
		return "", NewExitError(ExitCommandError, "--target or --run is required")
	}
	run, err := config.LoadRun(o.RunFile)
	if err != nil {
		return "", WrapExitError(ExitCommandError, "failed to load run file", err)
	}
	return run.Target, nil
}
