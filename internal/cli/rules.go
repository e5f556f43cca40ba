package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/remap/internal/transform"
)

// RuleIssue is one problem found in a rule file.
type RuleIssue struct {
	File    string `json:"file"`
	Line    int    `json:"line,omitempty"`
	Column  int    `json:"column,omitempty"`
	Message string `json:"message"`
}

// RulesValidationResult holds validation results.
type RulesValidationResult struct {
	Valid    bool        `json:"valid"`
	Rules    int         `json:"rules"`
	Queries  int         `json:"queries"`
	Errors   []RuleIssue `json:"errors,omitempty"`
	Warnings []RuleIssue `json:"warnings,omitempty"`
}

// NewRulesCommand creates the rules command group.
func NewRulesCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rules",
		Short: "Work with transform rule files",
	}
	cmd.AddCommand(newRulesValidateCommand(rootOpts))
	return cmd
}

func newRulesValidateCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "validate <file>...",
		Short: "Validate transform rule files",
		Long: `Validate transform rule files (.yaml, .yml, .json or .cue) without touching
any environment.

Every file is parsed and checked: CUE files against the rule schema, all
files for required fields. Exact rules that repeat a key with a different
replacement are reported as warnings; the first one loaded wins.`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true, // Don't print usage on errors
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRulesValidate(rootOpts, args, cmd)
		},
	}
}

func runRulesValidate(opts *RootOptions, files []string, cmd *cobra.Command) error {
	formatter := formatterFor(opts, cmd)

	result := RulesValidationResult{Valid: true}
	type seenRule struct {
		file string
		rule transform.Rule
	}
	seen := make(map[string]seenRule)

	for _, file := range files {
		if _, err := os.Stat(file); err != nil {
			return outputValidateError(formatter, ErrCodeConfig, fmt.Sprintf("rule file not found: %s", file), nil)
		}

		formatter.VerboseLog("Validating %s", file)
		rules, err := transform.LoadFile(file)
		if err != nil {
			result.Valid = false
			result.Errors = append(result.Errors, issueFrom(file, err))
			continue
		}

		result.Rules += len(rules)
		for _, r := range rules {
			if r.ReplacementQuery != nil {
				result.Queries++
			}
			if r.IsWildcard() {
				continue
			}
			key := strings.ToLower(r.TargetType + "\x00" + r.TargetAttribute + "\x00" + r.MatchValue)
			prev, dup := seen[key]
			if !dup {
				seen[key] = seenRule{file: file, rule: r}
				continue
			}
			if prev.rule.Replacement != r.Replacement || prev.rule.Attr() != r.Attr() {
				result.Warnings = append(result.Warnings, RuleIssue{
					File:    file,
					Message: fmt.Sprintf("%s shadowed by the rule in %s", r, prev.file),
				})
			}
		}
	}

	if !result.Valid {
		return outputValidationErrors(formatter, result)
	}
	return outputValidateSuccess(formatter, result)
}

func issueFrom(file string, err error) RuleIssue {
	var le *transform.LoadError
	if errors.As(err, &le) {
		return RuleIssue{File: le.File, Line: le.Line, Column: le.Column, Message: le.Message}
	}
	return RuleIssue{File: file, Message: err.Error()}
}

// outputValidateSuccess outputs successful validation results.
func outputValidateSuccess(formatter *OutputFormatter, result RulesValidationResult) error {
	if formatter.Format == "json" {
		return formatter.Success(result)
	}

	for _, w := range result.Warnings {
		fmt.Fprintf(formatter.Writer, "warning: %s: %s\n", w.File, w.Message)
	}
	fmt.Fprintf(formatter.Writer, "✓ %d rule(s) valid (%d query replacement(s))\n", result.Rules, result.Queries)
	return nil
}

// outputValidateError outputs a single validation error.
func outputValidateError(formatter *OutputFormatter, code, message string, details interface{}) error {
	_ = formatter.Error(code, message, details)
	// Missing inputs are command-level errors (exit code 2)
	return NewExitError(ExitCommandError, fmt.Sprintf("%s: %s", code, message))
}

// outputValidationErrors outputs every rule file error.
func outputValidationErrors(formatter *OutputFormatter, result RulesValidationResult) error {
	errs := result.Errors
	if formatter.Format == "json" {
		response := CLIResponse{
			Status: "error",
			Data:   result,
			Error: &CLIError{
				Code:    ErrCodeRules,
				Message: errs[0].Message,
			},
		}

		encoder := json.NewEncoder(formatter.Writer)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(response); err != nil {
			return err
		}

		// Validation failures = exit code 1 (test/validation failure)
		return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(errs)))
	}

	// Text format
	fmt.Fprintln(formatter.Writer, "✗ Validation failed")
	fmt.Fprintln(formatter.Writer)

	for _, e := range errs {
		if e.Line > 0 {
			fmt.Fprintf(formatter.Writer, "%s line %d\n", e.File, e.Line)
		} else {
			fmt.Fprintln(formatter.Writer, e.File)
		}
		fmt.Fprintf(formatter.Writer, "  %s\n\n", e.Message)
	}

	// Validation failures = exit code 1 (test/validation failure)
	return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(errs)))
}
