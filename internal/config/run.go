package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/roach88/remap/internal/engine"
)

// DefaultExcludedFields are system attributes that differ between
// environments by nature. They are never compared and never exported.
var DefaultExcludedFields = []string{
	"languagecode",
	"createdon",
	"createdby",
	"modifiedon",
	"modifiedby",
	"owningbusinessunit",
	"owninguser",
	"owneridtype",
	"importsequencenumber",
	"overriddencreatedon",
	"timezoneruleversionnumber",
	"operatorparam",
	"utcconversiontimezonecode",
	"versionnumber",
	"customertypecode",
	"matchingentitymatchcodetable",
	"baseentitymatchcodetable",
	"slaidunique",
	"slaitemidunique",
	"ignoreblankvalues",
}

// SplitFields parses a ";"-separated field list. Blank entries are dropped
// and names are lower-cased.
func SplitFields(s string) []string {
	var out []string
	for _, f := range strings.Split(s, ";") {
		if f = strings.ToLower(strings.TrimSpace(f)); f != "" {
			out = append(out, f)
		}
	}
	return out
}

// Run is a run file.
type Run struct {
	// Target is the connection string of the environment written to.
	Target string `yaml:"target"`

	// Source is the connection string of the environment exported from.
	// Only export uses it.
	Source string `yaml:"source,omitempty"`

	// Operator is the domain name of the user the run acts as.
	Operator string `yaml:"operator"`

	// Transforms lists transform rule files (.yaml, .json or .cue), loaded
	// in order.
	Transforms []string `yaml:"transforms,omitempty"`

	// Snapshot is the snapshot directory.
	Snapshot string `yaml:"snapshot"`

	// Types lists the types to export, in import order.
	Types []string `yaml:"types,omitempty"`

	// Excluded replaces DefaultExcludedFields when set.
	Excluded []string `yaml:"excluded,omitempty"`

	Verify    bool    `yaml:"verify"`
	MaxPasses int     `yaml:"max_passes,omitempty"`
	Timings   *Timing `yaml:"timings,omitempty"`
}

// Timing overrides the choreography waits.
type Timing struct {
	StateChange  time.Duration `yaml:"state_change,omitempty"`
	VerifySettle time.Duration `yaml:"verify_settle,omitempty"`
	PollAttempts int           `yaml:"poll_attempts,omitempty"`
	PollInterval time.Duration `yaml:"poll_interval,omitempty"`
}

// LoadRun reads a run file. Relative paths are resolved against the file's
// directory and defaults are applied.
func LoadRun(path string) (*Run, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read run file: %w", err)
	}

	var r Run
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true) // Reject unknown fields
	if err := decoder.Decode(&r); err != nil {
		return nil, fmt.Errorf("failed to parse run file: %w", err)
	}

	base := filepath.Dir(path)
	for i, p := range r.Transforms {
		r.Transforms[i] = resolve(base, p)
	}
	if r.Snapshot != "" {
		r.Snapshot = resolve(base, r.Snapshot)
	}

	r.ApplyDefaults()
	if err := r.Validate(); err != nil {
		return nil, fmt.Errorf("invalid run file: %w", err)
	}
	return &r, nil
}

func resolve(base, p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(base, p)
}

// ApplyDefaults fills unset fields.
func (r *Run) ApplyDefaults() {
	if len(r.Excluded) == 0 {
		r.Excluded = append([]string(nil), DefaultExcludedFields...)
	}
	if r.MaxPasses <= 0 {
		r.MaxPasses = engine.DefaultMaxPasses
	}
}

// Validate checks the fields every command needs.
func (r *Run) Validate() error {
	if strings.TrimSpace(r.Target) == "" {
		return fmt.Errorf("target is required")
	}
	if strings.TrimSpace(r.Operator) == "" {
		return fmt.Errorf("operator is required")
	}
	if r.Snapshot == "" {
		return fmt.Errorf("snapshot is required")
	}
	if _, err := ParseConnection(r.Target); err != nil {
		return fmt.Errorf("target: %w", err)
	}
	if r.Source != "" {
		if _, err := ParseConnection(r.Source); err != nil {
			return fmt.Errorf("source: %w", err)
		}
	}
	return nil
}

// EngineTimings merges the run file's timings over the defaults.
func (r *Run) EngineTimings() engine.Timings {
	t := engine.DefaultTimings()
	if r.Timings == nil {
		return t
	}
	if r.Timings.StateChange > 0 {
		t.StateChange = r.Timings.StateChange
	}
	if r.Timings.VerifySettle > 0 {
		t.VerifySettle = r.Timings.VerifySettle
	}
	if r.Timings.PollAttempts > 0 {
		t.WorkflowPoll.MaxAttempts = r.Timings.PollAttempts
	}
	if r.Timings.PollInterval > 0 {
		t.WorkflowPoll.Interval = r.Timings.PollInterval
	}
	return t
}

// EngineOptions returns the engine options the run file configures.
func (r *Run) EngineOptions() []engine.EngineOption {
	return []engine.EngineOption{
		engine.WithMaxPasses(r.MaxPasses),
		engine.WithTimings(r.EngineTimings()),
	}
}
