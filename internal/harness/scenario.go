package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Scenario defines one migration run and what it must produce.
type Scenario struct {
	// Name uniquely identifies this scenario. It names the golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Metadata is a JSON file holding the target's type descriptors.
	Metadata string `yaml:"metadata"`

	// Transforms lists transform rule files, loaded in order.
	Transforms []string `yaml:"transforms,omitempty"`

	// Target is a snapshot directory loaded into the target before the run.
	Target string `yaml:"target,omitempty"`

	// Snapshot is the source snapshot directory to import.
	Snapshot string `yaml:"snapshot"`

	// Operator is the domain name of the user the run acts as.
	Operator string `yaml:"operator"`

	Verify    bool     `yaml:"verify,omitempty"`
	Integrity bool     `yaml:"integrity,omitempty"`
	MaxPasses int      `yaml:"max_passes,omitempty"`
	Excluded  []string `yaml:"excluded,omitempty"`

	// Error is the configuration error code (or error text) the run must
	// stop with. Empty means the run must succeed.
	Error string `yaml:"error,omitempty"`

	// Assertions validate the outcome and the final target state.
	Assertions []Assertion `yaml:"assertions,omitempty"`
}

// Assertion validates the outcome of a run.
type Assertion struct {
	// Type specifies the assertion type:
	// - "counts": outcome counts of one batch (RecordType, Expect)
	// - "clean": no failures and empty verification reports
	// - "call_order": recorded calls appear in order (Calls)
	// - "call_count": a call appears exactly Count times (Call)
	// - "log_contains": an operator log line contains Text
	// - "final_state": a target record carries the Expect values
	Type string `yaml:"type"`

	RecordType string         `yaml:"record_type,omitempty"`
	ID         string         `yaml:"id,omitempty"`
	Expect     map[string]any `yaml:"expect,omitempty"`
	Calls      []string       `yaml:"calls,omitempty"`
	Call       string         `yaml:"call,omitempty"`
	Count      int            `yaml:"count,omitempty"`
	Text       string         `yaml:"text,omitempty"`
}

// Assertion type constants.
const (
	AssertCounts      = "counts"
	AssertClean       = "clean"
	AssertCallOrder   = "call_order"
	AssertCallCount   = "call_count"
	AssertLogContains = "log_contains"
	AssertFinalState  = "final_state"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
// Relative paths are resolved against the file's directory.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	// Parse YAML with strict field validation (catches typos like "assertion:" vs "assertions:")
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true) // Reject unknown fields
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	base := filepath.Dir(path)
	scenario.Metadata = resolve(base, scenario.Metadata)
	scenario.Target = resolve(base, scenario.Target)
	scenario.Snapshot = resolve(base, scenario.Snapshot)
	for i, p := range scenario.Transforms {
		scenario.Transforms[i] = resolve(base, p)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

func resolve(base, p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(base, p)
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if s.Metadata == "" {
		return fmt.Errorf("metadata is required")
	}
	if s.Snapshot == "" {
		return fmt.Errorf("snapshot is required")
	}
	if s.Operator == "" {
		return fmt.Errorf("operator is required")
	}
	if s.Error == "" && len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required unless an error is expected")
	}

	for _, p := range append([]string{s.Metadata, s.Snapshot}, s.Transforms...) {
		if _, err := os.Stat(p); os.IsNotExist(err) {
			return fmt.Errorf("file not found: %s", p)
		}
	}

	for i := range s.Assertions {
		if err := validateAssertion(i, &s.Assertions[i]); err != nil {
			return err
		}
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	switch a.Type {
	case "":
		return fmt.Errorf("assertions[%d]: type is required", index)
	case AssertCounts:
		if a.RecordType == "" || len(a.Expect) == 0 {
			return fmt.Errorf("assertions[%d]: record_type and expect are required for counts", index)
		}
	case AssertClean:
	case AssertCallOrder:
		if len(a.Calls) == 0 {
			return fmt.Errorf("assertions[%d]: calls list is required for call_order", index)
		}
	case AssertCallCount:
		if a.Call == "" {
			return fmt.Errorf("assertions[%d]: call is required for call_count", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for call_count", index)
		}
	case AssertLogContains:
		if a.Text == "" {
			return fmt.Errorf("assertions[%d]: text is required for log_contains", index)
		}
	case AssertFinalState:
		if a.RecordType == "" || a.ID == "" || len(a.Expect) == 0 {
			return fmt.Errorf("assertions[%d]: record_type, id and expect are required for final_state", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}
