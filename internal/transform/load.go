package transform

import (
	"bytes"
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"
	"gopkg.in/yaml.v3"
)

//go:embed schema.cue
var ruleSchema string

// LoadError reports a rule file that could not be loaded.
type LoadError struct {
	File    string
	Line    int
	Column  int
	Message string
}

func (e *LoadError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("%s:%d:%d: %s", e.File, e.Line, e.Column, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.File, e.Message)
}

type ruleFile struct {
	Rules []Rule `yaml:"rules" json:"rules"`
}

// LoadFile reads rules from a .yaml, .yml, .json or .cue file.
// Unknown fields are rejected.
func LoadFile(path string) ([]Rule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rules: %w", err)
	}

	var rules []Rule
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml", ".json":
		rules, err = parseYAML(path, data)
	case ".cue":
		rules, err = parseCUE(path, data)
	default:
		return nil, &LoadError{File: path, Message: "unsupported rule file extension (want .yaml, .yml, .json or .cue)"}
	}
	if err != nil {
		return nil, err
	}

	for i := range rules {
		if rules[i].MatchValue == "" {
			rules[i].MatchValue = Wildcard
		}
		if err := rules[i].Validate(); err != nil {
			return nil, &LoadError{File: path, Message: fmt.Sprintf("rules[%d]: %v", i, err)}
		}
	}
	return rules, nil
}

// LoadFiles loads every file in order into a new registry.
func LoadFiles(paths ...string) (*Registry, error) {
	reg := NewRegistry()
	for _, p := range paths {
		rules, err := LoadFile(p)
		if err != nil {
			return nil, err
		}
		for _, r := range rules {
			reg.Add(r)
		}
	}
	return reg, nil
}

// parseYAML decodes YAML or JSON. JSON documents are valid YAML.
func parseYAML(path string, data []byte) ([]Rule, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var f ruleFile
	if err := dec.Decode(&f); err != nil {
		return nil, &LoadError{File: path, Message: err.Error()}
	}
	return f.Rules, nil
}

func parseCUE(path string, data []byte) ([]Rule, error) {
	ctx := cuecontext.New()

	schema := ctx.CompileString(ruleSchema, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return nil, fmt.Errorf("rule schema: %w", err)
	}

	v := ctx.CompileBytes(data, cue.Filename(path))
	if err := v.Err(); err != nil {
		return nil, formatCUEError(path, err)
	}

	unified := schema.Unify(v)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return nil, formatCUEError(path, err)
	}

	var f ruleFile
	if err := unified.Decode(&f); err != nil {
		return nil, formatCUEError(path, err)
	}
	return f.Rules, nil
}

// formatCUEError keeps the first CUE error and its position.
func formatCUEError(path string, err error) error {
	errs := cueerrors.Errors(err)
	if len(errs) == 0 {
		return &LoadError{File: path, Message: err.Error()}
	}

	first := errs[0]
	le := &LoadError{File: path, Message: first.Error()}
	if pos := firstPosIn(cueerrors.Positions(first), path); pos.IsValid() {
		le.Line, le.Column = pos.Line(), pos.Column()
	}
	return le
}

// firstPosIn prefers a position inside the user's file over one in the
// embedded schema.
func firstPosIn(positions []token.Pos, path string) token.Pos {
	for _, p := range positions {
		if p.Filename() == path {
			return p
		}
	}
	if len(positions) > 0 {
		return positions[0]
	}
	return token.NoPos
}
