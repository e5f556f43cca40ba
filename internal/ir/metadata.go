package ir

import (
	"sort"
	"strconv"
	"strings"
)

// Descriptor describes one logical type in an environment. Descriptors are
// loaded once per run and never mutated afterwards.
type Descriptor struct {
	LogicalName string  `json:"logical_name"`
	DisplayName string  `json:"display_name,omitempty"`
	TypeCode    int     `json:"type_code"`
	IsCustom    bool    `json:"is_custom"`
	IsIntersect bool    `json:"is_intersect"`
	Fields      []Field `json:"fields,omitempty"`

	// ManyToMany lists the relationship schema names of an intersect type.
	ManyToMany []string `json:"many_to_many,omitempty"`
}

// Field describes one attribute of a logical type.
type Field struct {
	Name      string `json:"name"`
	Readable  bool   `json:"readable"`
	Creatable bool   `json:"creatable"`
}

// Catalog is the target environment's metadata keyed by logical name.
type Catalog map[string]Descriptor

// NewCatalog indexes descriptors by lower-cased logical name.
func NewCatalog(ds ...Descriptor) Catalog {
	c := make(Catalog, len(ds))
	for _, d := range ds {
		c[strings.ToLower(d.LogicalName)] = d
	}
	return c
}

// Get returns the descriptor for a logical type. A missing type is a
// configuration error: the run cannot route records it knows nothing about.
func (c Catalog) Get(typ string) (Descriptor, error) {
	if d, ok := c[strings.ToLower(typ)]; ok {
		return d, nil
	}
	return Descriptor{}, &ConfigError{
		Code:    ErrCodeMissingMetadata,
		Message: "no metadata for type",
		Type:    typ,
	}
}

// Find looks a type up by logical name, display name or numeric type code.
// It returns false when nothing matches and an AMBIGUOUS_MATCH error when
// more than one descriptor shares the display name.
func (c Catalog) Find(label string) (Descriptor, bool, error) {
	if d, ok := c[strings.ToLower(label)]; ok {
		return d, true, nil
	}

	code, codeErr := strconv.Atoi(strings.TrimSpace(label))

	var matches []Descriptor
	for _, name := range c.names() {
		d := c[name]
		if strings.EqualFold(d.DisplayName, label) || (codeErr == nil && d.TypeCode == code) {
			matches = append(matches, d)
		}
	}
	switch len(matches) {
	case 0:
		return Descriptor{}, false, nil
	case 1:
		return matches[0], true, nil
	default:
		return Descriptor{}, false, &ConfigError{
			Code:    ErrCodeAmbiguousMatch,
			Message: "more than one type matches " + strconv.Quote(label),
		}
	}
}

// names returns the catalog keys sorted for deterministic scans.
func (c Catalog) names() []string {
	out := make([]string, 0, len(c))
	for k := range c {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
