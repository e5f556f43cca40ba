package queryir

import (
	"github.com/google/uuid"

	"github.com/roach88/remap/internal/ir"
)

// Predicate represents a filter condition.
//
// This is a sealed interface - only types in this package implement it.
type Predicate interface {
	predicateNode() // Marker method - seals interface to this package
}

// ColumnSet selects the attributes a query or retrieve returns.
// The zero value returns no attributes besides the primary key.
type ColumnSet struct {
	All   bool
	Names []string
}

// AllColumns returns every attribute.
func AllColumns() ColumnSet { return ColumnSet{All: true} }

// Columns returns the named attributes.
func Columns(names ...string) ColumnSet { return ColumnSet{Names: names} }

// Includes reports whether name is selected.
func (c ColumnSet) Includes(name string) bool {
	if c.All {
		return true
	}
	for _, n := range c.Names {
		if n == name {
			return true
		}
	}
	return false
}

// Query selects records of one logical type.
type Query struct {
	Type    string    // Logical type to read
	Filter  Predicate // WHERE conditions (nil = no filter)
	Columns ColumnSet // Attributes to return
	Link    *Link     // Optional inner join through a related type
}

// Link restricts a query to records that have at least one related record
// of Type whose From attribute equals the main record's To attribute and
// which satisfies Filter.
//
// Semantics:
//
//	EXISTS (SELECT 1 FROM <Type> l WHERE l.<From> = main.<To> AND <Filter on l>)
type Link struct {
	Type   string
	From   string
	To     string
	Filter Predicate
}

// Equals matches records whose field equals a value.
type Equals struct {
	Field string
	Value ir.Value
}

func (Equals) predicateNode() {}

// NotEquals matches records whose field is set and differs from a value.
type NotEquals struct {
	Field string
	Value ir.Value
}

func (NotEquals) predicateNode() {}

// In matches records whose field equals any of the values.
// An empty value list matches nothing.
type In struct {
	Field  string
	Values []ir.Value
}

func (In) predicateNode() {}

// NotIn matches records whose field equals none of the values.
// Records with a null field match. An empty value list matches everything.
type NotIn struct {
	Field  string
	Values []ir.Value
}

func (NotIn) predicateNode() {}

// IsNull matches records whose field is absent or null.
type IsNull struct {
	Field string
}

func (IsNull) predicateNode() {}

// NotNull matches records whose field holds a value.
type NotNull struct {
	Field string
}

func (NotNull) predicateNode() {}

// BeginsWith matches string fields starting with Prefix (case-insensitive).
type BeginsWith struct {
	Field  string
	Prefix string
}

func (BeginsWith) predicateNode() {}

// NotBeginsWith matches string fields that do not start with Prefix.
// Null fields match.
type NotBeginsWith struct {
	Field  string
	Prefix string
}

func (NotBeginsWith) predicateNode() {}

// And matches when every predicate matches. An empty And matches everything.
type And struct {
	Predicates []Predicate
}

func (And) predicateNode() {}

// Or matches when any predicate matches. An empty Or matches nothing.
type Or struct {
	Predicates []Predicate
}

func (Or) predicateNode() {}

// IDs converts identifiers into values for In / NotIn.
func IDs(ids []uuid.UUID) []ir.Value {
	out := make([]ir.Value, len(ids))
	for i, id := range ids {
		out[i] = ir.ID(id)
	}
	return out
}

// AllOf builds an And, dropping nil predicates. A single predicate is
// returned unwrapped.
func AllOf(preds ...Predicate) Predicate {
	var kept []Predicate
	for _, p := range preds {
		if p != nil {
			kept = append(kept, p)
		}
	}
	switch len(kept) {
	case 0:
		return nil
	case 1:
		return kept[0]
	default:
		return And{Predicates: kept}
	}
}
