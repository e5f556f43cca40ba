package ir

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Value is a sealed interface over the attribute value kinds a record can hold.
// Only the types in this file implement it, so type switches over Value are
// exhaustive: Null, String, Int, Float, Bool, DateTime, ID, Ref, Option and
// Collection.
type Value interface {
	irValue() // Sealed - only these types implement it
}

// Null is an explicit absent value. A missing attribute and a Null attribute
// compare equal.
type Null struct{}

func (Null) irValue() {}

// String is a text value.
type String string

func (String) irValue() {}

// Int is a whole number value (also used for raw type codes).
type Int int64

func (Int) irValue() {}

// Float is a decimal or money value.
type Float float64

func (Float) irValue() {}

// Bool is a two-option value.
type Bool bool

func (Bool) irValue() {}

// DateTime is a point in time. Always stored in UTC.
type DateTime time.Time

func (DateTime) irValue() {}

// ID is a bare identifier value (primary keys, intersect foreign keys).
type ID uuid.UUID

func (ID) irValue() {}

// Ref is a typed reference to another record. Name is the display name
// captured with the reference and takes no part in equality.
type Ref struct {
	Type string
	ID   uuid.UUID
	Name string
}

func (Ref) irValue() {}

// Option is a coded choice. Label is the formatted value captured with the
// option and takes no part in equality.
type Option struct {
	Code  int
	Label string
}

func (Option) irValue() {}

// Collection is a nested set of records (activity parties, calendar rules).
// Collections are carried through writes but never compared or verified.
type Collection []*Record

func (Collection) irValue() {}

// NewDateTime normalizes t to UTC.
func NewDateTime(t time.Time) DateTime {
	return DateTime(t.UTC())
}

// UUID returns the identifier as a uuid.UUID.
func (id ID) UUID() uuid.UUID {
	return uuid.UUID(id)
}

// IsNull reports whether v is absent or Null.
func IsNull(v Value) bool {
	if v == nil {
		return true
	}
	_, ok := v.(Null)
	return ok
}

// IsPrimitive reports whether v is a scalar that transform rules may rewrite
// by value. Date-times, identifiers, references and options are excluded.
func IsPrimitive(v Value) bool {
	switch v.(type) {
	case String, Int, Float, Bool:
		return true
	default:
		return false
	}
}

// Equal compares two values structurally. Null and nil are equal. References
// compare on type (case-insensitive) and id, options on code.
func Equal(a, b Value) bool {
	if IsNull(a) || IsNull(b) {
		return IsNull(a) && IsNull(b)
	}

	switch av := a.(type) {
	case String:
		bv, ok := b.(String)
		return ok && av == bv
	case Int:
		switch bv := b.(type) {
		case Int:
			return av == bv
		case Float:
			return float64(av) == float64(bv)
		}
		return false
	case Float:
		switch bv := b.(type) {
		case Float:
			return av == bv
		case Int:
			return float64(av) == float64(bv)
		}
		return false
	case Bool:
		bv, ok := b.(Bool)
		return ok && av == bv
	case DateTime:
		bv, ok := b.(DateTime)
		return ok && time.Time(av).Equal(time.Time(bv))
	case ID:
		switch bv := b.(type) {
		case ID:
			return av == bv
		case Ref:
			return uuid.UUID(av) == bv.ID
		}
		return false
	case Ref:
		switch bv := b.(type) {
		case Ref:
			return av.ID == bv.ID && strings.EqualFold(av.Type, bv.Type)
		case ID:
			return av.ID == uuid.UUID(bv)
		}
		return false
	case Option:
		bv, ok := b.(Option)
		return ok && av.Code == bv.Code
	case Collection:
		bv, ok := b.(Collection)
		if !ok || len(av) != len(bv) {
			return false
		}
		for i := range av {
			if !av[i].Equal(bv[i]) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

// Format renders a value for reports: references as "Lookup: type id",
// options as their integer code, identifiers as their canonical string.
func Format(v Value) string {
	switch val := v.(type) {
	case nil, Null:
		return "(null)"
	case String:
		return string(val)
	case Int:
		return strconv.FormatInt(int64(val), 10)
	case Float:
		return strconv.FormatFloat(float64(val), 'f', -1, 64)
	case Bool:
		return strconv.FormatBool(bool(val))
	case DateTime:
		return time.Time(val).UTC().Format(time.RFC3339)
	case ID:
		return uuid.UUID(val).String()
	case Ref:
		return fmt.Sprintf("Lookup: %s %s", val.Type, val.ID)
	case Option:
		return strconv.Itoa(val.Code)
	case Collection:
		return fmt.Sprintf("[%d records]", len(val))
	default:
		return fmt.Sprintf("%v", v)
	}
}

// Text returns the plain string form used when a transform rule matches a
// value: strings verbatim, numbers in decimal, ids in canonical form.
func Text(v Value) string {
	switch val := v.(type) {
	case Ref:
		return val.ID.String()
	case Option:
		return strconv.Itoa(val.Code)
	default:
		return Format(v)
	}
}

// Key returns the comparison key used by stores to index and filter values.
// Strings are lower-cased, identifiers and references reduce to the id, options
// to their code. Null and collections have no key.
func Key(v Value) (string, bool) {
	switch val := v.(type) {
	case nil, Null, Collection:
		return "", false
	case String:
		return strings.ToLower(string(val)), true
	case Ref:
		return val.ID.String(), true
	case DateTime:
		return time.Time(val).UTC().Format(time.RFC3339Nano), true
	default:
		return Text(v), true
	}
}

// Convert parses text into a value of the same kind as like. It backs
// primitive replacements, where a rule's replacement text must take the
// source attribute's type.
func Convert(text string, like Value) (Value, error) {
	switch like.(type) {
	case String:
		return String(text), nil
	case Int:
		n, err := strconv.ParseInt(strings.TrimSpace(text), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("convert %q to int: %w", text, err)
		}
		return Int(n), nil
	case Float:
		f, err := strconv.ParseFloat(strings.TrimSpace(text), 64)
		if err != nil {
			return nil, fmt.Errorf("convert %q to float: %w", text, err)
		}
		return Float(f), nil
	case Bool:
		b, err := strconv.ParseBool(strings.TrimSpace(text))
		if err != nil {
			return nil, fmt.Errorf("convert %q to bool: %w", text, err)
		}
		return Bool(b), nil
	default:
		return nil, fmt.Errorf("cannot convert %q to %T", text, like)
	}
}
