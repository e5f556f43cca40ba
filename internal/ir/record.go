package ir

import (
	"strings"

	"github.com/google/uuid"
)

// Record is one business record: a logical type, an id and its attributes.
// Records are mutated in place by identity resolution and choreography.
type Record struct {
	Type  string
	ID    uuid.UUID
	Attrs *Attributes
}

// NewRecord creates an empty record of the given type.
func NewRecord(typ string, id uuid.UUID) *Record {
	return &Record{Type: typ, ID: id, Attrs: NewAttributes()}
}

// PrimaryKey returns the name of the record's own id attribute ("<type>id").
func (r *Record) PrimaryKey() string {
	return PrimaryKey(r.Type)
}

// PrimaryKey returns the id attribute name for a logical type.
func PrimaryKey(typ string) string {
	return typ + "id"
}

// Get returns the attribute value, or Null when absent.
func (r *Record) Get(name string) Value {
	if v, ok := r.Attrs.Get(name); ok {
		return v
	}
	return Null{}
}

// Set assigns an attribute, keeping its position if it already exists.
func (r *Record) Set(name string, v Value) {
	r.Attrs.Set(name, v)
}

// Has reports whether the attribute is present (even when Null).
func (r *Record) Has(name string) bool {
	_, ok := r.Attrs.Get(name)
	return ok
}

// OptionCode returns the code of an Option (or Int) attribute.
func (r *Record) OptionCode(name string) (int, bool) {
	switch v := r.Get(name).(type) {
	case Option:
		return v.Code, true
	case Int:
		return int(v), true
	default:
		return 0, false
	}
}

// StringValue returns a String attribute's text.
func (r *Record) StringValue(name string) (string, bool) {
	s, ok := r.Get(name).(String)
	return string(s), ok
}

// Clone deep-copies the record. Nested collections are cloned as well.
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}
	return &Record{Type: r.Type, ID: r.ID, Attrs: r.Attrs.Clone()}
}

// Equal compares type, id and every attribute structurally.
func (r *Record) Equal(o *Record) bool {
	if r == nil || o == nil {
		return r == o
	}
	if !strings.EqualFold(r.Type, o.Type) || r.ID != o.ID || r.Attrs.Len() != o.Attrs.Len() {
		return false
	}
	for _, k := range r.Attrs.Keys() {
		ov, ok := o.Attrs.Get(k)
		if !ok {
			return false
		}
		rv, _ := r.Attrs.Get(k)
		if !Equal(rv, ov) {
			return false
		}
	}
	return true
}

// Attributes is a name-keyed map that remembers insertion order. Order is
// meaningful: the friendly-name heuristic and report output follow it.
type Attributes struct {
	keys []string
	vals map[string]Value
}

// NewAttributes creates an empty attribute map.
func NewAttributes() *Attributes {
	return &Attributes{vals: make(map[string]Value)}
}

// AttributesOf builds an attribute map from name/value pairs in order.
// It panics on an odd argument count or a non-string name, so it is meant for
// literals in code and tests.
func AttributesOf(pairs ...any) *Attributes {
	if len(pairs)%2 != 0 {
		panic("ir.AttributesOf: odd number of arguments")
	}
	a := NewAttributes()
	for i := 0; i < len(pairs); i += 2 {
		a.Set(pairs[i].(string), pairs[i+1].(Value))
	}
	return a
}

// Get returns the value stored under name.
func (a *Attributes) Get(name string) (Value, bool) {
	if a == nil {
		return nil, false
	}
	v, ok := a.vals[name]
	return v, ok
}

// Set stores v under name. New names are appended to the order.
func (a *Attributes) Set(name string, v Value) {
	if v == nil {
		v = Null{}
	}
	if _, ok := a.vals[name]; !ok {
		a.keys = append(a.keys, name)
	}
	a.vals[name] = v
}

// Delete removes name. Absent names are ignored.
func (a *Attributes) Delete(name string) {
	if _, ok := a.vals[name]; !ok {
		return
	}
	delete(a.vals, name)
	for i, k := range a.keys {
		if k == name {
			a.keys = append(a.keys[:i:i], a.keys[i+1:]...)
			break
		}
	}
}

// Keys returns the attribute names in insertion order. The slice is a copy.
func (a *Attributes) Keys() []string {
	if a == nil {
		return nil
	}
	out := make([]string, len(a.keys))
	copy(out, a.keys)
	return out
}

// Len returns the attribute count.
func (a *Attributes) Len() int {
	if a == nil {
		return 0
	}
	return len(a.keys)
}

// Clone deep-copies the map.
func (a *Attributes) Clone() *Attributes {
	out := NewAttributes()
	if a == nil {
		return out
	}
	for _, k := range a.keys {
		v := a.vals[k]
		if c, ok := v.(Collection); ok {
			cc := make(Collection, len(c))
			for i, rec := range c {
				cc[i] = rec.Clone()
			}
			v = cc
		}
		out.Set(k, v)
	}
	return out
}

// Batch is an ordered list of records sharing one logical type.
type Batch struct {
	Type    string
	Records []*Record
}

// IDs returns the record ids in batch order.
func (b Batch) IDs() []uuid.UUID {
	ids := make([]uuid.UUID, len(b.Records))
	for i, r := range b.Records {
		ids[i] = r.ID
	}
	return ids
}
