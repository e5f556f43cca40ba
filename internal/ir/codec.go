package ir

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Value kinds as written on the wire.
const (
	KindNull       = "null"
	KindString     = "string"
	KindInt        = "int"
	KindFloat      = "float"
	KindBool       = "bool"
	KindDateTime   = "datetime"
	KindID         = "id"
	KindRef        = "ref"
	KindOption     = "option"
	KindCollection = "collection"
)

// WireValue is the JSON envelope for a Value: {"type": kind, "value": ...}.
// Key is only written by stores, which index on it.
type WireValue struct {
	Kind  string          `json:"type"`
	Value json.RawMessage `json:"value,omitempty"`
	Label string          `json:"label,omitempty"`
	Key   string          `json:"key,omitempty"`
}

type wireRef struct {
	Type string    `json:"type"`
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name,omitempty"`
}

type wireRecord struct {
	Type       string      `json:"type"`
	ID         uuid.UUID   `json:"id"`
	Attributes *Attributes `json:"attributes"`
}

// EncodeValue converts a Value into its wire envelope.
func EncodeValue(v Value) (WireValue, error) {
	var (
		w   WireValue
		raw any
	)
	switch val := v.(type) {
	case nil, Null:
		return WireValue{Kind: KindNull}, nil
	case String:
		w.Kind, raw = KindString, string(val)
	case Int:
		w.Kind, raw = KindInt, int64(val)
	case Float:
		w.Kind, raw = KindFloat, float64(val)
	case Bool:
		w.Kind, raw = KindBool, bool(val)
	case DateTime:
		w.Kind, raw = KindDateTime, time.Time(val).UTC().Format(time.RFC3339Nano)
	case ID:
		w.Kind, raw = KindID, uuid.UUID(val).String()
	case Ref:
		w.Kind, raw = KindRef, wireRef{Type: val.Type, ID: val.ID, Name: val.Name}
	case Option:
		w.Kind, raw, w.Label = KindOption, val.Code, val.Label
	case Collection:
		w.Kind, raw = KindCollection, []*Record(val)
	default:
		return WireValue{}, fmt.Errorf("unknown value type: %T", v)
	}

	data, err := json.Marshal(raw)
	if err != nil {
		return WireValue{}, fmt.Errorf("encode %s: %w", w.Kind, err)
	}
	w.Value = data
	return w, nil
}

// DecodeValue converts a wire envelope back into a Value.
func DecodeValue(w WireValue) (Value, error) {
	if w.Kind == KindNull || len(w.Value) == 0 || string(w.Value) == "null" {
		return Null{}, nil
	}

	switch w.Kind {
	case KindString:
		var s string
		if err := json.Unmarshal(w.Value, &s); err != nil {
			return nil, fmt.Errorf("decode string: %w", err)
		}
		return String(s), nil
	case KindInt:
		var n int64
		if err := json.Unmarshal(w.Value, &n); err != nil {
			return nil, fmt.Errorf("decode int: %w", err)
		}
		return Int(n), nil
	case KindFloat:
		var f float64
		if err := json.Unmarshal(w.Value, &f); err != nil {
			return nil, fmt.Errorf("decode float: %w", err)
		}
		return Float(f), nil
	case KindBool:
		var b bool
		if err := json.Unmarshal(w.Value, &b); err != nil {
			return nil, fmt.Errorf("decode bool: %w", err)
		}
		return Bool(b), nil
	case KindDateTime:
		var s string
		if err := json.Unmarshal(w.Value, &s); err != nil {
			return nil, fmt.Errorf("decode datetime: %w", err)
		}
		t, err := time.Parse(time.RFC3339Nano, s)
		if err != nil {
			return nil, fmt.Errorf("decode datetime: %w", err)
		}
		return NewDateTime(t), nil
	case KindID:
		var id uuid.UUID
		if err := json.Unmarshal(w.Value, &id); err != nil {
			return nil, fmt.Errorf("decode id: %w", err)
		}
		return ID(id), nil
	case KindRef:
		var r wireRef
		if err := json.Unmarshal(w.Value, &r); err != nil {
			return nil, fmt.Errorf("decode ref: %w", err)
		}
		return Ref{Type: r.Type, ID: r.ID, Name: r.Name}, nil
	case KindOption:
		var code int
		if err := json.Unmarshal(w.Value, &code); err != nil {
			return nil, fmt.Errorf("decode option: %w", err)
		}
		return Option{Code: code, Label: w.Label}, nil
	case KindCollection:
		var recs []*Record
		if err := json.Unmarshal(w.Value, &recs); err != nil {
			return nil, fmt.Errorf("decode collection: %w", err)
		}
		return Collection(recs), nil
	default:
		return nil, fmt.Errorf("unknown value kind %q", w.Kind)
	}
}

// MarshalJSON writes the attributes as an object in insertion order.
func (a *Attributes) MarshalJSON() ([]byte, error) {
	return marshalAttributes(a, false)
}

// MarshalIndexed writes the attributes with each value's comparison key
// embedded, for stores that filter on attribute values.
func MarshalIndexed(a *Attributes) ([]byte, error) {
	return marshalAttributes(a, true)
}

func marshalAttributes(a *Attributes, withKeys bool) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range a.Keys() {
		if i > 0 {
			buf.WriteByte(',')
		}
		keyBytes, err := json.Marshal(k)
		if err != nil {
			return nil, fmt.Errorf("marshal key %q: %w", k, err)
		}
		buf.Write(keyBytes)
		buf.WriteByte(':')

		v, _ := a.Get(k)
		w, err := EncodeValue(v)
		if err != nil {
			return nil, fmt.Errorf("attribute %q: %w", k, err)
		}
		if withKeys {
			w.Key, _ = Key(v)
		}
		valBytes, err := json.Marshal(w)
		if err != nil {
			return nil, fmt.Errorf("attribute %q: %w", k, err)
		}
		buf.Write(valBytes)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON reads an attribute object, preserving the document's key order.
func (a *Attributes) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))

	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("attributes: expected object, got %v", tok)
	}

	*a = Attributes{vals: make(map[string]Value)}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		name, ok := tok.(string)
		if !ok {
			return fmt.Errorf("attributes: expected key, got %v", tok)
		}
		var w WireValue
		if err := dec.Decode(&w); err != nil {
			return fmt.Errorf("attribute %q: %w", name, err)
		}
		v, err := DecodeValue(w)
		if err != nil {
			return fmt.Errorf("attribute %q: %w", name, err)
		}
		a.Set(name, v)
	}
	if _, err := dec.Token(); err != nil {
		return err
	}
	return nil
}

// MarshalJSON writes {"type", "id", "attributes"}.
func (r *Record) MarshalJSON() ([]byte, error) {
	attrs := r.Attrs
	if attrs == nil {
		attrs = NewAttributes()
	}
	return json.Marshal(wireRecord{Type: r.Type, ID: r.ID, Attributes: attrs})
}

// UnmarshalJSON reads the form written by MarshalJSON.
func (r *Record) UnmarshalJSON(data []byte) error {
	var w wireRecord
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	if w.Attributes == nil {
		w.Attributes = NewAttributes()
	}
	*r = Record{Type: w.Type, ID: w.ID, Attrs: w.Attributes}
	return nil
}
