package ir

import (
	"bytes"
	"encoding/json"
	"fmt"
	"slices"
	"strconv"
	"time"
	"unicode/utf16"

	"github.com/google/uuid"
	"golang.org/x/text/unicode/norm"
)

// MarshalCanonical produces canonical JSON for hashing.
// CRITICAL: This is the ONLY serialization that should be used for content
// hashes. Unlike the wire form it:
//  1. Sorts object keys by UTF-16 code units (RFC 8785), not insertion order
//  2. Does not escape HTML (< > & stay literal)
//  3. NFC-normalizes every string
//  4. Drops display-only data (reference names, option labels)
//
// Accepted inputs: *Record, Value, map[string]any, []any, string, int,
// int64, bool, float64, uuid.UUID.
func MarshalCanonical(v any) ([]byte, error) {
	return marshalCanonical(v)
}

func marshalCanonical(v any) ([]byte, error) {
	switch val := v.(type) {
	case nil:
		return []byte("null"), nil
	case *Record:
		return marshalCanonicalRecord(val)
	case Value:
		return marshalCanonicalValue(val)
	case string:
		return marshalCanonicalString(val)
	case int:
		return []byte(strconv.Itoa(val)), nil
	case int64:
		return []byte(strconv.FormatInt(val, 10)), nil
	case bool:
		return []byte(strconv.FormatBool(val)), nil
	case float64:
		return []byte(strconv.FormatFloat(val, 'g', -1, 64)), nil
	case uuid.UUID:
		return marshalCanonicalString(val.String())
	case []any:
		return marshalCanonicalArray(val)
	case map[string]any:
		return marshalCanonicalObject(val)
	default:
		return nil, fmt.Errorf("unsupported type for canonical JSON: %T", v)
	}
}

func marshalCanonicalRecord(r *Record) ([]byte, error) {
	if r == nil {
		return []byte("null"), nil
	}
	attrs := make(map[string]any, r.Attrs.Len())
	for _, k := range r.Attrs.Keys() {
		v, _ := r.Attrs.Get(k)
		attrs[k] = v
	}
	return marshalCanonicalObject(map[string]any{
		"type":       r.Type,
		"id":         r.ID,
		"attributes": attrs,
	})
}

func marshalCanonicalValue(v Value) ([]byte, error) {
	var payload any
	kind := ""
	switch val := v.(type) {
	case Null:
		kind = KindNull
	case String:
		kind, payload = KindString, string(val)
	case Int:
		kind, payload = KindInt, int64(val)
	case Float:
		kind, payload = KindFloat, float64(val)
	case Bool:
		kind, payload = KindBool, bool(val)
	case DateTime:
		kind, payload = KindDateTime, time.Time(val).UTC().Format(time.RFC3339Nano)
	case ID:
		kind, payload = KindID, uuid.UUID(val)
	case Ref:
		kind, payload = KindRef, map[string]any{"type": val.Type, "id": val.ID}
	case Option:
		kind, payload = KindOption, val.Code
	case Collection:
		kind = KindCollection
		items := make([]any, len(val))
		for i, rec := range val {
			items[i] = rec
		}
		payload = items
	default:
		return nil, fmt.Errorf("unknown value type: %T", v)
	}
	return marshalCanonicalObject(map[string]any{"type": kind, "value": payload})
}

// marshalCanonicalString produces a canonical JSON string with NFC normalization.
// Only control characters, backslash and quote are escaped.
func marshalCanonicalString(s string) ([]byte, error) {
	normalized := norm.NFC.String(s)

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(normalized); err != nil {
		return nil, err
	}

	// json.Encoder adds a trailing newline
	result := bytes.TrimSuffix(buf.Bytes(), []byte{'\n'})

	// Go escapes U+2028/U+2029 for JavaScript; RFC 8785 does not.
	return unescapeLineSeparators(result), nil
}

// unescapeLineSeparators turns \u2028 and \u2029 escapes back into literal
// characters, leaving \\u2028 (an escaped backslash followed by text) alone.
func unescapeLineSeparators(data []byte) []byte {
	if !bytes.Contains(data, []byte(`\u202`)) {
		return data
	}

	out := make([]byte, 0, len(data))
	for i := 0; i < len(data); i++ {
		if data[i] == '\\' && i+5 < len(data) && data[i+1] == 'u' &&
			data[i+2] == '2' && data[i+3] == '0' && data[i+4] == '2' &&
			(data[i+5] == '8' || data[i+5] == '9') {
			if data[i+5] == '8' {
				out = append(out, "\u2028"...)
			} else {
				out = append(out, "\u2029"...)
			}
			i += 5
			continue
		}
		if data[i] == '\\' && i+1 < len(data) {
			// copy the escape pair verbatim so an escaped backslash is never
			// mistaken for the start of a line separator escape
			out = append(out, data[i], data[i+1])
			i++
			continue
		}
		out = append(out, data[i])
	}
	return out
}

func marshalCanonicalArray(arr []any) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('[')
	for i, elem := range arr {
		if i > 0 {
			buf.WriteByte(',')
		}
		elemBytes, err := marshalCanonical(elem)
		if err != nil {
			return nil, fmt.Errorf("array[%d]: %w", i, err)
		}
		buf.Write(elemBytes)
	}
	buf.WriteByte(']')
	return buf.Bytes(), nil
}

func marshalCanonicalObject(obj map[string]any) ([]byte, error) {
	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	// CRITICAL: RFC 8785 UTF-16 code unit ordering
	slices.SortFunc(keys, compareKeysRFC8785)

	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		keyBytes, err := marshalCanonicalString(k)
		if err != nil {
			return nil, fmt.Errorf("key %q: %w", k, err)
		}
		buf.Write(keyBytes)
		buf.WriteByte(':')

		valBytes, err := marshalCanonical(obj[k])
		if err != nil {
			return nil, fmt.Errorf("value for key %q: %w", k, err)
		}
		buf.Write(valBytes)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// compareKeysRFC8785 compares strings by UTF-16 code units.
// Go's default string comparison uses UTF-8 which produces a DIFFERENT order.
func compareKeysRFC8785(a, b string) int {
	a16 := utf16.Encode([]rune(a))
	b16 := utf16.Encode([]rune(b))
	return slices.Compare(a16, b16)
}
