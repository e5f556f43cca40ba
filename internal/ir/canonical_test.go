package ir

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalCanonicalSortsKeys(t *testing.T) {
	data, err := MarshalCanonical(map[string]any{"b": 1, "a": "x", "A": true})
	require.NoError(t, err)
	assert.Equal(t, `{"A":true,"a":"x","b":1}`, string(data))
}

func TestMarshalCanonicalNoHTMLEscape(t *testing.T) {
	data, err := MarshalCanonical("<a&b>")
	require.NoError(t, err)
	assert.Equal(t, `"<a&b>"`, string(data))
}

func TestMarshalCanonicalNFC(t *testing.T) {
	composed, err := MarshalCanonical("\u00e9")
	require.NoError(t, err)
	decomposed, err := MarshalCanonical("e\u0301")
	require.NoError(t, err)
	assert.Equal(t, composed, decomposed)
}

func TestMarshalCanonicalLineSeparators(t *testing.T) {
	data, err := MarshalCanonical("a\u2028b")
	require.NoError(t, err)
	assert.Equal(t, "\"a\u2028b\"", string(data))

	data, err = MarshalCanonical(`a\u2028b`)
	require.NoError(t, err)
	assert.Equal(t, `"a\\u2028b"`, string(data))
}

func TestMarshalCanonicalRecordIgnoresDisplayData(t *testing.T) {
	id := uuid.MustParse("11111111-1111-1111-1111-111111111111")

	a := NewRecord("account", id)
	a.Set("ownerid", Ref{Type: "team", ID: id, Name: "One"})
	a.Set("statecode", Option{Code: 0, Label: "Active"})

	b := NewRecord("account", id)
	b.Set("statecode", Option{Code: 0})
	b.Set("ownerid", Ref{Type: "team", ID: id, Name: "Two"})

	da, err := MarshalCanonical(a)
	require.NoError(t, err)
	db, err := MarshalCanonical(b)
	require.NoError(t, err)
	assert.Equal(t, string(da), string(db))
}
