package ir

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValueSealed(t *testing.T) {
	// Compile-time check that every kind implements Value
	var _ Value = Null{}
	var _ Value = String("x")
	var _ Value = Int(1)
	var _ Value = Float(1.5)
	var _ Value = Bool(true)
	var _ Value = NewDateTime(time.Now())
	var _ Value = ID(uuid.New())
	var _ Value = Ref{Type: "team", ID: uuid.New()}
	var _ Value = Option{Code: 1}
	var _ Value = Collection{}
}

func TestEqual(t *testing.T) {
	id := uuid.MustParse("11111111-1111-1111-1111-111111111111")
	other := uuid.MustParse("22222222-2222-2222-2222-222222222222")
	ts := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		a, b Value
		want bool
	}{
		{"null vs nil", Null{}, nil, true},
		{"null vs string", Null{}, String(""), false},
		{"same string", String("a"), String("a"), true},
		{"string case differs", String("a"), String("A"), false},
		{"int vs float", Int(2), Float(2), true},
		{"datetime zones", NewDateTime(ts), DateTime(ts.In(time.FixedZone("x", 3600))), true},
		{"ref ignores name", Ref{Type: "team", ID: id, Name: "A"}, Ref{Type: "Team", ID: id, Name: "B"}, true},
		{"ref differs by type", Ref{Type: "team", ID: id}, Ref{Type: "systemuser", ID: id}, false},
		{"ref differs by id", Ref{Type: "team", ID: id}, Ref{Type: "team", ID: other}, false},
		{"id vs ref", ID(id), Ref{Type: "team", ID: id}, true},
		{"option ignores label", Option{Code: 1, Label: "a"}, Option{Code: 1}, true},
		{"option codes differ", Option{Code: 1}, Option{Code: 2}, false},
		{"bool vs string", Bool(true), String("true"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Equal(tt.a, tt.b))
			assert.Equal(t, tt.want, Equal(tt.b, tt.a), "Equal must be symmetric")
		})
	}
}

func TestFormat(t *testing.T) {
	id := uuid.MustParse("11111111-1111-1111-1111-111111111111")

	assert.Equal(t, "(null)", Format(Null{}))
	assert.Equal(t, "Lookup: team 11111111-1111-1111-1111-111111111111", Format(Ref{Type: "team", ID: id, Name: "x"}))
	assert.Equal(t, "3", Format(Option{Code: 3, Label: "Three"}))
	assert.Equal(t, "11111111-1111-1111-1111-111111111111", Format(ID(id)))
	assert.Equal(t, "1.25", Format(Float(1.25)))
}

func TestKey(t *testing.T) {
	id := uuid.MustParse("AAAAAAAA-1111-1111-1111-111111111111")

	k, ok := Key(String("Sales Team"))
	require.True(t, ok)
	assert.Equal(t, "sales team", k)

	k, ok = Key(Ref{Type: "team", ID: id})
	require.True(t, ok)
	assert.Equal(t, "aaaaaaaa-1111-1111-1111-111111111111", k)

	k, ok = Key(Option{Code: 0})
	require.True(t, ok)
	assert.Equal(t, "0", k)

	_, ok = Key(Null{})
	assert.False(t, ok)
	_, ok = Key(Collection{})
	assert.False(t, ok)
}

func TestConvert(t *testing.T) {
	v, err := Convert("42", Int(1))
	require.NoError(t, err)
	assert.Equal(t, Int(42), v)

	v, err = Convert("true", Bool(false))
	require.NoError(t, err)
	assert.Equal(t, Bool(true), v)

	v, err = Convert("x", String("y"))
	require.NoError(t, err)
	assert.Equal(t, String("x"), v)

	_, err = Convert("abc", Int(1))
	assert.Error(t, err)
}

func TestIsPrimitive(t *testing.T) {
	assert.True(t, IsPrimitive(String("a")))
	assert.True(t, IsPrimitive(Int(1)))
	assert.False(t, IsPrimitive(Option{Code: 1}))
	assert.False(t, IsPrimitive(ID(uuid.New())))
	assert.False(t, IsPrimitive(NewDateTime(time.Now())))
}
