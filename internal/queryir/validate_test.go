package queryir

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/roach88/remap/internal/ir"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		query   Query
		wantErr bool
	}{
		{
			name:  "simple",
			query: Query{Type: "team", Filter: Equals{Field: "teamtype", Value: ir.Option{Code: 0}}},
		},
		{
			name: "nested and link",
			query: Query{
				Type:    "sla",
				Columns: Columns("statecode"),
				Filter:  And{Predicates: []Predicate{IsNull{Field: "x"}, Or{Predicates: []Predicate{NotNull{Field: "y"}}}}},
				Link:    &Link{Type: "slaitem", From: "slaid", To: "slaid", Filter: Equals{Field: "workflowid", Value: ir.String("w")}},
			},
		},
		{name: "bad type", query: Query{Type: "team; drop"}, wantErr: true},
		{name: "bad column", query: Query{Type: "team", Columns: Columns("a'b")}, wantErr: true},
		{name: "bad field", query: Query{Type: "team", Filter: Equals{Field: "$.x"}}, wantErr: true},
		{name: "bad nested field", query: Query{Type: "team", Filter: And{Predicates: []Predicate{IsNull{Field: "a-b"}}}}, wantErr: true},
		{name: "bad link", query: Query{Type: "sla", Link: &Link{Type: "slaitem", From: "x y", To: "slaid"}}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.query)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestAllOf(t *testing.T) {
	assert.Nil(t, AllOf())
	assert.Nil(t, AllOf(nil, nil))

	single := IsNull{Field: "a"}
	assert.Equal(t, single, AllOf(nil, single))

	both := AllOf(single, NotNull{Field: "b"})
	assert.Equal(t, And{Predicates: []Predicate{single, NotNull{Field: "b"}}}, both)
}

func TestColumnSetIncludes(t *testing.T) {
	assert.True(t, AllColumns().Includes("x"))
	assert.True(t, Columns("a", "b").Includes("b"))
	assert.False(t, Columns("a").Includes("b"))
	assert.False(t, ColumnSet{}.Includes("a"))
}
