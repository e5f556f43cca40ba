package querysql

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/remap/internal/ir"
	"github.com/roach88/remap/internal/queryir"
)

func TestCompile_SimpleEquals(t *testing.T) {
	c := NewCompiler(SQLite)

	sql, params, err := c.Compile(queryir.Query{
		Type:   "team",
		Filter: queryir.Equals{Field: "name", Value: ir.String("Sales")},
	})
	require.NoError(t, err)

	assert.Equal(t,
		`SELECT r.id, r.attributes FROM records r WHERE r.type = ? AND json_extract(r.attributes, '$."name".key') = ? ORDER BY r.seq ASC`,
		sql)
	// Values are parameterized and compared on their lower-cased key
	assert.Equal(t, []any{"team", "sales"}, params)
	assert.NotContains(t, sql, "Sales")
}

func TestCompile_PrimaryKeyUsesIDColumn(t *testing.T) {
	c := NewCompiler(SQLite)
	id := uuid.MustParse("11111111-1111-1111-1111-111111111111")

	sql, params, err := c.Compile(queryir.Query{
		Type:   "account",
		Filter: queryir.In{Field: "accountid", Values: []ir.Value{ir.ID(id)}},
	})
	require.NoError(t, err)

	assert.Contains(t, sql, "r.id IN (?)")
	assert.Equal(t, []any{"account", id.String()}, params)
}

func TestCompile_EmptyInMatchesNothing(t *testing.T) {
	c := NewCompiler(SQLite)

	sql, params, err := c.Compile(queryir.Query{Type: "account", Filter: queryir.In{Field: "accountid"}})
	require.NoError(t, err)
	assert.Contains(t, sql, "1 = 0")
	assert.Equal(t, []any{"account"}, params)

	sql, _, err = c.Compile(queryir.Query{Type: "account", Filter: queryir.NotIn{Field: "accountid"}})
	require.NoError(t, err)
	assert.Contains(t, sql, "1 = 1")
}

func TestCompile_NotInKeepsNulls(t *testing.T) {
	c := NewCompiler(SQLite)

	sql, params, err := c.Compile(queryir.Query{
		Type:   "calendar",
		Filter: queryir.NotIn{Field: "type", Values: []ir.Value{ir.Option{Code: 0}, ir.Option{Code: -1}}},
	})
	require.NoError(t, err)

	assert.Contains(t, sql, `(json_extract(r.attributes, '$."type".key') IS NULL OR json_extract(r.attributes, '$."type".key') NOT IN (?, ?))`)
	assert.Equal(t, []any{"calendar", "0", "-1"}, params)
}

func TestCompile_BeginsWithEscapes(t *testing.T) {
	c := NewCompiler(SQLite)

	_, params, err := c.Compile(queryir.Query{
		Type:   "queue",
		Filter: queryir.NotBeginsWith{Field: "name", Prefix: "<50%_"},
	})
	require.NoError(t, err)
	assert.Equal(t, []any{"queue", `<50\%\_%`}, params)
}

func TestCompile_OrAndNesting(t *testing.T) {
	c := NewCompiler(SQLite)

	sql, params, err := c.Compile(queryir.Query{
		Type: "team",
		Filter: queryir.And{Predicates: []queryir.Predicate{
			queryir.Equals{Field: "isdefault", Value: ir.Bool(false)},
			queryir.Or{Predicates: []queryir.Predicate{
				queryir.IsNull{Field: "a"},
				queryir.NotNull{Field: "b"},
			}},
		}},
	})
	require.NoError(t, err)

	assert.Contains(t, sql, `(json_extract(r.attributes, '$."isdefault".key') = ? AND (json_extract(r.attributes, '$."a".key') IS NULL OR json_extract(r.attributes, '$."b".key') IS NOT NULL))`)
	assert.Equal(t, []any{"team", "false"}, params)
}

func TestCompile_Link(t *testing.T) {
	c := NewCompiler(SQLite)
	wf := uuid.MustParse("22222222-2222-2222-2222-222222222222")

	sql, params, err := c.Compile(queryir.Query{
		Type:   "sla",
		Filter: queryir.Equals{Field: "statecode", Value: ir.Option{Code: 1}},
		Link: &queryir.Link{
			Type:   "slaitem",
			From:   "slaid",
			To:     "slaid",
			Filter: queryir.Equals{Field: "workflowid", Value: ir.Ref{Type: "workflow", ID: wf}},
		},
	})
	require.NoError(t, err)

	assert.Contains(t, sql, `EXISTS (SELECT 1 FROM records l1 WHERE l1.type = ? AND json_extract(l1.attributes, '$."slaid".key') = r.id AND json_extract(l1.attributes, '$."workflowid".key') = ?)`)
	assert.Equal(t, []any{"sla", "1", "slaitem", wf.String()}, params)
}

func TestCompile_AlwaysOrdered(t *testing.T) {
	for _, d := range []Dialect{SQLite, Postgres} {
		sql, _, err := NewCompiler(d).Compile(queryir.Query{Type: "account"})
		require.NoError(t, err)
		assert.Contains(t, sql, "ORDER BY r.seq ASC", d.String())
	}
}

func TestCompile_Postgres(t *testing.T) {
	c := NewCompiler(Postgres)

	sql, params, err := c.Compile(queryir.Query{
		Type:   "team",
		Filter: queryir.Equals{Field: "name", Value: ir.String("Sales")},
	})
	require.NoError(t, err)

	assert.Equal(t,
		`SELECT r.id, r.attributes FROM records r WHERE r.type = $1 AND ((r.attributes::jsonb) -> 'name' ->> 'key') = $2 ORDER BY r.seq ASC`,
		sql)
	assert.Equal(t, []any{"team", "sales"}, params)
}

func TestCompile_RejectsBadNames(t *testing.T) {
	_, _, err := NewCompiler(SQLite).Compile(queryir.Query{
		Type:   "team",
		Filter: queryir.Equals{Field: `name') OR 1=1 --`, Value: ir.String("x")},
	})
	assert.Error(t, err)
}

func TestRebind(t *testing.T) {
	assert.Equal(t, "a = ? AND b = ?", SQLite.Rebind("a = ? AND b = ?"))
	assert.Equal(t, "a = $1 AND b LIKE $2 ESCAPE '\\' AND c = '?'", Postgres.Rebind("a = ? AND b LIKE ? ESCAPE '\\' AND c = '?'"))
}
