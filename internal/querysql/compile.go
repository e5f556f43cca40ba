// Package querysql compiles queryir queries to parameterized SQL over the
// records table used by the store package.
//
// CRITICAL: ALL queries include ORDER BY seq for deterministic results.
// CRITICAL: All values are parameterized (never interpolated). Names are
// interpolated only after queryir.Validate has accepted them.
package querysql

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/roach88/remap/internal/ir"
	"github.com/roach88/remap/internal/queryir"
)

// Dialect selects the SQL flavour to emit.
type Dialect int

const (
	// SQLite uses json_extract and ? placeholders.
	SQLite Dialect = iota
	// Postgres uses jsonb operators and $n placeholders.
	Postgres
)

// String returns the dialect name.
func (d Dialect) String() string {
	if d == Postgres {
		return "postgres"
	}
	return "sqlite"
}

// keyExpr returns the SQL expression for an attribute's comparison key.
func (d Dialect) keyExpr(alias, field string) string {
	if d == Postgres {
		return fmt.Sprintf("((%s.attributes::jsonb) -> '%s' ->> 'key')", alias, field)
	}
	return fmt.Sprintf(`json_extract(%s.attributes, '$."%s".key')`, alias, field)
}

// Rebind rewrites ? placeholders into the dialect's form. Question marks
// inside single-quoted literals are left alone.
func (d Dialect) Rebind(query string) string {
	if d != Postgres {
		return query
	}
	var b strings.Builder
	n := 0
	quoted := false
	for _, r := range query {
		switch {
		case r == '\'':
			quoted = !quoted
			b.WriteRune(r)
		case r == '?' && !quoted:
			n++
			b.WriteString("$" + strconv.Itoa(n))
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Compiler compiles queryir queries for one dialect.
type Compiler struct {
	Dialect Dialect
	aliases int
}

// NewCompiler creates a compiler for the given dialect.
func NewCompiler(d Dialect) *Compiler {
	return &Compiler{Dialect: d}
}

// Compile converts a query into SQL selecting (id, attributes) rows from the
// records table. Returns (sql, params, error).
//
// MANDATORY: every query is ordered by insertion sequence.
func (c *Compiler) Compile(q queryir.Query) (string, []any, error) {
	if err := queryir.Validate(q); err != nil {
		return "", nil, fmt.Errorf("compile query: %w", err)
	}
	c.aliases = 0

	where := []string{"r.type = ?"}
	params := []any{q.Type}

	if q.Filter != nil {
		filterSQL, filterParams, err := c.compilePredicate("r", q.Type, q.Filter)
		if err != nil {
			return "", nil, fmt.Errorf("compile filter: %w", err)
		}
		where = append(where, filterSQL)
		params = append(params, filterParams...)
	}

	if q.Link != nil {
		linkSQL, linkParams, err := c.compileLink("r", q.Type, *q.Link)
		if err != nil {
			return "", nil, fmt.Errorf("compile link: %w", err)
		}
		where = append(where, linkSQL)
		params = append(params, linkParams...)
	}

	sql := "SELECT r.id, r.attributes FROM records r WHERE " +
		strings.Join(where, " AND ") +
		" ORDER BY r.seq ASC"

	return c.Dialect.Rebind(sql), params, nil
}

// fieldExpr returns the SQL expression for a field of the given type. The
// primary key lives in the id column rather than in the attribute document.
func (c *Compiler) fieldExpr(alias, typ, field string) string {
	if strings.EqualFold(field, ir.PrimaryKey(typ)) {
		return alias + ".id"
	}
	return c.Dialect.keyExpr(alias, field)
}

func (c *Compiler) compileLink(alias, typ string, l queryir.Link) (string, []any, error) {
	c.aliases++
	la := "l" + strconv.Itoa(c.aliases)

	parts := []string{
		la + ".type = ?",
		fmt.Sprintf("%s = %s", c.fieldExpr(la, l.Type, l.From), c.fieldExpr(alias, typ, l.To)),
	}
	params := []any{l.Type}

	if l.Filter != nil {
		filterSQL, filterParams, err := c.compilePredicate(la, l.Type, l.Filter)
		if err != nil {
			return "", nil, err
		}
		parts = append(parts, filterSQL)
		params = append(params, filterParams...)
	}

	return fmt.Sprintf("EXISTS (SELECT 1 FROM records %s WHERE %s)", la, strings.Join(parts, " AND ")), params, nil
}

// compilePredicate compiles a predicate to a WHERE fragment.
// CRITICAL: Values NEVER interpolated - always ? placeholders.
func (c *Compiler) compilePredicate(alias, typ string, p queryir.Predicate) (string, []any, error) {
	switch pred := p.(type) {
	case nil:
		return "1 = 1", nil, nil

	case queryir.Equals:
		key, ok := ir.Key(pred.Value)
		if !ok {
			return c.fieldExpr(alias, typ, pred.Field) + " IS NULL", nil, nil
		}
		return c.fieldExpr(alias, typ, pred.Field) + " = ?", []any{key}, nil

	case queryir.NotEquals:
		key, ok := ir.Key(pred.Value)
		if !ok {
			return c.fieldExpr(alias, typ, pred.Field) + " IS NOT NULL", nil, nil
		}
		return c.fieldExpr(alias, typ, pred.Field) + " <> ?", []any{key}, nil

	case queryir.In:
		list, params := keyList(pred.Values)
		if len(params) == 0 {
			return "1 = 0", nil, nil
		}
		return fmt.Sprintf("%s IN (%s)", c.fieldExpr(alias, typ, pred.Field), list), params, nil

	case queryir.NotIn:
		list, params := keyList(pred.Values)
		if len(params) == 0 {
			return "1 = 1", nil, nil
		}
		expr := c.fieldExpr(alias, typ, pred.Field)
		return fmt.Sprintf("(%s IS NULL OR %s NOT IN (%s))", expr, expr, list), params, nil

	case queryir.IsNull:
		return c.fieldExpr(alias, typ, pred.Field) + " IS NULL", nil, nil

	case queryir.NotNull:
		return c.fieldExpr(alias, typ, pred.Field) + " IS NOT NULL", nil, nil

	case queryir.BeginsWith:
		return c.fieldExpr(alias, typ, pred.Field) + ` LIKE ? ESCAPE '\'`, []any{likePrefix(pred.Prefix)}, nil

	case queryir.NotBeginsWith:
		expr := c.fieldExpr(alias, typ, pred.Field)
		return fmt.Sprintf(`(%s IS NULL OR %s NOT LIKE ? ESCAPE '\')`, expr, expr), []any{likePrefix(pred.Prefix)}, nil

	case queryir.And:
		return c.compileJunction(alias, typ, pred.Predicates, " AND ", "1 = 1")

	case queryir.Or:
		return c.compileJunction(alias, typ, pred.Predicates, " OR ", "1 = 0")

	default:
		return "", nil, fmt.Errorf("unsupported predicate type: %T", p)
	}
}

func (c *Compiler) compileJunction(alias, typ string, preds []queryir.Predicate, sep, empty string) (string, []any, error) {
	if len(preds) == 0 {
		return empty, nil, nil
	}

	var parts []string
	var params []any
	for _, sub := range preds {
		sql, subParams, err := c.compilePredicate(alias, typ, sub)
		if err != nil {
			return "", nil, err
		}
		parts = append(parts, sql)
		params = append(params, subParams...)
	}
	return "(" + strings.Join(parts, sep) + ")", params, nil
}

// keyList returns a placeholder list and the keys of the non-null values.
func keyList(values []ir.Value) (string, []any) {
	var params []any
	for _, v := range values {
		if key, ok := ir.Key(v); ok {
			params = append(params, key)
		}
	}
	return strings.TrimSuffix(strings.Repeat("?, ", len(params)), ", "), params
}

// likePrefix lower-cases and escapes a prefix for LIKE ... ESCAPE '\'.
func likePrefix(prefix string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(strings.ToLower(prefix)) + "%"
}
