package identity

import (
	"context"
	"fmt"
	"slices"

	"github.com/roach88/remap/internal/ir"
	"github.com/roach88/remap/internal/queryir"
	"github.com/roach88/remap/internal/service"
	"github.com/roach88/remap/internal/transform"
)

// ResolveQueryReplacements computes every query-valued rule against the
// target. Each query must select exactly one record with a value in the
// requested column.
func ResolveQueryReplacements(ctx context.Context, target service.Service, rules *transform.Registry) error {
	return rules.ResolveQueries(func(rule transform.Rule) (string, error) {
		q := rule.ReplacementQuery

		fields := make([]string, 0, len(q.Where))
		for f := range q.Where {
			fields = append(fields, f)
		}
		slices.Sort(fields)

		preds := make([]queryir.Predicate, 0, len(fields))
		for _, f := range fields {
			preds = append(preds, queryir.Equals{Field: f, Value: ir.String(q.Where[f])})
		}

		recs, err := target.Query(ctx, queryir.Query{
			Type:    q.Type,
			Filter:  queryir.AllOf(preds...),
			Columns: queryir.Columns(q.Column),
		})
		if err != nil {
			return "", fmt.Errorf("replacement query for %s: %w", rule, err)
		}
		if len(recs) != 1 {
			return "", queryReplacementError(rule, fmt.Sprintf("matched %d records, want exactly 1", len(recs)))
		}

		v := recs[0].Get(q.Column)
		if ir.IsNull(v) {
			return "", queryReplacementError(rule, fmt.Sprintf("column %s is empty", q.Column))
		}
		return ir.Text(v), nil
	})
}

func queryReplacementError(rule transform.Rule, msg string) error {
	return &ir.ConfigError{
		Code:    ir.ErrCodeQueryReplacement,
		Message: fmt.Sprintf("replacement query for %s: %s", rule, msg),
		Type:    rule.ReplacementQuery.Type,
	}
}
