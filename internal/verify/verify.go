// Package verify compares a source snapshot with the target after import and
// renders the differences as an operator report.
//
// Differences are data, never errors: Verify only fails when the target
// cannot be queried. An empty report means nothing was found.
package verify

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/roach88/remap/internal/ir"
	"github.com/roach88/remap/internal/queryir"
	"github.com/roach88/remap/internal/service"
)

const (
	sourceName = "source"
	targetName = "target"
)

// noisyFields are never compared. Their target values are rewritten by the
// platform on import.
var noisyFields = map[string]bool{
	"iscustomizable":           true,
	"associatedentitytypecode": true,
	"calendarrules":            true,
}

// volatileTypes are edited by end users and may legitimately hold records the
// snapshot does not know about.
var volatileTypes = map[string]bool{
	"account":    true,
	"contact":    true,
	"systemuser": true,
	"workflow":   true,
}

// Verifier compares batches with target records.
type Verifier struct {
	target   service.Service
	excluded map[string]bool
}

// New creates a verifier. excluded names attributes that are never compared;
// matching is case-insensitive.
func New(target service.Service, excluded []string) *Verifier {
	v := &Verifier{target: target, excluded: make(map[string]bool, len(excluded))}
	for _, name := range excluded {
		v.excluded[strings.ToLower(strings.TrimSpace(name))] = true
	}
	return v
}

// Excluded reports whether an attribute is left out of comparisons.
// Nested record collections are never compared.
func (v *Verifier) Excluded(name string, value ir.Value) bool {
	lower := strings.ToLower(name)
	if noisyFields[lower] || v.excluded[lower] {
		return true
	}
	_, isCollection := value.(ir.Collection)
	return isCollection
}

// Verify loads the target counterparts of batch and reports every record that
// is missing or differs. Records are matched on id.
func (v *Verifier) Verify(ctx context.Context, batch ir.Batch) (string, error) {
	if len(batch.Records) == 0 {
		return "", nil
	}

	targets, err := v.target.Query(ctx, queryir.Query{
		Type:    batch.Type,
		Filter:  queryir.In{Field: ir.PrimaryKey(batch.Type), Values: queryir.IDs(batch.IDs())},
		Columns: queryir.Columns(v.columns(batch)...),
	})
	if err != nil {
		return "", fmt.Errorf("load %s from %s: %w", batch.Type, targetName, err)
	}

	var b strings.Builder
	if len(targets) == 0 {
		fmt.Fprintf(&b, "VERIFICATION: [ %s ] has NOT been imported into %s environment.\n", batch.Type, targetName)
		return b.String(), nil
	}

	diff := v.compare(batch.Records, targets)
	if diff == "" {
		return "", nil
	}

	if len(targets) == len(batch.Records) {
		fmt.Fprintf(&b, "VERIFICATION: All [ %s ] records in %s exist in %s, with differences:\n", batch.Type, sourceName, targetName)
	} else {
		fmt.Fprintf(&b, "VERIFICATION: There are %d %s records in %s whereas %s has %d records!\n",
			len(batch.Records), batch.Type, sourceName, targetName, len(targets))
	}
	b.WriteString(diff)
	return b.String(), nil
}

// columns returns the comparable attribute names of the batch, in first-seen
// order.
func (v *Verifier) columns(batch ir.Batch) []string {
	var cols []string
	seen := make(map[string]bool)
	for _, rec := range batch.Records {
		for _, k := range rec.Attrs.Keys() {
			val, _ := rec.Attrs.Get(k)
			lower := strings.ToLower(k)
			if seen[lower] || v.Excluded(k, val) {
				continue
			}
			seen[lower] = true
			cols = append(cols, k)
		}
	}
	return cols
}

// compare reports the source records absent from targets and, for those
// present, the attribute differences.
func (v *Verifier) compare(sources, targets []*ir.Record) string {
	byID := make(map[uuid.UUID]*ir.Record, len(targets))
	for _, t := range targets {
		byID[t.ID] = t
	}

	var b strings.Builder
	for _, src := range sources {
		tgt, ok := byID[src.ID]
		if !ok {
			fmt.Fprintf(&b, "VERIFICATION: %s does not exist in %s!\n", ir.Describe(src), targetName)
			continue
		}
		if diff := v.compareRecord(src, tgt); diff != "" {
			fmt.Fprintf(&b, "VERIFICATION: ERROR on [ %s ]\n", ir.Describe(src))
			b.WriteString(diff)
		}
	}
	return b.String()
}

func (v *Verifier) compareRecord(src, tgt *ir.Record) string {
	var b strings.Builder
	for _, k := range src.Attrs.Keys() {
		sv, _ := src.Attrs.Get(k)
		if v.Excluded(k, sv) {
			continue
		}

		// A null target value is not returned at all, so an absent
		// attribute only matters when the source has a value.
		tv, present := tgt.Attrs.Get(k)
		switch {
		case !present:
			if !ir.IsNull(sv) {
				fmt.Fprintf(&b, "VERIFICATION: Field: %s\t\t does not exist in %s.\n", k, targetName)
			}
		case ir.IsNull(sv) && ir.IsNull(tv):
		case ir.IsNull(tv):
			fmt.Fprintf(&b, "VERIFICATION: Field: %s\t\t%s: %s \t\t%s: (null)\n", k, sourceName, ir.Format(sv), targetName)
		case ir.IsNull(sv):
			fmt.Fprintf(&b, "VERIFICATION: Field: %s\t\t%s: (null) \t\t%s: %s\n", k, sourceName, targetName, ir.Format(tv))
		case !ir.Equal(sv, tv):
			fmt.Fprintf(&b, "VERIFICATION: Field: %s\t\t%s: %s\t\t%s: %s\n", k, sourceName, ir.Format(sv), targetName, ir.Format(tv))
		}
	}
	return b.String()
}

// VerifyExtraTargetRecords reports target records of the batches' types
// whose ids appear in none of the batches. Batches of the same type are
// merged. Volatile types (account, contact, systemuser, workflow) are not
// checked, nor are inner calendars, default teams and access teams.
func (v *Verifier) VerifyExtraTargetRecords(ctx context.Context, batches []ir.Batch) (string, error) {
	ids := make(map[string][]uuid.UUID)
	seen := make(map[uuid.UUID]bool)
	var order []string
	for _, batch := range batches {
		typ := strings.ToLower(batch.Type)
		if volatileTypes[typ] || len(batch.Records) == 0 {
			continue
		}
		if _, ok := ids[typ]; !ok {
			order = append(order, typ)
		}
		for _, id := range batch.IDs() {
			if !seen[id] {
				seen[id] = true
				ids[typ] = append(ids[typ], id)
			}
		}
	}

	var sections []string
	for _, typ := range order {
		extras, err := v.target.Query(ctx, extrasQuery(typ, ids[typ]))
		if err != nil {
			return "", fmt.Errorf("load extra %s from %s: %w", typ, targetName, err)
		}
		if len(extras) == 0 {
			continue
		}
		var b strings.Builder
		for _, rec := range extras {
			fmt.Fprintf(&b, "VERIFICATION: %s does not exist in %s!\n", ir.Describe(rec), sourceName)
		}
		sections = append(sections, b.String())
	}
	if len(sections) == 0 {
		return "", nil
	}

	var b strings.Builder
	b.WriteString("=============================================================================================\n")
	fmt.Fprintf(&b, "VERIFICATION: Checking if %s has any extra records that do not exist in %s, except for following types:\n", targetName, sourceName)
	b.WriteString("\taccount, contact, systemuser, workflow\n")
	for _, s := range sections {
		b.WriteString("===\n")
		b.WriteString(s)
	}
	b.WriteString("===\n")
	return b.String(), nil
}

func extrasQuery(typ string, ids []uuid.UUID) queryir.Query {
	preds := []queryir.Predicate{
		queryir.NotIn{Field: ir.PrimaryKey(typ), Values: queryir.IDs(ids)},
	}
	switch typ {
	case "calendar":
		preds = append(preds, queryir.NotIn{Field: "type", Values: []ir.Value{ir.Option{Code: 0}, ir.Option{Code: -1}}})
	case "team":
		preds = append(preds,
			queryir.Equals{Field: "isdefault", Value: ir.Bool(false)},
			queryir.Equals{Field: "teamtype", Value: ir.Option{Code: 0}},
		)
	}
	return queryir.Query{Type: typ, Filter: queryir.AllOf(preds...), Columns: queryir.AllColumns()}
}
