package identity

import (
	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"

	"github.com/roach88/remap/internal/ir"
)

// sameName compares business keys: NFC-normalized, case-folded.
func sameName(a, b string) bool {
	return foldName(a) == foldName(b)
}

func foldName(s string) string {
	return cases.Fold().String(norm.NFC.String(s))
}

// stringAttr returns a string attribute, or "" when absent or not a string.
func stringAttr(r *ir.Record, name string) string {
	s, _ := r.StringValue(name)
	return s
}

// refAttr returns a reference attribute. Bare ids are returned as a
// reference without a name.
func refAttr(r *ir.Record, name string) (ir.Ref, bool) {
	switch v := r.Get(name).(type) {
	case ir.Ref:
		return v, true
	case ir.ID:
		return ir.Ref{ID: v.UUID()}, true
	default:
		return ir.Ref{}, false
	}
}
