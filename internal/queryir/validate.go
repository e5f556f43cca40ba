package queryir

import (
	"fmt"
	"regexp"
)

// identPattern is the shape of a logical type or attribute name. Names are
// embedded into SQL JSON paths, so anything else is rejected up front.
var identPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// ValidIdent reports whether name is a legal type or attribute name.
func ValidIdent(name string) bool {
	return identPattern.MatchString(name)
}

// Validate checks that every type and field name in q is a legal identifier
// and that no predicate is malformed.
//
// Validate is a pure function with no side effects.
func Validate(q Query) error {
	if !ValidIdent(q.Type) {
		return fmt.Errorf("invalid type name %q", q.Type)
	}
	for _, c := range q.Columns.Names {
		if !ValidIdent(c) {
			return fmt.Errorf("invalid column name %q", c)
		}
	}
	if err := validatePredicate(q.Filter); err != nil {
		return err
	}
	if q.Link != nil {
		if !ValidIdent(q.Link.Type) || !ValidIdent(q.Link.From) || !ValidIdent(q.Link.To) {
			return fmt.Errorf("invalid link %s.%s -> %s", q.Link.Type, q.Link.From, q.Link.To)
		}
		if err := validatePredicate(q.Link.Filter); err != nil {
			return fmt.Errorf("link %s: %w", q.Link.Type, err)
		}
	}
	return nil
}

func validatePredicate(p Predicate) error {
	field := ""
	switch pred := p.(type) {
	case nil:
		return nil
	case Equals:
		field = pred.Field
	case NotEquals:
		field = pred.Field
	case In:
		field = pred.Field
	case NotIn:
		field = pred.Field
	case IsNull:
		field = pred.Field
	case NotNull:
		field = pred.Field
	case BeginsWith:
		field = pred.Field
	case NotBeginsWith:
		field = pred.Field
	case And:
		for _, sub := range pred.Predicates {
			if err := validatePredicate(sub); err != nil {
				return err
			}
		}
		return nil
	case Or:
		for _, sub := range pred.Predicates {
			if err := validatePredicate(sub); err != nil {
				return err
			}
		}
		return nil
	default:
		return fmt.Errorf("unsupported predicate type: %T", p)
	}
	if !ValidIdent(field) {
		return fmt.Errorf("invalid field name %q", field)
	}
	return nil
}
