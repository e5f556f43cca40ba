package engine

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/roach88/remap/internal/ir"
)

// firstCustomTypeCode is where custom type codes start. Lower codes belong to
// standard types and are the same in every environment.
const firstCustomTypeCode = 10000

// targetTypeCode finds the target's type code for an option-coded type
// reference, using the option's label to look the type up. It returns false
// when the code needs no change or the type is unknown to the target.
func (e *Engine) targetTypeCode(opt ir.Option) (int, bool, error) {
	if opt.Code < firstCustomTypeCode || strings.TrimSpace(opt.Label) == "" {
		return 0, false, nil
	}
	d, found, err := e.catalog.Find(opt.Label)
	if err != nil || !found {
		return 0, false, err
	}
	if !d.IsCustom || d.TypeCode == opt.Code {
		return 0, false, nil
	}
	return d.TypeCode, true, nil
}

// fixRuleTypeCode remaps one of a duplicate rule's entity type codes.
func (e *Engine) fixRuleTypeCode(rec *ir.Record, attr string) error {
	opt, ok := rec.Get(attr).(ir.Option)
	if !ok {
		return nil
	}
	code, changed, err := e.targetTypeCode(opt)
	if err != nil || !changed {
		return err
	}
	rec.Set(attr, ir.Option{Code: code, Label: opt.Label})
	return nil
}

// fixSLATypeCode remaps the type an SLA applies to. When the label does not
// name a target type, the transform rules for (sla, objecttypecode) are
// consulted instead.
func (e *Engine) fixSLATypeCode(rec *ir.Record) error {
	opt, ok := rec.Get("objecttypecode").(ir.Option)
	if !ok || opt.Code < firstCustomTypeCode {
		return nil
	}

	if strings.TrimSpace(opt.Label) != "" {
		d, found, err := e.catalog.Find(opt.Label)
		if err != nil {
			return err
		}
		if found {
			if d.IsCustom && d.TypeCode != opt.Code {
				setSLATypeCode(rec, d.TypeCode, opt.Label)
			}
			return nil
		}
	}

	old := strconv.Itoa(opt.Code)
	replacement, ok := e.resolver.Replacement(rec.Type, "objecttypecode", old)
	if !ok || strings.TrimSpace(replacement) == "" || replacement == old {
		return nil
	}
	code, err := strconv.Atoi(strings.TrimSpace(replacement))
	if err != nil {
		return fmt.Errorf("objecttypecode replacement %q: %w", replacement, err)
	}
	setSLATypeCode(rec, code, opt.Label)
	return nil
}

func setSLATypeCode(rec *ir.Record, code int, label string) {
	rec.Set("objecttypecode", ir.Option{Code: code, Label: label})
	rec.Set("primaryentityotc", ir.Int(code))
}
