package identity

import (
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/roach88/remap/internal/ir"
	"github.com/roach88/remap/internal/transform"
)

// Attributes whose ids are local to one environment and never remapped.
var unmappedAttributes = map[string]bool{
	"address1_addressid": true,
	"address2_addressid": true,
	"address3_addressid": true,
}

// Intersect types whose bare id columns point at foundation types.
var intersectKeys = map[string]map[string]string{
	"teamroles": {
		"teamid": "team",
		"roleid": "role",
	},
	"teamprofiles": {
		"teamid":                 "team",
		"fieldsecurityprofileid": "fieldsecurityprofile",
	},
}

// Resolver rewrites attribute values using a transform registry.
type Resolver struct {
	rules *transform.Registry
	same  *transform.IdentitySet
}

// NewResolver creates a resolver over rules and same.
func NewResolver(rules *transform.Registry, same *transform.IdentitySet) *Resolver {
	return &Resolver{rules: rules, same: same}
}

// ResolveRecord rewrites every attribute of rec in place. A miss leaves the
// value untouched. Errors come from malformed replacements only.
func (r *Resolver) ResolveRecord(rec *ir.Record) error {
	for _, attr := range rec.Attrs.Keys() {
		v, _ := rec.Attrs.Get(attr)
		if err := r.Resolve(rec, attr, v); err != nil {
			return err
		}
	}
	return nil
}

// Resolve rewrites one attribute value of rec.
func (r *Resolver) Resolve(rec *ir.Record, attr string, v ir.Value) error {
	if rec == nil || rec.Type == "" || attr == "" || ir.IsNull(v) {
		return nil
	}

	switch val := v.(type) {
	case ir.ID:
		if unmappedAttributes[strings.ToLower(attr)] {
			return nil
		}
		return r.resolveID(rec, attr, val.UUID())
	case ir.Ref:
		return r.resolveRef(rec, attr, val)
	case ir.String, ir.Int, ir.Float, ir.Bool:
		return r.resolvePrimitive(rec, attr, v)
	}
	return nil
}

func (r *Resolver) resolveID(rec *ir.Record, attr string, old uuid.UUID) error {
	if r.same.Contains(old) {
		return nil
	}

	sub := old
	if keys, ok := intersectKeys[strings.ToLower(rec.Type)]; ok {
		if typ, ok := keys[strings.ToLower(attr)]; ok {
			var err error
			if sub, err = r.lookupID(typ, ir.PrimaryKey(typ), old); err != nil {
				return err
			}
		}
	}

	if sub == old {
		var err error
		if sub, err = r.lookupID(rec.Type, attr, old); err != nil {
			return err
		}
	}
	if sub == uuid.Nil || sub == old {
		return nil
	}

	rec.Set(attr, ir.ID(sub))
	if strings.EqualFold(attr, rec.PrimaryKey()) {
		rec.ID = sub
	}
	return nil
}

// resolveRef tries the holding attribute's rules first, then the referenced
// type's own id rules. An owner reference may point at a team whose mapping
// is only registered as (team, teamid).
func (r *Resolver) resolveRef(rec *ir.Record, attr string, old ir.Ref) error {
	if r.same.Contains(old.ID) {
		return nil
	}

	refKey := ir.PrimaryKey(old.Type)
	if !r.rules.HasAttribute(rec.Type, attr) && !r.rules.HasAttribute(old.Type, refKey) {
		return nil
	}

	sub, err := r.lookupID(rec.Type, attr, old.ID)
	if err != nil {
		return err
	}
	if sub == old.ID {
		if sub, err = r.lookupID(old.Type, refKey, old.ID); err != nil {
			return err
		}
	}
	if sub == uuid.Nil || sub == old.ID {
		return nil
	}

	rec.Set(attr, ir.Ref{Type: old.Type, ID: sub, Name: old.Name})
	return nil
}

func (r *Resolver) resolvePrimitive(rec *ir.Record, attr string, v ir.Value) error {
	text := ir.Text(v)
	rule, ok := r.rules.Lookup(rec.Type, attr, text)
	if !ok || strings.EqualFold(rule.Replacement, text) {
		return nil
	}

	replacement, err := ir.Convert(rule.Replacement, v)
	if err != nil {
		return fmt.Errorf("transform %s.%s: %w", rec.Type, attr, err)
	}
	rec.Set(rule.Attr(), replacement)
	return nil
}

// lookupID returns the mapped id, or id itself when no rule matches.
func (r *Resolver) lookupID(typ, attr string, id uuid.UUID) (uuid.UUID, error) {
	rule, ok := r.rules.Lookup(typ, attr, id.String())
	if !ok {
		return id, nil
	}
	sub, err := uuid.Parse(rule.Replacement)
	if err != nil {
		return id, fmt.Errorf("transform %s.%s: replacement %q is not an id: %w", typ, attr, rule.Replacement, err)
	}
	return sub, nil
}

// MapID returns the target id for a source id of typ, or id when unmapped.
func (r *Resolver) MapID(typ string, id uuid.UUID) uuid.UUID {
	if r.same.Contains(id) {
		return id
	}
	sub, err := r.lookupID(typ, ir.PrimaryKey(typ), id)
	if err != nil {
		return id
	}
	return sub
}

// Replacement returns the replacement text for a primitive value, if any.
func (r *Resolver) Replacement(typ, attr, value string) (string, bool) {
	rule, ok := r.rules.Lookup(typ, attr, value)
	if !ok {
		return "", false
	}
	return rule.Replacement, true
}
