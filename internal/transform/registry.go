package transform

import (
	"strings"
)

type ruleKey struct {
	typ, attr, value string
}

type attrKey struct {
	typ, attr string
}

// Registry is an append-only, indexed list of rules.
//
// The registry is not safe for concurrent mutation. Seeding runs after the
// startup fan-out has joined and the upsert phase only reads.
type Registry struct {
	rules  []Rule
	index  map[ruleKey][]int
	byAttr map[attrKey]int
}

// NewRegistry creates a registry holding rules in order.
func NewRegistry(rules ...Rule) *Registry {
	r := &Registry{
		index:  make(map[ruleKey][]int),
		byAttr: make(map[attrKey]int),
	}
	for _, rule := range rules {
		r.Add(rule)
	}
	return r
}

func keyOf(typ, attr, value string) ruleKey {
	return ruleKey{strings.ToLower(typ), strings.ToLower(attr), strings.ToLower(value)}
}

// Add appends a rule. Duplicates are kept; the first one added wins lookups.
func (r *Registry) Add(rule Rule) {
	i := len(r.rules)
	r.rules = append(r.rules, rule)
	k := keyOf(rule.TargetType, rule.TargetAttribute, rule.MatchValue)
	r.index[k] = append(r.index[k], i)
	r.byAttr[attrKey{k.typ, k.attr}]++
}

// first returns the first rule under k that has a replacement.
func (r *Registry) first(k ruleKey) (Rule, bool) {
	for _, i := range r.index[k] {
		if r.rules[i].Replacement != "" {
			return r.rules[i], true
		}
	}
	return Rule{}, false
}

// Exact returns the first rule matching value exactly.
func (r *Registry) Exact(typ, attr, value string) (Rule, bool) {
	if value == Wildcard {
		return Rule{}, false
	}
	return r.first(keyOf(typ, attr, value))
}

// Wildcard returns the first wildcard rule for (typ, attr).
func (r *Registry) Wildcard(typ, attr string) (Rule, bool) {
	return r.first(keyOf(typ, attr, Wildcard))
}

// Lookup returns the exact rule for value, falling back to the wildcard rule.
func (r *Registry) Lookup(typ, attr, value string) (Rule, bool) {
	if rule, ok := r.Exact(typ, attr, value); ok {
		return rule, true
	}
	return r.Wildcard(typ, attr)
}

// HasAttribute reports whether any rule targets (typ, attr).
func (r *Registry) HasAttribute(typ, attr string) bool {
	return r.byAttr[attrKey{strings.ToLower(typ), strings.ToLower(attr)}] > 0
}

// FindByReplacement returns the first exact (non-wildcard) rule for
// (typ, attr) whose replacement equals value (case-insensitive).
func (r *Registry) FindByReplacement(typ, attr, value string) (Rule, bool) {
	for _, rule := range r.rules {
		if !rule.IsWildcard() &&
			strings.EqualFold(rule.TargetType, typ) &&
			strings.EqualFold(rule.TargetAttribute, attr) &&
			strings.EqualFold(rule.Replacement, value) {
			return rule, true
		}
	}
	return Rule{}, false
}

// ReplaceValue swaps every replacement equal to old for new and returns how
// many rules changed.
func (r *Registry) ReplaceValue(old, new string) int {
	n := 0
	for i := range r.rules {
		if r.rules[i].Replacement == old {
			r.rules[i].Replacement = new
			n++
		}
	}
	return n
}

// ResolveQueries fills in the replacement of every query-valued rule using
// resolve. The first error stops resolution.
func (r *Registry) ResolveQueries(resolve func(Rule) (string, error)) error {
	for i := range r.rules {
		if r.rules[i].ReplacementQuery == nil || r.rules[i].Replacement != "" {
			continue
		}
		v, err := resolve(r.rules[i])
		if err != nil {
			return err
		}
		r.rules[i].Replacement = v
	}
	return nil
}

// Rules returns a copy of the rules in insertion order.
func (r *Registry) Rules() []Rule {
	out := make([]Rule, len(r.rules))
	copy(out, r.rules)
	return out
}

// Len returns the number of rules.
func (r *Registry) Len() int {
	return len(r.rules)
}
