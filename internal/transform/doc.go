// Package transform holds the rewrite rules that translate source values
// into target values, and the set of identifiers known to be identical in
// both environments.
//
// A Rule matches (type, attribute, value). The value may be the wildcard
// "*", which matches anything. Lookup is two explicit steps:
//
//  1. Exact: the first rule (insertion order) for (type, attribute, value)
//  2. Wildcard: the first rule for (type, attribute, "*")
//
// An exact rule always beats a wildcard rule, whatever order they were
// added in. Type, attribute and value are compared case-insensitively.
//
// Rules are loaded from YAML, JSON or CUE files (see LoadFile) and are
// extended at run time by environment seeding in the identity package.
package transform
