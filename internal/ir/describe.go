package ir

import (
	"fmt"
	"strings"
)

// Describe renders a record for log lines: "type id" followed by the value of
// the first name-like attribute when one exists and holds a scalar. A record
// without attributes renders as "type id".
//
// The first attribute is used when its name contains "name". Otherwise the
// first of name, fullname, baseattributename or a "*_name" attribute wins.
func Describe(r *Record) string {
	if r == nil {
		return ""
	}

	base := fmt.Sprintf("%s %s", r.Type, r.ID)
	if r.Attrs.Len() == 0 {
		return base
	}

	keys := r.Attrs.Keys()
	key := keys[0]
	if !strings.Contains(strings.ToLower(key), "name") {
		key = ""
		for _, k := range keys {
			lk := strings.ToLower(k)
			if lk == "name" || lk == "fullname" || lk == "baseattributename" || strings.Index(lk, "_name") > 0 {
				key = k
				break
			}
		}
	}
	if key == "" {
		return base
	}

	v, _ := r.Attrs.Get(key)
	if IsNull(v) {
		return base
	}
	if !IsPrimitive(v) {
		return base + " "
	}
	return base + " " + Format(v)
}
