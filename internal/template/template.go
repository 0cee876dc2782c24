// Package template implements the engine's {{dotted.key}} substitution
// grammar, kept pure over a (template string, lookup function) pair so
// it has no dependency on how the lookup values are stored.
package template

import (
	"fmt"
	"regexp"
	"strings"
)

var tokenPattern = regexp.MustCompile(`\{\{\s*([a-zA-Z0-9_.]+)\s*\}\}`)

// Lookup resolves a dotted path to a value. ok is false when the path is
// unresolved, in which case the token is left in the output verbatim.
type Lookup func(path string) (interface{}, bool)

// Render substitutes every {{dotted.key}} token in s using lookup. A
// template consisting of exactly one token with nothing else around it
// renders to that value's native type (so a {{count}} that resolves to
// an int stays an int); anything else renders as a string with each
// token's fmt.Sprint-ed value spliced in. Unresolved tokens are left
// untouched, so re-rendering an already-rendered string is a no-op
// (idempotence, spec.md invariant 5).
func Render(s string, lookup Lookup) interface{} {
	matches := tokenPattern.FindAllStringSubmatchIndex(s, -1)
	if len(matches) == 1 && matches[0][0] == 0 && matches[0][1] == len(s) {
		path := s[matches[0][2]:matches[0][3]]
		if v, ok := lookup(path); ok {
			return v
		}
		return s
	}

	return tokenPattern.ReplaceAllStringFunc(s, func(tok string) string {
		m := tokenPattern.FindStringSubmatch(tok)
		path := m[1]
		v, ok := lookup(path)
		if !ok {
			return tok
		}
		return fmt.Sprint(v)
	})
}

// RenderAny walks a value (string/map/slice, recursively) and renders
// every string it finds. Non-string scalars pass through unchanged.
func RenderAny(v interface{}, lookup Lookup) interface{} {
	switch t := v.(type) {
	case string:
		return Render(t, lookup)
	case map[string]interface{}:
		out := make(map[string]interface{}, len(t))
		for k, val := range t {
			out[k] = RenderAny(val, lookup)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(t))
		for i, val := range t {
			out[i] = RenderAny(val, lookup)
		}
		return out
	default:
		return v
	}
}

// HasToken reports whether s contains at least one {{...}} token.
func HasToken(s string) bool {
	return strings.Contains(s, "{{") && tokenPattern.MatchString(s)
}
