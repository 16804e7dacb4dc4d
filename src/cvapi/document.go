package cvapi

import (
	"context"
	"sort"
	"strings"
	"unicode"
)

// Document is a node's properties document. Nodes embed it to satisfy
// Node.Properties and Invoker: every field of the document can be read by the
// snake_case form of its key, at any depth (shallowest match wins).
type Document map[string]any

func (d Document) Properties() map[string]any { return d }

func (d Document) HasOperation(name string) bool {
	_, ok := d.lookup(name)
	return ok
}

func (d Document) Invoke(_ context.Context, name string, args map[string]any) (any, error) {
	if len(args) > 0 {
		return nil, &ArgumentError{Operation: name, Reason: "read-only field takes no arguments"}
	}
	v, ok := d.lookup(name)
	if !ok {
		return nil, &NotFoundError{Resource: "field", Name: name}
	}
	return v, nil
}

func (d Document) lookup(name string) (any, bool) {
	level := []map[string]any{d}
	for len(level) > 0 {
		var next []map[string]any
		for _, m := range level {
			keys := make([]string, 0, len(m))
			for k := range m {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			for _, k := range keys {
				if SnakeCase(k) == name {
					return m[k], true
				}
			}
			for _, k := range keys {
				if child, ok := m[k].(map[string]any); ok {
					next = append(next, child)
				}
			}
		}
		level = next
	}
	return nil, false
}

// SnakeCase converts a camelCase API field name to snake_case:
// "clientId" -> "client_id", "csGUID" -> "cs_guid".
func SnakeCase(s string) string {
	rs := []rune(s)
	var b strings.Builder
	for i, r := range rs {
		if unicode.IsUpper(r) {
			if i > 0 {
				prev := rs[i-1]
				nextLower := i+1 < len(rs) && unicode.IsLower(rs[i+1])
				if unicode.IsLower(prev) || unicode.IsDigit(prev) || (unicode.IsUpper(prev) && nextLower) {
					b.WriteByte('_')
				}
			}
			b.WriteRune(unicode.ToLower(r))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
