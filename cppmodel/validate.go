package cppmodel

import (
	"strings"

	"github.com/rust-qt/ritual/diag"
)

// Validate enforces the sibling rule: no two entities of one scope share a
// name and kind. The later duplicate is removed and reported as
// NameCollision. Functions are exempt; same-name functions form overload sets.
func (l *Library) Validate(diags *diag.Collector) {
	for _, ns := range l.Namespaces() {
		seen := make(map[string]bool)
		ns.Namespaces = keepUnique(ns.Namespaces, seen, diags, func(n *Namespace) (string, string) {
			return "namespace:" + n.Name, n.Path
		})
		ns.Classes = keepUnique(ns.Classes, seen, diags, func(c *Class) (string, string) {
			return "class:" + c.Name, c.ID()
		})
		ns.Enums = keepUnique(ns.Enums, seen, diags, func(e *Enum) (string, string) {
			return "enum:" + e.Name, e.QualifiedName()
		})
	}
	for _, c := range l.Classes() {
		seen := make(map[string]bool)
		c.Classes = keepUnique(c.Classes, seen, diags, func(n *Class) (string, string) {
			return "class:" + n.Name, n.ID()
		})
		c.Enums = keepUnique(c.Enums, seen, diags, func(e *Enum) (string, string) {
			return "enum:" + e.Name, e.QualifiedName()
		})
		c.Fields = keepUnique(c.Fields, seen, diags, func(f *Field) (string, string) {
			return "field:" + f.Name, join(c.ID(), f.Name)
		})
	}
	for _, e := range l.Enums() {
		seen := make(map[string]bool)
		e.Values = keepUnique(e.Values, seen, diags, func(v EnumValue) (string, string) {
			return "value:" + v.Name, join(e.QualifiedName(), v.Name)
		})
	}
	l.Reindex()
}

func keepUnique[T any](items []T, seen map[string]bool, diags *diag.Collector, key func(T) (string, string)) []T {
	out := items[:0]
	for _, it := range items {
		k, id := key(it)
		if seen[k] {
			kind, _, _ := strings.Cut(k, ":")
			diags.Report(diag.NameCollision, id, "duplicate %s in the same scope", kind)
			continue
		}
		seen[k] = true
		out = append(out, it)
	}
	return out
}
