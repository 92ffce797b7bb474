package pipeline

import (
	"github.com/rust-qt/ritual/cppmodel"
	"github.com/rust-qt/ritual/diag"
)

// Block removes every class, enum, function and method whose qualified name
// is listed in names, recording a Filtered diagnostic for each. It returns
// the number of removed entities. Types referring to a removed class no
// longer resolve, so their users are excluded later as UnresolvedType.
func Block(lib *cppmodel.Library, names []string, diags *diag.Collector) int {
	if len(names) == 0 {
		return 0
	}
	blocked := make(map[string]bool, len(names))
	for _, n := range names {
		blocked[n] = true
	}
	removed := 0

	for _, c := range lib.Classes() {
		if c.Dependency != "" {
			continue
		}
		if blocked[c.QualifiedName()] || blocked[c.ID()] {
			lib.RemoveClass(c)
			diags.Report(diag.Filtered, c.ID(), "blocked by name")
			removed++
			continue
		}
		for _, m := range append([]*cppmodel.Function(nil), c.Methods...) {
			if blocked[m.FullName()] {
				lib.RemoveFunction(m)
				diags.Report(diag.Filtered, m.FullName(), "blocked by name")
				removed++
			}
		}
	}
	for _, f := range lib.Functions() {
		if blocked[f.FullName()] {
			lib.RemoveFunction(f)
			diags.Report(diag.Filtered, f.FullName(), "blocked by name")
			removed++
		}
	}

	keep := func(list []*cppmodel.Enum) []*cppmodel.Enum {
		out := list[:0]
		for _, e := range list {
			if blocked[e.QualifiedName()] && e.Dependency == "" {
				diags.Report(diag.Filtered, e.QualifiedName(), "blocked by name")
				removed++
				continue
			}
			out = append(out, e)
		}
		return out
	}
	for _, ns := range lib.Namespaces() {
		ns.Enums = keep(ns.Enums)
	}
	for _, c := range lib.Classes() {
		c.Enums = keep(c.Enums)
	}
	lib.Reindex()
	return removed
}
