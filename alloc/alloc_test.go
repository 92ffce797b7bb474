package alloc

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/rust-qt/ritual/cppmodel"
	"github.com/rust-qt/ritual/diag"
)

func method(scope, name string, virtual bool) *cppmodel.Function {
	return &cppmodel.Function{Name: name, Scope: scope, Member: true, Virtual: virtual, Return: cppmodel.VoidType()}
}

func sizesFor(platforms []string, ids ...string) map[string]map[string]int {
	out := make(map[string]map[string]int)
	for _, p := range platforms {
		out[p] = make(map[string]int)
		for _, id := range ids {
			out[p][id] = 8
		}
	}
	return out
}

func TestClassifyRules(t *testing.T) {
	lib := cppmodel.NewLibrary("shapes")
	ns := lib.Namespace("")
	ns.Classes = []*cppmodel.Class{
		{Name: "Point"},
		{Name: "Shape", Methods: []*cppmodel.Function{method("Shape", "area", true)}},
		{Name: "Circle", Bases: []cppmodel.TypeRef{cppmodel.ClassType("Shape")}},
		{Name: "Handle", Incomplete: true},
		{Name: "Layout", SizeDependent: true},
		{Name: "Node"},
		{Name: "Blob"},
		{Name: "Token"},
	}
	ns.Functions = []*cppmodel.Function{
		{Name: "createNode", Return: cppmodel.MustParseType("Node*")},
		{Name: "adopt", Params: []cppmodel.Param{{Name: "b", Type: cppmodel.MustParseType("Blob*"), Owning: true}},
			Return: cppmodel.VoidType()},
		{Name: "peek", Return: cppmodel.MustParseType("Token*")},
	}
	lib.Resolve()

	platforms := []string{"linux-x86_64"}
	diags := diag.NewCollector()
	table := Classify(lib, Options{
		Platforms:  platforms,
		Sizes:      sizesFor(platforms, "Point", "Token"),
		ValueTypes: []string{"Shape", "Node"},
	}, diags)

	tests := []struct {
		id   string
		want Strategy
	}{
		{"Point", Value},
		{"Shape", Owned},
		{"Circle", Owned},
		{"Handle", Owned},
		{"Layout", Owned},
		{"Node", Owned},
		{"Blob", Owned},
		{"Token", Value},
	}
	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			if got := table.Strategy(tt.id); got != tt.want {
				v, _ := table.Get(tt.id)
				t.Errorf("Strategy(%s) = %s (%s), want %s", tt.id, got, v.Reason, tt.want)
			}
		})
	}
	if got := diags.Count(diag.Dropped); got != 2 {
		t.Errorf("ignored overrides should be reported once each, got %d: %v", got, diags.Items())
	}
	if v, _ := table.Get("Node"); v.Reason != "passed or returned as an owning pointer" {
		t.Errorf("Node reason = %q", v.Reason)
	}
	if diags.Count(diag.SizeIndeterminate) != 0 {
		t.Errorf("unexpected size diagnostics: %v", diags.Items())
	}
}

func TestValueWithoutSizeIsIndeterminate(t *testing.T) {
	lib := cppmodel.NewLibrary("geo")
	lib.Namespace("").Classes = []*cppmodel.Class{{Name: "Point"}}
	lib.Reindex()

	diags := diag.NewCollector()
	Classify(lib, Options{
		Platforms: []string{"linux-x86_64", "windows-x86_64"},
		Sizes:     sizesFor([]string{"linux-x86_64"}, "Point"),
	}, diags)
	if !diags.Excluded("Point") {
		t.Fatalf("Point should be excluded, diagnostics: %v", diags.Items())
	}
	if diags.Items()[0].Kind != diag.SizeIndeterminate {
		t.Errorf("kind = %s", diags.Items()[0].Kind)
	}
}

// Every class with a virtual method somewhere in its base chain is OWNED,
// whatever the overrides say.
func TestVirtualAlwaysOwned(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for round := 0; round < 50; round++ {
		lib := cppmodel.NewLibrary("fixture")
		ns := lib.Namespace("")
		n := 2 + rng.Intn(8)
		var ids []string
		virtual := make(map[int]bool)
		for i := 0; i < n; i++ {
			name := fmt.Sprintf("C%d", i)
			c := &cppmodel.Class{Name: name}
			if rng.Intn(3) == 0 {
				virtual[i] = true
				c.Methods = append(c.Methods, method(name, "run", true))
			}
			if i > 0 && rng.Intn(2) == 0 {
				parent := rng.Intn(i)
				c.Bases = []cppmodel.TypeRef{cppmodel.ClassType(fmt.Sprintf("C%d", parent))}
				if virtual[parent] {
					virtual[i] = true
				}
			}
			ns.Classes = append(ns.Classes, c)
			ids = append(ids, name)
		}
		lib.Reindex()

		table := Classify(lib, Options{ValueTypes: ids}, diag.NewCollector())
		for i, id := range ids {
			if virtual[i] && table.Strategy(id) != Owned {
				t.Fatalf("round %d: %s is polymorphic but classified %s", round, id, table.Strategy(id))
			}
			if !virtual[i] && table.Strategy(id) != Value {
				t.Fatalf("round %d: %s forced to VALUE but classified %s", round, id, table.Strategy(id))
			}
		}
	}
}

func TestFixedVerdictsWin(t *testing.T) {
	lib := cppmodel.NewLibrary("app")
	lib.Namespace("core").Classes = []*cppmodel.Class{{Name: "String", Scope: "core", Dependency: "core_crate"}}
	lib.Reindex()
	table := Classify(lib, Options{Fixed: map[string]Strategy{"core::String": Value}, Platforms: []string{"linux-x86_64"}}, diag.NewCollector())
	if table.Strategy("core::String") != Value {
		t.Errorf("dependency verdict not kept")
	}
}
