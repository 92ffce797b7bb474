// Package alloc decides, per class, whether instances live on the heap
// behind an owning pointer (OWNED) or inline in caller-provided storage of
// the class's probed size (VALUE).
package alloc

import (
	"sort"
	"strings"

	"github.com/tliron/commonlog"

	"github.com/rust-qt/ritual/cppmodel"
	"github.com/rust-qt/ritual/diag"
)

var log = commonlog.GetLogger("ritual.alloc")

// Strategy is an allocation strategy.
type Strategy int

const (
	Unknown Strategy = iota
	Owned
	Value
)

func (s Strategy) String() string {
	switch s {
	case Owned:
		return "OWNED"
	case Value:
		return "VALUE"
	}
	return "UNKNOWN"
}

// ParseStrategy is the inverse of Strategy.String.
func ParseStrategy(s string) Strategy {
	switch strings.ToUpper(s) {
	case "OWNED":
		return Owned
	case "VALUE":
		return Value
	}
	return Unknown
}

// Verdict is the classification of one class.
type Verdict struct {
	Strategy Strategy
	Reason   string
}

// Options carries configuration and probe results.
type Options struct {
	// ValueTypes and OwnedTypes override the default rule. A polymorphic or
	// incomplete class is never forced to VALUE.
	ValueTypes []string
	OwnedTypes []string
	// Sizes maps platform name to class identity to byte size.
	Sizes map[string]map[string]int
	// Platforms lists the platforms every VALUE class needs a size for.
	Platforms []string
	// Fixed carries verdicts recorded for dependency classes.
	Fixed map[string]Strategy
}

// Table holds the verdict for every classified class.
type Table struct {
	verdicts map[string]Verdict
	sizes    map[string]map[string]int
}

// NewTable returns an empty table; Set fills it.
func NewTable() *Table {
	return &Table{verdicts: make(map[string]Verdict), sizes: make(map[string]map[string]int)}
}

// Set records a verdict.
func (t *Table) Set(id string, v Verdict) { t.verdicts[id] = v }

// Get returns the verdict for a class identity.
func (t *Table) Get(id string) (Verdict, bool) {
	v, ok := t.verdicts[id]
	return v, ok
}

// Strategy returns the strategy for a class identity, Unknown if unclassified.
func (t *Table) Strategy(id string) Strategy { return t.verdicts[id].Strategy }

// Size returns the probed size of a VALUE class on a platform.
func (t *Table) Size(id, platform string) (int, bool) {
	n, ok := t.sizes[platform][id]
	return n, ok
}

// IDs returns the classified class identities in sorted order.
func (t *Table) IDs() []string {
	out := make([]string, 0, len(t.verdicts))
	for id := range t.verdicts {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

var factoryPrefixes = []string{"create", "make", "new", "clone"}

// Classify assigns a strategy to every non-template class of lib. VALUE
// classes lacking a probed size for some platform get SizeIndeterminate.
func Classify(lib *cppmodel.Library, opts Options, diags *diag.Collector) *Table {
	t := NewTable()
	for platform, sizes := range opts.Sizes {
		t.sizes[platform] = sizes
	}

	owning := observeOwningPointers(lib)
	forcedValue := toSet(opts.ValueTypes)
	forcedOwned := toSet(opts.OwnedTypes)
	poly := polymorphism(lib)

	for _, c := range lib.Classes() {
		if c.IsTemplate() {
			continue
		}
		id := c.ID()
		if s, ok := opts.Fixed[id]; ok {
			t.Set(id, Verdict{Strategy: s, Reason: "recorded by dependency " + c.Dependency})
			continue
		}
		v := classify(c, poly(c), owning[id], forcedValue[id], forcedOwned[id])
		if forcedValue[id] && v.Strategy == Owned {
			log.Warningf("value_types override ignored for %s: %s", id, v.Reason)
			diags.Report(diag.Dropped, id, "value_types override ignored: %s", v.Reason)
		}
		t.Set(id, v)
		log.Debugf("%s is %s (%s)", id, v.Strategy, v.Reason)

		if v.Strategy == Value && c.Dependency == "" {
			for _, p := range opts.Platforms {
				if _, ok := t.Size(id, p); !ok {
					diags.Report(diag.SizeIndeterminate, id, "no probed size for platform %s", p)
					break
				}
			}
		}
	}
	return t
}

func classify(c *cppmodel.Class, polymorphic, owningObserved, forceValue, forceOwned bool) Verdict {
	switch {
	case polymorphic:
		return Verdict{Owned, "has virtual methods"}
	case c.Incomplete:
		return Verdict{Owned, "incomplete type"}
	case c.SizeDependent:
		return Verdict{Owned, "size depends on an unresolved platform macro"}
	case owningObserved:
		return Verdict{Owned, "passed or returned as an owning pointer"}
	case forceValue:
		return Verdict{Value, "value_types override"}
	case forceOwned:
		return Verdict{Owned, "owned_types override"}
	}
	return Verdict{Value, "default"}
}

// polymorphism returns a memoized predicate: does the class or any base
// declare a virtual method.
func polymorphism(lib *cppmodel.Library) func(*cppmodel.Class) bool {
	memo := make(map[*cppmodel.Class]bool)
	visiting := make(map[*cppmodel.Class]bool)
	var visit func(c *cppmodel.Class) bool
	visit = func(c *cppmodel.Class) bool {
		if v, ok := memo[c]; ok {
			return v
		}
		if visiting[c] {
			return false
		}
		visiting[c] = true
		result := c.HasDeclaredVirtual()
		for _, b := range c.Bases {
			if result {
				break
			}
			if base, err := lib.ClassOf(b.Pointee().WithConst(false)); err == nil {
				result = visit(base)
			}
		}
		delete(visiting, c)
		memo[c] = result
		return result
	}
	return visit
}

// IsPolymorphic reports whether c or one of its bases declares a virtual method.
func IsPolymorphic(lib *cppmodel.Library, c *cppmodel.Class) bool {
	return polymorphism(lib)(c)
}

// observeOwningPointers collects classes seen crossing a call as an owning
// pointer: annotated owning parameters and returns, plus factory-shaped
// functions returning a non-const T*.
func observeOwningPointers(lib *cppmodel.Library) map[string]bool {
	out := make(map[string]bool)
	mark := func(t cppmodel.TypeRef) {
		if t.Kind == cppmodel.KindClass && t.Indirection == cppmodel.Pointer {
			out[t.BaseName()] = true
		}
	}
	check := func(f *cppmodel.Function) {
		for _, p := range f.Params {
			if p.Owning {
				mark(p.Type)
			}
		}
		if f.OwningReturn || IsFactory(f) {
			mark(f.Return)
		}
	}
	for _, f := range lib.Functions() {
		check(f)
	}
	for _, c := range lib.Classes() {
		if c.IsTemplate() {
			continue
		}
		for _, m := range c.Methods {
			check(m)
		}
	}
	return out
}

// IsFactory reports whether f looks like a factory: a static or free function
// returning a non-const T* whose name starts with create, make, new or clone.
func IsFactory(f *cppmodel.Function) bool {
	if f.Member && !f.Static {
		return false
	}
	if f.Return.Indirection != cppmodel.Pointer || f.Return.Const {
		return false
	}
	name := strings.ToLower(f.Name)
	for _, p := range factoryPrefixes {
		if strings.HasPrefix(name, p) {
			return true
		}
	}
	return false
}

func toSet(items []string) map[string]bool {
	out := make(map[string]bool, len(items))
	for _, s := range items {
		out[s] = true
	}
	return out
}
