// Package overload turns the declarations of a library into resolved
// methods: every overload gets a unique wrapper symbol, platform-colliding
// overloads are merged under guards and each method gets its canonical host
// names plus, where a name is overloaded, a dispatch entry point.
package overload

import (
	"sort"

	"github.com/tliron/commonlog"

	"github.com/rust-qt/ritual/alloc"
	"github.com/rust-qt/ritual/cppmodel"
	"github.com/rust-qt/ritual/diag"
	"github.com/rust-qt/ritual/typemap"
)

var log = commonlog.GetLogger("ritual.overload")

// Input is what Resolve works on. The mapper must consult Diags when it
// checks for excluded classes, so that scopes dropped by one pass are seen
// by the next.
type Input struct {
	Library *cppmodel.Library
	Mapper  *typemap.Mapper
	Diags   *diag.Collector
	// Reserved lists wrapper symbols owned by dependencies.
	Reserved []string
}

// Result is the resolved surface of a library.
type Result struct {
	Methods  []*Method
	Groups   []*Group
	Registry *Registry
}

// Resolve resolves every emittable function of the library. Entities that
// fail are recorded in in.Diags and left out; a wrapper symbol collision
// inside one scope drops that scope and the run is repeated without it.
func Resolve(in Input) *Result {
	if n := in.Mapper.CheckHostNames(in.Diags); n > 0 {
		log.Warningf("%d classes or enums left out on host name collisions", n)
	}
	for pass := 1; ; pass++ {
		pd := diag.NewCollector()
		res, collisions := resolveOnce(in, pd)
		if len(collisions) == 0 {
			in.Diags.Merge(pd)
			log.Infof("resolved %d methods and %d dispatch groups in %d passes", len(res.Methods), len(res.Groups), pass)
			return res
		}
		for _, d := range collisions {
			in.Diags.Add(d)
		}
		log.Warningf("pass %d dropped %d scopes on symbol collisions, resolving again", pass, len(collisions))
	}
}

func resolveOnce(in Input, diags *diag.Collector) (*Result, []*diag.Diagnostic) {
	methods := collect(in, diags)

	var scopes []string
	byScope := make(map[string][]*Method)
	for _, m := range methods {
		s := m.Scope()
		if _, ok := byScope[s]; !ok {
			scopes = append(scopes, s)
		}
		byScope[s] = append(byScope[s], m)
	}
	reg := NewRegistry(in.Reserved)
	var collisions []*diag.Diagnostic
	for _, s := range scopes {
		if d := assignScope(reg, byScope[s], diags); d != nil {
			collisions = append(collisions, d)
		}
	}
	if len(collisions) > 0 {
		return nil, collisions
	}

	res := &Result{Registry: reg}
	dropped := make(map[*Method]bool)
	for _, set := range collectNameSets(in.Mapper, methods) {
		before := set.methods
		kept := mergePlatforms(set, in.Mapper.Platforms(), diags)
		if len(kept) != len(before) {
			keep := make(map[*Method]bool, len(kept))
			for _, m := range kept {
				keep[m] = true
			}
			for _, m := range before {
				if !keep[m] {
					dropped[m] = true
				}
			}
		}
		assignRustNames(set)
		assignGoNames(set, diags)
		res.Groups = append(res.Groups, buildGroups(in.Mapper, set, diags)...)
	}
	for _, m := range methods {
		if m.Full != nil && dropped[m.Full] {
			dropped[m] = true
		}
		if !dropped[m] {
			res.Methods = append(res.Methods, m)
		}
	}
	for _, g := range res.Groups {
		var members []*Method
		for _, m := range g.Members {
			if !dropped[m] {
				members = append(members, m)
			} else {
				m.Dispatch = nil
			}
		}
		g.Members = members
	}
	resolveHostCollisions(in.Mapper, res.Methods, res.Groups, diags)
	sortGroups(res.Groups)
	return res, nil
}

// collect builds the methods of every emittable class and free function,
// including implicit constructors and destructors, accessors, casts and
// default-argument variants. Forward-declared classes get nothing.
func collect(in Input, diags *diag.Collector) []*Method {
	lib := in.Library
	var out []*Method
	add := func(f *cppmodel.Function, c *cppmodel.Class) *Method {
		if in.Diags.Excluded(f.ID()) {
			return nil
		}
		m, err := build(in.Mapper, f, c)
		if err != nil {
			diags.AddError(f.ID(), err)
			return nil
		}
		out = append(out, m)
		return m
	}
	withVariants := func(f *cppmodel.Function, c *cppmodel.Class) {
		full := add(f, c)
		if full == nil {
			return
		}
		for _, v := range cppmodel.DefaultArgVariants(f) {
			if m := add(v, c); m != nil {
				m.Full = full
			}
		}
	}

	for _, c := range lib.Classes() {
		if c.IsTemplate() || c.Dependency != "" || in.Diags.Excluded(c.ID()) {
			continue
		}
		if c.Incomplete {
			diags.Report(diag.UnresolvedType, c.ID(), "class is only forward-declared")
			continue
		}
		if in.Mapper.Strategy(c) == alloc.Unknown {
			diags.Report(diag.UnsupportedConstruct, c.ID(), "class has no allocation strategy")
			continue
		}
		for _, f := range lib.AddImplicitConstructors(c) {
			log.Debugf("%s: added %s", c.ID(), f.Synthetic)
		}
		if cppmodel.AddImplicitDestructor(c) {
			log.Debugf("%s: added implicit destructor", c.ID())
		}
		declared := make(map[string]bool)
		for _, f := range c.Methods {
			declared[f.Name] = true
		}
		for _, f := range c.Methods {
			if len(f.TemplateParams) > 0 {
				log.Debugf("skipping member template %s", f.ID())
				continue
			}
			withVariants(f, c)
		}
		for _, f := range cppmodel.FieldAccessors(c) {
			if declared[f.Name] {
				diags.Report(diag.Dropped, f.ID(), "accessor clashes with declared method %s::%s", c.ID(), f.Name)
				continue
			}
			add(f, c)
		}
		polymorphic := func(base cppmodel.TypeRef) bool {
			b, err := lib.ClassOf(base)
			return err == nil && alloc.IsPolymorphic(lib, b)
		}
		for _, f := range cppmodel.Casts(c, polymorphic) {
			add(f, c)
		}
	}
	for _, f := range lib.Functions() {
		if len(f.TemplateParams) > 0 || in.Diags.Excluded(f.Include) {
			continue
		}
		withVariants(f, nil)
	}
	return out
}

// ForClass returns the methods of class id in resolution order.
func (r *Result) ForClass(id string) []*Method {
	var out []*Method
	for _, m := range r.Methods {
		if m.Class != nil && m.Class.ID() == id {
			out = append(out, m)
		}
	}
	return out
}

// ForInclude returns the methods whose wrappers go into the files generated
// for include.
func (r *Result) ForInclude(include string) []*Method {
	var out []*Method
	for _, m := range r.Methods {
		if m.Include == include {
			out = append(out, m)
		}
	}
	return out
}

// Includes returns every include file with at least one method, sorted.
func (r *Result) Includes() []string {
	seen := make(map[string]bool)
	var out []string
	for _, m := range r.Methods {
		if !seen[m.Include] {
			seen[m.Include] = true
			out = append(out, m.Include)
		}
	}
	sort.Strings(out)
	return out
}

// Free returns the free functions emitted into namespace.
func (r *Result) Free(mapper *typemap.Mapper, namespace string) []*Method {
	var out []*Method
	for _, m := range r.Methods {
		if m.Class == nil && mapper.FunctionNamespace(m.Func) == namespace {
			out = append(out, m)
		}
	}
	return out
}

// Lookup finds a method by wrapper symbol.
func (r *Result) Lookup(symbol string) (*Method, bool) {
	for _, m := range r.Methods {
		if m.Symbol == symbol {
			return m, true
		}
	}
	return nil, false
}

// GroupsOf returns the dispatch groups attached to class, or to the free
// functions of namespace when class is nil.
func (r *Result) GroupsOf(class *cppmodel.Class, namespace string) []*Group {
	var out []*Group
	for _, g := range r.Groups {
		if class != nil && g.Class == class || class == nil && g.Class == nil && g.Namespace == namespace {
			out = append(out, g)
		}
	}
	return out
}
