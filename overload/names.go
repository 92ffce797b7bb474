package overload

import (
	"fmt"
	"hash/fnv"
	"sort"
	"strings"

	"github.com/rust-qt/ritual/cppmodel"
	"github.com/rust-qt/ritual/diag"
	"github.com/rust-qt/ritual/typemap"
)

// GoReserved are method names the Go host defines on every handle type.
var GoReserved = map[string]bool{"Delete": true, "Pointer": true}

// SignatureHash is the deterministic suffix of an overload's canonical host
// name: eight hex digits of the FNV-1a hash of its parameter types.
func SignatureHash(f *cppmodel.Function) string {
	types := make([]string, len(f.Params))
	for i, p := range f.Params {
		types[i] = p.Type.Unqualified().String()
	}
	h := fnv.New32a()
	h.Write([]byte(strings.Join(types, ",")))
	if f.Static {
		h.Write([]byte(" static"))
	}
	return fmt.Sprintf("%08x", h.Sum32())
}

// baseHostName is the snake_case Rust name before disambiguation. Copy
// constructors are named apart from the other constructors of c.
func baseHostName(f *cppmodel.Function, c *cppmodel.Class) string {
	switch {
	case c != nil && f.IsCopyConstructor(c):
		return "new_copy"
	case f.IsConstructor():
		return "new"
	case f.IsDestructor():
		return "delete"
	case f.Operator == cppmodel.OpConversion && f.ConversionType != nil:
		return "to_" + typemap.SnakeCase(f.ConversionType.Caption(false))
	case f.Operator != cppmodel.OpNone:
		return "op_" + f.Operator.CName()
	}
	name := f.Name
	if len(f.TemplateArgs) > 0 {
		args := make([]string, len(f.TemplateArgs))
		for i, a := range f.TemplateArgs {
			args[i] = a.Caption(false)
		}
		name += "_" + strings.Join(args, "_")
	}
	return typemap.RustFunctionName(name)
}

// paramKey identifies an overload's parameter list regardless of the receiver.
func paramKey(f *cppmodel.Function) string {
	types := make([]string, len(f.Params))
	for i, p := range f.Params {
		types[i] = p.Type.Unqualified().String()
	}
	key := strings.Join(types, ",")
	if f.Static {
		key = "static " + key
	}
	return key
}

// hostScope is the host entity methods are attached to: the class, or the
// module of a free function.
func hostScope(mapper *typemap.Mapper, m *Method) string {
	if m.Class != nil {
		return "class " + m.Class.ID()
	}
	return "module " + strings.Join(mapper.ModulePath(mapper.FunctionNamespace(m.Func)), "::")
}

// nameSet is every method sharing a host scope and base host name.
type nameSet struct {
	scope   string
	base    string
	methods []*Method
}

func collectNameSets(mapper *typemap.Mapper, methods []*Method) []*nameSet {
	index := make(map[string]*nameSet)
	var out []*nameSet
	for _, m := range methods {
		if m.Func.IsDestructor() {
			continue
		}
		scope, base := hostScope(mapper, m), baseHostName(m.Func, m.Class)
		key := scope + "\x00" + base
		s, ok := index[key]
		if !ok {
			s = &nameSet{scope: scope, base: base}
			index[key] = s
			out = append(out, s)
		}
		s.methods = append(s.methods, m)
	}
	return out
}

// assignRustNames gives every method its canonical Rust name. A set with one
// parameter list keeps the base name; otherwise each member is suffixed with
// its SignatureHash. A const method whose parameter list also exists with a
// mutable receiver is suffixed with "_const".
func assignRustNames(set *nameSet) {
	lists := make(map[string]bool)
	mutable := make(map[string]bool)
	for _, m := range set.methods {
		k := paramKey(m.Func)
		lists[k] = true
		if m.Receiver == MutSelf {
			mutable[k] = true
		}
	}
	for _, m := range set.methods {
		name := set.base
		if len(lists) > 1 {
			name += "_" + SignatureHash(m.Func)
		}
		if m.Receiver == ConstSelf && mutable[paramKey(m.Func)] {
			name += "_const"
		}
		m.RustName = name
	}
}

// assignGoNames gives every method its Go name. Go has no const receivers:
// of a const/mutable pair only the const variant is exposed.
func assignGoNames(set *nameSet, diags *diag.Collector) {
	consts := make(map[string]bool)
	for _, m := range set.methods {
		if m.Receiver == ConstSelf {
			consts[paramKey(m.Func)] = true
		}
	}
	for _, m := range set.methods {
		if m.Receiver == MutSelf && consts[paramKey(m.Func)] {
			m.GoName = ""
			diags.Report(diag.Dropped, m.ID(), "not exposed in Go: the const overload is kept")
			continue
		}
		if goUnsupported(m) {
			m.GoName = ""
			diags.Report(diag.Dropped, m.ID(), "not exposed in Go: signature has no cgo equivalent")
			continue
		}
		m.GoName = typemap.GoExported(strings.TrimSuffix(m.RustName, "_const"))
	}
}

func goUnsupported(m *Method) bool {
	for _, a := range m.Args {
		if a.Map.Go.Kind == typemap.GoUnsupported {
			return true
		}
	}
	return m.Return != nil && m.Return.Go.Kind == typemap.GoUnsupported
}

// resolveHostCollisions renames host names that end up shared inside one
// host scope, for example "setX" and "set_x", or a canonical name equal to a
// dispatch entry point. Names are assigned in declaration order so the first
// declaration keeps its name.
func resolveHostCollisions(mapper *typemap.Mapper, methods []*Method, groups []*Group, diags *diag.Collector) {
	dispatch := make(map[string][]string)
	for _, g := range groups {
		dispatch[g.hostScope] = append(dispatch[g.hostScope], g.Name)
	}
	byScope := make(map[string][]*Method)
	var scopes []string
	for _, m := range methods {
		if m.Func.IsDestructor() {
			continue
		}
		s := hostScope(mapper, m)
		if _, ok := byScope[s]; !ok {
			scopes = append(scopes, s)
		}
		byScope[s] = append(byScope[s], m)
	}
	sort.Strings(scopes)
	for _, s := range scopes {
		rust := make(map[string]bool)
		for _, name := range dispatch[s] {
			rust[name] = true
		}
		goNames := make(map[string]bool)
		for name := range GoReserved {
			goNames[name] = true
		}
		for _, m := range byScope[s] {
			if rust[m.RustName] {
				old := m.RustName
				m.RustName = uniqueName(old, rust)
				diags.Report(diag.Renamed, m.ID(), "Rust name %s renamed to %s: already used in %s", old, m.RustName, s)
			}
			rust[m.RustName] = true
			if m.GoName == "" {
				continue
			}
			if goNames[m.GoName] {
				old := m.GoName
				m.GoName = uniqueName(old, goNames)
				diags.Report(diag.Renamed, m.ID(), "Go name %s renamed to %s: already used in %s", old, m.GoName, s)
			}
			goNames[m.GoName] = true
		}
	}
}

func uniqueName(name string, taken map[string]bool) string {
	for i := 2; ; i++ {
		candidate := fmt.Sprintf("%s%d", name, i)
		if !strings.HasSuffix(name, "_") && !isGoStyle(name) {
			candidate = fmt.Sprintf("%s_%d", name, i)
		}
		if !taken[candidate] {
			return candidate
		}
	}
}

func isGoStyle(name string) bool {
	return name != "" && name[0] >= 'A' && name[0] <= 'Z'
}
