package overload

import (
	"strconv"
	"strings"

	"github.com/rust-qt/ritual/alloc"
	"github.com/rust-qt/ritual/cppmodel"
	"github.com/rust-qt/ritual/diag"
	"github.com/rust-qt/ritual/typemap"
)

// ArgRole is the purpose of a wrapper argument.
type ArgRole int

const (
	// PlainArg carries a C++ parameter.
	PlainArg ArgRole = iota
	// ThisArg carries the object pointer of a member call.
	ThisArg
	// OutputArg is the caller-supplied buffer a VALUE result is constructed in.
	OutputArg
)

// Receiver is how a host function takes its object.
type Receiver int

const (
	Static Receiver = iota
	ConstSelf
	MutSelf
)

func (r Receiver) String() string {
	switch r {
	case ConstSelf:
		return "&self"
	case MutSelf:
		return "&mut self"
	}
	return "static"
}

// Arg is one argument of a wrapper function.
type Arg struct {
	Name string
	Role ArgRole
	// Param indexes Func.Params for plain arguments.
	Param int
	Map   *typemap.Mapping
}

// Method is one resolved operation: a C++ function (declared or synthetic)
// together with its wrapper symbol, FFI signature and host names.
type Method struct {
	Func    *cppmodel.Function
	Class   *cppmodel.Class
	Include string
	// Strategy is the allocation strategy of Class.
	Strategy alloc.Strategy
	Args     []Arg
	// Return maps the C++ return type; nil for void. Constructors return the
	// class value.
	Return *typemap.Mapping

	// Symbol is the wrapper symbol, the contract between both source trees.
	Symbol string
	// Full is the full-arity method behind a default-argument variant.
	Full *Method
	// ExcludedOn lists platforms where the wrapper is not compiled because
	// it collapses onto another overload there.
	ExcludedOn []string
	// MergedWith is the overload that stays on ExcludedOn platforms.
	MergedWith *Method

	Receiver Receiver
	// RustName is the canonical Rust function name; GoName is empty when
	// the Go host does not expose the method.
	RustName string
	GoName   string
	// Dispatch is the dispatch group the method belongs to, if any.
	Dispatch *Group
}

// ID is the entity identity of the method.
func (m *Method) ID() string { return m.Func.ID() }

// Scope is the wrapper-symbol scope: the class identity for members, the
// include file for free functions.
func (m *Method) Scope() string {
	if m.Class != nil {
		return m.Class.ID()
	}
	return "include " + m.Include
}

// OutputArg returns the output argument, if the result is written to a buffer.
func (m *Method) OutputArg() (Arg, bool) {
	for _, a := range m.Args {
		if a.Role == OutputArg {
			return a, true
		}
	}
	return Arg{}, false
}

// ThisArg returns the object pointer argument of a member call.
func (m *Method) ThisArg() (Arg, bool) {
	for _, a := range m.Args {
		if a.Role == ThisArg {
			return a, true
		}
	}
	return Arg{}, false
}

// PlainArgs returns the arguments carrying C++ parameters.
func (m *Method) PlainArgs() []Arg {
	var out []Arg
	for _, a := range m.Args {
		if a.Role == PlainArg {
			out = append(out, a)
		}
	}
	return out
}

// ReturnsValue reports whether the wrapper returns something by value, as
// opposed to void or a filled output buffer.
func (m *Method) ReturnsValue() bool {
	return m.Return != nil && !m.Return.Output
}

// HostArgKeys returns the Rust host types of the plain arguments with
// platform aliases resolved for p.
func (m *Method) HostArgKeys(p typemap.Platform) []string {
	args := m.PlainArgs()
	out := make([]string, len(args))
	for i, a := range args {
		out[i] = typemap.RustHostKey(a.Map, p)
	}
	return out
}

// AvailableOn reports whether the wrapper is compiled on platform name.
func (m *Method) AvailableOn(name string) bool {
	for _, p := range m.ExcludedOn {
		if p == name {
			return false
		}
	}
	return true
}

// Guard lists the platforms the wrapper must not be compiled on: its own
// exclusions plus those of the full-arity wrapper a variant forwards to.
func (m *Method) Guard() []string {
	if m.Full == nil || len(m.Full.ExcludedOn) == 0 {
		return m.ExcludedOn
	}
	seen := make(map[string]bool)
	var out []string
	for _, p := range append(append([]string(nil), m.ExcludedOn...), m.Full.ExcludedOn...) {
		if !seen[p] {
			seen[p] = true
			out = append(out, p)
		}
	}
	return out
}

var cKeywords = map[string]bool{
	"auto": true, "bool": true, "break": true, "case": true, "char": true, "class": true,
	"const": true, "continue": true, "default": true, "delete": true, "do": true,
	"double": true, "else": true, "enum": true, "explicit": true, "extern": true,
	"float": true, "for": true, "friend": true, "goto": true, "if": true, "inline": true,
	"int": true, "long": true, "namespace": true, "new": true, "operator": true,
	"private": true, "protected": true, "public": true, "register": true, "return": true,
	"short": true, "signed": true, "sizeof": true, "static": true, "struct": true,
	"switch": true, "template": true, "this": true, "throw": true, "typedef": true,
	"typename": true, "union": true, "unsigned": true, "using": true, "virtual": true,
	"void": true, "volatile": true, "while": true, "output": true, "this_ptr": true,
}

// argName returns a C identifier for parameter i.
func argName(p cppmodel.Param, i int) string {
	name := p.Name
	if name == "" {
		return "arg" + strconv.Itoa(i+1)
	}
	if cKeywords[name] || strings.HasPrefix(name, "__") {
		return name + "_"
	}
	return name
}

// build maps the signature of f. Failures come back as diagnostics for f.
func build(mapper *typemap.Mapper, f *cppmodel.Function, c *cppmodel.Class) (*Method, error) {
	id := f.ID()
	if f.Variadic {
		return nil, diag.New(diag.UnsupportedConstruct, id, "variadic function")
	}
	switch f.Operator {
	case cppmodel.OpNew, cppmodel.OpDelete, cppmodel.OpNewArray, cppmodel.OpDeleteArray:
		return nil, diag.New(diag.UnsupportedConstruct, id, "allocation operator %s", f.Operator)
	}
	m := &Method{Func: f, Class: c, Include: f.Include}
	if c != nil {
		m.Strategy = mapper.Strategy(c)
		if m.Include == "" {
			m.Include = c.Include
		}
	}

	fail := func(what string, err error) error {
		if d, ok := diag.AsDiagnostic(err); ok {
			d.Entity = id
			d.Message = what + ": " + d.Message
			return d
		}
		return diag.New(diag.UnsupportedConstruct, id, "%s: %v", what, err)
	}

	if f.HasThis() {
		self := c.Type().WithIndirection(cppmodel.Pointer).WithConst(f.Const)
		mp, err := mapper.Map(self, typemap.Context{Role: typemap.Receiver})
		if err != nil {
			return nil, fail("receiver", err)
		}
		m.Args = append(m.Args, Arg{Name: "this_ptr", Role: ThisArg, Param: -1, Map: mp})
		m.Receiver = MutSelf
		if f.Const {
			m.Receiver = ConstSelf
		}
	}
	for i, p := range f.Params {
		mp, err := mapper.Map(p.Type, typemap.Context{Role: typemap.Argument})
		if err != nil {
			return nil, fail("parameter "+argName(p, i), err)
		}
		m.Args = append(m.Args, Arg{Name: argName(p, i), Role: PlainArg, Param: i, Map: mp})
	}

	switch {
	case f.IsConstructor():
		if mapper.Library().IsAbstract(c) {
			return nil, diag.New(diag.Dropped, id, "abstract class %s cannot be constructed", c.ID())
		}
		mp, err := mapper.Map(c.Type(), typemap.Context{Role: typemap.Return, Owning: true})
		if err != nil {
			return nil, fail("constructed type", err)
		}
		m.Return = mp
	case f.IsDestructor():
	case !f.Return.IsVoid():
		ctx := typemap.Context{
			Role:        typemap.Return,
			Owning:      f.OwningReturn || alloc.IsFactory(f),
			HasReceiver: f.HasThis(),
		}
		mp, err := mapper.Map(f.Return, ctx)
		if err != nil {
			return nil, fail("return type", err)
		}
		m.Return = mp
	}
	if m.Return != nil && m.Return.Output {
		m.Args = append(m.Args, Arg{Name: "output", Role: OutputArg, Param: -1, Map: m.Return})
	}
	return m, nil
}
