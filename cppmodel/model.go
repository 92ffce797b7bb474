// Package cppmodel is the in-memory representation of a parsed C++ API.
//
// The model is built once per run from a declaration feed, annotated by later
// stages through side tables keyed by entity identity, and discarded after
// emission.
package cppmodel

import (
	"errors"
	"strings"
)

// ErrUnresolved is wrapped when a lookup names a class or enum that is not in
// the model.
var ErrUnresolved = errors.New("unresolved type")

// Library is the root of a processed API.
type Library struct {
	Name string
	// Includes are the public headers of the library, in include order.
	Includes []string
	Root     *Namespace
	// Sites lists explicit template instantiation requests.
	Sites []Site

	classes map[string]*Class
	enums   map[string]*Enum
}

// Site is an explicit instantiation: either a class Type with template
// arguments, or a function template named by Function with Args.
type Site struct {
	Type     *TypeRef
	Function string
	Args     []TypeRef
}

// Namespace is a named scope. The root namespace has an empty Name.
type Namespace struct {
	Name       string
	Path       string
	Namespaces []*Namespace
	Classes    []*Class
	Functions  []*Function
	Enums      []*Enum
}

// Class is a class or struct declaration, a class template, or a synthesized
// template instance.
type Class struct {
	Name  string
	Scope string
	// Include is the header that declares the class.
	Include string
	// Bases lists base classes; the first is the primary base.
	Bases          []TypeRef
	TemplateParams []string
	Methods        []*Function
	Fields         []*Field
	Enums          []*Enum
	Classes        []*Class
	// Incomplete marks a forward declaration that is never defined.
	Incomplete bool
	// SizeDependent marks a layout that depends on a platform macro left
	// unresolved during parsing.
	SizeDependent bool
	// NoImplicitDefault and NoImplicitCopy record constructors that exist
	// but are deleted or not public. They suppress the implicit ones.
	NoImplicitDefault bool
	NoImplicitCopy    bool
	Doc               string
	// Dependency names the dependency library the class was loaded from.
	Dependency string
	Instance   *Instance
}

// Instance records where a synthesized class came from.
type Instance struct {
	Template string
	Args     []TypeRef
	Depth    int
}

// Field is a public data member.
type Field struct {
	Name   string
	Type   TypeRef
	Static bool
	Doc    string
}

// FuncKind separates constructors and destructors from ordinary functions.
type FuncKind int

const (
	Regular FuncKind = iota
	Constructor
	Destructor
)

// Synthetic marks functions the generator adds to the model.
type Synthetic int

const (
	NotSynthetic Synthetic = iota
	FieldGetter
	FieldSetter
	StaticUpcast
	StaticDowncast
	DynamicCast
	DefaultArgs
	ImplicitDestructor
	ImplicitConstructor
	ImplicitCopyConstructor
)

func (s Synthetic) String() string {
	switch s {
	case FieldGetter:
		return "getter"
	case FieldSetter:
		return "setter"
	case StaticUpcast:
		return "upcast"
	case StaticDowncast:
		return "downcast"
	case DynamicCast:
		return "dynamic cast"
	case DefaultArgs:
		return "default args"
	case ImplicitDestructor:
		return "implicit destructor"
	case ImplicitConstructor:
		return "implicit constructor"
	case ImplicitCopyConstructor:
		return "implicit copy constructor"
	}
	return ""
}

// Function is a free function or a class member.
type Function struct {
	Name string
	// Scope is the enclosing namespace path, or the class type name for members.
	Scope          string
	Member         bool
	Kind           FuncKind
	Operator       Operator
	ConversionType *TypeRef
	Params         []Param
	Return         TypeRef
	Const          bool
	Static         bool
	Virtual        bool
	PureVirtual    bool
	Variadic       bool
	// OwningReturn marks a returned pointer whose ownership moves to the caller.
	OwningReturn   bool
	Include        string
	TemplateParams []string
	TemplateArgs   []TypeRef
	Doc            string

	Synthetic Synthetic
	// Field names the field behind an accessor.
	Field string
	// Full is the full-arity function behind a default-argument variant.
	Full *Function
	// Omitted is the number of trailing parameters a variant leaves out.
	Omitted int
}

// Param is a function parameter.
type Param struct {
	Name    string
	Type    TypeRef
	Default string
	Owning  bool
}

// Enum is an enumeration with its values.
type Enum struct {
	Name       string
	Scope      string
	Include    string
	Values     []EnumValue
	Flags      bool
	Scoped     bool
	Doc        string
	Dependency string
}

// EnumValue is one enumerator.
type EnumValue struct {
	Name  string
	Value int64
	Doc   string
}

func join(scope, name string) string {
	if scope == "" {
		return name
	}
	return scope + "::" + name
}

// QualifiedName is the template-free qualified name, e.g. "geo::Vector".
func (c *Class) QualifiedName() string { return join(c.Scope, c.Name) }

// Type returns the class as a value TypeRef, including instance arguments.
func (c *Class) Type() TypeRef {
	if c.Instance != nil {
		return ClassType(c.QualifiedName(), c.Instance.Args...)
	}
	return ClassType(c.QualifiedName())
}

// ID is the entity identity used in diagnostics and side tables.
func (c *Class) ID() string { return c.Type().BaseName() }

// IsTemplate reports whether c is an uninstantiated class template.
func (c *Class) IsTemplate() bool { return len(c.TemplateParams) > 0 && c.Instance == nil }

// PrimaryBase returns the first base, if any.
func (c *Class) PrimaryBase() (TypeRef, bool) {
	if len(c.Bases) == 0 {
		return TypeRef{}, false
	}
	return c.Bases[0], true
}

// HasDeclaredVirtual reports whether c itself declares a virtual method.
func (c *Class) HasDeclaredVirtual() bool {
	for _, m := range c.Methods {
		if m.Virtual || m.PureVirtual {
			return true
		}
	}
	return false
}

// IsAbstract reports whether c declares a pure virtual method.
func (c *Class) IsAbstract() bool {
	for _, m := range c.Methods {
		if m.PureVirtual {
			return true
		}
	}
	return false
}

// Constructors returns the declared and implicit constructors.
func (c *Class) Constructors() []*Function {
	var out []*Function
	for _, m := range c.Methods {
		if m.Kind == Constructor {
			out = append(out, m)
		}
	}
	return out
}

// IsCopyConstructor reports whether f is a copy constructor of c.
func (f *Function) IsCopyConstructor(c *Class) bool {
	if f.Kind != Constructor || len(f.Params) == 0 {
		return false
	}
	for _, p := range f.Params[1:] {
		if p.Default == "" {
			return false
		}
	}
	t := f.Params[0].Type
	return t.Kind == KindClass && t.Indirection == Reference && t.BaseName() == c.ID()
}

// Destructor returns the declared or implicit destructor.
func (c *Class) Destructor() *Function {
	for _, m := range c.Methods {
		if m.Kind == Destructor {
			return m
		}
	}
	return nil
}

// FullName is the qualified name of the function without parameters.
func (f *Function) FullName() string { return join(f.Scope, f.Name) }

// ParamTypes lists the parameter types.
func (f *Function) ParamTypes() []TypeRef {
	out := make([]TypeRef, len(f.Params))
	for i, p := range f.Params {
		out[i] = p.Type
	}
	return out
}

func (f *Function) paramList() string {
	parts := make([]string, 0, len(f.Params)+1)
	for _, p := range f.Params {
		parts = append(parts, p.Type.Unqualified().String())
	}
	if f.Variadic {
		parts = append(parts, "...")
	}
	return "(" + strings.Join(parts, ", ") + ")"
}

// SignatureKey is the qualifier plus parameter-type tuple that separates
// overloads of one name.
func (f *Function) SignatureKey() string {
	var b strings.Builder
	if f.Static {
		b.WriteString("static ")
	}
	b.WriteString(f.Name)
	if len(f.TemplateArgs) > 0 {
		b.WriteString(ClassType("", f.TemplateArgs...).BaseName())
	}
	b.WriteString(f.paramList())
	if f.Const {
		b.WriteString(" const")
	}
	return b.String()
}

// ID is the entity identity used in diagnostics, e.g. "geo::Point::at(int) const".
func (f *Function) ID() string {
	var b strings.Builder
	b.WriteString(f.FullName())
	if len(f.TemplateArgs) > 0 {
		b.WriteString(ClassType("", f.TemplateArgs...).BaseName())
	}
	b.WriteString(f.paramList())
	if f.Const {
		b.WriteString(" const")
	}
	if f.Synthetic != NotSynthetic && f.Synthetic != DefaultArgs {
		b.WriteString(" [" + f.Synthetic.String() + "]")
	}
	return b.String()
}

// Signature renders the C++ declaration for documentation comments.
func (f *Function) Signature() string {
	var b strings.Builder
	if f.Static {
		b.WriteString("static ")
	}
	if f.Virtual || f.PureVirtual {
		b.WriteString("virtual ")
	}
	if f.Kind == Regular && f.Operator != OpConversion {
		b.WriteString(f.Return.String())
		b.WriteString(" ")
	}
	b.WriteString(f.FullName())
	if len(f.TemplateArgs) > 0 {
		b.WriteString(ClassType("", f.TemplateArgs...).BaseName())
	}
	parts := make([]string, 0, len(f.Params))
	for _, p := range f.Params {
		s := p.Type.String()
		if p.Name != "" {
			s += " " + p.Name
		}
		if p.Default != "" {
			s += " = " + p.Default
		}
		parts = append(parts, s)
	}
	if f.Variadic {
		parts = append(parts, "...")
	}
	b.WriteString("(" + strings.Join(parts, ", ") + ")")
	if f.Const {
		b.WriteString(" const")
	}
	if f.PureVirtual {
		b.WriteString(" = 0")
	}
	return b.String()
}

// IsConstructor reports whether f is a constructor.
func (f *Function) IsConstructor() bool { return f.Kind == Constructor }

// IsDestructor reports whether f is a destructor.
func (f *Function) IsDestructor() bool { return f.Kind == Destructor }

// HasThis reports whether the C wrapper takes an object pointer.
func (f *Function) HasThis() bool {
	return f.Member && !f.Static && f.Kind != Constructor
}

// Clone returns a shallow copy with its own parameter slice.
func (f *Function) Clone() *Function {
	cp := *f
	cp.Params = append([]Param(nil), f.Params...)
	return &cp
}

// QualifiedName is the qualified enum name.
func (e *Enum) QualifiedName() string { return join(e.Scope, e.Name) }

// ValueScope is the scope enumerators live in: the enum itself for scoped
// enums, otherwise the enclosing scope.
func (e *Enum) ValueScope() string {
	if e.Scoped {
		return e.QualifiedName()
	}
	return e.Scope
}
