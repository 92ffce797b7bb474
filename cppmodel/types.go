package cppmodel

import (
	"fmt"
	"strings"
)

// BaseKind identifies what a TypeRef ultimately names.
type BaseKind int

const (
	KindVoid BaseKind = iota
	KindBuiltin
	KindEnum
	KindClass
	KindTemplateParam
	KindFunctionPointer
)

func (k BaseKind) String() string {
	switch k {
	case KindVoid:
		return "void"
	case KindBuiltin:
		return "builtin"
	case KindEnum:
		return "enum"
	case KindClass:
		return "class"
	case KindTemplateParam:
		return "template-param"
	case KindFunctionPointer:
		return "function-pointer"
	}
	return fmt.Sprintf("BaseKind(%d)", int(k))
}

// Indirection is the declarator applied on top of the base type.
type Indirection int

const (
	Value Indirection = iota
	Pointer
	Reference
	PointerPointer
	PointerReference
	RValueReference
)

func (i Indirection) String() string {
	switch i {
	case Value:
		return "value"
	case Pointer:
		return "pointer"
	case Reference:
		return "reference"
	case PointerPointer:
		return "pointer-pointer"
	case PointerReference:
		return "pointer-reference"
	case RValueReference:
		return "rvalue-reference"
	}
	return fmt.Sprintf("Indirection(%d)", int(i))
}

// TypeRef is a reference to a C++ type: a base identity plus modifiers.
// Two TypeRefs denote the same type exactly when their Key()s are equal.
type TypeRef struct {
	Kind BaseKind
	// Name is the normalized builtin spelling, or the qualified name of an
	// enum, class or class template, or a template parameter name.
	Name string
	// Args are template arguments when Name is a class template.
	Args        []TypeRef
	Indirection Indirection
	// Const qualifies the value itself, or the pointee for pointers/references.
	Const bool
	// ConstInner qualifies the inner pointer of a PointerPointer (T* const*).
	ConstInner bool
	Func       *FuncSig
}

// FuncSig describes the target of a function pointer type.
type FuncSig struct {
	Return   TypeRef
	Params   []TypeRef
	Variadic bool
}

// VoidType returns the plain `void` type.
func VoidType() TypeRef { return TypeRef{Kind: KindVoid, Name: "void"} }

// BuiltinType returns a builtin value type with the given normalized spelling.
func BuiltinType(name string) TypeRef { return TypeRef{Kind: KindBuiltin, Name: name} }

// ClassType returns a value type naming a class (or class template instance).
func ClassType(name string, args ...TypeRef) TypeRef {
	return TypeRef{Kind: KindClass, Name: name, Args: args}
}

// EnumType returns a value type naming an enum.
func EnumType(name string) TypeRef { return TypeRef{Kind: KindEnum, Name: name} }

// IsVoid reports whether t is plain void (not void*).
func (t TypeRef) IsVoid() bool { return t.Kind == KindVoid && t.Indirection == Value }

// IsClass reports whether the base of t is a class.
func (t TypeRef) IsClass() bool { return t.Kind == KindClass }

// IsClassValue reports whether t is a class passed or returned by value.
func (t TypeRef) IsClassValue() bool { return t.Kind == KindClass && t.Indirection == Value }

// IsTemplateInstance reports whether t names a class with template arguments.
func (t TypeRef) IsTemplateInstance() bool { return t.Kind == KindClass && len(t.Args) > 0 }

// WithIndirection returns a copy of t with a different declarator.
func (t TypeRef) WithIndirection(ind Indirection) TypeRef {
	t.Indirection = ind
	if ind != PointerPointer {
		t.ConstInner = false
	}
	return t
}

// WithConst returns a copy of t with the given constness.
func (t TypeRef) WithConst(c bool) TypeRef {
	t.Const = c
	return t
}

// Pointee strips the declarator, keeping the base identity and its constness.
func (t TypeRef) Pointee() TypeRef {
	return t.WithIndirection(Value)
}

// BaseName returns the qualified base name including template arguments,
// e.g. "geo::Vector<int>". Modifiers are not included.
func (t TypeRef) BaseName() string {
	switch t.Kind {
	case KindVoid:
		return "void"
	case KindFunctionPointer:
		return t.String()
	}
	if len(t.Args) == 0 {
		return t.Name
	}
	args := make([]string, len(t.Args))
	for i, a := range t.Args {
		args[i] = a.String()
	}
	s := t.Name + "<" + strings.Join(args, ", ")
	if strings.HasSuffix(s, ">") {
		s += " "
	}
	return s + ">"
}

// String renders t as canonical C++ source.
func (t TypeRef) String() string {
	if t.Kind == KindFunctionPointer && t.Func != nil {
		params := make([]string, len(t.Func.Params))
		for i, p := range t.Func.Params {
			params[i] = p.String()
		}
		if t.Func.Variadic {
			params = append(params, "...")
		}
		return fmt.Sprintf("%s (*)(%s)", t.Func.Return.String(), strings.Join(params, ", "))
	}
	var b strings.Builder
	if t.Const {
		b.WriteString("const ")
	}
	b.WriteString(t.BaseName())
	switch t.Indirection {
	case Pointer:
		b.WriteString("*")
	case Reference:
		b.WriteString("&")
	case RValueReference:
		b.WriteString("&&")
	case PointerPointer:
		if t.ConstInner {
			b.WriteString("* const*")
		} else {
			b.WriteString("**")
		}
	case PointerReference:
		b.WriteString("*&")
	}
	return b.String()
}

// Key is the identity of t used for signature keys and instantiation keys.
func (t TypeRef) Key() string { return t.String() }

// Unqualified drops top-level const from value types, which does not take
// part in C++ overloading.
func (t TypeRef) Unqualified() TypeRef {
	if t.Indirection == Value {
		t.Const = false
	}
	return t
}

// ContainsTemplateParam reports whether t mentions a template parameter.
func (t TypeRef) ContainsTemplateParam() bool {
	found := false
	t.Walk(func(x TypeRef) {
		if x.Kind == KindTemplateParam {
			found = true
		}
	})
	return found
}

// Walk calls fn on t and then on every type nested in it: template arguments
// and function pointer return and parameter types.
func (t TypeRef) Walk(fn func(TypeRef)) {
	fn(t)
	for _, a := range t.Args {
		a.Walk(fn)
	}
	if t.Func != nil {
		t.Func.Return.Walk(fn)
		for _, p := range t.Func.Params {
			p.Walk(fn)
		}
	}
}

// Caption renders t as an identifier fragment for generated names.
// With full unset, only the last component of qualified names is used.
func (t TypeRef) Caption(full bool) string {
	var parts []string
	if t.Const {
		parts = append(parts, "const")
	}
	switch t.Kind {
	case KindFunctionPointer:
		parts = append(parts, "func")
	default:
		name := t.Name
		if !full {
			if i := strings.LastIndex(name, "::"); i >= 0 {
				name = name[i+2:]
			}
		}
		parts = append(parts, identifier(name))
		for _, a := range t.Args {
			parts = append(parts, a.Caption(full))
		}
	}
	switch t.Indirection {
	case Pointer:
		parts = append(parts, "ptr")
	case Reference:
		parts = append(parts, "ref")
	case RValueReference:
		parts = append(parts, "rref")
	case PointerPointer:
		parts = append(parts, "ptr", "ptr")
	case PointerReference:
		parts = append(parts, "ptr", "ref")
	}
	return strings.Join(parts, "_")
}

// identifier turns a C++ name into a C identifier fragment.
func identifier(name string) string {
	r := strings.NewReplacer("::", "_", " ", "_", "<", "_", ">", "", ",", "_", "*", "ptr", "&", "ref")
	s := r.Replace(name)
	for strings.Contains(s, "__") {
		s = strings.ReplaceAll(s, "__", "_")
	}
	return strings.Trim(s, "_")
}

// Identifier is the exported form of identifier, used for scope captions.
func Identifier(name string) string { return identifier(name) }

// Substitute replaces template parameters in t by the matching arguments.
// Indirections are combined: a `T*` parameter bound to `int*` yields `int**`.
func (t TypeRef) Substitute(params []string, args []TypeRef) (TypeRef, error) {
	if t.Kind == KindTemplateParam {
		for i, p := range params {
			if p != t.Name || i >= len(args) {
				continue
			}
			arg := args[i]
			ind, err := combineIndirection(t.Indirection, arg.Indirection)
			if err != nil {
				return TypeRef{}, fmt.Errorf("substitute %s = %s: %w", t, arg, err)
			}
			out := arg
			out.Indirection = ind
			if t.Const && arg.Indirection == Value {
				out.Const = true
			}
			if ind == PointerPointer && arg.Indirection == Pointer {
				out.ConstInner = t.Const && t.Indirection == Pointer
			}
			return out, nil
		}
		return TypeRef{}, fmt.Errorf("template parameter %s is not bound", t.Name)
	}
	out := t
	if len(t.Args) > 0 {
		out.Args = make([]TypeRef, len(t.Args))
		for i, a := range t.Args {
			s, err := a.Substitute(params, args)
			if err != nil {
				return TypeRef{}, err
			}
			out.Args[i] = s
		}
	}
	if t.Func != nil {
		f := &FuncSig{Variadic: t.Func.Variadic}
		r, err := t.Func.Return.Substitute(params, args)
		if err != nil {
			return TypeRef{}, err
		}
		f.Return = r
		for _, p := range t.Func.Params {
			s, err := p.Substitute(params, args)
			if err != nil {
				return TypeRef{}, err
			}
			f.Params = append(f.Params, s)
		}
		out.Func = f
	}
	return out, nil
}

func combineIndirection(param, arg Indirection) (Indirection, error) {
	switch {
	case param == Value:
		return arg, nil
	case arg == Value:
		return param, nil
	case param == Pointer && arg == Pointer:
		return PointerPointer, nil
	case param == Reference && arg == Pointer:
		return PointerReference, nil
	}
	return Value, fmt.Errorf("cannot combine %s with %s", param, arg)
}
