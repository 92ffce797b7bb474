package cppmodel

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// SetterName returns the setter name for a field: "x" -> "setX".
func SetterName(field string) string {
	r, n := utf8.DecodeRuneInString(field)
	if r == utf8.RuneError {
		return "set"
	}
	return "set" + string(unicode.ToUpper(r)) + field[n:]
}

// AddImplicitDestructor gives c a public destructor when none is declared.
// It reports whether one was added.
func AddImplicitDestructor(c *Class) bool {
	if c.Destructor() != nil {
		return false
	}
	c.Methods = append(c.Methods, &Function{
		Name:      "~" + c.Name,
		Scope:     c.ID(),
		Member:    true,
		Kind:      Destructor,
		Return:    VoidType(),
		Include:   c.Include,
		Synthetic: ImplicitDestructor,
	})
	return true
}

// AddImplicitConstructors gives c the default and copy constructors C++
// declares implicitly: the default one when no constructor is declared, the
// copy one when no copy or move constructor is declared. Abstract and
// incomplete classes get none, and neither does a class whose bases or
// fields rule the constructor out. It returns the added constructors.
func (l *Library) AddImplicitConstructors(c *Class) []*Function {
	if c.Incomplete || c.IsTemplate() || l.IsAbstract(c) {
		return nil
	}
	ctors := c.Constructors()
	addDefault := len(ctors) == 0 && !c.NoImplicitDefault && l.basesDefaultConstructible(c, 0)
	for _, f := range c.Fields {
		if !f.Static && (f.Type.Indirection == Reference || (f.Type.Indirection == Value && f.Type.Const)) {
			addDefault = false
		}
	}
	addCopy := l.copyable(c, 0)
	for _, f := range ctors {
		if f.IsCopyConstructor(c) || isMoveConstructor(f, c) {
			addCopy = false
		}
	}

	var out []*Function
	if addDefault {
		out = append(out, &Function{
			Name:      c.Name,
			Scope:     c.ID(),
			Member:    true,
			Kind:      Constructor,
			Return:    VoidType(),
			Include:   c.Include,
			Synthetic: ImplicitConstructor,
		})
	}
	if addCopy {
		out = append(out, &Function{
			Name:      c.Name,
			Scope:     c.ID(),
			Member:    true,
			Kind:      Constructor,
			Params:    []Param{{Name: "other", Type: c.Type().WithConst(true).WithIndirection(Reference)}},
			Return:    VoidType(),
			Include:   c.Include,
			Synthetic: ImplicitCopyConstructor,
		})
	}
	c.Methods = append(c.Methods, out...)
	return out
}

func isMoveConstructor(f *Function, c *Class) bool {
	if f.Kind != Constructor || len(f.Params) == 0 {
		return false
	}
	t := f.Params[0].Type
	return t.Kind == KindClass && t.Indirection == RValueReference && t.BaseName() == c.ID()
}

// maxBaseDepth bounds base-class walks on malformed input.
const maxBaseDepth = 64

// defaultConstructible reports whether c can be built without arguments.
func (l *Library) defaultConstructible(c *Class, depth int) bool {
	if c.Incomplete || depth > maxBaseDepth {
		return false
	}
	ctors := c.Constructors()
	if len(ctors) == 0 {
		return !c.NoImplicitDefault && l.basesDefaultConstructible(c, depth)
	}
	for _, f := range ctors {
		if len(f.Params) == 0 || f.Params[0].Default != "" {
			return true
		}
	}
	return false
}

func (l *Library) basesDefaultConstructible(c *Class, depth int) bool {
	for _, base := range c.Bases {
		b, err := l.ClassOf(base)
		if err != nil || !l.defaultConstructible(b, depth+1) {
			return false
		}
	}
	return true
}

// copyable reports whether c has a usable copy constructor, declared or
// implicit.
func (l *Library) copyable(c *Class, depth int) bool {
	if c.Incomplete || c.NoImplicitCopy || depth > maxBaseDepth {
		return false
	}
	for _, f := range c.Constructors() {
		if f.IsCopyConstructor(c) {
			return true
		}
		if isMoveConstructor(f, c) {
			return false
		}
	}
	for _, f := range c.Fields {
		if !f.Static && f.Type.Indirection == RValueReference {
			return false
		}
	}
	for _, base := range c.Bases {
		b, err := l.ClassOf(base)
		if err != nil || !l.copyable(b, depth+1) {
			return false
		}
	}
	return true
}

// IsAbstract reports whether c declares or inherits a pure virtual method
// it does not override.
func (l *Library) IsAbstract(c *Class) bool {
	return len(l.pureVirtuals(c, 0)) > 0
}

func (l *Library) pureVirtuals(c *Class, depth int) map[string]bool {
	pure := make(map[string]bool)
	if depth > maxBaseDepth {
		return pure
	}
	for _, base := range c.Bases {
		if b, err := l.ClassOf(base); err == nil {
			for k := range l.pureVirtuals(b, depth+1) {
				pure[k] = true
			}
		}
	}
	for _, m := range c.Methods {
		if m.Static || m.Kind != Regular {
			continue
		}
		key := m.Name + m.paramList()
		if m.Const {
			key += " const"
		}
		if m.PureVirtual {
			pure[key] = true
		} else {
			delete(pure, key)
		}
	}
	return pure
}

// FieldAccessors returns a getter and a setter for every field of c. The
// getter is named after the field, the setter with SetterName. Const fields
// and fields of reference type only get a getter.
func FieldAccessors(c *Class) []*Function {
	var out []*Function
	for _, f := range c.Fields {
		getter := &Function{
			Name:      f.Name,
			Scope:     c.ID(),
			Member:    true,
			Return:    f.Type,
			Const:     !f.Static,
			Static:    f.Static,
			Include:   c.Include,
			Doc:       f.Doc,
			Synthetic: FieldGetter,
			Field:     f.Name,
		}
		out = append(out, getter)
		if f.Type.Indirection == Reference || f.Type.Indirection == RValueReference ||
			(f.Type.Indirection == Value && f.Type.Const) {
			continue
		}
		out = append(out, &Function{
			Name:      SetterName(f.Name),
			Scope:     c.ID(),
			Member:    true,
			Params:    []Param{{Name: "value", Type: f.Type}},
			Return:    VoidType(),
			Static:    f.Static,
			Include:   c.Include,
			Synthetic: FieldSetter,
			Field:     f.Name,
		})
	}
	return out
}

// ShortName returns the last component of a qualified name, without
// template arguments.
func ShortName(qualified string) string {
	if i := strings.Index(qualified, "<"); i >= 0 {
		qualified = qualified[:i]
	}
	if i := strings.LastIndex(qualified, "::"); i >= 0 {
		return qualified[i+2:]
	}
	return qualified
}

// Casts returns the cast functions for c: a static upcast to every base, a
// static downcast from every base and, when the base is polymorphic, a
// dynamic cast from it. polymorphic reports whether a base class has virtual
// methods.
func Casts(c *Class, polymorphic func(base TypeRef) bool) []*Function {
	var out []*Function
	self := c.Type()
	for _, base := range c.Bases {
		baseCaption := base.Caption(false)
		out = append(out, &Function{
			Name:      "static_upcast_" + baseCaption,
			Scope:     c.ID(),
			Member:    true,
			Static:    true,
			Params:    []Param{{Name: "ptr", Type: self.WithIndirection(Pointer)}},
			Return:    base.WithIndirection(Pointer),
			Include:   c.Include,
			Synthetic: StaticUpcast,
		})
		out = append(out, &Function{
			Name:      "static_downcast_from_" + baseCaption,
			Scope:     c.ID(),
			Member:    true,
			Static:    true,
			Params:    []Param{{Name: "ptr", Type: base.WithIndirection(Pointer)}},
			Return:    self.WithIndirection(Pointer),
			Include:   c.Include,
			Synthetic: StaticDowncast,
		})
		if polymorphic(base) {
			out = append(out, &Function{
				Name:      "dynamic_cast_from_" + baseCaption,
				Scope:     c.ID(),
				Member:    true,
				Static:    true,
				Params:    []Param{{Name: "ptr", Type: base.WithIndirection(Pointer)}},
				Return:    self.WithIndirection(Pointer),
				Include:   c.Include,
				Synthetic: DynamicCast,
			})
		}
	}
	return out
}

// DefaultArgVariants returns one synthetic overload per omitted suffix of
// parameters that carry default values, shortest omission first.
func DefaultArgVariants(f *Function) []*Function {
	n := 0
	for i := len(f.Params) - 1; i >= 0 && f.Params[i].Default != ""; i-- {
		n++
	}
	var out []*Function
	for k := 1; k <= n; k++ {
		v := f.Clone()
		v.Params = v.Params[:len(f.Params)-k]
		v.Synthetic = DefaultArgs
		v.Full = f
		v.Omitted = k
		out = append(out, v)
	}
	return out
}
