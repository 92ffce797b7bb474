package cppmodel

import (
	"fmt"
	"strings"
)

// NewLibrary returns an empty library with a root namespace.
func NewLibrary(name string) *Library {
	lib := &Library{Name: name, Root: &Namespace{}}
	lib.Reindex()
	return lib
}

// Namespace returns the namespace at path ("a::b"), creating missing levels.
func (l *Library) Namespace(path string) *Namespace {
	ns := l.Root
	if path == "" {
		return ns
	}
	cur := ""
	for _, part := range strings.Split(path, "::") {
		cur = join(cur, part)
		var next *Namespace
		for _, child := range ns.Namespaces {
			if child.Name == part {
				next = child
				break
			}
		}
		if next == nil {
			next = &Namespace{Name: part, Path: cur}
			ns.Namespaces = append(ns.Namespaces, next)
		}
		ns = next
	}
	return ns
}

// Reindex rebuilds the name lookup tables. Call it after structural edits.
func (l *Library) Reindex() {
	l.classes = make(map[string]*Class)
	l.enums = make(map[string]*Enum)
	for _, c := range l.Classes() {
		l.classes[c.ID()] = c
		if c.IsTemplate() {
			l.classes[c.QualifiedName()] = c
		}
	}
	for _, e := range l.Enums() {
		l.enums[e.QualifiedName()] = e
	}
}

// AddClass appends c to its scope (a namespace or an enclosing class) and
// indexes it.
func (l *Library) AddClass(c *Class) {
	if outer, ok := l.classes[c.Scope]; ok {
		outer.Classes = append(outer.Classes, c)
	} else {
		ns := l.Namespace(c.Scope)
		ns.Classes = append(ns.Classes, c)
	}
	l.classes[c.ID()] = c
	if c.IsTemplate() {
		l.classes[c.QualifiedName()] = c
	}
}

// AddEnum appends e to its scope and indexes it.
func (l *Library) AddEnum(e *Enum) {
	if outer, ok := l.classes[e.Scope]; ok {
		outer.Enums = append(outer.Enums, e)
	} else {
		ns := l.Namespace(e.Scope)
		ns.Enums = append(ns.Enums, e)
	}
	l.enums[e.QualifiedName()] = e
}

// Class looks up a class by identity ("geo::Point", "geo::Vector<int>") or a
// class template by qualified name.
func (l *Library) Class(id string) (*Class, bool) {
	c, ok := l.classes[id]
	return c, ok
}

// ClassOf looks up the class a type refers to.
func (l *Library) ClassOf(t TypeRef) (*Class, error) {
	if t.Kind != KindClass {
		return nil, fmt.Errorf("%s is not a class type", t)
	}
	if c, ok := l.classes[t.BaseName()]; ok {
		return c, nil
	}
	return nil, fmt.Errorf("class %s: %w", t.BaseName(), ErrUnresolved)
}

// Enum looks up an enum by qualified name.
func (l *Library) Enum(name string) (*Enum, bool) {
	e, ok := l.enums[name]
	return e, ok
}

// Classes returns every class in declaration order, outer classes before
// their nested classes.
func (l *Library) Classes() []*Class {
	var out []*Class
	var visitClass func(c *Class)
	visitClass = func(c *Class) {
		out = append(out, c)
		for _, n := range c.Classes {
			visitClass(n)
		}
	}
	l.walkNamespaces(func(ns *Namespace) {
		for _, c := range ns.Classes {
			visitClass(c)
		}
	})
	return out
}

// Functions returns every free function in declaration order.
func (l *Library) Functions() []*Function {
	var out []*Function
	l.walkNamespaces(func(ns *Namespace) {
		out = append(out, ns.Functions...)
	})
	return out
}

// Enums returns every enum, including enums nested in classes.
func (l *Library) Enums() []*Enum {
	var out []*Enum
	l.walkNamespaces(func(ns *Namespace) {
		out = append(out, ns.Enums...)
	})
	for _, c := range l.Classes() {
		out = append(out, c.Enums...)
	}
	return out
}

// Namespaces returns every namespace, root first.
func (l *Library) Namespaces() []*Namespace {
	var out []*Namespace
	l.walkNamespaces(func(ns *Namespace) { out = append(out, ns) })
	return out
}

func (l *Library) walkNamespaces(fn func(*Namespace)) {
	var visit func(ns *Namespace)
	visit = func(ns *Namespace) {
		fn(ns)
		for _, child := range ns.Namespaces {
			visit(child)
		}
	}
	if l.Root != nil {
		visit(l.Root)
	}
}

// RemoveFunction detaches f from its namespace or class.
func (l *Library) RemoveFunction(f *Function) {
	if f.Member {
		if c, ok := l.classes[f.Scope]; ok {
			c.Methods = removeFunc(c.Methods, f)
		}
		return
	}
	l.walkNamespaces(func(ns *Namespace) {
		ns.Functions = removeFunc(ns.Functions, f)
	})
}

// RemoveClass detaches c from the model.
func (l *Library) RemoveClass(c *Class) {
	remove := func(list []*Class) []*Class {
		out := list[:0]
		for _, x := range list {
			if x != c {
				out = append(out, x)
			}
		}
		return out
	}
	l.walkNamespaces(func(ns *Namespace) { ns.Classes = remove(ns.Classes) })
	for _, outer := range l.Classes() {
		outer.Classes = remove(outer.Classes)
	}
	delete(l.classes, c.ID())
	if c.IsTemplate() {
		delete(l.classes, c.QualifiedName())
	}
}

func removeFunc(list []*Function, f *Function) []*Function {
	out := list[:0]
	for _, x := range list {
		if x != f {
			out = append(out, x)
		}
	}
	return out
}

// Resolve qualifies every named type in the model against the scope it
// appears in and relabels enum names and template parameters. Names that
// match nothing are left as classes; the type mapper reports them.
func (l *Library) Resolve() {
	l.Reindex()
	for _, c := range l.Classes() {
		scope := c.QualifiedName()
		params := c.TemplateParams
		for i := range c.Bases {
			c.Bases[i] = l.resolveType(c.Bases[i], c.Scope, params)
		}
		for _, f := range c.Fields {
			f.Type = l.resolveType(f.Type, scope, params)
		}
		for _, m := range c.Methods {
			l.resolveFunction(m, scope, params)
		}
	}
	for _, f := range l.Functions() {
		l.resolveFunction(f, f.Scope, nil)
	}
	for i, s := range l.Sites {
		if s.Type != nil {
			t := l.resolveType(*s.Type, "", nil)
			l.Sites[i].Type = &t
		}
		for j, a := range s.Args {
			l.Sites[i].Args[j] = l.resolveType(a, "", nil)
		}
	}
}

func (l *Library) resolveFunction(f *Function, scope string, classParams []string) {
	params := append(append([]string(nil), classParams...), f.TemplateParams...)
	for i := range f.Params {
		f.Params[i].Type = l.resolveType(f.Params[i].Type, scope, params)
	}
	f.Return = l.resolveType(f.Return, scope, params)
	for i, a := range f.TemplateArgs {
		f.TemplateArgs[i] = l.resolveType(a, scope, params)
	}
	if f.ConversionType != nil {
		t := l.resolveType(*f.ConversionType, scope, params)
		f.ConversionType = &t
	}
}

func (l *Library) resolveType(t TypeRef, scope string, params []string) TypeRef {
	for i, a := range t.Args {
		t.Args[i] = l.resolveType(a, scope, params)
	}
	if t.Func != nil {
		t.Func.Return = l.resolveType(t.Func.Return, scope, params)
		for i, p := range t.Func.Params {
			t.Func.Params[i] = l.resolveType(p, scope, params)
		}
	}
	if t.Kind != KindClass && t.Kind != KindEnum {
		return t
	}
	for _, p := range params {
		if p == t.Name && len(t.Args) == 0 {
			t.Kind = KindTemplateParam
			return t
		}
	}
	for s := scope; ; s = parentScope(s) {
		candidate := join(s, t.Name)
		if _, ok := l.enums[candidate]; ok {
			t.Kind = KindEnum
			t.Name = candidate
			return t
		}
		if c, ok := l.classes[candidate]; ok && (len(t.Args) == 0 || c.IsTemplate()) {
			t.Name = candidate
			return t
		}
		if s == "" {
			break
		}
	}
	return t
}

func parentScope(s string) string {
	i := strings.LastIndex(s, "::")
	if i < 0 {
		return ""
	}
	return s[:i]
}
