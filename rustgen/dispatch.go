package rustgen

import (
	"fmt"
	"strings"

	"github.com/rust-qt/ritual/overload"
	"github.com/rust-qt/ritual/typemap"
)

// TraitName is the name of the trait implemented by the argument tuples a
// dispatch entry point accepts.
func (e *Emitter) TraitName(g *overload.Group) string {
	prefix := ""
	if g.Class != nil {
		prefix = e.mapper.HostClassName(g.Class)
	}
	return prefix + typemap.PascalCase(g.Name) + "Args"
}

func (e *Emitter) traitPath(g *overload.Group) string {
	ns := g.Namespace
	if g.Class != nil {
		ns = e.mapper.ClassNamespace(g.Class)
	}
	return modulePathString(e.mapper.ModulePath(ns)) + "::" + e.TraitName(g)
}

// argTuple spells the tuple of host argument types of m.
func argTuple(m *overload.Method) string {
	args := m.PlainArgs()
	types := make([]string, len(args))
	for i, a := range args {
		types[i] = withLifetime(a.Map.Rust.Host)
	}
	if len(types) == 1 {
		return "(" + types[0] + ",)"
	}
	return "(" + strings.Join(types, ", ") + ")"
}

func (e *Emitter) selfType(g *overload.Group) string {
	path := e.mapper.RustClassPath(g.Class)
	if g.Receiver == overload.MutSelf {
		return "&'a mut " + path
	}
	return "&'a " + path
}

// writeDispatch writes the argument trait of g and one impl per member.
func (e *Emitter) writeDispatch(w *writer, g *overload.Group) {
	name := e.TraitName(g)
	w.line("/// Argument tuples accepted by `%s`.", g.Scope+"::"+g.Name)
	w.open("pub trait %s<'a>", name)
	w.line("type Output;")
	if g.Receiver == overload.Static {
		w.line("unsafe fn exec(self) -> Self::Output;")
	} else {
		w.line("unsafe fn exec(self, this: %s) -> Self::Output;", e.selfType(g))
	}
	w.close()

	for _, m := range g.Members {
		ret := "()"
		if m.Return != nil {
			ret = withLifetime(m.Return.Rust.Host)
		}
		args := make([]string, len(m.PlainArgs()))
		for i := range args {
			args[i] = fmt.Sprintf("self.%d", i)
		}

		var target string
		switch {
		case g.Receiver != overload.Static:
			target = "this." + m.RustName
		case g.Class != nil:
			target = e.mapper.RustClassPath(g.Class) + "::" + m.RustName
		default:
			target = modulePathString(e.mapper.ModulePath(g.Namespace)) + "::" + m.RustName
		}

		w.line("")
		if cfg := e.cfg(m.Guard()); cfg != "" {
			w.line("%s", cfg)
		}
		w.open("impl<'a> %s<'a> for %s", name, argTuple(m))
		w.line("type Output = %s;", ret)
		w.line("")
		w.line("/// Calls C++ function: `%s`.", m.Func.Signature())
		if g.Receiver == overload.Static {
			w.open("unsafe fn exec(self) -> %s", ret)
		} else {
			w.open("unsafe fn exec(self, this: %s) -> %s", e.selfType(g), ret)
		}
		w.line("%s(%s)", target, strings.Join(args, ", "))
		w.close()
		w.close()
	}
}

// writeEntryPoint writes the generic function forwarding to g's members.
func (e *Emitter) writeEntryPoint(w *writer, g *overload.Group) {
	trait := e.traitPath(g)
	w.line("/// Calls one of the %d overloads of `%s`, selected by the argument tuple.", len(g.Members), g.Scope+"::"+g.Name)
	switch g.Receiver {
	case overload.Static:
		w.open("pub unsafe fn %s<'a, A: %s<'a>>(args: A) -> A::Output", g.Name, trait)
		w.line("args.exec()")
	case overload.ConstSelf:
		w.open("pub unsafe fn %s<'a, A: %s<'a>>(&'a self, args: A) -> A::Output", g.Name, trait)
		w.line("args.exec(self)")
	default:
		w.open("pub unsafe fn %s<'a, A: %s<'a>>(&'a mut self, args: A) -> A::Output", g.Name, trait)
		w.line("args.exec(self)")
	}
	w.close()
}
