package gobind

import (
	"fmt"

	"github.com/dave/jennifer/jen"

	"github.com/rust-qt/ritual/alloc"
	"github.com/rust-qt/ritual/cppmodel"
	"github.com/rust-qt/ritual/overload"
	"github.com/rust-qt/ritual/typemap"
)

func (e *Emitter) writeTypes(f *jen.File) {
	for _, en := range e.enums() {
		e.writeEnum(f, en)
	}
	for _, c := range e.classes {
		e.writeHandle(f, c)
	}
}

func (e *Emitter) enums() []*cppmodel.Enum {
	lib := e.mapper.Library()
	var out []*cppmodel.Enum
	for _, en := range lib.Enums() {
		if en.Dependency != "" || e.opts.Excluded(en.QualifiedName()) {
			continue
		}
		if c, ok := lib.Class(en.Scope); ok && (c.IsTemplate() || e.opts.Excluded(c.ID())) {
			continue
		}
		out = append(out, en)
	}
	return out
}

// flagsUsed reports whether some exposed method takes or returns flags of en.
func (e *Emitter) flagsUsed(en *cppmodel.Enum) bool {
	uses := func(mp *typemap.Mapping) bool {
		return mp != nil && mp.Go.Kind == typemap.GoFlags && mp.Enum == en
	}
	for _, m := range e.res.Methods {
		if uses(m.Return) {
			return true
		}
		for _, a := range m.Args {
			if uses(a.Map) {
				return true
			}
		}
	}
	return false
}

func (e *Emitter) writeEnum(f *jen.File, en *cppmodel.Enum) {
	name := e.mapper.GoEnumName(en)
	f.Commentf("%s is the C++ enum %s.", name, en.QualifiedName())
	f.Type().Id(name).Int32()
	f.Line()

	used := make(map[string]bool)
	var defs []jen.Code
	for _, v := range en.Values {
		id := name + typemap.GoExported(v.Name)
		for i := 2; used[id]; i++ {
			id = fmt.Sprintf("%s%s%d", name, typemap.GoExported(v.Name), i)
		}
		used[id] = true
		defs = append(defs, jen.Id(id).Id(name).Op("=").Lit(int(v.Value)))
	}
	if len(defs) > 0 {
		f.Const().Defs(defs...)
		f.Line()
	}

	if !en.Flags && !e.flagsUsed(en) {
		return
	}
	flags := name + "Flags"
	f.Commentf("%s is a combination of %s values.", flags, name)
	f.Type().Id(flags).Uint32()
	f.Line()
	f.Commentf("Has reports whether every bit of v is set in x.")
	f.Func().Params(jen.Id("x").Id(flags)).Id("Has").Params(jen.Id("v").Id(name)).Bool().Block(
		jen.Return(jen.Uint32().Call(jen.Id("x")).Op("&").Uint32().Call(jen.Id("v")).Op("==").Uint32().Call(jen.Id("v"))),
	)
	f.Line()
}

func (e *Emitter) destructor(c *cppmodel.Class) *overload.Method {
	for _, m := range e.res.ForClass(c.ID()) {
		if m.Func.IsDestructor() {
			return m
		}
	}
	return nil
}

func cPointer(cname string, expr jen.Code) *jen.Statement {
	return jen.Parens(jen.Op("*").Qual("C", cname)).Call(expr)
}

// writeHandle writes the handle type of c, its constructor from a raw
// pointer and the Pointer and Delete methods.
func (e *Emitter) writeHandle(f *jen.File, c *cppmodel.Class) {
	name := e.mapper.GoClassName(c)
	cname := typemap.CTypeName(c.Type())
	value := e.mapper.Strategy(c) == alloc.Value
	upcast := e.bases[c.ID()]

	var fields []jen.Code
	if upcast != nil {
		fields = append(fields, jen.Id(e.mapper.GoClassName(upcast.Return.Class)))
	}
	fields = append(fields,
		jen.Id("ptr").Qual("unsafe", "Pointer"),
		jen.Id("owned").Bool(),
	)
	f.Commentf("%s is a handle to a C++ %s object.", name, c.Type().String())
	f.Type().Id(name).Struct(fields...)
	f.Line()

	ctor := "new" + name
	body := []jen.Code{
		jen.If(jen.Id("ptr").Op("==").Nil()).Block(jen.Return(jen.Nil())),
		jen.Id("h").Op(":=").Op("&").Id(name).Values(jen.Dict{
			jen.Id("ptr"):   jen.Id("ptr"),
			jen.Id("owned"): jen.Id("owned"),
		}),
	}
	if upcast != nil {
		base := e.mapper.GoClassName(upcast.Return.Class)
		this := upcast.PlainArgs()[0].Map.Go.C
		body = append(body, jen.Id("h").Dot(base).Op("=").Op("*").Id("new"+base).Call(
			jen.Qual("unsafe", "Pointer").Call(jen.Qual("C", upcast.Symbol).Call(cPointer(this, jen.Id("ptr")))),
			jen.False(),
		))
	}
	body = append(body,
		jen.If(jen.Id("owned")).Block(
			jen.Qual("runtime", "SetFinalizer").Call(jen.Id("h"), jen.Parens(jen.Op("*").Id(name)).Dot("Delete")),
		),
		jen.Return(jen.Id("h")),
	)
	f.Func().Id(ctor).Params(jen.Id("ptr").Qual("unsafe", "Pointer"), jen.Id("owned").Bool()).Op("*").Id(name).Block(body...)
	f.Line()

	f.Comment("Pointer returns the address of the C++ object.")
	f.Func().Params(jen.Id("h").Op("*").Id(name)).Id("Pointer").Params().Qual("unsafe", "Pointer").Block(
		jen.If(jen.Id("h").Op("==").Nil()).Block(jen.Return(jen.Nil())),
		jen.Return(jen.Id("h").Dot("ptr")),
	)
	f.Line()

	release := []jen.Code{}
	if d := e.destructor(c); d != nil {
		release = append(release, jen.Qual("C", d.Symbol).Call(cPointer(cname, jen.Id("h").Dot("ptr"))))
	}
	if value {
		release = append(release, jen.Qual("C", "free").Call(jen.Id("h").Dot("ptr")))
	}
	release = append(release,
		jen.Id("h").Dot("ptr").Op("=").Nil(),
		jen.Qual("runtime", "SetFinalizer").Call(jen.Id("h"), jen.Nil()),
	)
	f.Comment("Delete destroys an object owned by the handle. Borrowed handles are left alone.")
	f.Func().Params(jen.Id("h").Op("*").Id(name)).Id("Delete").Params().Block(
		append([]jen.Code{
			jen.If(jen.Id("h").Op("==").Nil().Op("||").Op("!").Id("h").Dot("owned").Op("||").Id("h").Dot("ptr").Op("==").Nil()).Block(jen.Return()),
		}, release...)...,
	)
	f.Line()
}
