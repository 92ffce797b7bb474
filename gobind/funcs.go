package gobind

import (
	"go/token"
	"strings"

	"github.com/dave/jennifer/jen"

	"github.com/rust-qt/ritual/overload"
	"github.com/rust-qt/ritual/typemap"
)

// reservedIdents are names the generated bodies use themselves.
var reservedIdents = map[string]bool{
	"h": true, "out": true, "r": true, "C": true, "unsafe": true, "runtime": true,
}

func paramName(name string) string {
	if token.IsKeyword(name) || reservedIdents[name] || predeclared[name] {
		return name + "_"
	}
	return name
}

var predeclared = map[string]bool{
	"bool": true, "byte": true, "int": true, "int8": true, "int16": true, "int32": true, "int64": true,
	"uint": true, "uint8": true, "uint16": true, "uint32": true, "uint64": true, "uintptr": true,
	"float32": true, "float64": true, "string": true, "error": true, "len": true, "cap": true,
	"new": true, "make": true, "nil": true, "true": true, "false": true, "append": true, "copy": true,
}

// FuncName is the Go name of the function generated for m, and the
// receiver type when it is a method.
func (e *Emitter) FuncName(m *overload.Method) (name, receiver string) {
	if m.Class == nil {
		return e.mapper.GoFunctionName(m.Func, m.GoName), ""
	}
	class := e.mapper.GoClassName(m.Class)
	if m.Receiver != overload.Static {
		return m.GoName, class
	}
	if m.Func.IsConstructor() {
		return "New" + class + strings.TrimPrefix(m.GoName, "New"), ""
	}
	return class + m.GoName, ""
}

func goType(g typemap.GoType) jen.Code {
	switch g.Kind {
	case typemap.GoHandle:
		return jen.Op("*").Id(g.Class)
	case typemap.GoRawPointer:
		return jen.Qual("unsafe", "Pointer")
	}
	return jen.Id(g.Host)
}

// toC converts a Go argument to the C type of the wrapper parameter.
func toC(g typemap.GoType, x jen.Code) jen.Code {
	switch g.Kind {
	case typemap.GoPrimitive, typemap.GoEnum, typemap.GoFlags:
		return jen.Qual("C", g.C).Call(x)
	case typemap.GoHandle:
		return cPointer(g.C, jen.Add(x).Dot("Pointer").Call())
	case typemap.GoRawPointer:
		if g.C == "" {
			if g.Pointers > 1 {
				return jen.Parens(jen.Op(strings.Repeat("*", g.Pointers-1)).Qual("unsafe", "Pointer")).Call(x)
			}
			return x
		}
		return jen.Parens(jen.Op(strings.Repeat("*", g.Pointers)).Qual("C", g.C)).Call(x)
	}
	return x
}

// fromC converts the wrapper result r to the Go return type.
func fromC(g typemap.GoType, r jen.Code) jen.Code {
	switch g.Kind {
	case typemap.GoHandle:
		return jen.Id("new"+g.Class).Call(jen.Qual("unsafe", "Pointer").Call(r), jen.Lit(g.Owned))
	case typemap.GoRawPointer:
		return jen.Qual("unsafe", "Pointer").Call(r)
	}
	return jen.Id(g.Host).Call(r)
}

func (e *Emitter) writeMethod(f *jen.File, m *overload.Method) {
	name, receiver := e.FuncName(m)
	key := name
	if receiver != "" {
		key = "*" + receiver + "." + name
	}
	e.funcs[key] = m

	var params []jen.Code
	var args []jen.Code
	var pre []jen.Code
	for _, a := range m.Args {
		switch a.Role {
		case overload.ThisArg:
			args = append(args, cPointer(a.Map.Go.C, jen.Id("h").Dot("ptr")))
		case overload.OutputArg:
			size := sizeConst(a.Map.Go.Class)
			pre = append(pre, jen.Id("out").Op(":=").Qual("C", "malloc").Call(jen.Qual("C", "size_t").Call(jen.Id(size))))
			args = append(args, cPointer(a.Map.Go.C, jen.Id("out")))
		default:
			p := paramName(a.Name)
			params = append(params, jen.Id(p).Add(goType(a.Map.Go)))
			args = append(args, toC(a.Map.Go, jen.Id(p)))
		}
	}

	call := jen.Qual("C", m.Symbol).Call(args...)
	body := append([]jen.Code{}, pre...)
	var result jen.Code
	switch {
	case m.Return == nil:
		body = append(body, call)
	case hasOutput(m):
		result = goType(m.Return.Go)
		body = append(body, call, jen.Return(jen.Id("new"+m.Return.Go.Class).Call(jen.Id("out"), jen.True())))
	default:
		result = goType(m.Return.Go)
		body = append(body, jen.Id("r").Op(":=").Add(call), jen.Return(fromC(m.Return.Go, jen.Id("r"))))
	}

	f.Commentf("%s calls the C++ function %s.", name, m.Func.Signature())
	fn := f.Func()
	if receiver != "" {
		fn.Params(jen.Id("h").Op("*").Id(receiver))
	}
	fn.Id(name).Params(params...)
	if result != nil {
		fn.Add(result)
	}
	fn.Block(body...)
	f.Line()
}

func hasOutput(m *overload.Method) bool {
	_, ok := m.OutputArg()
	return ok
}
