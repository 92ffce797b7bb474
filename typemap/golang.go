package typemap

import (
	"strings"

	"github.com/rust-qt/ritual/alloc"
	"github.com/rust-qt/ritual/cppmodel"
)

// GoKind classifies the Go side of a mapping.
type GoKind int

const (
	GoVoid GoKind = iota
	GoPrimitive
	GoEnum
	GoFlags
	// GoHandle is a class handle (*T) around a C pointer.
	GoHandle
	// GoRawPointer is any other pointer, surfaced as unsafe.Pointer.
	GoRawPointer
	// GoUnsupported marks types the Go host cannot express.
	GoUnsupported
)

// GoType describes the Go side of a mapping. gobind turns it into code.
type GoType struct {
	Kind GoKind
	// C is the cgo type name after "C.", e.g. "int" or "geo_Point".
	C string
	// Pointers is the number of C pointer levels on C.
	Pointers int
	// Host is the Go type: a builtin name, or the Go type name of an enum or class.
	Host string
	// Class is the Go type name of a handle's class.
	Class string
	// Owned handles get a finalizer; Output returns go through a buffer.
	Owned  bool
	Output bool
	// Mutable is false for handles obtained from const pointers or references.
	Mutable bool
}

var goPrimitives = map[string][2]string{
	"bool":               {"bool", "bool"},
	"char":               {"char", "int8"},
	"signed char":        {"schar", "int8"},
	"unsigned char":      {"uchar", "uint8"},
	"short":              {"short", "int16"},
	"unsigned short":     {"ushort", "uint16"},
	"int":                {"int", "int32"},
	"unsigned int":       {"uint", "uint32"},
	"long":               {"long", "int64"},
	"unsigned long":      {"ulong", "uint64"},
	"long long":          {"longlong", "int64"},
	"unsigned long long": {"ulonglong", "uint64"},
	"float":              {"float", "float32"},
	"double":             {"double", "float64"},
	"int8_t":             {"int8_t", "int8"},
	"int16_t":            {"int16_t", "int16"},
	"int32_t":            {"int32_t", "int32"},
	"int64_t":            {"int64_t", "int64"},
	"uint8_t":            {"uint8_t", "uint8"},
	"uint16_t":           {"uint16_t", "uint16"},
	"uint32_t":           {"uint32_t", "uint32"},
	"uint64_t":           {"uint64_t", "uint64"},
	"size_t":             {"size_t", "uint"},
	"uintptr_t":          {"uintptr_t", "uintptr"},
	"ssize_t":            {"ssize_t", "int"},
	"ptrdiff_t":          {"ptrdiff_t", "int"},
	"intptr_t":           {"intptr_t", "int"},
	"wchar_t":            {"wchar_t", "int32"},
	"char16_t":           {"char16_t", "uint16"},
	"char32_t":           {"char32_t", "uint32"},
}

// GoBuiltin returns the cgo and Go names of a builtin.
func GoBuiltin(name string) (cName, goName string, ok bool) {
	p, ok := goPrimitives[name]
	return p[0], p[1], ok
}

// GoClassName is the Go type name of a class. The Go host is one package,
// so the module path is folded into the name: geo::Point -> GeoPoint.
func (m *Mapper) GoClassName(c *cppmodel.Class) string {
	return m.goName(m.ClassNamespace(c), m.HostClassName(c))
}

// GoEnumName is the Go type name of an enum.
func (m *Mapper) GoEnumName(e *cppmodel.Enum) string {
	return m.goName(m.EnumNamespace(e), m.HostEnumName(e))
}

// GoFunctionName prefixes the Go name of a free function with its module
// path: geo::place -> GeoPlace.
func (m *Mapper) GoFunctionName(f *cppmodel.Function, name string) string {
	return m.goName(m.FunctionNamespace(f), name)
}

func (m *Mapper) goName(namespace, name string) string {
	var b strings.Builder
	for _, part := range m.ModulePath(namespace) {
		b.WriteString(PascalCase(strings.TrimSuffix(part, "_")))
	}
	b.WriteString(name)
	return GoExported(b.String())
}

func pointerLevels(ind cppmodel.Indirection) int {
	switch ind {
	case cppmodel.Pointer, cppmodel.Reference:
		return 1
	case cppmodel.PointerPointer, cppmodel.PointerReference:
		return 2
	}
	return 0
}

func (m *Mapper) renderGo(mp *Mapping, ctx Context) {
	g := &mp.Go
	t := mp.CPP
	ffi := mp.FFI
	switch {
	case t.IsVoid():
		g.Kind = GoVoid
	case mp.Conversion == EnumToInt:
		g.Kind, g.C, g.Host = GoEnum, "int", m.GoEnumName(mp.Enum)
	case mp.Conversion == FlagsToUInt:
		g.Kind, g.C, g.Host = GoFlags, "uint", m.GoEnumName(mp.Enum)+"Flags"
	case ffi.Kind == cppmodel.KindFunctionPointer:
		g.Kind = GoUnsupported
	case mp.Class != nil && ffi.Indirection == cppmodel.Pointer && mp.Class.Dependency == "":
		g.Kind = GoHandle
		g.C = CTypeName(ffi.Pointee().WithConst(false))
		g.Pointers = 1
		g.Class = m.GoClassName(mp.Class)
		g.Host = "*" + g.Class
		g.Owned = mp.Owned && (mp.Strategy == alloc.Owned || mp.Output)
		g.Output = mp.Output
		g.Mutable = !ffi.Const || ctx.Role == Return && mp.Owned
	case mp.Class != nil:
		// dependency classes and double pointers stay opaque
		g.Kind = GoRawPointer
		g.Host = "unsafe.Pointer"
		g.C = CTypeName(ffi.Pointee().WithConst(false))
		g.Pointers = pointerLevels(ffi.Indirection)
	case ffi.Kind == cppmodel.KindVoid:
		g.Kind, g.Host, g.Pointers = GoRawPointer, "unsafe.Pointer", pointerLevels(ffi.Indirection)
	case ffi.Kind == cppmodel.KindBuiltin:
		cName, goName, ok := GoBuiltin(ffi.Name)
		if !ok {
			g.Kind = GoUnsupported
			return
		}
		g.C = cName
		if ffi.Indirection == cppmodel.Value {
			g.Kind, g.Host = GoPrimitive, goName
			return
		}
		g.Kind, g.Host, g.Pointers = GoRawPointer, "unsafe.Pointer", pointerLevels(ffi.Indirection)
	default:
		g.Kind = GoUnsupported
	}
}
