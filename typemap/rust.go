package typemap

import (
	"fmt"
	"strings"

	"github.com/rust-qt/ritual/alloc"
	"github.com/rust-qt/ritual/cppmodel"
)

// RustType is the Rust side of a mapping: the type in the extern block, the
// type in the public API and the expressions converting between them.
type RustType struct {
	FFI     string
	Host    string
	toFFI   func(string) string
	fromFFI func(string) string
}

// ToFFI converts a host expression to the FFI type.
func (r RustType) ToFFI(expr string) string {
	if r.toFFI == nil {
		return expr
	}
	return r.toFFI(expr)
}

// FromFFI converts an FFI expression to the host type.
func (r RustType) FromFFI(expr string) string {
	if r.fromFFI == nil {
		return expr
	}
	return r.fromFFI(expr)
}

const rawPrefix = "::std::os::raw::"

var rustPrimitives = map[string]string{
	"bool":               "bool",
	"char":               rawPrefix + "c_char",
	"signed char":        rawPrefix + "c_schar",
	"unsigned char":      rawPrefix + "c_uchar",
	"short":              rawPrefix + "c_short",
	"unsigned short":     rawPrefix + "c_ushort",
	"int":                rawPrefix + "c_int",
	"unsigned int":       rawPrefix + "c_uint",
	"long":               rawPrefix + "c_long",
	"unsigned long":      rawPrefix + "c_ulong",
	"long long":          rawPrefix + "c_longlong",
	"unsigned long long": rawPrefix + "c_ulonglong",
	"float":              rawPrefix + "c_float",
	"double":             rawPrefix + "c_double",
	"int8_t":             "i8",
	"int16_t":            "i16",
	"int32_t":            "i32",
	"int64_t":            "i64",
	"uint8_t":            "u8",
	"uint16_t":           "u16",
	"uint32_t":           "u32",
	"uint64_t":           "u64",
	"size_t":             "usize",
	"uintptr_t":          "usize",
	"ssize_t":            "isize",
	"ptrdiff_t":          "isize",
	"intptr_t":           "isize",
	"wchar_t":            "crate::cpp_utils::wchar_t",
	"char16_t":           "u16",
	"char32_t":           "u32",
	"__int128":           "i128",
	"unsigned __int128":  "u128",
}

// RustPrimitive returns the Rust spelling of a builtin.
func RustPrimitive(name string) string {
	if name == "void" {
		return "::std::ffi::c_void"
	}
	return rustPrimitives[name]
}

// RustClassPath is the absolute Rust path of a class type.
func (m *Mapper) RustClassPath(c *cppmodel.Class) string {
	return m.rustPath(c.Dependency, m.ClassNamespace(c), m.HostClassName(c))
}

// RustEnumPath is the absolute Rust path of an enum type.
func (m *Mapper) RustEnumPath(e *cppmodel.Enum) string {
	return m.rustPath(e.Dependency, m.EnumNamespace(e), m.HostEnumName(e))
}

func (m *Mapper) rustPath(dependency, namespace, name string) string {
	root := "crate"
	if dependency != "" {
		root = "::" + SnakeCase(dependency)
	}
	parts := append([]string{root}, m.ModulePath(namespace)...)
	return strings.Join(append(parts, name), "::")
}

func rawPointer(mutable bool, target string) string {
	if mutable {
		return "*mut " + target
	}
	return "*const " + target
}

// rustRaw spells any pointer-free or pointer type as raw Rust FFI type.
func (m *Mapper) rustRaw(t cppmodel.TypeRef) string {
	var base string
	switch t.Kind {
	case cppmodel.KindClass:
		if c, err := m.lib.ClassOf(t.Pointee().WithConst(false)); err == nil {
			base = m.RustClassPath(c)
		} else {
			base = rawPrefix + "c_void"
		}
	case cppmodel.KindEnum:
		if e, ok := m.lib.Enum(t.Name); ok {
			base = m.RustEnumPath(e)
		}
	case cppmodel.KindFunctionPointer:
		return m.rustFunctionPointer(t)
	default:
		base = RustPrimitive(t.Name)
	}
	switch t.Indirection {
	case cppmodel.Pointer, cppmodel.Reference:
		return rawPointer(!t.Const, base)
	case cppmodel.PointerPointer, cppmodel.PointerReference:
		return rawPointer(!t.ConstInner, rawPointer(!t.Const, base))
	}
	return base
}

func (m *Mapper) rustFunctionPointer(t cppmodel.TypeRef) string {
	params := make([]string, len(t.Func.Params))
	for i, p := range t.Func.Params {
		params[i] = m.rustRaw(p)
	}
	ret := ""
	if !t.Func.Return.IsVoid() {
		ret = " -> " + m.rustRaw(t.Func.Return)
	}
	return fmt.Sprintf(`Option<extern "C" fn(%s)%s>`, strings.Join(params, ", "), ret)
}

func (m *Mapper) renderRust(mp *Mapping, ctx Context) {
	t := mp.CPP
	r := &mp.Rust
	switch {
	case t.IsVoid():
		return
	case mp.Conversion == EnumToInt:
		path := m.RustEnumPath(mp.Enum)
		r.FFI, r.Host = path, path
	case mp.Conversion == FlagsToUInt:
		path := m.RustEnumPath(mp.Enum)
		r.FFI = rawPrefix + "c_uint"
		r.Host = "crate::cpp_utils::Flags<" + path + ">"
		r.toFFI = func(x string) string { return fmt.Sprintf("%s.to_int() as %sc_uint", x, rawPrefix) }
		r.fromFFI = func(x string) string {
			return fmt.Sprintf("crate::cpp_utils::Flags::from_int(%s as %sc_int)", x, rawPrefix)
		}
	case mp.Class != nil:
		m.renderRustClass(mp, ctx)
	case t.Kind == cppmodel.KindBuiltin && mp.Conversion == ReferenceToPointer && ctx.Role == Argument &&
		t.Indirection == cppmodel.Reference:
		r.FFI = m.rustRaw(mp.FFI)
		r.Host = "&mut " + RustPrimitive(t.Name)
		ffi := r.FFI
		r.toFFI = func(x string) string { return x + " as " + ffi }
	default:
		r.FFI = m.rustRaw(mp.FFI)
		r.Host = r.FFI
	}
}

func (m *Mapper) renderRustClass(mp *Mapping, ctx Context) {
	t := mp.CPP
	r := &mp.Rust
	path := m.RustClassPath(mp.Class)
	r.FFI = m.rustRaw(mp.FFI)
	ffi := r.FFI

	switch ctx.Role {
	case Receiver:
		if t.Const {
			r.Host = "&self"
		} else {
			r.Host = "&mut self"
		}
		r.toFFI = func(x string) string { return x + " as " + ffi }
		return
	case Argument:
		switch t.Indirection {
		case cppmodel.Value:
			r.Host = "&" + path
			r.toFFI = func(x string) string { return x + " as " + ffi }
		case cppmodel.Reference:
			if t.Const {
				r.Host = "&" + path
			} else {
				r.Host = "&mut " + path
			}
			r.toFFI = func(x string) string { return x + " as " + ffi }
		case cppmodel.Pointer:
			if t.Const {
				r.Host = "crate::cpp_utils::Ptr<" + path + ">"
				r.toFFI = func(x string) string { return x + ".as_raw_ptr()" }
			} else {
				r.Host = "crate::cpp_utils::MutPtr<" + path + ">"
				r.toFFI = func(x string) string { return x + ".as_mut_raw_ptr()" }
			}
		default:
			r.Host = ffi
		}
		return
	}

	switch t.Indirection {
	case cppmodel.Value:
		if mp.Output {
			r.Host = path
			return
		}
		r.Host = "crate::cpp_utils::CppBox<" + path + ">"
		r.fromFFI = func(x string) string {
			return fmt.Sprintf("crate::cpp_utils::CppBox::from_raw(%s).expect(\"attempted to construct a null CppBox\")", x)
		}
	case cppmodel.Reference:
		switch {
		case ctx.HasReceiver && t.Const:
			r.Host = "&" + path
			r.fromFFI = func(x string) string { return "&*" + x }
		case ctx.HasReceiver:
			r.Host = "&mut " + path
			r.fromFFI = func(x string) string { return "&mut *" + x }
		default:
			m.rustBorrowedPointer(mp, path)
		}
	case cppmodel.Pointer:
		if mp.Owned && mp.Strategy == alloc.Owned {
			r.Host = "Option<crate::cpp_utils::CppBox<" + path + ">>"
			r.fromFFI = func(x string) string { return "crate::cpp_utils::CppBox::from_raw(" + x + ")" }
			return
		}
		m.rustBorrowedPointer(mp, path)
	default:
		r.Host = ffi
	}
}

func (m *Mapper) rustBorrowedPointer(mp *Mapping, path string) {
	r := &mp.Rust
	if mp.CPP.Const {
		r.Host = "crate::cpp_utils::Ptr<" + path + ">"
		r.fromFFI = func(x string) string { return "crate::cpp_utils::Ptr::from_raw(" + x + ")" }
	} else {
		r.Host = "crate::cpp_utils::MutPtr<" + path + ">"
		r.fromFFI = func(x string) string { return "crate::cpp_utils::MutPtr::from_raw(" + x + ")" }
	}
}

// RustHostKey is the identity of a mapped argument on the Rust host side for
// platform p. Two overloads whose keys agree on p cannot coexist there.
func RustHostKey(mp *Mapping, p Platform) string {
	return p.ResolveRust(mp.Rust.Host)
}
