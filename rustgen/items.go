package rustgen

import (
	"fmt"
	"strings"

	"github.com/rust-qt/ritual/alloc"
	"github.com/rust-qt/ritual/cppmodel"
	"github.com/rust-qt/ritual/overload"
	"github.com/rust-qt/ritual/typemap"
)

const cInt = "::std::os::raw::c_int"

func writeDoc(w *writer, doc string) {
	for _, l := range strings.Split(strings.TrimSpace(doc), "\n") {
		if l = strings.TrimSpace(l); l == "" {
			w.line("///")
		} else {
			w.line("/// %s", l)
		}
	}
}

// ConstName is the Rust name of an enumerator.
func ConstName(value string) string {
	return typemap.RustIdent(strings.ToUpper(typemap.SnakeCase(value)))
}

func (e *Emitter) writeEnum(w *writer, en *cppmodel.Enum) {
	name := e.mapper.HostEnumName(en)
	if en.Doc != "" {
		writeDoc(w, en.Doc)
		w.line("///")
	}
	w.line("/// C++ enum: `%s`.", en.QualifiedName())
	w.line("#[derive(Debug, Clone, Copy, PartialEq, Eq, Hash, PartialOrd, Ord)]")
	w.line("#[repr(transparent)]")
	w.line("pub struct %s(pub %s);", name, cInt)
	w.line("")

	w.open("impl %s", name)
	used := make(map[string]bool)
	for _, v := range en.Values {
		c := ConstName(v.Name)
		for i := 2; used[c]; i++ {
			c = fmt.Sprintf("%s_%d", ConstName(v.Name), i)
		}
		used[c] = true
		if v.Doc != "" {
			writeDoc(w, v.Doc)
		}
		w.line("/// C++ enum variant: `%s` (%d)", v.Name, v.Value)
		w.line("pub const %s: %s = %s(%s);", c, name, name, enumLiteral(v.Value))
	}
	w.close()
	w.line("")

	w.open("impl From<%s> for %s", cInt, name)
	w.open("fn from(value: %s) -> Self", cInt)
	w.line("%s(value)", name)
	w.close()
	w.close()
	w.line("")
	w.open("impl From<%s> for %s", name, cInt)
	w.open("fn from(value: %s) -> Self", name)
	w.line("value.0")
	w.close()
	w.close()
	w.line("")
	w.open("impl crate::cpp_utils::FlagsEnum for %s", name)
	w.open("fn to_flag_value(self) -> %s", cInt)
	w.line("self.0")
	w.close()
	w.close()
	if en.Flags {
		w.line("")
		w.open("impl ::std::ops::BitOr<%s> for %s", name, name)
		w.line("type Output = crate::cpp_utils::Flags<%s>;", name)
		w.open("fn bitor(self, rhs: %s) -> crate::cpp_utils::Flags<%s>", name, name)
		w.line("crate::cpp_utils::Flags::from_enum(self) | rhs")
		w.close()
		w.close()
	}
}

func enumLiteral(v int64) string {
	if v < -1<<31 || v > 1<<31-1 {
		return fmt.Sprintf("%di64 as %s", v, cInt)
	}
	return fmt.Sprint(v)
}

// SizeConst names the constant holding the size of a VALUE class.
func SizeConst(c *cppmodel.Class) string {
	return strings.ToUpper(typemap.CTypeName(c.Type())) + "_SIZE"
}

func (e *Emitter) writeClass(w *writer, c *cppmodel.Class) error {
	name := e.mapper.HostClassName(c)
	path := e.mapper.RustClassPath(c)
	strategy := e.mapper.Strategy(c)
	if c.Doc != "" {
		writeDoc(w, c.Doc)
		w.line("///")
	}
	w.line("/// C++ class: `%s`.", c.Type().String())
	if strategy == alloc.Value {
		w.line("#[repr(C, align(8))]")
		w.open("pub struct %s", name)
		w.line("_buffer: [u8; crate::type_sizes::%s],", SizeConst(c))
		w.close()
	} else {
		w.line("#[repr(C)]")
		w.open("pub struct %s", name)
		w.line("_unused: u8,")
		w.close()
	}

	methods := e.res.ForClass(c.ID())
	var members []*overload.Method
	var destructor *overload.Method
	for _, m := range methods {
		switch {
		case m.Func.IsDestructor():
			destructor = m
		case m.RustName != "":
			members = append(members, m)
		}
	}
	groups := e.res.GroupsOf(c, "")

	if len(members)+len(groups) > 0 {
		w.line("")
		w.open("impl %s", name)
		first := true
		for _, m := range members {
			if !first {
				w.line("")
			}
			first = false
			if err := e.writeFunction(w, m, false); err != nil {
				return fmt.Errorf("%s: %w", m.ID(), err)
			}
		}
		for _, g := range groups {
			if !first {
				w.line("")
			}
			first = false
			e.writeEntryPoint(w, g)
		}
		w.close()
	}

	if destructor != nil {
		this, _ := destructor.ThisArg()
		w.line("")
		if strategy == alloc.Value {
			w.open("impl Drop for %s", name)
			w.line("/// Calls C++ destructor of `%s`.", c.Type().String())
			w.open("fn drop(&mut self)")
			w.line("unsafe { crate::ffi::%s(%s) }", destructor.Symbol, this.Map.Rust.ToFFI("self"))
		} else {
			w.open("impl crate::cpp_utils::CppDeletable for %s", name)
			w.line("/// Calls C++ `delete` on the object.")
			w.open("unsafe fn delete(&mut self)")
			w.line("crate::ffi::%s(%s)", destructor.Symbol, this.Map.Rust.ToFFI("self"))
		}
		w.close()
		w.close()
	}

	if up, ok := e.upcasts[c.ID()]; ok {
		target := e.mapper.RustClassPath(up.Return.Class)
		w.line("")
		w.open("impl ::std::ops::Deref for %s", name)
		w.line("type Target = %s;", target)
		w.line("")
		w.line("/// Calls C++ function: `%s`.", up.Func.Signature())
		w.open("fn deref(&self) -> &%s", target)
		w.line("unsafe { &*crate::ffi::%s(self as *const %s as *mut %s) }", up.Symbol, path, path)
		w.close()
		w.close()
		w.line("")
		w.open("impl ::std::ops::DerefMut for %s", name)
		w.open("fn deref_mut(&mut self) -> &mut %s", target)
		w.line("unsafe { &mut *crate::ffi::%s(self as *mut %s) }", up.Symbol, path)
		w.close()
		w.close()
	}

	for _, g := range groups {
		w.line("")
		e.writeDispatch(w, g)
	}
	for _, m := range members {
		e.writeOperatorTrait(w, m)
	}
	return nil
}

// hostParams renders the parameter list of the host function of m.
func hostParams(m *overload.Method) []string {
	var params []string
	if m.Receiver != overload.Static {
		params = append(params, m.Receiver.String())
	}
	for _, a := range m.PlainArgs() {
		params = append(params, typemap.RustIdent(a.Name)+": "+a.Map.Rust.Host)
	}
	return params
}

// ffiCall is the call of the wrapper with host values converted.
func ffiCall(m *overload.Method) string {
	args := make([]string, len(m.Args))
	for i, a := range m.Args {
		switch a.Role {
		case overload.ThisArg:
			args[i] = a.Map.Rust.ToFFI("self")
		case overload.OutputArg:
			args[i] = "output.as_mut_ptr()"
		default:
			args[i] = a.Map.Rust.ToFFI(typemap.RustIdent(a.Name))
		}
	}
	return fmt.Sprintf("crate::ffi::%s(%s)", m.Symbol, strings.Join(args, ", "))
}

// writeFunction writes the host function of m with its canonical name.
func (e *Emitter) writeFunction(w *writer, m *overload.Method, free bool) error {
	if m.Symbol == "" {
		return fmt.Errorf("no wrapper symbol")
	}
	if m.Func.Doc != "" {
		writeDoc(w, m.Func.Doc)
		w.line("///")
	}
	w.line("/// Calls C++ function: `%s`.", m.Func.Signature())
	if m.MergedWith != nil {
		w.line("///")
		w.line("/// Not available where it coincides with `%s`.", m.MergedWith.Func.Signature())
	}
	if cfg := e.cfg(m.Guard()); cfg != "" {
		w.line("%s", cfg)
	}
	sig := fmt.Sprintf("pub unsafe fn %s(%s)", m.RustName, strings.Join(hostParams(m), ", "))
	if m.Return != nil {
		sig += " -> " + m.Return.Rust.Host
	}
	w.open("%s", sig)
	call := ffiCall(m)
	switch {
	case hasOutput(m):
		w.line("let mut output = ::std::mem::MaybeUninit::<%s>::uninit();", m.Return.Rust.Host)
		w.line("%s;", call)
		w.line("output.assume_init()")
	case m.ReturnsValue():
		w.line("%s", m.Return.Rust.FromFFI(call))
	default:
		w.line("%s;", call)
	}
	w.close()
	return nil
}

func hasOutput(m *overload.Method) bool {
	_, ok := m.OutputArg()
	return ok
}

type opTrait struct {
	trait, method string
	unary         bool
}

var opTraits = map[cppmodel.Operator]opTrait{
	cppmodel.OpAdd:    {"Add", "add", false},
	cppmodel.OpSub:    {"Sub", "sub", false},
	cppmodel.OpMul:    {"Mul", "mul", false},
	cppmodel.OpDiv:    {"Div", "div", false},
	cppmodel.OpRem:    {"Rem", "rem", false},
	cppmodel.OpBitAnd: {"BitAnd", "bitand", false},
	cppmodel.OpBitOr:  {"BitOr", "bitor", false},
	cppmodel.OpBitXor: {"BitXor", "bitxor", false},
	cppmodel.OpShl:    {"Shl", "shl", false},
	cppmodel.OpShr:    {"Shr", "shr", false},
	cppmodel.OpNeg:    {"Neg", "neg", true},
	cppmodel.OpBitNot: {"Not", "not", true},
}

func withLifetime(t string) string {
	if strings.HasPrefix(t, "&") {
		return "&'a " + strings.TrimSpace(t[1:])
	}
	return t
}

// writeOperatorTrait implements the std::ops trait of an operator method
// taking its left operand by shared reference.
func (e *Emitter) writeOperatorTrait(w *writer, m *overload.Method) {
	op, ok := opTraits[m.Func.Operator]
	if !ok || m.Return == nil || m.Full != nil || strings.HasPrefix(m.Return.Rust.Host, "&") {
		return
	}
	args := m.PlainArgs()
	var lhs string
	var rhs *overload.Arg
	var call string
	switch {
	case m.Class != nil && m.Receiver == overload.ConstSelf:
		lhs = "&" + e.mapper.RustClassPath(m.Class)
		if len(args) == 1 {
			rhs = &args[0]
			call = fmt.Sprintf("self.%s(rhs)", m.RustName)
		} else {
			call = fmt.Sprintf("self.%s()", m.RustName)
		}
		if len(args) > 1 {
			return
		}
	case m.Class == nil && len(args) >= 1:
		first := args[0].Map
		if first.Class == nil || first.Class.Dependency != "" || first.Rust.Host != "&"+e.mapper.RustClassPath(first.Class) {
			return
		}
		lhs = first.Rust.Host
		fn := modulePathString(e.mapper.ModulePath(e.mapper.FunctionNamespace(m.Func))) + "::" + m.RustName
		switch len(args) {
		case 1:
			call = fmt.Sprintf("%s(self)", fn)
		case 2:
			rhs = &args[1]
			call = fmt.Sprintf("%s(self, rhs)", fn)
		default:
			return
		}
	default:
		return
	}
	if op.unary != (rhs == nil) {
		return
	}
	if rhs != nil && strings.HasPrefix(rhs.Map.Rust.Host, "&mut") {
		return
	}

	trait := "::std::ops::" + op.trait
	rhsType := ""
	if rhs != nil {
		rhsType = withLifetime(rhs.Map.Rust.Host)
		trait += "<" + rhsType + ">"
	}
	key := trait + " for " + lhs
	if e.opImpls[key] {
		return
	}
	e.opImpls[key] = true

	ret := m.Return.Rust.Host
	w.line("")
	if cfg := e.cfg(m.Guard()); cfg != "" {
		w.line("%s", cfg)
	}
	w.open("impl<'a> %s for %s", trait, withLifetime(lhs))
	w.line("type Output = %s;", ret)
	w.line("")
	w.line("/// Calls C++ function: `%s`.", m.Func.Signature())
	if rhs != nil {
		w.open("fn %s(self, rhs: %s) -> %s", op.method, rhsType, ret)
	} else {
		w.open("fn %s(self) -> %s", op.method, ret)
	}
	w.line("unsafe { %s }", call)
	w.close()
	w.close()
}
