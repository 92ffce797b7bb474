// Package typemap converts C++ type references into the types used at the
// FFI boundary and on the host side, together with the conversion applied
// in each direction.
package typemap

import (
	"fmt"
	"strings"

	"github.com/tliron/commonlog"

	"github.com/rust-qt/ritual/alloc"
	"github.com/rust-qt/ritual/cppmodel"
	"github.com/rust-qt/ritual/diag"
)

var log = commonlog.GetLogger("ritual.typemap")

// Conversion is what the wrapper does to cross the boundary.
type Conversion int

const (
	NoChange Conversion = iota
	// ValueToPointer passes a class value as a pointer; the wrapper
	// dereferences arguments and copies return values into storage.
	ValueToPointer
	// ReferenceToPointer passes a reference as a pointer.
	ReferenceToPointer
	// FlagsToUInt passes a flags value as unsigned int.
	FlagsToUInt
	// EnumToInt passes an enum as int.
	EnumToInt
)

func (c Conversion) String() string {
	switch c {
	case NoChange:
		return "NoChange"
	case ValueToPointer:
		return "ValueToPointer"
	case ReferenceToPointer:
		return "ReferenceToPointer"
	case FlagsToUInt:
		return "FlagsToUInt"
	case EnumToInt:
		return "EnumToInt"
	}
	return fmt.Sprintf("Conversion(%d)", int(c))
}

// Role is the position of a type in a signature.
type Role int

const (
	Argument Role = iota
	Return
	Receiver
)

// Context describes the call site a type appears in.
type Context struct {
	Role Role
	// Owning marks returns that transfer ownership: constructors, factories
	// and annotated owning returns.
	Owning bool
	// HasReceiver is set when the host function takes self, which lets
	// reference returns borrow from it.
	HasReceiver bool
}

// Mapping is the result of mapping one type.
type Mapping struct {
	CPP cppmodel.TypeRef
	// FFI is the C++ type in the wrapper signature.
	FFI        cppmodel.TypeRef
	Conversion Conversion
	// C is the spelling of FFI in the C-compatible header.
	C string
	// Class is set for class-related types, Enum for enum and flags types.
	Class    *cppmodel.Class
	Enum     *cppmodel.Enum
	Strategy alloc.Strategy
	// Output marks a return that travels through a caller-supplied buffer.
	Output bool
	Owned  bool
	Rust   RustType
	Go     GoType
}

// Options configures a Mapper.
type Options struct {
	FlagsTemplate      string
	FilteredNamespaces []string
	Platforms          []Platform
}

// Mapper maps types against one library.
type Mapper struct {
	lib      *cppmodel.Library
	table    *alloc.Table
	opts     Options
	excluded func(string) bool
	filtered map[string]bool
}

// New returns a Mapper. excluded reports classes removed from the run.
func New(lib *cppmodel.Library, table *alloc.Table, opts Options, excluded func(string) bool) *Mapper {
	if opts.FlagsTemplate == "" {
		opts.FlagsTemplate = "QFlags"
	}
	if len(opts.Platforms) == 0 {
		opts.Platforms = DefaultPlatforms()
	}
	if excluded == nil {
		excluded = func(string) bool { return false }
	}
	filtered := make(map[string]bool)
	for _, ns := range opts.FilteredNamespaces {
		filtered[ns] = true
	}
	return &Mapper{lib: lib, table: table, opts: opts, excluded: excluded, filtered: filtered}
}

// Library returns the library the mapper resolves against.
func (m *Mapper) Library() *cppmodel.Library { return m.lib }

// Platforms returns the configured platforms.
func (m *Mapper) Platforms() []Platform { return m.opts.Platforms }

// Strategy returns the allocation strategy of a class.
func (m *Mapper) Strategy(c *cppmodel.Class) alloc.Strategy { return m.table.Strategy(c.ID()) }

// IsFlags reports whether t names the flags template over an enum.
func (m *Mapper) IsFlags(t cppmodel.TypeRef) bool {
	return t.Kind == cppmodel.KindClass && t.Name == m.opts.FlagsTemplate &&
		len(t.Args) == 1 && t.Args[0].Kind == cppmodel.KindEnum
}

// FlagsTemplate returns the configured flags template name.
func (m *Mapper) FlagsTemplate() string { return m.opts.FlagsTemplate }

func unsupported(t cppmodel.TypeRef, format string, args ...any) error {
	return diag.New(diag.UnsupportedConstruct, "", "%s: %s", t, fmt.Sprintf(format, args...))
}

// Map maps t in the given context. Failures are *diag.Diagnostic values
// without an entity; the caller attaches the function or class.
func (m *Mapper) Map(t cppmodel.TypeRef, ctx Context) (*Mapping, error) {
	t = m.normalize(t)
	if t.Kind == cppmodel.KindTemplateParam || t.ContainsTemplateParam() {
		return nil, unsupported(t, "unbound template parameter")
	}
	if t.Indirection == cppmodel.RValueReference {
		return nil, unsupported(t, "rvalue reference")
	}
	mp := &Mapping{CPP: t, FFI: t}
	var err error
	switch t.Kind {
	case cppmodel.KindVoid:
		err = m.mapVoid(mp, ctx)
	case cppmodel.KindBuiltin:
		err = m.mapBuiltin(mp, ctx)
	case cppmodel.KindEnum:
		err = m.mapEnum(mp, ctx)
	case cppmodel.KindFunctionPointer:
		err = m.mapFunctionPointer(mp)
	case cppmodel.KindClass:
		if m.IsFlags(t) {
			err = m.mapFlags(mp, ctx)
		} else {
			err = m.mapClass(mp, ctx)
		}
	default:
		err = unsupported(t, "unknown type kind %s", t.Kind)
	}
	if err != nil {
		return nil, err
	}
	mp.C = m.cSpelling(mp.FFI)
	m.renderRust(mp, ctx)
	m.renderGo(mp, ctx)
	return mp, nil
}

// normalize relabels class-kinded names that are known enums. Types built
// outside Library.Resolve (configuration, tests) come through here unlabeled.
func (m *Mapper) normalize(t cppmodel.TypeRef) cppmodel.TypeRef {
	if t.Kind == cppmodel.KindClass && len(t.Args) == 0 {
		if _, ok := m.lib.Enum(t.Name); ok {
			t.Kind = cppmodel.KindEnum
		}
	}
	if len(t.Args) > 0 {
		args := make([]cppmodel.TypeRef, len(t.Args))
		for i, a := range t.Args {
			args[i] = m.normalize(a)
		}
		t.Args = args
	}
	if t.Func != nil {
		f := *t.Func
		f.Return = m.normalize(f.Return)
		f.Params = make([]cppmodel.TypeRef, len(t.Func.Params))
		for i, p := range t.Func.Params {
			f.Params[i] = m.normalize(p)
		}
		t.Func = &f
	}
	return t
}

func (m *Mapper) mapVoid(mp *Mapping, ctx Context) error {
	t := mp.CPP
	if t.Indirection == cppmodel.Value && ctx.Role != Return {
		return unsupported(t, "void argument")
	}
	if t.Indirection == cppmodel.Reference || t.Indirection == cppmodel.PointerReference {
		return unsupported(t, "reference to void")
	}
	return nil
}

func (m *Mapper) mapBuiltin(mp *Mapping, ctx Context) error {
	t := mp.CPP
	if t.Name == "long double" {
		return unsupported(t, "long double has no FFI equivalent")
	}
	switch t.Indirection {
	case cppmodel.Reference:
		if t.Const {
			// const T& binds to a temporary: pass and return by value.
			mp.FFI = t.Pointee().WithConst(false)
			return nil
		}
		mp.FFI = t.WithIndirection(cppmodel.Pointer)
		mp.Conversion = ReferenceToPointer
	case cppmodel.PointerReference:
		mp.FFI = t.WithIndirection(cppmodel.PointerPointer)
		mp.Conversion = ReferenceToPointer
	case cppmodel.Value:
		mp.FFI = t.WithConst(false)
	}
	return nil
}

func (m *Mapper) mapEnum(mp *Mapping, ctx Context) error {
	t := mp.CPP
	e, ok := m.lib.Enum(t.Name)
	if !ok {
		return diag.New(diag.UnresolvedType, "", "enum %s is not defined", t.Name)
	}
	if m.excluded(e.QualifiedName()) {
		return unsupported(t, "enum %s is excluded from this run", e.QualifiedName())
	}
	mp.Enum = e
	switch {
	case t.Indirection == cppmodel.Value, t.Indirection == cppmodel.Reference && t.Const:
		mp.FFI = cppmodel.BuiltinType("int")
		mp.Conversion = EnumToInt
		return nil
	}
	return unsupported(t, "pointer or mutable reference to enum")
}

func (m *Mapper) mapFlags(mp *Mapping, ctx Context) error {
	t := mp.CPP
	e, ok := m.lib.Enum(t.Args[0].Name)
	if !ok {
		return diag.New(diag.UnresolvedType, "", "enum %s is not defined", t.Args[0].Name)
	}
	if m.excluded(e.QualifiedName()) {
		return unsupported(t, "enum %s is excluded from this run", e.QualifiedName())
	}
	if !(t.Indirection == cppmodel.Value || t.Indirection == cppmodel.Reference && t.Const) {
		return unsupported(t, "flags must be passed by value or const reference")
	}
	mp.Enum = e
	mp.FFI = cppmodel.BuiltinType("unsigned int")
	mp.Conversion = FlagsToUInt
	return nil
}

func (m *Mapper) mapFunctionPointer(mp *Mapping) error {
	t := mp.CPP
	if t.Func == nil || t.Indirection != cppmodel.Pointer {
		return unsupported(t, "function type")
	}
	check := func(x cppmodel.TypeRef) error {
		if x.Indirection == cppmodel.Reference || x.Indirection == cppmodel.RValueReference ||
			x.Indirection == cppmodel.PointerReference {
			return unsupported(t, "function pointer with reference argument %s", x)
		}
		if x.IsClassValue() {
			return unsupported(t, "function pointer with class value argument %s", x)
		}
		if x.Kind == cppmodel.KindFunctionPointer {
			return unsupported(t, "nested function pointer")
		}
		if x.Kind == cppmodel.KindClass {
			if _, err := m.lib.ClassOf(x.Pointee().WithConst(false)); err != nil {
				return diag.New(diag.UnresolvedType, "", "%v", err)
			}
		}
		if x.Kind == cppmodel.KindEnum {
			return unsupported(t, "function pointer with enum argument %s", x)
		}
		return nil
	}
	for _, p := range t.Func.Params {
		if err := check(p); err != nil {
			return err
		}
	}
	if !t.Func.Return.IsVoid() {
		if err := check(t.Func.Return); err != nil {
			return err
		}
	}
	if t.Func.Variadic {
		return unsupported(t, "variadic function pointer")
	}
	return nil
}

func (m *Mapper) mapClass(mp *Mapping, ctx Context) error {
	t := mp.CPP
	c, err := m.lib.ClassOf(t.Pointee().WithConst(false))
	if err != nil {
		return diag.New(diag.UnresolvedType, "", "%v", err)
	}
	if c.IsTemplate() {
		return unsupported(t, "uninstantiated template %s", c.QualifiedName())
	}
	if m.excluded(c.ID()) {
		return unsupported(t, "class %s is excluded from this run", c.ID())
	}
	if c.Incomplete {
		return diag.New(diag.UnresolvedType, "", "class %s is only forward-declared", c.ID())
	}
	mp.Class = c
	mp.Strategy = m.table.Strategy(c.ID())
	switch t.Indirection {
	case cppmodel.Value:
		mp.Conversion = ValueToPointer
		if ctx.Role == Return {
			mp.Owned = true
			mp.Output = mp.Strategy == alloc.Value
			mp.FFI = t.WithConst(false).WithIndirection(cppmodel.Pointer)
		} else {
			mp.FFI = t.WithConst(true).WithIndirection(cppmodel.Pointer)
		}
	case cppmodel.Reference:
		mp.Conversion = ReferenceToPointer
		mp.FFI = t.WithIndirection(cppmodel.Pointer)
	case cppmodel.Pointer:
		mp.Owned = ctx.Role == Return && ctx.Owning
		if mp.Owned && mp.Strategy != alloc.Owned {
			return unsupported(t, "owning pointer to %s class %s", mp.Strategy, c.ID())
		}
	case cppmodel.PointerReference:
		mp.Conversion = ReferenceToPointer
		mp.FFI = t.WithIndirection(cppmodel.PointerPointer)
	}
	return nil
}

// cSpelling renders an FFI type for the C-compatible header: classes become
// their typedef names, builtins keep their C spelling.
func (m *Mapper) cSpelling(t cppmodel.TypeRef) string {
	if t.Kind == cppmodel.KindFunctionPointer && t.Func != nil {
		params := make([]string, len(t.Func.Params))
		for i, p := range t.Func.Params {
			params[i] = m.cSpelling(p)
		}
		if len(params) == 0 {
			params = []string{"void"}
		}
		return fmt.Sprintf("%s (*)(%s)", m.cSpelling(t.Func.Return), strings.Join(params, ", "))
	}
	var b strings.Builder
	if t.Const {
		b.WriteString("const ")
	}
	switch t.Kind {
	case cppmodel.KindClass:
		b.WriteString(CTypeName(t.Pointee().WithConst(false)))
	case cppmodel.KindBuiltin:
		b.WriteString(cBuiltin(t.Name))
	default:
		b.WriteString(t.BaseName())
	}
	switch t.Indirection {
	case cppmodel.Pointer:
		b.WriteString("*")
	case cppmodel.PointerPointer:
		if t.ConstInner {
			b.WriteString("* const*")
		} else {
			b.WriteString("**")
		}
	}
	return b.String()
}

// DeclareC renders a C declaration of name with the mapped FFI type.
func (mp *Mapping) DeclareC(name string) string {
	if mp.FFI.Kind == cppmodel.KindFunctionPointer {
		return strings.Replace(mp.C, "(*)", "(*"+name+")", 1)
	}
	return mp.C + " " + name
}

// CTypeName is the typedef name of a class in the C header:
// "geo::Vector<int>" -> "geo_Vector_int".
func CTypeName(t cppmodel.TypeRef) string {
	return cppmodel.Identifier(strings.ReplaceAll(t.Caption(true), "const_", ""))
}

func cBuiltin(name string) string {
	switch name {
	case "__int128":
		return "__int128"
	case "unsigned __int128":
		return "unsigned __int128"
	}
	return name
}

// NamespaceOf returns the namespace path enclosing a class, skipping
// enclosing classes, and the class name relative to that namespace.
func (m *Mapper) NamespaceOf(scope, name string) (string, []string) {
	rel := []string{name}
	for scope != "" {
		if _, ok := m.lib.Class(scope); !ok {
			break
		}
		i := strings.LastIndex(scope, "::")
		rel = append([]string{cppmodel.ShortName(scope)}, rel...)
		if i < 0 {
			scope = ""
		} else {
			scope = scope[:i]
		}
	}
	return scope, rel
}

// ModulePath returns the Rust module path of a namespace below the crate root.
func (m *Mapper) ModulePath(namespace string) []string {
	return RustModulePath(namespace, m.filtered)
}

// HostClassName is the host type name of a class: nested classes are
// flattened ("Outer::Inner" -> "OuterInner") and instances spell their
// arguments ("Vector<int>" -> "VectorOfInt").
func (m *Mapper) HostClassName(c *cppmodel.Class) string {
	_, rel := m.NamespaceOf(c.Scope, c.Name)
	var b strings.Builder
	for _, part := range rel {
		b.WriteString(PascalCase(part))
	}
	if c.Instance != nil {
		args := make([]string, len(c.Instance.Args))
		for i, a := range c.Instance.Args {
			args[i] = PascalCase(a.Caption(false))
		}
		b.WriteString("Of")
		b.WriteString(strings.Join(args, "And"))
	}
	return b.String()
}

// CheckHostNames reports classes and enums whose Rust path or Go name is
// already taken by a sibling as NameCollision; the later entity loses. It
// returns the number of collisions.
func (m *Mapper) CheckHostNames(diags *diag.Collector) int {
	owners := make(map[string]string)
	n := 0
	claim := func(id string, names ...string) {
		for _, name := range names {
			if owner, ok := owners[name]; ok {
				diags.Report(diag.NameCollision, id, "host name %s is already used by %s", name, owner)
				n++
				return
			}
		}
		for _, name := range names {
			owners[name] = id
		}
	}
	for _, c := range m.lib.Classes() {
		if c.IsTemplate() || c.Dependency != "" || m.excluded(c.ID()) {
			continue
		}
		claim(c.ID(), m.RustClassPath(c), "go:"+m.GoClassName(c))
	}
	for _, e := range m.lib.Enums() {
		if e.Dependency != "" || m.excluded(e.QualifiedName()) {
			continue
		}
		if c, ok := m.lib.Class(e.Scope); ok && c.IsTemplate() {
			continue
		}
		claim(e.QualifiedName(), m.RustEnumPath(e), "go:"+m.GoEnumName(e))
	}
	return n
}

// HostEnumName is the host type name of an enum.
func (m *Mapper) HostEnumName(e *cppmodel.Enum) string {
	_, rel := m.NamespaceOf(e.Scope, e.Name)
	var b strings.Builder
	for _, part := range rel {
		b.WriteString(PascalCase(part))
	}
	return b.String()
}

// ClassNamespace returns the namespace path a class is emitted into.
func (m *Mapper) ClassNamespace(c *cppmodel.Class) string {
	ns, _ := m.NamespaceOf(c.Scope, c.Name)
	return ns
}

// EnumNamespace returns the namespace path an enum is emitted into.
func (m *Mapper) EnumNamespace(e *cppmodel.Enum) string {
	ns, _ := m.NamespaceOf(e.Scope, e.Name)
	return ns
}

// FunctionNamespace returns the namespace path a free function is emitted into.
func (m *Mapper) FunctionNamespace(f *cppmodel.Function) string {
	ns, _ := m.NamespaceOf(f.Scope, "")
	return ns
}

// LogSummary logs how many classes of each strategy the mapper sees.
func (m *Mapper) LogSummary() {
	counts := map[alloc.Strategy]int{}
	for _, id := range m.table.IDs() {
		counts[m.table.Strategy(id)]++
	}
	log.Infof("mapping against %d OWNED and %d VALUE classes", counts[alloc.Owned], counts[alloc.Value])
}
