package rustgen

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/rust-qt/ritual/alloc"
	"github.com/rust-qt/ritual/cppmodel"
	"github.com/rust-qt/ritual/diag"
	"github.com/rust-qt/ritual/internal/golden"
	"github.com/rust-qt/ritual/overload"
	"github.com/rust-qt/ritual/typemap"
)

func typ(s string) cppmodel.TypeRef { return cppmodel.MustParseType(s) }

func member(scope, name, ret string, params ...cppmodel.Param) *cppmodel.Function {
	return &cppmodel.Function{Name: name, Scope: scope, Member: true, Params: params, Return: typ(ret)}
}

func param(name, spelling string) cppmodel.Param {
	return cppmodel.Param{Name: name, Type: typ(spelling)}
}

func fixture() *cppmodel.Library {
	lib := cppmodel.NewLibrary("geometry")

	point := &cppmodel.Class{Name: "Point", Include: "point.h", Fields: []*cppmodel.Field{
		{Name: "x", Type: typ("int")},
		{Name: "y", Type: typ("int")},
	}}
	ctor := member("Point", "Point", "void", param("x", "int"), param("y", "int"))
	ctor.Kind = cppmodel.Constructor
	plus := member("Point", "operator+", "Point", param("other", "const Point&"))
	plus.Operator = cppmodel.OpAdd
	plus.Const = true
	point.Methods = []*cppmodel.Function{ctor, plus}

	animal := &cppmodel.Class{Name: "Animal", Include: "zoo.h"}
	speak := member("Animal", "speak", "int")
	speak.Const, speak.Virtual = true, true
	animal.Methods = []*cppmodel.Function{speak}
	dog := &cppmodel.Class{Name: "Dog", Include: "zoo.h", Bases: []cppmodel.TypeRef{typ("Animal")}}
	dogCtor := member("Dog", "Dog", "void")
	dogCtor.Kind = cppmodel.Constructor
	dog.Methods = []*cppmodel.Function{dogCtor}

	minus := &cppmodel.Function{Name: "operator-", Include: "point.h", Operator: cppmodel.OpSub,
		Params: []cppmodel.Param{param("a", "const Point&"), param("b", "const Point&")}, Return: typ("Point")}
	lib.Root.Classes = []*cppmodel.Class{point, animal, dog}
	lib.Root.Functions = []*cppmodel.Function{minus}

	geo := lib.Namespace("geo")
	geo.Enums = []*cppmodel.Enum{{Name: "Align", Scope: "geo", Include: "geo.h",
		Values: []cppmodel.EnumValue{{Name: "Left", Value: 0}, {Name: "Right", Value: 1}}}}
	place := &cppmodel.Function{Name: "place", Scope: "geo", Include: "geo.h", Return: typ("void"),
		Params: []cppmodel.Param{param("x", "int"), {Name: "a", Type: typ("Align"), Default: "Left"}}}
	geo.Functions = []*cppmodel.Function{place}
	lib.Resolve()
	return lib
}

type run struct {
	tree  Tree
	res   *overload.Result
	diags *diag.Collector
}

func generate(t *testing.T, lib *cppmodel.Library, sizes map[string]map[string]int, opts Options) run {
	t.Helper()
	diags := diag.NewCollector()
	table := alloc.Classify(lib, alloc.Options{Sizes: sizes}, diags)
	mapper := typemap.New(lib, table, typemap.Options{}, diags.Excluded)
	res := overload.Resolve(overload.Input{Library: lib, Mapper: mapper, Diags: diags})
	opts.Sizes = table
	opts.Excluded = diags.Excluded
	tree, err := New(mapper, res, opts).Emit()
	if err != nil {
		t.Fatalf("Emit: %v", err)
	}
	return run{tree: tree, res: res, diags: diags}
}

func file(t *testing.T, tree Tree, path string) string {
	t.Helper()
	content, ok := tree[path]
	if !ok {
		t.Fatalf("%s not generated; have %v", path, tree.Paths())
	}
	return string(content)
}

func containsAll(t *testing.T, name, content string, wants ...string) {
	t.Helper()
	for _, want := range wants {
		if !strings.Contains(content, want) {
			t.Errorf("%s lacks:\n%s", name, want)
		}
	}
}

func TestCrateLayout(t *testing.T) {
	r := generate(t, fixture(), nil, Options{})
	want := []string{
		"Cargo.toml", "build.rs",
		"src/cpp_utils.rs", "src/ffi.rs", "src/geo.rs", "src/lib.rs", "src/type_sizes.rs",
	}
	if got := r.tree.Paths(); strings.Join(got, " ") != strings.Join(want, " ") {
		t.Errorf("paths = %v, want %v", got, want)
	}
	containsAll(t, "lib.rs", file(t, r.tree, "src/lib.rs"),
		"pub mod cpp_utils;\nmod ffi;\nmod type_sizes;\n",
		"pub mod geo;",
	)
}

func TestValueClass(t *testing.T) {
	r := generate(t, fixture(), nil, Options{})
	lib := file(t, r.tree, "src/lib.rs")
	containsAll(t, "lib.rs", lib,
		"#[repr(C, align(8))]\npub struct Point {\n    _buffer: [u8; crate::type_sizes::POINT_SIZE],\n}",
		"/// Calls C++ function: `int Point::x() const`.",
		"    pub unsafe fn x(&self) -> ::std::os::raw::c_int {\n        crate::ffi::Point_x(self as *const crate::Point)\n    }",
		"    pub unsafe fn set_x(&mut self, value: ::std::os::raw::c_int) {\n        crate::ffi::Point_setX(self as *mut crate::Point, value);\n    }",
		"let mut output = ::std::mem::MaybeUninit::<crate::Point>::uninit();",
		"crate::ffi::Point_operator_add(self as *const crate::Point, other as *const crate::Point, output.as_mut_ptr());",
		"output.assume_init()",
		"impl Drop for Point {",
		"unsafe { crate::ffi::Point_destructor(self as *mut crate::Point) }",
		"    pub unsafe fn new_copy(other: &crate::Point) -> crate::Point {",
	)
}

func TestRootModuleGolden(t *testing.T) {
	lib := cppmodel.NewLibrary("tiny")
	lib.Root.Enums = []*cppmodel.Enum{{Name: "Mode", Include: "tiny.h",
		Values: []cppmodel.EnumValue{{Name: "Off", Value: 0}, {Name: "On", Value: 1}}}}
	lib.Root.Functions = []*cppmodel.Function{{Name: "level", Include: "tiny.h", Return: typ("int"),
		Params: []cppmodel.Param{param("m", "Mode")}}}
	lib.Resolve()

	r := generate(t, lib, nil, Options{})
	golden.Check(t, filepath.Join("testdata", "tiny_lib.rs.golden"), file(t, r.tree, "src/lib.rs"))
}

func TestOperatorTraits(t *testing.T) {
	r := generate(t, fixture(), nil, Options{})
	lib := file(t, r.tree, "src/lib.rs")
	containsAll(t, "lib.rs", lib,
		"impl<'a> ::std::ops::Add<&'a crate::Point> for &'a crate::Point {\n    type Output = crate::Point;",
		"fn add(self, rhs: &'a crate::Point) -> crate::Point {\n        unsafe { self.op_add(rhs) }",
		"impl<'a> ::std::ops::Sub<&'a crate::Point> for &'a crate::Point {",
		"unsafe { crate::op_sub(self, rhs) }",
	)
}

func TestOwnedClass(t *testing.T) {
	r := generate(t, fixture(), nil, Options{})
	lib := file(t, r.tree, "src/lib.rs")

	var upcast *overload.Method
	for _, m := range r.res.ForClass("Dog") {
		if m.Func.Synthetic == cppmodel.StaticUpcast {
			upcast = m
		}
	}
	if upcast == nil {
		t.Fatal("Dog has no upcast")
	}

	containsAll(t, "lib.rs", lib,
		"#[repr(C)]\npub struct Dog {\n    _unused: u8,\n}",
		"pub unsafe fn new() -> crate::cpp_utils::CppBox<crate::Dog> {",
		"crate::cpp_utils::CppBox::from_raw(crate::ffi::Dog_new()).expect(\"attempted to construct a null CppBox\")",
		"impl crate::cpp_utils::CppDeletable for Dog {",
		"crate::ffi::Dog_delete(self as *mut crate::Dog)",
		"impl ::std::ops::Deref for Dog {\n    type Target = crate::Animal;",
		"unsafe { &*crate::ffi::"+upcast.Symbol+"(self as *const crate::Dog as *mut crate::Dog) }",
		"impl ::std::ops::DerefMut for Dog {",
	)
	if strings.Contains(lib, "impl ::std::ops::Deref for Animal") {
		t.Error("a class without bases has no Deref")
	}
}

func TestEnumNewtype(t *testing.T) {
	r := generate(t, fixture(), nil, Options{})
	geo := file(t, r.tree, "src/geo.rs")
	containsAll(t, "geo.rs", geo,
		"/// C++ enum: `geo::Align`.",
		"#[repr(transparent)]\npub struct Align(pub ::std::os::raw::c_int);",
		"pub const LEFT: Align = Align(0);",
		"pub const RIGHT: Align = Align(1);",
		"impl crate::cpp_utils::FlagsEnum for Align {",
	)
}

func TestFreeFunctionDispatch(t *testing.T) {
	r := generate(t, fixture(), nil, Options{})
	geo := file(t, r.tree, "src/geo.rs")
	containsAll(t, "geo.rs", geo,
		"pub unsafe fn place<'a, A: crate::geo::PlaceArgs<'a>>(args: A) -> A::Output {\n    args.exec()\n}",
		"pub trait PlaceArgs<'a> {\n    type Output;\n    unsafe fn exec(self) -> Self::Output;\n}",
		"impl<'a> PlaceArgs<'a> for (::std::os::raw::c_int,) {",
		"impl<'a> PlaceArgs<'a> for (::std::os::raw::c_int, crate::geo::Align) {",
		"crate::geo::place_",
	)
}

func TestMethodDispatch(t *testing.T) {
	lib := cppmodel.NewLibrary("paint")
	canvas := &cppmodel.Class{Name: "Canvas", Include: "canvas.h"}
	canvas.Methods = []*cppmodel.Function{
		member("Canvas", "resize", "void", param("side", "int")),
		member("Canvas", "resize", "void", param("w", "int"), param("h", "int")),
	}
	lib.Root.Classes = []*cppmodel.Class{canvas}
	lib.Resolve()

	r := generate(t, lib, nil, Options{})
	out := file(t, r.tree, "src/lib.rs")
	containsAll(t, "lib.rs", out,
		"pub unsafe fn resize<'a, A: crate::CanvasResizeArgs<'a>>(&'a mut self, args: A) -> A::Output {",
		"unsafe fn exec(self, this: &'a mut crate::Canvas) -> Self::Output;",
		"impl<'a> CanvasResizeArgs<'a> for (::std::os::raw::c_int, ::std::os::raw::c_int) {",
		"this.resize_",
	)
}

func TestPlatformCfg(t *testing.T) {
	lib := cppmodel.NewLibrary("num")
	lib.Root.Functions = []*cppmodel.Function{
		{Name: "scale", Include: "num.h", Return: typ("void"), Params: []cppmodel.Param{param("v", "long")}},
		{Name: "scale", Include: "num.h", Return: typ("void"), Params: []cppmodel.Param{param("v", "long long")}},
	}
	lib.Resolve()
	r := generate(t, lib, nil, Options{})
	cfg := `#[cfg(not(any(all(target_os = "linux", target_arch = "x86_64"), ` +
		`all(target_os = "linux", target_arch = "aarch64"), all(target_os = "macos", target_arch = "aarch64"))))]`
	containsAll(t, "ffi.rs", file(t, r.tree, "src/ffi.rs"),
		cfg+"\n    pub fn num_G_scale_long_long(v: ::std::os::raw::c_longlong);",
		"    pub fn num_G_scale_long(v: ::std::os::raw::c_long);",
	)
	containsAll(t, "lib.rs", file(t, r.tree, "src/lib.rs"), cfg+"\npub unsafe fn scale_")
}

func TestTypeSizes(t *testing.T) {
	sizes := map[string]map[string]int{
		"linux-x86_64":   {"Point": 8},
		"windows-x86_64": {"Point": 12},
	}
	r := generate(t, fixture(), sizes, Options{})
	got := file(t, r.tree, "src/type_sizes.rs")
	containsAll(t, "type_sizes.rs", got,
		"#[cfg(all(target_os = \"linux\", target_arch = \"x86_64\"))]\npub const POINT_SIZE: usize = 8;",
		"#[cfg(all(target_os = \"windows\", target_arch = \"x86_64\"))]\npub const POINT_SIZE: usize = 12;",
	)
	if strings.Contains(got, "DOG_SIZE") {
		t.Error("OWNED classes have no size constant")
	}
	if n := strings.Count(got, "POINT_SIZE"); n != 2 {
		t.Errorf("%d size constants for Point, want one per probed platform", n)
	}
}

func TestCargoManifest(t *testing.T) {
	r := generate(t, fixture(), nil, Options{
		Version:      "0.3.0",
		Dependencies: []Dependency{{Crate: "shapes", Path: "../shapes"}},
	})
	containsAll(t, "Cargo.toml", file(t, r.tree, "Cargo.toml"),
		"name = \"geometry\"\nversion = \"0.3.0\"",
		"links = \"geometry\"",
		"[dependencies]\nshapes = { path = \"../shapes\" }\n",
	)
	containsAll(t, "build.rs", file(t, r.tree, "build.rs"),
		"cargo:rustc-link-lib=dylib=geometry",
		"RITUAL_WRAPPER_LIB_DIR",
	)
}

func TestCppUtils(t *testing.T) {
	r := generate(t, fixture(), nil, Options{})
	utils := file(t, r.tree, "src/cpp_utils.rs")
	containsAll(t, "cpp_utils.rs", utils,
		"pub unsafe fn from_raw(ptr: *mut T) -> Option<Self> {",
		"pub struct Ptr<T>(*const T);",
		"pub fn from_int(value: c_int) -> Self {",
		"#[cfg(all(target_os = \"windows\", target_arch = \"x86_64\"))]\npub type wchar_t = u16;",
		"#[cfg(all(target_os = \"linux\", target_arch = \"aarch64\"))]\npub type wchar_t = u32;",
		"#[cfg(all(target_os = \"linux\", target_arch = \"x86_64\"))]\npub type wchar_t = i32;",
	)
}

func TestConstName(t *testing.T) {
	tests := []struct{ in, want string }{
		{"Left", "LEFT"},
		{"AlignHCenter", "ALIGN_H_CENTER"},
		{"kDefault", "K_DEFAULT"},
		{"Self", "SELF"},
	}
	for _, tt := range tests {
		if got := ConstName(tt.in); got != tt.want {
			t.Errorf("ConstName(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
