package typemap

import (
	"errors"
	"testing"

	"github.com/rust-qt/ritual/alloc"
	"github.com/rust-qt/ritual/cppmodel"
	"github.com/rust-qt/ritual/diag"
)

func testMapper(t *testing.T) *Mapper {
	t.Helper()
	lib := cppmodel.NewLibrary("geometry")
	geo := lib.Namespace("geo")
	geo.Classes = []*cppmodel.Class{
		{Name: "Point", Scope: "geo", Classes: []*cppmodel.Class{{Name: "Tag", Scope: "geo::Point"}}},
		{Name: "Widget", Scope: "geo"},
		{Name: "Handle", Scope: "geo", Incomplete: true},
	}
	geo.Enums = []*cppmodel.Enum{{Name: "Axis", Scope: "geo", Values: []cppmodel.EnumValue{{Name: "X"}, {Name: "Y", Value: 1}}}}
	lib.Reindex()

	table := alloc.NewTable()
	table.Set("geo::Point", alloc.Verdict{Strategy: alloc.Value})
	table.Set("geo::Point::Tag", alloc.Verdict{Strategy: alloc.Value})
	table.Set("geo::Widget", alloc.Verdict{Strategy: alloc.Owned})
	table.Set("geo::Handle", alloc.Verdict{Strategy: alloc.Owned})
	return New(lib, table, Options{}, nil)
}

func mustMap(t *testing.T, m *Mapper, spelling string, ctx Context) *Mapping {
	t.Helper()
	mp, err := m.Map(cppmodel.MustParseType(spelling), ctx)
	if err != nil {
		t.Fatalf("Map(%q): %v", spelling, err)
	}
	return mp
}

func TestMapArguments(t *testing.T) {
	m := testMapper(t)
	tests := []struct {
		in         string
		conversion Conversion
		c          string
		rustFFI    string
		rustHost   string
		toFFI      string
	}{
		{"int", NoChange, "int", "::std::os::raw::c_int", "::std::os::raw::c_int", "x"},
		{"const int&", NoChange, "int", "::std::os::raw::c_int", "::std::os::raw::c_int", "x"},
		{"int&", ReferenceToPointer, "int*", "*mut ::std::os::raw::c_int", "&mut ::std::os::raw::c_int", "x as *mut ::std::os::raw::c_int"},
		{"std::int64_t", NoChange, "int64_t", "i64", "i64", "x"},
		{"size_t", NoChange, "size_t", "usize", "usize", "x"},
		{"const char*", NoChange, "const char*", "*const ::std::os::raw::c_char", "*const ::std::os::raw::c_char", "x"},
		{"geo::Axis", EnumToInt, "int", "crate::geo::Axis", "crate::geo::Axis", "x"},
		{"QFlags<geo::Axis>", FlagsToUInt, "unsigned int", "::std::os::raw::c_uint",
			"crate::cpp_utils::Flags<crate::geo::Axis>", "x.to_int() as ::std::os::raw::c_uint"},
		{"geo::Point", ValueToPointer, "const geo_Point*", "*const crate::geo::Point", "&crate::geo::Point", "x as *const crate::geo::Point"},
		{"const geo::Point&", ReferenceToPointer, "const geo_Point*", "*const crate::geo::Point", "&crate::geo::Point", "x as *const crate::geo::Point"},
		{"geo::Point&", ReferenceToPointer, "geo_Point*", "*mut crate::geo::Point", "&mut crate::geo::Point", "x as *mut crate::geo::Point"},
		{"geo::Widget*", NoChange, "geo_Widget*", "*mut crate::geo::Widget", "crate::cpp_utils::MutPtr<crate::geo::Widget>", "x.as_mut_raw_ptr()"},
		{"geo::Point::Tag", ValueToPointer, "const geo_Point_Tag*", "*const crate::geo::PointTag", "&crate::geo::PointTag", "x as *const crate::geo::PointTag"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			mp := mustMap(t, m, tt.in, Context{Role: Argument})
			if mp.Conversion != tt.conversion {
				t.Errorf("Conversion = %s, want %s", mp.Conversion, tt.conversion)
			}
			if mp.C != tt.c {
				t.Errorf("C = %q, want %q", mp.C, tt.c)
			}
			if mp.Rust.FFI != tt.rustFFI {
				t.Errorf("Rust.FFI = %q, want %q", mp.Rust.FFI, tt.rustFFI)
			}
			if mp.Rust.Host != tt.rustHost {
				t.Errorf("Rust.Host = %q, want %q", mp.Rust.Host, tt.rustHost)
			}
			if got := mp.Rust.ToFFI("x"); got != tt.toFFI {
				t.Errorf("Rust.ToFFI = %q, want %q", got, tt.toFFI)
			}
		})
	}
}

func TestMapReturns(t *testing.T) {
	m := testMapper(t)

	value := mustMap(t, m, "geo::Point", Context{Role: Return})
	if !value.Output || value.C != "geo_Point*" || value.Rust.Host != "crate::geo::Point" {
		t.Errorf("VALUE return = %+v", value)
	}

	owned := mustMap(t, m, "geo::Widget", Context{Role: Return})
	if owned.Output || owned.Rust.Host != "crate::cpp_utils::CppBox<crate::geo::Widget>" {
		t.Errorf("OWNED return = %+v", owned)
	}
	if got := owned.Rust.FromFFI("r"); got != `crate::cpp_utils::CppBox::from_raw(r).expect("attempted to construct a null CppBox")` {
		t.Errorf("FromFFI = %s", got)
	}

	factory := mustMap(t, m, "geo::Widget*", Context{Role: Return, Owning: true})
	if factory.Rust.Host != "Option<crate::cpp_utils::CppBox<crate::geo::Widget>>" || !factory.Go.Owned {
		t.Errorf("owning pointer return = %+v", factory)
	}

	borrowed := mustMap(t, m, "const geo::Point&", Context{Role: Return, HasReceiver: true})
	if borrowed.Rust.Host != "&crate::geo::Point" || borrowed.Rust.FromFFI("r") != "&*r" {
		t.Errorf("borrowed return = %+v", borrowed)
	}
	static := mustMap(t, m, "geo::Point&", Context{Role: Return})
	if static.Rust.Host != "crate::cpp_utils::MutPtr<crate::geo::Point>" {
		t.Errorf("reference return without receiver = %q", static.Rust.Host)
	}

	flags := mustMap(t, m, "QFlags<geo::Axis>", Context{Role: Return})
	if got := flags.Rust.FromFFI("r"); got != "crate::cpp_utils::Flags::from_int(r as ::std::os::raw::c_int)" {
		t.Errorf("flags FromFFI = %s", got)
	}
}

func TestOwningPointerToValueClass(t *testing.T) {
	m := testMapper(t)
	_, err := m.Map(cppmodel.MustParseType("geo::Point*"), Context{Role: Return, Owning: true})
	var d *diag.Diagnostic
	if !errors.As(err, &d) || d.Kind != diag.UnsupportedConstruct {
		t.Fatalf("owning return of a VALUE class: got %v, want UnsupportedConstruct", err)
	}
	if _, err := m.Map(cppmodel.MustParseType("geo::Point*"), Context{Role: Return}); err != nil {
		t.Errorf("borrowed return of a VALUE class: %v", err)
	}
}

func TestMapFailures(t *testing.T) {
	m := testMapper(t)
	tests := []struct {
		in   string
		kind diag.Kind
	}{
		{"geo::Missing", diag.UnresolvedType},
		{"geo::Handle", diag.UnresolvedType},
		{"const geo::Handle*", diag.UnresolvedType},
		{"geo::Handle&", diag.UnresolvedType},
		{"geo::Point&&", diag.UnsupportedConstruct},
		{"long double", diag.UnsupportedConstruct},
		{"geo::Axis*", diag.UnsupportedConstruct},
		{"void (*)(const geo::Point&)", diag.UnsupportedConstruct},
		{"void (*)(geo::Point)", diag.UnsupportedConstruct},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			_, err := m.Map(cppmodel.MustParseType(tt.in), Context{Role: Argument})
			var d *diag.Diagnostic
			if !errors.As(err, &d) {
				t.Fatalf("expected a diagnostic, got %v", err)
			}
			if d.Kind != tt.kind {
				t.Errorf("kind = %s, want %s (%s)", d.Kind, tt.kind, d.Message)
			}
		})
	}
}

func TestFunctionPointerOfPrimitives(t *testing.T) {
	m := testMapper(t)
	mp := mustMap(t, m, "int (*)(int, geo::Widget*)", Context{Role: Argument})
	want := `Option<extern "C" fn(::std::os::raw::c_int, *mut crate::geo::Widget) -> ::std::os::raw::c_int>`
	if mp.Rust.Host != want {
		t.Errorf("Rust.Host = %q", mp.Rust.Host)
	}
	if got := mp.DeclareC("cb"); got != "int (*cb)(int, geo_Widget*)" {
		t.Errorf("DeclareC = %q", got)
	}
	if mp.Go.Kind != GoUnsupported {
		t.Errorf("function pointers have no Go mapping, got %v", mp.Go.Kind)
	}
}

func TestExcludedClassesDoNotMap(t *testing.T) {
	m := testMapper(t)
	m.excluded = func(id string) bool { return id == "geo::Point" }
	_, err := m.Map(cppmodel.MustParseType("const geo::Point&"), Context{Role: Argument})
	if d, ok := diag.AsDiagnostic(err); !ok || d.Kind != diag.UnsupportedConstruct {
		t.Errorf("got %v", err)
	}
}

func TestGoMapping(t *testing.T) {
	m := testMapper(t)
	tests := []struct {
		in   string
		role Role
		kind GoKind
		c    string
		host string
	}{
		{"int", Argument, GoPrimitive, "int", "int32"},
		{"unsigned long", Argument, GoPrimitive, "ulong", "uint64"},
		{"geo::Axis", Argument, GoEnum, "int", "GeoAxis"},
		{"QFlags<geo::Axis>", Argument, GoFlags, "uint", "GeoAxisFlags"},
		{"const geo::Point&", Argument, GoHandle, "geo_Point", "*GeoPoint"},
		{"int*", Argument, GoRawPointer, "int", "unsafe.Pointer"},
		{"void*", Argument, GoRawPointer, "", "unsafe.Pointer"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			mp := mustMap(t, m, tt.in, Context{Role: tt.role})
			if mp.Go.Kind != tt.kind || mp.Go.C != tt.c || mp.Go.Host != tt.host {
				t.Errorf("Go = %+v, want kind %v C %q host %q", mp.Go, tt.kind, tt.c, tt.host)
			}
		})
	}
}

func TestPlatformKeys(t *testing.T) {
	m := testMapper(t)
	long := mustMap(t, m, "long", Context{Role: Argument})
	longlong := mustMap(t, m, "long long", Context{Role: Argument})
	known := KnownPlatforms()

	if RustHostKey(long, known["linux-x86_64"]) != RustHostKey(longlong, known["linux-x86_64"]) {
		t.Error("long and long long collide on LP64")
	}
	if RustHostKey(long, known["windows-x86_64"]) == RustHostKey(longlong, known["windows-x86_64"]) {
		t.Error("long and long long differ on LLP64")
	}
	if got := known["linux-aarch64"].Canonical("char"); got != "u8" {
		t.Errorf("char on aarch64 linux = %s", got)
	}
	if _, err := PlatformsByName([]string{"amiga"}); err == nil {
		t.Error("unknown platform accepted")
	}
}

func TestNaming(t *testing.T) {
	tests := []struct{ in, snake, pascal string }{
		{"setX", "set_x", "SetX"},
		{"QString", "q_string", "QString"},
		{"at_const", "at_const", "AtConst"},
		{"type", "type", "Type"},
	}
	for _, tt := range tests {
		if got := SnakeCase(tt.in); got != tt.snake {
			t.Errorf("SnakeCase(%q) = %q, want %q", tt.in, got, tt.snake)
		}
		if got := PascalCase(tt.in); got != tt.pascal {
			t.Errorf("PascalCase(%q) = %q, want %q", tt.in, got, tt.pascal)
		}
	}
	for in, want := range map[string]string{
		"QSTRING":       "QSTRING",
		"geo_vector":    "GeoVector",
		"unsigned_int":  "UnsignedInt",
		"QList_QString": "QListQString",
		"new_3f2a":      "New3f2a",
	} {
		if got := PascalCase(in); got != want {
			t.Errorf("PascalCase(%q) = %q, want %q", in, got, want)
		}
	}
	if RustFunctionName("type") != "type_" || RustFunctionName("move") != "move_" {
		t.Error("keywords must be escaped")
	}
	got := RustModulePath("geo::detail::shapes", map[string]bool{"geo::detail": true})
	if len(got) != 2 || got[0] != "geo" || got[1] != "shapes" {
		t.Errorf("RustModulePath = %v", got)
	}
}

func TestHostNameCollisions(t *testing.T) {
	lib := cppmodel.NewLibrary("text")
	lib.Root.Classes = []*cppmodel.Class{
		{Name: "QString"},
		{Name: "QSTRING"},
		{Name: "q_string"},
		{Name: "GeoPoint"},
	}
	geo := lib.Namespace("geo")
	geo.Classes = []*cppmodel.Class{{Name: "Point", Scope: "geo"}}
	geo.Enums = []*cppmodel.Enum{{Name: "point", Scope: "geo", Values: []cppmodel.EnumValue{{Name: "A"}}}}
	lib.Reindex()

	table := alloc.NewTable()
	for _, c := range lib.Classes() {
		table.Set(c.ID(), alloc.Verdict{Strategy: alloc.Owned})
	}
	diags := diag.NewCollector()
	m := New(lib, table, Options{}, diags.Excluded)

	if got := m.HostClassName(lib.Root.Classes[1]); got != "QSTRING" {
		t.Errorf("HostClassName(QSTRING) = %q", got)
	}
	if n := m.CheckHostNames(diags); n != 3 {
		t.Fatalf("CheckHostNames = %d, want 3: %v", n, diags.Items())
	}
	for _, id := range []string{"q_string", "geo::Point", "geo::point"} {
		if !diags.Excluded(id) {
			t.Errorf("%s should be excluded on a name collision", id)
		}
	}
	for _, id := range []string{"QString", "QSTRING", "GeoPoint"} {
		if diags.Excluded(id) {
			t.Errorf("%s was excluded", id)
		}
	}
	if diags.Count(diag.NameCollision) != 3 {
		t.Errorf("collisions = %v", diags.Items())
	}
	if n := m.CheckHostNames(diags); n != 0 {
		t.Errorf("second check found %d collisions", n)
	}
}
