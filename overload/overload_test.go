package overload

import (
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/rust-qt/ritual/alloc"
	"github.com/rust-qt/ritual/cppmodel"
	"github.com/rust-qt/ritual/diag"
	"github.com/rust-qt/ritual/typemap"
)

func param(name, spelling string) cppmodel.Param {
	return cppmodel.Param{Name: name, Type: cppmodel.MustParseType(spelling)}
}

func method(scope, name, ret string, params ...cppmodel.Param) *cppmodel.Function {
	return &cppmodel.Function{Name: name, Scope: scope, Member: true, Params: params,
		Return: cppmodel.MustParseType(ret)}
}

func free(name, ret string, params ...cppmodel.Param) *cppmodel.Function {
	return &cppmodel.Function{Name: name, Include: "point.h", Params: params, Return: cppmodel.MustParseType(ret)}
}

func pointLibrary() *cppmodel.Library {
	lib := cppmodel.NewLibrary("geometry")
	point := &cppmodel.Class{
		Name:    "Point",
		Include: "point.h",
		Fields: []*cppmodel.Field{
			{Name: "x", Type: cppmodel.MustParseType("int")},
			{Name: "y", Type: cppmodel.MustParseType("int")},
		},
	}
	ctor := func(params ...cppmodel.Param) *cppmodel.Function {
		f := method("Point", "Point", "void", params...)
		f.Kind = cppmodel.Constructor
		return f
	}
	plus := method("Point", "operator+", "Point", param("other", "const Point&"))
	plus.Operator = cppmodel.OpAdd
	plus.Const = true
	move := method("Point", "move", "void", param("dx", "int"), param("dy", "int"))
	move.Params[1].Default = "0"
	point.Methods = []*cppmodel.Function{ctor(param("x", "int"), param("y", "int")), plus, move}

	vec := &cppmodel.Class{Name: "Vec", Include: "vec.h"}
	at := method("Vec", "at", "int&", param("i", "int"))
	atConst := method("Vec", "at", "const int&", param("i", "int"))
	atConst.Const = true
	vec.Methods = []*cppmodel.Function{at, atConst}

	minus := free("operator-", "Point", param("a", "const Point&"), param("b", "const Point&"))
	minus.Operator = cppmodel.OpSub

	root := lib.Namespace("")
	root.Classes = []*cppmodel.Class{point, vec}
	root.Functions = []*cppmodel.Function{
		minus,
		free("scale", "void", param("v", "long")),
		free("scale", "void", param("v", "long long")),
		free("area", "double", param("side", "int")),
		free("area", "double", param("side", "double")),
		free("pick", "void", param("v", "int64_t")),
		free("pick", "void", param("v", "uint64_t")),
	}
	lib.Resolve()
	return lib
}

func resolveLibrary(t *testing.T, lib *cppmodel.Library, reserved ...string) (*Result, *diag.Collector) {
	t.Helper()
	diags := diag.NewCollector()
	table := alloc.NewTable()
	for _, c := range lib.Classes() {
		table.Set(c.ID(), alloc.Verdict{Strategy: alloc.Value, Reason: "test"})
	}
	mapper := typemap.New(lib, table, typemap.Options{}, diags.Excluded)
	res := Resolve(Input{Library: lib, Mapper: mapper, Diags: diags, Reserved: reserved})
	return res, diags
}

func symbolsOf(res *Result, class string) []string {
	var out []string
	for _, m := range res.ForClass(class) {
		out = append(out, m.Symbol)
	}
	return out
}

func TestPointScenario(t *testing.T) {
	res, diags := resolveLibrary(t, pointLibrary())

	want := []string{
		"Point_constructor_x_y",
		"Point_operator_add",
		"Point_move_dx_dy",
		"Point_move_dx",
		"Point_constructor_other",
		"Point_destructor",
		"Point_x",
		"Point_setX",
		"Point_y",
		"Point_setY",
	}
	if diff := cmp.Diff(want, symbolsOf(res, "Point")); diff != "" {
		t.Errorf("Point symbols (-want +got):\n%s", diff)
	}

	minus, ok := res.Lookup("point_G_operator_sub")
	if !ok {
		t.Fatalf("free operator- missing; symbols: %v", res.Registry.Symbols())
	}
	if minus.RustName != "op_sub" {
		t.Errorf("operator- host name = %q", minus.RustName)
	}

	names := make(map[string]string)
	for _, m := range res.ForClass("Point") {
		names[m.Symbol] = m.RustName
	}
	for sym, want := range map[string]string{
		"Point_x":            "x",
		"Point_setX":         "set_x",
		"Point_operator_add": "op_add",
	} {
		if names[sym] != want {
			t.Errorf("%s host name = %q, want %q", sym, names[sym], want)
		}
	}
	if n := diags.Count(diag.AmbiguousOverload); n != 0 {
		t.Errorf("unexpected ambiguity: %v", diags.Items())
	}
}

func TestConstOverloadsGetDistinctNames(t *testing.T) {
	res, diags := resolveLibrary(t, pointLibrary())
	ms := res.ForClass("Vec")
	got := make(map[string][2]string)
	for _, m := range ms {
		if m.Func.Name == "at" {
			got[m.Symbol] = [2]string{m.RustName, m.GoName}
		}
	}
	want := map[string][2]string{
		"Vec_at":       {"at", ""},
		"Vec_at_const": {"at_const", "At"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("at overloads (-want +got):\n%s", diff)
	}
	if len(diags.ForEntity("Vec::at(int)")) == 0 {
		t.Error("dropping the mutable twin from Go should be reported")
	}
}

func TestSymbolsUniquePerScope(t *testing.T) {
	res, _ := resolveLibrary(t, pointLibrary())
	seen := make(map[string]string)
	for _, m := range res.Methods {
		key := m.Scope() + " " + m.Symbol
		if prev, dup := seen[key]; dup {
			t.Errorf("symbol %s issued to %s and %s", m.Symbol, prev, m.ID())
		}
		seen[key] = m.ID()
	}
}

func TestDefaultArgumentVariantsForward(t *testing.T) {
	res, _ := resolveLibrary(t, pointLibrary())
	short, ok := res.Lookup("Point_move_dx")
	if !ok {
		t.Fatal("variant missing")
	}
	if short.Full == nil || short.Full.Symbol != "Point_move_dx_dy" {
		t.Fatalf("variant does not forward to the full wrapper: %+v", short.Full)
	}
	if len(short.PlainArgs()) != 1 {
		t.Errorf("variant takes %d arguments", len(short.PlainArgs()))
	}
}

func TestConstructorsDispatch(t *testing.T) {
	lib := cppmodel.NewLibrary("shape")
	rect := &cppmodel.Class{Name: "Rect", Include: "rect.h"}
	ctor := func(params ...cppmodel.Param) *cppmodel.Function {
		f := method("Rect", "Rect", "void", params...)
		f.Kind = cppmodel.Constructor
		return f
	}
	rect.Methods = []*cppmodel.Function{ctor(), ctor(param("w", "int"), param("h", "int"))}
	lib.Namespace("").Classes = []*cppmodel.Class{rect}
	lib.Resolve()

	res, _ := resolveLibrary(t, lib)
	def, ok := res.Lookup("Rect_constructor")
	if !ok {
		t.Fatalf("default constructor missing: %v", res.Registry.Symbols())
	}
	if def.Dispatch == nil || def.Dispatch.Name != "new" {
		t.Fatalf("constructors should share the dispatch entry point new: %+v", def.Dispatch)
	}
	if len(def.Dispatch.Members) != 2 {
		t.Errorf("dispatch has %d members", len(def.Dispatch.Members))
	}
	for _, m := range def.Dispatch.Members {
		if !strings.HasPrefix(m.RustName, "new_") || len(m.RustName) != len("new_")+8 {
			t.Errorf("canonical constructor name %q is not hash-suffixed", m.RustName)
		}
	}
	if def.Dispatch.Members[0].RustName == def.Dispatch.Members[1].RustName {
		t.Error("canonical names collide")
	}
	cp, ok := res.Lookup("Rect_constructor_other")
	if !ok {
		t.Fatalf("copy constructor missing: %v", res.Registry.Symbols())
	}
	if cp.Dispatch != nil || cp.RustName != "new_copy" {
		t.Errorf("copy constructor: name %q, dispatch %+v", cp.RustName, cp.Dispatch)
	}
}

func TestImplicitConstructors(t *testing.T) {
	res, _ := resolveLibrary(t, pointLibrary())
	got := make(map[string]cppmodel.Synthetic)
	for _, m := range res.ForClass("Vec") {
		if m.Func.IsConstructor() {
			got[m.Symbol] = m.Func.Synthetic
		}
	}
	want := map[string]cppmodel.Synthetic{
		"Vec_constructor":       cppmodel.ImplicitConstructor,
		"Vec_constructor_other": cppmodel.ImplicitCopyConstructor,
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Vec constructors (-want +got):\n%s", diff)
	}
	if _, ok := res.Lookup("Point_constructor"); ok {
		t.Error("Point declares a constructor and must not get a default one")
	}
	point, _ := res.Lookup("Point_constructor_x_y")
	cp, _ := res.Lookup("Point_constructor_other")
	if point == nil || cp == nil {
		t.Fatalf("Point constructors missing: %v", res.Registry.Symbols())
	}
	if point.RustName != "new" || point.GoName != "New" {
		t.Errorf("Point(x, y) host names = %q, %q", point.RustName, point.GoName)
	}
	if cp.RustName != "new_copy" || cp.GoName != "NewCopy" {
		t.Errorf("copy constructor host names = %q, %q", cp.RustName, cp.GoName)
	}
}

func TestForwardDeclaredClassIsUnresolved(t *testing.T) {
	lib := cppmodel.NewLibrary("fwd")
	impl := &cppmodel.Class{Name: "Impl", Include: "impl.h", Incomplete: true}
	lib.Namespace("").Classes = []*cppmodel.Class{impl}
	lib.Namespace("").Functions = []*cppmodel.Function{
		free("attach", "void", param("p", "Impl*")),
		free("count", "int"),
	}
	lib.Resolve()

	res, diags := resolveLibrary(t, lib)
	if ms := res.ForClass("Impl"); len(ms) != 0 {
		t.Errorf("forward-declared class got wrappers: %v", symbolsOf(res, "Impl"))
	}
	if len(impl.Methods) != 0 {
		t.Errorf("forward-declared class got synthesized members: %d", len(impl.Methods))
	}
	found := false
	for _, d := range diags.ForEntity("Impl") {
		found = found || d.Kind == diag.UnresolvedType
	}
	if !found {
		t.Errorf("want UnresolvedType on Impl: %v", diags.Items())
	}
	if !diags.Excluded("attach(Impl*)") {
		t.Errorf("attach(Impl*) should be excluded: %v", diags.Items())
	}
	if _, ok := res.Lookup("point_G_count"); !ok {
		t.Errorf("count should survive: %v", res.Registry.Symbols())
	}
}

func TestPlatformMerge(t *testing.T) {
	res, diags := resolveLibrary(t, pointLibrary())
	long, _ := res.Lookup("point_G_scale_long")
	var longLong *Method
	for _, m := range res.Methods {
		if m.Func.Name == "scale" && m != long {
			longLong = m
		}
	}
	if long == nil || longLong == nil {
		t.Fatalf("scale overloads missing: %v", res.Registry.Symbols())
	}
	want := []string{"linux-x86_64", "linux-aarch64", "macos-aarch64"}
	if diff := cmp.Diff(want, longLong.ExcludedOn); diff != "" {
		t.Errorf("scale(long long) guard (-want +got):\n%s", diff)
	}
	if longLong.MergedWith != long {
		t.Error("merged overload should point at the surviving one")
	}
	if long.ExcludedOn != nil {
		t.Errorf("scale(long) must stay everywhere, excluded on %v", long.ExcludedOn)
	}
	if diags.Count(diag.Merged) != 1 {
		t.Errorf("want one Merged diagnostic, got %v", diags.Items())
	}
}

func TestIndistinguishableOverloadsAreAmbiguous(t *testing.T) {
	lib := cppmodel.NewLibrary("dup")
	lib.Namespace("").Functions = []*cppmodel.Function{
		free("f", "void", param("v", "int")),
		free("f", "void", param("v", "const int&")),
	}
	lib.Resolve()
	res, diags := resolveLibrary(t, lib)
	if len(res.Methods) != 1 {
		t.Fatalf("got %d methods, want 1", len(res.Methods))
	}
	if !diags.Excluded("f(const int&)") {
		t.Errorf("second overload should be excluded: %v", diags.Items())
	}
}

func TestSelect(t *testing.T) {
	res, _ := resolveLibrary(t, pointLibrary())
	linux := typemap.DefaultPlatforms()[0]
	groups := make(map[string]*Group)
	for _, g := range res.GroupsOf(nil, "") {
		groups[g.Name] = g
	}
	area, pick := groups["area"], groups["pick"]
	if area == nil || pick == nil {
		t.Fatalf("dispatch groups missing: %v", groups)
	}

	tests := []struct {
		group *Group
		args  []string
		want  string
		err   error
	}{
		{area, []string{"::std::os::raw::c_int"}, "area(int)", nil},
		{area, []string{"f64"}, "area(double)", nil},
		{area, []string{"f32"}, "area(double)", nil},
		{area, []string{"i16"}, "area(int)", nil},
		{area, []string{"bool"}, "", ErrNoMatch},
		{pick, []string{"i32"}, "pick(int64_t)", nil},
		{pick, []string{"u64"}, "pick(uint64_t)", nil},
		{pick, []string{"u8"}, "", ErrAmbiguous},
		{pick, []string{"u32"}, "", ErrAmbiguous},
	}
	for _, tt := range tests {
		t.Run(tt.group.Name+"("+strings.Join(tt.args, ",")+")", func(t *testing.T) {
			got, err := tt.group.Select(linux, tt.args)
			if tt.err != nil {
				if !errors.Is(err, tt.err) {
					t.Fatalf("err = %v, want %v", err, tt.err)
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if got.ID() != tt.want {
				t.Errorf("selected %s, want %s", got.ID(), tt.want)
			}
		})
	}
}

func TestReservedSymbolsAreRenamed(t *testing.T) {
	res, diags := resolveLibrary(t, pointLibrary(), "Point_x")
	var getter *Method
	for _, m := range res.ForClass("Point") {
		if m.Func.Synthetic == cppmodel.FieldGetter && m.Func.Name == "x" {
			getter = m
		}
	}
	if getter == nil || getter.Symbol != "Point_x_2" {
		t.Fatalf("getter symbol = %v", getter)
	}
	if diags.Count(diag.Renamed) != 1 {
		t.Errorf("rename not reported: %v", diags.Items())
	}
}

func TestCollisionInsideScopeDropsScope(t *testing.T) {
	lib := cppmodel.NewLibrary("clash")
	c := &cppmodel.Class{Name: "Clash", Include: "clash.h"}
	at := method("Clash", "at", "int", param("i", "int"))
	atConst := method("Clash", "at", "int", param("i", "int"))
	atConst.Const = true
	c.Methods = []*cppmodel.Function{at, atConst, method("Clash", "at_const", "int", param("i", "int"))}
	other := &cppmodel.Class{Name: "Other", Include: "clash.h"}
	other.Methods = []*cppmodel.Function{method("Other", "use", "void", param("c", "Clash*")), method("Other", "size", "int")}
	lib.Namespace("").Classes = []*cppmodel.Class{c, other}
	lib.Resolve()

	res, diags := resolveLibrary(t, lib)
	if len(res.ForClass("Clash")) != 0 {
		t.Error("colliding scope should not be emitted")
	}
	if !diags.Excluded("Clash") || diags.Count(diag.SymbolCollision) != 1 {
		t.Errorf("collision not recorded: %v", diags.Items())
	}
	if got := symbolsOf(res, "Other"); !cmp.Equal(got, []string{"Other_size", "Other_constructor", "Other_constructor_other", "Other_destructor"}) {
		t.Errorf("Other symbols = %v; methods using Clash must be excluded too", got)
	}
	if !diags.Excluded("Other::use(Clash*)") {
		t.Errorf("Other::use should be excluded: %v", diags.Items())
	}
}

func TestAccessorClashIsDropped(t *testing.T) {
	lib := cppmodel.NewLibrary("acc")
	c := &cppmodel.Class{Name: "Box", Include: "box.h",
		Fields: []*cppmodel.Field{{Name: "width", Type: cppmodel.MustParseType("int")}}}
	width := method("Box", "width", "int")
	width.Const = true
	c.Methods = []*cppmodel.Function{width}
	lib.Namespace("").Classes = []*cppmodel.Class{c}
	lib.Resolve()

	res, diags := resolveLibrary(t, lib)
	if got := symbolsOf(res, "Box"); !cmp.Equal(got, []string{"Box_width", "Box_constructor", "Box_constructor_other", "Box_destructor", "Box_setWidth"}) {
		t.Errorf("Box symbols = %v", got)
	}
	if diags.Count(diag.Dropped) != 1 {
		t.Errorf("getter clash should be reported once: %v", diags.Items())
	}
}

func TestCaptionStrategies(t *testing.T) {
	f := method("Vec", "at", "int", param("i", "int"), param("", "const geo::Point&"))
	f.Const = true
	tests := []struct {
		s    CaptionStrategy
		want string
	}{
		{CaptionStrategy{Args: true, Argument: NameOnly}, "i_arg2"},
		{CaptionStrategy{Args: true, Argument: TypeShort}, "int_const_Point_ref"},
		{CaptionStrategy{Args: true, Argument: TypeFull}, "int_const_geo_Point_ref"},
		{CaptionStrategy{Const: true}, "const"},
		{CaptionStrategy{Const: true, Args: true, Argument: NameOnly}, "const_i_arg2"},
	}
	for _, tt := range tests {
		if got := Caption(f, tt.s); got != tt.want {
			t.Errorf("Caption(%s) = %q, want %q", tt.s, got, tt.want)
		}
	}
	if got := IncludeBase("geo/point.h"); got != "point" {
		t.Errorf("IncludeBase = %q", got)
	}
}
