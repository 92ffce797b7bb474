package instantiate

import (
	"testing"

	"github.com/rust-qt/ritual/cppmodel"
	"github.com/rust-qt/ritual/diag"
)

func templatedLibrary() *cppmodel.Library {
	lib := cppmodel.NewLibrary("containers")
	ns := lib.Namespace("")
	vec := &cppmodel.Class{
		Name:           "Templated",
		TemplateParams: []string{"T"},
		Fields:         []*cppmodel.Field{{Name: "first", Type: cppmodel.MustParseType("T")}},
	}
	vec.Methods = []*cppmodel.Function{
		{Name: "Templated", Scope: "Templated", Member: true, Kind: cppmodel.Constructor, Return: cppmodel.VoidType()},
		{Name: "Templated", Scope: "Templated", Member: true, Kind: cppmodel.Constructor,
			Params: []cppmodel.Param{{Name: "other", Type: cppmodel.MustParseType("const Templated&")}},
			Return: cppmodel.VoidType()},
		{Name: "at", Scope: "Templated", Member: true, Const: true,
			Params: []cppmodel.Param{{Name: "i", Type: cppmodel.MustParseType("int")}},
			Return: cppmodel.MustParseType("const T&")},
	}
	user := &cppmodel.Class{Name: "User"}
	user.Methods = []*cppmodel.Function{
		{Name: "ids", Scope: "User", Member: true, Return: cppmodel.MustParseType("Templated<int>")},
		{Name: "setIds", Scope: "User", Member: true,
			Params: []cppmodel.Param{{Name: "ids", Type: cppmodel.MustParseType("const Templated<int>&")}},
			Return: cppmodel.VoidType()},
	}
	ns.Classes = []*cppmodel.Class{vec, user}
	ns.Functions = []*cppmodel.Function{
		{Name: "total", Params: []cppmodel.Param{{Name: "v", Type: cppmodel.MustParseType("Templated<int>*")}},
			Return: cppmodel.MustParseType("int")},
		{Name: "maxOf", TemplateParams: []string{"T"},
			Params: []cppmodel.Param{{Name: "a", Type: cppmodel.MustParseType("T")}, {Name: "b", Type: cppmodel.MustParseType("T")}},
			Return: cppmodel.MustParseType("T")},
	}
	lib.Sites = []cppmodel.Site{{Function: "maxOf", Args: []cppmodel.TypeRef{cppmodel.MustParseType("double")}}}
	lib.Resolve()
	return lib
}

func TestSingleEntryAcrossSites(t *testing.T) {
	lib := templatedLibrary()
	diags := diag.NewCollector()
	tr := NewTracker(lib, 0, diags)
	tr.Scan()

	var classEntries []*Entry
	for _, e := range tr.Entries() {
		if e.Class != nil {
			classEntries = append(classEntries, e)
		}
	}
	if len(classEntries) != 1 {
		t.Fatalf("got %d class instantiations, want 1: %+v", len(classEntries), classEntries)
	}
	e := classEntries[0]
	if e.Key != "Templated<int>" || e.State != Registered {
		t.Errorf("entry = %s %s", e.Key, e.State)
	}
	// ids(), setIds(), total() and the instance's own copy constructor.
	if len(e.Sites) != 4 {
		t.Errorf("sites = %v", e.Sites)
	}
	if diags.Len() != 0 {
		t.Errorf("unexpected diagnostics: %v", diags.Items())
	}
}

func TestSynthesizedClassIsMonomorphic(t *testing.T) {
	lib := templatedLibrary()
	tr := NewTracker(lib, 0, diag.NewCollector())
	tr.Scan()

	c, ok := lib.Class("Templated<int>")
	if !ok {
		t.Fatal("instance not added to the model")
	}
	if c.IsTemplate() || c.Instance == nil {
		t.Fatalf("instance flags wrong: %+v", c)
	}
	if got := c.Fields[0].Type.String(); got != "int" {
		t.Errorf("field type = %s", got)
	}
	if got := c.Methods[1].Params[0].Type.String(); got != "const Templated<int>&" {
		t.Errorf("copy constructor parameter = %s", got)
	}
	if got := c.Methods[2].Return.String(); got != "const int&" {
		t.Errorf("at() returns %s", got)
	}
	if c.Methods[2].Scope != "Templated<int>" {
		t.Errorf("method scope = %s", c.Methods[2].Scope)
	}
}

func TestStateTransitionsAreIdempotent(t *testing.T) {
	lib := templatedLibrary()
	tr := NewTracker(lib, 0, diag.NewCollector())
	key := "Templated<int>"
	if tr.State(key) != Unseen {
		t.Fatal("fresh tracker should report UNSEEN")
	}
	ref := cppmodel.MustParseType("Templated<int>")
	first, err := tr.Register(ref, "a", 1)
	if err != nil {
		t.Fatal(err)
	}
	second, err := tr.Register(ref, "b", 1)
	if err != nil {
		t.Fatal(err)
	}
	if first != second {
		t.Error("second registration created a new entry")
	}
	if err := tr.MarkEmitted(key); err != nil {
		t.Fatal(err)
	}
	if err := tr.MarkEmitted(key); err != nil {
		t.Fatal(err)
	}
	if _, err := tr.Register(ref, "c", 1); err != nil {
		t.Fatal(err)
	}
	if tr.State(key) != Emitted {
		t.Errorf("state = %s, want EMITTED", tr.State(key))
	}
	if err := tr.MarkEmitted("Templated<char>"); err == nil {
		t.Error("marking an unregistered key must fail")
	}
}

func TestFunctionTemplateSites(t *testing.T) {
	lib := templatedLibrary()
	tr := NewTracker(lib, 0, diag.NewCollector())
	tr.Scan()

	e, ok := tr.Entry("maxOf<double>")
	if !ok || e.Function == nil {
		t.Fatalf("function instance missing: %+v", e)
	}
	if got := e.Function.Signature(); got != "double maxOf<double>(double a, double b)" {
		t.Errorf("Signature() = %q", got)
	}
}

func TestNestedGrowthIsCapped(t *testing.T) {
	lib := cppmodel.NewLibrary("nest")
	node := &cppmodel.Class{Name: "Node", TemplateParams: []string{"T"}}
	node.Methods = []*cppmodel.Function{
		{Name: "wrap", Scope: "Node", Member: true, Const: true, Return: cppmodel.MustParseType("Node<Node<T>>")},
	}
	user := &cppmodel.Class{Name: "Root", Fields: []*cppmodel.Field{{Name: "n", Type: cppmodel.MustParseType("Node<int>")}}}
	lib.Namespace("").Classes = []*cppmodel.Class{node, user}
	lib.Resolve()

	diags := diag.NewCollector()
	tr := NewTracker(lib, 3, diags)
	tr.Scan()

	if got := len(tr.Entries()); got != 3 {
		t.Errorf("got %d entries, want 3 (depths 1..3)", got)
	}
	if diags.Count(diag.UnsupportedConstruct) != 1 {
		t.Errorf("expected one UnsupportedConstruct, got %v", diags.Items())
	}
	if !diags.Excluded("Node<Node<Node<Node<int> > > >") {
		t.Errorf("the capped instance should be flagged: %v", diags.Items())
	}
}
