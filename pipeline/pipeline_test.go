package pipeline

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"golang.org/x/tools/txtar"

	"github.com/rust-qt/ritual/config"
	"github.com/rust-qt/ritual/cppmodel"
	"github.com/rust-qt/ritual/depcache"
	"github.com/rust-qt/ritual/diag"
)

// project extracts a txtar archive into root/name and loads its config.
func project(t *testing.T, archive, root, name string) *config.Config {
	t.Helper()
	ar, err := txtar.ParseFile(filepath.Join("testdata", archive))
	if err != nil {
		t.Fatalf("ParseFile: %v", err)
	}
	dir := filepath.Join(root, name)
	for _, f := range ar.Files {
		path := filepath.Join(dir, filepath.FromSlash(f.Name))
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, f.Data, 0o644); err != nil {
			t.Fatal(err)
		}
	}
	cfg, err := config.Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	return cfg
}

func generate(t *testing.T, cfg *config.Config, opts Options) *Result {
	t.Helper()
	res, err := Generate(context.Background(), cfg, opts)
	if err != nil {
		t.Fatalf("Generate %s: %v", cfg.Library.Name, err)
	}
	return res
}

func hasDiagnostic(items []diag.Diagnostic, kind diag.Kind, entity string) bool {
	for _, d := range items {
		if d.Kind == kind && d.Entity == entity {
			return true
		}
	}
	return false
}

func TestGenerateShapes(t *testing.T) {
	root := t.TempDir()
	cfg := project(t, "shapes.txtar", root, "shapes")
	res := generate(t, cfg, Options{})

	header, ok := res.Wrapper["shapes_shapes.h"]
	if !ok {
		t.Fatalf("wrapper header missing; have %v", res.Wrapper.Paths())
	}
	if strings.Contains(string(header), "debugDump") {
		t.Error("blocked function was wrapped")
	}
	if !hasDiagnostic(res.Run.Diagnostics, diag.Filtered, "shapes::debugDump") {
		t.Errorf("diagnostics = %v", res.Run.Diagnostics)
	}

	for _, p := range []string{"c_lib/shapes_shapes.h", "c_lib/shapes_sizes.cpp", "shapes/Cargo.toml", "shapes/src/lib.rs"} {
		if _, err := os.Stat(filepath.Join(root, "shapes", filepath.FromSlash(p))); err != nil {
			t.Errorf("%s not written: %v", p, err)
		}
	}
	if want := len(res.Wrapper) + len(res.Crate); res.Written != want {
		t.Errorf("written = %d, want %d", res.Written, want)
	}

	cache, err := depcache.Open(filepath.Join(root, "cache.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer cache.Close()
	snap, err := cache.Get("shapes")
	if err != nil {
		t.Fatalf("snapshot not stored: %v", err)
	}
	if snap.Crate != "shapes" {
		t.Errorf("snapshot crate = %q", snap.Crate)
	}
	latest, err := cache.LatestRun("shapes")
	if err != nil {
		t.Fatalf("LatestRun: %v", err)
	}
	if latest.ID != res.Run.ID {
		t.Errorf("latest run = %s, want %s", latest.ID, res.Run.ID)
	}
}

func TestGenerateIsIdempotent(t *testing.T) {
	root := t.TempDir()
	first := generate(t, project(t, "shapes.txtar", root, "shapes"), Options{})
	cfg, err := config.Load(filepath.Join(root, "shapes"))
	if err != nil {
		t.Fatal(err)
	}
	second := generate(t, cfg, Options{})

	if second.Written != 0 {
		t.Errorf("second run rewrote %d files", second.Written)
	}
	if diff := cmp.Diff(first.Wrapper, second.Wrapper); diff != "" {
		t.Errorf("wrapper tree changed (-first +second):\n%s", diff)
	}
	if diff := cmp.Diff(first.Crate, second.Crate); diff != "" {
		t.Errorf("crate changed (-first +second):\n%s", diff)
	}
	if first.Run.Digest != second.Run.Digest {
		t.Errorf("snapshot digest changed: %s != %s", first.Run.Digest, second.Run.Digest)
	}
	if first.Run.ID == second.Run.ID {
		t.Error("runs share an id")
	}
}

func TestDependencyChain(t *testing.T) {
	root := t.TempDir()
	generate(t, project(t, "shapes.txtar", root, "shapes"), Options{})
	res := generate(t, project(t, "scene.txtar", root, "scene"), Options{})

	for _, d := range res.Run.Diagnostics {
		if d.Kind.Excludes() {
			t.Errorf("unexpected excluding diagnostic: %v", d)
		}
	}
	cargo := string(res.Crate["Cargo.toml"])
	if !strings.Contains(cargo, `shapes = { path = "../../shapes/shapes" }`) {
		t.Errorf("Cargo.toml lacks the dependency:\n%s", cargo)
	}
	for _, p := range res.Wrapper.Paths() {
		if strings.Contains(p, "shapes") {
			t.Errorf("dependency wrapper %s re-emitted", p)
		}
	}
	var referenced bool
	for _, content := range res.Crate {
		if bytes.Contains(content, []byte("::shapes::")) {
			referenced = true
		}
	}
	if !referenced {
		t.Error("crate never refers to the dependency crate")
	}
	for _, c := range res.Snapshot.Classes {
		if c.ID() == "shapes::Shape" && c.Dependency != "shapes" {
			t.Errorf("dependency class recorded as local: %+v", c)
		}
	}
}

func TestMissingDependency(t *testing.T) {
	root := t.TempDir()
	cfg := project(t, "scene.txtar", root, "scene")
	_, err := Generate(context.Background(), cfg, Options{})
	if !errors.Is(err, depcache.ErrNotFound) {
		t.Errorf("error = %v, want ErrNotFound", err)
	}
}

func TestDryRun(t *testing.T) {
	root := t.TempDir()
	cfg := project(t, "shapes.txtar", root, "shapes")
	res := generate(t, cfg, Options{DryRun: true})
	if len(res.Wrapper) == 0 || len(res.Crate) == 0 {
		t.Fatal("dry run produced no trees")
	}
	if _, err := os.Stat(filepath.Join(root, "shapes", "c_lib")); !os.IsNotExist(err) {
		t.Errorf("dry run wrote the wrapper tree: %v", err)
	}
	if _, err := os.Stat(filepath.Join(root, "cache.db")); !os.IsNotExist(err) {
		t.Errorf("dry run created the cache: %v", err)
	}
}

func TestSizesFile(t *testing.T) {
	root := t.TempDir()
	cfg := project(t, "shapes.txtar", root, "shapes")
	cfg.Sizes = nil
	probe := filepath.Join(root, "sizes.toml")
	if err := os.WriteFile(probe, []byte("[sizes.linux-x86_64]\n\"shapes::Size\" = 8\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	res := generate(t, cfg, Options{SizesFile: probe, DryRun: true})
	for _, d := range res.Run.Diagnostics {
		if d.Kind == diag.SizeIndeterminate {
			t.Errorf("size from the probe output not used: %v", d)
		}
	}

	cfg.Sizes = nil
	res = generate(t, cfg, Options{DryRun: true})
	if !hasDiagnostic(res.Run.Diagnostics, diag.SizeIndeterminate, "shapes::Size") {
		t.Errorf("diagnostics without sizes = %v", res.Run.Diagnostics)
	}
}

func TestReport(t *testing.T) {
	root := t.TempDir()
	cfg := project(t, "shapes.txtar", root, "shapes")
	generate(t, cfg, Options{})
	var b strings.Builder
	if err := Report(cfg, &b); err != nil {
		t.Fatalf("Report: %v", err)
	}
	for _, want := range []string{"run ", "of shapes", "Filtered (1)", "shapes::debugDump: blocked by name"} {
		if !strings.Contains(b.String(), want) {
			t.Errorf("report lacks %q:\n%s", want, b.String())
		}
	}
}

func TestBlock(t *testing.T) {
	lib := cppmodel.NewLibrary("geo")
	ns := lib.Namespace("geo")
	point := &cppmodel.Class{Name: "Point", Scope: "geo", Methods: []*cppmodel.Function{
		{Name: "x", Scope: "geo::Point", Member: true, Return: cppmodel.MustParseType("int")},
		{Name: "debug", Scope: "geo::Point", Member: true, Return: cppmodel.VoidType()},
	}}
	hidden := &cppmodel.Class{Name: "Hidden", Scope: "geo"}
	ns.Classes = []*cppmodel.Class{point, hidden}
	ns.Functions = []*cppmodel.Function{{Name: "reset", Scope: "geo", Return: cppmodel.VoidType()}}
	ns.Enums = []*cppmodel.Enum{{Name: "Secret", Scope: "geo"}, {Name: "Align", Scope: "geo"}}
	lib.Reindex()

	diags := diag.NewCollector()
	n := Block(lib, []string{"geo::Hidden", "geo::Point::debug", "geo::reset", "geo::Secret", "geo::Nothing"}, diags)
	if n != 4 {
		t.Errorf("removed %d entities, want 4", n)
	}
	if _, ok := lib.Class("geo::Hidden"); ok {
		t.Error("blocked class kept")
	}
	if len(point.Methods) != 1 || point.Methods[0].Name != "x" {
		t.Errorf("methods = %v", point.Methods)
	}
	if len(lib.Functions()) != 0 {
		t.Error("blocked function kept")
	}
	if _, ok := lib.Enum("geo::Secret"); ok {
		t.Error("blocked enum kept")
	}
	if _, ok := lib.Enum("geo::Align"); !ok {
		t.Error("unblocked enum removed")
	}
	if diags.Count(diag.Filtered) != 4 {
		t.Errorf("diagnostics = %v", diags.Items())
	}
}

func TestLoadDocumentScansHeaders(t *testing.T) {
	dir := t.TempDir()
	header := filepath.Join(dir, "include", "geo", "point.h")
	if err := os.MkdirAll(filepath.Dir(header), 0o755); err != nil {
		t.Fatal(err)
	}
	src := "namespace geo {\nclass GEO_EXPORT Point {\npublic:\n    int x() const;\n};\n}\n"
	if err := os.WriteFile(header, []byte(src), 0o644); err != nil {
		t.Fatal(err)
	}
	toml := `
[library]
name = "geo"
headers = ["include/geo/point.h"]
include_dirs = ["include"]
export_macro = "GEO_EXPORT"
`
	cfg, err := config.Parse([]byte(toml), dir)
	if err != nil {
		t.Fatal(err)
	}
	doc, err := LoadDocument(context.Background(), cfg, diag.NewCollector())
	if err != nil {
		t.Fatalf("LoadDocument: %v", err)
	}
	if len(doc.Classes) != 1 || doc.Classes[0].Include != "geo/point.h" || doc.Classes[0].Scope != "geo" {
		t.Errorf("classes = %+v", doc.Classes)
	}

	cfg.Library.Headers = nil
	if _, err := LoadDocument(context.Background(), cfg, diag.NewCollector()); err == nil {
		t.Error("expected an error without feed or headers")
	}
}
