// Package rustgen emits the Rust crate that binds the C wrapper library:
// the extern block, one module per namespace, a struct for every class,
// newtypes for enums, dispatch traits and the small runtime in cpp_utils.
package rustgen

import (
	"fmt"
	"sort"
	"strings"

	"github.com/tliron/commonlog"

	"github.com/rust-qt/ritual/alloc"
	"github.com/rust-qt/ritual/cppmodel"
	"github.com/rust-qt/ritual/overload"
	"github.com/rust-qt/ritual/typemap"
)

var log = commonlog.GetLogger("ritual.rustgen")

// Sizer reports the probed size of a VALUE class on a platform.
type Sizer interface {
	Size(id, platform string) (int, bool)
}

// Dependency is a crate generated for a dependency library.
type Dependency struct {
	Crate string
	// Path is the crate directory, relative to the generated crate.
	Path string
}

// Options configures the crate.
type Options struct {
	Crate   string
	Version string
	// Library is the C wrapper library the crate links against.
	Library      string
	Dependencies []Dependency
	Sizes        Sizer
	// Excluded reports classes and enums removed from the run.
	Excluded func(id string) bool
}

// Tree maps paths relative to the crate directory to file contents.
type Tree map[string][]byte

// Paths returns the paths of the tree, sorted.
func (t Tree) Paths() []string {
	out := make([]string, 0, len(t))
	for p := range t {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// module collects the items emitted into one Rust module.
type module struct {
	path     []string
	children map[string]*module
	classes  []*cppmodel.Class
	enums    []*cppmodel.Enum
	free     []*overload.Method
	groups   []*overload.Group
}

func newModule(path []string) *module {
	return &module{path: path, children: make(map[string]*module)}
}

func (m *module) child(name string) *module {
	c, ok := m.children[name]
	if !ok {
		c = newModule(append(append([]string(nil), m.path...), name))
		m.children[name] = c
	}
	return c
}

func (m *module) empty() bool {
	if len(m.classes)+len(m.enums)+len(m.free) > 0 {
		return false
	}
	for _, c := range m.children {
		if !c.empty() {
			return false
		}
	}
	return true
}

func (m *module) childNames() []string {
	var out []string
	for name, c := range m.children {
		if !c.empty() {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}

// Emitter renders the crate of one resolved library.
type Emitter struct {
	mapper *typemap.Mapper
	res    *overload.Result
	opts   Options
	root   *module
	// upcasts indexes the primary-base upcast of every emitted class.
	upcasts map[string]*overload.Method
	opImpls map[string]bool
}

// New returns an Emitter for res.
func New(mapper *typemap.Mapper, res *overload.Result, opts Options) *Emitter {
	if opts.Crate == "" {
		opts.Crate = typemap.SnakeCase(mapper.Library().Name)
	}
	if opts.Version == "" {
		opts.Version = "0.1.0"
	}
	if opts.Library == "" {
		opts.Library = strings.ToLower(cppmodel.Identifier(mapper.Library().Name))
	}
	if opts.Excluded == nil {
		opts.Excluded = func(string) bool { return false }
	}
	e := &Emitter{mapper: mapper, res: res, opts: opts, upcasts: make(map[string]*overload.Method), opImpls: make(map[string]bool)}
	e.root = e.layout()
	return e
}

// Classes returns the classes the crate defines a type for.
func (e *Emitter) Classes() []*cppmodel.Class {
	var out []*cppmodel.Class
	for _, c := range e.mapper.Library().Classes() {
		if c.IsTemplate() || c.Dependency != "" || e.opts.Excluded(c.ID()) {
			continue
		}
		if e.mapper.Strategy(c) == alloc.Unknown {
			continue
		}
		out = append(out, c)
	}
	return out
}

func (e *Emitter) enums() []*cppmodel.Enum {
	lib := e.mapper.Library()
	var out []*cppmodel.Enum
	for _, en := range lib.Enums() {
		if en.Dependency != "" || e.opts.Excluded(en.QualifiedName()) {
			continue
		}
		if c, ok := lib.Class(en.Scope); ok && (c.IsTemplate() || e.opts.Excluded(c.ID())) {
			continue
		}
		out = append(out, en)
	}
	return out
}

func (e *Emitter) moduleFor(namespace string) *module {
	m := e.root
	for _, part := range e.mapper.ModulePath(namespace) {
		m = m.child(part)
	}
	return m
}

func (e *Emitter) layout() *module {
	e.root = newModule(nil)
	for _, c := range e.Classes() {
		mod := e.moduleFor(e.mapper.ClassNamespace(c))
		mod.classes = append(mod.classes, c)
		if up := e.primaryUpcast(c); up != nil {
			e.upcasts[c.ID()] = up
		}
	}
	for _, en := range e.enums() {
		mod := e.moduleFor(e.mapper.EnumNamespace(en))
		mod.enums = append(mod.enums, en)
	}
	for _, m := range e.res.Methods {
		if m.Class != nil || m.RustName == "" {
			continue
		}
		mod := e.moduleFor(e.mapper.FunctionNamespace(m.Func))
		mod.free = append(mod.free, m)
	}
	for _, g := range e.res.Groups {
		if g.Class != nil {
			continue
		}
		mod := e.moduleFor(g.Namespace)
		mod.groups = append(mod.groups, g)
	}
	return e.root
}

// primaryUpcast finds the upcast of c to its primary base when that base
// is a type of this crate or of a dependency crate.
func (e *Emitter) primaryUpcast(c *cppmodel.Class) *overload.Method {
	base, ok := c.PrimaryBase()
	if !ok {
		return nil
	}
	for _, m := range e.res.ForClass(c.ID()) {
		if m.Func.Synthetic != cppmodel.StaticUpcast || m.Return == nil || m.Return.Class == nil {
			continue
		}
		if m.Return.Class.ID() == base.BaseName() && len(m.Guard()) == 0 {
			return m
		}
	}
	return nil
}

// Emit renders the whole crate.
func (e *Emitter) Emit() (Tree, error) {
	tree := make(Tree)
	tree["Cargo.toml"] = []byte(e.cargoManifest())
	tree["build.rs"] = []byte(e.buildScript())
	tree["src/cpp_utils.rs"] = []byte(e.cppUtils())
	tree["src/type_sizes.rs"] = []byte(e.typeSizes())
	ffi, err := e.ffiModule()
	if err != nil {
		return nil, err
	}
	tree["src/ffi.rs"] = []byte(ffi)

	var render func(m *module) error
	render = func(m *module) error {
		content, err := e.moduleFile(m)
		if err != nil {
			return fmt.Errorf("module %s: %w", modulePathString(m.path), err)
		}
		tree[moduleFileName(m.path)] = []byte(content)
		for _, name := range m.childNames() {
			if err := render(m.children[name]); err != nil {
				return err
			}
		}
		return nil
	}
	if err := render(e.root); err != nil {
		return nil, err
	}
	log.Infof("crate %s: %d files", e.opts.Crate, len(tree))
	return tree, nil
}

func moduleFileName(path []string) string {
	if len(path) == 0 {
		return "src/lib.rs"
	}
	return "src/" + strings.Join(path, "/") + ".rs"
}

func modulePathString(path []string) string {
	return strings.Join(append([]string{"crate"}, path...), "::")
}

func (e *Emitter) cargoManifest() string {
	var b strings.Builder
	b.WriteString("[package]\n")
	fmt.Fprintf(&b, "name = %q\nversion = %q\nedition = \"2018\"\nbuild = \"build.rs\"\n", e.opts.Crate, e.opts.Version)
	fmt.Fprintf(&b, "links = %q\n", e.opts.Library)
	if len(e.opts.Dependencies) > 0 {
		b.WriteString("\n[dependencies]\n")
		deps := append([]Dependency(nil), e.opts.Dependencies...)
		sort.Slice(deps, func(i, j int) bool { return deps[i].Crate < deps[j].Crate })
		for _, d := range deps {
			fmt.Fprintf(&b, "%s = { path = %q }\n", typemap.SnakeCase(d.Crate), d.Path)
		}
	}
	return b.String()
}

func (e *Emitter) buildScript() string {
	var b strings.Builder
	b.WriteString("use std::env;\nuse std::path::PathBuf;\n\n")
	b.WriteString("fn main() {\n")
	b.WriteString("    let lib_dir = match env::var(\"RITUAL_WRAPPER_LIB_DIR\") {\n")
	b.WriteString("        Ok(dir) => PathBuf::from(dir),\n")
	b.WriteString("        Err(_) => PathBuf::from(env::var(\"CARGO_MANIFEST_DIR\").unwrap()).join(\"c_lib\").join(\"install\").join(\"lib\"),\n")
	b.WriteString("    };\n")
	b.WriteString("    println!(\"cargo:rerun-if-env-changed=RITUAL_WRAPPER_LIB_DIR\");\n")
	b.WriteString("    println!(\"cargo:rustc-link-search=native={}\", lib_dir.display());\n")
	fmt.Fprintf(&b, "    println!(\"cargo:rustc-link-lib=dylib=%s\");\n", e.opts.Library)
	b.WriteString("}\n")
	return b.String()
}

func (e *Emitter) moduleFile(m *module) (string, error) {
	w := &writer{}
	if len(m.path) == 0 {
		w.line("//! Bindings to the C++ library %s.", e.mapper.Library().Name)
		w.line("//!")
		w.line("//! Every function is unsafe: it calls into C++ through the wrappers of %s.", e.opts.Library)
		w.line("")
		w.line("#![allow(non_camel_case_types, non_snake_case, clippy::all)]")
		w.line("")
		w.line("pub mod cpp_utils;")
		w.line("mod ffi;")
		w.line("mod type_sizes;")
	} else {
		w.line("//! Items of the C++ namespace %s.", strings.Join(m.path, "::"))
	}
	if names := m.childNames(); len(names) > 0 {
		w.line("")
		for _, name := range names {
			w.line("pub mod %s;", name)
		}
	}

	for _, en := range m.enums {
		w.line("")
		e.writeEnum(w, en)
	}
	for _, c := range m.classes {
		w.line("")
		if err := e.writeClass(w, c); err != nil {
			return "", fmt.Errorf("class %s: %w", c.ID(), err)
		}
	}
	for _, f := range m.free {
		w.line("")
		if err := e.writeFunction(w, f, true); err != nil {
			return "", fmt.Errorf("%s: %w", f.ID(), err)
		}
	}
	for _, g := range m.groups {
		w.line("")
		e.writeEntryPoint(w, g)
		w.line("")
		e.writeDispatch(w, g)
	}
	for _, f := range m.free {
		e.writeOperatorTrait(w, f)
	}
	return w.String(), nil
}

// cfg is the attribute hiding an item on the excluded platforms, or "".
func (e *Emitter) cfg(excluded []string) string {
	if len(excluded) == 0 {
		return ""
	}
	byName := make(map[string]typemap.Platform)
	for _, p := range e.mapper.Platforms() {
		byName[p.Name] = p
	}
	var preds []string
	for _, name := range excluded {
		if p, ok := byName[name]; ok {
			preds = append(preds, p.RustCfg)
		}
	}
	if len(preds) == 1 {
		return "#[cfg(not(" + preds[0] + "))]"
	}
	return "#[cfg(not(any(" + strings.Join(preds, ", ") + ")))]"
}

// writer accumulates indented Rust source.
type writer struct {
	b      strings.Builder
	indent int
}

func (w *writer) line(format string, args ...any) {
	if format == "" {
		w.b.WriteString("\n")
		return
	}
	w.b.WriteString(strings.Repeat("    ", w.indent))
	fmt.Fprintf(&w.b, format, args...)
	w.b.WriteString("\n")
}

// open writes a line ending in "{" and indents.
func (w *writer) open(format string, args ...any) {
	w.line(format+" {", args...)
	w.indent++
}

func (w *writer) close() {
	w.indent--
	w.line("}")
}

func (w *writer) String() string { return w.b.String() }
