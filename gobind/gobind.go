// Package gobind emits a cgo package over the C wrapper library. Classes
// become handle types, enums become named integers and every exposed
// method becomes a Go function or method calling its wrapper.
//
// The generated files are type-checked in memory before they are returned;
// functions that fail are left out and reported as dropped.
package gobind

import (
	"bytes"
	"fmt"
	"sort"
	"strings"

	"github.com/dave/jennifer/jen"
	"github.com/tliron/commonlog"

	"github.com/rust-qt/ritual/alloc"
	"github.com/rust-qt/ritual/cppmodel"
	"github.com/rust-qt/ritual/cwrap"
	"github.com/rust-qt/ritual/diag"
	"github.com/rust-qt/ritual/overload"
	"github.com/rust-qt/ritual/typemap"
)

var log = commonlog.GetLogger("ritual.gobind")

// Sizer reports the probed size of a VALUE class on a platform.
type Sizer interface {
	Size(id, platform string) (int, bool)
}

// Options configures the Go package.
type Options struct {
	// Package is the package name. Defaults to the lower-cased library name.
	Package string
	// Library is the C wrapper library linked with -l.
	Library string
	// CFlags and LDFlags are added to the cgo directives, e.g. search paths.
	CFlags  string
	LDFlags string
	Sizes   Sizer
	// Excluded reports classes removed from the run.
	Excluded       func(id string) bool
	SkipValidation bool
	// Diags receives a Dropped diagnostic for every method left out.
	Diags *diag.Collector
}

// Tree maps file names to contents.
type Tree map[string][]byte

// Paths returns the file names of the tree, sorted.
func (t Tree) Paths() []string {
	out := make([]string, 0, len(t))
	for p := range t {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// Emitter renders the Go package of one resolved library.
type Emitter struct {
	mapper  *typemap.Mapper
	res     *overload.Result
	opts    Options
	wrapper *cwrap.Emitter

	classes []*cppmodel.Class
	// sized marks VALUE classes with a size on every platform.
	sized   map[string]bool
	bases   map[string]*overload.Method
	dropped map[*overload.Method]string
	// funcs maps generated function keys back to their methods.
	funcs map[string]*overload.Method
}

// New returns an Emitter for res.
func New(mapper *typemap.Mapper, res *overload.Result, opts Options) *Emitter {
	lib := mapper.Library()
	if opts.Library == "" {
		opts.Library = strings.ToLower(cppmodel.Identifier(lib.Name))
	}
	if opts.Package == "" {
		opts.Package = opts.Library
	}
	if opts.Excluded == nil {
		opts.Excluded = func(string) bool { return false }
	}
	if opts.Diags == nil {
		opts.Diags = diag.NewCollector()
	}
	e := &Emitter{
		mapper:  mapper,
		res:     res,
		opts:    opts,
		wrapper: cwrap.New(mapper, res, cwrap.Options{Library: opts.Library}),
		sized:   make(map[string]bool),
		bases:   make(map[string]*overload.Method),
		dropped: make(map[*overload.Method]string),
	}
	e.collectClasses()
	return e
}

func (e *Emitter) collectClasses() {
	for _, c := range e.mapper.Library().Classes() {
		if c.IsTemplate() || c.Dependency != "" || e.opts.Excluded(c.ID()) {
			continue
		}
		strategy := e.mapper.Strategy(c)
		if strategy == alloc.Unknown {
			continue
		}
		e.classes = append(e.classes, c)
		if strategy == alloc.Value && e.hasSizes(c) {
			e.sized[c.ID()] = true
		}
	}
	emitted := make(map[string]bool)
	for _, c := range e.classes {
		emitted[c.ID()] = true
	}
	for _, c := range e.classes {
		base, ok := c.PrimaryBase()
		if !ok || !emitted[base.BaseName()] {
			continue
		}
		for _, m := range e.res.ForClass(c.ID()) {
			if m.Func.Synthetic == cppmodel.StaticUpcast && m.Return != nil && m.Return.Class != nil &&
				m.Return.Class.ID() == base.BaseName() && len(m.Guard()) == 0 {
				e.bases[c.ID()] = m
				break
			}
		}
	}
}

func (e *Emitter) hasSizes(c *cppmodel.Class) bool {
	if e.opts.Sizes == nil {
		return false
	}
	for _, p := range e.mapper.Platforms() {
		if _, ok := e.opts.Sizes.Size(c.ID(), p.Name); !ok {
			return false
		}
	}
	return true
}

// Emit renders the package. Unless validation is skipped, functions that
// fail to type-check are dropped and the package is rendered again.
func (e *Emitter) Emit() (Tree, error) {
	for pass := 1; ; pass++ {
		tree, err := e.render()
		if err != nil {
			return nil, err
		}
		if e.opts.SkipValidation {
			return tree, nil
		}
		errs := NewValidator().Validate(e.validationSet(tree))
		if len(errs) == 0 {
			log.Infof("go package %s: %d files, validated in %d passes", e.opts.Package, len(tree), pass)
			return tree, nil
		}
		bad := make(map[*overload.Method]string)
		for _, ve := range errs {
			if m, ok := e.funcs[ve.Key()]; ok {
				if _, seen := bad[m]; !seen {
					bad[m] = ve.Message
				}
			}
		}
		if len(bad) == 0 {
			log.Warningf("go package %s has errors outside generated functions:\n%s", e.opts.Package, FormatValidationErrors(errs))
			return tree, nil
		}
		ms := make([]*overload.Method, 0, len(bad))
		for m := range bad {
			ms = append(ms, m)
		}
		sort.Slice(ms, func(i, j int) bool { return ms[i].Symbol < ms[j].Symbol })
		for _, m := range ms {
			e.drop(m, "generated Go does not type-check: %s", bad[m])
		}
	}
}

func (e *Emitter) drop(m *overload.Method, format string, args ...any) {
	reason := fmt.Sprintf(format, args...)
	e.dropped[m] = reason
	e.opts.Diags.Report(diag.Dropped, m.ID(), "not exposed in Go: %s", reason)
}

// validationSet is the package as compiled on one platform: every file
// without a platform suffix plus the size file of the first platform.
func (e *Emitter) validationSet(tree Tree) map[string]string {
	files := make(map[string]string)
	sizes := ""
	if ps := e.mapper.Platforms(); len(ps) > 0 {
		sizes = sizeFileName(ps[0])
	}
	for name, content := range tree {
		if strings.HasPrefix(name, "sizes_") && name != sizes {
			continue
		}
		files[name] = string(content)
	}
	return files
}

func sizeFileName(p typemap.Platform) string {
	return fmt.Sprintf("sizes_%s_%s.go", p.GOOS, p.GOARCH)
}

func (e *Emitter) render() (Tree, error) {
	e.funcs = make(map[string]*overload.Method)
	tree := make(Tree)

	main := e.newFile(true)
	e.writeTypes(main)

	guarded := make(map[string][]*overload.Method)
	var guards []string
	for _, m := range e.exposed() {
		if g := m.Guard(); len(g) > 0 {
			key := strings.Join(g, ",")
			if _, ok := guarded[key]; !ok {
				guards = append(guards, key)
			}
			guarded[key] = append(guarded[key], m)
			continue
		}
		e.writeMethod(main, m)
	}
	if err := renderInto(tree, e.opts.Package+".go", main); err != nil {
		return nil, err
	}

	sort.Strings(guards)
	for i, key := range guards {
		f := e.newFile(false)
		f.HeaderComment("//go:build " + e.constraint(strings.Split(key, ",")))
		for _, m := range guarded[key] {
			e.writeMethod(f, m)
		}
		if err := renderInto(tree, fmt.Sprintf("%s_guard%d.go", e.opts.Package, i+1), f); err != nil {
			return nil, err
		}
	}

	for _, p := range e.mapper.Platforms() {
		f := jen.NewFile(e.opts.Package)
		f.HeaderComment("Code generated by ritual. DO NOT EDIT.")
		f.HeaderComment("//go:build " + p.GoConstraint())
		var defs []jen.Code
		for _, c := range e.classes {
			if !e.sized[c.ID()] {
				continue
			}
			size, _ := e.opts.Sizes.Size(c.ID(), p.Name)
			defs = append(defs, jen.Id(sizeConst(e.mapper.GoClassName(c))).Op("=").Lit(size))
		}
		if len(defs) == 0 {
			continue
		}
		f.Comment(fmt.Sprintf("Sizes of C++ classes stored by value on %s.", p.Name))
		f.Const().Defs(defs...)
		if err := renderInto(tree, sizeFileName(p), f); err != nil {
			return nil, err
		}
	}
	return tree, nil
}

func renderInto(tree Tree, name string, f *jen.File) error {
	var buf bytes.Buffer
	if err := f.Render(&buf); err != nil {
		return fmt.Errorf("rendering %s: %w", name, err)
	}
	tree[name] = buf.Bytes()
	return nil
}

func (e *Emitter) newFile(main bool) *jen.File {
	f := jen.NewFile(e.opts.Package)
	f.HeaderComment("Code generated by ritual. DO NOT EDIT.")
	if main {
		f.PackageComment(fmt.Sprintf("Package %s binds the C++ library %s through its C wrappers.", e.opts.Package, e.mapper.Library().Name))
	}
	f.CgoPreamble(e.preamble())
	return f
}

func (e *Emitter) preamble() string {
	var b strings.Builder
	if e.opts.CFlags != "" {
		fmt.Fprintf(&b, "#cgo CFLAGS: %s\n", e.opts.CFlags)
	}
	ld := "-l" + e.opts.Library
	if e.opts.LDFlags != "" {
		ld = e.opts.LDFlags + " " + ld
	}
	fmt.Fprintf(&b, "#cgo LDFLAGS: %s\n", ld)
	b.WriteString("#include <stdbool.h>\n#include <stdlib.h>\n")
	for _, inc := range e.res.Includes() {
		fmt.Fprintf(&b, "#include \"%s.h\"\n", e.wrapper.Stem(inc))
	}
	return b.String()
}

// constraint is the build constraint excluding the named platforms.
func (e *Emitter) constraint(excluded []string) string {
	byName := make(map[string]typemap.Platform)
	for _, p := range e.mapper.Platforms() {
		byName[p.Name] = p
	}
	var terms []string
	for _, name := range excluded {
		if p, ok := byName[name]; ok {
			terms = append(terms, "("+p.GoConstraint()+")")
		}
	}
	return "!(" + strings.Join(terms, " || ") + ")"
}

// exposed returns the methods the Go package defines a function for.
func (e *Emitter) exposed() []*overload.Method {
	var out []*overload.Method
	for _, m := range e.res.Methods {
		if m.GoName == "" || m.Func.IsDestructor() {
			continue
		}
		if _, ok := e.dropped[m]; ok {
			continue
		}
		if m.Class != nil && !e.classEmitted(m.Class) {
			continue
		}
		if o, ok := m.OutputArg(); ok && !e.sized[o.Map.Class.ID()] {
			e.drop(m, "no probed size of %s on every platform", o.Map.Class.ID())
			continue
		}
		out = append(out, m)
	}
	return out
}

func (e *Emitter) classEmitted(c *cppmodel.Class) bool {
	for _, k := range e.classes {
		if k == c {
			return true
		}
	}
	return false
}

func sizeConst(class string) string { return "size" + class }
