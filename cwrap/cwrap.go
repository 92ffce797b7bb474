// Package cwrap emits the C wrapper library: a global header carrying the
// export macro and the class typedefs, one header and source pair per
// include file, and a program probing the sizes of VALUE classes.
//
// Every wrapper has C linkage and forwards to the real C++ call, converting
// arguments and results the way the type mapper decided.
package cwrap

import (
	"fmt"
	"sort"
	"strings"

	"github.com/tliron/commonlog"

	"github.com/rust-qt/ritual/cppmodel"
	"github.com/rust-qt/ritual/overload"
	"github.com/rust-qt/ritual/typemap"
)

var log = commonlog.GetLogger("ritual.cwrap")

// Options configures the wrapper tree.
type Options struct {
	// Library names the wrapper library; file names and macros derive from it.
	Library string
	// ExportMacro prefixes every wrapper. Defaults to "<LIBRARY>_EXPORT".
	ExportMacro string
	// Includes are the library headers wrappers are compiled against. When
	// empty, the headers declaring the wrapped entities are used.
	Includes []string
}

// Tree maps paths relative to the wrapper directory to file contents.
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

// Emitter renders the wrapper tree of one resolved library.
type Emitter struct {
	mapper *typemap.Mapper
	res    *overload.Result
	opts   Options
	prefix string
	macro  string
	stems  map[string]string
}

// New returns an Emitter for res.
func New(mapper *typemap.Mapper, res *overload.Result, opts Options) *Emitter {
	prefix := strings.ToLower(cppmodel.Identifier(opts.Library))
	if prefix == "" {
		prefix = "ritual"
	}
	if opts.ExportMacro == "" {
		opts.ExportMacro = strings.ToUpper(prefix) + "_EXPORT"
	}
	e := &Emitter{mapper: mapper, res: res, opts: opts, prefix: prefix, macro: opts.ExportMacro}
	e.stems = fileStems(prefix, res.Includes())
	return e
}

// fileStems names the generated files of each include. Includes sharing a
// base name in different directories get numbered stems.
func fileStems(prefix string, includes []string) map[string]string {
	stems := make(map[string]string, len(includes))
	used := make(map[string]bool)
	for _, inc := range includes {
		stem := prefix + "_" + overload.IncludeBase(inc)
		candidate := stem
		for i := 2; used[candidate]; i++ {
			candidate = fmt.Sprintf("%s_%d", stem, i)
		}
		used[candidate] = true
		stems[inc] = candidate
	}
	return stems
}

// GlobalHeader is the file name of the global header.
func (e *Emitter) GlobalHeader() string { return e.prefix + "_global.h" }

// DestructorHelper is the function template calling a destructor in place.
func (e *Emitter) DestructorHelper() string { return e.prefix + "_call_destructor" }

// Stem returns the file stem of the wrappers generated for include.
func (e *Emitter) Stem(include string) string { return e.stems[include] }

// Emit renders the whole tree.
func (e *Emitter) Emit() (Tree, error) {
	tree := make(Tree)
	tree[e.GlobalHeader()] = []byte(e.globalHeader())
	for _, inc := range e.res.Includes() {
		methods := e.res.ForInclude(inc)
		header, err := e.includeHeader(inc, methods)
		if err != nil {
			return nil, fmt.Errorf("header for %s: %w", inc, err)
		}
		source, err := e.includeSource(inc, methods)
		if err != nil {
			return nil, fmt.Errorf("source for %s: %w", inc, err)
		}
		stem := e.Stem(inc)
		tree[stem+".h"] = []byte(header)
		tree[stem+".cpp"] = []byte(source)
	}
	tree[e.prefix+"_sizes.cpp"] = []byte(e.sizeProbe())
	log.Infof("wrapper tree: %d files for %d wrappers", len(tree), len(e.res.Methods))
	return tree, nil
}

// guardCondition is the preprocessor condition compiling a wrapper
// everywhere except on the excluded platforms, or "" when it is unguarded.
func (e *Emitter) guardCondition(excluded []string) string {
	if len(excluded) == 0 {
		return ""
	}
	byName := make(map[string]typemap.Platform)
	for _, p := range e.mapper.Platforms() {
		byName[p.Name] = p
	}
	conds := make([]string, 0, len(excluded))
	for _, name := range excluded {
		if p, ok := byName[name]; ok {
			conds = append(conds, "("+p.Condition+")")
		}
	}
	return "!(" + strings.Join(conds, " || ") + ")"
}

func (e *Emitter) libraryIncludes() []string {
	if len(e.opts.Includes) > 0 {
		return e.opts.Includes
	}
	seen := make(map[string]bool)
	var out []string
	for _, c := range e.mapper.Library().Classes() {
		if c.Include != "" && c.Dependency == "" && !seen[c.Include] {
			seen[c.Include] = true
			out = append(out, c.Include)
		}
	}
	for _, inc := range e.res.Includes() {
		if inc != "" && !seen[inc] {
			seen[inc] = true
			out = append(out, inc)
		}
	}
	sort.Strings(out)
	return out
}

func guardMacro(file string) string {
	return strings.ToUpper(cppmodel.Identifier(strings.ReplaceAll(file, ".", "_")))
}
