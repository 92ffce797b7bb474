package cwrap

import (
	"fmt"
	"sort"
	"strings"

	"github.com/rust-qt/ritual/cppmodel"
	"github.com/rust-qt/ritual/overload"
	"github.com/rust-qt/ritual/typemap"
)

func (e *Emitter) globalHeader() string {
	var b strings.Builder
	guard := guardMacro(e.GlobalHeader())
	upper := strings.ToUpper(e.prefix)
	fmt.Fprintf(&b, "#ifndef %s\n#define %s\n\n", guard, guard)
	b.WriteString("#include <stddef.h>\n#include <stdint.h>\n\n")

	fmt.Fprintf(&b, "#ifdef _WIN32\n")
	fmt.Fprintf(&b, "#  ifdef %s_LIBRARY\n#    define %s __declspec(dllexport)\n", upper, e.macro)
	fmt.Fprintf(&b, "#  else\n#    define %s __declspec(dllimport)\n#  endif\n", e.macro)
	fmt.Fprintf(&b, "#else\n#  define %s __attribute__((visibility(\"default\")))\n#endif\n\n", e.macro)

	b.WriteString("#ifdef __cplusplus\n")
	b.WriteString("// placement new\n#include <new>\n\n")
	for _, inc := range e.libraryIncludes() {
		fmt.Fprintf(&b, "#include <%s>\n", inc)
	}
	fmt.Fprintf(&b, "\ntemplate <typename T>\nvoid %s(T* x) {\n    x->~T();\n}\n", e.DestructorHelper())
	b.WriteString("#endif\n\n")

	classes := e.referencedClasses()
	if len(classes) > 0 {
		b.WriteString("#ifdef __cplusplus\n")
		for _, t := range classes {
			if name := typemap.CTypeName(t); name != t.String() {
				fmt.Fprintf(&b, "typedef %s %s;\n", t.String(), name)
			}
		}
		b.WriteString("#else\n")
		for _, t := range classes {
			name := typemap.CTypeName(t)
			fmt.Fprintf(&b, "typedef struct %s %s;\n", name, name)
		}
		b.WriteString("#endif\n\n")
	}
	fmt.Fprintf(&b, "#endif // %s\n", guard)
	return b.String()
}

// referencedClasses returns every class type appearing in a wrapper
// signature, sorted by C name.
func (e *Emitter) referencedClasses() []cppmodel.TypeRef {
	seen := make(map[string]cppmodel.TypeRef)
	add := func(c *cppmodel.Class) {
		if c == nil {
			return
		}
		t := c.Type()
		seen[typemap.CTypeName(t)] = t
	}
	for _, m := range e.res.Methods {
		add(m.Class)
		for _, a := range m.Args {
			add(a.Map.Class)
		}
		if m.Return != nil {
			add(m.Return.Class)
		}
	}
	names := make([]string, 0, len(seen))
	for n := range seen {
		names = append(names, n)
	}
	sort.Strings(names)
	out := make([]cppmodel.TypeRef, len(names))
	for i, n := range names {
		out[i] = seen[n]
	}
	return out
}

// signature renders the C declarator of a wrapper without the export macro.
func signature(m *overload.Method) string {
	args := make([]string, len(m.Args))
	for i, a := range m.Args {
		args[i] = a.Map.DeclareC(a.Name)
	}
	call := m.Symbol + "(" + strings.Join(args, ", ") + ")"
	if len(args) == 0 {
		call = m.Symbol + "(void)"
	}
	if !m.ReturnsValue() {
		return "void " + call
	}
	return m.Return.DeclareC(call)
}

func (e *Emitter) includeHeader(include string, methods []*overload.Method) (string, error) {
	var b strings.Builder
	file := e.Stem(include) + ".h"
	guard := guardMacro(file)
	fmt.Fprintf(&b, "#ifndef %s\n#define %s\n\n", guard, guard)
	fmt.Fprintf(&b, "#include \"%s\"\n\n", e.GlobalHeader())
	b.WriteString("#ifdef __cplusplus\nextern \"C\" {\n#endif\n\n")
	for _, m := range methods {
		if m.Symbol == "" {
			return "", fmt.Errorf("%s has no wrapper symbol", m.ID())
		}
		e.guarded(&b, m, func() {
			fmt.Fprintf(&b, "// %s\n", m.Func.Signature())
			fmt.Fprintf(&b, "%s %s;\n", e.macro, signature(m))
		})
	}
	b.WriteString("\n#ifdef __cplusplus\n}\n#endif\n\n")
	fmt.Fprintf(&b, "#endif // %s\n", guard)
	return b.String(), nil
}

func (e *Emitter) includeSource(include string, methods []*overload.Method) (string, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "#include \"%s.h\"\n\n", e.Stem(include))
	b.WriteString("extern \"C\" {\n")
	for _, m := range methods {
		body, err := e.body(m)
		if err != nil {
			return "", fmt.Errorf("%s: %w", m.ID(), err)
		}
		b.WriteString("\n")
		e.guarded(&b, m, func() {
			fmt.Fprintf(&b, "%s %s {\n", e.macro, signature(m))
			for _, line := range body {
				fmt.Fprintf(&b, "    %s\n", line)
			}
			b.WriteString("}\n")
		})
	}
	b.WriteString("\n} // extern \"C\"\n")
	return b.String(), nil
}

func (e *Emitter) guarded(b *strings.Builder, m *overload.Method, write func()) {
	cond := e.guardCondition(m.Guard())
	if cond != "" {
		fmt.Fprintf(b, "#if %s\n", cond)
	}
	write()
	if cond != "" {
		b.WriteString("#endif\n")
	}
}
