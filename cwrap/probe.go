package cwrap

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/rust-qt/ritual/alloc"
	"github.com/rust-qt/ritual/cppmodel"
)

// ProbedClasses returns the classes whose size the probe reports: every
// complete, non-template VALUE class of the library itself.
func (e *Emitter) ProbedClasses() []*cppmodel.Class {
	var out []*cppmodel.Class
	for _, c := range e.mapper.Library().Classes() {
		if c.IsTemplate() || c.Incomplete || c.Dependency != "" {
			continue
		}
		if e.mapper.Strategy(c) != alloc.Value {
			continue
		}
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID() < out[j].ID() })
	return out
}

// sizeProbe is a program printing the sizes of VALUE classes as a
// "[sizes.<platform>]" table for ritual.toml.
func (e *Emitter) sizeProbe() string {
	var b strings.Builder
	fmt.Fprintf(&b, "#include \"%s\"\n\n#include <iostream>\n\n", e.GlobalHeader())
	for i, p := range e.mapper.Platforms() {
		directive := "#elif"
		if i == 0 {
			directive = "#if"
		}
		fmt.Fprintf(&b, "%s %s\nstatic const char* const platform = %s;\n", directive, p.Condition, strconv.Quote(p.Name))
	}
	b.WriteString("#else\nstatic const char* const platform = \"unknown\";\n#endif\n\n")

	b.WriteString("int main() {\n")
	b.WriteString("    std::cout << \"[sizes.\" << platform << \"]\\n\";\n")
	for _, c := range e.ProbedClasses() {
		key := strconv.Quote(strconv.Quote(c.ID()) + " = ")
		fmt.Fprintf(&b, "    std::cout << %s << sizeof(%s) << \"\\n\";\n", key, c.Type().String())
	}
	b.WriteString("    return 0;\n}\n")
	return b.String()
}
