package diag

import (
	"errors"
	"fmt"
	"io"
	"strings"
)

// AsDiagnostic unwraps err to a copy of the *Diagnostic it carries.
func AsDiagnostic(err error) (*Diagnostic, bool) {
	var d *Diagnostic
	if errors.As(err, &d) {
		cp := *d
		return &cp, true
	}
	return nil, false
}

// WriteReport prints the post-run report: one section per kind with every
// entity it names, error kinds first.
func WriteReport(w io.Writer, items []Diagnostic) error {
	if len(items) == 0 {
		_, err := fmt.Fprintln(w, "no diagnostics")
		return err
	}
	sorted := Sorted(items)
	var b strings.Builder
	excluded := 0
	for _, d := range sorted {
		if d.Kind.Excludes() {
			excluded++
		}
	}
	fmt.Fprintf(&b, "%d diagnostics, %d excluding\n", len(sorted), excluded)

	var current Kind
	for _, d := range sorted {
		if d.Kind != current {
			current = d.Kind
			n := 0
			for _, o := range sorted {
				if o.Kind == current {
					n++
				}
			}
			fmt.Fprintf(&b, "\n%s (%d)\n", current, n)
		}
		fmt.Fprintf(&b, "  %s: %s\n", d.Entity, d.Message)
	}
	_, err := io.WriteString(w, b.String())
	return err
}

// Summary returns a one-line count per kind, e.g. "AmbiguousOverload=1 Renamed=2".
func Summary(items []Diagnostic) string {
	counts := make(map[Kind]int)
	for _, d := range items {
		counts[d.Kind]++
	}
	var parts []string
	for k := UnresolvedType; k <= Filtered; k++ {
		if counts[k] > 0 {
			parts = append(parts, fmt.Sprintf("%s=%d", k, counts[k]))
		}
	}
	return strings.Join(parts, " ")
}
