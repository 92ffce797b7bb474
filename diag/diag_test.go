package diag

import (
	"bytes"
	"fmt"
	"strings"
	"testing"
)

func TestExcludesOnlyErrorKinds(t *testing.T) {
	tests := []struct {
		kind Kind
		want bool
	}{
		{UnresolvedType, true},
		{AmbiguousOverload, true},
		{UnsupportedConstruct, true},
		{SymbolCollision, true},
		{SizeIndeterminate, true},
		{NameCollision, true},
		{Merged, false},
		{Renamed, false},
		{Dropped, false},
		{Filtered, false},
	}
	for _, tt := range tests {
		t.Run(tt.kind.String(), func(t *testing.T) {
			if got := tt.kind.Excludes(); got != tt.want {
				t.Errorf("Excludes() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCollectorDeduplicatesAndExcludes(t *testing.T) {
	c := NewCollector()
	c.Report(UnresolvedType, "geo::Shape::area", "class %q is not defined", "geo::Unit")
	c.Report(UnresolvedType, "geo::Shape::area", "class %q is not defined", "geo::Unit")
	c.Report(Renamed, "geo::Point::x", "symbol renamed to Point_x_2")

	if c.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", c.Len())
	}
	if !c.Excluded("geo::Shape::area") {
		t.Error("expected geo::Shape::area to be excluded")
	}
	if c.Excluded("geo::Point::x") {
		t.Error("a rename must not exclude its entity")
	}
	if got := c.Count(UnresolvedType); got != 1 {
		t.Errorf("Count(UnresolvedType) = %d, want 1", got)
	}
}

func TestAddErrorUnwrapsDiagnostic(t *testing.T) {
	c := NewCollector()
	inner := New(SizeIndeterminate, "", "no size for linux-x86_64")
	c.AddError("geo::Point", fmt.Errorf("classify: %w", inner))
	c.AddError("geo::Line", fmt.Errorf("plain failure"))

	items := c.Items()
	if len(items) != 2 {
		t.Fatalf("got %d items, want 2", len(items))
	}
	if items[0].Entity != "geo::Point" || items[0].Kind != SizeIndeterminate {
		t.Errorf("first item = %+v", items[0])
	}
	if items[1].Kind != UnsupportedConstruct {
		t.Errorf("plain errors should map to UnsupportedConstruct, got %s", items[1].Kind)
	}
}

func TestWriteReportGroupsByKind(t *testing.T) {
	items := []Diagnostic{
		{Entity: "b", Kind: Renamed, Message: "renamed"},
		{Entity: "a", Kind: UnresolvedType, Message: "missing"},
		{Entity: "c", Kind: UnresolvedType, Message: "missing too"},
	}
	var buf bytes.Buffer
	if err := WriteReport(&buf, items); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	if !strings.HasPrefix(out, "3 diagnostics, 2 excluding") {
		t.Errorf("unexpected header:\n%s", out)
	}
	if strings.Index(out, "UnresolvedType (2)") > strings.Index(out, "Renamed (1)") {
		t.Errorf("error kinds should come first:\n%s", out)
	}
	if got := Summary(items); got != "UnresolvedType=2 Renamed=1" {
		t.Errorf("Summary() = %q", got)
	}
}

func TestParseKindRoundTrip(t *testing.T) {
	for k := UnresolvedType; k <= Filtered; k++ {
		got, ok := ParseKind(k.String())
		if !ok || got != k {
			t.Errorf("ParseKind(%q) = %v, %v", k.String(), got, ok)
		}
	}
}
