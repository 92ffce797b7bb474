// Package diag records per-entity diagnostics produced during a processing run.
//
// Every skipped, merged, renamed or filtered construct is recorded here instead
// of aborting the run. Error kinds exclude the entity they are attached to from
// both emitted source trees; informational kinds only document what happened.
package diag

import (
	"fmt"
	"sort"

	"github.com/tliron/commonlog"
)

// Kind classifies a diagnostic.
type Kind int

const (
	// UnresolvedType: a class is referenced but never defined.
	UnresolvedType Kind = iota + 1
	// AmbiguousOverload: two overloads collapse to the same signature or tie at dispatch.
	AmbiguousOverload
	// UnsupportedConstruct: multiple inheritance offsets, partial specialization,
	// function types with reference or class-value arguments, runaway template growth.
	UnsupportedConstruct
	// SymbolCollision: two wrapper symbols computed to the same identifier.
	SymbolCollision
	// SizeIndeterminate: a VALUE class has no probed size for some platform.
	SizeIndeterminate
	// NameCollision: two sibling entities of one scope share a name and kind.
	NameCollision

	// Informational kinds below never exclude an entity.

	// Merged: platform-colliding overloads were merged under a platform guard.
	Merged
	// Renamed: a symbol or host name got a disambiguating suffix.
	Renamed
	// Dropped: a single binding (accessor, const twin) was not emitted.
	Dropped
	// Filtered: the entity matched a blocked name or filtered namespace.
	Filtered
)

var kindNames = map[Kind]string{
	UnresolvedType:       "UnresolvedType",
	AmbiguousOverload:    "AmbiguousOverload",
	UnsupportedConstruct: "UnsupportedConstruct",
	SymbolCollision:      "SymbolCollision",
	SizeIndeterminate:    "SizeIndeterminate",
	NameCollision:        "NameCollision",
	Merged:               "Merged",
	Renamed:              "Renamed",
	Dropped:              "Dropped",
	Filtered:             "Filtered",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// ParseKind is the inverse of Kind.String.
func ParseKind(s string) (Kind, bool) {
	for k, name := range kindNames {
		if name == s {
			return k, true
		}
	}
	return 0, false
}

// Excludes reports whether a diagnostic of this kind removes its entity from
// the emitted output.
func (k Kind) Excludes() bool {
	return k >= UnresolvedType && k <= NameCollision
}

// Diagnostic is one (entity, kind, message) record.
type Diagnostic struct {
	Entity  string `cbor:"1,keyasint"`
	Kind    Kind   `cbor:"2,keyasint"`
	Message string `cbor:"3,keyasint"`
}

// New builds a diagnostic. It is also usable as an error value.
func New(kind Kind, entity, format string, args ...any) *Diagnostic {
	return &Diagnostic{Entity: entity, Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func (d *Diagnostic) Error() string {
	return fmt.Sprintf("%s: %s: %s", d.Kind, d.Entity, d.Message)
}

// Collector accumulates diagnostics for one run. It is not safe for
// concurrent use; the pipeline is single-threaded.
type Collector struct {
	items    []Diagnostic
	excluded map[string]Kind
	seen     map[Diagnostic]bool
	log      commonlog.Logger
}

// NewCollector returns an empty collector logging through "ritual.diag".
func NewCollector() *Collector {
	return &Collector{
		excluded: make(map[string]Kind),
		seen:     make(map[Diagnostic]bool),
		log:      commonlog.GetLogger("ritual.diag"),
	}
}

// Add records d. Identical records are kept once.
func (c *Collector) Add(d *Diagnostic) {
	if d == nil || c.seen[*d] {
		return
	}
	c.seen[*d] = true
	c.items = append(c.items, *d)
	if d.Kind.Excludes() {
		if _, ok := c.excluded[d.Entity]; !ok {
			c.excluded[d.Entity] = d.Kind
		}
		c.log.Warningf("%s", d.Error())
	} else {
		c.log.Infof("%s", d.Error())
	}
}

// Report is shorthand for Add(New(...)).
func (c *Collector) Report(kind Kind, entity, format string, args ...any) {
	c.Add(New(kind, entity, format, args...))
}

// AddError records err if it is (or wraps) a *Diagnostic. Any other error is
// recorded as UnsupportedConstruct against entity.
func (c *Collector) AddError(entity string, err error) {
	if err == nil {
		return
	}
	if d, ok := AsDiagnostic(err); ok {
		if d.Entity == "" {
			d.Entity = entity
		}
		c.Add(d)
		return
	}
	c.Report(UnsupportedConstruct, entity, "%v", err)
}

// Excluded reports whether an excluding diagnostic was recorded for entity.
func (c *Collector) Excluded(entity string) bool {
	_, ok := c.excluded[entity]
	return ok
}

// Items returns the diagnostics in insertion order.
func (c *Collector) Items() []Diagnostic {
	out := make([]Diagnostic, len(c.items))
	copy(out, c.items)
	return out
}

// Len returns the number of recorded diagnostics.
func (c *Collector) Len() int { return len(c.items) }

// Count returns the number of diagnostics of the given kind.
func (c *Collector) Count(kind Kind) int {
	n := 0
	for _, d := range c.items {
		if d.Kind == kind {
			n++
		}
	}
	return n
}

// ForEntity returns every diagnostic attached to entity.
func (c *Collector) ForEntity(entity string) []Diagnostic {
	var out []Diagnostic
	for _, d := range c.items {
		if d.Entity == entity {
			out = append(out, d)
		}
	}
	return out
}

// Merge copies every diagnostic of other into c.
func (c *Collector) Merge(other *Collector) {
	for i := range other.items {
		d := other.items[i]
		c.Add(&d)
	}
}

// Sorted returns the diagnostics ordered by kind, then entity, then message.
func Sorted(items []Diagnostic) []Diagnostic {
	out := make([]Diagnostic, len(items))
	copy(out, items)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Kind != out[j].Kind {
			return out[i].Kind < out[j].Kind
		}
		if out[i].Entity != out[j].Entity {
			return out[i].Entity < out[j].Entity
		}
		return out[i].Message < out[j].Message
	})
	return out
}
