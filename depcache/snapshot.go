package depcache

import (
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/rust-qt/ritual/alloc"
	"github.com/rust-qt/ritual/cppmodel"
	"github.com/rust-qt/ritual/diag"
	"github.com/rust-qt/ritual/overload"
)

// Snapshot is what a processed library leaves for the libraries that depend
// on it: its declarations, the strategy of every class and the wrapper
// symbols it owns. A loaded snapshot is read-only.
type Snapshot struct {
	Library  string   `cbor:"1,keyasint"`
	Crate    string   `cbor:"2,keyasint"`
	Includes []string `cbor:"3,keyasint"`
	// Classes are flattened, outer classes first; nested classes and enums
	// are listed on their own.
	Classes    []*cppmodel.Class         `cbor:"4,keyasint"`
	Enums      []*cppmodel.Enum          `cbor:"5,keyasint"`
	Strategies map[string]alloc.Strategy `cbor:"6,keyasint"`
	Symbols    []string                  `cbor:"7,keyasint"`
}

// Capture records the emitted surface of a run. Template classes are left
// out; their emitted instances are kept.
func Capture(lib *cppmodel.Library, crate string, table *alloc.Table, res *overload.Result) *Snapshot {
	s := &Snapshot{
		Library:    lib.Name,
		Crate:      crate,
		Includes:   append([]string(nil), lib.Includes...),
		Strategies: make(map[string]alloc.Strategy),
	}
	for _, c := range lib.Classes() {
		if c.IsTemplate() {
			continue
		}
		cp := *c
		cp.Classes, cp.Enums = nil, nil
		s.Classes = append(s.Classes, &cp)
		if st := table.Strategy(c.ID()); st != alloc.Unknown {
			s.Strategies[c.ID()] = st
		}
	}
	for _, e := range lib.Enums() {
		cp := *e
		s.Enums = append(s.Enums, &cp)
	}
	if res != nil && res.Registry != nil {
		for sym := range res.Registry.Symbols() {
			s.Symbols = append(s.Symbols, sym)
		}
		sort.Strings(s.Symbols)
	}
	return s
}

// Applied is what a snapshot contributes to a run.
type Applied struct {
	// Fixed carries the recorded strategies for alloc.Options.
	Fixed map[string]alloc.Strategy
	// Reserved lists wrapper symbols the run must not reuse.
	Reserved []string
	Classes  int
	Enums    int
}

// Apply adds the snapshot's classes and enums to lib, marked as belonging
// to the dependency crate. Entities lib already declares are kept as they are.
func (s *Snapshot) Apply(lib *cppmodel.Library) Applied {
	a := Applied{Fixed: make(map[string]alloc.Strategy)}
	for _, c := range s.Classes {
		if _, ok := lib.Class(c.ID()); ok {
			log.Debugf("%s: class %s is declared locally, ignoring the dependency copy", s.Library, c.ID())
			continue
		}
		cp := *c
		if cp.Dependency == "" {
			cp.Dependency = s.Crate
		}
		lib.AddClass(&cp)
		if st, ok := s.Strategies[c.ID()]; ok {
			a.Fixed[c.ID()] = st
		}
		a.Classes++
	}
	for _, e := range s.Enums {
		if _, ok := lib.Enum(e.QualifiedName()); ok {
			continue
		}
		cp := *e
		if cp.Dependency == "" {
			cp.Dependency = s.Crate
		}
		lib.AddEnum(&cp)
		a.Enums++
	}
	a.Reserved = append(a.Reserved, s.Symbols...)
	log.Infof("dependency %s: %d classes, %d enums, %d reserved symbols", s.Library, a.Classes, a.Enums, len(a.Reserved))
	return a
}

// Run is the record of one processing run.
type Run struct {
	ID          uuid.UUID         `cbor:"1,keyasint"`
	Library     string            `cbor:"2,keyasint"`
	Started     time.Time         `cbor:"3,keyasint"`
	Duration    time.Duration     `cbor:"4,keyasint"`
	Digest      string            `cbor:"5,keyasint"`
	Files       int               `cbor:"6,keyasint"`
	Diagnostics []diag.Diagnostic `cbor:"7,keyasint"`
}

// NewRun starts a run record for library.
func NewRun(library string) *Run {
	return &Run{ID: uuid.New(), Library: library, Started: time.Now().UTC()}
}

// Finish stamps the duration and the diagnostics of the run.
func (r *Run) Finish(items []diag.Diagnostic, files int, digest string) {
	r.Duration = time.Since(r.Started)
	r.Diagnostics = diag.Sorted(items)
	r.Files = files
	r.Digest = digest
}
