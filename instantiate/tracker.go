// Package instantiate tracks concrete instantiations of class and function
// templates and feeds synthesized monomorphic declarations back into the
// model.
//
// Each (template, argument list) pair moves UNSEEN -> REGISTERED -> EMITTED
// exactly once per run. Re-registering a known pair is a no-op.
package instantiate

import (
	"fmt"

	"github.com/tliron/commonlog"

	"github.com/rust-qt/ritual/cppmodel"
	"github.com/rust-qt/ritual/diag"
)

var log = commonlog.GetLogger("ritual.instantiate")

// DefaultMaxDepth bounds nested template growth.
const DefaultMaxDepth = 4

// State is the lifecycle state of an instantiation.
type State int

const (
	Unseen State = iota
	Registered
	Emitted
)

func (s State) String() string {
	switch s {
	case Registered:
		return "REGISTERED"
	case Emitted:
		return "EMITTED"
	}
	return "UNSEEN"
}

// Entry is one tracked instantiation.
type Entry struct {
	Key      string
	Template string
	Args     []cppmodel.TypeRef
	State    State
	Depth    int
	Sites    []string
	Class    *cppmodel.Class
	Function *cppmodel.Function
}

// Tracker records instantiations for one run.
type Tracker struct {
	lib      *cppmodel.Library
	diags    *diag.Collector
	maxDepth int
	skip     map[string]bool
	entries  map[string]*Entry
	order    []*Entry
	queue    []*Entry
}

// NewTracker returns a tracker for lib. maxDepth <= 0 selects DefaultMaxDepth.
func NewTracker(lib *cppmodel.Library, maxDepth int, diags *diag.Collector) *Tracker {
	if maxDepth <= 0 {
		maxDepth = DefaultMaxDepth
	}
	return &Tracker{
		lib:      lib,
		diags:    diags,
		maxDepth: maxDepth,
		skip:     make(map[string]bool),
		entries:  make(map[string]*Entry),
	}
}

// Skip excludes a template from tracking; the flags template is mapped
// directly rather than instantiated.
func (t *Tracker) Skip(template string) { t.skip[template] = true }

// Key is the identity of an instantiation, e.g. "geo::Vector<int>".
func Key(template string, args []cppmodel.TypeRef) string {
	return cppmodel.ClassType(template, args...).BaseName()
}

// State returns the state of an instantiation key.
func (t *Tracker) State(key string) State {
	if e, ok := t.entries[key]; ok {
		return e.State
	}
	return Unseen
}

// Entry returns a tracked instantiation.
func (t *Tracker) Entry(key string) (*Entry, bool) {
	e, ok := t.entries[key]
	return e, ok
}

// Entries returns every tracked instantiation in registration order.
func (t *Tracker) Entries() []*Entry {
	return append([]*Entry(nil), t.order...)
}

// Register records the class template instance ref names. site describes
// where it was encountered. It returns the entry, or nil when ref does not
// name a known class template.
func (t *Tracker) Register(ref cppmodel.TypeRef, site string, depth int) (*Entry, error) {
	if !ref.IsTemplateInstance() || ref.ContainsTemplateParam() || t.skip[ref.Name] {
		return nil, nil
	}
	tmpl, ok := t.lib.Class(ref.Name)
	if !ok || !tmpl.IsTemplate() {
		return nil, nil
	}
	key := Key(ref.Name, ref.Args)
	if e, ok := t.entries[key]; ok {
		e.Sites = appendSite(e.Sites, site)
		return e, nil
	}
	if len(ref.Args) != len(tmpl.TemplateParams) {
		return nil, diag.New(diag.UnsupportedConstruct, key, "template %s takes %d arguments, got %d",
			ref.Name, len(tmpl.TemplateParams), len(ref.Args))
	}
	if depth > t.maxDepth {
		return nil, diag.New(diag.UnsupportedConstruct, key,
			"nested template instantiation deeper than %d", t.maxDepth)
	}
	e := &Entry{
		Key:      key,
		Template: ref.Name,
		Args:     append([]cppmodel.TypeRef(nil), ref.Args...),
		State:    Registered,
		Depth:    depth,
		Sites:    []string{site},
	}
	t.entries[key] = e
	t.order = append(t.order, e)
	t.queue = append(t.queue, e)
	log.Debugf("registered %s at depth %d (%s)", key, depth, site)
	return e, nil
}

func appendSite(sites []string, site string) []string {
	for _, s := range sites {
		if s == site {
			return sites
		}
	}
	return append(sites, site)
}

// MarkEmitted moves a registered instantiation to EMITTED. Marking an
// emitted entry again is a no-op.
func (t *Tracker) MarkEmitted(key string) error {
	e, ok := t.entries[key]
	if !ok {
		return fmt.Errorf("instantiation %s was never registered", key)
	}
	e.State = Emitted
	return nil
}

// Scan walks every non-template declaration and explicit instantiation site,
// registers the instances it finds and synthesizes them into the model,
// following the types of synthesized members until the queue drains.
func (t *Tracker) Scan() {
	for _, s := range t.lib.Sites {
		if s.Type != nil {
			t.registerAll(*s.Type, "explicit instantiation", 1)
		}
	}
	for _, c := range t.lib.Classes() {
		if c.IsTemplate() || c.Instance != nil {
			continue
		}
		t.scanClass(c, 1)
	}
	for _, f := range t.lib.Functions() {
		if len(f.TemplateParams) > 0 {
			continue
		}
		t.scanFunction(f, 1)
	}
	t.drain()
	t.instantiateFunctions()
	t.drain()
}

func (t *Tracker) drain() {
	for len(t.queue) > 0 {
		e := t.queue[0]
		t.queue = t.queue[1:]
		c, err := t.synthesizeClass(e)
		if err != nil {
			t.diags.AddError(e.Key, err)
			continue
		}
		e.Class = c
		t.lib.AddClass(c)
		t.scanClass(c, e.Depth+1)
	}
}

func (t *Tracker) scanClass(c *cppmodel.Class, depth int) {
	for _, b := range c.Bases {
		t.registerAll(b, c.ID(), depth)
	}
	for _, f := range c.Fields {
		t.registerAll(f.Type, c.ID(), depth)
	}
	for _, m := range c.Methods {
		if len(m.TemplateParams) > 0 {
			continue
		}
		t.scanFunction(m, depth)
	}
}

func (t *Tracker) scanFunction(f *cppmodel.Function, depth int) {
	site := f.ID()
	t.registerAll(f.Return, site, depth)
	for _, p := range f.Params {
		t.registerAll(p.Type, site, depth)
	}
}

func (t *Tracker) registerAll(ref cppmodel.TypeRef, site string, depth int) {
	ref.Walk(func(x cppmodel.TypeRef) {
		if !x.IsTemplateInstance() {
			return
		}
		if _, err := t.Register(x.Pointee().WithConst(false), site, depth); err != nil {
			t.diags.AddError(Key(x.Name, x.Args), err)
		}
	})
}
