package overload

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/rust-qt/ritual/cppmodel"
	"github.com/rust-qt/ritual/diag"
	"github.com/rust-qt/ritual/typemap"
)

var (
	// ErrAmbiguous is returned by Select when several overloads rank equally.
	ErrAmbiguous = errors.New("ambiguous overload")
	// ErrNoMatch is returned by Select when no overload accepts the arguments.
	ErrNoMatch = errors.New("no matching overload")
)

// Group is a dispatch entry point: one host function, generic over the
// argument tuple, that forwards to the overloads sharing a name and
// receiver kind.
type Group struct {
	Scope     string
	Class     *cppmodel.Class
	Namespace string
	Name      string
	Receiver  Receiver
	Members   []*Method

	hostScope string
}

// Entity is the identity diagnostics about the entry point are attached to.
func (g *Group) Entity() string {
	return g.Scope + "::" + g.Name + " dispatch"
}

// MembersOn returns the members compiled on platform name.
func (g *Group) MembersOn(name string) []*Method {
	var out []*Method
	for _, m := range g.Members {
		if m.AvailableOn(name) {
			out = append(out, m)
		}
	}
	return out
}

// Select picks the overload a call with host argument types args resolves
// to on platform p. Exact matches win over widening conversions; several
// candidates in the winning tier are rejected with ErrAmbiguous.
func (g *Group) Select(p typemap.Platform, args []string) (*Method, error) {
	var exact, widened []*Method
	for _, m := range g.MembersOn(p.Name) {
		keys := m.HostArgKeys(p)
		if len(keys) != len(args) {
			continue
		}
		rank := matchExact
		for i, a := range args {
			r := matchArg(p.ResolveRust(a), keys[i])
			if r < rank {
				rank = r
			}
		}
		switch rank {
		case matchExact:
			exact = append(exact, m)
		case matchWidening:
			widened = append(widened, m)
		}
	}
	for _, tier := range [][]*Method{exact, widened} {
		switch len(tier) {
		case 0:
			continue
		case 1:
			return tier[0], nil
		}
		ids := make([]string, len(tier))
		for i, m := range tier {
			ids[i] = m.ID()
		}
		return nil, fmt.Errorf("%s(%s): %w between %s", g.Name, strings.Join(args, ", "), ErrAmbiguous,
			strings.Join(ids, " and "))
	}
	return nil, fmt.Errorf("%s(%s): %w", g.Name, strings.Join(args, ", "), ErrNoMatch)
}

const (
	matchNone = iota
	matchWidening
	matchExact
)

// widening lists the lossless implicit conversions between resolved Rust
// primitives.
var widening = map[string][]string{
	"i8":  {"i16", "i32", "i64", "i128"},
	"i16": {"i32", "i64", "i128"},
	"i32": {"i64", "i128"},
	"i64": {"i128"},
	"u8":  {"u16", "u32", "u64", "u128", "i16", "i32", "i64", "i128"},
	"u16": {"u32", "u64", "u128", "i32", "i64", "i128"},
	"u32": {"u64", "u128", "i64", "i128"},
	"u64": {"u128", "i128"},
	"f32": {"f64"},
}

func matchArg(arg, param string) int {
	if arg == param {
		return matchExact
	}
	for _, w := range widening[arg] {
		if w == param {
			return matchWidening
		}
	}
	if strings.HasPrefix(arg, "&mut ") && "&"+strings.TrimPrefix(arg, "&mut ") == param {
		return matchWidening
	}
	const mutPtr, ptr = "crate::cpp_utils::MutPtr<", "crate::cpp_utils::Ptr<"
	if strings.HasPrefix(arg, mutPtr) && ptr+strings.TrimPrefix(arg, mutPtr) == param {
		return matchWidening
	}
	return matchNone
}

// buildGroups creates the dispatch entry points of one name set. Members
// that cannot be selected unambiguously on some platform are removed from
// the entry point and keep only their canonical names.
func buildGroups(mapper *typemap.Mapper, set *nameSet, diags *diag.Collector) []*Group {
	byReceiver := make(map[Receiver][]*Method)
	for _, m := range set.methods {
		byReceiver[m.Receiver] = append(byReceiver[m.Receiver], m)
	}
	dispatched := 0
	for _, ms := range byReceiver {
		if len(ms) > 1 {
			dispatched++
		}
	}

	var out []*Group
	for _, r := range []Receiver{Static, ConstSelf, MutSelf} {
		members := byReceiver[r]
		if len(members) < 2 {
			continue
		}
		g := &Group{
			Scope:     strings.SplitN(set.scope, " ", 2)[1],
			Name:      set.base,
			Receiver:  r,
			Members:   members,
			hostScope: set.scope,
		}
		g.Class = members[0].Class
		if g.Class == nil {
			g.Namespace = mapper.FunctionNamespace(members[0].Func)
		}
		switch {
		case r == ConstSelf && len(byReceiver[MutSelf]) > 0:
			g.Name += "_const"
		case r == Static && dispatched > 1:
			g.Name += "_static"
		}
		removeTies(mapper, g, diags)
		if len(g.Members) < 2 {
			log.Debugf("dropping dispatch %s: fewer than two selectable members", g.Entity())
			continue
		}
		for _, m := range g.Members {
			m.Dispatch = g
		}
		out = append(out, g)
	}
	return out
}

func removeTies(mapper *typemap.Mapper, g *Group, diags *diag.Collector) {
	tied := make(map[*Method]bool)
	for _, p := range mapper.Platforms() {
		for _, m := range g.MembersOn(p.Name) {
			got, err := g.Select(p, m.HostArgKeys(p))
			if err == nil && got == m {
				continue
			}
			tied[m] = true
			if err != nil {
				diags.Report(diag.AmbiguousOverload, g.Entity(), "on %s: %v", p.Name, err)
			}
		}
	}
	if len(tied) == 0 {
		return
	}
	var kept []*Method
	for _, m := range g.Members {
		if !tied[m] {
			kept = append(kept, m)
		}
	}
	g.Members = kept
}

// sortGroups orders dispatch groups by scope and name.
func sortGroups(groups []*Group) {
	sort.SliceStable(groups, func(i, j int) bool {
		if groups[i].Scope != groups[j].Scope {
			return groups[i].Scope < groups[j].Scope
		}
		return groups[i].Name < groups[j].Name
	})
}
