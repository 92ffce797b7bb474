package overload

import (
	"strings"

	"github.com/rust-qt/ritual/diag"
	"github.com/rust-qt/ritual/typemap"
)

// hostKey is the host-visible identity of m on p: receiver, constness and
// argument types with platform aliases resolved.
func hostKey(m *Method, p typemap.Platform) string {
	return m.Receiver.String() + "(" + strings.Join(m.HostArgKeys(p), ", ") + ")"
}

// mergePlatforms finds overloads of one name set that become identical on
// some platforms once platform-dependent types are resolved. The later
// declaration is compiled only where the two differ. Overloads identical on
// every platform cannot be told apart at all and are excluded.
func mergePlatforms(set *nameSet, platforms []typemap.Platform, diags *diag.Collector) []*Method {
	var kept []*Method
	for _, m := range set.methods {
		excluded := false
		for _, prev := range kept {
			if len(prev.PlainArgs()) != len(m.PlainArgs()) || prev.Receiver != m.Receiver {
				continue
			}
			var on []string
			for _, p := range platforms {
				if prev.AvailableOn(p.Name) && m.AvailableOn(p.Name) && hostKey(prev, p) == hostKey(m, p) {
					on = append(on, p.Name)
				}
			}
			switch {
			case len(on) == 0:
				continue
			case len(on) == len(platforms):
				diags.Report(diag.AmbiguousOverload, m.ID(), "indistinguishable from %s after type mapping", prev.ID())
				excluded = true
			default:
				m.ExcludedOn = append(m.ExcludedOn, on...)
				m.MergedWith = prev
				diags.Report(diag.Merged, m.ID(), "same host signature as %s on %s; compiled only elsewhere",
					prev.ID(), strings.Join(on, ", "))
			}
			if excluded {
				break
			}
		}
		if !excluded {
			kept = append(kept, m)
		}
	}
	set.methods = kept
	return kept
}
