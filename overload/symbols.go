package overload

import (
	"fmt"
	"path"
	"strings"

	"github.com/rust-qt/ritual/alloc"
	"github.com/rust-qt/ritual/cppmodel"
	"github.com/rust-qt/ritual/diag"
	"github.com/rust-qt/ritual/typemap"
)

// ArgCaption selects how arguments are spelled in a disambiguating caption.
type ArgCaption int

const (
	NameOnly ArgCaption = iota
	TypeShort
	TypeAndNameShort
	TypeFull
	TypeAndNameFull
)

var argCaptions = []ArgCaption{NameOnly, TypeShort, TypeAndNameShort, TypeFull, TypeAndNameFull}

// CaptionStrategy is one way of telling overloads apart in their wrapper symbols.
type CaptionStrategy struct {
	Const bool
	// Args is false for the const-only strategy.
	Args     bool
	Argument ArgCaption
}

func (s CaptionStrategy) String() string {
	switch {
	case s.Args && s.Const:
		return fmt.Sprintf("ConstAndArguments(%d)", s.Argument)
	case s.Args:
		return fmt.Sprintf("ArgumentsOnly(%d)", s.Argument)
	}
	return "ConstOnly"
}

// Strategies lists caption strategies in the order they are tried.
func Strategies() []CaptionStrategy {
	var out []CaptionStrategy
	for _, a := range argCaptions {
		out = append(out, CaptionStrategy{Args: true, Argument: a})
	}
	out = append(out, CaptionStrategy{Const: true})
	for _, a := range argCaptions {
		out = append(out, CaptionStrategy{Const: true, Args: true, Argument: a})
	}
	return out
}

// Caption renders the caption of f under s. Empty captions leave the base
// symbol unchanged.
func Caption(f *cppmodel.Function, s CaptionStrategy) string {
	var parts []string
	if s.Const && f.Const {
		parts = append(parts, "const")
	}
	if s.Args {
		for i, p := range f.Params {
			name := cppmodel.Identifier(argName(p, i))
			switch s.Argument {
			case NameOnly:
				parts = append(parts, name)
			case TypeShort:
				parts = append(parts, p.Type.Caption(false))
			case TypeAndNameShort:
				parts = append(parts, p.Type.Caption(false), name)
			case TypeFull:
				parts = append(parts, p.Type.Caption(true))
			case TypeAndNameFull:
				parts = append(parts, p.Type.Caption(true), name)
			}
		}
	}
	return cppmodel.Identifier(strings.Join(parts, "_"))
}

// IncludeBase is the identifier form of an include file name without its
// directory and extension: "geo/point.h" -> "point".
func IncludeBase(include string) string {
	base := path.Base(strings.ReplaceAll(include, "\\", "/"))
	base = strings.TrimSuffix(base, path.Ext(base))
	if id := cppmodel.Identifier(base); id != "" && id != "." {
		return id
	}
	return "global"
}

// BaseSymbol is the wrapper symbol of f before disambiguation: the class
// caption or include base as prefix, then the member name. Constructors and
// destructors are named after the allocation strategy.
func BaseSymbol(f *cppmodel.Function, c *cppmodel.Class, strategy alloc.Strategy) string {
	var prefix string
	if c != nil {
		prefix = typemap.CTypeName(c.Type()) + "_"
	} else {
		prefix = IncludeBase(f.Include) + "_G_"
	}
	var name string
	switch {
	case f.IsConstructor() && strategy == alloc.Value:
		name = "constructor"
	case f.IsConstructor():
		name = "new"
	case f.IsDestructor() && strategy == alloc.Value:
		name = "destructor"
	case f.IsDestructor():
		name = "delete"
	case f.Operator == cppmodel.OpConversion && f.ConversionType != nil:
		name = "operator_" + f.ConversionType.Caption(true)
	case f.Operator != cppmodel.OpNone:
		name = "operator_" + f.Operator.CName()
	default:
		name = f.Name
		if c == nil && f.Scope != "" {
			name = f.Scope + "::" + name
		}
	}
	if len(f.TemplateArgs) > 0 {
		args := make([]string, len(f.TemplateArgs))
		for i, a := range f.TemplateArgs {
			args[i] = a.Caption(true)
		}
		name += "_" + strings.Join(args, "_")
	}
	return prefix + cppmodel.Identifier(name)
}

// pickCaptions finds the first strategy under which every method of one
// base symbol gets a distinct caption. When none works, methods are
// numbered.
func pickCaptions(methods []*Method) ([]string, CaptionStrategy, bool) {
	for _, s := range Strategies() {
		seen := make(map[string]bool, len(methods))
		captions := make([]string, len(methods))
		ok := true
		for i, m := range methods {
			c := Caption(m.Func, s)
			if seen[c] {
				ok = false
				break
			}
			seen[c] = true
			captions[i] = c
		}
		if ok {
			return captions, s, true
		}
	}
	captions := make([]string, len(methods))
	for i := range methods {
		captions[i] = fmt.Sprintf("%d", i+1)
	}
	return captions, CaptionStrategy{}, false
}

func withCaption(base, caption string) string {
	if caption == "" {
		return base
	}
	return base + "_" + caption
}

// Registry hands out wrapper symbols for one run and keeps them unique
// across scopes. Reserved symbols belong to dependencies and are never
// reissued.
type Registry struct {
	owners   map[string]string
	reserved map[string]bool
}

// NewRegistry returns a registry with the given symbols reserved.
func NewRegistry(reserved []string) *Registry {
	r := &Registry{owners: make(map[string]string), reserved: make(map[string]bool)}
	for _, s := range reserved {
		r.reserved[s] = true
	}
	return r
}

// Taken reports whether sym is reserved or already issued.
func (r *Registry) Taken(sym string) bool {
	_, issued := r.owners[sym]
	return issued || r.reserved[sym]
}

// Owner returns the entity a symbol was issued to.
func (r *Registry) Owner(sym string) (string, bool) {
	o, ok := r.owners[sym]
	return o, ok
}

// Claim issues sym to entity, appending a numeric suffix while the symbol is
// taken. It returns the issued symbol.
func (r *Registry) Claim(sym, entity string) string {
	issued := sym
	for i := 2; r.Taken(issued); i++ {
		issued = fmt.Sprintf("%s_%d", sym, i)
	}
	r.owners[issued] = entity
	return issued
}

// Symbols returns every issued symbol with its owner.
func (r *Registry) Symbols() map[string]string {
	out := make(map[string]string, len(r.owners))
	for k, v := range r.owners {
		out[k] = v
	}
	return out
}

// assignScope gives every method of one scope its wrapper symbol. Captions
// disambiguate overloads of one base symbol. A symbol computed twice inside
// the scope makes the whole scope unusable: the SymbolCollision for the
// scope entity is returned and nothing is claimed. Clashes with other scopes
// or dependencies are renamed.
func assignScope(reg *Registry, methods []*Method, diags *diag.Collector) *diag.Diagnostic {
	byBase := make(map[string][]*Method)
	var order []string
	for _, m := range methods {
		base := BaseSymbol(m.Func, m.Class, m.Strategy)
		if _, ok := byBase[base]; !ok {
			order = append(order, base)
		}
		byBase[base] = append(byBase[base], m)
	}

	local := make(map[string]*Method, len(methods))
	for _, base := range order {
		group := byBase[base]
		if len(group) == 1 {
			group[0].Symbol = base
		} else {
			captions, s, ok := pickCaptions(group)
			if !ok {
				log.Warningf("no caption strategy separates %d overloads of %s, numbering them", len(group), base)
			} else {
				log.Debugf("%s: %d overloads separated by %s", base, len(group), s)
			}
			for i, m := range group {
				m.Symbol = withCaption(base, captions[i])
			}
		}
		for _, m := range group {
			if other, dup := local[m.Symbol]; dup {
				return diag.New(diag.SymbolCollision, scopeEntity(m), "wrapper symbol %s computed for both %s and %s",
					m.Symbol, other.ID(), m.ID())
			}
			local[m.Symbol] = m
		}
	}

	for _, m := range methods {
		wanted := m.Symbol
		m.Symbol = reg.Claim(wanted, m.ID())
		if m.Symbol != wanted {
			reason := "a dependency"
			if owner, ok := reg.Owner(wanted); ok {
				reason = owner
			}
			diags.Report(diag.Renamed, m.ID(), "wrapper symbol %s renamed to %s: already used by %s",
				wanted, m.Symbol, reason)
		}
	}
	return nil
}

// scopeEntity is the entity a scope-wide failure is attached to.
func scopeEntity(m *Method) string {
	if m.Class != nil {
		return m.Class.ID()
	}
	return m.Include
}
