package instantiate

import (
	"fmt"

	"github.com/rust-qt/ritual/cppmodel"
	"github.com/rust-qt/ritual/diag"
)

// binder substitutes template parameters and the injected class name.
type binder struct {
	params   []string
	args     []cppmodel.TypeRef
	template string
	self     cppmodel.TypeRef
}

func (b binder) bind(t cppmodel.TypeRef) (cppmodel.TypeRef, error) {
	t = b.injectSelf(t)
	return t.Substitute(b.params, b.args)
}

// injectSelf rewrites a bare reference to the template ("Vector" inside
// Vector<T>) to the instance being built.
func (b binder) injectSelf(t cppmodel.TypeRef) cppmodel.TypeRef {
	if t.Kind == cppmodel.KindClass && t.Name == b.template && len(t.Args) == 0 {
		self := b.self
		self.Indirection = t.Indirection
		self.Const = t.Const
		self.ConstInner = t.ConstInner
		return self
	}
	if len(t.Args) > 0 {
		args := make([]cppmodel.TypeRef, len(t.Args))
		for i, a := range t.Args {
			args[i] = b.injectSelf(a)
		}
		t.Args = args
	}
	return t
}

func (t *Tracker) synthesizeClass(e *Entry) (*cppmodel.Class, error) {
	tmpl, ok := t.lib.Class(e.Template)
	if !ok {
		return nil, diag.New(diag.UnresolvedType, e.Key, "template %s is not defined", e.Template)
	}
	inst := &cppmodel.Class{
		Name:          tmpl.Name,
		Scope:         tmpl.Scope,
		Include:       tmpl.Include,
		Incomplete:    tmpl.Incomplete,
		SizeDependent: tmpl.SizeDependent,
		Doc:           tmpl.Doc,
		Dependency:    tmpl.Dependency,
		Instance: &cppmodel.Instance{
			Template: e.Template,
			Args:     e.Args,
			Depth:    e.Depth,
		},
	}
	b := binder{params: tmpl.TemplateParams, args: e.Args, template: e.Template, self: inst.Type()}
	id := inst.ID()

	for _, base := range tmpl.Bases {
		bound, err := b.bind(base)
		if err != nil {
			return nil, diag.New(diag.UnsupportedConstruct, id, "base %s: %v", base, err)
		}
		inst.Bases = append(inst.Bases, bound)
	}
	for _, f := range tmpl.Fields {
		bound, err := b.bind(f.Type)
		if err != nil {
			t.diags.Report(diag.UnsupportedConstruct, id+"::"+f.Name, "field type %s: %v", f.Type, err)
			continue
		}
		cp := *f
		cp.Type = bound
		inst.Fields = append(inst.Fields, &cp)
	}
	for _, m := range tmpl.Methods {
		if len(m.TemplateParams) > 0 {
			log.Debugf("skipping member template %s of %s", m.Name, id)
			continue
		}
		fn, err := bindFunction(b, m, id)
		if err != nil {
			t.diags.Report(diag.UnsupportedConstruct, id+"::"+m.Name, "%v", err)
			continue
		}
		inst.Methods = append(inst.Methods, fn)
	}
	if len(tmpl.Classes) > 0 || len(tmpl.Enums) > 0 {
		log.Debugf("nested declarations of %s are not instantiated", e.Template)
	}
	return inst, nil
}

func bindFunction(b binder, f *cppmodel.Function, scope string) (*cppmodel.Function, error) {
	fn := f.Clone()
	fn.Scope = scope
	ret, err := b.bind(f.Return)
	if err != nil {
		return nil, fmt.Errorf("return type %s: %w", f.Return, err)
	}
	fn.Return = ret
	for i, p := range f.Params {
		bound, err := b.bind(p.Type)
		if err != nil {
			return nil, fmt.Errorf("parameter %s: %w", p.Name, err)
		}
		fn.Params[i].Type = bound
	}
	if f.ConversionType != nil {
		ct, err := b.bind(*f.ConversionType)
		if err != nil {
			return nil, fmt.Errorf("conversion type: %w", err)
		}
		fn.ConversionType = &ct
	}
	return fn, nil
}

// instantiateFunctions synthesizes function templates requested by explicit
// instantiation sites.
func (t *Tracker) instantiateFunctions() {
	templates := make(map[string][]*cppmodel.Function)
	for _, f := range t.lib.Functions() {
		if len(f.TemplateParams) > 0 {
			templates[f.FullName()] = append(templates[f.FullName()], f)
		}
	}
	for _, s := range t.lib.Sites {
		if s.Function == "" {
			continue
		}
		key := Key(s.Function, s.Args)
		if _, ok := t.entries[key]; ok {
			continue
		}
		candidates := templates[s.Function]
		if len(candidates) == 0 {
			t.diags.Report(diag.UnresolvedType, key, "function template %s is not defined", s.Function)
			continue
		}
		e := &Entry{Key: key, Template: s.Function, Args: s.Args, State: Registered, Depth: 1,
			Sites: []string{"explicit instantiation"}}
		t.entries[key] = e
		t.order = append(t.order, e)

		for _, tmpl := range candidates {
			if len(tmpl.TemplateParams) != len(s.Args) {
				continue
			}
			b := binder{params: tmpl.TemplateParams, args: s.Args}
			fn, err := bindFunction(b, tmpl, tmpl.Scope)
			if err != nil {
				t.diags.Report(diag.UnsupportedConstruct, key, "%v", err)
				continue
			}
			fn.TemplateParams = nil
			fn.TemplateArgs = append([]cppmodel.TypeRef(nil), s.Args...)
			ns := t.lib.Namespace(tmpl.Scope)
			ns.Functions = append(ns.Functions, fn)
			e.Function = fn
			t.scanFunction(fn, 2)
		}
		if e.Function == nil {
			t.diags.Report(diag.UnsupportedConstruct, key, "no overload of %s takes %d template arguments",
				s.Function, len(s.Args))
		}
	}
}
