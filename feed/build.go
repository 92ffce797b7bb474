package feed

import (
	"fmt"
	"strings"

	"github.com/rust-qt/ritual/cppmodel"
	"github.com/rust-qt/ritual/diag"
)

// Build turns a document into a declaration model. Entities whose type
// spellings do not parse are reported and left out. The library is not
// resolved yet: dependencies are added first, then the caller resolves.
func Build(doc *Document, diags *diag.Collector) *cppmodel.Library {
	lib := cppmodel.NewLibrary(doc.Library)
	lib.Includes = append([]string(nil), doc.Includes...)

	for _, fc := range doc.Classes {
		c, err := buildClass(fc, diags)
		if err != nil {
			diags.AddError(qualify(fc.Scope, fc.Name), err)
			continue
		}
		if c.Scope != "" {
			if outer, ok := lib.Class(c.Scope); ok && outer.Include != "" && c.Include == "" {
				c.Include = outer.Include
			}
		}
		lib.AddClass(c)
	}
	for _, ff := range doc.Functions {
		f, err := buildFunction(ff, ff.Scope, false)
		if err != nil {
			diags.AddError(qualify(ff.Scope, ff.Name), err)
			continue
		}
		ns := lib.Namespace(f.Scope)
		ns.Functions = append(ns.Functions, f)
	}
	for _, fe := range doc.Enums {
		e := &cppmodel.Enum{
			Name:    fe.Name,
			Scope:   fe.Scope,
			Include: fe.Include,
			Flags:   fe.Flags,
			Scoped:  fe.Scoped,
			Doc:     fe.Doc,
		}
		for _, v := range fe.Values {
			e.Values = append(e.Values, cppmodel.EnumValue{Name: v.Name, Value: v.Value, Doc: v.Doc})
		}
		lib.AddEnum(e)
	}
	for _, s := range doc.Instantiations {
		site, err := buildSite(s)
		if err != nil {
			diags.Report(diag.UnsupportedConstruct, s.Type+s.Function, "explicit instantiation: %v", err)
			continue
		}
		lib.Sites = append(lib.Sites, site)
	}
	lib.Validate(diags)
	return lib
}

func qualify(scope, name string) string {
	if scope == "" {
		return name
	}
	return scope + "::" + name
}

func buildClass(fc Class, diags *diag.Collector) (*cppmodel.Class, error) {
	c := &cppmodel.Class{
		Name:              fc.Name,
		Scope:             fc.Scope,
		Include:           fc.Include,
		TemplateParams:    fc.TemplateParams,
		Incomplete:        fc.Incomplete,
		SizeDependent:     fc.SizeDependent,
		NoImplicitDefault: fc.NoImplicitDefault,
		NoImplicitCopy:    fc.NoImplicitCopy,
		Doc:               fc.Doc,
	}
	for _, b := range fc.Bases {
		t, err := cppmodel.ParseType(b)
		if err != nil {
			return nil, fmt.Errorf("base %q: %w", b, err)
		}
		c.Bases = append(c.Bases, t)
	}
	for _, ff := range fc.Fields {
		t, err := cppmodel.ParseType(ff.Type)
		if err != nil {
			diags.AddError(qualify(c.QualifiedName(), ff.Name), fmt.Errorf("field type %q: %w", ff.Type, err))
			continue
		}
		c.Fields = append(c.Fields, &cppmodel.Field{Name: ff.Name, Type: t, Static: ff.Static, Doc: ff.Doc})
	}
	scope := c.QualifiedName()
	for _, fm := range fc.Methods {
		if fm.Include == "" {
			fm.Include = c.Include
		}
		m, err := buildFunction(fm, scope, true)
		if err != nil {
			diags.AddError(qualify(scope, fm.Name), err)
			continue
		}
		c.Methods = append(c.Methods, m)
	}
	return c, nil
}

func buildFunction(ff Function, scope string, member bool) (*cppmodel.Function, error) {
	f := &cppmodel.Function{
		Name:           ff.Name,
		Scope:          scope,
		Member:         member,
		Const:          ff.Const,
		Static:         ff.Static,
		Virtual:        ff.Virtual || ff.PureVirtual,
		PureVirtual:    ff.PureVirtual,
		Variadic:       ff.Variadic,
		OwningReturn:   ff.OwningReturn,
		Include:        ff.Include,
		TemplateParams: ff.TemplateParams,
		Doc:            ff.Doc,
	}
	switch ff.Kind {
	case "constructor":
		f.Kind = cppmodel.Constructor
	case "destructor":
		f.Kind = cppmodel.Destructor
	}

	ret := ff.Return
	if ret == "" {
		ret = "void"
	}
	t, err := cppmodel.ParseType(ret)
	if err != nil {
		return nil, fmt.Errorf("return type %q: %w", ret, err)
	}
	f.Return = t
	for i, fp := range ff.Params {
		t, err := cppmodel.ParseType(fp.Type)
		if err != nil {
			return nil, fmt.Errorf("parameter %d type %q: %w", i+1, fp.Type, err)
		}
		name := fp.Name
		if name == "" {
			name = fmt.Sprintf("arg%d", i+1)
		}
		f.Params = append(f.Params, cppmodel.Param{Name: name, Type: t, Default: fp.Default, Owning: fp.Owning})
	}

	if cppmodel.IsOperatorName(f.Name) {
		operands := len(f.Params)
		if member && !f.Static {
			operands++
		}
		op, conv, ok := cppmodel.DetectOperator(f.Name, operands)
		if !ok {
			return nil, diag.New(diag.UnsupportedConstruct, qualify(scope, f.Name), "operator with %d operands", operands)
		}
		f.Operator = op
		f.ConversionType = conv
	}
	return f, nil
}

func buildSite(s Site) (cppmodel.Site, error) {
	switch {
	case s.Type != "" && s.Function != "":
		return cppmodel.Site{}, fmt.Errorf("names both type %s and function %s", s.Type, s.Function)
	case s.Type != "":
		t, err := cppmodel.ParseType(s.Type)
		if err != nil {
			return cppmodel.Site{}, err
		}
		if !t.IsTemplateInstance() {
			return cppmodel.Site{}, fmt.Errorf("%s is not a template instance", s.Type)
		}
		return cppmodel.Site{Type: &t}, nil
	case s.Function != "":
		site := cppmodel.Site{Function: s.Function}
		for _, a := range s.Args {
			t, err := cppmodel.ParseType(a)
			if err != nil {
				return cppmodel.Site{}, err
			}
			site.Args = append(site.Args, t)
		}
		return site, nil
	}
	return cppmodel.Site{}, fmt.Errorf("names neither a type nor a function")
}

// SiteFromSpelling parses an instantiation written in ritual.toml:
// "geo::Vector<int>" for a class, "geo::convert<int, double>()" for a
// function template.
func SiteFromSpelling(s string) (cppmodel.Site, error) {
	s = strings.TrimSpace(s)
	if name, ok := strings.CutSuffix(s, "()"); ok {
		open := strings.Index(name, "<")
		if open < 0 || !strings.HasSuffix(name, ">") {
			return cppmodel.Site{}, fmt.Errorf("function instantiation %q has no template arguments", s)
		}
		// the argument list parses like the arguments of a class type
		t, err := cppmodel.ParseType("X" + name[open:])
		if err != nil {
			return cppmodel.Site{}, fmt.Errorf("function instantiation %q: %w", s, err)
		}
		return cppmodel.Site{Function: name[:open], Args: t.Args}, nil
	}
	return buildSite(Site{Type: s})
}
