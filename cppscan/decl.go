package cppscan

import (
	"regexp"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/rust-qt/ritual/diag"
	"github.com/rust-qt/ritual/feed"
)

// walker visits the syntax tree of one header.
type walker struct {
	s       *Scanner
	src     []byte
	include string
}

var (
	pureTail    = regexp.MustCompile(`^\s*=\s*0\s*;?\s*$`)
	deletedTail = regexp.MustCompile(`^\s*=\s*delete\b`)
)

// specifiers never belong to a type spelling.
var specifiers = map[string]bool{
	"static": true, "virtual": true, "inline": true, "explicit": true,
	"constexpr": true, "extern": true, "mutable": true, "friend": true,
}

func (w *walker) text(n *sitter.Node) string {
	return n.Content(w.src)
}

func (w *walker) between(start, end uint32) string {
	if end <= start {
		return ""
	}
	return string(w.src[start:end])
}

// scope visits the declarations of a translation unit, namespace body or
// preprocessor block.
func (w *walker) scope(n *sitter.Node, scope string) {
	var doc []string
	for i := 0; i < int(n.NamedChildCount()); i++ {
		c := n.NamedChild(i)
		if c.Type() == "comment" {
			doc = append(doc, commentText(w.text(c)))
			continue
		}
		w.declaration(c, scope, nil, strings.Join(doc, "\n"))
		doc = nil
	}
}

func (w *walker) declaration(n *sitter.Node, scope string, params []string, doc string) {
	switch n.Type() {
	case "namespace_definition":
		name := n.ChildByFieldName("name")
		body := n.ChildByFieldName("body")
		if name == nil || body == nil {
			// anonymous namespaces have internal linkage
			return
		}
		w.scope(body, qualify(scope, strings.Join(strings.Fields(w.text(name)), "")))
	case "linkage_specification":
		if body := n.ChildByFieldName("body"); body != nil {
			if body.Type() == "declaration_list" {
				w.scope(body, scope)
			} else {
				w.declaration(body, scope, params, doc)
			}
		}
	case "preproc_ifdef", "preproc_if", "preproc_else", "preproc_elif":
		w.scope(n, scope)
	case "class_specifier", "struct_specifier":
		for _, c := range w.class(n, scope, params, doc) {
			w.s.doc.Classes = append(w.s.doc.Classes, c)
		}
	case "enum_specifier":
		w.enum(n, scope, doc)
	case "template_declaration":
		w.template(n, scope, doc, nil)
	case "declaration", "function_definition":
		if fd := functionDeclarator(n); fd != nil {
			f, ok := w.function(n, fd, "", doc)
			if !ok {
				return
			}
			f.Scope = scope
			f.Include = w.include
			f.TemplateParams = params
			w.s.doc.Functions = append(w.s.doc.Functions, f)
			return
		}
		if t := n.ChildByFieldName("type"); t != nil {
			w.declaration(t, scope, params, doc)
		}
	case "ERROR":
		w.s.diags.Report(diag.UnsupportedConstruct, w.include, "syntax error at line %d", n.StartPoint().Row+1)
	}
}

// template records the parameters of a template declaration and visits the
// declaration it introduces. Inside a class, methods are collected into cls.
func (w *walker) template(n *sitter.Node, scope, doc string, cls *feed.Class) {
	list := n.ChildByFieldName("parameters")
	var params []string
	if list != nil {
		for i := 0; i < int(list.NamedChildCount()); i++ {
			p := list.NamedChild(i)
			switch p.Type() {
			case "type_parameter_declaration", "optional_type_parameter_declaration":
				name := p.ChildByFieldName("name")
				if name == nil {
					name = lastNamed(p, "type_identifier")
				}
				if name == nil {
					w.s.diags.Report(diag.UnsupportedConstruct, qualify(scope, w.declaredName(n)), "unnamed template parameter")
					return
				}
				params = append(params, w.text(name))
			case "comment":
			default:
				w.s.diags.Report(diag.UnsupportedConstruct, qualify(scope, w.declaredName(n)), "template parameter %q", w.text(p))
				return
			}
		}
	}
	if len(params) == 0 {
		log.Debugf("%s: explicit specialization at line %d skipped", w.include, n.StartPoint().Row+1)
		return
	}
	for i := 0; i < int(n.NamedChildCount()); i++ {
		c := n.NamedChild(i)
		if c.Type() == "comment" || (list != nil && c.Type() == list.Type() && c.StartByte() == list.StartByte()) {
			continue
		}
		if cls == nil {
			w.declaration(c, scope, params, doc)
			continue
		}
		switch c.Type() {
		case "declaration", "field_declaration", "function_definition":
			if fd := functionDeclarator(c); fd != nil {
				if f, ok := w.function(c, fd, cls.Name, doc); ok {
					f.TemplateParams = params
					cls.Methods = append(cls.Methods, f)
				}
			}
		}
	}
}

// declaredName finds a name for diagnostics about a template.
func (w *walker) declaredName(template *sitter.Node) string {
	for i := 0; i < int(template.NamedChildCount()); i++ {
		c := template.NamedChild(i)
		if name := c.ChildByFieldName("name"); name != nil {
			return w.text(name)
		}
		if fd := functionDeclarator(c); fd != nil {
			if d := fd.ChildByFieldName("declarator"); d != nil {
				return w.text(d)
			}
		}
	}
	return "template"
}

// class returns the class followed by its nested classes.
func (w *walker) class(n *sitter.Node, scope string, params []string, doc string) []feed.Class {
	nameNode := n.ChildByFieldName("name")
	if nameNode == nil {
		return nil
	}
	if nameNode.Type() != "type_identifier" {
		w.s.diags.Report(diag.UnsupportedConstruct, qualify(scope, w.text(nameNode)), "specialization or out-of-line class definition")
		return nil
	}
	c := feed.Class{
		Name:           w.text(nameNode),
		Scope:          scope,
		Include:        w.include,
		TemplateParams: params,
		Doc:            doc,
	}
	id := qualify(scope, c.Name)
	body := n.ChildByFieldName("body")
	if body == nil {
		if _, ok := w.s.forward[id]; !ok {
			fwd := c
			fwd.Incomplete = true
			fwd.Doc = ""
			w.s.forward[id] = fwd
		}
		return nil
	}
	w.s.defined[id] = true

	defaultAccess := "private"
	if n.Type() == "struct_specifier" {
		defaultAccess = "public"
	}
	for i := 0; i < int(n.NamedChildCount()); i++ {
		if clause := n.NamedChild(i); clause.Type() == "base_class_clause" {
			c.Bases = w.bases(clause, defaultAccess)
		}
	}

	var nested []feed.Class
	access := defaultAccess
	var comments []string
	for i := 0; i < int(body.NamedChildCount()); i++ {
		m := body.NamedChild(i)
		memberDoc := strings.Join(comments, "\n")
		if m.Type() == "comment" {
			comments = append(comments, commentText(w.text(m)))
			continue
		}
		comments = nil
		if m.Type() == "access_specifier" {
			access = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(w.text(m)), ":"))
			continue
		}
		if ctor, copyOrMove := w.constructorShape(m, c.Name); ctor && (access != "public" || w.deleted(m)) {
			c.NoImplicitDefault = true
			c.NoImplicitCopy = c.NoImplicitCopy || copyOrMove
		}
		if access != "public" {
			continue
		}
		switch m.Type() {
		case "field_declaration":
			if fd := functionDeclarator(m); fd != nil {
				if f, ok := w.function(m, fd, c.Name, memberDoc); ok {
					c.Methods = append(c.Methods, f)
				}
				continue
			}
			if t := m.ChildByFieldName("type"); t != nil && t.ChildByFieldName("body") != nil {
				switch t.Type() {
				case "class_specifier", "struct_specifier":
					nested = append(nested, w.class(t, id, nil, memberDoc)...)
					continue
				case "enum_specifier":
					w.enum(t, id, memberDoc)
					continue
				}
			}
			c.Fields = append(c.Fields, w.fields(m, id, memberDoc)...)
		case "declaration", "function_definition":
			if fd := functionDeclarator(m); fd != nil {
				if f, ok := w.function(m, fd, c.Name, memberDoc); ok {
					c.Methods = append(c.Methods, f)
				}
			}
		case "template_declaration":
			w.template(m, id, memberDoc, &c)
		case "ERROR":
			w.s.diags.Report(diag.UnsupportedConstruct, id, "syntax error at line %d", m.StartPoint().Row+1)
		}
	}
	return append([]feed.Class{c}, nested...)
}

// constructorShape reports whether member m declares a constructor of
// class and whether that constructor takes the class by reference, which
// makes it a copy or move constructor.
func (w *walker) constructorShape(m *sitter.Node, class string) (ctor, copyOrMove bool) {
	switch m.Type() {
	case "field_declaration", "declaration", "function_definition":
	default:
		return false, false
	}
	fd := functionDeclarator(m)
	if fd == nil || fd.Type() != "function_declarator" {
		return false, false
	}
	name := fd.ChildByFieldName("declarator")
	if name == nil || (name.Type() != "identifier" && name.Type() != "field_identifier") || w.text(name) != class {
		return false, false
	}
	if ret, _ := stripSpecifiers(w.between(m.StartByte(), fd.StartByte())); ret != "" {
		return false, false
	}
	if list := fd.ChildByFieldName("parameters"); list != nil {
		if params, _ := w.params(list); len(params) > 0 {
			switch params[0].Type {
			case "const " + class + "&", class + "&", class + "&&":
				copyOrMove = true
			}
		}
	}
	return true, copyOrMove
}

func (w *walker) deleted(m *sitter.Node) bool {
	fd := functionDeclarator(m)
	return fd != nil && deletedTail.MatchString(w.between(fd.EndByte(), m.EndByte()))
}

// bases returns the publicly inherited bases of a base_class_clause.
func (w *walker) bases(clause *sitter.Node, defaultAccess string) []string {
	var out []string
	access := defaultAccess
	for i := 0; i < int(clause.ChildCount()); i++ {
		c := clause.Child(i)
		switch c.Type() {
		case ",":
			access = defaultAccess
		case "access_specifier":
			access = strings.TrimSpace(w.text(c))
		case "type_identifier", "qualified_type_identifier", "template_type":
			if access == "public" {
				out = append(out, normalize(w.text(c)))
			}
		}
	}
	return out
}

// fields returns the data members of a field_declaration. Bit-fields and
// anything without a plain name are skipped.
func (w *walker) fields(n *sitter.Node, scope, doc string) []feed.Field {
	var decls []*sitter.Node
	for i := 0; i < int(n.ChildCount()); i++ {
		if n.FieldNameForChild(i) == "declarator" {
			decls = append(decls, n.Child(i))
		}
		if n.Child(i).Type() == "bitfield_clause" {
			return nil
		}
	}
	if len(decls) == 0 {
		return nil
	}
	prefix, static := stripSpecifiers(w.between(n.StartByte(), decls[0].StartByte()))
	var out []feed.Field
	for _, d := range decls {
		name := declaredIdentifier(d)
		if name == nil {
			w.s.diags.Report(diag.UnsupportedConstruct, scope, "field declarator %q", w.text(d))
			continue
		}
		spelling := prefix + " " + w.between(d.StartByte(), name.StartByte()) + w.between(name.EndByte(), d.EndByte())
		out = append(out, feed.Field{
			Name:   w.text(name),
			Type:   normalize(spelling),
			Static: static,
			Doc:    doc,
		})
	}
	return out
}

// function converts a declaration whose declarator is fd. class is the
// enclosing class name, empty for free functions. Deleted, friend and
// out-of-line declarations are not part of the API and return false.
func (w *walker) function(n, fd *sitter.Node, class, doc string) (feed.Function, bool) {
	tail := w.between(fd.EndByte(), n.EndByte())
	if deletedTail.MatchString(tail) {
		return feed.Function{}, false
	}
	if fd.Type() == "operator_cast" {
		return w.conversion(n, fd, doc)
	}
	nameNode := fd.ChildByFieldName("declarator")
	if nameNode == nil {
		return feed.Function{}, false
	}
	f := feed.Function{Doc: doc}
	switch nameNode.Type() {
	case "identifier", "field_identifier":
		f.Name = w.text(nameNode)
	case "operator_name":
		op := strings.Join(strings.Fields(w.text(nameNode)), " ")
		if strings.HasPrefix(op, "operator new") || strings.HasPrefix(op, "operator delete") {
			return feed.Function{}, false
		}
		f.Name = strings.ReplaceAll(op, " ", "")
	case "destructor_name":
		f.Name = "~" + strings.TrimSpace(strings.TrimPrefix(w.text(nameNode), "~"))
		f.Kind = "destructor"
	default:
		// qualified names are out-of-line definitions of declared members
		return feed.Function{}, false
	}

	prefix := w.between(n.StartByte(), fd.StartByte())
	for _, word := range strings.Fields(prefix) {
		switch word {
		case "friend":
			return feed.Function{}, false
		case "virtual":
			f.Virtual = true
		case "static":
			f.Static = class != ""
		}
	}
	ret, _ := stripSpecifiers(prefix)
	switch {
	case f.Kind == "destructor":
	case class != "" && f.Name == class && ret == "":
		f.Kind = "constructor"
	default:
		f.Return = normalize(ret)
		if f.Return == "" || f.Return == "void" {
			f.Return = ""
		}
	}

	for i := 0; i < int(fd.ChildCount()); i++ {
		c := fd.Child(i)
		switch c.Type() {
		case "type_qualifier":
			if w.text(c) == "const" {
				f.Const = true
			}
		case "virtual_specifier":
			f.Virtual = true
		}
	}
	if pureTail.MatchString(tail) {
		f.PureVirtual = true
		f.Virtual = true
	}
	if params := fd.ChildByFieldName("parameters"); params != nil {
		f.Params, f.Variadic = w.params(params)
	}
	return f, true
}

// conversion handles "operator T() const".
func (w *walker) conversion(n, fd *sitter.Node, doc string) (feed.Function, bool) {
	text := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(w.text(fd)), "operator"))
	open := strings.Index(text, "(")
	if open < 0 {
		return feed.Function{}, false
	}
	target := normalize(text[:open])
	f := feed.Function{Name: "operator " + target, Return: target, Doc: doc}
	if close := strings.LastIndex(text, ")"); close > open {
		for _, word := range strings.Fields(text[close+1:]) {
			if word == "const" {
				f.Const = true
			}
		}
	}
	if strings.Contains(w.between(n.StartByte(), fd.StartByte()), "virtual") {
		f.Virtual = true
	}
	return f, true
}

func (w *walker) params(list *sitter.Node) ([]feed.Param, bool) {
	var out []feed.Param
	variadic := false
	for i := 0; i < int(list.ChildCount()); i++ {
		p := list.Child(i)
		switch p.Type() {
		case "...":
			variadic = true
		case "parameter_declaration", "optional_parameter_declaration":
			out = append(out, w.param(p))
		case "variadic_parameter_declaration":
			variadic = true
		}
	}
	if len(out) == 1 && out[0].Name == "" && out[0].Type == "void" {
		out = nil
	}
	return out, variadic
}

func (w *walker) param(p *sitter.Node) feed.Param {
	var param feed.Param
	if def := p.ChildByFieldName("default_value"); def != nil {
		param.Default = collapse(w.text(def))
	}
	d := p.ChildByFieldName("declarator")
	if d == nil {
		end := p.EndByte()
		if t := p.ChildByFieldName("type"); t != nil {
			end = t.EndByte()
		}
		param.Type = normalize(w.between(p.StartByte(), end))
		return param
	}
	prefix := w.between(p.StartByte(), d.StartByte())
	name := declaredIdentifier(d)
	if name == nil {
		param.Type = normalize(prefix + " " + w.text(d))
		return param
	}
	param.Name = w.text(name)
	param.Type = normalize(prefix + " " + w.between(d.StartByte(), name.StartByte()) + w.between(name.EndByte(), d.EndByte()))
	return param
}

// functionDeclarator finds the function declarator under the declarator of
// n, looking through pointer and reference return types.
func functionDeclarator(n *sitter.Node) *sitter.Node {
	d := n.ChildByFieldName("declarator")
	for d != nil {
		switch d.Type() {
		case "function_declarator", "operator_cast":
			if inner := d.ChildByFieldName("declarator"); inner != nil && inner.Type() == "parenthesized_declarator" {
				// a pointer to function, not a function
				return nil
			}
			return d
		case "pointer_declarator", "reference_declarator":
			d = innerDeclarator(d)
		default:
			return nil
		}
	}
	return nil
}

func innerDeclarator(d *sitter.Node) *sitter.Node {
	if inner := d.ChildByFieldName("declarator"); inner != nil {
		return inner
	}
	if n := d.NamedChildCount(); n > 0 {
		return d.NamedChild(int(n) - 1)
	}
	return nil
}

// declaredIdentifier returns the name introduced by a declarator, or nil
// for abstract declarators.
func declaredIdentifier(d *sitter.Node) *sitter.Node {
	for d != nil {
		switch d.Type() {
		case "identifier", "field_identifier":
			return d
		case "pointer_declarator", "reference_declarator", "array_declarator",
			"parenthesized_declarator", "function_declarator", "init_declarator":
			d = innerDeclarator(d)
		default:
			return nil
		}
	}
	return nil
}

func lastNamed(n *sitter.Node, typ string) *sitter.Node {
	for i := int(n.NamedChildCount()) - 1; i >= 0; i-- {
		if c := n.NamedChild(i); c.Type() == typ {
			return c
		}
	}
	return nil
}

// stripSpecifiers removes declaration specifiers from a spelling and
// reports whether "static" was among them.
func stripSpecifiers(s string) (string, bool) {
	var kept []string
	static := false
	for _, word := range strings.Fields(s) {
		if specifiers[word] {
			static = static || word == "static"
			continue
		}
		kept = append(kept, word)
	}
	return strings.Join(kept, " "), static
}

var tightSpacing = strings.NewReplacer(" *", "*", " &", "&", " >", ">", "< ", "<", " ,", ",")

// normalize collapses whitespace in a type spelling: "const Point &" reads
// "const Point&".
func normalize(s string) string {
	return tightSpacing.Replace(collapse(s))
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// commentText strips comment markers.
func commentText(c string) string {
	switch {
	case strings.HasPrefix(c, "/*"):
		c = strings.TrimSuffix(strings.TrimLeft(c, "/*!"), "*/")
		lines := strings.Split(c, "\n")
		for i, l := range lines {
			lines[i] = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(l), "*"))
		}
		return strings.TrimSpace(strings.Join(lines, "\n"))
	default:
		return strings.TrimSpace(strings.TrimLeft(c, "/!"))
	}
}
