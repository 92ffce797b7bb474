package cppscan

import (
	"fmt"
	"strconv"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/rust-qt/ritual/diag"
	"github.com/rust-qt/ritual/feed"
)

func (w *walker) enum(n *sitter.Node, scope, doc string) {
	nameNode := n.ChildByFieldName("name")
	body := n.ChildByFieldName("body")
	if nameNode == nil || body == nil {
		return
	}
	e := feed.Enum{
		Name:    w.text(nameNode),
		Scope:   scope,
		Include: w.include,
		Doc:     doc,
	}
	for i := 0; i < int(n.ChildCount()); i++ {
		if t := n.Child(i).Type(); t == "class" || t == "struct" {
			e.Scoped = true
		}
	}

	known := map[string]int64{}
	next := int64(0)
	var comments []string
	for i := 0; i < int(body.NamedChildCount()); i++ {
		c := body.NamedChild(i)
		if c.Type() == "comment" {
			comments = append(comments, commentText(w.text(c)))
			continue
		}
		if c.Type() != "enumerator" {
			comments = nil
			continue
		}
		name := w.text(c.ChildByFieldName("name"))
		value := next
		if v := c.ChildByFieldName("value"); v != nil {
			var err error
			value, err = evalConst(w.text(v), known)
			if err != nil {
				w.s.diags.Report(diag.UnsupportedConstruct, qualify(qualify(scope, e.Name), name), "enumerator value: %v", err)
				return
			}
		}
		known[name] = value
		next = value + 1
		e.Values = append(e.Values, feed.Value{Name: name, Value: value, Doc: strings.Join(comments, "\n")})
		comments = nil
	}
	w.s.doc.Enums = append(w.s.doc.Enums, e)
}

// evalConst evaluates the integer constant expressions enumerators are
// usually written with: literals, earlier enumerators, unary minus and
// complement, parentheses and the binary operators | & ^ << >> + - *.
func evalConst(expr string, known map[string]int64) (int64, error) {
	p := &constParser{s: expr, known: known}
	v, err := p.binary(0)
	if err != nil {
		return 0, err
	}
	p.space()
	if p.pos < len(p.s) {
		return 0, fmt.Errorf("cannot evaluate %q", expr)
	}
	return v, nil
}

type constParser struct {
	s     string
	pos   int
	known map[string]int64
}

var precedence = map[string]int{
	"|": 1, "^": 2, "&": 3, "<<": 4, ">>": 4, "+": 5, "-": 5, "*": 6,
}

func (p *constParser) space() {
	for p.pos < len(p.s) && (p.s[p.pos] == ' ' || p.s[p.pos] == '\t' || p.s[p.pos] == '\n') {
		p.pos++
	}
}

func (p *constParser) operator() string {
	p.space()
	for _, op := range []string{"<<", ">>", "|", "^", "&", "+", "-", "*"} {
		if strings.HasPrefix(p.s[p.pos:], op) {
			return op
		}
	}
	return ""
}

func (p *constParser) binary(minPrec int) (int64, error) {
	lhs, err := p.unary()
	if err != nil {
		return 0, err
	}
	for {
		op := p.operator()
		prec, ok := precedence[op]
		if !ok || prec <= minPrec {
			return lhs, nil
		}
		p.pos += len(op)
		rhs, err := p.binary(prec)
		if err != nil {
			return 0, err
		}
		switch op {
		case "|":
			lhs |= rhs
		case "^":
			lhs ^= rhs
		case "&":
			lhs &= rhs
		case "<<":
			lhs <<= uint(rhs)
		case ">>":
			lhs >>= uint(rhs)
		case "+":
			lhs += rhs
		case "-":
			lhs -= rhs
		case "*":
			lhs *= rhs
		}
	}
}

func (p *constParser) unary() (int64, error) {
	p.space()
	if p.pos >= len(p.s) {
		return 0, fmt.Errorf("cannot evaluate %q: unexpected end", p.s)
	}
	switch p.s[p.pos] {
	case '-':
		p.pos++
		v, err := p.unary()
		return -v, err
	case '~':
		p.pos++
		v, err := p.unary()
		return ^v, err
	case '(':
		p.pos++
		v, err := p.binary(0)
		if err != nil {
			return 0, err
		}
		p.space()
		if p.pos >= len(p.s) || p.s[p.pos] != ')' {
			return 0, fmt.Errorf("cannot evaluate %q: unbalanced parentheses", p.s)
		}
		p.pos++
		return v, nil
	}
	start := p.pos
	for p.pos < len(p.s) && isWordByte(p.s[p.pos]) {
		p.pos++
	}
	word := p.s[start:p.pos]
	if word == "" {
		return 0, fmt.Errorf("cannot evaluate %q", p.s)
	}
	if word[0] >= '0' && word[0] <= '9' {
		v, err := strconv.ParseInt(strings.TrimRight(word, "uUlL"), 0, 64)
		if err != nil {
			return 0, fmt.Errorf("cannot evaluate %q: %w", p.s, err)
		}
		return v, nil
	}
	// earlier enumerators may be referenced qualified
	if i := strings.LastIndex(word, "::"); i >= 0 {
		word = word[i+2:]
	}
	if v, ok := p.known[word]; ok {
		return v, nil
	}
	return 0, fmt.Errorf("cannot evaluate %q: unknown name %s", p.s, word)
}

func isWordByte(b byte) bool {
	return b == '_' || b == ':' || (b >= '0' && b <= '9') || (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z')
}
