package cppmodel

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
)

// ErrSyntax is wrapped by every type-spelling parse failure.
var ErrSyntax = errors.New("type syntax error")

// ErrUnsupported is wrapped when a type is well-formed C++ that cannot cross
// the FFI boundary (arrays, volatile, member pointers, non-type template args).
var ErrUnsupported = errors.New("unsupported type construct")

var fixedWidth = map[string]bool{
	"int8_t": true, "int16_t": true, "int32_t": true, "int64_t": true,
	"uint8_t": true, "uint16_t": true, "uint32_t": true, "uint64_t": true,
	"size_t": true, "ssize_t": true, "ptrdiff_t": true, "intptr_t": true, "uintptr_t": true,
	"__int128": true, "unsigned __int128": true,
}

var builtinWords = map[string]bool{
	"void": true, "bool": true, "char": true, "wchar_t": true, "char16_t": true,
	"char32_t": true, "short": true, "int": true, "long": true, "float": true,
	"double": true, "signed": true, "unsigned": true,
}

// IsBuiltinName reports whether name is a normalized builtin spelling that
// ParseType produces.
func IsBuiltinName(name string) bool {
	if fixedWidth[name] {
		return true
	}
	switch name {
	case "bool", "char", "signed char", "unsigned char", "wchar_t", "char16_t", "char32_t",
		"short", "unsigned short", "int", "unsigned int", "long", "unsigned long",
		"long long", "unsigned long long", "float", "double", "long double":
		return true
	}
	return false
}

// ParseType parses a C++ type spelling such as "const geo::Point&",
// "unsigned long long", "QFlags<Qt::AlignmentFlag>" or "int (*)(int, double)".
//
// Named types are returned with Kind Class; Library.Resolve relabels enums
// and template parameters afterwards.
func ParseType(s string) (TypeRef, error) {
	toks, err := tokenize(s)
	if err != nil {
		return TypeRef{}, fmt.Errorf("parse %q: %w", s, err)
	}
	p := &typeParser{toks: toks}
	t, err := p.parseType()
	if err != nil {
		return TypeRef{}, fmt.Errorf("parse %q: %w", s, err)
	}
	if !p.done() {
		return TypeRef{}, fmt.Errorf("parse %q: unexpected %q: %w", s, p.peek(), ErrSyntax)
	}
	return t, nil
}

// MustParseType is ParseType for literals known to be valid.
func MustParseType(s string) TypeRef {
	t, err := ParseType(s)
	if err != nil {
		panic(err)
	}
	return t
}

func tokenize(s string) ([]string, error) {
	var toks []string
	rs := []rune(s)
	for i := 0; i < len(rs); {
		r := rs[i]
		switch {
		case unicode.IsSpace(r):
			i++
		case r == '_' || unicode.IsLetter(r):
			j := i
			for j < len(rs) && (rs[j] == '_' || unicode.IsLetter(rs[j]) || unicode.IsDigit(rs[j])) {
				j++
			}
			toks = append(toks, string(rs[i:j]))
			i = j
		case unicode.IsDigit(r):
			j := i
			for j < len(rs) && (unicode.IsDigit(rs[j]) || unicode.IsLetter(rs[j])) {
				j++
			}
			toks = append(toks, string(rs[i:j]))
			i = j
		case r == ':' && i+1 < len(rs) && rs[i+1] == ':':
			toks = append(toks, "::")
			i += 2
		case r == '&' && i+1 < len(rs) && rs[i+1] == '&':
			toks = append(toks, "&&")
			i += 2
		case r == '.' && i+2 < len(rs) && rs[i+1] == '.' && rs[i+2] == '.':
			toks = append(toks, "...")
			i += 3
		case strings.ContainsRune("<>,*&()[]", r):
			toks = append(toks, string(r))
			i++
		default:
			return nil, fmt.Errorf("unexpected character %q: %w", r, ErrSyntax)
		}
	}
	return toks, nil
}

type typeParser struct {
	toks []string
	pos  int
}

func (p *typeParser) done() bool { return p.pos >= len(p.toks) }

func (p *typeParser) peek() string {
	if p.done() {
		return ""
	}
	return p.toks[p.pos]
}

func (p *typeParser) next() string {
	t := p.peek()
	p.pos++
	return t
}

func (p *typeParser) accept(tok string) bool {
	if p.peek() == tok {
		p.pos++
		return true
	}
	return false
}

func (p *typeParser) expect(tok string) error {
	if !p.accept(tok) {
		return fmt.Errorf("expected %q, found %q: %w", tok, p.peek(), ErrSyntax)
	}
	return nil
}

func (p *typeParser) parseType() (TypeRef, error) {
	var t TypeRef
	constSeen := false
	for {
		switch p.peek() {
		case "const":
			p.next()
			constSeen = true
			continue
		case "volatile":
			return TypeRef{}, fmt.Errorf("volatile: %w", ErrUnsupported)
		case "typename", "struct", "class", "enum":
			p.next()
			continue
		}
		break
	}

	if builtinWords[p.peek()] {
		name, err := p.parseBuiltin(&constSeen)
		if err != nil {
			return TypeRef{}, err
		}
		if name == "void" {
			t = VoidType()
		} else {
			t = BuiltinType(name)
		}
	} else {
		named, err := p.parseNamed()
		if err != nil {
			return TypeRef{}, err
		}
		t = named
	}
	if p.accept("const") {
		constSeen = true
	}
	if p.peek() == "volatile" {
		return TypeRef{}, fmt.Errorf("volatile: %w", ErrUnsupported)
	}
	t.Const = constSeen

	pointers := 0
	for p.accept("*") {
		pointers++
		if p.accept("const") && pointers == 1 && p.peek() == "*" {
			t.ConstInner = true
		}
	}
	switch {
	case pointers > 2:
		return TypeRef{}, fmt.Errorf("%d levels of indirection: %w", pointers, ErrUnsupported)
	case pointers == 2:
		t.Indirection = PointerPointer
	case pointers == 1:
		t.Indirection = Pointer
	}
	if p.accept("&") {
		switch pointers {
		case 0:
			t.Indirection = Reference
		case 1:
			t.Indirection = PointerReference
		default:
			return TypeRef{}, fmt.Errorf("reference to double pointer: %w", ErrUnsupported)
		}
	} else if p.accept("&&") {
		if pointers > 0 {
			return TypeRef{}, fmt.Errorf("rvalue reference to pointer: %w", ErrUnsupported)
		}
		t.Indirection = RValueReference
	}
	if p.peek() == "[" {
		return TypeRef{}, fmt.Errorf("array type: %w", ErrUnsupported)
	}
	if p.peek() == "(" {
		return p.parseFunctionPointer(t)
	}
	return t, nil
}

func (p *typeParser) parseBuiltin(constSeen *bool) (string, error) {
	var signed, unsigned bool
	longs, shorts := 0, 0
	base := ""
	for {
		tok := p.peek()
		if tok == "const" {
			p.next()
			*constSeen = true
			continue
		}
		if !builtinWords[tok] {
			break
		}
		p.next()
		switch tok {
		case "signed":
			signed = true
		case "unsigned":
			unsigned = true
		case "long":
			longs++
		case "short":
			shorts++
		default:
			if base != "" {
				return "", fmt.Errorf("conflicting builtin words %q and %q: %w", base, tok, ErrSyntax)
			}
			base = tok
		}
	}
	if unsigned && p.peek() == "__int128" {
		p.next()
		return "unsigned __int128", nil
	}
	prefix := ""
	if unsigned {
		prefix = "unsigned "
	}
	switch {
	case base == "void" || base == "bool" || base == "wchar_t" || base == "char16_t" ||
		base == "char32_t" || base == "float":
		if signed || unsigned || longs > 0 || shorts > 0 {
			return "", fmt.Errorf("invalid modifiers on %s: %w", base, ErrSyntax)
		}
		return base, nil
	case base == "double":
		if longs == 1 {
			return "long double", nil
		}
		return "double", nil
	case base == "char":
		switch {
		case signed:
			return "signed char", nil
		case unsigned:
			return "unsigned char", nil
		}
		return "char", nil
	case shorts > 0:
		return prefix + "short", nil
	case longs == 1:
		return prefix + "long", nil
	case longs == 2:
		return prefix + "long long", nil
	case longs > 2:
		return "", fmt.Errorf("too many long modifiers: %w", ErrSyntax)
	}
	return prefix + "int", nil
}

func (p *typeParser) parseNamed() (TypeRef, error) {
	var parts []string
	p.accept("::")
	for {
		tok := p.next()
		if tok == "" || !isIdent(tok) {
			return TypeRef{}, fmt.Errorf("expected type name, found %q: %w", tok, ErrSyntax)
		}
		parts = append(parts, tok)
		if !p.accept("::") {
			break
		}
	}
	name := strings.Join(parts, "::")
	if stripped := strings.TrimPrefix(name, "std::"); fixedWidth[stripped] {
		return BuiltinType(stripped), nil
	}
	t := TypeRef{Kind: KindClass, Name: name}
	if p.accept("<") {
		for {
			if isNumber(p.peek()) {
				return TypeRef{}, fmt.Errorf("non-type template argument %q: %w", p.peek(), ErrUnsupported)
			}
			arg, err := p.parseType()
			if err != nil {
				return TypeRef{}, err
			}
			t.Args = append(t.Args, arg)
			if p.accept(",") {
				continue
			}
			if err := p.expect(">"); err != nil {
				return TypeRef{}, err
			}
			break
		}
		if p.peek() == "::" {
			return TypeRef{}, fmt.Errorf("member type of template %s: %w", name, ErrUnsupported)
		}
	}
	return t, nil
}

func (p *typeParser) parseFunctionPointer(ret TypeRef) (TypeRef, error) {
	if err := p.expect("("); err != nil {
		return TypeRef{}, err
	}
	if p.peek() != "*" {
		return TypeRef{}, fmt.Errorf("function type without pointer: %w", ErrUnsupported)
	}
	p.next()
	if isIdent(p.peek()) {
		// a declarator name inside the parentheses is allowed and ignored
		p.next()
	}
	if err := p.expect(")"); err != nil {
		return TypeRef{}, err
	}
	if err := p.expect("("); err != nil {
		return TypeRef{}, err
	}
	sig := &FuncSig{Return: ret}
	if p.accept(")") {
		return TypeRef{Kind: KindFunctionPointer, Name: "", Func: sig, Indirection: Pointer}, nil
	}
	for {
		if p.accept("...") {
			sig.Variadic = true
		} else {
			pt, err := p.parseType()
			if err != nil {
				return TypeRef{}, err
			}
			if isIdent(p.peek()) {
				p.next()
			}
			if !(pt.IsVoid() && len(sig.Params) == 0 && p.peek() == ")") {
				sig.Params = append(sig.Params, pt)
			}
		}
		if p.accept(",") {
			continue
		}
		if err := p.expect(")"); err != nil {
			return TypeRef{}, err
		}
		break
	}
	return TypeRef{Kind: KindFunctionPointer, Func: sig, Indirection: Pointer}, nil
}

func isIdent(tok string) bool {
	if tok == "" {
		return false
	}
	r := []rune(tok)[0]
	return r == '_' || unicode.IsLetter(r)
}

func isNumber(tok string) bool {
	return tok != "" && unicode.IsDigit([]rune(tok)[0])
}
