package typemap

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/iancoleman/strcase"
)

var rustKeywords = map[string]bool{
	"as": true, "break": true, "const": true, "continue": true, "crate": true, "else": true,
	"enum": true, "extern": true, "false": true, "fn": true, "for": true, "if": true,
	"impl": true, "in": true, "let": true, "loop": true, "match": true, "mod": true,
	"move": true, "mut": true, "pub": true, "ref": true, "return": true, "self": true,
	"Self": true, "static": true, "struct": true, "super": true, "trait": true, "true": true,
	"type": true, "unsafe": true, "use": true, "where": true, "while": true, "async": true,
	"await": true, "dyn": true, "abstract": true, "become": true, "box": true, "do": true,
	"final": true, "macro": true, "override": true, "priv": true, "typeof": true,
	"unsized": true, "virtual": true, "yield": true, "try": true,
}

// SnakeCase converts a C++ identifier to snake_case: "setX" -> "set_x",
// "QString" -> "q_string".
func SnakeCase(s string) string {
	if s == "" {
		return s
	}
	return strcase.ToSnake(s)
}

// RustIdent makes s safe to use as a Rust identifier.
func RustIdent(s string) string {
	if rustKeywords[s] {
		return s + "_"
	}
	if s != "" && unicode.IsDigit(rune(s[0])) {
		return "_" + s
	}
	return s
}

// RustFunctionName converts a C++ function name to a Rust function name.
func RustFunctionName(s string) string {
	return RustIdent(SnakeCase(s))
}

// PascalCase converts an identifier to PascalCase: "geo_vector" -> "GeoVector".
// Only the first letter of each word is changed, so "QString" stays
// "QString" and "QSTRING" stays "QSTRING".
func PascalCase(s string) string {
	var b strings.Builder
	words := strings.FieldsFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for _, word := range words {
		r, n := utf8.DecodeRuneInString(word)
		b.WriteRune(unicode.ToUpper(r))
		b.WriteString(word[n:])
	}
	return b.String()
}

// GoExported converts a C++ identifier to an exported Go identifier.
func GoExported(s string) string {
	p := PascalCase(s)
	if p == "" {
		return "X"
	}
	if unicode.IsDigit(rune(p[0])) {
		return "X" + p
	}
	return p
}

// RustModulePath converts a namespace path to a module path below crate,
// dropping filtered namespaces: ("geo::detail", {"detail"}) -> "geo".
func RustModulePath(namespace string, filtered map[string]bool) []string {
	if namespace == "" {
		return nil
	}
	var out []string
	cur := ""
	for _, part := range strings.Split(namespace, "::") {
		if cur == "" {
			cur = part
		} else {
			cur += "::" + part
		}
		if filtered[cur] || filtered[part] {
			continue
		}
		out = append(out, RustIdent(SnakeCase(part)))
	}
	return out
}
