package cwrap

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/rust-qt/ritual/alloc"
	"github.com/rust-qt/ritual/cppmodel"
	"github.com/rust-qt/ritual/overload"
	"github.com/rust-qt/ritual/typemap"
)

// body returns the statements of the wrapper of m.
func (e *Emitter) body(m *overload.Method) ([]string, error) {
	f := m.Func
	if m.Full != nil {
		return e.forwardBody(m)
	}
	this, hasThis := m.ThisArg()
	switch {
	case f.IsDestructor():
		if !hasThis {
			return nil, fmt.Errorf("destructor without object pointer")
		}
		if m.Strategy == alloc.Owned {
			return []string{fmt.Sprintf("delete %s;", this.Name)}, nil
		}
		return []string{fmt.Sprintf("%s(%s);", e.DestructorHelper(), this.Name)}, nil
	case f.IsConstructor():
		class := m.Class.Type().String()
		args := strings.Join(argValues(m), ", ")
		if out, ok := m.OutputArg(); ok {
			return []string{fmt.Sprintf("new(%s) %s(%s);", out.Name, class, args)}, nil
		}
		return []string{fmt.Sprintf("return new %s(%s);", class, args)}, nil
	}

	expr, err := callExpression(m)
	if err != nil {
		return nil, err
	}
	if f.Synthetic == cppmodel.FieldSetter {
		return []string{expr + ";"}, nil
	}
	return []string{returnStatement(m, expr)}, nil
}

// callExpression is the C++ expression performing the original operation.
func callExpression(m *overload.Method) (string, error) {
	f := m.Func
	args := argValues(m)
	this, hasThis := m.ThisArg()

	var scope string
	switch {
	case hasThis:
		scope = this.Name + "->"
	case f.Member:
		scope = m.Class.Type().String() + "::"
	}

	switch f.Synthetic {
	case cppmodel.FieldGetter:
		return scope + f.Field, nil
	case cppmodel.FieldSetter:
		if len(args) != 1 {
			return "", fmt.Errorf("setter takes %d arguments", len(args))
		}
		return fmt.Sprintf("%s%s = %s", scope, f.Field, args[0]), nil
	case cppmodel.StaticUpcast, cppmodel.StaticDowncast:
		return fmt.Sprintf("static_cast<%s>(%s)", f.Return.String(), args[0]), nil
	case cppmodel.DynamicCast:
		return fmt.Sprintf("dynamic_cast<%s>(%s)", f.Return.String(), args[0]), nil
	}

	name := f.Name
	if !f.Member {
		name = f.FullName()
	}
	if len(f.TemplateArgs) > 0 {
		name += cppmodel.ClassType("", f.TemplateArgs...).BaseName()
	}
	return fmt.Sprintf("%s%s(%s)", scope, name, strings.Join(args, ", ")), nil
}

// argValues converts the FFI arguments back to what the C++ call expects.
func argValues(m *overload.Method) []string {
	var out []string
	for _, a := range m.PlainArgs() {
		out = append(out, argValue(a))
	}
	return out
}

func argValue(a overload.Arg) string {
	mp := a.Map
	switch mp.Conversion {
	case typemap.ValueToPointer, typemap.ReferenceToPointer:
		return "*" + a.Name
	case typemap.EnumToInt:
		return fmt.Sprintf("static_cast<%s>(%s)", mp.Enum.QualifiedName(), a.Name)
	case typemap.FlagsToUInt:
		return fmt.Sprintf("%s(%s)", valueType(mp.CPP), a.Name)
	}
	return a.Name
}

// valueType spells t without reference and top-level const.
func valueType(t cppmodel.TypeRef) string {
	return t.Pointee().WithConst(false).String()
}

// returnStatement converts the result of expr to the FFI return type.
func returnStatement(m *overload.Method, expr string) string {
	mp := m.Return
	if mp == nil {
		return expr + ";"
	}
	if out, ok := m.OutputArg(); ok {
		return fmt.Sprintf("new(%s) %s(%s);", out.Name, valueType(mp.CPP), expr)
	}
	switch mp.Conversion {
	case typemap.ValueToPointer:
		return fmt.Sprintf("return new %s(%s);", valueType(mp.CPP), expr)
	case typemap.ReferenceToPointer:
		return fmt.Sprintf("return &%s;", expr)
	case typemap.EnumToInt:
		return fmt.Sprintf("return static_cast<int>(%s);", expr)
	case typemap.FlagsToUInt:
		return fmt.Sprintf("return static_cast<unsigned int>(%s);", expr)
	}
	return fmt.Sprintf("return %s;", expr)
}

// forwardBody calls the full-arity wrapper with the omitted arguments filled
// from their default expressions.
func (e *Emitter) forwardBody(m *overload.Method) ([]string, error) {
	full := m.Full
	present := len(m.Func.Params)
	var args []string
	for _, a := range full.Args {
		switch {
		case a.Role != overload.PlainArg:
			args = append(args, a.Name)
		case a.Param < present:
			args = append(args, a.Name)
		default:
			p := full.Func.Params[a.Param]
			if p.Default == "" {
				return nil, fmt.Errorf("parameter %s has no default value", a.Name)
			}
			args = append(args, defaultValue(a.Map, p.Default))
		}
	}
	call := fmt.Sprintf("%s(%s)", full.Symbol, strings.Join(args, ", "))
	if m.ReturnsValue() {
		return []string{"return " + call + ";"}, nil
	}
	return []string{call + ";"}, nil
}

// defaultValue converts a default expression to the FFI type of its parameter.
func defaultValue(mp *typemap.Mapping, expr string) string {
	if mp.Enum != nil {
		expr = qualifyEnumerators(expr, mp.Enum)
	}
	switch mp.Conversion {
	case typemap.ValueToPointer:
		t := valueType(mp.CPP)
		return fmt.Sprintf("&static_cast<const %s&>(%s(%s))", t, t, expr)
	case typemap.ReferenceToPointer:
		if mp.CPP.Const && mp.Class != nil {
			t := valueType(mp.CPP)
			return fmt.Sprintf("&static_cast<const %s&>(%s(%s))", t, t, expr)
		}
		return "&(" + expr + ")"
	case typemap.EnumToInt:
		return fmt.Sprintf("static_cast<int>(%s)", expr)
	case typemap.FlagsToUInt:
		return fmt.Sprintf("static_cast<unsigned int>(%s(%s))", valueType(mp.CPP), expr)
	}
	return expr
}

var identifierPattern = regexp.MustCompile(`[A-Za-z_][A-Za-z0-9_]*`)

// qualifyEnumerators prefixes unqualified enumerators of e in expr with the
// scope they live in.
func qualifyEnumerators(expr string, e *cppmodel.Enum) string {
	scope := e.ValueScope()
	if scope == "" {
		return expr
	}
	values := make(map[string]bool, len(e.Values))
	for _, v := range e.Values {
		values[v.Name] = true
	}
	var b strings.Builder
	last := 0
	for _, loc := range identifierPattern.FindAllStringIndex(expr, -1) {
		start, end := loc[0], loc[1]
		word := expr[start:end]
		qualified := start >= 2 && expr[start-2:start] == "::"
		b.WriteString(expr[last:start])
		if values[word] && !qualified {
			b.WriteString(scope + "::")
		}
		b.WriteString(word)
		last = end
	}
	b.WriteString(expr[last:])
	return b.String()
}
