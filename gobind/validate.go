package gobind

import (
	"go/ast"
	"go/importer"
	"go/parser"
	"go/token"
	"go/types"
	"sort"
	"strings"
)

// ValidationError is a type-checking error in generated Go source.
type ValidationError struct {
	File     string
	Line     int
	Column   int
	Function string // function containing the error, "<package>" outside functions
	Receiver string // receiver type of a method, e.g. "*Point"
	Message  string
}

// Key identifies the function of an error: "Receiver.Function" for methods.
func (e ValidationError) Key() string {
	if e.Receiver != "" {
		return e.Receiver + "." + e.Function
	}
	return e.Function
}

type functionInfo struct {
	Name     string
	Receiver string
}

// Validator type-checks the files of one generated package in memory.
// Package C is faked, so cgo references are accepted unchecked.
type Validator struct {
	fset  *token.FileSet
	funcs map[string]map[int]*functionInfo
}

// NewValidator returns a Validator.
func NewValidator() *Validator {
	return &Validator{}
}

// Validate parses and type-checks files, keyed by file name.
func (v *Validator) Validate(files map[string]string) []ValidationError {
	v.fset = token.NewFileSet()
	v.funcs = make(map[string]map[int]*functionInfo)

	names := make([]string, 0, len(files))
	for name := range files {
		names = append(names, name)
	}
	sort.Strings(names)

	var parsed []*ast.File
	var errs []ValidationError
	for _, name := range names {
		f, err := parser.ParseFile(v.fset, name, files[name], parser.AllErrors|parser.ParseComments)
		if err != nil {
			errs = append(errs, ValidationError{File: name, Line: 1, Column: 1, Function: "<package>", Message: err.Error()})
			continue
		}
		v.funcs[name] = v.buildFunctionMap(f)
		parsed = append(parsed, f)
	}
	if len(errs) > 0 || len(parsed) == 0 {
		return errs
	}

	conf := types.Config{
		Importer:    importer.Default(),
		FakeImportC: true,
		Error: func(err error) {
			typeErr, ok := err.(types.Error)
			if !ok {
				return
			}
			pos := v.fset.Position(typeErr.Pos)
			fn := v.funcs[pos.Filename][pos.Line]
			if fn == nil {
				fn = &functionInfo{Name: "<package>"}
			}
			errs = append(errs, ValidationError{
				File:     pos.Filename,
				Line:     pos.Line,
				Column:   pos.Column,
				Function: fn.Name,
				Receiver: fn.Receiver,
				Message:  typeErr.Msg,
			})
		},
	}
	_, _ = conf.Check(parsed[0].Name.Name, v.fset, parsed, nil)
	return errs
}

func (v *Validator) buildFunctionMap(file *ast.File) map[int]*functionInfo {
	funcMap := make(map[int]*functionInfo)
	for _, decl := range file.Decls {
		fn, ok := decl.(*ast.FuncDecl)
		if !ok {
			continue
		}
		info := &functionInfo{Name: fn.Name.Name}
		if fn.Recv != nil && len(fn.Recv.List) > 0 {
			info.Receiver = receiverType(fn.Recv.List[0].Type)
		}
		start, end := v.fset.Position(fn.Pos()), v.fset.Position(fn.End())
		for line := start.Line; line <= end.Line; line++ {
			funcMap[line] = info
		}
	}
	return funcMap
}

func receiverType(expr ast.Expr) string {
	switch t := expr.(type) {
	case *ast.Ident:
		return t.Name
	case *ast.StarExpr:
		if ident, ok := t.X.(*ast.Ident); ok {
			return "*" + ident.Name
		}
	}
	return ""
}

// FormatValidationErrors renders errors one per line.
func FormatValidationErrors(errs []ValidationError) string {
	var sb strings.Builder
	for _, err := range errs {
		sb.WriteString("  ")
		if err.Function != "" && err.Function != "<package>" {
			sb.WriteString(err.Key())
			sb.WriteString(": ")
		}
		sb.WriteString(err.Message)
		sb.WriteString("\n")
	}
	return sb.String()
}
