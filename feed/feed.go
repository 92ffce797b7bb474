// Package feed loads declaration feeds: JSON or CUE documents describing the
// parsed API of a C++ library. Documents are validated against an embedded
// CUE schema before they are decoded.
package feed

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/format"
	"github.com/tliron/commonlog"
)

var log = commonlog.GetLogger("ritual.feed")

//go:embed schema.cue
var schemaSource string

// Document is a decoded feed.
type Document struct {
	Library        string     `json:"library"`
	Includes       []string   `json:"includes,omitempty"`
	Classes        []Class    `json:"classes,omitempty"`
	Functions      []Function `json:"functions,omitempty"`
	Enums          []Enum     `json:"enums,omitempty"`
	Instantiations []Site     `json:"instantiations,omitempty"`
}

// Class is a class, struct or class template. Nested classes are listed
// separately with the outer class as scope, after it.
type Class struct {
	Name           string     `json:"name"`
	Scope          string     `json:"scope,omitempty"`
	Include        string     `json:"include,omitempty"`
	Bases          []string   `json:"bases,omitempty"`
	TemplateParams []string   `json:"template_params,omitempty"`
	Methods        []Function `json:"methods,omitempty"`
	Fields         []Field    `json:"fields,omitempty"`
	Incomplete     bool       `json:"incomplete,omitempty"`
	SizeDependent  bool       `json:"size_dependent,omitempty"`
	// NoImplicitDefault and NoImplicitCopy are set when the class declares
	// constructors the feed leaves out: deleted, private or protected ones.
	NoImplicitDefault bool   `json:"no_implicit_default,omitempty"`
	NoImplicitCopy    bool   `json:"no_implicit_copy,omitempty"`
	Doc               string `json:"doc,omitempty"`
}

// Function is a free function or, inside a Class, a member.
type Function struct {
	Name           string   `json:"name"`
	Scope          string   `json:"scope,omitempty"`
	Kind           string   `json:"kind,omitempty"`
	Return         string   `json:"return,omitempty"`
	Params         []Param  `json:"params,omitempty"`
	Const          bool     `json:"const,omitempty"`
	Static         bool     `json:"static,omitempty"`
	Virtual        bool     `json:"virtual,omitempty"`
	PureVirtual    bool     `json:"pure_virtual,omitempty"`
	Variadic       bool     `json:"variadic,omitempty"`
	OwningReturn   bool     `json:"owning_return,omitempty"`
	Include        string   `json:"include,omitempty"`
	TemplateParams []string `json:"template_params,omitempty"`
	Doc            string   `json:"doc,omitempty"`
}

// Param is a function parameter.
type Param struct {
	Name    string `json:"name,omitempty"`
	Type    string `json:"type"`
	Default string `json:"default,omitempty"`
	Owning  bool   `json:"owning,omitempty"`
}

// Field is a public data member.
type Field struct {
	Name   string `json:"name"`
	Type   string `json:"type"`
	Static bool   `json:"static,omitempty"`
	Doc    string `json:"doc,omitempty"`
}

// Enum is an enumeration.
type Enum struct {
	Name    string  `json:"name"`
	Scope   string  `json:"scope,omitempty"`
	Include string  `json:"include,omitempty"`
	Flags   bool    `json:"flags,omitempty"`
	Scoped  bool    `json:"scoped,omitempty"`
	Values  []Value `json:"values"`
	Doc     string  `json:"doc,omitempty"`
}

// Value is one enumerator.
type Value struct {
	Name  string `json:"name"`
	Value int64  `json:"value"`
	Doc   string `json:"doc,omitempty"`
}

// Site is an explicit instantiation request.
type Site struct {
	Type     string   `json:"type,omitempty"`
	Function string   `json:"function,omitempty"`
	Args     []string `json:"args,omitempty"`
}

// Loader validates and decodes feeds. It holds one CUE context; it is not
// safe for concurrent use.
type Loader struct {
	ctx    *cue.Context
	schema cue.Value
}

// NewLoader compiles the embedded schema.
func NewLoader() (*Loader, error) {
	ctx := cuecontext.New()
	schema := ctx.CompileString(schemaSource, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return nil, fmt.Errorf("compiling feed schema: %w", err)
	}
	def := schema.LookupPath(cue.ParsePath("#Feed"))
	if err := def.Err(); err != nil {
		return nil, fmt.Errorf("feed schema has no #Feed: %w", err)
	}
	return &Loader{ctx: ctx, schema: def}, nil
}

// Load reads and decodes the feed at path. JSON is valid CUE, so both
// formats go through the same compiler.
func (l *Loader) Load(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read feed %s: %w", path, err)
	}
	return l.Decode(filepath.Base(path), data)
}

// Decode validates data against the schema and decodes it. name is used in
// error positions.
func (l *Loader) Decode(name string, data []byte) (*Document, error) {
	v := l.ctx.CompileBytes(data, cue.Filename(name))
	if err := v.Err(); err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", name, err)
	}
	unified := l.schema.Unify(v)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		log.Errorf("feed %s does not match the schema:\n%s", name, cueerrors.Details(err, nil))
		return nil, fmt.Errorf("invalid feed %s: %w", name, err)
	}
	var doc Document
	if err := unified.Decode(&doc); err != nil {
		return nil, fmt.Errorf("decoding %s: %w", name, err)
	}
	log.Debugf("feed %s: %d classes, %d functions, %d enums", name, len(doc.Classes), len(doc.Functions), len(doc.Enums))
	return &doc, nil
}

// Format renders doc as CUE source.
func (l *Loader) Format(doc *Document) ([]byte, error) {
	v := l.ctx.Encode(doc)
	if err := v.Err(); err != nil {
		return nil, fmt.Errorf("encoding feed: %w", err)
	}
	if err := l.schema.Unify(v).Validate(cue.Concrete(true)); err != nil {
		return nil, fmt.Errorf("generated feed does not match the schema: %w", err)
	}
	out, err := format.Node(v.Syntax())
	if err != nil {
		return nil, fmt.Errorf("formatting feed: %w", err)
	}
	return out, nil
}
