// Package cppscan turns simple C++ headers into declaration feeds.
//
// Headers are parsed with the tree-sitter C++ grammar. Only the public API
// surface is recorded: namespaces, classes and structs with their public
// bases, fields and methods, enums, free functions and templates. Anything
// the grammar cannot make sense of is reported and skipped, so scanning is a
// starting point for a feed, not a replacement for a real compiler front end.
package cppscan

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/cpp"
	"github.com/tliron/commonlog"

	"github.com/rust-qt/ritual/diag"
	"github.com/rust-qt/ritual/feed"
)

var log = commonlog.GetLogger("ritual.cppscan")

// Options configures a Scanner.
type Options struct {
	// Library names the produced document.
	Library string
	// IncludeDirs are used to spell the include of a scanned file relative
	// to the first directory that contains it.
	IncludeDirs []string
	// Macros are identifiers blanked out before parsing, typically export
	// and deprecation macros such as GEO_EXPORT.
	Macros []string
}

// Scanner accumulates the declarations of several headers into one feed
// document. It is not safe for concurrent use.
type Scanner struct {
	opts   Options
	parser *sitter.Parser
	diags  *diag.Collector
	macros *regexp.Regexp

	doc     *feed.Document
	defined map[string]bool
	forward map[string]feed.Class
}

// New creates a scanner reporting skipped constructs to diags.
func New(opts Options, diags *diag.Collector) *Scanner {
	if diags == nil {
		diags = diag.NewCollector()
	}
	parser := sitter.NewParser()
	parser.SetLanguage(cpp.GetLanguage())
	s := &Scanner{
		opts:    opts,
		parser:  parser,
		diags:   diags,
		doc:     &feed.Document{Library: opts.Library},
		defined: map[string]bool{},
		forward: map[string]feed.Class{},
	}
	if len(opts.Macros) > 0 {
		quoted := make([]string, len(opts.Macros))
		for i, m := range opts.Macros {
			quoted[i] = regexp.QuoteMeta(m)
		}
		s.macros = regexp.MustCompile(`\b(?:` + strings.Join(quoted, "|") + `)\b`)
	}
	return s
}

// Close releases the parser.
func (s *Scanner) Close() {
	s.parser.Close()
}

// ScanFile scans the header at path.
func (s *Scanner) ScanFile(ctx context.Context, path string) error {
	src, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("cannot read header %s: %w", path, err)
	}
	return s.Scan(ctx, s.includeFor(path), src)
}

func (s *Scanner) includeFor(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		return filepath.Base(path)
	}
	for _, dir := range s.opts.IncludeDirs {
		d, err := filepath.Abs(dir)
		if err != nil {
			continue
		}
		rel, err := filepath.Rel(d, abs)
		if err == nil && !strings.HasPrefix(rel, "..") {
			return filepath.ToSlash(rel)
		}
	}
	return filepath.Base(path)
}

// Scan parses src as the header spelled include and adds its declarations
// to the document.
func (s *Scanner) Scan(ctx context.Context, include string, src []byte) error {
	if s.macros != nil {
		src = s.macros.ReplaceAllFunc(src, func(m []byte) []byte {
			return []byte(strings.Repeat(" ", len(m)))
		})
	}
	tree, err := s.parser.ParseCtx(ctx, nil, src)
	if err != nil {
		return fmt.Errorf("parsing %s: %w", include, err)
	}
	defer tree.Close()

	root := tree.RootNode()
	if root.HasError() {
		log.Warningf("%s has syntax errors; declarations inside them are skipped", include)
	}
	before := len(s.doc.Classes) + len(s.doc.Functions) + len(s.doc.Enums)
	w := &walker{s: s, src: src, include: include}
	w.scope(root, "")
	s.doc.Includes = appendUnique(s.doc.Includes, include)
	log.Infof("scanned %s: %d declarations", include, len(s.doc.Classes)+len(s.doc.Functions)+len(s.doc.Enums)-before)
	return nil
}

// Document returns the accumulated feed. Classes that were only forward
// declared are added as incomplete.
func (s *Scanner) Document() *feed.Document {
	doc := *s.doc
	doc.Classes = append([]feed.Class(nil), s.doc.Classes...)
	var names []string
	for id := range s.forward {
		if !s.defined[id] {
			names = append(names, id)
		}
	}
	sort.Strings(names)
	for _, id := range names {
		doc.Classes = append(doc.Classes, s.forward[id])
	}
	return &doc
}

func appendUnique(list []string, s string) []string {
	for _, x := range list {
		if x == s {
			return list
		}
	}
	return append(list, s)
}

func qualify(scope, name string) string {
	if scope == "" {
		return name
	}
	return scope + "::" + name
}
