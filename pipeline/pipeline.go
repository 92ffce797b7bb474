// Package pipeline runs one processing run: it loads the declaration feed,
// applies dependency snapshots, classifies, resolves and emits the wrapper
// library, the Rust crate and optionally the Go package, then records the
// run in the cache.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/tliron/commonlog"

	"github.com/rust-qt/ritual/alloc"
	"github.com/rust-qt/ritual/config"
	"github.com/rust-qt/ritual/cppmodel"
	"github.com/rust-qt/ritual/cppscan"
	"github.com/rust-qt/ritual/cwrap"
	"github.com/rust-qt/ritual/depcache"
	"github.com/rust-qt/ritual/diag"
	"github.com/rust-qt/ritual/feed"
	"github.com/rust-qt/ritual/gobind"
	"github.com/rust-qt/ritual/instantiate"
	"github.com/rust-qt/ritual/overload"
	"github.com/rust-qt/ritual/rustgen"
	"github.com/rust-qt/ritual/typemap"
)

var log = commonlog.GetLogger("ritual.pipeline")

// Options adjusts a run.
type Options struct {
	// Document replaces the configured feed.
	Document *feed.Document
	// SizesFile is a size probe output merged over the configured sizes.
	SizesFile string
	// DryRun computes every tree without writing it or touching the cache.
	DryRun bool
}

// Result is the outcome of a run.
type Result struct {
	Run      *depcache.Run
	Wrapper  cwrap.Tree
	Crate    rustgen.Tree
	Go       gobind.Tree
	Snapshot *depcache.Snapshot
	// Written counts the files whose content changed on disk.
	Written int
}

// Generate performs a run for cfg.
func Generate(ctx context.Context, cfg *config.Config, opts Options) (*Result, error) {
	run := depcache.NewRun(cfg.Library.Name)
	log.Infof("run %s for %s", run.ID, cfg.Library.Name)

	if opts.SizesFile != "" {
		sizes, err := config.LoadSizes(opts.SizesFile)
		if err != nil {
			return nil, err
		}
		cfg.MergeSizes(sizes)
	}

	diags := diag.NewCollector()
	doc := opts.Document
	if doc == nil {
		var err error
		if doc, err = LoadDocument(ctx, cfg, diags); err != nil {
			return nil, err
		}
	}
	lib := feed.Build(doc, diags)
	if lib.Name == "" {
		lib.Name = cfg.Library.Name
	}

	deps, err := applyDependencies(cfg, lib)
	if err != nil {
		return nil, err
	}
	for _, spelling := range cfg.Templates.Instantiations {
		site, err := feed.SiteFromSpelling(spelling)
		if err != nil {
			diags.Report(diag.UnsupportedConstruct, spelling, "explicit instantiation: %v", err)
			continue
		}
		lib.Sites = append(lib.Sites, site)
	}
	if n := Block(lib, cfg.Library.BlockedNames, diags); n > 0 {
		log.Infof("blocked %d entities", n)
	}
	lib.Resolve()

	tracker := instantiate.NewTracker(lib, cfg.Templates.MaxDepth, diags)
	tracker.Skip(cfg.Templates.FlagsTemplate)
	tracker.Scan()

	table := alloc.Classify(lib, alloc.Options{
		ValueTypes: cfg.Allocation.ValueTypes,
		OwnedTypes: cfg.Allocation.OwnedTypes,
		Sizes:      cfg.Sizes,
		Platforms:  cfg.Platforms,
		Fixed:      deps.fixed,
	}, diags)
	mapper := typemap.New(lib, table, typemap.Options{
		FlagsTemplate:      cfg.Templates.FlagsTemplate,
		FilteredNamespaces: cfg.Library.FilteredNamespaces,
		Platforms:          cfg.TargetPlatforms(),
	}, diags.Excluded)
	res := overload.Resolve(overload.Input{Library: lib, Mapper: mapper, Diags: diags, Reserved: deps.reserved})
	mapper.LogSummary()

	out := &Result{Run: run}
	if out.Wrapper, err = cwrap.New(mapper, res, cwrap.Options{
		Library:     cfg.Library.Name,
		ExportMacro: cfg.Library.ExportMacro,
		Includes:    cfg.Library.Includes,
	}).Emit(); err != nil {
		return nil, fmt.Errorf("wrapper library: %w", err)
	}
	if out.Crate, err = rustgen.New(mapper, res, rustgen.Options{
		Crate:        cfg.Crate.Name,
		Version:      cfg.Crate.Version,
		Dependencies: deps.crates,
		Sizes:        table,
		Excluded:     diags.Excluded,
	}).Emit(); err != nil {
		return nil, fmt.Errorf("crate: %w", err)
	}
	if cfg.Output.GoDir != "" {
		wrapperRel := relPath(cfg.Path(cfg.Output.GoDir), cfg.Path(cfg.Output.WrapperDir))
		if out.Go, err = gobind.New(mapper, res, gobind.Options{
			Package:  cfg.Output.GoPackage,
			CFlags:   "-I${SRCDIR}/" + wrapperRel,
			LDFlags:  "-L${SRCDIR}/" + wrapperRel,
			Sizes:    table,
			Excluded: diags.Excluded,
			Diags:    diags,
		}).Emit(); err != nil {
			return nil, fmt.Errorf("go package: %w", err)
		}
	}

	for _, e := range tracker.Entries() {
		if e.Class != nil && e.Class.Dependency == "" && !diags.Excluded(e.Class.ID()) {
			if err := tracker.MarkEmitted(e.Key); err != nil {
				return nil, err
			}
		}
	}

	out.Snapshot = depcache.Capture(lib, cfg.Crate.Name, table, res)
	digest, err := depcache.Digest(out.Snapshot)
	if err != nil {
		return nil, err
	}
	files := len(out.Wrapper) + len(out.Crate) + len(out.Go)
	run.Finish(diags.Items(), files, digest)
	log.Infof("%s: %d files, %s", cfg.Library.Name, files, diag.Summary(run.Diagnostics))

	if opts.DryRun {
		return out, nil
	}
	if out.Written, err = writeOutputs(cfg, out); err != nil {
		return nil, err
	}
	if err := record(cfg, out.Snapshot, run); err != nil {
		return nil, err
	}
	return out, nil
}

// LoadDocument reads the configured feed, or scans the configured headers
// when no feed is set.
func LoadDocument(ctx context.Context, cfg *config.Config, diags *diag.Collector) (*feed.Document, error) {
	if cfg.Library.Feed != "" {
		l, err := feed.NewLoader()
		if err != nil {
			return nil, err
		}
		return l.Load(cfg.Path(cfg.Library.Feed))
	}
	if len(cfg.Library.Headers) == 0 {
		return nil, errors.New("[library] sets neither feed nor headers")
	}
	return Scan(ctx, cfg, diags)
}

// Scan runs the header scanner over the configured headers.
func Scan(ctx context.Context, cfg *config.Config, diags *diag.Collector) (*feed.Document, error) {
	opts := cppscan.Options{Library: cfg.Library.Name}
	for _, dir := range cfg.Library.IncludeDirs {
		opts.IncludeDirs = append(opts.IncludeDirs, cfg.Path(dir))
	}
	if cfg.Library.ExportMacro != "" {
		opts.Macros = []string{cfg.Library.ExportMacro}
	}
	s := cppscan.New(opts, diags)
	defer s.Close()
	for _, h := range cfg.Library.Headers {
		if err := s.ScanFile(ctx, cfg.Path(h)); err != nil {
			return nil, err
		}
	}
	return s.Document(), nil
}

type dependencies struct {
	fixed    map[string]alloc.Strategy
	reserved []string
	crates   []rustgen.Dependency
}

// applyDependencies adds the snapshot of every configured dependency to lib.
func applyDependencies(cfg *config.Config, lib *cppmodel.Library) (dependencies, error) {
	deps := dependencies{fixed: make(map[string]alloc.Strategy)}
	caches := make(map[string]*depcache.Cache)
	defer func() {
		for _, c := range caches {
			c.Close()
		}
	}()
	crateDir := cfg.Path(cfg.Output.CrateDir)
	for _, name := range cfg.DependencyNames() {
		dep := cfg.Dependencies[name]
		path := cfg.Path(dep.Cache)
		cache, ok := caches[path]
		if !ok {
			var err error
			if cache, err = depcache.Open(path); err != nil {
				return deps, fmt.Errorf("dependency %s: %w", name, err)
			}
			caches[path] = cache
		}
		snap, err := cache.Get(dep.Library)
		if errors.Is(err, depcache.ErrNotFound) {
			return deps, fmt.Errorf("dependency %s has not been processed yet; run generate for %s first: %w", name, dep.Library, err)
		}
		if err != nil {
			return deps, fmt.Errorf("dependency %s: %w", name, err)
		}
		applied := snap.Apply(lib)
		for id, s := range applied.Fixed {
			deps.fixed[id] = s
		}
		deps.reserved = append(deps.reserved, applied.Reserved...)

		target := filepath.Join(filepath.Dir(crateDir), snap.Crate)
		if dep.Crate != "" {
			target = cfg.Path(dep.Crate)
		}
		deps.crates = append(deps.crates, rustgen.Dependency{Crate: snap.Crate, Path: relPath(crateDir, target)})
	}
	return deps, nil
}

// record stores the snapshot and the run record in the project cache.
func record(cfg *config.Config, snap *depcache.Snapshot, run *depcache.Run) error {
	cache, err := depcache.Open(cfg.Path(cfg.Output.Cache))
	if err != nil {
		return err
	}
	defer cache.Close()
	if _, err := cache.Put(snap); err != nil {
		return err
	}
	return cache.RecordRun(run)
}

func relPath(from, to string) string {
	rel, err := filepath.Rel(from, to)
	if err != nil {
		return filepath.ToSlash(to)
	}
	return filepath.ToSlash(rel)
}
