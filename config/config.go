// Package config handles ritual.toml project configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/BurntSushi/toml"
	"github.com/tliron/commonlog"

	"github.com/rust-qt/ritual/typemap"
)

var log = commonlog.GetLogger("ritual.config")

// FileName is the name of the project file.
const FileName = "ritual.toml"

// ErrNotFound is returned by FindAndLoad when no project file exists in the
// start directory or any of its parents.
var ErrNotFound = errors.New("no " + FileName + " found")

// Config represents a ritual.toml project configuration.
type Config struct {
	// Platforms lists the target platforms by name. Defaults to every known
	// platform.
	Platforms    []string                  `toml:"platforms"`
	Crate        Crate                     `toml:"crate"`
	Library      Library                   `toml:"library"`
	Output       Output                    `toml:"output"`
	Allocation   Allocation                `toml:"allocation"`
	Templates    Templates                 `toml:"templates"`
	Sizes        map[string]map[string]int `toml:"sizes"`
	Dependencies map[string]Dependency     `toml:"dependencies"`

	// Dir is the directory containing the ritual.toml file (set at load time).
	Dir string `toml:"-"`
}

// Crate configures the generated Rust crate.
type Crate struct {
	Name    string `toml:"name"`
	Version string `toml:"version"`
}

// Library describes the C++ library being wrapped.
type Library struct {
	Name string `toml:"name"`
	// Includes are the headers the wrappers are compiled against.
	Includes    []string `toml:"includes"`
	IncludeDirs []string `toml:"include_dirs"`
	ExportMacro string   `toml:"export_macro"`
	// Feed is the declaration feed (JSON or CUE) the run starts from.
	Feed string `toml:"feed"`
	// Headers are scanned by "ritual scan" to produce a feed.
	Headers            []string `toml:"headers"`
	BlockedNames       []string `toml:"blocked_names"`
	FilteredNamespaces []string `toml:"filtered_namespaces"`
}

// Output configures where generated trees are written.
type Output struct {
	WrapperDir string `toml:"wrapper_dir"`
	CrateDir   string `toml:"crate_dir"`
	// GoDir enables the Go package when set.
	GoDir     string `toml:"go_dir"`
	GoPackage string `toml:"go_package"`
	// Cache is the dependency cache database.
	Cache string `toml:"cache"`
}

// Allocation overrides the default strategy rule.
type Allocation struct {
	ValueTypes []string `toml:"value_types"`
	OwnedTypes []string `toml:"owned_types"`
}

// Templates configures template instantiation.
type Templates struct {
	MaxDepth int `toml:"max_depth"`
	// Instantiations are explicit instantiation requests, e.g. "Vector<int>".
	Instantiations []string `toml:"instantiations"`
	FlagsTemplate  string   `toml:"flags_template"`
}

// Dependency is a previously processed library whose snapshot is reused.
type Dependency struct {
	// Cache is the cache database holding the dependency's snapshot.
	// Defaults to the project cache.
	Cache string `toml:"cache"`
	// Library is the dependency's library name. Defaults to the table key.
	Library string `toml:"library"`
	// Crate is the dependency's crate directory, used for the Cargo path
	// dependency.
	Crate string `toml:"crate"`
}

// Load parses the ritual.toml file in dir.
func Load(dir string) (*Config, error) {
	path := filepath.Join(dir, FileName)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("cannot resolve path %s: %w", dir, err)
	}
	c, err := Parse(data, abs)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return c, nil
}

// Parse decodes a project file whose relative paths are resolved against dir.
func Parse(data []byte, dir string) (*Config, error) {
	var c Config
	md, err := toml.Decode(string(data), &c)
	if err != nil {
		return nil, fmt.Errorf("parse error: %w", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		log.Warningf("unknown keys in %s: %v", FileName, undecoded)
	}
	c.Dir = dir
	c.applyDefaults()
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// FindAndLoad walks up from startDir to find a ritual.toml file, then loads
// it. It returns ErrNotFound when there is none.
func FindAndLoad(startDir string) (*Config, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return nil, err
	}
	for {
		if _, err := os.Stat(filepath.Join(dir, FileName)); err == nil {
			return Load(dir)
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return nil, fmt.Errorf("searching from %s: %w", startDir, ErrNotFound)
		}
		dir = parent
	}
}

func (c *Config) applyDefaults() {
	if c.Crate.Name == "" {
		c.Crate.Name = typemap.SnakeCase(c.Library.Name)
	}
	if c.Crate.Version == "" {
		c.Crate.Version = "0.1.0"
	}
	if c.Output.WrapperDir == "" {
		c.Output.WrapperDir = "c_lib"
	}
	if c.Output.CrateDir == "" {
		c.Output.CrateDir = c.Crate.Name
	}
	if c.Output.GoDir != "" && c.Output.GoPackage == "" {
		c.Output.GoPackage = c.Crate.Name
	}
	if c.Output.Cache == "" {
		c.Output.Cache = filepath.Join(".ritual", "cache.db")
	}
	if c.Templates.MaxDepth == 0 {
		c.Templates.MaxDepth = 4
	}
	if c.Templates.FlagsTemplate == "" {
		c.Templates.FlagsTemplate = "QFlags"
	}
	if len(c.Platforms) == 0 {
		for _, p := range typemap.DefaultPlatforms() {
			c.Platforms = append(c.Platforms, p.Name)
		}
	}
	for name, dep := range c.Dependencies {
		if dep.Library == "" {
			dep.Library = name
		}
		if dep.Cache == "" {
			dep.Cache = c.Output.Cache
		}
		c.Dependencies[name] = dep
	}
}

// Validate checks the settings that cannot be defaulted.
func (c *Config) Validate() error {
	if c.Library.Name == "" {
		return errors.New("[library] name is required")
	}
	if c.Templates.MaxDepth < 0 {
		return fmt.Errorf("[templates] max_depth must be positive, got %d", c.Templates.MaxDepth)
	}
	for name, dep := range c.Dependencies {
		if dep.Library == c.Library.Name {
			return fmt.Errorf("[dependencies.%s] names the library being processed", name)
		}
	}
	if _, err := typemap.PlatformsByName(c.Platforms); err != nil {
		return err
	}
	known := make(map[string]bool)
	for _, p := range c.Platforms {
		known[p] = true
	}
	for p := range c.Sizes {
		if !known[p] {
			return fmt.Errorf("[sizes.%s] names a platform that is not targeted", p)
		}
	}
	return nil
}

// Path resolves a path from the project file against its directory.
func (c *Config) Path(rel string) string {
	if rel == "" || filepath.IsAbs(rel) {
		return rel
	}
	return filepath.Join(c.Dir, rel)
}

// TargetPlatforms returns the configured platforms.
func (c *Config) TargetPlatforms() []typemap.Platform {
	ps, err := typemap.PlatformsByName(c.Platforms)
	if err != nil {
		// Validate has already rejected unknown names.
		return typemap.DefaultPlatforms()
	}
	return ps
}

// DependencyNames returns the dependency table keys, sorted.
func (c *Config) DependencyNames() []string {
	names := make([]string, 0, len(c.Dependencies))
	for name := range c.Dependencies {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// MergeSizes adds probed sizes, overriding the configured ones per class.
func (c *Config) MergeSizes(sizes map[string]map[string]int) {
	if c.Sizes == nil {
		c.Sizes = make(map[string]map[string]int)
	}
	for platform, classes := range sizes {
		if c.Sizes[platform] == nil {
			c.Sizes[platform] = make(map[string]int)
		}
		for id, n := range classes {
			c.Sizes[platform][id] = n
		}
	}
}

type sizesFile struct {
	Sizes map[string]map[string]int `toml:"sizes"`
}

// LoadSizes reads the output of the size probe: a file holding only
// [sizes.<platform>] tables.
func LoadSizes(path string) (map[string]map[string]int, error) {
	var f sizesFile
	if _, err := toml.DecodeFile(path, &f); err != nil {
		return nil, fmt.Errorf("reading sizes from %s: %w", path, err)
	}
	return f.Sizes, nil
}
