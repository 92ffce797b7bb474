package pipeline

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/rust-qt/ritual/config"
)

// writeOutputs writes the generated trees below their configured
// directories and returns the number of files whose content changed.
func writeOutputs(cfg *config.Config, out *Result) (int, error) {
	trees := []struct {
		dir   string
		files map[string][]byte
	}{
		{cfg.Output.WrapperDir, out.Wrapper},
		{cfg.Output.CrateDir, out.Crate},
	}
	if cfg.Output.GoDir != "" {
		trees = append(trees, struct {
			dir   string
			files map[string][]byte
		}{cfg.Output.GoDir, out.Go})
	}
	written := 0
	for _, t := range trees {
		n, err := WriteTree(cfg.Path(t.dir), t.files)
		if err != nil {
			return written, err
		}
		written += n
	}
	return written, nil
}

// WriteTree writes files below dir. Files whose content is unchanged are
// left alone so that build tools do not see a fresh modification time.
func WriteTree(dir string, files map[string][]byte) (int, error) {
	paths := make([]string, 0, len(files))
	for p := range files {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	written := 0
	for _, p := range paths {
		full := filepath.Join(dir, filepath.FromSlash(p))
		if old, err := os.ReadFile(full); err == nil && bytes.Equal(old, files[p]) {
			continue
		}
		if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
			return written, fmt.Errorf("creating output dir: %w", err)
		}
		if err := os.WriteFile(full, files[p], 0o644); err != nil {
			return written, fmt.Errorf("writing %s: %w", full, err)
		}
		log.Debugf("wrote %s", full)
		written++
	}
	return written, nil
}
