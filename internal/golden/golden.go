// Package golden compares generated files with the expected output kept
// under testdata. Set UPDATE_GOLDEN=1 to rewrite the expected files.
package golden

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
)

// Updating reports whether the expected files are being rewritten.
func Updating() bool { return os.Getenv("UPDATE_GOLDEN") != "" }

// Check fails t when got differs from the file at path. A missing file is a
// failure too, unless UPDATE_GOLDEN is set, in which case it is written.
func Check(t testing.TB, path, got string) {
	t.Helper()
	if Updating() {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatalf("creating testdata dir: %v", err)
		}
		if err := os.WriteFile(path, []byte(got), 0o644); err != nil {
			t.Fatalf("updating golden file: %v", err)
		}
		return
	}
	expected, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		t.Fatalf("golden file %s is missing. Run with UPDATE_GOLDEN=1 to create it.", path)
		return
	}
	if err != nil {
		t.Fatalf("reading golden file: %v", err)
		return
	}
	if diff := cmp.Diff(string(expected), got); diff != "" {
		t.Errorf("output differs from golden file %s (-want +got):\n%s\nRun with UPDATE_GOLDEN=1 to update.", path, diff)
	}
}
