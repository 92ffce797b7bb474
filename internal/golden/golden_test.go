package golden

import (
	"os"
	"path/filepath"
	"testing"
)

// recorder captures failures without stopping the enclosing test.
type recorder struct {
	testing.TB
	failed bool
}

func (r *recorder) Helper() {}

func (r *recorder) Errorf(string, ...any) { r.failed = true }

func (r *recorder) Fatalf(string, ...any) { r.failed = true }

func TestCheck(t *testing.T) {
	t.Setenv("UPDATE_GOLDEN", "")
	dir := t.TempDir()
	path := filepath.Join(dir, "out.golden")

	r := &recorder{TB: t}
	Check(r, path, "hello\n")
	if !r.failed {
		t.Error("a missing golden file must fail the test")
	}

	if err := os.WriteFile(path, []byte("hello\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	r = &recorder{TB: t}
	Check(r, path, "hello\n")
	if r.failed {
		t.Error("matching output reported as different")
	}
	r = &recorder{TB: t}
	Check(r, path, "goodbye\n")
	if !r.failed {
		t.Error("differing output not reported")
	}
}

func TestCheckUpdates(t *testing.T) {
	t.Setenv("UPDATE_GOLDEN", "1")
	path := filepath.Join(t.TempDir(), "testdata", "out.golden")
	Check(t, path, "fresh\n")
	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "fresh\n" {
		t.Errorf("golden file = %q", got)
	}
}
