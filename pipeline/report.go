package pipeline

import (
	"fmt"
	"io"
	"time"

	"github.com/rust-qt/ritual/config"
	"github.com/rust-qt/ritual/depcache"
	"github.com/rust-qt/ritual/diag"
)

// Report prints the post-run report of the latest recorded run of the
// configured library.
func Report(cfg *config.Config, w io.Writer) error {
	cache, err := depcache.Open(cfg.Path(cfg.Output.Cache))
	if err != nil {
		return err
	}
	defer cache.Close()
	run, err := cache.LatestRun(cfg.Library.Name)
	if err != nil {
		return fmt.Errorf("no run of %s recorded: %w", cfg.Library.Name, err)
	}
	if err := WriteRun(w, run); err != nil {
		return err
	}
	return diag.WriteReport(w, run.Diagnostics)
}

// WriteRun prints the header line of a run record.
func WriteRun(w io.Writer, run *depcache.Run) error {
	_, err := fmt.Fprintf(w, "run %s of %s at %s (%s): %d files, snapshot %.12s\n",
		run.ID, run.Library, run.Started.Format(time.RFC3339), run.Duration.Round(time.Millisecond), run.Files, run.Digest)
	return err
}
