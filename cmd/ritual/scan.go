package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rust-qt/ritual/diag"
	"github.com/rust-qt/ritual/feed"
	"github.com/rust-qt/ritual/pipeline"
)

// handleScanCommand processes the `ritual scan` subcommand. The feed is
// written as CUE unless the output name ends in .json.
func handleScanCommand(args []string) error {
	fs := flag.NewFlagSet("scan", flag.ExitOnError)
	var common commonFlags
	common.register(fs)
	output := fs.String("o", "", "Output file (default: the configured feed, else stdout)")
	fs.Parse(args)

	cfg, err := common.setup()
	if err != nil {
		return err
	}
	if len(cfg.Library.Headers) == 0 {
		return fmt.Errorf("no [library] headers configured in %s", filepath.Join(cfg.Dir, "ritual.toml"))
	}
	diags := diag.NewCollector()
	doc, err := pipeline.Scan(context.Background(), cfg, diags)
	if err != nil {
		return err
	}
	if diags.Len() > 0 {
		diag.WriteReport(os.Stderr, diags.Items())
	}

	path := *output
	if path == "" {
		path = cfg.Path(cfg.Library.Feed)
	}
	data, err := encodeFeed(doc, path)
	if err != nil {
		return err
	}
	if path == "" {
		_, err = os.Stdout.Write(data)
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	fmt.Printf("Wrote %s: %d classes, %d functions, %d enums\n", path, len(doc.Classes), len(doc.Functions), len(doc.Enums))
	return nil
}

func encodeFeed(doc *feed.Document, path string) ([]byte, error) {
	if filepath.Ext(path) == ".json" {
		data, err := json.MarshalIndent(doc, "", "  ")
		if err != nil {
			return nil, err
		}
		return append(data, '\n'), nil
	}
	l, err := feed.NewLoader()
	if err != nil {
		return nil, err
	}
	return l.Format(doc)
}
