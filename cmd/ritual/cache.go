package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/rust-qt/ritual/depcache"
	"github.com/rust-qt/ritual/pipeline"
)

// handleCacheCommand processes the `ritual cache` subcommand.
// Usage:
//
//	ritual cache list             # stored snapshots
//	ritual cache runs [-n 10]     # run history of the project library
//	ritual cache delete <library> # forget a snapshot and its runs
func handleCacheCommand(args []string) error {
	fs := flag.NewFlagSet("cache", flag.ExitOnError)
	var common commonFlags
	common.register(fs)
	limit := fs.Int("n", 10, "Number of runs to list")
	fs.Parse(args)
	rest := fs.Args()
	if len(rest) == 0 {
		return errors.New("usage: ritual cache list | runs | delete <library>")
	}

	cfg, err := common.setup()
	if err != nil {
		return err
	}
	cache, err := depcache.Open(cfg.Path(cfg.Output.Cache))
	if err != nil {
		return err
	}
	defer cache.Close()

	switch rest[0] {
	case "list":
		entries, err := cache.List()
		if err != nil {
			return err
		}
		tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "LIBRARY\tDIGEST\tSTORED")
		for _, e := range entries {
			fmt.Fprintf(tw, "%s\t%.12s\t%s\n", e.Library, e.Digest, e.Stored.Format("2006-01-02 15:04:05"))
		}
		return tw.Flush()
	case "runs":
		runs, err := cache.Runs(cfg.Library.Name, *limit)
		if err != nil {
			return err
		}
		for _, r := range runs {
			if err := pipeline.WriteRun(os.Stdout, r); err != nil {
				return err
			}
		}
		return nil
	case "delete":
		if len(rest) != 2 {
			return errors.New("usage: ritual cache delete <library>")
		}
		if err := cache.Delete(rest[1]); err != nil {
			return err
		}
		fmt.Printf("Deleted snapshot of %s from %s\n", rest[1], cache.Path())
		return nil
	}
	return fmt.Errorf("unknown cache command %q", rest[0])
}
