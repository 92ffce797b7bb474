package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"

	"github.com/rust-qt/ritual/diag"
	"github.com/rust-qt/ritual/pipeline"
)

// handleGenerateCommand processes the `ritual generate` subcommand.
// Usage:
//
//	ritual generate                      # project found from the current dir
//	ritual generate -C ../qt_core        # another project
//	ritual generate -sizes sizes.toml    # with size probe output
//	ritual generate -dry-run -report     # compute and print diagnostics only
func handleGenerateCommand(args []string) error {
	fs := flag.NewFlagSet("generate", flag.ExitOnError)
	var common commonFlags
	common.register(fs)
	sizes := fs.String("sizes", "", "Size probe output to merge over [sizes]")
	dryRun := fs.Bool("dry-run", false, "Do not write output trees or touch the cache")
	report := fs.Bool("report", false, "Print the diagnostics report after the run")
	fs.Parse(args)

	cfg, err := common.setup()
	if err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	res, err := pipeline.Generate(ctx, cfg, pipeline.Options{SizesFile: *sizes, DryRun: *dryRun})
	if err != nil {
		return err
	}
	fmt.Printf("%s: %d wrapper files, %d crate files", cfg.Library.Name, len(res.Wrapper), len(res.Crate))
	if res.Go != nil {
		fmt.Printf(", %d Go files", len(res.Go))
	}
	fmt.Printf(" (%d changed)\n", res.Written)
	if s := diag.Summary(res.Run.Diagnostics); s != "" {
		fmt.Printf("diagnostics: %s\n", s)
	}
	if *report {
		return diag.WriteReport(os.Stdout, res.Run.Diagnostics)
	}
	return nil
}

// handleReportCommand processes the `ritual report` subcommand.
func handleReportCommand(args []string) error {
	fs := flag.NewFlagSet("report", flag.ExitOnError)
	var common commonFlags
	common.register(fs)
	fs.Parse(args)

	cfg, err := common.setup()
	if err != nil {
		return err
	}
	return pipeline.Report(cfg, os.Stdout)
}
