// ritual generates C wrappers, a Rust crate and optionally a Go package
// for a C++ library.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/tliron/commonlog"
	_ "github.com/tliron/commonlog/simple"

	"github.com/rust-qt/ritual/config"
)

var commands = map[string]func(args []string) error{
	"generate": handleGenerateCommand,
	"scan":     handleScanCommand,
	"report":   handleReportCommand,
	"cache":    handleCacheCommand,
}

func usage() {
	fmt.Fprintf(os.Stderr, "Usage: ritual <command> [options]\n\n")
	fmt.Fprintf(os.Stderr, "Commands:\n")
	fmt.Fprintf(os.Stderr, "  generate   process the library configured in ritual.toml\n")
	fmt.Fprintf(os.Stderr, "  scan       turn the configured headers into a declaration feed\n")
	fmt.Fprintf(os.Stderr, "  report     print the diagnostics of the latest run\n")
	fmt.Fprintf(os.Stderr, "  cache      list or delete stored snapshots\n")
	fmt.Fprintf(os.Stderr, "\nExamples:\n")
	fmt.Fprintf(os.Stderr, "  ritual generate -v                    # run with info logging\n")
	fmt.Fprintf(os.Stderr, "  ritual generate -sizes probe.toml     # merge size probe output\n")
	fmt.Fprintf(os.Stderr, "  ritual scan -o feed.cue               # write a CUE feed\n")
	fmt.Fprintf(os.Stderr, "  ritual cache delete shapes            # forget a dependency snapshot\n")
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}
	handler, ok := commands[os.Args[1]]
	if !ok {
		if os.Args[1] != "-h" && os.Args[1] != "help" {
			fmt.Fprintf(os.Stderr, "Unknown command %q\n\n", os.Args[1])
		}
		usage()
		os.Exit(2)
	}
	if err := handler(os.Args[2:]); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// commonFlags are accepted by every command.
type commonFlags struct {
	dir     string
	verbose int
}

func (c *commonFlags) register(fs *flag.FlagSet) {
	fs.StringVar(&c.dir, "C", ".", "Start searching for ritual.toml in this directory")
	fs.BoolFunc("v", "Increase verbosity (repeatable)", func(string) error {
		c.verbose++
		return nil
	})
}

// setup configures logging and loads the project file.
func (c *commonFlags) setup() (*config.Config, error) {
	commonlog.Configure(c.verbose+1, nil)
	return config.FindAndLoad(c.dir)
}
