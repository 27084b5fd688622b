// Command colloquy serves the simulation API and offers a terminal viewer for
// running simulations.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/hupe1980/colloquy"
	"github.com/hupe1980/colloquy/catalog"
	"github.com/hupe1980/colloquy/config"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

const usage = `usage: colloquy <command> [flags]

commands:
  serve                       run the HTTP API
  watch [-server URL] <id>    follow a simulation in the terminal
  models [-json]              print the model catalog
  version                     print the version
`

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		fmt.Fprint(stderr, usage)
		return 2
	}

	var err error
	switch args[0] {
	case "serve":
		err = serve()
	case "watch":
		err = watch(args[1:], stderr)
	case "models":
		err = models(args[1:], stdout, stderr)
	case "version":
		fmt.Fprintf(stdout, "colloquy %s\n", version)
	case "help", "-h", "--help":
		fmt.Fprint(stdout, usage)
	default:
		fmt.Fprintf(stderr, "unknown command %q\n\n%s", args[0], usage)
		return 2
	}

	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		fmt.Fprintf(stderr, "colloquy: %v\n", err)
		return 1
	}
	return 0
}

func serve() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	app, err := colloquy.New(func(o *colloquy.Options) { o.Config = cfg })
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return app.Serve(ctx)
}

func models(args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("models", flag.ContinueOnError)
	fs.SetOutput(stderr)
	asJSON := fs.Bool("json", false, "print JSON")
	path := fs.String("catalog", "", "catalog file (defaults to the configured path)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if *path == "" {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		*path = cfg.Catalog.Path
	}

	c, err := catalog.Read(*path)
	if err != nil {
		return fmt.Errorf("catalog %s: %w", *path, err)
	}
	return printCatalog(stdout, c, *asJSON)
}

func printCatalog(w io.Writer, c catalog.Catalog, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(c)
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tPROVIDER\tNAME")
	for _, m := range c.Models {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", m.ID, m.Provider, m.DisplayName)
	}
	return tw.Flush()
}
