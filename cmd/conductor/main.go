// Command conductor runs LLM pipeline definitions: it dispatches model
// calls through a shared concurrency cap, suspends on review gates, and
// prints progress to the terminal. With --stub it spawns a local stub
// fleet so pipelines run with no model provider configured.
package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/dusk-indust/conductor/internal/config"
)

// CLI flags parsed from command line.
type cliFlags struct {
	Definition string
	Preset     string
	StateDir   string
	Stub       bool
	StubPort   int
	Seeds      []string
	MaxCalls   int
	Diagram    bool
	Export     string
	ServeMCP   string
	Verbose    bool
	Version    bool
}

// version is set by goreleaser at build time.
var version = "dev"

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	var flags cliFlags

	// conductor.yml supplies defaults; flags override.
	cfg, err := config.Load(".")
	if err != nil {
		return fmt.Errorf("load conductor.yml: %w", err)
	}
	if cfg.StubPort == 0 {
		cfg.StubPort = 9101
	}

	fs := flag.NewFlagSet("conductor", flag.ContinueOnError)
	fs.StringVar(&flags.Definition, "definition", cfg.Definition, "path to a pipeline definition YAML")
	fs.StringVar(&flags.Preset, "preset", "", "run an embedded preset pipeline (article, triage)")
	fs.StringVar(&flags.StateDir, "state-dir", cfg.StateDir, "directory for durable store scopes")
	fs.BoolVar(&flags.Stub, "stub", cfg.Stub, "spawn the local stub fleet and route all agents to it")
	fs.IntVar(&flags.StubPort, "stub-port", cfg.StubPort, "base port for the stub fleet")
	fs.Func("set", "seed a context value as scope.key=value (repeatable)", func(v string) error {
		if !strings.Contains(v, "=") {
			return fmt.Errorf("want scope.key=value, got %q", v)
		}
		flags.Seeds = append(flags.Seeds, v)
		return nil
	})
	fs.IntVar(&flags.MaxCalls, "max-calls", cfg.MaxCalls, "override the in-flight call cap (default 3)")
	fs.BoolVar(&flags.Diagram, "diagram", false, "print a Mermaid diagram of the pipeline and exit")
	fs.StringVar(&flags.Export, "export", "", "write the run export JSON to this path ('-' for stdout)")
	fs.StringVar(&flags.ServeMCP, "serve-mcp", cfg.MCPAddr, "also serve run-control MCP tools on this address")
	fs.BoolVar(&flags.Verbose, "verbose", cfg.Verbose, "enable verbose output")
	fs.BoolVar(&flags.Version, "version", false, "print version and exit")

	if err := fs.Parse(args); err != nil {
		return err
	}

	if flags.Version {
		fmt.Println(version)
		return nil
	}

	def, err := loadDefinition(flags)
	if err != nil {
		return err
	}

	if flags.Diagram {
		return printDiagram(def)
	}

	return executeRun(def, flags)
}
