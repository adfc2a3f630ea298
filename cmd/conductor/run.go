package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/dusk-indust/conductor/internal/backend"
	"github.com/dusk-indust/conductor/internal/dispatch"
	"github.com/dusk-indust/conductor/internal/export"
	"github.com/dusk-indust/conductor/internal/gavel"
	"github.com/dusk-indust/conductor/internal/mcptools"
	"github.com/dusk-indust/conductor/internal/modelagent"
	"github.com/dusk-indust/conductor/internal/orchestrator"
	"github.com/dusk-indust/conductor/internal/pipeline"
	"github.com/dusk-indust/conductor/internal/presets"
	"github.com/dusk-indust/conductor/internal/scope"
)

// loadDefinition resolves the pipeline from --preset or --definition.
func loadDefinition(flags cliFlags) (*pipeline.Definition, error) {
	switch {
	case flags.Preset != "" && flags.Definition != "":
		return nil, fmt.Errorf("--preset and --definition are mutually exclusive")
	case flags.Preset != "":
		return presets.Load(flags.Preset)
	case flags.Definition != "":
		return pipeline.Load(flags.Definition)
	default:
		return nil, fmt.Errorf("one of --definition or --preset is required (presets: %s)",
			strings.Join(presets.Names(), ", "))
	}
}

// executeRun wires the dispatcher, optional stub fleet, and optional MCP
// surface, then drives the run with an interactive review loop.
func executeRun(def *pipeline.Definition, flags cliFlags) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if flags.Stub {
		registry := modelagent.NewRegistry()
		endpoints, err := registry.SpawnAll(ctx, flags.StubPort)
		if err != nil {
			return err
		}
		defer registry.StopAll(context.Background())
		retargetAgents(def, endpoints)
		if flags.Verbose {
			for name, url := range endpoints {
				fmt.Fprintf(os.Stderr, "stub %s listening on %s\n", name, url)
			}
		}
	}

	d := dispatch.New(backend.NewHTTPBackend(), dispatch.Config{
		MaxConcurrent: flags.MaxCalls,
	})

	var opts []orchestrator.Option
	if flags.StateDir != "" {
		durable, err := scope.NewFileDurable(flags.StateDir)
		if err != nil {
			return err
		}
		opts = append(opts, orchestrator.WithDurable(durable))
	}

	runner, err := orchestrator.NewRunner(def, d, opts...)
	if err != nil {
		return err
	}

	for _, seed := range flags.Seeds {
		ref, value, _ := strings.Cut(seed, "=")
		sc, key, err := pipeline.SplitRef(ref)
		if err != nil {
			return fmt.Errorf("bad --set %q: %w", seed, err)
		}
		if err := runner.Store().Set(sc, key, value); err != nil {
			return fmt.Errorf("bad --set %q: %w", seed, err)
		}
	}

	if flags.ServeMCP != "" {
		svc := mcptools.NewRunService()
		svc.Register(runner)
		go func() {
			if err := mcptools.RunMCPServer(ctx, svc, flags.ServeMCP); err != nil {
				fmt.Fprintf(os.Stderr, "mcp server: %v\n", err)
			}
		}()
	}

	events := runner.Events()
	go func() {
		for ev := range events {
			fmt.Println(orchestrator.FormatEvent(ev))
		}
	}()

	go func() {
		<-ctx.Done()
		runner.Abort()
	}()

	reportCh := make(chan *orchestrator.Report, 1)
	go func() {
		report, err := runner.Run(context.Background())
		if err != nil {
			fmt.Fprintf(os.Stderr, "run: %v\n", err)
		}
		reportCh <- report
	}()

	report := reviewLoop(runner, reportCh)
	if report == nil {
		return fmt.Errorf("run did not produce a report")
	}

	printSummary(report)

	if flags.Export != "" {
		if err := writeExport(runner, report, flags.Export); err != nil {
			return err
		}
	}

	if report.Status != orchestrator.RunCompleted {
		return fmt.Errorf("run finished with status %s", report.Status)
	}
	return nil
}

// retargetAgents points every agent at a stub endpoint. An agent whose
// model names a stub ("stub/lorem") gets that stub; everything else gets
// echo.
func retargetAgents(def *pipeline.Definition, endpoints map[string]string) {
	for i := range def.Agents {
		target := endpoints["echo"]
		if name, ok := strings.CutPrefix(def.Agents[i].API.Model, "stub/"); ok {
			if url, found := endpoints[name]; found {
				target = url
			}
		}
		def.Agents[i].API.Endpoint = target
	}
}

// reviewLoop blocks until the run terminates, prompting on stdin whenever
// the run suspends for review.
func reviewLoop(runner *orchestrator.Runner, reportCh <-chan *orchestrator.Report) *orchestrator.Report {
	reader := bufio.NewReader(os.Stdin)
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	var prompted string
	for {
		select {
		case report := <-reportCh:
			return report
		case <-ticker.C:
			pending := runner.PendingReview()
			if pending == nil || pending.PhaseID == prompted {
				continue
			}
			prompted = pending.PhaseID

			fmt.Printf("\n--- review: phase %s ---\n", pending.PhaseID)
			if pending.Prompt != "" {
				fmt.Println(pending.Prompt)
			}
			fmt.Println(pending.Output)
			choices := "approve/reject"
			if pending.CanSkip {
				choices += "/skip"
			}
			fmt.Printf("[%s] > ", choices)

			line, err := reader.ReadString('\n')
			if err != nil {
				runner.Abort()
				continue
			}
			if err := submitDecision(runner, strings.TrimSpace(line)); err != nil {
				fmt.Fprintf(os.Stderr, "review: %v\n", err)
				prompted = "" // re-prompt the same phase
			}
		}
	}
}

// submitDecision parses "approve", "reject <comment>", or "skip" input.
func submitDecision(runner *orchestrator.Runner, line string) error {
	verb, rest, _ := strings.Cut(line, " ")
	resp := gavel.Response{Commentary: strings.TrimSpace(rest)}

	switch strings.ToLower(verb) {
	case "approve", "a":
		resp.Decision = gavel.DecisionApproved
	case "reject", "r":
		resp.Decision = gavel.DecisionRejected
	case "skip", "s":
		resp.Decision = gavel.DecisionSkipped
	case "abort":
		runner.Abort()
		return nil
	default:
		return fmt.Errorf("unknown decision %q", verb)
	}
	return runner.SubmitGavel(resp)
}

func printSummary(report *orchestrator.Report) {
	fmt.Printf("\nrun %s: %s\n", report.RunID, report.Status)
	if report.Failure != nil {
		fmt.Printf("failed at phase %s", report.Failure.PhaseID)
		if report.Failure.ActionID != "" {
			fmt.Printf(", action %s", report.Failure.ActionID)
		}
		fmt.Printf(": %s\n", report.Failure.Message)
		for _, e := range report.Failure.ThreadTail {
			fmt.Printf("  %3d %s: %.80s\n", e.Seq, e.SpeakerID, e.Content)
		}
	}
}

func writeExport(runner *orchestrator.Runner, report *orchestrator.Report, path string) error {
	doc := export.ExportRun(runner, report)
	if path == "-" {
		return doc.WriteJSON(os.Stdout)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("export: %w", err)
	}
	defer f.Close()
	return doc.WriteJSON(f)
}
