package mcptools

import (
	"context"
	"net/http"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// version is set by the linker at build time.
var version = "dev"

// NewRunControlServer creates an MCP server with the 6 run-control tools
// registered: run_status, submit_gavel, read_output, tail_thread,
// abort_run, and list_runs.
func NewRunControlServer(svc *RunService) *mcp.Server {
	server := mcp.NewServer(&mcp.Implementation{
		Name:    "conductor",
		Version: version,
	}, nil)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "run_status",
		Description: "Get the current state of a run: phase and action statuses, and the pending review request if the run is suspended.",
	}, svc.RunStatus)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "submit_gavel",
		Description: "Deliver a review decision (approved, rejected, or skipped) to a suspended run, optionally with edited field values.",
	}, svc.SubmitGavel)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "read_output",
		Description: "Read an output block from a run, either the latest version or a specific historical version.",
	}, svc.ReadOutput)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "tail_thread",
		Description: "Return the last entries of a run's conversation thread, e.g. phase:draft.",
	}, svc.TailThread)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "abort_run",
		Description: "Request cancellation of a run. In-flight model calls finish but their results are discarded.",
	}, svc.AbortRun)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "list_runs",
		Description: "List every registered run with its status and whether it is suspended on review.",
	}, svc.ListRuns)

	return server
}

// RunMCPServer starts an HTTP server exposing the run-control MCP tools.
func RunMCPServer(ctx context.Context, svc *RunService, addr string) error {
	server := NewRunControlServer(svc)

	handler := mcp.NewStreamableHTTPHandler(
		func(_ *http.Request) *mcp.Server { return server },
		nil,
	)

	httpServer := &http.Server{
		Addr:    addr,
		Handler: handler,
	}

	// Shutdown gracefully when context is cancelled.
	go func() {
		<-ctx.Done()
		httpServer.Shutdown(context.Background())
	}()

	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// RunMCPServerStdio runs the MCP server on stdio transport, blocking until
// stdin is closed or the context is cancelled.
func RunMCPServerStdio(ctx context.Context, server *mcp.Server) error {
	return server.Run(ctx, &mcp.StdioTransport{})
}
