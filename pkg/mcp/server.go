// Package mcp exposes the engine over the Model Context Protocol so
// agent clients can run workflows, extract intents and inspect run
// history.
package mcp

import (
	"context"
	"log/slog"
	"os"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/voxflow/voxflow/internal/engine"
	"github.com/voxflow/voxflow/internal/intent"
	"github.com/voxflow/voxflow/internal/library"
	"github.com/voxflow/voxflow/internal/world"
	"github.com/voxflow/voxflow/pkg/schema"
)

// Dispatcher runs a workflow and records the run. Satisfied by
// *world.Recorder.
type Dispatcher interface {
	Dispatch(ctx context.Context, def *schema.WorkflowDefinition, in engine.Input, memoID string) (*engine.Result, error)
}

// VoxflowServerDeps holds the dependencies for creating a VoxflowServer.
type VoxflowServerDeps struct {
	Library    *library.Library
	Dispatcher Dispatcher
	Store      world.Store
	Extractor  *intent.Extractor
	Logger     *slog.Logger
}

// VoxflowServer wraps an MCP server with voxflow-specific tool handlers.
type VoxflowServer struct {
	library    *library.Library
	dispatcher Dispatcher
	store      world.Store
	extractor  *intent.Extractor
	sessions   *SessionRegistry
	logger     *slog.Logger
	mcpServer  *server.MCPServer
}

// NewVoxflowServer creates a new VoxflowServer with all 5 tools registered.
func NewVoxflowServer(deps VoxflowServerDeps) *VoxflowServer {
	logger := deps.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	}

	s := &VoxflowServer{
		library:    deps.Library,
		dispatcher: deps.Dispatcher,
		store:      deps.Store,
		extractor:  deps.Extractor,
		sessions:   NewSessionRegistry(),
		logger:     logger,
	}

	mcpSrv := server.NewMCPServer(
		"voxflow",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithRecovery(),
		server.WithInstructions("Voxflow turns voice-memo transcripts into automated workflow runs. Use voxflow.run to execute a workflow on a transcript, voxflow.define to register workflow definitions, voxflow.intents to classify free text into routed intents, voxflow.runs to browse run history, and voxflow.replay to rebuild a run from its event log."),
	)

	mcpSrv.AddTools(s.tools()...)
	s.mcpServer = mcpSrv
	return s
}

// Serve starts the stdio transport and blocks until ctx is cancelled or stdin closes.
func (s *VoxflowServer) Serve(ctx context.Context) error {
	stdio := server.NewStdioServer(s.mcpServer)
	return stdio.Listen(ctx, os.Stdin, os.Stdout)
}

// MCPServer returns the underlying MCPServer for testing or custom transports.
func (s *VoxflowServer) MCPServer() *server.MCPServer {
	return s.mcpServer
}

// tools returns the 5 registered MCP tools as ServerTool entries.
func (s *VoxflowServer) tools() []server.ServerTool {
	return []server.ServerTool{
		{Tool: runTool(), Handler: s.handleRun},
		{Tool: defineTool(), Handler: s.handleDefine},
		{Tool: intentsTool(), Handler: s.handleIntents},
		{Tool: runsTool(), Handler: s.handleRuns},
		{Tool: replayTool(), Handler: s.handleReplay},
	}
}

// --- Tool definitions ---

func runTool() mcp.Tool {
	return mcp.NewTool("voxflow.run",
		mcp.WithDescription("Execute a workflow on a transcript"),
		mcp.WithString("workflow_id", mcp.Required(), mcp.Description("ID of the workflow definition to run")),
		mcp.WithString("transcript", mcp.Description("Transcript text the workflow operates on")),
		mcp.WithString("title", mcp.Description("Memo title, available to templates as {{title}}")),
		mcp.WithString("audio_path", mcp.Description("Path to the source audio file, for transcription steps")),
		mcp.WithString("memo_id", mcp.Description("Source memo ID, recorded with the run")),
	)
}

func defineTool() mcp.Tool {
	return mcp.NewTool("voxflow.define",
		mcp.WithDescription("Register or replace a workflow definition"),
		mcp.WithObject("definition", mcp.Required(), mcp.Description("Workflow definition object with id, name and steps")),
	)
}

func intentsTool() mcp.Tool {
	return mcp.NewTool("voxflow.intents",
		mcp.WithDescription("Classify free text into intents and route them to target workflows"),
		mcp.WithString("text", mcp.Required(), mcp.Description("Text to classify")),
		mcp.WithString("workflow_id", mcp.Description("Workflow whose extract-intents step supplies the intent catalog (default: first definition with one)")),
		mcp.WithString("method", mcp.Description("Extraction method override"),
			mcp.Enum("keywords", "llm", "hybrid"),
		),
	)
}

func runsTool() mcp.Tool {
	return mcp.NewTool("voxflow.runs",
		mcp.WithDescription("Query run history, or the step records of one run"),
		mcp.WithString("run_id", mcp.Description("Return the step records of this run instead of a run list")),
		mcp.WithObject("filter", mcp.Description("Filter criteria (workflow_id, memo_id, status, limit)")),
	)
}

func replayTool() mcp.Tool {
	return mcp.NewTool("voxflow.replay",
		mcp.WithDescription("Rebuild a run's state from its event log and compare it with the stored snapshot"),
		mcp.WithString("run_id", mcp.Required(), mcp.Description("ID of the run to replay")),
	)
}
