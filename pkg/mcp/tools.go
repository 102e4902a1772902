package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/voxflow/voxflow/internal/engine"
	"github.com/voxflow/voxflow/internal/intent"
	"github.com/voxflow/voxflow/internal/world"
	"github.com/voxflow/voxflow/pkg/schema"
)

// handleRun executes a workflow definition on the supplied transcript.
func (s *VoxflowServer) handleRun(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	workflowID, err := req.RequireString("workflow_id")
	if err != nil {
		return mcp.NewToolResultError("workflow_id is required"), nil
	}

	// Capture session mapping for run-finished notifications.
	s.captureSession(ctx, workflowID)

	def, defErr := s.library.Get(ctx, workflowID)
	if defErr != nil {
		return mcp.NewToolResultError(fmt.Sprintf("workflow lookup failed: %v", defErr)), nil
	}

	in := engine.Input{
		SourceText: req.GetString("transcript", ""),
		Title:      req.GetString("title", ""),
		Date:       time.Now().UTC(),
		AudioPath:  req.GetString("audio_path", ""),
	}
	memoID := req.GetString("memo_id", "")

	result, runErr := s.dispatcher.Dispatch(ctx, def, in, memoID)
	if runErr != nil {
		if result != nil {
			s.notifyRunFinished(ctx, workflowID, result)
		}
		return mcp.NewToolResultError(fmt.Sprintf("workflow execution failed: %v", runErr)), nil
	}

	s.notifyRunFinished(ctx, workflowID, result)
	return marshalResult(result)
}

// handleDefine registers or replaces a workflow definition.
func (s *VoxflowServer) handleDefine(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	defRaw := mcp.ParseStringMap(req, "definition", nil)
	if defRaw == nil {
		return mcp.NewToolResultError("definition is required"), nil
	}

	// Marshal then unmarshal so the typed step decoder applies.
	defBytes, marshalErr := json.Marshal(defRaw)
	if marshalErr != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid definition: %v", marshalErr)), nil
	}
	def := &schema.WorkflowDefinition{}
	if unmarshalErr := json.Unmarshal(defBytes, def); unmarshalErr != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid definition: %v", unmarshalErr)), nil
	}

	if saveErr := s.library.Save(ctx, def); saveErr != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to save definition: %v", saveErr)), nil
	}

	return marshalResult(map[string]any{
		"workflow_id": def.ID,
		"name":        def.Name,
		"steps":       len(def.Steps),
	})
}

// handleIntents classifies text against an intent catalog and routes the
// matches to their target workflows.
func (s *VoxflowServer) handleIntents(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	text, err := req.RequireString("text")
	if err != nil {
		return mcp.NewToolResultError("text is required"), nil
	}

	cfg, cfgErr := s.intentCatalog(ctx, req.GetString("workflow_id", ""))
	if cfgErr != nil {
		return mcp.NewToolResultError(cfgErr.Error()), nil
	}
	if method := req.GetString("method", ""); method != "" {
		cfg.Method = method
	}

	intents, extractErr := s.extractor.Extract(ctx, text, cfg)
	if extractErr != nil {
		return mcp.NewToolResultError(fmt.Sprintf("intent extraction failed: %v", extractErr)), nil
	}

	defs, listErr := s.library.List(ctx)
	if listErr != nil {
		return mcp.NewToolResultError(fmt.Sprintf("definition list failed: %v", listErr)), nil
	}
	routed := intent.Route(intents, defs)

	return marshalResult(map[string]any{"intents": routed})
}

// handleRuns lists run history, or the step records of a single run.
func (s *VoxflowServer) handleRuns(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if runID := req.GetString("run_id", ""); runID != "" {
		steps, err := s.store.ListSteps(ctx, runID)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("step query failed: %v", err)), nil
		}
		return marshalResult(map[string]any{"run_id": runID, "steps": steps})
	}

	filter := mcp.ParseStringMap(req, "filter", nil)
	rf := world.RunFilter{
		Limit: extractInt(filter, "limit", 50),
	}
	if wfID, ok := filter["workflow_id"].(string); ok {
		rf.WorkflowID = wfID
	}
	if memoID, ok := filter["memo_id"].(string); ok {
		rf.MemoID = memoID
	}
	if status, ok := filter["status"].(string); ok && status != "" {
		rs := schema.RunStatus(status)
		rf.Status = &rs
	}

	runs, err := s.store.ListRuns(ctx, rf)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("run query failed: %v", err)), nil
	}
	return marshalResult(map[string]any{"runs": runs})
}

// handleReplay folds a run's event log into a fresh state and reports
// whether it agrees with the stored snapshot.
func (s *VoxflowServer) handleReplay(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	runID, err := req.RequireString("run_id")
	if err != nil {
		return mcp.NewToolResultError("run_id is required"), nil
	}

	replayed, replayErr := s.store.Replay(ctx, runID)
	if replayErr != nil {
		return mcp.NewToolResultError(fmt.Sprintf("replay failed: %v", replayErr)), nil
	}
	snapshot, snapErr := s.store.GetRun(ctx, runID)
	if snapErr != nil {
		return mcp.NewToolResultError(fmt.Sprintf("snapshot lookup failed: %v", snapErr)), nil
	}

	return marshalResult(map[string]any{
		"replayed":   replayed,
		"snapshot":   snapshot,
		"consistent": replayed.Status == snapshot.Status,
	})
}

// --- Internal helpers ---

// intentCatalog finds the extract-intents configuration to classify
// against: from the named workflow, or the first definition carrying one.
func (s *VoxflowServer) intentCatalog(ctx context.Context, workflowID string) (*schema.ExtractIntentsConfig, error) {
	if workflowID != "" {
		def, err := s.library.Get(ctx, workflowID)
		if err != nil {
			return nil, fmt.Errorf("workflow lookup failed: %w", err)
		}
		if cfg := extractIntentsConfig(def); cfg != nil {
			return cfg, nil
		}
		return nil, fmt.Errorf("workflow %q has no extract-intents step", workflowID)
	}

	defs, err := s.library.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("definition list failed: %w", err)
	}
	for _, def := range defs {
		if cfg := extractIntentsConfig(def); cfg != nil {
			return cfg, nil
		}
	}
	return nil, fmt.Errorf("no definition carries an extract-intents step")
}

func extractIntentsConfig(def *schema.WorkflowDefinition) *schema.ExtractIntentsConfig {
	for _, step := range def.Steps {
		if cfg, ok := step.Config.(*schema.ExtractIntentsConfig); ok {
			cp := *cfg
			return &cp
		}
	}
	return nil
}

// extractInt safely extracts an integer from a filter map.
func extractInt(filter map[string]any, key string, defaultVal int) int {
	if filter == nil {
		return defaultVal
	}
	v, ok := filter[key]
	if !ok {
		return defaultVal
	}
	switch val := v.(type) {
	case float64:
		return int(val)
	case int:
		return val
	case string:
		if n, err := strconv.Atoi(val); err == nil {
			return n
		}
	}
	return defaultVal
}

// captureSession maps the workflow ID to the calling MCP session so run
// completion can be pushed back to it.
func (s *VoxflowServer) captureSession(ctx context.Context, workflowID string) {
	if session := server.ClientSessionFromContext(ctx); session != nil {
		s.sessions.Register(workflowID, session.SessionID())
	}
}

// notifyRunFinished pushes a run summary to the session that started it.
func (s *VoxflowServer) notifyRunFinished(ctx context.Context, workflowID string, result *engine.Result) {
	notifier := NewRunNotifier(s.mcpServer, s.sessions)
	payload := map[string]any{
		"run_id":      result.RunID,
		"workflow_id": workflowID,
		"status":      string(result.Status),
	}
	if err := notifier.Notify(ctx, workflowID, payload); err != nil {
		s.logger.Warn("run notification failed",
			"workflow_id", workflowID,
			"error", err.Error(),
		)
	}
}

// marshalResult converts a value to a JSON text tool result.
func marshalResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal result: %v", err)), nil
	}
	return mcp.NewToolResultJSON(json.RawMessage(data))
}
