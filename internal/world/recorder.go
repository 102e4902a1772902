package world

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/voxflow/voxflow/internal/engine"
	"github.com/voxflow/voxflow/pkg/schema"
)

// Runner is the dispatcher surface the Recorder wraps.
type Runner interface {
	Run(ctx context.Context, def *schema.WorkflowDefinition, in engine.Input) (*engine.Result, error)
}

// Recorder wraps a dispatcher invocation and persists the run, its
// executed steps, and the event log. Persistence failures are logged,
// not fatal: the run outcome wins over bookkeeping.
type Recorder struct {
	store  Store
	runner Runner
	logger *slog.Logger
}

// NewRecorder creates a Recorder over the given store and runner.
func NewRecorder(store Store, runner Runner, logger *slog.Logger) *Recorder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Recorder{store: store, runner: runner, logger: logger}
}

// Dispatch runs the definition and records the full run history. memoID
// ties the run to its input for auto-run dedup; it may be empty.
func (r *Recorder) Dispatch(ctx context.Context, def *schema.WorkflowDefinition, in engine.Input, memoID string) (*engine.Result, error) {
	result, runErr := r.runner.Run(ctx, def, in)
	if result == nil {
		return nil, runErr
	}

	run := &Run{
		ID:           result.RunID,
		WorkflowID:   def.ID,
		WorkflowName: def.Name,
		MemoID:       memoID,
		Status:       result.Status,
		CreatedAt:    result.StartedAt,
		StartedAt:    &result.StartedAt,
		CompletedAt:  &result.CompletedAt,
		DurationMs:   result.CompletedAt.Sub(result.StartedAt).Milliseconds(),
	}
	if result.Error != nil {
		run.ErrorMessage = result.Error.Message
	}

	if err := r.store.CreateRun(ctx, run); err != nil {
		r.logger.Error("persist run", "run_id", run.ID, "error", err.Error())
		return result, runErr
	}

	r.appendEvent(ctx, run.ID, schema.EventRunCreated, nil, result.StartedAt)
	r.appendEvent(ctx, run.ID, schema.EventRunStarted, nil, result.StartedAt)

	for _, step := range result.Steps {
		rs := &RunStep{
			RunID:        run.ID,
			StepNumber:   step.StepNumber,
			StepID:       step.StepID,
			StepType:     step.StepType,
			InputPreview: step.InputPreview,
			Output:       step.Output,
			OutputKey:    step.OutputKey,
			DurationMs:   step.DurationMs,
		}
		if err := r.store.CreateStep(ctx, rs); err != nil {
			r.logger.Error("persist step", "run_id", run.ID, "step_id", step.StepID, "error", err.Error())
			continue
		}
		payload, _ := json.Marshal(step)
		r.appendEvent(ctx, run.ID, schema.EventStepCompleted, payload, time.Time{})
	}

	switch result.Status {
	case schema.RunStatusCompleted:
		r.appendEvent(ctx, run.ID, schema.EventRunCompleted, nil, result.CompletedAt)
	case schema.RunStatusFailed:
		payload, _ := json.Marshal(failurePayload{Error: run.ErrorMessage})
		r.appendEvent(ctx, run.ID, schema.EventRunFailed, payload, result.CompletedAt)
	case schema.RunStatusCancelled:
		r.appendEvent(ctx, run.ID, schema.EventRunCancelled, nil, result.CompletedAt)
	}

	return result, runErr
}

func (r *Recorder) appendEvent(ctx context.Context, runID, eventType string, payload json.RawMessage, at time.Time) {
	ev := &RunEvent{RunID: runID, Type: eventType, Payload: payload, CreatedAt: at}
	if err := r.store.AppendEvent(ctx, ev); err != nil {
		r.logger.Error("append event", "run_id", runID, "event_type", eventType, "error", err.Error())
	}
}
