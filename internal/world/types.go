package world

import (
	"encoding/json"
	"time"

	"github.com/voxflow/voxflow/pkg/schema"
)

// Run is one execution instance of a workflow against one input.
// Mutations after creation happen only through event append; the row is
// updated to mirror the folded state for cheap listing.
type Run struct {
	ID           string           `json:"id"`
	WorkflowID   string           `json:"workflow_id"`
	WorkflowName string           `json:"workflow_name,omitempty"`
	MemoID       string           `json:"memo_id,omitempty"`
	Status       schema.RunStatus `json:"status"`
	CreatedAt    time.Time        `json:"created_at"`
	StartedAt    *time.Time       `json:"started_at,omitempty"`
	CompletedAt  *time.Time       `json:"completed_at,omitempty"`
	DurationMs   int64            `json:"duration_ms,omitempty"`
	ErrorMessage string           `json:"error_message,omitempty"`
}

// RunStep is the persisted form of one executed step.
type RunStep struct {
	RunID        string          `json:"run_id"`
	StepNumber   int             `json:"step_number"`
	StepID       string          `json:"step_id"`
	StepType     schema.StepType `json:"step_type"`
	InputPreview string          `json:"input_preview,omitempty"`
	Output       string          `json:"output,omitempty"`
	OutputKey    string          `json:"output_key,omitempty"`
	DurationMs   int64           `json:"duration_ms,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
}

// RunEvent is one entry in a run's append-only event log. Sequence is
// strictly monotonic per run, starting at 1.
type RunEvent struct {
	ID        int64           `json:"id,omitempty"`
	RunID     string          `json:"run_id"`
	Sequence  int64           `json:"sequence"`
	Type      string          `json:"event_type"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

// RunFilter narrows ListRuns.
type RunFilter struct {
	WorkflowID string
	MemoID     string
	Status     *schema.RunStatus
	Limit      int
}

// ScheduledJob re-runs a workflow on a cron schedule.
type ScheduledJob struct {
	ID            string     `json:"id"`
	WorkflowID    string     `json:"workflow_id"`
	CronExpr      string     `json:"cron_expr"`
	Enabled       bool       `json:"enabled"`
	LastRunAt     *time.Time `json:"last_run_at,omitempty"`
	NextRunAt     *time.Time `json:"next_run_at,omitempty"`
	LastRunStatus string     `json:"last_run_status,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}

// ScheduledJobUpdate carries the fields the scheduler writes back after
// each run attempt.
type ScheduledJobUpdate struct {
	LastRunAt     *time.Time
	NextRunAt     *time.Time
	LastRunStatus string
}

// failurePayload is the runFailed event payload.
type failurePayload struct {
	Error string `json:"error"`
}
