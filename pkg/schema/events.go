package schema

// Event type constants for the run event log. Values match the wire
// format consumed by external visualizers, hence the camelCase.
const (
	EventRunCreated    = "runCreated"
	EventRunStarted    = "runStarted"
	EventRunCompleted  = "runCompleted"
	EventRunFailed     = "runFailed"
	EventRunCancelled  = "runCancelled"
	EventStepCompleted = "stepCompleted"
)

// RunStatus represents the lifecycle state of a run.
type RunStatus string

const (
	RunStatusNotStarted RunStatus = "not_started"
	RunStatusRunning    RunStatus = "running"
	RunStatusCompleted  RunStatus = "completed"
	RunStatusFailed     RunStatus = "failed"
	RunStatusCancelled  RunStatus = "cancelled"
)

// Terminal reports whether the status is final.
func (s RunStatus) Terminal() bool {
	return s == RunStatusCompleted || s == RunStatusFailed || s == RunStatusCancelled
}

// StepExecution records one executed step within a run: number, type,
// a preview of the resolved input, the produced output, and the context
// key it was stored under.
type StepExecution struct {
	StepNumber   int      `json:"step_number"`
	StepID       string   `json:"step_id"`
	StepType     StepType `json:"step_type"`
	InputPreview string   `json:"input_preview,omitempty"`
	Output       string   `json:"output,omitempty"`
	OutputKey    string   `json:"output_key,omitempty"`
	DurationMs   int64    `json:"duration_ms,omitempty"`
}
