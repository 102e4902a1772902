package engine

import (
	"log/slog"

	"github.com/voxflow/voxflow/pkg/schema"
)

// Observer receives structured step progress during a run. The engine
// never touches the UI; anything user-visible hangs off an Observer.
type Observer interface {
	StepStarted(runID string, stepNumber int, step *schema.Step)
	StepCompleted(runID string, stepNumber int, step *schema.Step, output string)
	StepSkipped(runID string, stepNumber int, step *schema.Step, reason string)
	StepFailed(runID string, stepNumber int, step *schema.Step, err error)
}

// NopObserver discards all progress notifications.
type NopObserver struct{}

func (NopObserver) StepStarted(string, int, *schema.Step)           {}
func (NopObserver) StepCompleted(string, int, *schema.Step, string) {}
func (NopObserver) StepSkipped(string, int, *schema.Step, string)   {}
func (NopObserver) StepFailed(string, int, *schema.Step, error)     {}

// LogObserver logs step progress through slog.
type LogObserver struct {
	Logger *slog.Logger
}

// NewLogObserver creates an Observer backed by the given logger.
func NewLogObserver(logger *slog.Logger) *LogObserver {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogObserver{Logger: logger}
}

func (o *LogObserver) StepStarted(runID string, stepNumber int, step *schema.Step) {
	o.Logger.Info("step started",
		"run_id", runID, "step_number", stepNumber, "step_id", step.ID, "step_type", string(step.Type))
}

func (o *LogObserver) StepCompleted(runID string, stepNumber int, step *schema.Step, output string) {
	o.Logger.Info("step completed",
		"run_id", runID, "step_number", stepNumber, "step_id", step.ID,
		"step_type", string(step.Type), "output_len", len(output))
}

func (o *LogObserver) StepSkipped(runID string, stepNumber int, step *schema.Step, reason string) {
	o.Logger.Info("step skipped",
		"run_id", runID, "step_number", stepNumber, "step_id", step.ID,
		"step_type", string(step.Type), "reason", reason)
}

func (o *LogObserver) StepFailed(runID string, stepNumber int, step *schema.Step, err error) {
	o.Logger.Error("step failed",
		"run_id", runID, "step_number", stepNumber, "step_id", step.ID,
		"step_type", string(step.Type), "error", err.Error())
}

var (
	_ Observer = NopObserver{}
	_ Observer = (*LogObserver)(nil)
)
