package engine

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	"github.com/voxflow/voxflow/internal/actions"
	"github.com/voxflow/voxflow/internal/expressions"
	"github.com/voxflow/voxflow/internal/identity"
	"github.com/voxflow/voxflow/internal/intent"
	"github.com/voxflow/voxflow/internal/sandbox"
	"github.com/voxflow/voxflow/pkg/schema"
)

// previewLimit caps the resolved-input preview stored per step record.
const previewLimit = 160

// DefinitionSource resolves workflow definitions for execute-workflows
// steps and for intent routing. Satisfied by the library and test fakes.
type DefinitionSource interface {
	Get(ctx context.Context, id string) (*schema.WorkflowDefinition, error)
	List(ctx context.Context) ([]*schema.WorkflowDefinition, error)
}

// Input identifies the recording a run processes.
type Input struct {
	SourceText string
	Title      string
	Date       time.Time
	AudioPath  string
}

// Result is the outcome of one run: terminal status, the accumulated
// output map, and the per-step execution records in order.
type Result struct {
	RunID       string                 `json:"run_id"`
	WorkflowID  string                 `json:"workflow_id"`
	Status      schema.RunStatus       `json:"status"`
	Outputs     map[string]string      `json:"outputs,omitempty"`
	Steps       []schema.StepExecution `json:"steps,omitempty"`
	StartedAt   time.Time              `json:"started_at"`
	CompletedAt time.Time              `json:"completed_at"`
	Stopped     bool                   `json:"stopped,omitempty"`
	StopReason  string                 `json:"stop_reason,omitempty"`
	Error       *schema.EngineError    `json:"error,omitempty"`
}

// Config holds the dispatcher's injected collaborators. Registry is
// required; everything else degrades gracefully when absent.
type Config struct {
	Registry  *actions.Registry
	Shell     *sandbox.Executor
	Extractor *intent.Extractor
	Defs      DefinitionSource
	Observer  Observer
	Logger    *slog.Logger
}

// Dispatcher walks a definition's step list sequentially, resolving
// templates, checking guard conditions, and dispatching each step to an
// internal handler or a registered external executor.
type Dispatcher struct {
	registry   *actions.Registry
	shell      *sandbox.Executor
	extractor  *intent.Extractor
	defs       DefinitionSource
	observer   Observer
	logger     *slog.Logger
	exprEngine *expressions.ExprEngine
	jqEngine   *expressions.GoJQEngine
}

// NewDispatcher creates a Dispatcher from the given config.
func NewDispatcher(cfg Config) *Dispatcher {
	if cfg.Registry == nil {
		cfg.Registry = actions.NewRegistry()
	}
	if cfg.Observer == nil {
		cfg.Observer = NopObserver{}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Dispatcher{
		registry:   cfg.Registry,
		shell:      cfg.Shell,
		extractor:  cfg.Extractor,
		defs:       cfg.Defs,
		observer:   cfg.Observer,
		logger:     cfg.Logger,
		exprEngine: expressions.NewExprEngine(),
		jqEngine:   expressions.NewGoJQEngine(),
	}
}

// runState tracks one in-flight run.
type runState struct {
	runID   string
	def     *schema.WorkflowDefinition
	runCtx  *expressions.Context
	steps   []schema.StepExecution
	counter int
}

// Run executes a definition against an input. The step loop is strictly
// sequential: step N's output is visible to step N+1's templates. A
// graceful-stop signal ends the run as Completed; any other step error
// aborts the remaining steps and fails the run. A failed or cancelled
// run discards the partial output map; the step records are kept for
// the run history.
func (d *Dispatcher) Run(ctx context.Context, def *schema.WorkflowDefinition, in Input) (*Result, error) {
	if def == nil {
		return nil, schema.NewError(schema.ErrCodeValidation, "workflow definition is nil")
	}

	runCtx := expressions.NewContext(in.SourceText, in.Title, in.Date)
	runCtx.AudioPath = in.AudioPath

	st := &runState{
		runID:  identity.NewRunID(),
		def:    def,
		runCtx: runCtx,
	}

	result := &Result{
		RunID:      st.runID,
		WorkflowID: def.ID,
		Status:     schema.RunStatusRunning,
		StartedAt:  time.Now().UTC(),
	}
	d.logger.Info("run started",
		"run_id", st.runID, "workflow_id", def.ID, "workflow_name", def.Name, "steps", len(def.Steps))

	for i := range def.Steps {
		step := &def.Steps[i]
		if !step.Enabled {
			continue
		}
		if ctx.Err() != nil {
			result.Status = schema.RunStatusCancelled
			result.CompletedAt = time.Now().UTC()
			result.Steps = st.steps
			return result, schema.NewError(schema.ErrCodeExecution, "run cancelled").WithCause(ctx.Err())
		}

		if err := d.runStep(ctx, st, step); err != nil {
			if schema.IsGracefulStop(err) {
				result.Stopped = true
				result.StopReason = err.Error()
				d.logger.Info("run stopped gracefully", "run_id", st.runID, "step_id", step.ID, "reason", result.StopReason)
				break
			}
			result.Status = schema.RunStatusFailed
			result.CompletedAt = time.Now().UTC()
			result.Steps = st.steps
			result.Error = asEngineError(err, step)
			d.logger.Error("run failed", "run_id", st.runID, "step_id", step.ID, "error", err.Error())
			return result, result.Error
		}
	}

	result.Status = schema.RunStatusCompleted
	result.CompletedAt = time.Now().UTC()
	result.Outputs = runCtx.Outputs()
	result.Steps = st.steps
	d.logger.Info("run completed",
		"run_id", st.runID, "workflow_id", def.ID,
		"steps_executed", len(st.steps), "duration_ms", result.CompletedAt.Sub(result.StartedAt).Milliseconds())
	return result, nil
}

// runStep checks the guard, dispatches one step, and records the result.
func (d *Dispatcher) runStep(ctx context.Context, st *runState, step *schema.Step) error {
	st.counter++
	number := st.counter

	if step.Condition != nil && step.Condition.Expression != "" {
		if !EvaluateCondition(step.Condition.Expression, st.runCtx) {
			if step.Condition.SkipOnFail {
				d.observer.StepSkipped(st.runID, number, step, "condition not met")
				d.logger.Debug("step skipped", "run_id", st.runID, "step_id", step.ID, "condition", step.Condition.Expression)
				return nil
			}
			err := schema.NewErrorf(schema.ErrCodePrecondition,
				"condition %q not met", step.Condition.Expression).WithStep(step.ID)
			d.observer.StepFailed(st.runID, number, step, err)
			return err
		}
	}

	d.observer.StepStarted(st.runID, number, step)
	preview := stepPreview(step, st.runCtx)
	start := time.Now()

	output, err := d.dispatch(ctx, st, step)
	if err != nil {
		if schema.IsGracefulStop(err) {
			d.observer.StepSkipped(st.runID, number, step, err.Error())
			return err
		}
		d.observer.StepFailed(st.runID, number, step, err)
		return err
	}

	key := step.OutputKey
	if key == "" {
		key = step.ID
	}
	st.runCtx.Set(key, output)
	st.steps = append(st.steps, schema.StepExecution{
		StepNumber:   number,
		StepID:       step.ID,
		StepType:     step.Type,
		InputPreview: preview,
		Output:       output,
		OutputKey:    key,
		DurationMs:   time.Since(start).Milliseconds(),
	})
	d.observer.StepCompleted(st.runID, number, step, output)
	return nil
}

// dispatch routes a step to its handler by type tag. Shell, trigger,
// branch, transform, intent, and sub-workflow steps are handled inside
// the engine; everything else goes through the action registry.
func (d *Dispatcher) dispatch(ctx context.Context, st *runState, step *schema.Step) (string, error) {
	switch cfg := step.Config.(type) {
	case *schema.RunShellConfig:
		return d.runShell(ctx, cfg, st.runCtx)
	case *schema.DetectTriggerConfig:
		return detectTrigger(cfg, st.runCtx)
	case *schema.ConditionalBranchConfig:
		return d.runBranch(ctx, st, cfg)
	case *schema.TransformConfig:
		return d.transform(ctx, cfg, st.runCtx)
	case *schema.ExtractIntentsConfig:
		return d.extractIntents(ctx, cfg, st.runCtx)
	case *schema.ExecuteWorkflowsConfig:
		return d.executeSubflows(ctx, st, cfg)
	default:
		act, err := d.registry.Get(step.Type)
		if err != nil {
			return "", err
		}
		return act.Execute(ctx, actions.Input{Config: step.Config, RunContext: st.runCtx})
	}
}

// runShell resolves templates into the step config and hands the result
// to the sandbox executor, which validates and spawns the process.
func (d *Dispatcher) runShell(ctx context.Context, cfg *schema.RunShellConfig, runCtx *expressions.Context) (string, error) {
	if d.shell == nil {
		return "", schema.NewError(schema.ErrCodeProviderUnavailable, "no shell executor configured")
	}
	resolved := &schema.RunShellConfig{
		Executable:     cfg.Executable,
		Args:           make([]string, len(cfg.Args)),
		Stdin:          expressions.Resolve(cfg.Stdin, runCtx),
		TimeoutSeconds: cfg.TimeoutSeconds,
		IncludeStderr:  cfg.IncludeStderr,
	}
	for i, a := range cfg.Args {
		resolved.Args[i] = expressions.Resolve(a, runCtx)
	}
	res, err := d.shell.Run(ctx, resolved)
	if err != nil {
		return "", err
	}
	return res.Output, nil
}

// runBranch evaluates the branch condition and executes the referenced
// arm inline. Referenced steps run even when disabled; the convention
// is that branch-only steps carry enabled=false so the main loop does
// not run them a second time. Missing references are logged and
// skipped, matching the edit-time-only integrity check.
func (d *Dispatcher) runBranch(ctx context.Context, st *runState, cfg *schema.ConditionalBranchConfig) (string, error) {
	taken := "else"
	ids := cfg.ElseSteps
	if EvaluateCondition(cfg.Condition, st.runCtx) {
		taken = "then"
		ids = cfg.ThenSteps
	}

	executed := 0
	for _, id := range ids {
		target := findStep(st.def, id)
		if target == nil {
			d.logger.Warn("branch references unknown step", "run_id", st.runID, "step_id", id)
			continue
		}
		if err := d.runStep(ctx, st, target); err != nil {
			return "", err
		}
		executed++
	}
	d.logger.Debug("branch taken", "run_id", st.runID, "branch", taken, "steps", executed)
	return "branch: " + taken, nil
}

// extractIntents classifies the current text and routes each intent to
// a target workflow. The routed set is stored as JSON so a later
// execute-workflows step can pick it up from the context.
func (d *Dispatcher) extractIntents(ctx context.Context, cfg *schema.ExtractIntentsConfig, runCtx *expressions.Context) (string, error) {
	if d.extractor == nil {
		return "", schema.NewError(schema.ErrCodeProviderUnavailable, "no intent extractor configured")
	}
	intents, err := d.extractor.Extract(ctx, runCtx.LastOutput(), cfg)
	if err != nil {
		return "", err
	}
	if d.defs != nil {
		if workflows, listErr := d.defs.List(ctx); listErr == nil {
			intents = intent.Route(intents, workflows)
		}
	}
	data, err := json.Marshal(intents)
	if err != nil {
		return "", schema.NewErrorf(schema.ErrCodeExecution, "marshal intents: %s", err.Error()).WithCause(err)
	}
	return string(data), nil
}

func findStep(def *schema.WorkflowDefinition, id string) *schema.Step {
	for i := range def.Steps {
		if def.Steps[i].ID == id {
			return &def.Steps[i]
		}
	}
	return nil
}

// stepPreview resolves the step's primary text input for the execution
// record, truncated so records stay small.
func stepPreview(step *schema.Step, runCtx *expressions.Context) string {
	var raw string
	switch cfg := step.Config.(type) {
	case *schema.GenerateTextConfig:
		raw = cfg.Prompt
	case *schema.RunShellConfig:
		raw = cfg.Executable + " " + strings.Join(cfg.Args, " ")
	case *schema.CallWebhookConfig:
		raw = cfg.URL
	case *schema.SendEmailConfig:
		raw = cfg.Subject
	case *schema.NotifyConfig:
		raw = cfg.Message
	case *schema.PushNotifyConfig:
		raw = cfg.Message
	case *schema.AppleNotesConfig:
		raw = cfg.Body
	case *schema.AppleRemindersConfig:
		raw = cfg.Title
	case *schema.AppleCalendarConfig:
		raw = cfg.Title
	case *schema.ClipboardConfig:
		raw = cfg.Content
	case *schema.SaveFileConfig:
		raw = cfg.Content
	case *schema.TransformConfig:
		raw = cfg.Input
	case *schema.SpeakConfig:
		raw = cfg.Text
	case *schema.ConditionalBranchConfig:
		raw = cfg.Condition
	default:
		raw = "{{LAST_OUTPUT}}"
	}
	resolved := expressions.Resolve(raw, runCtx)
	if len(resolved) > previewLimit {
		return resolved[:previewLimit]
	}
	return resolved
}

// asEngineError normalizes any step error into an EngineError.
func asEngineError(err error, step *schema.Step) *schema.EngineError {
	if ee, ok := err.(*schema.EngineError); ok {
		if ee.StepID == "" {
			ee.StepID = step.ID
		}
		return ee
	}
	return schema.NewErrorf(schema.ErrCodeStepFailed, "step %s (%s): %s",
		step.ID, step.Type, err.Error()).WithStep(step.ID).WithCause(err)
}
