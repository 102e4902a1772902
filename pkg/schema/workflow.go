package schema

import (
	"encoding/json"
	"fmt"
	"time"
)

// WorkflowDefinition is the immutable description of a post-processing
// workflow: an ordered list of typed steps executed against an
// accumulating text context. Identity is the ID; edits happen on a copy
// and are committed atomically by the library.
type WorkflowDefinition struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Steps        []Step    `json:"steps"`
	Enabled      bool      `json:"enabled"`
	Pinned       bool      `json:"pinned,omitempty"`
	AutoRun      bool      `json:"auto_run,omitempty"`
	AutoRunOrder int       `json:"auto_run_order,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	ModifiedAt   time.Time `json:"modified_at"`
}

// Clone returns a deep copy suitable for draft editing. Step configs
// and conditions are copied too, so edits to the clone never leak into
// the original.
func (d *WorkflowDefinition) Clone() *WorkflowDefinition {
	cp := *d
	cp.Steps = make([]Step, len(d.Steps))
	for i := range d.Steps {
		cp.Steps[i] = d.Steps[i].clone()
	}
	return &cp
}

func (s Step) clone() Step {
	cp := s
	if s.Condition != nil {
		cond := *s.Condition
		cp.Condition = &cond
	}
	if s.Config != nil {
		data, err := json.Marshal(s.Config)
		if err == nil {
			fresh := configFactories[s.Config.stepConfig()]()
			if json.Unmarshal(data, fresh) == nil {
				cp.Config = fresh
			}
		}
	}
	return cp
}

// Step is one typed unit of work in a workflow. The Config payload is a
// tagged union: exactly one variant is valid per Type.
type Step struct {
	ID        string          `json:"id"`
	Type      StepType        `json:"type"`
	Config    StepConfig      `json:"-"`
	OutputKey string          `json:"output_key,omitempty"`
	Enabled   bool            `json:"enabled"`
	Condition *GuardCondition `json:"condition,omitempty"`
}

// GuardCondition gates step execution. Expression is resolved against the
// run context and evaluated with the boolean mini-DSL (contains, equals,
// startsWith, endsWith, isEmpty, isNotEmpty, default truthy-on-non-empty).
type GuardCondition struct {
	Expression string `json:"expression"`
	SkipOnFail bool   `json:"skip_on_fail"`
}

// StepType enumerates the step variants.
type StepType string

const (
	StepGenerateText      StepType = "generate-text"
	StepRunShell          StepType = "run-shell"
	StepCallWebhook       StepType = "call-webhook"
	StepSendEmail         StepType = "send-email"
	StepNotify            StepType = "notify"
	StepPushNotify        StepType = "push-notify"
	StepAppleNotes        StepType = "apple-notes"
	StepAppleReminders    StepType = "apple-reminders"
	StepAppleCalendar     StepType = "apple-calendar"
	StepClipboard         StepType = "clipboard"
	StepSaveFile          StepType = "save-file"
	StepConditionalBranch StepType = "conditional-branch"
	StepTransform         StepType = "transform"
	StepTranscribe        StepType = "transcribe"
	StepSpeak             StepType = "speak"
	StepDetectTrigger     StepType = "detect-trigger"
	StepExtractIntents    StepType = "extract-intents"
	StepExecuteWorkflows  StepType = "execute-workflows"
)

// StepConfig is the closed set of per-type config payloads.
type StepConfig interface {
	stepConfig() StepType
}

// GenerateTextConfig configures a generate-text step.
type GenerateTextConfig struct {
	Prompt      string   `json:"prompt"`
	Model       string   `json:"model,omitempty"`
	Temperature *float64 `json:"temperature,omitempty"`
	MaxTokens   *int     `json:"max_tokens,omitempty"`
	TopP        *float64 `json:"top_p,omitempty"`
}

// RunShellConfig configures a run-shell step. Executable must be an
// absolute path permitted by the sandbox policy; Args and Stdin are
// template-resolved and sanitized before the process is spawned.
type RunShellConfig struct {
	Executable     string   `json:"executable"`
	Args           []string `json:"args,omitempty"`
	Stdin          string   `json:"stdin,omitempty"`
	TimeoutSeconds int      `json:"timeout_seconds"`
	IncludeStderr  bool     `json:"include_stderr,omitempty"`
}

// CallWebhookConfig configures a call-webhook step. Retries applies
// only to transient failures, with exponential backoff between attempts.
type CallWebhookConfig struct {
	URL     string            `json:"url"`
	Method  string            `json:"method,omitempty"`
	Headers map[string]string `json:"headers,omitempty"`
	Body    string            `json:"body,omitempty"`
	Retries int               `json:"retries,omitempty"`
}

// SendEmailConfig configures a send-email step.
type SendEmailConfig struct {
	To      string `json:"to"`
	Subject string `json:"subject,omitempty"`
	Body    string `json:"body,omitempty"`
}

// NotifyConfig configures a notify step (OS notification center).
type NotifyConfig struct {
	Title   string `json:"title,omitempty"`
	Message string `json:"message"`
}

// PushNotifyConfig configures a push-notify step.
type PushNotifyConfig struct {
	Title   string `json:"title,omitempty"`
	Message string `json:"message"`
	Device  string `json:"device,omitempty"`
}

// AppleNotesConfig configures an apple-notes step.
type AppleNotesConfig struct {
	Folder string `json:"folder,omitempty"`
	Title  string `json:"title,omitempty"`
	Body   string `json:"body"`
}

// AppleRemindersConfig configures an apple-reminders step.
type AppleRemindersConfig struct {
	List  string `json:"list,omitempty"`
	Title string `json:"title"`
	Notes string `json:"notes,omitempty"`
	Due   string `json:"due,omitempty"`
}

// AppleCalendarConfig configures an apple-calendar step.
type AppleCalendarConfig struct {
	Calendar string `json:"calendar,omitempty"`
	Title    string `json:"title"`
	Notes    string `json:"notes,omitempty"`
	Start    string `json:"start,omitempty"`
	Duration string `json:"duration,omitempty"`
}

// ClipboardConfig configures a clipboard step.
type ClipboardConfig struct {
	Content string `json:"content"`
}

// SaveFileConfig configures a save-file step. Directory may be a named
// alias (documents, downloads, desktop, home) or an absolute path.
type SaveFileConfig struct {
	Directory string `json:"directory"`
	Filename  string `json:"filename"`
	Content   string `json:"content"`
	Append    bool   `json:"append,omitempty"`
}

// ConditionalBranchConfig configures a conditional-branch step.
// ThenSteps/ElseSteps reference step IDs within the same definition;
// referential integrity is checked at edit time, not at execution time.
type ConditionalBranchConfig struct {
	Condition string   `json:"condition"`
	ThenSteps []string `json:"then_steps,omitempty"`
	ElseSteps []string `json:"else_steps,omitempty"`
}

// TransformConfig configures a transform step. Builtin modes operate on
// the resolved input text; "expr" evaluates an expr-lang expression and
// "jq" a jq program against the input (parsed as JSON when valid).
type TransformConfig struct {
	Mode       string `json:"mode"` // uppercase | lowercase | trim | replace | expr | jq
	Input      string `json:"input,omitempty"`
	Expression string `json:"expression,omitempty"`
	Find       string `json:"find,omitempty"`
	Replace    string `json:"replace,omitempty"`
}

// TranscribeConfig configures a transcribe step.
type TranscribeConfig struct {
	Model    string `json:"model,omitempty"`
	Language string `json:"language,omitempty"`
}

// SpeakConfig configures a speak step.
type SpeakConfig struct {
	Voice string `json:"voice,omitempty"`
	Text  string `json:"text,omitempty"`
}

// DetectTriggerConfig configures a detect-trigger step: a pure text scan
// for configured phrases within a window. With StopIfNoMatch set, a miss
// raises the graceful-stop signal and the run completes early.
type DetectTriggerConfig struct {
	Phrases       []string `json:"phrases"`
	Window        string   `json:"window,omitempty"` // start | end | anywhere
	WindowChars   int      `json:"window_chars,omitempty"`
	StopIfNoMatch bool     `json:"stop_if_no_match,omitempty"`
}

// ExtractIntentsConfig configures an extract-intents step.
type ExtractIntentsConfig struct {
	Method              string             `json:"method"` // keywords | llm | hybrid
	PromptTemplate      string             `json:"prompt_template,omitempty"`
	Model               string             `json:"model,omitempty"`
	ConfidenceThreshold float64            `json:"confidence_threshold,omitempty"`
	Intents             []IntentDefinition `json:"intents"`
}

// ExecuteWorkflowsConfig configures an execute-workflows step, which
// dispatches the sub-workflows routed by a prior extract-intents step.
type ExecuteWorkflowsConfig struct {
	IntentsKey  string `json:"intents_key,omitempty"` // context key holding extracted intents; defaults to last output
	Parallel    bool   `json:"parallel,omitempty"`
	StopOnError bool   `json:"stop_on_error,omitempty"`
}

func (GenerateTextConfig) stepConfig() StepType      { return StepGenerateText }
func (RunShellConfig) stepConfig() StepType          { return StepRunShell }
func (CallWebhookConfig) stepConfig() StepType       { return StepCallWebhook }
func (SendEmailConfig) stepConfig() StepType         { return StepSendEmail }
func (NotifyConfig) stepConfig() StepType            { return StepNotify }
func (PushNotifyConfig) stepConfig() StepType        { return StepPushNotify }
func (AppleNotesConfig) stepConfig() StepType        { return StepAppleNotes }
func (AppleRemindersConfig) stepConfig() StepType    { return StepAppleReminders }
func (AppleCalendarConfig) stepConfig() StepType     { return StepAppleCalendar }
func (ClipboardConfig) stepConfig() StepType         { return StepClipboard }
func (SaveFileConfig) stepConfig() StepType          { return StepSaveFile }
func (ConditionalBranchConfig) stepConfig() StepType { return StepConditionalBranch }
func (TransformConfig) stepConfig() StepType         { return StepTransform }
func (TranscribeConfig) stepConfig() StepType        { return StepTranscribe }
func (SpeakConfig) stepConfig() StepType             { return StepSpeak }
func (DetectTriggerConfig) stepConfig() StepType     { return StepDetectTrigger }
func (ExtractIntentsConfig) stepConfig() StepType    { return StepExtractIntents }
func (ExecuteWorkflowsConfig) stepConfig() StepType  { return StepExecuteWorkflows }

// configFactories maps a type tag to a constructor for its empty payload.
var configFactories = map[StepType]func() StepConfig{
	StepGenerateText:      func() StepConfig { return &GenerateTextConfig{} },
	StepRunShell:          func() StepConfig { return &RunShellConfig{} },
	StepCallWebhook:       func() StepConfig { return &CallWebhookConfig{} },
	StepSendEmail:         func() StepConfig { return &SendEmailConfig{} },
	StepNotify:            func() StepConfig { return &NotifyConfig{} },
	StepPushNotify:        func() StepConfig { return &PushNotifyConfig{} },
	StepAppleNotes:        func() StepConfig { return &AppleNotesConfig{} },
	StepAppleReminders:    func() StepConfig { return &AppleRemindersConfig{} },
	StepAppleCalendar:     func() StepConfig { return &AppleCalendarConfig{} },
	StepClipboard:         func() StepConfig { return &ClipboardConfig{} },
	StepSaveFile:          func() StepConfig { return &SaveFileConfig{} },
	StepConditionalBranch: func() StepConfig { return &ConditionalBranchConfig{} },
	StepTransform:         func() StepConfig { return &TransformConfig{} },
	StepTranscribe:        func() StepConfig { return &TranscribeConfig{} },
	StepSpeak:             func() StepConfig { return &SpeakConfig{} },
	StepDetectTrigger:     func() StepConfig { return &DetectTriggerConfig{} },
	StepExtractIntents:    func() StepConfig { return &ExtractIntentsConfig{} },
	StepExecuteWorkflows:  func() StepConfig { return &ExecuteWorkflowsConfig{} },
}

// ValidStepType reports whether t names a known step variant.
func ValidStepType(t StepType) bool {
	_, ok := configFactories[t]
	return ok
}

// stepJSON is the wire shape of a Step: the config payload travels under
// a "config" key and is decoded into the variant selected by "type".
type stepJSON struct {
	ID        string          `json:"id"`
	Type      StepType        `json:"type"`
	Config    json.RawMessage `json:"config,omitempty"`
	OutputKey string          `json:"output_key,omitempty"`
	Enabled   bool            `json:"enabled"`
	Condition *GuardCondition `json:"condition,omitempty"`
}

// UnmarshalJSON decodes a step, selecting the config variant by type tag.
func (s *Step) UnmarshalJSON(data []byte) error {
	var raw stepJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	factory, ok := configFactories[raw.Type]
	if !ok {
		return fmt.Errorf("unknown step type %q", raw.Type)
	}
	cfg := factory()
	if len(raw.Config) > 0 {
		if err := json.Unmarshal(raw.Config, cfg); err != nil {
			return fmt.Errorf("decode %s config: %w", raw.Type, err)
		}
	}
	s.ID = raw.ID
	s.Type = raw.Type
	s.Config = cfg
	s.OutputKey = raw.OutputKey
	s.Enabled = raw.Enabled
	s.Condition = raw.Condition
	return nil
}

// MarshalJSON encodes a step with its config payload under "config".
func (s Step) MarshalJSON() ([]byte, error) {
	raw := stepJSON{
		ID:        s.ID,
		Type:      s.Type,
		OutputKey: s.OutputKey,
		Enabled:   s.Enabled,
		Condition: s.Condition,
	}
	if s.Config != nil {
		if got := s.Config.stepConfig(); got != s.Type {
			return nil, fmt.Errorf("step %s: config payload is for type %q", s.ID, got)
		}
		cfg, err := json.Marshal(s.Config)
		if err != nil {
			return nil, err
		}
		raw.Config = cfg
	}
	return json.Marshal(raw)
}
