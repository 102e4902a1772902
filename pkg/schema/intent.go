package schema

// DetectOnlyWorkflowID is the sentinel target meaning "log the intent,
// do not execute a workflow for it".
const DetectOnlyWorkflowID = "detect-only"

// Extraction method constants for extract-intents steps.
const (
	ExtractMethodKeywords = "keywords"
	ExtractMethodLLM      = "llm"
	ExtractMethodHybrid   = "hybrid"
)

// IntentDefinition declares one recognizable intent: a name plus
// synonyms matched against the input, and an optional explicit target
// workflow. An empty TargetWorkflowID leaves routing to the
// name-similarity fallback.
type IntentDefinition struct {
	Name             string   `json:"name"`
	Synonyms         []string `json:"synonyms,omitempty"`
	Enabled          bool     `json:"enabled"`
	TargetWorkflowID string   `json:"target_workflow_id,omitempty"`
}

// ExtractedIntent is a confidence-scored classification of free text,
// optionally routed to a target workflow.
type ExtractedIntent struct {
	Action           string  `json:"action"`
	Parameter        string  `json:"parameter,omitempty"`
	Confidence       float64 `json:"confidence"`
	TargetWorkflowID string  `json:"target_workflow_id,omitempty"`
}

// DetectOnly reports whether the intent is flagged for logging without
// execution.
func (i ExtractedIntent) DetectOnly() bool {
	return i.TargetWorkflowID == DetectOnlyWorkflowID
}
