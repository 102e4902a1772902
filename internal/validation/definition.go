package validation

import (
	"fmt"
	"strings"

	jsonschema "github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/voxflow/voxflow/internal/sandbox"
	"github.com/voxflow/voxflow/pkg/schema"
)

// definitionSchemaJSON is the JSON Schema for the definition envelope.
// Embedded as a constant to avoid filesystem dependencies. Per-type
// config payloads are checked structurally by the tagged-union decoder;
// the schema pins the envelope and the type tag set.
const definitionSchemaJSON = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "$id": "https://voxflow.dev/schemas/definition.json",
  "type": "object",
  "required": ["id", "name", "steps"],
  "properties": {
    "id": { "type": "string", "minLength": 1 },
    "name": { "type": "string", "minLength": 1 },
    "steps": {
      "type": "array",
      "items": { "$ref": "#/$defs/step" }
    },
    "enabled": { "type": "boolean" },
    "pinned": { "type": "boolean" },
    "auto_run": { "type": "boolean" },
    "auto_run_order": { "type": "integer" },
    "created_at": { "type": "string" },
    "modified_at": { "type": "string" }
  },
  "additionalProperties": false,
  "$defs": {
    "step": {
      "type": "object",
      "required": ["id", "type"],
      "properties": {
        "id": { "type": "string", "minLength": 1 },
        "type": {
          "type": "string",
          "enum": [
            "generate-text", "run-shell", "call-webhook", "send-email",
            "notify", "push-notify", "apple-notes", "apple-reminders",
            "apple-calendar", "clipboard", "save-file", "conditional-branch",
            "transform", "transcribe", "speak", "detect-trigger",
            "extract-intents", "execute-workflows"
          ]
        },
        "config": { "type": "object" },
        "output_key": { "type": "string" },
        "enabled": { "type": "boolean" },
        "condition": { "$ref": "#/$defs/condition" }
      },
      "additionalProperties": false
    },
    "condition": {
      "type": "object",
      "required": ["expression"],
      "properties": {
        "expression": { "type": "string", "minLength": 1 },
        "skip_on_fail": { "type": "boolean" }
      },
      "additionalProperties": false
    }
  }
}`

// Validator checks workflow definitions at edit time: the JSON Schema
// envelope plus the semantic rules the schema cannot express.
type Validator struct {
	definitionSchema *jsonschema.Schema
}

// NewValidator compiles the embedded definition schema.
func NewValidator() (*Validator, error) {
	c := jsonschema.NewCompiler()
	c.AssertFormat()

	doc, err := jsonschema.UnmarshalJSON(strings.NewReader(definitionSchemaJSON))
	if err != nil {
		return nil, fmt.Errorf("unmarshal definition schema: %w", err)
	}
	if err := c.AddResource("https://voxflow.dev/schemas/definition.json", doc); err != nil {
		return nil, fmt.Errorf("add definition schema resource: %w", err)
	}
	compiled, err := c.Compile("https://voxflow.dev/schemas/definition.json")
	if err != nil {
		return nil, fmt.Errorf("compile definition schema: %w", err)
	}
	return &Validator{definitionSchema: compiled}, nil
}

// ValidateDefinition validates a definition's envelope and semantics.
func (v *Validator) ValidateDefinition(def *schema.WorkflowDefinition) error {
	if def == nil {
		return schema.NewError(schema.ErrCodeValidation, "workflow definition is nil")
	}

	doc, err := toJSONValue(def)
	if err != nil {
		return schema.NewError(schema.ErrCodeValidation, "serialize workflow definition").WithCause(err)
	}
	if err := v.definitionSchema.Validate(doc); err != nil {
		return toEngineError(err)
	}

	return validateSemantics(def)
}

// validateSemantics covers what JSON Schema cannot: duplicate step ids,
// branch step-id referential integrity, and shell timeout bounds. These
// run at edit time; the dispatcher does not re-check them.
func validateSemantics(def *schema.WorkflowDefinition) error {
	ids := make(map[string]struct{}, len(def.Steps))
	for i := range def.Steps {
		id := def.Steps[i].ID
		if _, exists := ids[id]; exists {
			return schema.NewErrorf(schema.ErrCodeValidation, "duplicate step id %q", id)
		}
		ids[id] = struct{}{}
	}

	for i := range def.Steps {
		step := &def.Steps[i]
		switch cfg := step.Config.(type) {
		case *schema.ConditionalBranchConfig:
			if cfg.Condition == "" {
				return schema.NewError(schema.ErrCodeValidation, "conditional-branch requires a condition").WithStep(step.ID)
			}
			for _, ref := range cfg.ThenSteps {
				if _, ok := ids[ref]; !ok {
					return schema.NewErrorf(schema.ErrCodeValidation,
						"then_steps references unknown step %q", ref).WithStep(step.ID)
				}
			}
			for _, ref := range cfg.ElseSteps {
				if _, ok := ids[ref]; !ok {
					return schema.NewErrorf(schema.ErrCodeValidation,
						"else_steps references unknown step %q", ref).WithStep(step.ID)
				}
			}
		case *schema.RunShellConfig:
			if cfg.TimeoutSeconds < sandbox.MinTimeoutSeconds || cfg.TimeoutSeconds > sandbox.MaxTimeoutSeconds {
				return schema.NewErrorf(schema.ErrCodeValidation,
					"shell timeout %d outside [%d,%d] seconds",
					cfg.TimeoutSeconds, sandbox.MinTimeoutSeconds, sandbox.MaxTimeoutSeconds).WithStep(step.ID)
			}
		case *schema.TransformConfig:
			switch cfg.Mode {
			case "uppercase", "lowercase", "trim", "replace", "expr", "jq":
			default:
				return schema.NewErrorf(schema.ErrCodeValidation,
					"unknown transform mode %q", cfg.Mode).WithStep(step.ID)
			}
		case *schema.ExtractIntentsConfig:
			switch cfg.Method {
			case schema.ExtractMethodKeywords, schema.ExtractMethodLLM, schema.ExtractMethodHybrid:
			default:
				return schema.NewErrorf(schema.ErrCodeValidation,
					"unknown extraction method %q", cfg.Method).WithStep(step.ID)
			}
		case *schema.DetectTriggerConfig:
			if len(cfg.Phrases) == 0 {
				return schema.NewError(schema.ErrCodeValidation, "detect-trigger requires phrases").WithStep(step.ID)
			}
		}
	}
	return nil
}
