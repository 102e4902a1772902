package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voxflow/voxflow/pkg/schema"
)

func newValidator(t *testing.T) *Validator {
	t.Helper()
	v, err := NewValidator()
	require.NoError(t, err)
	return v
}

func validDefinition() *schema.WorkflowDefinition {
	return &schema.WorkflowDefinition{
		ID:      "wf-1",
		Name:    "Meeting Notes",
		Enabled: true,
		Steps: []schema.Step{
			{
				ID: "summarize", Type: schema.StepGenerateText, Enabled: true,
				Config: &schema.GenerateTextConfig{Prompt: "Summarize: {{TRANSCRIPT}}"},
			},
			{
				ID: "notify", Type: schema.StepNotify, Enabled: true,
				Config: &schema.NotifyConfig{Message: "{{summarize}}"},
			},
		},
	}
}

func TestValidateDefinition(t *testing.T) {
	v := newValidator(t)
	require.NoError(t, v.ValidateDefinition(validDefinition()))
}

func TestValidateDefinitionNil(t *testing.T) {
	v := newValidator(t)
	err := v.ValidateDefinition(nil)
	assert.True(t, schema.HasCode(err, schema.ErrCodeValidation))
}

func TestValidateDefinitionEnvelope(t *testing.T) {
	v := newValidator(t)

	tests := []struct {
		name   string
		mutate func(*schema.WorkflowDefinition)
	}{
		{"empty id", func(d *schema.WorkflowDefinition) { d.ID = "" }},
		{"empty name", func(d *schema.WorkflowDefinition) { d.Name = "" }},
		{"empty step id", func(d *schema.WorkflowDefinition) { d.Steps[0].ID = "" }},
		{"empty condition expression", func(d *schema.WorkflowDefinition) {
			d.Steps[0].Condition = &schema.GuardCondition{Expression: ""}
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			def := validDefinition()
			tt.mutate(def)
			err := v.ValidateDefinition(def)
			require.Error(t, err)
			assert.True(t, schema.HasCode(err, schema.ErrCodeValidation))
		})
	}
}

func TestValidateDefinitionCollectsViolations(t *testing.T) {
	v := newValidator(t)

	def := validDefinition()
	def.ID = ""
	err := v.ValidateDefinition(def)
	require.Error(t, err)

	var ee *schema.EngineError
	require.ErrorAs(t, err, &ee)
	assert.NotEmpty(t, ee.Details["violations"])
}

func TestValidateDuplicateStepIDs(t *testing.T) {
	v := newValidator(t)

	def := validDefinition()
	def.Steps[1].ID = "summarize"
	err := v.ValidateDefinition(def)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate step id")
}

func TestValidateBranchReferences(t *testing.T) {
	v := newValidator(t)

	def := validDefinition()
	def.Steps = append(def.Steps, schema.Step{
		ID: "branch", Type: schema.StepConditionalBranch, Enabled: true,
		Config: &schema.ConditionalBranchConfig{
			Condition: `{{TRANSCRIPT}} contains "meeting"`,
			ThenSteps: []string{"summarize"},
			ElseSteps: []string{"notify"},
		},
	})
	require.NoError(t, v.ValidateDefinition(def))

	def.Steps[2].Config = &schema.ConditionalBranchConfig{
		Condition: "always",
		ThenSteps: []string{"ghost"},
	}
	err := v.ValidateDefinition(def)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown step")

	def.Steps[2].Config = &schema.ConditionalBranchConfig{ThenSteps: []string{"summarize"}}
	err = v.ValidateDefinition(def)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "requires a condition")
}

func TestValidateShellTimeoutBounds(t *testing.T) {
	v := newValidator(t)

	def := validDefinition()
	def.Steps = append(def.Steps, schema.Step{
		ID: "shell", Type: schema.StepRunShell, Enabled: true,
		Config: &schema.RunShellConfig{Executable: "/bin/echo", TimeoutSeconds: 0},
	})
	err := v.ValidateDefinition(def)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "timeout")

	def.Steps[2].Config = &schema.RunShellConfig{Executable: "/bin/echo", TimeoutSeconds: 30}
	require.NoError(t, v.ValidateDefinition(def))
}

func TestValidateTransformMode(t *testing.T) {
	v := newValidator(t)

	def := validDefinition()
	def.Steps = append(def.Steps, schema.Step{
		ID: "t", Type: schema.StepTransform, Enabled: true,
		Config: &schema.TransformConfig{Mode: "rot13"},
	})
	err := v.ValidateDefinition(def)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "transform mode")
}

func TestValidateExtractionMethod(t *testing.T) {
	v := newValidator(t)

	def := validDefinition()
	def.Steps = append(def.Steps, schema.Step{
		ID: "intents", Type: schema.StepExtractIntents, Enabled: true,
		Config: &schema.ExtractIntentsConfig{Method: "psychic"},
	})
	err := v.ValidateDefinition(def)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "extraction method")
}

func TestValidateTriggerPhrases(t *testing.T) {
	v := newValidator(t)

	def := validDefinition()
	def.Steps = append(def.Steps, schema.Step{
		ID: "gate", Type: schema.StepDetectTrigger, Enabled: true,
		Config: &schema.DetectTriggerConfig{},
	})
	err := v.ValidateDefinition(def)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "phrases")
}
