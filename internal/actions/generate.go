package actions

import (
	"context"

	"github.com/voxflow/voxflow/internal/expressions"
	"github.com/voxflow/voxflow/pkg/schema"
)

// generateTextAction dispatches generate-text steps to a Generator.
type generateTextAction struct {
	generator Generator
}

// NewGenerateText creates the generate-text executor.
func NewGenerateText(generator Generator) Action {
	return &generateTextAction{generator: generator}
}

func (a *generateTextAction) Type() schema.StepType { return schema.StepGenerateText }

func (a *generateTextAction) Execute(ctx context.Context, in Input) (string, error) {
	cfg, ok := in.Config.(*schema.GenerateTextConfig)
	if !ok {
		return "", schema.NewError(schema.ErrCodeValidation, "generate-text: wrong config payload")
	}
	if a.generator == nil {
		return "", schema.NewError(schema.ErrCodeProviderUnavailable, "no text generator configured")
	}

	prompt := expressions.Resolve(cfg.Prompt, in.RunContext)
	if prompt == "" {
		return "", schema.NewError(schema.ErrCodeValidation, "generate-text: empty prompt")
	}

	out, err := a.generator.Generate(ctx, GenerateRequest{
		Prompt:      prompt,
		Model:       cfg.Model,
		Temperature: cfg.Temperature,
		MaxTokens:   cfg.MaxTokens,
		TopP:        cfg.TopP,
	})
	if err != nil {
		return "", schema.NewErrorf(schema.ErrCodeProviderUnavailable,
			"generate-text: %s", err.Error()).WithCause(err)
	}
	return out, nil
}
