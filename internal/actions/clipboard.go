package actions

import (
	"context"

	"github.com/voxflow/voxflow/internal/expressions"
	"github.com/voxflow/voxflow/pkg/schema"
)

type clipboardAction struct{ sink ClipboardSink }

// NewClipboard creates the clipboard executor.
func NewClipboard(sink ClipboardSink) Action {
	return &clipboardAction{sink: sink}
}

func (a *clipboardAction) Type() schema.StepType { return schema.StepClipboard }

func (a *clipboardAction) Execute(ctx context.Context, in Input) (string, error) {
	cfg, ok := in.Config.(*schema.ClipboardConfig)
	if !ok {
		return "", schema.NewError(schema.ErrCodeValidation, "clipboard: wrong config payload")
	}
	if a.sink == nil {
		return "", schema.NewError(schema.ErrCodeProviderUnavailable, "no clipboard sink configured")
	}

	content := expressions.Resolve(cfg.Content, in.RunContext)
	if content == "" {
		content = in.RunContext.LastOutput()
	}
	if err := a.sink.WriteClipboard(ctx, content); err != nil {
		return "", schema.NewErrorf(schema.ErrCodeExecution, "clipboard: %s", err.Error()).WithCause(err)
	}
	return "copied to clipboard", nil
}
