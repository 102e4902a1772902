package actions

import (
	"context"

	"github.com/voxflow/voxflow/internal/expressions"
	"github.com/voxflow/voxflow/pkg/schema"
)

// transcribeAction dispatches transcribe steps to a Transcriber.
// The audio path travels on the run context, not the step config.
type transcribeAction struct {
	transcriber Transcriber
}

// NewTranscribe creates the transcribe executor.
func NewTranscribe(transcriber Transcriber) Action {
	return &transcribeAction{transcriber: transcriber}
}

func (a *transcribeAction) Type() schema.StepType { return schema.StepTranscribe }

func (a *transcribeAction) Execute(ctx context.Context, in Input) (string, error) {
	cfg, ok := in.Config.(*schema.TranscribeConfig)
	if !ok {
		return "", schema.NewError(schema.ErrCodeValidation, "transcribe: wrong config payload")
	}
	if a.transcriber == nil {
		return "", schema.NewError(schema.ErrCodeProviderUnavailable, "no transcriber configured")
	}
	if in.RunContext.AudioPath == "" {
		return "", schema.NewError(schema.ErrCodePrecondition, "transcribe: no raw audio for this input")
	}

	text, err := a.transcriber.Transcribe(ctx, TranscribeRequest{
		AudioPath: in.RunContext.AudioPath,
		Model:     cfg.Model,
		Language:  cfg.Language,
	})
	if err != nil {
		return "", schema.NewErrorf(schema.ErrCodeProviderUnavailable, "transcribe: %s", err.Error()).WithCause(err)
	}
	return text, nil
}

// speakAction dispatches speak steps to a Speaker. With no configured
// text the most recent context output is spoken.
type speakAction struct {
	speaker Speaker
}

// NewSpeak creates the speak executor.
func NewSpeak(speaker Speaker) Action {
	return &speakAction{speaker: speaker}
}

func (a *speakAction) Type() schema.StepType { return schema.StepSpeak }

func (a *speakAction) Execute(ctx context.Context, in Input) (string, error) {
	cfg, ok := in.Config.(*schema.SpeakConfig)
	if !ok {
		return "", schema.NewError(schema.ErrCodeValidation, "speak: wrong config payload")
	}
	if a.speaker == nil {
		return "", schema.NewError(schema.ErrCodeProviderUnavailable, "no speaker configured")
	}

	text := expressions.Resolve(cfg.Text, in.RunContext)
	if text == "" {
		text = in.RunContext.LastOutput()
	}

	out, err := a.speaker.Speak(ctx, text, cfg.Voice)
	if err != nil {
		return "", schema.NewErrorf(schema.ErrCodeProviderUnavailable, "speak: %s", err.Error()).WithCause(err)
	}
	return out, nil
}
