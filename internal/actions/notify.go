package actions

import (
	"context"
	"fmt"

	"github.com/voxflow/voxflow/internal/expressions"
	"github.com/voxflow/voxflow/pkg/schema"
)

// notifyAction dispatches notify steps to the OS notification sink.
type notifyAction struct {
	sink Notifier
}

// NewNotify creates the notify executor.
func NewNotify(sink Notifier) Action {
	return &notifyAction{sink: sink}
}

func (a *notifyAction) Type() schema.StepType { return schema.StepNotify }

func (a *notifyAction) Execute(ctx context.Context, in Input) (string, error) {
	cfg, ok := in.Config.(*schema.NotifyConfig)
	if !ok {
		return "", schema.NewError(schema.ErrCodeValidation, "notify: wrong config payload")
	}
	if a.sink == nil {
		return "", schema.NewError(schema.ErrCodeProviderUnavailable, "no notification sink configured")
	}

	title := expressions.Resolve(cfg.Title, in.RunContext)
	message := expressions.Resolve(cfg.Message, in.RunContext)
	if err := a.sink.Notify(ctx, title, message); err != nil {
		return "", schema.NewErrorf(schema.ErrCodeExecution, "notify: %s", err.Error()).WithCause(err)
	}
	return fmt.Sprintf("notification sent: %s", title), nil
}

// pushNotifyAction dispatches push-notify steps to the push sink.
type pushNotifyAction struct {
	sink PushSink
}

// NewPushNotify creates the push-notify executor.
func NewPushNotify(sink PushSink) Action {
	return &pushNotifyAction{sink: sink}
}

func (a *pushNotifyAction) Type() schema.StepType { return schema.StepPushNotify }

func (a *pushNotifyAction) Execute(ctx context.Context, in Input) (string, error) {
	cfg, ok := in.Config.(*schema.PushNotifyConfig)
	if !ok {
		return "", schema.NewError(schema.ErrCodeValidation, "push-notify: wrong config payload")
	}
	if a.sink == nil {
		return "", schema.NewError(schema.ErrCodeProviderUnavailable, "no push sink configured")
	}

	title := expressions.Resolve(cfg.Title, in.RunContext)
	message := expressions.Resolve(cfg.Message, in.RunContext)
	if err := a.sink.Push(ctx, title, message, cfg.Device); err != nil {
		return "", schema.NewErrorf(schema.ErrCodeExecution, "push-notify: %s", err.Error()).WithCause(err)
	}
	return fmt.Sprintf("push queued: %s", title), nil
}
