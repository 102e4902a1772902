package actions

import (
	"context"
	"fmt"

	"github.com/voxflow/voxflow/internal/expressions"
	"github.com/voxflow/voxflow/pkg/schema"
)

type sendEmailAction struct{ sender MailSender }

// NewSendEmail creates the send-email executor.
func NewSendEmail(sender MailSender) Action {
	return &sendEmailAction{sender: sender}
}

func (a *sendEmailAction) Type() schema.StepType { return schema.StepSendEmail }

func (a *sendEmailAction) Execute(ctx context.Context, in Input) (string, error) {
	cfg, ok := in.Config.(*schema.SendEmailConfig)
	if !ok {
		return "", schema.NewError(schema.ErrCodeValidation, "send-email: wrong config payload")
	}
	if a.sender == nil {
		return "", schema.NewError(schema.ErrCodeProviderUnavailable, "no mail sender configured")
	}

	to := expressions.Resolve(cfg.To, in.RunContext)
	if to == "" {
		return "", schema.NewError(schema.ErrCodeValidation, "send-email: recipient is required")
	}
	subject := expressions.Resolve(cfg.Subject, in.RunContext)
	body := expressions.Resolve(cfg.Body, in.RunContext)
	if body == "" {
		body = in.RunContext.LastOutput()
	}
	if err := a.sender.Send(ctx, to, subject, body); err != nil {
		return "", schema.NewErrorf(schema.ErrCodeExecution, "send-email: %s", err.Error()).WithCause(err)
	}
	return fmt.Sprintf("email sent to %s", to), nil
}
