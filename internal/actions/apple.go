package actions

import (
	"context"
	"fmt"

	"github.com/voxflow/voxflow/internal/expressions"
	"github.com/voxflow/voxflow/pkg/schema"
)

// The apple-* executors share one AppleAutomation port; the concrete
// implementation lives outside this repo (OS automation boundary).

type appleNotesAction struct{ automation AppleAutomation }

// NewAppleNotes creates the apple-notes executor.
func NewAppleNotes(automation AppleAutomation) Action {
	return &appleNotesAction{automation: automation}
}

func (a *appleNotesAction) Type() schema.StepType { return schema.StepAppleNotes }

func (a *appleNotesAction) Execute(ctx context.Context, in Input) (string, error) {
	cfg, ok := in.Config.(*schema.AppleNotesConfig)
	if !ok {
		return "", schema.NewError(schema.ErrCodeValidation, "apple-notes: wrong config payload")
	}
	if a.automation == nil {
		return "", schema.NewError(schema.ErrCodeProviderUnavailable, "no apple automation configured")
	}

	title := expressions.Resolve(cfg.Title, in.RunContext)
	body := expressions.Resolve(cfg.Body, in.RunContext)
	if err := a.automation.CreateNote(ctx, cfg.Folder, title, body); err != nil {
		return "", schema.NewErrorf(schema.ErrCodeExecution, "apple-notes: %s", err.Error()).WithCause(err)
	}
	return fmt.Sprintf("note created: %s", title), nil
}

type appleRemindersAction struct{ automation AppleAutomation }

// NewAppleReminders creates the apple-reminders executor.
func NewAppleReminders(automation AppleAutomation) Action {
	return &appleRemindersAction{automation: automation}
}

func (a *appleRemindersAction) Type() schema.StepType { return schema.StepAppleReminders }

func (a *appleRemindersAction) Execute(ctx context.Context, in Input) (string, error) {
	cfg, ok := in.Config.(*schema.AppleRemindersConfig)
	if !ok {
		return "", schema.NewError(schema.ErrCodeValidation, "apple-reminders: wrong config payload")
	}
	if a.automation == nil {
		return "", schema.NewError(schema.ErrCodeProviderUnavailable, "no apple automation configured")
	}

	title := expressions.Resolve(cfg.Title, in.RunContext)
	notes := expressions.Resolve(cfg.Notes, in.RunContext)
	if err := a.automation.CreateReminder(ctx, cfg.List, title, notes, cfg.Due); err != nil {
		return "", schema.NewErrorf(schema.ErrCodeExecution, "apple-reminders: %s", err.Error()).WithCause(err)
	}
	return fmt.Sprintf("reminder created: %s", title), nil
}

type appleCalendarAction struct{ automation AppleAutomation }

// NewAppleCalendar creates the apple-calendar executor.
func NewAppleCalendar(automation AppleAutomation) Action {
	return &appleCalendarAction{automation: automation}
}

func (a *appleCalendarAction) Type() schema.StepType { return schema.StepAppleCalendar }

func (a *appleCalendarAction) Execute(ctx context.Context, in Input) (string, error) {
	cfg, ok := in.Config.(*schema.AppleCalendarConfig)
	if !ok {
		return "", schema.NewError(schema.ErrCodeValidation, "apple-calendar: wrong config payload")
	}
	if a.automation == nil {
		return "", schema.NewError(schema.ErrCodeProviderUnavailable, "no apple automation configured")
	}

	title := expressions.Resolve(cfg.Title, in.RunContext)
	notes := expressions.Resolve(cfg.Notes, in.RunContext)
	if err := a.automation.CreateEvent(ctx, cfg.Calendar, title, notes, cfg.Start, cfg.Duration); err != nil {
		return "", schema.NewErrorf(schema.ErrCodeExecution, "apple-calendar: %s", err.Error()).WithCause(err)
	}
	return fmt.Sprintf("event created: %s", title), nil
}
