package actions

import "context"

// External collaborator ports. The engine calls these; it does not
// implement them beyond the adapters wired at process startup.

// GenerateRequest carries a resolved prompt and sampling options to a
// text generator.
type GenerateRequest struct {
	Prompt      string
	Model       string
	Temperature *float64
	MaxTokens   *int
	TopP        *float64
}

// Generator produces text from a prompt. Implementations may fail with
// a provider-unavailable error.
type Generator interface {
	Generate(ctx context.Context, req GenerateRequest) (string, error)
}

// TranscribeRequest identifies the audio to transcribe.
type TranscribeRequest struct {
	AudioPath string
	Model     string
	Language  string
}

// Transcriber converts recorded audio to text. Implementations may also
// persist a new transcript version.
type Transcriber interface {
	Transcribe(ctx context.Context, req TranscribeRequest) (string, error)
}

// Speaker converts text to audio and returns a confirmation or the
// path of the uploaded artifact.
type Speaker interface {
	Speak(ctx context.Context, text, voice string) (string, error)
}

// Notifier posts to the OS notification center. Fire-and-forget.
type Notifier interface {
	Notify(ctx context.Context, title, message string) error
}

// PushSink records a push notification for delivery.
type PushSink interface {
	Push(ctx context.Context, title, message, device string) error
}

// ClipboardSink writes to the system clipboard.
type ClipboardSink interface {
	WriteClipboard(ctx context.Context, content string) error
}

// MailSender delivers a message.
type MailSender interface {
	Send(ctx context.Context, to, subject, body string) error
}

// AppleAutomation drives the Notes, Reminders and Calendar apps.
// Failures surface as permission-denied or app-launch-failed errors.
type AppleAutomation interface {
	CreateNote(ctx context.Context, folder, title, body string) error
	CreateReminder(ctx context.Context, list, title, notes, due string) error
	CreateEvent(ctx context.Context, calendar, title, notes, start, duration string) error
}
