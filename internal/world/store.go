package world

import (
	"context"

	"github.com/voxflow/voxflow/pkg/schema"
)

// Store is the event-sourced persistence and replay abstraction for
// runs, plus the definition, processed-memo, and scheduled-job tables
// that live in the same database.
type Store interface {
	// Runs.
	CreateRun(ctx context.Context, run *Run) error
	GetRun(ctx context.Context, id string) (*Run, error)
	ListRuns(ctx context.Context, filter RunFilter) ([]*Run, error)
	UpdateRun(ctx context.Context, run *Run) error

	// Steps.
	CreateStep(ctx context.Context, step *RunStep) error
	ListSteps(ctx context.Context, runID string) ([]*RunStep, error)

	// Events. AppendEvent assigns the next per-run sequence; appends for
	// the same run are serialized, with no ordering guarantee across runs.
	AppendEvent(ctx context.Context, event *RunEvent) error
	GetEvents(ctx context.Context, runID string) ([]*RunEvent, error)

	// Replay reconstructs run state purely from the ordered event log
	// folded onto the run's starting snapshot.
	Replay(ctx context.Context, runID string) (*Run, error)

	// Definitions.
	SaveDefinition(ctx context.Context, def *schema.WorkflowDefinition) error
	GetDefinition(ctx context.Context, id string) (*schema.WorkflowDefinition, error)
	ListDefinitions(ctx context.Context) ([]*schema.WorkflowDefinition, error)
	DeleteDefinition(ctx context.Context, id string) error

	// Processed memos (auto-run dedup markers).
	MarkProcessed(ctx context.Context, memoID string) error
	IsProcessed(ctx context.Context, memoID string) (bool, error)

	// Scheduled jobs.
	SaveScheduledJob(ctx context.Context, job *ScheduledJob) error
	ListScheduledJobs(ctx context.Context) ([]*ScheduledJob, error)
	UpdateScheduledJob(ctx context.Context, id string, update ScheduledJobUpdate) error
	DeleteScheduledJob(ctx context.Context, id string) error

	// Secrets, stored encrypted; the vault owns the cipher.
	StoreSecret(ctx context.Context, key string, value []byte) error
	GetSecret(ctx context.Context, key string) ([]byte, error)
	DeleteSecret(ctx context.Context, key string) error
	ListSecrets(ctx context.Context) ([]string, error)

	Close() error
}
