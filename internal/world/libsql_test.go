package world

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voxflow/voxflow/pkg/schema"
)

func testStore(t *testing.T) *LibSQLStore {
	t.Helper()
	store, err := NewLibSQLStore("file:" + filepath.Join(t.TempDir(), "world.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	require.NoError(t, store.Migrate(context.Background()))
	return store
}

func testRun(id string) *Run {
	return &Run{
		ID:         id,
		WorkflowID: "wf-1",
		Status:     schema.RunStatusNotStarted,
		CreatedAt:  time.Now().UTC().Truncate(time.Second),
	}
}

func TestRunCRUD(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()

	run := testRun("run-1")
	run.WorkflowName = "Daily Summary"
	run.MemoID = "memo-1"
	require.NoError(t, store.CreateRun(ctx, run))

	got, err := store.GetRun(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, "wf-1", got.WorkflowID)
	assert.Equal(t, "Daily Summary", got.WorkflowName)
	assert.Equal(t, "memo-1", got.MemoID)
	assert.Equal(t, schema.RunStatusNotStarted, got.Status)

	now := time.Now().UTC()
	got.Status = schema.RunStatusCompleted
	got.StartedAt = &now
	got.CompletedAt = &now
	got.DurationMs = 42
	require.NoError(t, store.UpdateRun(ctx, got))

	updated, err := store.GetRun(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, schema.RunStatusCompleted, updated.Status)
	assert.EqualValues(t, 42, updated.DurationMs)
	require.NotNil(t, updated.StartedAt)
}

func TestGetRunNotFound(t *testing.T) {
	store := testStore(t)

	_, err := store.GetRun(context.Background(), "nope")
	require.Error(t, err)
	assert.True(t, schema.HasCode(err, schema.ErrCodeRunNotFound))
}

func TestUpdateRunNotFound(t *testing.T) {
	store := testStore(t)

	err := store.UpdateRun(context.Background(), testRun("ghost"))
	require.Error(t, err)
	assert.True(t, schema.HasCode(err, schema.ErrCodeRunNotFound))
}

func TestListRunsFilters(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()

	a := testRun("run-a")
	a.MemoID = "memo-1"
	b := testRun("run-b")
	b.WorkflowID = "wf-2"
	b.Status = schema.RunStatusFailed
	require.NoError(t, store.CreateRun(ctx, a))
	require.NoError(t, store.CreateRun(ctx, b))

	all, err := store.ListRuns(ctx, RunFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	byWorkflow, err := store.ListRuns(ctx, RunFilter{WorkflowID: "wf-2"})
	require.NoError(t, err)
	require.Len(t, byWorkflow, 1)
	assert.Equal(t, "run-b", byWorkflow[0].ID)

	byMemo, err := store.ListRuns(ctx, RunFilter{MemoID: "memo-1"})
	require.NoError(t, err)
	require.Len(t, byMemo, 1)
	assert.Equal(t, "run-a", byMemo[0].ID)

	failed := schema.RunStatusFailed
	byStatus, err := store.ListRuns(ctx, RunFilter{Status: &failed})
	require.NoError(t, err)
	require.Len(t, byStatus, 1)
	assert.Equal(t, "run-b", byStatus[0].ID)

	limited, err := store.ListRuns(ctx, RunFilter{Limit: 1})
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestStepsRoundTrip(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()

	require.NoError(t, store.CreateRun(ctx, testRun("run-1")))
	require.NoError(t, store.CreateStep(ctx, &RunStep{
		RunID: "run-1", StepNumber: 2, StepID: "second", StepType: schema.StepTransform, Output: "B",
	}))
	require.NoError(t, store.CreateStep(ctx, &RunStep{
		RunID: "run-1", StepNumber: 1, StepID: "first", StepType: schema.StepNotify,
		InputPreview: "hello", Output: "A", OutputKey: "greeting", DurationMs: 7,
	}))

	steps, err := store.ListSteps(ctx, "run-1")
	require.NoError(t, err)
	require.Len(t, steps, 2)
	assert.Equal(t, "first", steps[0].StepID)
	assert.Equal(t, "second", steps[1].StepID)
	assert.Equal(t, schema.StepNotify, steps[0].StepType)
	assert.Equal(t, "greeting", steps[0].OutputKey)
	assert.EqualValues(t, 7, steps[0].DurationMs)
}

func TestAppendEventAssignsSequence(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()

	require.NoError(t, store.CreateRun(ctx, testRun("run-1")))
	require.NoError(t, store.CreateRun(ctx, testRun("run-2")))

	for range 3 {
		require.NoError(t, store.AppendEvent(ctx, &RunEvent{RunID: "run-1", Type: schema.EventRunCreated}))
	}
	require.NoError(t, store.AppendEvent(ctx, &RunEvent{RunID: "run-2", Type: schema.EventRunCreated}))

	events, err := store.GetEvents(ctx, "run-1")
	require.NoError(t, err)
	require.Len(t, events, 3)
	for i, e := range events {
		assert.EqualValues(t, i+1, e.Sequence)
	}

	// Sequences are per run, not global.
	other, err := store.GetEvents(ctx, "run-2")
	require.NoError(t, err)
	require.Len(t, other, 1)
	assert.EqualValues(t, 1, other[0].Sequence)
}

func TestAppendEventPayloadRoundTrip(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()

	require.NoError(t, store.CreateRun(ctx, testRun("run-1")))
	require.NoError(t, store.AppendEvent(ctx, &RunEvent{
		RunID:   "run-1",
		Type:    schema.EventRunFailed,
		Payload: []byte(`{"error":"boom"}`),
	}))

	events, err := store.GetEvents(ctx, "run-1")
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.JSONEq(t, `{"error":"boom"}`, string(events[0].Payload))
}

func TestDefinitionsUpsert(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()

	def := &schema.WorkflowDefinition{
		ID:      "wf-1",
		Name:    "Meeting Notes",
		Enabled: true,
		Steps: []schema.Step{{
			ID: "notify", Type: schema.StepNotify, Enabled: true,
			Config: &schema.NotifyConfig{Message: "done"},
		}},
	}
	require.NoError(t, store.SaveDefinition(ctx, def))

	got, err := store.GetDefinition(ctx, "wf-1")
	require.NoError(t, err)
	assert.Equal(t, "Meeting Notes", got.Name)
	require.Len(t, got.Steps, 1)
	cfg, ok := got.Steps[0].Config.(*schema.NotifyConfig)
	require.True(t, ok)
	assert.Equal(t, "done", cfg.Message)

	def.Name = "Meeting Notes v2"
	def.AutoRun = true
	require.NoError(t, store.SaveDefinition(ctx, def))

	defs, err := store.ListDefinitions(ctx)
	require.NoError(t, err)
	require.Len(t, defs, 1)
	assert.Equal(t, "Meeting Notes v2", defs[0].Name)
	assert.True(t, defs[0].AutoRun)

	require.NoError(t, store.DeleteDefinition(ctx, "wf-1"))
	err = store.DeleteDefinition(ctx, "wf-1")
	assert.True(t, schema.HasCode(err, schema.ErrCodeNotFound))
}

func TestProcessedMemos(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()

	done, err := store.IsProcessed(ctx, "memo-1")
	require.NoError(t, err)
	assert.False(t, done)

	require.NoError(t, store.MarkProcessed(ctx, "memo-1"))
	require.NoError(t, store.MarkProcessed(ctx, "memo-1")) // idempotent

	done, err = store.IsProcessed(ctx, "memo-1")
	require.NoError(t, err)
	assert.True(t, done)
}

func TestScheduledJobsCRUD(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()

	next := time.Now().UTC().Add(time.Hour).Truncate(time.Second)
	job := &ScheduledJob{
		ID:         "job-1",
		WorkflowID: "wf-1",
		CronExpr:   "0 9 * * *",
		Enabled:    true,
		NextRunAt:  &next,
	}
	require.NoError(t, store.SaveScheduledJob(ctx, job))

	jobs, err := store.ListScheduledJobs(ctx)
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, "0 9 * * *", jobs[0].CronExpr)
	assert.True(t, jobs[0].Enabled)
	require.NotNil(t, jobs[0].NextRunAt)

	ran := time.Now().UTC().Truncate(time.Second)
	require.NoError(t, store.UpdateScheduledJob(ctx, "job-1", ScheduledJobUpdate{
		LastRunAt:     &ran,
		LastRunStatus: "success",
	}))

	jobs, err = store.ListScheduledJobs(ctx)
	require.NoError(t, err)
	assert.Equal(t, "success", jobs[0].LastRunStatus)
	require.NotNil(t, jobs[0].LastRunAt)

	require.NoError(t, store.DeleteScheduledJob(ctx, "job-1"))
	err = store.UpdateScheduledJob(ctx, "job-1", ScheduledJobUpdate{})
	assert.True(t, schema.HasCode(err, schema.ErrCodeNotFound))
}

func TestSecretsRoundTrip(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()

	require.NoError(t, store.StoreSecret(ctx, "api_key", []byte("cipher-a")))
	require.NoError(t, store.StoreSecret(ctx, "api_key", []byte("cipher-b"))) // upsert
	require.NoError(t, store.StoreSecret(ctx, "webhook_token", []byte("cipher-c")))

	got, err := store.GetSecret(ctx, "api_key")
	require.NoError(t, err)
	assert.Equal(t, []byte("cipher-b"), got)

	keys, err := store.ListSecrets(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"api_key", "webhook_token"}, keys)

	require.NoError(t, store.DeleteSecret(ctx, "api_key"))
	_, err = store.GetSecret(ctx, "api_key")
	assert.True(t, schema.HasCode(err, schema.ErrCodeNotFound))
	err = store.DeleteSecret(ctx, "api_key")
	assert.True(t, schema.HasCode(err, schema.ErrCodeNotFound))
}

func TestMigrateIsIdempotent(t *testing.T) {
	store := testStore(t)
	require.NoError(t, store.Migrate(context.Background()))
	require.NoError(t, store.Migrate(context.Background()))
}
