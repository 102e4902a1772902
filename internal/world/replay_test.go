package world

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voxflow/voxflow/pkg/schema"
)

func foldBase() *Run {
	return &Run{
		ID:         "run-1",
		WorkflowID: "wf-1",
		Status:     schema.RunStatusCompleted, // stale row state; fold starts fresh
		CreatedAt:  time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC),
	}
}

func event(seq int64, eventType string, at time.Time) *RunEvent {
	return &RunEvent{RunID: "run-1", Sequence: seq, Type: eventType, CreatedAt: at}
}

func TestFoldEventsCompletedRun(t *testing.T) {
	t0 := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	events := []*RunEvent{
		event(1, schema.EventRunCreated, t0),
		event(2, schema.EventRunStarted, t0.Add(time.Second)),
		event(3, schema.EventStepCompleted, t0.Add(2*time.Second)),
		event(4, schema.EventRunCompleted, t0.Add(3*time.Second)),
	}

	run, err := FoldEvents(foldBase(), events)
	require.NoError(t, err)

	assert.Equal(t, schema.RunStatusCompleted, run.Status)
	require.NotNil(t, run.StartedAt)
	require.NotNil(t, run.CompletedAt)
	assert.EqualValues(t, 2000, run.DurationMs)
}

func TestFoldEventsFailedRunCarriesError(t *testing.T) {
	t0 := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	failed := event(3, schema.EventRunFailed, t0.Add(time.Second))
	failed.Payload = []byte(`{"error":"webhook returned status 503"}`)
	events := []*RunEvent{
		event(1, schema.EventRunCreated, t0),
		event(2, schema.EventRunStarted, t0),
		failed,
	}

	run, err := FoldEvents(foldBase(), events)
	require.NoError(t, err)

	assert.Equal(t, schema.RunStatusFailed, run.Status)
	assert.Equal(t, "webhook returned status 503", run.ErrorMessage)
}

func TestFoldEventsIsDeterministic(t *testing.T) {
	t0 := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	events := []*RunEvent{
		event(1, schema.EventRunCreated, t0),
		event(2, schema.EventRunStarted, t0),
		event(3, schema.EventRunCancelled, t0.Add(time.Minute)),
	}

	first, err := FoldEvents(foldBase(), events)
	require.NoError(t, err)
	second, err := FoldEvents(foldBase(), events)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, schema.RunStatusCancelled, first.Status)
}

func TestFoldEventsRejectsIllegalOrder(t *testing.T) {
	t0 := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

	// Completion without a start is not a legal transition.
	_, err := FoldEvents(foldBase(), []*RunEvent{
		event(1, schema.EventRunCreated, t0),
		event(2, schema.EventRunCompleted, t0),
	})
	require.Error(t, err)
	assert.True(t, schema.HasCode(err, schema.ErrCodeInvalidTransition))

	// A terminal state cannot transition again.
	_, err = FoldEvents(foldBase(), []*RunEvent{
		event(1, schema.EventRunStarted, t0),
		event(2, schema.EventRunCompleted, t0),
		event(3, schema.EventRunFailed, t0),
	})
	require.Error(t, err)
	assert.True(t, schema.HasCode(err, schema.ErrCodeInvalidTransition))
}

func TestReplayReconstructsRun(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()

	run := testRun("run-1")
	require.NoError(t, store.CreateRun(ctx, run))

	t0 := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	require.NoError(t, store.AppendEvent(ctx, &RunEvent{RunID: "run-1", Type: schema.EventRunCreated, CreatedAt: t0}))
	require.NoError(t, store.AppendEvent(ctx, &RunEvent{RunID: "run-1", Type: schema.EventRunStarted, CreatedAt: t0}))
	require.NoError(t, store.AppendEvent(ctx, &RunEvent{RunID: "run-1", Type: schema.EventRunCompleted, CreatedAt: t0.Add(5 * time.Second)}))

	replayed, err := store.Replay(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, schema.RunStatusCompleted, replayed.Status)
	assert.EqualValues(t, 5000, replayed.DurationMs)
}

func TestReplayUnknownRun(t *testing.T) {
	store := testStore(t)

	_, err := store.Replay(context.Background(), "ghost")
	require.Error(t, err)
	assert.True(t, schema.HasCode(err, schema.ErrCodeRunNotFound))
}

func TestReplayNoEvents(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()

	require.NoError(t, store.CreateRun(ctx, testRun("run-1")))

	_, err := store.Replay(ctx, "run-1")
	require.Error(t, err)
	assert.True(t, schema.HasCode(err, schema.ErrCodeNoEvents))
}

func TestReplaySequenceGap(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()

	require.NoError(t, store.CreateRun(ctx, testRun("run-1")))
	require.NoError(t, store.AppendEvent(ctx, &RunEvent{RunID: "run-1", Type: schema.EventRunCreated}))
	require.NoError(t, store.AppendEvent(ctx, &RunEvent{RunID: "run-1", Type: schema.EventRunStarted}))

	// Punch a hole in the log.
	_, err := store.DB().ExecContext(ctx, `DELETE FROM run_events WHERE run_id = ? AND sequence = 1`, "run-1")
	require.NoError(t, err)

	_, err = store.Replay(ctx, "run-1")
	require.Error(t, err)
	assert.True(t, schema.HasCode(err, schema.ErrCodeReplayFailed))
	assert.Contains(t, err.Error(), "sequence gap")
}

func TestReplayIllegalEventOrder(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()

	require.NoError(t, store.CreateRun(ctx, testRun("run-1")))
	require.NoError(t, store.AppendEvent(ctx, &RunEvent{RunID: "run-1", Type: schema.EventRunCompleted}))

	_, err := store.Replay(ctx, "run-1")
	require.Error(t, err)
	assert.True(t, schema.HasCode(err, schema.ErrCodeReplayFailed))
}
