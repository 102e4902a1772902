package library

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voxflow/voxflow/internal/validation"
	"github.com/voxflow/voxflow/internal/world"
	"github.com/voxflow/voxflow/pkg/schema"
)

// defStore is an in-memory definition store for library tests.
type defStore struct {
	world.Store
	defs map[string]*schema.WorkflowDefinition
}

func newDefStore() *defStore {
	return &defStore{defs: make(map[string]*schema.WorkflowDefinition)}
}

func (s *defStore) SaveDefinition(_ context.Context, def *schema.WorkflowDefinition) error {
	s.defs[def.ID] = def.Clone()
	return nil
}

func (s *defStore) GetDefinition(_ context.Context, id string) (*schema.WorkflowDefinition, error) {
	def, ok := s.defs[id]
	if !ok {
		return nil, schema.NewErrorf(schema.ErrCodeNotFound, "definition %q not found", id)
	}
	return def.Clone(), nil
}

func (s *defStore) ListDefinitions(_ context.Context) ([]*schema.WorkflowDefinition, error) {
	out := make([]*schema.WorkflowDefinition, 0, len(s.defs))
	for _, def := range s.defs {
		out = append(out, def.Clone())
	}
	return out, nil
}

func (s *defStore) DeleteDefinition(_ context.Context, id string) error {
	if _, ok := s.defs[id]; !ok {
		return schema.NewErrorf(schema.ErrCodeNotFound, "definition %q not found", id)
	}
	delete(s.defs, id)
	return nil
}

func testLibrary(t *testing.T) (*Library, *defStore) {
	t.Helper()
	validator, err := validation.NewValidator()
	require.NoError(t, err)
	store := newDefStore()
	return New(store, validator, slog.New(slog.DiscardHandler)), store
}

func sampleDef(id string) *schema.WorkflowDefinition {
	return &schema.WorkflowDefinition{
		ID:      id,
		Name:    "Meeting Notes",
		Enabled: true,
		Steps: []schema.Step{{
			ID: "notify", Type: schema.StepNotify, Enabled: true,
			Config: &schema.NotifyConfig{Message: "done"},
		}},
	}
}

func TestCreateAndGet(t *testing.T) {
	lib, _ := testLibrary(t)
	ctx := context.Background()

	def := sampleDef("wf-1")
	require.NoError(t, lib.Create(ctx, def))
	assert.False(t, def.CreatedAt.IsZero())
	assert.False(t, def.ModifiedAt.IsZero())

	got, err := lib.Get(ctx, "wf-1")
	require.NoError(t, err)
	assert.Equal(t, "Meeting Notes", got.Name)
}

func TestCreateDerivesIDFromName(t *testing.T) {
	lib, _ := testLibrary(t)

	def := sampleDef("")
	require.NoError(t, lib.Create(context.Background(), def))
	assert.NotEmpty(t, def.ID)

	// Same name, same derived identity.
	again := sampleDef("")
	err := lib.Create(context.Background(), again)
	require.Error(t, err)
	assert.True(t, schema.HasCode(err, schema.ErrCodeConflict))
	assert.Equal(t, def.ID, again.ID)
}

func TestCreateRejectsInvalid(t *testing.T) {
	lib, store := testLibrary(t)

	def := sampleDef("wf-1")
	def.Name = ""
	err := lib.Create(context.Background(), def)
	require.Error(t, err)
	assert.True(t, schema.HasCode(err, schema.ErrCodeValidation))
	assert.Empty(t, store.defs)

	err = lib.Create(context.Background(), nil)
	assert.True(t, schema.HasCode(err, schema.ErrCodeValidation))
}

func TestCreateDuplicate(t *testing.T) {
	lib, _ := testLibrary(t)
	ctx := context.Background()

	require.NoError(t, lib.Create(ctx, sampleDef("wf-1")))
	err := lib.Create(ctx, sampleDef("wf-1"))
	require.Error(t, err)
	assert.True(t, schema.HasCode(err, schema.ErrCodeConflict))
}

func TestSaveUpserts(t *testing.T) {
	lib, _ := testLibrary(t)
	ctx := context.Background()

	require.NoError(t, lib.Save(ctx, sampleDef("wf-1")))

	updated := sampleDef("wf-1")
	updated.Name = "Meeting Notes v2"
	require.NoError(t, lib.Save(ctx, updated))

	got, err := lib.Get(ctx, "wf-1")
	require.NoError(t, err)
	assert.Equal(t, "Meeting Notes v2", got.Name)
	assert.False(t, got.ModifiedAt.IsZero())

	defs, err := lib.List(ctx)
	require.NoError(t, err)
	assert.Len(t, defs, 1)
}

func TestDraftCommit(t *testing.T) {
	lib, _ := testLibrary(t)
	ctx := context.Background()

	require.NoError(t, lib.Create(ctx, sampleDef("wf-1")))

	draft, err := lib.Draft(ctx, "wf-1")
	require.NoError(t, err)
	draft.Name = "Edited"

	// The stored definition is untouched until commit.
	stored, err := lib.Get(ctx, "wf-1")
	require.NoError(t, err)
	assert.Equal(t, "Meeting Notes", stored.Name)

	// Repeat calls return the same open draft.
	same, err := lib.Draft(ctx, "wf-1")
	require.NoError(t, err)
	assert.Equal(t, "Edited", same.Name)

	require.NoError(t, lib.CommitDraft(ctx, "wf-1"))

	stored, err = lib.Get(ctx, "wf-1")
	require.NoError(t, err)
	assert.Equal(t, "Edited", stored.Name)

	// Commit closed the draft.
	err = lib.CommitDraft(ctx, "wf-1")
	assert.True(t, schema.HasCode(err, schema.ErrCodeNotFound))
}

func TestCommitDraftRejectsInvalid(t *testing.T) {
	lib, _ := testLibrary(t)
	ctx := context.Background()

	require.NoError(t, lib.Create(ctx, sampleDef("wf-1")))

	draft, err := lib.Draft(ctx, "wf-1")
	require.NoError(t, err)
	draft.Name = ""

	err = lib.CommitDraft(ctx, "wf-1")
	require.Error(t, err)
	assert.True(t, schema.HasCode(err, schema.ErrCodeValidation))

	// The invalid draft stays open; the store keeps the old version.
	stored, err := lib.Get(ctx, "wf-1")
	require.NoError(t, err)
	assert.Equal(t, "Meeting Notes", stored.Name)
}

func TestDiscardDraft(t *testing.T) {
	lib, _ := testLibrary(t)
	ctx := context.Background()

	require.NoError(t, lib.Create(ctx, sampleDef("wf-1")))

	draft, err := lib.Draft(ctx, "wf-1")
	require.NoError(t, err)
	draft.Name = "Edited"
	lib.DiscardDraft("wf-1")

	fresh, err := lib.Draft(ctx, "wf-1")
	require.NoError(t, err)
	assert.Equal(t, "Meeting Notes", fresh.Name)
}

func TestDeleteDropsDraft(t *testing.T) {
	lib, _ := testLibrary(t)
	ctx := context.Background()

	require.NoError(t, lib.Create(ctx, sampleDef("wf-1")))
	_, err := lib.Draft(ctx, "wf-1")
	require.NoError(t, err)

	require.NoError(t, lib.Delete(ctx, "wf-1"))
	err = lib.CommitDraft(ctx, "wf-1")
	assert.True(t, schema.HasCode(err, schema.ErrCodeNotFound))
}

func TestSlugify(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Meeting Notes", "meeting-notes"},
		{"  Daily  Summary!  ", "daily-summary"},
		{"already-slugged", "already-slugged"},
		{"CamelCase123", "camelcase123"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, slugify(tt.in), tt.in)
	}
}
