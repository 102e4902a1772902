package library

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/voxflow/voxflow/internal/identity"
	"github.com/voxflow/voxflow/internal/validation"
	"github.com/voxflow/voxflow/internal/world"
	"github.com/voxflow/voxflow/pkg/schema"
)

// Library manages workflow definitions: persistence, draft editing with
// atomic commit, and file import. Edits never touch the stored
// definition directly; a draft is a deep copy committed as a whole or
// discarded.
type Library struct {
	store     world.Store
	validator *validation.Validator
	logger    *slog.Logger

	mu     sync.Mutex
	drafts map[string]*schema.WorkflowDefinition
}

// New creates a Library.
func New(store world.Store, validator *validation.Validator, logger *slog.Logger) *Library {
	if logger == nil {
		logger = slog.Default()
	}
	return &Library{
		store:     store,
		validator: validator,
		logger:    logger,
		drafts:    make(map[string]*schema.WorkflowDefinition),
	}
}

// Get returns the stored definition by id.
func (l *Library) Get(ctx context.Context, id string) (*schema.WorkflowDefinition, error) {
	return l.store.GetDefinition(ctx, id)
}

// List returns all stored definitions.
func (l *Library) List(ctx context.Context) ([]*schema.WorkflowDefinition, error) {
	return l.store.ListDefinitions(ctx)
}

// Create validates and stores a new definition. An empty ID is derived
// deterministically from the name so re-imports keep their identity.
func (l *Library) Create(ctx context.Context, def *schema.WorkflowDefinition) error {
	if def == nil {
		return schema.NewError(schema.ErrCodeValidation, "definition is nil")
	}
	if def.ID == "" {
		def.ID = identity.WorkflowID(slugify(def.Name))
	}
	now := time.Now().UTC()
	if def.CreatedAt.IsZero() {
		def.CreatedAt = now
	}
	def.ModifiedAt = now

	if err := l.validator.ValidateDefinition(def); err != nil {
		return err
	}
	if _, err := l.store.GetDefinition(ctx, def.ID); err == nil {
		return schema.NewErrorf(schema.ErrCodeConflict, "definition %q already exists", def.ID)
	}
	l.logger.Info("definition created", "workflow_id", def.ID, "name", def.Name, "steps", len(def.Steps))
	return l.store.SaveDefinition(ctx, def)
}

// Save creates the definition or replaces an existing one with the
// same id. Replacement goes through the draft path so ModifiedAt is
// bumped consistently.
func (l *Library) Save(ctx context.Context, def *schema.WorkflowDefinition) error {
	if def == nil {
		return schema.NewError(schema.ErrCodeValidation, "definition is nil")
	}
	if def.ID != "" {
		if _, err := l.store.GetDefinition(ctx, def.ID); err == nil {
			draft, draftErr := l.Draft(ctx, def.ID)
			if draftErr != nil {
				return draftErr
			}
			*draft = *def
			return l.CommitDraft(ctx, def.ID)
		}
	}
	return l.Create(ctx, def)
}

// Delete removes a definition and any open draft for it.
func (l *Library) Delete(ctx context.Context, id string) error {
	l.mu.Lock()
	delete(l.drafts, id)
	l.mu.Unlock()
	return l.store.DeleteDefinition(ctx, id)
}

// Draft returns an editable deep copy of the stored definition. Repeat
// calls return the same open draft.
func (l *Library) Draft(ctx context.Context, id string) (*schema.WorkflowDefinition, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if draft, ok := l.drafts[id]; ok {
		return draft, nil
	}
	stored, err := l.store.GetDefinition(ctx, id)
	if err != nil {
		return nil, err
	}
	draft := stored.Clone()
	l.drafts[id] = draft
	return draft, nil
}

// CommitDraft validates the open draft and stores it atomically,
// bumping ModifiedAt. The draft is closed on success.
func (l *Library) CommitDraft(ctx context.Context, id string) error {
	l.mu.Lock()
	draft, ok := l.drafts[id]
	l.mu.Unlock()
	if !ok {
		return schema.NewErrorf(schema.ErrCodeNotFound, "no open draft for %q", id)
	}

	draft.ModifiedAt = time.Now().UTC()
	if err := l.validator.ValidateDefinition(draft); err != nil {
		return err
	}
	if err := l.store.SaveDefinition(ctx, draft); err != nil {
		return err
	}

	l.mu.Lock()
	delete(l.drafts, id)
	l.mu.Unlock()
	l.logger.Info("draft committed", "workflow_id", id, "modified_at", draft.ModifiedAt)
	return nil
}

// DiscardDraft drops an open draft without saving.
func (l *Library) DiscardDraft(id string) {
	l.mu.Lock()
	delete(l.drafts, id)
	l.mu.Unlock()
}

// slugify lowercases a name and collapses non-alphanumerics to dashes.
func slugify(name string) string {
	var b strings.Builder
	lastDash := true
	for _, r := range strings.ToLower(name) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastDash = false
		default:
			if !lastDash {
				b.WriteByte('-')
				lastDash = true
			}
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}
