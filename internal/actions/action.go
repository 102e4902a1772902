package actions

import (
	"context"
	"sort"
	"sync"

	"github.com/voxflow/voxflow/internal/expressions"
	"github.com/voxflow/voxflow/pkg/schema"
)

// Action executes one external step type. The dispatcher resolves
// internal step types itself (shell, trigger, branch, transform,
// intents, sub-workflows); everything else is looked up here.
type Action interface {
	Type() schema.StepType
	Execute(ctx context.Context, in Input) (string, error)
}

// Input is the data provided to an action at execution time. Config is
// the step's tagged-union payload; RunContext carries the accumulating
// text context for template resolution.
type Input struct {
	Config     schema.StepConfig
	RunContext *expressions.Context
}

// Registry is a thread-safe lookup of actions by step type.
type Registry struct {
	mu      sync.RWMutex
	actions map[schema.StepType]Action
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{actions: make(map[schema.StepType]Action)}
}

// Register adds an action. Returns an error on duplicate type.
func (r *Registry) Register(action Action) error {
	if action == nil {
		return schema.NewError(schema.ErrCodeValidation, "action is nil")
	}
	t := action.Type()
	if !schema.ValidStepType(t) {
		return schema.NewErrorf(schema.ErrCodeValidation, "unknown step type %q", t)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.actions[t]; exists {
		return schema.NewErrorf(schema.ErrCodeConflict, "action for %q already registered", t)
	}
	r.actions[t] = action
	return nil
}

// Get retrieves the action for a step type.
func (r *Registry) Get(t schema.StepType) (Action, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	action, ok := r.actions[t]
	if !ok {
		return nil, schema.NewErrorf(schema.ErrCodeNotFound, "no executor registered for step type %q", t)
	}
	return action, nil
}

// Has reports whether an action is registered for the step type.
func (r *Registry) Has(t schema.StepType) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.actions[t]
	return ok
}

// Types returns the registered step types, sorted.
func (r *Registry) Types() []schema.StepType {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]schema.StepType, 0, len(r.actions))
	for t := range r.actions {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
