package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/voxflow/voxflow/pkg/schema"
)

// executeSubflows dispatches the sub-workflows routed by a prior
// extract-intents step. Each sub-run re-enters Run with its own fresh
// context; nothing is shared between siblings. There is no recursion
// guard: a workflow routing back to itself recurses until the stack
// runs out. TODO: add a depth limit once the definition editor can
// surface the resulting validation error.
func (d *Dispatcher) executeSubflows(ctx context.Context, st *runState, cfg *schema.ExecuteWorkflowsConfig) (string, error) {
	if d.defs == nil {
		return "", schema.NewError(schema.ErrCodeProviderUnavailable, "no definition source configured")
	}

	raw := st.runCtx.LastOutput()
	if cfg.IntentsKey != "" {
		v, ok := st.runCtx.Get(cfg.IntentsKey)
		if !ok {
			return "", schema.NewErrorf(schema.ErrCodePrecondition,
				"no intents under context key %q", cfg.IntentsKey)
		}
		raw = v
	}

	var intents []schema.ExtractedIntent
	if err := json.Unmarshal([]byte(raw), &intents); err != nil {
		return "", schema.NewErrorf(schema.ErrCodeValidation,
			"execute-workflows input is not an intent list: %s", err.Error()).WithCause(err)
	}

	var targets []schema.ExtractedIntent
	for _, it := range intents {
		if it.DetectOnly() {
			d.logger.Info("intent detect-only, not executed",
				"run_id", st.runID, "action", it.Action, "confidence", it.Confidence)
			continue
		}
		if it.TargetWorkflowID == "" {
			d.logger.Warn("intent has no target workflow", "run_id", st.runID, "action", it.Action)
			continue
		}
		targets = append(targets, it)
	}
	if len(targets) == 0 {
		return "no sub-workflows to execute", nil
	}

	in := Input{
		SourceText: st.runCtx.SourceText,
		Title:      st.runCtx.Title,
		Date:       st.runCtx.Date,
		AudioPath:  st.runCtx.AudioPath,
	}

	var outcomes []subflowOutcome
	if cfg.Parallel {
		outcomes = d.runSubflowsParallel(ctx, targets, in, cfg.StopOnError)
	} else {
		outcomes = d.runSubflowsSequential(ctx, targets, in, cfg.StopOnError)
	}

	var lines []string
	var firstErr error
	failed := 0
	for _, oc := range outcomes {
		lines = append(lines, oc.String())
		if oc.err != nil {
			failed++
			if firstErr == nil {
				firstErr = oc.err
			}
		}
	}

	if cfg.StopOnError && firstErr != nil {
		return "", schema.NewErrorf(schema.ErrCodeStepFailed,
			"sub-workflow failed: %s", firstErr.Error()).WithCause(firstErr)
	}
	summary := fmt.Sprintf("%d sub-workflows: %d completed, %d failed",
		len(outcomes), len(outcomes)-failed, failed)
	return summary + "\n" + strings.Join(lines, "\n"), nil
}

type subflowOutcome struct {
	workflowID string
	action     string
	result     *Result
	err        error
}

func (o subflowOutcome) String() string {
	switch {
	case o.err != nil:
		return fmt.Sprintf("%s (%s): failed: %s", o.workflowID, o.action, o.err.Error())
	case o.result != nil && o.result.Stopped:
		return fmt.Sprintf("%s (%s): completed (stopped: %s)", o.workflowID, o.action, o.result.StopReason)
	default:
		return fmt.Sprintf("%s (%s): completed", o.workflowID, o.action)
	}
}

func (d *Dispatcher) runSubflow(ctx context.Context, it schema.ExtractedIntent, in Input) subflowOutcome {
	oc := subflowOutcome{workflowID: it.TargetWorkflowID, action: it.Action}
	def, err := d.defs.Get(ctx, it.TargetWorkflowID)
	if err != nil {
		oc.err = err
		return oc
	}
	oc.result, oc.err = d.Run(ctx, def, in)
	return oc
}

func (d *Dispatcher) runSubflowsSequential(ctx context.Context, targets []schema.ExtractedIntent, in Input, stopOnError bool) []subflowOutcome {
	outcomes := make([]subflowOutcome, 0, len(targets))
	for _, it := range targets {
		oc := d.runSubflow(ctx, it, in)
		outcomes = append(outcomes, oc)
		if oc.err != nil && stopOnError {
			break
		}
	}
	return outcomes
}

// runSubflowsParallel fans out one goroutine per routed intent. With
// stopOnError the first failure cancels the shared context; siblings
// notice at their next step boundary.
func (d *Dispatcher) runSubflowsParallel(ctx context.Context, targets []schema.ExtractedIntent, in Input, stopOnError bool) []subflowOutcome {
	subCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	outcomes := make([]subflowOutcome, len(targets))
	var wg sync.WaitGroup
	for i, it := range targets {
		wg.Add(1)
		go func(i int, it schema.ExtractedIntent) {
			defer wg.Done()
			outcomes[i] = d.runSubflow(subCtx, it, in)
			if outcomes[i].err != nil && stopOnError {
				cancel()
			}
		}(i, it)
	}
	wg.Wait()
	return outcomes
}
