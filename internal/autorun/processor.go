package autorun

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/voxflow/voxflow/internal/engine"
	"github.com/voxflow/voxflow/internal/world"
	"github.com/voxflow/voxflow/pkg/schema"
)

// Memo is one new recording to process.
type Memo struct {
	ID         string
	Title      string
	Transcript string
	AudioPath  string
	RecordedAt time.Time
}

// Dispatcher runs one workflow and records its history. Satisfied by
// *world.Recorder.
type Dispatcher interface {
	Dispatch(ctx context.Context, def *schema.WorkflowDefinition, in engine.Input, memoID string) (*engine.Result, error)
}

// Config controls the processor.
type Config struct {
	Enabled           bool
	DefaultWorkflowID string
	// Concurrency bounds parallel dispatch in the post-transcription
	// phase. Zero or negative means one at a time.
	Concurrency int
}

// Processor decides which workflows fire automatically for a new memo
// and deduplicates re-runs. One workflow's failure never blocks its
// siblings.
type Processor struct {
	store      world.Store
	dispatcher Dispatcher
	cfg        Config
	logger     *slog.Logger
}

// NewProcessor creates a Processor.
func NewProcessor(store world.Store, dispatcher Dispatcher, cfg Config, logger *slog.Logger) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Processor{store: store, dispatcher: dispatcher, cfg: cfg, logger: logger}
}

// Summary reports what one ProcessNewMemo call did.
type Summary struct {
	MemoID    string
	Ran       []string // workflow ids that completed
	Skipped   []string // graceful stop or missing precondition
	Failed    []string
	Processed bool // marker set
}

// ProcessNewMemo runs the auto-run pipeline for a new memo:
// enable check, processed-marker dedup, run-history dedup, then the
// transcription-first phase followed by the post-transcription phase.
func (p *Processor) ProcessNewMemo(ctx context.Context, memo Memo) (*Summary, error) {
	summary := &Summary{MemoID: memo.ID}

	if !p.cfg.Enabled {
		p.logger.Debug("auto-run disabled", "memo_id", memo.ID)
		return summary, nil
	}

	processed, err := p.store.IsProcessed(ctx, memo.ID)
	if err != nil {
		return nil, err
	}
	if processed {
		p.logger.Debug("memo already processed", "memo_id", memo.ID)
		return summary, nil
	}

	candidates, err := p.candidates(ctx, memo.ID)
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		p.logger.Info("no auto-run workflows for memo", "memo_id", memo.ID)
		return summary, nil
	}

	var first, post []*schema.WorkflowDefinition
	for _, def := range candidates {
		if transcriptionFirst(def) {
			first = append(first, def)
		} else {
			post = append(post, def)
		}
	}

	transcript := memo.Transcript

	// Phase 1: transcription-first workflows need the raw audio.
	if len(first) > 0 {
		if memo.AudioPath == "" {
			p.logger.Info("no raw audio, skipping transcription-first workflows",
				"memo_id", memo.ID, "workflows", len(first))
			for _, def := range first {
				summary.Skipped = append(summary.Skipped, def.ID)
			}
		} else {
			for _, def := range first {
				out := p.runOne(ctx, def, memo, transcript, summary)
				if out != "" && transcript == "" {
					transcript = out
				}
			}
		}
	}

	// Phase 2 needs a non-empty transcript, whether it pre-existed or
	// was produced by phase 1. Workflows here are independent of each
	// other, so they dispatch through a bounded pool.
	if len(post) > 0 {
		if transcript == "" {
			p.logger.Info("no transcript available, skipping post-transcription workflows",
				"memo_id", memo.ID, "workflows", len(post))
			for _, def := range post {
				summary.Skipped = append(summary.Skipped, def.ID)
			}
		} else {
			pool := newDispatchPool(p.cfg.Concurrency)
			var mu sync.Mutex
			for _, def := range post {
				def := def
				err := pool.Submit(ctx, func(ctx context.Context) error {
					outcome, _ := p.dispatchOne(ctx, def, memo, transcript)
					mu.Lock()
					outcome.record(def.ID, summary)
					mu.Unlock()
					return nil
				})
				if err != nil {
					summary.Skipped = append(summary.Skipped, def.ID)
				}
			}
			pool.Shutdown()
		}
	}

	if len(summary.Ran) > 0 {
		if err := p.store.MarkProcessed(ctx, memo.ID); err != nil {
			p.logger.Error("mark processed", "memo_id", memo.ID, "error", err.Error())
		} else {
			summary.Processed = true
		}
	}
	return summary, nil
}

type runOutcome int

const (
	outcomeRan runOutcome = iota
	outcomeSkipped
	outcomeFailed
)

func (o runOutcome) record(workflowID string, summary *Summary) {
	switch o {
	case outcomeRan:
		summary.Ran = append(summary.Ran, workflowID)
	case outcomeSkipped:
		summary.Skipped = append(summary.Skipped, workflowID)
	case outcomeFailed:
		summary.Failed = append(summary.Failed, workflowID)
	}
}

// runOne executes a single workflow and records it in the summary.
// Returns the transcript produced by a transcribe step, if any.
func (p *Processor) runOne(ctx context.Context, def *schema.WorkflowDefinition, memo Memo, transcript string, summary *Summary) string {
	outcome, out := p.dispatchOne(ctx, def, memo, transcript)
	outcome.record(def.ID, summary)
	return out
}

// dispatchOne executes a single workflow, isolating failures and
// treating a graceful stop as a skip.
func (p *Processor) dispatchOne(ctx context.Context, def *schema.WorkflowDefinition, memo Memo, transcript string) (runOutcome, string) {
	in := engine.Input{
		SourceText: transcript,
		Title:      memo.Title,
		Date:       memo.RecordedAt,
		AudioPath:  memo.AudioPath,
	}
	result, err := p.dispatcher.Dispatch(ctx, def, in, memo.ID)
	if err != nil {
		if schema.IsGracefulStop(err) {
			return outcomeSkipped, ""
		}
		p.logger.Error("auto-run workflow failed",
			"memo_id", memo.ID, "workflow_id", def.ID, "error", err.Error())
		return outcomeFailed, ""
	}
	if result.Stopped {
		p.logger.Info("auto-run workflow stopped",
			"memo_id", memo.ID, "workflow_id", def.ID, "reason", result.StopReason)
		return outcomeSkipped, ""
	}

	for _, step := range result.Steps {
		if step.StepType == schema.StepTranscribe {
			return outcomeRan, step.Output
		}
	}
	return outcomeRan, ""
}

// candidates gathers enabled auto-run workflows sorted by explicit
// order, deduplicated against workflows that already produced a run
// for this memo. With nothing flagged, the configured default workflow
// is the fallback.
func (p *Processor) candidates(ctx context.Context, memoID string) ([]*schema.WorkflowDefinition, error) {
	defs, err := p.store.ListDefinitions(ctx)
	if err != nil {
		return nil, err
	}

	var flagged []*schema.WorkflowDefinition
	for _, def := range defs {
		if def.Enabled && def.AutoRun {
			flagged = append(flagged, def)
		}
	}
	sort.SliceStable(flagged, func(i, j int) bool {
		return flagged[i].AutoRunOrder < flagged[j].AutoRunOrder
	})

	if len(flagged) == 0 && p.cfg.DefaultWorkflowID != "" {
		def, err := p.store.GetDefinition(ctx, p.cfg.DefaultWorkflowID)
		if err == nil && def.Enabled {
			flagged = append(flagged, def)
		}
	}

	runs, err := p.store.ListRuns(ctx, world.RunFilter{MemoID: memoID})
	if err != nil {
		return nil, err
	}
	seen := make(map[string]struct{}, len(runs))
	for _, r := range runs {
		seen[r.WorkflowID] = struct{}{}
	}

	out := flagged[:0]
	for _, def := range flagged {
		if _, ok := seen[def.ID]; ok {
			p.logger.Debug("workflow already ran for memo", "memo_id", memoID, "workflow_id", def.ID)
			continue
		}
		out = append(out, def)
	}
	return out, nil
}

// transcriptionFirst reports whether the first enabled step transcribes.
func transcriptionFirst(def *schema.WorkflowDefinition) bool {
	for i := range def.Steps {
		if !def.Steps[i].Enabled {
			continue
		}
		return def.Steps[i].Type == schema.StepTranscribe
	}
	return false
}
