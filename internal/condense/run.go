package condense

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jimmc414/thread-condenser/internal/ingest"
	"github.com/jimmc414/thread-condenser/internal/platform"
	"github.com/jimmc414/thread-condenser/internal/store"
	"github.com/jimmc414/thread-condenser/internal/tokenize"
)

// DefaultPromotionThreshold is the minimum score an item needs to stay
// in the brief.
const DefaultPromotionThreshold = 0.65

// RunError tags a failed run with the platform, thread reference, and
// pipeline stage it failed in.
type RunError struct {
	Platform string
	Ref      map[string]string
	Stage    string
	Err      error
}

func (e *RunError) Error() string {
	return fmt.Sprintf("condense %s thread failed at %s: %v", e.Platform, e.Stage, e.Err)
}

func (e *RunError) Unwrap() error { return e.Err }

// Options adjusts a single run.
type Options struct {
	// RunID overrides the generated run id (used when a run was assigned
	// its id at enqueue time).
	RunID string

	// Threshold overrides the promotion threshold when > 0.
	Threshold float64

	// SegmentTokens overrides the per-segment token budget when > 0.
	SegmentTokens int
}

// Runner drives a condense run end to end: ingest, preprocess, segment,
// extract, rank, link, persist.
type Runner struct {
	store     store.Store
	ingestor  *ingest.Ingestor
	extractor *Extractor
	counter   tokenize.Counter
	threshold float64
	log       *zap.Logger
}

// NewRunner wires a run driver.
func NewRunner(st store.Store, ing *ingest.Ingestor, ex *Extractor, counter tokenize.Counter, threshold float64, log *zap.Logger) *Runner {
	if threshold <= 0 {
		threshold = DefaultPromotionThreshold
	}
	if counter == nil {
		counter = tokenize.Heuristic{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Runner{store: st, ingestor: ing, extractor: ex, counter: counter, threshold: threshold, log: log}
}

// NewRunID generates a condense-run identifier.
func NewRunID() string {
	return "rc-" + uuid.NewString()
}

// Run executes the full pipeline for one thread and returns the run id
// and the persisted brief. Failures carry the stage they occurred in.
func (r *Runner) Run(ctx context.Context, ref *platform.ThreadRef, opts Options) (string, *CondenseResult, error) {
	runID := opts.RunID
	if runID == "" {
		runID = NewRunID()
	}
	fail := func(stage string, err error) (string, *CondenseResult, error) {
		r.log.Error("condense run failed",
			zap.String("run_id", runID),
			zap.String("stage", stage),
			zap.Error(err))
		return runID, nil, &RunError{Platform: ref.Platform, Ref: ref.Map(), Stage: stage, Err: err}
	}

	started := time.Now()
	r.log.Info("condense run started",
		zap.String("run_id", runID),
		zap.String("platform", ref.Platform))

	thread, err := r.ingestor.IngestThread(ctx, ref)
	if err != nil {
		return fail("ingest", err)
	}

	messages, err := Preprocess(ctx, r.store, thread.ID)
	if err != nil {
		return fail("preprocess", err)
	}

	segTokens := opts.SegmentTokens
	if segTokens <= 0 {
		segTokens = DefaultSegmentTokens
	}
	segments := Segment(messages, r.counter, segTokens)

	result, err := r.extractor.Extract(ctx, ref.Platform, thread.SourceURL, ref, segments, runID)
	if err != nil {
		return fail("extract", err)
	}

	threshold := opts.Threshold
	if threshold <= 0 {
		threshold = r.threshold
	}
	result = RankAndFilter(result, BuildReactionIndex(messages), threshold)
	result = AttachLinks(messages, result)
	fillActionOwners(result)

	blob, err := json.Marshal(result)
	if err != nil {
		return fail("persist", err)
	}
	brief := &store.Brief{
		RunID:        runID,
		ThreadID:     thread.ID,
		Platform:     result.Platform,
		Version:      "1",
		ModelVersion: "v1.0",
		APIVersion:   "v1",
		JSON:         blob,
	}
	if err := r.store.SaveBrief(ctx, brief); err != nil {
		return fail("persist", err)
	}

	r.log.Info("condense run finished",
		zap.String("run_id", runID),
		zap.Int("messages", len(messages)),
		zap.Int("segments", len(segments)),
		zap.Int("decisions", len(result.Decisions)),
		zap.Int("actions", len(result.Actions)),
		zap.Duration("elapsed", time.Since(started)))
	return runID, result, nil
}

// Summarize ingests the thread and returns one plain-text summary per
// segment instead of running extraction. Failures carry the stage they
// occurred in, like Run.
func (r *Runner) Summarize(ctx context.Context, ref *platform.ThreadRef, opts Options) ([]string, error) {
	fail := func(stage string, err error) ([]string, error) {
		r.log.Error("summarize failed",
			zap.String("stage", stage),
			zap.Error(err))
		return nil, &RunError{Platform: ref.Platform, Ref: ref.Map(), Stage: stage, Err: err}
	}

	thread, err := r.ingestor.IngestThread(ctx, ref)
	if err != nil {
		return fail("ingest", err)
	}
	messages, err := Preprocess(ctx, r.store, thread.ID)
	if err != nil {
		return fail("preprocess", err)
	}

	segTokens := opts.SegmentTokens
	if segTokens <= 0 {
		segTokens = DefaultSegmentTokens
	}
	segments := Segment(messages, r.counter, segTokens)

	summaries, err := SummarizeSegments(ctx, r.extractor.llm, r.extractor.model, segments)
	if err != nil {
		return fail("summarize", err)
	}
	return summaries, nil
}
