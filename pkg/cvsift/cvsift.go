// Package cvsift turns raw résumé text into validated experience entries. It
// wires the pipeline end to end: segmentation into blocks, field extraction,
// contextual classification, and gate validation, with optional run
// persistence for later inspection.
package cvsift

import (
	"context"
	"encoding/json"
	"time"

	"github.com/oklog/ulid/v2"
	"golang.org/x/sync/errgroup"

	"github.com/cognicore/cvsift/pkg/cvsift/block"
	"github.com/cognicore/cvsift/pkg/cvsift/classify"
	"github.com/cognicore/cvsift/pkg/cvsift/extract"
	"github.com/cognicore/cvsift/pkg/cvsift/gate"
	"github.com/cognicore/cvsift/pkg/cvsift/lexicon"
	"github.com/cognicore/cvsift/pkg/cvsift/segment"
	"github.com/cognicore/cvsift/pkg/cvsift/stats"
	"github.com/cognicore/cvsift/pkg/cvsift/store"
)

// Engine is the pipeline facade. Construct once and share; all methods are
// safe for concurrent use.
type Engine struct {
	segmenter  *segment.Segmenter
	extractor  *extract.Extractor
	classifier *classify.Classifier
	gate       *gate.Gate
	store      store.Store
	workers    int
}

// Options configures an Engine. The zero value is usable: default lexicon,
// default gate thresholds, no persistence, sequential validation.
type Options struct {
	Lexicon    *lexicon.Lexicon
	GateConfig gate.Config

	// Workers bounds concurrent block validation. Zero or one validates
	// sequentially.
	Workers int

	// Store, when set, persists every Run's results. The engine takes
	// ownership and closes it on Close.
	Store store.Store

	// Clock overrides the time source for date plausibility checks.
	Clock func() time.Time
}

// New creates an engine with the given options.
func New(opts Options) *Engine {
	lex := opts.Lexicon
	if lex == nil {
		lex = lexicon.Default()
	}

	var gateOpts []gate.Option
	if opts.Clock != nil {
		gateOpts = append(gateOpts, gate.WithClock(opts.Clock))
	}

	return &Engine{
		segmenter:  segment.New(lex),
		extractor:  extract.New(lex),
		classifier: classify.New(lex),
		gate:       gate.New(opts.GateConfig, lex, gateOpts...),
		store:      opts.Store,
		workers:    opts.Workers,
	}
}

// Close releases the engine's resources.
func (e *Engine) Close() error {
	if e.store != nil {
		return e.store.Close()
	}
	return nil
}

// Outcome is the result of processing one document.
type Outcome struct {
	// Blocks are the candidate blocks, header blocks filtered out. Results
	// is index-aligned with Blocks.
	Blocks  []*block.Block
	Results []gate.Result

	SegmentStats segment.Stats
	Report       stats.Report

	// RunID is set when the outcome was persisted.
	RunID string
}

// SegmentAndClassify runs the full pipeline over the document's lines:
// segment, extract, classify, validate. Section header blocks are detected
// and excluded from validation; their count appears in SegmentStats.
func (e *Engine) SegmentAndClassify(ctx context.Context, lines []string) (*Outcome, error) {
	blocks, segStats := e.segmenter.Segment(lines)

	candidates := make([]*block.Block, 0, len(blocks))
	for _, b := range blocks {
		if b.Category == block.Header {
			continue
		}
		candidates = append(candidates, b)
	}

	results, err := e.ValidateMany(ctx, candidates)
	if err != nil {
		return nil, err
	}

	return &Outcome{
		Blocks:       candidates,
		Results:      results,
		SegmentStats: segStats,
		Report:       stats.Build(results, candidates, segStats.NonEmptyLines),
	}, nil
}

// ValidateBlock extracts, classifies and gates a single block.
func (e *Engine) ValidateBlock(b *block.Block) gate.Result {
	e.extractor.Ensure(b)
	cls := e.classifier.Classify(b)
	return e.gate.Validate(b, cls)
}

// ValidateMany validates blocks concurrently, bounded by the configured
// worker count. Results are index-aligned with the input.
func (e *Engine) ValidateMany(ctx context.Context, blocks []*block.Block) ([]gate.Result, error) {
	results := make([]gate.Result, len(blocks))

	if e.workers <= 1 || len(blocks) < 2 {
		for i, b := range blocks {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			results[i] = e.ValidateBlock(b)
		}
		return results, nil
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(e.workers)
	for i, b := range blocks {
		i, b := i, b
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			results[i] = e.ValidateBlock(b)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// Run processes a document and, when a store is configured, persists the
// outcome under a fresh run ID.
func (e *Engine) Run(ctx context.Context, docID, lang string, lines []string) (*Outcome, error) {
	outcome, err := e.SegmentAndClassify(ctx, lines)
	if err != nil {
		return nil, err
	}

	if e.store == nil {
		return outcome, nil
	}

	runID := ulid.Make().String()
	run := store.Run{
		ID:                      runID,
		DocID:                   docID,
		Lang:                    lang,
		CreatedAt:               time.Now().UTC(),
		InputLines:              outcome.SegmentStats.InputLines,
		NonEmptyLines:           outcome.SegmentStats.NonEmptyLines,
		TotalBlocks:             len(outcome.Blocks),
		KeepRate:                outcome.Report.KeepRate,
		Coverage:                outcome.Report.Coverage,
		FalsePositivePrevention: outcome.Report.FalsePositivePrevention,
		MeanConfidence:          outcome.Report.MeanConfidence,
	}

	blockResults := make([]store.BlockResult, len(outcome.Results))
	for i, res := range outcome.Results {
		reasoning, _ := json.Marshal(res.Reasoning)
		blockResults[i] = store.BlockResult{
			RunID:      runID,
			BlockIdx:   i,
			Preview:    outcome.Blocks[i].Preview(100),
			Category:   string(res.Classification.Category),
			Decision:   string(res.Decision),
			Confidence: res.Confidence,
			FinalScore: res.Scores.Final,
			ExpScore:   res.Scores.Exp,
			OrgScore:   res.Scores.Org,
			DateScore:  res.Scores.Date,
			Reasoning:  string(reasoning),
		}
	}

	if err := e.store.SaveRun(ctx, run, blockResults); err != nil {
		return nil, err
	}
	outcome.RunID = runID
	return outcome, nil
}

// GateStats returns the engine's gate counters.
func (e *Engine) GateStats() gate.Snapshot {
	return e.gate.StatsSnapshot()
}
