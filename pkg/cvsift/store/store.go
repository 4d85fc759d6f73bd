// Package store persists validation runs for debugging and calibration. A
// run is one batch of blocks through the pipeline: its aggregate metrics plus
// the per-block decisions, so a surprising accept or reject can be replayed
// later.
package store

import (
	"context"
	"time"
)

// Store is the interface for persisting validation runs.
type Store interface {
	Close() error

	// SaveRun persists a run and its per-block results atomically.
	SaveRun(ctx context.Context, run Run, results []BlockResult) error

	// GetRun fetches a run and its block results by ID.
	GetRun(ctx context.Context, id string) (Run, []BlockResult, error)

	// ListRuns returns the most recent runs, newest first.
	ListRuns(ctx context.Context, limit int) ([]Run, error)
}

// Run is one pipeline batch with its aggregate metrics.
type Run struct {
	ID        string
	DocID     string
	Lang      string
	CreatedAt time.Time

	InputLines    int
	NonEmptyLines int
	TotalBlocks   int

	KeepRate                float64
	Coverage                float64
	FalsePositivePrevention float64
	MeanConfidence          float64
}

// BlockResult is the stored decision for one block of a run. Preview is the
// masked block preview, never raw text.
type BlockResult struct {
	RunID    string
	BlockIdx int

	Preview    string
	Category   string
	Decision   string
	Confidence float64
	FinalScore float64
	ExpScore   float64
	OrgScore   float64
	DateScore  float64

	// Reasoning is the decision's reasoning tokens, JSON-encoded.
	Reasoning string
}
