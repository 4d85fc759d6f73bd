// Package stats aggregates gate results into a batch report: routing counts,
// keep rate, line coverage, and how much of the rejection volume came from
// targeted noise rules rather than generic score shortfalls.
package stats

import (
	"strings"

	"github.com/cognicore/cvsift/pkg/cvsift/block"
	"github.com/cognicore/cvsift/pkg/cvsift/gate"
)

// Report summarizes one validation batch.
type Report struct {
	TotalBlocks         int `json:"total_blocks"`
	Accepted            int `json:"accepted"`
	RoutedEducation     int `json:"routed_education"`
	RoutedCertification int `json:"routed_certification"`
	Rejected            int `json:"rejected"`
	HardRejections      int `json:"hard_rejections"`
	ContextOverrides    int `json:"context_overrides"`

	// KeepRate is the share of blocks accepted as experience entries.
	KeepRate float64 `json:"keep_rate"`

	// RetainedRate additionally counts blocks routed to the education and
	// certification handlers, so it measures everything that survived the
	// gate in some form.
	RetainedRate float64 `json:"retained_rate"`

	// Coverage is the share of non-empty input lines belonging to kept blocks.
	Coverage float64 `json:"coverage"`

	// FalsePositivePrevention is the share of rejections caused by targeted
	// noise rules (hard rejects and confidence calibration) rather than a
	// plain score shortfall. Higher means the gate rejects for precise
	// reasons, not by accident.
	FalsePositivePrevention float64 `json:"false_positive_prevention"`

	MeanConfidence float64 `json:"mean_confidence"`

	// ReasonCounts tallies every reasoning token seen in the batch.
	ReasonCounts map[string]int `json:"reason_counts"`
}

// Build computes a report from paired gate results and their blocks.
// nonEmptyLines is the batch's non-empty input line count; zero disables
// coverage. results and blocks must be index-aligned; blocks may be nil when
// only decision-level metrics are wanted.
func Build(results []gate.Result, blocks []*block.Block, nonEmptyLines int) Report {
	r := Report{
		TotalBlocks:  len(results),
		ReasonCounts: make(map[string]int),
	}

	keptLines := 0
	confSum := 0.0
	targetedRejects := 0

	for i, res := range results {
		confSum += res.Confidence

		for _, token := range res.Reasoning {
			r.ReasonCounts[token]++
		}
		if len(res.HardRejectReasons) > 0 {
			r.HardRejections++
		}
		if res.Classification.ContextOverride {
			r.ContextOverrides++
		}

		kept := false
		switch res.Decision {
		case gate.AcceptAsExperience:
			r.Accepted++
			kept = true
		case gate.RouteToEducation:
			r.RoutedEducation++
			kept = true
		case gate.RouteToCertification:
			r.RoutedCertification++
			kept = true
		case gate.RejectAsNoise:
			r.Rejected++
			if isTargetedReject(res) {
				targetedRejects++
			}
		}

		if kept && blocks != nil && i < len(blocks) && blocks[i] != nil {
			keptLines += nonBlankLines(blocks[i])
		}
	}

	if r.TotalBlocks > 0 {
		r.KeepRate = float64(r.Accepted) / float64(r.TotalBlocks)
		r.RetainedRate = float64(r.Accepted+r.RoutedEducation+r.RoutedCertification) / float64(r.TotalBlocks)
		r.MeanConfidence = confSum / float64(r.TotalBlocks)
	}
	if nonEmptyLines > 0 {
		r.Coverage = float64(keptLines) / float64(nonEmptyLines)
	}
	if r.Rejected > 0 {
		r.FalsePositivePrevention = float64(targetedRejects) / float64(r.Rejected)
	} else {
		r.FalsePositivePrevention = 1.0
	}

	return r
}

// isTargetedReject reports whether a rejection came from a precise noise
// rule instead of the default score shortfall.
func isTargetedReject(res gate.Result) bool {
	if len(res.HardRejectReasons) > 0 {
		return true
	}
	for _, token := range res.Reasoning {
		if token == gate.ReasonConfidenceTooLow {
			return true
		}
	}
	return false
}

func nonBlankLines(b *block.Block) int {
	n := 0
	for _, line := range b.Lines {
		if strings.TrimSpace(line) != "" {
			n++
		}
	}
	return n
}
