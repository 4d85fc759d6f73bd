package stats

import (
	"math"
	"testing"

	"github.com/cognicore/cvsift/pkg/cvsift/block"
	"github.com/cognicore/cvsift/pkg/cvsift/classify"
	"github.com/cognicore/cvsift/pkg/cvsift/gate"
)

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestBuildMixedBatch(t *testing.T) {
	results := []gate.Result{
		{
			Decision:   gate.AcceptAsExperience,
			Confidence: 0.9,
			Reasoning:  []string{gate.ReasonFinalScoreSufficient},
		},
		{
			Decision:       gate.RouteToEducation,
			Confidence:     0.8,
			Reasoning:      []string{gate.ReasonStrongEducation},
			Classification: classify.Result{Category: block.Education},
		},
		{
			Decision:          gate.RejectAsNoise,
			Confidence:        0.1,
			Reasoning:         []string{gate.ReasonHardRejectDateOnlyTitle},
			HardRejectReasons: []string{"title_is_date_only"},
		},
		{
			Decision:   gate.RejectAsNoise,
			Confidence: 0.2,
			Reasoning:  []string{gate.ReasonInsufficientScore},
		},
	}
	blocks := []*block.Block{
		block.New([]string{"Développeur Web", "TechCorp SAS", "2020 - 2022"}, 0, 2),
		block.New([]string{"Master Informatique", "Université de Lyon"}, 4, 5),
		block.New([]string{"2022"}, 7, 7),
		block.New([]string{"divers"}, 9, 9),
	}

	r := Build(results, blocks, 10)

	if r.TotalBlocks != 4 {
		t.Errorf("total = %d, want 4", r.TotalBlocks)
	}
	if r.Accepted != 1 || r.RoutedEducation != 1 || r.Rejected != 2 {
		t.Errorf("counts = %+v", r)
	}
	if r.HardRejections != 1 {
		t.Errorf("hard rejections = %d, want 1", r.HardRejections)
	}
	// One accept out of four blocks; routing does not count as keeping.
	if !almostEqual(r.KeepRate, 0.25) {
		t.Errorf("keep rate = %.2f, want 0.25", r.KeepRate)
	}
	if !almostEqual(r.RetainedRate, 0.5) {
		t.Errorf("retained rate = %.2f, want 0.50", r.RetainedRate)
	}

	// Kept blocks cover 3+2 of the 10 non-empty lines.
	if !almostEqual(r.Coverage, 0.5) {
		t.Errorf("coverage = %.2f, want 0.50", r.Coverage)
	}

	// One of the two rejections was targeted (the hard reject).
	if !almostEqual(r.FalsePositivePrevention, 0.5) {
		t.Errorf("fp prevention = %.2f, want 0.50", r.FalsePositivePrevention)
	}

	if !almostEqual(r.MeanConfidence, 0.5) {
		t.Errorf("mean confidence = %.2f, want 0.50", r.MeanConfidence)
	}
	if r.ReasonCounts[gate.ReasonFinalScoreSufficient] != 1 {
		t.Errorf("reason counts = %v", r.ReasonCounts)
	}
}

func TestBuildNoRejections(t *testing.T) {
	results := []gate.Result{
		{Decision: gate.AcceptAsExperience, Confidence: 0.9},
	}

	r := Build(results, nil, 0)
	if r.Rejected != 0 {
		t.Errorf("rejected = %d, want 0", r.Rejected)
	}
	if r.FalsePositivePrevention != 1.0 {
		t.Errorf("fp prevention = %.2f, want 1.00 with no rejections", r.FalsePositivePrevention)
	}
	if r.Coverage != 0 {
		t.Errorf("coverage = %.2f, want 0 when line count unknown", r.Coverage)
	}
}

func TestBuildCountsConfidenceRejectAsTargeted(t *testing.T) {
	results := []gate.Result{
		{
			Decision:   gate.RejectAsNoise,
			Confidence: 0.23,
			Reasoning:  []string{gate.ReasonDateOnlyTitlePenalty, gate.ReasonConfidenceTooLow},
		},
	}

	r := Build(results, nil, 0)
	if r.FalsePositivePrevention != 1.0 {
		t.Errorf("fp prevention = %.2f, want 1.00 for a calibration reject", r.FalsePositivePrevention)
	}
}

func TestBuildContextOverrides(t *testing.T) {
	results := []gate.Result{
		{
			Decision:       gate.AcceptAsExperience,
			Confidence:     0.9,
			Classification: classify.Result{Category: block.Experience, ContextOverride: true},
		},
		{
			Decision:       gate.AcceptAsExperience,
			Confidence:     0.9,
			Classification: classify.Result{Category: block.Experience},
		},
	}

	r := Build(results, nil, 0)
	if r.ContextOverrides != 1 {
		t.Errorf("context overrides = %d, want 1", r.ContextOverrides)
	}
}

func TestBuildEmpty(t *testing.T) {
	r := Build(nil, nil, 0)
	if r.TotalBlocks != 0 || r.KeepRate != 0 || r.MeanConfidence != 0 {
		t.Errorf("empty report = %+v", r)
	}
	if r.FalsePositivePrevention != 1.0 {
		t.Errorf("fp prevention = %.2f, want 1.00", r.FalsePositivePrevention)
	}
}

func TestBuildIgnoresBlankLinesInKeptBlocks(t *testing.T) {
	results := []gate.Result{
		{Decision: gate.AcceptAsExperience, Confidence: 0.9},
	}
	blocks := []*block.Block{
		block.New([]string{"Développeur Web", "", "TechCorp SAS"}, 0, 2),
	}

	r := Build(results, blocks, 4)
	if !almostEqual(r.Coverage, 0.5) {
		t.Errorf("coverage = %.2f, want 0.50 (blank lines excluded)", r.Coverage)
	}
}
