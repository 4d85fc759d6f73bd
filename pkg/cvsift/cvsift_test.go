package cvsift

import (
	"context"
	"testing"
	"time"

	"github.com/cognicore/cvsift/pkg/cvsift/block"
	"github.com/cognicore/cvsift/pkg/cvsift/gate"
	"github.com/cognicore/cvsift/pkg/cvsift/store/memstore"
)

// fixtureLines is a small mixed résumé: two experience entries (one of them a
// professor at a university), a degree, and a certification.
func fixtureLines() []string {
	return []string{
		"EXPÉRIENCE PROFESSIONNELLE",
		"",
		"Développeur Full Stack",
		"TechCorp Solutions SAS",
		"Mars 2020 - Septembre 2022",
		"• Développement d'applications React et Node.js pour les clients",
		"• Encadrement d'une équipe de trois développeurs juniors",
		"",
		"Professeur de Mathématiques",
		"Université Paris-Saclay",
		"2018 - 2020",
		"Enseignement et encadrement de projets étudiants en licence",
		"",
		"FORMATION",
		"",
		"Master Informatique",
		"Université de Lyon",
		"2016 - 2018",
		"",
		"CERTIFICATIONS",
		"",
		"TOEFL - Score 105",
		"Certification passée en 2019",
	}
}

func fixedClock() time.Time {
	return time.Date(2026, time.June, 1, 0, 0, 0, 0, time.UTC)
}

func TestSegmentAndClassifyEndToEnd(t *testing.T) {
	engine := New(Options{Clock: fixedClock})
	defer engine.Close()

	outcome, err := engine.SegmentAndClassify(context.Background(), fixtureLines())
	if err != nil {
		t.Fatalf("SegmentAndClassify: %v", err)
	}

	if len(outcome.Blocks) != 4 {
		t.Fatalf("blocks = %d, want 4 (headers excluded)", len(outcome.Blocks))
	}
	if len(outcome.Results) != len(outcome.Blocks) {
		t.Fatalf("results = %d, blocks = %d, want aligned", len(outcome.Results), len(outcome.Blocks))
	}
	if outcome.SegmentStats.HeaderBlocks != 3 {
		t.Errorf("header blocks = %d, want 3", outcome.SegmentStats.HeaderBlocks)
	}

	dev := outcome.Results[0]
	if dev.Decision != gate.AcceptAsExperience {
		t.Errorf("developer block: decision = %q (reasoning %v)", dev.Decision, dev.Reasoning)
	}
	if dev.Classification.Category != block.Experience {
		t.Errorf("developer block: category = %q", dev.Classification.Category)
	}
	if dev.Confidence < 0.8 {
		t.Errorf("developer block: confidence = %.2f, want >= 0.80", dev.Confidence)
	}
	if dev.TitleOrgLink == nil || dev.TitleOrgLink.Organization != "TechCorp Solutions SAS" {
		t.Errorf("developer block: link = %+v", dev.TitleOrgLink)
	}

	prof := outcome.Results[1]
	if prof.Decision != gate.AcceptAsExperience {
		t.Errorf("professor block: decision = %q (reasoning %v)", prof.Decision, prof.Reasoning)
	}
	if !prof.Classification.ContextOverride {
		t.Error("professor block: expected a context override over the university org")
	}

	cert := outcome.Results[3]
	if cert.Decision != gate.RouteToCertification {
		t.Errorf("certification block: decision = %q (reasoning %v)", cert.Decision, cert.Reasoning)
	}

	report := outcome.Report
	if report.TotalBlocks != 4 {
		t.Errorf("report total = %d, want 4", report.TotalBlocks)
	}
	if report.Rejected != 0 {
		t.Errorf("report rejected = %d, want 0", report.Rejected)
	}
	// Three of the four blocks are accepted; the TOEFL block is routed, so
	// it counts toward retention but not toward the keep rate.
	if report.KeepRate != 0.75 {
		t.Errorf("keep rate = %.2f, want 0.75", report.KeepRate)
	}
	if report.RetainedRate != 1.0 {
		t.Errorf("retained rate = %.2f, want 1.00", report.RetainedRate)
	}
	if report.RoutedCertification != 1 {
		t.Errorf("routed certifications = %d, want 1", report.RoutedCertification)
	}
	if report.Coverage < 0.8 {
		t.Errorf("coverage = %.2f, want >= 0.80", report.Coverage)
	}
	if report.FalsePositivePrevention != 1.0 {
		t.Errorf("fp prevention = %.2f, want 1.00 with no rejections", report.FalsePositivePrevention)
	}
}

func TestSegmentAndClassifyEmptyInput(t *testing.T) {
	engine := New(Options{})
	defer engine.Close()

	outcome, err := engine.SegmentAndClassify(context.Background(), nil)
	if err != nil {
		t.Fatalf("SegmentAndClassify: %v", err)
	}
	if len(outcome.Blocks) != 0 {
		t.Errorf("blocks = %d, want 0", len(outcome.Blocks))
	}
	if outcome.Report.TotalBlocks != 0 {
		t.Errorf("report total = %d, want 0", outcome.Report.TotalBlocks)
	}
	if outcome.Report.FalsePositivePrevention != 1.0 {
		t.Errorf("fp prevention = %.2f, want 1.00", outcome.Report.FalsePositivePrevention)
	}
}

func TestConcurrentValidationMatchesSequential(t *testing.T) {
	sequential := New(Options{Clock: fixedClock})
	defer sequential.Close()
	concurrent := New(Options{Workers: 4, Clock: fixedClock})
	defer concurrent.Close()

	ctx := context.Background()
	seqOut, err := sequential.SegmentAndClassify(ctx, fixtureLines())
	if err != nil {
		t.Fatalf("sequential: %v", err)
	}
	conOut, err := concurrent.SegmentAndClassify(ctx, fixtureLines())
	if err != nil {
		t.Fatalf("concurrent: %v", err)
	}

	if len(seqOut.Results) != len(conOut.Results) {
		t.Fatalf("result counts differ: %d vs %d", len(seqOut.Results), len(conOut.Results))
	}
	for i := range seqOut.Results {
		s, c := seqOut.Results[i], conOut.Results[i]
		if s.Decision != c.Decision {
			t.Errorf("block %d: decisions differ: %q vs %q", i, s.Decision, c.Decision)
		}
		if s.Confidence != c.Confidence {
			t.Errorf("block %d: confidences differ: %.3f vs %.3f", i, s.Confidence, c.Confidence)
		}
	}
}

func TestSegmentAndClassifyCancelled(t *testing.T) {
	engine := New(Options{})
	defer engine.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := engine.SegmentAndClassify(ctx, fixtureLines()); err == nil {
		t.Fatal("expected an error from a cancelled context")
	}
}

func TestRunPersistsOutcome(t *testing.T) {
	st := memstore.New()
	engine := New(Options{Store: st, Clock: fixedClock})
	defer engine.Close()

	ctx := context.Background()
	outcome, err := engine.Run(ctx, "doc-1", "fr", fixtureLines())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if outcome.RunID == "" {
		t.Fatal("expected a run ID with a store configured")
	}

	run, results, err := st.GetRun(ctx, outcome.RunID)
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}
	if run.DocID != "doc-1" || run.Lang != "fr" {
		t.Errorf("run = %+v", run)
	}
	if run.TotalBlocks != len(outcome.Blocks) {
		t.Errorf("persisted blocks = %d, want %d", run.TotalBlocks, len(outcome.Blocks))
	}
	if len(results) != len(outcome.Results) {
		t.Fatalf("persisted results = %d, want %d", len(results), len(outcome.Results))
	}
	if results[0].Decision != string(gate.AcceptAsExperience) {
		t.Errorf("persisted decision = %q", results[0].Decision)
	}
	if results[0].Preview == "" || results[0].Reasoning == "" {
		t.Errorf("persisted result missing preview or reasoning: %+v", results[0])
	}
}

func TestRunWithoutStore(t *testing.T) {
	engine := New(Options{})
	defer engine.Close()

	outcome, err := engine.Run(context.Background(), "doc-1", "fr", fixtureLines())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if outcome.RunID != "" {
		t.Errorf("run ID = %q, want empty without a store", outcome.RunID)
	}
}

func TestGateStats(t *testing.T) {
	engine := New(Options{Clock: fixedClock})
	defer engine.Close()

	if _, err := engine.SegmentAndClassify(context.Background(), fixtureLines()); err != nil {
		t.Fatalf("SegmentAndClassify: %v", err)
	}

	snap := engine.GateStats()
	if snap.BlocksProcessed != 4 {
		t.Errorf("processed = %d, want 4", snap.BlocksProcessed)
	}
	if snap.Accepted < 2 {
		t.Errorf("accepted = %d, want >= 2", snap.Accepted)
	}
}
