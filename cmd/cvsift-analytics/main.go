// cvsift-analytics runs the validation pipeline over a JSONL corpus of
// résumés and prints an aggregate calibration report. With --db it also
// persists every run for later inspection.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"sort"

	"github.com/cognicore/cvsift/internal/cvdoc"
	"github.com/cognicore/cvsift/pkg/cvsift"
	"github.com/cognicore/cvsift/pkg/cvsift/config"
	"github.com/cognicore/cvsift/pkg/cvsift/gate"
	sqlitestore "github.com/cognicore/cvsift/pkg/cvsift/store/sqlite"
)

type report struct {
	TotalDocs   int `json:"total_docs"`
	TotalBlocks int `json:"total_blocks"`

	Accepted            int `json:"accepted"`
	RoutedEducation     int `json:"routed_education"`
	RoutedCertification int `json:"routed_certification"`
	Rejected            int `json:"rejected"`
	HardRejections      int `json:"hard_rejections"`

	KeepRate                float64 `json:"keep_rate"`
	RetainedRate            float64 `json:"retained_rate"`
	Coverage                float64 `json:"coverage"`
	FalsePositivePrevention float64 `json:"false_positive_prevention"`
	MeanConfidence          float64 `json:"mean_confidence"`

	TopReasons []reasonEntry `json:"top_reasons"`

	Traces []docTrace `json:"traces,omitempty"`
}

type reasonEntry struct {
	Reason string `json:"reason"`
	Count  int    `json:"count"`
}

type docTrace struct {
	DocID  string       `json:"doc_id"`
	RunID  string       `json:"run_id,omitempty"`
	Blocks []blockTrace `json:"blocks"`
}

type blockTrace struct {
	Preview    string   `json:"preview"`
	Category   string   `json:"category"`
	Decision   string   `json:"decision"`
	Confidence float64  `json:"confidence"`
	FinalScore float64  `json:"final_score"`
	Reasoning  []string `json:"reasoning"`
}

func main() {
	var (
		input    = flag.String("input", "", "Path to JSONL résumé file (required)")
		lexPath  = flag.String("lexicon", "", "Optional lexicon override YAML")
		settings = flag.String("settings", "", "Optional pipeline settings YAML")
		dbPath   = flag.String("db", "", "Optional SQLite path to persist runs")
		traces   = flag.Bool("traces", false, "Include per-block decision traces in the report")
		workers  = flag.Int("workers", 4, "Concurrent block validation workers")
	)
	flag.Parse()

	if *input == "" {
		log.Fatal("--input required")
	}

	ctx := context.Background()

	loader := config.Loader{
		LexiconPath:  *lexPath,
		SettingsPath: *settings,
	}
	components, err := loader.Load()
	if err != nil {
		log.Fatalf("load configs: %v", err)
	}

	opts := cvsift.Options{
		Lexicon:    components.Lexicon,
		GateConfig: components.Settings.Gate,
		Workers:    *workers,
	}
	if components.Settings.Workers > 0 {
		opts.Workers = components.Settings.Workers
	}
	if *dbPath != "" {
		st, err := sqlitestore.Open(ctx, *dbPath)
		if err != nil {
			log.Fatalf("open store: %v", err)
		}
		opts.Store = st
	}

	engine := cvsift.New(opts)
	defer engine.Close()

	docs, err := cvdoc.LoadFromJSONL(*input)
	if err != nil {
		log.Fatalf("load docs: %v", err)
	}

	rep := report{TotalDocs: len(docs)}
	reasonCounts := make(map[string]int)
	confSum := 0.0
	keptLines, nonEmptyLines := 0, 0
	targetedRejects := 0

	for _, doc := range docs {
		outcome, err := engine.Run(ctx, doc.ID, doc.Lang, doc.InputLines())
		if err != nil {
			log.Fatalf("process %s: %v", doc.ID, err)
		}

		rep.TotalBlocks += len(outcome.Results)
		rep.Accepted += outcome.Report.Accepted
		rep.RoutedEducation += outcome.Report.RoutedEducation
		rep.RoutedCertification += outcome.Report.RoutedCertification
		rep.Rejected += outcome.Report.Rejected
		rep.HardRejections += outcome.Report.HardRejections

		for reason, n := range outcome.Report.ReasonCounts {
			reasonCounts[reason] += n
		}
		confSum += outcome.Report.MeanConfidence * float64(len(outcome.Results))
		keptLines += int(outcome.Report.Coverage * float64(outcome.SegmentStats.NonEmptyLines))
		nonEmptyLines += outcome.SegmentStats.NonEmptyLines
		targetedRejects += rejectedByRule(outcome.Results)

		if *traces {
			rep.Traces = append(rep.Traces, traceDoc(doc.ID, outcome))
		}
	}

	if rep.TotalBlocks > 0 {
		rep.KeepRate = float64(rep.Accepted) / float64(rep.TotalBlocks)
		rep.RetainedRate = float64(rep.Accepted+rep.RoutedEducation+rep.RoutedCertification) / float64(rep.TotalBlocks)
		rep.MeanConfidence = confSum / float64(rep.TotalBlocks)
	}
	if nonEmptyLines > 0 {
		rep.Coverage = float64(keptLines) / float64(nonEmptyLines)
	}
	if rep.Rejected > 0 {
		rep.FalsePositivePrevention = float64(targetedRejects) / float64(rep.Rejected)
	} else {
		rep.FalsePositivePrevention = 1.0
	}
	rep.TopReasons = topReasons(reasonCounts, 15)

	out, err := json.MarshalIndent(rep, "", "  ")
	if err != nil {
		log.Fatalf("marshal report: %v", err)
	}
	fmt.Println(string(out))
}

func rejectedByRule(results []gate.Result) int {
	n := 0
	for _, res := range results {
		if res.Decision != gate.RejectAsNoise {
			continue
		}
		if len(res.HardRejectReasons) > 0 {
			n++
			continue
		}
		for _, token := range res.Reasoning {
			if token == gate.ReasonConfidenceTooLow {
				n++
				break
			}
		}
	}
	return n
}

func traceDoc(docID string, outcome *cvsift.Outcome) docTrace {
	trace := docTrace{DocID: docID, RunID: outcome.RunID}
	for i, res := range outcome.Results {
		trace.Blocks = append(trace.Blocks, blockTrace{
			Preview:    outcome.Blocks[i].Preview(80),
			Category:   string(res.Classification.Category),
			Decision:   string(res.Decision),
			Confidence: res.Confidence,
			FinalScore: res.Scores.Final,
			Reasoning:  res.Reasoning,
		})
	}
	return trace
}

func topReasons(counts map[string]int, limit int) []reasonEntry {
	entries := make([]reasonEntry, 0, len(counts))
	for reason, n := range counts {
		entries = append(entries, reasonEntry{Reason: reason, Count: n})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Count != entries[j].Count {
			return entries[i].Count > entries[j].Count
		}
		return entries[i].Reason < entries[j].Reason
	})
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	return entries
}
