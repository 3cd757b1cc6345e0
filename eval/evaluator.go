// Package eval measures retrieval and answer quality of an engine against
// a labelled dataset of case texts and questions.
package eval

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	coj "github.com/StartGackt/coj-backend"
)

// passAccuracy is the answer accuracy a test needs to pass.
const passAccuracy = 0.5

// Evaluator runs evaluation datasets against an engine.
type Evaluator struct {
	engine coj.Engine
	k      int
}

// NewEvaluator creates a new evaluator that retrieves the largest of
// RetrievalKValues per question.
func NewEvaluator(engine coj.Engine) *Evaluator {
	return &Evaluator{engine: engine, k: RetrievalKValues[len(RetrievalKValues)-1]}
}

// Report holds the results of an evaluation run.
type Report struct {
	Dataset         string                      `json:"dataset"`
	Difficulty      string                      `json:"difficulty,omitempty"`
	Mode            string                      `json:"mode"`
	TotalTests      int                         `json:"total_tests"`
	Passed          int                         `json:"passed"`
	Failed          int                         `json:"failed"`
	Metrics         AggregateMetrics            `json:"metrics"`
	CategoryMetrics map[string]AggregateMetrics `json:"category_metrics,omitempty"`
	Results         []TestResult                `json:"results"`
	RunTime         time.Duration               `json:"run_time"`
}

// AggregateMetrics holds averaged metrics across tests.
type AggregateMetrics struct {
	AvgAccuracy         float64 `json:"avg_accuracy"`
	AvgContextRecall    float64 `json:"avg_context_recall"`
	AvgCitationCoverage float64 `json:"avg_citation_coverage"`
	MRR                 float64 `json:"mrr"`
	TemplateHitRate     float64 `json:"template_hit_rate"`

	AvgRetrievalPrecision map[int]float64 `json:"avg_retrieval_precision,omitempty"` // k -> P@k
	AvgRetrievalRecall    map[int]float64 `json:"avg_retrieval_recall,omitempty"`    // k -> R@k
}

// TestResult holds the result of a single test case.
type TestResult struct {
	Question         string   `json:"question"`
	CaseID           string   `json:"case_id,omitempty"`
	Category         string   `json:"category,omitempty"`
	ExpectedFacts    []string `json:"expected_facts,omitempty"`
	Answer           string   `json:"answer"`
	Mode             string   `json:"mode"`
	Accuracy         float64  `json:"accuracy"`
	ContextRecall    float64  `json:"context_recall"`
	CitationCoverage float64  `json:"citation_coverage"`
	ReciprocalRank   float64  `json:"reciprocal_rank"`
	RetrievedChunks  []string `json:"retrieved_chunks"`
	TopTemplate      int      `json:"top_template,omitempty"`
	TemplateHit      *bool    `json:"template_hit,omitempty"`
	Passed           bool     `json:"passed"`
	Error            string   `json:"error,omitempty"`
	ElapsedMs        int64    `json:"elapsed_ms"`

	RetrievalPrecision map[int]float64 `json:"retrieval_precision,omitempty"` // k -> P@k
	RetrievalRecall    map[int]float64 `json:"retrieval_recall,omitempty"`    // k -> R@k
}

// Ingest loads the dataset documents into the engine.
func (e *Evaluator) Ingest(ctx context.Context, ds Dataset) error {
	for _, doc := range ds.Documents {
		res, err := e.engine.Ingest(ctx, doc.Texts, coj.WithCaseID(doc.CaseID))
		if err != nil {
			return fmt.Errorf("ingesting %s: %w", doc.CaseID, err)
		}
		slog.Info("eval: document ingested",
			"case_id", res.CaseID,
			"chunks", res.ChunksIndexed,
			"entities", res.EntitiesWritten)
	}
	return nil
}

// Run asks every test question and scores the results.
func (e *Evaluator) Run(ctx context.Context, ds Dataset) (*Report, error) {
	start := time.Now()
	report := &Report{
		Dataset:         ds.Name,
		Difficulty:      ds.Difficulty,
		TotalTests:      len(ds.Tests),
		CategoryMetrics: make(map[string]AggregateMetrics),
	}

	var all accumulator
	cats := make(map[string]*accumulator)

	for i, test := range ds.Tests {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		result := e.runTest(ctx, test)
		report.Results = append(report.Results, result)
		if result.Mode != "" {
			report.Mode = result.Mode
		}

		status := "PASS"
		if !result.Passed {
			status = "FAIL"
		}
		if result.Error != "" {
			status = "ERROR"
		}
		slog.Info("eval: test complete",
			"progress", fmt.Sprintf("%d/%d", i+1, len(ds.Tests)),
			"status", status,
			"accuracy", fmt.Sprintf("%.2f", result.Accuracy),
			"rr", fmt.Sprintf("%.2f", result.ReciprocalRank),
			"elapsed_ms", result.ElapsedMs,
			"question", truncate(test.Question, 80))

		if result.Passed {
			report.Passed++
		} else {
			report.Failed++
		}

		// Errors would contribute all zeros and depress the averages.
		if result.Error != "" {
			continue
		}
		all.add(result)
		if test.Category != "" {
			if cats[test.Category] == nil {
				cats[test.Category] = &accumulator{}
			}
			cats[test.Category].add(result)
		}
	}

	report.Metrics = all.mean()
	for cat, acc := range cats {
		report.CategoryMetrics[cat] = acc.mean()
	}
	report.RunTime = time.Since(start)
	return report, nil
}

func (e *Evaluator) runTest(ctx context.Context, test TestCase) TestResult {
	start := time.Now()
	result := TestResult{
		Question:      test.Question,
		CaseID:        test.CaseID,
		Category:      test.Category,
		ExpectedFacts: test.ExpectedFacts,
	}

	opts := []coj.QueryOption{coj.WithK(e.k)}
	if test.CaseID != "" {
		opts = append(opts, coj.InCase(test.CaseID))
	}

	ans, err := e.engine.Answer(ctx, test.Question, opts...)
	if err != nil {
		result.Error = err.Error()
		result.ElapsedMs = time.Since(start).Milliseconds()
		return result
	}
	result.Answer = ans.Text
	result.Mode = ans.Mode
	for _, d := range ans.TopDocs {
		result.RetrievedChunks = append(result.RetrievedChunks, d.ChunkID)
	}

	result.Accuracy = computeAccuracy(ans.Text, test.ExpectedFacts)
	result.ContextRecall = computeContextRecall(ans.TopDocs, ans.Facts, test.ExpectedFacts)
	result.CitationCoverage = computeCitationCoverage(ans.Text, ans.TopDocs)

	retrievalOK := true
	if len(test.ExpectedChunks) > 0 {
		result.ReciprocalRank = computeReciprocalRank(ans.TopDocs, test.ExpectedChunks)
		result.RetrievalPrecision = make(map[int]float64, len(RetrievalKValues))
		result.RetrievalRecall = make(map[int]float64, len(RetrievalKValues))
		for _, k := range RetrievalKValues {
			result.RetrievalPrecision[k] = computeRetrievalPrecisionAtK(ans.TopDocs, test.ExpectedChunks, k)
			result.RetrievalRecall[k] = computeRetrievalRecallAtK(ans.TopDocs, test.ExpectedChunks, k)
		}
		retrievalOK = result.ReciprocalRank > 0
	}

	templateOK := true
	if test.ExpectedTemplate > 0 {
		sug, err := e.engine.SuggestDocuments(ctx, test.Question, opts...)
		if err != nil {
			result.Error = err.Error()
			result.ElapsedMs = time.Since(start).Milliseconds()
			return result
		}
		hit := false
		if len(sug.Results) > 0 {
			result.TopTemplate = sug.Results[0].ID
			hit = result.TopTemplate == test.ExpectedTemplate
		}
		result.TemplateHit = &hit
		templateOK = hit
	}

	result.Passed = result.Accuracy >= passAccuracy && retrievalOK && templateOK
	result.ElapsedMs = time.Since(start).Milliseconds()
	return result
}

// accumulator sums per-test metrics for averaging. Retrieval and template
// metrics only average over the tests that define them.
type accumulator struct {
	n, retrievalN, templateN int

	accuracy, contextRecall, citation, rr float64
	templateHits                          int
	precision, recall                     map[int]float64
}

func (a *accumulator) add(r TestResult) {
	a.n++
	a.accuracy += r.Accuracy
	a.contextRecall += r.ContextRecall
	a.citation += r.CitationCoverage
	if r.RetrievalPrecision != nil {
		if a.precision == nil {
			a.precision = make(map[int]float64)
			a.recall = make(map[int]float64)
		}
		a.retrievalN++
		a.rr += r.ReciprocalRank
		for _, k := range RetrievalKValues {
			a.precision[k] += r.RetrievalPrecision[k]
			a.recall[k] += r.RetrievalRecall[k]
		}
	}
	if r.TemplateHit != nil {
		a.templateN++
		if *r.TemplateHit {
			a.templateHits++
		}
	}
}

func (a *accumulator) mean() AggregateMetrics {
	var m AggregateMetrics
	if a.n == 0 {
		return m
	}
	n := float64(a.n)
	m.AvgAccuracy = a.accuracy / n
	m.AvgContextRecall = a.contextRecall / n
	m.AvgCitationCoverage = a.citation / n
	if a.retrievalN > 0 {
		rn := float64(a.retrievalN)
		m.MRR = a.rr / rn
		m.AvgRetrievalPrecision = make(map[int]float64, len(RetrievalKValues))
		m.AvgRetrievalRecall = make(map[int]float64, len(RetrievalKValues))
		for _, k := range RetrievalKValues {
			m.AvgRetrievalPrecision[k] = a.precision[k] / rn
			m.AvgRetrievalRecall[k] = a.recall[k] / rn
		}
	}
	if a.templateN > 0 {
		m.TemplateHitRate = float64(a.templateHits) / float64(a.templateN)
	}
	return m
}

// FormatReport produces a human-readable report string.
func FormatReport(r *Report) string {
	var b strings.Builder
	fmt.Fprintf(&b, "=== Evaluation Report: %s ===\n", r.Dataset)
	if r.Difficulty != "" {
		fmt.Fprintf(&b, "Difficulty: %s\n", r.Difficulty)
	}
	if r.Mode != "" {
		fmt.Fprintf(&b, "Mode: %s\n", r.Mode)
	}
	fmt.Fprintf(&b, "Total: %d | Passed: %d (%.1f%%) | Failed: %d\n",
		r.TotalTests, r.Passed, passRate(r.Passed, r.TotalTests), r.Failed)
	fmt.Fprintf(&b, "Run time: %s\n\n", r.RunTime.Round(time.Millisecond))

	fmt.Fprintf(&b, "Aggregate Metrics:\n")
	fmt.Fprintf(&b, "  Accuracy:           %.2f\n", r.Metrics.AvgAccuracy)
	fmt.Fprintf(&b, "  Context Recall:     %.2f\n", r.Metrics.AvgContextRecall)
	fmt.Fprintf(&b, "  Citation Coverage:  %.2f\n", r.Metrics.AvgCitationCoverage)
	fmt.Fprintf(&b, "  MRR:                %.2f\n", r.Metrics.MRR)
	fmt.Fprintf(&b, "  Template Hit Rate:  %.2f\n\n", r.Metrics.TemplateHitRate)

	if len(r.Metrics.AvgRetrievalPrecision) > 0 {
		fmt.Fprintf(&b, "Retrieval Metrics:\n")
		for _, k := range RetrievalKValues {
			if p, ok := r.Metrics.AvgRetrievalPrecision[k]; ok {
				fmt.Fprintf(&b, "  P@%-3d  %.1f%%\n", k, p*100)
			}
		}
		for _, k := range RetrievalKValues {
			if recall, ok := r.Metrics.AvgRetrievalRecall[k]; ok {
				fmt.Fprintf(&b, "  R@%-3d  %.1f%%\n", k, recall*100)
			}
		}
		fmt.Fprintln(&b)
	}

	// Per-category breakdown (sorted for deterministic output)
	if len(r.CategoryMetrics) > 0 {
		cats := make([]string, 0, len(r.CategoryMetrics))
		for cat := range r.CategoryMetrics {
			cats = append(cats, cat)
		}
		sort.Strings(cats)

		fmt.Fprintf(&b, "Per-Category Metrics:\n")
		for _, cat := range cats {
			m := r.CategoryMetrics[cat]
			fmt.Fprintf(&b, "  [%s] Acc=%.2f CtxR=%.2f Cite=%.2f MRR=%.2f Tmpl=%.2f\n",
				cat, m.AvgAccuracy, m.AvgContextRecall, m.AvgCitationCoverage, m.MRR, m.TemplateHitRate)
		}
		fmt.Fprintln(&b)
	}

	for i, res := range r.Results {
		status := "PASS"
		if !res.Passed {
			status = "FAIL"
		}
		fmt.Fprintf(&b, "[%s] %d. %s\n", status, i+1, res.Question)
		if res.Error != "" {
			fmt.Fprintf(&b, "  Error: %s\n", res.Error)
			continue
		}
		fmt.Fprintf(&b, "  Acc=%.2f CtxR=%.2f Cite=%.2f RR=%.2f  (%dms)\n",
			res.Accuracy, res.ContextRecall, res.CitationCoverage, res.ReciprocalRank, res.ElapsedMs)
		if res.TemplateHit != nil && !*res.TemplateHit {
			fmt.Fprintf(&b, "  Top template: %d\n", res.TopTemplate)
		}
	}

	return b.String()
}

func passRate(passed, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(passed) / float64(total) * 100
}

func truncate(s string, maxRunes int) string {
	r := []rune(s)
	if len(r) <= maxRunes {
		return s
	}
	return string(r[:maxRunes]) + "..."
}
