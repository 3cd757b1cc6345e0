//go:build cgo

package eval

import (
	"context"
	"path/filepath"
	"testing"

	coj "github.com/StartGackt/coj-backend"
)

func TestLaborDatasetLexical(t *testing.T) {
	cfg := coj.DefaultConfig()
	cfg.DBPath = filepath.Join(t.TempDir(), "eval.db")
	cfg.Embedding.Provider = ""

	eng, err := coj.New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer eng.Close()

	ctx := context.Background()
	ds := LaborDataset()
	ev := NewEvaluator(eng)
	if err := ev.Ingest(ctx, ds); err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	report, err := ev.Run(ctx, ds)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	t.Log("\n" + FormatReport(report))

	if report.Mode != "lexical" {
		t.Errorf("mode = %q, want lexical", report.Mode)
	}
	for _, r := range report.Results {
		if r.Error != "" {
			t.Errorf("%s: %s", r.Question, r.Error)
		}
	}

	wage := report.Results[0]
	if wage.ReciprocalRank != 1 || wage.Accuracy != 1 || !wage.Passed {
		t.Errorf("wage question = %+v", wage)
	}
	if report.Metrics.MRR <= 0 {
		t.Errorf("MRR = %v", report.Metrics.MRR)
	}
}
