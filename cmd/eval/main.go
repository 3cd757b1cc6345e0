// Command eval runs an evaluation dataset against a fresh engine.
//
// Built-in labour-court dataset, lexical only:
//
//	go run ./cmd/eval
//
// Custom dataset with OpenAI embeddings and a JSON report:
//
//	go run ./cmd/eval \
//	  --dataset ./testdata/wages.yaml \
//	  --embed-provider openai --embed-model text-embedding-3-small \
//	  --json report.json
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/joho/godotenv"

	coj "github.com/StartGackt/coj-backend"
	"github.com/StartGackt/coj-backend/eval"
)

func main() {
	datasetPath := flag.String("dataset", "", "Dataset file (YAML or JSON); defaults to the built-in labour dataset")
	dbPath := flag.String("db", "", "Database path; defaults to a temporary file")
	embedProvider := flag.String("embed-provider", "", "Embedding provider (openai, ollama, lmstudio, openrouter, custom); empty runs lexical only")
	embedModel := flag.String("embed-model", "", "Embedding model")
	embedURL := flag.String("embed-base-url", "", "Embedding API base URL")
	jsonOut := flag.String("json", "", "Write the full report as JSON to this file")
	verbose := flag.Bool("v", false, "Debug logging")
	flag.Parse()

	_ = godotenv.Load()

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	if err := run(*datasetPath, *dbPath, *embedProvider, *embedModel, *embedURL, *jsonOut); err != nil {
		slog.Error("eval failed", "error", err)
		os.Exit(1)
	}
}

func run(datasetPath, dbPath, provider, model, baseURL, jsonOut string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	ds := eval.LaborDataset()
	if datasetPath != "" {
		var err error
		if ds, err = eval.LoadDataset(datasetPath); err != nil {
			return err
		}
	}

	cfg := coj.DefaultConfig()
	cfg.Embedding.Provider = ""
	if err := cfg.ApplyEnv(); err != nil {
		return err
	}
	cfg.Embedding.Provider = provider
	if model != "" {
		cfg.Embedding.Model = model
	}
	if baseURL != "" {
		cfg.Embedding.BaseURL = baseURL
	}
	if dbPath == "" {
		dir, err := os.MkdirTemp("", "coj-eval-*")
		if err != nil {
			return err
		}
		defer os.RemoveAll(dir)
		dbPath = filepath.Join(dir, "eval.db")
	}
	cfg.DBPath = dbPath

	engine, err := coj.New(cfg)
	if err != nil {
		return fmt.Errorf("creating engine: %w", err)
	}
	defer engine.Close()

	ev := eval.NewEvaluator(engine)
	if err := ev.Ingest(ctx, ds); err != nil {
		return err
	}
	report, err := ev.Run(ctx, ds)
	if err != nil {
		return err
	}

	fmt.Print(eval.FormatReport(report))

	if jsonOut != "" {
		data, err := json.MarshalIndent(report, "", "  ")
		if err != nil {
			return fmt.Errorf("encoding report: %w", err)
		}
		if err := os.WriteFile(jsonOut, data, 0o644); err != nil {
			return fmt.Errorf("writing report: %w", err)
		}
		slog.Info("report written", "path", jsonOut)
	}
	return nil
}
