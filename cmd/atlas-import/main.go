package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/bhagyeshsagole/atlas/internal/config"
	"github.com/bhagyeshsagole/atlas/internal/history"
	"github.com/bhagyeshsagole/atlas/internal/importer"
	"github.com/bhagyeshsagole/atlas/internal/llm"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	filePath := flag.String("file", "", "path to a free-text workout log (- for stdin)")
	dryRun := flag.Bool("dry-run", false, "parse and report sessions without writing the history store")
	flag.Parse()

	log := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

	if *filePath == "" {
		fmt.Fprintf(os.Stderr, "Usage: atlas-import -config config.yaml -file workouts.txt [-dry-run]\n")
		flag.PrintDefaults()
		os.Exit(1)
	}

	var text []byte
	var err error
	if *filePath == "-" {
		text, err = io.ReadAll(os.Stdin)
	} else {
		text, err = os.ReadFile(*filePath)
	}
	if err != nil {
		log.Error("reading input", "file", *filePath, "error", err)
		os.Exit(1)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if cfg.LLM.APIKey == "" {
		log.Error("llm.api_key is required for import")
		os.Exit(1)
	}
	if cfg.Engine.DBPath == "" {
		log.Error("engine.db_path is required")
		os.Exit(1)
	}

	store, err := history.Open(cfg.Engine.DBPath, log.With("component", "history"))
	if err != nil {
		log.Error("failed to open history store", "error", err)
		os.Exit(1)
	}
	defer store.Close()

	ctx := context.Background()
	model := llm.NewClient(cfg.LLM.BaseURL, cfg.LLM.APIKey, cfg.LLM.Model)
	imp := importer.New(model, store, log.With("component", "importer"))

	if *dryRun {
		sessions, err := imp.ParseFreeText(ctx, string(text))
		if err != nil {
			reportError(log, err)
			os.Exit(1)
		}
		for _, sess := range sessions {
			log.Info("parsed session", "title", sess.Title, "date", sess.Date,
				"exercises", len(sess.Exercises))
		}
		log.Info("DRY RUN complete, nothing written", "sessions", len(sessions))
		return
	}

	imported, skipped, err := imp.Import(ctx, string(text))
	if err != nil {
		reportError(log, err)
		os.Exit(1)
	}
	log.Info("import complete", "imported", imported, "skipped", skipped)
}

func reportError(log *slog.Logger, err error) {
	var parseErr *importer.ParseError
	switch {
	case errors.Is(err, importer.ErrEmptyInput):
		log.Error("input file is empty")
	case errors.As(err, &parseErr):
		log.Error("parse failed", "detail", parseErr.Detail, "error", parseErr.Err)
	default:
		log.Error("import failed", "error", err)
	}
}
