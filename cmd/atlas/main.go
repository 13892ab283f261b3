package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bhagyeshsagole/atlas/internal/config"
	"github.com/bhagyeshsagole/atlas/internal/engine"
	"github.com/bhagyeshsagole/atlas/internal/history"
	"github.com/bhagyeshsagole/atlas/internal/importer"
	"github.com/bhagyeshsagole/atlas/internal/llm"
	"github.com/bhagyeshsagole/atlas/internal/summary"
	"github.com/bhagyeshsagole/atlas/internal/syncer"
)

// Version is set at build time via -ldflags.
var Version = "dev"

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	flag.Parse()

	log := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	log.Info("Atlas engine starting", "version", Version)

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Error("failed to load config", "error", err)
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

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Reconcile totals drift left by a crash mid-finalization.
	if repaired, err := store.RepairZeroTotalSessions(ctx); err != nil {
		log.Warn("totals repair sweep failed", "error", err)
	} else if repaired > 0 {
		log.Info("repaired sessions with stale totals", "count", repaired)
	}

	// Sync pipeline: outbox in the same database file, worker draining it
	// against the remote service. Only wired when a server URL is set.
	var (
		outbox *syncer.Outbox
		worker *syncer.Worker
	)
	if cfg.Sync.ServerURL != "" {
		outbox, err = syncer.NewOutbox(store.DB(), log.With("component", "outbox"))
		if err != nil {
			log.Error("failed to open sync outbox", "error", err)
			os.Exit(1)
		}
		store.OnSessionEnded(outbox.SessionEnded)

		client := syncer.NewClient(cfg.Sync.ServerURL, cfg.Sync.Token)
		worker = syncer.NewWorker(outbox, client, cfg.Sync.PollInterval(),
			cfg.Sync.BatchSize, cfg.Sync.MaxAttempts, log.With("component", "syncer"))
		go worker.Start(ctx)
		log.Info("sync worker started", "server", cfg.Sync.ServerURL,
			"interval", cfg.Sync.PollInterval().String())
	} else {
		log.Info("sync not configured, sessions stay local")
	}

	// LLM-backed features: free-text import and coaching summaries.
	var imp *importer.Importer
	if cfg.LLM.APIKey != "" {
		model := llm.NewClient(cfg.LLM.BaseURL, cfg.LLM.APIKey, cfg.LLM.Model)
		imp = importer.New(model, store, log.With("component", "importer"))

		gen := summary.New(model, store, log.With("component", "summary"))
		store.OnSessionEnded(gen.SessionEnded)
	} else {
		log.Info("llm not configured, import and summaries disabled")
	}

	eng := engine.New(store, imp, outbox, cfg.Engine.APIKey, log.With("component", "engine"))

	host := cfg.Engine.Host
	if host == "" {
		host = "127.0.0.1"
	}
	port := cfg.Engine.Port
	if port == 0 {
		port = 8787
	}
	addr := fmt.Sprintf("%s:%d", host, port)
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		log.Error("listen failed", "addr", addr, "error", err)
		os.Exit(1)
	}
	log.Info("engine listening", "addr", addr)

	httpSrv := &http.Server{Handler: eng}
	go func() {
		if err := httpSrv.Serve(listener); err != nil && err != http.ErrServerClosed {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	log.Info("shutting down", "signal", sig)

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown error", "error", err)
	}
	cancel()
	if worker != nil {
		worker.Wait()
	}
	log.Info("engine stopped")
}
