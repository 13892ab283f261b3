package main

import (
	"flag"
	"log/slog"
	"os"

	"github.com/bhagyeshsagole/atlas/internal/config"
	"github.com/bhagyeshsagole/atlas/internal/history"
	"github.com/bhagyeshsagole/atlas/internal/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"
)

// Version is set at build time via -ldflags.
var Version = "dev"

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	flag.Parse()

	// stdout carries the protocol; everything else goes to stderr.
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))

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

	srv := mcp.New(store, Version, log.With("component", "mcp"))
	if err := mcpserver.ServeStdio(srv); err != nil {
		log.Error("mcp server error", "error", err)
		os.Exit(1)
	}
}
