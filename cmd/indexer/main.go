// Command indexer loads a knowledge directory into the vector store used by
// the API. Run it after migrations and whenever the documents change.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/wolfman30/support-ai-platform/cmd/mainconfig"
	"github.com/wolfman30/support-ai-platform/internal/app/bootstrap"
	appconfig "github.com/wolfman30/support-ai-platform/internal/config"
	"github.com/wolfman30/support-ai-platform/pkg/logging"
)

func main() {
	cfg := appconfig.Load()
	dir := flag.String("dir", cfg.KnowledgeDir, "directory of .txt, .md and .json documents")
	flag.Parse()

	logger := logging.New(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	awsCfg, err := mainconfig.LoadAWSConfig(ctx, cfg)
	if err != nil {
		logger.Error("failed to load AWS config", "error", err)
		os.Exit(1)
	}

	app, err := bootstrap.Build(ctx, cfg, awsCfg, logger)
	if err != nil {
		logger.Error("failed to build application", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	if app.Pool == nil {
		logger.Warn("no database configured; chunks are indexed in memory and discarded on exit")
	}

	summary, err := app.Indexer.IndexDirectory(ctx, *dir)
	if err != nil {
		logger.Error("indexing failed", "dir", *dir, "error", err)
		os.Exit(1)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(summary)

	if len(summary.Errors) > 0 {
		os.Exit(2)
	}
}
