package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/wolfman30/support-ai-platform/cmd/mainconfig"
	"github.com/wolfman30/support-ai-platform/internal/app/bootstrap"
	appconfig "github.com/wolfman30/support-ai-platform/internal/config"
	"github.com/wolfman30/support-ai-platform/internal/knowledge"
	"github.com/wolfman30/support-ai-platform/pkg/logging"
)

const shutdownTimeout = 30 * time.Second

func main() {
	cfg := appconfig.Load()

	logger := logging.New(cfg.LogLevel)
	logger.Info("starting support-ai-platform API server",
		"env", cfg.Env,
		"port", cfg.Port,
		"llm_provider", cfg.LLMProvider,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

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

	if cfg.KnowledgeDir != "" {
		go indexKnowledgeDir(ctx, app, cfg.KnowledgeDir, logger)
	}

	app.Start(ctx)

	srv := newHTTPServer(cfg.Port, app.Handler())
	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
	}

	cancel()
	waitCh := make(chan struct{})
	go func() {
		app.Wait()
		close(waitCh)
	}()
	select {
	case <-waitCh:
	case <-shutdownCtx.Done():
		logger.Error("background workers shutdown timed out", "error", shutdownCtx.Err())
	}

	logger.Info("server stopped")
}

func newHTTPServer(port string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              ":" + port,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		// Chat turns block on the LLM.
		WriteTimeout: 90 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}

// indexKnowledgeDir loads the knowledge base on startup. Unchanged chunks are
// skipped, so restarts only embed new content.
func indexKnowledgeDir(ctx context.Context, app *bootstrap.App, dir string, logger *logging.Logger) knowledge.IndexSummary {
	if _, err := os.Stat(dir); err != nil {
		logger.Info("knowledge directory not found; skipping startup indexing", "dir", dir)
		return knowledge.IndexSummary{}
	}
	summary, err := app.Indexer.IndexDirectory(ctx, dir)
	if err != nil {
		logger.Warn("knowledge indexing failed", "dir", dir, "error", err)
	}
	for _, e := range summary.Errors {
		logger.Warn("knowledge file skipped", "error", e)
	}
	return summary
}
