// Command llmtest sends one support question through the configured LLM
// provider and prints the reply with the escalation decision. It checks
// credentials and model ids without starting the server.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/wolfman30/support-ai-platform/cmd/mainconfig"
	"github.com/wolfman30/support-ai-platform/internal/app/bootstrap"
	appconfig "github.com/wolfman30/support-ai-platform/internal/config"
	"github.com/wolfman30/support-ai-platform/internal/conversation"
	"github.com/wolfman30/support-ai-platform/pkg/logging"
)

func main() {
	message := flag.String("message", "Where is my order ORD-2024-001234?", "customer message to send")
	contextText := flag.String("context", "", "optional knowledge context passed to the prompt")
	timeout := flag.Duration("timeout", 30*time.Second, "request timeout")
	flag.Parse()

	cfg := appconfig.Load()
	logger := logging.New(cfg.LogLevel)

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	awsCfg, err := mainconfig.LoadAWSConfig(ctx, cfg)
	if err != nil {
		logger.Error("failed to load AWS config", "error", err)
		os.Exit(1)
	}

	providers, err := bootstrap.BuildLLM(ctx, cfg, awsCfg, logger)
	if err != nil {
		logger.Error("failed to build LLM provider", "error", err)
		os.Exit(1)
	}
	defer func() { _ = providers.Close() }()

	genCfg, err := bootstrap.GeneratorConfig(cfg, providers)
	if err != nil {
		logger.Error("failed to build generator config", "error", err)
		os.Exit(1)
	}
	generator := conversation.NewGenerator(providers.Client, genCfg, conversation.WithGeneratorLogger(logger))

	fmt.Printf("provider: %s  model: %s\n", providers.Provider, providers.Model)
	start := time.Now()
	gen, err := generator.Generate(ctx, *message, nil, *contextText)
	if err != nil {
		fmt.Printf("error after %s: %v\n", time.Since(start).Round(time.Millisecond), err)
		os.Exit(1)
	}

	fmt.Printf("reply (%s, %d tokens):\n%s\n", time.Since(start).Round(time.Millisecond), gen.TokensUsed, gen.Response)
	if gen.Escalate {
		fmt.Printf("escalate: yes (%s)\n", gen.EscalationTrigger)
	} else {
		fmt.Println("escalate: no")
	}
}
