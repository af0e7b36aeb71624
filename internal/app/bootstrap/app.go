package bootstrap

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/wolfman30/support-ai-platform/internal/admin"
	"github.com/wolfman30/support-ai-platform/internal/api/router"
	"github.com/wolfman30/support-ai-platform/internal/channels/whatsapp"
	appconfig "github.com/wolfman30/support-ai-platform/internal/config"
	"github.com/wolfman30/support-ai-platform/internal/conversation"
	"github.com/wolfman30/support-ai-platform/internal/events"
	"github.com/wolfman30/support-ai-platform/internal/faqs"
	httpmiddleware "github.com/wolfman30/support-ai-platform/internal/http/middleware"
	"github.com/wolfman30/support-ai-platform/internal/knowledge"
	"github.com/wolfman30/support-ai-platform/internal/notify"
	"github.com/wolfman30/support-ai-platform/internal/observability/metrics"
	"github.com/wolfman30/support-ai-platform/internal/orders"
	"github.com/wolfman30/support-ai-platform/pkg/logging"
)

const (
	memoryQueueBuffer    = 256
	processedEventMaxAge = 7 * 24 * time.Hour
	processedPurgeEvery  = time.Hour
)

type eventPurger interface {
	Purge(ctx context.Context, olderThan time.Duration) (int64, error)
	MarkProcessed(ctx context.Context, provider, eventID string) (bool, error)
}

// App holds every component wired from configuration.
type App struct {
	Config *appconfig.Config
	Logger *logging.Logger

	Redis    *redis.Client
	Pool     *pgxpool.Pool
	Registry *prometheus.Registry
	Metrics  *metrics.ChatMetrics
	LLM      *LLMProviders

	Conversations *conversation.Service
	Indexer       *knowledge.Indexer
	Retriever     *knowledge.Retriever
	Orders        *orders.Service
	FAQs          faqs.Repository
	Publisher     *conversation.Publisher
	Worker        *conversation.Worker
	WhatsApp      *whatsapp.Adapter
	ChatLimiter   *httpmiddleware.ClientLimiter

	processed eventPurger
	bgWG      sync.WaitGroup
}

// Build wires the application. Postgres and Redis are optional: without them
// every store falls back to its in-memory implementation.
func Build(ctx context.Context, cfg *appconfig.Config, awsCfg aws.Config, logger *logging.Logger) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("bootstrap: config is required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	if ctx == nil {
		ctx = context.Background()
	}

	app := &App{Config: cfg, Logger: logger}
	app.Registry = prometheus.NewRegistry()
	app.Registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	app.Metrics = metrics.NewChatMetrics(app.Registry)

	app.Pool = BuildPostgresPool(ctx, cfg.DatabaseURL, logger)
	app.Redis = BuildRedisClient(ctx, cfg, logger, true)

	providers, err := BuildLLM(ctx, cfg, awsCfg, logger)
	if err != nil {
		app.Close()
		return nil, err
	}
	app.LLM = providers

	app.buildKnowledge()
	app.buildOrders()

	genCfg, err := GeneratorConfig(cfg, providers)
	if err != nil {
		app.Close()
		return nil, err
	}
	generator := conversation.NewGenerator(providers.Client, genCfg,
		conversation.WithGeneratorLogger(logger),
		conversation.WithGeneratorMetrics(app.Metrics),
	)

	app.Conversations = conversation.NewService(app.conversationStore(), generator,
		conversation.WithOrderContext(app.Orders),
		conversation.WithRetriever(app.Retriever),
		conversation.WithSessionLocker(app.sessionLocker()),
		conversation.WithEscalationNotifier(app.escalationNotifier(awsCfg)),
		conversation.WithMetrics(app.Metrics),
		conversation.WithLogger(logger),
		conversation.WithHistoryWindow(cfg.ConversationMemorySize),
		conversation.WithTopK(cfg.RAGTopK),
		conversation.WithClosedPolicy(conversation.ParseClosedPolicy(cfg.ClosedConversationPolicy)),
	)

	if err := app.buildTurnPipeline(awsCfg); err != nil {
		app.Close()
		return nil, err
	}

	if cfg.ChatRateLimitRPS > 0 {
		app.ChatLimiter = httpmiddleware.NewClientLimiter(cfg.ChatRateLimitRPS, cfg.ChatRateLimitBurst)
	}
	return app, nil
}

func (a *App) buildKnowledge() {
	cfg := a.Config
	var embedder knowledge.Embedder = a.LLM.Embedder
	if a.Redis != nil {
		namespace := a.LLM.Provider + ":" + embeddingModelName(cfg, a.LLM.Provider)
		embedder = knowledge.NewCachedEmbedder(embedder, a.Redis, namespace, cfg.EmbeddingCacheTTL, a.Logger)
	}

	var store knowledge.VectorStore
	if a.Pool != nil {
		store = knowledge.NewPostgresStore(a.Pool)
	} else {
		store = knowledge.NewMemoryStore(cfg.EmbeddingDimensions)
	}

	a.Indexer = knowledge.NewIndexer(store, embedder,
		knowledge.WithChunking(cfg.RAGChunkSize, cfg.RAGChunkOverlap),
		knowledge.WithSkipDuplicates(),
		knowledge.WithIndexerLogger(a.Logger),
	)
	a.Retriever = knowledge.NewRetriever(store, embedder,
		knowledge.WithTopK(cfg.RAGTopK),
		knowledge.WithThreshold(cfg.RAGThreshold),
		knowledge.WithRetrieverLogger(a.Logger),
	)
}

func embeddingModelName(cfg *appconfig.Config, provider string) string {
	switch provider {
	case "bedrock":
		if cfg.BedrockEmbeddingModelID != "" {
			return cfg.BedrockEmbeddingModelID
		}
		return cfg.OpenAIEmbedModel
	case "gemini":
		return cfg.GeminiModel
	default:
		return cfg.OpenAIEmbedModel
	}
}

func (a *App) buildOrders() {
	if a.Pool != nil {
		a.Orders = orders.NewService(orders.NewPostgresRepository(a.Pool))
		a.FAQs = faqs.NewPostgresRepository(a.Pool)
		a.processed = events.NewProcessedStore(a.Pool)
		return
	}
	a.Logger.Warn("DATABASE_URL not set or unreachable; using in-memory stores")
	a.Orders = orders.NewService(orders.NewMemoryRepository())
	a.FAQs = faqs.NewMemoryRepository()
	a.processed = events.NewMemoryProcessedStore()
}

func (a *App) conversationStore() conversation.Store {
	if a.Pool != nil {
		return conversation.NewPostgresStore(a.Pool)
	}
	return conversation.NewMemoryStore()
}

// sessionLocker maps SESSION_LOCK onto a locker. "redis" degrades to the
// process-local lock when Redis is unavailable.
func (a *App) sessionLocker() conversation.SessionLocker {
	switch a.Config.SessionLockMode {
	case "none", "off":
		return conversation.NoopLocker{}
	case "redis":
		if a.Redis != nil {
			return conversation.NewRedisLocker(a.Redis, a.Config.SessionLockTTL, a.Logger)
		}
		a.Logger.Warn("SESSION_LOCK=redis but redis unavailable; using local lock")
	}
	return conversation.NewLocalLocker()
}

func (a *App) escalationNotifier(awsCfg aws.Config) *notify.EscalationNotifier {
	return notify.NewEscalationNotifier(a.emailSender(awsCfg), supportRecipients(a.Config.SupportInboxEmail), a.Logger)
}

func (a *App) emailSender(awsCfg aws.Config) notify.EmailSender {
	cfg := a.Config
	switch cfg.EmailProvider {
	case "ses":
		if cfg.SESFromEmail != "" {
			return notify.NewSESSender(sesv2.NewFromConfig(awsCfg), notify.SESConfig{
				FromEmail: cfg.SESFromEmail,
				FromName:  cfg.SendGridFromName,
			}, a.Logger)
		}
		a.Logger.Warn("EMAIL_PROVIDER=ses but SES_FROM_EMAIL not set; escalation emails are logged only")
	case "sendgrid":
		if sender := notify.NewSendGridSender(notify.SendGridConfig{
			APIKey:    cfg.SendGridAPIKey,
			FromEmail: cfg.SendGridFromEmail,
			FromName:  cfg.SendGridFromName,
		}, a.Logger); sender != nil {
			return sender
		}
		a.Logger.Warn("SENDGRID_API_KEY not set; escalation emails are logged only")
	}
	return notify.NewStubEmailSender(a.Logger)
}

func supportRecipients(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// buildTurnPipeline wires the queue shared by the WhatsApp webhook and the
// worker. The channel is skipped entirely without WhatsApp credentials.
func (a *App) buildTurnPipeline(awsCfg aws.Config) error {
	cfg := a.Config
	client := whatsapp.NewClient(strings.TrimSpace(cfg.WhatsAppToken), strings.TrimSpace(cfg.WhatsAppPhoneNumberID), cfg.WhatsAppAPIVersion)
	if !client.Enabled() {
		a.Logger.Info("whatsapp channel disabled; WHATSAPP_TOKEN or WHATSAPP_PHONE_NUMBER_ID not set")
		return nil
	}

	workerOpts := []conversation.WorkerOption{conversation.WithWorkerCount(cfg.WorkerCount)}
	adapterFor := func(publisher *conversation.Publisher) *whatsapp.Adapter {
		return whatsapp.NewAdapter(whatsapp.AdapterConfig{
			VerifyToken: cfg.WhatsAppVerifyToken,
			AppSecret:   cfg.WhatsAppAppSecret,
		}, client, publisher, a.Logger,
			whatsapp.WithEscalator(a.Conversations),
			whatsapp.WithProcessedStore(a.processed),
			whatsapp.WithMetrics(a.Metrics),
		)
	}

	if cfg.UseMemoryQueue {
		queue := conversation.NewMemoryQueue(memoryQueueBuffer)
		a.Publisher = conversation.NewPublisher(queue, a.Logger)
		a.WhatsApp = adapterFor(a.Publisher)
		a.Worker = conversation.NewWorker(a.Conversations, queue, a.WhatsApp, a.Logger, workerOpts...)
		return nil
	}

	if strings.TrimSpace(cfg.TurnQueueURL) == "" {
		return fmt.Errorf("bootstrap: TURN_QUEUE_URL is required when USE_MEMORY_QUEUE=false")
	}
	queue := conversation.NewSQSQueue(sqs.NewFromConfig(awsCfg), cfg.TurnQueueURL)
	a.Publisher = conversation.NewPublisher(queue, a.Logger)
	a.WhatsApp = adapterFor(a.Publisher)
	a.Worker = conversation.NewWorker(a.Conversations, queue, a.WhatsApp, a.Logger,
		append(workerOpts, conversation.WithReceiveWaitSeconds(20), conversation.WithReceiveBatchSize(10))...)
	return nil
}

// RouterConfig returns the HTTP surface for the wired components.
func (a *App) RouterConfig() *router.Config {
	cfg := a.Config
	return &router.Config{
		Logger:             a.Logger,
		AppName:            cfg.AppName,
		Version:            cfg.Version,
		Env:                cfg.Env,
		APIPrefix:          cfg.APIPrefix,
		CORSAllowedOrigins: cfg.CORSOrigins,
		MetricsHandler:     promhttp.HandlerFor(a.Registry, promhttp.HandlerOpts{}),
		HealthChecks:       a.HealthChecks(),
		ChatRateLimiter:    a.ChatLimiter,

		ChatHandler:      conversation.NewHandler(a.Conversations, a.Logger),
		OrdersHandler:    orders.NewHandler(a.Orders, a.Logger),
		FAQHandler:       faqs.NewHandler(a.FAQs, a.Logger),
		AdminHandler:     admin.NewConversationsHandler(a.Conversations, a.Logger, admin.WithAssigner(a.Conversations)),
		KnowledgeHandler: knowledge.NewHandler(a.Indexer, a.Retriever, a.Logger),
		WhatsApp:         a.WhatsApp,
	}
}

// Handler builds the root HTTP handler.
func (a *App) Handler() http.Handler {
	return router.New(a.RouterConfig())
}

// HealthChecks probes the optional backing services that were configured.
func (a *App) HealthChecks() map[string]router.Pinger {
	checks := map[string]router.Pinger{}
	if a.Pool != nil {
		checks["database"] = router.PingFunc(a.Pool.Ping)
	}
	if a.Redis != nil {
		checks["redis"] = router.PingFunc(func(ctx context.Context) error {
			return a.Redis.Ping(ctx).Err()
		})
	}
	return checks
}

// Start runs the background loops: the turn worker, the rate limiter sweep
// and the processed-event purge. They stop when ctx is cancelled.
func (a *App) Start(ctx context.Context) {
	if a.Worker != nil {
		a.Worker.Start(ctx)
	}
	if a.ChatLimiter != nil {
		a.bgWG.Add(1)
		go func() {
			defer a.bgWG.Done()
			a.ChatLimiter.Run(ctx)
		}()
	}
	if a.processed != nil {
		a.bgWG.Add(1)
		go func() {
			defer a.bgWG.Done()
			a.purgeProcessedEvents(ctx)
		}()
	}
}

func (a *App) purgeProcessedEvents(ctx context.Context) {
	ticker := time.NewTicker(processedPurgeEvery)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := a.processed.Purge(ctx, processedEventMaxAge)
			if err != nil {
				a.Logger.Warn("processed event purge failed", "error", err)
				continue
			}
			if n > 0 {
				a.Logger.Debug("purged processed events", "count", n)
			}
		}
	}
}

// Wait blocks until the loops started by Start have returned.
func (a *App) Wait() {
	if a.Worker != nil {
		a.Worker.Wait()
	}
	a.bgWG.Wait()
}

// Close releases connections. It is safe on a partially built App.
func (a *App) Close() {
	if a.LLM != nil {
		if err := a.LLM.Close(); err != nil {
			a.Logger.Warn("llm close failed", "error", err)
		}
	}
	if a.Redis != nil {
		_ = a.Redis.Close()
	}
	if a.Pool != nil {
		a.Pool.Close()
	}
}
