package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/wolfman30/support-ai-platform/internal/admin"
	"github.com/wolfman30/support-ai-platform/internal/channels/whatsapp"
	"github.com/wolfman30/support-ai-platform/internal/conversation"
	"github.com/wolfman30/support-ai-platform/internal/faqs"
	httpmiddleware "github.com/wolfman30/support-ai-platform/internal/http/middleware"
	"github.com/wolfman30/support-ai-platform/internal/knowledge"
	"github.com/wolfman30/support-ai-platform/internal/orders"
	"github.com/wolfman30/support-ai-platform/pkg/logging"
)

// Config holds router configuration. Nil handlers are not mounted.
type Config struct {
	Logger             *logging.Logger
	AppName            string
	Version            string
	Env                string
	APIPrefix          string
	CORSAllowedOrigins []string
	MetricsHandler     http.Handler
	HealthChecks       map[string]Pinger
	ChatRateLimiter    *httpmiddleware.ClientLimiter

	ChatHandler      *conversation.Handler
	OrdersHandler    *orders.Handler
	FAQHandler       *faqs.Handler
	AdminHandler     *admin.ConversationsHandler
	KnowledgeHandler *knowledge.Handler
	WhatsApp         *whatsapp.Adapter
}

// New creates the chi router with every configured route.
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(httpmiddleware.ProcessTime)
	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(httpmiddleware.CORS(cfg.CORSAllowedOrigins))
	}
	if cfg.Logger != nil {
		r.Use(httpmiddleware.RequestLogger(cfg.Logger))
	}

	r.Get("/", rootInfo(cfg))
	r.Get("/health", healthHandler(cfg.Version, cfg.HealthChecks))
	if cfg.MetricsHandler != nil {
		r.Handle("/metrics", cfg.MetricsHandler)
	}

	prefix := cfg.APIPrefix
	if prefix == "" {
		prefix = "/api/v1"
	}
	r.Route(prefix, func(api chi.Router) {
		if cfg.ChatHandler != nil {
			chat := api.With(middleware.Compress(5))
			if cfg.ChatRateLimiter != nil {
				chat = chat.With(httpmiddleware.RateLimit(cfg.ChatRateLimiter))
			}
			chat.Mount("/chat", cfg.ChatHandler.Routes())
		}
		if cfg.OrdersHandler != nil {
			api.Mount("/orders", cfg.OrdersHandler.Routes())
		}
		if cfg.FAQHandler != nil {
			api.Mount("/faqs", cfg.FAQHandler.Routes())
		}
		if cfg.AdminHandler != nil {
			api.Mount("/admin", cfg.AdminHandler.Routes())
		}
		if cfg.KnowledgeHandler != nil {
			api.Mount("/knowledge", cfg.KnowledgeHandler.Routes())
		}
		// Meta calls the webhook directly, so it skips compression and rate limiting.
		if cfg.WhatsApp != nil {
			api.Mount("/whatsapp", cfg.WhatsApp.Routes())
		}
	})

	return r
}

func rootInfo(cfg *Config) http.HandlerFunc {
	name := cfg.AppName
	if name == "" {
		name = "Support AI Platform"
	}
	body := map[string]string{
		"name":    name,
		"version": cfg.Version,
		"env":     cfg.Env,
		"health":  "/health",
		"api":     cfg.APIPrefix,
	}
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, body)
	}
}
