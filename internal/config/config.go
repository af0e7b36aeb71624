package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	Port           string
	Env            string
	Version        string
	LogLevel       string
	AppName        string
	APIPrefix      string
	CORSOrigins    []string
	UseMemoryQueue bool
	WorkerCount    int
	DatabaseURL    string

	ChatRateLimitRPS   float64
	ChatRateLimitBurst int

	RedisAddr         string
	RedisPassword     string
	RedisTLS          bool
	SessionLockMode   string
	SessionLockTTL    time.Duration
	EmbeddingCacheTTL time.Duration

	// LLM provider selection: openai, bedrock or gemini
	LLMProvider         string
	OpenAIAPIKey        string
	OpenAIBaseURL       string
	OpenAIModel         string
	OpenAIEmbedModel    string
	GeminiAPIKey        string
	GeminiModel         string
	LLMMaxTokens        int
	LLMTemperature      float64
	LLMPresencePenalty  float64
	LLMFrequencyPenalty float64
	EmbeddingDimensions int

	AWSRegion               string
	AWSAccessKeyID          string
	AWSSecretAccessKey      string
	AWSEndpointOverride     string
	BedrockModelID          string
	BedrockEmbeddingModelID string
	TurnQueueURL            string

	// Retrieval
	RAGChunkSize    int
	RAGChunkOverlap int
	RAGTopK         int
	RAGThreshold    float64
	KnowledgeDir    string

	ConversationMemorySize   int
	ClosedConversationPolicy string
	EscalationRulesFile      string

	// WhatsApp Cloud API
	WhatsAppToken         string
	WhatsAppPhoneNumberID string
	WhatsAppVerifyToken   string
	WhatsAppAppSecret     string
	WhatsAppAPIVersion    string

	// Escalation notifications
	EmailProvider     string
	SupportInboxEmail string
	SendGridAPIKey    string
	SendGridFromEmail string
	SendGridFromName  string
	SESFromEmail      string
}

// Load reads configuration from environment variables. A .env file in the
// working directory is applied first when present.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		Port:           getEnv("PORT", "8080"),
		Env:            getEnv("ENV", "development"),
		Version:        getEnv("APP_VERSION", "1.0.0"),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		AppName:        getEnv("APP_NAME", "Support AI Platform"),
		APIPrefix:      getEnv("API_PREFIX", "/api/v1"),
		CORSOrigins:    getEnvAsList("CORS_ORIGINS", []string{"*"}),
		UseMemoryQueue: getEnvAsBool("USE_MEMORY_QUEUE", true),
		WorkerCount:    getEnvAsInt("WORKER_COUNT", 2),
		DatabaseURL:    getEnv("DATABASE_URL", ""),

		ChatRateLimitRPS:   getEnvAsFloat("CHAT_RATE_LIMIT_RPS", 2),
		ChatRateLimitBurst: getEnvAsInt("CHAT_RATE_LIMIT_BURST", 10),

		RedisAddr:         getEnv("REDIS_ADDR", ""),
		RedisPassword:     getEnv("REDIS_PASSWORD", ""),
		RedisTLS:          getEnvAsBool("REDIS_TLS", false),
		SessionLockMode:   strings.ToLower(strings.TrimSpace(getEnv("SESSION_LOCK", "local"))),
		SessionLockTTL:    getEnvAsDuration("SESSION_LOCK_TTL", 90*time.Second),
		EmbeddingCacheTTL: getEnvAsDuration("EMBEDDING_CACHE_TTL", 24*time.Hour),

		LLMProvider:         strings.ToLower(strings.TrimSpace(getEnv("LLM_PROVIDER", "openai"))),
		OpenAIAPIKey:        getEnv("OPENAI_API_KEY", ""),
		OpenAIBaseURL:       getEnv("OPENAI_BASE_URL", ""),
		OpenAIModel:         getEnv("OPENAI_MODEL", "gpt-4-turbo-preview"),
		OpenAIEmbedModel:    getEnv("OPENAI_EMBEDDING_MODEL", "text-embedding-3-small"),
		GeminiAPIKey:        getEnv("GEMINI_API_KEY", ""),
		GeminiModel:         getEnv("GEMINI_MODEL", "gemini-1.5-flash"),
		LLMMaxTokens:        getEnvAsInt("LLM_MAX_TOKENS", 1000),
		LLMTemperature:      getEnvAsFloat("LLM_TEMPERATURE", 0.7),
		LLMPresencePenalty:  getEnvAsFloat("LLM_PRESENCE_PENALTY", 0.1),
		LLMFrequencyPenalty: getEnvAsFloat("LLM_FREQUENCY_PENALTY", 0.1),
		EmbeddingDimensions: getEnvAsInt("EMBEDDING_DIMENSIONS", 1536),

		AWSRegion:               getEnv("AWS_REGION", "us-east-1"),
		AWSAccessKeyID:          getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretAccessKey:      getEnv("AWS_SECRET_ACCESS_KEY", ""),
		AWSEndpointOverride:     getEnv("AWS_ENDPOINT_OVERRIDE", ""),
		BedrockModelID:          getEnv("BEDROCK_MODEL_ID", ""),
		BedrockEmbeddingModelID: getEnv("BEDROCK_EMBEDDING_MODEL_ID", ""),
		TurnQueueURL:            getEnv("TURN_QUEUE_URL", ""),

		RAGChunkSize:    getEnvAsInt("RAG_CHUNK_SIZE", 1000),
		RAGChunkOverlap: getEnvAsInt("RAG_CHUNK_OVERLAP", 200),
		RAGTopK:         getEnvAsInt("RAG_TOP_K", 5),
		RAGThreshold:    getEnvAsFloat("RAG_SIMILARITY_THRESHOLD", 0.7),
		KnowledgeDir:    getEnv("KNOWLEDGE_DIR", "./data/knowledge"),

		ConversationMemorySize:   getEnvAsInt("CONVERSATION_MEMORY_SIZE", 10),
		ClosedConversationPolicy: strings.ToLower(strings.TrimSpace(getEnv("CLOSED_CONVERSATION_POLICY", "append"))),
		EscalationRulesFile:      getEnv("ESCALATION_RULES_FILE", ""),

		WhatsAppToken:         getEnv("WHATSAPP_TOKEN", ""),
		WhatsAppPhoneNumberID: getEnv("WHATSAPP_PHONE_NUMBER_ID", ""),
		WhatsAppVerifyToken:   getEnv("WHATSAPP_VERIFY_TOKEN", "chatbot_verify_token"),
		WhatsAppAppSecret:     getEnv("WHATSAPP_APP_SECRET", ""),
		WhatsAppAPIVersion:    getEnv("WHATSAPP_API_VERSION", "v18.0"),

		EmailProvider:     strings.ToLower(strings.TrimSpace(getEnv("EMAIL_PROVIDER", "sendgrid"))),
		SupportInboxEmail: getEnv("SUPPORT_INBOX_EMAIL", ""),
		SendGridAPIKey:    getEnv("SENDGRID_API_KEY", ""),
		SendGridFromEmail: getEnv("SENDGRID_FROM_EMAIL", ""),
		SendGridFromName:  getEnv("SENDGRID_FROM_NAME", "Support AI"),
		SESFromEmail:      getEnv("SES_FROM_EMAIL", ""),
	}
}

// IsProduction reports whether the service runs with ENV=production.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Env, "production")
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt retrieves an environment variable as an integer or returns a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsBool retrieves an environment variable as a boolean or returns a default value
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsList splits a comma separated variable, dropping empty entries.
func getEnvAsList(key string, defaultValue []string) []string {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(valueStr, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
