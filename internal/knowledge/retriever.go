package knowledge

import (
	"context"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/wolfman30/support-ai-platform/pkg/logging"
)

const (
	DefaultTopK      = 5
	DefaultThreshold = 0.7

	contextSeparator = "\n\n---\n\n"
)

// Retrieval is the formatted knowledge context for one query.
type Retrieval struct {
	Context string
	Sources []string
	Results []SearchResult
}

// Retriever embeds queries and formats the closest chunks as prompt context.
type Retriever struct {
	store     VectorStore
	embedder  Embedder
	topK      int
	threshold float64
	logger    *logging.Logger
	tracer    trace.Tracer
}

type RetrieverOption func(*Retriever)

func WithTopK(k int) RetrieverOption {
	return func(r *Retriever) {
		if k > 0 {
			r.topK = k
		}
	}
}

func WithThreshold(threshold float64) RetrieverOption {
	return func(r *Retriever) {
		if threshold > 0 {
			r.threshold = threshold
		}
	}
}

func WithRetrieverLogger(logger *logging.Logger) RetrieverOption {
	return func(r *Retriever) {
		if logger != nil {
			r.logger = logger
		}
	}
}

func NewRetriever(store VectorStore, embedder Embedder, opts ...RetrieverOption) *Retriever {
	if store == nil {
		panic("knowledge: vector store required")
	}
	if embedder == nil {
		panic("knowledge: embedder required")
	}
	r := &Retriever{
		store:     store,
		embedder:  embedder,
		topK:      DefaultTopK,
		threshold: DefaultThreshold,
		logger:    logging.Default(),
		tracer:    otel.Tracer("support.internal.knowledge.retriever"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Retrieve returns up to topK chunks at or above the similarity threshold.
// topK <= 0 uses the configured default.
func (r *Retriever) Retrieve(ctx context.Context, query string, topK int) (Retrieval, error) {
	ctx, span := r.tracer.Start(ctx, "knowledge.retrieve")
	defer span.End()

	if strings.TrimSpace(query) == "" {
		return Retrieval{}, nil
	}
	if topK <= 0 {
		topK = r.topK
	}

	vec, err := r.embedder.Embed(ctx, query)
	if err != nil {
		span.RecordError(err)
		return Retrieval{}, fmt.Errorf("knowledge: embed query: %w", err)
	}
	results, err := r.store.Search(ctx, vec, topK, r.threshold)
	if err != nil {
		span.RecordError(err)
		return Retrieval{}, fmt.Errorf("knowledge: search: %w", err)
	}
	span.SetAttributes(attribute.Int("knowledge.results", len(results)))
	if len(results) == 0 {
		return Retrieval{}, nil
	}
	return Retrieval{
		Context: FormatContext(results),
		Sources: distinctSources(results),
		Results: results,
	}, nil
}

// GetRelevantContext is Retrieve reduced to the context text; failures are
// logged and yield an empty string.
func (r *Retriever) GetRelevantContext(ctx context.Context, query string, topK int) string {
	retrieval, err := r.Retrieve(ctx, query, topK)
	if err != nil {
		r.logger.Error("knowledge retrieval failed", "error", err)
		return ""
	}
	if retrieval.Context == "" {
		r.logger.Debug("no relevant documents found", "query", truncate(query, 50))
	}
	return retrieval.Context
}

// FormatContext renders results in ranking order as numbered source blocks.
func FormatContext(results []SearchResult) string {
	parts := make([]string, 0, len(results))
	for n, res := range results {
		parts = append(parts, fmt.Sprintf("[Source %d: %s]\n%s", n+1, res.Source(), res.Content))
	}
	return strings.Join(parts, contextSeparator)
}

func distinctSources(results []SearchResult) []string {
	seen := make(map[string]struct{}, len(results))
	var out []string
	for _, res := range results {
		src := res.Source()
		if _, ok := seen[src]; ok {
			continue
		}
		seen[src] = struct{}{}
		out = append(out, src)
	}
	return out
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
