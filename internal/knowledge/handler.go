package knowledge

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/wolfman30/support-ai-platform/internal/llm"
	"github.com/wolfman30/support-ai-platform/pkg/logging"
)

const maxDocumentBytes = 5 << 20

type documentIndexer interface {
	IndexDocument(ctx context.Context, content string, metadata map[string]any) (int, error)
}

type contextSearcher interface {
	Retrieve(ctx context.Context, query string, topK int) (Retrieval, error)
}

// Handler exposes document ingestion and a debug search over the knowledge base.
type Handler struct {
	indexer  documentIndexer
	searcher contextSearcher
	logger   *logging.Logger
}

func NewHandler(indexer documentIndexer, searcher contextSearcher, logger *logging.Logger) *Handler {
	if indexer == nil {
		panic("knowledge: indexer required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{indexer: indexer, searcher: searcher, logger: logger}
}

func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/documents", h.IndexDocument)
	if h.searcher != nil {
		r.Post("/search", h.Search)
	}
	return r
}

// DocumentRequest is the body of POST /knowledge/documents.
type DocumentRequest struct {
	Content  string         `json:"content"`
	Source   string         `json:"source"`
	Category string         `json:"category,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

type documentResponse struct {
	Source        string `json:"source"`
	ChunksIndexed int    `json:"chunks_indexed"`
}

func (h *Handler) IndexDocument(w http.ResponseWriter, r *http.Request) {
	var req DocumentRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxDocumentBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Content) == "" {
		writeError(w, http.StatusBadRequest, "content is required")
		return
	}
	metadata := make(map[string]any, len(req.Metadata)+2)
	for k, v := range req.Metadata {
		metadata[k] = v
	}
	if req.Source != "" {
		metadata[MetadataSource] = req.Source
	}
	if req.Category != "" {
		metadata["category"] = req.Category
	}

	n, err := h.indexer.IndexDocument(r.Context(), req.Content, metadata)
	if err != nil {
		h.writeProviderError(w, "failed to index document", err)
		return
	}
	writeJSON(w, http.StatusCreated, documentResponse{Source: req.Source, ChunksIndexed: n})
}

// SearchRequest is the body of POST /knowledge/search.
type SearchRequest struct {
	Query string `json:"query"`
	TopK  int    `json:"top_k"`
}

type searchResponse struct {
	Query   string         `json:"query"`
	Context string         `json:"context"`
	Sources []string       `json:"sources"`
	Results []SearchResult `json:"results"`
}

func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	var req SearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		writeError(w, http.StatusBadRequest, "query is required")
		return
	}
	res, err := h.searcher.Retrieve(r.Context(), req.Query, req.TopK)
	if err != nil {
		h.writeProviderError(w, "knowledge search failed", err)
		return
	}
	sources, results := res.Sources, res.Results
	if sources == nil {
		sources = []string{}
	}
	if results == nil {
		results = []SearchResult{}
	}
	writeJSON(w, http.StatusOK, searchResponse{Query: req.Query, Context: res.Context, Sources: sources, Results: results})
}

func (h *Handler) writeProviderError(w http.ResponseWriter, msg string, err error) {
	switch {
	case errors.Is(err, llm.ErrNotConfigured):
		writeError(w, http.StatusServiceUnavailable, "Embedding provider is not configured")
	case errors.Is(err, llm.ErrRateLimited):
		writeError(w, http.StatusTooManyRequests, "Embedding provider is busy. Please retry shortly.")
	default:
		h.logger.Error(msg, "error", err)
		writeError(w, http.StatusInternalServerError, "Knowledge base error")
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}
