package faqs

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/wolfman30/support-ai-platform/pkg/logging"
)

// Handler serves the FAQ management endpoints.
type Handler struct {
	repo   Repository
	logger *logging.Logger
}

func NewHandler(repo Repository, logger *logging.Logger) *Handler {
	if repo == nil {
		panic("faqs: repository required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{repo: repo, logger: logger}
}

func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.ListFAQs)
	r.Post("/", h.CreateFAQ)
	r.Get("/categories", h.ListCategories)
	r.Get("/{faqID}", h.GetFAQ)
	r.Put("/{faqID}", h.UpdateFAQ)
	r.Delete("/{faqID}", h.DeleteFAQ)
	return r
}

// ListFAQs handles GET /faqs?category=&search=.
func (h *Handler) ListFAQs(w http.ResponseWriter, r *http.Request) {
	category := Category(r.URL.Query().Get("category"))
	if category != "" && !category.Valid() {
		writeError(w, http.StatusBadRequest, "invalid category")
		return
	}
	items, err := h.repo.List(r.Context(), ListFilter{Category: category})
	if err != nil {
		h.logger.Error("failed to list faqs", "error", err)
		writeError(w, http.StatusInternalServerError, "Error fetching FAQs")
		return
	}
	if search := r.URL.Query().Get("search"); search != "" {
		filtered := make([]FAQ, 0, len(items))
		for _, f := range items {
			if f.Matches(search) {
				filtered = append(filtered, f)
			}
		}
		items = filtered
	}
	writeJSON(w, http.StatusOK, items)
}

type categoryCount struct {
	Name        Category `json:"name"`
	DisplayName string   `json:"display_name"`
	Count       int      `json:"count"`
}

// ListCategories handles GET /faqs/categories.
func (h *Handler) ListCategories(w http.ResponseWriter, r *http.Request) {
	items, err := h.repo.List(r.Context(), ListFilter{})
	if err != nil {
		h.logger.Error("failed to count faq categories", "error", err)
		writeError(w, http.StatusInternalServerError, "Error fetching categories")
		return
	}
	counts := make(map[Category]int)
	for _, f := range items {
		counts[f.Category]++
	}
	out := make([]categoryCount, 0, len(Categories))
	for _, c := range Categories {
		out = append(out, categoryCount{Name: c, DisplayName: c.DisplayName(), Count: counts[c]})
	}
	writeJSON(w, http.StatusOK, map[string]any{"categories": out})
}

func (h *Handler) GetFAQ(w http.ResponseWriter, r *http.Request) {
	f, err := h.repo.Get(r.Context(), chi.URLParam(r, "faqID"))
	if err != nil {
		h.writeRepoError(w, "failed to fetch faq", "Error fetching FAQ", err)
		return
	}
	writeJSON(w, http.StatusOK, f)
}

func (h *Handler) CreateFAQ(w http.ResponseWriter, r *http.Request) {
	var in CreateInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := in.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	f, err := h.repo.Create(r.Context(), in)
	if err != nil {
		h.logger.Error("failed to create faq", "error", err)
		writeError(w, http.StatusInternalServerError, "Error creating FAQ")
		return
	}
	h.logger.Info("faq created", "faq_id", f.ID, "category", f.Category)
	writeJSON(w, http.StatusOK, f)
}

func (h *Handler) UpdateFAQ(w http.ResponseWriter, r *http.Request) {
	var in UpdateInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := in.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	f, err := h.repo.Update(r.Context(), chi.URLParam(r, "faqID"), in)
	if err != nil {
		h.writeRepoError(w, "failed to update faq", "Error updating FAQ", err)
		return
	}
	writeJSON(w, http.StatusOK, f)
}

func (h *Handler) DeleteFAQ(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "faqID")
	if err := h.repo.Delete(r.Context(), id); err != nil {
		h.writeRepoError(w, "failed to delete faq", "Error deleting FAQ", err)
		return
	}
	h.logger.Info("faq deleted", "faq_id", id)
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "message": "FAQ deleted successfully"})
}

func (h *Handler) writeRepoError(w http.ResponseWriter, logMsg, detail string, err error) {
	if errors.Is(err, ErrFAQNotFound) {
		writeError(w, http.StatusNotFound, "FAQ not found")
		return
	}
	h.logger.Error(logMsg, "error", err)
	writeError(w, http.StatusInternalServerError, detail)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}
