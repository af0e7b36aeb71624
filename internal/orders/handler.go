package orders

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/wolfman30/support-ai-platform/pkg/logging"
)

// Handler serves the order tracking endpoints.
type Handler struct {
	service *Service
	logger  *logging.Logger
}

func NewHandler(service *Service, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{service: service, logger: logger}
}

// Routes mounts GET /{orderID}, POST /lookup and GET /customer/{customerID}.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/lookup", h.LookupOrder)
	r.Get("/customer/{customerID}", h.CustomerOrders)
	r.Get("/{orderID}", h.GetOrder)
	return r
}

// LookupRequest is the body of POST /orders/lookup.
type LookupRequest struct {
	OrderID string `json:"order_id"`
	Email   string `json:"email,omitempty"`
	Phone   string `json:"phone,omitempty"`
}

func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	h.respondWithOrder(w, r, chi.URLParam(r, "orderID"))
}

func (h *Handler) LookupOrder(w http.ResponseWriter, r *http.Request) {
	var req LookupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	h.respondWithOrder(w, r, req.OrderID)
}

func (h *Handler) respondWithOrder(w http.ResponseWriter, r *http.Request, orderID string) {
	view, err := h.service.Lookup(r.Context(), orderID)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, view)
	case errors.Is(err, ErrInvalidOrderID):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrOrderNotFound):
		h.logger.Info("order not found", "order_id", orderID)
		writeError(w, http.StatusNotFound, fmt.Sprintf("Order %s not found. Please check the order ID and try again.", strings.TrimSpace(orderID)))
	default:
		h.logger.Error("failed to fetch order", "order_id", orderID, "error", err)
		writeError(w, http.StatusInternalServerError, "Error fetching order details")
	}
}

type customerOrdersResponse struct {
	CustomerID string `json:"customer_id"`
	Orders     []View `json:"orders"`
	Count      int    `json:"count"`
}

func (h *Handler) CustomerOrders(w http.ResponseWriter, r *http.Request) {
	customerID := chi.URLParam(r, "customerID")
	limit := defaultCustomerOrderLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 50 {
			limit = n
		}
	}
	views, err := h.service.CustomerOrders(r.Context(), customerID, limit)
	if err != nil {
		h.logger.Error("failed to fetch customer orders", "customer_id", customerID, "error", err)
		writeError(w, http.StatusInternalServerError, "Error fetching orders")
		return
	}
	if views == nil {
		views = []View{}
	}
	writeJSON(w, http.StatusOK, customerOrdersResponse{CustomerID: customerID, Orders: views, Count: len(views)})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}
