package order

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/soko-arts/marketplace/internal/middleware"
	"github.com/soko-arts/marketplace/internal/shipping"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

type checkoutRequest struct {
	Items       []CheckoutItem `json:"items"`
	CountryCode string         `json:"country_code"`
	Address     string         `json:"address"`
	Tier        shipping.Tier  `json:"tier"`
}

func (h *Handler) Checkout(w http.ResponseWriter, r *http.Request) {
	id := middleware.IdentityFromContext(r.Context())
	var req checkoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	o, err := h.svc.Checkout(r.Context(), id.Subject, req.Items, req.CountryCode, req.Address, req.Tier)
	switch err {
	case nil:
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(o)
	case ErrEmptyOrder, ErrInvalidItem, ErrMissingCountry, shipping.ErrMissingCountry, shipping.ErrUnknownTier:
		http.Error(w, err.Error(), http.StatusBadRequest)
	default:
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}

func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	id := middleware.IdentityFromContext(r.Context())
	o, err := h.svc.Get(r.Context(), chi.URLParam(r, "number"), id.Subject, id.IsAdmin())
	switch err {
	case nil:
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(o)
	case ErrOrderNotFound:
		http.Error(w, err.Error(), http.StatusNotFound)
	case ErrNotOrderOwner:
		http.Error(w, err.Error(), http.StatusForbidden)
	default:
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}

func (h *Handler) ListOrders(w http.ResponseWriter, r *http.Request) {
	id := middleware.IdentityFromContext(r.Context())
	orders, err := h.svc.ListByBuyer(r.Context(), id.Subject)
	if err != nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	if len(orders) == 0 {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(orders)
}
