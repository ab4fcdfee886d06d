package shipment

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/soko-arts/marketplace/internal/types/shipment"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

type createRequest struct {
	OrderNumber string  `json:"order_number"`
	Carrier     string  `json:"carrier"`
	Destination string  `json:"destination"`
	CountryCode string  `json:"country_code"`
	WeightKg    float64 `json:"weight_kg"`
}

func (h *Handler) CreateShipment(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.OrderNumber) == "" {
		http.Error(w, "order_number is required", http.StatusBadRequest)
		return
	}

	sh, err := h.svc.Create(r.Context(), req.OrderNumber, req.Carrier, req.Destination, req.CountryCode, req.WeightKg)
	switch err {
	case nil:
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(sh)
	case ErrShipmentExists:
		http.Error(w, err.Error(), http.StatusConflict)
	default:
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}

type updateStatusRequest struct {
	Status      shipment.Status `json:"status"`
	Description string          `json:"description"`
	Location    *string         `json:"location"`
}

func (h *Handler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	reference := chi.URLParam(r, "ref")
	var req updateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	sh, err := h.svc.UpdateStatus(r.Context(), reference, req.Status, req.Description, req.Location)
	switch err {
	case nil:
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(sh)
	case ErrUnknownStatus, ErrInvalidTransition:
		http.Error(w, err.Error(), http.StatusBadRequest)
	case ErrShipmentNotFound:
		http.Error(w, err.Error(), http.StatusNotFound)
	case ErrStaleUpdate:
		http.Error(w, err.Error(), http.StatusConflict)
	default:
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}

func (h *Handler) GetShipment(w http.ResponseWriter, r *http.Request) {
	sh, err := h.svc.Get(r.Context(), chi.URLParam(r, "ref"))
	switch err {
	case nil:
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(sh)
	case ErrShipmentNotFound:
		http.Error(w, err.Error(), http.StatusNotFound)
	default:
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}

// Tracking is the only shipment lookup reachable without authentication.
func (h *Handler) Tracking(w http.ResponseWriter, r *http.Request) {
	trackingNumber := strings.TrimSpace(r.URL.Query().Get("tracking"))
	if trackingNumber == "" {
		http.Error(w, "tracking query parameter is required", http.StatusBadRequest)
		return
	}

	view, err := h.svc.TrackingInfo(r.Context(), trackingNumber)
	switch err {
	case nil:
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(view)
	case ErrShipmentNotFound:
		http.Error(w, err.Error(), http.StatusNotFound)
	default:
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}
