package payment

import (
	"encoding/json"
	"net/http"

	"github.com/soko-arts/marketplace/internal/middleware"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// MpesaCallback receives the STK push result webhook. Benign misses are
// acknowledged with 200 so the provider stops retrying.
func (h *Handler) MpesaCallback(w http.ResponseWriter, r *http.Request) {
	var cb MpesaCallback
	if err := json.NewDecoder(r.Body).Decode(&cb); err != nil {
		http.Error(w, "invalid callback body", http.StatusBadRequest)
		return
	}
	if cb.Body.StkCallback.MerchantRequestID == "" {
		http.Error(w, "missing merchant request id", http.StatusBadRequest)
		return
	}

	if err := h.svc.HandleMpesaCallback(r.Context(), &cb); err != nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{"ResultCode": 0, "ResultDesc": "Accepted"})
}

// PesapalIPN receives the signed instant payment notification.
func (h *Handler) PesapalIPN(w http.ResponseWriter, r *http.Request) {
	var ipn PesapalIPN
	if err := json.NewDecoder(r.Body).Decode(&ipn); err != nil {
		http.Error(w, "invalid ipn body", http.StatusBadRequest)
		return
	}
	if ipn.OrderTrackingID == "" || ipn.OrderMerchantReference == "" {
		http.Error(w, "missing tracking id or merchant reference", http.StatusBadRequest)
		return
	}

	signature := r.Header.Get("X-Pesapal-Signature")
	if signature == "" {
		signature = r.URL.Query().Get("signature")
	}

	err := h.svc.HandlePesapalIPN(r.Context(), &ipn, signature)
	switch err {
	case nil:
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"orderNotificationType": "IPNCHANGE",
			"orderTrackingId":       ipn.OrderTrackingID,
			"status":                200,
		})
	case ErrBadSignature:
		http.Error(w, err.Error(), http.StatusForbidden)
	default:
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}

type initiateMpesaRequest struct {
	OrderNumber string `json:"order_number"`
	Phone       string `json:"phone"`
}

func (h *Handler) InitiateMpesa(w http.ResponseWriter, r *http.Request) {
	id := middleware.IdentityFromContext(r.Context())
	var req initiateMpesaRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	res, err := h.svc.InitiateMpesa(r.Context(), req.OrderNumber, id.Subject, req.Phone)
	h.writeInitiateResponse(w, res, err)
}

type initiatePesapalRequest struct {
	OrderNumber string `json:"order_number"`
}

func (h *Handler) InitiatePesapal(w http.ResponseWriter, r *http.Request) {
	id := middleware.IdentityFromContext(r.Context())
	var req initiatePesapalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	res, err := h.svc.InitiatePesapal(r.Context(), req.OrderNumber, id.Subject)
	h.writeInitiateResponse(w, res, err)
}

func (h *Handler) writeInitiateResponse(w http.ResponseWriter, res interface{}, err error) {
	switch err {
	case nil:
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusAccepted)
		json.NewEncoder(w).Encode(res)
	case ErrInvalidPhone:
		http.Error(w, err.Error(), http.StatusBadRequest)
	case ErrOrderNotFound:
		http.Error(w, err.Error(), http.StatusNotFound)
	case ErrNotOrderOwner:
		http.Error(w, err.Error(), http.StatusForbidden)
	case ErrAlreadyPaid:
		http.Error(w, err.Error(), http.StatusConflict)
	default:
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}
