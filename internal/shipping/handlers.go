package shipping

import (
	"encoding/json"
	"net/http"
)

type Handler struct{}

func NewHandler() *Handler {
	return &Handler{}
}

type quoteItem struct {
	WeightKg float64 `json:"weight_kg"`
	Quantity int     `json:"quantity"`
}

type quoteRequest struct {
	CountryCode string      `json:"countryCode"`
	Weight      float64     `json:"weight"`
	Items       []quoteItem `json:"items"`
	Subtotal    float64     `json:"subtotal"`
	Tier        Tier        `json:"tier"`
}

func (h *Handler) Quote(w http.ResponseWriter, r *http.Request) {
	var req quoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	weight := req.Weight
	if weight <= 0 {
		for _, it := range req.Items {
			qty := it.Quantity
			if qty < 1 {
				qty = 1
			}
			weight += it.WeightKg * float64(qty)
		}
	}

	quote, err := Calculate(req.CountryCode, weight, req.Subtotal, req.Tier)
	switch err {
	case nil:
	case ErrMissingCountry, ErrUnknownTier:
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	default:
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(quote)
}
