package notify

import (
	"encoding/json"
	"net/http"

	"github.com/soko-arts/marketplace/internal/middleware"
)

type Handler struct {
	repo NotificationRepository
}

func NewHandler(repo NotificationRepository) *Handler {
	return &Handler{repo: repo}
}

// ListNotifications returns the caller's notifications, newest first.
func (h *Handler) ListNotifications(w http.ResponseWriter, r *http.Request) {
	id := middleware.IdentityFromContext(r.Context())
	ns, err := h.repo.ListNotificationsByUser(r.Context(), id.Subject)
	if err != nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	if len(ns) == 0 {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(ns)
}
