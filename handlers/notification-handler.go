package handlers

import (
	"fmt"
	"net/http"
	"time"

	"collabspace/services"

	"github.com/gorilla/mux"
)

type NotificationHandler struct {
	Service *services.NotificationService
}

func NewNotificationHandler(service *services.NotificationService) *NotificationHandler {
	return &NotificationHandler{Service: service}
}

func (h *NotificationHandler) List(w http.ResponseWriter, r *http.Request) {
	list, err := h.Service.List(r.Context(), currentUser(r).ID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

// createdAt is part of the notification key in Cassandra, so clients send it
// back with every change.
func createdAtParam(r *http.Request) (time.Time, error) {
	raw := r.URL.Query().Get("createdAt")
	if raw == "" {
		return time.Time{}, fmt.Errorf("%w: createdAt query parameter is required", services.ErrValidation)
	}
	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: createdAt must be an RFC3339 timestamp", services.ErrValidation)
	}
	return t, nil
}

func (h *NotificationHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	createdAt, err := createdAtParam(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.Service.MarkRead(r.Context(), currentUser(r).ID, mux.Vars(r)["id"], createdAt); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *NotificationHandler) Delete(w http.ResponseWriter, r *http.Request) {
	createdAt, err := createdAtParam(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.Service.Delete(r.Context(), currentUser(r).ID, mux.Vars(r)["id"], createdAt); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
