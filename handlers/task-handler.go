package handlers

import (
	"net/http"

	"collabspace/models"
	"collabspace/services"

	"github.com/gorilla/mux"
)

type TaskHandler struct {
	Service *services.TaskService
}

func NewTaskHandler(service *services.TaskService) *TaskHandler {
	return &TaskHandler{Service: service}
}

func (h *TaskHandler) Create(w http.ResponseWriter, r *http.Request) {
	var data models.NewTask
	if err := decodeJSON(r, &data); err != nil {
		writeError(w, r, err)
		return
	}
	task, err := h.Service.AddTask(r.Context(), currentUser(r).ID, mux.Vars(r)["id"], data)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, task)
}

func (h *TaskHandler) SetStatus(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Status models.TaskStatus `json:"status"`
	}
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, r, err)
		return
	}
	task, err := h.Service.SetStatus(r.Context(), currentUser(r).ID, mux.Vars(r)["id"], body.Status)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

func (h *TaskHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.Service.Delete(r.Context(), currentUser(r).ID, mux.Vars(r)["id"]); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
