package handlers

import (
	"net/http"

	"collabspace/models"
	"collabspace/services"

	"github.com/gorilla/mux"
)

type TeamHandler struct {
	Service *services.TeamService
}

func NewTeamHandler(service *services.TeamService) *TeamHandler {
	return &TeamHandler{Service: service}
}

func (h *TeamHandler) List(w http.ResponseWriter, r *http.Request) {
	teams, err := h.Service.ListVisibleTo(r.Context(), currentUser(r).ID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, teams)
}

func (h *TeamHandler) Create(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Name        string                `json:"name"`
		Description string                `json:"description"`
		Visibility  models.TeamVisibility `json:"visibility"`
	}
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, r, err)
		return
	}
	team, err := h.Service.Create(r.Context(), currentUser(r).ID, body.Name, body.Description, body.Visibility)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, team)
}

func (h *TeamHandler) Get(w http.ResponseWriter, r *http.Request) {
	team, err := h.Service.Get(r.Context(), currentUser(r).ID, mux.Vars(r)["id"])
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, team)
}

func (h *TeamHandler) Update(w http.ResponseWriter, r *http.Request) {
	var patch models.TeamPatch
	if err := decodeJSON(r, &patch); err != nil {
		writeError(w, r, err)
		return
	}
	team, err := h.Service.Update(r.Context(), currentUser(r).ID, mux.Vars(r)["id"], patch)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, team)
}

// CascadePreview tells a client how many projects a delete would take down,
// so it can ask for confirmation first.
func (h *TeamHandler) CascadePreview(w http.ResponseWriter, r *http.Request) {
	n, err := h.Service.CascadePreview(r.Context(), currentUser(r).ID, mux.Vars(r)["id"])
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"projects": n})
}

func (h *TeamHandler) Delete(w http.ResponseWriter, r *http.Request) {
	removed, err := h.Service.Delete(r.Context(), currentUser(r).ID, mux.Vars(r)["id"])
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"deletedProjects": removed})
}

func (h *TeamHandler) AddMember(w http.ResponseWriter, r *http.Request) {
	var ref models.MemberRef
	if err := decodeJSON(r, &ref); err != nil {
		writeError(w, r, err)
		return
	}
	team, err := h.Service.AddMember(r.Context(), currentUser(r).ID, mux.Vars(r)["id"], ref)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, team)
}

func (h *TeamHandler) RemoveMember(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	team, err := h.Service.RemoveMember(r.Context(), currentUser(r).ID, vars["id"], vars["userId"])
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, team)
}
