package handlers

import (
	"fmt"
	"net/http"

	"collabspace/models"
	"collabspace/services"

	"github.com/gorilla/mux"
)

type UserHandler struct {
	UserService *services.UserService
}

func NewUserHandler(users *services.UserService) *UserHandler {
	return &UserHandler{UserService: users}
}

func (h *UserHandler) List(w http.ResponseWriter, r *http.Request) {
	users, err := h.UserService.List(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, users)
}

func (h *UserHandler) ListActive(w http.ResponseWriter, r *http.Request) {
	users, err := h.UserService.ListActive(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, users)
}

func (h *UserHandler) Get(w http.ResponseWriter, r *http.Request) {
	user, err := h.UserService.FindByID(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// Update lets users edit their own profile. Admins may edit anyone, and only
// admins may change a role or a status.
func (h *UserHandler) Update(w http.ResponseWriter, r *http.Request) {
	actor := currentUser(r)
	id := mux.Vars(r)["id"]
	isAdmin := actor.Role == models.RoleAdmin
	if actor.ID != id && !isAdmin {
		writeError(w, r, fmt.Errorf("%w: you can only edit your own profile", services.ErrForbidden))
		return
	}

	var patch models.UserPatch
	if err := decodeJSON(r, &patch); err != nil {
		writeError(w, r, err)
		return
	}
	if !isAdmin && (patch.Role != nil || patch.Status != nil) {
		writeError(w, r, fmt.Errorf("%w: only an admin can change roles or statuses", services.ErrForbidden))
		return
	}

	user, err := h.UserService.Update(r.Context(), id, patch)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (h *UserHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if currentUser(r).Role != models.RoleAdmin {
		writeError(w, r, fmt.Errorf("%w: only an admin can delete users", services.ErrForbidden))
		return
	}
	deleted, err := h.UserService.Delete(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, r, err)
		return
	}
	if !deleted {
		writeError(w, r, fmt.Errorf("%w: user not found", services.ErrNotFound))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
