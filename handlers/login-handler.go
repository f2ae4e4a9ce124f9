package handlers

import (
	"net/http"

	"collabspace/models"
	"collabspace/services"
)

type LoginHandler struct {
	AuthService *services.AuthService
}

func NewLoginHandler(auth *services.AuthService) *LoginHandler {
	return &LoginHandler{AuthService: auth}
}

func (h *LoginHandler) Register(w http.ResponseWriter, r *http.Request) {
	var data models.NewUser
	if err := decodeJSON(r, &data); err != nil {
		writeError(w, r, err)
		return
	}
	res, err := h.AuthService.Register(r.Context(), data)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

func (h *LoginHandler) SignIn(w http.ResponseWriter, r *http.Request) {
	var credentials struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := decodeJSON(r, &credentials); err != nil {
		writeError(w, r, err)
		return
	}
	res, err := h.AuthService.SignIn(r.Context(), credentials.Email, credentials.Password)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *LoginHandler) Me(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, currentUser(r))
}
