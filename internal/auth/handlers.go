package auth

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/sirupsen/logrus"
)

// Handlers exposes register and login over HTTP.
type Handlers struct {
	service *Service
	log     *logrus.Entry
}

func NewHandlers(service *Service, log *logrus.Logger) *Handlers {
	if log == nil {
		log = logrus.New()
	}
	return &Handlers{service: service, log: log.WithField("component", "auth")}
}

type credentialsRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type tokenResponse struct {
	Token    string `json:"token"`
	UID      string `json:"uid"`
	Username string `json:"username"`
}

// Register handles POST /register.
func (h *Handlers) Register(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad request")
		return
	}
	user, err := h.service.Register(r.Context(), req.Username, req.Password)
	switch {
	case errors.Is(err, ErrUsernameTaken):
		writeError(w, http.StatusConflict, "username already taken")
		return
	case errors.Is(err, ErrInvalidCredentials):
		writeError(w, http.StatusBadRequest, "username and password are required")
		return
	case err != nil:
		h.log.WithError(err).Error("register failed")
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	h.issueToken(w, user.UID(), user.Username)
	h.log.WithField("username", user.Username).Info("user registered")
}

// Login handles POST /login.
func (h *Handlers) Login(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad request")
		return
	}
	user, err := h.service.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "invalid username or password")
		return
	}
	h.issueToken(w, user.UID(), user.Username)
}

func (h *Handlers) issueToken(w http.ResponseWriter, uid, username string) {
	token, err := h.service.Token(uid, username)
	if err != nil {
		h.log.WithError(err).Error("sign token")
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, tokenResponse{Token: token, UID: uid, Username: username})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
