package handlers

import (
	"net/http"
	"time"

	"github.com/xelth-com/eckvideo/internal/utils"
)

// LoginRequest represents a login request
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// login checks the worker's password and issues an access token
func (r *Router) login(w http.ResponseWriter, req *http.Request) {
	var loginReq LoginRequest
	if err := decode(req, &loginReq); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}

	worker, err := r.deps.Workers.FindWorker(req.Context(), loginReq.Username)
	if err != nil || !worker.IsActive {
		respondError(w, http.StatusUnauthorized, "Invalid credentials")
		return
	}
	if !utils.CheckPasswordHash(loginReq.Password, worker.Password) {
		respondError(w, http.StatusUnauthorized, "Invalid credentials")
		return
	}

	now := time.Now()
	if err := r.deps.Workers.RecordLogin(req.Context(), worker.Username, now); err != nil {
		respondFailure(w, err)
		return
	}
	worker.LastLogin = &now

	token, err := utils.GenerateToken(worker, r.deps.JWTSecret, r.deps.TokenTTL)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to generate token")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"accessToken": token,
		"expiresIn":   int(r.deps.TokenTTL.Seconds()),
		"worker":      worker,
	})
}
