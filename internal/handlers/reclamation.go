package handlers

import (
	"net/http"
)

func (r *Router) reclamationStatus(w http.ResponseWriter, req *http.Request) {
	if !actor(req).IsAdmin() {
		respondError(w, http.StatusForbidden, "Forbidden")
		return
	}
	respondJSON(w, http.StatusOK, r.deps.Reclaimer.Status())
}

func (r *Router) manualReset(w http.ResponseWriter, req *http.Request) {
	id, err := orderID(req)
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid order id")
		return
	}
	order, err := r.deps.Reclaimer.ManualReset(req.Context(), actor(req), id)
	if err != nil {
		respondFailure(w, err)
		return
	}
	respondJSON(w, http.StatusOK, order)
}

func (r *Router) isExpired(w http.ResponseWriter, req *http.Request) {
	if !actor(req).IsAdmin() {
		respondError(w, http.StatusForbidden, "Forbidden")
		return
	}
	id, err := orderID(req)
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid order id")
		return
	}
	expired, err := r.deps.Reclaimer.IsExpired(req.Context(), id)
	if err != nil {
		respondFailure(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"id":      id,
		"expired": expired,
	})
}
