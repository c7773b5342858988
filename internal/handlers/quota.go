package handlers

import (
	"net/http"

	"github.com/gorilla/mux"
)

// RestrictionRequest is the body of POST /api/admin/restrictions.
// MaxOrdersPerDay 0 uses the configured default.
type RestrictionRequest struct {
	Worker          string `json:"worker"`
	Days            int    `json:"days"`
	MaxOrdersPerDay int    `json:"maxOrdersPerDay"`
}

func (r *Router) setRestriction(w http.ResponseWriter, req *http.Request) {
	var body RestrictionRequest
	if err := decode(req, &body); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}
	restriction, err := r.deps.Quota.SetRestriction(req.Context(), actor(req), body.Worker, body.Days, body.MaxOrdersPerDay)
	if err != nil {
		respondFailure(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, restriction)
}

func (r *Router) removeRestriction(w http.ResponseWriter, req *http.Request) {
	if err := r.deps.Quota.RemoveRestriction(req.Context(), actor(req), mux.Vars(req)["worker"]); err != nil {
		respondFailure(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (r *Router) listRestrictions(w http.ResponseWriter, req *http.Request) {
	restrictions, err := r.deps.Quota.ListActiveRestrictions(req.Context(), actor(req))
	if err != nil {
		respondFailure(w, err)
		return
	}
	respondJSON(w, http.StatusOK, restrictions)
}

func (r *Router) workerQuota(w http.ResponseWriter, req *http.Request) {
	status, err := r.deps.Quota.CheckWorkerQuota(req.Context(), actor(req), mux.Vars(req)["worker"])
	if err != nil {
		respondFailure(w, err)
		return
	}
	respondJSON(w, http.StatusOK, status)
}

// workerWorkload reports the active count against the cap. Workers may read their own; admins anyone's.
func (r *Router) workerWorkload(w http.ResponseWriter, req *http.Request) {
	caller := actor(req)
	name := mux.Vars(req)["name"]
	if !caller.IsAdmin() && caller.Name != name {
		respondError(w, http.StatusForbidden, "Forbidden")
		return
	}
	status, err := r.deps.Workload.Status(req.Context(), name)
	if err != nil {
		respondFailure(w, err)
		return
	}
	respondJSON(w, http.StatusOK, status)
}
