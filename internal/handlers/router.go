package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/xelth-com/eckvideo/internal/buildinfo"
	"github.com/xelth-com/eckvideo/internal/middleware"
	"github.com/xelth-com/eckvideo/internal/models"
	"github.com/xelth-com/eckvideo/internal/services/assignment"
	"github.com/xelth-com/eckvideo/internal/websocket"
)

// WorkerDirectory looks up worker accounts for login
type WorkerDirectory interface {
	FindWorker(ctx context.Context, username string) (*models.Worker, error)
	RecordLogin(ctx context.Context, username string, at time.Time) error
}

// Deps are the collaborators the HTTP layer dispatches to
type Deps struct {
	Coordinator *assignment.Coordinator
	Workload    *assignment.WorkloadGovernor
	Quota       *assignment.QuotaLimiter
	Reclaimer   *assignment.Reclaimer
	Workers     WorkerDirectory
	Hub         *websocket.Hub
	Metrics     http.Handler
	JWTSecret   string
	TokenTTL    time.Duration
}

// Router wraps the mux router and the assignment engine
type Router struct {
	*mux.Router
	deps Deps
}

// NewRouter creates a new HTTP router with all routes
func NewRouter(deps Deps) *Router {
	if deps.TokenTTL <= 0 {
		deps.TokenTTL = 24 * time.Hour
	}
	r := &Router{
		Router: mux.NewRouter(),
		deps:   deps,
	}

	r.HandleFunc("/health", r.healthCheck).Methods("GET")
	if deps.Metrics != nil {
		r.Handle("/metrics", deps.Metrics).Methods("GET")
	}
	if deps.Hub != nil {
		r.HandleFunc("/ws", r.serveWs).Methods("GET")
	}

	auth := r.PathPrefix("/auth").Subrouter()
	auth.HandleFunc("/login", r.login).Methods("POST")

	// Protected API
	api := r.PathPrefix("/api").Subrouter()
	api.Use(middleware.Auth(deps.JWTSecret))

	orders := api.PathPrefix("/orders").Subrouter()
	orders.HandleFunc("", r.listOrders).Methods("GET")
	orders.HandleFunc("", r.createOrder).Methods("POST")
	orders.HandleFunc("/{id:[0-9]+}", r.getOrder).Methods("GET")
	orders.HandleFunc("/{id:[0-9]+}", r.deleteOrder).Methods("DELETE")
	orders.HandleFunc("/{id:[0-9]+}/assign", r.assignOrder).Methods("POST")
	orders.HandleFunc("/{id:[0-9]+}/unassign", r.unassignOrder).Methods("POST")
	orders.HandleFunc("/{id:[0-9]+}/status", r.updateStatus).Methods("PUT")
	orders.HandleFunc("/{id:[0-9]+}/deliverable", r.setDeliverable).Methods("PUT")
	orders.HandleFunc("/{id:[0-9]+}/delivery", r.updateDelivery).Methods("PUT")
	orders.HandleFunc("/{id:[0-9]+}/payment", r.updatePayment).Methods("PUT")

	api.HandleFunc("/workers/{name}/workload", r.workerWorkload).Methods("GET")

	admin := api.PathPrefix("/admin").Subrouter()
	admin.HandleFunc("/restrictions", r.listRestrictions).Methods("GET")
	admin.HandleFunc("/restrictions", r.setRestriction).Methods("POST")
	admin.HandleFunc("/restrictions/{worker}", r.removeRestriction).Methods("DELETE")
	admin.HandleFunc("/restrictions/{worker}/quota", r.workerQuota).Methods("GET")
	admin.HandleFunc("/reclamation", r.reclamationStatus).Methods("GET")
	admin.HandleFunc("/reclamation/{id:[0-9]+}/reset", r.manualReset).Methods("POST")
	admin.HandleFunc("/reclamation/{id:[0-9]+}/expired", r.isExpired).Methods("GET")

	return r
}

// healthCheck returns the health status of the API
func (r *Router) healthCheck(w http.ResponseWriter, req *http.Request) {
	status := map[string]interface{}{
		"status": "ok",
		"build":  buildinfo.Current(),
	}
	if r.deps.Reclaimer != nil {
		status["reclamation"] = r.deps.Reclaimer.Status().Running
	}
	respondJSON(w, http.StatusOK, status)
}

// serveWs authenticates with ?token= because browsers cannot set headers on websocket upgrades
func (r *Router) serveWs(w http.ResponseWriter, req *http.Request) {
	actor, err := middleware.ActorFromToken(req.URL.Query().Get("token"), r.deps.JWTSecret)
	if err != nil {
		respondError(w, http.StatusUnauthorized, "Invalid or expired token")
		return
	}
	websocket.ServeWs(r.deps.Hub, actor, w, req)
}

// actor returns the authenticated caller. The auth middleware guarantees one on /api routes.
func actor(req *http.Request) assignment.Actor {
	a, _ := middleware.ActorFromContext(req.Context())
	return a
}

// orderID parses the {id} path variable
func orderID(req *http.Request) (uint, error) {
	id, err := strconv.ParseUint(mux.Vars(req)["id"], 10, 64)
	if err != nil {
		return 0, err
	}
	return uint(id), nil
}

// decode reads a JSON body into v
func decode(req *http.Request, v interface{}) error {
	defer req.Body.Close()
	return json.NewDecoder(req.Body).Decode(v)
}

// respondJSON sends a JSON response
func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// respondError sends an error response
func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{
		"error": message,
	})
}

// errorBody is the payload of an engine rejection
type errorBody struct {
	Error   string      `json:"error"`
	Code    string      `json:"code"`
	Details interface{} `json:"details,omitempty"`
}

// respondFailure maps an engine error to its HTTP status, carrying the operative numbers where there are any
func respondFailure(w http.ResponseWriter, err error) {
	status, code := classify(err)
	body := errorBody{Error: err.Error(), Code: code}

	var (
		quotaErr      *assignment.QuotaExceededError
		capErr        *assignment.WorkloadCapError
		transitionErr *assignment.TransitionError
	)
	switch {
	case errors.As(err, &quotaErr):
		body.Details = map[string]interface{}{
			"worker":          quotaErr.Worker,
			"maxPerDay":       quotaErr.MaxPerDay,
			"assignedToday":   quotaErr.AssignedToday,
			"remaining":       quotaErr.Remaining,
			"restrictionEnds": quotaErr.RestrictionEnds,
		}
	case errors.As(err, &capErr):
		body.Details = map[string]interface{}{
			"worker":  capErr.Worker,
			"current": capErr.Current,
			"cap":     capErr.Cap,
		}
	case errors.As(err, &transitionErr):
		body.Details = map[string]interface{}{
			"from":   transitionErr.From,
			"to":     transitionErr.To,
			"reason": transitionErr.Reason,
		}
	}

	if status == http.StatusInternalServerError {
		log.Printf("❌ Request failed: %v", err)
		body.Error = "internal error"
	}
	respondJSON(w, status, body)
}

func classify(err error) (int, string) {
	switch {
	case errors.Is(err, assignment.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, assignment.ErrNoActiveRestriction):
		return http.StatusNotFound, "no_active_restriction"
	case errors.Is(err, assignment.ErrAlreadyClaimed):
		return http.StatusConflict, "already_claimed"
	case errors.Is(err, assignment.ErrQuotaExceeded):
		return http.StatusConflict, "quota_exceeded"
	case errors.Is(err, assignment.ErrWorkloadCapExceeded):
		return http.StatusConflict, "workload_cap_exceeded"
	case errors.Is(err, assignment.ErrInvalidTransition):
		return http.StatusBadRequest, "invalid_transition"
	case errors.Is(err, assignment.ErrInvalidArgument):
		return http.StatusBadRequest, "invalid_argument"
	case errors.Is(err, assignment.ErrForbidden):
		return http.StatusForbidden, "forbidden"
	default:
		return http.StatusInternalServerError, "internal"
	}
}
