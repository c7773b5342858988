package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/xelth-com/eckvideo/internal/services/assignment"
	"github.com/xelth-com/eckvideo/internal/utils"
)

type contextKey string

const actorContextKey contextKey = "actor"

// Auth verifies bearer JWTs and stores the caller as an assignment.Actor in the request context
func Auth(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				http.Error(w, "Authorization header required", http.StatusUnauthorized)
				return
			}

			parts := strings.Split(authHeader, " ")
			if len(parts) != 2 || parts[0] != "Bearer" {
				http.Error(w, "Invalid authorization header format", http.StatusUnauthorized)
				return
			}

			actor, err := ActorFromToken(parts[1], secret)
			if err != nil {
				http.Error(w, "Invalid or expired token", http.StatusUnauthorized)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithActor(r.Context(), actor)))
		})
	}
}

// ActorFromToken validates token and returns the actor it identifies
func ActorFromToken(token, secret string) (assignment.Actor, error) {
	claims, err := utils.ValidateToken(token, secret)
	if err != nil {
		return assignment.Actor{}, err
	}
	return assignment.Actor{Name: claims.Subject, Role: claims.Role}, nil
}

// WithActor returns a copy of ctx carrying actor
func WithActor(ctx context.Context, actor assignment.Actor) context.Context {
	return context.WithValue(ctx, actorContextKey, actor)
}

// ActorFromContext returns the authenticated actor, if any
func ActorFromContext(ctx context.Context) (assignment.Actor, bool) {
	actor, ok := ctx.Value(actorContextKey).(assignment.Actor)
	return actor, ok
}
