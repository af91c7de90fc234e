package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"swasthya/pkg/domain"
)

// TokenValidator resolves a bearer credential to a typed Actor. The auth
// collaborator (token issuance, credential storage) lives outside this
// service; this interface is its boundary.
type TokenValidator interface {
	ValidateToken(token string) (domain.Actor, error)
}

type contextKeyActor struct{}

// GetActor retrieves the authenticated actor from the context. The zero Actor
// means the request never passed RequireActor.
func GetActor(ctx context.Context) (domain.Actor, bool) {
	actor, ok := ctx.Value(contextKeyActor{}).(domain.Actor)
	return actor, ok
}

// WithActor injects an actor directly; handler tests use it in place of a
// full token round trip.
func WithActor(ctx context.Context, actor domain.Actor) context.Context {
	return context.WithValue(ctx, contextKeyActor{}, actor)
}

// RequireActor authenticates the request and threads the resolved Actor
// through the context. No core operation reads an ambient current user; they
// all take the actor explicitly from here.
func RequireActor(validator TokenValidator, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok || token == "" {
				logger.WarnContext(ctx, "unauthorized access - missing token",
					"request_id", GetRequestID(ctx),
				)
				writeUnauthorized(w, "Missing or invalid Authorization header")
				return
			}

			actor, err := validator.ValidateToken(token)
			if err != nil {
				logger.WarnContext(ctx, "unauthorized access - invalid token",
					"error", err,
					"request_id", GetRequestID(ctx),
				)
				writeUnauthorized(w, "Invalid or expired token")
				return
			}

			next.ServeHTTP(w, r.WithContext(WithActor(ctx, actor)))
		})
	}
}

// RequirePharmacist gates pharmacist-only routes. It assumes RequireActor ran
// earlier in the chain.
func RequirePharmacist(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actor, ok := GetActor(r.Context())
			if !ok || !actor.IsPharmacist() {
				logger.WarnContext(r.Context(), "forbidden - pharmacist access only",
					"role", string(actor.Role),
					"request_id", GetRequestID(r.Context()),
				)
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusForbidden)
				_, _ = w.Write([]byte(`{"error":"forbidden","message":"pharmacist access only"}`))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func writeUnauthorized(w http.ResponseWriter, detail string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(`{"error":"unauthorized","message":"` + detail + `"}`))
}
