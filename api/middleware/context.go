package middleware

import (
	"context"
	"net/http"
	"strings"
)

type contextKey string

const (
	ctxActor contextKey = "actor"

	actorHeader  = "X-Actor"
	defaultActor = "system"
)

// ActorFromContext returns the caller identity recorded for audit events.
func ActorFromContext(ctx context.Context) string {
	if ctx == nil {
		return defaultActor
	}
	if v, ok := ctx.Value(ctxActor).(string); ok && v != "" {
		return v
	}
	return defaultActor
}

// WithActor injects the actor identity into the context.
func WithActor(ctx context.Context, actor string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, ctxActor, actor)
}

// Actor records the caller identity from the X-Actor header so gate events
// can attribute decisions. Identity is asserted upstream by the API gateway.
func Actor() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actor := strings.TrimSpace(r.Header.Get(actorHeader))
			if actor == "" {
				actor = defaultActor
			}
			next.ServeHTTP(w, r.WithContext(WithActor(r.Context(), actor)))
		})
	}
}
