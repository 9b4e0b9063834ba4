// Package requestid carries a correlation ID from the local HTTP surface
// through to the backend request it triggers.
package requestid

import (
	"context"
	"net/http"

	"github.com/google/uuid"
)

// Header is the HTTP header holding the request ID.
const Header = "X-Request-ID"

const maxLength = 128

type contextKey string

// ContextKey is the context key for storing the request ID
const ContextKey contextKey = "request_id"

// Middleware reuses the caller's X-Request-ID or assigns a new one, echoes
// it in the response and adds it to the request context.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(Header)
		if id == "" || len(id) > maxLength {
			id = uuid.New().String()
		}

		w.Header().Set(Header, id)
		next.ServeHTTP(w, r.WithContext(WithID(r.Context(), id)))
	})
}

// WithID returns a copy of ctx carrying id.
func WithID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ContextKey, id)
}

// FromContext extracts the request ID from the context
func FromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(ContextKey).(string)
	return id, ok && id != ""
}

// FromContextOrNew returns the ID in ctx, or a fresh UUID.
func FromContextOrNew(ctx context.Context) string {
	if id, ok := FromContext(ctx); ok {
		return id
	}
	return uuid.New().String()
}
