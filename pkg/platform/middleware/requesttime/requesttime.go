// Package requesttime pins one timestamp and one request ID per HTTP request,
// so every operation within a request observes the same "now" and audit logs
// correlate.
package requesttime

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/info-evry/astro-join/pkg/requestcontext"
)

// Middleware stores the request time, a generated request ID, and client
// metadata in the context.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := requestcontext.WithTime(r.Context(), time.Now())
		ctx = requestcontext.WithRequestID(ctx, uuid.NewString())
		ctx = requestcontext.WithClientMetadata(ctx, r.RemoteAddr, r.UserAgent())
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
