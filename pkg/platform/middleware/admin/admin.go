package admin

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/info-evry/astro-join/pkg/requestcontext"
)

// TokenVerifier validates a session token and returns its subject.
type TokenVerifier interface {
	Verify(tokenString string) (string, error)
}

// RequireAdmin guards the dashboard API: requests must carry a valid bearer
// token issued by the login endpoint.
func RequireAdmin(verifier TokenVerifier, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authz := r.Header.Get("Authorization")
			token, ok := strings.CutPrefix(authz, "Bearer ")
			if !ok || token == "" {
				unauthorized(w)
				return
			}
			subject, err := verifier.Verify(token)
			if err != nil {
				ctx := r.Context()
				logger.WarnContext(ctx, "admin token rejected",
					"request_id", requestcontext.RequestID(ctx),
				)
				unauthorized(w)
				return
			}
			ctx := requestcontext.WithAdminSubject(r.Context(), subject)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func unauthorized(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(`{"error":"unauthorized","error_description":"admin session token required"}`))
}
