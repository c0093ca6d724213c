// Package httptransport is the thin HTTP layer. Handlers delegate to domain
// services and translate coded errors into JSON envelopes; no business logic
// lives here.
package httptransport

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/info-evry/astro-join/internal/admin"
	"github.com/info-evry/astro-join/internal/member/service"
	"github.com/info-evry/astro-join/internal/ratelimit"
	"github.com/info-evry/astro-join/internal/settings"
	adminmw "github.com/info-evry/astro-join/pkg/platform/middleware/admin"
	"github.com/info-evry/astro-join/pkg/platform/middleware/requesttime"
)

type Handler struct {
	members    *service.Service
	settings   *settings.Service
	auth       *admin.Authenticator
	limiter    ratelimit.Limiter
	logger     *slog.Logger
	trustProxy bool
}

func NewHandler(
	members *service.Service,
	settingsSvc *settings.Service,
	auth *admin.Authenticator,
	limiter ratelimit.Limiter,
	logger *slog.Logger,
	trustProxy bool,
) *Handler {
	return &Handler{
		members:    members,
		settings:   settingsSvc,
		auth:       auth,
		limiter:    limiter,
		logger:     logger,
		trustProxy: trustProxy,
	}
}

// NewRouter wires all endpoints. The public intake route is rate limited;
// everything under the dashboard API requires an admin session token.
func NewRouter(h *Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(requesttime.Middleware)

	r.Get("/healthz", h.handleHealth)
	r.Handle("/metrics", promhttp.Handler())
	r.Post("/admin/login", h.handleLogin)

	r.Group(func(r chi.Router) {
		r.Use(ratelimit.Middleware(h.limiter, h.logger, h.trustProxy))
		r.Post("/api/members", h.handleApply)
	})

	r.Group(func(r chi.Router) {
		r.Use(adminmw.RequireAdmin(h.auth, h.logger))
		r.Get("/api/members", h.handleListMembers)
		r.Get("/api/members/export", h.handleExport)
		r.Get("/api/members/{id}", h.handleGetMember)
		r.Patch("/api/members/{id}", h.handleUpdateMember)
		r.Get("/api/members/{id}/history", h.handleHistory)
		r.Post("/api/members/import", h.handleImport)
		r.Get("/api/stats", h.handleStats)
		r.Get("/api/settings", h.handleSettings)
		r.Put("/api/settings/{key}", h.handleSetSetting)
	})

	return r
}
