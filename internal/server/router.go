package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/roomsense/telemetry-relay/internal/config"
	"github.com/roomsense/telemetry-relay/internal/handler"
	"github.com/roomsense/telemetry-relay/internal/middleware"
	"github.com/roomsense/telemetry-relay/internal/model"
)

// Deps collects everything the router mounts.
type Deps struct {
	Gate         *middleware.RoleGate
	Limiter      middleware.Limiter
	OTP          *handler.OTPHandler
	DeviceLogs   *handler.DeviceLogHandler
	Health       *handler.HealthHandler
	ResolveLimit int
	DeviceLimit  int
	IsProduction bool
}

func NewRouter(d Deps) http.Handler {
	if d.ResolveLimit <= 0 {
		d.ResolveLimit = config.DefaultResolveRateLimitPerMin
	}

	resolveLimit := middleware.NewRateLimitMiddleware(d.Limiter, d.ResolveLimit, middleware.ByClientIP("resolve"))
	deviceLimit := middleware.NewRateLimitMiddleware(d.Limiter, d.DeviceLimit, middleware.ByRoleAndIP("device"))
	bodyLimit := middleware.NewBodyLimitMiddleware(0)
	securityHeaders := middleware.NewSecurityHeadersMiddleware(d.IsProduction)

	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestLogger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.Timeout(config.ServerRequestTimeout))
	r.Use(bodyLimit.Handler)
	r.Use(securityHeaders.Handler)

	r.NotFound(handler.RouteNotFound)

	r.Get("/health", d.Health.Health)

	r.Group(func(r chi.Router) {
		r.Use(d.Gate.Require(model.RoleDevice))
		r.Use(deviceLimit.Handler)

		r.Post("/add-log", d.DeviceLogs.AddLog)
		r.Get("/connect-id/otp", d.OTP.IssueOTP)
	})

	r.Group(func(r chi.Router) {
		r.Use(d.Gate.Require(model.RoleClient))

		r.With(resolveLimit.Handler).Get("/connect-id/uid", d.OTP.ResolveOTP)
		r.Get("/device-log", d.DeviceLogs.ListLogs)
	})

	return r
}
