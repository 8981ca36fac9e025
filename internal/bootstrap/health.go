package bootstrap

import (
	"github.com/labstack/echo/v4"
	"go.uber.org/fx"

	"github.com/voxread/voxread/internal/health"
	"github.com/voxread/voxread/internal/session"
	"github.com/voxread/voxread/internal/synthesis"
)

const version = "1.0.0"

func ProvideHealthHandler(synth *synthesis.Client, manager *session.Manager) *health.Handler {
	return health.NewHandler(synth, manager, version)
}

func metricsMiddleware(h *health.Handler) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			h.IncrementRequests()
			h.IncrementConnections()
			defer h.DecrementConnections()
			return next(c)
		}
	}
}

func RegisterHealthRoutes(e *echo.Echo, h *health.Handler) {
	e.Use(metricsMiddleware(h))
	h.RegisterRoutes(e)
}

var HealthModule = fx.Options(
	fx.Provide(ProvideHealthHandler),
	fx.Invoke(RegisterHealthRoutes),
)
