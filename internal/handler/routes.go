package handler

import (
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"blackhole-proxy-go/internal/config"
	"blackhole-proxy-go/internal/metrics"
	"blackhole-proxy-go/internal/middleware"
)

// RegisterRoutes wires all route handlers onto the Echo instance.
// Every GET path that is not one of the proxy's own routes is a relay request.
func RegisterRoutes(e *echo.Echo, cfg *config.Config, m *metrics.Metrics, relay *RelayHandler, health *HealthHandler) {
	// Preflight runs before routing so OPTIONS answers identically on every path.
	e.Pre(middleware.Preflight(relay.HandleOptions))

	e.GET("/healthz", health.Healthz)
	e.GET("/proxy/status", health.Status)

	if cfg.Metrics.Enabled {
		e.GET(cfg.Metrics.Path, echo.WrapHandler(promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})))
	}

	e.GET("/", relay.HandleGet)
	e.GET("/*", relay.HandleGet)
}
