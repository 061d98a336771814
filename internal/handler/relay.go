package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"blackhole-proxy-go/internal/model"
	"blackhole-proxy-go/internal/service"
)

// RelayHandler fetches the target named by the url query parameter and
// relays its body to the client.
type RelayHandler struct {
	service *service.RelayService
	logger  *slog.Logger
}

// NewRelayHandler creates a RelayHandler.
func NewRelayHandler(svc *service.RelayService, logger *slog.Logger) *RelayHandler {
	return &RelayHandler{
		service: svc,
		logger:  logger.With("component", "relay_handler"),
	}
}

// HandleGet relays the target body with status 200 whatever the upstream
// status was. The body is fully buffered, so a failure never produces a
// truncated response.
func (h *RelayHandler) HandleGet(c echo.Context) error {
	req := c.Request()

	// A client disconnect does not abort the outbound call; the timeout still bounds it.
	rr := &model.RelayRequest{
		Ctx:    context.WithoutCancel(req.Context()),
		Target: c.QueryParam("url"),
	}

	resp, err := h.service.Relay(rr)
	if err != nil {
		return h.mapError(c, rr.Target, err)
	}

	c.Response().Header().Set(echo.HeaderAccessControlAllowOrigin, "*")
	return c.Blob(http.StatusOK, echo.MIMEApplicationJSON, resp.Body)
}

// HandleOptions answers CORS preflight requests on any path.
func (h *RelayHandler) HandleOptions(c echo.Context) error {
	header := c.Response().Header()
	header.Set(echo.HeaderAccessControlAllowOrigin, "*")
	header.Set(echo.HeaderAccessControlAllowMethods, "GET, OPTIONS")
	header.Set(echo.HeaderAccessControlAllowHeaders, "Content-Type")
	return c.NoContent(http.StatusOK)
}

// mapError writes the plain-text error response. The underlying error text is
// echoed to the client on purpose.
func (h *RelayHandler) mapError(c echo.Context, target string, err error) error {
	if errors.Is(err, service.ErrMissingURL) {
		return c.String(http.StatusBadRequest, "Missing 'url' parameter")
	}

	h.logger.Error("proxy error",
		"target", target,
		"err", err,
	)

	return c.String(http.StatusInternalServerError, "Proxy error: "+err.Error())
}
