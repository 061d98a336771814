// Package client provides the outbound HTTP client used to fetch relay targets.
package client

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"blackhole-proxy-go/internal/config"
	"blackhole-proxy-go/internal/metrics"
	"blackhole-proxy-go/internal/model"
)

// UpstreamClient fetches relay targets. Every request dials its own
// connection and is bounded by the configured timeout.
type UpstreamClient struct {
	httpClient *http.Client
	logger     *slog.Logger
	metrics    *metrics.Metrics
}

// NewUpstreamClient creates an UpstreamClient with keep-alives disabled.
// The metrics parameter is optional; pass nil to disable upstream metrics recording.
func NewUpstreamClient(cfg *config.Config, logger *slog.Logger, m *metrics.Metrics) *UpstreamClient {
	// DisableCompression keeps Go from adding an implicit Accept-Encoding, so the
	// outbound header set is exactly what the caller passes.
	transport := &http.Transport{
		Proxy:              http.ProxyFromEnvironment,
		DisableKeepAlives:  true,
		DisableCompression: true,
		DialContext: (&net.Dialer{
			Timeout: cfg.Upstream.Timeout(),
		}).DialContext,
		TLSHandshakeTimeout: cfg.Upstream.Timeout(),
	}

	return &UpstreamClient{
		httpClient: &http.Client{
			Transport: transport,
			Timeout:   cfg.Upstream.Timeout(),
		},
		logger:  logger.With("component", "upstream_client"),
		metrics: m,
	}
}

// Do executes req and reads the whole response body into memory.
// Any status code is a successful response; only transport and read
// failures are returned as errors.
func (c *UpstreamClient) Do(req *http.Request) (*model.RelayResponse, error) {
	c.logger.Debug("upstream request",
		"host", req.URL.Host,
		"path", req.URL.Path,
	)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.observeError(start)
		return nil, fmt.Errorf("upstream request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		c.observeError(start)
		return nil, fmt.Errorf("read upstream body: %w", err)
	}

	if c.metrics != nil {
		c.metrics.UpstreamDuration.WithLabelValues("success").Observe(time.Since(start).Seconds())
		c.metrics.UpstreamResponses.WithLabelValues(strconv.Itoa(resp.StatusCode)).Inc()
	}

	return &model.RelayResponse{
		StatusCode: resp.StatusCode,
		Body:       body,
	}, nil
}

// Get builds a GET request for target carrying exactly header and executes it.
// The provided context is attached to the outbound request; the client
// timeout applies regardless.
func (c *UpstreamClient) Get(ctx context.Context, target string, header http.Header) (*model.RelayResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("build upstream request: %w", err)
	}
	req.Header = header

	return c.Do(req)
}

func (c *UpstreamClient) observeError(start time.Time) {
	if c.metrics == nil {
		return
	}
	c.metrics.UpstreamDuration.WithLabelValues("error").Observe(time.Since(start).Seconds())
	c.metrics.UpstreamErrors.Inc()
}
