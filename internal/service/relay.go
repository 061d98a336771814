// Package service implements the relay transaction: validate the target,
// fetch it with the fixed header set and classify failures.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"blackhole-proxy-go/internal/config"
	"blackhole-proxy-go/internal/model"
)

// ErrMissingURL is returned when the inbound request carries no usable url parameter.
var ErrMissingURL = errors.New("missing 'url' parameter")

// ProxyError reports a failure while contacting or reading from the target.
type ProxyError struct {
	Target string
	Err    error
}

func (e *ProxyError) Error() string {
	return e.Err.Error()
}

func (e *ProxyError) Unwrap() error {
	return e.Err
}

// Fetcher performs the outbound GET. *client.UpstreamClient satisfies it.
type Fetcher interface {
	Get(ctx context.Context, target string, header http.Header) (*model.RelayResponse, error)
}

// RelayService turns one relay request into exactly one outbound GET.
type RelayService struct {
	fetcher Fetcher
	headers config.HeadersConfig
	logger  *slog.Logger
}

// NewRelayService creates a RelayService.
func NewRelayService(f Fetcher, cfg *config.Config, logger *slog.Logger) *RelayService {
	return &RelayService{
		fetcher: f,
		headers: cfg.Upstream.Headers,
		logger:  logger.With("component", "relay_service"),
	}
}

// Relay fetches rr.Target and returns the buffered upstream response.
//
// An empty target yields ErrMissingURL without any outbound call. Every other
// failure is returned as a *ProxyError. The upstream status code never turns
// into an error.
func (s *RelayService) Relay(rr *model.RelayRequest) (*model.RelayResponse, error) {
	if rr.Target == "" {
		return nil, ErrMissingURL
	}

	s.logger.Info("proxying request", "target", rr.Target)

	resp, err := s.fetcher.Get(rr.Ctx, rr.Target, s.outboundHeaders())
	if err != nil {
		return nil, &ProxyError{Target: rr.Target, Err: fmt.Errorf("fetch target: %w", err)}
	}

	s.logger.Info("relayed response",
		"target", rr.Target,
		"bytes", len(resp.Body),
		"upstream_status", resp.StatusCode,
	)
	return resp, nil
}

// outboundHeaders returns a fresh copy of the fixed header set.
func (s *RelayService) outboundHeaders() http.Header {
	h := make(http.Header, 4)
	h.Set("User-Agent", s.headers.UserAgent)
	h.Set("Accept", s.headers.Accept)
	h.Set("Referer", s.headers.Referer)
	h.Set("Origin", s.headers.Origin)
	return h
}
