package client

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"blackhole-proxy-go/internal/config"
	"blackhole-proxy-go/internal/metrics"
)

func newTestClient(timeoutSeconds int, m *metrics.Metrics) *UpstreamClient {
	cfg := &config.Config{
		Upstream: config.UpstreamConfig{TimeoutSeconds: timeoutSeconds},
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewUpstreamClient(cfg, logger, m)
}

func TestUpstreamClient_Get(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			t.Errorf("method = %q, want GET", r.Method)
		}
		if r.Header.Get("Referer") != "https://www.jiosaavn.com/" {
			t.Errorf("Referer = %q, want %q", r.Header.Get("Referer"), "https://www.jiosaavn.com/")
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	}))
	defer srv.Close()

	c := newTestClient(10, nil)
	header := http.Header{"Referer": {"https://www.jiosaavn.com/"}}

	resp, err := c.Get(context.Background(), srv.URL+"/test", header)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Errorf("StatusCode = %d, want %d", resp.StatusCode, http.StatusOK)
	}
	if string(resp.Body) != `{"status":"ok"}` {
		t.Errorf("body = %q, want %q", string(resp.Body), `{"status":"ok"}`)
	}
}

func TestUpstreamClient_Get_NonSuccessStatusIsNotAnError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"a":1}`))
	}))
	defer srv.Close()

	c := newTestClient(10, nil)
	resp, err := c.Get(context.Background(), srv.URL, http.Header{})
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("StatusCode = %d, want %d", resp.StatusCode, http.StatusNotFound)
	}
	if string(resp.Body) != `{"a":1}` {
		t.Errorf("body = %q, want %q", string(resp.Body), `{"a":1}`)
	}
}

func TestUpstreamClient_Get_Unreachable(t *testing.T) {
	c := newTestClient(1, nil)

	_, err := c.Get(context.Background(), "http://127.0.0.1:1/nonexistent", http.Header{})
	if err == nil {
		t.Fatal("Get() expected error for unreachable host, got nil")
	}
}

func TestUpstreamClient_Get_MalformedURL(t *testing.T) {
	c := newTestClient(1, nil)

	tests := []string{"://missing-scheme", "ftp://example.com/a.json", "not a url"}
	for _, target := range tests {
		t.Run(target, func(t *testing.T) {
			if _, err := c.Get(context.Background(), target, http.Header{}); err == nil {
				t.Fatalf("Get(%q) expected error, got nil", target)
			}
		})
	}
}

func TestUpstreamClient_Get_Timeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	c := newTestClient(1, nil)

	start := time.Now()
	_, err := c.Get(context.Background(), srv.URL+"/slow", http.Header{})
	if err == nil {
		t.Fatal("Get() expected timeout error, got nil")
	}
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Errorf("Get() took %v, want roughly the 1s timeout", elapsed)
	}
}

func TestUpstreamClient_Get_CanceledContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := newTestClient(30, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.Get(ctx, srv.URL+"/slow", http.Header{})
	if err == nil {
		t.Fatal("Get() expected error for canceled context, got nil")
	}
}

func TestUpstreamClient_RecordsMetrics(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
		_, _ = w.Write([]byte("short and stout"))
	}))
	defer srv.Close()

	m := metrics.New()
	c := newTestClient(10, m)

	if _, err := c.Get(context.Background(), srv.URL, http.Header{}); err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if _, err := c.Get(context.Background(), "http://127.0.0.1:1/", http.Header{}); err == nil {
		t.Fatal("Get() expected error for unreachable host, got nil")
	}

	families, err := m.Registry.Gather()
	if err != nil {
		t.Fatalf("Gather() error = %v", err)
	}

	var gotTeapot, gotError bool
	for _, f := range families {
		switch f.GetName() {
		case "blackhole_proxy_upstream_responses_total":
			for _, metric := range f.GetMetric() {
				for _, lp := range metric.GetLabel() {
					if lp.GetName() == "status_code" && lp.GetValue() == "418" {
						gotTeapot = true
					}
				}
			}
		case "blackhole_proxy_upstream_errors_total":
			if v := f.GetMetric()[0].GetCounter().GetValue(); v == 1 {
				gotError = true
			}
		}
	}
	if !gotTeapot {
		t.Error("expected blackhole_proxy_upstream_responses_total with status_code=418")
	}
	if !gotError {
		t.Error("expected blackhole_proxy_upstream_errors_total = 1")
	}
}

func TestUpstreamClient_SendsOnlyGivenHeaders(t *testing.T) {
	var got http.Header
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Clone()
		_, _ = w.Write([]byte("ok"))
	}))
	defer srv.Close()

	c := newTestClient(10, nil)
	header := http.Header{
		"User-Agent": {"ua/1.0"},
		"Origin":     {"https://www.jiosaavn.com"},
	}
	if _, err := c.Get(context.Background(), srv.URL, header); err != nil {
		t.Fatalf("Get() error = %v", err)
	}

	if got.Get("User-Agent") != "ua/1.0" {
		t.Errorf("User-Agent = %q, want %q", got.Get("User-Agent"), "ua/1.0")
	}
	for key := range got {
		switch strings.ToLower(key) {
		case "user-agent", "origin", "connection":
		default:
			t.Errorf("unexpected outbound header %q", key)
		}
	}
}
