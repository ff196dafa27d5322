// Package client provides the outbound HTTP client for the Infrastructure Manager.
package client

import (
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"im-connector-go/internal/config"
	"im-connector-go/internal/headers"
	"im-connector-go/internal/metrics"
	"im-connector-go/internal/model"
)

// IMClient sends requests to the IM backend.
type IMClient struct {
	httpClient *http.Client
	logger     *slog.Logger
	metrics    *metrics.Metrics
}

// NewIMClient creates an IMClient with connection pooling and dial timeouts.
// Per-call deadlines come from the request context.
// The metrics parameter is optional; pass nil to disable upstream metrics recording.
func NewIMClient(cfg *config.Config, logger *slog.Logger, m *metrics.Metrics) *IMClient {
	transport := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxIdleConns:        cfg.IM.IdleConnections,
		MaxIdleConnsPerHost: cfg.IM.IdleConnections,
		IdleConnTimeout:     90 * time.Second,
		DialContext: (&net.Dialer{
			Timeout:   30 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout: 10 * time.Second,
	}

	return &IMClient{
		httpClient: &http.Client{
			Transport: transport,
			// Redirects are relayed to the caller, not followed.
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		logger:  logger.With("component", "im_client"),
		metrics: m,
	}
}

// Do executes req against the backend and reads the whole reply. The
// returned headers are already sanitized for relaying.
//
// Compression is negotiated by the transport itself, so the body handed back
// is always decoded.
func (c *IMClient) Do(req *http.Request) (*model.BackendResponse, error) {
	req.Header.Del("Accept-Encoding")

	c.logger.Debug("backend request",
		"method", req.Method,
		"host", req.URL.Host,
		"path", req.URL.Path,
	)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	method := metrics.NormalizeMethod(req.Method)

	if err != nil {
		c.observe(method, "", start)
		return nil, fmt.Errorf("backend request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	c.observe(method, strconv.Itoa(resp.StatusCode), start)
	if err != nil {
		return nil, fmt.Errorf("read backend response: %w", err)
	}

	return &model.BackendResponse{
		StatusCode: resp.StatusCode,
		Reason:     reasonPhrase(resp),
		Header:     headers.SanitizeResponse(resp.Header),
		Body:       body,
	}, nil
}

// CloseIdleConnections closes pooled connections; used on shutdown.
func (c *IMClient) CloseIdleConnections() {
	c.httpClient.CloseIdleConnections()
}

func (c *IMClient) observe(method, status string, start time.Time) {
	if c.metrics == nil {
		return
	}
	c.metrics.UpstreamDuration.WithLabelValues(method).Observe(time.Since(start).Seconds())
	if status != "" {
		c.metrics.UpstreamResponses.WithLabelValues(method, status).Inc()
	}
}

// reasonPhrase extracts the backend's reason phrase from the status line,
// falling back to the standard text for the code.
func reasonPhrase(resp *http.Response) string {
	if reason := strings.TrimSpace(strings.TrimPrefix(resp.Status, strconv.Itoa(resp.StatusCode))); reason != "" {
		return reason
	}
	return http.StatusText(resp.StatusCode)
}
