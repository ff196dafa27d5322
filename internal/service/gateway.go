// Package service forwards gateway calls to the Infrastructure Manager and
// maps their outcome onto the gateway's error contract.
package service

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"im-connector-go/internal/client"
	"im-connector-go/internal/config"
	"im-connector-go/internal/headers"
	"im-connector-go/internal/imauth"
	"im-connector-go/internal/model"
)

// Gateway owns the two forwarding paths. It holds only read-only state and
// is safe for concurrent use.
type Gateway struct {
	client       *client.IMClient
	cfg          *config.Config
	logger       *slog.Logger
	baseURL      *url.URL
	allowedHosts map[string]bool
}

// NewGateway creates a Gateway forwarding passthrough calls to cfg.IM.BaseURL.
func NewGateway(c *client.IMClient, cfg *config.Config, logger *slog.Logger) (*Gateway, error) {
	u, err := url.Parse(cfg.IM.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse im base_url: %w", err)
	}

	var allowed map[string]bool
	if len(cfg.IM.AllowedHosts) > 0 {
		allowed = make(map[string]bool, len(cfg.IM.AllowedHosts))
		for _, h := range cfg.IM.AllowedHosts {
			allowed[strings.ToLower(h)] = true
		}
	}

	return &Gateway{
		client:       c,
		cfg:          cfg,
		logger:       logger.With("component", "gateway"),
		baseURL:      u,
		allowedHosts: allowed,
	}, nil
}

// HostAllowed reports whether the structured endpoint may POST to host.
// With no allowlist configured every host is allowed.
func (g *Gateway) HostAllowed(host string) bool {
	if g.allowedHosts == nil {
		return true
	}
	return g.allowedHosts[strings.ToLower(host)]
}

// CreateDeployment POSTs the TOSCA template of dr to dr.BackendURL with the
// composed IM Authorization header. Any 2xx reply is returned; everything
// else becomes a *GatewayError. dr must already be validated.
func (g *Gateway) CreateDeployment(ctx context.Context, dr model.DeploymentRequest) (*model.BackendResponse, error) {
	if !g.HostAllowed(dr.BackendHost()) {
		return nil, ErrHostNotAllowed
	}

	creds := imauth.Credentials{
		IMToken:          dr.IMAccessToken,
		IaaSToken:        dr.IaaSAccessToken,
		ProviderName:     dr.ProviderName,
		ProviderType:     dr.ProviderType,
		ProviderEndpoint: dr.ProviderEndpoint,
	}
	if creds.Ambiguous() {
		g.logger.Warn("credential value contains a clause separator; backend may misparse the Authorization header",
			"provider_name", dr.ProviderName,
			"provider_type", dr.ProviderType,
		)
	}

	ctx, cancel := context.WithTimeout(ctx, g.cfg.IM.DeploymentTimeout())
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, dr.BackendURL, strings.NewReader(dr.ToscaTemplate))
	if err != nil {
		return nil, internal(fmt.Errorf("build deployment request: %w", err))
	}
	req.Header.Set("Authorization", imauth.Header(creds))
	req.Header.Set("Content-Type", "text/yaml")

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, unavailable(http.StatusServiceUnavailable, err)
	}
	if !resp.OK() {
		g.logger.Info("backend rejected deployment",
			"host", req.URL.Host,
			"status", resp.StatusCode,
		)
		return nil, rejected(resp)
	}
	return resp, nil
}

// Forward tunnels pr to the IM base URL with the same method, query and body.
// Any backend status is returned as-is; only transport failures become a
// *GatewayError.
func (g *Gateway) Forward(ctx context.Context, pr *model.ProxyRequest) (*model.BackendResponse, error) {
	var body io.Reader = http.NoBody
	if len(pr.Body) > 0 {
		body = bytes.NewReader(pr.Body)
	}

	ctx, cancel := context.WithTimeout(ctx, g.cfg.IM.Timeout())
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, pr.Method, g.backendURL(pr), body)
	if err != nil {
		return nil, internal(fmt.Errorf("build passthrough request: %w", err))
	}
	req.Header = headers.SanitizeRequest(pr.Header)

	g.logger.Debug("forwarding request",
		"method", pr.Method,
		"path", pr.Path,
	)

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, unavailable(http.StatusBadGateway, err)
	}
	return resp, nil
}

func (g *Gateway) backendURL(pr *model.ProxyRequest) string {
	u := *g.baseURL
	u.Path = strings.TrimRight(u.Path, "/") + "/" + strings.TrimLeft(pr.Path, "/")
	u.RawPath = ""
	u.RawQuery = model.EncodeQuery(pr.Query)
	return u.String()
}
