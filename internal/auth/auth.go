// Package auth verifies inbound bearer tokens against trusted OIDC issuers.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/golang-jwt/jwt/v5"

	"im-connector-go/internal/config"
)

var (
	// ErrMissingToken is returned for an empty bearer token.
	ErrMissingToken = errors.New("missing bearer token")
	// ErrUntrustedIssuer is returned when the token's issuer is not configured.
	ErrUntrustedIssuer = errors.New("token issuer is not trusted")
)

const discoveryTimeout = 10 * time.Second

// Identity is the verified caller.
type Identity struct {
	Subject string
	Issuer  string
}

// Verifier checks tokens from any of the configured issuers.
type Verifier struct {
	verifiers map[string]*oidc.IDTokenVerifier
	logger    *slog.Logger
}

// NewVerifier builds one verifier per trusted issuer. Issuers with a
// jwks_url skip discovery; the rest are discovered at startup.
func NewVerifier(ctx context.Context, cfg config.AuthConfig, logger *slog.Logger) (*Verifier, error) {
	verifiers := make(map[string]*oidc.IDTokenVerifier, len(cfg.Issuers))
	for _, iss := range cfg.Issuers {
		oc := oidcConfig(iss)
		if iss.JWKSURL != "" {
			verifiers[iss.URL] = oidc.NewVerifier(iss.URL, oidc.NewRemoteKeySet(ctx, iss.JWKSURL), oc)
			continue
		}

		dctx, cancel := context.WithTimeout(ctx, discoveryTimeout)
		provider, err := oidc.NewProvider(dctx, iss.URL)
		cancel()
		if err != nil {
			return nil, fmt.Errorf("discover issuer %s: %w", iss.URL, err)
		}
		verifiers[iss.URL] = provider.Verifier(oc)
	}
	return newVerifier(verifiers, logger), nil
}

func newVerifier(verifiers map[string]*oidc.IDTokenVerifier, logger *slog.Logger) *Verifier {
	return &Verifier{
		verifiers: verifiers,
		logger:    logger.With("component", "auth"),
	}
}

func oidcConfig(iss config.IssuerConfig) *oidc.Config {
	if iss.Audience == "" {
		return &oidc.Config{SkipClientIDCheck: true}
	}
	return &oidc.Config{ClientID: iss.Audience}
}

// Verify checks the signature, issuer, expiry and audience of raw.
func (v *Verifier) Verify(ctx context.Context, raw string) (*Identity, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, ErrMissingToken
	}

	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(raw, claims); err != nil {
		return nil, fmt.Errorf("malformed token: %w", err)
	}
	issuer, _ := claims.GetIssuer()

	verifier, ok := v.verifiers[issuer]
	if !ok {
		v.logger.Debug("token from unknown issuer", "issuer", issuer)
		return nil, ErrUntrustedIssuer
	}

	tok, err := verifier.Verify(ctx, raw)
	if err != nil {
		return nil, fmt.Errorf("verify token: %w", err)
	}
	return &Identity{Subject: tok.Subject, Issuer: tok.Issuer}, nil
}
