package auth

import (
	"context"
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/golang-jwt/jwt/v5"

	"im-connector-go/internal/config"
)

const testIssuer = "https://aai.example.org/oidc/"

func newTestVerifier(t *testing.T, audience string) (*Verifier, *rsa.PrivateKey) {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	keySet := &oidc.StaticKeySet{PublicKeys: []crypto.PublicKey{&key.PublicKey}}
	oc := oidcConfig(config.IssuerConfig{URL: testIssuer, Audience: audience})
	v := newVerifier(map[string]*oidc.IDTokenVerifier{
		testIssuer: oidc.NewVerifier(testIssuer, keySet, oc),
	}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	return v, key
}

func sign(t *testing.T, key *rsa.PrivateKey, claims jwt.MapClaims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(key)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return s
}

func TestVerify_Valid(t *testing.T) {
	v, key := newTestVerifier(t, "")
	tok := sign(t, key, jwt.MapClaims{
		"iss": testIssuer,
		"sub": "user-123",
		"exp": time.Now().Add(time.Hour).Unix(),
	})

	id, err := v.Verify(context.Background(), tok)
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
	if id.Subject != "user-123" || id.Issuer != testIssuer {
		t.Errorf("Identity = %+v", id)
	}
}

func TestVerify_Audience(t *testing.T) {
	v, key := newTestVerifier(t, "im-connector")

	good := sign(t, key, jwt.MapClaims{
		"iss": testIssuer, "sub": "u", "aud": "im-connector",
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	if _, err := v.Verify(context.Background(), good); err != nil {
		t.Errorf("Verify(matching aud) error = %v", err)
	}

	bad := sign(t, key, jwt.MapClaims{
		"iss": testIssuer, "sub": "u", "aud": "someone-else",
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	if _, err := v.Verify(context.Background(), bad); err == nil {
		t.Error("Verify(wrong aud) = nil, want error")
	}
}

func TestVerify_Rejects(t *testing.T) {
	v, key := newTestVerifier(t, "")
	otherKey, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}

	tests := []struct {
		name    string
		token   string
		wantErr error
	}{
		{
			name:    "empty",
			token:   "  ",
			wantErr: ErrMissingToken,
		},
		{
			name:  "garbage",
			token: "not-a-jwt",
		},
		{
			name: "expired",
			token: sign(t, key, jwt.MapClaims{
				"iss": testIssuer, "sub": "u",
				"exp": time.Now().Add(-time.Hour).Unix(),
			}),
		},
		{
			name: "untrusted issuer",
			token: sign(t, key, jwt.MapClaims{
				"iss": "https://evil.example.org/", "sub": "u",
				"exp": time.Now().Add(time.Hour).Unix(),
			}),
			wantErr: ErrUntrustedIssuer,
		},
		{
			name: "wrong signing key",
			token: sign(t, otherKey, jwt.MapClaims{
				"iss": testIssuer, "sub": "u",
				"exp": time.Now().Add(time.Hour).Unix(),
			}),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, err := v.Verify(context.Background(), tt.token)
			if err == nil {
				t.Fatalf("Verify() = %+v, want error", id)
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("Verify() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestNewVerifier_JWKSURLSkipsDiscovery(t *testing.T) {
	cfg := config.AuthConfig{Issuers: []config.IssuerConfig{{
		URL:     testIssuer,
		JWKSURL: "http://127.0.0.1:1/jwks",
	}}}

	v, err := NewVerifier(context.Background(), cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatalf("NewVerifier() error = %v", err)
	}
	if _, ok := v.verifiers[testIssuer]; !ok {
		t.Errorf("verifier for %s not registered", testIssuer)
	}
}

func TestNewVerifier_DiscoveryFailure(t *testing.T) {
	cfg := config.AuthConfig{Issuers: []config.IssuerConfig{{URL: "http://127.0.0.1:1/"}}}

	if _, err := NewVerifier(context.Background(), cfg, slog.New(slog.NewTextHandler(io.Discard, nil))); err == nil {
		t.Fatal("NewVerifier() = nil error, want discovery failure")
	}
}
