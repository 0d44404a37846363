// Package tokentest provides a fake identity provider and key helpers for
// tests that need real, verifiable tokens.
package tokentest

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	jose "github.com/go-jose/go-jose/v4"
	"github.com/golang-jwt/jwt/v5"
	"github.com/keyruu/ruscalimat/jwks"
	"github.com/keyruu/ruscalimat/token"
	"github.com/stretchr/testify/require"
)

// DefaultKeyID is the kid the fake provider publishes its signing key under
const DefaultKeyID = "idp-key-1"

// JWKSPath is where the fake provider serves its key set
const JWKSPath = "/protocol/openid-connect/certs"

// Provider is an httptest-backed identity provider that publishes one RS256 key
type Provider struct {
	Server     *httptest.Server
	KeyID      string
	PrivateKey *rsa.PrivateKey

	t        testing.TB
	requests atomic.Int64
}

// NewProvider starts a provider serving a discovery document and a JWKS.
// The server is closed when the test finishes.
func NewProvider(t testing.TB) *Provider {
	t.Helper()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	p := &Provider{KeyID: DefaultKeyID, PrivateKey: key, t: t}

	mux := http.NewServeMux()
	mux.HandleFunc(jwks.WellKnownPath, func(w http.ResponseWriter, r *http.Request) {
		p.requests.Add(1)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"issuer":   p.Server.URL,
			"jwks_uri": p.Server.URL + JWKSPath,
		})
	})
	mux.HandleFunc(JWKSPath, func(w http.ResponseWriter, r *http.Request) {
		p.requests.Add(1)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(p.JWKS())
	})

	p.Server = httptest.NewServer(mux)
	t.Cleanup(p.Server.Close)
	return p
}

// URL is the provider's base URL (the value configured as AUTH_SERVER_URL)
func (p *Provider) URL() string {
	return p.Server.URL
}

// Requests returns how many discovery/JWKS requests the provider has served
func (p *Provider) Requests() int64 {
	return p.requests.Load()
}

// JWKS returns the published key set document
func (p *Provider) JWKS() jose.JSONWebKeySet {
	return jose.JSONWebKeySet{Keys: []jose.JSONWebKey{{
		Key:       &p.PrivateKey.PublicKey,
		KeyID:     p.KeyID,
		Algorithm: "RS256",
		Use:       "sig",
	}}}
}

// Cache returns a freshly published cache holding the provider's key, without
// going through discovery.
func (p *Provider) Cache() *jwks.Cache {
	p.t.Helper()
	set, err := jwks.NewKeySet(jwks.Key{ID: p.KeyID, Algorithm: "RS256", Public: &p.PrivateKey.PublicKey})
	require.NoError(p.t, err)
	cache := jwks.NewCache()
	cache.Publish(set)
	return cache
}

// UserClaims returns a valid claim map for a user token
func (p *Provider) UserClaims(subject string, groups ...string) jwt.MapClaims {
	now := time.Now()
	claims := jwt.MapClaims{
		"iss":   p.URL(),
		"sub":   subject,
		"name":  "Test User " + subject,
		"email": subject + "@example.com",
		"iat":   now.Unix(),
		"exp":   now.Add(time.Hour).Unix(),
	}
	if groups != nil {
		claims["groups"] = groups
	}
	return claims
}

// UserToken signs a valid user token for subject with the given groups
func (p *Provider) UserToken(subject string, groups ...string) string {
	return p.Sign(p.UserClaims(subject, groups...))
}

// Sign signs claims with the provider key using RS256 and the provider kid
func (p *Provider) Sign(claims jwt.MapClaims) string {
	return p.SignWith(jwt.SigningMethodRS256, p.PrivateKey, map[string]any{"kid": p.KeyID}, claims)
}

// SignWith signs claims with an arbitrary method, key and header fields.
// A nil "kid" value in header removes the kid.
func (p *Provider) SignWith(method jwt.SigningMethod, key any, header map[string]any, claims jwt.MapClaims) string {
	p.t.Helper()
	tok := jwt.NewWithClaims(method, claims)
	for k, v := range header {
		if v == nil {
			delete(tok.Header, k)
			continue
		}
		tok.Header[k] = v
	}
	signed, err := tok.SignedString(key)
	require.NoError(p.t, err)
	return signed
}

// Bearer prefixes a token with the bearer scheme
func Bearer(tok string) string {
	return token.SchemeBearer.Prefix() + tok
}

// WritePinKey generates an EC private key on curve, writes it as a SEC1 PEM
// file in a temp dir and returns the path.
func WritePinKey(t testing.TB, curve elliptic.Curve) string {
	t.Helper()

	key, err := ecdsa.GenerateKey(curve, rand.Reader)
	require.NoError(t, err)
	der, err := x509.MarshalECPrivateKey(key)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "pin-key.pem")
	data := pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: der})
	require.NoError(t, os.WriteFile(path, data, 0o600))
	return path
}
