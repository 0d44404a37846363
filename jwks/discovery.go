package jwks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

var (
	// ErrMissingField is returned when the discovery document has no usable jwks_uri
	ErrMissingField = errors.New("discovery document missing field")

	// ErrNetworkFailure is returned when the identity provider cannot be reached
	ErrNetworkFailure = errors.New("identity provider request failed")

	// ErrMalformedKeySet is returned when the JWKS document cannot be parsed
	ErrMalformedKeySet = errors.New("malformed key set")
)

// WellKnownPath is the OpenID Connect discovery document path
const WellKnownPath = "/.well-known/openid-configuration"

// maxDocumentSize bounds discovery and JWKS response bodies
const maxDocumentSize = 1 << 20

// Discoverer locates and downloads an identity provider's signing keys
type Discoverer struct {
	httpClient *http.Client
	logger     *zap.Logger
}

// NewDiscoverer creates a Discoverer. A zero timeout defaults to 10 seconds.
func NewDiscoverer(timeout time.Duration, logger *zap.Logger) *Discoverer {
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	return &Discoverer{
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

// Discover fetches {issuerBaseURL}/.well-known/openid-configuration, follows its
// jwks_uri and parses the key set. It performs exactly two sequential requests
// and never retries.
func (d *Discoverer) Discover(ctx context.Context, issuerBaseURL string) (*KeySet, error) {
	configURL := strings.TrimSuffix(issuerBaseURL, "/") + WellKnownPath

	body, err := d.fetch(ctx, configURL)
	if err != nil {
		return nil, err
	}

	var document map[string]any
	if err := json.Unmarshal(body, &document); err != nil {
		return nil, fmt.Errorf("%w: jwks_uri (discovery document is not a JSON object: %v)", ErrMissingField, err)
	}

	jwksURI, ok := document["jwks_uri"].(string)
	if !ok || jwksURI == "" {
		return nil, fmt.Errorf("%w: jwks_uri", ErrMissingField)
	}
	d.logger.Debug("resolved jwks_uri",
		zap.String("issuer", issuerBaseURL),
		zap.String("jwks_uri", jwksURI))

	body, err = d.fetch(ctx, jwksURI)
	if err != nil {
		return nil, err
	}

	set, err := ParseKeySet(body)
	if err != nil {
		return nil, err
	}

	d.logger.Info("identity provider keys discovered",
		zap.String("issuer", issuerBaseURL),
		zap.Strings("kids", set.KeyIDs()))

	return set, nil
}

func (d *Discoverer) fetch(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNetworkFailure, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNetworkFailure, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: GET %s returned status %d", ErrNetworkFailure, url, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxDocumentSize))
	if err != nil {
		return nil, fmt.Errorf("%w: reading %s: %v", ErrNetworkFailure, url, err)
	}
	return body, nil
}
