package token

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// PinIssuer is the "iss" claim of locally issued PIN tokens
const PinIssuer = "ruscalimat-pin"

// VerifierConfig controls registered-claim validation
type VerifierConfig struct {
	// AdminGroup is the group that makes a user an administrator
	AdminGroup string
	// Issuer, when set, must match the "iss" claim of provider tokens
	Issuer string
	// Audience, when set, must be contained in the "aud" claim of provider tokens
	Audience string
	// Leeway tolerates clock skew on exp/nbf
	Leeway time.Duration
}

// Verifier verifies bearer and PIN tokens. It keeps no per-token state:
// every call verifies its token end to end.
type Verifier struct {
	cfg      VerifierConfig
	timeFunc func() time.Time
}

// NewVerifier creates a Verifier
func NewVerifier(cfg VerifierConfig) *Verifier {
	return &Verifier{cfg: cfg, timeFunc: time.Now}
}

// VerifyUser verifies a "Bearer <token>" header value against src and decodes
// the user claim set.
func (v *Verifier) VerifyUser(header string, src KeySource) (*UserClaims, error) {
	payload, err := v.verifiedPayload(header, src)
	if err != nil {
		return nil, err
	}

	var p userPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedClaims, err)
	}
	return p.toClaims(v.cfg.AdminGroup)
}

// VerifyPin verifies a "Pin <token>" header value against src and decodes the
// reduced PIN claim set.
func (v *Verifier) VerifyPin(header string, src KeySource) (*PinClaims, error) {
	payload, err := v.verifiedPayload(header, src)
	if err != nil {
		return nil, err
	}

	var p pinPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedClaims, err)
	}
	return p.toClaims()
}

// unverifiedHeader is read before the signature is checked and is only used
// to pick a key by kid.
type unverifiedHeader struct {
	KeyID     string `json:"kid"`
	Algorithm string `json:"alg"`
}

// verifiedPayload runs the trust boundary: prefix, header, kid, key lookup,
// then signature and registered claims with the key's own algorithm. It
// returns the raw payload JSON only after all of that succeeded.
func (v *Verifier) verifiedPayload(header string, src KeySource) ([]byte, error) {
	raw, ok := strings.CutPrefix(header, src.Scheme().Prefix())
	if !ok || raw == "" {
		return nil, fmt.Errorf("%w: expected %q scheme", ErrMalformedHeader, src.Scheme())
	}

	segments := strings.Split(raw, ".")
	if len(segments) != 3 {
		return nil, fmt.Errorf("%w: token has %d segments", ErrMalformedToken, len(segments))
	}

	parser := jwt.NewParser()
	headerJSON, err := parser.DecodeSegment(segments[0])
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedToken, err)
	}
	var h unverifiedHeader
	if err := json.Unmarshal(headerJSON, &h); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedToken, err)
	}

	if h.KeyID == "" {
		return nil, ErrMissingKeyID
	}

	key, err := src.resolve(h.KeyID)
	if err != nil {
		return nil, err
	}

	parser = jwt.NewParser(v.parserOptions(src, key.Algorithm)...)
	tok, err := parser.Parse(raw, func(*jwt.Token) (any, error) {
		return key.Public, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if !tok.Valid {
		return nil, ErrInvalid
	}

	payload, err := parser.DecodeSegment(segments[1])
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedClaims, err)
	}
	return payload, nil
}

func (v *Verifier) parserOptions(src KeySource, alg string) []jwt.ParserOption {
	opts := []jwt.ParserOption{
		// The only acceptable method is the one bound to the resolved key.
		jwt.WithValidMethods([]string{alg}),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(v.cfg.Leeway),
		jwt.WithTimeFunc(v.timeFunc),
	}

	if src.Scheme() == SchemePin {
		return append(opts, jwt.WithIssuer(PinIssuer))
	}
	if v.cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.cfg.Issuer))
	}
	if v.cfg.Audience != "" {
		opts = append(opts, jwt.WithAudience(v.cfg.Audience))
	}
	return opts
}
