package token

import (
	"crypto/ecdsa"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/keyruu/ruscalimat/jwks"
)

const (
	// DefaultPinKeyID is the kid stamped on PIN tokens when none is configured
	DefaultPinKeyID = "pin-login"

	// DefaultPinTokenTTL is the lifetime of a PIN token when none is configured
	DefaultPinTokenTTL = 12 * time.Hour
)

// SignerConfig configures PinSigner
type SignerConfig struct {
	KeyPath string
	KeyID   string
	TTL     time.Duration
}

// PinSigner issues short-lived "Pin " tokens with a local EC private key.
// The key file is read at most once; a failed load fails every later call
// with the same error.
type PinSigner struct {
	keyID    string
	ttl      time.Duration
	load     func() (*pinKey, error)
	timeFunc func() time.Time
}

type pinKey struct {
	private *ecdsa.PrivateKey
	method  *jwt.SigningMethodECDSA
}

// NewPinSigner creates a PinSigner. Call Load at startup to fail fast.
func NewPinSigner(cfg SignerConfig) *PinSigner {
	if cfg.KeyID == "" {
		cfg.KeyID = DefaultPinKeyID
	}
	if cfg.TTL == 0 {
		cfg.TTL = DefaultPinTokenTTL
	}
	path := cfg.KeyPath
	return &PinSigner{
		keyID:    cfg.KeyID,
		ttl:      cfg.TTL,
		load:     sync.OnceValues(func() (*pinKey, error) { return loadPinKey(path) }),
		timeFunc: time.Now,
	}
}

// Load reads and parses the key file if that has not happened yet
func (s *PinSigner) Load() error {
	_, err := s.key()
	return err
}

// PublicKey returns the verification half of the signing key, bound to its
// algorithm and kid, for use with LocalKey.
func (s *PinSigner) PublicKey() (jwks.Key, error) {
	key, err := s.key()
	if err != nil {
		return jwks.Key{}, err
	}
	return jwks.Key{
		ID:        s.keyID,
		Algorithm: key.method.Alg(),
		Public:    &key.private.PublicKey,
	}, nil
}

// Issue signs a PIN token for subject and returns it with the "Pin " scheme prefix
func (s *PinSigner) Issue(subject string) (string, error) {
	if subject == "" {
		return "", fmt.Errorf("%w: empty subject", ErrSigning)
	}
	key, err := s.key()
	if err != nil {
		return "", err
	}

	now := s.timeFunc()
	claims := jwt.RegisteredClaims{
		Issuer:    PinIssuer,
		Subject:   subject,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		ID:        uuid.NewString(),
	}

	tok := jwt.NewWithClaims(key.method, claims)
	tok.Header["kid"] = s.keyID

	signed, err := tok.SignedString(key.private)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrSigning, err)
	}
	return SchemePin.Prefix() + signed, nil
}

func (s *PinSigner) key() (*pinKey, error) {
	key, err := s.load()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSigning, err)
	}
	return key, nil
}

func loadPinKey(path string) (*pinKey, error) {
	if path == "" {
		return nil, fmt.Errorf("no key path configured")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read pin key: %w", err)
	}
	private, err := jwt.ParseECPrivateKeyFromPEM(data)
	if err != nil {
		return nil, fmt.Errorf("parse pin key %s: %w", path, err)
	}

	var method *jwt.SigningMethodECDSA
	switch private.Curve.Params().BitSize {
	case 256:
		method = jwt.SigningMethodES256
	case 384:
		method = jwt.SigningMethodES384
	case 521:
		method = jwt.SigningMethodES512
	default:
		return nil, fmt.Errorf("unsupported curve %s for pin key", private.Curve.Params().Name)
	}
	return &pinKey{private: private, method: method}, nil
}
