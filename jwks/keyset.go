package jwks

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/elliptic"
	"crypto/rsa"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	jose "github.com/go-jose/go-jose/v4"
)

var (
	// ErrKeyNotFound is returned when no key with the requested kid exists
	ErrKeyNotFound = errors.New("key not found")

	// ErrUnsupportedKey is returned when a key's algorithm or material cannot be used for verification
	ErrUnsupportedKey = errors.New("unsupported key")
)

// Key is a public verification key together with the algorithm it is bound to.
// The algorithm comes from the trusted key record, never from a token header.
type Key struct {
	ID        string
	Algorithm string
	Public    crypto.PublicKey
}

// KeySet is an immutable kid -> Key table. It is safe for concurrent reads.
type KeySet struct {
	keys map[string]Key
}

// NewKeySet builds a KeySet from the given keys. Every key needs a kid, a
// supported asymmetric algorithm and matching public key material.
func NewKeySet(keys ...Key) (*KeySet, error) {
	set := &KeySet{keys: make(map[string]Key, len(keys))}
	for _, k := range keys {
		if k.ID == "" {
			return nil, fmt.Errorf("%w: key without kid", ErrUnsupportedKey)
		}
		if err := checkKey(k); err != nil {
			return nil, err
		}
		if _, dup := set.keys[k.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate kid %q", ErrUnsupportedKey, k.ID)
		}
		set.keys[k.ID] = k
	}
	return set, nil
}

// FindByKeyID returns the key registered under kid
func (s *KeySet) FindByKeyID(kid string) (Key, error) {
	k, ok := s.keys[kid]
	if !ok {
		return Key{}, fmt.Errorf("%w: %s", ErrKeyNotFound, kid)
	}
	return k, nil
}

// Len returns the number of keys in the set
func (s *KeySet) Len() int {
	return len(s.keys)
}

// KeyIDs returns the sorted key identifiers
func (s *KeySet) KeyIDs() []string {
	ids := make([]string, 0, len(s.keys))
	for id := range s.keys {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// ParseKeySet parses a JSON Web Key Set document.
//
// Keys marked for encryption ("use":"enc") and keys that do not declare an
// "alg" are skipped: there is no trusted algorithm to bind them to. A document
// that yields no usable signing key is malformed.
func ParseKeySet(data []byte) (*KeySet, error) {
	var doc jose.JSONWebKeySet
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedKeySet, err)
	}

	keys := make([]Key, 0, len(doc.Keys))
	for _, jwk := range doc.Keys {
		if jwk.Use == "enc" || jwk.Algorithm == "" {
			continue
		}
		if !jwk.IsPublic() {
			jwk = jwk.Public()
		}
		if jwk.Key == nil {
			return nil, fmt.Errorf("%w: key %q has no public material", ErrMalformedKeySet, jwk.KeyID)
		}
		keys = append(keys, Key{ID: jwk.KeyID, Algorithm: jwk.Algorithm, Public: jwk.Key})
	}
	if len(keys) == 0 {
		return nil, fmt.Errorf("%w: no usable signing keys", ErrMalformedKeySet)
	}

	set, err := NewKeySet(keys...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedKeySet, err)
	}
	return set, nil
}

// checkKey makes sure the declared algorithm and the key material agree.
func checkKey(k Key) error {
	switch k.Algorithm {
	case "RS256", "RS384", "RS512", "PS256", "PS384", "PS512":
		if _, ok := k.Public.(*rsa.PublicKey); ok {
			return nil
		}
	case "ES256":
		return checkCurve(k, elliptic.P256())
	case "ES384":
		return checkCurve(k, elliptic.P384())
	case "ES512":
		return checkCurve(k, elliptic.P521())
	case "EdDSA":
		if _, ok := k.Public.(ed25519.PublicKey); ok {
			return nil
		}
	default:
		return fmt.Errorf("%w: algorithm %q for kid %q", ErrUnsupportedKey, k.Algorithm, k.ID)
	}
	return fmt.Errorf("%w: %T cannot be used with %s (kid %q)", ErrUnsupportedKey, k.Public, k.Algorithm, k.ID)
}

func checkCurve(k Key, curve elliptic.Curve) error {
	pub, ok := k.Public.(*ecdsa.PublicKey)
	if !ok || pub.Curve != curve {
		return fmt.Errorf("%w: %s needs a %s key (kid %q)", ErrUnsupportedKey, k.Algorithm, curve.Params().Name, k.ID)
	}
	return nil
}
