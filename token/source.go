package token

import (
	"fmt"

	"github.com/keyruu/ruscalimat/jwks"
)

// Scheme is the Authorization scheme tag that selects a trust domain
type Scheme string

const (
	// SchemeBearer carries tokens issued by the external identity provider
	SchemeBearer Scheme = "Bearer"

	// SchemePin carries tokens issued locally by PinSigner
	SchemePin Scheme = "Pin"
)

// Prefix returns the scheme followed by a single space, as it appears in the header
func (s Scheme) Prefix() string {
	return string(s) + " "
}

type sourceKind int

const (
	sourceRemote sourceKind = iota + 1
	sourceLocal
)

// KeySource selects which trust domain verifies a token. It is either the
// identity provider's published key set or the single local PIN key; a
// source never consults the other domain's keys.
type KeySource struct {
	kind   sourceKind
	remote *jwks.Cache
	local  jwks.Key
}

// RemoteKeys selects the identity provider keys held in cache
func RemoteKeys(cache *jwks.Cache) KeySource {
	return KeySource{kind: sourceRemote, remote: cache}
}

// LocalKey selects the local PIN verification key
func LocalKey(key jwks.Key) KeySource {
	return KeySource{kind: sourceLocal, local: key}
}

// Scheme returns the header scheme that tokens for this source must use
func (s KeySource) Scheme() Scheme {
	if s.kind == sourceLocal {
		return SchemePin
	}
	return SchemeBearer
}

func (s KeySource) resolve(kid string) (jwks.Key, error) {
	switch s.kind {
	case sourceRemote:
		if s.remote == nil {
			return jwks.Key{}, fmt.Errorf("%w: %s (no remote key set)", ErrUnknownKeyID, kid)
		}
		key, err := s.remote.FindByKeyID(kid)
		if err != nil {
			return jwks.Key{}, fmt.Errorf("%w: %v", ErrUnknownKeyID, err)
		}
		return key, nil
	case sourceLocal:
		if s.local.ID == "" || s.local.ID != kid {
			return jwks.Key{}, fmt.Errorf("%w: %s", ErrUnknownKeyID, kid)
		}
		return s.local, nil
	default:
		return jwks.Key{}, fmt.Errorf("%w: %s (empty key source)", ErrUnknownKeyID, kid)
	}
}
