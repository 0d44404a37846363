package token

import (
	"net/http"
	"strings"
)

// Identity is the outcome of a successful authentication. The zero value is
// an anonymous request.
type Identity struct {
	User *UserClaims
	Pin  *PinClaims
}

// Anonymous reports whether no credentials were presented
func (i Identity) Anonymous() bool {
	return i.User == nil && i.Pin == nil
}

// Subject returns the authenticated account id, or "" when anonymous
func (i Identity) Subject() string {
	switch {
	case i.User != nil:
		return i.User.Subject()
	case i.Pin != nil:
		return i.Pin.Subject()
	}
	return ""
}

// IsAdmin reports whether the identity is an administrator. PIN logins never are.
func (i Identity) IsAdmin() bool {
	return i.User != nil && i.User.IsAdmin()
}

// Gate turns request headers into an Identity. The Authorization scheme tag
// picks the trust domain: "Pin " goes to the local key, anything else must be
// a "Bearer " provider token.
type Gate struct {
	verifier *Verifier
	remote   KeySource
	local    KeySource
}

// NewGate creates a Gate
func NewGate(verifier *Verifier, remote, local KeySource) *Gate {
	return &Gate{verifier: verifier, remote: remote, local: local}
}

// Authenticate is the optional-identity mode: an absent or empty
// Authorization header is anonymous, anything present must verify.
func (g *Gate) Authenticate(h http.Header) (Identity, error) {
	value := h.Get("Authorization")
	if value == "" {
		return Identity{}, nil
	}
	return g.verify(value)
}

// RequireAuthenticated is the mandatory-identity mode: a missing header is
// rejected before any verification happens.
func (g *Gate) RequireAuthenticated(h http.Header) (Identity, error) {
	value := h.Get("Authorization")
	if value == "" {
		return Identity{}, ErrMissingCredentials
	}
	return g.verify(value)
}

func (g *Gate) verify(value string) (Identity, error) {
	if strings.HasPrefix(value, SchemePin.Prefix()) {
		pin, err := g.verifier.VerifyPin(value, g.local)
		if err != nil {
			return Identity{}, err
		}
		return Identity{Pin: pin}, nil
	}

	user, err := g.verifier.VerifyUser(value, g.remote)
	if err != nil {
		return Identity{}, err
	}
	return Identity{User: user}, nil
}
