package token

import (
	"fmt"
	"sort"
)

// UserClaims is the verified identity of an identity-provider user.
// Values only come out of Verifier.VerifyUser and are immutable.
type UserClaims struct {
	subject    string
	name       string
	email      string
	groups     map[string]struct{}
	adminGroup string
}

// Subject is the identity provider's user id (the "sub" claim)
func (c *UserClaims) Subject() string { return c.subject }

// Name is the display name
func (c *UserClaims) Name() string { return c.name }

// Email is the user's email address
func (c *UserClaims) Email() string { return c.email }

// Groups returns the group memberships in sorted order
func (c *UserClaims) Groups() []string {
	groups := make([]string, 0, len(c.groups))
	for g := range c.groups {
		groups = append(groups, g)
	}
	sort.Strings(groups)
	return groups
}

// HasGroup reports whether the user is a member of group
func (c *UserClaims) HasGroup(group string) bool {
	_, ok := c.groups[group]
	return ok
}

// IsAdmin reports whether the user belongs to the configured admin group
func (c *UserClaims) IsAdmin() bool {
	return c.adminGroup != "" && c.HasGroup(c.adminGroup)
}

// PinClaims is the verified identity behind a locally issued PIN token
type PinClaims struct {
	subject string
}

// Subject is the account id the PIN token was issued for
func (c *PinClaims) Subject() string { return c.subject }

// userPayload is the wire shape of a provider token payload. Pointer fields
// distinguish absent claims from empty ones.
type userPayload struct {
	Subject *string  `json:"sub"`
	Name    *string  `json:"name"`
	Email   *string  `json:"email"`
	Groups  []string `json:"groups"`
}

func (p *userPayload) toClaims(adminGroup string) (*UserClaims, error) {
	switch {
	case p.Subject == nil || *p.Subject == "":
		return nil, fmt.Errorf("%w: sub", ErrMalformedClaims)
	case p.Name == nil:
		return nil, fmt.Errorf("%w: name", ErrMalformedClaims)
	case p.Email == nil:
		return nil, fmt.Errorf("%w: email", ErrMalformedClaims)
	}

	groups := make(map[string]struct{}, len(p.Groups))
	for _, g := range p.Groups {
		groups[g] = struct{}{}
	}

	return &UserClaims{
		subject:    *p.Subject,
		name:       *p.Name,
		email:      *p.Email,
		groups:     groups,
		adminGroup: adminGroup,
	}, nil
}

type pinPayload struct {
	Subject *string `json:"sub"`
}

func (p *pinPayload) toClaims() (*PinClaims, error) {
	if p.Subject == nil || *p.Subject == "" {
		return nil, fmt.Errorf("%w: sub", ErrMalformedClaims)
	}
	return &PinClaims{subject: *p.Subject}, nil
}
