package token_test

import (
	"crypto/elliptic"
	"net/http"
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/keyruu/ruscalimat/token"
	"github.com/keyruu/ruscalimat/token/tokentest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newGate(t *testing.T) (*token.Gate, *tokentest.Provider, *token.PinSigner) {
	t.Helper()
	idp := tokentest.NewProvider(t)
	signer := newSigner(t, elliptic.P256())
	local, err := signer.PublicKey()
	require.NoError(t, err)

	gate := token.NewGate(newVerifier(), token.RemoteKeys(idp.Cache()), token.LocalKey(local))
	return gate, idp, signer
}

func headers(authorization ...string) http.Header {
	h := http.Header{}
	for _, v := range authorization {
		h.Add("Authorization", v)
	}
	return h
}

func TestGateAuthenticate(t *testing.T) {
	gate, idp, signer := newGate(t)

	t.Run("no header is anonymous", func(t *testing.T) {
		id, err := gate.Authenticate(headers())
		require.NoError(t, err)
		assert.True(t, id.Anonymous())
		assert.Empty(t, id.Subject())
		assert.False(t, id.IsAdmin())
	})

	t.Run("empty header is anonymous", func(t *testing.T) {
		id, err := gate.Authenticate(headers(""))
		require.NoError(t, err)
		assert.True(t, id.Anonymous())
	})

	t.Run("unknown kid is rejected", func(t *testing.T) {
		tok := idp.SignWith(jwt.SigningMethodRS256, idp.PrivateKey, map[string]any{"kid": "nope"}, idp.UserClaims("user-1"))
		id, err := gate.Authenticate(headers(tokentest.Bearer(tok)))
		assert.ErrorIs(t, err, token.ErrUnknownKeyID)
		assert.True(t, id.Anonymous())
	})

	t.Run("malformed header is rejected, not anonymous", func(t *testing.T) {
		_, err := gate.Authenticate(headers("Token abc"))
		assert.ErrorIs(t, err, token.ErrMalformedHeader)
	})

	t.Run("bearer token yields user identity", func(t *testing.T) {
		id, err := gate.Authenticate(headers(tokentest.Bearer(idp.UserToken("user-1", adminGroup))))
		require.NoError(t, err)
		require.NotNil(t, id.User)
		assert.Nil(t, id.Pin)
		assert.Equal(t, "user-1", id.Subject())
		assert.True(t, id.IsAdmin())
	})

	t.Run("pin token yields pin identity", func(t *testing.T) {
		issued, err := signer.Issue("account-9")
		require.NoError(t, err)

		id, err := gate.Authenticate(headers(issued))
		require.NoError(t, err)
		require.NotNil(t, id.Pin)
		assert.Nil(t, id.User)
		assert.Equal(t, "account-9", id.Subject())
		assert.False(t, id.IsAdmin())
	})

	t.Run("admin group removed", func(t *testing.T) {
		id, err := gate.Authenticate(headers(tokentest.Bearer(idp.UserToken("user-1", "drinkers"))))
		require.NoError(t, err)
		assert.False(t, id.IsAdmin())
	})
}

func TestGateRequireAuthenticated(t *testing.T) {
	gate, idp, _ := newGate(t)

	t.Run("no header is rejected", func(t *testing.T) {
		_, err := gate.RequireAuthenticated(headers())
		assert.ErrorIs(t, err, token.ErrMissingCredentials)
	})

	t.Run("empty header is rejected", func(t *testing.T) {
		_, err := gate.RequireAuthenticated(headers(""))
		assert.ErrorIs(t, err, token.ErrMissingCredentials)
	})

	t.Run("valid bearer passes", func(t *testing.T) {
		id, err := gate.RequireAuthenticated(headers(tokentest.Bearer(idp.UserToken("user-1"))))
		require.NoError(t, err)
		assert.Equal(t, "user-1", id.Subject())
	})
}
