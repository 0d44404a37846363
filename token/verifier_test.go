package token_test

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/base64"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/keyruu/ruscalimat/jwks"
	"github.com/keyruu/ruscalimat/token"
	"github.com/keyruu/ruscalimat/token/tokentest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const adminGroup = "nexcalimat-admin"

func newVerifier() *token.Verifier {
	return token.NewVerifier(token.VerifierConfig{AdminGroup: adminGroup})
}

func TestVerifyUser(t *testing.T) {
	idp := tokentest.NewProvider(t)
	remote := token.RemoteKeys(idp.Cache())
	verifier := newVerifier()

	t.Run("valid token yields the signed claims", func(t *testing.T) {
		claims, err := verifier.VerifyUser(tokentest.Bearer(idp.UserToken("user-1", "drinkers", "barista")), remote)
		require.NoError(t, err)

		assert.Equal(t, "user-1", claims.Subject())
		assert.Equal(t, "Test User user-1", claims.Name())
		assert.Equal(t, "user-1@example.com", claims.Email())
		assert.Equal(t, []string{"barista", "drinkers"}, claims.Groups())
	})

	t.Run("groups default to empty", func(t *testing.T) {
		claims, err := verifier.VerifyUser(tokentest.Bearer(idp.UserToken("user-2")), remote)
		require.NoError(t, err)
		assert.Empty(t, claims.Groups())
		assert.False(t, claims.IsAdmin())
	})

	t.Run("configured issuer is enforced", func(t *testing.T) {
		strict := token.NewVerifier(token.VerifierConfig{AdminGroup: adminGroup, Issuer: idp.URL()})
		_, err := strict.VerifyUser(tokentest.Bearer(idp.UserToken("user-3")), remote)
		require.NoError(t, err)

		claims := idp.UserClaims("user-3")
		claims["iss"] = "https://evil.example.com"
		_, err = strict.VerifyUser(tokentest.Bearer(idp.Sign(claims)), remote)
		assert.ErrorIs(t, err, token.ErrInvalid)
	})

	t.Run("configured audience is enforced", func(t *testing.T) {
		strict := token.NewVerifier(token.VerifierConfig{Audience: "ruscalimat"})

		claims := idp.UserClaims("user-4")
		claims["aud"] = []string{"other-app"}
		_, err := strict.VerifyUser(tokentest.Bearer(idp.Sign(claims)), remote)
		assert.ErrorIs(t, err, token.ErrInvalid)

		claims["aud"] = []string{"other-app", "ruscalimat"}
		_, err = strict.VerifyUser(tokentest.Bearer(idp.Sign(claims)), remote)
		assert.NoError(t, err)
	})
}

func TestVerifyUserRejections(t *testing.T) {
	idp := tokentest.NewProvider(t)
	remote := token.RemoteKeys(idp.Cache())
	verifier := newVerifier()

	otherKey, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	publicDER, err := x509.MarshalPKIXPublicKey(&idp.PrivateKey.PublicKey)
	require.NoError(t, err)

	expired := idp.UserClaims("user-1")
	expired["exp"] = time.Now().Add(-time.Hour).Unix()

	notYet := idp.UserClaims("user-1")
	notYet["nbf"] = time.Now().Add(time.Hour).Unix()

	noExp := idp.UserClaims("user-1")
	delete(noExp, "exp")

	noName := idp.UserClaims("user-1")
	delete(noName, "name")

	noSub := idp.UserClaims("user-1")
	delete(noSub, "sub")

	badGroups := idp.UserClaims("user-1")
	badGroups["groups"] = "admins"

	header := base64.RawURLEncoding.EncodeToString([]byte(`{"alg":"RS256","kid":"idp-key-1"`))

	tests := []struct {
		name    string
		header  string
		wantErr error
	}{
		{
			name:    "missing scheme",
			header:  idp.UserToken("user-1"),
			wantErr: token.ErrMalformedHeader,
		},
		{
			name:    "wrong scheme",
			header:  "Basic dXNlcjpwYXNz",
			wantErr: token.ErrMalformedHeader,
		},
		{
			name:    "lowercase scheme",
			header:  "bearer " + idp.UserToken("user-1"),
			wantErr: token.ErrMalformedHeader,
		},
		{
			name:    "empty token after scheme",
			header:  "Bearer ",
			wantErr: token.ErrMalformedHeader,
		},
		{
			name:    "not a jwt",
			header:  "Bearer not-a-token",
			wantErr: token.ErrMalformedToken,
		},
		{
			name:    "undecodable header segment",
			header:  "Bearer " + header + ".e30.sig",
			wantErr: token.ErrMalformedToken,
		},
		{
			name: "missing kid with a valid signature",
			header: tokentest.Bearer(idp.SignWith(jwt.SigningMethodRS256, idp.PrivateKey,
				map[string]any{"kid": nil}, idp.UserClaims("user-1"))),
			wantErr: token.ErrMissingKeyID,
		},
		{
			name: "unknown kid",
			header: tokentest.Bearer(idp.SignWith(jwt.SigningMethodRS256, idp.PrivateKey,
				map[string]any{"kid": "rotated-away"}, idp.UserClaims("user-1"))),
			wantErr: token.ErrUnknownKeyID,
		},
		{
			name: "signed by a different key under a known kid",
			header: tokentest.Bearer(idp.SignWith(jwt.SigningMethodRS256, otherKey,
				map[string]any{"kid": idp.KeyID}, idp.UserClaims("user-1"))),
			wantErr: token.ErrInvalid,
		},
		{
			name: "header declares HMAC keyed with the public key",
			header: tokentest.Bearer(idp.SignWith(jwt.SigningMethodHS256, publicDER,
				map[string]any{"kid": idp.KeyID}, idp.UserClaims("user-1"))),
			wantErr: token.ErrInvalid,
		},
		{
			name: "header declares a different RSA algorithm than the key record",
			header: tokentest.Bearer(idp.SignWith(jwt.SigningMethodRS512, idp.PrivateKey,
				map[string]any{"kid": idp.KeyID}, idp.UserClaims("user-1"))),
			wantErr: token.ErrInvalid,
		},
		{
			name: "header declares none",
			header: tokentest.Bearer(idp.SignWith(jwt.SigningMethodNone, jwt.UnsafeAllowNoneSignatureType,
				map[string]any{"kid": idp.KeyID}, idp.UserClaims("user-1"))),
			wantErr: token.ErrInvalid,
		},
		{
			name:    "expired",
			header:  tokentest.Bearer(idp.Sign(expired)),
			wantErr: token.ErrInvalid,
		},
		{
			name:    "not valid yet",
			header:  tokentest.Bearer(idp.Sign(notYet)),
			wantErr: token.ErrInvalid,
		},
		{
			name:    "no expiry",
			header:  tokentest.Bearer(idp.Sign(noExp)),
			wantErr: token.ErrInvalid,
		},
		{
			name:    "signed payload without name",
			header:  tokentest.Bearer(idp.Sign(noName)),
			wantErr: token.ErrMalformedClaims,
		},
		{
			name:    "signed payload without subject",
			header:  tokentest.Bearer(idp.Sign(noSub)),
			wantErr: token.ErrMalformedClaims,
		},
		{
			name:    "groups is not a list",
			header:  tokentest.Bearer(idp.Sign(badGroups)),
			wantErr: token.ErrMalformedClaims,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			claims, err := verifier.VerifyUser(tt.header, remote)
			assert.Nil(t, claims)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestVerifyUserKeySourceState(t *testing.T) {
	idp := tokentest.NewProvider(t)
	verifier := newVerifier()
	header := tokentest.Bearer(idp.UserToken("user-1"))

	t.Run("unpublished cache rejects", func(t *testing.T) {
		_, err := verifier.VerifyUser(header, token.RemoteKeys(jwks.NewCache()))
		assert.ErrorIs(t, err, token.ErrUnknownKeyID)
	})

	t.Run("zero key source rejects", func(t *testing.T) {
		_, err := verifier.VerifyUser(header, token.KeySource{})
		assert.ErrorIs(t, err, token.ErrUnknownKeyID)
	})

	t.Run("single key set still requires kid", func(t *testing.T) {
		noKid := idp.SignWith(jwt.SigningMethodRS256, idp.PrivateKey, map[string]any{"kid": nil}, idp.UserClaims("user-1"))
		_, err := verifier.VerifyUser(tokentest.Bearer(noKid), token.RemoteKeys(idp.Cache()))
		assert.ErrorIs(t, err, token.ErrMissingKeyID)
	})
}
