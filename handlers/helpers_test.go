package handlers

import (
	"crypto/elliptic"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/keyruu/ruscalimat/middleware"
	"github.com/keyruu/ruscalimat/token"
	"github.com/keyruu/ruscalimat/token/tokentest"
	"github.com/stretchr/testify/require"
)

const testAdminGroup = "nexcalimat-admin"

// testIdentities mints real tokens and verifies them, since claim sets can
// only be produced by the verifier.
type testIdentities struct {
	idp      *tokentest.Provider
	signer   *token.PinSigner
	verifier *token.Verifier
	local    token.KeySource
}

func newTestIdentities(t *testing.T) *testIdentities {
	t.Helper()
	signer := token.NewPinSigner(token.SignerConfig{KeyPath: tokentest.WritePinKey(t, elliptic.P256())})
	pub, err := signer.PublicKey()
	require.NoError(t, err)
	return &testIdentities{
		idp:      tokentest.NewProvider(t),
		signer:   signer,
		verifier: token.NewVerifier(token.VerifierConfig{AdminGroup: testAdminGroup}),
		local:    token.LocalKey(pub),
	}
}

func (ti *testIdentities) user(t *testing.T, subject string, groups ...string) token.Identity {
	t.Helper()
	claims, err := ti.verifier.VerifyUser(tokentest.Bearer(ti.idp.UserToken(subject, groups...)), token.RemoteKeys(ti.idp.Cache()))
	require.NoError(t, err)
	return token.Identity{User: claims}
}

func (ti *testIdentities) pin(t *testing.T, subject string) token.Identity {
	t.Helper()
	issued, err := ti.signer.Issue(subject)
	require.NoError(t, err)
	claims, err := ti.verifier.VerifyPin(issued, ti.local)
	require.NoError(t, err)
	return token.Identity{Pin: claims}
}

func withIdentity(req *http.Request, id token.Identity) *http.Request {
	return req.WithContext(middleware.WithIdentity(req.Context(), id))
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	return body
}
