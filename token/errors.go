package token

import "errors"

// Verification failures. Callers must map all of them to the same
// authentication rejection; the kind is for server-side logs only.
var (
	// ErrMalformedHeader is returned when the Authorization value lacks the expected scheme prefix
	ErrMalformedHeader = errors.New("malformed authorization header")

	// ErrMalformedToken is returned when the token header segment cannot be decoded
	ErrMalformedToken = errors.New("malformed token")

	// ErrMissingKeyID is returned when the token header carries no kid
	ErrMissingKeyID = errors.New("token header has no kid")

	// ErrUnknownKeyID is returned when the kid is not part of the selected key source
	ErrUnknownKeyID = errors.New("unknown kid")

	// ErrInvalid is returned when the signature or a registered claim check fails
	ErrInvalid = errors.New("invalid token")

	// ErrMalformedClaims is returned when a verified payload lacks required claims
	ErrMalformedClaims = errors.New("malformed claims")

	// ErrMissingCredentials is returned by the mandatory gate when no Authorization header is present
	ErrMissingCredentials = errors.New("missing credentials")
)

// ErrSigning is returned when a PIN token cannot be issued, most often because
// the local signing key could not be loaded.
var ErrSigning = errors.New("pin token signing failed")
