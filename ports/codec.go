package ports

import (
	"time"

	"github.com/PIYUSH-GIRI23/zipp-clip/core"
)

// Codec mints and parses signed session tokens. Implementations are
// pure: no I/O, safe for concurrent use.
type Codec interface {
	// Mint produces a signed token for the subject with the given kind
	// and validity window.
	Mint(subject string, kind core.TokenKind, window time.Duration) (string, error)

	// MintPair produces a paired access and refresh token. The access
	// window is extended when rememberMe is set; the refresh window is
	// fixed.
	MintPair(subject string, rememberMe bool) (core.TokenPair, error)

	// MintRefresh produces a lone refresh token plus the human label
	// for its window. Used for refresh rotation without issuing a new
	// access token.
	MintRefresh(subject string) (token string, expiresIn string, err error)

	// Parse verifies signature, issuer, and audience, and returns the
	// decoded claims. Expiry is reported as core.ErrTokenExpired,
	// everything else as core.ErrTokenMalformed.
	Parse(token string) (core.TokenClaims, error)

	// DecodeUnsafe extracts claims without verifying signature or
	// expiry, returning nil when the token cannot be decoded at all.
	// It must never be used to authorize an action; its only consumer
	// is targeted history cleanup after a refresh token failed Parse.
	DecodeUnsafe(token string) *core.TokenClaims
}
