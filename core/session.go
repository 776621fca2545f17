package core

import "time"

// TokenKind distinguishes the two credentials a session carries.
type TokenKind string

const (
	// KindAccess is the short-lived credential that authorizes requests.
	KindAccess TokenKind = "access"

	// KindRefresh is the long-lived credential used solely to mint new access tokens.
	KindRefresh TokenKind = "refresh"
)

// DeviceInfo describes the client instance making a request.
// Only Origin participates in history matching; the rest is metadata
// supplied by clients and passed through untouched.
type DeviceInfo struct {
	Origin    string `json:"ip"`
	Platform  string `json:"platform,omitempty"`
	UserAgent string `json:"userAgent,omitempty"`
}

// HistoryEntry is one recognized device for a principal, keyed by origin.
// Seen holds the access instants, most recent last.
type HistoryEntry struct {
	Origin string      `json:"ip"`
	Seen   []time.Time `json:"data"`
}

// LastSeen returns the most recent access instant, or the zero time
// for an entry without recorded instants.
func (e HistoryEntry) LastSeen() time.Time {
	if len(e.Seen) == 0 {
		return time.Time{}
	}
	return e.Seen[len(e.Seen)-1]
}

// TokenClaims is the decoded payload of a session token.
type TokenClaims struct {
	Subject   string
	Kind      TokenKind
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// TokenPair is the result of minting a session: a short-lived access
// token, a long-lived refresh token, and a human-readable label for
// the access window ("7 days" or "30 days").
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    string `json:"expires_in"`
}

// VerificationState is the outcome of checking an access token against
// the device history.
type VerificationState int

const (
	// StateValid means the token parsed, the device is recognized, and
	// the history entry was touched.
	StateValid VerificationState = iota

	// StateExpired means the signature is valid but the token is past
	// its window. History is left untouched.
	StateExpired

	// StateInvalid means the token is malformed, fails signature or
	// issuer/audience checks, or the request lacks device information.
	StateInvalid

	// StateUnknownDevice means the token is valid but the presenting
	// origin is not in the principal's history.
	StateUnknownDevice

	// StateError means the decision could not be made because the
	// history store failed. Not an authentication decision.
	StateError
)

// String returns a short tag for logging.
func (s VerificationState) String() string {
	switch s {
	case StateValid:
		return "valid"
	case StateExpired:
		return "expired"
	case StateInvalid:
		return "invalid"
	case StateUnknownDevice:
		return "unknown_device"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

// Verification is the tagged outcome of a session check. Subject and
// Kind are populated only when the token parsed; Err carries the cause
// for StateInvalid and StateError.
type Verification struct {
	State   VerificationState
	Subject string
	Kind    TokenKind
	Err     error
}

// Valid reports whether the check authenticated the request.
func (v Verification) Valid() bool {
	return v.State == StateValid
}
