package core

import "errors"

var (
	// ErrTokenExpired is returned when a token has a valid signature but is past its window.
	ErrTokenExpired = errors.New("token has expired")

	// ErrTokenMalformed is returned when a token fails structural, signature,
	// or issuer/audience checks.
	ErrTokenMalformed = errors.New("invalid token")

	// ErrInvalidSubject is returned when a token is minted for an empty subject.
	ErrInvalidSubject = errors.New("subject is required for token generation")

	// ErrWrongTokenKind is returned when a token of one kind is presented
	// where the other is required.
	ErrWrongTokenKind = errors.New("invalid token type - refresh token required")

	// ErrUnknownDevice is returned when the presenting origin has no entry
	// in the principal's device history.
	ErrUnknownDevice = errors.New("unknown device or session expired")

	// ErrDeviceInfoMissing is returned when a request carries no device origin.
	ErrDeviceInfoMissing = errors.New("device information missing")

	// ErrSessionRevoked is returned when a renewal attempt failed and the
	// device's history entry was removed.
	ErrSessionRevoked = errors.New("session revoked")

	// ErrStoreFailure is returned when the history store is unavailable.
	// This is the only request-fatal condition; it is never an
	// authentication decision.
	ErrStoreFailure = errors.New("store operation failed")
)
