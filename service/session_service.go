package service

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/PIYUSH-GIRI23/zipp-clip/core"
	"github.com/PIYUSH-GIRI23/zipp-clip/ports"
)

// SessionService is the token lifecycle and device-binding session
// manager. It verifies presented tokens against the per-principal
// device history, renews expired sessions, and revokes the device's
// history entry when a renewal attempt fails.
//
// It holds no mutable state of its own; all state lives behind the
// HistoryStore, so two concurrent requests only interact through the
// store's own consistency rules.
type SessionService struct {
	codec  ports.Codec
	store  ports.HistoryStore
	events ports.EventPublisher
	log    zerolog.Logger
}

// NewSessionService creates a session service. events may be nil when
// no cross-instance notification is wired.
func NewSessionService(codec ports.Codec, store ports.HistoryStore, events ports.EventPublisher, log zerolog.Logger) *SessionService {
	return &SessionService{
		codec:  codec,
		store:  store,
		events: events,
		log:    log.With().Str("component", "session").Logger(),
	}
}

// Verify checks a presented token against the device history and
// returns a tagged outcome; it never returns an error for expected
// authentication conditions.
//
// A stolen token presented from an origin outside the principal's
// history is rejected here even before its expiry. Every access check
// must go through this path: the system's only revocation mechanism is
// removing the history entry, so bypassing the history lookup would
// silently resurrect revoked sessions.
func (s *SessionService) Verify(ctx context.Context, token string, device core.DeviceInfo) core.Verification {
	claims, err := s.codec.Parse(token)
	if err != nil {
		if errors.Is(err, core.ErrTokenExpired) {
			// Stop before the history lookup: expiry is decided by the
			// token alone and must not refresh last-seen.
			return core.Verification{State: core.StateExpired, Err: err}
		}
		return core.Verification{State: core.StateInvalid, Err: err}
	}

	if device.Origin == "" {
		return core.Verification{
			State:   core.StateInvalid,
			Subject: claims.Subject,
			Kind:    claims.Kind,
			Err:     core.ErrDeviceInfoMissing,
		}
	}

	if _, err := s.store.FindEntry(ctx, claims.Subject, device.Origin); err != nil {
		return s.storeOutcome(claims, err)
	}

	if err := s.store.Touch(ctx, claims.Subject, device.Origin, time.Now()); err != nil {
		// The entry can vanish between FindEntry and Touch when a
		// concurrent renewal failure revokes it; treat that the same
		// as never having found it.
		return s.storeOutcome(claims, err)
	}

	return core.Verification{
		State:   core.StateValid,
		Subject: claims.Subject,
		Kind:    claims.Kind,
	}
}

func (s *SessionService) storeOutcome(claims core.TokenClaims, err error) core.Verification {
	if errors.Is(err, core.ErrUnknownDevice) {
		return core.Verification{
			State:   core.StateUnknownDevice,
			Subject: claims.Subject,
			Kind:    claims.Kind,
			Err:     err,
		}
	}
	return core.Verification{
		State:   core.StateError,
		Subject: claims.Subject,
		Kind:    claims.Kind,
		Err:     err,
	}
}

// Renew exchanges a refresh token for a fresh access/refresh pair.
// When the refresh token fails verification for any authentication
// reason, the device's history entry is removed and the call fails
// with core.ErrSessionRevoked: this is the system's only path to
// explicit invalidation of a compromised or stale session.
func (s *SessionService) Renew(ctx context.Context, refreshToken string, device core.DeviceInfo, rememberMe bool) (core.TokenPair, error) {
	if refreshToken == "" {
		return core.TokenPair{}, core.ErrTokenMalformed
	}
	if device.Origin == "" {
		return core.TokenPair{}, core.ErrDeviceInfoMissing
	}

	// Recover a subject up front so cleanup can still target the right
	// principal after full parsing fails. Never used for authorization.
	decoded := s.codec.DecodeUnsafe(refreshToken)

	v := s.Verify(ctx, refreshToken, device)
	switch v.State {
	case core.StateValid:
	case core.StateError:
		// Store unavailability is retryable, not an authentication
		// decision; do not revoke on it.
		return core.TokenPair{}, v.Err
	default:
		s.revokeAfterFailedRenewal(ctx, decoded, v, device)
		return core.TokenPair{}, core.ErrSessionRevoked
	}

	if v.Kind != core.KindRefresh {
		return core.TokenPair{}, core.ErrWrongTokenKind
	}

	pair, err := s.codec.MintPair(v.Subject, rememberMe)
	if err != nil {
		return core.TokenPair{}, err
	}

	if s.events != nil {
		if err := s.events.PublishRenewed(ctx, v.Subject, device.Origin); err != nil {
			s.log.Warn().Err(err).Str("subject", v.Subject).Msg("failed to publish renewal event")
		}
	}

	return pair, nil
}

// RenewRefreshOnly rotates the refresh token without issuing a fresh
// access token, for long-lived-session extension. Unlike Renew, a
// failed verification here does not revoke the history entry.
func (s *SessionService) RenewRefreshOnly(ctx context.Context, refreshToken string, device core.DeviceInfo) (string, string, error) {
	if refreshToken == "" {
		return "", "", core.ErrTokenMalformed
	}
	if device.Origin == "" {
		return "", "", core.ErrDeviceInfoMissing
	}

	v := s.Verify(ctx, refreshToken, device)
	switch v.State {
	case core.StateValid:
	case core.StateExpired:
		return "", "", core.ErrTokenExpired
	case core.StateUnknownDevice:
		return "", "", core.ErrUnknownDevice
	default:
		return "", "", v.Err
	}

	if v.Kind != core.KindRefresh {
		return "", "", core.ErrWrongTokenKind
	}

	return s.codec.MintRefresh(v.Subject)
}

// Issue mints a token pair for a principal that has already been
// authenticated upstream, and records the device in the principal's
// history. This is the login collaborator's entry point; Verify and
// Renew never create history entries.
func (s *SessionService) Issue(ctx context.Context, principalID string, device core.DeviceInfo, rememberMe bool) (core.TokenPair, error) {
	if principalID == "" {
		return core.TokenPair{}, core.ErrInvalidSubject
	}
	if device.Origin == "" {
		return core.TokenPair{}, core.ErrDeviceInfoMissing
	}

	if err := s.store.Append(ctx, principalID, device.Origin, time.Now()); err != nil {
		return core.TokenPair{}, err
	}

	return s.codec.MintPair(principalID, rememberMe)
}

// revokeAfterFailedRenewal removes the device's history entry,
// preferring the verified subject and falling back to the unverified
// decode when parsing failed. Best-effort: a cleanup failure is logged
// and the original authentication failure still surfaces.
func (s *SessionService) revokeAfterFailedRenewal(ctx context.Context, decoded *core.TokenClaims, v core.Verification, device core.DeviceInfo) {
	subject := v.Subject
	if subject == "" && decoded != nil {
		subject = decoded.Subject
	}
	if subject == "" {
		return
	}

	if err := s.store.Revoke(ctx, subject, device.Origin); err != nil {
		s.log.Warn().Err(err).
			Str("subject", subject).
			Str("origin", device.Origin).
			Msg("failed to revoke history entry after failed renewal")
		return
	}

	s.log.Info().
		Str("subject", subject).
		Str("origin", device.Origin).
		Str("reason", v.State.String()).
		Msg("session revoked after failed renewal")

	if s.events != nil {
		if err := s.events.PublishRevoked(ctx, subject, device.Origin, v.State.String()); err != nil {
			s.log.Warn().Err(err).Str("subject", subject).Msg("failed to publish revocation event")
		}
	}
}
