package ports

import (
	"context"
	"time"

	"github.com/PIYUSH-GIRI23/zipp-clip/core"
)

// HistoryStore is the per-principal device history: the authority for
// "is this device recognized". Every mutation bumps the principal's
// lastUpdated timestamp together with the entry change; implementations
// must apply both in one commit.
type HistoryStore interface {
	// FindEntry returns the history entry for the origin, or
	// core.ErrUnknownDevice when the principal or origin is absent.
	FindEntry(ctx context.Context, principalID, origin string) (core.HistoryEntry, error)

	// Touch sets the most recent access instant for the origin.
	// Returns core.ErrUnknownDevice when the entry is absent; callers
	// check with FindEntry first.
	Touch(ctx context.Context, principalID, origin string, at time.Time) error

	// Revoke removes the entry for the origin. Idempotent: revoking an
	// absent entry is not an error.
	Revoke(ctx context.Context, principalID, origin string) error

	// Append creates or replaces the entry for the origin with a single
	// access instant. Called at session issue; the verifier and renewal
	// controller never create entries.
	Append(ctx context.Context, principalID, origin string, at time.Time) error
}
