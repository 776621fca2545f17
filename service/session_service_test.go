package service_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PIYUSH-GIRI23/zipp-clip/adapters/store"
	"github.com/PIYUSH-GIRI23/zipp-clip/adapters/tokenizer"
	"github.com/PIYUSH-GIRI23/zipp-clip/core"
	"github.com/PIYUSH-GIRI23/zipp-clip/ports"
	"github.com/PIYUSH-GIRI23/zipp-clip/service"
)

var testDevice = core.DeviceInfo{Origin: "203.0.113.7", Platform: "linux", UserAgent: "test-agent"}

type revokedRecord struct {
	Subject string
	Origin  string
	Reason  string
}

type renewedRecord struct {
	Subject string
	Origin  string
}

// recordingPublisher captures lifecycle events for assertions.
type recordingPublisher struct {
	mu      sync.Mutex
	revoked []revokedRecord
	renewed []renewedRecord
}

func (p *recordingPublisher) PublishRevoked(_ context.Context, subject, origin, reason string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.revoked = append(p.revoked, revokedRecord{Subject: subject, Origin: origin, Reason: reason})
	return nil
}

func (p *recordingPublisher) PublishRenewed(_ context.Context, subject, origin string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.renewed = append(p.renewed, renewedRecord{Subject: subject, Origin: origin})
	return nil
}

func (p *recordingPublisher) revokedEvents() []revokedRecord {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]revokedRecord(nil), p.revoked...)
}

func (p *recordingPublisher) renewedEvents() []renewedRecord {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]renewedRecord(nil), p.renewed...)
}

var _ ports.EventPublisher = (*recordingPublisher)(nil)

// failingStore simulates an unreachable backend on every operation.
type failingStore struct{}

func (failingStore) FindEntry(context.Context, string, string) (core.HistoryEntry, error) {
	return core.HistoryEntry{}, fmt.Errorf("%w: connection refused", core.ErrStoreFailure)
}

func (failingStore) Touch(context.Context, string, string, time.Time) error {
	return fmt.Errorf("%w: connection refused", core.ErrStoreFailure)
}

func (failingStore) Revoke(context.Context, string, string) error {
	return fmt.Errorf("%w: connection refused", core.ErrStoreFailure)
}

func (failingStore) Append(context.Context, string, string, time.Time) error {
	return fmt.Errorf("%w: connection refused", core.ErrStoreFailure)
}

var _ ports.HistoryStore = failingStore{}

// revokeFailingStore delegates to a memory store but refuses revocation.
type revokeFailingStore struct {
	*store.MemoryStore
}

func (s revokeFailingStore) Revoke(context.Context, string, string) error {
	return fmt.Errorf("%w: connection refused", core.ErrStoreFailure)
}

func newTestCodec(t *testing.T) *tokenizer.JWTCodec {
	t.Helper()
	codec, err := tokenizer.NewJWTCodec(tokenizer.Config{Secret: []byte("unit-test-secret")})
	require.NoError(t, err)
	return codec
}

type fixture struct {
	svc    *service.SessionService
	codec  *tokenizer.JWTCodec
	store  *store.MemoryStore
	events *recordingPublisher
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	codec := newTestCodec(t)
	st := store.NewMemoryStore()
	events := &recordingPublisher{}
	svc := service.NewSessionService(codec, st, events, zerolog.Nop())
	return fixture{svc: svc, codec: codec, store: st, events: events}
}

func TestIssueRecordsDeviceAndMintsPair(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	pair, err := f.svc.Issue(ctx, "u1", testDevice, false)
	require.NoError(t, err)
	assert.NotEmpty(t, pair.AccessToken)
	assert.NotEmpty(t, pair.RefreshToken)
	assert.Equal(t, "7 days", pair.ExpiresIn)

	entry, err := f.store.FindEntry(ctx, "u1", testDevice.Origin)
	require.NoError(t, err)
	assert.Len(t, entry.Seen, 1)
}

func TestIssueRejectsEmptyPrincipal(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Issue(context.Background(), "", testDevice, false)
	assert.ErrorIs(t, err, core.ErrInvalidSubject)
}

func TestIssueRejectsMissingDevice(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Issue(context.Background(), "u1", core.DeviceInfo{}, false)
	assert.ErrorIs(t, err, core.ErrDeviceInfoMissing)
}

func TestVerifyValidToken(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	pair, err := f.svc.Issue(ctx, "u1", testDevice, false)
	require.NoError(t, err)

	v := f.svc.Verify(ctx, pair.AccessToken, testDevice)
	assert.Equal(t, core.StateValid, v.State)
	assert.True(t, v.Valid())
	assert.Equal(t, "u1", v.Subject)
	assert.Equal(t, core.KindAccess, v.Kind)
	assert.NoError(t, v.Err)
}

func TestVerifyTouchesLastSeenInPlace(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	pair, err := f.svc.Issue(ctx, "u1", testDevice, false)
	require.NoError(t, err)
	before, err := f.store.FindEntry(ctx, "u1", testDevice.Origin)
	require.NoError(t, err)

	time.Sleep(5 * time.Millisecond)
	v := f.svc.Verify(ctx, pair.AccessToken, testDevice)
	require.Equal(t, core.StateValid, v.State)

	after, err := f.store.FindEntry(ctx, "u1", testDevice.Origin)
	require.NoError(t, err)
	// The most recent instant is overwritten, never appended.
	assert.Len(t, after.Seen, len(before.Seen))
	assert.True(t, after.LastSeen().After(before.LastSeen()))
}

func TestVerifyExpiredTokenSkipsHistory(t *testing.T) {
	codec := newTestCodec(t)
	events := &recordingPublisher{}
	// An expired token must be classified without touching the store at
	// all, so even an unreachable backend cannot change the outcome.
	svc := service.NewSessionService(codec, failingStore{}, events, zerolog.Nop())

	expired, err := codec.Mint("u1", core.KindAccess, -time.Minute)
	require.NoError(t, err)

	v := svc.Verify(context.Background(), expired, testDevice)
	assert.Equal(t, core.StateExpired, v.State)
	assert.ErrorIs(t, v.Err, core.ErrTokenExpired)
}

func TestVerifyUnknownDevice(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	pair, err := f.svc.Issue(ctx, "u1", testDevice, false)
	require.NoError(t, err)

	v := f.svc.Verify(ctx, pair.AccessToken, core.DeviceInfo{Origin: "198.51.100.9"})
	assert.Equal(t, core.StateUnknownDevice, v.State)
	assert.Equal(t, "u1", v.Subject)
	assert.ErrorIs(t, v.Err, core.ErrUnknownDevice)
}

func TestVerifyUnknownPrincipal(t *testing.T) {
	f := newFixture(t)

	token, err := f.codec.Mint("ghost", core.KindAccess, time.Hour)
	require.NoError(t, err)

	v := f.svc.Verify(context.Background(), token, testDevice)
	assert.Equal(t, core.StateUnknownDevice, v.State)
}

func TestVerifyMissingDeviceInfo(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	pair, err := f.svc.Issue(ctx, "u1", testDevice, false)
	require.NoError(t, err)

	v := f.svc.Verify(ctx, pair.AccessToken, core.DeviceInfo{})
	assert.Equal(t, core.StateInvalid, v.State)
	assert.ErrorIs(t, v.Err, core.ErrDeviceInfoMissing)
}

func TestVerifyMalformedToken(t *testing.T) {
	f := newFixture(t)

	v := f.svc.Verify(context.Background(), "not.a.token", testDevice)
	assert.Equal(t, core.StateInvalid, v.State)
	assert.ErrorIs(t, v.Err, core.ErrTokenMalformed)
}

func TestVerifyStoreFailure(t *testing.T) {
	codec := newTestCodec(t)
	svc := service.NewSessionService(codec, failingStore{}, &recordingPublisher{}, zerolog.Nop())

	token, err := codec.Mint("u1", core.KindAccess, time.Hour)
	require.NoError(t, err)

	v := svc.Verify(context.Background(), token, testDevice)
	assert.Equal(t, core.StateError, v.State)
	assert.ErrorIs(t, v.Err, core.ErrStoreFailure)
}

func TestRenewIssuesFreshPair(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	pair, err := f.svc.Issue(ctx, "u1", testDevice, false)
	require.NoError(t, err)

	renewed, err := f.svc.Renew(ctx, pair.RefreshToken, testDevice, false)
	require.NoError(t, err)
	assert.NotEmpty(t, renewed.AccessToken)
	assert.NotEmpty(t, renewed.RefreshToken)
	assert.Equal(t, "7 days", renewed.ExpiresIn)

	// The fresh pair verifies from the same device.
	v := f.svc.Verify(ctx, renewed.AccessToken, testDevice)
	assert.Equal(t, core.StateValid, v.State)

	renewals := f.events.renewedEvents()
	require.Len(t, renewals, 1)
	assert.Equal(t, renewedRecord{Subject: "u1", Origin: testDevice.Origin}, renewals[0])
	assert.Empty(t, f.events.revokedEvents())
}

func TestRenewRememberMeExtendsWindow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	pair, err := f.svc.Issue(ctx, "u1", testDevice, false)
	require.NoError(t, err)

	renewed, err := f.svc.Renew(ctx, pair.RefreshToken, testDevice, true)
	require.NoError(t, err)
	assert.Equal(t, "30 days", renewed.ExpiresIn)
}

func TestRenewExpiredRefreshRevokesSession(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Issue(ctx, "u1", testDevice, false)
	require.NoError(t, err)

	expired, err := f.codec.Mint("u1", core.KindRefresh, -time.Minute)
	require.NoError(t, err)

	_, err = f.svc.Renew(ctx, expired, testDevice, false)
	assert.ErrorIs(t, err, core.ErrSessionRevoked)

	// The device's history entry is gone; the valid-looking access
	// token from the original login is now rejected too.
	_, err = f.store.FindEntry(ctx, "u1", testDevice.Origin)
	assert.ErrorIs(t, err, core.ErrUnknownDevice)

	revocations := f.events.revokedEvents()
	require.Len(t, revocations, 1)
	assert.Equal(t, revokedRecord{Subject: "u1", Origin: testDevice.Origin, Reason: "expired"}, revocations[0])
}

func TestRenewForeignTokenRevokesViaUnsafeDecode(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Issue(ctx, "u1", testDevice, false)
	require.NoError(t, err)

	// Signed with a different secret: full parsing fails, but the
	// subject is still recoverable for targeted cleanup.
	foreign, err := tokenizer.NewJWTCodec(tokenizer.Config{Secret: []byte("other-secret")})
	require.NoError(t, err)
	forged, err := foreign.Mint("u1", core.KindRefresh, time.Hour)
	require.NoError(t, err)

	_, err = f.svc.Renew(ctx, forged, testDevice, false)
	assert.ErrorIs(t, err, core.ErrSessionRevoked)

	_, err = f.store.FindEntry(ctx, "u1", testDevice.Origin)
	assert.ErrorIs(t, err, core.ErrUnknownDevice)
}

func TestRenewGarbageTokenRevokesNothing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Issue(ctx, "u1", testDevice, false)
	require.NoError(t, err)

	_, err = f.svc.Renew(ctx, "garbage", testDevice, false)
	assert.ErrorIs(t, err, core.ErrSessionRevoked)

	// No subject could be recovered, so no entry was removed.
	_, err = f.store.FindEntry(ctx, "u1", testDevice.Origin)
	assert.NoError(t, err)
	assert.Empty(t, f.events.revokedEvents())
}

func TestRenewWrongKindDoesNotRevoke(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	pair, err := f.svc.Issue(ctx, "u1", testDevice, false)
	require.NoError(t, err)

	_, err = f.svc.Renew(ctx, pair.AccessToken, testDevice, false)
	assert.ErrorIs(t, err, core.ErrWrongTokenKind)

	_, err = f.store.FindEntry(ctx, "u1", testDevice.Origin)
	assert.NoError(t, err)
	assert.Empty(t, f.events.revokedEvents())
}

func TestRenewStoreFailureIsNotRevocation(t *testing.T) {
	codec := newTestCodec(t)
	events := &recordingPublisher{}
	svc := service.NewSessionService(codec, failingStore{}, events, zerolog.Nop())

	refresh, err := codec.Mint("u1", core.KindRefresh, time.Hour)
	require.NoError(t, err)

	_, err = svc.Renew(context.Background(), refresh, testDevice, false)
	assert.ErrorIs(t, err, core.ErrStoreFailure)
	assert.NotErrorIs(t, err, core.ErrSessionRevoked)
	assert.Empty(t, events.revokedEvents())
}

func TestRenewCleanupFailureStillFails(t *testing.T) {
	codec := newTestCodec(t)
	mem := store.NewMemoryStore()
	events := &recordingPublisher{}
	svc := service.NewSessionService(codec, revokeFailingStore{mem}, events, zerolog.Nop())

	ctx := context.Background()
	_, err := svc.Issue(ctx, "u1", testDevice, false)
	require.NoError(t, err)

	expired, err := codec.Mint("u1", core.KindRefresh, -time.Minute)
	require.NoError(t, err)

	// Cleanup is best-effort: even when the revoke itself fails, the
	// caller still sees the session as revoked.
	_, err = svc.Renew(ctx, expired, testDevice, false)
	assert.ErrorIs(t, err, core.ErrSessionRevoked)
	assert.Empty(t, events.revokedEvents())
}

func TestRenewRejectsEmptyToken(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Renew(context.Background(), "", testDevice, false)
	assert.ErrorIs(t, err, core.ErrTokenMalformed)
}

func TestRenewRejectsMissingDevice(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	pair, err := f.svc.Issue(ctx, "u1", testDevice, false)
	require.NoError(t, err)

	_, err = f.svc.Renew(ctx, pair.RefreshToken, core.DeviceInfo{}, false)
	assert.ErrorIs(t, err, core.ErrDeviceInfoMissing)

	// Rejected before verification, so the history entry survives.
	_, err = f.store.FindEntry(ctx, "u1", testDevice.Origin)
	assert.NoError(t, err)
}

func TestRenewRefreshOnlyRotatesToken(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	pair, err := f.svc.Issue(ctx, "u1", testDevice, false)
	require.NoError(t, err)

	rotated, expiresIn, err := f.svc.RenewRefreshOnly(ctx, pair.RefreshToken, testDevice)
	require.NoError(t, err)
	assert.NotEmpty(t, rotated)
	assert.Equal(t, "90 days", expiresIn)
}

func TestRenewRefreshOnlyNeverRevokes(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Issue(ctx, "u1", testDevice, false)
	require.NoError(t, err)

	expired, err := f.codec.Mint("u1", core.KindRefresh, -time.Minute)
	require.NoError(t, err)

	_, _, err = f.svc.RenewRefreshOnly(ctx, expired, testDevice)
	assert.ErrorIs(t, err, core.ErrTokenExpired)

	_, err = f.store.FindEntry(ctx, "u1", testDevice.Origin)
	assert.NoError(t, err)
	assert.Empty(t, f.events.revokedEvents())
}

func TestRenewRefreshOnlyUnknownDevice(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	pair, err := f.svc.Issue(ctx, "u1", testDevice, false)
	require.NoError(t, err)

	_, _, err = f.svc.RenewRefreshOnly(ctx, pair.RefreshToken, core.DeviceInfo{Origin: "198.51.100.9"})
	assert.ErrorIs(t, err, core.ErrUnknownDevice)
}

func TestRenewRefreshOnlyWrongKind(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	pair, err := f.svc.Issue(ctx, "u1", testDevice, false)
	require.NoError(t, err)

	_, _, err = f.svc.RenewRefreshOnly(ctx, pair.AccessToken, testDevice)
	assert.ErrorIs(t, err, core.ErrWrongTokenKind)
}

func TestRevokedSessionRequiresNewLogin(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	pair, err := f.svc.Issue(ctx, "u1", testDevice, false)
	require.NoError(t, err)

	expired, err := f.codec.Mint("u1", core.KindRefresh, -time.Minute)
	require.NoError(t, err)
	_, err = f.svc.Renew(ctx, expired, testDevice, false)
	require.ErrorIs(t, err, core.ErrSessionRevoked)

	// Even the still-unexpired refresh token is useless now.
	_, err = f.svc.Renew(ctx, pair.RefreshToken, testDevice, false)
	assert.ErrorIs(t, err, core.ErrSessionRevoked)

	// A fresh login restores access for the device.
	fresh, err := f.svc.Issue(ctx, "u1", testDevice, false)
	require.NoError(t, err)
	v := f.svc.Verify(ctx, fresh.AccessToken, testDevice)
	assert.Equal(t, core.StateValid, v.State)
}

func TestVerifyConcurrentSameOrigin(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	pair, err := f.svc.Issue(ctx, "u1", testDevice, false)
	require.NoError(t, err)

	// Every racing touch stamps an instant at or after this point.
	start := time.Now()

	var wg sync.WaitGroup
	results := make([]core.Verification, 16)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = f.svc.Verify(ctx, pair.AccessToken, testDevice)
		}(i)
	}
	wg.Wait()

	for _, v := range results {
		assert.Equal(t, core.StateValid, v.State)
	}

	// The winning writer overwrote the single instant with one of the
	// racing touches, so the stored value is no older than start.
	entry, err := f.store.FindEntry(ctx, "u1", testDevice.Origin)
	require.NoError(t, err)
	assert.Len(t, entry.Seen, 1)
	assert.False(t, entry.LastSeen().Before(start))
}

func TestVerifyAfterConcurrentRevocation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	pair, err := f.svc.Issue(ctx, "u1", testDevice, false)
	require.NoError(t, err)
	require.NoError(t, f.store.Revoke(ctx, "u1", testDevice.Origin))

	v := f.svc.Verify(ctx, pair.AccessToken, testDevice)
	assert.Equal(t, core.StateUnknownDevice, v.State)
	assert.False(t, errors.Is(v.Err, core.ErrStoreFailure))
}
