package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/PIYUSH-GIRI23/zipp-clip/core"
	"github.com/PIYUSH-GIRI23/zipp-clip/ports"
)

const (
	keyPrefix         = "auth:principal:"
	originFieldPrefix = "origin:"
	lastUpdatedField  = "lastUpdated"
)

// RedisStore implements the HistoryStore interface on one redis hash
// per principal. Each recognized origin is a hash field holding the
// JSON-encoded access instants; the principal-level lastUpdated
// timestamp is a sibling field in the same hash, so both commit in a
// single HSET or one MULTI/EXEC pipeline.
type RedisStore struct {
	client redis.UniversalClient
}

// NewRedisStore creates a store on an existing redis client. The
// client is shared with the event publisher, so the store does not
// own its lifecycle.
func NewRedisStore(client redis.UniversalClient) *RedisStore {
	return &RedisStore{client: client}
}

var _ ports.HistoryStore = (*RedisStore)(nil)

// FindEntry returns the entry for the origin, or core.ErrUnknownDevice.
func (s *RedisStore) FindEntry(ctx context.Context, principalID, origin string) (core.HistoryEntry, error) {
	raw, err := s.client.HGet(ctx, principalKey(principalID), originField(origin)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return core.HistoryEntry{}, core.ErrUnknownDevice
		}
		return core.HistoryEntry{}, storeFailure(err)
	}
	return decodeEntry(origin, raw)
}

// Touch overwrites the most recent access instant for the origin. The
// entry rewrite and the lastUpdated bump are one HSET, so a reader
// never sees one applied without the other.
func (s *RedisStore) Touch(ctx context.Context, principalID, origin string, at time.Time) error {
	key := principalKey(principalID)

	raw, err := s.client.HGet(ctx, key, originField(origin)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return core.ErrUnknownDevice
		}
		return storeFailure(err)
	}

	entry, err := decodeEntry(origin, raw)
	if err != nil {
		return err
	}
	if len(entry.Seen) == 0 {
		entry.Seen = []time.Time{at}
	} else {
		entry.Seen[len(entry.Seen)-1] = at
	}

	// Concurrent touches on the same origin are last-writer-wins; the
	// timestamp only signals recent activity, so no WATCH is needed.
	if err := s.client.HSet(ctx, key,
		originField(origin), encodeEntry(entry),
		lastUpdatedField, strconv.FormatInt(at.UnixMilli(), 10),
	).Err(); err != nil {
		return storeFailure(err)
	}
	return nil
}

// Revoke removes the entry for the origin and bumps lastUpdated in one
// MULTI/EXEC pipeline. Idempotent: an absent entry is not an error.
func (s *RedisStore) Revoke(ctx context.Context, principalID, origin string) error {
	key := principalKey(principalID)

	exists, err := s.client.HExists(ctx, key, originField(origin)).Result()
	if err != nil {
		return storeFailure(err)
	}
	if !exists {
		// Nothing to remove. Writing lastUpdated anyway would
		// materialize a hash for a principal that was never recorded.
		return nil
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HDel(ctx, key, originField(origin))
		pipe.HSet(ctx, key, lastUpdatedField, strconv.FormatInt(time.Now().UnixMilli(), 10))
		return nil
	})
	if err != nil {
		return storeFailure(err)
	}
	return nil
}

// Append creates or replaces the entry for the origin with a single
// access instant.
func (s *RedisStore) Append(ctx context.Context, principalID, origin string, at time.Time) error {
	entry := core.HistoryEntry{Origin: origin, Seen: []time.Time{at}}
	if err := s.client.HSet(ctx, principalKey(principalID),
		originField(origin), encodeEntry(entry),
		lastUpdatedField, strconv.FormatInt(at.UnixMilli(), 10),
	).Err(); err != nil {
		return storeFailure(err)
	}
	return nil
}

// LastUpdated returns the principal-level lastUpdated timestamp, or the
// zero time when the principal has never been written.
func (s *RedisStore) LastUpdated(ctx context.Context, principalID string) (time.Time, error) {
	raw, err := s.client.HGet(ctx, principalKey(principalID), lastUpdatedField).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return time.Time{}, nil
		}
		return time.Time{}, storeFailure(err)
	}
	millis, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return time.Time{}, storeFailure(err)
	}
	return time.UnixMilli(millis), nil
}

func principalKey(principalID string) string {
	return keyPrefix + principalID
}

func originField(origin string) string {
	return originFieldPrefix + origin
}

// Instants are stored as unix milliseconds, matching what earlier
// deployments wrote, so history survives upgrades.
func encodeEntry(entry core.HistoryEntry) string {
	millis := make([]int64, len(entry.Seen))
	for i, t := range entry.Seen {
		millis[i] = t.UnixMilli()
	}
	raw, _ := json.Marshal(millis)
	return string(raw)
}

func decodeEntry(origin, raw string) (core.HistoryEntry, error) {
	var millis []int64
	if err := json.Unmarshal([]byte(raw), &millis); err != nil {
		return core.HistoryEntry{}, storeFailure(err)
	}
	seen := make([]time.Time, len(millis))
	for i, m := range millis {
		seen[i] = time.UnixMilli(m)
	}
	return core.HistoryEntry{Origin: origin, Seen: seen}, nil
}

func storeFailure(err error) error {
	return fmt.Errorf("%w: %v", core.ErrStoreFailure, err)
}
