package presence

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const maxTxRetries = 5

// RedisStore is a Store shared by every server process through Redis. Each entry is a JSON
// value under <prefix>user:<userID>; ownership checks run inside WATCH/MULTI transactions.
type RedisStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

var _ Store = (*RedisStore)(nil)

// NewRedisStore creates a RedisStore. Entries of closed connections expire after ttl.
func NewRedisStore(client *redis.Client, prefix string, ttl time.Duration) *RedisStore {
	return &RedisStore{
		client: client,
		prefix: prefix,
		ttl:    ttl,
	}
}

func (s *RedisStore) userKey(userID string) string {
	return s.prefix + "user:" + userID
}

func (s *RedisStore) generationKey() string {
	return s.prefix + "generation"
}

// Register implements Store.
func (s *RedisStore) Register(ctx context.Context, userID, connID string, at time.Time) (Entry, error) {
	gen, err := s.client.Incr(ctx, s.generationKey()).Uint64()
	if err != nil {
		return Entry{}, fmt.Errorf("presence generation: %w", err)
	}

	e := Entry{
		UserID:     userID,
		ConnID:     connID,
		Generation: gen,
		Status:     StatusOnline,
		Connected:  true,
		LastSeen:   at,
		Rooms:      []string{},
	}
	data, err := json.Marshal(e)
	if err != nil {
		return Entry{}, err
	}
	// Live entries never expire.
	if err := s.client.Set(ctx, s.userKey(userID), data, 0).Err(); err != nil {
		return Entry{}, fmt.Errorf("presence register: %w", err)
	}
	return e, nil
}

// Get implements Store.
func (s *RedisStore) Get(ctx context.Context, userID string) (Entry, error) {
	data, err := s.client.Get(ctx, s.userKey(userID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return Entry{}, ErrNotFound
		}
		return Entry{}, fmt.Errorf("presence get: %w", err)
	}
	var e Entry
	if err := json.Unmarshal(data, &e); err != nil {
		return Entry{}, fmt.Errorf("presence decode: %w", err)
	}
	return e, nil
}

// AddRoom implements Store.
func (s *RedisStore) AddRoom(ctx context.Context, userID, connID, room string) error {
	return s.update(ctx, userID, connID, addRoom(room), 0)
}

// RemoveRoom implements Store.
func (s *RedisStore) RemoveRoom(ctx context.Context, userID, connID, room string) error {
	return s.update(ctx, userID, connID, removeRoom(room), 0)
}

// SetStatus implements Store.
func (s *RedisStore) SetStatus(ctx context.Context, userID, connID, status string, at time.Time) error {
	return s.update(ctx, userID, connID, setStatus(status, at), 0)
}

// MarkOffline implements Store.
func (s *RedisStore) MarkOffline(ctx context.Context, userID, connID string, at time.Time) error {
	return s.update(ctx, userID, connID, disconnect(at), s.ttl)
}

// Evict implements Store. Disconnected entries normally expire on their own; this sweeps
// entries written without a TTL.
func (s *RedisStore) Evict(ctx context.Context, cutoff time.Time) (int, error) {
	removed := 0
	var cursor uint64
	for {
		keys, next, err := s.client.Scan(ctx, cursor, s.prefix+"user:*", 100).Result()
		if err != nil {
			return removed, fmt.Errorf("presence scan: %w", err)
		}
		for _, key := range keys {
			ok, err := s.evictKey(ctx, key, cutoff)
			if err != nil {
				return removed, err
			}
			if ok {
				removed++
			}
		}
		cursor = next
		if cursor == 0 {
			return removed, nil
		}
	}
}

func (s *RedisStore) evictKey(ctx context.Context, key string, cutoff time.Time) (bool, error) {
	evicted := false
	txf := func(tx *redis.Tx) error {
		evicted = false
		data, err := tx.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			return nil
		}
		if err != nil {
			return err
		}
		var e Entry
		if err := json.Unmarshal(data, &e); err != nil {
			return err
		}
		if !e.Evictable(cutoff) {
			return nil
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Del(ctx, key)
			return nil
		})
		if err == nil {
			evicted = true
		}
		return err
	}
	if err := s.watch(ctx, txf, key); err != nil {
		return false, fmt.Errorf("presence evict: %w", err)
	}
	return evicted, nil
}

// update applies fn when connID still owns the entry. A ttl of zero persists the entry.
func (s *RedisStore) update(ctx context.Context, userID, connID string, fn mutation, ttl time.Duration) error {
	key := s.userKey(userID)
	txf := func(tx *redis.Tx) error {
		data, err := tx.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		var e Entry
		if err := json.Unmarshal(data, &e); err != nil {
			return err
		}
		if e.ConnID != connID {
			return ErrStaleConnection
		}
		fn(&e)
		out, err := json.Marshal(e)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, out, ttl)
			return nil
		})
		return err
	}
	return s.watch(ctx, txf, key)
}

func (s *RedisStore) watch(ctx context.Context, txf func(*redis.Tx) error, key string) error {
	for i := 0; i < maxTxRetries; i++ {
		err := s.client.Watch(ctx, txf, key)
		if !errors.Is(err, redis.TxFailedErr) {
			return err
		}
	}
	return fmt.Errorf("presence update of %s: too much contention", key)
}
