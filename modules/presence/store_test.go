package presence

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis-backed tests require Redis running on localhost:6379 and are skipped otherwise.
const testRedisAddr = "localhost:6379"

func setupRedisStore(t *testing.T) Store {
	t.Helper()

	client := redis.NewClient(&redis.Options{Addr: testRedisAddr})
	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		t.Skipf("Redis not available at %s: %v", testRedisAddr, err)
	}

	prefix := fmt.Sprintf("test:presence:%d:", time.Now().UnixNano())
	t.Cleanup(func() {
		cleanupKeys(ctx, client, prefix+"*")
		client.Close()
	})
	return NewRedisStore(client, prefix, time.Hour)
}

// cleanupKeys removes all keys matching the pattern.
func cleanupKeys(ctx context.Context, client *redis.Client, pattern string) {
	var cursor uint64
	for {
		keys, next, err := client.Scan(ctx, cursor, pattern, 100).Result()
		if err != nil {
			return
		}
		if len(keys) > 0 {
			client.Del(ctx, keys...)
		}
		cursor = next
		if cursor == 0 {
			return
		}
	}
}

// backends runs fn against every Store implementation.
func backends(t *testing.T, fn func(t *testing.T, s Store)) {
	t.Run("memory", func(t *testing.T) { fn(t, NewMemoryStore()) })
	t.Run("redis", func(t *testing.T) { fn(t, setupRedisStore(t)) })
}

func TestStore_RegisterAndGet(t *testing.T) {
	backends(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		now := time.Now().UTC().Truncate(time.Millisecond)

		if _, err := s.Get(ctx, "u1"); !errors.Is(err, ErrNotFound) {
			t.Fatalf("Get() before Register error = %v, want ErrNotFound", err)
		}

		first, err := s.Register(ctx, "u1", "conn-a", now)
		if err != nil {
			t.Fatalf("Register() error = %v", err)
		}
		if first.Status != StatusOnline || first.ConnID != "conn-a" || len(first.Rooms) != 0 {
			t.Errorf("Register() = %+v, want online entry owned by conn-a", first)
		}

		if err := s.AddRoom(ctx, "u1", "conn-a", "job_J42"); err != nil {
			t.Fatalf("AddRoom() error = %v", err)
		}

		// A reconnect overwrites the entry, rooms included.
		second, err := s.Register(ctx, "u1", "conn-b", now.Add(time.Second))
		if err != nil {
			t.Fatalf("Register() again error = %v", err)
		}
		if second.Generation <= first.Generation {
			t.Errorf("Generation = %d, want > %d", second.Generation, first.Generation)
		}

		got, err := s.Get(ctx, "u1")
		if err != nil {
			t.Fatalf("Get() error = %v", err)
		}
		if got.ConnID != "conn-b" || len(got.Rooms) != 0 {
			t.Errorf("Get() = %+v, want fresh entry owned by conn-b", got)
		}
	})
}

func TestStore_Rooms(t *testing.T) {
	backends(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		if _, err := s.Register(ctx, "u1", "conn-a", time.Now()); err != nil {
			t.Fatalf("Register() error = %v", err)
		}

		for _, room := range []string{"job_J42", "job_J17", "job_J42"} {
			if err := s.AddRoom(ctx, "u1", "conn-a", room); err != nil {
				t.Fatalf("AddRoom(%s) error = %v", room, err)
			}
		}
		got, _ := s.Get(ctx, "u1")
		if !slices.Equal(got.Rooms, []string{"job_J42", "job_J17"}) {
			t.Errorf("Rooms = %v, want [job_J42 job_J17]", got.Rooms)
		}

		if err := s.RemoveRoom(ctx, "u1", "conn-a", "job_J42"); err != nil {
			t.Fatalf("RemoveRoom() error = %v", err)
		}
		if err := s.RemoveRoom(ctx, "u1", "conn-a", "job_never"); err != nil {
			t.Fatalf("RemoveRoom(not joined) error = %v", err)
		}
		got, _ = s.Get(ctx, "u1")
		if !slices.Equal(got.Rooms, []string{"job_J17"}) {
			t.Errorf("Rooms = %v, want [job_J17]", got.Rooms)
		}
	})
}

func TestStore_StaleConnection(t *testing.T) {
	backends(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		now := time.Now().UTC().Truncate(time.Millisecond)
		s.Register(ctx, "u1", "old", now)
		s.Register(ctx, "u1", "new", now)

		tests := []struct {
			name string
			op   func() error
		}{
			{"AddRoom", func() error { return s.AddRoom(ctx, "u1", "old", "job_J1") }},
			{"RemoveRoom", func() error { return s.RemoveRoom(ctx, "u1", "old", "job_J1") }},
			{"SetStatus", func() error { return s.SetStatus(ctx, "u1", "old", StatusBusy, now) }},
			{"MarkOffline", func() error { return s.MarkOffline(ctx, "u1", "old", now) }},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				if err := tt.op(); !errors.Is(err, ErrStaleConnection) {
					t.Errorf("%s() error = %v, want ErrStaleConnection", tt.name, err)
				}
			})
		}

		got, _ := s.Get(ctx, "u1")
		if got.Status != StatusOnline || got.ConnID != "new" || len(got.Rooms) != 0 {
			t.Errorf("entry changed by stale connection: %+v", got)
		}

		if err := s.SetStatus(ctx, "missing", "c", StatusAway, now); !errors.Is(err, ErrNotFound) {
			t.Errorf("SetStatus(missing) error = %v, want ErrNotFound", err)
		}
	})
}

func TestStore_StatusAndEvict(t *testing.T) {
	backends(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		now := time.Now().UTC().Truncate(time.Millisecond)

		s.Register(ctx, "online", "c1", now.Add(-48*time.Hour))
		s.Register(ctx, "recent", "c2", now)
		s.Register(ctx, "stale", "c3", now)

		if err := s.SetStatus(ctx, "recent", "c2", StatusAway, now); err != nil {
			t.Fatalf("SetStatus() error = %v", err)
		}
		if err := s.MarkOffline(ctx, "recent", "c2", now); err != nil {
			t.Fatalf("MarkOffline() error = %v", err)
		}
		if err := s.MarkOffline(ctx, "stale", "c3", now.Add(-48*time.Hour)); err != nil {
			t.Fatalf("MarkOffline() error = %v", err)
		}

		got, _ := s.Get(ctx, "recent")
		if got.Status != StatusOffline || !got.LastSeen.Equal(now) {
			t.Errorf("Get(recent) = %+v, want offline at %v", got, now)
		}

		removed, err := s.Evict(ctx, now.Add(-24*time.Hour))
		if err != nil {
			t.Fatalf("Evict() error = %v", err)
		}
		if removed != 1 {
			t.Errorf("Evict() removed = %d, want 1", removed)
		}
		if _, err := s.Get(ctx, "stale"); !errors.Is(err, ErrNotFound) {
			t.Errorf("Get(stale) error = %v, want ErrNotFound", err)
		}
		// Online entries are never evicted, however old.
		if _, err := s.Get(ctx, "online"); err != nil {
			t.Errorf("Get(online) error = %v", err)
		}
	})
}

func TestStore_ChosenOfflineStaysRegistered(t *testing.T) {
	backends(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		now := time.Now().UTC().Truncate(time.Millisecond)
		old := now.Add(-48 * time.Hour)

		s.Register(ctx, "u1", "c1", old)
		if err := s.SetStatus(ctx, "u1", "c1", StatusOffline, old); err != nil {
			t.Fatalf("SetStatus() error = %v", err)
		}

		got, _ := s.Get(ctx, "u1")
		if got.Status != StatusOffline || !got.Connected {
			t.Fatalf("Get(u1) = %+v, want offline and connected", got)
		}
		if rs, ok := s.(*RedisStore); ok {
			ttl, err := rs.client.TTL(ctx, rs.userKey("u1")).Result()
			if err != nil {
				t.Fatalf("TTL() error = %v", err)
			}
			if ttl != -1 {
				t.Errorf("TTL(u1) = %v, want no expiry while connected", ttl)
			}
		}

		removed, err := s.Evict(ctx, now.Add(-24*time.Hour))
		if err != nil {
			t.Fatalf("Evict() error = %v", err)
		}
		if removed != 0 {
			t.Errorf("Evict() removed = %d, want 0", removed)
		}

		if err := s.SetStatus(ctx, "u1", "c1", StatusOnline, now); err != nil {
			t.Errorf("SetStatus(online) error = %v", err)
		}
		if err := s.AddRoom(ctx, "u1", "c1", "job_J1"); err != nil {
			t.Errorf("AddRoom() error = %v", err)
		}

		if err := s.MarkOffline(ctx, "u1", "c1", old); err != nil {
			t.Fatalf("MarkOffline() error = %v", err)
		}
		got, _ = s.Get(ctx, "u1")
		if got.Connected {
			t.Errorf("Get(u1).Connected = true after MarkOffline")
		}
		if removed, _ := s.Evict(ctx, now.Add(-24*time.Hour)); removed != 1 {
			t.Errorf("Evict() after disconnect removed = %d, want 1", removed)
		}
	})
}

func TestMemoryStore_GetReturnsCopy(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	s.Register(ctx, "u1", "c1", time.Now())
	s.AddRoom(ctx, "u1", "c1", "job_J1")

	got, _ := s.Get(ctx, "u1")
	got.Rooms[0] = "mutated"

	again, _ := s.Get(ctx, "u1")
	if again.Rooms[0] != "job_J1" {
		t.Errorf("Rooms[0] = %q, want job_J1", again.Rooms[0])
	}
}

func TestValidStatus(t *testing.T) {
	tests := []struct {
		status string
		want   bool
	}{
		{StatusOnline, true},
		{StatusAway, true},
		{StatusBusy, true},
		{StatusOffline, true},
		{"invisible", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := ValidStatus(tt.status); got != tt.want {
			t.Errorf("ValidStatus(%q) = %v, want %v", tt.status, got, tt.want)
		}
	}
}

func TestEvictInterval(t *testing.T) {
	tests := []struct {
		ttl  time.Duration
		want time.Duration
	}{
		{24 * time.Hour, 6 * time.Hour},
		{2 * time.Minute, time.Minute},
		{8 * time.Minute, 2 * time.Minute},
		{time.Hour, 15 * time.Minute},
		{0, time.Minute},
	}
	for _, tt := range tests {
		if got := evictInterval(tt.ttl); got != tt.want {
			t.Errorf("evictInterval(%v) = %v, want %v", tt.ttl, got, tt.want)
		}
	}
}
