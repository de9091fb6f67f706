package presence

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/helper"
	"github.com/go-monolith/mono/pkg/types"
	"github.com/redis/go-redis/v9"
)

// Backends selectable with NewModule.
const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
)

// ServiceGetPresence returns the presence entry of a user.
const ServiceGetPresence = "get-presence"

const minEvictInterval = time.Minute

// GetPresenceRequest is the request for get-presence.
type GetPresenceRequest struct {
	UserID string `json:"user_id"`
}

// GetPresenceResponse is the response for get-presence.
type GetPresenceResponse struct {
	Found bool   `json:"found"`
	Entry *Entry `json:"entry,omitempty"`
}

// Module owns the presence registry and evicts stale offline entries.
type Module struct {
	backend string
	client  *redis.Client
	store   Store
	ttl     time.Duration
	logger  types.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// Compile-time interface checks.
var _ mono.Module = (*Module)(nil)
var _ mono.ServiceProviderModule = (*Module)(nil)
var _ mono.HealthCheckableModule = (*Module)(nil)

// NewModule creates a presence module. The Redis client is created here but only
// contacted on Start, so Store can be injected into other modules before the app starts.
func NewModule(backend, redisAddr, redisPassword string, ttl time.Duration, logger types.Logger) *Module {
	m := &Module{
		backend: backend,
		ttl:     ttl,
		logger:  logger,
	}
	if backend == BackendRedis {
		m.client = redis.NewClient(&redis.Options{
			Addr:         redisAddr,
			Password:     redisPassword,
			PoolSize:     50,
			MinIdleConns: 5,
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
		})
		m.store = NewRedisStore(m.client, "presence:", ttl)
	} else {
		m.backend = BackendMemory
		m.store = NewMemoryStore()
	}
	return m
}

// Name returns the module name.
func (m *Module) Name() string {
	return "presence"
}

// Store returns the registry.
func (m *Module) Store() Store {
	return m.store
}

// Start checks the backend and starts the eviction loop.
func (m *Module) Start(ctx context.Context) error {
	if m.client != nil {
		if err := m.client.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("failed to connect to Redis: %w", err)
		}
	}

	loopCtx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel
	m.wg.Add(1)
	go m.evictLoop(loopCtx, evictInterval(m.ttl))

	m.logger.Info("Presence module started", "backend", m.backend, "ttl", m.ttl.String())
	return nil
}

// Stop stops the eviction loop and closes the Redis connection.
func (m *Module) Stop(_ context.Context) error {
	if m.cancel != nil {
		m.cancel()
		m.wg.Wait()
	}
	if m.client != nil {
		if err := m.client.Close(); err != nil {
			return fmt.Errorf("failed to close Redis connection: %w", err)
		}
	}
	m.logger.Info("Presence module stopped")
	return nil
}

// Health returns the health status of the module.
func (m *Module) Health(ctx context.Context) mono.HealthStatus {
	details := map[string]any{"backend": m.backend}
	if mem, ok := m.store.(*MemoryStore); ok {
		details["entries"] = mem.Len()
	}
	if m.client != nil {
		if err := m.client.Ping(ctx).Err(); err != nil {
			return mono.HealthStatus{
				Healthy: false,
				Message: fmt.Sprintf("redis ping failed: %v", err),
				Details: details,
			}
		}
	}
	return mono.HealthStatus{Healthy: true, Message: "operational", Details: details}
}

// RegisterServices registers request-reply services in the service container.
func (m *Module) RegisterServices(container mono.ServiceContainer) error {
	if err := helper.RegisterTypedRequestReplyService(
		container,
		ServiceGetPresence,
		json.Unmarshal,
		json.Marshal,
		m.getPresence,
	); err != nil {
		return fmt.Errorf("failed to register %s service: %w", ServiceGetPresence, err)
	}
	return nil
}

func (m *Module) getPresence(ctx context.Context, req GetPresenceRequest, _ *mono.Msg) (GetPresenceResponse, error) {
	e, err := m.store.Get(ctx, req.UserID)
	if errors.Is(err, ErrNotFound) {
		return GetPresenceResponse{Found: false}, nil
	}
	if err != nil {
		return GetPresenceResponse{}, err
	}
	return GetPresenceResponse{Found: true, Entry: &e}, nil
}

func (m *Module) evictLoop(ctx context.Context, interval time.Duration) {
	defer m.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			removed, err := m.store.Evict(ctx, now.Add(-m.ttl))
			if err != nil {
				m.logger.Warn("Presence eviction failed", "error", err)
				continue
			}
			if removed > 0 {
				m.logger.Debug("Evicted offline presence entries", "count", removed)
			}
		}
	}
}

// evictInterval sweeps four times per TTL, but never more often than once a minute.
func evictInterval(ttl time.Duration) time.Duration {
	if interval := ttl / 4; interval > minEvictInterval {
		return interval
	}
	return minEvictInterval
}
