package realtime

import (
	"context"
	"fmt"
	"time"

	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/types"
	"github.com/tasklink/chat-server/events"
	"github.com/tasklink/chat-server/modules/auth"
	"github.com/tasklink/chat-server/modules/notification"
	"github.com/tasklink/chat-server/modules/presence"
	"github.com/tasklink/chat-server/modules/store"
)

// Module runs the session manager and the heartbeat.
type Module struct {
	manager   *Manager
	heartbeat time.Duration
	logger    types.Logger
	cancelHub context.CancelFunc
}

// Compile-time interface checks.
var _ mono.Module = (*Module)(nil)
var _ mono.DependentModule = (*Module)(nil)
var _ mono.EventBusAwareModule = (*Module)(nil)
var _ mono.EventEmitterModule = (*Module)(nil)
var _ mono.HealthCheckableModule = (*Module)(nil)

// NewModule creates a new realtime module. The presence store is set with SetPresenceStore.
func NewModule(heartbeat time.Duration, opts Options, logger types.Logger) *Module {
	return &Module{
		manager:   NewManager(NewHub(logger), nil, nil, nil, nil, opts, logger),
		heartbeat: heartbeat,
		logger:    logger,
	}
}

// Name returns the module name.
func (m *Module) Name() string {
	return "realtime"
}

// Dependencies returns the list of module dependencies.
func (m *Module) Dependencies() []string {
	return []string{"auth", "store"}
}

// SetDependencyServiceContainer receives service containers from dependencies.
func (m *Module) SetDependencyServiceContainer(dependency string, container mono.ServiceContainer) {
	switch dependency {
	case "auth":
		m.manager.verifier = auth.NewAuthAdapter(container)
	case "store":
		m.manager.jobs = store.NewAdapter(container)
	}
}

// SetEventBus is called by the framework to inject the event bus.
func (m *Module) SetEventBus(bus mono.EventBus) {
	m.manager.notifier = notification.NewBusNotifier(bus)
}

// EmitEvents declares the events this module publishes.
func (m *Module) EmitEvents() []mono.BaseEventDefinition {
	return []mono.BaseEventDefinition{
		events.NotificationRequestedV1.ToBase(),
	}
}

// SetPresenceStore sets the presence registry (called from main.go).
func (m *Module) SetPresenceStore(s presence.Store) {
	m.manager.registry = s
}

// Manager returns the session manager for the transport.
func (m *Module) Manager() *Manager {
	return m.manager
}

// Start starts the heartbeat.
func (m *Module) Start(_ context.Context) error {
	switch {
	case m.manager.verifier == nil:
		return fmt.Errorf("auth dependency not set")
	case m.manager.jobs == nil:
		return fmt.Errorf("store dependency not set")
	case m.manager.registry == nil:
		return fmt.Errorf("presence store not set")
	case m.manager.notifier == nil:
		return fmt.Errorf("event bus not set")
	}

	ctx, cancel := context.WithCancel(context.Background())
	m.cancelHub = cancel
	go m.manager.hub.Run(ctx, m.heartbeat)

	m.logger.Info("Realtime module started", "heartbeat", m.heartbeat.String())
	return nil
}

// Stop stops the heartbeat, drains pending notifications and closes every connection.
func (m *Module) Stop(ctx context.Context) error {
	if m.cancelHub != nil {
		m.cancelHub()
		m.manager.hub.Wait()
	}
	if err := m.manager.Shutdown(ctx); err != nil {
		m.logger.Warn("Realtime shutdown incomplete", "error", err)
	}
	m.logger.Info("Realtime module stopped")
	return nil
}

// Health returns the health status.
func (m *Module) Health(_ context.Context) mono.HealthStatus {
	return mono.HealthStatus{
		Healthy: true,
		Message: "operational",
		Details: map[string]any{
			"connected_clients": m.manager.hub.ClientCount(),
			"active_rooms":      m.manager.hub.RoomCount(),
		},
	}
}
