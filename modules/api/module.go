package api

import (
	"context"
	"fmt"
	"time"

	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/types"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	nanoid "github.com/jaevor/go-nanoid"
	"github.com/tasklink/chat-server/modules/auth"
	"github.com/tasklink/chat-server/modules/presence"
	"github.com/tasklink/chat-server/modules/realtime"
	"github.com/tasklink/chat-server/modules/store"
)

const socketIDLength = 21

// APIModule is the HTTP API module with the chat WebSocket endpoint.
type APIModule struct {
	app            *fiber.App
	port           string
	allowedOrigins string
	authPort       auth.AuthPort
	jobs           JobReader
	presence       PresenceReader
	sessions       SessionManager
	newSocketID    func() string
	logger         types.Logger
}

// Compile-time interface checks.
var _ mono.Module = (*APIModule)(nil)
var _ mono.DependentModule = (*APIModule)(nil)
var _ mono.HealthCheckableModule = (*APIModule)(nil)

// NewModule creates a new APIModule.
func NewModule(port, allowedOrigins string, logger types.Logger) *APIModule {
	return &APIModule{
		port:           port,
		allowedOrigins: allowedOrigins,
		logger:         logger,
	}
}

// Name returns the module name.
func (m *APIModule) Name() string {
	return "api"
}

// Dependencies returns the list of module dependencies.
func (m *APIModule) Dependencies() []string {
	return []string{"auth", "store", "presence"}
}

// SetDependencyServiceContainer receives service containers from dependencies.
func (m *APIModule) SetDependencyServiceContainer(dependency string, container mono.ServiceContainer) {
	switch dependency {
	case "auth":
		m.authPort = auth.NewAuthAdapter(container)
	case "store":
		m.jobs = store.NewAdapter(container)
	case "presence":
		m.presence = presence.NewAdapter(container)
	}
}

// SetSessions sets the realtime session manager (called from main.go).
// It is not exposed through the ServiceContainer because it owns live connections.
func (m *APIModule) SetSessions(sessions *realtime.Manager) {
	m.sessions = sessions
}

// Start initializes the Fiber HTTP server.
func (m *APIModule) Start(_ context.Context) error {
	switch {
	case m.authPort == nil:
		return fmt.Errorf("auth dependency not set")
	case m.jobs == nil:
		return fmt.Errorf("store dependency not set")
	case m.presence == nil:
		return fmt.Errorf("presence dependency not set")
	case m.sessions == nil:
		return fmt.Errorf("session manager not set")
	}

	newID, err := nanoid.Standard(socketIDLength)
	if err != nil {
		return fmt.Errorf("failed to create socket id generator: %w", err)
	}
	m.newSocketID = newID

	m.app = m.newApp()

	// Start server in goroutine with startup error detection
	errCh := make(chan error, 1)
	go func() {
		if err := m.app.Listen(":" + m.port); err != nil {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("HTTP server failed to start: %w", err)
	case <-time.After(100 * time.Millisecond):
	}

	m.logger.Info("HTTP server started", "port", m.port)
	return nil
}

// Stop shuts down the Fiber HTTP server.
func (m *APIModule) Stop(ctx context.Context) error {
	if m.app == nil {
		return nil
	}
	m.logger.Info("Shutting down HTTP server")
	if err := m.app.ShutdownWithContext(ctx); err != nil {
		return fmt.Errorf("failed to shutdown server: %w", err)
	}
	return nil
}

// Health returns the health status.
func (m *APIModule) Health(_ context.Context) mono.HealthStatus {
	details := map[string]any{"port": m.port}
	if m.sessions != nil {
		details["connected_clients"] = m.sessions.Hub().ClientCount()
	}
	return mono.HealthStatus{
		Healthy: m.app != nil,
		Message: "operational",
		Details: details,
	}
}

// newApp builds the Fiber app with middleware and routes.
func (m *APIModule) newApp() *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:               "TaskLink Chat",
		DisableStartupMessage: true,
		ErrorHandler:          m.errorHandler,
		ReadTimeout:           30 * time.Second,
		WriteTimeout:          60 * time.Second,
		IdleTimeout:           120 * time.Second,
	})

	app.Use(recover.New())
	app.Use(requestLogger(m.logger))
	app.Use(cors.New(cors.Config{
		AllowOrigins: m.allowedOrigins,
		AllowMethods: "GET,POST,OPTIONS",
		AllowHeaders: "Content-Type,Authorization",
	}))

	m.setupRoutes(app)
	return app
}

// errorHandler handles Fiber errors.
func (m *APIModule) errorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "Internal Server Error"

	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
		message = e.Message
	}

	if code >= fiber.StatusInternalServerError {
		m.logger.Error("HTTP error", "code", code, "path", c.Path(), "error", err)
	}

	return c.Status(code).JSON(ErrorResponse{
		Error:   "server_error",
		Message: message,
	})
}

// requestLogger logs completed HTTP requests. WebSocket sessions log their own lifecycle.
func requestLogger(logger types.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if c.Get("Upgrade") == "websocket" {
			return c.Next()
		}
		start := time.Now()
		err := c.Next()
		logger.Debug("HTTP request",
			"method", c.Method(),
			"path", c.Path(),
			"status", c.Response().StatusCode(),
			"latency", time.Since(start).String())
		return err
	}
}
