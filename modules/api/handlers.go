package api

import (
	"errors"
	"strings"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/tasklink/chat-server/modules/auth"
	"github.com/tasklink/chat-server/modules/presence"
	"github.com/tasklink/chat-server/modules/store"
)

// setupRoutes configures all HTTP routes.
func (m *APIModule) setupRoutes(app *fiber.App) {
	app.Get("/health", m.healthHandler)

	// WebSocket endpoint
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws", websocket.New(m.handleWebSocket))

	// REST API v1
	api := app.Group("/api/v1")
	api.Post("/auth/login", m.login)

	requireAuth := AuthMiddleware(m.authPort)
	api.Get("/jobs/:id/messages", requireAuth, m.listMessages)
	api.Get("/notifications", requireAuth, m.listNotifications)
	api.Get("/presence/:userId", requireAuth, m.getPresence)
}

// healthHandler handles GET /health.
func (m *APIModule) healthHandler(c *fiber.Ctx) error {
	hub := m.sessions.Hub()
	return c.JSON(HealthResponse{
		Status: "healthy",
		Details: map[string]any{
			"module":            "api",
			"connected_clients": hub.ClientCount(),
			"active_rooms":      hub.RoomCount(),
		},
	})
}

// login handles POST /api/v1/auth/login.
func (m *APIModule) login(c *fiber.Ctx) error {
	var req LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
			Error:   "invalid_request",
			Message: "Invalid request body",
		})
	}
	if strings.TrimSpace(req.Email) == "" || req.Password == "" {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
			Error:   "validation_error",
			Message: "Email and password are required",
		})
	}

	result, err := m.authPort.Login(c.UserContext(), req.Email, req.Password)
	switch {
	case err == nil:
	case errors.Is(err, auth.ErrInvalidCredentials):
		return c.Status(fiber.StatusUnauthorized).JSON(ErrorResponse{
			Error:   "invalid_credentials",
			Message: "Invalid email or password",
		})
	case errors.Is(err, auth.ErrUnverifiedAccount):
		return c.Status(fiber.StatusForbidden).JSON(ErrorResponse{
			Error:   "unverified_account",
			Message: "Account is not verified",
		})
	default:
		m.logger.Error("Login failed", "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{
			Error:   "login_failed",
			Message: "Failed to log in",
		})
	}

	return c.JSON(LoginResponse{
		AccessToken: result.AccessToken,
		TokenType:   "Bearer",
		ExpiresIn:   result.ExpiresIn,
		User:        result.Identity,
	})
}

// listMessages handles GET /api/v1/jobs/:id/messages. Only job participants may read them.
func (m *APIModule) listMessages(c *fiber.Ctx) error {
	identity, ok := identityFrom(c)
	if !ok {
		return fiber.ErrUnauthorized
	}
	jobID := c.Params("id")

	j, err := m.jobs.GetJob(c.UserContext(), jobID)
	if errors.Is(err, store.ErrJobNotFound) {
		return c.Status(fiber.StatusNotFound).JSON(ErrorResponse{
			Error:   "not_found",
			Message: "Job not found",
		})
	}
	if err != nil {
		m.logger.Error("Failed to load job", "jobID", jobID, "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{
			Error:   "list_failed",
			Message: "Failed to load messages",
		})
	}
	if !j.IsParticipant(identity.UserID) {
		return c.Status(fiber.StatusForbidden).JSON(ErrorResponse{
			Error:   "forbidden",
			Message: "You are not a participant of this job",
		})
	}

	messages, err := m.jobs.ListMessages(c.UserContext(), jobID, queryLimit(c))
	if err != nil {
		m.logger.Error("Failed to list messages", "jobID", jobID, "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{
			Error:   "list_failed",
			Message: "Failed to load messages",
		})
	}

	return c.JSON(MessagesResponse{
		JobID:    jobID,
		Messages: messages,
		Total:    len(messages),
	})
}

// listNotifications handles GET /api/v1/notifications?unread=true.
func (m *APIModule) listNotifications(c *fiber.Ctx) error {
	identity, ok := identityFrom(c)
	if !ok {
		return fiber.ErrUnauthorized
	}

	notifications, err := m.jobs.ListNotifications(c.UserContext(), identity.UserID, c.QueryBool("unread", false), queryLimit(c))
	if err != nil {
		m.logger.Error("Failed to list notifications", "userID", identity.UserID, "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{
			Error:   "list_failed",
			Message: "Failed to load notifications",
		})
	}

	return c.JSON(NotificationsResponse{
		Notifications: notifications,
		Total:         len(notifications),
	})
}

// getPresence handles GET /api/v1/presence/:userId. Unknown users read as offline.
func (m *APIModule) getPresence(c *fiber.Ctx) error {
	userID := c.Params("userId")

	entry, err := m.presence.GetPresence(c.UserContext(), userID)
	if errors.Is(err, presence.ErrNotFound) {
		return c.JSON(PresenceResponse{UserID: userID, Status: presence.StatusOffline})
	}
	if err != nil {
		m.logger.Error("Failed to read presence", "userID", userID, "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{
			Error:   "presence_failed",
			Message: "Failed to read presence",
		})
	}

	return c.JSON(PresenceResponse{
		UserID:   entry.UserID,
		Status:   entry.Status,
		LastSeen: entry.LastSeen,
	})
}

// queryLimit reads ?limit=, clamped to 1..MaxListLimit.
func queryLimit(c *fiber.Ctx) int {
	limit := c.QueryInt("limit", store.DefaultListLimit)
	if limit < 1 {
		return store.DefaultListLimit
	}
	if limit > store.MaxListLimit {
		return store.MaxListLimit
	}
	return limit
}
