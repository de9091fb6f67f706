package api

import (
	"context"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/tasklink/chat-server/domain/user"
)

const (
	// UserContextKey is the key used to store the caller's identity in the Fiber context.
	UserContextKey = "user"
)

// TokenVerifier resolves a bearer token to an identity.
type TokenVerifier interface {
	Verify(ctx context.Context, token string) (*user.Identity, error)
}

// AuthMiddleware creates a middleware that requires a valid bearer token.
func AuthMiddleware(verifier TokenVerifier) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authHeader := c.Get("Authorization")
		if authHeader == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(ErrorResponse{
				Error:   "unauthorized",
				Message: "Authorization header is required",
			})
		}

		if !strings.HasPrefix(authHeader, "Bearer ") {
			return c.Status(fiber.StatusUnauthorized).JSON(ErrorResponse{
				Error:   "unauthorized",
				Message: "Invalid authorization header format. Use: Bearer <token>",
			})
		}

		token := strings.TrimPrefix(authHeader, "Bearer ")
		if token == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(ErrorResponse{
				Error:   "unauthorized",
				Message: "Token is required",
			})
		}

		identity, err := verifier.Verify(c.UserContext(), token)
		if err != nil || identity == nil || !identity.IsVerified {
			return c.Status(fiber.StatusUnauthorized).JSON(ErrorResponse{
				Error:   "unauthorized",
				Message: "Invalid or expired token",
			})
		}

		c.Locals(UserContextKey, identity)
		return c.Next()
	}
}

// identityFrom returns the identity stored by AuthMiddleware.
func identityFrom(c *fiber.Ctx) (*user.Identity, bool) {
	identity, ok := c.Locals(UserContextKey).(*user.Identity)
	return identity, ok && identity != nil
}
