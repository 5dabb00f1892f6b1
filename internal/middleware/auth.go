package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/finplay/settlement/internal/security"
	"github.com/finplay/settlement/pkg/errors"
)

const (
	LocalUserID  = "user_id"
	LocalIsAdmin = "is_admin"
)

// Auth validates the bearer token and attaches the caller's identity to
// the request context.
func Auth(jwtSecret string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		header := c.Get("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			return unauthorized(c, "missing bearer token")
		}

		claims, err := security.ValidateJWT(strings.TrimPrefix(header, "Bearer "), jwtSecret)
		if err != nil {
			return unauthorized(c, "invalid or expired token")
		}

		c.Locals(LocalUserID, claims.UserID)
		c.Locals(LocalIsAdmin, claims.IsAdmin)
		return c.Next()
	}
}

// RequireAdmin rejects requests whose token does not carry the admin
// flag. Must run after Auth.
func RequireAdmin() fiber.Handler {
	return func(c *fiber.Ctx) error {
		isAdmin, _ := c.Locals(LocalIsAdmin).(bool)
		if !isAdmin {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
				"error": fiber.Map{
					"code":    errors.ErrCodeForbidden,
					"message": "admin access required",
				},
			})
		}
		return c.Next()
	}
}

// RateLimit applies the per-user and per-IP limits. The user limit only
// engages once Auth has attached an identity.
func RateLimit(limiter *RateLimiter) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if !limiter.CheckIPLimit(c.IP()) {
			return rateLimited(c)
		}
		if userID, ok := c.Locals(LocalUserID).(string); ok && userID != "" {
			if !limiter.CheckUserLimit(userID) {
				return rateLimited(c)
			}
		}
		return c.Next()
	}
}

// UserID returns the authenticated caller's ID.
func UserID(c *fiber.Ctx) string {
	id, _ := c.Locals(LocalUserID).(string)
	return id
}

func unauthorized(c *fiber.Ctx, message string) error {
	return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
		"error": fiber.Map{
			"code":    errors.ErrCodeUnauthorized,
			"message": message,
		},
	})
}

func rateLimited(c *fiber.Ctx) error {
	return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
		"error": fiber.Map{
			"code":    errors.ErrCodeRateLimitExceeded,
			"message": "too many requests",
		},
	})
}
