// Package identity reads the authenticated caller from the Fiber context.
package identity

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	userKey  = "user"
	adminKey = "is_admin"
)

// GetUserID extracts the user UUID from JWT claims in context.
func GetUserID(c *fiber.Ctx) (uuid.UUID, error) {
	claims, err := claimsFrom(c)
	if err != nil {
		return uuid.Nil, err
	}

	sub, ok := claims["sub"].(string)
	if !ok {
		return uuid.Nil, errors.New("missing sub claim")
	}

	return uuid.Parse(sub)
}

// SetAdmin records that the caller was verified as an administrator.
func SetAdmin(c *fiber.Ctx, admin bool) {
	c.Locals(adminKey, admin)
}

// IsAdmin reports whether middleware.ResolveAdmin marked the caller as an administrator.
func IsAdmin(c *fiber.Ctx) bool {
	admin, _ := c.Locals(adminKey).(bool)
	return admin
}

func claimsFrom(c *fiber.Ctx) (jwt.MapClaims, error) {
	token, ok := c.Locals(userKey).(*jwt.Token)
	if !ok || token == nil {
		return nil, errors.New("invalid token in context")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, errors.New("invalid claims")
	}
	return claims, nil
}
