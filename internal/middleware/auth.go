// Package middleware provides authentication, logging and tracing middleware for the HTTP surface.
package middleware

import (
	"strings"

	"warden/internal/config"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
)

// Fiber locals set by AuthRequired.
const (
	ActorLocal = "actorID"
	RoleLocal  = "role"
)

// Roles recognised in the "role" claim.
const (
	RoleUser      = "user"
	RoleModerator = "moderator"
	RoleAdmin     = "admin"
	RoleService   = "service"
)

var cfg *config.Config

// InitMiddleware initializes authentication middleware with the given config.
func InitMiddleware(c *config.Config) {
	cfg = c
}

func unauthorized(c *fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
		"error": msg,
	})
}

// AuthRequired is a middleware that enforces authentication for protected routes.
// Session issuance lives elsewhere; this only verifies HMAC bearer tokens.
func AuthRequired(c *fiber.Ctx) error {
	authHeader := c.Get("Authorization")
	if authHeader == "" {
		return unauthorized(c, "Authorization header required")
	}

	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || parts[0] != "Bearer" {
		return unauthorized(c, "Invalid authorization header format")
	}

	token, err := jwt.Parse(parts[1], func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fiber.NewError(fiber.StatusUnauthorized, "Invalid signing method")
		}
		return []byte(cfg.JWTSecret), nil
	})
	if err != nil || !token.Valid {
		return unauthorized(c, "Invalid or expired token")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return unauthorized(c, "Invalid token claims")
	}

	// Subject claim per RFC 7519
	sub, err := claims.GetSubject()
	if err != nil || strings.TrimSpace(sub) == "" {
		return unauthorized(c, "Invalid token structure - missing subject")
	}

	role, _ := claims["role"].(string)
	if role == "" {
		role = RoleUser
	}

	c.Locals(ActorLocal, sub)
	c.Locals(RoleLocal, role)

	return c.Next()
}

// RequireRole rejects requests whose token role is not one of roles.
// Must run after AuthRequired.
func RequireRole(roles ...string) fiber.Handler {
	allowed := make(map[string]struct{}, len(roles))
	for _, r := range roles {
		allowed[r] = struct{}{}
	}
	return func(c *fiber.Ctx) error {
		role, _ := c.Locals(RoleLocal).(string)
		if _, ok := allowed[role]; !ok {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
				"error": "insufficient role",
			})
		}
		return c.Next()
	}
}

// ActorID returns the authenticated actor for the request, or "".
func ActorID(c *fiber.Ctx) string {
	id, _ := c.Locals(ActorLocal).(string)
	return id
}
