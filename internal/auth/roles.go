package auth

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/petcare-queue/internal/domain"
	"github.com/spec-kit/petcare-queue/pkg/util"
)

// RequireStaff ensures the caller presented a staff token.
func RequireStaff() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if !ActorFromContext(c).IsStaff() {
			return util.NewUnauthenticated("staff token required")
		}
		return c.Next()
	}
}

// RequireRole ensures the staff caller has one of the allowed roles.
func RequireRole(allowed ...domain.Role) fiber.Handler {
	allowedSet := make(map[domain.Role]struct{}, len(allowed))
	for _, role := range allowed {
		allowedSet[role] = struct{}{}
	}

	return func(c *fiber.Ctx) error {
		actor := ActorFromContext(c)
		if !actor.IsStaff() {
			return util.NewUnauthenticated("staff token required")
		}
		if _, exists := allowedSet[actor.Role]; !exists {
			return util.NewUnauthorized("insufficient role", map[string]any{"role": actor.Role})
		}
		return c.Next()
	}
}
