package auth

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/account-service/internal/domain"
	apperrors "github.com/spec-kit/account-service/pkg/util"
)

// RequireRoles ensures the authenticated principal has one of the allowed
// roles. With no arguments it only requires authentication.
func RequireRoles(allowed ...domain.Role) fiber.Handler {
	allowedSet := make(map[domain.Role]struct{}, len(allowed))
	for _, role := range allowed {
		allowedSet[role] = struct{}{}
	}

	return func(c *fiber.Ctx) error {
		principal, ok := PrincipalFromContext(c)
		if !ok {
			return apperrors.NewUnauthorized("authentication required")
		}
		if len(allowedSet) == 0 {
			return c.Next()
		}
		if _, exists := allowedSet[principal.Role]; !exists {
			return apperrors.NewForbidden("insufficient permissions")
		}
		return c.Next()
	}
}

// CanAccessUser is the "admin or self" capability predicate used for
// per-record access on user resources.
func CanAccessUser(requester *domain.User, targetID string) bool {
	if requester == nil {
		return false
	}
	return requester.Role == domain.RoleAdmin || requester.ID == targetID
}
