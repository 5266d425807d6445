package auth

import (
	"github.com/gofiber/fiber/v2"

	apperrors "github.com/spec-kit/workflow-service/pkg/util"
)

// RequirePermission ensures the principal carries perm.
func RequirePermission(perm string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		principal, ok := PrincipalFromContext(c)
		if !ok {
			return apperrors.NewUnauthorized("authentication required")
		}
		if !principal.HasPermission(perm) {
			return apperrors.NewForbidden("missing permission " + perm)
		}
		return c.Next()
	}
}

// RequireAuthenticated ensures a principal is present.
func RequireAuthenticated() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if _, ok := PrincipalFromContext(c); !ok {
			return apperrors.NewUnauthorized("authentication required")
		}
		return c.Next()
	}
}
