package auth

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/workflow-service/internal/domain"
	apperrors "github.com/spec-kit/workflow-service/pkg/util"
)

const principalKey = "auth_principal"

// Principal represents the authenticated caller.
type Principal struct {
	UserID      string
	Name        string
	Permissions []string
}

// HasPermission reports whether the principal carries perm.
func (p *Principal) HasPermission(perm string) bool {
	if p == nil {
		return false
	}
	for _, granted := range p.Permissions {
		if granted == perm {
			return true
		}
	}
	return false
}

// Actor returns the principal as the actor of a workflow operation.
func (p *Principal) Actor() domain.Actor {
	if p == nil {
		return domain.Actor{}
	}
	return domain.Actor{ID: p.UserID, Name: p.Name}
}

// AuthMiddleware validates bearer tokens and stores the principal.
type AuthMiddleware struct {
	tokens *TokenManager
}

// NewAuthMiddleware constructs middleware.
func NewAuthMiddleware(tokens *TokenManager) *AuthMiddleware {
	return &AuthMiddleware{tokens: tokens}
}

// Handle enforces authentication for protected routes.
func (m *AuthMiddleware) Handle(c *fiber.Ctx) error {
	authHeader := c.Get("Authorization")
	if authHeader == "" {
		return apperrors.NewUnauthorized("missing authorization header")
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return apperrors.NewUnauthorized("invalid authorization header")
	}

	claims, err := m.tokens.ParseToken(strings.TrimSpace(parts[1]))
	if err != nil {
		return apperrors.NewUnauthorized("invalid token")
	}

	c.Locals(principalKey, &Principal{
		UserID:      claims.Subject,
		Name:        claims.Name,
		Permissions: claims.Permissions,
	})
	return c.Next()
}

// PrincipalFromContext retrieves the authenticated entity.
func PrincipalFromContext(c *fiber.Ctx) (*Principal, bool) {
	val := c.Locals(principalKey)
	if val == nil {
		return nil, false
	}
	principal, ok := val.(*Principal)
	return principal, ok
}
