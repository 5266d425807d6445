package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/workflow-service/internal/domain"
	apperrors "github.com/spec-kit/workflow-service/pkg/util"
)

func TestTokenRoundTrip(t *testing.T) {
	tm := NewTokenManager("secret", "workflow", 5)
	raw, meta, err := tm.GenerateToken("user-1", "Dana", []string{domain.PermissionManageWorkflow})
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(5*time.Minute), meta.ExpiresAt, time.Minute)

	claims, err := tm.ParseToken(raw)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.Subject)
	assert.Equal(t, "Dana", claims.Name)
	assert.Equal(t, []string{domain.PermissionManageWorkflow}, claims.Permissions)
	assert.Equal(t, meta.ID, claims.ID)
}

func TestParseTokenRejects(t *testing.T) {
	tm := NewTokenManager("secret", "workflow", 5)
	other, _, err := NewTokenManager("other", "workflow", 5).GenerateToken("u", "", nil)
	require.NoError(t, err)
	wrongIssuer, _, err := NewTokenManager("secret", "someone-else", 5).GenerateToken("u", "", nil)
	require.NoError(t, err)
	noSubject, _, err := tm.GenerateToken("", "", nil)
	require.NoError(t, err)

	expired := jwt.NewWithClaims(jwt.SigningMethodHS256, &Claims{RegisteredClaims: jwt.RegisteredClaims{
		Subject:   "u",
		Issuer:    "workflow",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
	}})
	expiredRaw, err := expired.SignedString([]byte("secret"))
	require.NoError(t, err)

	for name, raw := range map[string]string{
		"wrong secret": other,
		"wrong issuer": wrongIssuer,
		"no subject":   noSubject,
		"expired":      expiredRaw,
		"garbage":      "not.a.token",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := tm.ParseToken(raw)
			assert.Error(t, err)
		})
	}
}

func newAuthApp(tm *TokenManager, handlers ...fiber.Handler) *fiber.App {
	app := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			domainErr := apperrors.ToDomainError(err)
			return c.Status(domainErr.HTTPStatus).SendString(domainErr.Code)
		},
	})
	chain := append([]fiber.Handler{NewAuthMiddleware(tm).Handle}, handlers...)
	chain = append(chain, func(c *fiber.Ctx) error {
		principal, _ := PrincipalFromContext(c)
		return c.SendString(principal.Actor().DisplayName())
	})
	app.Get("/", chain...)
	return app
}

func TestAuthMiddlewareAndPermissions(t *testing.T) {
	tm := NewTokenManager("secret", "", 5)
	manager, _, err := tm.GenerateToken("u-1", "Manager", []string{domain.PermissionManageWorkflow})
	require.NoError(t, err)
	agent, _, err := tm.GenerateToken("u-2", "", []string{"tickets:write"})
	require.NoError(t, err)

	app := newAuthApp(tm, RequirePermission(domain.PermissionManageWorkflow))

	tests := []struct {
		name   string
		header string
		status int
	}{
		{"missing header", "", http.StatusUnauthorized},
		{"wrong scheme", "Basic abc", http.StatusUnauthorized},
		{"bad token", "Bearer nope", http.StatusUnauthorized},
		{"missing permission", "Bearer " + agent, http.StatusForbidden},
		{"manager", "Bearer " + manager, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			resp, err := app.Test(req)
			require.NoError(t, err)
			assert.Equal(t, tt.status, resp.StatusCode)
		})
	}
}

func TestClaimsPermissionChecker(t *testing.T) {
	checker := NewClaimsPermissionChecker()
	stage := &domain.Stage{ID: "s1", Name: "Legal review", RequiredPermissions: []string{"legal", "review"}}

	assert.NoError(t, checker.CheckStageEntry(&Principal{Permissions: []string{"review", "legal"}}, stage))
	assert.NoError(t, checker.CheckStageEntry(&Principal{Permissions: []string{domain.PermissionManageWorkflow}}, stage))
	assert.NoError(t, checker.CheckStageEntry(&Principal{}, &domain.Stage{Name: "Open"}))

	err := checker.CheckStageEntry(&Principal{Permissions: []string{"review"}}, stage)
	require.True(t, apperrors.HasCode(err, apperrors.CodeForbidden))
	domainErr := apperrors.ToDomainError(err)
	assert.Equal(t, []string{"legal"}, domainErr.Details["missing_permissions"])
}
