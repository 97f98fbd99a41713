package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/vikarapp/vikar-api/internal/models"
	"github.com/vikarapp/vikar-api/internal/service"
	"github.com/vikarapp/vikar-api/pkg/config"
)

func TestAuthRejectsMissingBearerToken(t *testing.T) {
	gin.SetMode(gin.TestMode)
	auth := service.NewAuthService(config.AuthConfig{Secret: "secret"}, nil, zap.NewNop())

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request, _ = http.NewRequest(http.MethodGet, "/substitutions", nil)

	Auth(auth, zap.NewNop())(c)
	require.Equal(t, http.StatusUnauthorized, w.Code)
	assert.True(t, c.IsAborted())
}

func TestAuthRejectsGarbageToken(t *testing.T) {
	gin.SetMode(gin.TestMode)
	auth := service.NewAuthService(config.AuthConfig{Secret: "secret"}, nil, zap.NewNop())

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request, _ = http.NewRequest(http.MethodGet, "/substitutions", nil)
	c.Request.Header.Set("Authorization", "Bearer not-a-token")

	Auth(auth, zap.NewNop())(c)
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRequireRoleForbidsMissingRole(t *testing.T) {
	gin.SetMode(gin.TestMode)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request, _ = http.NewRequest(http.MethodPut, "/substitutions/deactivate", nil)
	c.Set(ContextRequestorKey, &models.Requestor{UPN: "teacher@school.no"})

	RequireRole(models.RoleConfig)(c)
	require.Equal(t, http.StatusForbidden, w.Code)
	assert.True(t, c.IsAborted())
}

func TestRequireRolePassesWithRole(t *testing.T) {
	gin.SetMode(gin.TestMode)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request, _ = http.NewRequest(http.MethodPut, "/substitutions/deactivate", nil)
	c.Set(ContextRequestorKey, &models.Requestor{UPN: "admin@school.no", Roles: []string{models.RoleConfig}})

	RequireRole(models.RoleConfig)(c)
	assert.False(t, c.IsAborted())
}

func TestRequestorFromMissingContext(t *testing.T) {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	assert.Nil(t, RequestorFrom(c))
}
