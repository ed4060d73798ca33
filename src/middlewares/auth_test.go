package middlewares

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"ticketing/src/types"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

const secret = "test-secret"

func token(t *testing.T, key string, tenant string, role types.Role, exp time.Time) string {
	t.Helper()
	claims := types.Claims{
		TenantID: tenant,
		Role:     role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "staff-1",
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(key))
	require.NoError(t, err)
	return s
}

func router() *gin.Engine {
	gin.SetMode(gin.TestMode)
	logger, _ := test.NewNullLogger()
	r := gin.New()
	r.Use(SecureHeaders, AuthMiddleware(secret, logger))
	r.GET("/me", func(ctx *gin.Context) {
		ctx.JSON(http.StatusOK, gin.H{"tenant_id": TenantID(ctx), "actor_id": ActorID(ctx)})
	})
	r.GET("/admin", RequireRole(types.ROLE_ADMIN), func(ctx *gin.Context) {
		ctx.Status(http.StatusNoContent)
	})
	return r
}

func TestAuthMiddleware(t *testing.T) {
	tenant := uuid.New()
	tests := []struct {
		name   string
		header string
		status int
	}{
		{"missing header", "", http.StatusUnauthorized},
		{"not bearer", "Basic abc", http.StatusUnauthorized},
		{"wrong key", "Bearer " + token(t, "other", tenant.String(), types.ROLE_STAFF, time.Now().Add(time.Hour)), http.StatusUnauthorized},
		{"expired", "Bearer " + token(t, secret, tenant.String(), types.ROLE_STAFF, time.Now().Add(-time.Hour)), http.StatusUnauthorized},
		{"bad tenant", "Bearer " + token(t, secret, "acme", types.ROLE_STAFF, time.Now().Add(time.Hour)), http.StatusUnauthorized},
		{"valid", "Bearer " + token(t, secret, tenant.String(), types.ROLE_STAFF, time.Now().Add(time.Hour)), http.StatusOK},
	}
	r := router()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			r.ServeHTTP(w, req)
			assert.Equal(t, tt.status, w.Code)
			if tt.status == http.StatusOK {
				assert.Equal(t, tenant.String(), gjson.Get(w.Body.String(), "tenant_id").String())
				assert.Equal(t, "staff-1", gjson.Get(w.Body.String(), "actor_id").String())
				assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
			}
		})
	}
}

func TestRequireRole(t *testing.T) {
	tenant := uuid.New().String()
	r := router()

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/admin", nil)
	req.Header.Set("Authorization", "Bearer "+token(t, secret, tenant, types.ROLE_STAFF, time.Now().Add(time.Hour)))
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/admin", nil)
	req.Header.Set("Authorization", "Bearer "+token(t, secret, tenant, types.ROLE_ADMIN, time.Now().Add(time.Hour)))
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNoContent, w.Code)
}

func TestMaintenance(t *testing.T) {
	gin.SetMode(gin.TestMode)
	on := true
	r := gin.New()
	r.Use(Maintenance(func() bool { return on }))
	r.GET("/", func(ctx *gin.Context) { ctx.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	on = false
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}
