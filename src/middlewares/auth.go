package middlewares

import (
	"errors"
	"net/http"
	"slices"
	"strings"
	"ticketing/src/types"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// AuthMiddleware verifies the bearer token and stores tenant_id, actor_id
// and role for the handlers behind it.
func AuthMiddleware(secret string, logger *logrus.Logger) gin.HandlerFunc {
	jwtKey := []byte(secret)
	return func(ctx *gin.Context) {
		bearerToken := ctx.Request.Header.Get("Authorization")
		reqToken, ok := strings.CutPrefix(bearerToken, "Bearer ")
		if !ok || reqToken == "" {
			ctx.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}
		claims := &types.Claims{}
		tkn, err := jwt.ParseWithClaims(reqToken, claims, func(t *jwt.Token) (any, error) {
			return jwtKey, nil
		}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
		if err != nil || !tkn.Valid {
			if err == nil {
				err = errors.New("invalid token")
			}
			logger.WithError(err).Debug("token rejected")
			ctx.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}
		tenantID, err := uuid.Parse(claims.TenantID)
		if err != nil || claims.Subject == "" {
			ctx.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}

		ctx.Set("tenant_id", tenantID)
		ctx.Set("actor_id", claims.Subject)
		ctx.Set("role", claims.Role)
		ctx.Set("email", claims.Email)
		ctx.Next()
	}
}

// RequireRole rejects callers whose token role is not one of roles.
func RequireRole(roles ...types.Role) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		role, _ := ctx.Get("role")
		r, ok := role.(types.Role)
		if !ok || !slices.Contains(roles, r) {
			ctx.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Forbidden"})
			return
		}
		ctx.Next()
	}
}

// TenantID returns the tenant resolved by AuthMiddleware.
func TenantID(ctx *gin.Context) uuid.UUID {
	v, _ := ctx.Get("tenant_id")
	id, _ := v.(uuid.UUID)
	return id
}

func ActorID(ctx *gin.Context) string {
	return ctx.GetString("actor_id")
}
