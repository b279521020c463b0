package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/schedura/console-gateway/internal/models"
	appErrors "github.com/schedura/console-gateway/pkg/errors"
	"github.com/schedura/console-gateway/pkg/response"
)

// RequireRoles blocks the request unless the token's role is one of the
// allowed roles. Must run after JWT.
func RequireRoles(roles ...models.UserRole) gin.HandlerFunc {
	allowed := make(map[models.UserRole]struct{}, len(roles))
	for _, role := range roles {
		allowed[role] = struct{}{}
	}

	return func(c *gin.Context) {
		claimsValue, exists := c.Get(ContextUserKey)
		if !exists {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}
		claims := claimsValue.(*models.JWTClaims)

		if _, ok := allowed[claims.Role]; !ok {
			response.Error(c, appErrors.ErrForbidden)
			c.Abort()
			return
		}
		c.Next()
	}
}
