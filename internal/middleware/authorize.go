package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"taskmanager/internal/models"
)

// RequireRoles must run after Auth. Without an identity on the context it
// rejects the request rather than letting it through.
func RequireRoles(log zerolog.Logger, roles ...models.UserRole) gin.HandlerFunc {
	roleSet := make(map[models.UserRole]struct{}, len(roles))
	for _, role := range roles {
		roleSet[role] = struct{}{}
	}

	return func(c *gin.Context) {
		identity, ok := CurrentIdentity(c)
		if !ok {
			log.Error().Str("path", c.FullPath()).Msg("role check without authenticated identity")
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"msg": "Access denied"})
			return
		}

		if _, ok := roleSet[identity.Role]; !ok {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"msg": "Access denied"})
			return
		}

		c.Next()
	}
}
