package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"taskmanager/internal/revocation"
	"taskmanager/internal/security"
)

const (
	identityKey = "auth.identity"
	tokenKey    = "auth.token"
)

type TokenVerifier interface {
	Verify(token string) (security.Identity, error)
}

// Auth authenticates the bearer token. The checks run in a fixed order:
// missing token (401), revoked token (403), invalid token (401). A revoked
// token is rejected even when its signature and expiry are still good.
func Auth(tokens TokenVerifier, revoked revocation.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c.GetHeader("Authorization"))
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"msg": "No token, authorization denied"})
			return
		}

		if revoked.IsRevoked(c.Request.Context(), token) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"msg": "Token is invalid (logged out)"})
			return
		}

		identity, err := tokens.Verify(token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"msg": "Token is not valid"})
			return
		}

		c.Set(tokenKey, token)
		c.Set(identityKey, identity)

		c.Next()
	}
}

// bearerToken accepts "Bearer <jwt>" (any case) and a bare "<jwt>".
func bearerToken(header string) string {
	header = strings.TrimSpace(header)
	if scheme, rest, ok := strings.Cut(header, " "); ok && strings.EqualFold(scheme, "Bearer") {
		return strings.TrimSpace(rest)
	}
	if strings.EqualFold(header, "Bearer") {
		return ""
	}
	return header
}

func CurrentIdentity(c *gin.Context) (security.Identity, bool) {
	value, ok := c.Get(identityKey)
	if !ok {
		return security.Identity{}, false
	}
	identity, ok := value.(security.Identity)
	return identity, ok
}

func CurrentToken(c *gin.Context) string {
	return c.GetString(tokenKey)
}
