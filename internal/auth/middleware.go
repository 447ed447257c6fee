package auth

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

const claimsContextKey = "auth_claims"

// RequireBearer parses and verifies the Authorization header, storing the
// resulting Claims in the gin context on success.
func RequireBearer(signer *Signer) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		const prefix = "Bearer "
		if !strings.HasPrefix(header, prefix) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}
		claims, err := signer.Verify(strings.TrimPrefix(header, prefix))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}
		c.Set(claimsContextKey, claims)
		c.Next()
	}
}

// RequirePerm aborts the request with 403 unless ClaimsFrom(c) carries
// perm. Must run after RequireBearer.
func RequirePerm(perm string) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, ok := ClaimsFrom(c)
		if !ok || !claims.HasPerm(perm) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "permission denied", "perm": perm})
			return
		}
		c.Next()
	}
}

// ClaimsFrom retrieves the Claims set by RequireBearer, if any.
func ClaimsFrom(c *gin.Context) (*Claims, bool) {
	v, ok := c.Get(claimsContextKey)
	if !ok {
		return nil, false
	}
	claims, ok := v.(*Claims)
	return claims, ok
}
