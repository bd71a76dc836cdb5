package api

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/ilanpazar/messaging/internal/identity"
)

const userIDKey = "userID"

// authRequired verifies the bearer token through the identity collaborator
// and stashes the resolved user id on the request context.
func authRequired(verifier identity.Verifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}
		userID, err := verifier.Verify(token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}
		c.Set(userIDKey, userID)
		c.Next()
	}
}

func callerID(c *gin.Context) uint {
	return c.GetUint(userIDKey)
}
