package auth

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// identityContextKey stores the resolved Identity in the gin context.
const identityContextKey = "auth.identity"

// BearerToken extracts the token from an Authorization header value.
func BearerToken(header string) (string, bool) {
	parts := strings.Fields(header)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}
	return parts[1], true
}

// Middleware rejects requests without a valid bearer token and stores the
// caller's Identity in the context.
func Middleware(a *Authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		bearer, ok := BearerToken(c.GetHeader("Authorization"))
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "could not validate credentials"})
			return
		}
		identity, errAuth := a.Authenticate(c.Request.Context(), bearer)
		if errAuth != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "could not validate credentials"})
			return
		}
		c.Set(identityContextKey, identity)
		c.Next()
	}
}

// RequireConfirmedEmail rejects identities without a confirmed email.
// Must run after Middleware.
func RequireConfirmedEmail() gin.HandlerFunc {
	return func(c *gin.Context) {
		identity, ok := IdentityFrom(c)
		if !ok || identity.EmailConfirmedAt == nil {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "email not confirmed"})
			return
		}
		c.Next()
	}
}

// RequireAIAccess rejects identities without the AI access flag.
// Must run after Middleware.
func RequireAIAccess() gin.HandlerFunc {
	return func(c *gin.Context) {
		identity, ok := IdentityFrom(c)
		if !ok || !identity.HasAIAccess {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "ai access not granted"})
			return
		}
		c.Next()
	}
}

// IdentityFrom returns the Identity stored by Middleware.
func IdentityFrom(c *gin.Context) (Identity, bool) {
	value, exists := c.Get(identityContextKey)
	if !exists {
		return Identity{}, false
	}
	identity, ok := value.(Identity)
	return identity, ok
}
