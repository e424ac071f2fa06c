package auth

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
)

const principalContextKey = "mediagatePrincipal"

// Authenticator is what RequireSession needs from the auth service.
type Authenticator interface {
	Authenticate(ctx context.Context, header http.Header) (Principal, bool)
}

// RequireSession rejects requests without a valid session with a plain 403
// and stores the principal for downstream handlers otherwise.
func RequireSession(authn Authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		principal, ok := authn.Authenticate(c.Request.Context(), c.Request.Header)
		if !ok {
			c.String(http.StatusForbidden, "Forbidden")
			c.Abort()
			return
		}

		c.Set(principalContextKey, principal)
		c.Next()
	}
}

// CurrentPrincipal extracts the authenticated principal from the context.
func CurrentPrincipal(c *gin.Context) (Principal, bool) {
	value, exists := c.Get(principalContextKey)
	if !exists {
		return Principal{}, false
	}
	principal, ok := value.(Principal)
	return principal, ok
}
