package auth

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
)

const identityKey = "chatd.identity"

// Middleware rejects requests without a valid bearer token and stores the
// resolved Identity in the gin context.
func Middleware(a *Authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := a.Authenticate(TokenFromRequest(c.Request))
		if err != nil {
			msg := "Not authorized, token failed"
			if errors.Is(err, ErrMissingToken) {
				msg = "Not authorized, no token"
			}
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": msg})
			return
		}
		c.Set(identityKey, id)
		c.Next()
	}
}

// IdentityFrom returns the Identity stored by Middleware.
func IdentityFrom(c *gin.Context) (Identity, bool) {
	v, ok := c.Get(identityKey)
	if !ok {
		return Identity{}, false
	}
	id, ok := v.(Identity)
	return id, ok
}
