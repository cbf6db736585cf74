// internal/middleware/helpers.go
package middleware

import (
	"buzz-client/internal/authctx"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// GetAuthValue returns the auth value the request was admitted with.
func GetAuthValue(c *gin.Context) (authctx.Value, bool) {
	v, exists := c.Get(KeyAuthValue)
	if !exists {
		return authctx.Value{}, false
	}
	value, ok := v.(authctx.Value)
	return value, ok
}

// GetIdentityID gets the signed-in user's id from context
func GetIdentityID(c *gin.Context) (uuid.UUID, bool) {
	v, exists := c.Get(KeyIdentityID)
	if !exists {
		return uuid.Nil, false
	}
	id, ok := v.(uuid.UUID)
	return id, ok
}

// MustGetIdentityID gets identity ID from context or panics
func MustGetIdentityID(c *gin.Context) uuid.UUID {
	id, exists := GetIdentityID(c)
	if !exists {
		panic("identity_id not found in context")
	}
	return id
}

// IsAuthenticated checks if request is authenticated
func IsAuthenticated(c *gin.Context) bool {
	_, exists := c.Get(KeyIdentityID)
	return exists
}

// IsAdmin checks if user is an admin
func IsAdmin(c *gin.Context) bool {
	return c.GetBool(KeyIsAdmin)
}
