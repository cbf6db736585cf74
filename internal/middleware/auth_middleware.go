// internal/middleware/auth_middleware.go
package middleware

import (
	"net/http"

	"buzz-client/internal/pkg/response"
	"buzz-client/internal/router"

	"github.com/gin-gonic/gin"
)

// Context keys set by the auth middleware
const (
	KeyAuthValue  = "auth_value"
	KeyIdentityID = "identity_id"
	KeyIsAdmin    = "is_admin"
)

// AuthMiddleware gates shell routes on the process-wide auth value, the same way pages are gated.
type AuthMiddleware struct {
	auth router.AuthSource
}

func NewAuthMiddleware(auth router.AuthSource) *AuthMiddleware {
	return &AuthMiddleware{auth: auth}
}

// Auth requires a signed-in user with a loaded profile.
func (m *AuthMiddleware) Auth() gin.HandlerFunc {
	return m.require(router.PageProfile)
}

// RequireAdmin requires an admin profile.
func (m *AuthMiddleware) RequireAdmin() gin.HandlerFunc {
	return m.require(router.PageAdmin)
}

// AdminOnly returns middlewares for admin-only routes
func (m *AuthMiddleware) AdminOnly() []gin.HandlerFunc {
	return []gin.HandlerFunc{
		m.Auth(),
		m.RequireAdmin(),
	}
}

// OptionalAuth records the auth value without rejecting anyone.
func (m *AuthMiddleware) OptionalAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		v := m.auth.Snapshot()
		c.Set(KeyAuthValue, v)
		if v.Identity != nil {
			c.Set(KeyIdentityID, v.Identity.ID)
		}
		c.Next()
	}
}

func (m *AuthMiddleware) require(page router.Page) gin.HandlerFunc {
	state, err := router.Plain(page)
	if err != nil {
		panic(err)
	}

	return func(c *gin.Context) {
		v := m.auth.Snapshot()
		d := router.Gate(state, v)

		switch {
		case d.Allowed:
			c.Set(KeyAuthValue, v)
			c.Set(KeyIdentityID, v.Identity.ID)
			c.Set(KeyIsAdmin, v.IsAdmin())
			c.Next()

		case d.Loading:
			c.Header("Retry-After", "1")
			response.ErrorCode(c, http.StatusServiceUnavailable, "loading", "Still signing in, try again shortly")

		case d.Reason == router.ReasonAdminRequired:
			response.ErrorCode(c, http.StatusForbidden, d.Reason, "Admins only")

		case d.Reason == router.ReasonProfileMissing:
			response.ErrorCode(c, http.StatusServiceUnavailable, d.Reason, "Your profile could not be loaded, please try again")

		default:
			response.ErrorCode(c, http.StatusUnauthorized, router.ReasonSignInRequired, "Please sign in")
		}
	}
}
