// internal/app/router.go
package app

import (
	"net/http"

	adminHandler "buzz-client/internal/handlers/admin"
	authHandler "buzz-client/internal/handlers/auth"
	pageHandler "buzz-client/internal/handlers/page"
	profileHandler "buzz-client/internal/handlers/profile"
	wsHandler "buzz-client/internal/handlers/websocket"
	"buzz-client/internal/middleware"

	"github.com/gin-gonic/gin"
)

type Handlers struct {
	AuthHandler    *authHandler.AuthHandler
	PageHandler    *pageHandler.PageHandler
	ProfileHandler *profileHandler.ProfileHandler
	AdminHandler   *adminHandler.AdminHandler
	WSHandler      *wsHandler.WebSocketHandler
	AuthMiddleware *middleware.AuthMiddleware
	Metrics        http.Handler
}

func SetupRouter(r *gin.Engine, h *Handlers) {
	api := r.Group("/api/v1")

	// ==================== Health Check ====================
	api.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// ==================== Metrics & WebSocket ====================
	if h.Metrics != nil {
		r.GET("/metrics", gin.WrapH(h.Metrics))
	}
	r.GET("/ws", h.WSHandler.HandleConnection)

	// ==================== Auth ====================
	authRoutes := api.Group("/auth")
	authRoutes.Use(h.AuthMiddleware.OptionalAuth())
	{
		authRoutes.GET("/state", h.AuthHandler.State)
		authRoutes.POST("/sign-in", h.AuthHandler.SignIn)
		authRoutes.POST("/sign-up", h.AuthHandler.SignUp)
		authRoutes.POST("/sign-out", h.AuthHandler.SignOut)
		authRoutes.POST("/reset-password", h.AuthHandler.ResetPassword)
		authRoutes.POST("/recovery", h.AuthHandler.Recovery)
		authRoutes.POST("/update-password", h.AuthHandler.UpdatePassword)
		authRoutes.POST("/refresh-profile", h.AuthHandler.RefreshProfile)
	}

	// ==================== Pages ====================
	pages := api.Group("/page")
	pages.Use(h.AuthMiddleware.OptionalAuth())
	{
		pages.GET("", h.PageHandler.Current)
		pages.POST("/navigate", h.PageHandler.Navigate)
	}

	// ==================== Profile ====================
	profileRoutes := api.Group("/profile")
	profileRoutes.Use(h.AuthMiddleware.Auth())
	{
		profileRoutes.GET("", h.ProfileHandler.Get)
		profileRoutes.PUT("", h.ProfileHandler.Update)
	}

	// ==================== Admin ====================
	admin := api.Group("/admin")
	admin.Use(h.AuthMiddleware.AdminOnly()...)
	{
		admin.GET("/profiles", h.AdminHandler.ListProfiles)
		admin.PUT("/profiles/:id/admin", h.AdminHandler.SetAdmin)
		admin.GET("/ws/stats", h.WSHandler.GetStats)
	}
}
