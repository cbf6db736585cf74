// internal/handlers/auth/auth_handler.go
package auth

import (
	"context"
	"net/http"

	"buzz-client/internal/authctx"
	"buzz-client/internal/domain/auth"
	"buzz-client/internal/pkg/response"
	"buzz-client/internal/router"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// AuthService is the auth context surface the screens call.
type AuthService interface {
	Snapshot() authctx.Value
	SignIn(ctx context.Context, email, password string) (authctx.Value, error)
	SignUp(ctx context.Context, email, password, username string) (authctx.Value, error)
	SignOut(ctx context.Context) error
	ResetPassword(ctx context.Context, email string) error
	UpdatePassword(ctx context.Context, newPassword string) error
	BeginRecovery(ident *auth.Identity) error
	RefreshProfile(ctx context.Context) (authctx.Value, error)
}

// RecoveryValidator checks a recovery link before the reset form may open.
type RecoveryValidator interface {
	Validate(ctx context.Context, location string) (*auth.Identity, error)
}

// Navigator moves the view router.
type Navigator interface {
	Navigate(page router.Page, selectedID string) (router.Decision, error)
}

type AuthHandler struct {
	auth      AuthService
	recovery  RecoveryValidator
	navigator Navigator
	logger    *zap.Logger
}

func NewAuthHandler(authService AuthService, recovery RecoveryValidator, navigator Navigator, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{
		auth:      authService,
		recovery:  recovery,
		navigator: navigator,
		logger:    logger,
	}
}

// State returns the current auth value.
func (h *AuthHandler) State(c *gin.Context) {
	response.Success(c, http.StatusOK, "auth state", h.auth.Snapshot())
}

// ========== Sign In / Sign Up ==========

func (h *AuthHandler) SignIn(c *gin.Context) {
	var req auth.SignInRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationError(c, "invalid request", err)
		return
	}

	v, err := h.auth.SignIn(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		h.logger.Warn("sign in failed", zap.String("email", req.Email), zap.Error(err))
		response.FromError(c, err, v)
		return
	}

	response.Success(c, http.StatusOK, "signed in", v)
}

func (h *AuthHandler) SignUp(c *gin.Context) {
	var req auth.SignUpRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationError(c, "invalid request", err)
		return
	}

	v, err := h.auth.SignUp(c.Request.Context(), req.Email, req.Password, req.Username)
	if err != nil {
		h.logger.Warn("sign up failed", zap.String("email", req.Email), zap.Error(err))
		response.FromError(c, err, v)
		return
	}

	if v.Identity == nil {
		response.Success(c, http.StatusAccepted, "check your email to confirm the account", v)
		return
	}
	response.Success(c, http.StatusCreated, "account created", v)
}

// SignOut always ends on the feed, signed out. A failed remote call is only logged.
func (h *AuthHandler) SignOut(c *gin.Context) {
	if err := h.auth.SignOut(c.Request.Context()); err != nil {
		h.logger.Warn("sign out reported an error", zap.Error(err))
	}
	if _, err := h.navigator.Navigate(router.PageFeed, ""); err != nil {
		h.logger.Error("navigate to feed after sign out", zap.Error(err))
	}

	response.Success(c, http.StatusOK, "signed out", h.auth.Snapshot())
}

// ========== Password Recovery ==========

func (h *AuthHandler) ResetPassword(c *gin.Context) {
	var req auth.ResetPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationError(c, "invalid request", err)
		return
	}

	if err := h.auth.ResetPassword(c.Request.Context(), req.Email); err != nil {
		h.logger.Warn("reset password failed", zap.String("email", req.Email), zap.Error(err))
		response.FromError(c, err)
		return
	}

	response.Success(c, http.StatusOK, "if the address has an account, a reset link is on its way", nil)
}

// Recovery validates a recovery link and opens the reset screen for it.
func (h *AuthHandler) Recovery(c *gin.Context) {
	var req auth.RecoveryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationError(c, "invalid request", err)
		return
	}

	ident, err := h.recovery.Validate(c.Request.Context(), req.Location)
	if err != nil {
		h.logger.Warn("recovery link rejected", zap.Error(err))
		response.FromError(c, err)
		return
	}

	if err := h.auth.BeginRecovery(ident); err != nil {
		response.FromError(c, err)
		return
	}

	d, err := h.navigator.Navigate(router.PagePasswordReset, "")
	if err != nil {
		response.FromError(c, err)
		return
	}

	response.Success(c, http.StatusOK, "recovery session started", gin.H{"auth": h.auth.Snapshot(), "page": d})
}

// UpdatePassword completes a recovery and leaves the reset screen.
func (h *AuthHandler) UpdatePassword(c *gin.Context) {
	var req auth.UpdatePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationError(c, "invalid request", err)
		return
	}

	if err := h.auth.UpdatePassword(c.Request.Context(), req.Password); err != nil {
		h.logger.Warn("update password failed", zap.Error(err))
		response.FromError(c, err)
		return
	}

	d, err := h.navigator.Navigate(router.PageFeed, "")
	if err != nil {
		h.logger.Error("navigate to feed after password update", zap.Error(err))
	}

	response.Success(c, http.StatusOK, "password updated", gin.H{"auth": h.auth.Snapshot(), "page": d})
}

// ========== Profile ==========

func (h *AuthHandler) RefreshProfile(c *gin.Context) {
	v, err := h.auth.RefreshProfile(c.Request.Context())
	if err != nil {
		response.FromError(c, err, v)
		return
	}
	response.Success(c, http.StatusOK, "profile refreshed", v)
}
