// internal/handlers/profile/profile_handler.go
package profile

import (
	"context"
	"net/http"

	"buzz-client/internal/authctx"
	"buzz-client/internal/domain/profile"
	"buzz-client/internal/middleware"
	"buzz-client/internal/pkg/response"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type Editor interface {
	UpdateProfile(ctx context.Context, req *profile.UpdateProfileRequest) (authctx.Value, error)
}

type ProfileHandler struct {
	editor Editor
	logger *zap.Logger
}

func NewProfileHandler(editor Editor, logger *zap.Logger) *ProfileHandler {
	return &ProfileHandler{editor: editor, logger: logger}
}

// Get returns the profile the request was admitted with.
func (h *ProfileHandler) Get(c *gin.Context) {
	v, ok := middleware.GetAuthValue(c)
	if !ok || v.Profile == nil {
		response.Unauthorized(c, "Please sign in")
		return
	}
	response.Success(c, http.StatusOK, "profile", v.Profile)
}

func (h *ProfileHandler) Update(c *gin.Context) {
	var req profile.UpdateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationError(c, "invalid request", err)
		return
	}

	v, err := h.editor.UpdateProfile(c.Request.Context(), &req)
	if err != nil {
		h.logger.Warn("profile update failed",
			zap.String("identity_id", middleware.MustGetIdentityID(c).String()),
			zap.Error(err),
		)
		response.FromError(c, err)
		return
	}

	response.Success(c, http.StatusOK, "profile updated", v.Profile)
}
