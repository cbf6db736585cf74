// internal/handlers/admin/admin_handler.go
package admin

import (
	"context"
	"net/http"

	"buzz-client/internal/domain/profile"
	"buzz-client/internal/middleware"
	"buzz-client/internal/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type Profiles interface {
	List(ctx context.Context, filter profile.ListFilter) ([]*profile.Profile, int64, error)
	SetAdmin(ctx context.Context, actorID, targetID uuid.UUID, isAdmin bool) (*profile.Profile, error)
}

type AdminHandler struct {
	profiles Profiles
	logger   *zap.Logger
}

func NewAdminHandler(profiles Profiles, logger *zap.Logger) *AdminHandler {
	return &AdminHandler{profiles: profiles, logger: logger}
}

func (h *AdminHandler) ListProfiles(c *gin.Context) {
	var filter profile.ListFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		response.ValidationError(c, "invalid query", err)
		return
	}
	filter = filter.Normalize()

	profiles, total, err := h.profiles.List(c.Request.Context(), filter)
	if err != nil {
		h.logger.Error("list profiles failed", zap.Error(err))
		response.FromError(c, err)
		return
	}

	response.Success(c, http.StatusOK, "profiles", gin.H{
		"profiles": profiles,
		"total":    total,
		"limit":    filter.Limit,
		"offset":   filter.Offset,
	})
}

// SetAdmin toggles another user's admin flag.
func (h *AdminHandler) SetAdmin(c *gin.Context) {
	target, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.ValidationError(c, "invalid profile id", err)
		return
	}

	var req profile.SetAdminRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationError(c, "invalid request", err)
		return
	}

	actor := middleware.MustGetIdentityID(c)
	p, err := h.profiles.SetAdmin(c.Request.Context(), actor, target, *req.IsAdmin)
	if err != nil {
		h.logger.Warn("set admin failed",
			zap.String("actor_id", actor.String()),
			zap.String("target_id", target.String()),
			zap.Error(err),
		)
		response.FromError(c, err)
		return
	}

	h.logger.Info("admin flag changed",
		zap.String("actor_id", actor.String()),
		zap.String("target_id", target.String()),
		zap.Bool("is_admin", p.IsAdmin),
	)
	response.Success(c, http.StatusOK, "admin flag updated", p)
}
