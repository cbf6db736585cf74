// internal/handlers/page/page_handler.go
package page

import (
	"net/http"

	"buzz-client/internal/pkg/response"
	"buzz-client/internal/router"

	"github.com/gin-gonic/gin"
)

// Navigator is implemented by router.Navigator.
type Navigator interface {
	Navigate(page router.Page, selectedID string) (router.Decision, error)
	Current() router.Decision
}

type NavigateRequest struct {
	Page       string `json:"page" binding:"required"`
	SelectedID string `json:"selected_id"`
}

type PageHandler struct {
	navigator Navigator
}

func NewPageHandler(navigator Navigator) *PageHandler {
	return &PageHandler{navigator: navigator}
}

// Current returns the mounted page gated against the current auth value.
func (h *PageHandler) Current(c *gin.Context) {
	response.Success(c, http.StatusOK, "current page", h.navigator.Current())
}

// Navigate switches page. A denied gate is not an error; the decision says what to show.
func (h *PageHandler) Navigate(c *gin.Context) {
	var req NavigateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationError(c, "invalid request", err)
		return
	}

	p, err := router.ParsePage(req.Page)
	if err != nil {
		response.ErrorCode(c, http.StatusBadRequest, "unknown_page", err.Error())
		return
	}

	d, err := h.navigator.Navigate(p, req.SelectedID)
	if err != nil {
		response.ErrorCode(c, http.StatusBadRequest, "selection_required", err.Error())
		return
	}

	response.Success(c, http.StatusOK, "navigated", d)
}
