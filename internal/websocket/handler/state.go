// internal/websocket/handler/state.go
package handler

import (
	"context"
	"fmt"

	"buzz-client/internal/authctx"
	wstypes "buzz-client/internal/domain/websocket"
	"buzz-client/internal/router"
	ws "buzz-client/internal/websocket"

	"go.uber.org/zap"
)

// Navigator is the part of router.Navigator this handler drives.
type Navigator interface {
	Navigate(page router.Page, selectedID string) (router.Decision, error)
	Current() router.Decision
}

// StateHandler answers state requests and navigation from UI views.
type StateHandler struct {
	auth      router.AuthSource
	navigator Navigator
	logger    *zap.Logger
}

func NewStateHandler(auth router.AuthSource, navigator Navigator, logger *zap.Logger) *StateHandler {
	return &StateHandler{auth: auth, navigator: navigator, logger: logger}
}

// SupportedEvents returns events this handler supports
func (h *StateHandler) SupportedEvents() []wstypes.EventType {
	return []wstypes.EventType{
		wstypes.EventTypeAuthState,
		wstypes.EventTypePageState,
		wstypes.EventTypePageNavigate,
	}
}

func (h *StateHandler) HandleMessage(ctx context.Context, client *ws.Client, msg *wstypes.WSMessage) error {
	switch msg.Type {
	case wstypes.EventTypeAuthState:
		client.SendMessage(AuthStateMessage(h.auth.Snapshot()))
		return nil

	case wstypes.EventTypePageState:
		client.SendMessage(PageStateMessage(h.navigator.Current()))
		return nil

	case wstypes.EventTypePageNavigate:
		return h.handleNavigate(client, msg)

	default:
		return fmt.Errorf("unsupported event type: %s", msg.Type)
	}
}

// handleNavigate changes page. The new state reaches every view through the page channel.
func (h *StateHandler) handleNavigate(client *ws.Client, msg *wstypes.WSMessage) error {
	var req wstypes.NavigateRequest
	if err := msg.DecodeData(&req); err != nil {
		return fmt.Errorf("invalid navigate request: %w", err)
	}

	page, err := router.ParsePage(req.Page)
	if err != nil {
		client.SendError("unknown_page", "Unknown page", req.Page)
		return nil
	}

	if _, err := h.navigator.Navigate(page, req.SelectedID); err != nil {
		client.SendError("navigation_rejected", "Navigation rejected", err.Error())
		return nil
	}

	h.logger.Debug("navigated from ui", zap.String("client_id", client.ID()), zap.String("page", page.String()))
	return nil
}

// AuthStateMessage renders an auth value for the auth channel.
func AuthStateMessage(v authctx.Value) *wstypes.WSMessage {
	data := wstypes.AuthStateData{Status: v.Status().String()}
	if v.Identity != nil {
		data.Identity = v.Identity
	}
	if v.Profile != nil {
		data.Profile = v.Profile
	}
	if v.ProfileErr != nil {
		data.Error = "Your profile could not be loaded"
	}
	return wstypes.NewMessage(wstypes.EventTypeAuthState, data)
}

// PageStateMessage renders a gate decision for the page channel.
func PageStateMessage(d router.Decision) *wstypes.WSMessage {
	return wstypes.NewMessage(wstypes.EventTypePageState, d)
}
