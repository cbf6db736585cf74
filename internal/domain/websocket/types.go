// internal/domain/websocket/types.go
package websocket

import (
	"encoding/json"
	"time"

	"github.com/oklog/ulid/v2"
)

// EventType represents different real-time event types
type EventType string

const (
	// Connection events
	EventTypePing         EventType = "ping"
	EventTypePong         EventType = "pong"
	EventTypeConnected    EventType = "connected"
	EventTypeDisconnected EventType = "disconnected"
	EventTypeError        EventType = "error"

	// Auth state (server -> client, or a client asking for the current one)
	EventTypeAuthState EventType = "auth:state"

	// Page state
	EventTypePageState    EventType = "page:state"
	EventTypePageNavigate EventType = "page:navigate"

	// Backend change feed
	EventTypeProfileUpdated EventType = "profile:updated"
	EventTypeSessionExpired EventType = "session:expired"
	EventTypeForceLogout    EventType = "session:force_logout"

	// Subscription events
	EventTypeSubscribe   EventType = "subscribe"
	EventTypeUnsubscribe EventType = "unsubscribe"
)

// WSMessage is the universal message format
type WSMessage struct {
	Type      EventType              `json:"type"`
	Data      interface{}            `json:"data,omitempty"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
	ID        string                 `json:"id,omitempty"` // For message tracking/acknowledgment
}

// Subscription channels that clients can subscribe to
type ChannelType string

const (
	ChannelAuth   ChannelType = "auth"
	ChannelPage   ChannelType = "page"
	ChannelSystem ChannelType = "system"
)

// DefaultChannels every UI connection starts on
var DefaultChannels = []ChannelType{ChannelAuth, ChannelPage, ChannelSystem}

// SubscribeRequest sent by client to subscribe to specific channels
type SubscribeRequest struct {
	Channels []ChannelType `json:"channels"`
}

// UnsubscribeRequest sent by client to unsubscribe from channels
type UnsubscribeRequest struct {
	Channels []ChannelType `json:"channels"`
}

// ErrorData for error events
type ErrorData struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

// AuthStateData mirrors the auth context value for the UI.
type AuthStateData struct {
	Status   string      `json:"status"`
	Identity interface{} `json:"identity,omitempty"`
	Profile  interface{} `json:"profile,omitempty"`
	Error    string      `json:"error,omitempty"`
}

// NavigateRequest asks the router for a page
type NavigateRequest struct {
	Page       string `json:"page"`
	SelectedID string `json:"selected_id,omitempty"`
}

// ProfileUpdatedData is emitted by the backend when a profile row changes
type ProfileUpdatedData struct {
	ID string `json:"id"`
}

// SessionEventData for session events
type SessionEventData struct {
	Reason  string `json:"reason"`
	Message string `json:"message,omitempty"`
}

// Helper to create messages
func NewMessage(eventType EventType, data interface{}) *WSMessage {
	return &WSMessage{
		Type:      eventType,
		Data:      data,
		Timestamp: time.Now(),
		ID:        ulid.Make().String(),
	}
}

func (m *WSMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func ParseMessage(data []byte) (*WSMessage, error) {
	var msg WSMessage
	err := json.Unmarshal(data, &msg)
	return &msg, err
}

// DecodeData converts the loosely typed Data into target
func (m *WSMessage) DecodeData(target interface{}) error {
	raw, err := json.Marshal(m.Data)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, target)
}
