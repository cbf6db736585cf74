// internal/domain/auth/entity.go
package auth

import (
	"time"

	"github.com/google/uuid"
)

// EventType is the kind of session change reported by the session store.
type EventType string

const (
	EventInitialSession   EventType = "INITIAL_SESSION"
	EventSignedIn         EventType = "SIGNED_IN"
	EventSignedOut        EventType = "SIGNED_OUT"
	EventTokenRefreshed   EventType = "TOKEN_REFRESHED"
	EventPasswordRecovery EventType = "PASSWORD_RECOVERY"
	EventUserUpdated      EventType = "USER_UPDATED"
)

// Identity is the authenticated session issued by the auth service.
// Values are replaced wholesale on every session event and never mutated.
type Identity struct {
	ID           uuid.UUID         `json:"id"`
	Email        string            `json:"email"`
	AccessToken  string            `json:"-"`
	RefreshToken string            `json:"-"`
	ExpiresAt    time.Time         `json:"expires_at"`
	Metadata     map[string]string `json:"metadata,omitempty"`
	Recovery     bool              `json:"recovery"` // session was opened from a password-recovery link
}

// Username returns the username chosen at sign-up, if the service carried one.
func (i *Identity) Username() string {
	if i == nil || i.Metadata == nil {
		return ""
	}
	return i.Metadata["username"]
}

// Expired reports whether the access token is past its expiry.
func (i *Identity) Expired(now time.Time) bool {
	return !i.ExpiresAt.IsZero() && !now.Before(i.ExpiresAt)
}

// SameSubject reports whether both identities belong to the same user.
func (i *Identity) SameSubject(other *Identity) bool {
	if i == nil || other == nil {
		return false
	}
	return i.ID == other.ID
}

// SessionEvent is delivered to session listeners. Identity is nil when nobody is signed in.
type SessionEvent struct {
	Type     EventType `json:"type"`
	Identity *Identity `json:"identity"`
	Seq      uint64    `json:"seq"`
}
