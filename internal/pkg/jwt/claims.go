// internal/pkg/jwt/claims.go
package jwt

import (
	"fmt"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Claims are the access-token claims issued by the auth service
type Claims struct {
	Email        string            `json:"email"`
	Role         string            `json:"role,omitempty"`
	SessionID    string            `json:"session_id,omitempty"`
	UserMetadata map[string]any    `json:"user_metadata,omitempty"`
	AMR          []AuthMethodEntry `json:"amr,omitempty"`
	jwt.RegisteredClaims
}

// AuthMethodEntry records how the session was authenticated (password, recovery, ...)
type AuthMethodEntry struct {
	Method    string `json:"method"`
	Timestamp int64  `json:"timestamp"`
}

// SubjectID parses the subject claim as a uuid
func (c *Claims) SubjectID() (uuid.UUID, error) {
	id, err := uuid.Parse(c.Subject)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid subject %q: %w", c.Subject, err)
	}
	return id, nil
}

// Metadata flattens string-valued user metadata
func (c *Claims) Metadata() map[string]string {
	if len(c.UserMetadata) == 0 {
		return nil
	}
	out := make(map[string]string, len(c.UserMetadata))
	for k, v := range c.UserMetadata {
		if s, ok := v.(string); ok {
			out[k] = s
		}
	}
	return out
}

// AuthenticatedBy checks if the session was opened with the given method
func (c *Claims) AuthenticatedBy(method string) bool {
	for _, m := range c.AMR {
		if m.Method == method {
			return true
		}
	}
	return false
}
