// internal/domain/profile/entity.go
package profile

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
)

// Unique constraints a profile write can trip over
const (
	ConstraintPK       = "profiles_pkey"
	ConstraintUsername = "profiles_username_key"
)

// MaxUsernameLen matches the column check in the profiles table.
const MaxUsernameLen = 40

// Profile is the user-facing record paired one-to-one with an auth identity.
type Profile struct {
	ID        uuid.UUID      `json:"id" db:"id"`
	Username  string         `json:"username" db:"username"`
	FullName  sql.NullString `json:"full_name" db:"full_name"`
	Bio       sql.NullString `json:"bio" db:"bio"`
	AvatarURL sql.NullString `json:"avatar_url" db:"avatar_url"`
	IsAdmin   bool           `json:"is_admin" db:"is_admin"`
	CreatedAt time.Time      `json:"created_at" db:"created_at"`
	UpdatedAt time.Time      `json:"updated_at" db:"updated_at"`
}

// Clone returns a copy so snapshots handed to readers cannot be changed underneath them.
func (p *Profile) Clone() *Profile {
	if p == nil {
		return nil
	}
	c := *p
	return &c
}
