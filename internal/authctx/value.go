package authctx

import (
	"encoding/json"

	"buzz-client/internal/domain/auth"
	"buzz-client/internal/domain/profile"
)

// Status is the auth state screens branch on.
type Status int

const (
	StatusLoading Status = iota
	StatusUnauthenticated
	StatusAuthenticated
	// StatusProfileUnavailable means signed in but the profile could not be read. Not logged out.
	StatusProfileUnavailable
)

func (s Status) String() string {
	switch s {
	case StatusLoading:
		return "loading"
	case StatusUnauthenticated:
		return "unauthenticated"
	case StatusAuthenticated:
		return "authenticated"
	case StatusProfileUnavailable:
		return "profile_unavailable"
	}
	return "unknown"
}

func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Value is replaced wholesale on every change; readers never mutate it.
type Value struct {
	Identity   *auth.Identity   `json:"identity"`
	Profile    *profile.Profile `json:"profile"`
	Loading    bool             `json:"loading"`
	ProfileErr error            `json:"-"`
}

func (v Value) Status() Status {
	switch {
	case v.Loading:
		return StatusLoading
	case v.Identity == nil:
		return StatusUnauthenticated
	case v.Profile != nil:
		return StatusAuthenticated
	case v.ProfileErr != nil:
		return StatusProfileUnavailable
	}
	return StatusLoading
}

// IsAdmin reports an authenticated admin.
func (v Value) IsAdmin() bool {
	return v.Status() == StatusAuthenticated && v.Profile.IsAdmin
}

// MarshalJSON adds the derived status. The profile error is reduced to a flag-like message.
func (v Value) MarshalJSON() ([]byte, error) {
	out := struct {
		Status   Status           `json:"status"`
		Identity *auth.Identity   `json:"identity,omitempty"`
		Profile  *profile.Profile `json:"profile,omitempty"`
		Error    string           `json:"error,omitempty"`
	}{Status: v.Status(), Identity: v.Identity, Profile: v.Profile}
	if v.ProfileErr != nil {
		out.Error = "profile unavailable"
	}
	return json.Marshal(out)
}
