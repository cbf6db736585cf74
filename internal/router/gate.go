package router

import (
	"buzz-client/internal/authctx"
)

// Denial reasons
const (
	ReasonSignInRequired = "sign_in_required"
	ReasonAdminRequired  = "admin_required"
	ReasonProfileMissing = "profile_unavailable"
)

// Decision is what to mount for a state under the current auth value.
type Decision struct {
	State   State          `json:"state"`
	Status  authctx.Status `json:"status"`
	Allowed bool           `json:"allowed"`
	// Loading asks the caller for a placeholder; auth has not settled yet.
	Loading bool   `json:"loading"`
	Reason  string `json:"reason,omitempty"`
}

// Requirement is the auth a page needs.
type Requirement int

const (
	RequireNone Requirement = iota
	RequireAuthenticated
	RequireAdmin
)

// RequirementFor maps each page to its gate.
func RequirementFor(p Page) Requirement {
	switch p {
	case PageAdmin:
		return RequireAdmin
	case PageCreate, PageUpdate, PageProfile:
		return RequireAuthenticated
	}
	return RequireNone
}

// Gate decides whether state may render for the given auth value. Open pages render in every
// status, loading included.
func Gate(state State, v authctx.Value) Decision {
	status := v.Status()
	d := Decision{State: state, Status: status}

	switch RequirementFor(state.Page()) {
	case RequireNone:
		d.Allowed = true
		d.Loading = status == authctx.StatusLoading

	case RequireAuthenticated:
		d.Allowed, d.Loading, d.Reason = authenticated(status)

	case RequireAdmin:
		d.Allowed, d.Loading, d.Reason = authenticated(status)
		if d.Allowed && !v.Profile.IsAdmin {
			d.Allowed, d.Reason = false, ReasonAdminRequired
		}
	}

	return d
}

func authenticated(status authctx.Status) (allowed, loading bool, reason string) {
	switch status {
	case authctx.StatusAuthenticated:
		return true, false, ""
	case authctx.StatusLoading:
		return false, true, ""
	case authctx.StatusProfileUnavailable:
		return false, false, ReasonProfileMissing
	}
	return false, false, ReasonSignInRequired
}
