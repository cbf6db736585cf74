// internal/domain/profile/dto.go
package profile

// UpdateProfileRequest for the profile screen. Empty optional fields are stored as NULL.
type UpdateProfileRequest struct {
	Username  string `json:"username" binding:"required"`
	FullName  string `json:"full_name"`
	Bio       string `json:"bio"`
	AvatarURL string `json:"avatar_url"`
}

// SetAdminRequest for the admin screen. IsAdmin is a pointer so a missing flag fails binding
// instead of reading as false.
type SetAdminRequest struct {
	IsAdmin *bool `json:"is_admin" binding:"required"`
}

// ListFilter pages through profiles, newest first
type ListFilter struct {
	Limit  int `form:"limit"`
	Offset int `form:"offset"`
}

// Normalize clamps the filter to sane bounds.
func (f ListFilter) Normalize() ListFilter {
	if f.Limit <= 0 || f.Limit > 100 {
		f.Limit = 50
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	return f
}
