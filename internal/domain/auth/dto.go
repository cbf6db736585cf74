// internal/domain/auth/dto.go
package auth

// SignInRequest for password sign-in
type SignInRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// SignUpRequest for account creation. Username is checked by the auth context, not the binder,
// so an empty username is reported with its own error.
type SignUpRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
	Username string `json:"username"`
}

// ResetPasswordRequest starts the out-of-band recovery email flow
type ResetPasswordRequest struct {
	Email string `json:"email" binding:"required,email"`
}

// RecoveryRequest carries the location the app was opened with
type RecoveryRequest struct {
	Location string `json:"location" binding:"required"`
}

// UpdatePasswordRequest completes a password recovery
type UpdatePasswordRequest struct {
	Password string `json:"password" binding:"required"`
}
