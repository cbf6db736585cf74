// internal/pkg/response/response.go
package response

import (
	"context"
	"errors"
	"net/http"

	xerrors "buzz-client/internal/pkg/errors"

	"github.com/gin-gonic/gin"
)

// Response defines the standard API response format.
type Response struct {
	Success bool        `json:"success"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
	Code    string      `json:"code,omitempty"`
}

// Success sends a successful response with a message and optional data.
func Success(c *gin.Context, status int, message string, data interface{}) {
	if status == 0 {
		status = http.StatusOK
	}

	c.JSON(status, Response{
		Success: true,
		Message: message,
		Data:    data,
	})
}

// Error sends a standardized error response.
func Error(c *gin.Context, code int, message string, err error, data ...interface{}) {
	c.Abort()

	response := Response{
		Success: false,
		Message: message,
	}

	if err != nil {
		response.Error = err.Error()
	}

	if len(data) > 0 {
		response.Data = data[0]
	}

	c.JSON(code, response)
}

// ErrorCode sends an error response carrying a machine-readable code.
func ErrorCode(c *gin.Context, status int, code, message string) {
	c.AbortWithStatusJSON(status, Response{Success: false, Message: message, Code: code})
}

// FromError maps a core error onto its status and sends it. Auth service messages are passed
// through verbatim so the screen can show them.
func FromError(c *gin.Context, err error, data ...interface{}) {
	status, code, message := Classify(err)

	c.Abort()
	resp := Response{Success: false, Message: message, Error: err.Error(), Code: code}
	if len(data) > 0 {
		resp.Data = data[0]
	}
	c.JSON(status, resp)
}

// Classify returns the HTTP status, error code and user-facing message for err.
func Classify(err error) (int, string, string) {
	var (
		authErr     *xerrors.AuthError
		loadErr     *xerrors.ProfileLoadError
		recoveryErr *xerrors.RecoveryLinkError
		conflictErr *xerrors.ConflictError
	)

	switch {
	case errors.As(err, &authErr):
		return authStatus(authErr), authErr.Code, authErr.Error()
	case errors.As(err, &recoveryErr):
		return http.StatusBadRequest, "recovery_" + recoveryErr.Reason, "This password reset link is invalid or has expired"
	case errors.As(err, &loadErr):
		return http.StatusServiceUnavailable, "profile_unavailable", "Your profile could not be loaded, please try again"
	case errors.As(err, &conflictErr):
		return http.StatusConflict, "conflict", "That username is already taken"
	case errors.Is(err, xerrors.ErrUsernameRequired):
		return http.StatusBadRequest, "username_required", "Username is required"
	case errors.Is(err, xerrors.ErrInvalidInput):
		return http.StatusBadRequest, "invalid_input", err.Error()
	case errors.Is(err, xerrors.ErrNoSession), errors.Is(err, xerrors.ErrUnauthorized):
		return http.StatusUnauthorized, "unauthorized", "Please sign in"
	case errors.Is(err, xerrors.ErrForbidden):
		return http.StatusForbidden, "forbidden", "You are not allowed to do that"
	case errors.Is(err, xerrors.ErrNotFound):
		return http.StatusNotFound, "not_found", "Not found"
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "timeout", "The request timed out"
	}
	return http.StatusInternalServerError, "internal", "Something went wrong"
}

func authStatus(e *xerrors.AuthError) int {
	switch e.Code {
	case xerrors.CodeInvalidCredentials, xerrors.CodeSessionExpired, xerrors.CodeEmailNotConfirmed:
		return http.StatusUnauthorized
	case xerrors.CodeUserExists:
		return http.StatusConflict
	case xerrors.CodeWeakPassword:
		return http.StatusUnprocessableEntity
	case xerrors.CodeRateLimited:
		return http.StatusTooManyRequests
	}
	if e.Status >= 400 && e.Status < 600 {
		return e.Status
	}
	return http.StatusBadGateway
}

// ValidationError sends a 400 Bad Request response for invalid input.
func ValidationError(c *gin.Context, message string, err error) {
	Error(c, http.StatusBadRequest, message, err)
}

// Unauthorized sends a 401 Unauthorized response.
func Unauthorized(c *gin.Context, message string) {
	Error(c, http.StatusUnauthorized, message, nil)
}

// Forbidden sends a 403 Forbidden response.
func Forbidden(c *gin.Context, message string) {
	Error(c, http.StatusForbidden, message, nil)
}

// NotFound sends a 404 Not Found response.
func NotFound(c *gin.Context, message string) {
	Error(c, http.StatusNotFound, message, nil)
}
