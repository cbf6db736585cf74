// Package authapi talks to the hosted auth service over its REST API.
package authapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"buzz-client/internal/domain/auth"
	xerrors "buzz-client/internal/pkg/errors"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type Client struct {
	baseURL string
	anonKey string
	http    *http.Client
	logger  *zap.Logger
	now     func() time.Time
}

func NewClient(baseURL, anonKey string, timeout time.Duration, logger *zap.Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		anonKey: anonKey,
		http:    &http.Client{Timeout: timeout},
		logger:  logger,
		now:     time.Now,
	}
}

type userPayload struct {
	ID           string         `json:"id"`
	Email        string         `json:"email"`
	UserMetadata map[string]any `json:"user_metadata"`
}

type sessionPayload struct {
	AccessToken  string       `json:"access_token"`
	RefreshToken string       `json:"refresh_token"`
	ExpiresIn    int64        `json:"expires_in"`
	ExpiresAt    int64        `json:"expires_at"`
	User         *userPayload `json:"user"`
}

// errorPayload covers the several error shapes the service has used over time.
type errorPayload struct {
	Code             any    `json:"code"`
	ErrorCode        string `json:"error_code"`
	Msg              string `json:"msg"`
	Message          string `json:"message"`
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

// ========== Sessions ==========

// SignInWithPassword exchanges credentials for a session
func (c *Client) SignInWithPassword(ctx context.Context, email, password string) (*auth.Identity, error) {
	var out sessionPayload
	body := map[string]string{"email": email, "password": password}
	if err := c.do(ctx, http.MethodPost, "/token?grant_type=password", "", body, &out); err != nil {
		return nil, err
	}
	return c.identityFrom(&out)
}

// SignUp creates an account. The identity is nil when the service requires email confirmation first.
func (c *Client) SignUp(ctx context.Context, email, password string, metadata map[string]string) (*auth.Identity, error) {
	var out struct {
		sessionPayload
		userPayload
	}
	body := map[string]any{"email": email, "password": password, "data": metadata}
	if err := c.do(ctx, http.MethodPost, "/signup", "", body, &out); err != nil {
		return nil, err
	}
	if out.AccessToken == "" {
		c.logger.Info("sign-up pending email confirmation", zap.String("email", email))
		return nil, nil
	}
	return c.identityFrom(&out.sessionPayload)
}

// RefreshSession trades a refresh token for a new session
func (c *Client) RefreshSession(ctx context.Context, refreshToken string) (*auth.Identity, error) {
	var out sessionPayload
	body := map[string]string{"refresh_token": refreshToken}
	if err := c.do(ctx, http.MethodPost, "/token?grant_type=refresh_token", "", body, &out); err != nil {
		return nil, err
	}
	return c.identityFrom(&out)
}

// SignOut revokes the session behind the access token
func (c *Client) SignOut(ctx context.Context, accessToken string) error {
	return c.do(ctx, http.MethodPost, "/logout", accessToken, nil, nil)
}

// ========== Password Management ==========

// ResetPasswordForEmail asks the service to mail a recovery link. The service answers the same
// way whether or not the address exists.
func (c *Client) ResetPasswordForEmail(ctx context.Context, email, redirectTo string) error {
	path := "/recover"
	if redirectTo != "" {
		path += "?redirect_to=" + url.QueryEscape(redirectTo)
	}
	return c.do(ctx, http.MethodPost, path, "", map[string]string{"email": email}, nil)
}

// UpdatePassword sets a new password for the signed-in user
func (c *Client) UpdatePassword(ctx context.Context, accessToken, newPassword string) error {
	return c.do(ctx, http.MethodPut, "/user", accessToken, map[string]string{"password": newPassword}, nil)
}

// ========== Helper Methods ==========

func (c *Client) do(ctx context.Context, method, path, bearer string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.anonKey != "" {
		req.Header.Set("apikey", c.anonKey)
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("auth service unreachable: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("failed to read auth response: %w", err)
	}

	if resp.StatusCode >= 400 {
		return c.toAuthError(resp.StatusCode, raw)
	}
	if out == nil || len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("failed to decode auth response: %w", err)
	}
	return nil
}

func (c *Client) toAuthError(status int, raw []byte) error {
	var p errorPayload
	_ = json.Unmarshal(raw, &p)

	msg := firstNonEmpty(p.Msg, p.Message, p.ErrorDescription, p.Error, http.StatusText(status))
	code := classify(status, p.ErrorCode, p.Error, msg)

	c.logger.Debug("auth service rejected request",
		zap.Int("status", status),
		zap.String("code", code),
		zap.String("message", msg),
	)
	return xerrors.NewAuthError(code, msg, status)
}

func classify(status int, errorCode, errorField, msg string) string {
	switch errorCode {
	case "invalid_credentials", "invalid_grant":
		return xerrors.CodeInvalidCredentials
	case "email_not_confirmed":
		return xerrors.CodeEmailNotConfirmed
	case "user_already_exists", "email_exists":
		return xerrors.CodeUserExists
	case "weak_password":
		return xerrors.CodeWeakPassword
	case "over_request_rate_limit", "over_email_send_rate_limit":
		return xerrors.CodeRateLimited
	case "refresh_token_not_found", "refresh_token_already_used", "session_not_found", "session_expired", "bad_jwt":
		return xerrors.CodeSessionExpired
	}

	lower := strings.ToLower(msg)
	switch {
	case status == http.StatusTooManyRequests:
		return xerrors.CodeRateLimited
	case strings.Contains(lower, "email not confirmed"):
		return xerrors.CodeEmailNotConfirmed
	case strings.Contains(lower, "already registered"):
		return xerrors.CodeUserExists
	case strings.Contains(lower, "password should"):
		return xerrors.CodeWeakPassword
	case strings.Contains(lower, "refresh token"), status == http.StatusUnauthorized:
		return xerrors.CodeSessionExpired
	case strings.Contains(lower, "invalid login credentials"), errorField == "invalid_grant":
		return xerrors.CodeInvalidCredentials
	}
	return xerrors.CodeUnknown
}

func (c *Client) identityFrom(s *sessionPayload) (*auth.Identity, error) {
	if s.User == nil || s.AccessToken == "" {
		return nil, fmt.Errorf("auth response carried no session")
	}
	id, err := uuid.Parse(s.User.ID)
	if err != nil {
		return nil, fmt.Errorf("invalid user id %q: %w", s.User.ID, err)
	}

	expiresAt := time.Unix(s.ExpiresAt, 0)
	if s.ExpiresAt == 0 {
		expiresAt = c.now().Add(time.Duration(s.ExpiresIn) * time.Second)
	}

	return &auth.Identity{
		ID:           id,
		Email:        s.User.Email,
		AccessToken:  s.AccessToken,
		RefreshToken: s.RefreshToken,
		ExpiresAt:    expiresAt,
		Metadata:     stringMetadata(s.User.UserMetadata),
	}, nil
}

func stringMetadata(in map[string]any) map[string]string {
	if len(in) == 0 {
		return nil
	}
	out := make(map[string]string, len(in))
	for k, v := range in {
		if s, ok := v.(string); ok {
			out[k] = s
		}
	}
	return out
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
