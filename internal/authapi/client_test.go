package authapi

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	xerrors "buzz-client/internal/pkg/errors"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL, "anon-key", 5*time.Second, zap.NewNop())
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func TestSignInWithPassword(t *testing.T) {
	id := uuid.New()
	exp := time.Now().Add(time.Hour).Unix()

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/token", r.URL.Path)
		assert.Equal(t, "password", r.URL.Query().Get("grant_type"))
		assert.Equal(t, "anon-key", r.Header.Get("apikey"))

		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "ada@example.com", body["email"])

		writeJSON(w, http.StatusOK, map[string]any{
			"access_token":  "access",
			"refresh_token": "refresh",
			"expires_at":    exp,
			"user": map[string]any{
				"id":            id.String(),
				"email":         "ada@example.com",
				"user_metadata": map[string]any{"username": "ada"},
			},
		})
	})

	ident, err := c.SignInWithPassword(t.Context(), "ada@example.com", "secret")
	require.NoError(t, err)
	assert.Equal(t, id, ident.ID)
	assert.Equal(t, "access", ident.AccessToken)
	assert.Equal(t, "refresh", ident.RefreshToken)
	assert.Equal(t, exp, ident.ExpiresAt.Unix())
	assert.Equal(t, "ada", ident.Username())
}

func TestSignInRejected(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"error_code": "invalid_credentials",
			"msg":        "Invalid login credentials",
		})
	})

	_, err := c.SignInWithPassword(t.Context(), "ada@example.com", "wrong")

	var ae *xerrors.AuthError
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, xerrors.CodeInvalidCredentials, ae.Code)
	assert.Equal(t, "Invalid login credentials", ae.Message)
	assert.Equal(t, http.StatusBadRequest, ae.Status)
}

func TestSignUpPendingConfirmation(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/signup", r.URL.Path)

		var body struct {
			Data map[string]string `json:"data"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "ada", body.Data["username"])

		writeJSON(w, http.StatusOK, map[string]any{"id": uuid.NewString(), "email": "ada@example.com"})
	})

	ident, err := c.SignUp(t.Context(), "ada@example.com", "secret-pass", map[string]string{"username": "ada"})
	require.NoError(t, err)
	assert.Nil(t, ident)
}

func TestErrorClassification(t *testing.T) {
	cases := []struct {
		name   string
		status int
		body   map[string]any
		code   string
	}{
		{"rate limited by status", http.StatusTooManyRequests, map[string]any{"msg": "slow"}, xerrors.CodeRateLimited},
		{"duplicate account", http.StatusUnprocessableEntity, map[string]any{"error_code": "user_already_exists", "msg": "User already registered"}, xerrors.CodeUserExists},
		{"weak password legacy", http.StatusUnprocessableEntity, map[string]any{"msg": "Password should be at least 6 characters"}, xerrors.CodeWeakPassword},
		{"unconfirmed legacy", http.StatusBadRequest, map[string]any{"error": "invalid_grant", "error_description": "Email not confirmed"}, xerrors.CodeEmailNotConfirmed},
		{"dead refresh token", http.StatusBadRequest, map[string]any{"error_code": "refresh_token_not_found", "msg": "Invalid Refresh Token"}, xerrors.CodeSessionExpired},
		{"unknown", http.StatusInternalServerError, map[string]any{}, xerrors.CodeUnknown},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				writeJSON(w, tc.status, tc.body)
			})

			_, err := c.RefreshSession(t.Context(), "refresh")

			var ae *xerrors.AuthError
			require.ErrorAs(t, err, &ae)
			assert.Equal(t, tc.code, ae.Code)
		})
	}
}

func TestRecoverAndUpdatePassword(t *testing.T) {
	var calls []string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls = append(calls, r.Method+" "+r.URL.Path)
		switch r.URL.Path {
		case "/recover":
			assert.Equal(t, "http://localhost:5173/", r.URL.Query().Get("redirect_to"))
		case "/user", "/logout":
			assert.Equal(t, "Bearer access", r.Header.Get("Authorization"))
		}
		w.WriteHeader(http.StatusNoContent)
	})

	require.NoError(t, c.ResetPasswordForEmail(t.Context(), "ada@example.com", "http://localhost:5173/"))
	require.NoError(t, c.UpdatePassword(t.Context(), "access", "new-secret"))
	require.NoError(t, c.SignOut(t.Context(), "access"))

	assert.Equal(t, []string{"POST /recover", "PUT /user", "POST /logout"}, calls)
}
