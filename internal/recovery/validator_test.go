package recovery

import (
	"fmt"
	"testing"
	"time"

	xerrors "buzz-client/internal/pkg/errors"
	"buzz-client/internal/pkg/jwt"

	"github.com/alicebob/miniredis/v2"
	gojwt "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const testSecret = "super-secret-jwt-token-with-at-least-32-characters"

func signToken(t *testing.T, sub uuid.UUID, exp time.Time) string {
	t.Helper()
	return signTokenWithMethod(t, sub, exp, "otp")
}

func signTokenWithMethod(t *testing.T, sub uuid.UUID, exp time.Time, method string) string {
	t.Helper()
	claims := jwt.Claims{
		Email:        "ada@example.com",
		UserMetadata: map[string]any{"username": "ada"},
		AMR:          []jwt.AuthMethodEntry{{Method: method, Timestamp: time.Now().Unix()}},
		RegisteredClaims: gojwt.RegisteredClaims{
			Subject:   sub.String(),
			Audience:  gojwt.ClaimStrings{"authenticated"},
			ExpiresAt: gojwt.NewNumericDate(exp),
		},
	}
	token, err := gojwt.NewWithClaims(gojwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)
	return token
}

func newValidator(t *testing.T) (*Validator, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewValidator(jwt.NewVerifier(testSecret, "authenticated"), NewRedisLedger(rdb, ""), zap.NewNop()), mr
}

func recoveryURL(token, typ string) string {
	return fmt.Sprintf("http://localhost:5173/#access_token=%s&refresh_token=r1&expires_in=3600&token_type=bearer&type=%s", token, typ)
}

func reason(t *testing.T, err error) string {
	t.Helper()
	var rle *xerrors.RecoveryLinkError
	require.ErrorAs(t, err, &rle)
	return rle.Reason
}

func TestValidateAcceptsFreshLinkOnce(t *testing.T) {
	v, mr := newValidator(t)
	sub := uuid.New()
	token := signToken(t, sub, time.Now().Add(time.Hour))

	ident, err := v.Validate(t.Context(), recoveryURL(token, "recovery"))
	require.NoError(t, err)
	assert.Equal(t, sub, ident.ID)
	assert.Equal(t, "ada@example.com", ident.Email)
	assert.Equal(t, "r1", ident.RefreshToken)
	assert.Equal(t, "ada", ident.Username())
	assert.True(t, ident.Recovery)

	keys := mr.Keys()
	require.Len(t, keys, 1)
	assert.NotContains(t, keys[0], token, "ledger stores a digest, not the token")
	assert.Greater(t, mr.TTL(keys[0]), 50*time.Minute)

	_, err = v.Validate(t.Context(), recoveryURL(token, "recovery"))
	assert.Equal(t, xerrors.RecoveryReused, reason(t, err))
}

func TestValidateRejections(t *testing.T) {
	v, _ := newValidator(t)
	fresh := signToken(t, uuid.New(), time.Now().Add(time.Hour))
	expired := signToken(t, uuid.New(), time.Now().Add(-time.Minute))
	password := signTokenWithMethod(t, uuid.New(), time.Now().Add(time.Hour), "password")

	cases := []struct {
		name     string
		location string
		reason   string
	}{
		{"no fragment", "http://localhost:5173/", xerrors.RecoveryMissing},
		{"no type", "http://localhost:5173/#access_token=" + fresh, xerrors.RecoveryMissing},
		{"signup link", recoveryURL(fresh, "signup"), xerrors.RecoveryWrongType},
		{"no token", "http://localhost:5173/#type=recovery", xerrors.RecoveryMalformed},
		{"garbage token", recoveryURL("not-a-jwt", "recovery"), xerrors.RecoveryMalformed},
		{"expired token", recoveryURL(expired, "recovery"), xerrors.RecoveryExpired},
		{"password session token", recoveryURL(password, "recovery"), xerrors.RecoveryWrongType},
		{"bad expires_in", "http://x/#access_token=" + fresh + "&type=recovery&expires_in=soon", xerrors.RecoveryMalformed},
		{"service says expired", "http://x/#error=access_denied&error_code=otp_expired&error_description=Email+link+is+invalid+or+has+expired", xerrors.RecoveryExpired},
		{"service error", "http://x/#error=server_error", xerrors.RecoveryMalformed},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := v.Validate(t.Context(), tc.location)
			assert.Equal(t, tc.reason, reason(t, err))
		})
	}
}

func TestValidateRejectsTamperedSignature(t *testing.T) {
	v, _ := newValidator(t)
	token := signToken(t, uuid.New(), time.Now().Add(time.Hour))

	_, err := v.Validate(t.Context(), recoveryURL(token+"x", "recovery"))
	assert.Equal(t, xerrors.RecoveryMalformed, reason(t, err))
}

func TestValidateHonoursShorterLinkExpiry(t *testing.T) {
	v, _ := newValidator(t)
	token := signToken(t, uuid.New(), time.Now().Add(time.Hour))
	past := time.Now().Add(-time.Second).Unix()

	_, err := v.Validate(t.Context(), fmt.Sprintf("http://x/#access_token=%s&expires_at=%d&type=recovery", token, past))
	assert.Equal(t, xerrors.RecoveryExpired, reason(t, err))
}

func TestValidateLedgerUnavailable(t *testing.T) {
	v, mr := newValidator(t)
	mr.Close()
	token := signToken(t, uuid.New(), time.Now().Add(time.Hour))

	_, err := v.Validate(t.Context(), recoveryURL(token, "recovery"))
	require.Error(t, err)
	var rle *xerrors.RecoveryLinkError
	assert.False(t, xerrors.As(err, &rle), "infrastructure failure is not a bad link")
}

func TestDecodeOnlyVerifierStillChecksExpiry(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()
	v := NewValidator(jwt.NewVerifier("", ""), NewRedisLedger(rdb, "test"), zap.NewNop())

	expired := signToken(t, uuid.New(), time.Now().Add(-time.Minute))
	_, err := v.Validate(t.Context(), "http://x/#access_token="+expired+"&type=recovery")
	assert.Equal(t, xerrors.RecoveryExpired, reason(t, err))
}
