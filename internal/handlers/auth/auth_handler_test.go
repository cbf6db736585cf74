package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"buzz-client/internal/authctx"
	"buzz-client/internal/domain/auth"
	"buzz-client/internal/domain/profile"
	xerrors "buzz-client/internal/pkg/errors"
	"buzz-client/internal/router"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeAuth struct {
	value       authctx.Value
	signInErr   error
	signOutErr  error
	updateErr   error
	recoveredAs *auth.Identity
	signUpCalls int
}

func (f *fakeAuth) Snapshot() authctx.Value { return f.value }

func (f *fakeAuth) SignIn(_ context.Context, email, _ string) (authctx.Value, error) {
	if f.signInErr != nil {
		return f.value, f.signInErr
	}
	id := uuid.New()
	f.value = authctx.Value{
		Identity: &auth.Identity{ID: id, Email: email},
		Profile:  &profile.Profile{ID: id, Username: "ada"},
	}
	return f.value, nil
}

func (f *fakeAuth) SignUp(_ context.Context, email, _, username string) (authctx.Value, error) {
	f.signUpCalls++
	if username == "" {
		return f.value, xerrors.ErrUsernameRequired
	}
	if email == "pending@example.com" {
		return f.value, nil
	}
	id := uuid.New()
	f.value = authctx.Value{
		Identity: &auth.Identity{ID: id, Email: email},
		Profile:  &profile.Profile{ID: id, Username: username},
	}
	return f.value, nil
}

func (f *fakeAuth) SignOut(context.Context) error {
	f.value = authctx.Value{}
	return f.signOutErr
}

func (f *fakeAuth) ResetPassword(context.Context, string) error { return nil }

func (f *fakeAuth) UpdatePassword(context.Context, string) error { return f.updateErr }

func (f *fakeAuth) BeginRecovery(ident *auth.Identity) error {
	f.recoveredAs = ident
	return nil
}

func (f *fakeAuth) RefreshProfile(context.Context) (authctx.Value, error) {
	if f.value.Identity == nil {
		return f.value, xerrors.ErrNoSession
	}
	return f.value, nil
}

type fakeRecovery struct {
	ident *auth.Identity
	err   error
}

func (f fakeRecovery) Validate(context.Context, string) (*auth.Identity, error) {
	return f.ident, f.err
}

type fakeNavigator struct{ pages []router.Page }

func (n *fakeNavigator) Navigate(page router.Page, id string) (router.Decision, error) {
	n.pages = append(n.pages, page)
	state, err := router.Plain(page)
	return router.Decision{State: state, Allowed: true}, err
}

func setup(a *fakeAuth, rec fakeRecovery) (*gin.Engine, *fakeNavigator) {
	nav := &fakeNavigator{}
	h := NewAuthHandler(a, rec, nav, zap.NewNop())

	r := gin.New()
	g := r.Group("/auth")
	g.GET("/state", h.State)
	g.POST("/sign-in", h.SignIn)
	g.POST("/sign-up", h.SignUp)
	g.POST("/sign-out", h.SignOut)
	g.POST("/reset-password", h.ResetPassword)
	g.POST("/recovery", h.Recovery)
	g.POST("/update-password", h.UpdatePassword)
	g.POST("/refresh-profile", h.RefreshProfile)
	return r, nav
}

func post(r http.Handler, path string, body any) *httptest.ResponseRecorder {
	data, _ := json.Marshal(body)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Code    string          `json:"code"`
	Data    json.RawMessage `json:"data"`
}

func decode(t *testing.T, w *httptest.ResponseRecorder) envelope {
	t.Helper()
	var e envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &e))
	return e
}

func TestSignIn(t *testing.T) {
	r, _ := setup(&fakeAuth{}, fakeRecovery{})

	w := post(r, "/auth/sign-in", gin.H{"email": "ada@example.com", "password": "pw"})

	require.Equal(t, http.StatusOK, w.Code)
	var v struct {
		Status string `json:"status"`
	}
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &v))
	assert.Equal(t, "authenticated", v.Status)
}

func TestSignIn_BadCredentialsKeepServiceMessage(t *testing.T) {
	a := &fakeAuth{signInErr: xerrors.NewAuthError(xerrors.CodeInvalidCredentials, "Invalid login credentials", 400)}
	r, _ := setup(a, fakeRecovery{})

	w := post(r, "/auth/sign-in", gin.H{"email": "ada@example.com", "password": "nope"})

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	e := decode(t, w)
	assert.Equal(t, "Invalid login credentials", e.Message)
	assert.Equal(t, xerrors.CodeInvalidCredentials, e.Code)
}

func TestSignIn_RejectsMalformedBody(t *testing.T) {
	r, _ := setup(&fakeAuth{}, fakeRecovery{})
	w := post(r, "/auth/sign-in", gin.H{"email": "not-an-email"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSignUp(t *testing.T) {
	t.Run("created", func(t *testing.T) {
		r, _ := setup(&fakeAuth{}, fakeRecovery{})
		w := post(r, "/auth/sign-up", gin.H{"email": "ada@example.com", "password": "pw", "username": "ada"})
		assert.Equal(t, http.StatusCreated, w.Code)
	})

	t.Run("pending confirmation", func(t *testing.T) {
		r, _ := setup(&fakeAuth{}, fakeRecovery{})
		w := post(r, "/auth/sign-up", gin.H{"email": "pending@example.com", "password": "pw", "username": "ada"})
		assert.Equal(t, http.StatusAccepted, w.Code)
	})

	t.Run("missing username", func(t *testing.T) {
		r, _ := setup(&fakeAuth{}, fakeRecovery{})
		w := post(r, "/auth/sign-up", gin.H{"email": "ada@example.com", "password": "pw"})
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "username_required", decode(t, w).Code)
	})
}

func TestSignOut_LandsOnFeedEvenWhenRemoteFails(t *testing.T) {
	a := &fakeAuth{signOutErr: errors.New("network down")}
	_, _ = a.SignIn(context.Background(), "ada@example.com", "pw")
	r, nav := setup(a, fakeRecovery{})

	w := post(r, "/auth/sign-out", nil)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []router.Page{router.PageFeed}, nav.pages)
	assert.Nil(t, a.value.Identity)
}

func TestRecovery(t *testing.T) {
	t.Run("valid link opens reset screen", func(t *testing.T) {
		ident := &auth.Identity{ID: uuid.New(), Email: "ada@example.com"}
		a := &fakeAuth{}
		r, nav := setup(a, fakeRecovery{ident: ident})

		w := post(r, "/auth/recovery", gin.H{"location": "http://localhost/#type=recovery&access_token=x"})

		require.Equal(t, http.StatusOK, w.Code)
		assert.Same(t, ident, a.recoveredAs)
		assert.Equal(t, []router.Page{router.PagePasswordReset}, nav.pages)
	})

	t.Run("reused link rejected", func(t *testing.T) {
		a := &fakeAuth{}
		r, nav := setup(a, fakeRecovery{err: &xerrors.RecoveryLinkError{Reason: xerrors.RecoveryReused}})

		w := post(r, "/auth/recovery", gin.H{"location": "http://localhost/#type=recovery&access_token=x"})

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "recovery_"+xerrors.RecoveryReused, decode(t, w).Code)
		assert.Nil(t, a.recoveredAs)
		assert.Empty(t, nav.pages)
	})
}

func TestUpdatePassword(t *testing.T) {
	t.Run("leaves reset screen", func(t *testing.T) {
		r, nav := setup(&fakeAuth{}, fakeRecovery{})
		w := post(r, "/auth/update-password", gin.H{"password": "new-secret"})
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, []router.Page{router.PageFeed}, nav.pages)
	})

	t.Run("needs recovery session", func(t *testing.T) {
		r, nav := setup(&fakeAuth{updateErr: xerrors.ErrNoSession}, fakeRecovery{})
		w := post(r, "/auth/update-password", gin.H{"password": "new-secret"})
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Empty(t, nav.pages)
	})
}

func TestRefreshProfile_SignedOut(t *testing.T) {
	r, _ := setup(&fakeAuth{}, fakeRecovery{})
	w := post(r, "/auth/refresh-profile", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestState(t *testing.T) {
	r, _ := setup(&fakeAuth{value: authctx.Value{Loading: true}}, fakeRecovery{})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/auth/state", nil))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"loading"`)
}
