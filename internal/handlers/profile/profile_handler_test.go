package profile

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"buzz-client/internal/authctx"
	"buzz-client/internal/domain/auth"
	"buzz-client/internal/domain/profile"
	"buzz-client/internal/middleware"
	xerrors "buzz-client/internal/pkg/errors"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type staticAuth struct{ v authctx.Value }

func (s staticAuth) Snapshot() authctx.Value { return s.v }

type fakeEditor struct {
	v   authctx.Value
	err error
	got *profile.UpdateProfileRequest
}

func (f *fakeEditor) UpdateProfile(_ context.Context, req *profile.UpdateProfileRequest) (authctx.Value, error) {
	f.got = req
	if f.err != nil {
		return f.v, f.err
	}
	p := f.v.Profile.Clone()
	p.Username = req.Username
	f.v.Profile = p
	return f.v, nil
}

func signedIn() authctx.Value {
	id := uuid.New()
	return authctx.Value{
		Identity: &auth.Identity{ID: id},
		Profile:  &profile.Profile{ID: id, Username: "ada"},
	}
}

func setup(v authctx.Value, editor *fakeEditor) *gin.Engine {
	h := NewProfileHandler(editor, zap.NewNop())
	m := middleware.NewAuthMiddleware(staticAuth{v})

	r := gin.New()
	g := r.Group("/profile", m.Auth())
	g.GET("", h.Get)
	g.PUT("", h.Update)
	return r
}

func put(r http.Handler, body any) *httptest.ResponseRecorder {
	data, _ := json.Marshal(body)
	req := httptest.NewRequest(http.MethodPut, "/profile", bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestUpdate(t *testing.T) {
	v := signedIn()
	editor := &fakeEditor{v: v}
	r := setup(v, editor)

	w := put(r, gin.H{"username": "ada_l", "bio": "engines"})

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "engines", editor.got.Bio)
	assert.Contains(t, w.Body.String(), `"ada_l"`)
}

func TestUpdate_UsernameTaken(t *testing.T) {
	v := signedIn()
	r := setup(v, &fakeEditor{v: v, err: &xerrors.ConflictError{Constraint: profile.ConstraintUsername}})

	w := put(r, gin.H{"username": "taken"})

	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestUpdate_RequiresSignIn(t *testing.T) {
	editor := &fakeEditor{}
	r := setup(authctx.Value{}, editor)

	w := put(r, gin.H{"username": "ada"})

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Nil(t, editor.got)
}

func TestGet(t *testing.T) {
	v := signedIn()
	r := setup(v, &fakeEditor{v: v})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/profile", nil))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), v.Profile.ID.String())
}
