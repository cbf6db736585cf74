package router

import (
	"encoding/json"
	"sync"
	"testing"

	"buzz-client/internal/authctx"
	"buzz-client/internal/domain/auth"
	"buzz-client/internal/domain/profile"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestDefaultsToFeed(t *testing.T) {
	r := New(zap.NewNop())
	assert.False(t, r.Mount("http://localhost:5173/"))
	assert.Equal(t, PageFeed, r.State().Page())
	assert.Empty(t, r.State().SelectedID())
}

func TestMountForcesPasswordResetOnRecoveryLink(t *testing.T) {
	r := New(zap.NewNop())
	_, err := r.Navigate(PageFeed, "")
	require.NoError(t, err)

	forced := r.Mount("http://localhost:5173/#access_token=abc&expires_in=3600&type=recovery")

	assert.True(t, forced)
	assert.Equal(t, PagePasswordReset, r.State().Page())
}

func TestMountRunsOnce(t *testing.T) {
	r := New(zap.NewNop())
	assert.False(t, r.Mount("http://localhost:5173/"))
	assert.False(t, r.Mount("http://localhost:5173/#type=recovery"))
	assert.Equal(t, PageFeed, r.State().Page())
}

func TestHasRecoveryMarker(t *testing.T) {
	cases := map[string]bool{
		"":                                       false,
		"http://localhost:5173/":                 false,
		"http://localhost:5173/#":                false,
		"http://localhost:5173/#type=signup":     false,
		"http://x/?type=recovery":                false,
		"http://x/#type=recovery":                true,
		"http://x/#access_token=a&type=recovery": true,
		"http://x/#%zz&type=recovery":            true,
	}
	for location, want := range cases {
		assert.Equal(t, want, HasRecoveryMarker(location), location)
	}
}

func TestNavigateSetsSelectionAtomically(t *testing.T) {
	r := New(zap.NewNop())

	var mu sync.Mutex
	var seen []State
	r.OnChange(func(s State) {
		mu.Lock()
		defer mu.Unlock()
		seen = append(seen, s)
	})

	got, err := r.Navigate(PageEventDetail, "42")
	require.NoError(t, err)
	assert.Equal(t, PageEventDetail, got.Page())
	assert.Equal(t, "42", got.SelectedID())
	assert.Equal(t, got, r.State())

	_, err = r.Navigate(PageUpdate, "7")
	require.NoError(t, err)
	_, err = r.Navigate(PageFeed, "ignored")
	require.NoError(t, err)
	assert.Empty(t, r.State().SelectedID())

	mu.Lock()
	defer mu.Unlock()
	for _, s := range seen {
		assert.Equal(t, s.Page().NeedsSelection(), s.SelectedID() != "", s.String())
	}
}

func TestNavigateRejectsMissingSelection(t *testing.T) {
	r := New(zap.NewNop())
	_, err := r.Navigate(PageEventDetail, "42")
	require.NoError(t, err)

	_, err = r.Navigate(PageUpdate, " ")
	assert.ErrorIs(t, err, ErrSelectionRequired)
	assert.Equal(t, "42", r.State().SelectedID(), "failed navigation leaves state alone")

	_, err = r.Navigate(Page(99), "")
	assert.ErrorIs(t, err, ErrUnknownPage)
}

func TestStateConstructors(t *testing.T) {
	_, err := Select(PageFeed, "1")
	assert.Error(t, err)
	_, err = Plain(PageEventDetail)
	assert.ErrorIs(t, err, ErrSelectionRequired)

	var zero State
	assert.Equal(t, PageFeed, zero.Page())
}

func TestConcurrentNavigationNeverMixesPageAndID(t *testing.T) {
	r := New(zap.NewNop())

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, _ = r.Navigate(PageEventDetail, "42")
		}()
		go func() {
			defer wg.Done()
			_, _ = r.Navigate(PageProfile, "")
			s := r.State()
			assert.Equal(t, s.Page() == PageEventDetail, s.SelectedID() == "42")
		}()
	}
	wg.Wait()
}

func TestPageJSON(t *testing.T) {
	s, err := Select(PageEventDetail, "42")
	require.NoError(t, err)

	data, err := json.Marshal(s)
	require.NoError(t, err)
	assert.JSONEq(t, `{"page":"event","selected_id":"42"}`, string(data))

	var p Page
	require.NoError(t, json.Unmarshal([]byte(`"password-reset"`), &p))
	assert.Equal(t, PagePasswordReset, p)
	assert.Error(t, json.Unmarshal([]byte(`"nowhere"`), &p))
}

func signedIn(isAdmin bool) authctx.Value {
	id := uuid.New()
	return authctx.Value{
		Identity: &auth.Identity{ID: id, Email: "ada@example.com"},
		Profile:  &profile.Profile{ID: id, Username: "ada", IsAdmin: isAdmin},
	}
}

func TestGate(t *testing.T) {
	admin, _ := Plain(PageAdmin)
	create, _ := Plain(PageCreate)
	feed := Feed()
	detail, _ := Select(PageEventDetail, "42")

	loading := authctx.Value{Loading: true}
	anonymous := authctx.Value{}
	unavailable := authctx.Value{Identity: &auth.Identity{ID: uuid.New()}, ProfileErr: assert.AnError}

	cases := []struct {
		name    string
		state   State
		value   authctx.Value
		allowed bool
		loading bool
		reason  string
	}{
		{"feed while loading", feed, loading, true, true, ""},
		{"feed anonymous", feed, anonymous, true, false, ""},
		{"detail anonymous", detail, anonymous, true, false, ""},
		{"create anonymous", create, anonymous, false, false, ReasonSignInRequired},
		{"create loading", create, loading, false, true, ""},
		{"create signed in", create, signedIn(false), true, false, ""},
		{"create profile unavailable", create, unavailable, false, false, ReasonProfileMissing},
		{"admin as user", admin, signedIn(false), false, false, ReasonAdminRequired},
		{"admin as admin", admin, signedIn(true), true, false, ""},
		{"admin anonymous", admin, anonymous, false, false, ReasonSignInRequired},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			d := Gate(tc.state, tc.value)
			assert.Equal(t, tc.allowed, d.Allowed)
			assert.Equal(t, tc.loading, d.Loading)
			assert.Equal(t, tc.reason, d.Reason)
		})
	}
}

func TestAdminDeniedAfterSignOut(t *testing.T) {
	r := New(zap.NewNop())
	v := signedIn(true)

	state, err := r.Navigate(PageAdmin, "")
	require.NoError(t, err)
	require.True(t, Gate(state, v).Allowed)

	signedOut := authctx.Value{}
	r.Reconcile(signedOut)
	assert.Equal(t, PageFeed, r.State().Page())

	state, err = r.Navigate(PageAdmin, "")
	require.NoError(t, err)
	assert.False(t, Gate(state, signedOut).Allowed)
}
