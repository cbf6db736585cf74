package router

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"

	"buzz-client/internal/authctx"

	"go.uber.org/zap"
)

var (
	ErrSelectionRequired = errors.New("page requires a selected id")
	ErrUnknownPage       = errors.New("unknown page")
)

// State is the mounted page and, for event detail and update, its selected id. The zero value
// is the feed.
type State struct {
	page       Page
	selectedID string
}

func Feed() State { return State{page: PageFeed} }

// Select builds a state for a page that needs an id.
func Select(page Page, id string) (State, error) {
	id = strings.TrimSpace(id)
	if !page.NeedsSelection() {
		return State{}, fmt.Errorf("%s does not take a selected id", page)
	}
	if id == "" {
		return State{}, fmt.Errorf("%w: %s", ErrSelectionRequired, page)
	}
	return State{page: page, selectedID: id}, nil
}

// Plain builds a state for a page without a selection.
func Plain(page Page) (State, error) {
	if page.NeedsSelection() {
		return State{}, fmt.Errorf("%w: %s", ErrSelectionRequired, page)
	}
	if _, ok := pageNames[page]; !ok {
		return State{}, fmt.Errorf("%w: %d", ErrUnknownPage, int(page))
	}
	return State{page: page}, nil
}

func (s State) Page() Page { return s.page }

// SelectedID is empty for pages without a selection.
func (s State) SelectedID() string { return s.selectedID }

func (s State) String() string {
	if s.selectedID == "" {
		return s.page.String()
	}
	return s.page.String() + ":" + s.selectedID
}

func (s State) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Page       Page   `json:"page"`
		SelectedID string `json:"selected_id,omitempty"`
	}{s.page, s.selectedID})
}

// Listener observes every state change.
type Listener func(State)

type Router struct {
	logger *zap.Logger

	// emitMu orders state changes with their delivery
	emitMu sync.Mutex

	mu        sync.RWMutex
	state     State
	listeners []Listener

	mountOnce sync.Once
}

func New(logger *zap.Logger) *Router {
	return &Router{logger: logger, state: Feed()}
}

// State returns the page and selection together.
func (r *Router) State() State {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.state
}

// OnChange registers l for every later change.
func (r *Router) OnChange(l Listener) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.listeners = append(r.listeners, l)
}

// Navigate replaces the state. Pages that need a selection take id in the same step; every
// other page drops whatever was selected.
func (r *Router) Navigate(page Page, id string) (State, error) {
	var (
		next State
		err  error
	)
	if page.NeedsSelection() {
		next, err = Select(page, id)
	} else {
		next, err = Plain(page)
	}
	if err != nil {
		return r.State(), err
	}

	r.set(next)
	return next, nil
}

// Mount runs the recovery-link check against the location the app was opened with. Only the
// first call has any effect; it reports whether the reset screen was forced.
func (r *Router) Mount(location string) bool {
	forced := false
	r.mountOnce.Do(func() {
		if HasRecoveryMarker(location) {
			forced = true
			r.set(State{page: PagePasswordReset})
			r.logger.Info("recovery link detected, showing password reset")
		}
	})
	return forced
}

func (r *Router) set(next State) {
	r.emitMu.Lock()
	defer r.emitMu.Unlock()

	r.mu.Lock()
	r.state = next
	listeners := make([]Listener, len(r.listeners))
	copy(listeners, r.listeners)
	r.mu.Unlock()

	r.logger.Debug("navigated", zap.Stringer("state", next))
	for _, l := range listeners {
		l(next)
	}
}

// HasRecoveryMarker reports whether the location's fragment carries type=recovery.
func HasRecoveryMarker(location string) bool {
	_, fragment, found := strings.Cut(location, "#")
	if !found || fragment == "" {
		return false
	}
	values, err := url.ParseQuery(fragment)
	if err != nil {
		return strings.Contains(fragment, "type=recovery")
	}
	return values.Get("type") == "recovery"
}

// Reconcile moves off a gated page once nobody is signed in.
func (r *Router) Reconcile(v authctx.Value) {
	state := r.State()
	if RequirementFor(state.Page()) == RequireNone {
		return
	}
	if v.Status() == authctx.StatusUnauthenticated {
		r.set(Feed())
	}
}
