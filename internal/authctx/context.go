// Package authctx merges the session and its profile into the one value every screen reads.
package authctx

import (
	"context"
	"errors"
	"strings"
	"sync"

	"buzz-client/internal/domain/auth"
	"buzz-client/internal/domain/profile"
	"buzz-client/internal/metrics"
	xerrors "buzz-client/internal/pkg/errors"
	"buzz-client/internal/session"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Sessions is the session store as seen by the auth context.
type Sessions interface {
	OnSessionChange(fn session.Listener) func()
	Start(ctx context.Context)
	SignIn(ctx context.Context, email, password string) (*auth.Identity, error)
	SignUp(ctx context.Context, email, password, username string) (*auth.Identity, error)
	SignOut(ctx context.Context) error
	ResetPassword(ctx context.Context, email string) error
	UpdatePassword(ctx context.Context, newPassword string) error
	ExchangeRecovery(ident *auth.Identity) error
}

// Profiles is the profile resolver as seen by the auth context.
type Profiles interface {
	Resolve(ctx context.Context, ident *auth.Identity) (*profile.Profile, error)
	Refresh(ctx context.Context, id uuid.UUID) (*profile.Profile, error)
	Update(ctx context.Context, id uuid.UUID, req *profile.UpdateProfileRequest) (*profile.Profile, error)
}

// Subscriber receives every published Value, oldest first. It must not call back into the
// Context's mutating operations synchronously.
type Subscriber func(Value)

type subscriber struct {
	id uint64
	fn Subscriber
}

// attempt is one profile resolution, started per identity change.
type attempt struct {
	ident *auth.Identity
	gen   uint64
	done  chan struct{}
	once  sync.Once
	err   error
}

func (a *attempt) finish(err error) {
	a.once.Do(func() {
		a.err = err
		close(a.done)
	})
}

type Context struct {
	sessions Sessions
	profiles Profiles
	metrics  metrics.MetricsCollector
	logger   *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu          sync.Mutex
	value       Value
	version     uint64
	gen         uint64
	profileVer  uint64 // bumped each time a profile is installed
	attempt     *attempt
	subs        []subscriber
	nextSub     uint64
	unsubscribe func()

	// notifyMu keeps deliveries in version order
	notifyMu  sync.Mutex
	delivered uint64
}

func New(sessions Sessions, profiles Profiles, collector metrics.MetricsCollector, logger *zap.Logger) *Context {
	if collector == nil {
		collector = metrics.Nop{}
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Context{
		sessions: sessions,
		profiles: profiles,
		metrics:  collector,
		logger:   logger,
		ctx:      ctx,
		cancel:   cancel,
		value:    Value{Loading: true},
	}
}

// Start subscribes to the session store and asks it for the initial session.
func (c *Context) Start(ctx context.Context) {
	c.mu.Lock()
	if c.unsubscribe != nil {
		c.mu.Unlock()
		return
	}
	c.unsubscribe = c.sessions.OnSessionChange(c.handleEvent)
	c.mu.Unlock()

	c.sessions.Start(ctx)
}

// Close releases the session subscription and waits for in-flight resolutions.
func (c *Context) Close() {
	c.mu.Lock()
	unsubscribe := c.unsubscribe
	c.unsubscribe = func() {}
	c.gen++
	if c.attempt != nil {
		c.attempt.finish(nil)
		c.attempt = nil
	}
	c.subs = nil
	c.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
	c.cancel()
	c.wg.Wait()
}

// Snapshot returns the current value.
func (c *Context) Snapshot() Value {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.value
}

// Subscribe registers fn for every later change and returns its unsubscribe func.
func (c *Context) Subscribe(fn Subscriber) func() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.nextSub++
	id := c.nextSub
	c.subs = append(c.subs, subscriber{id: id, fn: fn})

	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		for i, s := range c.subs {
			if s.id == id {
				c.subs = append(c.subs[:i:i], c.subs[i+1:]...)
				return
			}
		}
	}
}

// ========== Operations ==========

// SignIn signs in and waits for the profile. A ProfileLoadError leaves the identity in place.
func (c *Context) SignIn(ctx context.Context, email, password string) (Value, error) {
	ident, err := c.sessions.SignIn(ctx, email, password)
	if err != nil {
		return c.Snapshot(), err
	}
	err = c.wait(ctx, ident)
	return c.Snapshot(), err
}

// SignUp rejects an empty username before anything leaves the process. When the service holds
// the account for email confirmation the returned value stays unauthenticated.
func (c *Context) SignUp(ctx context.Context, email, password, username string) (Value, error) {
	if strings.TrimSpace(username) == "" {
		return c.Snapshot(), xerrors.ErrUsernameRequired
	}

	ident, err := c.sessions.SignUp(ctx, email, password, username)
	if err != nil || ident == nil {
		return c.Snapshot(), err
	}
	err = c.wait(ctx, ident)
	return c.Snapshot(), err
}

// SignOut returns once the value is unauthenticated.
func (c *Context) SignOut(ctx context.Context) error {
	return c.sessions.SignOut(ctx)
}

func (c *Context) ResetPassword(ctx context.Context, email string) error {
	return c.sessions.ResetPassword(ctx, email)
}

// UpdatePassword completes a password recovery.
func (c *Context) UpdatePassword(ctx context.Context, newPassword string) error {
	v := c.Snapshot()
	if v.Identity == nil {
		return xerrors.ErrNoSession
	}
	if !v.Identity.Recovery {
		return xerrors.Wrap(xerrors.ErrForbidden, "password update requires a recovery session")
	}
	return c.sessions.UpdatePassword(ctx, newPassword)
}

// BeginRecovery installs the session from a validated recovery link.
func (c *Context) BeginRecovery(ident *auth.Identity) error {
	return c.sessions.ExchangeRecovery(ident)
}

// RefreshProfile re-reads the current user's profile. The result is dropped if the identity
// changed meanwhile, or if a newer profile was installed while the read was in flight.
func (c *Context) RefreshProfile(ctx context.Context) (Value, error) {
	c.mu.Lock()
	ident, gen, ver := c.value.Identity, c.gen, c.profileVer
	c.mu.Unlock()
	if ident == nil {
		return c.Snapshot(), xerrors.ErrNoSession
	}

	p, err := c.profiles.Refresh(ctx, ident.ID)
	if errors.Is(err, xerrors.ErrNotFound) {
		p, err = c.profiles.Resolve(ctx, ident)
	}
	return c.applyProfile(gen, &ver, p, err), err
}

// UpdateProfile saves the user's edits and publishes the stored row.
func (c *Context) UpdateProfile(ctx context.Context, req *profile.UpdateProfileRequest) (Value, error) {
	c.mu.Lock()
	v, gen := c.value, c.gen
	c.mu.Unlock()
	if v.Status() != StatusAuthenticated {
		return v, xerrors.ErrUnauthorized
	}

	p, err := c.profiles.Update(ctx, v.Identity.ID, req)
	if err != nil {
		return c.Snapshot(), err
	}
	return c.applyProfile(gen, nil, p, nil), nil
}

// ========== Event Handling ==========

// handleEvent runs on the session store's emitting goroutine, one event at a time.
func (c *Context) handleEvent(ev auth.SessionEvent) {
	c.mu.Lock()

	cur := c.value
	ident := ev.Identity

	switch {
	case ident == nil:
		c.supersedeLocked()
		c.setLocked(Value{})

	case ident.SameSubject(cur.Identity) && cur.Profile != nil:
		// Same user, new tokens or flags. The profile still holds.
		c.setLocked(Value{Identity: ident, Profile: cur.Profile})

	case ident.SameSubject(cur.Identity) && c.attempt != nil:
		c.setLocked(Value{Identity: ident, Loading: true})

	default:
		c.supersedeLocked()
		a := &attempt{ident: ident, gen: c.gen, done: make(chan struct{})}
		c.attempt = a
		c.setLocked(Value{Identity: ident, Loading: true})
		c.wg.Add(1)
		go c.resolve(a)
	}

	c.logger.Debug("auth context updated",
		zap.String("event", string(ev.Type)),
		zap.Uint64("seq", ev.Seq),
		zap.Uint64("generation", c.gen),
	)
	c.mu.Unlock()

	c.publish()
}

func (c *Context) resolve(a *attempt) {
	defer c.wg.Done()

	p, err := c.profiles.Resolve(c.ctx, a.ident)

	c.mu.Lock()
	if c.gen != a.gen {
		c.mu.Unlock()
		c.metrics.RecordResolution(metrics.ResolutionStale)
		c.logger.Debug("discarding stale profile resolution",
			zap.String("identity_id", a.ident.ID.String()),
			zap.Uint64("generation", a.gen),
		)
		a.finish(nil)
		return
	}

	ident := c.value.Identity
	if err != nil {
		c.logger.Warn("profile unavailable for signed-in identity",
			zap.String("identity_id", ident.ID.String()),
			zap.Error(err),
		)
		c.setLocked(Value{Identity: ident, ProfileErr: err})
	} else {
		c.profileVer++
		c.setLocked(Value{Identity: ident, Profile: p})
	}
	c.attempt = nil
	c.mu.Unlock()

	c.publish()
	a.finish(err)
}

// applyProfile installs the outcome of a refresh or edit made under generation gen. A refresh
// passes the profile version it started from; an edit passes nil since the stored row it got
// back is the newest.
func (c *Context) applyProfile(gen uint64, since *uint64, p *profile.Profile, err error) Value {
	c.mu.Lock()
	if c.gen != gen || c.value.Identity == nil || (since != nil && c.outdatedLocked(*since, p)) {
		v := c.value
		c.mu.Unlock()
		c.metrics.RecordResolution(metrics.ResolutionStale)
		return v
	}

	switch {
	case err == nil:
		c.profileVer++
		c.setLocked(Value{Identity: c.value.Identity, Profile: p})
	case c.value.Profile == nil:
		c.setLocked(Value{Identity: c.value.Identity, ProfileErr: err})
	default:
		// keep the profile we have; the caller gets the error
		v := c.value
		c.mu.Unlock()
		return v
	}
	v := c.value
	c.mu.Unlock()

	c.publish()
	return v
}

// outdatedLocked reports whether a read that began at profile version since lost to a profile
// installed after it started. A read that is still newer by UpdatedAt wins.
func (c *Context) outdatedLocked(since uint64, p *profile.Profile) bool {
	if c.profileVer == since {
		return false
	}
	cur := c.value.Profile
	return p == nil || cur == nil || !p.UpdatedAt.After(cur.UpdatedAt)
}

// wait blocks until the resolution started for ident settles. A resolution superseded by a
// newer identity returns nil.
func (c *Context) wait(ctx context.Context, ident *auth.Identity) error {
	c.mu.Lock()
	a := c.attempt
	if a == nil || !a.ident.SameSubject(ident) {
		v := c.value
		c.mu.Unlock()
		if v.Identity.SameSubject(ident) && v.ProfileErr != nil {
			return v.ProfileErr
		}
		return nil
	}
	c.mu.Unlock()

	select {
	case <-a.done:
		return a.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// supersedeLocked starts a new generation, releasing anyone waiting on the old attempt.
func (c *Context) supersedeLocked() {
	c.gen++
	if c.attempt != nil {
		c.attempt.finish(nil)
		c.attempt = nil
	}
}

func (c *Context) setLocked(v Value) {
	c.value = v
	c.version++
}

// publish delivers the latest value to subscribers unless a newer one already went out.
func (c *Context) publish() {
	c.notifyMu.Lock()
	defer c.notifyMu.Unlock()

	c.mu.Lock()
	v, version := c.value, c.version
	subs := make([]subscriber, len(c.subs))
	copy(subs, c.subs)
	c.mu.Unlock()

	if version <= c.delivered {
		return
	}
	c.delivered = version

	for _, s := range subs {
		s.fn(v)
	}
}
