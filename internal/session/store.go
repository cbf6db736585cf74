// internal/session/store.go
package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"buzz-client/internal/domain/auth"
	"buzz-client/internal/metrics"
	xerrors "buzz-client/internal/pkg/errors"

	"go.uber.org/zap"
)

// AuthService is the external auth service the store wraps.
type AuthService interface {
	SignInWithPassword(ctx context.Context, email, password string) (*auth.Identity, error)
	SignUp(ctx context.Context, email, password string, metadata map[string]string) (*auth.Identity, error)
	RefreshSession(ctx context.Context, refreshToken string) (*auth.Identity, error)
	SignOut(ctx context.Context, accessToken string) error
	ResetPasswordForEmail(ctx context.Context, email, redirectTo string) error
	UpdatePassword(ctx context.Context, accessToken, newPassword string) error
}

// Limiter throttles attempts locally before the service is called.
type Limiter interface {
	CheckSignInAttempt(ctx context.Context, email string) (bool, int64, error)
	ResetSignInAttempts(ctx context.Context, email string) error
	CheckPasswordResetAttempt(ctx context.Context, email string) (bool, error)
}

// Listener receives session events in emission order. It runs on the emitting goroutine
// and must not call back into the Store.
type Listener func(auth.SessionEvent)

type Options struct {
	RedirectTo    string        // recovery link target handed to the service
	RefreshMargin time.Duration // refresh this long before the access token expires
	RetryDelay    time.Duration // wait before retrying a refresh that failed in transit
	CallTimeout   time.Duration // bound for calls made from the refresh timer
}

type listenerEntry struct {
	id uint64
	fn Listener
}

// Store is the single source of truth for who is signed in (raw identity only).
type Store struct {
	svc     AuthService
	limiter Limiter
	metrics metrics.MetricsCollector
	logger  *zap.Logger
	opts    Options
	now     func() time.Time

	// emitMu serializes state changes with their delivery so listeners see events in order
	emitMu sync.Mutex

	mu        sync.RWMutex
	current   *auth.Identity
	seq       uint64
	listeners []listenerEntry
	nextID    uint64
	timer     *time.Timer
	started   bool
	closed    bool
}

func NewStore(svc AuthService, limiter Limiter, collector metrics.MetricsCollector, logger *zap.Logger, opts Options) *Store {
	if collector == nil {
		collector = metrics.Nop{}
	}
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = 10 * time.Second
	}
	if opts.CallTimeout <= 0 {
		opts.CallTimeout = 15 * time.Second
	}
	return &Store{
		svc:     svc,
		limiter: limiter,
		metrics: collector,
		logger:  logger,
		opts:    opts,
		now:     time.Now,
	}
}

// OnSessionChange registers a listener and returns its unsubscribe func.
func (s *Store) OnSessionChange(fn Listener) func() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	id := s.nextID
	s.listeners = append(s.listeners, listenerEntry{id: id, fn: fn})

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		for i, l := range s.listeners {
			if l.id == id {
				s.listeners = append(s.listeners[:i:i], s.listeners[i+1:]...)
				return
			}
		}
	}
}

// Current returns the identity as of the last emitted event, or nil.
func (s *Store) Current() *auth.Identity {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// Start reports the initial session state to listeners. Only the first call emits.
func (s *Store) Start(ctx context.Context) {
	s.mu.Lock()
	if s.started || s.closed {
		s.mu.Unlock()
		return
	}
	s.started = true
	cur := s.current
	s.mu.Unlock()

	s.transition(auth.EventInitialSession, cur)
}

// Close stops the refresh timer and drops every listener.
func (s *Store) Close() {
	s.emitMu.Lock()
	defer s.emitMu.Unlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.listeners = nil
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}

// ========== Sign In / Sign Up ==========

// SignIn authenticates with email/password
func (s *Store) SignIn(ctx context.Context, email, password string) (*auth.Identity, error) {
	if s.limiter != nil {
		allowed, _, err := s.limiter.CheckSignInAttempt(ctx, email)
		if err != nil {
			s.logger.Warn("sign-in limiter unavailable", zap.Error(err))
		} else if !allowed {
			s.metrics.RecordAuthFailure("sign_in", xerrors.CodeRateLimited)
			return nil, xerrors.NewAuthError(xerrors.CodeRateLimited, "too many sign-in attempts, please try again later", 429)
		}
	}

	ident, err := s.svc.SignInWithPassword(ctx, email, password)
	if err != nil {
		s.recordFailure("sign_in", err)
		return nil, err
	}

	if s.limiter != nil {
		if err := s.limiter.ResetSignInAttempts(ctx, email); err != nil {
			s.logger.Warn("failed to reset sign-in attempts", zap.Error(err))
		}
	}

	s.transition(auth.EventSignedIn, ident)
	return ident, nil
}

// SignUp creates an account carrying the username as user metadata. The returned identity is nil
// when the service holds the account for email confirmation.
func (s *Store) SignUp(ctx context.Context, email, password, username string) (*auth.Identity, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, xerrors.ErrUsernameRequired
	}

	ident, err := s.svc.SignUp(ctx, email, password, map[string]string{"username": username})
	if err != nil {
		s.recordFailure("sign_up", err)
		return nil, err
	}
	if ident == nil {
		return nil, nil
	}
	if ident.Username() == "" {
		withName := *ident
		withName.Metadata = make(map[string]string, len(ident.Metadata)+1)
		for k, v := range ident.Metadata {
			withName.Metadata[k] = v
		}
		withName.Metadata["username"] = username
		ident = &withName
	}

	s.transition(auth.EventSignedIn, ident)
	return ident, nil
}

// ========== Sign Out ==========

// SignOut clears the session. Local state is cleared and SIGNED_OUT delivered before it returns,
// even if the service could not be reached.
func (s *Store) SignOut(ctx context.Context) error {
	if cur := s.Current(); cur != nil {
		if err := s.svc.SignOut(ctx, cur.AccessToken); err != nil {
			s.logger.Warn("remote sign-out failed, clearing local session anyway",
				zap.String("identity_id", cur.ID.String()),
				zap.Error(err),
			)
		}
	}

	s.transition(auth.EventSignedOut, nil)
	return nil
}

// ========== Password Management ==========

// ResetPassword asks the service to send a recovery email. It resolves once the request is
// accepted, whether or not the address exists.
func (s *Store) ResetPassword(ctx context.Context, email string) error {
	if s.limiter != nil {
		allowed, err := s.limiter.CheckPasswordResetAttempt(ctx, email)
		if err != nil {
			s.logger.Warn("reset limiter unavailable", zap.Error(err))
		} else if !allowed {
			s.metrics.RecordAuthFailure("reset_password", xerrors.CodeRateLimited)
			return xerrors.NewAuthError(xerrors.CodeRateLimited, "too many password reset attempts, please try again later", 429)
		}
	}

	if err := s.svc.ResetPasswordForEmail(ctx, email, s.opts.RedirectTo); err != nil {
		s.recordFailure("reset_password", err)
		return err
	}
	return nil
}

// UpdatePassword sets a new password for the current session and ends recovery mode.
func (s *Store) UpdatePassword(ctx context.Context, newPassword string) error {
	cur := s.Current()
	if cur == nil {
		return xerrors.ErrNoSession
	}

	if err := s.svc.UpdatePassword(ctx, cur.AccessToken, newPassword); err != nil {
		s.recordFailure("update_password", err)
		return err
	}

	updated := *cur
	updated.Recovery = false
	s.transition(auth.EventUserUpdated, &updated)
	return nil
}

// ExchangeRecovery installs the session carried by a validated recovery link and emits
// PASSWORD_RECOVERY.
func (s *Store) ExchangeRecovery(ident *auth.Identity) error {
	if ident == nil {
		return fmt.Errorf("recovery session is empty")
	}
	recovered := *ident
	recovered.Recovery = true
	s.transition(auth.EventPasswordRecovery, &recovered)
	return nil
}

// ========== Helper Methods ==========

func (s *Store) transition(event auth.EventType, ident *auth.Identity) {
	s.emitMu.Lock()
	defer s.emitMu.Unlock()
	s.emitLocked(event, ident)
}

// emitLocked must be called with emitMu held.
func (s *Store) emitLocked(event auth.EventType, ident *auth.Identity) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.current = ident
	s.seq++
	seq := s.seq
	listeners := make([]listenerEntry, len(s.listeners))
	copy(listeners, s.listeners)
	s.scheduleRefreshLocked(ident, seq, s.refreshDelay(ident))
	s.mu.Unlock()

	s.metrics.RecordSessionEvent(string(event))
	s.logger.Debug("session changed", zap.String("event", string(event)), zap.Uint64("seq", seq))

	ev := auth.SessionEvent{Type: event, Identity: ident, Seq: seq}
	for _, l := range listeners {
		l.fn(ev)
	}
}

func (s *Store) refreshDelay(ident *auth.Identity) time.Duration {
	if ident == nil || ident.RefreshToken == "" || ident.ExpiresAt.IsZero() {
		return -1
	}
	d := ident.ExpiresAt.Sub(s.now()) - s.opts.RefreshMargin
	if d < 0 {
		d = 0
	}
	return d
}

// scheduleRefreshLocked replaces the pending refresh; a negative delay only cancels.
func (s *Store) scheduleRefreshLocked(ident *auth.Identity, seq uint64, delay time.Duration) {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	if delay < 0 || s.closed {
		return
	}
	s.timer = time.AfterFunc(delay, func() { s.refresh(ident, seq) })
}

func (s *Store) refresh(ident *auth.Identity, seq uint64) {
	if !s.isCurrent(seq) {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.opts.CallTimeout)
	defer cancel()

	next, err := s.svc.RefreshSession(ctx, ident.RefreshToken)
	if err != nil {
		if errors.Is(err, xerrors.ErrSessionExpired) {
			s.logger.Info("session invalidated by auth service", zap.String("identity_id", ident.ID.String()))
			s.transitionIfCurrent(seq, auth.EventSignedOut, nil)
			return
		}

		s.logger.Warn("token refresh failed, will retry", zap.Duration("retry_in", s.opts.RetryDelay), zap.Error(err))
		s.mu.Lock()
		if s.seq == seq {
			s.scheduleRefreshLocked(ident, seq, s.opts.RetryDelay)
		}
		s.mu.Unlock()
		return
	}

	next.Recovery = ident.Recovery
	s.transitionIfCurrent(seq, auth.EventTokenRefreshed, next)
}

// transitionIfCurrent drops the transition when another event got there first.
func (s *Store) transitionIfCurrent(seq uint64, event auth.EventType, ident *auth.Identity) {
	s.emitMu.Lock()
	defer s.emitMu.Unlock()
	if !s.isCurrent(seq) {
		return
	}
	s.emitLocked(event, ident)
}

func (s *Store) isCurrent(seq uint64) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.seq == seq && !s.closed
}

func (s *Store) recordFailure(op string, err error) {
	code := xerrors.CodeUnknown
	var ae *xerrors.AuthError
	if errors.As(err, &ae) {
		code = ae.Code
	}
	s.metrics.RecordAuthFailure(op, code)
	s.logger.Info("auth operation rejected", zap.String("op", op), zap.String("code", code), zap.Error(err))
}
