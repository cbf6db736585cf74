// Package profile keeps every signed-in identity paired with exactly one profile row.
package profile

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"unicode"

	"buzz-client/internal/domain/auth"
	"buzz-client/internal/domain/profile"
	"buzz-client/internal/metrics"
	xerrors "buzz-client/internal/pkg/errors"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// Store is the profile table, keyed by identity subject id.
type Store interface {
	FindByID(ctx context.Context, id uuid.UUID) (*profile.Profile, error)
	Create(ctx context.Context, p *profile.Profile) error
	Update(ctx context.Context, p *profile.Profile) (*profile.Profile, error)
	SetAdmin(ctx context.Context, id uuid.UUID, isAdmin bool) (*profile.Profile, error)
	List(ctx context.Context, filter profile.ListFilter) ([]*profile.Profile, int64, error)
}

// maxCreateAttempts bounds username suffixing when the preferred name is taken.
const maxCreateAttempts = 3

type Resolver struct {
	store   Store
	group   singleflight.Group
	metrics metrics.MetricsCollector
	logger  *zap.Logger
}

func NewResolver(store Store, collector metrics.MetricsCollector, logger *zap.Logger) *Resolver {
	if collector == nil {
		collector = metrics.Nop{}
	}
	return &Resolver{store: store, metrics: collector, logger: logger}
}

// ========== Resolution ==========

// Resolve returns the profile for ident, creating it on first sight. Concurrent calls for one
// id share a single lookup. Store failures other than not-found come back as *xerrors.ProfileLoadError.
func (r *Resolver) Resolve(ctx context.Context, ident *auth.Identity) (*profile.Profile, error) {
	if ident == nil || ident.ID == uuid.Nil {
		return nil, fmt.Errorf("%w: identity has no subject id", xerrors.ErrInvalidInput)
	}

	v, err, _ := r.group.Do(ident.ID.String(), func() (any, error) {
		return r.resolve(ctx, ident)
	})
	if err != nil {
		r.metrics.RecordResolution(metrics.ResolutionError)
		return nil, err
	}
	return v.(*profile.Profile).Clone(), nil
}

func (r *Resolver) resolve(ctx context.Context, ident *auth.Identity) (*profile.Profile, error) {
	p, err := r.store.FindByID(ctx, ident.ID)
	if err == nil {
		r.metrics.RecordResolution(metrics.ResolutionFound)
		return p, nil
	}
	if !errors.Is(err, xerrors.ErrNotFound) {
		return nil, &xerrors.ProfileLoadError{ID: ident.ID.String(), Err: err}
	}

	return r.create(ctx, ident)
}

func (r *Resolver) create(ctx context.Context, ident *auth.Identity) (*profile.Profile, error) {
	base := DefaultUsername(ident)

	var lastErr error
	for attempt := 0; attempt < maxCreateAttempts; attempt++ {
		p := &profile.Profile{
			ID:       ident.ID,
			Username: candidateUsername(base, ident.ID, attempt),
			IsAdmin:  false,
		}

		err := r.store.Create(ctx, p)
		if err == nil {
			r.metrics.RecordResolution(metrics.ResolutionCreated)
			r.logger.Info("profile created",
				zap.String("profile_id", p.ID.String()),
				zap.String("username", p.Username),
			)
			return p, nil
		}

		var conflict *xerrors.ConflictError
		if !errors.As(err, &conflict) {
			return nil, &xerrors.ProfileLoadError{ID: ident.ID.String(), Err: err}
		}

		// Someone else created the row first.
		if conflict.Constraint != profile.ConstraintUsername {
			existing, ferr := r.store.FindByID(ctx, ident.ID)
			if ferr == nil {
				r.metrics.RecordResolution(metrics.ResolutionFound)
				return existing, nil
			}
			if !errors.Is(ferr, xerrors.ErrNotFound) {
				return nil, &xerrors.ProfileLoadError{ID: ident.ID.String(), Err: ferr}
			}
		}

		r.logger.Debug("username taken, retrying with suffix",
			zap.String("username", p.Username),
			zap.Int("attempt", attempt+1),
		)
		lastErr = err
	}

	return nil, &xerrors.ProfileLoadError{ID: ident.ID.String(), Err: fmt.Errorf("no free username for %q: %w", base, lastErr)}
}

// Refresh re-reads a profile after it was changed elsewhere.
func (r *Resolver) Refresh(ctx context.Context, id uuid.UUID) (*profile.Profile, error) {
	p, err := r.store.FindByID(ctx, id)
	if errors.Is(err, xerrors.ErrNotFound) {
		return nil, err
	}
	if err != nil {
		return nil, &xerrors.ProfileLoadError{ID: id.String(), Err: err}
	}
	return p, nil
}

// ========== Profile Edits ==========

// Update applies the owner's edits. A taken username is returned as *xerrors.ConflictError.
func (r *Resolver) Update(ctx context.Context, id uuid.UUID, req *profile.UpdateProfileRequest) (*profile.Profile, error) {
	username := strings.TrimSpace(req.Username)
	if username == "" {
		return nil, xerrors.ErrUsernameRequired
	}
	if len(username) > profile.MaxUsernameLen {
		return nil, fmt.Errorf("%w: username longer than %d characters", xerrors.ErrInvalidInput, profile.MaxUsernameLen)
	}

	updated, err := r.store.Update(ctx, &profile.Profile{
		ID:        id,
		Username:  username,
		FullName:  nullable(req.FullName),
		Bio:       nullable(req.Bio),
		AvatarURL: nullable(req.AvatarURL),
	})
	if err != nil {
		if errors.Is(err, xerrors.ErrDuplicateEntry) || errors.Is(err, xerrors.ErrNotFound) {
			return nil, err
		}
		return nil, &xerrors.ProfileLoadError{ID: id.String(), Err: err}
	}

	r.logger.Info("profile updated", zap.String("profile_id", id.String()))
	return updated, nil
}

// SetAdmin lets an admin grant or revoke another user's admin flag.
func (r *Resolver) SetAdmin(ctx context.Context, actorID, targetID uuid.UUID, isAdmin bool) (*profile.Profile, error) {
	if actorID == targetID {
		return nil, fmt.Errorf("%w: admins cannot change their own admin flag", xerrors.ErrForbidden)
	}

	actor, err := r.store.FindByID(ctx, actorID)
	if err != nil {
		if errors.Is(err, xerrors.ErrNotFound) {
			return nil, xerrors.ErrForbidden
		}
		return nil, &xerrors.ProfileLoadError{ID: actorID.String(), Err: err}
	}
	if !actor.IsAdmin {
		return nil, xerrors.ErrForbidden
	}

	updated, err := r.store.SetAdmin(ctx, targetID, isAdmin)
	if err != nil {
		if errors.Is(err, xerrors.ErrNotFound) {
			return nil, err
		}
		return nil, &xerrors.ProfileLoadError{ID: targetID.String(), Err: err}
	}

	r.logger.Info("admin flag changed",
		zap.String("actor_id", actorID.String()),
		zap.String("profile_id", targetID.String()),
		zap.Bool("is_admin", isAdmin),
	)
	return updated, nil
}

// List pages through all profiles for the admin screen.
func (r *Resolver) List(ctx context.Context, filter profile.ListFilter) ([]*profile.Profile, int64, error) {
	profiles, total, err := r.store.List(ctx, filter.Normalize())
	if err != nil {
		return nil, 0, &xerrors.ProfileLoadError{ID: "*", Err: err}
	}
	return profiles, total, nil
}

// ========== Username Derivation ==========

// DefaultUsername picks the username for a new profile: the one chosen at sign-up, else the
// local part of the email, normalized.
func DefaultUsername(ident *auth.Identity) string {
	if name := normalizeUsername(ident.Username()); name != "" {
		return name
	}
	local, _, _ := strings.Cut(ident.Email, "@")
	if name := normalizeUsername(local); name != "" {
		return name
	}
	return "user"
}

func normalizeUsername(s string) string {
	var b strings.Builder
	for _, c := range strings.ToLower(strings.TrimSpace(s)) {
		switch {
		case c < unicode.MaxASCII && (unicode.IsLetter(c) || unicode.IsDigit(c)):
			b.WriteRune(c)
		case c == '_' || c == '.' || c == '-':
			b.WriteRune(c)
		}
	}
	name := strings.Trim(b.String(), "._-")
	if len(name) > profile.MaxUsernameLen {
		name = name[:profile.MaxUsernameLen]
	}
	return name
}

// candidateUsername is base for the first attempt, then base with a growing slice of the id's hex.
func candidateUsername(base string, id uuid.UUID, attempt int) string {
	if attempt == 0 {
		return base
	}
	hex := strings.ReplaceAll(id.String(), "-", "")
	suffix := "_" + hex[:4*attempt]
	if len(base)+len(suffix) > profile.MaxUsernameLen {
		base = base[:profile.MaxUsernameLen-len(suffix)]
	}
	return base + suffix
}

func nullable(s string) sql.NullString {
	s = strings.TrimSpace(s)
	return sql.NullString{String: s, Valid: s != ""}
}
