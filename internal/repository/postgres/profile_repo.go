// internal/repository/postgres/profile_repo.go
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"buzz-client/internal/domain/profile"
	xerrors "buzz-client/internal/pkg/errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const uniqueViolation = "23505"

const profileColumns = `id, username, full_name, bio, avatar_url, is_admin, created_at, updated_at`

type ProfileRepository struct {
	db *pgxpool.Pool
}

func NewProfileRepository(db *pgxpool.Pool) *ProfileRepository {
	return &ProfileRepository{db: db}
}

// FindByID retrieves a profile by its identity subject id
func (r *ProfileRepository) FindByID(ctx context.Context, id uuid.UUID) (*profile.Profile, error) {
	query := `SELECT ` + profileColumns + ` FROM profiles WHERE id = $1`

	p, err := scanProfile(r.db.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, xerrors.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find profile: %w", err)
	}
	return p, nil
}

// Create inserts a new profile. Unique violations come back as *xerrors.ConflictError.
func (r *ProfileRepository) Create(ctx context.Context, p *profile.Profile) error {
	query := `
		INSERT INTO profiles (id, username, full_name, bio, avatar_url, is_admin, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $7)
		RETURNING created_at, updated_at
	`

	now := time.Now()
	err := r.db.QueryRow(ctx, query,
		p.ID, p.Username, p.FullName, p.Bio, p.AvatarURL, p.IsAdmin, now,
	).Scan(&p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if conflict := asConflict(err); conflict != nil {
			return conflict
		}
		return fmt.Errorf("failed to create profile: %w", err)
	}
	return nil
}

// Update writes the user-editable fields and returns the stored row
func (r *ProfileRepository) Update(ctx context.Context, p *profile.Profile) (*profile.Profile, error) {
	query := `
		UPDATE profiles
		SET username = $1, full_name = $2, bio = $3, avatar_url = $4, updated_at = $5
		WHERE id = $6
		RETURNING ` + profileColumns

	updated, err := scanProfile(r.db.QueryRow(ctx, query,
		p.Username, p.FullName, p.Bio, p.AvatarURL, time.Now(), p.ID,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, xerrors.ErrNotFound
	}
	if err != nil {
		if conflict := asConflict(err); conflict != nil {
			return nil, conflict
		}
		return nil, fmt.Errorf("failed to update profile: %w", err)
	}
	return updated, nil
}

// SetAdmin toggles the admin flag
func (r *ProfileRepository) SetAdmin(ctx context.Context, id uuid.UUID, isAdmin bool) (*profile.Profile, error) {
	query := `
		UPDATE profiles SET is_admin = $1, updated_at = $2
		WHERE id = $3
		RETURNING ` + profileColumns

	updated, err := scanProfile(r.db.QueryRow(ctx, query, isAdmin, time.Now(), id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, xerrors.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to set admin flag: %w", err)
	}
	return updated, nil
}

// List returns profiles newest first with the total count
func (r *ProfileRepository) List(ctx context.Context, filter profile.ListFilter) ([]*profile.Profile, int64, error) {
	filter = filter.Normalize()

	var total int64
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM profiles`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count profiles: %w", err)
	}

	query := `SELECT ` + profileColumns + ` FROM profiles ORDER BY created_at DESC, id LIMIT $1 OFFSET $2`
	rows, err := r.db.Query(ctx, query, filter.Limit, filter.Offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list profiles: %w", err)
	}
	defer rows.Close()

	var profiles []*profile.Profile
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan profile: %w", err)
		}
		profiles = append(profiles, p)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to iterate profiles: %w", err)
	}

	return profiles, total, nil
}

// ========== Helper Methods ==========

func scanProfile(row pgx.Row) (*profile.Profile, error) {
	var p profile.Profile
	err := row.Scan(
		&p.ID, &p.Username, &p.FullName, &p.Bio, &p.AvatarURL,
		&p.IsAdmin, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func asConflict(err error) *xerrors.ConflictError {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return &xerrors.ConflictError{Constraint: pgErr.ConstraintName}
	}
	return nil
}
