package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	donationModels "swasthya/internal/donation/models"
	"swasthya/internal/profile/models"
	"swasthya/pkg/platform/sentinel"
	txcontext "swasthya/pkg/platform/tx"
)

// Postgres persists donor profiles and their achievements ledger. The
// achievements table only ever sees INSERTs and SELECTs; there is no update
// or delete path, which is the schema-level form of the immutable-ledger
// invariant.
type Postgres struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed profile store.
func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func (s *Postgres) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

func (s *Postgres) FindByEmail(ctx context.Context, email string) (*models.DonorProfile, error) {
	var profile models.DonorProfile
	err := s.execer(ctx).QueryRowContext(ctx,
		`SELECT email, name, created_at FROM donor_profiles WHERE email = $1`, email).
		Scan(&profile.Email, &profile.Name, &profile.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("profile %s: %w", email, sentinel.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("find profile: %w", err)
	}
	achievements, err := s.ListAchievements(ctx, email)
	if err != nil {
		return nil, err
	}
	profile.Achievements = achievements
	return &profile, nil
}

// AppendAchievement appends one ledger entry, creating the profile row on
// first use. Both writes ride any transaction already on the context, so the
// append commits or rolls back with the request transition that caused it.
func (s *Postgres) AppendAchievement(ctx context.Context, email, name string, achievement donationModels.Achievement, now time.Time) error {
	exec := s.execer(ctx)
	_, err := exec.ExecContext(ctx, `
		INSERT INTO donor_profiles (email, name, created_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (email) DO NOTHING
	`, email, name, now)
	if err != nil {
		return fmt.Errorf("ensure profile: %w", err)
	}
	_, err = exec.ExecContext(ctx, `
		INSERT INTO achievements (donor_email, title, achieved_at, confirmation_code, location)
		VALUES ($1, $2, $3, $4, $5)
	`, email, achievement.Title, achievement.Date, achievement.ConfirmationCode, achievement.Location)
	if err != nil {
		return fmt.Errorf("append achievement: %w", err)
	}
	return nil
}

// ListAchievements returns the donor's ledger in append order.
func (s *Postgres) ListAchievements(ctx context.Context, email string) ([]donationModels.Achievement, error) {
	rows, err := s.execer(ctx).QueryContext(ctx, `
		SELECT title, achieved_at, confirmation_code, location
		FROM achievements
		WHERE donor_email = $1
		ORDER BY id
	`, email)
	if err != nil {
		return nil, fmt.Errorf("list achievements: %w", err)
	}
	defer rows.Close()

	var out []donationModels.Achievement
	for rows.Next() {
		var a donationModels.Achievement
		if err := rows.Scan(&a.Title, &a.Date, &a.ConfirmationCode, &a.Location); err != nil {
			return nil, fmt.Errorf("scan achievement: %w", err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list achievements: %w", err)
	}
	return out, nil
}
