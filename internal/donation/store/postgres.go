package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"swasthya/internal/donation/models"
	"swasthya/pkg/domain"
	"swasthya/pkg/platform/sentinel"
	txcontext "swasthya/pkg/platform/tx"
)

// Postgres persists donations. The unique index on request_id is the durable
// form of the one-donation-per-request invariant; Create surfaces a violation
// as ErrConflict instead of letting a second record in.
type Postgres struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed donation store.
func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *Postgres) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

const donationColumns = `id, request_id, donor, receiver, status, confirmation_code, completed_at, created_at`

func (s *Postgres) Create(ctx context.Context, donation *models.Donation) error {
	query := `
		INSERT INTO donations (id, request_id, donor, receiver, status, confirmation_code, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := s.execer(ctx).ExecContext(ctx, query,
		uuid.UUID(donation.ID),
		uuid.UUID(donation.RequestID),
		donation.Donor,
		donation.Receiver,
		string(donation.Status),
		donation.ConfirmationCode,
		donation.CreatedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return fmt.Errorf("donation for request %s: %w", donation.RequestID, sentinel.ErrConflict)
		}
		return fmt.Errorf("create donation: %w", err)
	}
	return nil
}

func (s *Postgres) FindByRequest(ctx context.Context, requestID domain.RequestID) (*models.Donation, error) {
	query := `SELECT ` + donationColumns + ` FROM donations WHERE request_id = $1`
	donation, err := scanDonation(s.execer(ctx).QueryRowContext(ctx, query, uuid.UUID(requestID)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("donation for request %s: %w", requestID, sentinel.ErrNotFound)
		}
		return nil, fmt.Errorf("find donation: %w", err)
	}
	return donation, nil
}

// CompleteByRequest conditionally completes the donation; the status
// predicate keeps a retried confirmation from rewriting completed_at.
func (s *Postgres) CompleteByRequest(ctx context.Context, requestID domain.RequestID, code string, now time.Time) (*models.Donation, error) {
	query := `
		UPDATE donations
		SET status = 'completed',
			confirmation_code = COALESCE(NULLIF(confirmation_code, ''), $2),
			completed_at = $3
		WHERE request_id = $1 AND status = 'pending'
		RETURNING ` + donationColumns
	donation, err := scanDonation(s.execer(ctx).QueryRowContext(ctx, query, uuid.UUID(requestID), code, now))
	if err == nil {
		return donation, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("complete donation: %w", err)
	}
	var status string
	selErr := s.execer(ctx).QueryRowContext(ctx,
		`SELECT status FROM donations WHERE request_id = $1`, uuid.UUID(requestID)).Scan(&status)
	if errors.Is(selErr, sql.ErrNoRows) {
		return nil, fmt.Errorf("donation for request %s: %w", requestID, sentinel.ErrNotFound)
	}
	if selErr != nil {
		return nil, fmt.Errorf("classify donation miss: %w", selErr)
	}
	return nil, fmt.Errorf("donation for request %s is %s: %w", requestID, status, sentinel.ErrInvalidState)
}

// ListByDonor returns a donor's donations, newest first.
func (s *Postgres) ListByDonor(ctx context.Context, donor string) ([]*models.Donation, error) {
	query := `SELECT ` + donationColumns + ` FROM donations WHERE donor = $1 ORDER BY created_at DESC`
	rows, err := s.db.QueryContext(ctx, query, donor)
	if err != nil {
		return nil, fmt.Errorf("list donations: %w", err)
	}
	defer rows.Close()

	var out []*models.Donation
	for rows.Next() {
		donation, err := scanDonation(rows)
		if err != nil {
			return nil, fmt.Errorf("scan donation: %w", err)
		}
		out = append(out, donation)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list donations: %w", err)
	}
	return out, nil
}

type donationRow interface {
	Scan(dest ...any) error
}

func scanDonation(row donationRow) (*models.Donation, error) {
	var donation models.Donation
	var rowID, requestID uuid.UUID
	var code sql.NullString
	var completedAt sql.NullTime
	if err := row.Scan(
		&rowID,
		&requestID,
		&donation.Donor,
		&donation.Receiver,
		&donation.Status,
		&code,
		&completedAt,
		&donation.CreatedAt,
	); err != nil {
		return nil, err
	}
	donation.ID = domain.DonationID(rowID)
	donation.RequestID = domain.RequestID(requestID)
	donation.ConfirmationCode = code.String
	if completedAt.Valid {
		donation.CompletedAt = &completedAt.Time
	}
	return &donation, nil
}
