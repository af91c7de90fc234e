package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"swasthya/internal/bloodrequest/models"
	"swasthya/pkg/domain"
	"swasthya/pkg/platform/sentinel"
	txcontext "swasthya/pkg/platform/tx"
)

// Postgres persists blood requests. Both lifecycle transitions are single
// conditional UPDATE statements — the WHERE clause on status is what decides
// the race, never an application-side read-then-write. A follow-up SELECT
// runs only after a miss, to tell NotFound apart from a state conflict.
type Postgres struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed request store.
func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// execer returns the transaction from context when the lifecycle service has
// opened one (accept and confirm share a tx with the donation write).
func (s *Postgres) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

const requestColumns = `id, blood_group, units, location_name, location_lat, location_lng,
	requester, status, donor, donor_name, donor_phone, confirmation_code, meeting_time,
	created_at, updated_at`

func (s *Postgres) Create(ctx context.Context, request *models.Request) error {
	query := `
		INSERT INTO blood_requests
			(id, blood_group, units, location_name, location_lat, location_lng,
			 requester, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err := s.execer(ctx).ExecContext(ctx, query,
		uuid.UUID(request.ID),
		request.Group,
		request.Units,
		request.Location.Name,
		request.Location.Lat,
		request.Location.Lng,
		request.Requester,
		string(request.Status),
		request.CreatedAt,
		request.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("create request: %w", translateUnavailable(err))
	}
	return nil
}

func (s *Postgres) FindByID(ctx context.Context, id domain.RequestID) (*models.Request, error) {
	query := `SELECT ` + requestColumns + ` FROM blood_requests WHERE id = $1`
	request, err := scanRequest(s.execer(ctx).QueryRowContext(ctx, query, uuid.UUID(id)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("request %s: %w", id, sentinel.ErrNotFound)
		}
		return nil, fmt.Errorf("find request: %w", translateUnavailable(err))
	}
	return request, nil
}

func (s *Postgres) ListActionable(ctx context.Context) ([]*models.Request, error) {
	query := `SELECT ` + requestColumns + `
		FROM blood_requests
		WHERE status IN ('open', 'accepted')
		ORDER BY created_at DESC`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list requests: %w", translateUnavailable(err))
	}
	defer rows.Close()

	var out []*models.Request
	for rows.Next() {
		request, err := scanRequest(rows)
		if err != nil {
			return nil, fmt.Errorf("scan request: %w", err)
		}
		out = append(out, request)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list requests: %w", translateUnavailable(err))
	}
	return out, nil
}

// AcceptOpen performs the open -> accepted compare-and-swap. The UPDATE only
// matches while status is exactly 'open', so of N racing donors exactly one
// row update succeeds; losers land in the no-row branch.
func (s *Postgres) AcceptOpen(ctx context.Context, id domain.RequestID, update AcceptUpdate, now time.Time) (*models.Request, error) {
	query := `
		UPDATE blood_requests
		SET status = 'accepted',
			donor = $2,
			donor_name = $3,
			donor_phone = $4,
			meeting_time = NULLIF($5, ''),
			confirmation_code = COALESCE(confirmation_code, $6),
			updated_at = $7
		WHERE id = $1 AND status = 'open'
		RETURNING ` + requestColumns
	request, err := scanRequest(s.execer(ctx).QueryRowContext(ctx, query,
		uuid.UUID(id),
		update.Donor,
		update.DonorName,
		update.DonorPhone,
		update.MeetingTime,
		update.ConfirmationCode,
		now,
	))
	if err == nil {
		return request, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("accept request: %w", translateUnavailable(err))
	}
	return nil, s.classifyMiss(ctx, id)
}

// CompleteAccepted performs the accepted -> completed compare-and-swap.
func (s *Postgres) CompleteAccepted(ctx context.Context, id domain.RequestID, fallbackCode string, now time.Time) (*models.Request, error) {
	query := `
		UPDATE blood_requests
		SET status = 'completed',
			confirmation_code = COALESCE(confirmation_code, $2),
			updated_at = $3
		WHERE id = $1 AND status = 'accepted'
		RETURNING ` + requestColumns
	request, err := scanRequest(s.execer(ctx).QueryRowContext(ctx, query, uuid.UUID(id), fallbackCode, now))
	if err == nil {
		return request, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("complete request: %w", translateUnavailable(err))
	}
	return nil, s.classifyMiss(ctx, id)
}

// classifyMiss runs after a conditional update matched nothing, purely to
// pick the right error. The transition itself was already decided by the
// UPDATE, so this read cannot re-open the race.
func (s *Postgres) classifyMiss(ctx context.Context, id domain.RequestID) error {
	var status string
	err := s.execer(ctx).QueryRowContext(ctx,
		`SELECT status FROM blood_requests WHERE id = $1`, uuid.UUID(id)).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("request %s: %w", id, sentinel.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("classify transition miss: %w", translateUnavailable(err))
	}
	return fmt.Errorf("request %s is %s: %w", id, status, sentinel.ErrInvalidState)
}

// DeleteExpiredOpen removes open requests created before cutoff. The status
// predicate makes the delete itself conditional: a request accepted between
// sweep scheduling and execution no longer matches and survives.
func (s *Postgres) DeleteExpiredOpen(ctx context.Context, cutoff time.Time) (int, error) {
	result, err := s.db.ExecContext(ctx,
		`DELETE FROM blood_requests WHERE status = 'open' AND created_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("delete expired requests: %w", translateUnavailable(err))
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete expired rows affected: %w", err)
	}
	return int(rows), nil
}

type requestRow interface {
	Scan(dest ...any) error
}

func scanRequest(row requestRow) (*models.Request, error) {
	var request models.Request
	var rowID uuid.UUID
	var donor, donorName, donorPhone, code, meeting sql.NullString
	if err := row.Scan(
		&rowID,
		&request.Group,
		&request.Units,
		&request.Location.Name,
		&request.Location.Lat,
		&request.Location.Lng,
		&request.Requester,
		&request.Status,
		&donor,
		&donorName,
		&donorPhone,
		&code,
		&meeting,
		&request.CreatedAt,
		&request.UpdatedAt,
	); err != nil {
		return nil, err
	}
	request.ID = domain.RequestID(rowID)
	request.Donor = donor.String
	request.DonorName = donorName.String
	request.DonorPhone = donorPhone.String
	request.ConfirmationCode = code.String
	request.MeetingTime = meeting.String
	return &request, nil
}

// translateUnavailable maps deadline and cancellation failures to the
// unavailable sentinel so services surface them distinctly and never retry
// into a duplicate transition.
func translateUnavailable(err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return fmt.Errorf("%v: %w", err, sentinel.ErrUnavailable)
	}
	return err
}
