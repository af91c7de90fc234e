package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"swasthya/internal/prescription/models"
	"swasthya/pkg/domain"
	"swasthya/pkg/platform/sentinel"
)

const prescriptionColumns = `id, patient_email, patient_name, upload_ref, upload_name,
	medicines, kind, status, all_present, available_medicines,
	confirmed_by, confirmed_at, submitted_at`

// Postgres implements the prescription store on a pgx pool. Prescriptions are
// single-row aggregates with no cross-entity transaction, so the pool is used
// directly; both resolve operations are single conditional UPDATEs.
type Postgres struct {
	pool *pgxpool.Pool
}

// NewPostgres creates a prescription store backed by the given pool.
func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

func (s *Postgres) Create(ctx context.Context, prescription *models.Prescription) error {
	query := `
		INSERT INTO prescriptions (
			id, patient_email, patient_name, upload_ref, upload_name,
			medicines, kind, status, submitted_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err := s.pool.Exec(ctx, query,
		prescription.ID.String(),
		prescription.PatientEmail,
		prescription.PatientName,
		nullable(prescription.UploadRef),
		nullable(prescription.UploadName),
		prescription.Medicines,
		string(prescription.Kind),
		string(prescription.Status),
		prescription.SubmittedAt,
	)
	if err != nil {
		return translateUnavailable(fmt.Errorf("insert prescription: %w", err))
	}
	return nil
}

func (s *Postgres) FindByID(ctx context.Context, id domain.PrescriptionID) (*models.Prescription, error) {
	query := `SELECT ` + prescriptionColumns + ` FROM prescriptions WHERE id = $1`
	row := s.pool.QueryRow(ctx, query, id.String())
	prescription, err := scanPrescription(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("prescription %s: %w", id, sentinel.ErrNotFound)
		}
		return nil, translateUnavailable(fmt.Errorf("find prescription: %w", err))
	}
	return prescription, nil
}

// ListByPatient returns the patient's prescriptions, newest first.
func (s *Postgres) ListByPatient(ctx context.Context, email string) ([]*models.Prescription, error) {
	query := `SELECT ` + prescriptionColumns + `
		FROM prescriptions
		WHERE patient_email = $1
		ORDER BY submitted_at DESC`
	rows, err := s.pool.Query(ctx, query, email)
	if err != nil {
		return nil, translateUnavailable(fmt.Errorf("list prescriptions: %w", err))
	}
	defer rows.Close()
	return scanPrescriptions(rows)
}

// ListAll returns every prescription, newest first.
func (s *Postgres) ListAll(ctx context.Context) ([]*models.Prescription, error) {
	query := `SELECT ` + prescriptionColumns + `
		FROM prescriptions
		ORDER BY submitted_at DESC`
	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, translateUnavailable(fmt.Errorf("list prescriptions: %w", err))
	}
	defer rows.Close()
	return scanPrescriptions(rows)
}

// ConfirmPending performs the pending -> confirmed compare-and-swap. The
// WHERE clause decides the race; the classify query after a miss exists only
// to pick the precise error.
func (s *Postgres) ConfirmPending(ctx context.Context, id domain.PrescriptionID, pharmacist string, allPresent bool, medicines []string, now time.Time) (*models.Prescription, error) {
	query := `
		UPDATE prescriptions
		SET status = 'confirmed',
			all_present = $2,
			available_medicines = $3,
			confirmed_by = $4,
			confirmed_at = $5
		WHERE id = $1 AND status = 'pending'
		RETURNING ` + prescriptionColumns
	row := s.pool.QueryRow(ctx, query, id.String(), allPresent, medicines, pharmacist, now)
	prescription, err := scanPrescription(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, s.classifyMiss(ctx, id)
		}
		return nil, translateUnavailable(fmt.Errorf("confirm prescription: %w", err))
	}
	return prescription, nil
}

// RejectPending performs the pending -> rejected compare-and-swap.
func (s *Postgres) RejectPending(ctx context.Context, id domain.PrescriptionID) (*models.Prescription, error) {
	query := `
		UPDATE prescriptions
		SET status = 'rejected'
		WHERE id = $1 AND status = 'pending'
		RETURNING ` + prescriptionColumns
	row := s.pool.QueryRow(ctx, query, id.String())
	prescription, err := scanPrescription(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, s.classifyMiss(ctx, id)
		}
		return nil, translateUnavailable(fmt.Errorf("reject prescription: %w", err))
	}
	return prescription, nil
}

// classifyMiss distinguishes a missing prescription from one in a terminal
// state after a conditional update matched no row. Error precision only; the
// race was already decided by the UPDATE.
func (s *Postgres) classifyMiss(ctx context.Context, id domain.PrescriptionID) error {
	var status string
	err := s.pool.QueryRow(ctx, `SELECT status FROM prescriptions WHERE id = $1`, id.String()).Scan(&status)
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("prescription %s: %w", id, sentinel.ErrNotFound)
	}
	if err != nil {
		return translateUnavailable(fmt.Errorf("classify prescription state: %w", err))
	}
	return fmt.Errorf("prescription %s is %s: %w", id, status, sentinel.ErrInvalidState)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPrescription(row rowScanner) (*models.Prescription, error) {
	var (
		p                                 models.Prescription
		idText, kind, status              string
		uploadRef, uploadName, pharmacist *string
		allPresent                        *bool
		availableMedicines                []string
		confirmedAt                       *time.Time
	)
	err := row.Scan(
		&idText,
		&p.PatientEmail,
		&p.PatientName,
		&uploadRef,
		&uploadName,
		&p.Medicines,
		&kind,
		&status,
		&allPresent,
		&availableMedicines,
		&pharmacist,
		&confirmedAt,
		&p.SubmittedAt,
	)
	if err != nil {
		return nil, err
	}

	id, err := domain.ParsePrescriptionID(idText)
	if err != nil {
		return nil, fmt.Errorf("stored prescription id: %w", err)
	}
	p.ID = id
	p.Kind = models.Kind(kind)
	p.Status = models.Status(status)
	if uploadRef != nil {
		p.UploadRef = *uploadRef
	}
	if uploadName != nil {
		p.UploadName = *uploadName
	}
	if p.Status == models.StatusConfirmed && allPresent != nil && pharmacist != nil && confirmedAt != nil {
		p.Confirmation = &models.Confirmation{
			AllPresent:  *allPresent,
			Medicines:   availableMedicines,
			Pharmacist:  *pharmacist,
			ConfirmedAt: *confirmedAt,
		}
	}
	return &p, nil
}

func scanPrescriptions(rows pgx.Rows) ([]*models.Prescription, error) {
	var out []*models.Prescription
	for rows.Next() {
		prescription, err := scanPrescription(rows)
		if err != nil {
			return nil, fmt.Errorf("scan prescription: %w", err)
		}
		out = append(out, prescription)
	}
	if err := rows.Err(); err != nil {
		return nil, translateUnavailable(fmt.Errorf("iterate prescriptions: %w", err))
	}
	return out, nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// translateUnavailable maps context expiry onto the store unavailability
// sentinel so callers surface 503 instead of 500 on a saturated pool.
func translateUnavailable(err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return fmt.Errorf("%v: %w", err, sentinel.ErrUnavailable)
	}
	return err
}
