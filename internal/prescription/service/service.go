package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"swasthya/internal/notify"
	"swasthya/internal/platform/middleware"
	"swasthya/internal/prescription/metrics"
	"swasthya/internal/prescription/models"
	"swasthya/pkg/domain"
	dErrors "swasthya/pkg/domain-errors"
	"swasthya/pkg/platform/audit"
	"swasthya/pkg/platform/sentinel"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// ErrAlreadyResolved reports a confirm or reject against a prescription that
// already left pending. Confirmed and rejected are terminal.
var ErrAlreadyResolved = dErrors.New(dErrors.CodeConflict, "prescription already resolved")

// Store is the prescription store contract. ConfirmPending and RejectPending
// are atomic compare-and-swaps on status = pending.
type Store interface {
	Create(ctx context.Context, prescription *models.Prescription) error
	FindByID(ctx context.Context, id domain.PrescriptionID) (*models.Prescription, error)
	ListByPatient(ctx context.Context, email string) ([]*models.Prescription, error)
	ListAll(ctx context.Context) ([]*models.Prescription, error)
	ConfirmPending(ctx context.Context, id domain.PrescriptionID, pharmacist string, allPresent bool, medicines []string, now time.Time) (*models.Prescription, error)
	RejectPending(ctx context.Context, id domain.PrescriptionID) (*models.Prescription, error)
}

// Notifier is the bus surface the pipeline publishes on. Satisfied by
// *notify.Bus and *notify.RedisBus.
type Notifier interface {
	Publish(identity string, notification notify.Notification)
}

// AuditPublisher records pipeline events.
type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// Service owns the prescription state machine: pending -> confirmed or
// rejected, both terminal. Notification publishing happens strictly after
// the store transition succeeds, never blocks, and never fails the
// operation.
type Service struct {
	store    Store
	notifier Notifier
	audit    AuditPublisher
	metrics  *metrics.Metrics
	logger   *slog.Logger
	tracer   trace.Tracer
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithNotifier(notifier Notifier) Option {
	return func(s *Service) {
		s.notifier = notifier
	}
}

func WithAuditPublisher(publisher AuditPublisher) Option {
	return func(s *Service) {
		s.audit = publisher
	}
}

func New(store Store, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, errors.New("prescription store is required")
	}
	svc := &Service{
		store:  store,
		logger: slog.Default(),
		tracer: otel.Tracer("swasthya/prescription"),
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// SubmitUpload files an upload-kind prescription for the acting patient.
func (s *Service) SubmitUpload(ctx context.Context, actor domain.Actor, input models.SubmitUploadInput) (*models.Prescription, error) {
	ctx, span := s.tracer.Start(ctx, "prescription.SubmitUpload")
	defer span.End()

	input.Normalize()
	if err := input.Validate(); err != nil {
		return nil, err
	}

	prescription, err := models.NewUploadPrescription(
		domain.NewPrescriptionID(),
		actor.Identity,
		actor.Name,
		input.UploadRef,
		input.UploadName,
		time.Now(),
	)
	if err != nil {
		return nil, err
	}
	return s.submit(ctx, span, actor, prescription)
}

// SubmitManual files a manual-kind prescription for the acting patient.
func (s *Service) SubmitManual(ctx context.Context, actor domain.Actor, input models.SubmitManualInput) (*models.Prescription, error) {
	ctx, span := s.tracer.Start(ctx, "prescription.SubmitManual")
	defer span.End()

	input.Normalize()
	if err := input.Validate(); err != nil {
		return nil, err
	}

	prescription, err := models.NewManualPrescription(
		domain.NewPrescriptionID(),
		actor.Identity,
		actor.Name,
		input.Medicines,
		time.Now(),
	)
	if err != nil {
		return nil, err
	}
	return s.submit(ctx, span, actor, prescription)
}

func (s *Service) submit(ctx context.Context, span trace.Span, actor domain.Actor, prescription *models.Prescription) (*models.Prescription, error) {
	span.SetAttributes(attribute.String("prescription.id", prescription.ID.String()))

	if err := s.store.Create(ctx, prescription); err != nil {
		return nil, s.translate(err)
	}

	if s.metrics != nil {
		s.metrics.Submitted.Inc()
	}
	s.emit(ctx, actor, prescription, audit.EventPrescriptionSubmitted, string(prescription.Kind))
	s.logger.InfoContext(ctx, "prescription submitted",
		"prescription_id", prescription.ID.String(),
		"patient", actor.Identity,
		"kind", string(prescription.Kind),
	)
	return prescription, nil
}

// Confirm runs the pending -> confirmed compare-and-swap with the acting
// pharmacist's verdict, then notifies the owning patient.
func (s *Service) Confirm(ctx context.Context, actor domain.Actor, id domain.PrescriptionID, input models.ConfirmInput) (*models.Prescription, error) {
	ctx, span := s.tracer.Start(ctx, "prescription.Confirm",
		trace.WithAttributes(attribute.String("prescription.id", id.String())))
	defer span.End()

	start := time.Now()
	if s.metrics != nil {
		defer s.metrics.ObserveResolve(start)
	}

	input.Normalize()
	confirmed, err := s.store.ConfirmPending(ctx, id, actor.Identity, input.AllPresent, input.AvailableMedicines, time.Now())
	if err != nil {
		return nil, s.translateResolve(ctx, err, id, actor)
	}

	if s.metrics != nil {
		s.metrics.Confirmed.Inc()
	}
	s.emit(ctx, actor, confirmed, audit.EventPrescriptionConfirmed, confirmed.Confirmation.Message())
	s.notify(confirmed, notify.Notification{
		PrescriptionID: confirmed.ID.String(),
		AllPresent:     confirmed.Confirmation.AllPresent,
		Medicines:      confirmed.Confirmation.Medicines,
		Message:        confirmed.Confirmation.Message(),
	})
	s.logger.InfoContext(ctx, "prescription confirmed",
		"prescription_id", id.String(),
		"pharmacist", actor.Identity,
		"all_present", confirmed.Confirmation.AllPresent,
	)
	return confirmed, nil
}

// Reject runs the pending -> rejected compare-and-swap, then notifies the
// owning patient.
func (s *Service) Reject(ctx context.Context, actor domain.Actor, id domain.PrescriptionID) (*models.Prescription, error) {
	ctx, span := s.tracer.Start(ctx, "prescription.Reject",
		trace.WithAttributes(attribute.String("prescription.id", id.String())))
	defer span.End()

	start := time.Now()
	if s.metrics != nil {
		defer s.metrics.ObserveResolve(start)
	}

	rejected, err := s.store.RejectPending(ctx, id)
	if err != nil {
		return nil, s.translateResolve(ctx, err, id, actor)
	}

	if s.metrics != nil {
		s.metrics.Rejected.Inc()
	}
	s.emit(ctx, actor, rejected, audit.EventPrescriptionRejected, "")
	s.notify(rejected, notify.Notification{
		PrescriptionID: rejected.ID.String(),
		Message:        models.RejectedMessage,
	})
	s.logger.InfoContext(ctx, "prescription rejected",
		"prescription_id", id.String(),
		"pharmacist", actor.Identity,
	)
	return rejected, nil
}

// ListForPatient returns the acting patient's prescriptions, newest first.
func (s *Service) ListForPatient(ctx context.Context, actor domain.Actor) ([]*models.Prescription, error) {
	prescriptions, err := s.store.ListByPatient(ctx, actor.Identity)
	if err != nil {
		return nil, s.translate(err)
	}
	return prescriptions, nil
}

// ListAll returns the pharmacist work queue, newest first.
func (s *Service) ListAll(ctx context.Context) ([]*models.Prescription, error) {
	prescriptions, err := s.store.ListAll(ctx)
	if err != nil {
		return nil, s.translate(err)
	}
	return prescriptions, nil
}

// notify publishes after the state transition committed. Delivery is
// best-effort by construction; there is no error to handle.
func (s *Service) notify(prescription *models.Prescription, notification notify.Notification) {
	if s.notifier == nil {
		return
	}
	s.notifier.Publish(prescription.PatientEmail, notification)
}

func (s *Service) translateResolve(ctx context.Context, err error, id domain.PrescriptionID, actor domain.Actor) error {
	if errors.Is(err, sentinel.ErrInvalidState) {
		if s.metrics != nil {
			s.metrics.ResolveConflicts.Inc()
		}
		s.logger.InfoContext(ctx, "resolve hit a terminal prescription",
			"prescription_id", id.String(),
			"pharmacist", actor.Identity,
		)
		return ErrAlreadyResolved
	}
	return s.translate(err)
}

func (s *Service) translate(err error) error {
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.Wrap(err, dErrors.CodeNotFound, "prescription not found")
	case errors.Is(err, sentinel.ErrConflict):
		return dErrors.Wrap(err, dErrors.CodeConflict, "prescription already exists")
	case errors.Is(err, sentinel.ErrUnavailable):
		return dErrors.Wrap(err, dErrors.CodeUnavailable, "prescription store unavailable")
	default:
		return dErrors.Wrap(err, dErrors.CodeInternal, "prescription store failure")
	}
}

func (s *Service) emit(ctx context.Context, actor domain.Actor, prescription *models.Prescription, action audit.AuditEvent, detail string) {
	if s.audit == nil {
		return
	}
	err := s.audit.Emit(ctx, audit.Event{
		Actor:     actor.Identity,
		Subject:   prescription.ID.String(),
		Action:    string(action),
		Detail:    detail,
		RequestID: middleware.GetRequestID(ctx),
	})
	if err != nil {
		s.logger.WarnContext(ctx, "audit emit failed",
			"action", string(action),
			"prescription_id", prescription.ID.String(),
			"error", err,
		)
	}
}
