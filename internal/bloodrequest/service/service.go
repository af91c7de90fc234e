//go:generate mockgen -source=service.go -destination=mocks/mocks.go -package=mocks Store,Recorder,AuditPublisher
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"swasthya/internal/bloodrequest/metrics"
	"swasthya/internal/bloodrequest/models"
	"swasthya/internal/bloodrequest/store"
	donationModels "swasthya/internal/donation/models"
	"swasthya/internal/platform/middleware"
	"swasthya/pkg/domain"
	dErrors "swasthya/pkg/domain-errors"
	"swasthya/pkg/platform/audit"
	"swasthya/pkg/platform/sentinel"
	"swasthya/pkg/platform/tx"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Conflict errors callers can match on. All map to HTTP 409 but tell the
// caller which side of the state machine they hit.
var (
	// ErrAlreadyResolved reports an accept against a request that is no
	// longer open: another donor won, or it was already completed.
	ErrAlreadyResolved = dErrors.New(dErrors.CodeConflict, "request already accepted or completed")
	// ErrNotYetAccepted reports a completion confirmation against a request
	// still waiting for a donor.
	ErrNotYetAccepted = dErrors.New(dErrors.CodeConflict, "request has not been accepted yet")
	// ErrAlreadyCompleted reports a repeated completion confirmation.
	ErrAlreadyCompleted = dErrors.New(dErrors.CodeConflict, "request already completed")
)

// Store is the request store contract the service drives. Both transition
// methods are atomic compare-and-swaps: they only succeed when the stored
// status matches the expected one, so concurrent callers get exactly one
// winner.
type Store interface {
	Create(ctx context.Context, request *models.Request) error
	FindByID(ctx context.Context, id domain.RequestID) (*models.Request, error)
	ListActionable(ctx context.Context) ([]*models.Request, error)
	AcceptOpen(ctx context.Context, id domain.RequestID, update store.AcceptUpdate, now time.Time) (*models.Request, error)
	CompleteAccepted(ctx context.Context, id domain.RequestID, fallbackCode string, now time.Time) (*models.Request, error)
}

// Recorder derives donation bookkeeping from lifecycle transitions. Its
// writes run inside the same transaction as the request compare-and-swap.
type Recorder interface {
	RecordAccepted(ctx context.Context, request *models.Request, now time.Time) (*donationModels.Donation, error)
	RecordCompleted(ctx context.Context, request *models.Request, now time.Time) (*donationModels.Donation, error)
}

// AuditPublisher records lifecycle events. Emission happens after the
// transaction commits and failures never fail the operation.
type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// Service owns the blood request state machine: open -> accepted ->
// completed, nothing backward, completed terminal. Caller identity arrives
// as a typed domain.Actor; there is no ambient current user.
type Service struct {
	store    Store
	recorder Recorder
	runner   tx.Runner
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

func WithAuditPublisher(publisher AuditPublisher) Option {
	return func(s *Service) {
		s.audit = publisher
	}
}

// WithTxRunner sets the transaction boundary for accept/confirm. Postgres
// deployments pass tx.NewSQLRunner; the in-memory stores are atomic on their
// own and keep the passthrough default.
func WithTxRunner(runner tx.Runner) Option {
	return func(s *Service) {
		s.runner = runner
	}
}

func New(st Store, recorder Recorder, opts ...Option) (*Service, error) {
	if st == nil {
		return nil, errors.New("request store is required")
	}
	if recorder == nil {
		return nil, errors.New("donation recorder is required")
	}

	svc := &Service{
		store:    st,
		recorder: recorder,
		runner:   tx.PassthroughRunner{},
		logger:   slog.Default(),
		tracer:   otel.Tracer("swasthya/bloodrequest"),
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// Create opens a new blood request on behalf of the acting requester.
func (s *Service) Create(ctx context.Context, actor domain.Actor, input models.CreateRequestInput) (*models.Request, error) {
	ctx, span := s.tracer.Start(ctx, "bloodrequest.Create")
	defer span.End()

	input.Normalize()
	if err := input.Validate(); err != nil {
		return nil, err
	}

	now := time.Now()
	request, err := models.NewRequest(
		domain.NewRequestID(),
		input.Group,
		input.Units,
		models.Location{Name: input.LocationName, Lat: input.Lat, Lng: input.Lng},
		actor.Identity,
		now,
	)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.String("request.id", request.ID.String()))

	if err := s.store.Create(ctx, request); err != nil {
		return nil, s.translate(err)
	}

	if s.metrics != nil {
		s.metrics.RequestsCreated.Inc()
	}
	s.emit(ctx, actor, request, audit.EventRequestCreated, "")
	s.logger.InfoContext(ctx, "blood request created",
		"request_id", request.ID.String(),
		"group", request.Group,
		"requester", actor.Identity,
	)
	return request, nil
}

// Accept runs the open -> accepted compare-and-swap on behalf of the acting
// donor and creates the pending donation in the same transaction. Exactly one
// of N concurrent donors succeeds; the rest get ErrAlreadyResolved.
func (s *Service) Accept(ctx context.Context, actor domain.Actor, id domain.RequestID, input models.AcceptRequestInput) (*models.Request, error) {
	ctx, span := s.tracer.Start(ctx, "bloodrequest.Accept",
		trace.WithAttributes(attribute.String("request.id", id.String())))
	defer span.End()

	input.Normalize()
	if err := input.Validate(); err != nil {
		return nil, err
	}

	start := time.Now()
	if s.metrics != nil {
		defer s.metrics.ObserveAccept(start)
	}

	update := store.AcceptUpdate{
		Donor:            actor.Identity,
		DonorName:        actor.Name,
		DonorPhone:       input.DonorPhone,
		MeetingTime:      input.MeetingTime,
		ConfirmationCode: domain.NewConfirmationCode(),
	}

	var accepted *models.Request
	err := s.runner.RunInTx(ctx, func(txCtx context.Context) error {
		now := time.Now()
		request, err := s.store.AcceptOpen(txCtx, id, update, now)
		if err != nil {
			return err
		}
		if _, err := s.recorder.RecordAccepted(txCtx, request, now); err != nil {
			return err
		}
		accepted = request
		return nil
	})
	if err != nil {
		if errors.Is(err, sentinel.ErrInvalidState) {
			if s.metrics != nil {
				s.metrics.AcceptConflicts.Inc()
			}
			s.logger.InfoContext(ctx, "accept lost the race",
				"request_id", id.String(),
				"donor", actor.Identity,
			)
			return nil, ErrAlreadyResolved
		}
		return nil, s.translate(err)
	}

	if s.metrics != nil {
		s.metrics.RequestsAccepted.Inc()
	}
	s.emit(ctx, actor, accepted, audit.EventRequestAccepted, "")
	s.emit(ctx, actor, accepted, audit.EventDonationRecorded, "")
	s.logger.InfoContext(ctx, "blood request accepted",
		"request_id", id.String(),
		"donor", actor.Identity,
	)
	return accepted, nil
}

// ConfirmCompletion runs the accepted -> completed compare-and-swap. Only the
// requester who opened the request may confirm; in the same transaction the
// donation flips to completed and one achievement entry lands on the donor's
// ledger.
func (s *Service) ConfirmCompletion(ctx context.Context, actor domain.Actor, id domain.RequestID) (*models.Request, error) {
	ctx, span := s.tracer.Start(ctx, "bloodrequest.ConfirmCompletion",
		trace.WithAttributes(attribute.String("request.id", id.String())))
	defer span.End()

	start := time.Now()
	if s.metrics != nil {
		defer s.metrics.ObserveConfirm(start)
	}

	var completed *models.Request
	err := s.runner.RunInTx(ctx, func(txCtx context.Context) error {
		current, err := s.store.FindByID(txCtx, id)
		if err != nil {
			return err
		}
		if current.Requester != actor.Identity {
			return dErrors.New(dErrors.CodeUnauthorized, "only the requester can confirm completion")
		}

		now := time.Now()
		request, err := s.store.CompleteAccepted(txCtx, id, domain.NewConfirmationCode(), now)
		if err != nil {
			if errors.Is(err, sentinel.ErrInvalidState) {
				return s.classifyConfirmConflict(current)
			}
			return err
		}
		if _, err := s.recorder.RecordCompleted(txCtx, request, now); err != nil {
			return err
		}
		completed = request
		return nil
	})
	if err != nil {
		var dErr *dErrors.Error
		if errors.As(err, &dErr) {
			return nil, err
		}
		return nil, s.translate(err)
	}

	if s.metrics != nil {
		s.metrics.RequestsCompleted.Inc()
	}
	s.emit(ctx, actor, completed, audit.EventRequestCompleted, completed.ConfirmationCode)
	s.emit(ctx, actor, completed, audit.EventDonationCompleted, completed.ConfirmationCode)
	s.logger.InfoContext(ctx, "blood request completed",
		"request_id", id.String(),
		"requester", actor.Identity,
		"donor", completed.Donor,
	)
	return completed, nil
}

// List returns the public feed: open and accepted requests, newest first.
func (s *Service) List(ctx context.Context) ([]*models.Request, error) {
	requests, err := s.store.ListActionable(ctx)
	if err != nil {
		return nil, s.translate(err)
	}
	return requests, nil
}

// Get returns one request regardless of status.
func (s *Service) Get(ctx context.Context, id domain.RequestID) (*models.Request, error) {
	request, err := s.store.FindByID(ctx, id)
	if err != nil {
		return nil, s.translate(err)
	}
	return request, nil
}

// classifyConfirmConflict picks the precise conflict error from the status
// observed just before the compare-and-swap missed.
func (s *Service) classifyConfirmConflict(current *models.Request) error {
	switch current.Status {
	case models.StatusCompleted:
		return ErrAlreadyCompleted
	case models.StatusOpen:
		return ErrNotYetAccepted
	default:
		// The status changed between the read and the swap; the swap missing
		// on an accepted request means someone else completed it first.
		return ErrAlreadyCompleted
	}
}

// translate maps store sentinel errors onto the API error taxonomy.
func (s *Service) translate(err error) error {
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.Wrap(err, dErrors.CodeNotFound, "request not found")
	case errors.Is(err, sentinel.ErrConflict):
		return dErrors.Wrap(err, dErrors.CodeConflict, "request already exists")
	case errors.Is(err, sentinel.ErrUnavailable):
		return dErrors.Wrap(err, dErrors.CodeUnavailable, "request store unavailable")
	default:
		return dErrors.Wrap(err, dErrors.CodeInternal, "request store failure")
	}
}

func (s *Service) emit(ctx context.Context, actor domain.Actor, request *models.Request, action audit.AuditEvent, detail string) {
	if s.audit == nil {
		return
	}
	err := s.audit.Emit(ctx, audit.Event{
		Actor:     actor.Identity,
		Subject:   request.ID.String(),
		Action:    string(action),
		Detail:    detail,
		RequestID: middleware.GetRequestID(ctx),
	})
	if err != nil {
		s.logger.WarnContext(ctx, "audit emit failed",
			"action", string(action),
			"request_id", request.ID.String(),
			"error", err,
		)
	}
}
