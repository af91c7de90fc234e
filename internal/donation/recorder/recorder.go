package recorder

import (
	"context"
	"log/slog"
	"time"

	requestModels "swasthya/internal/bloodrequest/models"
	"swasthya/internal/donation/models"
	"swasthya/pkg/domain"
	"swasthya/pkg/email"
)

// DonationStore is the slice of the donation store the recorder writes to.
type DonationStore interface {
	Create(ctx context.Context, donation *models.Donation) error
	CompleteByRequest(ctx context.Context, requestID domain.RequestID, code string, now time.Time) (*models.Donation, error)
}

// ProfileStore appends to the donor's achievements ledger.
type ProfileStore interface {
	AppendAchievement(ctx context.Context, email, name string, achievement models.Achievement, now time.Time) error
}

// Recorder derives donation and achievement records from request lifecycle
// transitions. It exposes no independent mutating entry point: only the
// lifecycle service calls it, inside the same transaction as the request
// compare-and-swap, so a losing accept can never leave a donation behind.
type Recorder struct {
	donations DonationStore
	profiles  ProfileStore
	logger    *slog.Logger
}

type Option func(r *Recorder)

func WithLogger(logger *slog.Logger) Option {
	return func(r *Recorder) {
		r.logger = logger
	}
}

// New constructs a Recorder.
func New(donations DonationStore, profiles ProfileStore, opts ...Option) *Recorder {
	r := &Recorder{donations: donations, profiles: profiles}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// RecordAccepted creates the pending Donation for a request that just won
// its open -> accepted transition. Receiver is copied from the request's
// requester at this moment.
func (r *Recorder) RecordAccepted(ctx context.Context, request *requestModels.Request, now time.Time) (*models.Donation, error) {
	donation := models.NewDonation(
		domain.NewDonationID(),
		request.ID,
		request.Donor,
		request.Requester,
		request.ConfirmationCode,
		now,
	)
	if err := r.donations.Create(ctx, donation); err != nil {
		return nil, err
	}
	if r.logger != nil {
		r.logger.InfoContext(ctx, "donation recorded",
			"request_id", request.ID.String(),
			"donor", request.Donor,
		)
	}
	return donation, nil
}

// RecordCompleted completes the Donation and appends one achievement entry to
// the donor's ledger. Idempotence against retried confirmations comes from
// the lifecycle service rejecting a second accepted -> completed transition,
// so this is only ever reached once per request.
func (r *Recorder) RecordCompleted(ctx context.Context, request *requestModels.Request, now time.Time) (*models.Donation, error) {
	donation, err := r.donations.CompleteByRequest(ctx, request.ID, request.ConfirmationCode, now)
	if err != nil {
		return nil, err
	}

	location := request.Location.Name
	if location == "" {
		location = models.UnknownLocation
	}
	name := request.DonorName
	if name == "" {
		first, last := email.DeriveNameFromEmail(request.Donor)
		name = first + " " + last
	}
	achievement := models.Achievement{
		Title:            models.AchievementTitle,
		Date:             now,
		ConfirmationCode: donation.ConfirmationCode,
		Location:         location,
	}
	if err := r.profiles.AppendAchievement(ctx, request.Donor, name, achievement, now); err != nil {
		return nil, err
	}
	if r.logger != nil {
		r.logger.InfoContext(ctx, "donation completed and achievement appended",
			"request_id", request.ID.String(),
			"donor", request.Donor,
			"location", location,
		)
	}
	return donation, nil
}
