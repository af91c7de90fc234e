package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	donationModels "swasthya/internal/donation/models"
	"swasthya/internal/platform/middleware"
	"swasthya/internal/transport/http/shared"
	dErrors "swasthya/pkg/domain-errors"
)

// Store is the read surface the handler exposes. The achievements ledger has
// no mutating HTTP entry point; entries only appear via completed donations.
type Store interface {
	ListAchievements(ctx context.Context, email string) ([]donationModels.Achievement, error)
}

// DonationStore reads a donor's donation history. Donations are written by
// the lifecycle recorder; this is their only HTTP exposure.
type DonationStore interface {
	ListByDonor(ctx context.Context, donor string) ([]*donationModels.Donation, error)
}

// Handler exposes the donor profile read endpoints.
type Handler struct {
	store     Store
	donations DonationStore
	logger    *slog.Logger
	validator middleware.TokenValidator
}

func New(store Store, donations DonationStore, logger *slog.Logger, validator middleware.TokenValidator) *Handler {
	return &Handler{
		store:     store,
		donations: donations,
		logger:    logger,
		validator: validator,
	}
}

// Register mounts the profile routes.
func (h *Handler) Register(r chi.Router) {
	r.Route("/api/profile", func(r chi.Router) {
		r.Use(middleware.RequireActor(h.validator, h.logger))
		r.Get("/{email}/achievements", h.handleListAchievements)
		r.Get("/{email}/donations", h.handleListDonations)
	})
}

func (h *Handler) handleListAchievements(w http.ResponseWriter, r *http.Request) {
	email := chi.URLParam(r, "email")
	if email == "" {
		shared.WriteError(w, dErrors.New(dErrors.CodeValidation, "email is required"))
		return
	}

	achievements, err := h.store.ListAchievements(r.Context(), email)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	if achievements == nil {
		achievements = []donationModels.Achievement{}
	}
	shared.WriteJSON(w, http.StatusOK, achievements)
}

func (h *Handler) handleListDonations(w http.ResponseWriter, r *http.Request) {
	email := chi.URLParam(r, "email")
	if email == "" {
		shared.WriteError(w, dErrors.New(dErrors.CodeValidation, "email is required"))
		return
	}

	donations, err := h.donations.ListByDonor(r.Context(), email)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	if donations == nil {
		donations = []*donationModels.Donation{}
	}
	shared.WriteJSON(w, http.StatusOK, donations)
}
