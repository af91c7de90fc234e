package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"swasthya/internal/platform/middleware"
	"swasthya/internal/prescription/models"
	"swasthya/internal/transport/http/shared"
	"swasthya/pkg/domain"
	dErrors "swasthya/pkg/domain-errors"
)

// Service defines the prescription operations the handler exposes.
type Service interface {
	SubmitUpload(ctx context.Context, actor domain.Actor, input models.SubmitUploadInput) (*models.Prescription, error)
	SubmitManual(ctx context.Context, actor domain.Actor, input models.SubmitManualInput) (*models.Prescription, error)
	Confirm(ctx context.Context, actor domain.Actor, id domain.PrescriptionID, input models.ConfirmInput) (*models.Prescription, error)
	Reject(ctx context.Context, actor domain.Actor, id domain.PrescriptionID) (*models.Prescription, error)
	ListForPatient(ctx context.Context, actor domain.Actor) ([]*models.Prescription, error)
	ListAll(ctx context.Context) ([]*models.Prescription, error)
}

// Handler exposes the prescription endpoints.
type Handler struct {
	service   Service
	logger    *slog.Logger
	validator middleware.TokenValidator
}

func New(service Service, logger *slog.Logger, validator middleware.TokenValidator) *Handler {
	return &Handler{
		service:   service,
		logger:    logger,
		validator: validator,
	}
}

// Register mounts the prescription routes. Resolution routes and the full
// listing are pharmacist-only.
func (h *Handler) Register(r chi.Router) {
	r.Route("/api/prescriptions", func(r chi.Router) {
		r.Use(middleware.RequireActor(h.validator, h.logger))
		r.Post("/", h.handleSubmitUpload)
		r.Post("/manual", h.handleSubmitManual)
		r.Get("/", h.handleListMine)

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequirePharmacist(h.logger))
			r.Get("/all", h.handleListAll)
			r.Put("/{id}/confirm", h.handleConfirm)
			r.Put("/{id}/reject", h.handleReject)
		})
	})
}

func (h *Handler) handleSubmitUpload(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor, ok := middleware.GetActor(ctx)
	if !ok {
		shared.WriteError(w, dErrors.New(dErrors.CodeInternal, "authentication context error"))
		return
	}

	var input models.SubmitUploadInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		h.logger.WarnContext(ctx, "invalid upload submission body",
			"request_id", middleware.GetRequestID(ctx),
			"error", err.Error(),
		)
		shared.WriteError(w, dErrors.New(dErrors.CodeValidation, "invalid request body"))
		return
	}

	prescription, err := h.service.SubmitUpload(ctx, actor, input)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusCreated, prescription)
}

func (h *Handler) handleSubmitManual(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor, ok := middleware.GetActor(ctx)
	if !ok {
		shared.WriteError(w, dErrors.New(dErrors.CodeInternal, "authentication context error"))
		return
	}

	var input models.SubmitManualInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		h.logger.WarnContext(ctx, "invalid manual submission body",
			"request_id", middleware.GetRequestID(ctx),
			"error", err.Error(),
		)
		shared.WriteError(w, dErrors.New(dErrors.CodeValidation, "invalid request body"))
		return
	}

	prescription, err := h.service.SubmitManual(ctx, actor, input)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusCreated, prescription)
}

func (h *Handler) handleListMine(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor, ok := middleware.GetActor(ctx)
	if !ok {
		shared.WriteError(w, dErrors.New(dErrors.CodeInternal, "authentication context error"))
		return
	}

	prescriptions, err := h.service.ListForPatient(ctx, actor)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, prescriptions)
}

func (h *Handler) handleListAll(w http.ResponseWriter, r *http.Request) {
	prescriptions, err := h.service.ListAll(r.Context())
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, prescriptions)
}

func (h *Handler) handleConfirm(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor, ok := middleware.GetActor(ctx)
	if !ok {
		shared.WriteError(w, dErrors.New(dErrors.CodeInternal, "authentication context error"))
		return
	}

	id, err := domain.ParsePrescriptionID(chi.URLParam(r, "id"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	var input models.ConfirmInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		h.logger.WarnContext(ctx, "invalid confirm body",
			"request_id", middleware.GetRequestID(ctx),
			"error", err.Error(),
		)
		shared.WriteError(w, dErrors.New(dErrors.CodeValidation, "invalid request body"))
		return
	}

	confirmed, err := h.service.Confirm(ctx, actor, id, input)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, confirmed)
}

func (h *Handler) handleReject(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor, ok := middleware.GetActor(ctx)
	if !ok {
		shared.WriteError(w, dErrors.New(dErrors.CodeInternal, "authentication context error"))
		return
	}

	id, err := domain.ParsePrescriptionID(chi.URLParam(r, "id"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	rejected, err := h.service.Reject(ctx, actor, id)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, rejected)
}
