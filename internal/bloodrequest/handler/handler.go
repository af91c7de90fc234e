package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"swasthya/internal/bloodrequest/models"
	"swasthya/internal/platform/middleware"
	"swasthya/internal/transport/http/shared"
	"swasthya/pkg/domain"
	dErrors "swasthya/pkg/domain-errors"
)

// Service defines the request lifecycle operations the handler exposes.
type Service interface {
	Create(ctx context.Context, actor domain.Actor, input models.CreateRequestInput) (*models.Request, error)
	Accept(ctx context.Context, actor domain.Actor, id domain.RequestID, input models.AcceptRequestInput) (*models.Request, error)
	ConfirmCompletion(ctx context.Context, actor domain.Actor, id domain.RequestID) (*models.Request, error)
	List(ctx context.Context) ([]*models.Request, error)
	Get(ctx context.Context, id domain.RequestID) (*models.Request, error)
}

// Handler exposes the blood request endpoints.
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

// Register mounts the request routes. Every route requires an authenticated
// actor; platform middleware (request id, logging, recovery) is applied by
// the server router above this.
func (h *Handler) Register(r chi.Router) {
	r.Route("/api/requests", func(r chi.Router) {
		r.Use(middleware.RequireActor(h.validator, h.logger))
		r.Get("/", h.handleList)
		r.Post("/", h.handleCreate)
		r.Get("/{id}", h.handleGet)
		r.Put("/{id}/accept", h.handleAccept)
		r.Post("/{id}/confirm", h.handleConfirm)
	})
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	requests, err := h.service.List(r.Context())
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, requests)
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor, ok := middleware.GetActor(ctx)
	if !ok {
		shared.WriteError(w, dErrors.New(dErrors.CodeInternal, "authentication context error"))
		return
	}

	var input models.CreateRequestInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		h.logger.WarnContext(ctx, "invalid create request body",
			"request_id", middleware.GetRequestID(ctx),
			"error", err.Error(),
		)
		shared.WriteError(w, dErrors.New(dErrors.CodeValidation, "invalid request body"))
		return
	}

	request, err := h.service.Create(ctx, actor, input)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusCreated, request)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	id, err := domain.ParseRequestID(chi.URLParam(r, "id"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	request, err := h.service.Get(r.Context(), id)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, request)
}

func (h *Handler) handleAccept(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor, ok := middleware.GetActor(ctx)
	if !ok {
		shared.WriteError(w, dErrors.New(dErrors.CodeInternal, "authentication context error"))
		return
	}

	id, err := domain.ParseRequestID(chi.URLParam(r, "id"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	var input models.AcceptRequestInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		h.logger.WarnContext(ctx, "invalid accept request body",
			"request_id", middleware.GetRequestID(ctx),
			"error", err.Error(),
		)
		shared.WriteError(w, dErrors.New(dErrors.CodeValidation, "invalid request body"))
		return
	}

	accepted, err := h.service.Accept(ctx, actor, id, input)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, accepted)
}

func (h *Handler) handleConfirm(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor, ok := middleware.GetActor(ctx)
	if !ok {
		shared.WriteError(w, dErrors.New(dErrors.CodeInternal, "authentication context error"))
		return
	}

	id, err := domain.ParseRequestID(chi.URLParam(r, "id"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	completed, err := h.service.ConfirmCompletion(ctx, actor, id)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, completed)
}
