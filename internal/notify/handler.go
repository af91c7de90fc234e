package notify

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/mssola/useragent"

	"swasthya/internal/platform/middleware"
	"swasthya/internal/transport/http/shared"
	dErrors "swasthya/pkg/domain-errors"
)

const heartbeatInterval = 25 * time.Second

// Subscriber is the bus surface the stream handler needs. Satisfied by *Bus
// and *RedisBus.
type Subscriber interface {
	Subscribe(identity string) *Subscription
}

// Handler exposes the real-time notification stream. It is the transport
// collaborator boundary: it maps the authenticated actor to its identity on
// handshake and registers exactly that string on the bus.
type Handler struct {
	bus       Subscriber
	logger    *slog.Logger
	validator middleware.TokenValidator
}

func NewHandler(bus Subscriber, logger *slog.Logger, validator middleware.TokenValidator) *Handler {
	return &Handler{
		bus:       bus,
		logger:    logger,
		validator: validator,
	}
}

// Register mounts the stream route.
func (h *Handler) Register(r chi.Router) {
	r.Route("/api/notifications", func(r chi.Router) {
		r.Use(middleware.RequireActor(h.validator, h.logger))
		r.Get("/stream", h.handleStream)
	})
}

// handleStream serves notifications for the authenticated identity as SSE.
func (h *Handler) handleStream(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor, ok := middleware.GetActor(ctx)
	if !ok {
		shared.WriteError(w, dErrors.New(dErrors.CodeInternal, "authentication context error"))
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		shared.WriteError(w, dErrors.New(dErrors.CodeInternal, "streaming unsupported"))
		return
	}

	sub := h.bus.Subscribe(actor.Identity)
	defer sub.Close()
	sub.Label = deviceLabel(r.UserAgent())

	h.logger.InfoContext(ctx, "notification stream opened",
		"identity", actor.Identity,
		"device", sub.Label,
		"request_id", middleware.GetRequestID(ctx),
	)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	heartbeat := time.NewTicker(heartbeatInterval)
	defer heartbeat.Stop()

	for {
		select {
		case <-ctx.Done():
			h.logger.InfoContext(ctx, "notification stream closed",
				"identity", actor.Identity,
				"device", sub.Label,
			)
			return
		case <-heartbeat.C:
			// SSE comment line; keeps proxies from reaping the connection.
			fmt.Fprint(w, ": heartbeat\n\n")
			flusher.Flush()
		case notification := <-sub.C:
			payload, err := json.Marshal(notification)
			if err != nil {
				h.logger.WarnContext(ctx, "notification marshal failed", "error", err)
				continue
			}
			fmt.Fprintf(w, "data: %s\n\n", payload)
			flusher.Flush()
		}
	}
}

// deviceLabel condenses the User-Agent into a short label for logs.
func deviceLabel(raw string) string {
	if raw == "" {
		return "unknown"
	}
	ua := useragent.New(raw)
	browser, version := ua.Browser()
	label := browser
	if version != "" {
		label += "/" + version
	}
	if os := ua.OS(); os != "" {
		label += " on " + os
	}
	if ua.Mobile() {
		label += " (mobile)"
	}
	return label
}
