package audit

import (
	"context"
	"time"
)

// Event is emitted from domain logic to capture key actions. Keep it
// transport-agnostic so stores and sinks can fan out.
type Event struct {
	Timestamp time.Time
	// Actor is the identity that performed the action.
	Actor string
	// Subject is the entity acted upon (request id, prescription id, donor email).
	Subject string
	Action  string
	Detail  string
	// RequestID is the correlation id from the HTTP request context.
	RequestID string
}

// AuditEvent enumerates the actions the coordination core emits.
type AuditEvent string

const (
	// Request lifecycle events
	EventRequestCreated   AuditEvent = "request_created"
	EventRequestAccepted  AuditEvent = "request_accepted"
	EventRequestCompleted AuditEvent = "request_completed"
	EventRequestReaped    AuditEvent = "request_reaped"

	// Donation events
	EventDonationRecorded  AuditEvent = "donation_recorded"
	EventDonationCompleted AuditEvent = "donation_completed"

	// Prescription events
	EventPrescriptionSubmitted AuditEvent = "prescription_submitted"
	EventPrescriptionConfirmed AuditEvent = "prescription_confirmed"
	EventPrescriptionRejected  AuditEvent = "prescription_rejected"
)

// Store persists audit events.
type Store interface {
	Append(ctx context.Context, event Event) error
}
