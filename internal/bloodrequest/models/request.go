package models

import (
	"time"

	"swasthya/pkg/domain"
	dErrors "swasthya/pkg/domain-errors"
)

// Status tracks a blood request through its lifecycle.
//
// Transitions: open -> accepted -> completed. Nothing moves backward, and
// completed is terminal. Both forward transitions must be executed as atomic
// conditional updates at the store so concurrent donors get exactly one
// winner.
type Status string

const (
	StatusOpen      Status = "open"
	StatusAccepted  Status = "accepted"
	StatusCompleted Status = "completed"
)

func (s Status) IsValid() bool {
	return s == StatusOpen || s == StatusAccepted || s == StatusCompleted
}

// Location names where the donation is needed; coordinates are optional.
type Location struct {
	Name string   `json:"name"`
	Lat  *float64 `json:"lat,omitempty"`
	Lng  *float64 `json:"lng,omitempty"`
}

// Request is the aggregate for one posted blood-donation need.
//
// Invariants:
//   - Group, Location.Name and Requester are non-empty; Units > 0
//   - Donor, DonorName, DonorPhone are set iff Status != open
//   - ConfirmationCode is set no later than the accepted -> completed transition
//   - CreatedAt is immutable; the reaper keys its 24h TTL off it, but only
//     while Status is still open
type Request struct {
	ID               domain.RequestID `json:"id"`
	Group            string           `json:"group"`
	Units            int              `json:"units"`
	Location         Location         `json:"location"`
	Requester        string           `json:"requester"`
	Status           Status           `json:"status"`
	Donor            string           `json:"donor,omitempty"`
	DonorName        string           `json:"donor_name,omitempty"`
	DonorPhone       string           `json:"donor_phone,omitempty"`
	ConfirmationCode string           `json:"confirmation_code,omitempty"`
	MeetingTime      string           `json:"meeting_time,omitempty"`
	CreatedAt        time.Time        `json:"created_at"`
	UpdatedAt        time.Time        `json:"updated_at"`
}

// NewRequest constructs an open Request, enforcing creation invariants.
func NewRequest(id domain.RequestID, group string, units int, location Location, requester string, now time.Time) (*Request, error) {
	if group == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "blood group cannot be empty")
	}
	if units <= 0 {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "units must be positive")
	}
	if location.Name == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "location name cannot be empty")
	}
	if requester == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "requester cannot be empty")
	}
	return &Request{
		ID:        id,
		Group:     group,
		Units:     units,
		Location:  location,
		Requester: requester,
		Status:    StatusOpen,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// IsActionable reports whether the request still belongs in the public feed.
func (r *Request) IsActionable() bool {
	return r.Status == StatusOpen || r.Status == StatusAccepted
}

// CanAccept checks the open -> accepted precondition. The in-memory store
// calls this under its lock; the Postgres store expresses the same check in
// the conditional UPDATE's WHERE clause.
func (r *Request) CanAccept() error {
	if r.Status != StatusOpen {
		return dErrors.New(dErrors.CodeInvariantViolation, "request is not open")
	}
	return nil
}

// ApplyAccept transitions to accepted and writes the donor fields. The
// confirmation code is generated here if absent; it becomes the shared
// proof-of-transaction between donor and requester.
func (r *Request) ApplyAccept(donor, donorName, donorPhone, meetingTime string, now time.Time) {
	r.Status = StatusAccepted
	r.Donor = donor
	r.DonorName = donorName
	r.DonorPhone = donorPhone
	r.MeetingTime = meetingTime
	if r.ConfirmationCode == "" {
		r.ConfirmationCode = domain.NewConfirmationCode()
	}
	r.UpdatedAt = now
}

// CanComplete checks the accepted -> completed precondition.
func (r *Request) CanComplete() error {
	if r.Status != StatusAccepted {
		return dErrors.New(dErrors.CodeInvariantViolation, "request is not accepted")
	}
	return nil
}

// ApplyCompletion transitions to completed and finalizes the confirmation code.
func (r *Request) ApplyCompletion(now time.Time) {
	r.Status = StatusCompleted
	if r.ConfirmationCode == "" {
		r.ConfirmationCode = domain.NewConfirmationCode()
	}
	r.UpdatedAt = now
}
