package models

import (
	"time"

	"swasthya/pkg/domain"
)

// Status tracks a donation from the moment a donor wins an accept race until
// the requester confirms the donation happened.
type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
)

// Donation records one donor fulfilling one request.
//
// Invariants:
//   - Exactly one Donation exists per Request, and only once the Request has
//     reached accepted; a losing accept attempt never produces one
//   - Receiver is copied from Request.Requester at creation
//   - Status mirrors the Request transitions: created pending with
//     open -> accepted, completed with accepted -> completed
type Donation struct {
	ID               domain.DonationID `json:"id"`
	RequestID        domain.RequestID  `json:"request_id"`
	Donor            string            `json:"donor"`
	Receiver         string            `json:"receiver"`
	Status           Status            `json:"status"`
	ConfirmationCode string            `json:"confirmation_code,omitempty"`
	CompletedAt      *time.Time        `json:"completed_at,omitempty"`
	CreatedAt        time.Time         `json:"created_at"`
}

// NewDonation constructs the pending Donation derived from an accepted request.
func NewDonation(id domain.DonationID, requestID domain.RequestID, donor, receiver, code string, now time.Time) *Donation {
	return &Donation{
		ID:               id,
		RequestID:        requestID,
		Donor:            donor,
		Receiver:         receiver,
		Status:           StatusPending,
		ConfirmationCode: code,
		CreatedAt:        now,
	}
}
