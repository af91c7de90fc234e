package models

import (
	"strings"
	"time"

	"swasthya/pkg/domain"
	dErrors "swasthya/pkg/domain-errors"
)

// Kind distinguishes how the prescription entered the system.
type Kind string

const (
	// KindUpload references a scanned prescription by opaque file ref.
	KindUpload Kind = "upload"
	// KindManual lists the requested medicines inline.
	KindManual Kind = "manual"
)

// Status tracks a prescription through its pipeline.
//
// Transitions: pending -> confirmed or pending -> rejected. Both outcomes are
// terminal; a resolved prescription can never be resolved again.
type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusRejected  Status = "rejected"
)

// Confirmation is the pharmacist's availability verdict. Present iff the
// prescription is confirmed.
type Confirmation struct {
	AllPresent  bool      `json:"all_present"`
	Medicines   []string  `json:"medicines,omitempty"`
	Pharmacist  string    `json:"pharmacist"`
	ConfirmedAt time.Time `json:"confirmed_at"`
}

// Message renders the human-readable availability summary shown to the
// patient. Wording is load-bearing: the mobile client string-matches it.
func (c Confirmation) Message() string {
	if c.AllPresent {
		return "All medicines available"
	}
	if len(c.Medicines) > 0 {
		return "Available medicines: " + strings.Join(c.Medicines, ", ")
	}
	return "Some medicines are unavailable"
}

// RejectedMessage is the notification text for a rejected prescription.
const RejectedMessage = "Prescription rejected"

// Prescription is the aggregate for one submitted prescription.
//
// Invariants:
//   - exactly one of UploadRef / Medicines is set, matching Kind
//   - Confirmation is non-nil iff Status == confirmed
type Prescription struct {
	ID           domain.PrescriptionID `json:"id"`
	PatientEmail string                `json:"patient_email"`
	PatientName  string                `json:"patient_name"`
	UploadRef    string                `json:"upload_ref,omitempty"`
	UploadName   string                `json:"upload_name,omitempty"`
	Medicines    []string              `json:"medicines,omitempty"`
	Kind         Kind                  `json:"kind"`
	Status       Status                `json:"status"`
	Confirmation *Confirmation         `json:"confirmation,omitempty"`
	SubmittedAt  time.Time             `json:"submitted_at"`
}

// NewUploadPrescription constructs a pending upload-kind prescription.
func NewUploadPrescription(id domain.PrescriptionID, email, name, uploadRef, uploadName string, now time.Time) (*Prescription, error) {
	if email == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "patient email cannot be empty")
	}
	if uploadRef == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "upload ref cannot be empty")
	}
	return &Prescription{
		ID:           id,
		PatientEmail: email,
		PatientName:  name,
		UploadRef:    uploadRef,
		UploadName:   uploadName,
		Kind:         KindUpload,
		Status:       StatusPending,
		SubmittedAt:  now,
	}, nil
}

// NewManualPrescription constructs a pending manual-kind prescription.
func NewManualPrescription(id domain.PrescriptionID, email, name string, medicines []string, now time.Time) (*Prescription, error) {
	if email == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "patient email cannot be empty")
	}
	if len(medicines) == 0 {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "medicines cannot be empty")
	}
	return &Prescription{
		ID:           id,
		PatientEmail: email,
		PatientName:  name,
		Medicines:    medicines,
		Kind:         KindManual,
		Status:       StatusPending,
		SubmittedAt:  now,
	}, nil
}

// CanResolve checks the pending precondition shared by confirm and reject.
// The in-memory store calls it under its lock; the Postgres store expresses
// the same check in the conditional UPDATE's WHERE clause.
func (p *Prescription) CanResolve() error {
	if p.Status != StatusPending {
		return dErrors.New(dErrors.CodeInvariantViolation, "prescription is not pending")
	}
	return nil
}

// ApplyConfirmation transitions to confirmed with the pharmacist's verdict.
func (p *Prescription) ApplyConfirmation(pharmacist string, allPresent bool, medicines []string, now time.Time) {
	p.Status = StatusConfirmed
	p.Confirmation = &Confirmation{
		AllPresent:  allPresent,
		Medicines:   medicines,
		Pharmacist:  pharmacist,
		ConfirmedAt: now,
	}
}

// ApplyRejection transitions to rejected. No confirmation body is recorded.
func (p *Prescription) ApplyRejection() {
	p.Status = StatusRejected
}
