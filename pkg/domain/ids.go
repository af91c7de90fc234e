package domain

import (
	"github.com/google/uuid"

	dErrors "swasthya/pkg/domain-errors"
)

// Typed identifiers keep the three aggregates from being mixed up at compile
// time. Construct from external input via the Parse helpers so the "valid,
// non-nil UUID" invariant is enforced at trust boundaries.

type RequestID uuid.UUID

type DonationID uuid.UUID

type PrescriptionID uuid.UUID

func NewRequestID() RequestID           { return RequestID(uuid.New()) }
func NewDonationID() DonationID         { return DonationID(uuid.New()) }
func NewPrescriptionID() PrescriptionID { return PrescriptionID(uuid.New()) }

func (id RequestID) String() string      { return uuid.UUID(id).String() }
func (id DonationID) String() string     { return uuid.UUID(id).String() }
func (id PrescriptionID) String() string { return uuid.UUID(id).String() }

func (id RequestID) IsNil() bool      { return uuid.UUID(id) == uuid.Nil }
func (id DonationID) IsNil() bool     { return uuid.UUID(id) == uuid.Nil }
func (id PrescriptionID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }

// Defined types do not inherit uuid.UUID's marshaling, so each id spells out
// the text round trip; without these, JSON would emit the raw byte array.

func (id RequestID) MarshalText() ([]byte, error)      { return []byte(id.String()), nil }
func (id DonationID) MarshalText() ([]byte, error)     { return []byte(id.String()), nil }
func (id PrescriptionID) MarshalText() ([]byte, error) { return []byte(id.String()), nil }

func (id *RequestID) UnmarshalText(text []byte) error {
	parsed, err := ParseRequestID(string(text))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

func (id *DonationID) UnmarshalText(text []byte) error {
	parsed, err := ParseDonationID(string(text))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

func (id *PrescriptionID) UnmarshalText(text []byte) error {
	parsed, err := ParsePrescriptionID(string(text))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

// ParseRequestID constructs a RequestID from external input.
func ParseRequestID(s string) (RequestID, error) {
	u, err := parseUUID(s, "request id")
	return RequestID(u), err
}

// ParseDonationID constructs a DonationID from external input.
func ParseDonationID(s string) (DonationID, error) {
	u, err := parseUUID(s, "donation id")
	return DonationID(u), err
}

// ParsePrescriptionID constructs a PrescriptionID from external input.
func ParsePrescriptionID(s string) (PrescriptionID, error) {
	u, err := parseUUID(s, "prescription id")
	return PrescriptionID(u), err
}

func parseUUID(s, what string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, dErrors.Newf(dErrors.CodeValidation, "%s cannot be empty", what)
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.Newf(dErrors.CodeValidation, "invalid %s", what)
	}
	if u == uuid.Nil {
		return uuid.Nil, dErrors.Newf(dErrors.CodeValidation, "%s cannot be nil", what)
	}
	return u, nil
}
