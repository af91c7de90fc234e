package models

import (
	"strings"

	dErrors "swasthya/pkg/domain-errors"
)

// CreateRequestInput carries the fields a requester posts for a new request.
type CreateRequestInput struct {
	Group        string   `json:"group"`
	Units        int      `json:"units"`
	LocationName string   `json:"location_name"`
	Lat          *float64 `json:"lat,omitempty"`
	Lng          *float64 `json:"lng,omitempty"`
}

func (in *CreateRequestInput) Normalize() {
	in.Group = strings.TrimSpace(in.Group)
	in.LocationName = strings.TrimSpace(in.LocationName)
}

func (in *CreateRequestInput) Validate() error {
	if in.Group == "" {
		return dErrors.New(dErrors.CodeValidation, "group is required")
	}
	if in.Units <= 0 {
		return dErrors.New(dErrors.CodeValidation, "units must be a positive integer")
	}
	if in.LocationName == "" {
		return dErrors.New(dErrors.CodeValidation, "location_name is required")
	}
	return nil
}

// AcceptRequestInput carries what a donor supplies when racing to accept.
// The donor identity itself comes from the authenticated actor, never the body.
type AcceptRequestInput struct {
	DonorPhone  string `json:"donor_phone"`
	MeetingTime string `json:"meeting_time,omitempty"`
}

func (in *AcceptRequestInput) Normalize() {
	in.DonorPhone = strings.TrimSpace(in.DonorPhone)
	in.MeetingTime = strings.TrimSpace(in.MeetingTime)
}

func (in *AcceptRequestInput) Validate() error {
	if in.DonorPhone == "" {
		return dErrors.New(dErrors.CodeValidation, "donor_phone is required")
	}
	return nil
}
