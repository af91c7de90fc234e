package models

import (
	"strings"

	dErrors "swasthya/pkg/domain-errors"
	platformstrings "swasthya/pkg/platform/strings"
)

// SubmitUploadInput carries an upload-kind submission. The ref is an opaque
// filename in the blob collaborator; this service never reads the bytes.
type SubmitUploadInput struct {
	UploadRef  string `json:"upload_ref"`
	UploadName string `json:"upload_name,omitempty"`
}

func (in *SubmitUploadInput) Normalize() {
	in.UploadRef = strings.TrimSpace(in.UploadRef)
	in.UploadName = strings.TrimSpace(in.UploadName)
}

func (in *SubmitUploadInput) Validate() error {
	if in.UploadRef == "" {
		return dErrors.New(dErrors.CodeValidation, "upload_ref is required")
	}
	return nil
}

// SubmitManualInput carries a manual-kind submission.
type SubmitManualInput struct {
	Medicines []string `json:"medicines"`
}

func (in *SubmitManualInput) Normalize() {
	in.Medicines = platformstrings.DedupeAndTrim(in.Medicines)
}

func (in *SubmitManualInput) Validate() error {
	if len(in.Medicines) == 0 {
		return dErrors.New(dErrors.CodeValidation, "medicines is required")
	}
	return nil
}

// ConfirmInput carries the pharmacist's availability verdict.
type ConfirmInput struct {
	AllPresent         bool     `json:"all_present"`
	AvailableMedicines []string `json:"available_medicines,omitempty"`
}

func (in *ConfirmInput) Normalize() {
	in.AvailableMedicines = platformstrings.DedupeAndTrim(in.AvailableMedicines)
}
