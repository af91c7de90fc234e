package models

import (
	"time"

	donationModels "swasthya/internal/donation/models"
)

// DonorProfile is the minimal profile the coordination core touches: an
// identity plus the append-only achievements ledger. Profile field storage
// beyond this lives with the external profile collaborator.
type DonorProfile struct {
	Email        string                       `json:"email"`
	Name         string                       `json:"name,omitempty"`
	Achievements []donationModels.Achievement `json:"achievements"`
	CreatedAt    time.Time                    `json:"created_at"`
}
