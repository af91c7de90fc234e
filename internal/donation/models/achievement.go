package models

import "time"

// AchievementTitle is the ledger title for a completed blood donation.
const AchievementTitle = "Blood Donation"

// UnknownLocation is the fallback when a request carries no location name.
const UnknownLocation = "Unknown Location"

// Achievement is one immutable entry in a donor's historical ledger. Entries
// are append-only: nothing in the system updates or removes one.
type Achievement struct {
	Title            string    `json:"title"`
	Date             time.Time `json:"date"`
	ConfirmationCode string    `json:"confirmation_code"`
	Location         string    `json:"location"`
}
