package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"swasthya/internal/donation/models"
	"swasthya/pkg/domain"
	"swasthya/pkg/platform/sentinel"
)

func newDonation(t *testing.T, s *InMemory, requestID domain.RequestID, createdAt time.Time) *models.Donation {
	t.Helper()
	donation := models.NewDonation(
		domain.NewDonationID(), requestID,
		"donor@example.com", "requester@example.com",
		"DONOR-AB12CD34", createdAt,
	)
	require.NoError(t, s.Create(context.Background(), donation))
	return donation
}

func TestCreate_OnePerRequest(t *testing.T) {
	s := NewInMemory()
	requestID := domain.NewRequestID()
	newDonation(t, s, requestID, time.Now())

	dup := models.NewDonation(
		domain.NewDonationID(), requestID,
		"other@example.com", "requester@example.com",
		"DONOR-OTHER123", time.Now(),
	)
	err := s.Create(context.Background(), dup)
	require.ErrorIs(t, err, sentinel.ErrConflict)
}

func TestCompleteByRequest(t *testing.T) {
	s := NewInMemory()
	requestID := domain.NewRequestID()
	newDonation(t, s, requestID, time.Now())

	completed, err := s.CompleteByRequest(context.Background(), requestID, "DONOR-FALLBACK", time.Now())
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, completed.Status)
	require.NotNil(t, completed.CompletedAt)
	// The create-time code survives the fallback.
	assert.Equal(t, "DONOR-AB12CD34", completed.ConfirmationCode)

	// Completion is one-shot.
	_, err = s.CompleteByRequest(context.Background(), requestID, "DONOR-FALLBACK", time.Now())
	require.ErrorIs(t, err, sentinel.ErrInvalidState)
}

func TestCompleteByRequest_NotFound(t *testing.T) {
	s := NewInMemory()
	_, err := s.CompleteByRequest(context.Background(), domain.NewRequestID(), "DONOR-FALLBACK", time.Now())
	require.ErrorIs(t, err, sentinel.ErrNotFound)
}

func TestListByDonor_NewestFirst(t *testing.T) {
	s := NewInMemory()
	old := newDonation(t, s, domain.NewRequestID(), time.Now().Add(-time.Hour))
	fresh := newDonation(t, s, domain.NewRequestID(), time.Now())

	listed, err := s.ListByDonor(context.Background(), "donor@example.com")
	require.NoError(t, err)
	require.Len(t, listed, 2)
	assert.Equal(t, fresh.ID, listed[0].ID)
	assert.Equal(t, old.ID, listed[1].ID)
}
