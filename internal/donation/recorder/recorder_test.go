package recorder

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	requestModels "swasthya/internal/bloodrequest/models"
	"swasthya/internal/donation/models"
	donationstore "swasthya/internal/donation/store"
	profilestore "swasthya/internal/profile/store"
	"swasthya/pkg/domain"
)

func acceptedRequest(t *testing.T, now time.Time) *requestModels.Request {
	t.Helper()
	request, err := requestModels.NewRequest(domain.NewRequestID(), "O+", 2,
		requestModels.Location{Name: "City Hospital"}, "patient@example.com", now)
	require.NoError(t, err)
	request.ApplyAccept("donor@example.com", "Arjun", "0171-000000", "tomorrow 10am", now)
	return request
}

func TestRecordAccepted(t *testing.T) {
	donations := donationstore.NewInMemory()
	profiles := profilestore.NewInMemory()
	r := New(donations, profiles)

	now := time.Now()
	request := acceptedRequest(t, now)

	donation, err := r.RecordAccepted(context.Background(), request, now)
	require.NoError(t, err)
	assert.Equal(t, request.ID, donation.RequestID)
	assert.Equal(t, "donor@example.com", donation.Donor)
	assert.Equal(t, "patient@example.com", donation.Receiver)
	assert.Equal(t, request.ConfirmationCode, donation.ConfirmationCode)
	assert.Equal(t, models.StatusPending, donation.Status)

	// No achievement yet: those appear only on completion.
	achievements, err := profiles.ListAchievements(context.Background(), "donor@example.com")
	require.NoError(t, err)
	assert.Empty(t, achievements)
}

func TestRecordCompleted_AppendsAchievement(t *testing.T) {
	donations := donationstore.NewInMemory()
	profiles := profilestore.NewInMemory()
	r := New(donations, profiles)

	now := time.Now()
	request := acceptedRequest(t, now)
	_, err := r.RecordAccepted(context.Background(), request, now)
	require.NoError(t, err)

	request.ApplyCompletion(now)
	donation, err := r.RecordCompleted(context.Background(), request, now)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, donation.Status)

	achievements, err := profiles.ListAchievements(context.Background(), "donor@example.com")
	require.NoError(t, err)
	require.Len(t, achievements, 1)
	assert.Equal(t, models.AchievementTitle, achievements[0].Title)
	assert.Equal(t, "City Hospital", achievements[0].Location)
	assert.Equal(t, donation.ConfirmationCode, achievements[0].ConfirmationCode)
}

func TestRecordCompleted_UnknownLocationFallback(t *testing.T) {
	donations := donationstore.NewInMemory()
	profiles := profilestore.NewInMemory()
	r := New(donations, profiles)

	now := time.Now()
	request := acceptedRequest(t, now)
	_, err := r.RecordAccepted(context.Background(), request, now)
	require.NoError(t, err)

	request.Location.Name = ""
	request.ApplyCompletion(now)
	_, err = r.RecordCompleted(context.Background(), request, now)
	require.NoError(t, err)

	achievements, err := profiles.ListAchievements(context.Background(), "donor@example.com")
	require.NoError(t, err)
	require.Len(t, achievements, 1)
	assert.Equal(t, models.UnknownLocation, achievements[0].Location)
}

// A donor who never filled a name in still gets a readable profile, derived
// from their email local part.
func TestRecordCompleted_DerivesNameFromEmail(t *testing.T) {
	donations := donationstore.NewInMemory()
	profiles := profilestore.NewInMemory()
	r := New(donations, profiles)

	now := time.Now()
	request, err := requestModels.NewRequest(domain.NewRequestID(), "O+", 1,
		requestModels.Location{Name: "City Hospital"}, "patient@example.com", now)
	require.NoError(t, err)
	request.ApplyAccept("arjun.das@example.com", "", "", "", now)
	_, err = r.RecordAccepted(context.Background(), request, now)
	require.NoError(t, err)

	request.ApplyCompletion(now)
	_, err = r.RecordCompleted(context.Background(), request, now)
	require.NoError(t, err)

	profile, err := profiles.FindByEmail(context.Background(), "arjun.das@example.com")
	require.NoError(t, err)
	assert.Equal(t, "Arjun Das", profile.Name)
}

func TestRecordCompleted_NoDonation(t *testing.T) {
	donations := donationstore.NewInMemory()
	profiles := profilestore.NewInMemory()
	r := New(donations, profiles)

	now := time.Now()
	request := acceptedRequest(t, now)
	request.ApplyCompletion(now)

	_, err := r.RecordCompleted(context.Background(), request, now)
	require.Error(t, err)
}
