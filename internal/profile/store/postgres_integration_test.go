//go:build integration

package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	donationModels "swasthya/internal/donation/models"
	"swasthya/pkg/platform/sentinel"
	"swasthya/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	store *Postgres
	pg    *containers.PostgresContainer
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	s.pg = containers.Postgres(s.T())
	s.store = NewPostgres(s.pg.DB)
}

func (s *PostgresStoreSuite) SetupTest() {
	s.Require().NoError(s.pg.Truncate(context.Background()))
}

func (s *PostgresStoreSuite) TestAppendAchievement_CreatesProfile() {
	now := time.Now().UTC().Truncate(time.Microsecond)

	_, err := s.store.FindByEmail(context.Background(), "donor@example.com")
	s.Require().ErrorIs(err, sentinel.ErrNotFound)

	s.Require().NoError(s.store.AppendAchievement(context.Background(),
		"donor@example.com", "Arjun", donationModels.Achievement{
			Title:            donationModels.AchievementTitle,
			Date:             now,
			ConfirmationCode: "DONOR-AB12CD34",
			Location:         "City Hospital",
		}, now))

	profile, err := s.store.FindByEmail(context.Background(), "donor@example.com")
	s.Require().NoError(err)
	s.Equal("Arjun", profile.Name)
	s.Require().Len(profile.Achievements, 1)
	s.Equal("DONOR-AB12CD34", profile.Achievements[0].ConfirmationCode)
}

func (s *PostgresStoreSuite) TestAppendAchievement_AccumulatesInOrder() {
	now := time.Now()
	for _, code := range []string{"DONOR-FIRST001", "DONOR-SECOND02", "DONOR-THIRD003"} {
		s.Require().NoError(s.store.AppendAchievement(context.Background(),
			"donor@example.com", "Arjun", donationModels.Achievement{
				Title:            donationModels.AchievementTitle,
				Date:             now,
				ConfirmationCode: code,
				Location:         "City Hospital",
			}, now))
	}

	achievements, err := s.store.ListAchievements(context.Background(), "donor@example.com")
	s.Require().NoError(err)
	s.Require().Len(achievements, 3)
	s.Equal("DONOR-FIRST001", achievements[0].ConfirmationCode)
	s.Equal("DONOR-THIRD003", achievements[2].ConfirmationCode)
}

func (s *PostgresStoreSuite) TestListAchievements_UnknownDonor() {
	achievements, err := s.store.ListAchievements(context.Background(), "nobody@example.com")
	s.Require().NoError(err)
	s.Empty(achievements)
}
