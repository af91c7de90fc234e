package service

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"swasthya/internal/bloodrequest/models"
	requeststore "swasthya/internal/bloodrequest/store"
	"swasthya/internal/donation/recorder"
	donationstore "swasthya/internal/donation/store"
	profilestore "swasthya/internal/profile/store"
	"swasthya/pkg/domain"
	dErrors "swasthya/pkg/domain-errors"
	"swasthya/pkg/platform/audit/publisher"
	auditmemory "swasthya/pkg/platform/audit/store/memory"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

type ServiceSuite struct {
	suite.Suite

	requests   *requeststore.InMemory
	donations  *donationstore.InMemory
	profiles   *profilestore.InMemory
	auditStore *auditmemory.InMemoryStore
	pub        *publisher.Publisher
	svc        *Service

	requester domain.Actor
	donor     domain.Actor
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.requests = requeststore.NewInMemory()
	s.donations = donationstore.NewInMemory()
	s.profiles = profilestore.NewInMemory()
	s.auditStore = auditmemory.NewInMemoryStore()
	s.pub = publisher.NewPublisher(s.auditStore)

	rec := recorder.New(s.donations, s.profiles)
	svc, err := New(s.requests, rec, WithAuditPublisher(s.pub))
	s.Require().NoError(err)
	s.svc = svc

	s.requester = domain.Actor{Role: domain.RoleUser, Identity: "requester@example.com", Name: "Riya"}
	s.donor = domain.Actor{Role: domain.RoleUser, Identity: "donor@example.com", Name: "Arjun"}
}

func (s *ServiceSuite) TearDownTest() {
	s.pub.Close()
}

func (s *ServiceSuite) createRequest() *models.Request {
	request, err := s.svc.Create(context.Background(), s.requester, models.CreateRequestInput{
		Group:        "O-",
		Units:        2,
		LocationName: "City Hospital",
	})
	s.Require().NoError(err)
	return request
}

func (s *ServiceSuite) acceptRequest(id domain.RequestID) *models.Request {
	accepted, err := s.svc.Accept(context.Background(), s.donor, id, models.AcceptRequestInput{
		DonorPhone: "+8801700000000",
	})
	s.Require().NoError(err)
	return accepted
}

func (s *ServiceSuite) TestCreate() {
	request := s.createRequest()

	assert.Equal(s.T(), models.StatusOpen, request.Status)
	assert.Equal(s.T(), "requester@example.com", request.Requester)
	assert.False(s.T(), request.ID.IsNil())

	events, err := s.auditStore.ListByActor(context.Background(), "requester@example.com")
	s.Require().NoError(err)
	require.Len(s.T(), events, 1)
	assert.Equal(s.T(), "request_created", events[0].Action)
}

func (s *ServiceSuite) TestCreate_InvalidInput() {
	_, err := s.svc.Create(context.Background(), s.requester, models.CreateRequestInput{
		Group: "O-",
		Units: 0,
	})
	require.Error(s.T(), err)
	assert.True(s.T(), dErrors.HasCode(err, dErrors.CodeValidation))
}

func (s *ServiceSuite) TestAccept() {
	request := s.createRequest()
	accepted := s.acceptRequest(request.ID)

	assert.Equal(s.T(), models.StatusAccepted, accepted.Status)
	assert.Equal(s.T(), "donor@example.com", accepted.Donor)
	assert.Equal(s.T(), "Arjun", accepted.DonorName)
	assert.NotEmpty(s.T(), accepted.ConfirmationCode)

	// The pending donation exists, tied to this request.
	donation, err := s.donations.FindByRequest(context.Background(), request.ID)
	s.Require().NoError(err)
	assert.Equal(s.T(), "donor@example.com", donation.Donor)
	assert.Equal(s.T(), "requester@example.com", donation.Receiver)
	assert.Equal(s.T(), accepted.ConfirmationCode, donation.ConfirmationCode)
}

func (s *ServiceSuite) TestAccept_NotFound() {
	_, err := s.svc.Accept(context.Background(), s.donor, domain.NewRequestID(), models.AcceptRequestInput{
		DonorPhone: "+8801700000000",
	})
	require.Error(s.T(), err)
	assert.True(s.T(), dErrors.HasCode(err, dErrors.CodeNotFound))
}

func (s *ServiceSuite) TestAccept_AlreadyResolved() {
	request := s.createRequest()
	s.acceptRequest(request.ID)

	second := domain.Actor{Role: domain.RoleUser, Identity: "late@example.com", Name: "Late"}
	_, err := s.svc.Accept(context.Background(), second, request.ID, models.AcceptRequestInput{
		DonorPhone: "+8801711111111",
	})
	require.ErrorIs(s.T(), err, ErrAlreadyResolved)

	// The loser left no donation behind.
	donation, err := s.donations.FindByRequest(context.Background(), request.ID)
	s.Require().NoError(err)
	assert.Equal(s.T(), "donor@example.com", donation.Donor)
}

// Exactly one of N concurrent accepts wins; everyone else gets the conflict.
func (s *ServiceSuite) TestAccept_SingleWinnerUnderContention() {
	request := s.createRequest()

	const donors = 50
	var (
		wins      atomic.Int64
		conflicts atomic.Int64
		wg        sync.WaitGroup
	)

	for i := range donors {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			actor := domain.Actor{
				Role:     domain.RoleUser,
				Identity: string(rune('a'+n%26)) + "@example.com",
				Name:     "Donor",
			}
			_, err := s.svc.Accept(context.Background(), actor, request.ID, models.AcceptRequestInput{
				DonorPhone: "+8801700000000",
			})
			switch {
			case err == nil:
				wins.Add(1)
			case dErrors.HasCode(err, dErrors.CodeConflict):
				conflicts.Add(1)
			default:
				s.T().Errorf("unexpected error: %v", err)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(s.T(), int64(1), wins.Load(), "exactly one donor must win")
	assert.Equal(s.T(), int64(donors-1), conflicts.Load())
}

func (s *ServiceSuite) TestConfirmCompletion() {
	request := s.createRequest()
	accepted := s.acceptRequest(request.ID)

	completed, err := s.svc.ConfirmCompletion(context.Background(), s.requester, request.ID)
	s.Require().NoError(err)
	assert.Equal(s.T(), models.StatusCompleted, completed.Status)
	assert.Equal(s.T(), accepted.ConfirmationCode, completed.ConfirmationCode)

	// The donation flipped to completed and the donor earned one achievement.
	donation, err := s.donations.FindByRequest(context.Background(), request.ID)
	s.Require().NoError(err)
	assert.NotNil(s.T(), donation.CompletedAt)

	achievements, err := s.profiles.ListAchievements(context.Background(), "donor@example.com")
	s.Require().NoError(err)
	require.Len(s.T(), achievements, 1)
	assert.Equal(s.T(), "Blood Donation", achievements[0].Title)
	assert.Equal(s.T(), "City Hospital", achievements[0].Location)
	assert.Equal(s.T(), completed.ConfirmationCode, achievements[0].ConfirmationCode)
}

func (s *ServiceSuite) TestConfirmCompletion_RequesterOnly() {
	request := s.createRequest()
	s.acceptRequest(request.ID)

	_, err := s.svc.ConfirmCompletion(context.Background(), s.donor, request.ID)
	require.Error(s.T(), err)
	assert.True(s.T(), dErrors.HasCode(err, dErrors.CodeUnauthorized))

	// The request stays accepted.
	current, err := s.svc.Get(context.Background(), request.ID)
	s.Require().NoError(err)
	assert.Equal(s.T(), models.StatusAccepted, current.Status)
}

func (s *ServiceSuite) TestConfirmCompletion_NotYetAccepted() {
	request := s.createRequest()

	_, err := s.svc.ConfirmCompletion(context.Background(), s.requester, request.ID)
	require.ErrorIs(s.T(), err, ErrNotYetAccepted)
}

func (s *ServiceSuite) TestConfirmCompletion_AlreadyCompleted() {
	request := s.createRequest()
	s.acceptRequest(request.ID)

	_, err := s.svc.ConfirmCompletion(context.Background(), s.requester, request.ID)
	s.Require().NoError(err)

	// A retried confirmation is rejected and the achievement count stays at one.
	_, err = s.svc.ConfirmCompletion(context.Background(), s.requester, request.ID)
	require.ErrorIs(s.T(), err, ErrAlreadyCompleted)

	achievements, err := s.profiles.ListAchievements(context.Background(), "donor@example.com")
	s.Require().NoError(err)
	assert.Len(s.T(), achievements, 1)
}

func (s *ServiceSuite) TestList_ExcludesCompleted() {
	first := s.createRequest()
	second := s.createRequest()

	s.acceptRequest(first.ID)
	_, err := s.svc.ConfirmCompletion(context.Background(), s.requester, first.ID)
	s.Require().NoError(err)

	listed, err := s.svc.List(context.Background())
	s.Require().NoError(err)
	require.Len(s.T(), listed, 1)
	assert.Equal(s.T(), second.ID, listed[0].ID)
}

func (s *ServiceSuite) TestGet_NotFound() {
	_, err := s.svc.Get(context.Background(), domain.NewRequestID())
	require.Error(s.T(), err)
	assert.True(s.T(), dErrors.HasCode(err, dErrors.CodeNotFound))
}
