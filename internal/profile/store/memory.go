package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	donationModels "swasthya/internal/donation/models"
	"swasthya/internal/profile/models"
	"swasthya/pkg/platform/sentinel"
)

// InMemory stores donor profiles in memory for tests/dev.
//
// The achievements slice is append-only by construction: no method mutates or
// removes existing entries.
type InMemory struct {
	mu       sync.RWMutex
	profiles map[string]*models.DonorProfile
}

// NewInMemory constructs an empty in-memory profile store.
func NewInMemory() *InMemory {
	return &InMemory{profiles: make(map[string]*models.DonorProfile)}
}

func (s *InMemory) FindByEmail(_ context.Context, email string) (*models.DonorProfile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	profile, ok := s.profiles[email]
	if !ok {
		return nil, fmt.Errorf("profile %s: %w", email, sentinel.ErrNotFound)
	}
	cp := *profile
	cp.Achievements = append([]donationModels.Achievement(nil), profile.Achievements...)
	return &cp, nil
}

// AppendAchievement appends one ledger entry, creating the profile on first
// use for donors who never filled one in.
func (s *InMemory) AppendAchievement(_ context.Context, email, name string, achievement donationModels.Achievement, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	profile, ok := s.profiles[email]
	if !ok {
		profile = &models.DonorProfile{Email: email, Name: name, CreatedAt: now}
		s.profiles[email] = profile
	}
	profile.Achievements = append(profile.Achievements, achievement)
	return nil
}

// ListAchievements returns the donor's ledger in append order. A donor with
// no profile has an empty ledger, not an error.
func (s *InMemory) ListAchievements(_ context.Context, email string) ([]donationModels.Achievement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	profile, ok := s.profiles[email]
	if !ok {
		return nil, nil
	}
	return append([]donationModels.Achievement(nil), profile.Achievements...), nil
}
