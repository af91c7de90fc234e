package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"swasthya/internal/donation/models"
	"swasthya/pkg/domain"
	"swasthya/pkg/platform/sentinel"
)

// InMemory stores donations in memory for tests/dev. The one-donation-per-
// request invariant is enforced here the same way the Postgres unique index
// enforces it.
type InMemory struct {
	mu        sync.RWMutex
	byRequest map[domain.RequestID]*models.Donation
}

// NewInMemory constructs an empty in-memory donation store.
func NewInMemory() *InMemory {
	return &InMemory{byRequest: make(map[domain.RequestID]*models.Donation)}
}

func (s *InMemory) Create(_ context.Context, donation *models.Donation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.byRequest[donation.RequestID]; exists {
		return fmt.Errorf("donation for request %s: %w", donation.RequestID, sentinel.ErrConflict)
	}
	cp := *donation
	s.byRequest[donation.RequestID] = &cp
	return nil
}

func (s *InMemory) FindByRequest(_ context.Context, requestID domain.RequestID) (*models.Donation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	donation, ok := s.byRequest[requestID]
	if !ok {
		return nil, fmt.Errorf("donation for request %s: %w", requestID, sentinel.ErrNotFound)
	}
	cp := *donation
	return &cp, nil
}

// CompleteByRequest marks the donation completed, conditionally on it still
// being pending. Retried confirmations therefore cannot complete it twice.
func (s *InMemory) CompleteByRequest(_ context.Context, requestID domain.RequestID, code string, now time.Time) (*models.Donation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	donation, ok := s.byRequest[requestID]
	if !ok {
		return nil, fmt.Errorf("donation for request %s: %w", requestID, sentinel.ErrNotFound)
	}
	if donation.Status != models.StatusPending {
		return nil, fmt.Errorf("donation for request %s already completed: %w", requestID, sentinel.ErrInvalidState)
	}
	donation.Status = models.StatusCompleted
	if donation.ConfirmationCode == "" {
		donation.ConfirmationCode = code
	}
	completed := now
	donation.CompletedAt = &completed
	cp := *donation
	return &cp, nil
}

// ListByDonor returns a donor's donations, newest first.
func (s *InMemory) ListByDonor(_ context.Context, donor string) ([]*models.Donation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.Donation
	for _, donation := range s.byRequest {
		if donation.Donor == donor {
			cp := *donation
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}
