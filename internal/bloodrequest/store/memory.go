package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"swasthya/internal/bloodrequest/models"
	"swasthya/pkg/domain"
	"swasthya/pkg/platform/sentinel"
)

// Error Contract:
// All store methods follow this pattern:
//   - Return sentinel.ErrNotFound when the request does not exist
//   - Return sentinel.ErrInvalidState when a conditional transition matched an
//     existing request in the wrong state (the losing side of the race)
//   - Return wrapped errors for infrastructure failures

// AcceptUpdate carries the donor fields written by the open -> accepted
// transition. ConfirmationCode is the candidate code; a code already present
// on the request wins.
type AcceptUpdate struct {
	Donor            string
	DonorName        string
	DonorPhone       string
	MeetingTime      string
	ConfirmationCode string
}

// InMemory stores requests in memory for tests/dev. All conditional
// transitions happen under one lock, so the exactly-one-winner guarantee
// holds the same way the Postgres conditional UPDATE provides it.
type InMemory struct {
	mu       sync.RWMutex
	requests map[domain.RequestID]*models.Request
}

// NewInMemory constructs an empty in-memory request store.
func NewInMemory() *InMemory {
	return &InMemory{requests: make(map[domain.RequestID]*models.Request)}
}

func (s *InMemory) Create(_ context.Context, request *models.Request) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.requests[request.ID]; exists {
		return fmt.Errorf("request %s: %w", request.ID, sentinel.ErrConflict)
	}
	cp := *request
	s.requests[request.ID] = &cp
	return nil
}

func (s *InMemory) FindByID(_ context.Context, id domain.RequestID) (*models.Request, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	request, ok := s.requests[id]
	if !ok {
		return nil, fmt.Errorf("request %s: %w", id, sentinel.ErrNotFound)
	}
	cp := *request
	return &cp, nil
}

// ListActionable returns requests still in the public feed (open or
// accepted), newest first. Completed requests never surface here.
func (s *InMemory) ListActionable(_ context.Context) ([]*models.Request, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.Request, 0, len(s.requests))
	for _, request := range s.requests {
		if request.IsActionable() {
			cp := *request
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

// AcceptOpen performs the open -> accepted compare-and-swap. Exactly one
// concurrent caller observes status == open; every other caller gets
// ErrInvalidState.
func (s *InMemory) AcceptOpen(_ context.Context, id domain.RequestID, update AcceptUpdate, now time.Time) (*models.Request, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	request, ok := s.requests[id]
	if !ok {
		return nil, fmt.Errorf("request %s: %w", id, sentinel.ErrNotFound)
	}
	if err := request.CanAccept(); err != nil {
		return nil, fmt.Errorf("%s: %w", err.Error(), sentinel.ErrInvalidState)
	}
	if request.ConfirmationCode == "" {
		request.ConfirmationCode = update.ConfirmationCode
	}
	request.ApplyAccept(update.Donor, update.DonorName, update.DonorPhone, update.MeetingTime, now)
	cp := *request
	return &cp, nil
}

// CompleteAccepted performs the accepted -> completed compare-and-swap.
// fallbackCode finalizes the confirmation code when accept somehow left it
// empty.
func (s *InMemory) CompleteAccepted(_ context.Context, id domain.RequestID, fallbackCode string, now time.Time) (*models.Request, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	request, ok := s.requests[id]
	if !ok {
		return nil, fmt.Errorf("request %s: %w", id, sentinel.ErrNotFound)
	}
	if err := request.CanComplete(); err != nil {
		return nil, fmt.Errorf("%s: %w", err.Error(), sentinel.ErrInvalidState)
	}
	if request.ConfirmationCode == "" {
		request.ConfirmationCode = fallbackCode
	}
	request.ApplyCompletion(now)
	cp := *request
	return &cp, nil
}

// DeleteExpiredOpen removes requests created before cutoff that are still
// open. The status check and the delete happen under the same lock, so a
// concurrent accept either wins (request survives) or loses cleanly.
func (s *InMemory) DeleteExpiredOpen(_ context.Context, cutoff time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	deleted := 0
	for id, request := range s.requests {
		if request.Status == models.StatusOpen && request.CreatedAt.Before(cutoff) {
			delete(s.requests, id)
			deleted++
		}
	}
	return deleted, nil
}
