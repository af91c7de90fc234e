package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"swasthya/internal/prescription/models"
	"swasthya/pkg/domain"
	"swasthya/pkg/platform/sentinel"
)

// Error Contract:
// All store methods follow this pattern:
//   - Return sentinel.ErrNotFound when the prescription does not exist
//   - Return sentinel.ErrInvalidState when a conditional transition matched an
//     existing prescription that is no longer pending
//   - Return wrapped errors for infrastructure failures

// InMemory stores prescriptions in memory for tests/dev. Conditional
// transitions run under one lock, matching the atomicity the pgx store gets
// from its conditional UPDATE.
type InMemory struct {
	mu            sync.RWMutex
	prescriptions map[domain.PrescriptionID]*models.Prescription
}

// NewInMemory constructs an empty in-memory prescription store.
func NewInMemory() *InMemory {
	return &InMemory{prescriptions: make(map[domain.PrescriptionID]*models.Prescription)}
}

func (s *InMemory) Create(_ context.Context, prescription *models.Prescription) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.prescriptions[prescription.ID]; exists {
		return fmt.Errorf("prescription %s: %w", prescription.ID, sentinel.ErrConflict)
	}
	cp := clone(prescription)
	s.prescriptions[prescription.ID] = cp
	return nil
}

func (s *InMemory) FindByID(_ context.Context, id domain.PrescriptionID) (*models.Prescription, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	prescription, ok := s.prescriptions[id]
	if !ok {
		return nil, fmt.Errorf("prescription %s: %w", id, sentinel.ErrNotFound)
	}
	return clone(prescription), nil
}

// ListByPatient returns the patient's prescriptions, newest first.
func (s *InMemory) ListByPatient(_ context.Context, email string) ([]*models.Prescription, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.Prescription
	for _, prescription := range s.prescriptions {
		if prescription.PatientEmail == email {
			out = append(out, clone(prescription))
		}
	}
	sortNewestFirst(out)
	return out, nil
}

// ListAll returns every prescription, newest first. Pharmacist work queue.
func (s *InMemory) ListAll(_ context.Context) ([]*models.Prescription, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.Prescription, 0, len(s.prescriptions))
	for _, prescription := range s.prescriptions {
		out = append(out, clone(prescription))
	}
	sortNewestFirst(out)
	return out, nil
}

// ConfirmPending performs the pending -> confirmed compare-and-swap.
func (s *InMemory) ConfirmPending(_ context.Context, id domain.PrescriptionID, pharmacist string, allPresent bool, medicines []string, now time.Time) (*models.Prescription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	prescription, ok := s.prescriptions[id]
	if !ok {
		return nil, fmt.Errorf("prescription %s: %w", id, sentinel.ErrNotFound)
	}
	if err := prescription.CanResolve(); err != nil {
		return nil, fmt.Errorf("%s: %w", err.Error(), sentinel.ErrInvalidState)
	}
	prescription.ApplyConfirmation(pharmacist, allPresent, medicines, now)
	return clone(prescription), nil
}

// RejectPending performs the pending -> rejected compare-and-swap.
func (s *InMemory) RejectPending(_ context.Context, id domain.PrescriptionID) (*models.Prescription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	prescription, ok := s.prescriptions[id]
	if !ok {
		return nil, fmt.Errorf("prescription %s: %w", id, sentinel.ErrNotFound)
	}
	if err := prescription.CanResolve(); err != nil {
		return nil, fmt.Errorf("%s: %w", err.Error(), sentinel.ErrInvalidState)
	}
	prescription.ApplyRejection()
	return clone(prescription), nil
}

func sortNewestFirst(prescriptions []*models.Prescription) {
	sort.Slice(prescriptions, func(i, j int) bool {
		return prescriptions[i].SubmittedAt.After(prescriptions[j].SubmittedAt)
	})
}

// clone deep-copies so callers never share slices or the confirmation with
// the stored aggregate.
func clone(p *models.Prescription) *models.Prescription {
	cp := *p
	if p.Medicines != nil {
		cp.Medicines = append([]string(nil), p.Medicines...)
	}
	if p.Confirmation != nil {
		conf := *p.Confirmation
		if conf.Medicines != nil {
			conf.Medicines = append([]string(nil), conf.Medicines...)
		}
		cp.Confirmation = &conf
	}
	return &cp
}
