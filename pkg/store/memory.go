package store

import (
	"sort"
	"sync"

	"github.com/psantana5/landing/pkg/models"
)

// MemoryStore keeps submissions in process memory
type MemoryStore struct {
	submissions map[string]*models.Submission
	mu          sync.RWMutex
}

// NewMemoryStore creates a new in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		submissions: make(map[string]*models.Submission),
	}
}

// SaveSubmission stores a copy of sub
func (s *MemoryStore) SaveSubmission(sub *models.Submission) error {
	if err := validate(sub); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.submissions[sub.ID]; exists {
		return ErrDuplicateID
	}
	c := *sub
	s.submissions[sub.ID] = &c
	return nil
}

// GetSubmission retrieves a submission by ID
func (s *MemoryStore) GetSubmission(id string) (*models.Submission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sub, ok := s.submissions[id]
	if !ok {
		return nil, ErrNotFound
	}
	c := *sub
	return &c, nil
}

// ListSubmissions returns submissions newest first
func (s *MemoryStore) ListSubmissions(kind models.SubmissionKind, limit int) ([]*models.Submission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*models.Submission, 0, len(s.submissions))
	for _, sub := range s.submissions {
		if kind != "" && sub.Kind != kind {
			continue
		}
		c := *sub
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// CountByKind returns the number of submissions per kind
func (s *MemoryStore) CountByKind() (map[string]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	counts := map[string]int{
		string(models.KindContact):    0,
		string(models.KindNewsletter): 0,
	}
	for _, sub := range s.submissions {
		counts[string(sub.Kind)]++
	}
	return counts, nil
}

// HealthCheck always succeeds
func (s *MemoryStore) HealthCheck() error {
	return nil
}

// Close is a no-op
func (s *MemoryStore) Close() error {
	return nil
}
