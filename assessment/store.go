package assessment

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/liamcoop/cvrisk/rules"
)

// ErrNotFound is returned when an assessment ID does not exist
var ErrNotFound = errors.New("assessment not found")

// Record is one stored assessment: the input that was classified and its verdict
type Record struct {
	ID        uuid.UUID           `json:"id"`
	Input     rules.ClinicalInput `json:"input"`
	Verdict   *rules.Verdict      `json:"verdict"`
	CreatedAt time.Time           `json:"createdAt"`
}

// Store manages assessment persistence and retrieval
type Store interface {
	// Add a new record. A nil ID is replaced with a fresh one.
	Add(ctx context.Context, rec *Record) error

	// Get a record by ID
	Get(ctx context.Context, id uuid.UUID) (*Record, error)

	// ListRecent returns up to limit records, newest first
	ListRecent(ctx context.Context, limit int) ([]*Record, error)

	// Delete a record
	Delete(ctx context.Context, id uuid.UUID) error
}

// InMemoryStore implements Store using an in-memory map.
// Safe for concurrent use.
type InMemoryStore struct {
	records map[uuid.UUID]*Record
	order   []uuid.UUID
	mu      sync.RWMutex
}

// NewInMemoryStore creates a new in-memory assessment store
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		records: make(map[uuid.UUID]*Record),
	}
}

// Add stores a record, assigning an ID and creation time when missing
func (s *InMemoryStore) Add(ctx context.Context, rec *Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}
	if _, exists := s.records[rec.ID]; exists {
		return fmt.Errorf("assessment with ID %s already exists", rec.ID)
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}

	s.records[rec.ID] = rec
	s.order = append(s.order, rec.ID)
	return nil
}

// Get retrieves a record by ID
func (s *InMemoryStore) Get(ctx context.Context, id uuid.UUID) (*Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, exists := s.records[id]
	if !exists {
		return nil, fmt.Errorf("assessment %s: %w", id, ErrNotFound)
	}
	return rec, nil
}

// ListRecent returns the most recently added records first
func (s *InMemoryStore) ListRecent(ctx context.Context, limit int) ([]*Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if limit <= 0 {
		return []*Record{}, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*Record, 0, min(limit, len(s.order)))
	for i := len(s.order) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, s.records[s.order[i]])
	}
	return out, nil
}

// Delete removes a record from the store
func (s *InMemoryStore) Delete(ctx context.Context, id uuid.UUID) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.records[id]; !exists {
		return fmt.Errorf("assessment %s: %w", id, ErrNotFound)
	}

	delete(s.records, id)
	for i, existing := range s.order {
		if existing == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return nil
}
