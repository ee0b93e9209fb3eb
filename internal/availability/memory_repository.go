package availability

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryRepository keeps availability in process memory.
type MemoryRepository struct {
	mu      sync.RWMutex
	records map[uuid.UUID]*Availability
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{records: make(map[uuid.UUID]*Availability)}
}

func (r *MemoryRepository) Get(_ context.Context, doctorID uuid.UUID) (*Availability, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	a, ok := r.records[doctorID]
	if !ok {
		return nil, ErrNotFound
	}
	return a.Clone(), nil
}

func (r *MemoryRepository) GetOrCreate(_ context.Context, doctorID uuid.UUID) (*Availability, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.getOrCreateLocked(doctorID).Clone(), nil
}

func (r *MemoryRepository) Update(_ context.Context, doctorID uuid.UUID, fn func(a *Availability) error) (*Availability, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	working := r.getOrCreateLocked(doctorID).Clone()
	if err := fn(working); err != nil {
		return nil, err
	}
	working.UpdatedAt = time.Now().UTC()
	r.records[doctorID] = working
	return working.Clone(), nil
}

func (r *MemoryRepository) getOrCreateLocked(doctorID uuid.UUID) *Availability {
	a, ok := r.records[doctorID]
	if !ok {
		a = NewDefault(doctorID)
		r.records[doctorID] = a
	}
	return a
}
