package availability

import (
	"context"

	"github.com/google/uuid"
)

// Repository persists one Availability per doctor.
type Repository interface {
	// Get returns ErrNotFound when the doctor has no record.
	Get(ctx context.Context, doctorID uuid.UUID) (*Availability, error)
	GetOrCreate(ctx context.Context, doctorID uuid.UUID) (*Availability, error)
	// Update creates the default record if needed, applies fn and stores the
	// result atomically. Nothing is written when fn fails.
	Update(ctx context.Context, doctorID uuid.UUID, fn func(a *Availability) error) (*Availability, error)
}
