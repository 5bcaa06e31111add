package slot

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrSlotNotFound    = errors.New("slot not found")
	ErrSlotUnavailable = errors.New("slot is no longer available")
)

type Repository interface {
	// Insert stores s unless a slot with the same id exists; it reports
	// whether a row was written.
	Insert(ctx context.Context, s TimeSlot) (bool, error)
	GetByID(ctx context.Context, id uuid.UUID) (*TimeSlot, error)
	// ListByDate returns slots whose date falls in [from, to), ordered by start.
	ListByDate(ctx context.Context, from, to time.Time, availableOnly bool) ([]TimeSlot, error)
	// Claim flips an available slot to booked and fails with
	// ErrSlotUnavailable if it was already taken.
	Claim(ctx context.Context, id uuid.UUID) (*TimeSlot, error)
	Release(ctx context.Context, id uuid.UUID) (*TimeSlot, error)
	AssignEmployee(ctx context.Context, id, employeeID uuid.UUID, employeeName string) (*TimeSlot, error)
	Delete(ctx context.Context, id uuid.UUID) error
}
