package appointment

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/hackgods/emerald-details/internal/slot"
)

var (
	ErrAppointmentNotFound = errors.New("appointment not found")
	ErrPaymentNotOpen      = errors.New("appointment payment is not open")
	// ErrSlotUnavailable is slot.ErrSlotUnavailable so callers can match either.
	ErrSlotUnavailable = slot.ErrSlotUnavailable
)

// Repository contains all DB interactions needed by the service.
type Repository interface {
	// Create claims a.TimeSlot and stores a in one transaction, adding
	// a.Vehicle to the customer's garage when saveVehicle is set. It fails
	// with ErrSlotUnavailable when the slot is already taken, and nothing is
	// written.
	Create(ctx context.Context, a *Appointment, saveVehicle bool) (*Appointment, error)
	GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error)
	List(ctx context.Context, f Filter) ([]Appointment, error)
	CountByStatus(ctx context.Context) (map[Status]int, error)

	// UpdateStatus is a compare-and-set on status; ErrAppointmentNotFound
	// means the row is missing or no longer in from.
	UpdateStatus(ctx context.Context, id uuid.UUID, from, to Status) (*Appointment, error)
	// AssignEmployee sets the detailer and moves a pending or confirmed
	// appointment to confirmed.
	AssignEmployee(ctx context.Context, id, employeeID uuid.UUID, employeeName string) (*Appointment, error)
	// ClaimPayment moves a pending or failed payment of a live appointment
	// to processing. ErrPaymentNotOpen means another charge holds it or it
	// is already settled.
	ClaimPayment(ctx context.Context, id uuid.UUID) (*Appointment, error)
	UpdatePayment(ctx context.Context, id uuid.UUID, status PaymentStatus, intentID *string) (*Appointment, error)
	ReleaseSlot(ctx context.Context, slotID uuid.UUID) error
	Delete(ctx context.Context, id uuid.UUID) error

	InsertEvent(ctx context.Context, ev EventLog) error
}
