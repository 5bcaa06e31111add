package appointment

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/hackgods/emerald-details/internal/catalog"
	"github.com/hackgods/emerald-details/internal/geo"
	"github.com/hackgods/emerald-details/internal/slot"
	"github.com/hackgods/emerald-details/internal/user"
	"github.com/hackgods/emerald-details/internal/vehicle"
)

type Status string

const (
	StatusPending    Status = "pending"
	StatusConfirmed  Status = "confirmed"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusCancelled  Status = "cancelled"
)

var AllStatuses = []Status{StatusPending, StatusConfirmed, StatusInProgress, StatusCompleted, StatusCancelled}

func (s Status) Valid() bool {
	for _, v := range AllStatuses {
		if s == v {
			return true
		}
	}
	return false
}

// transitions lists the allowed next states. Completed and cancelled are terminal.
var transitions = map[Status][]Status{
	StatusPending:    {StatusConfirmed, StatusCancelled},
	StatusConfirmed:  {StatusInProgress, StatusCancelled},
	StatusInProgress: {StatusCompleted},
}

func (s Status) CanTransitionTo(next Status) bool {
	for _, v := range transitions[s] {
		if v == next {
			return true
		}
	}
	return false
}

func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

type PaymentStatus string

const (
	PaymentPending    PaymentStatus = "pending"
	PaymentProcessing PaymentStatus = "processing" // claimed by a charge in flight
	PaymentPaid       PaymentStatus = "paid"
	PaymentFailed     PaymentStatus = "failed"
	PaymentRefunded   PaymentStatus = "refunded"
)

func (p PaymentStatus) Valid() bool {
	switch p {
	case PaymentPending, PaymentProcessing, PaymentPaid, PaymentFailed, PaymentRefunded:
		return true
	}
	return false
}

// Appointment holds value copies of the vehicle, service, slot and location
// as they were at booking time.
type Appointment struct {
	ID              uuid.UUID              `json:"id"`
	CustomerID      uuid.UUID              `json:"customer_id"`
	CustomerName    string                 `json:"customer_name"`
	CustomerPhone   string                 `json:"customer_phone"`
	EmployeeID      *uuid.UUID             `json:"employee_id,omitempty"`
	EmployeeName    *string                `json:"employee_name,omitempty"`
	Vehicle         vehicle.Vehicle        `json:"vehicle"`
	Service         catalog.ServicePackage `json:"service"`
	TimeSlot        slot.TimeSlot          `json:"time_slot"`
	Location        geo.Location           `json:"location"`
	Status          Status                 `json:"status"`
	TotalPrice      decimal.Decimal        `json:"total_price"`
	PaymentStatus   PaymentStatus          `json:"payment_status"`
	PaymentIntentID *string                `json:"payment_intent_id,omitempty"`
	Notes           *string                `json:"notes,omitempty"`
	CreatedAt       time.Time              `json:"created_at"`
	UpdatedAt       time.Time              `json:"updated_at"`
}

func (a Appointment) CanBeCancelled() bool {
	return a.Status.CanTransitionTo(StatusCancelled)
}

// IsUpcoming reports whether the booked slot starts after now and the
// appointment is still live.
func (a Appointment) IsUpcoming(now time.Time) bool {
	return a.TimeSlot.StartTime.After(now) && !a.Status.Terminal()
}

func (a Appointment) FormattedPrice() string {
	return "$" + a.TotalPrice.StringFixed(2)
}

type EventLog struct {
	ID            int64
	EventType     string
	AppointmentID *uuid.UUID
	Payload       []byte
	CreatedAt     time.Time
}

// Filter narrows List. From and To bound the slot start time, [From, To).
// Limit <= 0 means no limit.
type Filter struct {
	CustomerID    *uuid.UUID
	EmployeeID    *uuid.UUID
	Status        *Status
	PaymentStatus *PaymentStatus
	From          *time.Time
	To            *time.Time
	Limit         int
	Offset        int
}

// Revenue sums paid appointments by creation time.
type Revenue struct {
	Total     decimal.Decimal `json:"total"`
	ThisMonth decimal.Decimal `json:"this_month"`
	ThisWeek  decimal.Decimal `json:"this_week"`
	PaidCount int             `json:"paid_count"`
}

// Actor is the caller changing or reading an appointment.
type Actor struct {
	ID   uuid.UUID
	Role user.Role
}
