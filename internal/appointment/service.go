package appointment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/hackgods/emerald-details/internal/catalog"
	"github.com/hackgods/emerald-details/internal/config"
	"github.com/hackgods/emerald-details/internal/geo"
	redisclient "github.com/hackgods/emerald-details/internal/redis"
	"github.com/hackgods/emerald-details/internal/slot"
	"github.com/hackgods/emerald-details/internal/user"
	"github.com/hackgods/emerald-details/internal/vehicle"
)

const (
	EventAppointmentCreated   = "APPOINTMENT_CREATED"
	EventAppointmentConfirmed = "APPOINTMENT_CONFIRMED"
	EventAppointmentStarted   = "APPOINTMENT_STARTED"
	EventAppointmentCompleted = "APPOINTMENT_COMPLETED"
	EventAppointmentCancelled = "APPOINTMENT_CANCELLED"
	EventPaymentUpdated       = "APPOINTMENT_PAYMENT_UPDATED"
)

var (
	ErrSlotBeingBooked         = errors.New("slot is currently being booked, please retry")
	ErrSlotInPast              = errors.New("slot has already started")
	ErrInvalidStatusTransition = errors.New("invalid status transition")
	ErrForbidden               = errors.New("not allowed to act on this appointment")
	ErrCustomerRequired        = errors.New("customer is required")
)

// Publisher carries appointment events to other processes (the notifier).
type Publisher interface {
	Publish(ctx context.Context, eventType, key string, payload any) error
}

type noopPublisher struct{}

func (noopPublisher) Publish(context.Context, string, string, any) error { return nil }

type Service struct {
	repo      Repository
	locker    redisclient.Locker
	publisher Publisher
	cfg       config.Config
	logger    *slog.Logger
	now       func() time.Time
}

func NewService(repo Repository, locker redisclient.Locker, publisher Publisher, cfg config.Config, logger *slog.Logger) *Service {
	if locker == nil {
		locker = redisclient.NoopLocker{}
	}
	if publisher == nil {
		publisher = noopPublisher{}
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	return &Service{
		repo:      repo,
		locker:    locker,
		publisher: publisher,
		cfg:       cfg,
		logger:    logger,
		now:       time.Now,
	}
}

// Draft is everything the booking flow collected before confirmation.
type Draft struct {
	CustomerID    uuid.UUID
	CustomerName  string
	CustomerPhone string
	Vehicle       vehicle.Vehicle
	Service       catalog.ServicePackage
	Slot          slot.TimeSlot
	Location      geo.Location
	Notes         *string
	// SaveVehicle stores Vehicle in the customer's garage in the same
	// transaction as the appointment.
	SaveVehicle bool
}

// Book claims the draft's slot and creates a pending appointment priced at
// Service.PriceForVehicle(Vehicle). The claim and the insert commit together,
// so of several concurrent bookings for one slot at most one succeeds.
func (s *Service) Book(ctx context.Context, d Draft) (*Appointment, error) {
	if d.CustomerID == uuid.Nil {
		return nil, ErrCustomerRequired
	}
	if !d.Service.Active {
		return nil, catalog.ErrServiceNotActive
	}
	if err := d.Vehicle.Validate(); err != nil {
		return nil, err
	}
	if err := d.Location.Validate(); err != nil {
		return nil, err
	}
	if !d.Slot.Available {
		return nil, ErrSlotUnavailable
	}
	if !d.Slot.StartTime.After(s.now()) {
		return nil, ErrSlotInPast
	}
	if d.Notes != nil {
		if n := strings.TrimSpace(*d.Notes); n == "" {
			d.Notes = nil
		} else {
			d.Notes = &n
		}
	}

	if d.SaveVehicle {
		d.Vehicle.OwnerID = d.CustomerID
		if d.Vehicle.ID == uuid.Nil {
			d.Vehicle.ID = uuid.New()
		}
	}

	snapshot := d.Slot
	snapshot.Available = false

	appt := &Appointment{
		ID:            uuid.New(),
		CustomerID:    d.CustomerID,
		CustomerName:  d.CustomerName,
		CustomerPhone: d.CustomerPhone,
		Vehicle:       d.Vehicle,
		Service:       d.Service,
		TimeSlot:      snapshot,
		Location:      d.Location,
		Status:        StatusPending,
		TotalPrice:    d.Service.PriceForVehicle(d.Vehicle),
		PaymentStatus: PaymentPending,
		Notes:         d.Notes,
	}

	var created *Appointment
	err := s.locker.WithSlotLock(ctx, d.Slot.ID, func(lockCtx context.Context) error {
		var err error
		created, err = s.repo.Create(lockCtx, appt, d.SaveVehicle)
		return err
	})
	if err != nil {
		if errors.Is(err, redisclient.ErrLockNotAcquired) {
			return nil, ErrSlotBeingBooked
		}
		if errors.Is(err, ErrSlotUnavailable) {
			return nil, ErrSlotUnavailable
		}
		return nil, fmt.Errorf("create appointment: %w", err)
	}

	s.logEvent(ctx, created, EventAppointmentCreated)
	return created, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID, actor Actor) (*Appointment, error) {
	appt, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !canView(appt, actor) {
		return nil, ErrForbidden
	}
	return appt, nil
}

// AssignEmployee confirms a pending appointment with a detailer, or hands a
// confirmed one to someone else.
func (s *Service) AssignEmployee(ctx context.Context, id uuid.UUID, employee slot.Employee) (*Appointment, error) {
	current, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if current.Status != StatusPending && current.Status != StatusConfirmed {
		return nil, ErrInvalidStatusTransition
	}

	updated, err := s.repo.AssignEmployee(ctx, id, employee.ID, employee.Name)
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			// status moved on between the read and the update
			return nil, ErrInvalidStatusTransition
		}
		return nil, fmt.Errorf("assign employee: %w", err)
	}

	s.logEvent(ctx, updated, EventAppointmentConfirmed)
	return updated, nil
}

// Start moves a confirmed appointment to in_progress. Only the assigned
// employee or an admin may start it.
func (s *Service) Start(ctx context.Context, id uuid.UUID, actor Actor) (*Appointment, error) {
	return s.transition(ctx, id, actor, StatusInProgress, EventAppointmentStarted, canWork)
}

func (s *Service) Complete(ctx context.Context, id uuid.UUID, actor Actor) (*Appointment, error) {
	return s.transition(ctx, id, actor, StatusCompleted, EventAppointmentCompleted, canWork)
}

// Cancel is allowed from pending or confirmed. The slot stays booked unless
// SlotReleaseOnCancel is set.
func (s *Service) Cancel(ctx context.Context, id uuid.UUID, actor Actor) (*Appointment, error) {
	updated, err := s.transition(ctx, id, actor, StatusCancelled, EventAppointmentCancelled, canView)
	if err != nil {
		return nil, err
	}

	if s.cfg.SlotReleaseOnCancel {
		if err := s.repo.ReleaseSlot(ctx, updated.TimeSlot.ID); err != nil {
			return updated, fmt.Errorf("appointment cancelled but slot not released: %w", err)
		}
	}
	return updated, nil
}

func (s *Service) transition(ctx context.Context, id uuid.UUID, actor Actor, to Status, event string, allowed func(*Appointment, Actor) bool) (*Appointment, error) {
	current, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !allowed(current, actor) {
		return nil, ErrForbidden
	}
	if !current.Status.CanTransitionTo(to) {
		return nil, ErrInvalidStatusTransition
	}

	updated, err := s.repo.UpdateStatus(ctx, id, current.Status, to)
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			return nil, ErrInvalidStatusTransition
		}
		return nil, fmt.Errorf("update appointment status: %w", err)
	}

	s.logEvent(ctx, updated, event)
	return updated, nil
}

// ClaimPayment reserves the appointment for a single charge. Only one caller
// wins; the rest get ErrPaymentNotOpen until the status is settled.
func (s *Service) ClaimPayment(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return s.repo.ClaimPayment(ctx, id)
}

// UpdatePaymentStatus records the gateway outcome. intentID is kept when nil.
func (s *Service) UpdatePaymentStatus(ctx context.Context, id uuid.UUID, status PaymentStatus, intentID *string) (*Appointment, error) {
	if !status.Valid() {
		return nil, fmt.Errorf("invalid payment status %q", status)
	}
	updated, err := s.repo.UpdatePayment(ctx, id, status, intentID)
	if err != nil {
		return nil, err
	}
	s.logEvent(ctx, updated, EventPaymentUpdated)
	return updated, nil
}

func (s *Service) List(ctx context.Context, f Filter) ([]Appointment, error) {
	if f.Limit <= 0 {
		f.Limit = 50 // default
	}
	if f.Limit > 200 {
		f.Limit = 200 // max
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	appts, err := s.repo.List(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("list appointments: %w", err)
	}
	return appts, nil
}

func (s *Service) ListForCustomer(ctx context.Context, customerID uuid.UUID, limit, offset int) ([]Appointment, error) {
	return s.List(ctx, Filter{CustomerID: &customerID, Limit: limit, Offset: offset})
}

// Schedule lists an employee's appointments whose slot starts from the
// beginning of today on.
func (s *Service) Schedule(ctx context.Context, employeeID uuid.UUID) ([]Appointment, error) {
	from := slot.StartOfDay(s.now(), s.cfg.Location)
	return s.List(ctx, Filter{EmployeeID: &employeeID, From: &from})
}

// Today lists the appointments whose slot falls on the current local day,
// optionally for one employee.
func (s *Service) Today(ctx context.Context, employeeID *uuid.UUID) ([]Appointment, error) {
	from := slot.StartOfDay(s.now(), s.cfg.Location)
	to := from.AddDate(0, 0, 1)
	return s.List(ctx, Filter{EmployeeID: employeeID, From: &from, To: &to})
}

func (s *Service) CountByStatus(ctx context.Context) (map[Status]int, error) {
	return s.repo.CountByStatus(ctx)
}

func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	return s.repo.Delete(ctx, id)
}

// Revenue scans every paid appointment and buckets TotalPrice by CreatedAt
// into this calendar month and this week (starting Sunday), in the business
// time zone.
func (s *Service) Revenue(ctx context.Context) (*Revenue, error) {
	paid := PaymentPaid
	appts, err := s.repo.List(ctx, Filter{PaymentStatus: &paid})
	if err != nil {
		return nil, fmt.Errorf("load paid appointments: %w", err)
	}

	now := s.now().In(s.cfg.Location)
	today := slot.StartOfDay(now, s.cfg.Location)
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, s.cfg.Location)
	weekStart := today.AddDate(0, 0, -int(today.Weekday()))

	rev := &Revenue{Total: decimal.Zero, ThisMonth: decimal.Zero, ThisWeek: decimal.Zero}
	for _, a := range appts {
		rev.Total = rev.Total.Add(a.TotalPrice)
		rev.PaidCount++
		if !a.CreatedAt.Before(monthStart) {
			rev.ThisMonth = rev.ThisMonth.Add(a.TotalPrice)
		}
		if !a.CreatedAt.Before(weekStart) {
			rev.ThisWeek = rev.ThisWeek.Add(a.TotalPrice)
		}
	}
	return rev, nil
}

func canView(a *Appointment, actor Actor) bool {
	switch actor.Role {
	case user.RoleAdmin:
		return true
	case user.RoleCustomer:
		return a.CustomerID == actor.ID
	case user.RoleEmployee:
		return a.EmployeeID != nil && *a.EmployeeID == actor.ID
	}
	return false
}

func canWork(a *Appointment, actor Actor) bool {
	if actor.Role == user.RoleCustomer {
		return false
	}
	return canView(a, actor)
}

// logEvent records the event in event_logs and hands it to the publisher.
// Failures are logged; the state change has already committed.
func (s *Service) logEvent(ctx context.Context, appt *Appointment, eventType string) {
	data, err := json.Marshal(appt)
	if err != nil {
		s.logger.Error("marshal event payload", "event_type", eventType, "err", err)
		data = nil
	}

	apptID := appt.ID
	ev := EventLog{
		EventType:     eventType,
		AppointmentID: &apptID,
		Payload:       data,
		CreatedAt:     s.now(),
	}
	if err := s.repo.InsertEvent(ctx, ev); err != nil {
		s.logger.Error("insert event log", "event_type", eventType, "appointment_id", appt.ID, "err", err)
	}

	if err := s.publisher.Publish(ctx, eventType, appt.ID.String(), appt); err != nil {
		s.logger.Warn("publish event", "event_type", eventType, "appointment_id", appt.ID, "err", err)
	}
}
