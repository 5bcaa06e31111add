package booking

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/hackgods/emerald-details/internal/appointment"
	"github.com/hackgods/emerald-details/internal/catalog"
	"github.com/hackgods/emerald-details/internal/geo"
	"github.com/hackgods/emerald-details/internal/slot"
	"github.com/hackgods/emerald-details/internal/vehicle"
)

type Step int

const (
	SelectingService Step = iota
	SelectingVehicle
	SelectingDateTime
	SelectingLocation
	Reviewing
	Confirmed
)

func (s Step) String() string {
	switch s {
	case SelectingService:
		return "selecting_service"
	case SelectingVehicle:
		return "selecting_vehicle"
	case SelectingDateTime:
		return "selecting_date_time"
	case SelectingLocation:
		return "selecting_location"
	case Reviewing:
		return "reviewing"
	case Confirmed:
		return "confirmed"
	}
	return fmt.Sprintf("step(%d)", int(s))
}

var (
	ErrIncompleteStep   = errors.New("current step is not complete")
	ErrAtFirstStep      = errors.New("already at the first step")
	ErrAlreadyConfirmed = errors.New("booking is already confirmed")
	ErrNotReviewing     = errors.New("booking can only be confirmed from the review step")
	ErrSlotNotOffered   = errors.New("slot is not among the available slots for the chosen date")
	ErrDateRequired     = errors.New("date is required")
	ErrVehicleRequired  = errors.New("vehicle is required")
)

// Catalog, Garage, SlotFinder and Booker are the slices of the domain
// services the wizard reads from.
type Catalog interface {
	GetActive(ctx context.Context, id uuid.UUID) (*catalog.ServicePackage, error)
}

type Garage interface {
	Owned(ctx context.Context, ownerID, id uuid.UUID) (*vehicle.Vehicle, error)
}

type SlotFinder interface {
	AvailableOn(ctx context.Context, date time.Time) ([]slot.TimeSlot, error)
}

type Booker interface {
	Book(ctx context.Context, d appointment.Draft) (*appointment.Appointment, error)
}

type Customer struct {
	ID    uuid.UUID
	Name  string
	Phone string
}

// Flow builds wizards wired to the domain services.
type Flow struct {
	catalog  Catalog
	garage   Garage
	slots    SlotFinder
	geocoder geo.Geocoder
	booker   Booker
}

func NewFlow(c Catalog, g Garage, slots SlotFinder, geocoder geo.Geocoder, booker Booker) *Flow {
	return &Flow{catalog: c, garage: g, slots: slots, geocoder: geocoder, booker: booker}
}

// Start opens a wizard for customer. Nothing is persisted until Confirm.
func (f *Flow) Start(customer Customer) *Wizard {
	return &Wizard{flow: f, customer: customer, step: SelectingService}
}

// Wizard walks service → vehicle → date/time → location → review. It holds
// one customer's selections for a single booking attempt.
type Wizard struct {
	flow     *Flow
	customer Customer
	step     Step

	service        *catalog.ServicePackage
	vehicle        *vehicle.Vehicle
	newVehicle     bool
	date           time.Time
	availableSlots []slot.TimeSlot
	slot           *slot.TimeSlot
	location       *geo.Location
	notes          *string

	appointment *appointment.Appointment
}

func (w *Wizard) Step() Step { return w.step }

func (w *Wizard) Service() *catalog.ServicePackage { return w.service }

func (w *Wizard) Vehicle() *vehicle.Vehicle { return w.vehicle }

func (w *Wizard) Slot() *slot.TimeSlot { return w.slot }

func (w *Wizard) Location() *geo.Location { return w.location }

func (w *Wizard) AvailableSlots() []slot.TimeSlot { return w.availableSlots }

func (w *Wizard) Appointment() *appointment.Appointment { return w.appointment }

// CanAdvance is the current step's completion predicate.
func (w *Wizard) CanAdvance() bool {
	switch w.step {
	case SelectingService:
		return w.service != nil
	case SelectingVehicle:
		return w.vehicle != nil
	case SelectingDateTime:
		return w.slot != nil
	case SelectingLocation:
		return w.location != nil
	case Reviewing:
		return true
	}
	return false
}

// Next moves forward one step. From Reviewing use Confirm instead.
func (w *Wizard) Next() error {
	switch {
	case w.step == Confirmed:
		return ErrAlreadyConfirmed
	case w.step == Reviewing:
		return ErrNotReviewing
	case !w.CanAdvance():
		return fmt.Errorf("%w: %s", ErrIncompleteStep, w.step)
	}
	w.step++
	return nil
}

// Back keeps every selection made so far.
func (w *Wizard) Back() error {
	switch w.step {
	case SelectingService:
		return ErrAtFirstStep
	case Confirmed:
		return ErrAlreadyConfirmed
	}
	w.step--
	return nil
}

func (w *Wizard) SelectService(ctx context.Context, id uuid.UUID) error {
	if w.step == Confirmed {
		return ErrAlreadyConfirmed
	}
	p, err := w.flow.catalog.GetActive(ctx, id)
	if err != nil {
		return err
	}
	w.service = p
	return nil
}

func (w *Wizard) SelectVehicle(ctx context.Context, id uuid.UUID) error {
	if w.step == Confirmed {
		return ErrAlreadyConfirmed
	}
	v, err := w.flow.garage.Owned(ctx, w.customer.ID, id)
	if err != nil {
		return err
	}
	w.vehicle = v
	w.newVehicle = false
	return nil
}

// AddVehicle selects a vehicle that is not in the garage yet. It is stored
// with the appointment on Confirm, so an abandoned or failed booking leaves
// the garage untouched.
func (w *Wizard) AddVehicle(v vehicle.Vehicle) error {
	if w.step == Confirmed {
		return ErrAlreadyConfirmed
	}
	v.Make = strings.TrimSpace(v.Make)
	v.Model = strings.TrimSpace(v.Model)
	v.Color = strings.TrimSpace(v.Color)
	if err := v.Validate(); err != nil {
		return err
	}
	v.ID = uuid.New()
	v.OwnerID = w.customer.ID
	w.vehicle = &v
	w.newVehicle = true
	return nil
}

// SelectDate loads the open slots of that day and drops any earlier slot choice.
func (w *Wizard) SelectDate(ctx context.Context, date time.Time) ([]slot.TimeSlot, error) {
	if w.step == Confirmed {
		return nil, ErrAlreadyConfirmed
	}
	if date.IsZero() {
		return nil, ErrDateRequired
	}
	slots, err := w.flow.slots.AvailableOn(ctx, date)
	if err != nil {
		return nil, err
	}
	w.date = date
	w.availableSlots = slots
	w.slot = nil
	return slots, nil
}

func (w *Wizard) SelectSlot(id uuid.UUID) error {
	if w.step == Confirmed {
		return ErrAlreadyConfirmed
	}
	for i := range w.availableSlots {
		if w.availableSlots[i].ID == id {
			s := w.availableSlots[i]
			w.slot = &s
			return nil
		}
	}
	return ErrSlotNotOffered
}

func (w *Wizard) SetLocation(loc geo.Location) error {
	if w.step == Confirmed {
		return ErrAlreadyConfirmed
	}
	if err := loc.Validate(); err != nil {
		return err
	}
	w.location = &loc
	return nil
}

// ResolveAddress geocodes query and selects the best match.
func (w *Wizard) ResolveAddress(ctx context.Context, query string) (*geo.Location, error) {
	if w.step == Confirmed {
		return nil, ErrAlreadyConfirmed
	}
	matches, err := w.flow.geocoder.Geocode(ctx, query)
	if err != nil {
		return nil, err
	}
	if len(matches) == 0 {
		return nil, geo.ErrNoResults
	}
	if err := w.SetLocation(matches[0]); err != nil {
		return nil, err
	}
	return w.location, nil
}

func (w *Wizard) SetNotes(notes string) {
	notes = strings.TrimSpace(notes)
	if notes == "" {
		w.notes = nil
		return
	}
	w.notes = &notes
}

// Price is the quote shown on the review step. It is zero until both a
// service and a vehicle are chosen.
func (w *Wizard) Price() decimal.Decimal {
	if w.service == nil || w.vehicle == nil {
		return decimal.Zero
	}
	return w.service.PriceForVehicle(*w.vehicle)
}

// Confirm books the appointment. If the slot was taken in the meantime the
// wizard returns to date/time selection with the slot cleared.
func (w *Wizard) Confirm(ctx context.Context) (*appointment.Appointment, error) {
	switch w.step {
	case Confirmed:
		return nil, ErrAlreadyConfirmed
	case Reviewing:
	default:
		return nil, ErrNotReviewing
	}

	appt, err := w.flow.booker.Book(ctx, appointment.Draft{
		CustomerID:    w.customer.ID,
		CustomerName:  w.customer.Name,
		CustomerPhone: w.customer.Phone,
		Vehicle:       *w.vehicle,
		Service:       *w.service,
		Slot:          *w.slot,
		Location:      *w.location,
		Notes:         w.notes,
		SaveVehicle:   w.newVehicle,
	})
	if err != nil {
		if errors.Is(err, appointment.ErrSlotUnavailable) || errors.Is(err, appointment.ErrSlotBeingBooked) {
			w.slot = nil
			w.step = SelectingDateTime
		}
		return nil, err
	}

	w.appointment = appt
	w.newVehicle = false
	w.step = Confirmed
	return appt, nil
}
