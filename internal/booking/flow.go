package booking

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/hackgods/emerald-details/internal/appointment"
	"github.com/hackgods/emerald-details/internal/catalog"
	"github.com/hackgods/emerald-details/internal/geo"
	"github.com/hackgods/emerald-details/internal/slot"
	"github.com/hackgods/emerald-details/internal/vehicle"
)

// Selection is a whole wizard run submitted at once, as the HTTP API does.
// Exactly one of VehicleID and NewVehicle, and one of Location and Address,
// is expected.
type Selection struct {
	ServiceID  uuid.UUID
	VehicleID  *uuid.UUID
	NewVehicle *vehicle.Vehicle
	Date       time.Time
	SlotID     uuid.UUID
	Location   *geo.Location
	Address    string
	Notes      string
}

// StepError reports which step a Selection failed at.
type StepError struct {
	Step Step
	Err  error
}

func (e *StepError) Error() string { return fmt.Sprintf("%s: %v", e.Step, e.Err) }

func (e *StepError) Unwrap() error { return e.Err }

type Quote struct {
	Service        catalog.ServicePackage `json:"service"`
	Vehicle        vehicle.Vehicle        `json:"vehicle"`
	Slot           slot.TimeSlot          `json:"time_slot"`
	Location       geo.Location           `json:"location"`
	TotalPrice     decimal.Decimal        `json:"total_price"`
	FormattedPrice string                 `json:"formatted_price"`
}

// Quote walks sel through every step up to review without booking.
func (f *Flow) Quote(ctx context.Context, customer Customer, sel Selection) (*Quote, error) {
	w := f.Start(customer)
	if err := w.walk(ctx, sel); err != nil {
		return nil, err
	}
	price := w.Price()
	return &Quote{
		Service:        *w.service,
		Vehicle:        *w.vehicle,
		Slot:           *w.slot,
		Location:       *w.location,
		TotalPrice:     price,
		FormattedPrice: "$" + price.StringFixed(2),
	}, nil
}

// Apply walks sel through every step and confirms the booking.
func (f *Flow) Apply(ctx context.Context, customer Customer, sel Selection) (*appointment.Appointment, error) {
	w := f.Start(customer)
	if err := w.walk(ctx, sel); err != nil {
		return nil, err
	}
	appt, err := w.Confirm(ctx)
	if err != nil {
		return nil, &StepError{Step: Reviewing, Err: err}
	}
	return appt, nil
}

// walk applies sel step by step. Nothing is written; a new vehicle is saved
// by Confirm together with the appointment.
func (w *Wizard) walk(ctx context.Context, sel Selection) error {
	fail := func(err error) error { return &StepError{Step: w.step, Err: err} }

	if err := w.SelectService(ctx, sel.ServiceID); err != nil {
		return fail(err)
	}
	if err := w.Next(); err != nil {
		return fail(err)
	}

	switch {
	case sel.VehicleID != nil:
		if err := w.SelectVehicle(ctx, *sel.VehicleID); err != nil {
			return fail(err)
		}
	case sel.NewVehicle != nil:
		if err := w.AddVehicle(*sel.NewVehicle); err != nil {
			return fail(err)
		}
	default:
		return fail(ErrVehicleRequired)
	}
	if err := w.Next(); err != nil {
		return fail(err)
	}

	if _, err := w.SelectDate(ctx, sel.Date); err != nil {
		return fail(err)
	}
	if err := w.SelectSlot(sel.SlotID); err != nil {
		return fail(err)
	}
	if err := w.Next(); err != nil {
		return fail(err)
	}

	if sel.Location != nil {
		if err := w.SetLocation(*sel.Location); err != nil {
			return fail(err)
		}
	} else if _, err := w.ResolveAddress(ctx, sel.Address); err != nil {
		return fail(err)
	}
	if err := w.Next(); err != nil {
		return fail(err)
	}

	w.SetNotes(sel.Notes)
	return nil
}
