package api

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/emerald-details/internal/appointment"
	"github.com/hackgods/emerald-details/internal/booking"
)

func actor(r *http.Request) appointment.Actor {
	p := principal(r)
	return appointment.Actor{ID: p.UserID, Role: p.Role}
}

// bookingCustomer loads the signed-in customer's contact details, which are
// copied onto the appointment.
func bookingCustomer(ctx context.Context, users UserService, id uuid.UUID) (booking.Customer, error) {
	u, err := users.Get(ctx, id)
	if err != nil {
		return booking.Customer{}, err
	}
	return booking.Customer{ID: u.ID, Name: u.Name, Phone: u.Phone}, nil
}

func toSelection(w http.ResponseWriter, req BookingRequest, loc *time.Location) (booking.Selection, bool) {
	var sel booking.Selection

	serviceID, err := uuid.Parse(req.ServiceID)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_service_id", "service_id must be a valid UUID")
		return sel, false
	}
	slotID, err := uuid.Parse(req.SlotID)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_slot_id", "slot_id must be a valid UUID")
		return sel, false
	}
	vehicleID, err := optionalUUID(req.VehicleID)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_vehicle_id", "vehicle_id must be a valid UUID")
		return sel, false
	}
	date, err := parseDate(req.Date, loc)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_date", "date must be YYYY-MM-DD")
		return sel, false
	}

	sel = booking.Selection{
		ServiceID: serviceID,
		VehicleID: vehicleID,
		Date:      date,
		SlotID:    slotID,
		Location:  req.Location,
		Address:   req.Address,
		Notes:     req.Notes,
	}
	if req.NewVehicle != nil {
		v := req.NewVehicle.toVehicle()
		sel.NewVehicle = &v
	}
	return sel, true
}

func quoteBookingHandler(flow BookingFlow, users UserService, slots SlotService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req BookingRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		sel, ok := toSelection(w, req, slots.Location())
		if !ok {
			return
		}

		customer, err := bookingCustomer(r.Context(), users, principal(r).UserID)
		if err != nil {
			handleUserError(w, r, err)
			return
		}

		quote, err := flow.Quote(r.Context(), customer, sel)
		if err != nil {
			handleBookingError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, quote)
	}
}

func createBookingHandler(flow BookingFlow, users UserService, slots SlotService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req BookingRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		sel, ok := toSelection(w, req, slots.Location())
		if !ok {
			return
		}

		customer, err := bookingCustomer(r.Context(), users, principal(r).UserID)
		if err != nil {
			handleUserError(w, r, err)
			return
		}

		appt, err := flow.Apply(r.Context(), customer, sel)
		if err != nil {
			handleBookingError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, toAppointmentResponse(*appt))
	}
}

func getAppointmentHandler(svc AppointmentService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := uuidParam(w, r, "id")
		if !ok {
			return
		}

		appt, err := svc.Get(r.Context(), id, actor(r))
		if err != nil {
			handleAppointmentError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, toAppointmentResponse(*appt))
	}
}

func myAppointmentsHandler(svc AppointmentService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		list, err := svc.ListForCustomer(r.Context(), principal(r).UserID, queryInt(r, "limit", 50), queryInt(r, "offset", 0))
		if err != nil {
			handleAppointmentError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, toAppointmentResponses(list))
	}
}

type transitionFunc func(ctx context.Context, id uuid.UUID, actor appointment.Actor) (*appointment.Appointment, error)

// transitionHandler serves the start, complete and cancel endpoints, which
// differ only in the service call.
func transitionHandler(fn transitionFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := uuidParam(w, r, "id")
		if !ok {
			return
		}

		appt, err := fn(r.Context(), id, actor(r))
		if err != nil {
			handleAppointmentError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, toAppointmentResponse(*appt))
	}
}

func startAppointmentHandler(svc AppointmentService) http.HandlerFunc {
	return transitionHandler(svc.Start)
}

func completeAppointmentHandler(svc AppointmentService) http.HandlerFunc {
	return transitionHandler(svc.Complete)
}

func cancelAppointmentHandler(svc AppointmentService) http.HandlerFunc {
	return transitionHandler(svc.Cancel)
}

func scheduleHandler(svc AppointmentService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		list, err := svc.Schedule(r.Context(), principal(r).UserID)
		if err != nil {
			handleAppointmentError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, toAppointmentResponses(list))
	}
}

func todayScheduleHandler(svc AppointmentService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := principal(r).UserID
		list, err := svc.Today(r.Context(), &id)
		if err != nil {
			handleAppointmentError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, toAppointmentResponses(list))
	}
}

func payAppointmentHandler(svc PaymentService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := uuidParam(w, r, "id")
		if !ok {
			return
		}

		// The body is optional; without one the default method is charged.
		var req PayRequest
		if r.ContentLength > 0 && !decodeJSON(w, r, &req) {
			return
		}
		methodID, err := optionalUUID(req.PaymentMethodID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_payment_method_id", "payment_method_id must be a valid UUID")
			return
		}

		txn, err := svc.Pay(r.Context(), actor(r), id, methodID)
		if err != nil {
			handlePaymentError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, toTransactionResponse(*txn))
	}
}
