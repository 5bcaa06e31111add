package api

import (
	"errors"
	"net/http"

	"github.com/hackgods/emerald-details/internal/appointment"
	"github.com/hackgods/emerald-details/internal/auth"
	"github.com/hackgods/emerald-details/internal/booking"
	"github.com/hackgods/emerald-details/internal/catalog"
	"github.com/hackgods/emerald-details/internal/geo"
	"github.com/hackgods/emerald-details/internal/messaging"
	"github.com/hackgods/emerald-details/internal/payment"
	redisclient "github.com/hackgods/emerald-details/internal/redis"
	"github.com/hackgods/emerald-details/internal/slot"
	"github.com/hackgods/emerald-details/internal/user"
	"github.com/hackgods/emerald-details/internal/vehicle"
)

func handleAuthError(w http.ResponseWriter, r *http.Request, err error) {
	var verr *auth.ValidationError
	switch {
	case errors.As(err, &verr):
		writeError(w, http.StatusBadRequest, "invalid_"+verr.Field, verr.Error())
	case errors.Is(err, auth.ErrInvalidCredentials):
		writeError(w, http.StatusUnauthorized, "invalid_credentials", err.Error())
	case errors.Is(err, auth.ErrInvalidToken),
		errors.Is(err, auth.ErrWrongPurpose):
		writeError(w, http.StatusBadRequest, "invalid_token", err.Error())
	case errors.Is(err, user.ErrEmailTaken):
		writeError(w, http.StatusConflict, "email_taken", err.Error())
	case errors.Is(err, user.ErrUserNotFound):
		writeError(w, http.StatusNotFound, "user_not_found", err.Error())
	default:
		internalError(w, r, err)
	}
}

func handleUserError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, user.ErrUserNotFound):
		writeError(w, http.StatusNotFound, "user_not_found", err.Error())
	case errors.Is(err, user.ErrNotAnEmployee):
		writeError(w, http.StatusUnprocessableEntity, "not_an_employee", err.Error())
	case errors.Is(err, user.ErrCannotDeleteMe):
		writeError(w, http.StatusConflict, "cannot_delete_self", err.Error())
	case errors.Is(err, user.ErrInvalidProfile):
		writeError(w, http.StatusBadRequest, "invalid_profile", err.Error())
	default:
		internalError(w, r, err)
	}
}

func handleVehicleError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, vehicle.ErrVehicleNotFound):
		writeError(w, http.StatusNotFound, "vehicle_not_found", err.Error())
	case errors.Is(err, vehicle.ErrNotOwner):
		writeError(w, http.StatusForbidden, "not_vehicle_owner", err.Error())
	case errors.Is(err, vehicle.ErrMakeRequired),
		errors.Is(err, vehicle.ErrModelRequired),
		errors.Is(err, vehicle.ErrInvalidYear),
		errors.Is(err, vehicle.ErrInvalidSize):
		writeError(w, http.StatusBadRequest, "invalid_vehicle", err.Error())
	default:
		internalError(w, r, err)
	}
}

func handleCatalogError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, catalog.ErrServiceNotFound):
		writeError(w, http.StatusNotFound, "service_not_found", err.Error())
	case errors.Is(err, catalog.ErrDuplicateService):
		writeError(w, http.StatusConflict, "duplicate_service", err.Error())
	case errors.Is(err, catalog.ErrNameRequired),
		errors.Is(err, catalog.ErrNegativePrice),
		errors.Is(err, catalog.ErrInvalidDuration):
		writeError(w, http.StatusBadRequest, "invalid_service", err.Error())
	default:
		internalError(w, r, err)
	}
}

func handleSlotError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, slot.ErrSlotNotFound):
		writeError(w, http.StatusNotFound, "slot_not_found", err.Error())
	case errors.Is(err, slot.ErrSlotUnavailable):
		writeError(w, http.StatusConflict, "slot_unavailable", err.Error())
	case errors.Is(err, slot.ErrInvalidRange):
		writeError(w, http.StatusBadRequest, "invalid_range", err.Error())
	case errors.Is(err, user.ErrUserNotFound),
		errors.Is(err, user.ErrNotAnEmployee):
		handleUserError(w, r, err)
	default:
		internalError(w, r, err)
	}
}

// handleBookingError covers the wizard and appointment creation.
func handleBookingError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, appointment.ErrSlotBeingBooked),
		errors.Is(err, redisclient.ErrLockNotAcquired):
		writeError(w, http.StatusConflict, "slot_being_booked", "slot is currently being booked, please retry shortly")
	case errors.Is(err, slot.ErrSlotUnavailable):
		writeError(w, http.StatusConflict, "slot_unavailable", err.Error())
	case errors.Is(err, appointment.ErrSlotInPast):
		writeError(w, http.StatusConflict, "slot_in_past", err.Error())
	case errors.Is(err, booking.ErrSlotNotOffered):
		writeError(w, http.StatusConflict, "slot_not_offered", err.Error())
	case errors.Is(err, slot.ErrSlotNotFound):
		writeError(w, http.StatusNotFound, "slot_not_found", err.Error())
	case errors.Is(err, catalog.ErrServiceNotFound):
		writeError(w, http.StatusNotFound, "service_not_found", err.Error())
	case errors.Is(err, catalog.ErrServiceNotActive):
		writeError(w, http.StatusUnprocessableEntity, "service_not_active", err.Error())
	case errors.Is(err, vehicle.ErrVehicleNotFound),
		errors.Is(err, vehicle.ErrNotOwner):
		writeError(w, http.StatusNotFound, "vehicle_not_found", err.Error())
	case errors.Is(err, geo.ErrNoResults):
		writeError(w, http.StatusUnprocessableEntity, "address_not_found", err.Error())
	case errors.Is(err, geo.ErrProviderError):
		writeError(w, http.StatusBadGateway, "geocoder_unavailable", err.Error())
	case errors.Is(err, booking.ErrIncompleteStep),
		errors.Is(err, booking.ErrDateRequired),
		errors.Is(err, booking.ErrVehicleRequired),
		errors.Is(err, geo.ErrAddressRequired),
		errors.Is(err, geo.ErrInvalidCoordinates),
		errors.Is(err, vehicle.ErrMakeRequired),
		errors.Is(err, vehicle.ErrModelRequired),
		errors.Is(err, vehicle.ErrInvalidYear),
		errors.Is(err, vehicle.ErrInvalidSize):
		writeError(w, http.StatusBadRequest, "invalid_booking", err.Error())
	default:
		internalError(w, r, err)
	}
}

func handleAppointmentError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, appointment.ErrAppointmentNotFound):
		writeError(w, http.StatusNotFound, "appointment_not_found", err.Error())
	case errors.Is(err, appointment.ErrForbidden):
		writeError(w, http.StatusForbidden, "forbidden", err.Error())
	case errors.Is(err, appointment.ErrInvalidStatusTransition):
		writeError(w, http.StatusConflict, "invalid_status_transition", err.Error())
	case errors.Is(err, user.ErrUserNotFound),
		errors.Is(err, user.ErrNotAnEmployee):
		handleUserError(w, r, err)
	default:
		internalError(w, r, err)
	}
}

func handlePaymentError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, payment.ErrMethodNotFound):
		writeError(w, http.StatusNotFound, "payment_method_not_found", err.Error())
	case errors.Is(err, payment.ErrTransactionNotFound):
		writeError(w, http.StatusNotFound, "transaction_not_found", err.Error())
	case errors.Is(err, payment.ErrInvalidMethod):
		writeError(w, http.StatusBadRequest, "invalid_payment_method", err.Error())
	case errors.Is(err, payment.ErrNoPaymentMethod):
		writeError(w, http.StatusUnprocessableEntity, "no_payment_method", err.Error())
	case errors.Is(err, payment.ErrAlreadyPaid):
		writeError(w, http.StatusConflict, "already_paid", err.Error())
	case errors.Is(err, payment.ErrPaymentInProgress):
		writeError(w, http.StatusConflict, "payment_in_progress", err.Error())
	case errors.Is(err, payment.ErrAppointmentCanceled):
		writeError(w, http.StatusConflict, "appointment_cancelled", err.Error())
	case errors.Is(err, payment.ErrNotRefundable):
		writeError(w, http.StatusConflict, "not_refundable", err.Error())
	case errors.Is(err, payment.ErrPaymentDeclined):
		writeError(w, http.StatusPaymentRequired, "payment_declined", err.Error())
	case errors.Is(err, payment.ErrGatewayDisabled):
		writeError(w, http.StatusServiceUnavailable, "payments_unavailable", err.Error())
	case errors.Is(err, appointment.ErrAppointmentNotFound),
		errors.Is(err, appointment.ErrForbidden):
		handleAppointmentError(w, r, err)
	default:
		internalError(w, r, err)
	}
}

func handleMessagingError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, messaging.ErrConversationNotFound):
		writeError(w, http.StatusNotFound, "conversation_not_found", err.Error())
	case errors.Is(err, messaging.ErrNotParticipant):
		writeError(w, http.StatusForbidden, "not_participant", err.Error())
	case errors.Is(err, messaging.ErrSelfConversation),
		errors.Is(err, messaging.ErrEmptyMessage):
		writeError(w, http.StatusBadRequest, "invalid_message", err.Error())
	case errors.Is(err, user.ErrUserNotFound):
		writeError(w, http.StatusNotFound, "user_not_found", err.Error())
	default:
		internalError(w, r, err)
	}
}

func handleGeoError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, geo.ErrEmptyQuery),
		errors.Is(err, geo.ErrInvalidCoordinates):
		writeError(w, http.StatusBadRequest, "invalid_query", err.Error())
	case errors.Is(err, geo.ErrNoResults):
		writeError(w, http.StatusNotFound, "address_not_found", err.Error())
	case errors.Is(err, geo.ErrProviderError):
		writeError(w, http.StatusBadGateway, "geocoder_unavailable", err.Error())
	default:
		internalError(w, r, err)
	}
}
