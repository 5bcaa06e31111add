package api

import (
	"github.com/shopspring/decimal"

	"github.com/hackgods/emerald-details/internal/appointment"
	"github.com/hackgods/emerald-details/internal/catalog"
	"github.com/hackgods/emerald-details/internal/geo"
	"github.com/hackgods/emerald-details/internal/payment"
	"github.com/hackgods/emerald-details/internal/slot"
	"github.com/hackgods/emerald-details/internal/vehicle"
)

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

type SignUpRequest struct {
	Name            string `json:"name"`
	Email           string `json:"email"`
	Phone           string `json:"phone"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirm_password"`
}

type SignInRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type TokenRequest struct {
	Token string `json:"token"`
}

type PasswordResetRequest struct {
	Email string `json:"email"`
}

type PasswordResetConfirmRequest struct {
	Token           string `json:"token"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirm_password"`
}

type UpdateProfileRequest struct {
	Name            string  `json:"name"`
	Phone           string  `json:"phone"`
	ProfileImageURL *string `json:"profile_image_url"`
}

type AvailabilityRequest struct {
	Available bool `json:"is_available"`
}

type VehicleRequest struct {
	Make         string       `json:"make"`
	Model        string       `json:"model"`
	Year         int          `json:"year"`
	Color        string       `json:"color"`
	LicensePlate *string      `json:"license_plate"`
	Size         vehicle.Size `json:"size"`
	Notes        *string      `json:"notes"`
}

func (v VehicleRequest) toVehicle() vehicle.Vehicle {
	return vehicle.Vehicle{
		Make:         v.Make,
		Model:        v.Model,
		Year:         v.Year,
		Color:        v.Color,
		LicensePlate: v.LicensePlate,
		Size:         v.Size,
		Notes:        v.Notes,
	}
}

type ServiceRequest struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	BasePrice   decimal.Decimal `json:"base_price"`
	Duration    int             `json:"duration_minutes"`
	Features    []string        `json:"features"`
	Active      *bool           `json:"is_active"`
	SortOrder   int             `json:"sort_order"`
}

func (s ServiceRequest) toPackage() catalog.ServicePackage {
	active := true
	if s.Active != nil {
		active = *s.Active
	}
	return catalog.ServicePackage{
		Name:            s.Name,
		Description:     s.Description,
		BasePrice:       s.BasePrice,
		DurationMinutes: s.Duration,
		Features:        s.Features,
		Active:          active,
		SortOrder:       s.SortOrder,
	}
}

// BookingRequest carries every wizard step at once. Dates are YYYY-MM-DD in
// the business time zone.
type BookingRequest struct {
	ServiceID  string          `json:"service_id"`
	VehicleID  string          `json:"vehicle_id"`
	NewVehicle *VehicleRequest `json:"new_vehicle"`
	Date       string          `json:"date"`
	SlotID     string          `json:"slot_id"`
	Location   *geo.Location   `json:"location"`
	Address    string          `json:"address"`
	Notes      string          `json:"notes"`
}

type AssignEmployeeRequest struct {
	EmployeeID string `json:"employee_id"`
}

type GenerateSlotsRequest struct {
	From       string `json:"from"`
	To         string `json:"to"`
	EmployeeID string `json:"employee_id"`
}

type GenerateSlotsResponse struct {
	Created int `json:"created"`
}

type PayRequest struct {
	PaymentMethodID string `json:"payment_method_id"`
}

type PaymentMethodRequest struct {
	Type            payment.MethodType `json:"type"`
	CardLast4       *string            `json:"card_last4"`
	CardBrand       *string            `json:"card_brand"`
	CardExpMonth    *int               `json:"card_exp_month"`
	CardExpYear     *int               `json:"card_exp_year"`
	GatewayMethodID *string            `json:"gateway_method_id"`
	IsDefault       bool               `json:"is_default"`
}

type PaymentMethodResponse struct {
	payment.PaymentMethod
	DisplayName string `json:"display_name"`
	Expiration  string `json:"expiration,omitempty"`
}

func toPaymentMethodResponse(m payment.PaymentMethod) PaymentMethodResponse {
	return PaymentMethodResponse{PaymentMethod: m, DisplayName: m.DisplayName(), Expiration: m.ExpirationString()}
}

type TransactionResponse struct {
	payment.Transaction
	FormattedAmount string `json:"formatted_amount"`
}

func toTransactionResponse(t payment.Transaction) TransactionResponse {
	return TransactionResponse{Transaction: t, FormattedAmount: t.FormattedAmount()}
}

type AppointmentResponse struct {
	appointment.Appointment
	FormattedPrice string `json:"formatted_price"`
	CanBeCancelled bool   `json:"can_be_cancelled"`
}

func toAppointmentResponse(a appointment.Appointment) AppointmentResponse {
	return AppointmentResponse{Appointment: a, FormattedPrice: a.FormattedPrice(), CanBeCancelled: a.CanBeCancelled()}
}

func toAppointmentResponses(list []appointment.Appointment) []AppointmentResponse {
	out := make([]AppointmentResponse, 0, len(list))
	for _, a := range list {
		out = append(out, toAppointmentResponse(a))
	}
	return out
}

type SlotResponse struct {
	slot.TimeSlot
	TimeRange string `json:"time_range"`
}

type StartConversationRequest struct {
	ParticipantID string `json:"participant_id"`
	AppointmentID string `json:"appointment_id"`
}

type SendMessageRequest struct {
	Content string `json:"content"`
}

type DashboardResponse struct {
	Counts  map[appointment.Status]int `json:"counts"`
	Revenue *appointment.Revenue       `json:"revenue"`
	Today   []AppointmentResponse      `json:"today"`
}
