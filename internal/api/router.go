package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/hackgods/emerald-details/internal/appointment"
	"github.com/hackgods/emerald-details/internal/auth"
	"github.com/hackgods/emerald-details/internal/booking"
	"github.com/hackgods/emerald-details/internal/catalog"
	"github.com/hackgods/emerald-details/internal/geo"
	"github.com/hackgods/emerald-details/internal/messaging"
	"github.com/hackgods/emerald-details/internal/payment"
	"github.com/hackgods/emerald-details/internal/slot"
	"github.com/hackgods/emerald-details/internal/user"
	"github.com/hackgods/emerald-details/internal/vehicle"
)

type AuthService interface {
	Authenticator
	SignUp(ctx context.Context, req auth.SignUpRequest, role user.Role) (*auth.Session, error)
	SignIn(ctx context.Context, email, password string) (*auth.Session, error)
	SendVerificationEmail(ctx context.Context, userID uuid.UUID) error
	VerifyEmail(ctx context.Context, token string) error
	RequestPasswordReset(ctx context.Context, email string) error
	ResetPassword(ctx context.Context, token, password, confirm string) error
}

type UserService interface {
	Get(ctx context.Context, id uuid.UUID) (*user.User, error)
	UpdateProfile(ctx context.Context, id uuid.UUID, p user.Profile) (*user.User, error)
	ListEmployees(ctx context.Context) ([]user.User, error)
	ListCustomers(ctx context.Context) ([]user.User, error)
	AvailableEmployees(ctx context.Context) ([]user.User, error)
	Employee(ctx context.Context, id uuid.UUID) (*user.User, error)
	SetAvailability(ctx context.Context, id uuid.UUID, available bool) (*user.User, error)
	Delete(ctx context.Context, actorID, id uuid.UUID) error
}

type VehicleService interface {
	Add(ctx context.Context, ownerID uuid.UUID, v vehicle.Vehicle) (*vehicle.Vehicle, error)
	List(ctx context.Context, ownerID uuid.UUID) ([]vehicle.Vehicle, error)
	Remove(ctx context.Context, ownerID, id uuid.UUID) error
}

type CatalogService interface {
	ListActive(ctx context.Context) ([]catalog.ServicePackage, error)
	ListAll(ctx context.Context) ([]catalog.ServicePackage, error)
	Get(ctx context.Context, id uuid.UUID) (*catalog.ServicePackage, error)
	Create(ctx context.Context, p catalog.ServicePackage) (*catalog.ServicePackage, error)
	Update(ctx context.Context, p catalog.ServicePackage) (*catalog.ServicePackage, error)
	ToggleActive(ctx context.Context, id uuid.UUID) (*catalog.ServicePackage, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

type SlotService interface {
	Location() *time.Location
	GenerateRange(ctx context.Context, from, to time.Time, employee *slot.Employee) (int, error)
	AvailableOn(ctx context.Context, date time.Time) ([]slot.TimeSlot, error)
	ListDay(ctx context.Context, date time.Time) ([]slot.TimeSlot, error)
	Release(ctx context.Context, id uuid.UUID) (*slot.TimeSlot, error)
	AssignEmployee(ctx context.Context, id uuid.UUID, employee slot.Employee) (*slot.TimeSlot, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

type AppointmentService interface {
	Get(ctx context.Context, id uuid.UUID, actor appointment.Actor) (*appointment.Appointment, error)
	AssignEmployee(ctx context.Context, id uuid.UUID, employee slot.Employee) (*appointment.Appointment, error)
	Start(ctx context.Context, id uuid.UUID, actor appointment.Actor) (*appointment.Appointment, error)
	Complete(ctx context.Context, id uuid.UUID, actor appointment.Actor) (*appointment.Appointment, error)
	Cancel(ctx context.Context, id uuid.UUID, actor appointment.Actor) (*appointment.Appointment, error)
	List(ctx context.Context, f appointment.Filter) ([]appointment.Appointment, error)
	ListForCustomer(ctx context.Context, customerID uuid.UUID, limit, offset int) ([]appointment.Appointment, error)
	Schedule(ctx context.Context, employeeID uuid.UUID) ([]appointment.Appointment, error)
	Today(ctx context.Context, employeeID *uuid.UUID) ([]appointment.Appointment, error)
	CountByStatus(ctx context.Context) (map[appointment.Status]int, error)
	Delete(ctx context.Context, id uuid.UUID) error
	Revenue(ctx context.Context) (*appointment.Revenue, error)
}

type BookingFlow interface {
	Quote(ctx context.Context, customer booking.Customer, sel booking.Selection) (*booking.Quote, error)
	Apply(ctx context.Context, customer booking.Customer, sel booking.Selection) (*appointment.Appointment, error)
}

type MessagingService interface {
	StartConversation(ctx context.Context, me, other messaging.Participant, appointmentID *uuid.UUID) (*messaging.Conversation, error)
	Conversations(ctx context.Context, userID uuid.UUID) ([]messaging.Conversation, error)
	Send(ctx context.Context, conversationID uuid.UUID, sender messaging.Participant, content string) (*messaging.Message, error)
	Messages(ctx context.Context, conversationID, userID uuid.UUID, limit int) ([]messaging.Message, error)
	MarkRead(ctx context.Context, conversationID, readerID uuid.UUID) error
	Subscribe(ctx context.Context, conversationID, userID uuid.UUID) (*messaging.Subscription, error)
}

type PaymentService interface {
	AddMethod(ctx context.Context, customerID uuid.UUID, m payment.PaymentMethod) (*payment.PaymentMethod, error)
	Methods(ctx context.Context, customerID uuid.UUID) ([]payment.PaymentMethod, error)
	SetDefault(ctx context.Context, customerID, id uuid.UUID) error
	RemoveMethod(ctx context.Context, customerID, id uuid.UUID) error
	Transactions(ctx context.Context, customerID uuid.UUID) ([]payment.Transaction, error)
	Pay(ctx context.Context, actor appointment.Actor, appointmentID uuid.UUID, methodID *uuid.UUID) (*payment.Transaction, error)
	Refund(ctx context.Context, transactionID uuid.UUID) (*payment.Transaction, error)
}

type RouterConfig struct {
	Auth         AuthService
	Users        UserService
	Vehicles     VehicleService
	Catalog      CatalogService
	Slots        SlotService
	Appointments AppointmentService
	Booking      BookingFlow
	Messaging    MessagingService
	Payments     PaymentService
	Geocoder     geo.Geocoder
	AuthLimiter  Limiter // nil disables rate limiting
	Health       *HealthHandler
	Logger       *slog.Logger
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(cfg.Logger))
	r.Use(middleware.Recoverer)

	if cfg.Health != nil {
		r.Get("/health/live", cfg.Health.Liveness)
		r.Get("/health/ready", cfg.Health.Readiness)
	}

	// Public
	r.Route("/auth", func(r chi.Router) {
		if cfg.AuthLimiter != nil {
			r.Use(RateLimitMiddleware(cfg.AuthLimiter))
		}
		r.Post("/signup", signUpHandler(cfg.Auth))
		r.Post("/signin", signInHandler(cfg.Auth))
		r.Post("/verify-email", verifyEmailHandler(cfg.Auth))
		r.Post("/password-reset", requestPasswordResetHandler(cfg.Auth))
		r.Post("/password-reset/confirm", confirmPasswordResetHandler(cfg.Auth))
	})
	r.Get("/services", listActiveServicesHandler(cfg.Catalog))
	r.Get("/slots", availableSlotsHandler(cfg.Slots))
	r.Get("/geo/search", geoSearchHandler(cfg.Geocoder))
	r.Get("/geo/geocode", geocodeHandler(cfg.Geocoder))
	r.Get("/geo/reverse", reverseGeocodeHandler(cfg.Geocoder))

	// Any signed-in user
	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(cfg.Auth))

		r.Get("/me", getMeHandler(cfg.Users))
		r.Patch("/me", updateMeHandler(cfg.Users))
		r.Post("/me/verification-email", resendVerificationHandler(cfg.Auth))

		r.Get("/appointments/{id}", getAppointmentHandler(cfg.Appointments))
		r.Post("/appointments/{id}/cancel", cancelAppointmentHandler(cfg.Appointments))

		r.Post("/conversations", startConversationHandler(cfg.Messaging, cfg.Users))
		r.Get("/conversations", listConversationsHandler(cfg.Messaging))
		r.Get("/conversations/{id}/messages", listMessagesHandler(cfg.Messaging))
		r.Post("/conversations/{id}/messages", sendMessageHandler(cfg.Messaging, cfg.Users))
		r.Post("/conversations/{id}/read", markReadHandler(cfg.Messaging))
		r.Get("/conversations/{id}/stream", streamConversationHandler(cfg.Messaging))

		// Customers
		r.Group(func(r chi.Router) {
			r.Use(RequireRole(user.RoleCustomer))

			r.Get("/vehicles", listVehiclesHandler(cfg.Vehicles))
			r.Post("/vehicles", addVehicleHandler(cfg.Vehicles))
			r.Delete("/vehicles/{id}", removeVehicleHandler(cfg.Vehicles))

			r.Get("/payment-methods", listPaymentMethodsHandler(cfg.Payments))
			r.Post("/payment-methods", addPaymentMethodHandler(cfg.Payments))
			r.Post("/payment-methods/{id}/default", setDefaultPaymentMethodHandler(cfg.Payments))
			r.Delete("/payment-methods/{id}", removePaymentMethodHandler(cfg.Payments))
			r.Get("/transactions", listTransactionsHandler(cfg.Payments))

			r.Post("/bookings/quote", quoteBookingHandler(cfg.Booking, cfg.Users, cfg.Slots))
			r.Post("/bookings", createBookingHandler(cfg.Booking, cfg.Users, cfg.Slots))
			r.Get("/appointments/mine", myAppointmentsHandler(cfg.Appointments))
			r.Post("/appointments/{id}/pay", payAppointmentHandler(cfg.Payments))
		})

		// Employees (admins may act on any appointment)
		r.Group(func(r chi.Router) {
			r.Use(RequireRole(user.RoleEmployee, user.RoleAdmin))

			r.Get("/schedule", scheduleHandler(cfg.Appointments))
			r.Get("/schedule/today", todayScheduleHandler(cfg.Appointments))
			r.Post("/appointments/{id}/start", startAppointmentHandler(cfg.Appointments))
			r.Post("/appointments/{id}/complete", completeAppointmentHandler(cfg.Appointments))
			r.Patch("/me/availability", setAvailabilityHandler(cfg.Users))
		})

		// Admins
		r.Route("/admin", func(r chi.Router) {
			r.Use(RequireRole(user.RoleAdmin))

			r.Get("/services", listAllServicesHandler(cfg.Catalog))
			r.Post("/services", createServiceHandler(cfg.Catalog))
			r.Put("/services/{id}", updateServiceHandler(cfg.Catalog))
			r.Post("/services/{id}/toggle", toggleServiceHandler(cfg.Catalog))
			r.Delete("/services/{id}", deleteServiceHandler(cfg.Catalog))

			r.Get("/slots", listDaySlotsHandler(cfg.Slots))
			r.Post("/slots/generate", generateSlotsHandler(cfg.Slots, cfg.Users))
			r.Post("/slots/{id}/assign", assignSlotHandler(cfg.Slots, cfg.Users))
			r.Post("/slots/{id}/release", releaseSlotHandler(cfg.Slots))
			r.Delete("/slots/{id}", deleteSlotHandler(cfg.Slots))

			r.Get("/appointments", listAppointmentsHandler(cfg.Appointments, cfg.Slots))
			r.Get("/appointments/today", adminTodayHandler(cfg.Appointments))
			r.Post("/appointments/{id}/assign", assignAppointmentHandler(cfg.Appointments, cfg.Users))
			r.Delete("/appointments/{id}", deleteAppointmentHandler(cfg.Appointments))

			r.Get("/users", listUsersHandler(cfg.Users))
			r.Post("/employees", createEmployeeHandler(cfg.Auth))
			r.Delete("/users/{id}", deleteUserHandler(cfg.Users))

			r.Get("/revenue", revenueHandler(cfg.Appointments))
			r.Get("/dashboard", dashboardHandler(cfg.Appointments))
			r.Post("/transactions/{id}/refund", refundTransactionHandler(cfg.Payments))
		})
	})

	return r
}
