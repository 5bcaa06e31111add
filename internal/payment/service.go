package payment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"

	"github.com/google/uuid"

	"github.com/hackgods/emerald-details/internal/appointment"
	"github.com/hackgods/emerald-details/internal/user"
)

var (
	ErrInvalidMethod       = errors.New("invalid payment method")
	ErrNoPaymentMethod     = errors.New("no payment method on file")
	ErrAlreadyPaid         = errors.New("appointment is already paid")
	ErrPaymentInProgress   = errors.New("a payment for this appointment is already in progress")
	ErrAppointmentCanceled = errors.New("appointment is cancelled")
	ErrNotRefundable       = errors.New("transaction cannot be refunded")
)

var last4Pattern = regexp.MustCompile(`^[0-9]{4}$`)

// Appointments is the slice of the appointment service payments need.
type Appointments interface {
	Get(ctx context.Context, id uuid.UUID, actor appointment.Actor) (*appointment.Appointment, error)
	ClaimPayment(ctx context.Context, id uuid.UUID) (*appointment.Appointment, error)
	UpdatePaymentStatus(ctx context.Context, id uuid.UUID, status appointment.PaymentStatus, intentID *string) (*appointment.Appointment, error)
}

type Customers interface {
	GetByID(ctx context.Context, id uuid.UUID) (*user.User, error)
	SetGatewayCustomerID(ctx context.Context, id uuid.UUID, ref string) error
}

type Service struct {
	repo         Repository
	gateway      Gateway
	appointments Appointments
	customers    Customers
	currency     string
	logger       *slog.Logger
}

func NewService(repo Repository, gateway Gateway, appointments Appointments, customers Customers, currency string, logger *slog.Logger) *Service {
	if gateway == nil {
		gateway = DisabledGateway{}
	}
	if currency == "" {
		currency = "usd"
	}
	return &Service{
		repo:         repo,
		gateway:      gateway,
		appointments: appointments,
		customers:    customers,
		currency:     currency,
		logger:       logger,
	}
}

func validateMethod(m PaymentMethod) error {
	if !m.Type.Valid() {
		return fmt.Errorf("%w: unknown type %q", ErrInvalidMethod, m.Type)
	}
	if m.Type != MethodCard {
		return nil
	}
	if m.CardLast4 == nil || !last4Pattern.MatchString(*m.CardLast4) {
		return fmt.Errorf("%w: card_last4 must be 4 digits", ErrInvalidMethod)
	}
	if m.CardBrand == nil || *m.CardBrand == "" {
		return fmt.Errorf("%w: card_brand is required", ErrInvalidMethod)
	}
	if m.CardExpMonth == nil || *m.CardExpMonth < 1 || *m.CardExpMonth > 12 {
		return fmt.Errorf("%w: card_exp_month must be 1-12", ErrInvalidMethod)
	}
	if m.CardExpYear == nil || *m.CardExpYear < 2000 {
		return fmt.Errorf("%w: card_exp_year is required", ErrInvalidMethod)
	}
	return nil
}

// AddMethod stores a payment method for customerID. The first method a
// customer adds becomes the default.
func (s *Service) AddMethod(ctx context.Context, customerID uuid.UUID, m PaymentMethod) (*PaymentMethod, error) {
	if err := validateMethod(m); err != nil {
		return nil, err
	}
	existing, err := s.repo.ListMethods(ctx, customerID)
	if err != nil {
		return nil, fmt.Errorf("list payment methods: %w", err)
	}
	m.ID = uuid.New()
	m.CustomerID = customerID
	if len(existing) == 0 {
		m.IsDefault = true
	}
	return s.repo.CreateMethod(ctx, m)
}

func (s *Service) Methods(ctx context.Context, customerID uuid.UUID) ([]PaymentMethod, error) {
	return s.repo.ListMethods(ctx, customerID)
}

func (s *Service) SetDefault(ctx context.Context, customerID, id uuid.UUID) error {
	return s.repo.SetDefault(ctx, customerID, id)
}

func (s *Service) RemoveMethod(ctx context.Context, customerID, id uuid.UUID) error {
	return s.repo.DeleteMethod(ctx, customerID, id)
}

func (s *Service) Transactions(ctx context.Context, customerID uuid.UUID) ([]Transaction, error) {
	return s.repo.ListTransactions(ctx, customerID)
}

// Pay charges the appointment's total to methodID, or to the customer's
// default method when methodID is nil. The appointment's payment is claimed
// before the gateway is called, so concurrent calls charge at most once. A
// declined charge is recorded as a failed transaction and marks the
// appointment's payment failed, which reopens it.
func (s *Service) Pay(ctx context.Context, actor appointment.Actor, appointmentID uuid.UUID, methodID *uuid.UUID) (*Transaction, error) {
	appt, err := s.appointments.Get(ctx, appointmentID, actor)
	if err != nil {
		return nil, err
	}
	if appt.CustomerID != actor.ID {
		return nil, appointment.ErrForbidden
	}
	if appt.Status == appointment.StatusCancelled {
		return nil, ErrAppointmentCanceled
	}
	if appt.PaymentStatus == appointment.PaymentPaid || appt.PaymentStatus == appointment.PaymentRefunded {
		return nil, ErrAlreadyPaid
	}
	if appt.PaymentStatus == appointment.PaymentProcessing {
		return nil, ErrPaymentInProgress
	}

	method, err := s.resolveMethod(ctx, actor.ID, methodID)
	if err != nil {
		return nil, err
	}

	customerRef, err := s.customerRef(ctx, actor.ID)
	if err != nil {
		return nil, err
	}

	reopen := appt.PaymentStatus
	appt, err = s.appointments.ClaimPayment(ctx, appt.ID)
	switch {
	case errors.Is(err, appointment.ErrPaymentNotOpen):
		return nil, ErrPaymentInProgress
	case err != nil:
		return nil, fmt.Errorf("claim payment: %w", err)
	}

	txn, err := s.repo.CreateTransaction(ctx, Transaction{
		ID:              uuid.New(),
		AppointmentID:   appt.ID,
		CustomerID:      actor.ID,
		Amount:          appt.TotalPrice,
		Status:          appointment.PaymentPending,
		PaymentMethodID: &method.ID,
	})
	if err != nil {
		if _, rerr := s.appointments.UpdatePaymentStatus(context.WithoutCancel(ctx), appt.ID, reopen, nil); rerr != nil {
			s.logger.Error("reopen payment", "appointment_id", appt.ID, "err", rerr)
		}
		return nil, fmt.Errorf("record transaction: %w", err)
	}

	methodRef := ""
	if method.GatewayMethodID != nil {
		methodRef = *method.GatewayMethodID
	}
	result, chargeErr := s.gateway.Charge(ctx, ChargeRequest{
		Amount:         appt.TotalPrice,
		Currency:       s.currency,
		CustomerRef:    customerRef,
		MethodRef:      methodRef,
		Description:    appt.Service.Name,
		IdempotencyKey: "txn-" + txn.ID.String(),
		Metadata: map[string]string{
			"appointment_id": appt.ID.String(),
			"transaction_id": txn.ID.String(),
		},
	})

	status := appointment.PaymentPaid
	var intentID *string
	switch {
	case chargeErr != nil:
		status = appointment.PaymentFailed
	case !result.Succeeded:
		status = appointment.PaymentFailed
		intentID = &result.IntentID
		chargeErr = ErrPaymentDeclined
	default:
		intentID = &result.IntentID
	}

	txn, err = s.repo.UpdateTransaction(ctx, txn.ID, status, intentID)
	if err != nil {
		return nil, fmt.Errorf("update transaction: %w", err)
	}
	if _, err := s.appointments.UpdatePaymentStatus(ctx, appt.ID, status, intentID); err != nil {
		return txn, fmt.Errorf("update appointment payment: %w", err)
	}

	if chargeErr != nil {
		s.logger.Warn("charge failed",
			"appointment_id", appt.ID,
			"transaction_id", txn.ID,
			"err", chargeErr,
		)
		return txn, chargeErr
	}
	s.logger.Info("payment captured",
		"appointment_id", appt.ID,
		"transaction_id", txn.ID,
		"amount", txn.Amount.String(),
	)
	return txn, nil
}

// Refund returns a paid transaction's full amount. Admin only; the caller
// enforces the role.
func (s *Service) Refund(ctx context.Context, transactionID uuid.UUID) (*Transaction, error) {
	txn, err := s.repo.GetTransaction(ctx, transactionID)
	if err != nil {
		return nil, err
	}
	if txn.Status != appointment.PaymentPaid || txn.GatewayIntentID == nil {
		return nil, ErrNotRefundable
	}

	if _, err := s.gateway.Refund(ctx, *txn.GatewayIntentID, txn.Amount); err != nil {
		return nil, err
	}

	txn, err = s.repo.UpdateTransaction(ctx, txn.ID, appointment.PaymentRefunded, nil)
	if err != nil {
		return nil, fmt.Errorf("update transaction: %w", err)
	}
	if _, err := s.appointments.UpdatePaymentStatus(ctx, txn.AppointmentID, appointment.PaymentRefunded, nil); err != nil {
		return txn, fmt.Errorf("update appointment payment: %w", err)
	}
	return txn, nil
}

func (s *Service) resolveMethod(ctx context.Context, customerID uuid.UUID, methodID *uuid.UUID) (*PaymentMethod, error) {
	if methodID != nil {
		return s.repo.GetMethod(ctx, customerID, *methodID)
	}
	m, err := s.repo.DefaultMethod(ctx, customerID)
	if errors.Is(err, ErrMethodNotFound) {
		return nil, ErrNoPaymentMethod
	}
	return m, err
}

// customerRef returns the gateway customer for userID, creating it on first
// payment.
func (s *Service) customerRef(ctx context.Context, userID uuid.UUID) (string, error) {
	u, err := s.customers.GetByID(ctx, userID)
	if err != nil {
		return "", fmt.Errorf("load customer: %w", err)
	}
	if u.GatewayCustomerID != nil && *u.GatewayCustomerID != "" {
		return *u.GatewayCustomerID, nil
	}
	ref, err := s.gateway.EnsureCustomer(ctx, CustomerInfo{Email: u.Email, Name: u.Name, Phone: u.Phone})
	if err != nil {
		return "", err
	}
	if err := s.customers.SetGatewayCustomerID(ctx, userID, ref); err != nil {
		return "", fmt.Errorf("save gateway customer: %w", err)
	}
	return ref, nil
}
