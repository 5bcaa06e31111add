package notify

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/hackgods/emerald-details/internal/appointment"
	"github.com/hackgods/emerald-details/internal/catalog"
	"github.com/hackgods/emerald-details/internal/events"
	"github.com/hackgods/emerald-details/internal/geo"
	"github.com/hackgods/emerald-details/internal/logging"
	"github.com/hackgods/emerald-details/internal/slot"
	"github.com/hackgods/emerald-details/internal/user"
	"github.com/hackgods/emerald-details/internal/vehicle"
)

type MockSMS struct {
	mock.Mock
}

func (m *MockSMS) Send(ctx context.Context, to, body string) error {
	return m.Called(ctx, to, body).Error(0)
}

func (m *MockSMS) ProviderID() string { return "mock-sms" }

type MockMailer struct {
	mock.Mock
}

func (m *MockMailer) Send(ctx context.Context, toEmail, toName, subject, body string) error {
	return m.Called(ctx, toEmail, toName, subject, body).Error(0)
}

type fakeUsers map[uuid.UUID]*user.User

func (f fakeUsers) GetByID(_ context.Context, id uuid.UUID) (*user.User, error) {
	u, ok := f[id]
	if !ok {
		return nil, user.ErrUserNotFound
	}
	return u, nil
}

var nyc, _ = time.LoadLocation("America/New_York")

func sampleAppointment(customer, employee *user.User) appointment.Appointment {
	start := time.Date(2025, time.June, 20, 10, 0, 0, 0, nyc)
	a := appointment.Appointment{
		ID:           uuid.New(),
		CustomerID:   customer.ID,
		CustomerName: customer.Name,
		Vehicle:      vehicle.Vehicle{Year: 2021, Make: "Honda", Model: "Civic", Size: vehicle.SizeSedan},
		Service:      catalog.ServicePackage{Name: "Express Wash"},
		TimeSlot:     slot.TimeSlot{StartTime: start, EndTime: start.Add(2 * time.Hour)},
		Location:     geo.Location{Address: "12 Elm St"},
		Status:       appointment.StatusPending,
		TotalPrice:   decimal.RequireFromString("35"),
	}
	if employee != nil {
		a.EmployeeID = &employee.ID
		a.EmployeeName = &employee.Name
		a.Status = appointment.StatusConfirmed
	}
	return a
}

func envelope(t *testing.T, eventType string, appt appointment.Appointment) events.Envelope {
	t.Helper()
	payload, err := json.Marshal(appt)
	require.NoError(t, err)
	return events.Envelope{EventID: uuid.NewString(), EventType: eventType, Payload: payload}
}

type harness struct {
	notifier *Notifier
	sms      *MockSMS
	mailer   *MockMailer
	customer *user.User
	employee *user.User
}

func newHarness() *harness {
	h := &harness{
		sms:      &MockSMS{},
		mailer:   &MockMailer{},
		customer: &user.User{ID: uuid.New(), Name: "Dana Reyes", Email: "dana@example.com", Phone: "+15550001111"},
		employee: &user.User{ID: uuid.New(), Name: "Marco Diaz", Email: "marco@example.com", Phone: "+15550002222"},
	}
	users := fakeUsers{h.customer.ID: h.customer, h.employee.ID: h.employee}
	h.notifier = NewNotifier(users, h.sms, h.mailer, nyc, logging.Discard())
	return h
}

func TestHandle_CreatedNotifiesCustomer(t *testing.T) {
	h := newHarness()
	appt := sampleAppointment(h.customer, nil)

	h.sms.On("Send", mock.Anything, "+15550001111", mock.MatchedBy(func(body string) bool {
		return strings.Contains(body, "Express Wash") && strings.Contains(body, "Fri Jun 20, 10:00 AM - 12:00 PM")
	})).Return(nil).Once()
	h.mailer.On("Send", mock.Anything, "dana@example.com", "Dana Reyes", "Booking received", mock.MatchedBy(func(body string) bool {
		return strings.Contains(body, "Hi Dana") && strings.Contains(body, "$35.00") && strings.Contains(body, "2021 Honda Civic")
	})).Return(nil).Once()

	require.NoError(t, h.notifier.Handle(context.Background(), envelope(t, appointment.EventAppointmentCreated, appt)))
	h.sms.AssertExpectations(t)
	h.mailer.AssertExpectations(t)
}

func TestHandle_ConfirmedNotifiesBothSides(t *testing.T) {
	h := newHarness()
	appt := sampleAppointment(h.customer, h.employee)

	h.sms.On("Send", mock.Anything, "+15550001111", mock.MatchedBy(func(body string) bool {
		return strings.Contains(body, "confirmed with Marco Diaz")
	})).Return(nil).Once()
	h.sms.On("Send", mock.Anything, "+15550002222", mock.MatchedBy(func(body string) bool {
		return strings.Contains(body, "New job") && strings.Contains(body, "Dana Reyes")
	})).Return(nil).Once()

	require.NoError(t, h.notifier.Handle(context.Background(), envelope(t, appointment.EventAppointmentConfirmed, appt)))
	h.sms.AssertExpectations(t)
	h.mailer.AssertNotCalled(t, "Send", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestHandle_DeliveryErrorIsReturned(t *testing.T) {
	h := newHarness()
	appt := sampleAppointment(h.customer, nil)

	h.sms.On("Send", mock.Anything, mock.Anything, mock.Anything).Return(errors.New("twilio 503")).Once()

	err := h.notifier.Handle(context.Background(), envelope(t, appointment.EventAppointmentStarted, appt))
	assert.ErrorContains(t, err, "twilio 503")
}

func TestHandle_IgnoresUnknownAndMissingRecipients(t *testing.T) {
	h := newHarness()
	appt := sampleAppointment(h.customer, nil)

	require.NoError(t, h.notifier.Handle(context.Background(), envelope(t, "SOMETHING_ELSE", appt)))

	appt.CustomerID = uuid.New()
	require.NoError(t, h.notifier.Handle(context.Background(), envelope(t, appointment.EventAppointmentStarted, appt)))

	bad := events.Envelope{EventType: appointment.EventAppointmentCreated, Payload: json.RawMessage(`"nope"`)}
	require.NoError(t, h.notifier.Handle(context.Background(), bad))

	h.sms.AssertNotCalled(t, "Send", mock.Anything, mock.Anything, mock.Anything)
}

func TestHandle_PaymentStatuses(t *testing.T) {
	h := newHarness()
	appt := sampleAppointment(h.customer, nil)

	appt.PaymentStatus = appointment.PaymentPaid
	h.mailer.On("Send", mock.Anything, "dana@example.com", "Dana Reyes", "Payment receipt", mock.Anything).Return(nil).Once()
	require.NoError(t, h.notifier.Handle(context.Background(), envelope(t, appointment.EventPaymentUpdated, appt)))

	appt.PaymentStatus = appointment.PaymentPending
	require.NoError(t, h.notifier.Handle(context.Background(), envelope(t, appointment.EventPaymentUpdated, appt)))

	h.mailer.AssertExpectations(t)
	h.sms.AssertNotCalled(t, "Send", mock.Anything, mock.Anything, mock.Anything)
}

func TestPlainToHTML(t *testing.T) {
	assert.Equal(t, "<p>a &lt;b&gt;<br>c</p>", plainToHTML("a <b>\nc"))
	assert.Equal(t, "Dana", firstName("Dana Reyes"))
	assert.Equal(t, "there", firstName("  "))
}
