// Package notify turns appointment events into customer and employee
// messages.
package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/emerald-details/internal/appointment"
	"github.com/hackgods/emerald-details/internal/events"
	"github.com/hackgods/emerald-details/internal/user"
)

type Mailer interface {
	Send(ctx context.Context, toEmail, toName, subject, body string) error
}

type Users interface {
	GetByID(ctx context.Context, id uuid.UUID) (*user.User, error)
}

type message struct {
	to      uuid.UUID
	sms     string
	subject string
	email   string
}

type Notifier struct {
	users    Users
	sms      SMSSender
	mailer   Mailer
	location *time.Location
	logger   *slog.Logger
}

func NewNotifier(users Users, sms SMSSender, mailer Mailer, loc *time.Location, logger *slog.Logger) *Notifier {
	if loc == nil {
		loc = time.UTC
	}
	return &Notifier{users: users, sms: sms, mailer: mailer, location: loc, logger: logger}
}

// Handle is an events.Handler.
func (n *Notifier) Handle(ctx context.Context, env events.Envelope) error {
	var appt appointment.Appointment
	if err := env.Decode(&appt); err != nil {
		n.logger.Error("undecodable appointment event", "event_id", env.EventID, "err", err)
		return nil
	}

	msgs := n.compose(env.EventType, appt)
	if len(msgs) == 0 {
		return nil
	}

	var errs []error
	for _, m := range msgs {
		if err := n.deliver(ctx, m); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (n *Notifier) when(appt appointment.Appointment) string {
	ts := appt.TimeSlot
	return ts.StartTime.In(n.location).Format("Mon Jan 2") + ", " + ts.FormattedTimeRange(n.location)
}

func (n *Notifier) compose(eventType string, appt appointment.Appointment) []message {
	when := n.when(appt)
	service := appt.Service.Name
	var out []message

	switch eventType {
	case appointment.EventAppointmentCreated:
		out = append(out, message{
			to:      appt.CustomerID,
			sms:     fmt.Sprintf("Emerald Details: we received your %s booking for %s. We'll confirm shortly.", service, when),
			subject: "Booking received",
			email: fmt.Sprintf("Hi %s,\n\nThanks for booking %s for your %s.\n\nWhen: %s\nWhere: %s\nTotal: %s\n\nWe'll let you know once a detailer is assigned.",
				firstName(appt.CustomerName), service, appt.Vehicle.DisplayName(), when, appt.Location.FullAddress(), appt.FormattedPrice()),
		})

	case appointment.EventAppointmentConfirmed:
		employee := "a detailer"
		if appt.EmployeeName != nil {
			employee = *appt.EmployeeName
		}
		out = append(out, message{
			to:  appt.CustomerID,
			sms: fmt.Sprintf("Emerald Details: your %s on %s is confirmed with %s.", service, when, employee),
		})
		if appt.EmployeeID != nil {
			out = append(out, message{
				to:  *appt.EmployeeID,
				sms: fmt.Sprintf("New job: %s for %s, %s at %s.", service, appt.CustomerName, when, appt.Location.ShortAddress()),
			})
		}

	case appointment.EventAppointmentStarted:
		out = append(out, message{
			to:  appt.CustomerID,
			sms: fmt.Sprintf("Emerald Details: work on your %s has started.", appt.Vehicle.DisplayName()),
		})

	case appointment.EventAppointmentCompleted:
		out = append(out, message{
			to:      appt.CustomerID,
			sms:     fmt.Sprintf("Emerald Details: your %s is done. Thanks for choosing us!", service),
			subject: "Your detail is complete",
			email: fmt.Sprintf("Hi %s,\n\nYour %s on %s is complete.\n\nTotal: %s\nPayment: %s\n\nSee you next time!",
				firstName(appt.CustomerName), service, appt.Vehicle.DisplayName(), appt.FormattedPrice(), appt.PaymentStatus),
		})

	case appointment.EventAppointmentCancelled:
		out = append(out, message{
			to:      appt.CustomerID,
			sms:     fmt.Sprintf("Emerald Details: your %s on %s was cancelled.", service, when),
			subject: "Booking cancelled",
			email:   fmt.Sprintf("Hi %s,\n\nYour %s booking for %s has been cancelled.", firstName(appt.CustomerName), service, when),
		})
		if appt.EmployeeID != nil {
			out = append(out, message{
				to:  *appt.EmployeeID,
				sms: fmt.Sprintf("Cancelled: %s for %s, %s.", service, appt.CustomerName, when),
			})
		}

	case appointment.EventPaymentUpdated:
		switch appt.PaymentStatus {
		case appointment.PaymentPaid:
			out = append(out, message{
				to:      appt.CustomerID,
				subject: "Payment receipt",
				email: fmt.Sprintf("Hi %s,\n\nWe received your payment of %s for %s on %s.",
					firstName(appt.CustomerName), appt.FormattedPrice(), service, when),
			})
		case appointment.PaymentFailed:
			out = append(out, message{
				to:  appt.CustomerID,
				sms: fmt.Sprintf("Emerald Details: your payment of %s did not go through. Please update your payment method.", appt.FormattedPrice()),
			})
		case appointment.PaymentRefunded:
			out = append(out, message{
				to:      appt.CustomerID,
				subject: "Refund issued",
				email:   fmt.Sprintf("Hi %s,\n\nWe refunded %s for your %s booking.", firstName(appt.CustomerName), appt.FormattedPrice(), service),
			})
		}
	}
	return out
}

func (n *Notifier) deliver(ctx context.Context, m message) error {
	u, err := n.users.GetByID(ctx, m.to)
	if err != nil {
		if errors.Is(err, user.ErrUserNotFound) {
			n.logger.Warn("notification recipient gone", "user_id", m.to)
			return nil
		}
		return fmt.Errorf("load recipient: %w", err)
	}

	if m.sms != "" && u.Phone != "" {
		if err := n.sms.Send(ctx, u.Phone, m.sms); err != nil {
			return fmt.Errorf("sms via %s: %w", n.sms.ProviderID(), err)
		}
	}
	if m.email != "" && u.Email != "" {
		if err := n.mailer.Send(ctx, u.Email, u.Name, m.subject, m.email); err != nil {
			return fmt.Errorf("email: %w", err)
		}
	}
	return nil
}

func firstName(full string) string {
	if f := strings.Fields(full); len(f) > 0 {
		return f[0]
	}
	return "there"
}
