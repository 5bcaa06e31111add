package payment

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/hackgods/emerald-details/internal/appointment"
)

type MethodType string

const (
	MethodCard        MethodType = "card"
	MethodApplePay    MethodType = "apple_pay"
	MethodBankAccount MethodType = "bank_account"
)

func (t MethodType) Valid() bool {
	switch t {
	case MethodCard, MethodApplePay, MethodBankAccount:
		return true
	}
	return false
}

type PaymentMethod struct {
	ID              uuid.UUID  `json:"id"`
	CustomerID      uuid.UUID  `json:"customer_id"`
	Type            MethodType `json:"type"`
	IsDefault       bool       `json:"is_default"`
	CardLast4       *string    `json:"card_last4,omitempty"`
	CardBrand       *string    `json:"card_brand,omitempty"`
	CardExpMonth    *int       `json:"card_exp_month,omitempty"`
	CardExpYear     *int       `json:"card_exp_year,omitempty"`
	GatewayMethodID *string    `json:"gateway_method_id,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
}

// DisplayName renders e.g. "Visa ****4242".
func (m PaymentMethod) DisplayName() string {
	switch m.Type {
	case MethodCard:
		if m.CardBrand != nil && m.CardLast4 != nil {
			brand := strings.ToLower(*m.CardBrand)
			if brand != "" {
				brand = strings.ToUpper(brand[:1]) + brand[1:]
			}
			return brand + " ****" + *m.CardLast4
		}
		return "Card"
	case MethodApplePay:
		return "Apple Pay"
	case MethodBankAccount:
		return "Bank Account"
	}
	return string(m.Type)
}

// ExpirationString renders "MM/YY", or "" when the expiry is unknown.
func (m PaymentMethod) ExpirationString() string {
	if m.CardExpMonth == nil || m.CardExpYear == nil {
		return ""
	}
	return fmt.Sprintf("%02d/%02d", *m.CardExpMonth, *m.CardExpYear%100)
}

// Transaction is one charge attempt against an appointment. Its status
// reuses the appointment payment states.
type Transaction struct {
	ID              uuid.UUID                 `json:"id"`
	AppointmentID   uuid.UUID                 `json:"appointment_id"`
	CustomerID      uuid.UUID                 `json:"customer_id"`
	Amount          decimal.Decimal           `json:"amount"`
	Status          appointment.PaymentStatus `json:"status"`
	PaymentMethodID *uuid.UUID                `json:"payment_method_id,omitempty"`
	GatewayIntentID *string                   `json:"gateway_intent_id,omitempty"`
	CreatedAt       time.Time                 `json:"created_at"`
}

func (t Transaction) FormattedAmount() string {
	return "$" + t.Amount.StringFixed(2)
}

// toMinorUnits converts a currency amount to cents.
func toMinorUnits(amount decimal.Decimal) int64 {
	return amount.Shift(2).Round(0).IntPart()
}
