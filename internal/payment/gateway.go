package payment

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/customer"
	"github.com/stripe/stripe-go/v79/paymentintent"
	"github.com/stripe/stripe-go/v79/refund"
)

var (
	ErrGatewayDisabled = errors.New("payment gateway is not configured")
	ErrPaymentDeclined = errors.New("payment was declined")
)

type ChargeRequest struct {
	Amount         decimal.Decimal
	Currency       string
	CustomerRef    string
	MethodRef      string
	Description    string
	IdempotencyKey string
	Metadata       map[string]string
}

type ChargeResult struct {
	IntentID  string
	Succeeded bool
}

type CustomerInfo struct {
	Email string
	Name  string
	Phone string
}

// Gateway is the external payment processor.
type Gateway interface {
	// EnsureCustomer creates the processor-side customer record and returns
	// its reference.
	EnsureCustomer(ctx context.Context, info CustomerInfo) (string, error)
	Charge(ctx context.Context, req ChargeRequest) (*ChargeResult, error)
	Refund(ctx context.Context, intentID string, amount decimal.Decimal) (string, error)
}

type StripeGateway struct{}

func NewStripeGateway(secretKey string) *StripeGateway {
	stripe.Key = secretKey
	return &StripeGateway{}
}

func (g *StripeGateway) EnsureCustomer(ctx context.Context, info CustomerInfo) (string, error) {
	params := &stripe.CustomerParams{
		Email: stripe.String(info.Email),
		Name:  stripe.String(info.Name),
	}
	if info.Phone != "" {
		params.Phone = stripe.String(info.Phone)
	}
	params.Context = ctx
	c, err := customer.New(params)
	if err != nil {
		return "", fmt.Errorf("stripe create customer: %w", err)
	}
	return c.ID, nil
}

func (g *StripeGateway) Charge(ctx context.Context, req ChargeRequest) (*ChargeResult, error) {
	params := &stripe.PaymentIntentParams{
		Amount:        stripe.Int64(toMinorUnits(req.Amount)),
		Currency:      stripe.String(req.Currency),
		Customer:      stripe.String(req.CustomerRef),
		PaymentMethod: stripe.String(req.MethodRef),
		Description:   stripe.String(req.Description),
		Confirm:       stripe.Bool(true),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled:        stripe.Bool(true),
			AllowRedirects: stripe.String("never"),
		},
	}
	for k, v := range req.Metadata {
		params.AddMetadata(k, v)
	}
	if req.IdempotencyKey != "" {
		params.IdempotencyKey = stripe.String(req.IdempotencyKey)
	}
	params.Context = ctx

	pi, err := paymentintent.New(params)
	if err != nil {
		var serr *stripe.Error
		if errors.As(err, &serr) && serr.Type == stripe.ErrorTypeCard {
			return nil, fmt.Errorf("%w: %s", ErrPaymentDeclined, serr.Msg)
		}
		return nil, fmt.Errorf("stripe create payment intent: %w", err)
	}
	return &ChargeResult{
		IntentID:  pi.ID,
		Succeeded: pi.Status == stripe.PaymentIntentStatusSucceeded,
	}, nil
}

func (g *StripeGateway) Refund(ctx context.Context, intentID string, amount decimal.Decimal) (string, error) {
	params := &stripe.RefundParams{
		PaymentIntent: stripe.String(intentID),
		Amount:        stripe.Int64(toMinorUnits(amount)),
	}
	params.Context = ctx
	r, err := refund.New(params)
	if err != nil {
		return "", fmt.Errorf("stripe refund: %w", err)
	}
	return r.ID, nil
}

// DisabledGateway is used when no processor key is configured. Every call
// fails; it never reports a synthetic success.
type DisabledGateway struct{}

func (DisabledGateway) EnsureCustomer(context.Context, CustomerInfo) (string, error) {
	return "", ErrGatewayDisabled
}

func (DisabledGateway) Charge(context.Context, ChargeRequest) (*ChargeResult, error) {
	return nil, ErrGatewayDisabled
}

func (DisabledGateway) Refund(context.Context, string, decimal.Decimal) (string, error) {
	return "", ErrGatewayDisabled
}
