package payment

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/hackgods/emerald-details/internal/appointment"
)

var (
	ErrMethodNotFound      = errors.New("payment method not found")
	ErrTransactionNotFound = errors.New("transaction not found")
)

type Repository interface {
	// CreateMethod stores m; when m.IsDefault every other method of the
	// customer loses its default flag in the same transaction.
	CreateMethod(ctx context.Context, m PaymentMethod) (*PaymentMethod, error)
	ListMethods(ctx context.Context, customerID uuid.UUID) ([]PaymentMethod, error)
	GetMethod(ctx context.Context, customerID, id uuid.UUID) (*PaymentMethod, error)
	DefaultMethod(ctx context.Context, customerID uuid.UUID) (*PaymentMethod, error)
	SetDefault(ctx context.Context, customerID, id uuid.UUID) error
	DeleteMethod(ctx context.Context, customerID, id uuid.UUID) error

	CreateTransaction(ctx context.Context, t Transaction) (*Transaction, error)
	GetTransaction(ctx context.Context, id uuid.UUID) (*Transaction, error)
	UpdateTransaction(ctx context.Context, id uuid.UUID, status appointment.PaymentStatus, intentID *string) (*Transaction, error)
	ListTransactions(ctx context.Context, customerID uuid.UUID) ([]Transaction, error)
}
