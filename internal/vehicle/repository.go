package vehicle

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var ErrVehicleNotFound = errors.New("vehicle not found")

type Repository interface {
	Create(ctx context.Context, v *Vehicle) (*Vehicle, error)
	GetByID(ctx context.Context, id uuid.UUID) (*Vehicle, error)
	ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]Vehicle, error)
	Delete(ctx context.Context, ownerID, id uuid.UUID) error
}
