package catalog

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var (
	ErrServiceNotFound  = errors.New("service not found")
	ErrDuplicateService = errors.New("a service with this name already exists")
)

type Repository interface {
	// List returns packages ordered by sort order; activeOnly hides disabled ones.
	List(ctx context.Context, activeOnly bool) ([]ServicePackage, error)
	GetByID(ctx context.Context, id uuid.UUID) (*ServicePackage, error)
	GetByName(ctx context.Context, name string) (*ServicePackage, error)
	Create(ctx context.Context, p *ServicePackage) (*ServicePackage, error)
	Update(ctx context.Context, p *ServicePackage) (*ServicePackage, error)
	SetActive(ctx context.Context, id uuid.UUID, active bool) (*ServicePackage, error)
	Delete(ctx context.Context, id uuid.UUID) error
}
