package user

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/hackgods/emerald-details/internal/vehicle"
)

var ErrInvalidProfile = errors.New("name and phone are required")

// VehicleLister loads a customer's garage.
type VehicleLister interface {
	List(ctx context.Context, ownerID uuid.UUID) ([]vehicle.Vehicle, error)
}

type Service struct {
	repo     Repository
	vehicles VehicleLister
}

func NewService(repo Repository, vehicles VehicleLister) *Service {
	return &Service{repo: repo, vehicles: vehicles}
}

// Get returns the user; customers come with their vehicles attached.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*User, error) {
	u, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if u.Role == RoleCustomer && s.vehicles != nil {
		vs, err := s.vehicles.List(ctx, u.ID)
		if err != nil {
			return nil, fmt.Errorf("load vehicles: %w", err)
		}
		u.Vehicles = vs
	}
	return u, nil
}

func (s *Service) UpdateProfile(ctx context.Context, id uuid.UUID, p Profile) (*User, error) {
	p.Name = strings.TrimSpace(p.Name)
	p.Phone = strings.TrimSpace(p.Phone)
	if p.Name == "" || p.Phone == "" {
		return nil, ErrInvalidProfile
	}
	return s.repo.UpdateProfile(ctx, id, p)
}

func (s *Service) ListEmployees(ctx context.Context) ([]User, error) {
	return s.repo.ListByRole(ctx, RoleEmployee)
}

func (s *Service) ListCustomers(ctx context.Context) ([]User, error) {
	return s.repo.ListByRole(ctx, RoleCustomer)
}

// AvailableEmployees filters the roster down to detailers taking work.
func (s *Service) AvailableEmployees(ctx context.Context) ([]User, error) {
	all, err := s.repo.ListByRole(ctx, RoleEmployee)
	if err != nil {
		return nil, err
	}
	out := make([]User, 0, len(all))
	for _, u := range all {
		if u.Available {
			out = append(out, u)
		}
	}
	return out, nil
}

// Employee loads id and checks it is an employee account.
func (s *Service) Employee(ctx context.Context, id uuid.UUID) (*User, error) {
	u, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if u.Role != RoleEmployee {
		return nil, ErrNotAnEmployee
	}
	return u, nil
}

func (s *Service) SetAvailability(ctx context.Context, id uuid.UUID, available bool) (*User, error) {
	u, err := s.repo.SetAvailability(ctx, id, available)
	if errors.Is(err, ErrUserNotFound) {
		return nil, ErrNotAnEmployee
	}
	return u, err
}

func (s *Service) Delete(ctx context.Context, actorID, id uuid.UUID) error {
	if actorID == id {
		return ErrCannotDeleteMe
	}
	return s.repo.Delete(ctx, id)
}
