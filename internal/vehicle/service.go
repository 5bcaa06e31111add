package vehicle

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

var ErrNotOwner = errors.New("vehicle belongs to another customer")

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Add validates and stores a vehicle in the owner's garage.
func (s *Service) Add(ctx context.Context, ownerID uuid.UUID, v Vehicle) (*Vehicle, error) {
	v.OwnerID = ownerID
	v.Make = strings.TrimSpace(v.Make)
	v.Model = strings.TrimSpace(v.Model)
	v.Color = strings.TrimSpace(v.Color)
	if err := v.Validate(); err != nil {
		return nil, err
	}
	created, err := s.repo.Create(ctx, &v)
	if err != nil {
		return nil, fmt.Errorf("add vehicle: %w", err)
	}
	return created, nil
}

func (s *Service) List(ctx context.Context, ownerID uuid.UUID) ([]Vehicle, error) {
	vs, err := s.repo.ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list vehicles: %w", err)
	}
	return vs, nil
}

// Owned loads a vehicle and checks it belongs to ownerID.
func (s *Service) Owned(ctx context.Context, ownerID, id uuid.UUID) (*Vehicle, error) {
	v, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if v.OwnerID != ownerID {
		return nil, ErrNotOwner
	}
	return v, nil
}

func (s *Service) Remove(ctx context.Context, ownerID, id uuid.UUID) error {
	return s.repo.Delete(ctx, ownerID, id)
}
