package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// ListActive is what customers see in the booking flow.
func (s *Service) ListActive(ctx context.Context) ([]ServicePackage, error) {
	ps, err := s.repo.List(ctx, true)
	if err != nil {
		return nil, fmt.Errorf("list active services: %w", err)
	}
	return ps, nil
}

func (s *Service) ListAll(ctx context.Context) ([]ServicePackage, error) {
	ps, err := s.repo.List(ctx, false)
	if err != nil {
		return nil, fmt.Errorf("list services: %w", err)
	}
	return ps, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*ServicePackage, error) {
	return s.repo.GetByID(ctx, id)
}

// GetActive returns the package only if it can currently be booked.
func (s *Service) GetActive(ctx context.Context, id uuid.UUID) (*ServicePackage, error) {
	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !p.Active {
		return nil, ErrServiceNotActive
	}
	return p, nil
}

func (s *Service) Create(ctx context.Context, p ServicePackage) (*ServicePackage, error) {
	p.Name = strings.TrimSpace(p.Name)
	if p.Features == nil {
		p.Features = []string{}
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return s.repo.Create(ctx, &p)
}

func (s *Service) Update(ctx context.Context, p ServicePackage) (*ServicePackage, error) {
	p.Name = strings.TrimSpace(p.Name)
	if p.Features == nil {
		p.Features = []string{}
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return s.repo.Update(ctx, &p)
}

// ToggleActive flips the active flag and returns the updated package.
func (s *Service) ToggleActive(ctx context.Context, id uuid.UUID) (*ServicePackage, error) {
	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.repo.SetActive(ctx, id, !p.Active)
}

func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	return s.repo.Delete(ctx, id)
}

// EnsureCatalog inserts every package whose name is not stored yet and
// returns how many were added. Existing packages are left untouched.
func (s *Service) EnsureCatalog(ctx context.Context, packages []ServicePackage) (int, error) {
	added := 0
	for _, p := range packages {
		_, err := s.repo.GetByName(ctx, p.Name)
		if err == nil {
			continue
		}
		if !errors.Is(err, ErrServiceNotFound) {
			return added, fmt.Errorf("lookup %q: %w", p.Name, err)
		}
		if _, err := s.Create(ctx, p); err != nil {
			return added, fmt.Errorf("create %q: %w", p.Name, err)
		}
		added++
	}
	return added, nil
}
