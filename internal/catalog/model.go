package catalog

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/hackgods/emerald-details/internal/vehicle"
)

// ServicePackage is a detailing offering. Appointments keep their own copy,
// so edits here never reach existing bookings.
type ServicePackage struct {
	ID              uuid.UUID       `json:"id"`
	Name            string          `json:"name"`
	Description     string          `json:"description"`
	BasePrice       decimal.Decimal `json:"base_price"`
	DurationMinutes int             `json:"duration_minutes"`
	Features        []string        `json:"features"`
	Active          bool            `json:"is_active"`
	SortOrder       int             `json:"sort_order"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// PriceForVehicle is basePrice × size multiplier, exact, unrounded.
func (p ServicePackage) PriceForVehicle(v vehicle.Vehicle) decimal.Decimal {
	return p.PriceForSize(v.Size)
}

func (p ServicePackage) PriceForSize(size vehicle.Size) decimal.Decimal {
	return p.BasePrice.Mul(size.Multiplier())
}

// FormattedPrice renders the "from" price, e.g. "$35+".
func (p ServicePackage) FormattedPrice() string {
	return "$" + p.BasePrice.StringFixed(0) + "+"
}

func (p ServicePackage) FormattedDuration() string {
	d := p.DurationMinutes
	if d < 60 {
		return fmt.Sprintf("%d min", d)
	}
	hours, mins := d/60, d%60
	if mins > 0 {
		return fmt.Sprintf("%dh %dm", hours, mins)
	}
	if hours > 1 {
		return fmt.Sprintf("%d hours", hours)
	}
	return "1 hour"
}

var (
	ErrNameRequired     = errors.New("service name is required")
	ErrNegativePrice    = errors.New("base price must not be negative")
	ErrInvalidDuration  = errors.New("duration must be positive")
	ErrServiceNotActive = errors.New("service is not active")
)

func (p ServicePackage) Validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return ErrNameRequired
	}
	if p.BasePrice.IsNegative() {
		return ErrNegativePrice
	}
	if p.DurationMinutes <= 0 {
		return ErrInvalidDuration
	}
	return nil
}
