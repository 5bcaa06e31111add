package user

import (
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/emerald-details/internal/vehicle"
)

type Role string

const (
	RoleCustomer Role = "customer"
	RoleEmployee Role = "employee"
	RoleAdmin    Role = "admin"
)

func (r Role) Valid() bool {
	switch r {
	case RoleCustomer, RoleEmployee, RoleAdmin:
		return true
	}
	return false
}

type User struct {
	ID                uuid.UUID         `json:"id"`
	Name              string            `json:"name"`
	Email             string            `json:"email"`
	Phone             string            `json:"phone"`
	Role              Role              `json:"role"`
	EmailVerified     bool              `json:"is_email_verified"`
	ProfileImageURL   *string           `json:"profile_image_url,omitempty"`
	GatewayCustomerID *string           `json:"-"`
	Available         bool              `json:"is_available"`
	CreatedAt         time.Time         `json:"created_at"`
	UpdatedAt         time.Time         `json:"updated_at"`
	Vehicles          []vehicle.Vehicle `json:"vehicles,omitempty"`
}

// Profile holds the fields a user may edit about themselves.
type Profile struct {
	Name            string
	Phone           string
	ProfileImageURL *string
}
