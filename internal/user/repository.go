package user

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var (
	ErrUserNotFound   = errors.New("user not found")
	ErrEmailTaken     = errors.New("email is already registered")
	ErrNotAnEmployee  = errors.New("user is not an employee")
	ErrCannotDeleteMe = errors.New("admins cannot delete their own account")
)

type Repository interface {
	// Create stores the user together with its password hash.
	Create(ctx context.Context, u *User, passwordHash string) (*User, error)
	GetByID(ctx context.Context, id uuid.UUID) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	// PasswordHash returns the stored hash for the account with email.
	PasswordHash(ctx context.Context, email string) (uuid.UUID, string, error)
	SetPasswordHash(ctx context.Context, id uuid.UUID, hash string) error
	UpdateProfile(ctx context.Context, id uuid.UUID, p Profile) (*User, error)
	SetEmailVerified(ctx context.Context, id uuid.UUID, verified bool) error
	SetAvailability(ctx context.Context, id uuid.UUID, available bool) (*User, error)
	SetGatewayCustomerID(ctx context.Context, id uuid.UUID, ref string) error
	ListByRole(ctx context.Context, role Role) ([]User, error)
	Delete(ctx context.Context, id uuid.UUID) error
}
