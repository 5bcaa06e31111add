package auth

import (
	"net/mail"
	"strings"
)

const MinPasswordLength = 6

// ValidationError names the first field that failed validation.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Message
}

type SignUpRequest struct {
	Name            string
	Email           string
	Phone           string
	Password        string
	ConfirmPassword string
}

// Validate checks the sign-up form before any account is created.
func (r *SignUpRequest) Validate() error {
	r.Name = strings.TrimSpace(r.Name)
	r.Email = strings.ToLower(strings.TrimSpace(r.Email))
	r.Phone = strings.TrimSpace(r.Phone)

	switch {
	case r.Name == "":
		return &ValidationError{Field: "name", Message: "is required"}
	case r.Email == "":
		return &ValidationError{Field: "email", Message: "is required"}
	case !validEmail(r.Email):
		return &ValidationError{Field: "email", Message: "is not a valid address"}
	case r.Phone == "":
		return &ValidationError{Field: "phone", Message: "is required"}
	}
	return validatePassword(r.Password, r.ConfirmPassword)
}

func validatePassword(password, confirm string) error {
	if len(password) < MinPasswordLength {
		return &ValidationError{Field: "password", Message: "must be at least 6 characters"}
	}
	if password != confirm {
		return &ValidationError{Field: "confirm_password", Message: "passwords do not match"}
	}
	return nil
}

func validEmail(s string) bool {
	addr, err := mail.ParseAddress(s)
	return err == nil && addr.Address == s
}
