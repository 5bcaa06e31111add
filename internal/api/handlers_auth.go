package api

import (
	"net/http"

	"github.com/hackgods/emerald-details/internal/auth"
	"github.com/hackgods/emerald-details/internal/user"
)

func signUp(svc AuthService, role user.Role) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req SignUpRequest
		if !decodeJSON(w, r, &req) {
			return
		}

		sess, err := svc.SignUp(r.Context(), auth.SignUpRequest{
			Name:            req.Name,
			Email:           req.Email,
			Phone:           req.Phone,
			Password:        req.Password,
			ConfirmPassword: req.ConfirmPassword,
		}, role)
		if err != nil {
			handleAuthError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, sess)
	}
}

// signUpHandler registers customers. Employees are created by an admin.
func signUpHandler(svc AuthService) http.HandlerFunc {
	return signUp(svc, user.RoleCustomer)
}

func createEmployeeHandler(svc AuthService) http.HandlerFunc {
	return signUp(svc, user.RoleEmployee)
}

func signInHandler(svc AuthService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req SignInRequest
		if !decodeJSON(w, r, &req) {
			return
		}

		sess, err := svc.SignIn(r.Context(), req.Email, req.Password)
		if err != nil {
			handleAuthError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, sess)
	}
}

func verifyEmailHandler(svc AuthService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req TokenRequest
		if !decodeJSON(w, r, &req) {
			return
		}

		if err := svc.VerifyEmail(r.Context(), req.Token); err != nil {
			handleAuthError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func resendVerificationHandler(svc AuthService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := svc.SendVerificationEmail(r.Context(), principal(r).UserID); err != nil {
			handleAuthError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusAccepted)
	}
}

// requestPasswordResetHandler always answers 202 so the endpoint cannot be
// used to probe which emails are registered.
func requestPasswordResetHandler(svc AuthService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req PasswordResetRequest
		if !decodeJSON(w, r, &req) {
			return
		}

		if err := svc.RequestPasswordReset(r.Context(), req.Email); err != nil {
			handleAuthError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusAccepted)
	}
}

func confirmPasswordResetHandler(svc AuthService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req PasswordResetConfirmRequest
		if !decodeJSON(w, r, &req) {
			return
		}

		if err := svc.ResetPassword(r.Context(), req.Token, req.Password, req.ConfirmPassword); err != nil {
			handleAuthError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func getMeHandler(svc UserService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		u, err := svc.Get(r.Context(), principal(r).UserID)
		if err != nil {
			handleUserError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, u)
	}
}

func updateMeHandler(svc UserService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req UpdateProfileRequest
		if !decodeJSON(w, r, &req) {
			return
		}

		u, err := svc.UpdateProfile(r.Context(), principal(r).UserID, user.Profile{
			Name:            req.Name,
			Phone:           req.Phone,
			ProfileImageURL: req.ProfileImageURL,
		})
		if err != nil {
			handleUserError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, u)
	}
}

func setAvailabilityHandler(svc UserService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req AvailabilityRequest
		if !decodeJSON(w, r, &req) {
			return
		}

		u, err := svc.SetAvailability(r.Context(), principal(r).UserID, req.Available)
		if err != nil {
			handleUserError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, u)
	}
}
