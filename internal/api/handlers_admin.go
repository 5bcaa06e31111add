package api

import (
	"net/http"

	"github.com/hackgods/emerald-details/internal/appointment"
	"github.com/hackgods/emerald-details/internal/slot"
	"github.com/hackgods/emerald-details/internal/user"
)

// listAppointmentsHandler filters by status, payment_status, customer_id,
// employee_id and a single business day (date=YYYY-MM-DD).
func listAppointmentsHandler(svc AppointmentService, slots SlotService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		f := appointment.Filter{
			Limit:  queryInt(r, "limit", 100),
			Offset: queryInt(r, "offset", 0),
		}

		if v := q.Get("status"); v != "" {
			s := appointment.Status(v)
			if !s.Valid() {
				writeError(w, http.StatusBadRequest, "invalid_status", "unknown appointment status")
				return
			}
			f.Status = &s
		}
		if v := q.Get("payment_status"); v != "" {
			p := appointment.PaymentStatus(v)
			if !p.Valid() {
				writeError(w, http.StatusBadRequest, "invalid_payment_status", "unknown payment status")
				return
			}
			f.PaymentStatus = &p
		}

		var err error
		if f.CustomerID, err = optionalUUID(q.Get("customer_id")); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_customer_id", "customer_id must be a valid UUID")
			return
		}
		if f.EmployeeID, err = optionalUUID(q.Get("employee_id")); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_employee_id", "employee_id must be a valid UUID")
			return
		}

		if v := q.Get("date"); v != "" {
			day, err := parseDate(v, slots.Location())
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid_date", "date must be YYYY-MM-DD")
				return
			}
			next := day.AddDate(0, 0, 1)
			f.From, f.To = &day, &next
		}

		list, err := svc.List(r.Context(), f)
		if err != nil {
			handleAppointmentError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, toAppointmentResponses(list))
	}
}

func adminTodayHandler(svc AppointmentService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		list, err := svc.Today(r.Context(), nil)
		if err != nil {
			handleAppointmentError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, toAppointmentResponses(list))
	}
}

func assignAppointmentHandler(svc AppointmentService, users UserService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := uuidParam(w, r, "id")
		if !ok {
			return
		}
		var req AssignEmployeeRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		employeeID, err := optionalUUID(req.EmployeeID)
		if err != nil || employeeID == nil {
			writeError(w, http.StatusBadRequest, "invalid_employee_id", "employee_id must be a valid UUID")
			return
		}

		e, err := users.Employee(r.Context(), *employeeID)
		if err != nil {
			handleUserError(w, r, err)
			return
		}
		appt, err := svc.AssignEmployee(r.Context(), id, slot.Employee{ID: e.ID, Name: e.Name})
		if err != nil {
			handleAppointmentError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, toAppointmentResponse(*appt))
	}
}

func deleteAppointmentHandler(svc AppointmentService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := uuidParam(w, r, "id")
		if !ok {
			return
		}

		if err := svc.Delete(r.Context(), id); err != nil {
			handleAppointmentError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// listUsersHandler serves ?role=employee|customer. Employees can be
// narrowed further with available=true.
func listUsersHandler(svc UserService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var (
			list []user.User
			err  error
		)
		switch user.Role(r.URL.Query().Get("role")) {
		case user.RoleEmployee:
			if r.URL.Query().Get("available") == "true" {
				list, err = svc.AvailableEmployees(r.Context())
			} else {
				list, err = svc.ListEmployees(r.Context())
			}
		case user.RoleCustomer:
			list, err = svc.ListCustomers(r.Context())
		default:
			writeError(w, http.StatusBadRequest, "invalid_role", "role must be employee or customer")
			return
		}
		if err != nil {
			handleUserError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, list)
	}
}

func deleteUserHandler(svc UserService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := uuidParam(w, r, "id")
		if !ok {
			return
		}

		if err := svc.Delete(r.Context(), principal(r).UserID, id); err != nil {
			handleUserError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func revenueHandler(svc AppointmentService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rev, err := svc.Revenue(r.Context())
		if err != nil {
			handleAppointmentError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, rev)
	}
}

func dashboardHandler(svc AppointmentService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		counts, err := svc.CountByStatus(r.Context())
		if err != nil {
			handleAppointmentError(w, r, err)
			return
		}
		rev, err := svc.Revenue(r.Context())
		if err != nil {
			handleAppointmentError(w, r, err)
			return
		}
		today, err := svc.Today(r.Context(), nil)
		if err != nil {
			handleAppointmentError(w, r, err)
			return
		}

		writeJSON(w, http.StatusOK, DashboardResponse{
			Counts:  counts,
			Revenue: rev,
			Today:   toAppointmentResponses(today),
		})
	}
}

func refundTransactionHandler(svc PaymentService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := uuidParam(w, r, "id")
		if !ok {
			return
		}

		txn, err := svc.Refund(r.Context(), id)
		if err != nil {
			handlePaymentError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, toTransactionResponse(*txn))
	}
}
