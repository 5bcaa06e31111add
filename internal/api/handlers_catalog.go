package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/emerald-details/internal/geo"
	"github.com/hackgods/emerald-details/internal/slot"
)

const defaultSearchRadiusMeters = 50_000

func listActiveServicesHandler(svc CatalogService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		list, err := svc.ListActive(r.Context())
		if err != nil {
			handleCatalogError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, list)
	}
}

func listAllServicesHandler(svc CatalogService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		list, err := svc.ListAll(r.Context())
		if err != nil {
			handleCatalogError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, list)
	}
}

func createServiceHandler(svc CatalogService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req ServiceRequest
		if !decodeJSON(w, r, &req) {
			return
		}

		p, err := svc.Create(r.Context(), req.toPackage())
		if err != nil {
			handleCatalogError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, p)
	}
}

func updateServiceHandler(svc CatalogService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := uuidParam(w, r, "id")
		if !ok {
			return
		}
		var req ServiceRequest
		if !decodeJSON(w, r, &req) {
			return
		}

		pkg := req.toPackage()
		pkg.ID = id
		p, err := svc.Update(r.Context(), pkg)
		if err != nil {
			handleCatalogError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, p)
	}
}

func toggleServiceHandler(svc CatalogService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := uuidParam(w, r, "id")
		if !ok {
			return
		}

		p, err := svc.ToggleActive(r.Context(), id)
		if err != nil {
			handleCatalogError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, p)
	}
}

func deleteServiceHandler(svc CatalogService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := uuidParam(w, r, "id")
		if !ok {
			return
		}

		if err := svc.Delete(r.Context(), id); err != nil {
			handleCatalogError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func toSlotResponses(list []slot.TimeSlot, loc *time.Location) []SlotResponse {
	out := make([]SlotResponse, 0, len(list))
	for _, s := range list {
		out = append(out, SlotResponse{TimeSlot: s, TimeRange: s.FormattedTimeRange(loc)})
	}
	return out
}

// dateQuery reads ?date=YYYY-MM-DD, defaulting to today in loc.
func dateQuery(w http.ResponseWriter, r *http.Request, loc *time.Location) (time.Time, bool) {
	raw := r.URL.Query().Get("date")
	if raw == "" {
		return slot.StartOfDay(time.Now(), loc), true
	}
	date, err := parseDate(raw, loc)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_date", "date must be YYYY-MM-DD")
		return time.Time{}, false
	}
	return date, true
}

func availableSlotsHandler(svc SlotService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		date, ok := dateQuery(w, r, svc.Location())
		if !ok {
			return
		}

		list, err := svc.AvailableOn(r.Context(), date)
		if err != nil {
			handleSlotError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, toSlotResponses(list, svc.Location()))
	}
}

func listDaySlotsHandler(svc SlotService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		date, ok := dateQuery(w, r, svc.Location())
		if !ok {
			return
		}

		list, err := svc.ListDay(r.Context(), date)
		if err != nil {
			handleSlotError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, toSlotResponses(list, svc.Location()))
	}
}

func employeeFor(r *http.Request, users UserService, id uuid.UUID) (*slot.Employee, error) {
	u, err := users.Employee(r.Context(), id)
	if err != nil {
		return nil, err
	}
	return &slot.Employee{ID: u.ID, Name: u.Name}, nil
}

func generateSlotsHandler(svc SlotService, users UserService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req GenerateSlotsRequest
		if !decodeJSON(w, r, &req) {
			return
		}

		from, err := parseDate(req.From, svc.Location())
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_from", "from must be YYYY-MM-DD")
			return
		}
		to, err := parseDate(req.To, svc.Location())
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_to", "to must be YYYY-MM-DD")
			return
		}
		employeeID, err := optionalUUID(req.EmployeeID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_employee_id", "employee_id must be a valid UUID")
			return
		}

		var employee *slot.Employee
		if employeeID != nil {
			if employee, err = employeeFor(r, users, *employeeID); err != nil {
				handleUserError(w, r, err)
				return
			}
		}

		n, err := svc.GenerateRange(r.Context(), from, to, employee)
		if err != nil {
			handleSlotError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, GenerateSlotsResponse{Created: n})
	}
}

func assignSlotHandler(svc SlotService, users UserService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := uuidParam(w, r, "id")
		if !ok {
			return
		}
		var req AssignEmployeeRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		employeeID, err := uuid.Parse(req.EmployeeID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_employee_id", "employee_id must be a valid UUID")
			return
		}

		employee, err := employeeFor(r, users, employeeID)
		if err != nil {
			handleUserError(w, r, err)
			return
		}
		s, err := svc.AssignEmployee(r.Context(), id, *employee)
		if err != nil {
			handleSlotError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, SlotResponse{TimeSlot: *s, TimeRange: s.FormattedTimeRange(svc.Location())})
	}
}

func releaseSlotHandler(svc SlotService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := uuidParam(w, r, "id")
		if !ok {
			return
		}

		s, err := svc.Release(r.Context(), id)
		if err != nil {
			handleSlotError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, SlotResponse{TimeSlot: *s, TimeRange: s.FormattedTimeRange(svc.Location())})
	}
}

func deleteSlotHandler(svc SlotService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := uuidParam(w, r, "id")
		if !ok {
			return
		}

		if err := svc.Delete(r.Context(), id); err != nil {
			handleSlotError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func floatQuery(w http.ResponseWriter, r *http.Request, key string) (float64, bool) {
	v, err := strconv.ParseFloat(r.URL.Query().Get(key), 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_"+key, key+" must be a number")
		return 0, false
	}
	return v, true
}

func geocodeHandler(g geo.Geocoder) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		list, err := g.Geocode(r.Context(), r.URL.Query().Get("q"))
		if err != nil {
			handleGeoError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, list)
	}
}

func reverseGeocodeHandler(g geo.Geocoder) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		lat, ok := floatQuery(w, r, "lat")
		if !ok {
			return
		}
		lon, ok := floatQuery(w, r, "lon")
		if !ok {
			return
		}

		loc, err := g.Reverse(r.Context(), lat, lon)
		if err != nil {
			handleGeoError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, loc)
	}
}

// geoSearchHandler looks up q near lat/lon, within radius meters.
func geoSearchHandler(g geo.Geocoder) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		lat, ok := floatQuery(w, r, "lat")
		if !ok {
			return
		}
		lon, ok := floatQuery(w, r, "lon")
		if !ok {
			return
		}
		radius := float64(queryInt(r, "radius", defaultSearchRadiusMeters))

		list, err := g.Search(r.Context(), r.URL.Query().Get("q"), geo.Location{Latitude: lat, Longitude: lon}, radius)
		if err != nil {
			handleGeoError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, list)
	}
}
