package slot

import (
	"time"

	"github.com/google/uuid"
)

type TimeSlot struct {
	ID                   uuid.UUID  `json:"id"`
	Date                 time.Time  `json:"date"`
	StartTime            time.Time  `json:"start_time"`
	EndTime              time.Time  `json:"end_time"`
	Available            bool       `json:"is_available"`
	AssignedEmployeeID   *uuid.UUID `json:"assigned_employee_id,omitempty"`
	AssignedEmployeeName *string    `json:"assigned_employee_name,omitempty"`
	CreatedAt            time.Time  `json:"created_at"`
}

// Employee optionally pre-assigns generated slots to a detailer.
type Employee struct {
	ID   uuid.UUID
	Name string
}

// FormattedTimeRange renders e.g. "8:00 AM - 10:00 AM" in loc.
func (s TimeSlot) FormattedTimeRange(loc *time.Location) string {
	return s.StartTime.In(loc).Format("3:04 PM") + " - " + s.EndTime.In(loc).Format("3:04 PM")
}

func (s TimeSlot) FormattedDate(loc *time.Location) string {
	return s.Date.In(loc).Format("Jan 2, 2006")
}

// StartOfDay truncates t to local midnight in loc.
func StartOfDay(t time.Time, loc *time.Location) time.Time {
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}
