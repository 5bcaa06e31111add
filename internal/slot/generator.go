package slot

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// DailyStartHours are the local start hours of the bookable windows.
var DailyStartHours = []int{8, 10, 12, 14, 16}

const SlotLength = 2 * time.Hour

// slotNamespace seeds deterministic slot ids so regenerating a day is a no-op
// for slots that already exist.
var slotNamespace = uuid.MustParse("6f1c7a52-4c1e-4b8e-9f0e-2d7c5b0a9e11")

// SlotID derives the id of the slot starting at hour on day for employee.
func SlotID(day time.Time, hour int, employee *Employee) uuid.UUID {
	emp := "unassigned"
	if employee != nil {
		emp = employee.ID.String()
	}
	key := fmt.Sprintf("%s|%02d|%s", day.Format("2006-01-02"), hour, emp)
	return uuid.NewSHA1(slotNamespace, []byte(key))
}

// GenerateDailySlots returns the five 2h windows of date in loc, all
// available and optionally pre-assigned to employee. It has no side effects.
func GenerateDailySlots(date time.Time, loc *time.Location, employee *Employee) []TimeSlot {
	day := StartOfDay(date, loc)
	slots := make([]TimeSlot, 0, len(DailyStartHours))

	for _, hour := range DailyStartHours {
		start := time.Date(day.Year(), day.Month(), day.Day(), hour, 0, 0, 0, loc)
		s := TimeSlot{
			ID:        SlotID(day, hour, employee),
			Date:      day,
			StartTime: start,
			EndTime:   start.Add(SlotLength),
			Available: true,
		}
		if employee != nil {
			id, name := employee.ID, employee.Name
			s.AssignedEmployeeID = &id
			s.AssignedEmployeeName = &name
		}
		slots = append(slots, s)
	}
	return slots
}

// IsBusinessDay reports whether slots are offered on t's local weekday.
func IsBusinessDay(t time.Time, loc *time.Location) bool {
	switch t.In(loc).Weekday() {
	case time.Saturday, time.Sunday:
		return false
	default:
		return true
	}
}

// GenerateForRange generates slots for every weekday in [start, end],
// both days inclusive.
func GenerateForRange(start, end time.Time, loc *time.Location, employee *Employee) []TimeSlot {
	first := StartOfDay(start, loc)
	last := StartOfDay(end, loc)

	var out []TimeSlot
	for d := first; !d.After(last); d = d.AddDate(0, 0, 1) {
		if !IsBusinessDay(d, loc) {
			continue
		}
		out = append(out, GenerateDailySlots(d, loc, employee)...)
	}
	return out
}
