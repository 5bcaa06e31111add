package slot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

var ErrInvalidRange = errors.New("range end is before range start")

type Service struct {
	repo   Repository
	loc    *time.Location
	logger *slog.Logger
}

func NewService(repo Repository, loc *time.Location, logger *slog.Logger) *Service {
	if loc == nil {
		loc = time.UTC
	}
	return &Service{repo: repo, loc: loc, logger: logger}
}

func (s *Service) Location() *time.Location { return s.loc }

// GenerateRange persists the weekday slots in [from, to] and returns how many
// were new. Each slot is written on its own; a failure stops the run and
// returns what was written so far.
func (s *Service) GenerateRange(ctx context.Context, from, to time.Time, employee *Employee) (int, error) {
	if StartOfDay(to, s.loc).Before(StartOfDay(from, s.loc)) {
		return 0, ErrInvalidRange
	}

	created := 0
	for _, ts := range GenerateForRange(from, to, s.loc, employee) {
		inserted, err := s.repo.Insert(ctx, ts)
		if err != nil {
			return created, fmt.Errorf("generate slots: %w", err)
		}
		if inserted {
			created++
		}
	}

	s.logger.Info("slots generated",
		"from", StartOfDay(from, s.loc).Format("2006-01-02"),
		"to", StartOfDay(to, s.loc).Format("2006-01-02"),
		"created", created,
	)
	return created, nil
}

// DetailerForDay picks the detailer who owns day's slots. The choice depends
// only on the calendar date and the order of staff.
func DetailerForDay(day time.Time, loc *time.Location, staff []Employee) *Employee {
	if len(staff) == 0 {
		return nil
	}
	y, m, d := day.In(loc).Date()
	n := time.Date(y, m, d, 0, 0, 0, 0, time.UTC).Unix() / 86400
	e := staff[int(n%int64(len(staff)))]
	return &e
}

// FillHorizon generates slots for the business days in [from, from+days]
// that have none yet, assigning each day with DetailerForDay. Days that
// already hold slots are left alone, so the seed and the worker can both
// run against the same database without stacking a second set per hour.
func (s *Service) FillHorizon(ctx context.Context, from time.Time, days int, staff []Employee) (int, error) {
	if days < 0 {
		return 0, ErrInvalidRange
	}
	start := StartOfDay(from, s.loc)

	created, filled := 0, 0
	for i := 0; i <= days; i++ {
		day := start.AddDate(0, 0, i)
		if !IsBusinessDay(day, s.loc) {
			continue
		}
		existing, err := s.repo.ListByDate(ctx, day, day.AddDate(0, 0, 1), false)
		if err != nil {
			return created, fmt.Errorf("check day %s: %w", day.Format("2006-01-02"), err)
		}
		if len(existing) > 0 {
			continue
		}
		for _, ts := range GenerateDailySlots(day, s.loc, DetailerForDay(day, s.loc, staff)) {
			inserted, err := s.repo.Insert(ctx, ts)
			if err != nil {
				return created, fmt.Errorf("generate slots: %w", err)
			}
			if inserted {
				created++
			}
		}
		filled++
	}

	s.logger.Info("slot horizon filled",
		"from", start.Format("2006-01-02"),
		"days", days,
		"days_filled", filled,
		"created", created,
	)
	return created, nil
}

// AvailableOn lists the open slots of the local day containing date.
func (s *Service) AvailableOn(ctx context.Context, date time.Time) ([]TimeSlot, error) {
	day := StartOfDay(date, s.loc)
	slots, err := s.repo.ListByDate(ctx, day, day.AddDate(0, 0, 1), true)
	if err != nil {
		return nil, fmt.Errorf("list available slots: %w", err)
	}
	return slots, nil
}

// ListDay returns every slot of the day, booked or not.
func (s *Service) ListDay(ctx context.Context, date time.Time) ([]TimeSlot, error) {
	day := StartOfDay(date, s.loc)
	slots, err := s.repo.ListByDate(ctx, day, day.AddDate(0, 0, 1), false)
	if err != nil {
		return nil, fmt.Errorf("list slots: %w", err)
	}
	return slots, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*TimeSlot, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) Release(ctx context.Context, id uuid.UUID) (*TimeSlot, error) {
	return s.repo.Release(ctx, id)
}

func (s *Service) AssignEmployee(ctx context.Context, id uuid.UUID, employee Employee) (*TimeSlot, error) {
	return s.repo.AssignEmployee(ctx, id, employee.ID, employee.Name)
}

func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	return s.repo.Delete(ctx, id)
}
