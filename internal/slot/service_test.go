package slot

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hackgods/emerald-details/internal/logging"
)

type memRepo struct {
	mu    sync.Mutex
	slots map[uuid.UUID]TimeSlot
}

func newMemRepo() *memRepo { return &memRepo{slots: map[uuid.UUID]TimeSlot{}} }

func (m *memRepo) Insert(_ context.Context, s TimeSlot) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.slots[s.ID]; ok {
		return false, nil
	}
	m.slots[s.ID] = s
	return true, nil
}

func (m *memRepo) GetByID(_ context.Context, id uuid.UUID) (*TimeSlot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.slots[id]
	if !ok {
		return nil, ErrSlotNotFound
	}
	return &s, nil
}

func (m *memRepo) ListByDate(_ context.Context, from, to time.Time, availableOnly bool) ([]TimeSlot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []TimeSlot{}
	for _, s := range m.slots {
		if s.Date.Before(from) || !s.Date.Before(to) {
			continue
		}
		if availableOnly && !s.Available {
			continue
		}
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartTime.Before(out[j].StartTime) })
	return out, nil
}

func (m *memRepo) Claim(_ context.Context, id uuid.UUID) (*TimeSlot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.slots[id]
	if !ok {
		return nil, ErrSlotNotFound
	}
	if !s.Available {
		return nil, ErrSlotUnavailable
	}
	s.Available = false
	m.slots[id] = s
	return &s, nil
}

func (m *memRepo) Release(_ context.Context, id uuid.UUID) (*TimeSlot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.slots[id]
	if !ok {
		return nil, ErrSlotNotFound
	}
	s.Available = true
	m.slots[id] = s
	return &s, nil
}

func (m *memRepo) AssignEmployee(_ context.Context, id, employeeID uuid.UUID, employeeName string) (*TimeSlot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.slots[id]
	if !ok {
		return nil, ErrSlotNotFound
	}
	s.AssignedEmployeeID = &employeeID
	s.AssignedEmployeeName = &employeeName
	m.slots[id] = s
	return &s, nil
}

func (m *memRepo) Delete(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.slots[id]; !ok {
		return ErrSlotNotFound
	}
	delete(m.slots, id)
	return nil
}

func TestService_GenerateRangeIsIdempotent(t *testing.T) {
	loc := mustLoc(t)
	svc := NewService(newMemRepo(), loc, logging.Discard())
	ctx := context.Background()
	mon := time.Date(2025, 3, 10, 0, 0, 0, 0, loc)

	n, err := svc.GenerateRange(ctx, mon, mon.AddDate(0, 0, 6), nil)
	require.NoError(t, err)
	assert.Equal(t, 25, n)

	n, err = svc.GenerateRange(ctx, mon, mon.AddDate(0, 0, 6), nil)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestService_FillHorizonSharesDaysAcrossRuns(t *testing.T) {
	loc := mustLoc(t)
	repo := newMemRepo()
	svc := NewService(repo, loc, logging.Discard())
	ctx := context.Background()
	mon := time.Date(2025, 3, 10, 0, 0, 0, 0, loc)
	staff := []Employee{{ID: uuid.New(), Name: "Ana"}, {ID: uuid.New(), Name: "Ben"}}

	// Seed with detailers, then a worker run that knows no staff.
	n, err := svc.FillHorizon(ctx, mon, 6, staff)
	require.NoError(t, err)
	assert.Equal(t, 25, n)

	n, err = svc.FillHorizon(ctx, mon, 13, nil)
	require.NoError(t, err)
	assert.Equal(t, 25, n, "only the second week is new")

	wed, err := svc.ListDay(ctx, mon.AddDate(0, 0, 2))
	require.NoError(t, err)
	require.Len(t, wed, 5, "one slot per hour")
	want := DetailerForDay(mon.AddDate(0, 0, 2), loc, staff)
	for _, ts := range wed {
		require.NotNil(t, ts.AssignedEmployeeID)
		assert.Equal(t, want.ID, *ts.AssignedEmployeeID)
	}

	nextWed, err := svc.ListDay(ctx, mon.AddDate(0, 0, 9))
	require.NoError(t, err)
	require.Len(t, nextWed, 5)
	assert.Nil(t, nextWed[0].AssignedEmployeeID)
}

func TestDetailerForDay(t *testing.T) {
	loc := mustLoc(t)
	staff := []Employee{{ID: uuid.New()}, {ID: uuid.New()}, {ID: uuid.New()}}
	mon := time.Date(2025, 3, 10, 0, 0, 0, 0, loc)

	assert.Nil(t, DetailerForDay(mon, loc, nil))

	seen := map[uuid.UUID]int{}
	for i := 0; i < 3; i++ {
		seen[DetailerForDay(mon.AddDate(0, 0, i), loc, staff).ID]++
	}
	assert.Len(t, seen, 3, "consecutive days rotate through everyone")
	assert.Equal(t, DetailerForDay(mon.Add(20*time.Hour), loc, staff).ID, DetailerForDay(mon, loc, staff).ID,
		"any time of the same local day picks the same detailer")
}

func TestService_GenerateRangeRejectsInvertedRange(t *testing.T) {
	loc := mustLoc(t)
	svc := NewService(newMemRepo(), loc, logging.Discard())
	mon := time.Date(2025, 3, 10, 0, 0, 0, 0, loc)

	_, err := svc.GenerateRange(context.Background(), mon, mon.AddDate(0, 0, -2), nil)
	assert.ErrorIs(t, err, ErrInvalidRange)
}

func TestService_AvailableOnHidesClaimedSlots(t *testing.T) {
	loc := mustLoc(t)
	repo := newMemRepo()
	svc := NewService(repo, loc, logging.Discard())
	ctx := context.Background()
	wed := time.Date(2025, 3, 12, 0, 0, 0, 0, loc)

	_, err := svc.GenerateRange(ctx, wed, wed.AddDate(0, 0, 1), nil)
	require.NoError(t, err)

	open, err := svc.AvailableOn(ctx, wed.Add(13*time.Hour))
	require.NoError(t, err)
	require.Len(t, open, 5)
	assert.Equal(t, 8, open[0].StartTime.In(loc).Hour())

	_, err = repo.Claim(ctx, open[0].ID)
	require.NoError(t, err)
	_, err = repo.Claim(ctx, open[0].ID)
	assert.ErrorIs(t, err, ErrSlotUnavailable)

	open, err = svc.AvailableOn(ctx, wed)
	require.NoError(t, err)
	assert.Len(t, open, 4)

	all, err := svc.ListDay(ctx, wed)
	require.NoError(t, err)
	assert.Len(t, all, 5)

	_, err = svc.Release(ctx, all[0].ID)
	require.NoError(t, err)
	open, err = svc.AvailableOn(ctx, wed)
	require.NoError(t, err)
	assert.Len(t, open, 5)
}
