package appointment

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hackgods/emerald-details/internal/catalog"
	"github.com/hackgods/emerald-details/internal/config"
	"github.com/hackgods/emerald-details/internal/geo"
	"github.com/hackgods/emerald-details/internal/logging"
	redisclient "github.com/hackgods/emerald-details/internal/redis"
	"github.com/hackgods/emerald-details/internal/slot"
	"github.com/hackgods/emerald-details/internal/user"
	"github.com/hackgods/emerald-details/internal/vehicle"
)

// memRepo keeps slot availability next to appointments so Create can do the
// same claim-then-insert the Postgres repository does.
type memRepo struct {
	mu     sync.Mutex
	slots  map[uuid.UUID]bool
	appts    map[uuid.UUID]*Appointment
	events   []EventLog
	vehicles []vehicle.Vehicle
}

func newMemRepo() *memRepo {
	return &memRepo{slots: map[uuid.UUID]bool{}, appts: map[uuid.UUID]*Appointment{}}
}

func (r *memRepo) addSlot(id uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.slots[id] = true
}

func (r *memRepo) slotAvailable(id uuid.UUID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.slots[id]
}

func (r *memRepo) Create(_ context.Context, a *Appointment, saveVehicle bool) (*Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.slots[a.TimeSlot.ID] {
		return nil, ErrSlotUnavailable
	}
	r.slots[a.TimeSlot.ID] = false
	if saveVehicle {
		r.vehicles = append(r.vehicles, a.Vehicle)
	}
	cp := *a
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = time.Now()
	}
	cp.UpdatedAt = cp.CreatedAt
	r.appts[cp.ID] = &cp
	out := cp
	return &out, nil
}

func (r *memRepo) GetByID(_ context.Context, id uuid.UUID) (*Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.appts[id]
	if !ok {
		return nil, ErrAppointmentNotFound
	}
	cp := *a
	return &cp, nil
}

func (r *memRepo) List(_ context.Context, f Filter) ([]Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []Appointment{}
	for _, a := range r.appts {
		switch {
		case f.CustomerID != nil && a.CustomerID != *f.CustomerID:
			continue
		case f.EmployeeID != nil && (a.EmployeeID == nil || *a.EmployeeID != *f.EmployeeID):
			continue
		case f.Status != nil && a.Status != *f.Status:
			continue
		case f.PaymentStatus != nil && a.PaymentStatus != *f.PaymentStatus:
			continue
		case f.From != nil && a.TimeSlot.StartTime.Before(*f.From):
			continue
		case f.To != nil && !a.TimeSlot.StartTime.Before(*f.To):
			continue
		}
		out = append(out, *a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TimeSlot.StartTime.Before(out[j].TimeSlot.StartTime) })
	return out, nil
}

func (r *memRepo) CountByStatus(context.Context) (map[Status]int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	counts := map[Status]int{}
	for _, a := range r.appts {
		counts[a.Status]++
	}
	return counts, nil
}

func (r *memRepo) UpdateStatus(_ context.Context, id uuid.UUID, from, to Status) (*Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.appts[id]
	if !ok || a.Status != from {
		return nil, ErrAppointmentNotFound
	}
	a.Status = to
	cp := *a
	return &cp, nil
}

func (r *memRepo) AssignEmployee(_ context.Context, id, employeeID uuid.UUID, name string) (*Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.appts[id]
	if !ok || (a.Status != StatusPending && a.Status != StatusConfirmed) {
		return nil, ErrAppointmentNotFound
	}
	a.EmployeeID = &employeeID
	a.EmployeeName = &name
	a.Status = StatusConfirmed
	cp := *a
	return &cp, nil
}

func (r *memRepo) ClaimPayment(_ context.Context, id uuid.UUID) (*Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.appts[id]
	if !ok || a.Status == StatusCancelled {
		return nil, ErrPaymentNotOpen
	}
	if a.PaymentStatus != PaymentPending && a.PaymentStatus != PaymentFailed {
		return nil, ErrPaymentNotOpen
	}
	a.PaymentStatus = PaymentProcessing
	cp := *a
	return &cp, nil
}

func (r *memRepo) UpdatePayment(_ context.Context, id uuid.UUID, status PaymentStatus, intentID *string) (*Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.appts[id]
	if !ok {
		return nil, ErrAppointmentNotFound
	}
	a.PaymentStatus = status
	if intentID != nil {
		a.PaymentIntentID = intentID
	}
	cp := *a
	return &cp, nil
}

func (r *memRepo) ReleaseSlot(_ context.Context, slotID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.slots[slotID] = true
	return nil
}

func (r *memRepo) Delete(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.appts[id]; !ok {
		return ErrAppointmentNotFound
	}
	delete(r.appts, id)
	return nil
}

func (r *memRepo) InsertEvent(_ context.Context, ev EventLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return nil
}

func (r *memRepo) eventTypes() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, ev := range r.events {
		out = append(out, ev.EventType)
	}
	return out
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []string
}

func (p *recordingPublisher) Publish(_ context.Context, eventType, _ string, _ any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, eventType)
	return nil
}

type busyLocker struct{}

func (busyLocker) WithSlotLock(context.Context, uuid.UUID, func(context.Context) error) error {
	return redisclient.ErrLockNotAcquired
}

var (
	nyc, _  = time.LoadLocation("America/New_York")
	fixedAt = time.Date(2025, time.June, 18, 12, 0, 0, 0, nyc) // a Wednesday
)

func newTestService(t *testing.T, cfg config.Config) (*Service, *memRepo, *recordingPublisher) {
	t.Helper()
	repo := newMemRepo()
	pub := &recordingPublisher{}
	cfg.Location = nyc
	svc := NewService(repo, redisclient.NoopLocker{}, pub, cfg, logging.Discard())
	svc.now = func() time.Time { return fixedAt }
	return svc, repo, pub
}

func expressWash() catalog.ServicePackage {
	return catalog.ServicePackage{
		ID:              uuid.New(),
		Name:            "Express Wash",
		BasePrice:       decimal.NewFromInt(35),
		DurationMinutes: 30,
		Active:          true,
	}
}

func sedan() vehicle.Vehicle {
	return vehicle.Vehicle{ID: uuid.New(), Make: "Honda", Model: "Accord", Year: 2020, Color: "Blue", Size: vehicle.SizeSedan}
}

func draftFor(repo *memRepo, customer uuid.UUID) Draft {
	ts := slot.GenerateDailySlots(time.Date(2025, time.June, 20, 0, 0, 0, 0, nyc), nyc, nil)[0]
	repo.addSlot(ts.ID)
	return Draft{
		CustomerID:    customer,
		CustomerName:  "Dana Cole",
		CustomerPhone: "+15555550101",
		Vehicle:       sedan(),
		Service:       expressWash(),
		Slot:          ts,
		Location:      geo.Location{Latitude: 40.7, Longitude: -74.0, Address: "1 Main St"},
	}
}

func TestBook_PendingWithSnapshotPrice(t *testing.T) {
	svc, repo, pub := newTestService(t, config.Config{})
	d := draftFor(repo, uuid.New())

	appt, err := svc.Book(context.Background(), d)
	require.NoError(t, err)

	assert.Equal(t, StatusPending, appt.Status)
	assert.Equal(t, PaymentPending, appt.PaymentStatus)
	assert.True(t, appt.TotalPrice.Equal(decimal.RequireFromString("35.00")), appt.TotalPrice.String())
	assert.Equal(t, "$35.00", appt.FormattedPrice())
	assert.Equal(t, d.Slot.ID, appt.TimeSlot.ID)
	assert.False(t, appt.TimeSlot.Available)
	assert.False(t, repo.slotAvailable(d.Slot.ID))
	assert.Equal(t, []string{EventAppointmentCreated}, repo.eventTypes())
	assert.Equal(t, []string{EventAppointmentCreated}, pub.events)
}

func TestBook_PriceFollowsVehicleSize(t *testing.T) {
	svc, repo, _ := newTestService(t, config.Config{})
	d := draftFor(repo, uuid.New())
	d.Vehicle.Size = vehicle.SizeLuxury

	appt, err := svc.Book(context.Background(), d)
	require.NoError(t, err)
	assert.Equal(t, "56", appt.TotalPrice.String())
}

func TestBook_KeepsSubCentPrice(t *testing.T) {
	svc, repo, _ := newTestService(t, config.Config{})
	d := draftFor(repo, uuid.New())
	d.Service.BasePrice = decimal.RequireFromString("49.99")
	d.Vehicle.Size = vehicle.SizeSUV

	appt, err := svc.Book(context.Background(), d)
	require.NoError(t, err)
	assert.True(t, appt.TotalPrice.Equal(decimal.RequireFromString("64.987")), appt.TotalPrice.String())
	assert.True(t, appt.TotalPrice.Equal(appt.Service.PriceForVehicle(appt.Vehicle)))
	assert.Equal(t, "$64.99", appt.FormattedPrice())
}

func TestBook_SavesNewVehicleOnlyWhenSlotIsClaimed(t *testing.T) {
	svc, repo, _ := newTestService(t, config.Config{})
	customer := uuid.New()
	d := draftFor(repo, customer)
	d.Vehicle.ID = uuid.Nil
	d.SaveVehicle = true

	appt, err := svc.Book(context.Background(), d)
	require.NoError(t, err)
	require.Len(t, repo.vehicles, 1)
	assert.Equal(t, customer, repo.vehicles[0].OwnerID)
	assert.NotEqual(t, uuid.Nil, repo.vehicles[0].ID)
	assert.Equal(t, repo.vehicles[0].ID, appt.Vehicle.ID)

	// Same slot again: the claim fails and nothing new reaches the garage.
	_, err = svc.Book(context.Background(), d)
	assert.ErrorIs(t, err, ErrSlotUnavailable)
	assert.Len(t, repo.vehicles, 1)
}

func TestClaimPayment_OneWinner(t *testing.T) {
	svc, repo, _ := newTestService(t, config.Config{})
	appt, err := svc.Book(context.Background(), draftFor(repo, uuid.New()))
	require.NoError(t, err)

	claimed, err := svc.ClaimPayment(context.Background(), appt.ID)
	require.NoError(t, err)
	assert.Equal(t, PaymentProcessing, claimed.PaymentStatus)

	_, err = svc.ClaimPayment(context.Background(), appt.ID)
	assert.ErrorIs(t, err, ErrPaymentNotOpen)

	_, err = svc.UpdatePaymentStatus(context.Background(), appt.ID, PaymentFailed, nil)
	require.NoError(t, err)
	_, err = svc.ClaimPayment(context.Background(), appt.ID)
	assert.NoError(t, err, "a failed payment can be retried")
}

func TestBook_ConcurrentAttemptsClaimOnce(t *testing.T) {
	svc, repo, _ := newTestService(t, config.Config{})
	d := draftFor(repo, uuid.New())

	const attempts = 20
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		taken     int
	)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			draft := d
			draft.CustomerID = uuid.New()
			_, err := svc.Book(context.Background(), draft)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case errors.Is(err, ErrSlotUnavailable):
				taken++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, successes)
	assert.Equal(t, attempts-1, taken)
}

func TestBook_LockHeldElsewhere(t *testing.T) {
	svc, repo, _ := newTestService(t, config.Config{})
	svc.locker = busyLocker{}

	_, err := svc.Book(context.Background(), draftFor(repo, uuid.New()))
	assert.ErrorIs(t, err, ErrSlotBeingBooked)
}

func TestBook_Rejections(t *testing.T) {
	cases := []struct {
		name string
		edit func(d *Draft)
		want error
	}{
		{"inactive service", func(d *Draft) { d.Service.Active = false }, catalog.ErrServiceNotActive},
		{"no customer", func(d *Draft) { d.CustomerID = uuid.Nil }, ErrCustomerRequired},
		{"no address", func(d *Draft) { d.Location.Address = "" }, geo.ErrAddressRequired},
		{"slot taken", func(d *Draft) { d.Slot.Available = false }, ErrSlotUnavailable},
		{"slot started", func(d *Draft) {
			d.Slot.StartTime = fixedAt.Add(-time.Hour)
		}, ErrSlotInPast},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc, repo, _ := newTestService(t, config.Config{})
			d := draftFor(repo, uuid.New())
			tc.edit(&d)
			_, err := svc.Book(context.Background(), d)
			assert.ErrorIs(t, err, tc.want)
			assert.Empty(t, repo.appts)
		})
	}
}

func TestLifecycle_AssignStartComplete(t *testing.T) {
	svc, repo, _ := newTestService(t, config.Config{})
	ctx := context.Background()
	appt, err := svc.Book(ctx, draftFor(repo, uuid.New()))
	require.NoError(t, err)

	emp := slot.Employee{ID: uuid.New(), Name: "Riley"}
	employee := Actor{ID: emp.ID, Role: user.RoleEmployee}

	_, err = svc.Start(ctx, appt.ID, employee)
	assert.ErrorIs(t, err, ErrForbidden, "not assigned yet")

	confirmed, err := svc.AssignEmployee(ctx, appt.ID, emp)
	require.NoError(t, err)
	assert.Equal(t, StatusConfirmed, confirmed.Status)
	assert.Equal(t, "Riley", *confirmed.EmployeeName)

	_, err = svc.Complete(ctx, appt.ID, employee)
	assert.ErrorIs(t, err, ErrInvalidStatusTransition)

	started, err := svc.Start(ctx, appt.ID, employee)
	require.NoError(t, err)
	assert.Equal(t, StatusInProgress, started.Status)

	_, err = svc.Cancel(ctx, appt.ID, Actor{ID: appt.CustomerID, Role: user.RoleCustomer})
	assert.ErrorIs(t, err, ErrInvalidStatusTransition)

	done, err := svc.Complete(ctx, appt.ID, employee)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, done.Status)

	_, err = svc.AssignEmployee(ctx, appt.ID, emp)
	assert.ErrorIs(t, err, ErrInvalidStatusTransition)
}

func TestCancel(t *testing.T) {
	admin := Actor{ID: uuid.New(), Role: user.RoleAdmin}

	t.Run("from pending", func(t *testing.T) {
		svc, repo, _ := newTestService(t, config.Config{})
		customer := uuid.New()
		appt, err := svc.Book(context.Background(), draftFor(repo, customer))
		require.NoError(t, err)

		cancelled, err := svc.Cancel(context.Background(), appt.ID, Actor{ID: customer, Role: user.RoleCustomer})
		require.NoError(t, err)
		assert.Equal(t, StatusCancelled, cancelled.Status)
		assert.False(t, cancelled.CanBeCancelled())
		assert.False(t, repo.slotAvailable(appt.TimeSlot.ID), "slot stays booked by default")

		_, err = svc.Cancel(context.Background(), appt.ID, admin)
		assert.ErrorIs(t, err, ErrInvalidStatusTransition)
	})

	t.Run("from confirmed releases slot when enabled", func(t *testing.T) {
		svc, repo, _ := newTestService(t, config.Config{SlotReleaseOnCancel: true})
		appt, err := svc.Book(context.Background(), draftFor(repo, uuid.New()))
		require.NoError(t, err)
		_, err = svc.AssignEmployee(context.Background(), appt.ID, slot.Employee{ID: uuid.New(), Name: "Sam"})
		require.NoError(t, err)

		cancelled, err := svc.Cancel(context.Background(), appt.ID, admin)
		require.NoError(t, err)
		assert.Equal(t, StatusCancelled, cancelled.Status)
		assert.True(t, repo.slotAvailable(appt.TimeSlot.ID))
	})

	t.Run("other customer is forbidden", func(t *testing.T) {
		svc, repo, _ := newTestService(t, config.Config{})
		appt, err := svc.Book(context.Background(), draftFor(repo, uuid.New()))
		require.NoError(t, err)

		_, err = svc.Cancel(context.Background(), appt.ID, Actor{ID: uuid.New(), Role: user.RoleCustomer})
		assert.ErrorIs(t, err, ErrForbidden)
	})

	t.Run("from completed", func(t *testing.T) {
		svc, repo, _ := newTestService(t, config.Config{})
		appt, err := svc.Book(context.Background(), draftFor(repo, uuid.New()))
		require.NoError(t, err)
		repo.appts[appt.ID].Status = StatusCompleted

		_, err = svc.Cancel(context.Background(), appt.ID, admin)
		assert.ErrorIs(t, err, ErrInvalidStatusTransition)
	})
}

func TestStatusTransitions(t *testing.T) {
	allowed := map[Status][]Status{
		StatusPending:    {StatusConfirmed, StatusCancelled},
		StatusConfirmed:  {StatusInProgress, StatusCancelled},
		StatusInProgress: {StatusCompleted},
	}
	for _, from := range AllStatuses {
		for _, to := range AllStatuses {
			want := false
			for _, ok := range allowed[from] {
				if ok == to {
					want = true
				}
			}
			assert.Equal(t, want, from.CanTransitionTo(to), "%s -> %s", from, to)
		}
	}
}

func TestRevenue_BucketsByCreatedAt(t *testing.T) {
	svc, repo, _ := newTestService(t, config.Config{})

	add := func(price int64, created time.Time, status PaymentStatus) {
		id := uuid.New()
		repo.appts[id] = &Appointment{
			ID:            id,
			TotalPrice:    decimal.NewFromInt(price),
			PaymentStatus: status,
			CreatedAt:     created,
		}
	}
	add(100, fixedAt.Add(-time.Hour), PaymentPaid)                            // today
	add(50, time.Date(2025, time.June, 15, 9, 0, 0, 0, nyc), PaymentPaid)     // Sunday, this week
	add(25, time.Date(2025, time.June, 14, 23, 0, 0, 0, nyc), PaymentPaid)    // Saturday, last week
	add(10, time.Date(2025, time.May, 30, 10, 0, 0, 0, nyc), PaymentPaid)     // last month
	add(999, fixedAt.Add(-2*time.Hour), PaymentPending)                       // unpaid
	add(7, time.Date(2025, time.June, 16, 1, 0, 0, 0, time.UTC), PaymentPaid) // Sunday 21:00 in New York

	rev, err := svc.Revenue(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "192", rev.Total.String())
	assert.Equal(t, "182", rev.ThisMonth.String())
	assert.Equal(t, "157", rev.ThisWeek.String())
	assert.Equal(t, 5, rev.PaidCount)
}

func TestToday_FiltersBySlotDay(t *testing.T) {
	svc, repo, _ := newTestService(t, config.Config{})
	emp := uuid.New()
	other := uuid.New()

	add := func(start time.Time, employee uuid.UUID) {
		id := uuid.New()
		e := employee
		repo.appts[id] = &Appointment{ID: id, EmployeeID: &e, TimeSlot: slot.TimeSlot{StartTime: start}}
	}
	add(time.Date(2025, time.June, 18, 8, 0, 0, 0, nyc), emp)
	add(time.Date(2025, time.June, 18, 16, 0, 0, 0, nyc), other)
	add(time.Date(2025, time.June, 19, 8, 0, 0, 0, nyc), emp)

	all, err := svc.Today(context.Background(), nil)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	mine, err := svc.Today(context.Background(), &emp)
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, 8, mine[0].TimeSlot.StartTime.In(nyc).Hour())
}

func TestIsUpcoming(t *testing.T) {
	a := Appointment{Status: StatusConfirmed, TimeSlot: slot.TimeSlot{StartTime: fixedAt.Add(time.Hour)}}
	assert.True(t, a.IsUpcoming(fixedAt))

	a.Status = StatusCancelled
	assert.False(t, a.IsUpcoming(fixedAt))

	a.Status = StatusPending
	assert.False(t, a.IsUpcoming(fixedAt.Add(2*time.Hour)))
}
