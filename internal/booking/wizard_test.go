package booking

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/hackgods/emerald-details/internal/appointment"
	"github.com/hackgods/emerald-details/internal/catalog"
	"github.com/hackgods/emerald-details/internal/geo"
	"github.com/hackgods/emerald-details/internal/slot"
	"github.com/hackgods/emerald-details/internal/vehicle"
)

type fakeCatalog map[uuid.UUID]catalog.ServicePackage

func (c fakeCatalog) GetActive(_ context.Context, id uuid.UUID) (*catalog.ServicePackage, error) {
	p, ok := c[id]
	if !ok {
		return nil, catalog.ErrServiceNotFound
	}
	if !p.Active {
		return nil, catalog.ErrServiceNotActive
	}
	return &p, nil
}

type fakeGarage struct {
	vehicles map[uuid.UUID]vehicle.Vehicle
}

func (g *fakeGarage) Owned(_ context.Context, ownerID, id uuid.UUID) (*vehicle.Vehicle, error) {
	v, ok := g.vehicles[id]
	if !ok {
		return nil, vehicle.ErrVehicleNotFound
	}
	if v.OwnerID != ownerID {
		return nil, vehicle.ErrNotOwner
	}
	return &v, nil
}

type fakeSlots struct {
	loc   *time.Location
	slots []slot.TimeSlot
}

func (f fakeSlots) AvailableOn(_ context.Context, date time.Time) ([]slot.TimeSlot, error) {
	day := slot.StartOfDay(date, f.loc)
	var out []slot.TimeSlot
	for _, s := range f.slots {
		if s.Available && s.Date.Equal(day) {
			out = append(out, s)
		}
	}
	return out, nil
}

type MockBooker struct {
	mock.Mock
}

func (m *MockBooker) Book(ctx context.Context, d appointment.Draft) (*appointment.Appointment, error) {
	args := m.Called(ctx, d)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*appointment.Appointment), args.Error(1)
}

type MockGeocoder struct {
	mock.Mock
}

func (m *MockGeocoder) Geocode(ctx context.Context, query string) ([]geo.Location, error) {
	args := m.Called(ctx, query)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]geo.Location), args.Error(1)
}

func (m *MockGeocoder) Reverse(ctx context.Context, lat, lon float64) (*geo.Location, error) {
	args := m.Called(ctx, lat, lon)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*geo.Location), args.Error(1)
}

func (m *MockGeocoder) Search(ctx context.Context, query string, center geo.Location, radius float64) ([]geo.Location, error) {
	args := m.Called(ctx, query, center, radius)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]geo.Location), args.Error(1)
}

type fixture struct {
	flow     *Flow
	booker   *MockBooker
	geocoder *MockGeocoder
	garage   *fakeGarage
	customer Customer
	express  catalog.ServicePackage
	retired  catalog.ServicePackage
	car      vehicle.Vehicle
	day      time.Time
	slots    []slot.TimeSlot
}

func newFixture() *fixture {
	loc := time.UTC
	customer := Customer{ID: uuid.New(), Name: "Dana Cole", Phone: "+15555550101"}
	express := catalog.ServicePackage{ID: uuid.New(), Name: "Express Wash", BasePrice: decimal.NewFromInt(35), DurationMinutes: 30, Active: true}
	retired := catalog.ServicePackage{ID: uuid.New(), Name: "Wax Only", BasePrice: decimal.NewFromInt(20), DurationMinutes: 30}
	car := vehicle.Vehicle{ID: uuid.New(), OwnerID: customer.ID, Make: "Ford", Model: "F-150", Year: 2021, Color: "Red", Size: vehicle.SizeTruck}

	day := time.Date(2030, time.March, 4, 0, 0, 0, 0, loc) // Monday
	slots := slot.GenerateDailySlots(day, loc, nil)
	slots[0].Available = false

	f := &fixture{
		booker:   &MockBooker{},
		geocoder: &MockGeocoder{},
		garage:   &fakeGarage{vehicles: map[uuid.UUID]vehicle.Vehicle{car.ID: car}},
		customer: customer,
		express:  express,
		retired:  retired,
		car:      car,
		day:      day,
		slots:    slots,
	}
	f.flow = NewFlow(
		fakeCatalog{express.ID: express, retired.ID: retired},
		f.garage,
		fakeSlots{loc: loc, slots: slots},
		f.geocoder,
		f.booker,
	)
	return f
}

func (f *fixture) home() geo.Location {
	return geo.Location{Latitude: 40.0, Longitude: -75.0, Address: "12 Elm St"}
}

func TestWizard_StepsInOrder(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	w := f.flow.Start(f.customer)

	assert.Equal(t, SelectingService, w.Step())
	assert.False(t, w.CanAdvance())
	assert.ErrorIs(t, w.Next(), ErrIncompleteStep)
	assert.ErrorIs(t, w.Back(), ErrAtFirstStep)

	require.NoError(t, w.SelectService(ctx, f.express.ID))
	require.NoError(t, w.Next())
	assert.Equal(t, SelectingVehicle, w.Step())

	assert.ErrorIs(t, w.Next(), ErrIncompleteStep)
	require.NoError(t, w.SelectVehicle(ctx, f.car.ID))
	require.NoError(t, w.Next())
	assert.Equal(t, SelectingDateTime, w.Step())

	open, err := w.SelectDate(ctx, f.day.Add(15*time.Hour))
	require.NoError(t, err)
	assert.Len(t, open, 4, "the taken 8:00 slot is not offered")
	assert.ErrorIs(t, w.SelectSlot(f.slots[0].ID), ErrSlotNotOffered)
	assert.ErrorIs(t, w.Next(), ErrIncompleteStep)
	require.NoError(t, w.SelectSlot(f.slots[2].ID))

	require.NoError(t, w.Back())
	assert.Equal(t, SelectingVehicle, w.Step())
	assert.NotNil(t, w.Vehicle(), "selections survive going back")
	require.NoError(t, w.Next())
	require.NoError(t, w.Next())
	assert.Equal(t, SelectingLocation, w.Step())

	assert.ErrorIs(t, w.SetLocation(geo.Location{}), geo.ErrAddressRequired)
	require.NoError(t, w.SetLocation(f.home()))
	require.NoError(t, w.Next())
	assert.Equal(t, Reviewing, w.Step())
	assert.True(t, w.CanAdvance())
	assert.ErrorIs(t, w.Next(), ErrNotReviewing)

	assert.Equal(t, "49", w.Price().String()) // 35 × 1.4
}

func TestWizard_SelectDateClearsSlot(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	w := f.flow.Start(f.customer)

	_, err := w.SelectDate(ctx, f.day)
	require.NoError(t, err)
	require.NoError(t, w.SelectSlot(f.slots[1].ID))

	open, err := w.SelectDate(ctx, f.day.AddDate(0, 0, 1))
	require.NoError(t, err)
	assert.Empty(t, open)
	assert.Nil(t, w.Slot())

	_, err = w.SelectDate(ctx, time.Time{})
	assert.ErrorIs(t, err, ErrDateRequired)
}

func TestWizard_InactiveServiceRejected(t *testing.T) {
	f := newFixture()
	w := f.flow.Start(f.customer)
	assert.ErrorIs(t, w.SelectService(context.Background(), f.retired.ID), catalog.ErrServiceNotActive)
	assert.Nil(t, w.Service())
}

func TestWizard_OtherCustomersVehicle(t *testing.T) {
	f := newFixture()
	w := f.flow.Start(Customer{ID: uuid.New()})
	assert.ErrorIs(t, w.SelectVehicle(context.Background(), f.car.ID), vehicle.ErrNotOwner)
}

func TestApply_BooksAppointment(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	want := &appointment.Appointment{ID: uuid.New(), Status: appointment.StatusPending}

	f.booker.On("Book", ctx, mock.MatchedBy(func(d appointment.Draft) bool {
		return d.CustomerID == f.customer.ID &&
			d.Service.ID == f.express.ID &&
			d.Vehicle.ID == f.car.ID &&
			d.Slot.ID == f.slots[3].ID &&
			d.Location.Address == "12 Elm St" &&
			d.Notes != nil && *d.Notes == "gate code 42"
	})).Return(want, nil).Once()

	home := f.home()
	got, err := f.flow.Apply(ctx, f.customer, Selection{
		ServiceID: f.express.ID,
		VehicleID: &f.car.ID,
		Date:      f.day,
		SlotID:    f.slots[3].ID,
		Location:  &home,
		Notes:     "  gate code 42 ",
	})
	require.NoError(t, err)
	assert.Equal(t, want, got)
	f.booker.AssertExpectations(t)
}

func TestApply_GeocodesAddressAndAddsVehicle(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	f.geocoder.On("Geocode", ctx, "5 Pine Rd").Return([]geo.Location{
		{Latitude: 39.9, Longitude: -75.1, Address: "5 Pine Rd"},
		{Latitude: 41.0, Longitude: -73.0, Address: "5 Pine Rd, elsewhere"},
	}, nil).Once()
	f.booker.On("Book", ctx, mock.Anything).Return(&appointment.Appointment{ID: uuid.New()}, nil).Once()

	_, err := f.flow.Apply(ctx, f.customer, Selection{
		ServiceID:  f.express.ID,
		NewVehicle: &vehicle.Vehicle{Make: "Mini", Model: "Cooper", Year: 2019, Color: "Green", Size: vehicle.SizeCompact},
		Date:       f.day,
		SlotID:     f.slots[1].ID,
		Address:    "5 Pine Rd",
	})
	require.NoError(t, err)

	draft := f.booker.Calls[0].Arguments.Get(1).(appointment.Draft)
	assert.Equal(t, "5 Pine Rd", draft.Location.Address)
	assert.Equal(t, vehicle.SizeCompact, draft.Vehicle.Size)
	assert.True(t, draft.SaveVehicle, "the new vehicle is saved with the booking")
	assert.NotEqual(t, uuid.Nil, draft.Vehicle.ID)
	assert.Equal(t, f.customer.ID, draft.Vehicle.OwnerID)
	f.geocoder.AssertExpectations(t)
}

func TestApply_NewVehicleNotSavedWhenBookingFails(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	home := f.home()
	f.booker.On("Book", ctx, mock.Anything).Return(nil, appointment.ErrSlotUnavailable).Twice()

	sel := Selection{
		ServiceID:  f.express.ID,
		NewVehicle: &vehicle.Vehicle{Make: "Mini", Model: "Cooper", Year: 2019, Color: "Green", Size: vehicle.SizeCompact},
		Date:       f.day,
		SlotID:     f.slots[1].ID,
		Location:   &home,
	}
	for i := 0; i < 2; i++ {
		_, err := f.flow.Apply(ctx, f.customer, sel)
		assert.ErrorIs(t, err, appointment.ErrSlotUnavailable)
	}

	assert.Len(t, f.garage.vehicles, 1, "garage only holds the fixture car")
	for _, c := range f.booker.Calls {
		draft := c.Arguments.Get(1).(appointment.Draft)
		assert.True(t, draft.SaveVehicle)
	}
	f.booker.AssertExpectations(t)
}

func TestSelectVehicle_ExistingIsNotSavedAgain(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	home := f.home()
	f.booker.On("Book", ctx, mock.MatchedBy(func(d appointment.Draft) bool {
		return !d.SaveVehicle && d.Vehicle.ID == f.car.ID
	})).Return(&appointment.Appointment{ID: uuid.New()}, nil).Once()

	w := f.flow.Start(f.customer)
	require.NoError(t, w.walk(ctx, Selection{
		ServiceID:  f.express.ID,
		NewVehicle: &vehicle.Vehicle{Make: "Mini", Model: "Cooper", Year: 2019, Color: "Green", Size: vehicle.SizeCompact},
		Date:       f.day,
		SlotID:     f.slots[1].ID,
		Location:   &home,
	}))
	require.NoError(t, w.SelectVehicle(ctx, f.car.ID))

	_, err := w.Confirm(ctx)
	require.NoError(t, err)
	f.booker.AssertExpectations(t)
}

func TestApply_StepErrors(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	home := f.home()

	_, err := f.flow.Apply(ctx, f.customer, Selection{ServiceID: f.express.ID, Date: f.day, SlotID: f.slots[1].ID, Location: &home})
	var stepErr *StepError
	require.ErrorAs(t, err, &stepErr)
	assert.Equal(t, SelectingVehicle, stepErr.Step)
	assert.ErrorIs(t, err, ErrVehicleRequired)

	_, err = f.flow.Apply(ctx, f.customer, Selection{ServiceID: f.express.ID, VehicleID: &f.car.ID, Date: f.day, SlotID: f.slots[0].ID, Location: &home})
	require.ErrorAs(t, err, &stepErr)
	assert.Equal(t, SelectingDateTime, stepErr.Step)
	assert.ErrorIs(t, err, ErrSlotNotOffered)

	f.booker.AssertNotCalled(t, "Book", mock.Anything, mock.Anything)
}

func TestConfirm_SlotLostReturnsToDateTime(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	f.booker.On("Book", ctx, mock.Anything).Return(nil, appointment.ErrSlotUnavailable).Once()

	w := f.flow.Start(f.customer)
	home := f.home()
	require.NoError(t, w.walk(ctx, Selection{ServiceID: f.express.ID, VehicleID: &f.car.ID, Date: f.day, SlotID: f.slots[4].ID, Location: &home}))
	require.Equal(t, Reviewing, w.Step())

	_, err := w.Confirm(ctx)
	assert.ErrorIs(t, err, appointment.ErrSlotUnavailable)
	assert.Equal(t, SelectingDateTime, w.Step())
	assert.Nil(t, w.Slot())
	assert.NotNil(t, w.Location(), "other selections are kept")
}

func TestQuote_DoesNotPersist(t *testing.T) {
	f := newFixture()
	home := f.home()

	q, err := f.flow.Quote(context.Background(), f.customer, Selection{
		ServiceID:  f.express.ID,
		NewVehicle: &vehicle.Vehicle{Make: "Tesla", Model: "Model S", Year: 2022, Color: "White", Size: vehicle.SizeLuxury},
		Date:       f.day,
		SlotID:     f.slots[2].ID,
		Location:   &home,
	})
	require.NoError(t, err)
	assert.Equal(t, "$56.00", q.FormattedPrice)
	assert.Len(t, f.garage.vehicles, 1)
	f.booker.AssertNotCalled(t, "Book", mock.Anything, mock.Anything)
}
