package appointment

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/hackgods/clinic-slot-booking/internal/lock"
)

func TestBookScenarioA(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, noAutoLink())
	f.catalog(t, "DM", mondayOnly("08:00", 2))
	nextMonday := monday.AddDays(7)

	for want := 1; want >= 0; want-- {
		appt, err := f.svc.Book(ctx, bookingFor("900101-01-1234", "DM", nextMonday, "08:00"))
		require.NoError(t, err)
		assert.Equal(t, StatusPending, appt.Status)
		assert.Equal(t, "system", appt.CreatedBy)

		avail, err := f.svc.Resolve(ctx, nextMonday, "DM")
		require.NoError(t, err)
		assert.Equal(t, want, avail.Slots[0].Available)
	}

	_, err := f.svc.Book(ctx, bookingFor("900101-01-1234", "DM", nextMonday, "08:00"))
	require.ErrorIs(t, err, ErrSlotFull)
	pe, ok := AsPolicyError(err)
	require.True(t, ok)
	assert.Equal(t, KindSlotFull, pe.Kind)

	_, err = f.svc.Book(ctx, bookingFor("900101-01-1234", "DM", nextMonday.AddDays(1), "08:00"))
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestBookScenarioBAnyPool(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, noAutoLink())
	f.catalog(t, "Fundus", SlotDefinition{Time: AnyTime, Capacity: 5})

	for _, tm := range []string{"08:00", "09:30", AnyTime, "14:15", "08:00"} {
		appt, err := f.svc.Book(ctx, bookingFor("A1234567", "Fundus", tuesday, tm))
		require.NoError(t, err, tm)
		assert.Equal(t, tm, appt.TimeSlot)
	}

	avail, err := f.svc.Resolve(ctx, tuesday, "Fundus")
	require.NoError(t, err)
	assert.Equal(t, 0, avail.Slots[0].Available)
	assert.Equal(t, 5, avail.TotalBooked)

	_, err = f.svc.Book(ctx, bookingFor("A1234567", "Fundus", tuesday, "10:45"))
	assert.ErrorIs(t, err, ErrSlotFull)
}

func TestBookRejectsUnofferedTime(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, noAutoLink())
	f.catalog(t, "BA", SlotDefinition{Time: "08:30", Capacity: 8}, SlotDefinition{Time: "10:00", Capacity: 8})

	_, err := f.svc.Book(ctx, bookingFor("900101-01-1234", "BA", tuesday, "11:00"))
	require.ErrorIs(t, err, ErrInvalidSlot)
	pe, _ := AsPolicyError(err)
	assert.Contains(t, pe.Reason, "offered: 08:30, 10:00")
}

func TestBookRefusesUnavailableDates(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, noAutoLink())
	f.catalog(t, "DM", SlotDefinition{Time: "08:00", Capacity: 5})

	_, err := f.svc.Book(ctx, bookingFor("900101-01-1234", "DM", friday, "08:00"))
	assert.ErrorIs(t, err, ErrDateUnavailable)

	_, err = f.svc.Book(ctx, bookingFor("900101-01-1234", "DM", monday.AddDays(-7), "08:00"))
	require.ErrorIs(t, err, ErrDateUnavailable)
	pe, _ := AsPolicyError(err)
	assert.Equal(t, ReasonPast, pe.Reason)

	appts, err := f.repo.FindAppointments(ctx, AppointmentFilter{})
	require.NoError(t, err)
	assert.Empty(t, appts, "refused bookings leave no trace in the ledger")
}

func TestBookValidation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, noAutoLink())

	req := bookingFor("12345", "DM", Date{}, "8am")
	req.Phone = "0123"
	_, err := f.svc.Book(ctx, req)
	require.ErrorIs(t, err, ErrValidation)

	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Contains(t, verr.Fields, "patient_id")
	assert.Contains(t, verr.Fields, "phone")
	assert.Contains(t, verr.Fields, "date")
	assert.Contains(t, verr.Fields, "time_slot")
}

func TestBookNormalizesPassport(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, noAutoLink())
	f.catalog(t, "DM", SlotDefinition{Time: "08:00", Capacity: 5})

	appt, err := f.svc.Book(ctx, bookingFor(" a1234567 ", "DM", tuesday, "08:00"))
	require.NoError(t, err)
	assert.Equal(t, "A1234567", appt.PatientID)
}

func TestConcurrentBookingsNeverExceedCapacity(t *testing.T) {
	cases := []struct {
		name     string
		def      SlotDefinition
		requests int
	}{
		{"timed slot", SlotDefinition{Time: "09:00", Capacity: 7}, 40},
		{"any pool", SlotDefinition{Time: AnyTime, Capacity: 5}, 30},
		{"fewer requests than seats", SlotDefinition{Time: "09:00", Capacity: 12}, 8},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ctx := context.Background()
			f := newFixture(t, noAutoLink())
			f.catalog(t, "HPT", tc.def)

			var (
				wg         sync.WaitGroup
				mu         sync.Mutex
				ids        = map[uuid.UUID]bool{}
				full       int
				unexpected []error
			)
			for i := 0; i < tc.requests; i++ {
				wg.Add(1)
				go func(i int) {
					defer wg.Done()
					tm := "09:00"
					if tc.def.IsAnyTime() {
						tm = fmt.Sprintf("%02d:%02d", 8+i%6, (i*7)%60)
					}
					appt, err := f.svc.Book(ctx, bookingFor("900101-01-1234", "HPT", tuesday, tm))

					mu.Lock()
					defer mu.Unlock()
					switch {
					case err == nil:
						ids[appt.ID] = true
					case errors.Is(err, ErrSlotFull):
						full++
					default:
						unexpected = append(unexpected, err)
					}
				}(i)
			}
			wg.Wait()

			want := tc.def.Capacity
			if tc.requests < want {
				want = tc.requests
			}
			assert.Empty(t, unexpected)
			assert.Len(t, ids, want)
			assert.Equal(t, tc.requests-want, full)

			counts, err := f.repo.CountBooked(ctx, tuesday, "HPT")
			require.NoError(t, err)
			assert.Equal(t, want, NewOccupancy(counts).Total)
		})
	}
}

func TestCancelledAppointmentReleasesSeat(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, noAutoLink())
	f.catalog(t, "Dressing", SlotDefinition{Time: "09:00", Capacity: 1})

	first, err := f.svc.Book(ctx, bookingFor("900101-01-1234", "Dressing", tuesday, "09:00"))
	require.NoError(t, err)

	_, err = f.svc.Book(ctx, bookingFor("850505-05-5555", "Dressing", tuesday, "09:00"))
	require.ErrorIs(t, err, ErrSlotFull)

	cancelled, err := f.svc.UpdateStatus(ctx, first.ID, StatusCancelled, "admin")
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, cancelled.Status)

	_, err = f.svc.Book(ctx, bookingFor("850505-05-5555", "Dressing", tuesday, "09:00"))
	assert.NoError(t, err)
}

func TestUpdateStatusTransitions(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, noAutoLink())
	f.catalog(t, "DM", SlotDefinition{Time: "08:00", Capacity: 5})

	appt, err := f.svc.Book(ctx, bookingFor("900101-01-1234", "DM", tuesday, "08:00"))
	require.NoError(t, err)

	_, err = f.svc.UpdateStatus(ctx, appt.ID, StatusPending, "admin")
	assert.ErrorIs(t, err, ErrInvalidStatusTransition)

	_, err = f.svc.UpdateStatus(ctx, appt.ID, "Done", "admin")
	assert.ErrorIs(t, err, ErrValidation)

	missed, err := f.svc.UpdateStatus(ctx, appt.ID, StatusMissed, "admin")
	require.NoError(t, err)
	assert.Equal(t, StatusMissed, missed.Status)

	for _, to := range []AppointmentStatus{StatusCompleted, StatusCancelled, StatusMissed} {
		_, err = f.svc.UpdateStatus(ctx, appt.ID, to, "admin")
		assert.ErrorIs(t, err, ErrInvalidStatusTransition, "Tidak Hadir -> %s", to)
	}

	_, err = f.svc.UpdateStatus(ctx, uuid.New(), StatusCancelled, "admin")
	assert.ErrorIs(t, err, ErrAppointmentNotFound)

	var changed int
	for _, ev := range f.repo.Events() {
		if ev.EventType == EventAppointmentStatusChanged {
			changed++
		}
	}
	assert.Equal(t, 1, changed)
}

func TestDuplicateIDIsRetriedInternally(t *testing.T) {
	ctx := context.Background()
	taken := uuid.New()
	fresh := uuid.New()
	ids := []uuid.UUID{taken, taken, fresh}
	next := 0
	gen := func() uuid.UUID {
		id := ids[next]
		next++
		return id
	}

	f := newFixture(t, noAutoLink(), WithIDGenerator(gen))
	f.catalog(t, "DM", SlotDefinition{Time: "08:00", Capacity: 5})

	first, err := f.svc.Book(ctx, bookingFor("900101-01-1234", "DM", tuesday, "08:00"))
	require.NoError(t, err)
	assert.Equal(t, taken, first.ID)

	second, err := f.svc.Book(ctx, bookingFor("900101-01-1234", "DM", tuesday, "08:00"))
	require.NoError(t, err)
	assert.Equal(t, fresh, second.ID)
}

func TestDuplicateIDNeverSurfaces(t *testing.T) {
	ctx := context.Background()
	stuck := uuid.New()
	f := newFixture(t, noAutoLink(), WithIDGenerator(func() uuid.UUID { return stuck }))
	f.catalog(t, "DM", SlotDefinition{Time: "08:00", Capacity: 5})

	_, err := f.svc.Book(ctx, bookingFor("900101-01-1234", "DM", tuesday, "08:00"))
	require.NoError(t, err)

	_, err = f.svc.Book(ctx, bookingFor("900101-01-1234", "DM", tuesday, "08:00"))
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrDuplicateID))
}

type busyLocker struct{}

func (busyLocker) WithLock(context.Context, string, func(context.Context) error) error {
	return fmt.Errorf("%w: booking", lock.ErrLockNotAcquired)
}

func TestBusyLockMapsToSlotBeingBooked(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()
	svc := NewService(repo, busyLocker{}, noAutoLink(), FixedClock{At: monday.Time()}, zap.NewNop())

	_, err := svc.Book(ctx, bookingFor("900101-01-1234", "DM", tuesday, "08:00"))
	assert.ErrorIs(t, err, ErrSlotBeingBooked)
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []EventLog
}

func (p *recordingPublisher) Publish(_ context.Context, ev EventLog) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return nil
}

func TestBookRecordsAndPublishesEvent(t *testing.T) {
	ctx := context.Background()
	pub := &recordingPublisher{}
	f := newFixture(t, noAutoLink(), WithPublisher(pub))
	f.catalog(t, "DM", SlotDefinition{Time: "08:00", Capacity: 5})

	appt, err := f.svc.Book(ctx, bookingFor("900101-01-1234", "DM", tuesday, "08:00"))
	require.NoError(t, err)

	var created *EventLog
	for _, ev := range f.repo.Events() {
		if ev.EventType == EventAppointmentCreated {
			ev := ev
			created = &ev
		}
	}
	require.NotNil(t, created)
	require.NotNil(t, created.AppointmentID)
	assert.Equal(t, appt.ID, *created.AppointmentID)
	assert.JSONEq(t, `{"patient_id":"900101-01-1234","case_type":"DM","date":"2025-04-29","time_slot":"08:00","created_by":"system"}`, string(created.Payload))

	pub.mu.Lock()
	defer pub.mu.Unlock()
	stored := f.repo.Events()
	require.Len(t, pub.events, len(stored))
	for i := range stored {
		assert.NotZero(t, pub.events[i].ID)
		assert.Equal(t, stored[i].ID, pub.events[i].ID, "published events carry the stored id")
	}
}

func TestStatusChangesUseInjectedClock(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, noAutoLink())
	f.catalog(t, "DM", SlotDefinition{Time: "08:00", Capacity: 5})

	appt, err := f.svc.Book(ctx, bookingFor("900101-01-1234", "DM", tuesday, "08:00"))
	require.NoError(t, err)

	cancelled, err := f.svc.UpdateStatus(ctx, appt.ID, StatusCancelled, "admin")
	require.NoError(t, err)
	assert.Equal(t, f.clock.Now(), cancelled.UpdatedAt)

	past := &Appointment{ID: uuid.New(), PatientID: "900101-01-1234", CaseType: "DM", Date: monday.AddDays(-3), TimeSlot: "08:00", Status: StatusPending}
	require.NoError(t, f.repo.AppendAppointment(ctx, past))
	_, err = f.svc.MarkMissed(ctx)
	require.NoError(t, err)

	missed, err := f.svc.GetAppointment(ctx, past.ID)
	require.NoError(t, err)
	assert.Equal(t, f.clock.Now(), missed.UpdatedAt)
}

func TestMarkMissed(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, noAutoLink())

	past := &Appointment{ID: uuid.New(), PatientID: "900101-01-1234", CaseType: "DM", Date: monday.AddDays(-3), TimeSlot: "08:00", Status: StatusPending}
	done := &Appointment{ID: uuid.New(), PatientID: "900101-01-1234", CaseType: "DM", Date: monday.AddDays(-3), TimeSlot: "09:00", Status: StatusCompleted}
	today := &Appointment{ID: uuid.New(), PatientID: "900101-01-1234", CaseType: "DM", Date: monday, TimeSlot: "08:00", Status: StatusPending}
	for _, a := range []*Appointment{past, done, today} {
		require.NoError(t, f.repo.AppendAppointment(ctx, a))
	}

	n, err := f.svc.MarkMissed(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, err := f.svc.GetAppointment(ctx, past.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusMissed, got.Status)

	got, err = f.svc.GetAppointment(ctx, today.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusPending, got.Status)

	n, err = f.svc.MarkMissed(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestSearchAppointments(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, noAutoLink())
	f.catalog(t, "DM", SlotDefinition{Time: "08:00", Capacity: 50})

	for i := 0; i < 25; i++ {
		req := bookingFor(fmt.Sprintf("900101-01-%04d", i), "DM", tuesday, "08:00")
		if i == 3 {
			req.PatientName = "Ahmad Faizal"
		}
		_, err := f.svc.Book(ctx, req)
		require.NoError(t, err)
	}

	all, err := f.svc.SearchAppointments(ctx, AppointmentFilter{Date: &tuesday})
	require.NoError(t, err)
	assert.Len(t, all, 20, "default page size")

	byName, err := f.svc.SearchAppointments(ctx, AppointmentFilter{NameQuery: "faizal"})
	require.NoError(t, err)
	require.Len(t, byName, 1)
	assert.Equal(t, "900101-01-0003", byName[0].PatientID)

	tail, err := f.svc.SearchAppointments(ctx, AppointmentFilter{Offset: 20, Limit: 10})
	require.NoError(t, err)
	assert.Len(t, tail, 5)

	_, err = f.svc.GetAppointment(ctx, uuid.New())
	assert.ErrorIs(t, err, ErrAppointmentNotFound)
}

func TestBookingsOnDifferentKeysDoNotWait(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	km := lock.NewKeyedMutex()
	repo := NewMemoryRepository()
	svc := NewService(repo, km, noAutoLink(), FixedClock{At: monday.Time()}, zap.NewNop())
	_, err := svc.UpsertSlotCatalog(ctx, "DM", []SlotDefinition{{Time: "08:00", Capacity: 5}}, "test")
	require.NoError(t, err)

	held := make(chan struct{})
	release := make(chan struct{})
	go func() {
		_ = km.WithLock(ctx, bookingLockKey(tuesday, "HPT"), func(context.Context) error {
			close(held)
			<-release
			return nil
		})
	}()
	<-held
	defer close(release)

	_, err = svc.Book(ctx, bookingFor("900101-01-1234", "DM", tuesday, "08:00"))
	assert.NoError(t, err)
}
