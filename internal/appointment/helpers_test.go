package appointment

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/hackgods/clinic-slot-booking/internal/lock"
)

var (
	// monday is the clinic's "today" in most tests.
	monday  = NewDate(2025, time.April, 28)
	tuesday = NewDate(2025, time.April, 29)
	friday  = NewDate(2025, time.May, 2)
)

type fixture struct {
	svc   *Service
	repo  *MemoryRepository
	clock FixedClock
}

func newFixture(t *testing.T, policy Policy, opts ...Option) *fixture {
	t.Helper()
	return newFixtureAt(t, monday, policy, opts...)
}

func newFixtureAt(t *testing.T, today Date, policy Policy, opts ...Option) *fixture {
	t.Helper()
	repo := NewMemoryRepository()
	clock := FixedClock{At: today.Time().Add(8 * time.Hour)}
	svc := NewService(repo, lock.NewKeyedMutex(), policy, clock, zap.NewNop(), opts...)
	return &fixture{svc: svc, repo: repo, clock: clock}
}

func (f *fixture) catalog(t *testing.T, caseType CaseType, defs ...SlotDefinition) {
	t.Helper()
	_, err := f.svc.UpsertSlotCatalog(context.Background(), caseType, defs, "test")
	require.NoError(t, err)
}

func noAutoLink() Policy {
	p := DefaultPolicy()
	p.AutoLinkOnBook = false
	return p
}

func bookingFor(patientID string, caseType CaseType, date Date, timeSlot string) BookingRequest {
	return BookingRequest{
		PatientID:   patientID,
		PatientName: "Siti Aminah",
		Phone:       "012-3456789",
		CaseType:    caseType,
		Date:        date,
		TimeSlot:    timeSlot,
	}
}

func mondayOnly(t string, capacity int) SlotDefinition {
	return SlotDefinition{Time: t, Capacity: capacity, ActiveDays: []time.Weekday{time.Monday}}
}
