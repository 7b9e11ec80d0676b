package appointment

import (
	"context"
	"math/rand"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsBookable(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()
	cal := NewCalendarPolicy(DefaultPolicy(), repo, FixedClock{At: monday.Time()})

	d, err := cal.IsBookable(ctx, tuesday)
	require.NoError(t, err)
	assert.True(t, d.Allowed)

	d, err = cal.IsBookable(ctx, friday)
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.True(t, d.Weekend)
	assert.Equal(t, ReasonWeekend, d.Reason)

	d, err = cal.IsBookable(ctx, monday.AddDays(-1))
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Equal(t, ReasonPast, d.Reason)

	d, err = cal.IsBookable(ctx, monday)
	require.NoError(t, err)
	assert.True(t, d.Allowed, "today is still bookable")
}

func TestPastDatesKeepWeekendAndBlockedReasons(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()
	cal := NewCalendarPolicy(DefaultPolicy(), repo, FixedClock{At: monday.Time()})

	lastFriday := NewDate(2025, time.April, 25)
	d, err := cal.IsBookable(ctx, lastFriday)
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.True(t, d.Weekend)
	assert.Equal(t, ReasonWeekend, d.Reason)

	lastTuesday := NewDate(2025, time.April, 22)
	require.NoError(t, repo.SaveBlockedDate(ctx, &BlockedDate{ID: uuid.New(), Date: lastTuesday, Reason: "Public Holiday", Active: true}))
	d, err = cal.IsBookable(ctx, lastTuesday)
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Equal(t, "Public Holiday", d.Reason)

	d, err = cal.IsBookable(ctx, lastTuesday.AddDays(1))
	require.NoError(t, err)
	assert.Equal(t, ReasonPast, d.Reason)
}

func TestScenarioCHoldsAfterTheDateHasPassed(t *testing.T) {
	ctx := context.Background()
	labourDay := NewDate(2025, time.May, 1)
	f := newFixtureAt(t, NewDate(2026, time.October, 15), noAutoLink())
	f.catalog(t, "DM", SlotDefinition{Time: "08:00", Capacity: 10})

	_, err := f.svc.SetBlockedDate(ctx, BlockedDateRequest{Date: labourDay, Reason: "Public Holiday", Active: true})
	require.NoError(t, err)

	_, err = f.svc.Resolve(ctx, labourDay, "DM")
	require.ErrorIs(t, err, ErrDateUnavailable)
	pe, _ := AsPolicyError(err)
	assert.Equal(t, "Public Holiday", pe.Reason)
}

func TestIsBookableBlockedDate(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()
	cal := NewCalendarPolicy(DefaultPolicy(), repo, FixedClock{At: monday.Time()})

	require.NoError(t, repo.SaveBlockedDate(ctx, &BlockedDate{ID: uuid.New(), Date: tuesday, Reason: "Latihan Staff", Active: true}))
	d, err := cal.IsBookable(ctx, tuesday)
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.False(t, d.Weekend)
	assert.Equal(t, "Latihan Staff", d.Reason)

	wed := tuesday.AddDays(1)
	require.NoError(t, repo.SaveBlockedDate(ctx, &BlockedDate{ID: uuid.New(), Date: wed, Active: true}))
	d, err = cal.IsBookable(ctx, wed)
	require.NoError(t, err)
	assert.Equal(t, "date blocked", d.Reason)
}

func TestWeekendFollowsPolicy(t *testing.T) {
	ctx := context.Background()
	policy := Policy{WeekendDays: []time.Weekday{time.Saturday, time.Sunday}}
	cal := NewCalendarPolicy(policy, NewMemoryRepository(), FixedClock{At: monday.Time()})

	d, err := cal.IsBookable(ctx, friday)
	require.NoError(t, err)
	assert.True(t, d.Allowed)

	d, err = cal.IsBookable(ctx, friday.AddDays(2))
	require.NoError(t, err)
	assert.True(t, d.Weekend)
}

func TestWeekendAndBlockedAlwaysUnavailable(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, DefaultPolicy())
	f.catalog(t, "DM", SlotDefinition{Time: "08:00", Capacity: 3})
	f.catalog(t, "Fundus", SlotDefinition{Time: AnyTime, Capacity: 5})

	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 60; i++ {
		date := monday.AddDays(rng.Intn(240) - 120)
		caseType := []CaseType{"DM", "Fundus", "Unknown"}[rng.Intn(3)]

		weekend := DefaultPolicy().IsWeekend(date.Weekday())
		if !weekend {
			_, err := f.svc.SetBlockedDate(ctx, BlockedDateRequest{Date: date, Reason: "Cuti Khas", Active: true})
			require.NoError(t, err)
		}

		_, err := f.svc.Resolve(ctx, date, caseType)
		require.ErrorIs(t, err, ErrDateUnavailable, "date %s", date)
		pe, ok := AsPolicyError(err)
		require.True(t, ok)
		if weekend {
			assert.Equal(t, ReasonWeekend, pe.Reason)
		} else {
			assert.Equal(t, "Cuti Khas", pe.Reason)
		}
	}
}
