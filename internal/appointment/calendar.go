package appointment

import (
	"context"
	"errors"
	"fmt"
	"time"
)

const (
	ReasonWeekend = "clinic closed on weekend"
	ReasonPast    = "date is in the past"
)

// Policy holds the clinic rules injected into the calendar and the booking service.
type Policy struct {
	WeekendDays    []time.Weekday
	AutoLinkOnBook bool
}

// DefaultPolicy closes the clinic on Friday and Saturday.
func DefaultPolicy() Policy {
	return Policy{
		WeekendDays:    []time.Weekday{time.Friday, time.Saturday},
		AutoLinkOnBook: true,
	}
}

func (p Policy) IsWeekend(wd time.Weekday) bool {
	for _, w := range p.WeekendDays {
		if w == wd {
			return true
		}
	}
	return false
}

type Decision struct {
	Allowed bool
	Weekend bool
	Reason  string
}

// CalendarPolicy decides whether a date can take bookings at all.
type CalendarPolicy struct {
	policy  Policy
	blocked BlockedDateStore
	clock   Clock
}

func NewCalendarPolicy(policy Policy, blocked BlockedDateStore, clock Clock) *CalendarPolicy {
	return &CalendarPolicy{policy: policy, blocked: blocked, clock: clock}
}

// IsBookable reads blocked dates on every call; admins may change them at any time.
// Weekend and blocked reasons win over the past-date reason.
func (c *CalendarPolicy) IsBookable(ctx context.Context, date Date) (Decision, error) {
	if c.policy.IsWeekend(date.Weekday()) {
		return Decision{Weekend: true, Reason: ReasonWeekend}, nil
	}

	b, err := c.blocked.ActiveBlockedDate(ctx, date)
	switch {
	case errors.Is(err, ErrBlockedDateNotFound):
	case err != nil:
		return Decision{}, fmt.Errorf("load blocked date: %w", err)
	default:
		reason := b.Reason
		if reason == "" {
			reason = "date blocked"
		}
		return Decision{Reason: reason}, nil
	}

	if date.Before(c.clock.Today()) {
		return Decision{Reason: ReasonPast}, nil
	}
	return Decision{Allowed: true}, nil
}
