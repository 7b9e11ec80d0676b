package appointment

import "time"

type Clock interface {
	Now() time.Time
	Today() Date
}

// SystemClock reads the wall clock in the clinic's time zone.
type SystemClock struct {
	Location *time.Location
}

func (c SystemClock) Now() time.Time {
	if c.Location == nil {
		return time.Now()
	}
	return time.Now().In(c.Location)
}

func (c SystemClock) Today() Date {
	return DateOf(c.Now())
}

// FixedClock always reports the same instant.
type FixedClock struct {
	At time.Time
}

func (c FixedClock) Now() time.Time { return c.At }

func (c FixedClock) Today() Date { return DateOf(c.At) }
