package catalog

import "time"

// Clock supplies the clinic's notion of today.
type Clock interface {
	Today() time.Time
}

// SystemClock reads the wall clock in the clinic's time zone.
type SystemClock struct {
	Location *time.Location
}

func (c SystemClock) Today() time.Time {
	loc := c.Location
	if loc == nil {
		loc = time.UTC
	}
	y, m, d := time.Now().In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// FixedClock always reports the same day.
type FixedClock time.Time

func (c FixedClock) Today() time.Time { return truncate(time.Time(c)) }
