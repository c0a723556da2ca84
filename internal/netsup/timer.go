package netsup

import "time"

// Clock supplies monotonic time. time.Now carries a monotonic reading, so
// differences between two SystemClock values are immune to wall clock steps.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the process clock.
type SystemClock struct{}

// Now returns time.Now().
func (SystemClock) Now() time.Time { return time.Now() }

// Interval tracks the time since an event and whether a period has passed.
// The zero Interval has never been marked and is always due.
type Interval struct {
	Period time.Duration

	last   time.Time
	marked bool
}

// NewInterval returns an unmarked Interval with the given period.
func NewInterval(period time.Duration) Interval {
	return Interval{Period: period}
}

// Due reports whether the interval has never been marked or at least
// Period has elapsed since the last mark.
func (i *Interval) Due(now time.Time) bool {
	return !i.marked || now.Sub(i.last) >= i.Period
}

// Mark records now as the last event.
func (i *Interval) Mark(now time.Time) {
	i.last = now
	i.marked = true
}

// Reset forgets the last mark.
func (i *Interval) Reset() {
	i.last = time.Time{}
	i.marked = false
}

// elapsed returns the time since the last mark, or 0 if unmarked.
func (i *Interval) elapsed(now time.Time) time.Duration {
	if !i.marked {
		return 0
	}
	return now.Sub(i.last)
}
