package chrono

import "time"

// TimeAPI is the interface that anything depending on the system clock should use.
type TimeAPI interface {
	Now() time.Time
}

// StandardTime is the standard implementation of TimeAPI using the standard library, times are
// returned in the local timezone.
type StandardTime struct{}

func NewStandardTime() StandardTime {
	return StandardTime{}
}

func (StandardTime) Now() time.Time {
	return time.Now()
}

// FixedTime always returns the same instant, advancing it by Step on every call when Step is set.
type FixedTime struct {
	Current time.Time
	Step    time.Duration
}

func (f *FixedTime) Now() time.Time {
	now := f.Current
	f.Current = f.Current.Add(f.Step)
	return now
}
