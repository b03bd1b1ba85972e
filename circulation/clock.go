package circulation

import "time"

// Clock supplies the current time for all deadline math.
// It is injectable so that due dates, pickup deadlines, and the derived
// overdue/expired predicates can be tested deterministically.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time {
	return time.Now()
}

// SystemClock returns a Clock backed by time.Now.
func SystemClock() Clock {
	return systemClock{}
}
