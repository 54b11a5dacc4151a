package util

import "time"

// Clock yields the current time. Stores take one so expiry can be driven in tests.
type Clock func() time.Time

// NowUTC is the production Clock.
func NowUTC() time.Time {
	return time.Now().UTC()
}

// OrNow returns c, or NowUTC when c is nil.
func (c Clock) OrNow() Clock {
	if c == nil {
		return NowUTC
	}
	return c
}
