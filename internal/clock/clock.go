// Package clock lets services read the current time through an interface so
// TTL checks can run against a simulated clock in tests.
package clock

import "time"

// Clocker abstracts time.Now.
type Clocker interface {
	Now() time.Time
}

// TimeClocker is the production clock backed by time.Now.
type TimeClocker struct{}

func New() *TimeClocker {
	return &TimeClocker{}
}

// Now returns the current system time in UTC.
func (*TimeClocker) Now() time.Time {
	return time.Now().UTC()
}
