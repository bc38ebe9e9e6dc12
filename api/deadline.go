// File: api/deadline.go
// Author: momentics <momentics@gmail.com>
//
// Absolute deadlines for blocking waits.

package api

import (
	"math"
	"time"
)

// maxReachable bounds durations that still produce a reachable deadline.
const maxReachable = time.Duration(math.MaxInt64 / 2)

// Deadline is an absolute point in time bounding a wait.
// The zero value never expires.
type Deadline struct {
	when time.Time
}

// DeadlineFromDuration returns a deadline d from now.
// Non-positive durations yield an already passed deadline.
func DeadlineFromDuration(d time.Duration) Deadline {
	if d >= maxReachable {
		return Unreachable()
	}
	return Deadline{when: time.Now().Add(d)}
}

// DeadlineFromTime returns a deadline at t. A zero t never expires.
func DeadlineFromTime(t time.Time) Deadline {
	return Deadline{when: t}
}

// Unreachable returns a deadline that never expires.
func Unreachable() Deadline {
	return Deadline{}
}

// IsReachable reports whether the deadline can expire at all.
func (d Deadline) IsReachable() bool {
	return !d.when.IsZero()
}

// Passed reports whether the deadline has expired.
func (d Deadline) Passed() bool {
	return d.IsReachable() && !time.Now().Before(d.when)
}

// TimeLeft returns the time until expiry, zero once passed and
// math.MaxInt64 for unreachable deadlines.
func (d Deadline) TimeLeft() time.Duration {
	if !d.IsReachable() {
		return time.Duration(math.MaxInt64)
	}
	left := time.Until(d.when)
	if left < 0 {
		return 0
	}
	return left
}

// Time returns the expiry instant; zero for unreachable deadlines.
func (d Deadline) Time() time.Time {
	return d.when
}
