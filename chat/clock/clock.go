// Package clock stamps outgoing chat messages with a human readable time of day.
package clock

import "time"

// DefaultLayout renders hour:minute:second the way an en-US browser formats a
// numeric time of day, e.g. "3:04:05 PM".
const DefaultLayout = "3:04:05 PM"

// Clock abstracts the current time so stamps are reproducible in tests.
type Clock interface {
	Now() time.Time
}

// System reads the wall clock.
type System struct{}

// Now returns time.Now.
func (System) Now() time.Time { return time.Now() }

// Formatter produces the presentational timestamp attached to every message.
// Two stamps taken in the same second are identical.
type Formatter struct {
	clock  Clock
	layout string
	loc    *time.Location
}

// NewFormatter creates a Formatter. Zero values fall back to the system clock,
// DefaultLayout and the local time zone.
func NewFormatter(c Clock, layout string, loc *time.Location) *Formatter {
	if c == nil {
		c = System{}
	}
	if layout == "" {
		layout = DefaultLayout
	}
	if loc == nil {
		loc = time.Local
	}
	return &Formatter{clock: c, layout: layout, loc: loc}
}

// Stamp formats the current time.
func (f *Formatter) Stamp() string {
	return f.clock.Now().In(f.loc).Format(f.layout)
}
