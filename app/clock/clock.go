// Package clock abstracts the wall clock so phase windows and relative
// time input can be tested deterministically.
package clock

import "time"

// Clock tells the time.
type Clock interface {
	Now() time.Time
}

// Real is the system clock in UTC.
type Real struct{}

func (Real) Now() time.Time { return time.Now().UTC() }

// Anchor always returns the same instant. Relative input such as "tomorrow
// 9am" is resolved against it, so a config file parses identically no matter
// when a retry happens.
type Anchor struct {
	anchor time.Time
}

// NewAnchor anchors at t, or at the current time when t is zero.
func NewAnchor(t time.Time) Anchor {
	if t.IsZero() {
		return Anchor{anchor: time.Now().UTC()}
	}
	return Anchor{anchor: t.UTC()}
}

func (a Anchor) Now() time.Time { return a.anchor }

// Fake is a settable clock for tests.
type Fake struct {
	NowFn func() time.Time
}

func (f *Fake) Now() time.Time {
	if f.NowFn != nil {
		return f.NowFn()
	}
	return time.Now().UTC()
}

// At returns a fake clock frozen at t.
func At(t time.Time) *Fake {
	return &Fake{NowFn: func() time.Time { return t }}
}
