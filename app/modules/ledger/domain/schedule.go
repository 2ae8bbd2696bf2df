package ledgerdomain

import "time"

// Phase names the part of the contest that is currently open.
type Phase string

const (
	PhaseOpen    Phase = "open"
	PhaseCommit  Phase = "commit"
	PhaseBetween Phase = "between"
	PhaseReveal  Phase = "reveal"
	PhaseClosed  Phase = "closed"
)

// Schedule holds the phase boundaries. A zero time leaves that side open.
// Commits and reveals may overlap when the boundaries allow it.
type Schedule struct {
	CommitDeadline time.Time `json:"commit_deadline"`
	RevealOpen     time.Time `json:"reveal_open"`
	RevealClose    time.Time `json:"reveal_close"`
}

func (s Schedule) AllowsCommit(now time.Time) bool {
	return s.CommitDeadline.IsZero() || !now.After(s.CommitDeadline)
}

func (s Schedule) AllowsReveal(now time.Time) bool {
	if !s.RevealOpen.IsZero() && now.Before(s.RevealOpen) {
		return false
	}
	return s.RevealClose.IsZero() || !now.After(s.RevealClose)
}

// Check returns the window error for a submission of kind at now.
func (s Schedule) Check(kind Kind, now time.Time) error {
	switch kind {
	case KindCommit:
		if !s.AllowsCommit(now) {
			return ErrCommitWindowClosed
		}
	case KindReveal:
		if !s.RevealOpen.IsZero() && now.Before(s.RevealOpen) {
			return ErrRevealWindowNotOpen
		}
		if !s.AllowsReveal(now) {
			return ErrRevealWindowClosed
		}
	}
	return nil
}

// Status is the public view of the schedule at an instant.
type Status struct {
	Now              time.Time     `json:"now"`
	Phase            Phase         `json:"phase"`
	CommitOpen       bool          `json:"commit_open"`
	RevealOpen       bool          `json:"reveal_open"`
	CommitRemaining  time.Duration `json:"commit_remaining_ns,omitempty"`
	UntilRevealOpens time.Duration `json:"until_reveal_opens_ns,omitempty"`
	RevealRemaining  time.Duration `json:"reveal_remaining_ns,omitempty"`
	Schedule         Schedule      `json:"schedule"`
}

// StatusAt reports which windows are open at now and how long remains.
func (s Schedule) StatusAt(now time.Time) Status {
	st := Status{
		Now:        now.UTC(),
		CommitOpen: s.AllowsCommit(now),
		RevealOpen: s.AllowsReveal(now),
		Schedule:   s,
	}
	if st.CommitOpen && !s.CommitDeadline.IsZero() {
		st.CommitRemaining = s.CommitDeadline.Sub(now)
	}
	if !s.RevealOpen.IsZero() && now.Before(s.RevealOpen) {
		st.UntilRevealOpens = s.RevealOpen.Sub(now)
	}
	if st.RevealOpen && !s.RevealClose.IsZero() {
		st.RevealRemaining = s.RevealClose.Sub(now)
	}

	switch {
	case st.CommitOpen && st.RevealOpen:
		st.Phase = PhaseOpen
	case st.RevealOpen:
		st.Phase = PhaseReveal
	case st.CommitOpen:
		st.Phase = PhaseCommit
	case st.UntilRevealOpens > 0:
		st.Phase = PhaseBetween
	default:
		st.Phase = PhaseClosed
	}
	return st
}
