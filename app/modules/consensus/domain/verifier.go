package consensusdomain

import (
	"fmt"
	"strconv"
)

// Reason explains a verification verdict.
type Reason string

const (
	ReasonOK                   Reason = "ok"
	ReasonNoCommitBeforeReveal Reason = "no_commit_before_reveal"
	ReasonNumberNotInt         Reason = "number_not_int"
	ReasonOutOfRange           Reason = "out_of_range"
	ReasonHashMismatch         Reason = "hash_mismatch"
)

// Reasons lists every verdict in check order.
var Reasons = []Reason{
	ReasonOK,
	ReasonNoCommitBeforeReveal,
	ReasonNumberNotInt,
	ReasonOutOfRange,
	ReasonHashMismatch,
}

// Range is an inclusive integer interval.
type Range struct {
	Min int `json:"min" yaml:"min"`
	Max int `json:"max" yaml:"max"`
}

// DefaultRange is the classic 0..100 contest.
var DefaultRange = Range{Min: 0, Max: 100}

// Contains reports whether n lies within the range.
func (r Range) Contains(n int) bool {
	return r.Min <= n && n <= r.Max
}

func (r Range) String() string {
	return fmt.Sprintf("[%d, %d]", r.Min, r.Max)
}

// Verify runs the checks in order and stops at the first failure. The
// recomputed digest is kept whenever the number parsed, for audit.
func Verify(e *ResolvedEntry, allowed Range) {
	if n, err := strconv.Atoi(e.Reveal.Number); err == nil {
		e.Number = n
		e.HasNumber = true
		e.RecomputedDigest = Digest(Preimage(e.Identity, strconv.Itoa(n), e.Reveal.Nonce))
	}

	e.Verified = false
	switch {
	case e.Commitment == nil:
		e.Reason = ReasonNoCommitBeforeReveal
	case !e.HasNumber:
		e.Reason = ReasonNumberNotInt
	case !allowed.Contains(e.Number):
		e.Reason = ReasonOutOfRange
	case e.RecomputedDigest != e.Commitment.Digest:
		e.Reason = ReasonHashMismatch
	default:
		e.Verified = true
		e.Reason = ReasonOK
	}
}

// VerifyAll verifies every entry in place.
func VerifyAll(entries []ResolvedEntry, allowed Range) {
	for i := range entries {
		Verify(&entries[i], allowed)
	}
}
