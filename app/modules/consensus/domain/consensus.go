package consensusdomain

import (
	"errors"
	"fmt"
)

// ErrInvalidParams is returned by Params.Validate.
var ErrInvalidParams = errors.New("invalid consensus parameters")

// Params configures one consensus run. Defaults are applied by callers.
type Params struct {
	KFactor float64 `json:"k_factor"`
	Range   Range   `json:"range"`
}

// DefaultParams returns k = 2/3 over [0, 100].
func DefaultParams() Params {
	return Params{KFactor: DefaultKFactor, Range: DefaultRange}
}

// Validate checks that k is positive and the range is not inverted.
func (p Params) Validate() error {
	if !(p.KFactor > 0) {
		return fmt.Errorf("%w: k_factor must be positive, got %v", ErrInvalidParams, p.KFactor)
	}
	if p.Range.Min > p.Range.Max {
		return fmt.Errorf("%w: range %s is inverted", ErrInvalidParams, p.Range)
	}
	return nil
}

// GameResult is everything derived from one ledger snapshot.
type GameResult struct {
	Params Params
	// Entries holds one resolved entry per revealing identity, in order of
	// first reveal.
	Entries []ResolvedEntry
	// Outcome is nil when no entry verified.
	Outcome *Outcome
	Stats   ParseStats
}

// Valid returns the verified entries in entry order.
func (g GameResult) Valid() []ResolvedEntry {
	valid := make([]ResolvedEntry, 0, len(g.Entries))
	for _, e := range g.Entries {
		if e.Verified {
			valid = append(valid, e)
		}
	}
	return valid
}

// RunConsensus is the whole pipeline: parse, resolve, verify, score. It is
// pure and total: identical inputs always give identical results.
func RunConsensus(commitRows, revealRows []Row, params Params) GameResult {
	recs := ParseRecords(commitRows, revealRows)
	entries := Resolve(recs)
	VerifyAll(entries, params.Range)
	outcome := Score(entries, params.KFactor)
	return GameResult{
		Params:  params,
		Entries: entries,
		Outcome: outcome,
		Stats:   recs.Stats,
	}
}
