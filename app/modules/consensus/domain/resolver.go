package consensusdomain

import "slices"

// ResolvedEntry is the authoritative view of one participant: the latest
// reveal, the latest commitment at or before it, and the verdict.
type ResolvedEntry struct {
	Identity   string
	Reveal     Reveal
	Commitment *Commitment

	Number    int
	HasNumber bool
	// RecomputedDigest is empty when the number did not parse.
	RecomputedDigest string

	Verified bool
	Reason   Reason

	Distance    float64
	HasDistance bool
}

// Resolve produces one entry per identity in recs.RevealOrder. Entries are
// not yet verified.
func Resolve(recs Records) []ResolvedEntry {
	entries := make([]ResolvedEntry, 0, len(recs.RevealOrder))
	for _, id := range recs.RevealOrder {
		reveal := latestReveal(recs.Reveals[id])
		entries = append(entries, ResolvedEntry{
			Identity:   id,
			Reveal:     reveal,
			Commitment: latestCommitmentAtOrBefore(recs.Commits[id], reveal.Timestamp),
		})
	}
	return entries
}

// latestReveal stable-sorts by timestamp and takes the last element, so equal
// timestamps resolve to the row that arrived last.
func latestReveal(reveals []Reveal) Reveal {
	sorted := slices.Clone(reveals)
	slices.SortStableFunc(sorted, func(a, b Reveal) int {
		return a.Timestamp.Compare(b.Timestamp)
	})
	return sorted[len(sorted)-1]
}

func latestCommitmentAtOrBefore(commits []Commitment, at Timestamp) *Commitment {
	candidates := make([]Commitment, 0, len(commits))
	for _, c := range commits {
		if !c.Timestamp.After(at) {
			candidates = append(candidates, c)
		}
	}
	if len(candidates) == 0 {
		return nil
	}
	slices.SortStableFunc(candidates, func(a, b Commitment) int {
		return a.Timestamp.Compare(b.Timestamp)
	})
	chosen := candidates[len(candidates)-1]
	return &chosen
}
