package consensusservice

import (
	"cmp"
	"slices"
	"strconv"

	consensusdomain "github.com/Black-And-White-Club/beauty-contest/app/modules/consensus/domain"
)

// CommitRow is the commitment chosen for one identity.
type CommitRow struct {
	Timestamp string `json:"timestamp_utc"`
	Identity  string `json:"uni_id"`
	Commit    string `json:"commit"`
}

// RevealRow is a verified reveal with the digest recomputed from it.
type RevealRow struct {
	Timestamp    string `json:"timestamp_utc"`
	Identity     string `json:"uni_id"`
	Number       string `json:"number"`
	Nonce        string `json:"nonce"`
	PreimageHash string `json:"preimage_hash"`
	Verified     bool   `json:"verified"`
}

// LeaderboardRow is one resolved entry as displayed. Distance is nil for
// entries that did not verify.
type LeaderboardRow struct {
	Identity  string   `json:"uni_id"`
	Number    string   `json:"number"`
	Verified  bool     `json:"verified"`
	Reason    string   `json:"reason"`
	Distance  *float64 `json:"distance"`
	Commit    string   `json:"commit"`
	Nonce     string   `json:"nonce"`
	Timestamp string   `json:"timestamp_utc"`
}

// Summary is the results block. The pointer fields are nil when no entry
// verified.
type Summary struct {
	KFactor      float64                  `json:"k_factor"`
	Participants int                      `json:"participants_counted"`
	Average      *float64                 `json:"average"`
	Target       *float64                 `json:"target"`
	MinDistance  *float64                 `json:"min_distance"`
	Winners      []consensusdomain.Winner `json:"winners"`
}

// HasWinners reports whether anything verified.
func (s Summary) HasWinners() bool { return s.Average != nil }

// Export is every table derived from one GameResult.
type Export struct {
	Commits     []CommitRow      `json:"commits"`
	Reveals     []RevealRow      `json:"reveals"`
	Leaderboard []LeaderboardRow `json:"leaderboard"`
	Summary     Summary          `json:"summary"`
}

// BuildExport projects a result into its output tables. It only reads g.
func BuildExport(g consensusdomain.GameResult) Export {
	exp := Export{
		Commits:     []CommitRow{},
		Reveals:     []RevealRow{},
		Leaderboard: make([]LeaderboardRow, 0, len(g.Entries)),
		Summary: Summary{
			KFactor: g.Params.KFactor,
			Winners: []consensusdomain.Winner{},
		},
	}

	for _, e := range g.Entries {
		if e.Commitment != nil {
			exp.Commits = append(exp.Commits, CommitRow{
				Timestamp: e.Commitment.RawTimestamp,
				Identity:  e.Identity,
				Commit:    e.Commitment.Digest,
			})
		}
		if e.Verified {
			exp.Reveals = append(exp.Reveals, RevealRow{
				Timestamp:    e.Reveal.RawTimestamp,
				Identity:     e.Identity,
				Number:       displayNumber(e),
				Nonce:        e.Reveal.Nonce,
				PreimageHash: e.RecomputedDigest,
				Verified:     true,
			})
		}
	}
	slices.SortStableFunc(exp.Commits, func(a, b CommitRow) int {
		return cmp.Or(cmp.Compare(a.Identity, b.Identity), cmp.Compare(a.Timestamp, b.Timestamp))
	})
	slices.SortStableFunc(exp.Reveals, func(a, b RevealRow) int {
		return cmp.Or(cmp.Compare(a.Identity, b.Identity), cmp.Compare(a.Timestamp, b.Timestamp))
	})

	for _, e := range consensusdomain.RankEntries(g.Entries) {
		row := LeaderboardRow{
			Identity:  e.Identity,
			Number:    displayNumber(e),
			Verified:  e.Verified,
			Reason:    string(e.Reason),
			Nonce:     e.Reveal.Nonce,
			Timestamp: e.Reveal.RawTimestamp,
		}
		if e.Commitment != nil {
			row.Commit = e.Commitment.Digest
		}
		if e.HasDistance {
			d := e.Distance
			row.Distance = &d
		}
		exp.Leaderboard = append(exp.Leaderboard, row)
	}

	if o := g.Outcome; o != nil {
		avg, target, minDist := o.Average, o.Target, o.MinDistance
		exp.Summary.Participants = len(g.Valid())
		exp.Summary.Average = &avg
		exp.Summary.Target = &target
		exp.Summary.MinDistance = &minDist
		exp.Summary.Winners = slices.Clone(o.Winners)
	}
	return exp
}

// displayNumber shows the parsed integer when there is one and an empty cell
// otherwise.
func displayNumber(e consensusdomain.ResolvedEntry) string {
	if !e.HasNumber {
		return ""
	}
	return strconv.Itoa(e.Number)
}
