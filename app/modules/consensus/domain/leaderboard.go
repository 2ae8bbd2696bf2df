package consensusdomain

import (
	"cmp"
	"slices"
)

// RankEntries returns a copy of entries in leaderboard order: verified first,
// then ascending distance with missing distances last, then identity.
func RankEntries(entries []ResolvedEntry) []ResolvedEntry {
	ranked := slices.Clone(entries)
	slices.SortStableFunc(ranked, compareForLeaderboard)
	return ranked
}

func compareForLeaderboard(a, b ResolvedEntry) int {
	if a.Verified != b.Verified {
		if a.Verified {
			return -1
		}
		return 1
	}
	if a.HasDistance != b.HasDistance {
		if a.HasDistance {
			return -1
		}
		return 1
	}
	if a.HasDistance {
		if c := cmp.Compare(a.Distance, b.Distance); c != 0 {
			return c
		}
	}
	return cmp.Compare(a.Identity, b.Identity)
}
