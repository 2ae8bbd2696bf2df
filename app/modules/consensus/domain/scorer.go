package consensusdomain

import "math"

// DefaultKFactor is the classic "guess 2/3 of the average".
const DefaultKFactor = 2.0 / 3.0

// TieTolerance absorbs floating point noise when comparing distances.
const TieTolerance = 1e-12

// Winner is one participant at the minimum distance.
type Winner struct {
	Identity string  `json:"uni_id"`
	Number   int     `json:"number"`
	Distance float64 `json:"distance"`
}

// Outcome is the scored part of a game. It exists only when at least one
// entry verified.
type Outcome struct {
	Average     float64  `json:"average"`
	Target      float64  `json:"target"`
	MinDistance float64  `json:"min_distance"`
	Winners     []Winner `json:"winners"`
}

// Score attaches distances to verified entries and computes the outcome.
// It returns nil when nothing verified; that is a normal terminal state.
func Score(entries []ResolvedEntry, kFactor float64) *Outcome {
	var (
		sum   int
		count int
	)
	for i := range entries {
		entries[i].Distance = 0
		entries[i].HasDistance = false
		if entries[i].Verified {
			sum += entries[i].Number
			count++
		}
	}
	if count == 0 {
		return nil
	}

	avg := float64(sum) / float64(count)
	target := kFactor * avg

	minDist := math.Inf(1)
	for i := range entries {
		if !entries[i].Verified {
			continue
		}
		d := math.Abs(float64(entries[i].Number) - target)
		entries[i].Distance = d
		entries[i].HasDistance = true
		if d < minDist {
			minDist = d
		}
	}

	out := &Outcome{
		Average:     avg,
		Target:      target,
		MinDistance: minDist,
		Winners:     []Winner{},
	}
	for _, e := range entries {
		if e.HasDistance && math.Abs(e.Distance-minDist) < TieTolerance {
			out.Winners = append(out.Winners, Winner{
				Identity: e.Identity,
				Number:   e.Number,
				Distance: e.Distance,
			})
		}
	}
	return out
}
