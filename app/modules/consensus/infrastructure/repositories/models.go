package consensusdb

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	consensusdomain "github.com/Black-And-White-Club/beauty-contest/app/modules/consensus/domain"
)

// Snapshot archives one consensus run. Snapshots are history only and are
// never fed back into a computation.
type Snapshot struct {
	bun.BaseModel `bun:"table:consensus_snapshots,alias:cs"`

	ID           uuid.UUID `bun:"id,pk,type:uuid" json:"id"`
	ComputedAt   time.Time `bun:"computed_at,notnull" json:"computed_at"`
	Trigger      string    `bun:"trigger,notnull" json:"trigger"`
	Finalized    bool      `bun:"finalized,notnull,default:false" json:"finalized"`
	LedgerURL    string    `bun:"ledger_url,nullzero" json:"ledger_url,omitempty"`
	KFactor      float64   `bun:"k_factor,notnull" json:"k_factor"`
	RangeMin     int       `bun:"range_min,notnull" json:"range_min"`
	RangeMax     int       `bun:"range_max,notnull" json:"range_max"`
	Participants int       `bun:"participants,notnull" json:"participants"`
	Valid        int       `bun:"valid,notnull" json:"valid"`
	Average      *float64  `bun:"average" json:"average"`
	Target       *float64  `bun:"target" json:"target"`
	MinDistance  *float64  `bun:"min_distance" json:"min_distance"`

	Winners     []consensusdomain.Winner `bun:"winners,type:jsonb" json:"winners"`
	Leaderboard json.RawMessage          `bun:"leaderboard,type:jsonb" json:"leaderboard,omitempty"`
	ResultsText string                   `bun:"results_text" json:"results_text,omitempty"`
}

// Summary drops the bulky columns for listings.
func (s Snapshot) Summary() Snapshot {
	s.Leaderboard = nil
	s.ResultsText = ""
	return s
}
