package consensusdomain

import "strings"

// Ledger field names. The parser keys on these verbatim.
const (
	FieldIdentity  = "uni_id"
	FieldCommit    = "commit"
	FieldNumber    = "number"
	FieldNonce     = "nonce"
	FieldTimestamp = "timestamp_utc"
)

// Row is one loosely-typed ledger row. Keys other than the ledger fields are
// ignored.
type Row map[string]string

func (r Row) field(key string) string {
	return strings.TrimSpace(r[key])
}

// Commitment is one commit row as ingested from the ledger.
type Commitment struct {
	Identity     string
	Digest       string
	RawTimestamp string
	Timestamp    Timestamp
}

// Reveal is one reveal row as ingested from the ledger.
type Reveal struct {
	Identity     string
	Number       string
	Nonce        string
	RawTimestamp string
	Timestamp    Timestamp
}

// ParseStats counts rows kept and dropped by the parser.
type ParseStats struct {
	CommitRows     int `json:"commit_rows"`
	CommitsDropped int `json:"commits_dropped"`
	RevealRows     int `json:"reveal_rows"`
	RevealsDropped int `json:"reveals_dropped"`
}

// Records groups parsed rows by identity, each list in arrival order.
type Records struct {
	Commits map[string][]Commitment
	Reveals map[string][]Reveal
	// RevealOrder lists identities in the order of their first reveal.
	RevealOrder []string
	Stats       ParseStats
}

// ParseRecords normalizes both streams in a single linear scan each.
// Malformed rows are dropped and only counted.
func ParseRecords(commitRows, revealRows []Row) Records {
	recs := Records{
		Commits: make(map[string][]Commitment),
		Reveals: make(map[string][]Reveal),
	}

	for _, row := range commitRows {
		recs.Stats.CommitRows++
		id := row.field(FieldIdentity)
		digest := row.field(FieldCommit)
		if id == "" || digest == "" {
			recs.Stats.CommitsDropped++
			continue
		}
		raw := row.field(FieldTimestamp)
		recs.Commits[id] = append(recs.Commits[id], Commitment{
			Identity:     id,
			Digest:       digest,
			RawTimestamp: raw,
			Timestamp:    ParseTimestamp(raw),
		})
	}

	for _, row := range revealRows {
		recs.Stats.RevealRows++
		id := row.field(FieldIdentity)
		num := row.field(FieldNumber)
		raw := row.field(FieldTimestamp)
		// An empty nonce is a legitimate (if weak) choice and is kept.
		if id == "" || num == "" || raw == "" {
			recs.Stats.RevealsDropped++
			continue
		}
		if _, seen := recs.Reveals[id]; !seen {
			recs.RevealOrder = append(recs.RevealOrder, id)
		}
		recs.Reveals[id] = append(recs.Reveals[id], Reveal{
			Identity:     id,
			Number:       num,
			Nonce:        row.field(FieldNonce),
			RawTimestamp: raw,
			Timestamp:    ParseTimestamp(raw),
		})
	}

	return recs
}
