package ledgerdomain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	consensusdomain "github.com/Black-And-White-Club/beauty-contest/app/modules/consensus/domain"
)

// MaxIdentityLength bounds uni_id in runes.
const MaxIdentityLength = 64

// Kind is the submission discriminator on the wire.
type Kind string

const (
	KindCommit Kind = "commit"
	KindReveal Kind = "reveal"
)

// Table names accepted by the ?table= selector.
type Table string

const (
	TableCommits Table = "commits"
	TableReveals Table = "reveals"
)

// ParseTable maps a selector onto a table.
func ParseTable(s string) (Table, error) {
	switch Table(strings.ToLower(strings.TrimSpace(s))) {
	case TableCommits:
		return TableCommits, nil
	case TableReveals:
		return TableReveals, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownTable, s)
}

// Kind returns the record kind stored in the table.
func (t Table) Kind() Kind {
	if t == TableReveals {
		return KindReveal
	}
	return KindCommit
}

// Columns returns the CSV header of the table.
func (t Table) Columns() []string {
	if t == TableReveals {
		return []string{
			consensusdomain.FieldTimestamp,
			consensusdomain.FieldIdentity,
			consensusdomain.FieldNumber,
			consensusdomain.FieldNonce,
		}
	}
	return []string{
		consensusdomain.FieldTimestamp,
		consensusdomain.FieldIdentity,
		consensusdomain.FieldCommit,
	}
}

// Number is a reveal number as sent. Clients send either a JSON number or a
// string; both are kept as their decimal text.
type Number string

func (n *Number) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*n = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*n = Number(s)
		return nil
	}
	var num json.Number
	if err := json.Unmarshal(data, &num); err != nil {
		return fmt.Errorf("number must be a JSON number or string: %w", err)
	}
	*n = Number(num.String())
	return nil
}

// Submission is the POST body of the ledger.
type Submission struct {
	Kind     Kind   `json:"kind"`
	Identity string `json:"uni_id"`
	Commit   string `json:"commit,omitempty"`
	Number   Number `json:"number,omitempty"`
	Nonce    string `json:"nonce,omitempty"`
}

// Normalize trims the identity and lowercases the digest.
func (s Submission) Normalize() Submission {
	s.Kind = Kind(strings.ToLower(strings.TrimSpace(string(s.Kind))))
	s.Identity = strings.TrimSpace(s.Identity)
	s.Commit = strings.ToLower(strings.TrimSpace(s.Commit))
	s.Number = Number(strings.TrimSpace(string(s.Number)))
	return s
}

// Validate checks shape only. Whether a reveal matches its commitment is
// decided by consensus, never by the ledger.
func (s Submission) Validate() error {
	if s.Identity == "" {
		return fmt.Errorf("%w: uni_id is required", ErrInvalidSubmission)
	}
	if utf8.RuneCountInString(s.Identity) > MaxIdentityLength {
		return fmt.Errorf("%w: uni_id longer than %d characters", ErrInvalidSubmission, MaxIdentityLength)
	}
	switch s.Kind {
	case KindCommit:
		if !consensusdomain.IsDigest(s.Commit) {
			return fmt.Errorf("%w: commit must be %d lowercase hex characters", ErrInvalidSubmission, consensusdomain.DigestLength)
		}
	case KindReveal:
		if s.Number == "" {
			return fmt.Errorf("%w: number is required", ErrInvalidSubmission)
		}
	default:
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidSubmission, s.Kind)
	}
	return nil
}

// Record is one appended ledger row.
type Record struct {
	ID        uuid.UUID
	Seq       int64
	Kind      Kind
	Identity  string
	Commit    string
	Number    string
	Nonce     string
	Timestamp time.Time
}

// StampPrecision is the finest instant the ledger stores. It matches
// Postgres timestamptz.
const StampPrecision = time.Microsecond

// NewRecord builds the row for a validated submission stamped at ts.
func NewRecord(s Submission, ts time.Time) Record {
	rec := Record{
		ID:        uuid.New(),
		Kind:      s.Kind,
		Identity:  s.Identity,
		Timestamp: ts.UTC().Truncate(StampPrecision),
	}
	if s.Kind == KindCommit {
		rec.Commit = s.Commit
	} else {
		rec.Number = string(s.Number)
		rec.Nonce = s.Nonce
	}
	return rec
}

// FormatTimestamp renders ts the way the ledger serves it. Whole seconds
// print without a fraction.
func FormatTimestamp(ts time.Time) string {
	return ts.UTC().Format(time.RFC3339Nano)
}

// Values returns the record in the column order of its table.
func (r Record) Values() []string {
	if r.Kind == KindReveal {
		return []string{FormatTimestamp(r.Timestamp), r.Identity, r.Number, r.Nonce}
	}
	return []string{FormatTimestamp(r.Timestamp), r.Identity, r.Commit}
}

// Row converts the record into the loose row the consensus parser reads.
func (r Record) Row() consensusdomain.Row {
	row := consensusdomain.Row{
		consensusdomain.FieldIdentity:  r.Identity,
		consensusdomain.FieldTimestamp: FormatTimestamp(r.Timestamp),
	}
	if r.Kind == KindReveal {
		row[consensusdomain.FieldNumber] = r.Number
		row[consensusdomain.FieldNonce] = r.Nonce
	} else {
		row[consensusdomain.FieldCommit] = r.Commit
	}
	return row
}
