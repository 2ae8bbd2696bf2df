package ledgerdb

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	ledgerdomain "github.com/Black-And-White-Club/beauty-contest/app/modules/ledger/domain"
)

// LedgerRecord is one appended commit or reveal. Rows are never updated.
type LedgerRecord struct {
	bun.BaseModel `bun:"table:ledger_records,alias:lr"`

	Seq       int64     `bun:"seq,pk,autoincrement"`
	ID        uuid.UUID `bun:"id,type:uuid,notnull,unique"`
	Kind      string    `bun:"kind,notnull"`
	UniID     string    `bun:"uni_id,notnull"`
	Commit    string    `bun:"commit,nullzero"`
	Number    string    `bun:"number,nullzero"`
	Nonce     string    `bun:"nonce,notnull,default:''"`
	Timestamp time.Time `bun:"timestamp_utc,notnull"`
}

func toModel(r ledgerdomain.Record) *LedgerRecord {
	return &LedgerRecord{
		ID:        r.ID,
		Kind:      string(r.Kind),
		UniID:     r.Identity,
		Commit:    r.Commit,
		Number:    r.Number,
		Nonce:     r.Nonce,
		Timestamp: r.Timestamp.UTC(),
	}
}

func (m *LedgerRecord) toDomain() ledgerdomain.Record {
	return ledgerdomain.Record{
		ID:        m.ID,
		Seq:       m.Seq,
		Kind:      ledgerdomain.Kind(m.Kind),
		Identity:  m.UniID,
		Commit:    m.Commit,
		Number:    m.Number,
		Nonce:     m.Nonce,
		Timestamp: m.Timestamp.UTC(),
	}
}
