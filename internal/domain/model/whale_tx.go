package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// WhaleTransactionRecord is the persisted form of one observed whale
// transaction. tx_hash is the idempotency key: re-processing the same hash
// upserts, and a new row only overwrites classification fields when its
// confidence is at least as high as the stored one.
type WhaleTransactionRecord struct {
	ID               uuid.UUID        `db:"id"`
	TxHash           string           `db:"tx_hash"`
	TokenSymbol      string           `db:"token_symbol"`
	Chain            Chain            `db:"chain"`
	FromAddress      string           `db:"from_address"`
	ToAddress        string           `db:"to_address"`
	WhaleAddress     string           `db:"whale_address"`
	CounterpartyType CounterpartyType `db:"counterparty_type"`
	USDValue         decimal.Decimal  `db:"usd_value"`
	Classification   Classification   `db:"classification"`
	Confidence       float64          `db:"confidence"`
	Timestamp        time.Time        `db:"timestamp"`
	SupersededBy     *string          `db:"superseded_by"` // tx_hash of the dedup survivor
	CreatedAt        time.Time        `db:"created_at"`
}

func (w *WhaleTransactionRecord) Superseded() bool {
	return w.SupersededBy != nil
}
