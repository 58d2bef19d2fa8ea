package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/whalewatch/whaletx/internal/domain/model"
)

var ErrNotFound = errors.New("record not found")

// WhaleTxRepo persists whale transaction records. Upserts are idempotent on
// tx_hash and confidence only moves up: re-processing a transaction without
// new evidence never regresses a stored classification.
type WhaleTxRepo struct {
	db *DB
}

func NewWhaleTxRepo(db *DB) *WhaleTxRepo {
	return &WhaleTxRepo{db: db}
}

// Upsert inserts a record or, when the tx_hash already exists, overwrites
// the classification fields only if the new confidence is at least the
// stored one.
func (r *WhaleTxRepo) Upsert(ctx context.Context, rec *model.WhaleTransactionRecord) error {
	ctx, cancel := withTimeout(ctx, DefaultQueryTimeout)
	defer cancel()

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO whale_transactions (
			tx_hash, token_symbol, chain, from_address, to_address,
			whale_address, counterparty_type, usd_value, classification,
			confidence, timestamp
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (tx_hash) DO UPDATE SET
			classification    = EXCLUDED.classification,
			confidence        = EXCLUDED.confidence,
			counterparty_type = EXCLUDED.counterparty_type,
			usd_value         = EXCLUDED.usd_value
		WHERE whale_transactions.confidence <= EXCLUDED.confidence
	`, rec.TxHash, rec.TokenSymbol, rec.Chain, rec.FromAddress, rec.ToAddress,
		rec.WhaleAddress, rec.CounterpartyType, rec.USDValue, rec.Classification,
		rec.Confidence, rec.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("upsert whale transaction %s: %w", rec.TxHash, err)
	}
	return nil
}

// GetByTxHash returns one record, superseded or not.
func (r *WhaleTxRepo) GetByTxHash(ctx context.Context, txHash string) (*model.WhaleTransactionRecord, error) {
	ctx, cancel := withTimeout(ctx, DefaultQueryTimeout)
	defer cancel()

	row := r.db.QueryRowContext(ctx, `
		SELECT id, tx_hash, token_symbol, chain, from_address, to_address,
		       whale_address, counterparty_type, usd_value, classification,
		       confidence, timestamp, superseded_by, created_at
		FROM whale_transactions
		WHERE tx_hash = $1
	`, txHash)

	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get whale transaction %s: %w", txHash, err)
	}
	return rec, nil
}

// ListLiveByToken returns the non-superseded records for one token on one
// chain, time-ordered. This is the dedup sweep's input, the ordering is a
// precondition of the detector's forward scan.
func (r *WhaleTxRepo) ListLiveByToken(ctx context.Context, chain model.Chain, tokenSymbol string) ([]*model.WhaleTransactionRecord, error) {
	ctx, cancel := withTimeout(ctx, LongQueryTimeout)
	defer cancel()

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, tx_hash, token_symbol, chain, from_address, to_address,
		       whale_address, counterparty_type, usd_value, classification,
		       confidence, timestamp, superseded_by, created_at
		FROM whale_transactions
		WHERE chain = $1 AND token_symbol = $2 AND superseded_by IS NULL
		ORDER BY timestamp ASC
	`, chain, tokenSymbol)
	if err != nil {
		return nil, fmt.Errorf("list whale transactions for %s/%s: %w", chain, tokenSymbol, err)
	}
	defer rows.Close()

	var records []*model.WhaleTransactionRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan whale transaction: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate whale transactions: %w", err)
	}
	return records, nil
}

// MarkSuperseded flags the loser of a dedup cluster with its survivor's tx
// hash. Each mark is an independent commit so a cancelled sweep leaves
// already-marked rows valid.
func (r *WhaleTxRepo) MarkSuperseded(ctx context.Context, loserTxHash, survivorTxHash string) error {
	ctx, cancel := withTimeout(ctx, DefaultQueryTimeout)
	defer cancel()

	res, err := r.db.ExecContext(ctx, `
		UPDATE whale_transactions
		SET superseded_by = $2
		WHERE tx_hash = $1 AND superseded_by IS NULL
	`, loserTxHash, survivorTxHash)
	if err != nil {
		return fmt.Errorf("mark %s superseded: %w", loserTxHash, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

// DistinctLiveTokens lists (chain, token) pairs with live records, used to
// enumerate dedup sweep work.
func (r *WhaleTxRepo) DistinctLiveTokens(ctx context.Context) ([]TokenGroup, error) {
	ctx, cancel := withTimeout(ctx, DefaultQueryTimeout)
	defer cancel()

	rows, err := r.db.QueryContext(ctx, `
		SELECT DISTINCT chain, token_symbol
		FROM whale_transactions
		WHERE superseded_by IS NULL
		ORDER BY chain, token_symbol
	`)
	if err != nil {
		return nil, fmt.Errorf("list token groups: %w", err)
	}
	defer rows.Close()

	var groups []TokenGroup
	for rows.Next() {
		var g TokenGroup
		if err := rows.Scan(&g.Chain, &g.TokenSymbol); err != nil {
			return nil, fmt.Errorf("scan token group: %w", err)
		}
		groups = append(groups, g)
	}
	return groups, rows.Err()
}

type TokenGroup struct {
	Chain       model.Chain
	TokenSymbol string
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*model.WhaleTransactionRecord, error) {
	var rec model.WhaleTransactionRecord
	err := row.Scan(
		&rec.ID, &rec.TxHash, &rec.TokenSymbol, &rec.Chain,
		&rec.FromAddress, &rec.ToAddress, &rec.WhaleAddress,
		&rec.CounterpartyType, &rec.USDValue, &rec.Classification,
		&rec.Confidence, &rec.Timestamp, &rec.SupersededBy, &rec.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &rec, nil
}
