package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/whalewatch/whaletx/internal/domain/model"
)

// ResultRepo stores classification results as an append-only audit trail.
// Re-classifying a transaction inserts a new row; history is never updated
// in place, so every past verdict stays reproducible from its stored
// evidence.
type ResultRepo struct {
	db *DB
}

func NewResultRepo(db *DB) *ResultRepo {
	return &ResultRepo{db: db}
}

func (r *ResultRepo) Insert(ctx context.Context, result *model.ClassificationResult) error {
	ctx, cancel := withTimeout(ctx, DefaultQueryTimeout)
	defer cancel()

	evidence, err := json.Marshal(result.EvidenceTrail)
	if err != nil {
		return fmt.Errorf("marshal evidence trail for %s: %w", result.TxHash, err)
	}
	votes, err := json.Marshal(result.VoteTable)
	if err != nil {
		return fmt.Errorf("marshal vote table for %s: %w", result.TxHash, err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO classification_results (
			tx_hash, classification, confidence, confidence_level,
			triggered_rule, explanation, evidence_trail, vote_table,
			manual_review_required, processed_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, result.TxHash, result.Classification, result.Confidence,
		result.ConfidenceLevel, result.TriggeredRule, result.Explanation,
		evidence, votes, result.ManualReviewRequired, result.ProcessedAt,
	)
	if err != nil {
		return fmt.Errorf("insert classification result %s: %w", result.TxHash, err)
	}
	return nil
}

// Latest returns the most recent result for a transaction.
func (r *ResultRepo) Latest(ctx context.Context, txHash string) (*model.ClassificationResult, error) {
	ctx, cancel := withTimeout(ctx, DefaultQueryTimeout)
	defer cancel()

	row := r.db.QueryRowContext(ctx, `
		SELECT tx_hash, classification, confidence, confidence_level,
		       triggered_rule, explanation, evidence_trail, vote_table,
		       manual_review_required, processed_at
		FROM classification_results
		WHERE tx_hash = $1
		ORDER BY processed_at DESC
		LIMIT 1
	`, txHash)

	var (
		result   model.ClassificationResult
		evidence []byte
		votes    []byte
	)
	err := row.Scan(
		&result.TxHash, &result.Classification, &result.Confidence,
		&result.ConfidenceLevel, &result.TriggeredRule, &result.Explanation,
		&evidence, &votes, &result.ManualReviewRequired, &result.ProcessedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get classification result %s: %w", txHash, err)
	}

	if len(evidence) > 0 {
		if err := json.Unmarshal(evidence, &result.EvidenceTrail); err != nil {
			return nil, fmt.Errorf("unmarshal evidence trail %s: %w", txHash, err)
		}
	}
	if len(votes) > 0 {
		if err := json.Unmarshal(votes, &result.VoteTable); err != nil {
			return nil, fmt.Errorf("unmarshal vote table %s: %w", txHash, err)
		}
	}
	return &result, nil
}
