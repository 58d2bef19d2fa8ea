package model

import "time"

// ClassificationResult is the stable shape other services consume. Field
// names and enum values are a cross-service contract; see the evidence_trail
// for how the verdict was reached. Results are append-only: reclassification
// produces a new result rather than mutating an old one.
type ClassificationResult struct {
	TxHash               string          `json:"tx_hash"`
	Classification       Classification  `json:"classification"`
	Confidence           float64         `json:"confidence"`
	ConfidenceLevel      ConfidenceLevel `json:"confidence_level"`
	TriggeredRule        string          `json:"triggered_rule"`
	Explanation          string          `json:"explanation"`
	EvidenceTrail        []Evidence      `json:"evidence_trail"`
	ManualReviewRequired bool            `json:"manual_review_required"`
	// VoteTable records the weighted score each candidate label received
	// during aggregation, so the verdict is reproducible from the result.
	VoteTable   map[Classification]float64 `json:"vote_table,omitempty"`
	ProcessedAt time.Time                  `json:"processed_at"`
}

// NewClassificationResult clamps confidence and derives the bucket level.
func NewClassificationResult(txHash string, classification Classification, confidence float64, rule, explanation string, trail []Evidence) ClassificationResult {
	confidence = ClampConfidence(confidence)
	return ClassificationResult{
		TxHash:          txHash,
		Classification:  classification,
		Confidence:      confidence,
		ConfidenceLevel: ConfidenceLevelFor(confidence),
		TriggeredRule:   rule,
		Explanation:     explanation,
		EvidenceTrail:   trail,
		ProcessedAt:     time.Now().UTC(),
	}
}
