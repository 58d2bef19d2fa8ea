package model

import "time"

// Evidence is one subsystem's classification opinion for one transaction.
// Immutable once recorded; errored evidence stays in the trail for audit but
// is excluded from aggregation.
type Evidence struct {
	Source         string         `json:"source"`
	Classification Classification `json:"classification"`
	Confidence     float64        `json:"confidence"`
	Explanation    string         `json:"explanation"`
	Timestamp      time.Time      `json:"timestamp"`
	Err            string         `json:"error,omitempty"`
}

func (e Evidence) Errored() bool {
	return e.Err != ""
}

// NewEvidence clamps confidence on construction so no out-of-range value
// ever enters a trail.
func NewEvidence(source string, classification Classification, confidence float64, explanation string) Evidence {
	return Evidence{
		Source:         source,
		Classification: classification,
		Confidence:     ClampConfidence(confidence),
		Explanation:    explanation,
		Timestamp:      time.Now().UTC(),
	}
}
