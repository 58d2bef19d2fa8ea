package classify

import (
	"fmt"
	"sort"

	"github.com/whalewatch/whaletx/internal/domain/model"
	"github.com/whalewatch/whaletx/internal/metrics"
)

// Source reliability weights. Higher weight means a source's confidence
// moves the verdict more. Unlisted sources get weightDefault.
const (
	weightDefault = 1.0
)

// DefaultSourceWeights orders sources from curated registries down to
// generic enrichment. The table is fixed at construction; aggregation is a
// pure function of (evidence, weights, threshold).
func DefaultSourceWeights() map[string]float64 {
	return map[string]float64{
		"curated_registry": 5,
		"pattern_match":    5,
		SourceSwapDecoder:  4,
		SourceRuleEngine:   3,
		"protocol_db":      2,
		"enrichment":       1,
	}
}

type Aggregator struct {
	weights map[string]float64
}

func NewAggregator(weights map[string]float64) *Aggregator {
	if weights == nil {
		weights = DefaultSourceWeights()
	}
	return &Aggregator{weights: weights}
}

// Aggregate merges the evidence list into one result. The final label is
// the one with the highest weighted vote; the final confidence is the
// weighted mean over all counted evidence, so a strong high-weight source
// is not washed out by weak low-weight ones. Errored evidence stays in the
// trail but contributes nothing to the vote.
func (a *Aggregator) Aggregate(txHash string, evidenceList []model.Evidence, requiredConfidence float64) model.ClassificationResult {
	votes := make(map[model.Classification]float64)
	var weightedSum, weightTotal float64
	bySource := make(map[model.Classification]string) // strongest source per label
	bestSourceScore := make(map[model.Classification]float64)

	for _, ev := range evidenceList {
		if ev.Errored() {
			continue
		}
		weight := a.weightFor(ev.Source)
		confidence := model.ClampConfidence(ev.Confidence)
		score := confidence * weight

		votes[ev.Classification] += score
		weightedSum += score
		weightTotal += weight

		if score > bestSourceScore[ev.Classification] {
			bestSourceScore[ev.Classification] = score
			bySource[ev.Classification] = ev.Source
		}
	}

	if weightTotal == 0 {
		// No usable evidence: never fabricate a verdict.
		result := model.NewClassificationResult(txHash, model.ClassificationUnknown, 0,
			"no_evidence", "no usable evidence", evidenceList)
		result.ManualReviewRequired = true
		return result
	}

	winner, tied := winningLabel(votes)
	finalConfidence := weightedSum / weightTotal
	if tied {
		// Equal weighted votes for different labels is genuine ambiguity.
		winner = model.ClassificationUnknown
	}

	result := model.NewClassificationResult(txHash, winner, finalConfidence,
		fmt.Sprintf("aggregated:%s", bySource[winner]),
		fmt.Sprintf("weighted vote over %d evidence items", len(evidenceList)),
		evidenceList)
	result.VoteTable = votes
	result.ManualReviewRequired = result.Confidence < requiredConfidence

	metrics.ClassificationsTotal.WithLabelValues(winner.String(), string(result.ConfidenceLevel)).Inc()
	if result.ManualReviewRequired {
		metrics.ManualReviewTotal.WithLabelValues(winner.String()).Inc()
	}
	return result
}

func (a *Aggregator) weightFor(source string) float64 {
	if w, ok := a.weights[source]; ok {
		return w
	}
	return weightDefault
}

// winningLabel picks the label with the strictly highest vote. Iteration
// order over maps is random, so candidates are sorted for determinism.
func winningLabel(votes map[model.Classification]float64) (model.Classification, bool) {
	labels := make([]model.Classification, 0, len(votes))
	for label := range votes {
		labels = append(labels, label)
	}
	sort.Slice(labels, func(i, j int) bool { return labels[i] < labels[j] })

	var winner model.Classification
	best := -1.0
	tied := false
	for _, label := range labels {
		switch {
		case votes[label] > best:
			winner, best, tied = label, votes[label], false
		case votes[label] == best && label != winner:
			tied = true
		}
	}
	return winner, tied
}
