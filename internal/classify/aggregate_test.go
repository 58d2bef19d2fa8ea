package classify

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/whalewatch/whaletx/internal/domain/model"
)

func fixedEvidence(source string, classification model.Classification, confidence float64) model.Evidence {
	return model.Evidence{
		Source:         source,
		Classification: classification,
		Confidence:     confidence,
		Explanation:    "test",
		Timestamp:      time.Unix(1700000000, 0).UTC(),
	}
}

func TestAggregate_WeightedMeanNotSimpleAverage(t *testing.T) {
	a := NewAggregator(map[string]float64{"strong": 5, "weak": 1})

	result := a.Aggregate("0xabc", []model.Evidence{
		fixedEvidence("strong", model.ClassificationBuy, 0.9),
		fixedEvidence("weak", model.ClassificationSell, 0.2),
	}, 0.6)

	assert.Equal(t, model.ClassificationBuy, result.Classification)
	assert.InDelta(t, (0.9*5+0.2*1)/6, result.Confidence, 1e-9)
	assert.False(t, result.ManualReviewRequired)
	assert.InDelta(t, 4.5, result.VoteTable[model.ClassificationBuy], 1e-9)
	assert.InDelta(t, 0.2, result.VoteTable[model.ClassificationSell], 1e-9)
}

func TestAggregate_WinnerByWeightedVotesNotFrequency(t *testing.T) {
	a := NewAggregator(map[string]float64{"curated": 5, "weak": 1})

	// Two weak sell votes against one strong buy vote.
	result := a.Aggregate("0xabc", []model.Evidence{
		fixedEvidence("weak", model.ClassificationSell, 0.5),
		fixedEvidence("weak", model.ClassificationSell, 0.5),
		fixedEvidence("curated", model.ClassificationBuy, 0.9),
	}, 0.6)

	assert.Equal(t, model.ClassificationBuy, result.Classification,
		"weighted votes must beat raw counts")
}

func TestAggregate_NoEvidenceLaw(t *testing.T) {
	a := NewAggregator(nil)

	result := a.Aggregate("0xabc", nil, 0.6)

	assert.Equal(t, model.ClassificationUnknown, result.Classification)
	assert.Zero(t, result.Confidence)
	assert.True(t, result.ManualReviewRequired)
	assert.Equal(t, "no_evidence", result.TriggeredRule)
}

func TestAggregate_ErroredEvidenceExcludedButRetained(t *testing.T) {
	a := NewAggregator(map[string]float64{"good": 2, "broken": 5})

	broken := fixedEvidence("broken", model.ClassificationSell, 0.99)
	broken.Err = "provider timeout"

	result := a.Aggregate("0xabc", []model.Evidence{
		fixedEvidence("good", model.ClassificationBuy, 0.8),
		broken,
	}, 0.6)

	assert.Equal(t, model.ClassificationBuy, result.Classification)
	assert.InDelta(t, 0.8, result.Confidence, 1e-9)
	require.Len(t, result.EvidenceTrail, 2, "errored evidence stays in the trail")
	assert.Equal(t, "provider timeout", result.EvidenceTrail[1].Err)
}

func TestAggregate_OnlyErroredEvidenceIsNoEvidence(t *testing.T) {
	a := NewAggregator(nil)
	broken := fixedEvidence(SourceSwapDecoder, model.ClassificationBuy, 0.9)
	broken.Err = "decode failed"

	result := a.Aggregate("0xabc", []model.Evidence{broken}, 0.6)

	assert.Equal(t, model.ClassificationUnknown, result.Classification)
	assert.True(t, result.ManualReviewRequired)
}

func TestAggregate_ExactTieResolvesToUnknown(t *testing.T) {
	a := NewAggregator(map[string]float64{"x": 1, "y": 1})

	result := a.Aggregate("0xabc", []model.Evidence{
		fixedEvidence("x", model.ClassificationBuy, 0.8),
		fixedEvidence("y", model.ClassificationSell, 0.8),
	}, 0.6)

	assert.Equal(t, model.ClassificationUnknown, result.Classification,
		"a dead heat is ambiguity, not a coin flip")
}

func TestAggregate_ManualReviewThreshold(t *testing.T) {
	a := NewAggregator(map[string]float64{"s": 1})

	low := a.Aggregate("0xabc", []model.Evidence{
		fixedEvidence("s", model.ClassificationBuy, 0.5),
	}, 0.95)
	assert.True(t, low.ManualReviewRequired)

	high := a.Aggregate("0xabc", []model.Evidence{
		fixedEvidence("s", model.ClassificationBuy, 0.97),
	}, 0.95)
	assert.False(t, high.ManualReviewRequired)
}

func TestAggregate_ConfidenceClampedOnHostileInput(t *testing.T) {
	a := NewAggregator(nil)

	result := a.Aggregate("0xabc", []model.Evidence{
		fixedEvidence(SourceSwapDecoder, model.ClassificationBuy, 3.7),
	}, 0.6)

	assert.LessOrEqual(t, result.Confidence, 1.0)
	assert.GreaterOrEqual(t, result.Confidence, 0.0)
}

func TestAggregate_Deterministic(t *testing.T) {
	a := NewAggregator(nil)
	evidenceList := []model.Evidence{
		fixedEvidence(SourceSwapDecoder, model.ClassificationBuy, 0.9),
		fixedEvidence(SourceRuleEngine, model.ClassificationSell, 0.7),
		fixedEvidence("enrichment", model.ClassificationBuy, 0.4),
	}

	first := a.Aggregate("0xabc", evidenceList, 0.8)
	second := a.Aggregate("0xabc", evidenceList, 0.8)

	// Byte-identical apart from the processing timestamp.
	first.ProcessedAt = time.Time{}
	second.ProcessedAt = time.Time{}
	firstJSON, err := json.Marshal(first)
	require.NoError(t, err)
	secondJSON, err := json.Marshal(second)
	require.NoError(t, err)
	assert.Equal(t, string(firstJSON), string(secondJSON))
}

func TestAggregate_UnknownSourceGetsDefaultWeight(t *testing.T) {
	a := NewAggregator(map[string]float64{"known": 5})

	result := a.Aggregate("0xabc", []model.Evidence{
		fixedEvidence("known", model.ClassificationBuy, 0.6),
		fixedEvidence("never_registered", model.ClassificationSell, 0.6),
	}, 0.5)

	assert.Equal(t, model.ClassificationBuy, result.Classification)
	assert.InDelta(t, (0.6*5+0.6*1)/6, result.Confidence, 1e-9)
}
