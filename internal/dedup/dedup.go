// Package dedup collapses multiple stored records that describe the same
// economic event (both legs of a CEX-mediated trade, a transfer shadowing a
// swap) into a single surviving record. It operates per token on a
// time-sorted candidate list and never removes the only known instance of a
// transaction.
package dedup

import (
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/whalewatch/whaletx/internal/domain/model"
	"github.com/whalewatch/whaletx/internal/metrics"
)

const (
	// ReasonMirrorTrade covers a BUY and a SELL reported for the two legs
	// of one trade.
	ReasonMirrorTrade = "mirror_trade"
	// ReasonShadowTransfer covers a TRANSFER that shadows an already
	// recorded BUY or SELL of the same value.
	ReasonShadowTransfer = "shadow_transfer"
	// ReasonRepeatReport covers the same classification reported twice
	// from different observation angles.
	ReasonRepeatReport = "repeat_report"
)

// mirrorPatterns is the closed table of classification pairs that may
// describe one real-world transfer. Matching is order-insensitive.
var mirrorPatterns = []struct {
	a, b   model.Classification
	reason string
}{
	{model.ClassificationBuy, model.ClassificationSell, ReasonMirrorTrade},
	{model.ClassificationBuy, model.ClassificationTransfer, ReasonShadowTransfer},
	{model.ClassificationSell, model.ClassificationTransfer, ReasonShadowTransfer},
	{model.ClassificationBuy, model.ClassificationBuy, ReasonRepeatReport},
	{model.ClassificationSell, model.ClassificationSell, ReasonRepeatReport},
	{model.ClassificationTransfer, model.ClassificationTransfer, ReasonRepeatReport},
}

func patternReason(a, b model.Classification) (string, bool) {
	for _, p := range mirrorPatterns {
		if (p.a == a && p.b == b) || (p.a == b && p.b == a) {
			return p.reason, true
		}
	}
	return "", false
}

// Report summarizes one per-token sweep.
type Report struct {
	KeptCount      int            `json:"keptCount"`
	RemovedCount   int            `json:"removedCount"`
	RemovalReasons map[string]int `json:"removalReasons"`
}

const (
	defaultWindow       = 10 * time.Second
	defaultRelTolerance = 0.02 // 2% covers fees and price rounding
)

// defaultSafeguardCeiling exempts very large transactions from merging,
// a wrong merge there is costlier than a duplicate row.
var (
	defaultSafeguardCeiling = decimal.NewFromInt(10_000_000)
	defaultAbsTolerance     = decimal.NewFromInt(50)
)

// Detector finds near-duplicate records within a token's transaction
// sequence. Safe for concurrent use, it holds no per-sweep state.
type Detector struct {
	window           time.Duration
	relTolerance     decimal.Decimal
	absTolerance     decimal.Decimal
	safeguardCeiling decimal.Decimal
	logger           *slog.Logger
}

type Option func(*Detector)

func WithWindow(w time.Duration) Option {
	return func(d *Detector) {
		if w > 0 {
			d.window = w
		}
	}
}

func WithValueTolerance(relative float64, absolute decimal.Decimal) Option {
	return func(d *Detector) {
		d.relTolerance = decimal.NewFromFloat(relative)
		d.absTolerance = absolute
	}
}

func WithSafeguardCeiling(ceiling decimal.Decimal) Option {
	return func(d *Detector) { d.safeguardCeiling = ceiling }
}

func NewDetector(logger *slog.Logger, opts ...Option) *Detector {
	if logger == nil {
		logger = slog.Default()
	}
	d := &Detector{
		window:           defaultWindow,
		relTolerance:     decimal.NewFromFloat(defaultRelTolerance),
		absTolerance:     defaultAbsTolerance,
		safeguardCeiling: defaultSafeguardCeiling,
		logger:           logger.With("component", "dedup"),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Deduplicate scans one token's candidate records and returns the survivors
// plus a removal report. Removed records are flagged with the survivor's tx
// hash in SupersededBy rather than dropped from the input slice, so the
// caller can persist the supersede marks.
//
// The scan sorts its input by timestamp first; the forward window scan is
// only correct on a time-ordered sequence.
func (d *Detector) Deduplicate(records []*model.WhaleTransactionRecord) ([]*model.WhaleTransactionRecord, Report) {
	report := Report{RemovalReasons: make(map[string]int)}
	if len(records) == 0 {
		return nil, report
	}
	start := time.Now()
	token := records[0].TokenSymbol

	sort.SliceStable(records, func(i, j int) bool {
		return records[i].Timestamp.Before(records[j].Timestamp)
	})

	removed := make([]bool, len(records))
	for i := range records {
		if removed[i] || records[i].Superseded() {
			continue
		}
		for j := i + 1; j < len(records); j++ {
			if records[j].Timestamp.Sub(records[i].Timestamp) > d.window {
				break // time-sorted, no later candidate can be closer
			}
			if removed[j] || records[j].Superseded() {
				continue
			}
			reason, ok := d.duplicatePair(records[i], records[j])
			if !ok {
				continue
			}
			// Keep the strictly higher confidence; on a tie keep the
			// earlier record.
			if records[j].Confidence > records[i].Confidence {
				d.supersede(records[i], records[j], reason, &report)
				removed[i] = true
				break // anchor removed, advance to the next one
			}
			d.supersede(records[j], records[i], reason, &report)
			removed[j] = true
		}
	}

	kept := make([]*model.WhaleTransactionRecord, 0, len(records))
	for i, rec := range records {
		if !removed[i] && !rec.Superseded() {
			kept = append(kept, rec)
		}
	}
	report.KeptCount = len(kept)

	metrics.DedupSweepLatency.WithLabelValues(token).Observe(time.Since(start).Seconds())
	if report.RemovedCount > 0 {
		d.logger.Info("dedup sweep removed records",
			"token", token,
			"kept", report.KeptCount,
			"removed", report.RemovedCount,
		)
	}
	return kept, report
}

func (d *Detector) supersede(loser, survivor *model.WhaleTransactionRecord, reason string, report *Report) {
	hash := survivor.TxHash
	loser.SupersededBy = &hash
	report.RemovedCount++
	report.RemovalReasons[reason]++
	metrics.DedupRemovalsTotal.WithLabelValues(reason).Inc()
	d.logger.Debug("record superseded",
		"loser", loser.TxHash,
		"survivor", survivor.TxHash,
		"reason", reason,
	)
}

// duplicatePair reports whether two records describe the same economic
// event and under which reason code.
func (d *Detector) duplicatePair(a, b *model.WhaleTransactionRecord) (string, bool) {
	if d.exempt(a) || d.exempt(b) {
		return "", false
	}
	if !d.valuesMatch(a.USDValue, b.USDValue) {
		return "", false
	}
	reason, ok := patternReason(a.Classification, b.Classification)
	if !ok {
		return "", false
	}
	if !crossEntityConsistent(a, b) {
		return "", false
	}
	return reason, true
}

// exempt marks records the detector must never merge: transactions above
// the safeguard ceiling and DeFi protocol interactions, where matching
// value and time is common without being the same transfer.
func (d *Detector) exempt(rec *model.WhaleTransactionRecord) bool {
	if rec.CounterpartyType == model.CounterpartyDeFi {
		return true
	}
	return rec.USDValue.GreaterThanOrEqual(d.safeguardCeiling)
}

// valuesMatch allows rounding and fee differences: values are near-equal
// when they differ by at most the absolute floor or the relative tolerance
// of the larger value, whichever is greater.
func (d *Detector) valuesMatch(a, b decimal.Decimal) bool {
	diff := a.Sub(b).Abs()
	larger := decimal.Max(a.Abs(), b.Abs())
	allowed := decimal.Max(d.absTolerance, larger.Mul(d.relTolerance))
	return diff.LessThanOrEqual(allowed)
}

// crossEntityConsistent requires the two records to share address context:
// two unrelated parties can coincidentally match value and time, but the
// two legs of one transfer always have an address in common.
func crossEntityConsistent(a, b *model.WhaleTransactionRecord) bool {
	if a.TxHash == b.TxHash {
		return true
	}
	seen := map[string]bool{}
	for _, addr := range []string{a.FromAddress, a.ToAddress, a.WhaleAddress} {
		if addr != "" {
			seen[strings.ToLower(addr)] = true
		}
	}
	for _, addr := range []string{b.FromAddress, b.ToAddress, b.WhaleAddress} {
		if addr != "" && seen[strings.ToLower(addr)] {
			return true
		}
	}
	return false
}
