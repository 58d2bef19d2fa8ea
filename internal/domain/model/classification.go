package model

// Classification is the final verdict for a transaction. The string values
// are part of the persisted/API contract and must not change.
type Classification string

const (
	ClassificationBuy        Classification = "buy"
	ClassificationSell       Classification = "sell"
	ClassificationTransfer   Classification = "transfer"
	ClassificationDeposit    Classification = "deposit"
	ClassificationWithdrawal Classification = "withdrawal"
	ClassificationUnknown    Classification = "unknown"
)

func (c Classification) String() string {
	return string(c)
}

type ConfidenceLevel string

const (
	ConfidenceLevelHigh    ConfidenceLevel = "high"
	ConfidenceLevelMedium  ConfidenceLevel = "medium"
	ConfidenceLevelLow     ConfidenceLevel = "low"
	ConfidenceLevelVeryLow ConfidenceLevel = "very_low"
)

// ConfidenceLevelFor buckets a numeric confidence into the coarse level
// surfaced to dashboards and alerting.
func ConfidenceLevelFor(confidence float64) ConfidenceLevel {
	switch {
	case confidence >= 0.9:
		return ConfidenceLevelHigh
	case confidence >= 0.7:
		return ConfidenceLevelMedium
	case confidence >= 0.4:
		return ConfidenceLevelLow
	default:
		return ConfidenceLevelVeryLow
	}
}

// ClampConfidence forces a confidence into [0,1]. All confidence inputs pass
// through this at component boundaries; out-of-range values are clamped,
// never rejected.
func ClampConfidence(confidence float64) float64 {
	if confidence < 0 {
		return 0
	}
	if confidence > 1 {
		return 1
	}
	return confidence
}

// RoleCategory is the closed set of address roles produced by the label
// normalization step. Free-form provider labels never leak past that step.
type RoleCategory string

const (
	RolePersonal    RoleCategory = "PERSONAL"
	RoleExchange    RoleCategory = "EXCHANGE"
	RoleDex         RoleCategory = "DEX"
	RoleBridge      RoleCategory = "BRIDGE"
	RoleMarketMaker RoleCategory = "MARKET_MAKER"
	RoleUnknown     RoleCategory = "UNKNOWN"
)

type CounterpartyType string

const (
	CounterpartyCEX     CounterpartyType = "CEX"
	CounterpartyDEX     CounterpartyType = "DEX"
	CounterpartyEOA     CounterpartyType = "EOA"
	CounterpartyBridge  CounterpartyType = "BRIDGE"
	CounterpartyDeFi    CounterpartyType = "DEFI"
	CounterpartyUnknown CounterpartyType = "UNKNOWN"
)
