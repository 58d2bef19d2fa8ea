// Package classify holds the three reasoning stages: the swap direction
// classifier over decoded events, the address-role rule engine, and the
// evidence aggregator that merges their opinions into one verdict.
package classify

import (
	"fmt"
	"log/slog"
	"math/big"

	"github.com/whalewatch/whaletx/internal/decode"
	"github.com/whalewatch/whaletx/internal/domain/model"
)

// SourceSwapDecoder tags evidence produced by the swap direction classifier.
const SourceSwapDecoder = "swap_decoder"

// Verdict labels carried in evidence explanations and triggered rules.
const (
	LabelFailedTransaction = "failed_transaction"
	LabelVerifiedSwapBuy   = "verified_swap_buy"
	LabelVerifiedSwapSell  = "verified_swap_sell"
	LabelLiquidityAdd      = "liquidity_add"
	LabelLiquidityRemove   = "liquidity_remove"
	LabelWrap              = "wrap"
	LabelUnwrap            = "unwrap"
	LabelUnknownSwap       = "unknown_swap"
	LabelTokenTransfer     = "token_transfer"
	LabelNoSignal          = "no_signal"
)

// SwapClassifier resolves swap direction from decoded receipt contents.
// Stateless apart from the shared pair registry; safe for concurrent use.
type SwapClassifier struct {
	pairs  *decode.PairRegistry
	logger *slog.Logger
}

func NewSwapClassifier(pairs *decode.PairRegistry, logger *slog.Logger) *SwapClassifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &SwapClassifier{pairs: pairs, logger: logger.With("component", "swap_classifier")}
}

// Classify walks an ordered decision list, first match wins. Ambiguity is
// always resolved to unknown, never to a directional guess.
func (c *SwapClassifier) Classify(receipt *model.Receipt, events []model.DecodedEvent) model.Evidence {
	// 1. A failed transaction had no economic effect, whatever its logs say.
	if receipt.Failed() {
		return evidence(model.ClassificationUnknown, 1.0, LabelFailedTransaction,
			"transaction reverted on chain")
	}

	method := decode.DecodeMethodSelector(receipt.MethodSig)
	swaps := filterSwaps(events)

	// 2. Recognized swap method plus a decoded swap event.
	if method != nil && method.Kind == decode.MethodSwap && len(swaps) > 0 {
		return c.directionalEvidence(receipt.Chain, swaps[0], 0.95, method.Name)
	}

	// 3. Liquidity management, by method name or by pool event.
	if method != nil && method.Kind == decode.MethodAddLiquidity || hasKind(events, model.EventMint) {
		return evidence(model.ClassificationDeposit, 1.0, LabelLiquidityAdd,
			"liquidity added to an AMM pool")
	}
	if method != nil && method.Kind == decode.MethodRemoveLiquidity || hasKind(events, model.EventBurn) {
		return evidence(model.ClassificationWithdrawal, 1.0, LabelLiquidityRemove,
			"liquidity removed from an AMM pool")
	}

	// 4. Wrapping is a representation change, not a trade.
	if method != nil && method.Kind == decode.MethodWrap || hasKind(events, model.EventWethDeposit) {
		return evidence(model.ClassificationTransfer, 1.0, LabelWrap,
			"native asset wrapped")
	}
	if method != nil && method.Kind == decode.MethodUnwrap || hasKind(events, model.EventWethWithdraw) {
		return evidence(model.ClassificationTransfer, 1.0, LabelUnwrap,
			"wrapped asset unwrapped")
	}

	// 5. Swap event without a recognized method: same heuristic, less trust.
	if len(swaps) > 0 {
		return c.directionalEvidence(receipt.Chain, swaps[0], 0.65, "unrecognized method")
	}

	// 6. Plain token movement.
	if hasKind(events, model.EventTransfer) {
		return evidence(model.ClassificationTransfer, 0.7, LabelTokenTransfer,
			"only ERC-20 transfer events present")
	}

	// 7. Nothing decodable.
	return evidence(model.ClassificationUnknown, 0.1, LabelNoSignal,
		"no decodable events in receipt")
}

// swapLegs is the trader-perspective view of one swap: the token sent into
// the pool and the token received from it.
type swapLegs struct {
	outSymbol string // token the trader gave up
	inSymbol  string // token the trader received
	resolved  bool
}

func (c *SwapClassifier) directionalEvidence(chain model.Chain, swap model.DecodedEvent, baseConfidence float64, methodName string) model.Evidence {
	legs := c.resolveLegs(swap)
	if !legs.resolved {
		// Pair identity unknown: direction would be a guess. Unknown swap,
		// never a defaulted side.
		return evidence(model.ClassificationUnknown, 0.5, LabelUnknownSwap,
			fmt.Sprintf("swap on unknown pair %s (%s)", swap.Pool, methodName))
	}

	outIsBase := model.IsBaseAsset(chain, legs.outSymbol)
	inIsBase := model.IsBaseAsset(chain, legs.inSymbol)
	outIsStable := model.IsStablecoin(legs.outSymbol)
	inIsStable := model.IsStablecoin(legs.inSymbol)

	explain := func(direction string) string {
		return fmt.Sprintf("swap %s -> %s via %s (%s): %s",
			legs.outSymbol, legs.inSymbol, swap.Pool, methodName, direction)
	}

	switch {
	case inIsBase && !outIsBase:
		return evidence(model.ClassificationBuy, baseConfidence, LabelVerifiedSwapBuy,
			explain("base asset received"))
	case outIsBase && !inIsBase:
		return evidence(model.ClassificationSell, baseConfidence, LabelVerifiedSwapSell,
			explain("base asset sent"))
	case outIsStable && !inIsStable:
		return evidence(model.ClassificationBuy, baseConfidence, LabelVerifiedSwapBuy,
			explain("stablecoin spent to acquire "+legs.inSymbol))
	case inIsStable && !outIsStable:
		return evidence(model.ClassificationSell, baseConfidence, LabelVerifiedSwapSell,
			explain(legs.outSymbol+" sold for stablecoin"))
	case legs.outSymbol != legs.inSymbol:
		// Two ordinary tokens: net flow still identifies what was acquired,
		// but with less certainty than a base/stable anchor.
		reduced := min(baseConfidence, 0.75)
		return evidence(model.ClassificationBuy, reduced, LabelVerifiedSwapBuy,
			explain("net flow into "+legs.inSymbol))
	default:
		return evidence(model.ClassificationUnknown, 0.5, LabelUnknownSwap,
			explain("legs are indistinguishable"))
	}
}

// resolveLegs determines which pair token the trader sent and which they
// received, using the pair registry for token identity.
func (c *SwapClassifier) resolveLegs(swap model.DecodedEvent) swapLegs {
	pair, ok := c.pairs.Lookup(swap.Pool)
	if !ok {
		return swapLegs{}
	}

	switch swap.Kind {
	case model.EventSwapV2:
		in0, in1 := swap.Amounts[0], swap.Amounts[1]
		out0, out1 := swap.Amounts[2], swap.Amounts[3]
		legs := swapLegs{resolved: true}
		switch {
		case positive(in0) && positive(out1):
			legs.outSymbol, legs.inSymbol = pair.Token0Symbol, pair.Token1Symbol
		case positive(in1) && positive(out0):
			legs.outSymbol, legs.inSymbol = pair.Token1Symbol, pair.Token0Symbol
		default:
			return swapLegs{}
		}
		return legs
	case model.EventSwapV3:
		// Positive delta flows into the pool (trader sent it), negative
		// flows out to the recipient.
		if swap.Amount0 == nil || swap.Amount1 == nil {
			return swapLegs{}
		}
		switch {
		case swap.Amount0.Sign() > 0 && swap.Amount1.Sign() < 0:
			return swapLegs{outSymbol: pair.Token0Symbol, inSymbol: pair.Token1Symbol, resolved: true}
		case swap.Amount1.Sign() > 0 && swap.Amount0.Sign() < 0:
			return swapLegs{outSymbol: pair.Token1Symbol, inSymbol: pair.Token0Symbol, resolved: true}
		default:
			return swapLegs{}
		}
	default:
		return swapLegs{}
	}
}

func evidence(classification model.Classification, confidence float64, label, detail string) model.Evidence {
	ev := model.NewEvidence(SourceSwapDecoder, classification, confidence, label+": "+detail)
	return ev
}

func filterSwaps(events []model.DecodedEvent) []model.DecodedEvent {
	var swaps []model.DecodedEvent
	for _, ev := range events {
		if ev.Kind.IsSwap() {
			swaps = append(swaps, ev)
		}
	}
	return swaps
}

func hasKind(events []model.DecodedEvent, kind model.EventKind) bool {
	for _, ev := range events {
		if ev.Kind == kind {
			return true
		}
	}
	return false
}

func positive(v *big.Int) bool {
	return v != nil && v.Sign() > 0
}
