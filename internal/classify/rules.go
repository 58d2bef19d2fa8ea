package classify

import (
	"fmt"

	"github.com/whalewatch/whaletx/internal/domain/model"
)

// SourceRuleEngine tags evidence derived from address-role rules.
const SourceRuleEngine = "rule_engine"

// RuleInput is everything a role rule may look at. Rules are pure functions
// of this input; no rule touches shared state.
type RuleInput struct {
	TxHash      string
	Chain       model.Chain
	TokenSymbol string
	From        *model.AddressRole
	To          *model.AddressRole
}

// RoleRule evaluates one counterparty pattern. Evaluate returns nil when the
// rule does not apply; the resolver takes the first non-nil result.
type RoleRule struct {
	Name     string
	Chains   []model.Chain // empty means all chains
	Evaluate func(in RuleInput) *model.ClassificationResult
}

func (r RoleRule) appliesTo(chain model.Chain) bool {
	if len(r.Chains) == 0 {
		return true
	}
	for _, c := range r.Chains {
		if c == chain {
			return true
		}
	}
	return false
}

// RoleResolver runs an ordered rule list over the two address roles of a
// transaction. Order is part of the contract: earlier rules are more
// decisive and shadow later ones.
type RoleResolver struct {
	rules []RoleRule
}

// NewRoleResolver builds the resolver with the default rule order.
func NewRoleResolver() *RoleResolver {
	return &RoleResolver{rules: defaultRules()}
}

// NewRoleResolverWithRules exists for tests and custom deployments that need
// a different rule order.
func NewRoleResolverWithRules(rules []RoleRule) *RoleResolver {
	return &RoleResolver{rules: rules}
}

// Classify returns the first matching rule's result, or the fallback
// unknown verdict when nothing fires.
func (r *RoleResolver) Classify(in RuleInput) model.ClassificationResult {
	for _, rule := range r.rules {
		if !rule.appliesTo(in.Chain) {
			continue
		}
		if result := rule.Evaluate(in); result != nil {
			result.TriggeredRule = rule.Name
			return *result
		}
	}
	return model.NewClassificationResult(in.TxHash, model.ClassificationUnknown, 0.3,
		"fallback", "no address-role rule matched", nil)
}

func defaultRules() []RoleRule {
	return []RoleRule{
		{Name: "exchange_deposit", Evaluate: evaluateExchangeDeposit},
		{Name: "exchange_withdrawal", Evaluate: evaluateExchangeWithdrawal},
		{Name: "dex_swap", Evaluate: evaluateDexSwap},
		{Name: "bridge", Evaluate: evaluateBridge},
		{Name: "same_owner", Evaluate: evaluateSameOwner},
	}
}

// Personal or unlabeled address sending to an exchange: tokens arriving on a
// CEX are overwhelmingly a prelude to selling.
func evaluateExchangeDeposit(in RuleInput) *model.ClassificationResult {
	if !isPersonalish(in.From) || in.To.CategoryOrUnknown() != model.RoleExchange {
		return nil
	}
	// The exchange label carries most of the signal.
	confidence := 0.4*in.From.ConfidenceOrZero() + 0.6*in.To.ConfidenceOrZero()
	result := model.NewClassificationResult(in.TxHash, model.ClassificationSell, confidence, "",
		fmt.Sprintf("deposit to exchange %s", labelOf(in.To)), nil)
	return &result
}

func evaluateExchangeWithdrawal(in RuleInput) *model.ClassificationResult {
	if in.From.CategoryOrUnknown() != model.RoleExchange || !isPersonalish(in.To) {
		return nil
	}
	confidence := 0.6*in.From.ConfidenceOrZero() + 0.4*in.To.ConfidenceOrZero()
	result := model.NewClassificationResult(in.TxHash, model.ClassificationBuy, confidence, "",
		fmt.Sprintf("withdrawal from exchange %s", labelOf(in.From)), nil)
	return &result
}

// Personal address trading against a DEX contract. Direction depends on
// whether the leg moving toward the DEX is a stablecoin.
func evaluateDexSwap(in RuleInput) *model.ClassificationResult {
	fromCat, toCat := in.From.CategoryOrUnknown(), in.To.CategoryOrUnknown()

	switch {
	case fromCat == model.RolePersonal && toCat == model.RoleDex:
		confidence := 0.4*in.From.ConfidenceOrZero() + 0.6*in.To.ConfidenceOrZero()
		if model.IsStablecoin(in.TokenSymbol) {
			result := model.NewClassificationResult(in.TxHash, model.ClassificationBuy, confidence, "",
				fmt.Sprintf("stablecoin %s sent to dex %s to acquire another asset", in.TokenSymbol, labelOf(in.To)), nil)
			return &result
		}
		result := model.NewClassificationResult(in.TxHash, model.ClassificationSell, confidence, "",
			fmt.Sprintf("%s sent to dex %s", in.TokenSymbol, labelOf(in.To)), nil)
		return &result
	case fromCat == model.RoleDex && toCat == model.RolePersonal:
		confidence := 0.6*in.From.ConfidenceOrZero() + 0.4*in.To.ConfidenceOrZero()
		if model.IsStablecoin(in.TokenSymbol) {
			result := model.NewClassificationResult(in.TxHash, model.ClassificationSell, confidence, "",
				fmt.Sprintf("stablecoin %s received from dex %s for a sold asset", in.TokenSymbol, labelOf(in.From)), nil)
			return &result
		}
		result := model.NewClassificationResult(in.TxHash, model.ClassificationBuy, confidence, "",
			fmt.Sprintf("%s received from dex %s", in.TokenSymbol, labelOf(in.From)), nil)
		return &result
	default:
		return nil
	}
}

// Either side being a bridge is sufficient: the movement is a relocation,
// not a trade.
func evaluateBridge(in RuleInput) *model.ClassificationResult {
	if in.From.CategoryOrUnknown() != model.RoleBridge && in.To.CategoryOrUnknown() != model.RoleBridge {
		return nil
	}
	confidence := max(in.From.ConfidenceOrZero(), in.To.ConfidenceOrZero())
	result := model.NewClassificationResult(in.TxHash, model.ClassificationTransfer, confidence, "",
		"bridge transfer", nil)
	return &result
}

// Both sides market makers, or both addresses resolving to one entity
// cluster: internal repositioning.
func evaluateSameOwner(in RuleInput) *model.ClassificationResult {
	bothMM := in.From.CategoryOrUnknown() == model.RoleMarketMaker &&
		in.To.CategoryOrUnknown() == model.RoleMarketMaker
	sameEntity := in.From.EntityID() != "" && in.From.EntityID() == in.To.EntityID()
	if !bothMM && !sameEntity {
		return nil
	}
	confidence := 0.5*in.From.ConfidenceOrZero() + 0.5*in.To.ConfidenceOrZero()
	result := model.NewClassificationResult(in.TxHash, model.ClassificationTransfer, confidence, "",
		"movement between addresses of the same owner", nil)
	return &result
}

func isPersonalish(role *model.AddressRole) bool {
	cat := role.CategoryOrUnknown()
	return cat == model.RolePersonal || cat == model.RoleUnknown
}

func labelOf(role *model.AddressRole) string {
	if role == nil || role.Label == "" {
		return "unlabeled"
	}
	return role.Label
}
