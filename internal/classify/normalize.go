package classify

import (
	"strings"

	"github.com/whalewatch/whaletx/internal/domain/model"
)

// Label providers return free-form text ("Binance 14", "Uniswap V3:
// Router 2", "Wintermute: MM"). Normalization happens once, here, at the
// provider boundary; everything downstream sees only the closed
// RoleCategory enum.

type keywordRule struct {
	keywords []string
	category model.RoleCategory
}

// Matching order matters: "uniswap bridge portal" should be a bridge before
// it is a dex only if bridge keywords are checked first, so the more
// specific movement categories precede the venue categories.
var keywordRules = []keywordRule{
	{
		keywords: []string{"bridge", "wormhole", "stargate", "across", "hop protocol", "portal", "anyswap", "multichain"},
		category: model.RoleBridge,
	},
	{
		keywords: []string{"market maker", "wintermute", "jump trading", "gsr", "amber group", "cumberland", "dwf labs"},
		category: model.RoleMarketMaker,
	},
	{
		keywords: []string{"uniswap", "sushiswap", "pancakeswap", "curve", "balancer", "1inch", "0x:", "dex", "router", "aggregator"},
		category: model.RoleDex,
	},
	{
		keywords: []string{"binance", "coinbase", "kraken", "okx", "okex", "bybit", "bitfinex", "huobi", "htx", "gate.io", "kucoin", "gemini", "upbit", "exchange", "cex"},
		category: model.RoleExchange,
	},
	{
		keywords: []string{"eoa", "wallet", "personal", "individual"},
		category: model.RolePersonal,
	},
}

// NormalizeLabel maps a provider label onto the closed category set. An
// empty or unmatched label is Unknown, not Personal: absence of evidence is
// not evidence of a retail wallet.
func NormalizeLabel(label string) model.RoleCategory {
	lower := strings.ToLower(strings.TrimSpace(label))
	if lower == "" {
		return model.RoleUnknown
	}
	for _, rule := range keywordRules {
		for _, keyword := range rule.keywords {
			if strings.Contains(lower, keyword) {
				return rule.category
			}
		}
	}
	return model.RoleUnknown
}
