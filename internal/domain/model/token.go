package model

import "strings"

// stablecoins is the closed set of symbols treated as USD-pegged for swap
// direction resolution.
var stablecoins = map[string]struct{}{
	"USDT": {}, "USDC": {}, "DAI": {}, "BUSD": {}, "TUSD": {},
	"USDP": {}, "FRAX": {}, "LUSD": {}, "GUSD": {}, "USDD": {},
	"USDC.E": {}, "FDUSD": {},
}

func IsStablecoin(symbol string) bool {
	_, ok := stablecoins[strings.ToUpper(symbol)]
	return ok
}

// IsBaseAsset reports whether symbol is the chain's native asset or its
// wrapped form.
func IsBaseAsset(chain Chain, symbol string) bool {
	upper := strings.ToUpper(symbol)
	return upper == chain.NativeSymbol() || upper == chain.WrappedNativeSymbol()
}
