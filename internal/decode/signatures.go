package decode

import (
	"github.com/ethereum/go-ethereum/crypto"
)

// Event signature topics, derived from the canonical event declarations at
// init so the hex constants can never drift from the signatures.
var (
	topicERC20Transfer  = eventTopic("Transfer(address,address,uint256)")
	topicSwapV2         = eventTopic("Swap(address,uint256,uint256,uint256,uint256,address)")
	topicSwapV3         = eventTopic("Swap(address,address,int256,int256,uint160,uint128,int24)")
	topicMintV2         = eventTopic("Mint(address,uint256,uint256)")
	topicBurnV2         = eventTopic("Burn(address,uint256,uint256,address)")
	topicWethDeposit    = eventTopic("Deposit(address,uint256)")
	topicWethWithdrawal = eventTopic("Withdrawal(address,uint256)")
	topicAaveFlashLoan  = eventTopic("FlashLoan(address,address,address,uint256,uint8,uint256,uint16)")
)

func eventTopic(signature string) string {
	return crypto.Keccak256Hash([]byte(signature)).Hex()
}

// MethodKind groups known selectors by what they mean to the classifier.
type MethodKind string

const (
	MethodSwap            MethodKind = "swap"
	MethodAddLiquidity    MethodKind = "add_liquidity"
	MethodRemoveLiquidity MethodKind = "remove_liquidity"
	MethodWrap            MethodKind = "wrap"
	MethodUnwrap          MethodKind = "unwrap"
	MethodTransfer        MethodKind = "transfer"
	MethodApprove         MethodKind = "approve"
)

type Method struct {
	Name string
	Kind MethodKind
}

// methodSelectors is the static 4-byte selector table, loaded once at
// startup and never mutated. Sushi's router reuses the Uniswap V2 selectors.
var methodSelectors = map[string]Method{
	// Uniswap V2 / Sushi router
	"0x38ed1739": {Name: "swapExactTokensForTokens", Kind: MethodSwap},
	"0x8803dbee": {Name: "swapTokensForExactTokens", Kind: MethodSwap},
	"0x7ff36ab5": {Name: "swapExactETHForTokens", Kind: MethodSwap},
	"0x18cbafe5": {Name: "swapExactTokensForETH", Kind: MethodSwap},
	"0xfb3bdb41": {Name: "swapETHForExactTokens", Kind: MethodSwap},
	"0x4a25d94a": {Name: "swapTokensForExactETH", Kind: MethodSwap},
	// Uniswap V3 router
	"0x414bf389": {Name: "exactInputSingle", Kind: MethodSwap},
	"0xc04b8d59": {Name: "exactInput", Kind: MethodSwap},
	"0xdb3e2198": {Name: "exactOutputSingle", Kind: MethodSwap},
	"0xf28c0498": {Name: "exactOutput", Kind: MethodSwap},
	"0x5ae401dc": {Name: "multicall", Kind: MethodSwap},
	// Liquidity management
	"0xe8e33700": {Name: "addLiquidity", Kind: MethodAddLiquidity},
	"0xf305d719": {Name: "addLiquidityETH", Kind: MethodAddLiquidity},
	"0xbaa2abde": {Name: "removeLiquidity", Kind: MethodRemoveLiquidity},
	"0x02751cec": {Name: "removeLiquidityETH", Kind: MethodRemoveLiquidity},
	// WETH
	"0xd0e30db0": {Name: "deposit", Kind: MethodWrap},
	"0x2e1a7d4d": {Name: "withdraw", Kind: MethodUnwrap},
	// ERC-20
	"0xa9059cbb": {Name: "transfer", Kind: MethodTransfer},
	"0x23b872dd": {Name: "transferFrom", Kind: MethodTransfer},
	"0x095ea7b3": {Name: "approve", Kind: MethodApprove},
}

// DecodeMethodSelector resolves a 4-byte selector ("0x" + 8 hex chars) to a
// known method, or nil when the selector is unknown or malformed.
func DecodeMethodSelector(selector string) *Method {
	if len(selector) != 10 {
		return nil
	}
	m, ok := methodSelectors[selector]
	if !ok {
		return nil
	}
	return &m
}
