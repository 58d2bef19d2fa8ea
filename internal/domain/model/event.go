package model

import "math/big"

type EventKind string

const (
	EventTransfer     EventKind = "TRANSFER"
	EventSwapV2       EventKind = "SWAP_V2"
	EventSwapV3       EventKind = "SWAP_V3"
	EventMint         EventKind = "MINT"
	EventBurn         EventKind = "BURN"
	EventWethDeposit  EventKind = "WETH_DEPOSIT"
	EventWethWithdraw EventKind = "WETH_WITHDRAW"
	EventFlashLoan    EventKind = "FLASH_LOAN"
)

func (k EventKind) IsSwap() bool {
	return k == EventSwapV2 || k == EventSwapV3
}

// DecodedEvent is the structural interpretation of one RawLog. Which fields
// are populated depends on Kind:
//
//	TRANSFER:            Token, From, To, Amount
//	SWAP_V2:             Pool, Sender, Recipient, Amounts (in0, in1, out0, out1)
//	SWAP_V3:             Pool, Sender, Recipient, Amount0, Amount1 (signed)
//	MINT/BURN:           Pool
//	WETH_DEPOSIT/..:     Token (the WETH contract), From or To, Amount
//	FLASH_LOAN:          Pool (lending pool), Token, Amount
//
// Derived deterministically from the log; never mutated afterwards.
type DecodedEvent struct {
	Kind      EventKind
	Token     string
	Pool      string
	From      string
	To        string
	Sender    string
	Recipient string
	Amount    *big.Int
	Amounts   [4]*big.Int // v2 swap legs: amount0In, amount1In, amount0Out, amount1Out
	Amount0   *big.Int    // v3 swap delta for token0, negative = leaves the pool
	Amount1   *big.Int
}
