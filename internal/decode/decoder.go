// Package decode turns raw receipt logs into typed domain events. Decoding
// is purely structural and best-effort: a malformed or unknown log yields
// nil, never an error that could abort a batch.
package decode

import (
	"encoding/hex"
	"log/slog"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/whalewatch/whaletx/internal/domain/model"
	"github.com/whalewatch/whaletx/internal/metrics"
)

const wordSize = 32

type decodeFunc func(log model.RawLog, words []*big.Int) *model.DecodedEvent

// Decoder maps known topic-0 signatures to structural decode functions.
// The registry is fixed at construction; decoders are stateless.
type Decoder struct {
	registry map[string]decodeFunc
	logger   *slog.Logger
}

func NewDecoder(logger *slog.Logger) *Decoder {
	if logger == nil {
		logger = slog.Default()
	}
	d := &Decoder{logger: logger.With("component", "decode")}
	d.registry = map[string]decodeFunc{
		topicERC20Transfer:  d.decodeTransfer,
		topicSwapV2:         d.decodeSwapV2,
		topicSwapV3:         d.decodeSwapV3,
		topicMintV2:         d.decodeMint,
		topicBurnV2:         d.decodeBurn,
		topicWethDeposit:    d.decodeWethDeposit,
		topicWethWithdrawal: d.decodeWethWithdrawal,
		topicAaveFlashLoan:  d.decodeFlashLoan,
	}
	return d
}

// Decode returns the typed event for one log, or nil when the signature is
// unknown or the payload does not match the expected layout.
func (d *Decoder) Decode(log model.RawLog) *model.DecodedEvent {
	topic0 := normalizeTopic(log.Topic0())
	if topic0 == "" {
		metrics.DecodeSkippedTotal.WithLabelValues("no_topics").Inc()
		return nil
	}
	fn, ok := d.registry[topic0]
	if !ok {
		metrics.DecodeSkippedTotal.WithLabelValues("unknown_signature").Inc()
		return nil
	}

	words, ok := splitWords(log.Data)
	if !ok {
		d.logger.Debug("malformed log data", "address", log.Address, "topic0", topic0)
		metrics.DecodeSkippedTotal.WithLabelValues("malformed_data").Inc()
		return nil
	}

	event := fn(log, words)
	if event == nil {
		metrics.DecodeSkippedTotal.WithLabelValues("layout_mismatch").Inc()
		return nil
	}
	metrics.DecodedEventsTotal.WithLabelValues(string(event.Kind)).Inc()
	return event
}

// DecodeAll decodes every log of a receipt, dropping the undecodable ones.
func (d *Decoder) DecodeAll(logs []model.RawLog) []model.DecodedEvent {
	events := make([]model.DecodedEvent, 0, len(logs))
	for _, log := range logs {
		if ev := d.Decode(log); ev != nil {
			events = append(events, *ev)
		}
	}
	return events
}

// Transfer(address indexed from, address indexed to, uint256 value)
func (d *Decoder) decodeTransfer(log model.RawLog, words []*big.Int) *model.DecodedEvent {
	if len(log.Topics) != 3 || len(words) != 1 {
		return nil
	}
	return &model.DecodedEvent{
		Kind:   model.EventTransfer,
		Token:  log.Address,
		From:   topicAddress(log.Topics[1]),
		To:     topicAddress(log.Topics[2]),
		Amount: words[0],
	}
}

// Swap(address indexed sender, uint256 amount0In, uint256 amount1In,
//
//	uint256 amount0Out, uint256 amount1Out, address indexed to)
func (d *Decoder) decodeSwapV2(log model.RawLog, words []*big.Int) *model.DecodedEvent {
	if len(log.Topics) != 3 || len(words) != 4 {
		return nil
	}
	return &model.DecodedEvent{
		Kind:      model.EventSwapV2,
		Pool:      log.Address,
		Sender:    topicAddress(log.Topics[1]),
		Recipient: topicAddress(log.Topics[2]),
		Amounts:   [4]*big.Int{words[0], words[1], words[2], words[3]},
	}
}

// Swap(address indexed sender, address indexed recipient, int256 amount0,
//
//	int256 amount1, uint160 sqrtPriceX96, uint128 liquidity, int24 tick)
func (d *Decoder) decodeSwapV3(log model.RawLog, words []*big.Int) *model.DecodedEvent {
	if len(log.Topics) != 3 || len(words) != 5 {
		return nil
	}
	return &model.DecodedEvent{
		Kind:      model.EventSwapV3,
		Pool:      log.Address,
		Sender:    topicAddress(log.Topics[1]),
		Recipient: topicAddress(log.Topics[2]),
		Amount0:   toSigned(words[0]),
		Amount1:   toSigned(words[1]),
	}
}

// Mint(address indexed sender, uint256 amount0, uint256 amount1)
func (d *Decoder) decodeMint(log model.RawLog, words []*big.Int) *model.DecodedEvent {
	if len(log.Topics) != 2 || len(words) != 2 {
		return nil
	}
	return &model.DecodedEvent{Kind: model.EventMint, Pool: log.Address}
}

// Burn(address indexed sender, uint256 amount0, uint256 amount1, address indexed to)
func (d *Decoder) decodeBurn(log model.RawLog, words []*big.Int) *model.DecodedEvent {
	if len(log.Topics) != 3 || len(words) != 2 {
		return nil
	}
	return &model.DecodedEvent{Kind: model.EventBurn, Pool: log.Address}
}

// Deposit(address indexed dst, uint256 wad)
func (d *Decoder) decodeWethDeposit(log model.RawLog, words []*big.Int) *model.DecodedEvent {
	if len(log.Topics) != 2 || len(words) != 1 {
		return nil
	}
	return &model.DecodedEvent{
		Kind:   model.EventWethDeposit,
		Token:  log.Address,
		To:     topicAddress(log.Topics[1]),
		Amount: words[0],
	}
}

// Withdrawal(address indexed src, uint256 wad)
func (d *Decoder) decodeWethWithdrawal(log model.RawLog, words []*big.Int) *model.DecodedEvent {
	if len(log.Topics) != 2 || len(words) != 1 {
		return nil
	}
	return &model.DecodedEvent{
		Kind:   model.EventWethWithdraw,
		Token:  log.Address,
		From:   topicAddress(log.Topics[1]),
		Amount: words[0],
	}
}

// FlashLoan(address indexed target, address indexed initiator,
//
//	address indexed asset, uint256 amount, uint8 interestRateMode,
//	uint256 premium, uint16 referralCode)
func (d *Decoder) decodeFlashLoan(log model.RawLog, words []*big.Int) *model.DecodedEvent {
	if len(log.Topics) != 4 || len(words) != 4 {
		return nil
	}
	return &model.DecodedEvent{
		Kind:   model.EventFlashLoan,
		Pool:   log.Address,
		Token:  topicAddress(log.Topics[3]),
		Amount: words[0],
	}
}

// splitWords decodes hex data into fixed 32-byte words. Empty data is a
// valid zero-word payload; anything not word-aligned is rejected.
func splitWords(data string) ([]*big.Int, bool) {
	data = strings.TrimPrefix(strings.TrimSpace(data), "0x")
	if data == "" {
		return nil, true
	}
	raw, err := hex.DecodeString(data)
	if err != nil || len(raw)%wordSize != 0 {
		return nil, false
	}
	words := make([]*big.Int, 0, len(raw)/wordSize)
	for i := 0; i < len(raw); i += wordSize {
		words = append(words, new(big.Int).SetBytes(raw[i:i+wordSize]))
	}
	return words, true
}

// topicAddress extracts the address packed into a 32-byte indexed topic.
func topicAddress(topic string) string {
	topic = strings.TrimPrefix(topic, "0x")
	if len(topic) != 64 {
		return ""
	}
	return strings.ToLower(common.HexToAddress("0x" + topic[24:]).Hex())
}

// toSigned reinterprets a 256-bit word as a two's complement int256 so V3
// swap deltas keep their sign.
func toSigned(word *big.Int) *big.Int {
	if word.BitLen() < 256 {
		return word
	}
	return new(big.Int).Sub(word, new(big.Int).Lsh(big.NewInt(1), 256))
}

func normalizeTopic(topic string) string {
	return strings.ToLower(topic)
}
