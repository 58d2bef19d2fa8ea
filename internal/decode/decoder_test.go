package decode

import (
	"fmt"
	"math/big"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/whalewatch/whaletx/internal/domain/model"
)

func addressTopic(addr string) string {
	addr = strings.TrimPrefix(strings.ToLower(addr), "0x")
	return "0x" + strings.Repeat("0", 64-len(addr)) + addr
}

func word(v *big.Int) string {
	return fmt.Sprintf("%064x", v)
}

func dataWords(values ...*big.Int) string {
	var b strings.Builder
	b.WriteString("0x")
	for _, v := range values {
		b.WriteString(word(v))
	}
	return b.String()
}

const (
	addrAlice = "0xaaaa000000000000000000000000000000000001"
	addrBob   = "0xbbbb000000000000000000000000000000000002"
	addrToken = "0xcccc000000000000000000000000000000000003"
	addrPool  = "0xdddd000000000000000000000000000000000004"
)

func TestDecode_ERC20Transfer(t *testing.T) {
	d := NewDecoder(nil)
	amount := big.NewInt(1_500_000)

	ev := d.Decode(model.RawLog{
		Address: addrToken,
		Topics:  []string{topicERC20Transfer, addressTopic(addrAlice), addressTopic(addrBob)},
		Data:    dataWords(amount),
	})

	require.NotNil(t, ev)
	assert.Equal(t, model.EventTransfer, ev.Kind)
	assert.Equal(t, addrToken, ev.Token)
	assert.Equal(t, addrAlice, ev.From)
	assert.Equal(t, addrBob, ev.To)
	assert.Zero(t, amount.Cmp(ev.Amount))
}

func TestDecode_SwapV2(t *testing.T) {
	d := NewDecoder(nil)
	in0, in1 := big.NewInt(1000), big.NewInt(0)
	out0, out1 := big.NewInt(0), big.NewInt(990)

	ev := d.Decode(model.RawLog{
		Address: addrPool,
		Topics:  []string{topicSwapV2, addressTopic(addrAlice), addressTopic(addrBob)},
		Data:    dataWords(in0, in1, out0, out1),
	})

	require.NotNil(t, ev)
	assert.Equal(t, model.EventSwapV2, ev.Kind)
	assert.Equal(t, addrPool, ev.Pool)
	assert.Equal(t, addrAlice, ev.Sender)
	assert.Equal(t, addrBob, ev.Recipient)
	assert.Zero(t, in0.Cmp(ev.Amounts[0]))
	assert.Zero(t, out1.Cmp(ev.Amounts[3]))
}

func TestDecode_SwapV3_SignedAmounts(t *testing.T) {
	d := NewDecoder(nil)

	// amount0 = -500 in two's complement, amount1 = +1000
	negative := new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(500))
	ev := d.Decode(model.RawLog{
		Address: addrPool,
		Topics:  []string{topicSwapV3, addressTopic(addrAlice), addressTopic(addrBob)},
		Data: dataWords(negative, big.NewInt(1000),
			big.NewInt(0), big.NewInt(0), big.NewInt(0)),
	})

	require.NotNil(t, ev)
	assert.Equal(t, model.EventSwapV3, ev.Kind)
	assert.Zero(t, big.NewInt(-500).Cmp(ev.Amount0))
	assert.Zero(t, big.NewInt(1000).Cmp(ev.Amount1))
}

func TestDecode_WethDepositAndWithdrawal(t *testing.T) {
	d := NewDecoder(nil)

	deposit := d.Decode(model.RawLog{
		Address: addrToken,
		Topics:  []string{topicWethDeposit, addressTopic(addrAlice)},
		Data:    dataWords(big.NewInt(42)),
	})
	require.NotNil(t, deposit)
	assert.Equal(t, model.EventWethDeposit, deposit.Kind)
	assert.Equal(t, addrAlice, deposit.To)

	withdrawal := d.Decode(model.RawLog{
		Address: addrToken,
		Topics:  []string{topicWethWithdrawal, addressTopic(addrAlice)},
		Data:    dataWords(big.NewInt(42)),
	})
	require.NotNil(t, withdrawal)
	assert.Equal(t, model.EventWethWithdraw, withdrawal.Kind)
	assert.Equal(t, addrAlice, withdrawal.From)
}

func TestDecode_MintAndBurn(t *testing.T) {
	d := NewDecoder(nil)

	mint := d.Decode(model.RawLog{
		Address: addrPool,
		Topics:  []string{topicMintV2, addressTopic(addrAlice)},
		Data:    dataWords(big.NewInt(1), big.NewInt(2)),
	})
	require.NotNil(t, mint)
	assert.Equal(t, model.EventMint, mint.Kind)

	burn := d.Decode(model.RawLog{
		Address: addrPool,
		Topics:  []string{topicBurnV2, addressTopic(addrAlice), addressTopic(addrBob)},
		Data:    dataWords(big.NewInt(1), big.NewInt(2)),
	})
	require.NotNil(t, burn)
	assert.Equal(t, model.EventBurn, burn.Kind)
}

func TestDecode_FlashLoan(t *testing.T) {
	d := NewDecoder(nil)

	ev := d.Decode(model.RawLog{
		Address: addrPool,
		Topics: []string{topicAaveFlashLoan, addressTopic(addrAlice),
			addressTopic(addrBob), addressTopic(addrToken)},
		Data: dataWords(big.NewInt(9999), big.NewInt(0), big.NewInt(9), big.NewInt(0)),
	})

	require.NotNil(t, ev)
	assert.Equal(t, model.EventFlashLoan, ev.Kind)
	assert.Equal(t, addrToken, ev.Token)
	assert.Zero(t, big.NewInt(9999).Cmp(ev.Amount))
}

func TestDecode_MalformedInputsReturnNil(t *testing.T) {
	d := NewDecoder(nil)

	testCases := []struct {
		name string
		log  model.RawLog
	}{
		{
			name: "no topics",
			log:  model.RawLog{Address: addrToken, Data: "0x"},
		},
		{
			name: "unknown signature",
			log: model.RawLog{
				Address: addrToken,
				Topics:  []string{"0x" + strings.Repeat("ab", 32)},
				Data:    dataWords(big.NewInt(1)),
			},
		},
		{
			name: "truncated data",
			log: model.RawLog{
				Address: addrToken,
				Topics:  []string{topicERC20Transfer, addressTopic(addrAlice), addressTopic(addrBob)},
				Data:    "0xdeadbeef",
			},
		},
		{
			name: "non-hex data",
			log: model.RawLog{
				Address: addrToken,
				Topics:  []string{topicERC20Transfer, addressTopic(addrAlice), addressTopic(addrBob)},
				Data:    "0x" + strings.Repeat("zz", 32),
			},
		},
		{
			name: "transfer with missing indexed topics",
			log: model.RawLog{
				Address: addrToken,
				Topics:  []string{topicERC20Transfer},
				Data:    dataWords(big.NewInt(1)),
			},
		},
		{
			name: "swap v2 with wrong word count",
			log: model.RawLog{
				Address: addrPool,
				Topics:  []string{topicSwapV2, addressTopic(addrAlice), addressTopic(addrBob)},
				Data:    dataWords(big.NewInt(1), big.NewInt(2)),
			},
		},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			assert.Nil(t, d.Decode(tc.log))
		})
	}
}

func TestDecodeAll_SkipsUndecodable(t *testing.T) {
	d := NewDecoder(nil)

	events := d.DecodeAll([]model.RawLog{
		{
			Address: addrToken,
			Topics:  []string{topicERC20Transfer, addressTopic(addrAlice), addressTopic(addrBob)},
			Data:    dataWords(big.NewInt(5)),
		},
		{Address: addrToken, Topics: []string{"0x" + strings.Repeat("00", 32)}, Data: "0x"},
	})

	require.Len(t, events, 1)
	assert.Equal(t, model.EventTransfer, events[0].Kind)
}

func TestDecodeMethodSelector(t *testing.T) {
	m := DecodeMethodSelector("0x38ed1739")
	require.NotNil(t, m)
	assert.Equal(t, "swapExactTokensForTokens", m.Name)
	assert.Equal(t, MethodSwap, m.Kind)

	assert.Nil(t, DecodeMethodSelector("0xdeadbeef"))
	assert.Nil(t, DecodeMethodSelector(""))
	assert.Nil(t, DecodeMethodSelector("0x38ed17"))
}

func TestPairRegistry_StaticAndDynamic(t *testing.T) {
	r := NewPairRegistry(16, 0)

	// Static seed, case-insensitive.
	p, ok := r.Lookup("0xB4E16D0168E52D35CACD2C6185B44281EC28C9DC")
	require.True(t, ok)
	assert.Equal(t, "USDC", p.Token0Symbol)
	assert.Equal(t, "WETH", p.Token1Symbol)

	_, ok = r.Lookup(addrPool)
	assert.False(t, ok)

	r.Put(PairInfo{Pool: addrPool, Token0Symbol: "PEPE", Token1Symbol: "WETH"})
	p, ok = r.Lookup(addrPool)
	require.True(t, ok)
	assert.Equal(t, "PEPE", p.Token0Symbol)
}
