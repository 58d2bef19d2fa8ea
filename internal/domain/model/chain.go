package model

import (
	"fmt"
	"strings"
)

type Chain string

const (
	ChainEthereum Chain = "ethereum"
	ChainBase     Chain = "base"
	ChainPolygon  Chain = "polygon"
	ChainArbitrum Chain = "arbitrum"
	ChainBSC      Chain = "bsc"
)

func (c Chain) String() string {
	return string(c)
}

// ParseChain maps a configuration string onto a known chain.
func ParseChain(s string) (Chain, error) {
	switch Chain(strings.ToLower(s)) {
	case ChainEthereum:
		return ChainEthereum, nil
	case ChainBase:
		return ChainBase, nil
	case ChainPolygon:
		return ChainPolygon, nil
	case ChainArbitrum:
		return ChainArbitrum, nil
	case ChainBSC:
		return ChainBSC, nil
	default:
		return "", fmt.Errorf("unknown chain %q", s)
	}
}

// NativeSymbol returns the chain's base asset symbol. Swap direction against
// the base asset (or its wrapped form) is resolved relative to this token.
func (c Chain) NativeSymbol() string {
	switch c {
	case ChainPolygon:
		return "MATIC"
	case ChainBSC:
		return "BNB"
	default:
		return "ETH"
	}
}

// WrappedNativeSymbol returns the canonical wrapped form of the base asset.
func (c Chain) WrappedNativeSymbol() string {
	return "W" + c.NativeSymbol()
}

type TxStatus string

const (
	TxStatusSuccess TxStatus = "SUCCESS"
	TxStatusFailed  TxStatus = "FAILED"
)
