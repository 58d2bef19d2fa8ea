package rpc

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"strings"

	"github.com/whalewatch/whaletx/internal/domain/model"
	"github.com/whalewatch/whaletx/internal/fetch"
)

func (c *Client) getTransactionReceipt(ctx context.Context, hash string) (*TransactionReceipt, error) {
	result, err := c.call(ctx, "eth_getTransactionReceipt", []interface{}{hash})
	if err != nil {
		return nil, fmt.Errorf("eth_getTransactionReceipt(%s): %w", hash, err)
	}
	if string(result) == "null" {
		return nil, nil
	}

	var receipt TransactionReceipt
	if err := json.Unmarshal(result, &receipt); err != nil {
		return nil, fmt.Errorf("unmarshal receipt: %w", err)
	}
	if receipt.Status == "" {
		return nil, fmt.Errorf("receipt for %s has no status field", hash)
	}
	return &receipt, nil
}

func (c *Client) getTransactionByHash(ctx context.Context, hash string) (*Transaction, error) {
	result, err := c.call(ctx, "eth_getTransactionByHash", []interface{}{hash})
	if err != nil {
		return nil, fmt.Errorf("eth_getTransactionByHash(%s): %w", hash, err)
	}
	if string(result) == "null" {
		return nil, nil
	}

	var tx Transaction
	if err := json.Unmarshal(result, &tx); err != nil {
		return nil, fmt.Errorf("unmarshal transaction: %w", err)
	}
	return &tx, nil
}

// FetchReceipt implements fetch.ReceiptProvider. The receipt and the
// transaction body are fetched together because the method selector and
// native value only exist on the transaction, not the receipt.
func (c *Client) FetchReceipt(ctx context.Context, chain model.Chain, txHash string) (*model.Receipt, error) {
	wireReceipt, err := c.getTransactionReceipt(ctx, txHash)
	if err != nil {
		return nil, err
	}
	if wireReceipt == nil {
		return nil, fetch.ErrReceiptNotFound
	}

	out := &model.Receipt{
		TxHash: txHash,
		Chain:  chain,
		Status: parseStatus(wireReceipt.Status),
		From:   strings.ToLower(wireReceipt.From),
		To:     strings.ToLower(wireReceipt.To),
		Logs:   make([]model.RawLog, 0, len(wireReceipt.Logs)),
	}
	for _, l := range wireReceipt.Logs {
		if l == nil || l.Removed {
			continue
		}
		out.Logs = append(out.Logs, model.RawLog{
			Address: strings.ToLower(l.Address),
			Topics:  l.Topics,
			Data:    l.Data,
		})
	}

	// Best-effort enrichment: a receipt without calldata context is still
	// usable, the classifier just loses the method-name branch.
	tx, err := c.getTransactionByHash(ctx, txHash)
	if err != nil {
		c.logger.Debug("transaction body unavailable", "tx_hash", txHash, "err", err)
		return out, nil
	}
	if tx != nil {
		out.MethodSig = methodSelector(tx.Input)
		out.NativeValue = parseHexValue(tx.Value)
	}
	return out, nil
}

func parseStatus(status string) model.TxStatus {
	if status == "0x1" {
		return model.TxStatusSuccess
	}
	return model.TxStatusFailed
}

// methodSelector extracts the 4-byte selector from calldata, "" when the
// input is plain value transfer or malformed.
func methodSelector(input string) string {
	input = strings.ToLower(strings.TrimPrefix(input, "0x"))
	if len(input) < 8 {
		return ""
	}
	return "0x" + input[:8]
}

func parseHexValue(hexValue string) string {
	hexValue = strings.TrimPrefix(hexValue, "0x")
	if hexValue == "" {
		return "0"
	}
	v, ok := new(big.Int).SetString(hexValue, 16)
	if !ok {
		return "0"
	}
	return v.String()
}
