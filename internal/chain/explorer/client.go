// Package explorer implements the last-resort receipt provider backed by an
// Etherscan-style HTTP API. The proxy endpoints mirror eth JSON-RPC results,
// but errors arrive as status/message envelopes and rate limiting as plain
// strings in the result field, so validation differs from the rpc client.
package explorer

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math/big"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/whalewatch/whaletx/internal/domain/model"
	"github.com/whalewatch/whaletx/internal/fetch"
	"github.com/whalewatch/whaletx/internal/retry"
)

const defaultTimeout = 20 * time.Second

type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	name       string
	logger     *slog.Logger
}

func NewClient(name, baseURL, apiKey string, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		httpClient: &http.Client{Timeout: defaultTimeout},
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		name:       name,
		logger:     logger.With("component", "explorer", "provider", name),
	}
}

func (c *Client) Name() string { return c.name }

// proxyEnvelope wraps proxy-module responses. On success Result holds the
// JSON-RPC result object; on failure it holds a bare error string.
type proxyEnvelope struct {
	Status  string          `json:"status,omitempty"`
	Message string          `json:"message,omitempty"`
	Result  json.RawMessage `json:"result"`
}

type wireReceipt struct {
	TransactionHash string `json:"transactionHash"`
	Status          string `json:"status"`
	From            string `json:"from"`
	To              string `json:"to"`
	Logs            []struct {
		Address string   `json:"address"`
		Topics  []string `json:"topics"`
		Data    string   `json:"data"`
	} `json:"logs"`
}

type wireTransaction struct {
	Hash  string `json:"hash"`
	Value string `json:"value"`
	Input string `json:"input"`
}

// FetchReceipt implements fetch.ReceiptProvider.
func (c *Client) FetchReceipt(ctx context.Context, chain model.Chain, txHash string) (*model.Receipt, error) {
	var receipt wireReceipt
	found, err := c.proxyCall(ctx, "eth_getTransactionReceipt", txHash, &receipt)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, fetch.ErrReceiptNotFound
	}
	if receipt.Status == "" {
		return nil, fmt.Errorf("explorer receipt for %s has no status field", txHash)
	}

	out := &model.Receipt{
		TxHash: txHash,
		Chain:  chain,
		Status: model.TxStatusFailed,
		From:   strings.ToLower(receipt.From),
		To:     strings.ToLower(receipt.To),
	}
	if receipt.Status == "0x1" {
		out.Status = model.TxStatusSuccess
	}
	for _, l := range receipt.Logs {
		out.Logs = append(out.Logs, model.RawLog{
			Address: strings.ToLower(l.Address),
			Topics:  l.Topics,
			Data:    l.Data,
		})
	}

	var tx wireTransaction
	if found, err := c.proxyCall(ctx, "eth_getTransactionByHash", txHash, &tx); err == nil && found {
		if input := strings.ToLower(strings.TrimPrefix(tx.Input, "0x")); len(input) >= 8 {
			out.MethodSig = "0x" + input[:8]
		}
		if v, ok := new(big.Int).SetString(strings.TrimPrefix(tx.Value, "0x"), 16); ok {
			out.NativeValue = v.String()
		}
	}
	return out, nil
}

func (c *Client) proxyCall(ctx context.Context, action, txHash string, result interface{}) (bool, error) {
	q := url.Values{}
	q.Set("module", "proxy")
	q.Set("action", action)
	q.Set("txhash", txHash)
	if c.apiKey != "" {
		q.Set("apikey", c.apiKey)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api?"+q.Encode(), nil)
	if err != nil {
		return false, retry.Terminal(fmt.Errorf("create request: %w", err))
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return false, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode == http.StatusTooManyRequests {
		return false, retry.SkipProvider(fmt.Errorf("http status 429: %s", c.name))
	}
	if resp.StatusCode != http.StatusOK {
		return false, fmt.Errorf("http status %d", resp.StatusCode)
	}

	trimmed := strings.TrimSpace(string(body))
	if trimmed == "" || trimmed[0] == '<' {
		return false, retry.SkipProvider(fmt.Errorf("html response from %s", c.name))
	}

	var envelope proxyEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		return false, retry.SkipProvider(fmt.Errorf("non-json response: %w", err))
	}

	// NOTOK envelopes carry the failure detail as a result string.
	var resultStr string
	if json.Unmarshal(envelope.Result, &resultStr) == nil {
		lower := strings.ToLower(resultStr)
		if strings.Contains(lower, "rate limit") {
			return false, retry.SkipProvider(fmt.Errorf("rate limit: %s", resultStr))
		}
		if envelope.Message == "NOTOK" || envelope.Status == "0" {
			return false, fmt.Errorf("explorer error: %s", resultStr)
		}
	}
	if string(envelope.Result) == "null" {
		return false, nil
	}
	if err := json.Unmarshal(envelope.Result, result); err != nil {
		return false, fmt.Errorf("unmarshal %s result: %w", action, err)
	}
	return true, nil
}
