// Package rpc implements the JSON-RPC receipt provider used for paid and
// public eth-style endpoints. Responses are validated before parsing: a
// rate-limit page or HTML error body must surface as a skip-provider error,
// never as a JSON parse failure deep in a decode path.
package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/whalewatch/whaletx/internal/retry"
)

const defaultTimeout = 15 * time.Second

type Client struct {
	httpClient *http.Client
	rpcURL     string
	name       string
	requestID  atomic.Int64
	logger     *slog.Logger
}

func NewClient(name, rpcURL string, timeout time.Duration, logger *slog.Logger) *Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		rpcURL:     rpcURL,
		name:       name,
		logger:     logger.With("component", "rpc", "provider", name),
	}
}

// Name identifies the provider in metrics and failover decisions.
func (c *Client) Name() string { return c.name }

func (c *Client) call(ctx context.Context, method string, params []interface{}) (json.RawMessage, error) {
	id := int(c.requestID.Add(1))
	body, err := json.Marshal(request{JSONRPC: "2.0", ID: id, Method: method, Params: params})
	if err != nil {
		return nil, retry.Terminal(fmt.Errorf("marshal request: %w", err))
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.rpcURL, bytes.NewReader(body))
	if err != nil {
		return nil, retry.Terminal(fmt.Errorf("create request: %w", err))
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, retry.SkipProvider(fmt.Errorf("http status 429: %s", firstLine(respBody)))
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("http status %d: %s", resp.StatusCode, firstLine(respBody))
	}
	if err := sniffBody(resp.Header.Get("Content-Type"), respBody); err != nil {
		return nil, err
	}

	var rpcResp response
	if err := json.Unmarshal(respBody, &rpcResp); err != nil {
		return nil, retry.SkipProvider(fmt.Errorf("non-json response: %w", err))
	}
	if rpcResp.Error != nil {
		return nil, &retry.JSONRPCError{Code: rpcResp.Error.Code, Message: rpcResp.Error.Message}
	}
	return rpcResp.Result, nil
}

// sniffBody rejects bodies that cannot be a JSON-RPC response before any
// parsing is attempted. Public endpoints serve HTML ban pages and Cloudflare
// challenges with a 200 status.
func sniffBody(contentType string, body []byte) error {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return retry.SkipProvider(fmt.Errorf("non-json response: empty body"))
	}
	if strings.Contains(contentType, "text/html") || trimmed[0] == '<' {
		return retry.SkipProvider(fmt.Errorf("html response: %s", firstLine(trimmed)))
	}
	if trimmed[0] != '{' && trimmed[0] != '[' {
		return retry.SkipProvider(fmt.Errorf("non-json response: %s", firstLine(trimmed)))
	}
	return nil
}

func firstLine(body []byte) string {
	s := strings.TrimSpace(string(body))
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	if len(s) > 160 {
		s = s[:160]
	}
	return s
}
