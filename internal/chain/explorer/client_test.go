package explorer

import (
	"context"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/whalewatch/whaletx/internal/domain/model"
	"github.com/whalewatch/whaletx/internal/fetch"
	"github.com/whalewatch/whaletx/internal/retry"
)

type roundTripFunc func(req *http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

func httpResponse(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Body:       io.NopCloser(strings.NewReader(body)),
		Header:     make(http.Header),
	}
}

func newTestClient(rt roundTripFunc) *Client {
	c := NewClient("etherscan", "https://api.etherscan.io", "key-123", nil)
	c.httpClient = &http.Client{Transport: rt}
	return c
}

const receiptBody = `{
	"jsonrpc": "2.0",
	"result": {
		"transactionHash": "0xabc",
		"status": "0x1",
		"from": "0xFFaa00000000000000000000000000000000AA01",
		"to": "0xBB0000000000000000000000000000000000bb02",
		"logs": [
			{"address": "0xPool", "topics": ["0xt0", "0xt1"], "data": "0xdata"}
		]
	}
}`

const txBody = `{
	"jsonrpc": "2.0",
	"result": {
		"hash": "0xabc",
		"value": "0xde0b6b3a7640000",
		"input": "0x38ed1739000000000000000000000000000000000000000000000000000000000000dead"
	}
}`

func TestFetchReceiptSuccess(t *testing.T) {
	var requests []string
	c := newTestClient(func(req *http.Request) (*http.Response, error) {
		action := req.URL.Query().Get("action")
		requests = append(requests, action)
		assert.Equal(t, "proxy", req.URL.Query().Get("module"))
		assert.Equal(t, "key-123", req.URL.Query().Get("apikey"))
		if action == "eth_getTransactionByHash" {
			return httpResponse(http.StatusOK, txBody), nil
		}
		return httpResponse(http.StatusOK, receiptBody), nil
	})

	receipt, err := c.FetchReceipt(context.Background(), model.ChainEthereum, "0xabc")
	require.NoError(t, err)

	assert.Equal(t, []string{"eth_getTransactionReceipt", "eth_getTransactionByHash"}, requests)
	assert.Equal(t, model.TxStatusSuccess, receipt.Status)
	assert.Equal(t, "0xffaa00000000000000000000000000000000aa01", receipt.From)
	require.Len(t, receipt.Logs, 1)
	assert.Equal(t, "0xpool", receipt.Logs[0].Address)
	assert.Equal(t, "0x38ed1739", receipt.MethodSig)
	assert.Equal(t, "1000000000000000000", receipt.NativeValue)
}

func TestFetchReceiptNotFound(t *testing.T) {
	c := newTestClient(func(*http.Request) (*http.Response, error) {
		return httpResponse(http.StatusOK, `{"jsonrpc":"2.0","result":null}`), nil
	})

	_, err := c.FetchReceipt(context.Background(), model.ChainEthereum, "0xmissing")
	assert.ErrorIs(t, err, fetch.ErrReceiptNotFound)
}

func TestFetchReceiptTxBodyFailureIsNotFatal(t *testing.T) {
	c := newTestClient(func(req *http.Request) (*http.Response, error) {
		if req.URL.Query().Get("action") == "eth_getTransactionByHash" {
			return httpResponse(http.StatusInternalServerError, "boom"), nil
		}
		return httpResponse(http.StatusOK, receiptBody), nil
	})

	receipt, err := c.FetchReceipt(context.Background(), model.ChainEthereum, "0xabc")
	require.NoError(t, err)
	assert.Empty(t, receipt.MethodSig, "method signature is optional enrichment")
}

func TestFetchReceiptMissingStatus(t *testing.T) {
	c := newTestClient(func(*http.Request) (*http.Response, error) {
		return httpResponse(http.StatusOK, `{"result": {"transactionHash": "0xabc", "logs": []}}`), nil
	})

	_, err := c.FetchReceipt(context.Background(), model.ChainEthereum, "0xabc")
	assert.Error(t, err)
}

func TestProxyCallSkipProviderClasses(t *testing.T) {
	tests := []struct {
		name string
		rt   roundTripFunc
	}{
		{
			name: "http 429",
			rt: func(*http.Request) (*http.Response, error) {
				return httpResponse(http.StatusTooManyRequests, `{"result":"Max rate limit reached"}`), nil
			},
		},
		{
			name: "rate limit string in result",
			rt: func(*http.Request) (*http.Response, error) {
				return httpResponse(http.StatusOK, `{"status":"0","message":"NOTOK","result":"Max rate limit reached, please use API Key"}`), nil
			},
		},
		{
			name: "html error page",
			rt: func(*http.Request) (*http.Response, error) {
				return httpResponse(http.StatusOK, "<html><body>CDN error</body></html>"), nil
			},
		},
		{
			name: "empty body",
			rt: func(*http.Request) (*http.Response, error) {
				return httpResponse(http.StatusOK, ""), nil
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(tt.rt)
			_, err := c.FetchReceipt(context.Background(), model.ChainEthereum, "0xabc")
			require.Error(t, err)
			assert.Equal(t, retry.ClassSkipProvider, retry.Classify(err).Class,
				"degraded explorer responses advance to the next provider")
		})
	}
}

func TestProxyCallNotOKEnvelope(t *testing.T) {
	c := newTestClient(func(*http.Request) (*http.Response, error) {
		return httpResponse(http.StatusOK, `{"status":"0","message":"NOTOK","result":"Error! Invalid transaction hash"}`), nil
	})

	_, err := c.FetchReceipt(context.Background(), model.ChainEthereum, "0xnothex")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Invalid transaction hash")
	assert.NotEqual(t, retry.ClassSkipProvider, retry.Classify(err).Class)
}
