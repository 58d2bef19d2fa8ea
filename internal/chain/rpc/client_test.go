package rpc

import (
	"context"
	"encoding/json"
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

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

func newTestClient(handler func(*http.Request) (*http.Response, error)) *Client {
	client := NewClient("test-rpc", "http://rpc.local", 0, nil)
	client.httpClient = &http.Client{
		Transport: roundTripFunc(handler),
	}
	return client
}

func httpResponse(status int, contentType, body string) *http.Response {
	resp := &http.Response{
		StatusCode: status,
		Body:       io.NopCloser(strings.NewReader(body)),
		Header:     make(http.Header),
	}
	if contentType != "" {
		resp.Header.Set("Content-Type", contentType)
	}
	return resp
}

func TestCall_Success(t *testing.T) {
	client := newTestClient(func(r *http.Request) (*http.Response, error) {
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		var req request
		require.NoError(t, json.Unmarshal(body, &req))

		assert.Equal(t, "2.0", req.JSONRPC)
		assert.Equal(t, "eth_getTransactionReceipt", req.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		return httpResponse(http.StatusOK, "application/json",
			`{"jsonrpc":"2.0","id":1,"result":"0x2a"}`), nil
	})

	result, err := client.call(context.Background(), "eth_getTransactionReceipt", []interface{}{"0xabc"})
	require.NoError(t, err)
	assert.Equal(t, `"0x2a"`, string(result))
}

func TestCall_RPCErrorSurfacesCode(t *testing.T) {
	client := newTestClient(func(r *http.Request) (*http.Response, error) {
		return httpResponse(http.StatusOK, "application/json",
			`{"jsonrpc":"2.0","id":1,"error":{"code":-32005,"message":"request limit reached"}}`), nil
	})

	_, err := client.call(context.Background(), "eth_getTransactionReceipt", nil)
	require.Error(t, err)

	decision := retry.Classify(err)
	assert.Equal(t, retry.ClassSkipProvider, decision.Class)
}

func TestCall_HTMLBodyIsSkipProvider(t *testing.T) {
	client := newTestClient(func(r *http.Request) (*http.Response, error) {
		return httpResponse(http.StatusOK, "text/html",
			`<html><body>Checking your browser</body></html>`), nil
	})

	_, err := client.call(context.Background(), "eth_getTransactionReceipt", nil)
	require.Error(t, err)
	assert.Equal(t, retry.ClassSkipProvider, retry.Classify(err).Class)
}

func TestCall_EmptyBodyIsSkipProvider(t *testing.T) {
	client := newTestClient(func(r *http.Request) (*http.Response, error) {
		return httpResponse(http.StatusOK, "application/json", ""), nil
	})

	_, err := client.call(context.Background(), "eth_getTransactionReceipt", nil)
	require.Error(t, err)
	assert.Equal(t, retry.ClassSkipProvider, retry.Classify(err).Class)
}

func TestCall_Status429IsSkipProvider(t *testing.T) {
	client := newTestClient(func(r *http.Request) (*http.Response, error) {
		return httpResponse(http.StatusTooManyRequests, "application/json", `{"error":"slow down"}`), nil
	})

	_, err := client.call(context.Background(), "eth_getTransactionReceipt", nil)
	require.Error(t, err)
	assert.Equal(t, retry.ClassSkipProvider, retry.Classify(err).Class)
}

func TestFetchReceipt_MapsWireShape(t *testing.T) {
	client := newTestClient(func(r *http.Request) (*http.Response, error) {
		body, _ := io.ReadAll(r.Body)
		var req request
		require.NoError(t, json.Unmarshal(body, &req))

		switch req.Method {
		case "eth_getTransactionReceipt":
			return httpResponse(http.StatusOK, "application/json", `{
				"jsonrpc":"2.0","id":1,
				"result":{
					"transactionHash":"0xabc",
					"status":"0x1",
					"from":"0xAAAA000000000000000000000000000000000001",
					"to":"0xBBBB000000000000000000000000000000000002",
					"logs":[
						{"address":"0xCCCC000000000000000000000000000000000003",
						 "topics":["0xddf252ad1be2c89b69c2b068fc378daa952ba7f163c4a11628f55a4df523b3ef"],
						 "data":"0x01"},
						{"address":"0xdead","topics":[],"data":"0x","removed":true}
					]
				}}`), nil
		case "eth_getTransactionByHash":
			return httpResponse(http.StatusOK, "application/json", `{
				"jsonrpc":"2.0","id":2,
				"result":{"hash":"0xabc","value":"0xde0b6b3a7640000",
					"input":"0x38ed173900000000000000000000000000000000"}}`), nil
		}
		t.Fatalf("unexpected method %s", req.Method)
		return nil, nil
	})

	receipt, err := client.FetchReceipt(context.Background(), model.ChainEthereum, "0xabc")
	require.NoError(t, err)

	assert.Equal(t, model.TxStatusSuccess, receipt.Status)
	assert.Equal(t, "0xaaaa000000000000000000000000000000000001", receipt.From)
	require.Len(t, receipt.Logs, 1, "removed logs are dropped")
	assert.Equal(t, "0xcccc000000000000000000000000000000000003", receipt.Logs[0].Address)
	assert.Equal(t, "0x38ed1739", receipt.MethodSig)
	assert.Equal(t, "1000000000000000000", receipt.NativeValue)
}

func TestFetchReceipt_NullResultIsNotFound(t *testing.T) {
	client := newTestClient(func(r *http.Request) (*http.Response, error) {
		return httpResponse(http.StatusOK, "application/json",
			`{"jsonrpc":"2.0","id":1,"result":null}`), nil
	})

	_, err := client.FetchReceipt(context.Background(), model.ChainEthereum, "0xmissing")
	assert.ErrorIs(t, err, fetch.ErrReceiptNotFound)
}

func TestFetchReceipt_MissingStatusRejected(t *testing.T) {
	client := newTestClient(func(r *http.Request) (*http.Response, error) {
		return httpResponse(http.StatusOK, "application/json",
			`{"jsonrpc":"2.0","id":1,"result":{"transactionHash":"0xabc","logs":[]}}`), nil
	})

	_, err := client.FetchReceipt(context.Background(), model.ChainEthereum, "0xabc")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no status field")
}

func TestFetchReceipt_TxBodyFailureIsNotFatal(t *testing.T) {
	client := newTestClient(func(r *http.Request) (*http.Response, error) {
		body, _ := io.ReadAll(r.Body)
		var req request
		require.NoError(t, json.Unmarshal(body, &req))

		if req.Method == "eth_getTransactionReceipt" {
			return httpResponse(http.StatusOK, "application/json",
				`{"jsonrpc":"2.0","id":1,"result":{"transactionHash":"0xabc","status":"0x0","logs":[]}}`), nil
		}
		return httpResponse(http.StatusInternalServerError, "application/json", `{}`), nil
	})

	receipt, err := client.FetchReceipt(context.Background(), model.ChainEthereum, "0xabc")
	require.NoError(t, err)
	assert.Equal(t, model.TxStatusFailed, receipt.Status)
	assert.Empty(t, receipt.MethodSig)
}
