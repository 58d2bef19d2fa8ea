// Package retry classifies provider errors so the fetch failover loop can
// decide between retrying the same provider, skipping straight to the next
// one, or giving up on the transaction.
package retry

import (
	"context"
	"errors"
	"net"
	"strings"
)

type Class string

const (
	// ClassTerminal: retrying will not help on any provider (bad input,
	// context canceled, tx genuinely unknown).
	ClassTerminal Class = "terminal"
	// ClassTransient: worth another attempt on the same provider after
	// backoff (timeouts, connection resets, 5xx).
	ClassTransient Class = "transient"
	// ClassSkipProvider: the provider itself is refusing or misbehaving
	// (rate limited, HTML error page, open circuit); move to the next
	// provider immediately without burning retries here.
	ClassSkipProvider Class = "skip_provider"
)

type Decision struct {
	Class  Class
	Reason string
}

func (d Decision) IsTransient() bool    { return d.Class == ClassTransient }
func (d Decision) IsSkipProvider() bool { return d.Class == ClassSkipProvider }

type classifiedError struct {
	err    error
	class  Class
	reason string
}

func (e *classifiedError) Error() string { return e.err.Error() }
func (e *classifiedError) Unwrap() error { return e.err }

// Transient marks err so Classify reports it transient regardless of message.
func Transient(err error) error {
	return mark(err, ClassTransient, "explicit_transient")
}

// Terminal marks err as not worth retrying anywhere.
func Terminal(err error) error {
	return mark(err, ClassTerminal, "explicit_terminal")
}

// SkipProvider marks err as a per-provider failure that should advance the
// failover loop without further attempts on the current provider.
func SkipProvider(err error) error {
	return mark(err, ClassSkipProvider, "explicit_skip_provider")
}

func mark(err error, class Class, reason string) error {
	if err == nil {
		return nil
	}
	return &classifiedError{err: err, class: class, reason: reason}
}

func Classify(err error) Decision {
	if err == nil {
		return Decision{Class: ClassTerminal, Reason: "nil_error"}
	}

	var marked *classifiedError
	if errors.As(err, &marked) {
		return Decision{Class: marked.class, Reason: marked.reason}
	}

	if errors.Is(err, context.Canceled) {
		return Decision{Class: ClassTerminal, Reason: "context_canceled"}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return Decision{Class: ClassTransient, Reason: "context_deadline_exceeded"}
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return Decision{Class: ClassTransient, Reason: "net_timeout"}
	}

	var rpcErr *JSONRPCError
	if errors.As(err, &rpcErr) {
		return classifyJSONRPCCode(rpcErr.Code)
	}

	lower := strings.ToLower(err.Error())
	if containsAny(lower, skipProviderMessageTokens) {
		return Decision{Class: ClassSkipProvider, Reason: "message_skip_provider"}
	}
	if containsAny(lower, terminalMessageTokens) {
		return Decision{Class: ClassTerminal, Reason: "message_terminal"}
	}
	if containsAny(lower, transientMessageTokens) {
		return Decision{Class: ClassTransient, Reason: "message_transient"}
	}

	return Decision{Class: ClassTransient, Reason: "unknown_transient_default"}
}

// JSONRPCError mirrors the wire error shape of an eth JSON-RPC endpoint.
// Declared here (rather than in the rpc client) so classification does not
// import transport packages.
type JSONRPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *JSONRPCError) Error() string { return e.Message }

func classifyJSONRPCCode(code int) Decision {
	switch {
	case code == -32005: // request limit reached
		return Decision{Class: ClassSkipProvider, Reason: "jsonrpc_rate_limited"}
	case code == -32603:
		return Decision{Class: ClassTransient, Reason: "jsonrpc_internal"}
	case code <= -32000 && code >= -32099:
		return Decision{Class: ClassTransient, Reason: "jsonrpc_server_range"}
	default:
		return Decision{Class: ClassTerminal, Reason: "jsonrpc_terminal"}
	}
}

func containsAny(msg string, tokens []string) bool {
	for _, token := range tokens {
		if strings.Contains(msg, token) {
			return true
		}
	}
	return false
}

var skipProviderMessageTokens = []string{
	"rate limit",
	"too many requests",
	"http status 429",
	"html response",
	"non-json response",
	"circuit breaker is open",
	"api key",
	"banned",
}

var transientMessageTokens = []string{
	"timeout",
	"timed out",
	"temporar",
	"unavailable",
	"connection reset",
	"connection refused",
	"broken pipe",
	"econnreset",
	"econnrefused",
	"http status 500",
	"http status 502",
	"http status 503",
	"http status 504",
	"server closed idle connection",
	"eof",
}

var terminalMessageTokens = []string{
	"invalid argument",
	"invalid params",
	"method not found",
	"parse error",
	"invalid tx hash",
}
