package retry

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify_ExplicitMarkers(t *testing.T) {
	transient := Classify(Transient(errors.New("rpc timed out")))
	assert.Equal(t, ClassTransient, transient.Class)
	assert.Equal(t, "explicit_transient", transient.Reason)

	terminal := Classify(Terminal(errors.New("invalid params")))
	assert.Equal(t, ClassTerminal, terminal.Class)
	assert.Equal(t, "explicit_terminal", terminal.Reason)

	skip := Classify(SkipProvider(errors.New("provider returned html")))
	assert.Equal(t, ClassSkipProvider, skip.Class)
	assert.Equal(t, "explicit_skip_provider", skip.Reason)
}

func TestClassify_RepresentativeRuntimeErrors(t *testing.T) {
	testCases := []struct {
		name          string
		err           error
		expectedClass Class
	}{
		{
			name:          "context canceled terminal",
			err:           context.Canceled,
			expectedClass: ClassTerminal,
		},
		{
			name:          "context deadline transient",
			err:           context.DeadlineExceeded,
			expectedClass: ClassTransient,
		},
		{
			name:          "rate limited skips provider",
			err:           errors.New("http status 429: too many requests"),
			expectedClass: ClassSkipProvider,
		},
		{
			name:          "html body skips provider",
			err:           errors.New("provider sent non-json response"),
			expectedClass: ClassSkipProvider,
		},
		{
			name:          "bad gateway transient",
			err:           errors.New("http status 502: bad gateway"),
			expectedClass: ClassTransient,
		},
		{
			name:          "invalid params terminal",
			err:           errors.New("invalid params: odd length hash"),
			expectedClass: ClassTerminal,
		},
		{
			name:          "unknown defaults transient",
			err:           errors.New("unexpected failure"),
			expectedClass: ClassTransient,
		},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			decision := Classify(tc.err)
			assert.Equal(t, tc.expectedClass, decision.Class)
		})
	}
}

func TestClassify_JSONRPCCodes(t *testing.T) {
	rateLimited := Classify(&JSONRPCError{Code: -32005, Message: "request limit reached"})
	assert.Equal(t, ClassSkipProvider, rateLimited.Class)

	internal := Classify(&JSONRPCError{Code: -32603, Message: "internal error"})
	assert.Equal(t, ClassTransient, internal.Class)

	serverRange := Classify(&JSONRPCError{Code: -32042, Message: "busy"})
	assert.Equal(t, ClassTransient, serverRange.Class)

	invalidParams := Classify(&JSONRPCError{Code: -32602, Message: "invalid params"})
	assert.Equal(t, ClassTerminal, invalidParams.Class)
}

func TestClassify_WrappedMarkerWins(t *testing.T) {
	err := Terminal(errors.New("timeout loading page"))
	decision := Classify(err)
	assert.Equal(t, ClassTerminal, decision.Class, "explicit marker beats message sniffing")
}
