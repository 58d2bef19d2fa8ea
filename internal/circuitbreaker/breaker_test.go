package circuitbreaker

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBreaker_OpensAfterThreshold(t *testing.T) {
	b := New(Config{FailureThreshold: 3, OpenTimeout: time.Minute})

	require.NoError(t, b.Allow())
	b.RecordFailure()
	b.RecordFailure()
	require.NoError(t, b.Allow(), "still closed below threshold")
	b.RecordFailure()

	assert.ErrorIs(t, b.Allow(), ErrCircuitOpen)
	assert.Equal(t, StateOpen, b.CurrentState())
}

func TestBreaker_SuccessResetsFailureCount(t *testing.T) {
	b := New(Config{FailureThreshold: 2})

	b.RecordFailure()
	b.RecordSuccess()
	b.RecordFailure()

	assert.NoError(t, b.Allow(), "non-consecutive failures should not open")
}

func TestBreaker_HalfOpenProbeAndRecovery(t *testing.T) {
	now := time.Now()
	b := New(Config{FailureThreshold: 1, SuccessThreshold: 2, OpenTimeout: 30 * time.Second})
	b.nowFn = func() time.Time { return now }

	b.RecordFailure()
	require.ErrorIs(t, b.Allow(), ErrCircuitOpen)

	now = now.Add(31 * time.Second)
	require.NoError(t, b.Allow(), "open timeout elapsed, probe allowed")
	assert.Equal(t, StateHalfOpen, b.CurrentState())

	b.RecordSuccess()
	assert.Equal(t, StateHalfOpen, b.CurrentState())
	b.RecordSuccess()
	assert.Equal(t, StateClosed, b.CurrentState())
}

func TestBreaker_HalfOpenFailureReopens(t *testing.T) {
	now := time.Now()
	b := New(Config{FailureThreshold: 1, OpenTimeout: 10 * time.Second})
	b.nowFn = func() time.Time { return now }

	b.RecordFailure()
	now = now.Add(11 * time.Second)
	require.NoError(t, b.Allow())

	b.RecordFailure()
	assert.ErrorIs(t, b.Allow(), ErrCircuitOpen)
}

func TestBreaker_StateChangeCallback(t *testing.T) {
	var transitions []string
	b := New(Config{
		FailureThreshold: 1,
		OnStateChange: func(from, to State) {
			transitions = append(transitions, from.String()+"->"+to.String())
		},
	})

	b.RecordFailure()
	assert.Equal(t, []string{"closed->open"}, transitions)
}
