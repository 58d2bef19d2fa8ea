package pipeline

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestHealthTransitionsToUnhealthy(t *testing.T) {
	h := NewHealth()
	assert.Equal(t, string(HealthStatusUnknown), h.Snapshot().Status)

	for i := 0; i < DefaultUnhealthyThreshold-1; i++ {
		assert.False(t, h.RecordFailure())
	}
	assert.True(t, h.RecordFailure(), "threshold crossing is reported once")
	assert.False(t, h.RecordFailure(), "further failures do not re-report")
	assert.Equal(t, string(HealthStatusUnhealthy), h.Snapshot().Status)
}

func TestHealthRecoversOnSuccess(t *testing.T) {
	h := NewHealth()
	for i := 0; i < DefaultUnhealthyThreshold; i++ {
		h.RecordFailure()
	}

	h.RecordSuccess()
	snapshot := h.Snapshot()
	assert.Equal(t, string(HealthStatusHealthy), snapshot.Status)
	assert.Zero(t, snapshot.ConsecutiveFailures)
	assert.NotNil(t, snapshot.LastSuccessAt)
}

func TestHealthDegradesOnSlowP95(t *testing.T) {
	h := NewHealth()
	h.RecordSuccess()

	for i := 0; i < latencyWindowSize; i++ {
		h.RecordLatency(DefaultDegradedLatencyThreshold + time.Second)
	}
	assert.Equal(t, string(HealthStatusDegraded), h.Snapshot().Status)
}
