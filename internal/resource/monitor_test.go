package resource

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedSamplers(memPct float64, availMB int64) (MemSampler, CPUSampler) {
	return func() (float64, int64, int64, error) {
			return memPct, availMB, 10, nil
		}, func() (float64, error) {
			return 0, nil
		}
}

func TestSnapshotClassification(t *testing.T) {
	cases := []struct {
		name    string
		memPct  float64
		availMB int64
		want    State
	}{
		{"healthy", 50, 5000, Healthy},
		{"warning", 72, 5000, Warning},
		{"critical", 88, 5000, Critical},
		{"exhausted_by_pct", 96, 5000, Exhausted},
		{"exhausted_by_free_mem", 50, 50, Exhausted},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			memFn, cpuFn := fixedSamplers(tc.memPct, tc.availMB)
			m := New(DefaultLimits(), memFn, cpuFn, func() {}, nil)
			snap := m.Snapshot()
			assert.Equal(t, tc.want, snap.State)
		})
	}
}

func TestSafeWorkerCountClampsUnderCritical(t *testing.T) {
	memFn, cpuFn := fixedSamplers(88, 5000)
	m := New(DefaultLimits(), memFn, cpuFn, func() {}, nil)
	require.Equal(t, Critical, m.Snapshot().State)
	assert.Equal(t, 4, m.SafeWorkerCount(16))
}

func TestSafeWorkerCountMonotonic(t *testing.T) {
	requested := 16
	states := []float64{50, 72, 88, 96}
	prev := requested + 1
	for _, memPct := range states {
		memFn, cpuFn := fixedSamplers(memPct, 5000)
		m := New(DefaultLimits(), memFn, cpuFn, func() {}, nil)
		got := m.SafeWorkerCount(requested)
		assert.GreaterOrEqual(t, got, 1)
		assert.LessOrEqual(t, got, requested)
		assert.LessOrEqual(t, got, prev)
		prev = got
	}
}

func TestSafeBatchSize(t *testing.T) {
	memFn, cpuFn := fixedSamplers(96, 5000)
	m := New(DefaultLimits(), memFn, cpuFn, func() {}, nil)
	assert.Equal(t, 1000, m.SafeBatchSize(50000))
}

func TestAutoGCFiresOnceOnWarningEdge(t *testing.T) {
	calls := 0
	memFn, cpuFn := fixedSamplers(50, 5000)
	m := New(DefaultLimits(), memFn, cpuFn, func() { calls++ }, nil)
	m.Snapshot() // healthy baseline

	memFn2, _ := fixedSamplers(72, 5000)
	m.memFn = memFn2
	m.Snapshot() // healthy -> warning, should fire
	m.Snapshot() // warning -> warning, should not fire again
	assert.Equal(t, 1, calls)
}

func TestDegradesToHealthyOnSensorFailure(t *testing.T) {
	m := New(DefaultLimits(), func() (float64, int64, int64, error) {
		return 0, 0, 0, assertErr
	}, func() (float64, error) { return 0, nil }, func() {}, nil)
	snap := m.Snapshot()
	assert.Equal(t, Healthy, snap.State)
}

func TestCircuitBreakerActive(t *testing.T) {
	memFn, cpuFn := fixedSamplers(96, 5000)
	limits := DefaultLimits()
	limits.CircuitBreakerCooldown = 50 * time.Millisecond
	m := New(limits, memFn, cpuFn, func() {}, nil)
	m.Snapshot()
	assert.True(t, m.CircuitBreakerActive())
	time.Sleep(80 * time.Millisecond)
	assert.False(t, m.CircuitBreakerActive())
}

func TestWaitForReturnsImmediatelyWhenAlreadyMet(t *testing.T) {
	memFn, cpuFn := fixedSamplers(50, 5000)
	m := New(DefaultLimits(), memFn, cpuFn, func() {}, nil)
	ok := m.WaitFor(context.Background(), Warning, 100*time.Millisecond)
	assert.True(t, ok)
}

func TestWaitForTimesOut(t *testing.T) {
	memFn, cpuFn := fixedSamplers(96, 5000)
	m := New(DefaultLimits(), memFn, cpuFn, func() {}, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 150*time.Millisecond)
	defer cancel()
	ok := m.WaitFor(ctx, Healthy, 100*time.Millisecond)
	assert.False(t, ok)
}

var assertErr = fmtErrorf("sensor unavailable")

func fmtErrorf(s string) error { return &simpleErr{s} }

type simpleErr struct{ s string }

func (e *simpleErr) Error() string { return e.s }
