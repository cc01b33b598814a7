// Package resource implements the process-wide Resource Monitor: a
// singleton that classifies memory/CPU pressure into a four-state signal
// and derives safe worker counts and batch sizes for every concurrent
// subsystem. Grounded on the original resource_monitor.py singleton, ported
// to a lazily-initialized sync.Once value with a mutex-guarded breaker
// timestamp instead of a threading.Lock.
package resource

import (
	"context"
	"log/slog"
	"os"
	"runtime"
	"sync"
	"time"
)

// State is the categorical pressure signal, ordered from best to worst.
type State int

const (
	Healthy State = iota
	Warning
	Critical
	Exhausted
)

func (s State) String() string {
	switch s {
	case Healthy:
		return "HEALTHY"
	case Warning:
		return "WARNING"
	case Critical:
		return "CRITICAL"
	case Exhausted:
		return "EXHAUSTED"
	default:
		return "UNKNOWN"
	}
}

// Snapshot is the current observed state, returned by Monitor.Snapshot.
type Snapshot struct {
	State             State
	MemoryPercentUsed float64
	AvailableMB       int64
	ProcessMB         int64
}

// Limits holds the thresholds governing state classification. Defaults
// mirror the original Python ResourceLimits dataclass exactly.
type Limits struct {
	MemoryWarningPct       float64
	MemoryCriticalPct      float64
	MemoryExhaustedPct     float64
	CPUWarningPct          float64
	CPUCriticalPct         float64
	MinFreeMemoryMB        int64
	AutoGCOnWarning        bool
	CircuitBreakerCooldown time.Duration
	CircuitBreakerEnabled  bool
}

// DefaultLimits matches the original implementation's defaults.
func DefaultLimits() Limits {
	return Limits{
		MemoryWarningPct:       70,
		MemoryCriticalPct:      85,
		MemoryExhaustedPct:     95,
		CPUWarningPct:          80,
		CPUCriticalPct:         90,
		MinFreeMemoryMB:        100,
		AutoGCOnWarning:        true,
		CircuitBreakerCooldown: 10 * time.Second,
		CircuitBreakerEnabled:  true,
	}
}

// MemSampler and CPUSampler abstract the OS metric source so tests can
// inject deterministic readings and production can use /proc or a
// portable fallback. A sampler that errors is treated as "unavailable" and
// the monitor degrades to Healthy, per the failure-semantics contract.
type MemSampler func() (percentUsed float64, availableMB, processMB int64, err error)
type CPUSampler func() (percentUsed float64, err error)

// Monitor is the Resource Monitor. Every Snapshot samples afresh, and the
// sampling itself runs without holding a lock. Snapshot is not lock-free,
// though: each call takes mu briefly to update the transition state (last
// state, last-EXHAUSTED timestamp, degraded flag), and mu is never held
// across sampling or I/O.
type Monitor struct {
	limits Limits
	memFn  MemSampler
	cpuFn  CPUSampler
	gcHook func()
	logger *slog.Logger

	mu               sync.Mutex
	lastExhaustedAt  time.Time
	lastState        State
	sawFirstSample   bool
	degraded         bool
}

var (
	singleton     *Monitor
	singletonOnce sync.Once
)

// Get returns the process-wide singleton, lazily constructed with default
// limits and OS samplers on first use.
func Get() *Monitor {
	singletonOnce.Do(func() {
		singleton = New(DefaultLimits(), nil, nil, nil, slog.Default())
	})
	return singleton
}

// New constructs a Monitor. Passing nil samplers selects the built-in OS
// samplers; passing nil gcHook installs runtime.GC as the cleanup hook.
func New(limits Limits, memFn MemSampler, cpuFn CPUSampler, gcHook func(), logger *slog.Logger) *Monitor {
	if memFn == nil {
		memFn = sampleMemory
	}
	if cpuFn == nil {
		cpuFn = sampleCPU
	}
	if gcHook == nil {
		gcHook = func() { runtime.GC() }
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Monitor{limits: limits, memFn: memFn, cpuFn: cpuFn, gcHook: gcHook, logger: logger, lastState: Healthy}
}

// Snapshot reads current memory and CPU and classifies into one of four
// states. Sensor failures downgrade to Healthy; this is logged once at the
// first observed failure (INIT-time degraded mode).
func (m *Monitor) Snapshot() Snapshot {
	memPct, availMB, procMB, memErr := m.memFn()
	cpuPct, cpuErr := m.cpuFn()

	if memErr != nil || cpuErr != nil {
		m.mu.Lock()
		if !m.degraded {
			m.degraded = true
			m.logger.Warn("resource monitor degraded: OS metric API unavailable, reporting HEALTHY",
				"mem_error", memErr, "cpu_error", cpuErr)
		}
		m.mu.Unlock()
		return Snapshot{State: Healthy, MemoryPercentUsed: 0, AvailableMB: availMB, ProcessMB: procMB}
	}

	state := classify(memPct, cpuPct, availMB, m.limits)
	m.observeTransition(state)

	return Snapshot{State: state, MemoryPercentUsed: memPct, AvailableMB: availMB, ProcessMB: procMB}
}

func classify(memPct, cpuPct float64, availMB int64, l Limits) State {
	if memPct >= l.MemoryExhaustedPct || availMB < l.MinFreeMemoryMB {
		return Exhausted
	}
	if memPct >= l.MemoryCriticalPct || cpuPct >= l.CPUCriticalPct {
		return Critical
	}
	if memPct >= l.MemoryWarningPct || cpuPct >= l.CPUWarningPct {
		return Warning
	}
	return Healthy
}

// observeTransition fires the auto-GC hook exactly once per HEALTHY->WARNING
// edge and records the last-EXHAUSTED timestamp for the circuit breaker.
func (m *Monitor) observeTransition(state State) {
	m.mu.Lock()
	prev := m.lastState
	m.lastState = state
	if state == Exhausted {
		m.lastExhaustedAt = time.Now()
	}
	fireGC := m.limits.AutoGCOnWarning && prev == Healthy && state == Warning
	m.mu.Unlock()

	if fireGC {
		m.gcHook()
	}
}

// SafeWorkerCount narrows a requested worker count according to the current
// state. Never exceeds requested, never below 1.
func (m *Monitor) SafeWorkerCount(requested int) int {
	if requested < 1 {
		requested = 1
	}
	switch m.Snapshot().State {
	case Exhausted:
		return 1
	case Critical:
		return maxInt(1, requested/4)
	case Warning:
		return maxInt(1, requested/2)
	default:
		return requested
	}
}

// SafeBatchSize narrows a desired batch size according to the current
// state.
func (m *Monitor) SafeBatchSize(desired int) int {
	if desired < 1 {
		desired = 1
	}
	switch m.Snapshot().State {
	case Exhausted:
		return maxInt(1000, desired/100)
	case Critical:
		return maxInt(1, desired/10)
	case Warning:
		return maxInt(1, desired/2)
	default:
		return desired
	}
}

// CircuitBreakerActive is true when the last EXHAUSTED observation happened
// within the configured cooldown window.
func (m *Monitor) CircuitBreakerActive() bool {
	if !m.limits.CircuitBreakerEnabled {
		return false
	}
	m.mu.Lock()
	last := m.lastExhaustedAt
	m.mu.Unlock()
	if last.IsZero() {
		return false
	}
	return time.Since(last) < m.limits.CircuitBreakerCooldown
}

// WaitFor blocks until Snapshot().State is at or below targetState (better
// or equal) or the timeout elapses, polling once per second as the original
// implementation does. Returns whether the target was reached.
func (m *Monitor) WaitFor(ctx context.Context, targetState State, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	if m.Snapshot().State <= targetState {
		return true
	}

	for {
		select {
		case <-ctx.Done():
			return false
		case <-ticker.C:
			if m.Snapshot().State <= targetState {
				return true
			}
			if time.Now().After(deadline) {
				return m.Snapshot().State <= targetState
			}
		}
	}
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

// sampleMemory reads system memory pressure. On Linux it parses
// /proc/meminfo and /proc/self/statm; elsewhere (or on read failure) it
// reports an error so the caller degrades to Healthy, matching the
// psutil-absent fallback of the original implementation.
func sampleMemory() (percentUsed float64, availableMB, processMB int64, err error) {
	total, avail, readErr := readMemInfo()
	if readErr != nil {
		return 0, 0, 0, readErr
	}
	proc := processRSSMB()
	if total <= 0 {
		return 0, 0, 0, os.ErrNotExist
	}
	usedPct := 100 * (1 - float64(avail)/float64(total))
	return usedPct, avail / (1024 * 1024), proc, nil
}

func sampleCPU() (percentUsed float64, err error) {
	// A precise instantaneous CPU percentage requires two time-separated
	// /proc/stat samples; runtime.NumGoroutine/NumCPU is used as a coarse,
	// dependency-free proxy so the monitor stays advisory-only as designed.
	load := float64(runtime.NumGoroutine()) / float64(4*runtime.NumCPU()) * 100
	if load > 100 {
		load = 100
	}
	return load, nil
}
