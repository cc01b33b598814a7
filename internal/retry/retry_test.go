package retry

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/brfin/datafinance/internal/errkind"
)

func TestIsRetryableByKind(t *testing.T) {
	assert.True(t, IsRetryable(errkind.Network(nil, "boom")))
	assert.True(t, IsRetryable(errkind.Timeout(nil, "boom")))
	assert.True(t, IsRetryable(errkind.Integrity("mismatch")))
	assert.False(t, IsRetryable(errkind.Permission(nil, "denied")))
	assert.False(t, IsRetryable(errkind.DiskFull(nil, "full")))
	assert.False(t, IsRetryable(errkind.Validation("bad input")))
}

func TestIsRetryableByKeyword(t *testing.T) {
	assert.True(t, IsRetryable(errors.New("dial tcp: connection refused")))
	assert.True(t, IsRetryable(errors.New("i/o timeout")))
	assert.True(t, IsRetryable(errors.New("service TEMPORARILY unavailable")))
	assert.False(t, IsRetryable(errors.New("permission denied")))
	assert.False(t, IsRetryable(nil))
}

func TestBackoffMonotonicAndCapped(t *testing.T) {
	s := Default()
	prev := time.Duration(0)
	for i := 0; i < 10; i++ {
		d := s.Backoff(i)
		assert.GreaterOrEqual(t, d, prev)
		assert.LessOrEqual(t, d, s.Max)
		prev = d
	}
	assert.Equal(t, s.Max, s.Backoff(100))
}

func TestBackoffDefaults(t *testing.T) {
	s := Default()
	assert.Equal(t, time.Second, s.Backoff(0))
	assert.Equal(t, 2*time.Second, s.Backoff(1))
	assert.Equal(t, 4*time.Second, s.Backoff(2))
}
