// Package retry classifies errors as retryable or terminal and computes
// exponential backoff delays. Grounded on the original retry_strategy.py:
// type-based classification first, keyword matching as a fallback.
package retry

import (
	"errors"
	"math"
	"strings"
	"time"

	"github.com/brfin/datafinance/internal/errkind"
)

var retryableKeywords = []string{
	"timeout",
	"connection refused",
	"connection reset",
	"connection aborted",
	"temporarily",
	"unavailable",
	"try again",
}

// Strategy computes backoff delays and retryability decisions.
type Strategy struct {
	Initial    time.Duration
	Max        time.Duration
	Multiplier float64
}

// Default matches the documented defaults: initial=1s, max=60s, multiplier=2.
func Default() Strategy {
	return Strategy{Initial: time.Second, Max: 60 * time.Second, Multiplier: 2}
}

// IsRetryable classifies err. Typed *errkind.Error values are classified by
// kind; everything else falls back to case-insensitive keyword matching
// against the message, exactly as the original implementation does for
// exceptions it does not recognize by type.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if retryable, known := errkind.IsRetryable(err); known {
		return retryable
	}

	var netErr net_Error
	if errors.As(err, &netErr) {
		return true
	}

	msg := strings.ToLower(err.Error())
	for _, kw := range retryableKeywords {
		if strings.Contains(msg, kw) {
			return true
		}
	}
	return false
}

// net_Error mirrors the net.Error interface without importing net, so this
// package has no transport dependency; the download engine's actual net
// errors satisfy it structurally.
type net_Error interface {
	error
	Timeout() bool
}

// Backoff returns min(initial * multiplier^retryCount, max).
func (s Strategy) Backoff(retryCount int) time.Duration {
	if retryCount < 0 {
		retryCount = 0
	}
	delay := float64(s.Initial) * math.Pow(s.Multiplier, float64(retryCount))
	if delay > float64(s.Max) {
		return s.Max
	}
	return time.Duration(delay)
}
