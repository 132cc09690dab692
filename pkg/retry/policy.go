package retry

import (
	"fmt"
	"math"
	"net/http"
	"sort"
	"time"
)

// MaxDelay caps the delay between two attempts of the same request.
const MaxDelay = 120 * time.Second

// DefaultRetryableStatuses are the transient statuses retried by DefaultPolicy.
var DefaultRetryableStatuses = []int{
	http.StatusTooManyRequests,
	http.StatusInternalServerError,
	http.StatusBadGateway,
	http.StatusServiceUnavailable,
	http.StatusGatewayTimeout,
}

// Policy is the retry policy shared read-only by every request issued through
// one transport. Build it with NewPolicy or DefaultPolicy; a Policy is never
// mutated afterwards.
type Policy struct {
	maxAttempts   int
	backoffFactor float64
	statuses      map[int]struct{}
}

// DefaultPolicy returns 10 total attempts, a backoff factor of 1 and the
// DefaultRetryableStatuses.
func DefaultPolicy() Policy {
	p, _ := NewPolicy(10, 1.0, DefaultRetryableStatuses...)
	return p
}

// NewPolicy validates its inputs and returns an immutable Policy.
// maxAttempts counts the first try.
func NewPolicy(maxAttempts int, backoffFactor float64, retryableStatuses ...int) (Policy, error) {
	if maxAttempts < 1 {
		return Policy{}, fmt.Errorf("max attempts must be at least 1, got %d", maxAttempts)
	}
	if backoffFactor < 0 || math.IsNaN(backoffFactor) || math.IsInf(backoffFactor, 0) {
		return Policy{}, fmt.Errorf("backoff factor must be a finite value >= 0, got %v", backoffFactor)
	}

	statuses := make(map[int]struct{}, len(retryableStatuses))
	for _, code := range retryableStatuses {
		if code < 100 || code > 599 {
			return Policy{}, fmt.Errorf("invalid retryable status %d", code)
		}
		statuses[code] = struct{}{}
	}

	return Policy{
		maxAttempts:   maxAttempts,
		backoffFactor: backoffFactor,
		statuses:      statuses,
	}, nil
}

// MaxAttempts is the total number of tries allotted to one request.
func (p Policy) MaxAttempts() int {
	return p.maxAttempts
}

// BackoffFactor scales every delay.
func (p Policy) BackoffFactor() float64 {
	return p.backoffFactor
}

// RetryableStatuses returns the retryable statuses in ascending order.
func (p Policy) RetryableStatuses() []int {
	codes := make([]int, 0, len(p.statuses))
	for code := range p.statuses {
		codes = append(codes, code)
	}
	sort.Ints(codes)
	return codes
}

// Retryable reports whether a response with this status should be retried.
func (p Policy) Retryable(statusCode int) bool {
	_, ok := p.statuses[statusCode]
	return ok
}

// Delay returns the wait before the next try after `failed` failed attempts:
// factor * 2^(failed-1) seconds, capped at MaxDelay.
func (p Policy) Delay(failed int) time.Duration {
	if failed <= 0 || p.backoffFactor == 0 {
		return 0
	}
	seconds := p.backoffFactor * math.Pow(2, float64(failed-1))
	if seconds >= MaxDelay.Seconds() {
		return MaxDelay
	}
	return time.Duration(seconds * float64(time.Second))
}

// NextDelay lets a Policy act as a BackoffStrategy.
func (p Policy) NextDelay(attempt int) time.Duration {
	return p.Delay(attempt)
}

// Reset is a no-op; a Policy holds no state.
func (p Policy) Reset() {}
