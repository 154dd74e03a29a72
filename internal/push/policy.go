package push

import (
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Policy is the reconnect schedule: the nth consecutive failure waits
// base*n, and once MaxAttempts connection attempts have failed it returns
// backoff.Stop.
type Policy struct {
	Base        time.Duration
	MaxAttempts int

	mu       sync.Mutex
	failures int
}

var _ backoff.BackOff = (*Policy)(nil)

func NewPolicy(base time.Duration, maxAttempts int) *Policy {
	return &Policy{Base: base, MaxAttempts: maxAttempts}
}

// NextBackOff records a failed attempt and returns the wait before the next.
func (p *Policy) NextBackOff() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.failures++
	if p.failures >= p.MaxAttempts {
		return backoff.Stop
	}
	return p.Base * time.Duration(p.failures)
}

// Reset clears the failure count, after a successful connection or a
// manual retry.
func (p *Policy) Reset() {
	p.mu.Lock()
	p.failures = 0
	p.mu.Unlock()
}

// Failures returns the consecutive failures so far.
func (p *Policy) Failures() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.failures
}
