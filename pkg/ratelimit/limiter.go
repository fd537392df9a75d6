package ratelimit

import (
	"context"
	"math/rand"
	"net/url"
	"strings"
	"sync"
	"time"
)

// HostLimiter spaces requests to the same host at a fixed interval with
// optional jitter. Distinct hosts do not wait on each other.
// It is safe for concurrent use by multiple goroutines.
type HostLimiter struct {
	interval time.Duration
	jitter   float64 // 0.0 to 1.0

	mu   sync.Mutex
	next map[string]time.Time
	rng  *rand.Rand
}

// NewHostLimiter creates a limiter allowing rps requests per second to each
// host. If rps is <= 0, Wait never blocks.
func NewHostLimiter(rps float64, jitter float64) *HostLimiter {
	if jitter < 0 {
		jitter = 0
	} else if jitter > 1 {
		jitter = 1
	}

	l := &HostLimiter{
		jitter: jitter,
		next:   make(map[string]time.Time),
		rng:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	if rps > 0 {
		l.interval = time.Duration(float64(time.Second) / rps)
	}
	return l
}

// Wait blocks until a request to host may proceed, or until ctx is done.
func (l *HostLimiter) Wait(ctx context.Context, host string) error {
	if l == nil || l.interval == 0 {
		return ctx.Err()
	}
	host = strings.ToLower(host)

	l.mu.Lock()
	now := time.Now()
	slot := l.next[host]
	if slot.Before(now) {
		slot = now
	}
	// Jitter only ever lengthens the gap, never shortens it below interval.
	gap := l.interval
	if l.jitter > 0 {
		gap += time.Duration(float64(l.interval) * l.jitter * l.rng.Float64())
	}
	l.next[host] = slot.Add(gap)
	l.mu.Unlock()

	delay := time.Until(slot)
	if delay <= 0 {
		return ctx.Err()
	}

	t := time.NewTimer(delay)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// WaitURL is Wait keyed on the host of rawURL. Unparseable URLs share one
// bucket.
func (l *HostLimiter) WaitURL(ctx context.Context, rawURL string) error {
	host := ""
	if u, err := url.Parse(rawURL); err == nil {
		host = u.Hostname()
	}
	return l.Wait(ctx, host)
}
