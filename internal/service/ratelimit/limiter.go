package ratelimit

import (
	"context"
	"math"
	"sync"
	"time"
)

type bucket struct {
	tokens float64
	last   time.Time
}

// Limiter is a per-key token bucket holding up to capacity tokens that refill
// evenly over window.
type Limiter struct {
	mu       sync.Mutex
	m        map[string]*bucket
	capacity float64
	rate     float64 // tokens per second
	now      func() time.Time
}

// New allows requests per window for each key. A non-positive request count
// disables limiting.
func New(requests int, window time.Duration) *Limiter {
	l := &Limiter{m: make(map[string]*bucket), capacity: float64(requests), now: time.Now}
	if requests > 0 && window > 0 {
		l.rate = float64(requests) / window.Seconds()
	}
	return l
}

func (l *Limiter) Enabled() bool { return l.capacity > 0 && l.rate > 0 }

// Allow consumes one token for key. When denied it returns how long until a
// token is available.
func (l *Limiter) Allow(key string) (bool, time.Duration) {
	if !l.Enabled() {
		return true, 0
	}
	now := l.now()
	l.mu.Lock()
	defer l.mu.Unlock()

	b, ok := l.m[key]
	if !ok {
		b = &bucket{tokens: l.capacity, last: now}
		l.m[key] = b
	}
	if elapsed := now.Sub(b.last).Seconds(); elapsed > 0 {
		b.tokens = math.Min(l.capacity, b.tokens+elapsed*l.rate)
		b.last = now
	}
	if b.tokens >= 1 {
		b.tokens--
		return true, 0
	}
	wait := time.Duration((1 - b.tokens) / l.rate * float64(time.Second))
	return false, wait
}

// Prune drops buckets that have refilled completely; they are
// indistinguishable from new ones.
func (l *Limiter) Prune() int {
	if !l.Enabled() {
		return 0
	}
	now := l.now()
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for k, b := range l.m {
		if b.tokens+now.Sub(b.last).Seconds()*l.rate >= l.capacity {
			delete(l.m, k)
			n++
		}
	}
	return n
}

// Run prunes idle buckets every interval until ctx is done.
func (l *Limiter) Run(ctx context.Context, interval time.Duration) {
	if !l.Enabled() || interval <= 0 {
		return
	}
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			l.Prune()
		}
	}
}
