// internal/guard/guard.go
package guard

import (
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

const (
	// DefaultMinInterval gates any two purchase attempts, regardless of token.
	DefaultMinInterval = 2 * time.Second
	// DefaultWindow is the per-token sliding window.
	DefaultWindow = 60 * time.Second
	// DefaultMaxAttempts caps attempts per token within an unexpired window.
	DefaultMaxAttempts = 3
)

// Verdict is the guard's advice for one prospective attempt. The guard
// never retries anything itself; the caller owns that decision.
type Verdict struct {
	Allow  bool
	Reason string
}

type attempt struct {
	windowStart time.Time
	count       int
}

// Guard tracks purchase attempts per token and globally to prevent
// duplicate or runaway execution. State is in memory only.
type Guard struct {
	minInterval time.Duration
	window      time.Duration
	maxAttempts int
	now         func() time.Time
	logger      *zap.Logger

	mu          sync.Mutex
	lastAttempt time.Time
	attempts    map[string]*attempt
}

// Option tweaks guard construction.
type Option func(*Guard)

// WithLimits overrides the default interval, window and attempt cap.
func WithLimits(minInterval, window time.Duration, maxAttempts int) Option {
	return func(g *Guard) {
		g.minInterval = minInterval
		g.window = window
		g.maxAttempts = maxAttempts
	}
}

// WithClock injects a clock for tests.
func WithClock(now func() time.Time) Option {
	return func(g *Guard) { g.now = now }
}

// New builds a guard with the default limits.
func New(logger *zap.Logger, opts ...Option) *Guard {
	g := &Guard{
		minInterval: DefaultMinInterval,
		window:      DefaultWindow,
		maxAttempts: DefaultMaxAttempts,
		now:         time.Now,
		logger:      logger.Named("guard"),
		attempts:    make(map[string]*attempt),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// CheckInterval applies the global inter-attempt gate. A rejection here
// consumes no attempt slot for the token.
func (g *Guard) CheckInterval() Verdict {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	if !g.lastAttempt.IsZero() && now.Sub(g.lastAttempt) < g.minInterval {
		return Verdict{Allow: false, Reason: "rate limit: too soon since last buy attempt"}
	}
	return Verdict{Allow: true}
}

// ShouldAttempt consumes one attempt slot for the token if available.
// Once the window has elapsed since its start, the counter resets to 1;
// while unexpired and at the cap, further attempts are rejected.
func (g *Guard) ShouldAttempt(tokenID string) Verdict {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	a, ok := g.attempts[tokenID]
	if !ok {
		a = &attempt{}
		g.attempts[tokenID] = a
	}

	switch {
	case now.Sub(a.windowStart) > g.window:
		a.windowStart = now
		a.count = 1
	case a.count >= g.maxAttempts:
		g.logger.Debug("attempt cap reached",
			zap.String("token", tokenID), zap.Int("count", a.count))
		return Verdict{
			Allow:  false,
			Reason: fmt.Sprintf("max buy attempts (%d) reached for this token", g.maxAttempts),
		}
	default:
		a.count++
	}
	return Verdict{Allow: true}
}

// RecordAttempt marks the global timestamp of an attempt actually made.
func (g *Guard) RecordAttempt() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.lastAttempt = g.now()
}
