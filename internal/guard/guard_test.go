package guard

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time          { return c.now }
func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func newTestGuard(t *testing.T) (*Guard, *fakeClock) {
	t.Helper()
	clock := &fakeClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	g := New(zap.NewNop(), WithClock(clock.Now))
	return g, clock
}

func TestIntervalGateBlocksRapidAttempts(t *testing.T) {
	g, clock := newTestGuard(t)

	assert.True(t, g.CheckInterval().Allow, "first attempt never blocked")
	g.RecordAttempt()

	clock.Advance(time.Second)
	v := g.CheckInterval()
	assert.False(t, v.Allow)
	assert.Contains(t, v.Reason, "too soon")

	clock.Advance(time.Second + time.Millisecond)
	assert.True(t, g.CheckInterval().Allow)
}

func TestIntervalRejectionConsumesNoSlot(t *testing.T) {
	g, clock := newTestGuard(t)
	g.RecordAttempt()

	// Rejected at the interval gate repeatedly; the token budget must
	// remain untouched.
	for i := 0; i < 10; i++ {
		assert.False(t, g.CheckInterval().Allow)
	}

	clock.Advance(3 * time.Second)
	for i := 0; i < DefaultMaxAttempts; i++ {
		assert.True(t, g.ShouldAttempt("mint1").Allow, "slot %d", i)
	}
	assert.False(t, g.ShouldAttempt("mint1").Allow)
}

func TestAttemptCapWithinWindow(t *testing.T) {
	g, clock := newTestGuard(t)

	for i := 0; i < 3; i++ {
		assert.True(t, g.ShouldAttempt("mint1").Allow)
		clock.Advance(5 * time.Second)
	}

	v := g.ShouldAttempt("mint1")
	assert.False(t, v.Allow)
	assert.Contains(t, v.Reason, "max buy attempts (3)")
}

func TestFourthAttemptAllowedOnlyAfterWindow(t *testing.T) {
	g, clock := newTestGuard(t)

	for i := 0; i < 3; i++ {
		assert.True(t, g.ShouldAttempt("mint1").Allow)
	}
	assert.False(t, g.ShouldAttempt("mint1").Allow)

	clock.Advance(61 * time.Second)
	assert.True(t, g.ShouldAttempt("mint1").Allow)
}

func TestWindowResetStartsFreshBudget(t *testing.T) {
	g, clock := newTestGuard(t)

	for i := 0; i < 3; i++ {
		g.ShouldAttempt("mint1")
	}
	clock.Advance(61 * time.Second)

	// Counter resets to one on the expired window, leaving two more.
	assert.True(t, g.ShouldAttempt("mint1").Allow)
	assert.True(t, g.ShouldAttempt("mint1").Allow)
	assert.True(t, g.ShouldAttempt("mint1").Allow)
	assert.False(t, g.ShouldAttempt("mint1").Allow)
}

func TestTokensAreIndependent(t *testing.T) {
	g, _ := newTestGuard(t)

	for i := 0; i < 3; i++ {
		g.ShouldAttempt("mint1")
	}
	assert.False(t, g.ShouldAttempt("mint1").Allow)
	assert.True(t, g.ShouldAttempt("mint2").Allow)
}

func TestCustomLimits(t *testing.T) {
	clock := &fakeClock{now: time.Now()}
	g := New(zap.NewNop(),
		WithLimits(time.Second, 10*time.Second, 1),
		WithClock(clock.Now))

	assert.True(t, g.ShouldAttempt("m").Allow)
	assert.False(t, g.ShouldAttempt("m").Allow)
	clock.Advance(11 * time.Second)
	assert.True(t, g.ShouldAttempt("m").Allow)
}
