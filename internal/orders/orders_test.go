package orders

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestCreateStartsPending(t *testing.T) {
	b := NewBook(zap.NewNop())

	o := b.Create("TKN", "Test Token", SideBuy, 0.1, "Mint111")
	assert.NotEmpty(t, o.ID)
	assert.Equal(t, StatusPending, o.Status)
	assert.Equal(t, SideBuy, o.Side)

	got, ok := b.Get(o.ID)
	require.True(t, ok)
	assert.Equal(t, StatusPending, got.Status)
}

func TestCompleteSetsSignature(t *testing.T) {
	b := NewBook(zap.NewNop())
	o := b.Create("TKN", "Test Token", SideBuy, 0.1, "Mint111")

	require.NoError(t, b.Complete(o.ID, "sig123"))
	got, ok := b.Get(o.ID)
	require.True(t, ok)
	assert.Equal(t, StatusSuccess, got.Status)
	assert.Equal(t, "sig123", got.Signature)
}

func TestFailKeepsSignatureAndMessage(t *testing.T) {
	b := NewBook(zap.NewNop())
	o := b.Create("TKN", "Test Token", SideSell, 50, "Mint111")

	// A send can land on chain and still fail confirmation, so the
	// failed record may carry a signature.
	require.NoError(t, b.Fail(o.ID, "sig456", "confirmation timed out"))
	got, _ := b.Get(o.ID)
	assert.Equal(t, StatusError, got.Status)
	assert.Equal(t, "sig456", got.Signature)
	assert.Equal(t, "confirmation timed out", got.Error)
}

func TestTransitionsAreMonotonic(t *testing.T) {
	b := NewBook(zap.NewNop())
	o := b.Create("TKN", "Test Token", SideBuy, 0.1, "Mint111")

	require.NoError(t, b.Complete(o.ID, "sig"))
	assert.Error(t, b.Complete(o.ID, "sig2"), "success is final")
	assert.Error(t, b.Fail(o.ID, "", "late failure"), "no success -> error")
}

func TestRemoveRequiresTerminalStatus(t *testing.T) {
	b := NewBook(zap.NewNop())
	o := b.Create("TKN", "Test Token", SideBuy, 0.1, "Mint111")

	assert.Error(t, b.Remove(o.ID), "pending orders cannot be removed")

	require.NoError(t, b.Fail(o.ID, "", "no route"))
	require.NoError(t, b.Remove(o.ID))

	_, ok := b.Get(o.ID)
	assert.False(t, ok)
	assert.Error(t, b.Remove(o.ID), "removed is terminal")
}

func TestActiveNewestFirst(t *testing.T) {
	b := NewBook(zap.NewNop())
	first := b.Create("AAA", "First", SideBuy, 0.1, "MintA")
	second := b.Create("BBB", "Second", SideBuy, 0.2, "MintB")

	active := b.Active()
	require.Len(t, active, 2)
	assert.Equal(t, second.ID, active[0].ID)
	assert.Equal(t, first.ID, active[1].ID)
}

func TestFinishedOrderIsPurged(t *testing.T) {
	b := NewBook(zap.NewNop(), WithPurgeDelay(20*time.Millisecond))
	o := b.Create("TKN", "Test Token", SideBuy, 0.1, "Mint111")
	require.NoError(t, b.Complete(o.ID, "sig"))

	assert.Eventually(t, func() bool {
		_, ok := b.Get(o.ID)
		return !ok
	}, time.Second, 5*time.Millisecond)
}

func TestListenersSeeEveryTransition(t *testing.T) {
	b := NewBook(zap.NewNop(), WithPurgeDelay(time.Hour))

	var mu sync.Mutex
	var seen []Status
	b.OnChange(func(o Order) {
		mu.Lock()
		seen = append(seen, o.Status)
		mu.Unlock()
	})

	o := b.Create("TKN", "Test Token", SideBuy, 0.1, "Mint111")
	require.NoError(t, b.Complete(o.ID, "sig"))
	require.NoError(t, b.Remove(o.ID))

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []Status{StatusPending, StatusSuccess, StatusRemoved}, seen)
}
