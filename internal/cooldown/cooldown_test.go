package cooldown

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestMemoryLedgerTakeThenDeny(t *testing.T) {
	ml := &memoryLedger{
		entries: make(map[string]memoryEntry),
		maxSize: 10,
		now:     time.Now,
	}

	remaining, ok := ml.Take("cooldown:ping:u1", time.Minute)
	require.True(t, ok)
	assert.Zero(t, remaining)

	remaining, ok = ml.Take("cooldown:ping:u1", time.Minute)
	require.False(t, ok)
	assert.Greater(t, remaining, 50*time.Second)
}

func TestMemoryLedgerExpiry(t *testing.T) {
	clock := time.Now()
	ml := &memoryLedger{
		entries: make(map[string]memoryEntry),
		maxSize: 10,
		now:     func() time.Time { return clock },
	}

	_, ok := ml.Take("k", time.Minute)
	require.True(t, ok)

	clock = clock.Add(61 * time.Second)
	_, ok = ml.Take("k", time.Minute)
	assert.True(t, ok)
}

func TestMemoryLedgerKeysIndependent(t *testing.T) {
	ml := &memoryLedger{
		entries: make(map[string]memoryEntry),
		maxSize: 10,
		now:     time.Now,
	}

	_, ok := ml.Take("cooldown:ping:u1", time.Minute)
	require.True(t, ok)

	_, ok = ml.Take("cooldown:ping:u2", time.Minute)
	assert.True(t, ok)

	_, ok = ml.Take("cooldown:demo:u1", time.Minute)
	assert.True(t, ok)
}

func TestMemoryLedgerEvictsAtCapacity(t *testing.T) {
	clock := time.Now()
	ml := &memoryLedger{
		entries: make(map[string]memoryEntry),
		maxSize: 2,
		now:     func() time.Time { return clock },
	}

	ml.Take("a", time.Minute)
	clock = clock.Add(time.Second)
	ml.Take("b", time.Minute)
	clock = clock.Add(time.Second)
	ml.Take("c", time.Minute)

	// "a" expired soonest so it goes first.
	assert.Len(t, ml.entries, 2)
	_, kept := ml.entries["a"]
	assert.False(t, kept)
}

func TestBreakerOpensAfterThreshold(t *testing.T) {
	cb := newCircuitBreaker(3, time.Hour)

	require.True(t, cb.Allow())
	cb.RecordFailure()
	cb.RecordFailure()
	assert.False(t, cb.IsOpen())

	cb.RecordFailure()
	assert.True(t, cb.IsOpen())
	assert.False(t, cb.Allow())
}

func TestBreakerHalfOpenRecovery(t *testing.T) {
	cb := newCircuitBreaker(1, 10*time.Millisecond)
	cb.RecordFailure()
	require.True(t, cb.IsOpen())

	time.Sleep(20 * time.Millisecond)
	require.True(t, cb.Allow())

	cb.RecordSuccess()
	cb.RecordSuccess()
	cb.RecordSuccess()
	assert.False(t, cb.IsOpen())
	assert.True(t, cb.Allow())
}

func TestBreakerHalfOpenFailureReopens(t *testing.T) {
	cb := newCircuitBreaker(1, 10*time.Millisecond)
	cb.RecordFailure()

	time.Sleep(20 * time.Millisecond)
	require.True(t, cb.Allow())

	cb.RecordFailure()
	assert.True(t, cb.IsOpen())
}

func TestGateMemoryOnly(t *testing.T) {
	g, err := New("", testLogger())
	require.NoError(t, err)
	defer g.Close()

	ctx := context.Background()

	remaining, ok := g.Take(ctx, "order-ticket", "u1", time.Minute)
	require.True(t, ok)
	assert.Zero(t, remaining)

	remaining, ok = g.Take(ctx, "order-ticket", "u1", time.Minute)
	require.False(t, ok)
	assert.Positive(t, remaining)

	_, ok = g.Take(ctx, "order-ticket", "u2", time.Minute)
	assert.True(t, ok)
}

func TestGateZeroTTLAlwaysAllows(t *testing.T) {
	g, err := New("", testLogger())
	require.NoError(t, err)
	defer g.Close()

	for i := 0; i < 3; i++ {
		_, ok := g.Take(context.Background(), "ping", "u1", 0)
		assert.True(t, ok)
	}
}

func TestGateCloseIsIdempotent(t *testing.T) {
	g, err := New("", testLogger())
	require.NoError(t, err)

	require.NotPanics(t, func() {
		assert.NoError(t, g.Close())
		assert.NoError(t, g.Close())
	})

	// The ledger still answers after shutdown; only the sweeper stops.
	_, ok := g.Take(context.Background(), "ping", "u1", time.Minute)
	assert.True(t, ok)
}

func TestGateRejectsBadRedisURL(t *testing.T) {
	_, err := New("not-a-url", testLogger())
	assert.Error(t, err)
}
