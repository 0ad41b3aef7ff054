package server

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGlobalConnectionLimiter(t *testing.T) {
	l := NewGlobalConnectionLimiter(2)

	assert.True(t, l.Acquire())
	assert.True(t, l.Acquire())
	assert.False(t, l.Acquire())

	l.Release()
	assert.True(t, l.Acquire())
	assert.Equal(t, int64(2), l.Current())
	assert.Equal(t, 100.0, l.CapacityPct())
}

func TestGlobalConnectionLimiter_ZeroMaxRejectsAll(t *testing.T) {
	l := NewGlobalConnectionLimiter(0)

	assert.False(t, l.Acquire())
	assert.Equal(t, 0.0, l.CapacityPct())
}

func TestIPConnectionLimiter(t *testing.T) {
	l := NewIPConnectionLimiter(2)

	assert.True(t, l.Acquire("1.1.1.1"))
	assert.True(t, l.Acquire("1.1.1.1"))
	assert.False(t, l.Acquire("1.1.1.1"))

	// Another IP is unaffected.
	assert.True(t, l.Acquire("2.2.2.2"))
	assert.Equal(t, 2, l.UniqueIPs())

	l.Release("1.1.1.1")
	assert.True(t, l.Acquire("1.1.1.1"))
	assert.Equal(t, 2, l.Count("1.1.1.1"))
}

func TestIPConnectionLimiter_ReleaseCleansUpEmptyEntries(t *testing.T) {
	l := NewIPConnectionLimiter(2)

	require.True(t, l.Acquire("1.1.1.1"))
	l.Release("1.1.1.1")

	assert.Equal(t, 0, l.UniqueIPs())

	// Releasing an untracked IP must not underflow.
	l.Release("3.3.3.3")
	assert.Equal(t, 0, l.Count("3.3.3.3"))
}

func TestConnectionRateLimiter(t *testing.T) {
	l := NewConnectionRateLimiter(0.01, 2)

	assert.True(t, l.Allow("1.1.1.1"))
	assert.True(t, l.Allow("1.1.1.1"))
	assert.False(t, l.Allow("1.1.1.1"))

	// Buckets are per IP.
	assert.True(t, l.Allow("2.2.2.2"))
	assert.Equal(t, 2, l.ActiveLimiters())
}

func TestConnectionLimits_ReportsFirstLimitHit(t *testing.T) {
	l := NewConnectionLimits(1, 1, 1000, 1000)

	ok, reason := l.Acquire("1.1.1.1")
	require.True(t, ok)
	assert.Empty(t, string(reason))

	ok, reason = l.Acquire("2.2.2.2")
	assert.False(t, ok)
	assert.Equal(t, LimitReasonGlobal, reason)

	l.Release("1.1.1.1")
	ok, _ = l.Acquire("2.2.2.2")
	assert.True(t, ok)
}

func TestConnectionLimits_PerIPRollsBackGlobal(t *testing.T) {
	l := NewConnectionLimits(10, 1, 1000, 1000)

	ok, _ := l.Acquire("1.1.1.1")
	require.True(t, ok)

	ok, reason := l.Acquire("1.1.1.1")
	assert.False(t, ok)
	assert.Equal(t, LimitReasonPerIP, reason)

	// The failed per-IP acquire must not leak a global slot.
	assert.Equal(t, int64(1), l.Global().Current())
}

func TestConnectionLimits_RateLimitReason(t *testing.T) {
	l := NewConnectionLimits(10, 10, 0.01, 1)

	ok, _ := l.Acquire("1.1.1.1")
	require.True(t, ok)

	ok, reason := l.Acquire("1.1.1.1")
	assert.False(t, ok)
	assert.Equal(t, LimitReasonRate, reason)
}
