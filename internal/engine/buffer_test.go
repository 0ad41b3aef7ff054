package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/portpulse/portpulse/internal/domain"
)

func event(seq uint64) domain.Event {
	return domain.Event{Seq: seq, Channel: domain.ChannelPositions, Type: "positions.delta"}
}

func TestBuffer_AppendEvictsOldest(t *testing.T) {
	b := NewBuffer(3)
	for seq := uint64(1); seq <= 5; seq++ {
		b.Append(event(seq))
	}

	assert.Equal(t, 3, b.Len())
	assert.Equal(t, uint64(3), b.OldestSeq())
	assert.Equal(t, uint64(5), b.MaxSeq())
}

func TestBuffer_SinceReplaysInOrder(t *testing.T) {
	b := NewBuffer(10)
	for seq := uint64(1); seq <= 5; seq++ {
		b.Append(event(seq))
	}

	events, ok := b.Since(2)
	require.True(t, ok)
	require.Len(t, events, 3)
	for i, ev := range events {
		assert.Equal(t, uint64(3+i), ev.Seq)
	}
}

func TestBuffer_SinceAtMaxSeqIsEmptyAck(t *testing.T) {
	b := NewBuffer(10)
	b.Append(event(1))
	b.Append(event(2))

	events, ok := b.Since(2)
	assert.True(t, ok)
	assert.Empty(t, events)
}

func TestBuffer_SinceAheadOfEmittedIsRejected(t *testing.T) {
	b := NewBuffer(10)
	b.Append(event(1))

	_, ok := b.Since(7)
	assert.False(t, ok)
}

func TestBuffer_SinceBeyondRetentionIsRejected(t *testing.T) {
	b := NewBuffer(2)
	for seq := uint64(1); seq <= 5; seq++ {
		b.Append(event(seq))
	}
	// Retained: 4, 5. A client at seq 2 has an unreplayable gap.
	_, ok := b.Since(2)
	assert.False(t, ok)

	// Seq 3 is exactly the eviction boundary: everything after it survives.
	events, ok := b.Since(3)
	require.True(t, ok)
	assert.Len(t, events, 2)
}

func TestBuffer_SinceOnEmptyBuffer(t *testing.T) {
	b := NewBuffer(10)

	events, ok := b.Since(0)
	assert.True(t, ok)
	assert.Empty(t, events)
}
