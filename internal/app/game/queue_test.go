package game

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pongrt/internal/app/presence"
)

func TestQueuePairsInArrivalOrder(t *testing.T) {
	q := NewQueue(nil)
	c1, c2, c3 := newFakeConn(1), newFakeConn(2), newFakeConn(3)

	_, matched := q.Join(c1)
	assert.False(t, matched)

	pair, matched := q.Join(c2)
	require.True(t, matched)
	assert.Same(t, c1, pair[0])
	assert.Same(t, c2, pair[1])
	assert.Zero(t, q.Len())

	_, matched = q.Join(c3)
	assert.False(t, matched)
	assert.True(t, q.Contains(3))
}

func TestQueueJoinIsIdempotent(t *testing.T) {
	q := NewQueue(nil)
	c1 := newFakeConn(1)

	q.Join(c1)
	_, matched := q.Join(c1)

	assert.False(t, matched)
	assert.Equal(t, 1, q.Len())
}

func TestQueueNewerConnectionReplacesEntry(t *testing.T) {
	q := NewQueue(nil)
	old, fresh, other := newFakeConn(1), newFakeConn(1), newFakeConn(2)

	q.Join(old)
	q.Join(fresh)
	assert.Equal(t, 1, q.Len())
	assert.False(t, q.Leave(old))

	pair, matched := q.Join(other)
	require.True(t, matched)
	assert.Same(t, fresh, pair[0])
}

func TestQueuePrunesDeadConnections(t *testing.T) {
	dead := newFakeConn(1)
	q := NewQueue(func(c presence.Conn) bool { return c != dead })

	q.Join(dead)
	_, matched := q.Join(newFakeConn(2))

	assert.False(t, matched)
	assert.False(t, q.Contains(1))
	assert.True(t, q.Contains(2))
}

func TestQueueLeave(t *testing.T) {
	q := NewQueue(nil)
	c1 := newFakeConn(1)
	q.Join(c1)

	assert.True(t, q.Leave(c1))
	assert.False(t, q.Leave(c1))
	assert.Zero(t, q.Len())
}
