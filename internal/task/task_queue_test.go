package task

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueueEnqueueAndConsume(t *testing.T) {
	t.Parallel()

	q := NewQueue(4, testLogger())
	first := newScriptedTask(Completed())
	second := newScriptedTask(Completed())

	require.NoError(t, q.Enqueue(first))
	require.NoError(t, q.Enqueue(second))

	got := <-q.GetChannel()
	assert.Equal(t, first.ID(), got.ID())
	got = <-q.GetChannel()
	assert.Equal(t, second.ID(), got.ID())
}

func TestQueueCloseIsIdempotent(t *testing.T) {
	t.Parallel()

	q := NewQueue(1, testLogger())
	q.Close()
	q.Close()

	assert.ErrorIs(t, q.Enqueue(newScriptedTask(Completed())), ErrQueueClosed)

	_, open := <-q.GetChannel()
	assert.False(t, open)
}
