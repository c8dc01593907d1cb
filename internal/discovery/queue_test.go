package discovery

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestQueue(t *testing.T) {
	q := NewQueue(2)
	assert.Equal(t, Added, q.Push("rs1"))
	assert.Equal(t, Duplicate, q.Push("rs1"))
	assert.Equal(t, Added, q.Push("rs2"))
	assert.Equal(t, Dropped, q.Push("rs3"), "full queues drop new items")
	assert.Equal(t, []string{"rs1", "rs2"}, q.Items())
	assert.True(t, q.Contains("rs2"))

	id, ok := q.Pop()
	assert.True(t, ok)
	assert.Equal(t, "rs1", id)
	assert.False(t, q.Contains("rs1"))

	assert.Equal(t, Added, q.Push("rs1"), "popped ids may be queued again")
	assert.Equal(t, 2, q.Len())

	q.Pop()
	q.Pop()
	_, ok = q.Pop()
	assert.False(t, ok)
	assert.Zero(t, q.Len())
}
