package notify

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"gyani-interview/client/internal/eventloop"
)

func texts(alerts []Alert) []string {
	out := make([]string, 0, len(alerts))
	for _, a := range alerts {
		out = append(out, a.Text)
	}
	return out
}

func TestCenter_MonotonicIDs(t *testing.T) {
	loop := eventloop.NewManual(time.Unix(0, 0))
	c := NewCenter(loop, 5*time.Second, zap.NewNop())

	a := c.Enqueue("one", SeverityInfo)
	b := c.Enqueue("two", SeverityError)
	assert.Less(t, a.ID, b.ID)
	assert.Equal(t, []string{"one", "two"}, texts(c.Active()))
}

func TestCenter_EvictionIndependentOfLaterInserts(t *testing.T) {
	loop := eventloop.NewManual(time.Unix(0, 0))
	c := NewCenter(loop, 5*time.Second, zap.NewNop())

	c.Enqueue("first", SeverityInfo)

	loop.Advance(3 * time.Second)
	c.Enqueue("second", SeverityInfo)

	loop.Advance(1900 * time.Millisecond) // t=4.9s
	assert.Equal(t, []string{"first", "second"}, texts(c.Active()))

	loop.Advance(200 * time.Millisecond) // t=5.1s
	assert.Equal(t, []string{"second"}, texts(c.Active()))

	loop.Advance(3 * time.Second) // t=8.1s
	assert.Empty(t, c.Active())
	assert.Equal(t, 0, loop.PendingTimers())
}

func TestCenter_Close(t *testing.T) {
	loop := eventloop.NewManual(time.Unix(0, 0))
	c := NewCenter(loop, 5*time.Second, zap.NewNop())

	c.Enqueue("a", SeverityInfo)
	c.Enqueue("b", SeverityWarning)
	require.Equal(t, 2, loop.PendingTimers())

	c.Close()
	assert.Equal(t, 0, loop.PendingTimers())
	assert.Empty(t, c.Active())

	c.Enqueue("late", SeverityInfo)
	assert.Empty(t, c.Active())
}
