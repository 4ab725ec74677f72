package eventloop

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestLoop_RunsPostedWorkInOrder(t *testing.T) {
	loop := New(zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go loop.Run(ctx)

	var got []int
	for i := 0; i < 100; i++ {
		i := i
		loop.Post(func() { got = append(got, i) })
	}

	var snapshot []int
	require.NoError(t, loop.Call(ctx, func() { snapshot = append(snapshot, got...) }))

	require.Len(t, snapshot, 100)
	for i, v := range snapshot {
		assert.Equal(t, i, v)
	}
}

func TestLoop_PostFromManyGoroutines(t *testing.T) {
	loop := New(zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go loop.Run(ctx)

	counter := 0
	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				loop.Post(func() { counter++ })
			}
		}()
	}
	wg.Wait()

	var total int
	require.NoError(t, loop.Call(ctx, func() { total = counter }))
	assert.Equal(t, 400, total)
}

func TestLoop_RecoversFromPanic(t *testing.T) {
	loop := New(zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go loop.Run(ctx)

	loop.Post(func() { panic("boom") })

	ran := false
	require.NoError(t, loop.Call(ctx, func() { ran = true }))
	assert.True(t, ran)
}

func TestLoop_CallAfterStop(t *testing.T) {
	loop := New(zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())

	stopped := make(chan struct{})
	go func() {
		_ = loop.Run(ctx)
		close(stopped)
	}()
	cancel()
	<-stopped

	err := loop.Call(context.Background(), func() {})
	assert.ErrorIs(t, err, ErrStopped)
}

func TestLoop_AfterFuncRunsOnLoop(t *testing.T) {
	loop := New(zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go loop.Run(ctx)

	fired := make(chan struct{})
	loop.AfterFunc(10*time.Millisecond, func() { close(fired) })

	select {
	case <-fired:
	case <-time.After(2 * time.Second):
		t.Fatal("timer never fired")
	}
}

func TestSlot_StaleTimerDiscarded(t *testing.T) {
	m := NewManual(time.Unix(0, 0))
	slot := NewSlot(m)

	var fired []string
	slot.Schedule(time.Second, func() { fired = append(fired, "first") })
	m.Advance(500 * time.Millisecond)
	slot.Schedule(time.Second, func() { fired = append(fired, "second") })

	m.Advance(600 * time.Millisecond)
	assert.Empty(t, fired, "first timer must not fire after being superseded")
	assert.True(t, slot.Pending())

	m.Advance(400 * time.Millisecond)
	assert.Equal(t, []string{"second"}, fired)
	assert.False(t, slot.Pending())
}

func TestSlot_CancelAfterPost(t *testing.T) {
	m := NewManual(time.Unix(0, 0))
	slot := NewSlot(m)

	fired := false
	slot.Schedule(time.Second, func() { fired = true })

	// Simulate the real-time race: the timer already handed its callback to
	// the loop, then the slot is cancelled before the loop gets to it.
	var posted func()
	for _, tm := range m.timers {
		posted = tm.fn
	}
	slot.Cancel()
	m.Post(posted)
	m.RunPending()

	assert.False(t, fired)
	assert.Equal(t, 0, m.PendingTimers())
}

func TestManual_AdvanceFiresInDeadlineOrder(t *testing.T) {
	m := NewManual(time.Unix(0, 0))

	var order []string
	m.AfterFunc(3*time.Second, func() { order = append(order, "c") })
	m.AfterFunc(time.Second, func() {
		order = append(order, "a")
		m.AfterFunc(time.Second, func() { order = append(order, "b") })
	})

	m.Advance(5 * time.Second)
	assert.Equal(t, []string{"a", "b", "c"}, order)
	assert.Equal(t, time.Unix(5, 0), m.Now())
}
