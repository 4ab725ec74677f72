package transcript

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	t time.Time
}

func (c *fakeClock) now() time.Time { return c.t }

func TestLog_AppendOrder(t *testing.T) {
	clock := &fakeClock{t: time.Unix(0, 0)}
	log := NewLog(clock.now)

	log.Append(SpeakerAI, "Tell me about yourself.")
	clock.t = clock.t.Add(5 * time.Second)
	log.Append(SpeakerUser, "I sell software.")

	all := log.All()
	require.Len(t, all, 2)
	assert.Equal(t, SpeakerAI, all[0].Speaker)
	assert.Equal(t, SpeakerUser, all[1].Speaker)
	assert.Equal(t, time.Unix(5, 0), all[1].Timestamp)
}

func TestLog_TimestampsNonDecreasing(t *testing.T) {
	clock := &fakeClock{t: time.Unix(100, 0)}
	log := NewLog(clock.now)

	log.Append(SpeakerAI, "first")
	clock.t = time.Unix(90, 0) // clock stepped back
	second := log.Append(SpeakerUser, "second")

	assert.Equal(t, time.Unix(100, 0), second.Timestamp)
}

func TestLog_Last(t *testing.T) {
	log := NewLog(nil)
	for _, text := range []string{"a", "b", "c", "d"} {
		log.Append(SpeakerAI, text)
	}

	last := log.Last(3)
	require.Len(t, last, 3)
	assert.Equal(t, "b", last[0].Text)
	assert.Equal(t, "d", last[2].Text)

	assert.Len(t, log.Last(10), 4)
	assert.Empty(t, log.Last(0))
}

func TestLog_ReadsAreCopies(t *testing.T) {
	log := NewLog(nil)
	log.Append(SpeakerAI, "original")

	all := log.All()
	all[0].Text = "mutated"

	assert.Equal(t, "original", log.All()[0].Text)
	assert.Equal(t, 1, log.Len())
}
