package orchestrator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/elee1766/gauntletfuse/src/storage"
)

func TestHub(t *testing.T) {
	h := NewHub()
	ch, unsubscribe := h.Subscribe("run-1")
	other, unsubscribeOther := h.Subscribe("run-2")
	defer unsubscribeOther()
	assert.Equal(t, 1, h.Subscribers("run-1"))

	h.Publish(Event{RunID: "run-1", Type: EventStatus, Status: storage.RunRunning})
	ev := <-ch
	assert.Equal(t, storage.RunRunning, ev.Status)
	assert.False(t, ev.Time.IsZero())
	assert.False(t, ev.Terminal())
	assert.Empty(t, other)

	// a full subscriber drops events instead of blocking
	for range subscriberBuffer + 10 {
		h.Publish(Event{RunID: "run-1", Type: EventMessage})
	}
	assert.Len(t, ch, subscriberBuffer)

	unsubscribe()
	unsubscribe()
	assert.Equal(t, 0, h.Subscribers("run-1"))
	for range ch {
	}
	_, open := <-ch
	require.False(t, open)

	var nilHub *Hub
	nilHub.Publish(Event{RunID: "run-1"})
}

func TestEventTerminal(t *testing.T) {
	assert.True(t, Event{Type: EventStatus, Status: storage.RunFailed}.Terminal())
	assert.False(t, Event{Type: EventRoundFinished, Status: storage.RunFailed}.Terminal())
}
