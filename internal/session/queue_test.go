package session

import (
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInbox_TakesInArrivalOrder(t *testing.T) {
	b := newInbox()
	require.True(t, b.put(Event{Type: EventText, Text: "a robot"}))
	require.True(t, b.put(Event{Type: EventAppend, Text: "walks"}))
	require.True(t, b.put(Event{Type: EventExport}))
	assert.Equal(t, 3, b.size())

	var got []EventType
	for {
		ev, ok, done := b.take()
		require.False(t, done)
		if !ok {
			break
		}
		got = append(got, ev.Type)
	}
	assert.Equal(t, []EventType{EventText, EventAppend, EventExport}, got)
	assert.Zero(t, b.size())
}

func TestInbox_ReadyFiresOnPut(t *testing.T) {
	b := newInbox()

	go func() {
		time.Sleep(10 * time.Millisecond)
		b.put(Event{Type: EventHelpTick})
	}()

	select {
	case <-b.ready():
	case <-time.After(time.Second):
		t.Fatal("ready never fired")
	}
	ev, ok, _ := b.take()
	require.True(t, ok)
	assert.Equal(t, EventHelpTick, ev.Type)
}

func TestInbox_ShutdownDrainsThenReportsDone(t *testing.T) {
	b := newInbox()
	b.put(Event{Type: EventState})
	b.shutdown()
	b.shutdown()

	assert.False(t, b.put(Event{Type: EventRestart}), "put after shutdown")

	ev, ok, done := b.take()
	assert.True(t, ok)
	assert.False(t, done)
	assert.Equal(t, EventState, ev.Type)

	_, ok, done = b.take()
	assert.False(t, ok)
	assert.True(t, done)

	select {
	case <-b.ready():
	default:
		t.Fatal("ready should stay fired after shutdown")
	}
}

func TestInbox_ConcurrentProducers(t *testing.T) {
	b := newInbox()

	var wg sync.WaitGroup
	for p := range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range 50 {
				b.put(Event{Type: EventAppend, Text: strconv.Itoa(p*1000 + i)})
			}
		}()
	}
	wg.Wait()

	seen := make(map[string]bool)
	for {
		ev, ok, _ := b.take()
		if !ok {
			break
		}
		seen[ev.Text] = true
	}
	assert.Len(t, seen, 8*50)
}

func TestEventType_String(t *testing.T) {
	assert.Equal(t, "text", EventText.String())
	assert.Equal(t, "help_tick", EventHelpTick.String())
	assert.Equal(t, "state", EventState.String())
	assert.Equal(t, "unknown", EventType(0).String())
	assert.Equal(t, "unknown", EventType(99).String())
}
