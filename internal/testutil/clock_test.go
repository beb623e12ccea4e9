package testutil

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFakeClock_StartsAtEpoch(t *testing.T) {
	assert.Equal(t, Epoch, NewFakeClock().Now())
}

func TestFakeClock_Advance(t *testing.T) {
	clock := NewFakeClock()

	clock.Advance(20 * time.Second)
	assert.Equal(t, Epoch.Add(20*time.Second), clock.Now())

	// Negative advances are ignored
	clock.Advance(-time.Hour)
	assert.Equal(t, Epoch.Add(20*time.Second), clock.Now())
}

func TestFakeClock_SetAndReset(t *testing.T) {
	at := time.Date(2087, time.March, 3, 0, 0, 0, 0, time.UTC)
	clock := NewFakeClockAt(at)
	assert.Equal(t, at, clock.Now())

	clock.Set(at.Add(time.Minute))
	assert.Equal(t, at.Add(time.Minute), clock.Now())

	clock.Reset()
	assert.Equal(t, Epoch, clock.Now())
}

func TestFakeClock_ThreadSafe(t *testing.T) {
	clock := NewFakeClock()
	const numGoroutines = 50

	var wg sync.WaitGroup
	wg.Add(numGoroutines)
	for range numGoroutines {
		go func() {
			defer wg.Done()
			clock.Advance(time.Second)
			_ = clock.Now()
		}()
	}
	wg.Wait()

	assert.Equal(t, Epoch.Add(numGoroutines*time.Second), clock.Now())
}

func TestFixedIDGenerator(t *testing.T) {
	gen := NewFixedIDGenerator("session-1")
	assert.Equal(t, "session-1", gen.Generate())
	assert.Equal(t, "session-1", gen.Generate())

	assert.Equal(t, "test-session-default", NewFixedIDGenerator("").Generate())
}
