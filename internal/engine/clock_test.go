package engine

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSequence_New(t *testing.T) {
	s := NewSequence()
	assert.Equal(t, int64(0), s.Current(), "new sequence should start at 0")
}

func TestSequence_NewAt(t *testing.T) {
	s := NewSequenceAt(100)
	assert.Equal(t, int64(100), s.Current())
	assert.Equal(t, int64(101), s.Next())
}

func TestSequence_Next_Incrementing(t *testing.T) {
	s := NewSequence()

	// First call returns 1 (increments then returns)
	assert.Equal(t, int64(1), s.Next())
	assert.Equal(t, int64(2), s.Next())
	assert.Equal(t, int64(3), s.Next())
	assert.Equal(t, int64(3), s.Current())
}

func TestSequence_ThreadSafe(t *testing.T) {
	s := NewSequence()
	const goroutines = 100
	const callsPerGoroutine = 100

	var mu sync.Mutex
	seen := make(map[int64]bool)

	var wg sync.WaitGroup
	wg.Add(goroutines)
	for range goroutines {
		go func() {
			defer wg.Done()
			for range callsPerGoroutine {
				n := s.Next()
				mu.Lock()
				seen[n] = true
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Len(t, seen, goroutines*callsPerGoroutine, "all sequence numbers should be unique")
	assert.Equal(t, int64(goroutines*callsPerGoroutine), s.Current())
}

func TestSystemClock_Now(t *testing.T) {
	before := time.Now()
	now := SystemClock{}.Now()
	assert.False(t, now.Before(before))
}
