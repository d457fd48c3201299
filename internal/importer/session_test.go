package importer

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSessionManagerSingleFlight(t *testing.T) {
	sm := NewSessionManager()

	release, ok := sm.Acquire()
	assert.True(t, ok)
	assert.True(t, sm.Active())

	_, ok = sm.Acquire()
	assert.False(t, ok, "second acquire while active must be refused")

	release()
	assert.False(t, sm.Active())

	release2, ok := sm.Acquire()
	assert.True(t, ok, "guard is reusable after release")
	release2()
}

func TestSessionManagerReleaseIdempotent(t *testing.T) {
	sm := NewSessionManager()

	release, ok := sm.Acquire()
	assert.True(t, ok)

	release()
	release() // double release must not free someone else's slot

	release2, ok := sm.Acquire()
	assert.True(t, ok)

	release() // stale release from the first session
	assert.True(t, sm.Active(), "stale release must not end the new session")
	release2()
}

func TestSessionManagerConcurrentAcquire(t *testing.T) {
	sm := NewSessionManager()

	const n = 32
	var wg sync.WaitGroup
	var mu sync.Mutex
	won := 0
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, ok := sm.Acquire(); ok {
				mu.Lock()
				won++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, won, "exactly one concurrent trigger wins the guard")
}
