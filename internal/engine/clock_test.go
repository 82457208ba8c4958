package engine

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClock_StartsAtOne(t *testing.T) {
	c := NewClock()
	assert.Equal(t, int64(0), c.Current())
	assert.Equal(t, int64(1), c.Next())
	assert.Equal(t, int64(2), c.Next())
	assert.Equal(t, int64(2), c.Current())
}

func TestClock_Resume(t *testing.T) {
	c := NewClockAt(41)
	assert.Equal(t, int64(42), c.Next())
}

func TestClock_Advance(t *testing.T) {
	c := NewClock()

	c.Advance(10)
	assert.Equal(t, int64(10), c.Current())

	c.Advance(3)
	assert.Equal(t, int64(10), c.Current(), "advance never moves back")

	assert.Equal(t, int64(11), c.Next())
}

func TestClock_ConcurrentNextUnique(t *testing.T) {
	c := NewClock()
	const workers, perWorker = 50, 200

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		seen = make(map[int64]struct{}, workers*perWorker)
	)
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			local := make([]int64, 0, perWorker)
			for range perWorker {
				local = append(local, c.Next())
			}
			mu.Lock()
			for _, s := range local {
				seen[s] = struct{}{}
			}
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Len(t, seen, workers*perWorker)
	assert.Equal(t, int64(workers*perWorker), c.Current())
}
