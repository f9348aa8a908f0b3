package ringchan

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func drain[T any](rc *RingChannel[T]) []T {
	var out []T
	for v := range rc.C() {
		out = append(out, v)
	}
	return out
}

func TestForceSendOverwritesOldest(t *testing.T) {
	rc := New[int](3)

	for i := 0; i < 10; i++ {
		require.True(t, rc.ForceSend(i))
	}
	rc.Close()

	assert.Equal(t, []int{7, 8, 9}, drain(rc), "MUST keep only the newest values in order")
	assert.Equal(t, uint64(7), rc.Dropped())
}

func TestSendAfterClose(t *testing.T) {
	rc := New[int](2)
	rc.ForceSend(1)
	rc.Close()
	rc.Close()

	assert.False(t, rc.ForceSend(2), "send after Close MUST be dropped")
	assert.Equal(t, []int{1}, drain(rc), "buffered values MUST survive Close")
}

func TestConcurrentProducersNeverBlock(t *testing.T) {
	rc := New[int](4)
	var wg sync.WaitGroup

	for p := 0; p < 8; p++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 1000; i++ {
				rc.ForceSend(i)
			}
		}()
	}
	wg.Wait()
	rc.Close()

	assert.Len(t, drain(rc), 4)
}

func TestNewPanicsOnZeroCapacity(t *testing.T) {
	assert.Panics(t, func() { New[int](0) })
}
