// Package ringchan provides a bounded channel with overwrite-oldest semantics.
package ringchan

import "sync"

// RingChannel is a bounded channel-like buffer with overwrite-oldest semantics.
//
// Producers never block: if the buffer is full, the oldest element is discarded.
// Readers treat C() as a normal <-chan T and range over it until Close.
//
//	rc := ringchan.New[[]byte](3)
//	for i := 0; i < 10; i++ {
//	    rc.ForceSend(frame(i))
//	}
//	rc.Close()
//	for v := range rc.C() {
//	    // only the last 3 frames arrive
//	}
//
// Sends after Close are dropped instead of panicking, so a late transport
// callback racing a teardown is harmless.
type RingChannel[T any] struct {
	ch chan T

	mu      sync.Mutex
	closed  bool
	dropped uint64
}

// New creates a RingChannel with the given capacity.
func New[T any](capacity int) *RingChannel[T] {
	if capacity <= 0 {
		panic("ringchan: capacity must be > 0")
	}
	return &RingChannel[T]{ch: make(chan T, capacity)}
}

// C returns the underlying receive-only channel.
func (rc *RingChannel[T]) C() <-chan T {
	return rc.ch
}

// ForceSend always succeeds immediately, discarding the oldest if needed.
// Returns false if the value was not queued because the channel is closed.
func (rc *RingChannel[T]) ForceSend(v T) bool {
	rc.mu.Lock()
	defer rc.mu.Unlock()

	if rc.closed {
		return false
	}

	for {
		select {
		case rc.ch <- v:
			return true
		default:
		}
		select {
		case <-rc.ch: // drop oldest
			rc.dropped++
		default:
		}
	}
}

// Dropped returns how many queued values were overwritten.
func (rc *RingChannel[T]) Dropped() uint64 {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	return rc.dropped
}

// Close closes the underlying channel. Buffered values stay readable. Safe to call twice.
func (rc *RingChannel[T]) Close() {
	rc.mu.Lock()
	defer rc.mu.Unlock()

	if rc.closed {
		return
	}
	rc.closed = true
	close(rc.ch)
}
