// ABOUTME: Thread-safe circular buffer for int16 PCM samples
// ABOUTME: Overwrites oldest data on overflow so producers never block
package ring

import "sync"

// Buffer is a fixed-capacity circular buffer of interleaved int16 samples.
// The producer (capture callback, real-time thread) calls Push; the
// consumer (playback engine) calls Pull. The critical section is a single
// short mutex hold with no allocation, so the producer is never blocked for
// an unbounded time. When the buffer is full the oldest samples are
// overwritten, not the newest: for a live voice stream stale audio is worth
// less than fresh audio.
type Buffer struct {
	mu       sync.Mutex
	data     []int16
	readPos  int
	writePos int
	count    int

	pushed  uint64
	pulled  uint64
	dropped uint64
}

// New creates a buffer holding capacity samples.
func New(capacity int) *Buffer {
	if capacity < 1 {
		capacity = 1
	}
	return &Buffer{data: make([]int16, capacity)}
}

// Push appends samples, overwriting the oldest retained samples when full.
// It never blocks beyond the mutex hold and never fails.
func (b *Buffer) Push(samples []int16) {
	if len(samples) == 0 {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	n := len(samples)
	b.pushed += uint64(n)

	cap := len(b.data)
	if n >= cap {
		// Incoming chunk alone fills the buffer: keep only its tail.
		b.dropped += uint64(b.count + n - cap)
		copy(b.data, samples[n-cap:])
		b.readPos = 0
		b.writePos = 0
		b.count = cap
		return
	}

	// Discard oldest retained samples to make room.
	overflow := b.count + n - cap
	if overflow > 0 {
		b.readPos = (b.readPos + overflow) % cap
		b.count -= overflow
		b.dropped += uint64(overflow)
	}

	tail := cap - b.writePos
	if n <= tail {
		copy(b.data[b.writePos:], samples)
	} else {
		copy(b.data[b.writePos:], samples[:tail])
		copy(b.data, samples[tail:])
	}
	b.writePos = (b.writePos + n) % cap
	b.count += n
}

// Pull copies up to len(dst) of the oldest retained samples into dst and
// returns how many were copied. It does not zero-fill; callers handle
// underrun themselves.
func (b *Buffer) Pull(dst []int16) int {
	if len(dst) == 0 {
		return 0
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	n := len(dst)
	if n > b.count {
		n = b.count
	}
	if n == 0 {
		return 0
	}

	cap := len(b.data)
	tail := cap - b.readPos
	if n <= tail {
		copy(dst, b.data[b.readPos:b.readPos+n])
	} else {
		copy(dst, b.data[b.readPos:])
		copy(dst[tail:], b.data[:n-tail])
	}
	b.readPos = (b.readPos + n) % cap
	b.count -= n
	b.pulled += uint64(n)

	return n
}

// Available returns the number of samples ready to pull.
func (b *Buffer) Available() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.count
}

// Capacity returns the total sample capacity.
func (b *Buffer) Capacity() int {
	return len(b.data)
}

// Dropped returns the total number of samples overwritten before being pulled.
func (b *Buffer) Dropped() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.dropped
}

// Reset discards all buffered samples and counters.
func (b *Buffer) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.readPos = 0
	b.writePos = 0
	b.count = 0
	b.pushed = 0
	b.pulled = 0
	b.dropped = 0
}
