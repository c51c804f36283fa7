// Package audio provides audio utilities for the detection pipeline.
//
// RollingBuffer holds the most recent fixed-length window of mono float
// samples that feature extraction runs over. It starts full of silence, so
// a window is available from the first chunk on.
//
// Usage:
//
//	rb := NewRollingBuffer(16000) // one second at 16kHz
//	rb.Absorb(chunk)
//	window := rb.Snapshot()
package audio

import "sync"

// RollingBuffer is a fixed-size circular buffer of float32 samples.
// Reads always return exactly Capacity samples, oldest first.
type RollingBuffer struct {
	data     []float32
	capacity int
	writePos int // position of the oldest sample
	mu       sync.Mutex
}

// NewRollingBuffer creates a zero-filled buffer of capacity samples.
func NewRollingBuffer(capacity int) *RollingBuffer {
	if capacity <= 0 {
		capacity = 1
	}
	return &RollingBuffer{
		data:     make([]float32, capacity),
		capacity: capacity,
	}
}

// Absorb appends chunk, discarding the oldest len(chunk) samples.
// A chunk at least Capacity long replaces the contents with its tail.
func (rb *RollingBuffer) Absorb(chunk []float32) {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	n := len(chunk)
	if n == 0 {
		return
	}

	if n >= rb.capacity {
		copy(rb.data, chunk[n-rb.capacity:])
		rb.writePos = 0
		return
	}

	spaceToEnd := rb.capacity - rb.writePos
	if n <= spaceToEnd {
		copy(rb.data[rb.writePos:], chunk)
		rb.writePos += n
		if rb.writePos == rb.capacity {
			rb.writePos = 0
		}
	} else {
		copy(rb.data[rb.writePos:], chunk[:spaceToEnd])
		copy(rb.data, chunk[spaceToEnd:])
		rb.writePos = n - spaceToEnd
	}
}

// CopyTo writes the window in chronological order into dst, which must
// hold at least Capacity samples. It returns the number written.
func (rb *RollingBuffer) CopyTo(dst []float32) int {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	if len(dst) < rb.capacity {
		return 0
	}
	first := copy(dst, rb.data[rb.writePos:])
	copy(dst[first:], rb.data[:rb.writePos])
	return rb.capacity
}

// Snapshot returns a chronological copy of the window.
func (rb *RollingBuffer) Snapshot() []float32 {
	out := make([]float32, rb.capacity)
	rb.CopyTo(out)
	return out
}

// Reset fills the buffer with silence.
func (rb *RollingBuffer) Reset() {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	clear(rb.data)
	rb.writePos = 0
}

// Capacity returns the window length in samples.
func (rb *RollingBuffer) Capacity() int {
	return rb.capacity
}
