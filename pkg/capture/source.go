// Package capture supplies mono float32 chunks at 16 kHz to a detector.
//
// A Source hands out a receive-only channel; the source owns it and closes
// it when capture ends. Sources never block their producer: when the
// consumer falls behind, chunks are dropped and counted.
package capture

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
)

// SampleRate is the rate every source delivers.
const SampleRate = 16000

var (
	// ErrUnavailable is returned when the capture device cannot be opened,
	// including when access is denied.
	ErrUnavailable = errors.New("capture: device unavailable")
	// ErrStarted is returned when Start is called twice.
	ErrStarted = errors.New("capture: already started")
	// ErrRevoked is reported by Err when the device stopped without Close,
	// for example when it was unplugged or access was withdrawn.
	ErrRevoked = errors.New("capture: device stopped unexpectedly")
)

// Source delivers audio chunks.
type Source interface {
	// Start begins capture. The channel is closed when capture ends,
	// after Close, or when ctx is done.
	Start(ctx context.Context) (<-chan []float32, error)
	// Close stops capture and releases the device. It is idempotent.
	Close() error
}

// DropCounter is implemented by sources that drop chunks under load.
type DropCounter interface {
	Dropped() uint64
}

// Failer is implemented by sources that can end because of a failure.
// Err is non-nil once the channel was closed for that reason.
type Failer interface {
	Err() error
}

// ChanSource is a Source fed by Push. The websocket server and tests use it.
type ChanSource struct {
	ch      chan []float32
	mu      sync.Mutex
	started bool
	closed  bool
	err     error
	dropped atomic.Uint64
}

// NewChanSource creates a source buffering up to buffer chunks.
func NewChanSource(buffer int) *ChanSource {
	if buffer < 1 {
		buffer = 1
	}
	return &ChanSource{ch: make(chan []float32, buffer)}
}

// Start returns the chunk channel. The source closes when ctx is done.
func (s *ChanSource) Start(ctx context.Context) (<-chan []float32, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil, ErrStarted
	}
	if s.closed {
		return nil, ErrUnavailable
	}
	s.started = true

	go func() {
		<-ctx.Done()
		s.Close()
	}()
	return s.ch, nil
}

// Push queues chunk without blocking. It returns false when the chunk was
// dropped because the buffer is full or the source is closed.
func (s *ChanSource) Push(chunk []float32) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return false
	}
	select {
	case s.ch <- chunk:
		return true
	default:
		s.dropped.Add(1)
		return false
	}
}

// Close closes the channel. It is idempotent.
func (s *ChanSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	close(s.ch)
	return nil
}

// Fail records err and closes the channel, as a device failure would.
func (s *ChanSource) Fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	s.err = err
	s.closed = true
	close(s.ch)
}

// Err returns the error passed to Fail.
func (s *ChanSource) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Dropped returns the number of chunks dropped by Push.
func (s *ChanSource) Dropped() uint64 { return s.dropped.Load() }

var (
	_ Source      = (*ChanSource)(nil)
	_ DropCounter = (*ChanSource)(nil)
	_ Failer      = (*ChanSource)(nil)
)
