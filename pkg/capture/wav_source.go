package capture

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/realtime-ai/wakeword/pkg/audio"
)

// WAVSource replays a clip as a stream of chunks.
type WAVSource struct {
	samples   []float32
	chunkSize int
	paced     bool

	mu      sync.Mutex
	started bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewWAVSource loads path and resamples it to 16 kHz. With paced set, one
// chunk is emitted per chunk duration; otherwise as fast as the consumer
// reads.
func NewWAVSource(path string, chunkSize int, paced bool) (*WAVSource, error) {
	w, err := audio.ReadWAVFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	samples, err := audio.Resample(w.Samples, w.SampleRate, SampleRate)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return NewSampleSource(samples, chunkSize, paced), nil
}

// NewSampleSource replays samples already at 16 kHz.
func NewSampleSource(samples []float32, chunkSize int, paced bool) *WAVSource {
	if chunkSize <= 0 {
		chunkSize = 2048
	}
	return &WAVSource{samples: samples, chunkSize: chunkSize, paced: paced}
}

// Start begins replay. The channel closes after the last chunk.
func (s *WAVSource) Start(ctx context.Context) (<-chan []float32, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil, ErrStarted
	}
	s.started = true

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})
	out := make(chan []float32)

	go func() {
		defer close(s.done)
		defer close(out)

		var tick <-chan time.Time
		if s.paced {
			ticker := time.NewTicker(time.Duration(s.chunkSize) * time.Second / SampleRate)
			defer ticker.Stop()
			tick = ticker.C
		}

		for off := 0; off < len(s.samples); off += s.chunkSize {
			end := min(off+s.chunkSize, len(s.samples))
			chunk := append([]float32(nil), s.samples[off:end]...)

			if tick != nil {
				select {
				case <-tick:
				case <-ctx.Done():
					return
				}
			}
			select {
			case out <- chunk:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

// Close stops replay and waits for the producer to exit.
func (s *WAVSource) Close() error {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.mu.Unlock()

	if cancel == nil {
		return nil
	}
	cancel()
	<-done
	return nil
}

// Len returns the clip length in samples.
func (s *WAVSource) Len() int { return len(s.samples) }

var _ Source = (*WAVSource)(nil)
