package capture

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/gen2brain/malgo"
	"github.com/rs/zerolog/log"

	"github.com/realtime-ai/wakeword/pkg/audio"
)

// MicrophoneConfig configures the default capture device.
type MicrophoneConfig struct {
	// PeriodFrames is the callback size in samples.
	PeriodFrames int
	// Buffer is the number of chunks queued before dropping.
	Buffer int
}

// DefaultMicrophoneConfig uses 2048-sample periods (128 ms) and a 16 chunk queue.
func DefaultMicrophoneConfig() MicrophoneConfig {
	return MicrophoneConfig{PeriodFrames: 2048, Buffer: 16}
}

// Microphone captures 16 kHz mono float32 audio from the default device.
type Microphone struct {
	cfg MicrophoneConfig

	mu      sync.Mutex
	mctx    *malgo.AllocatedContext
	device  *malgo.Device
	out     chan []float32
	started bool
	closed  bool

	dropped atomic.Uint64
	closing atomic.Bool
	revoked atomic.Bool
}

// NewMicrophone creates an unopened microphone source.
func NewMicrophone(cfg MicrophoneConfig) *Microphone {
	def := DefaultMicrophoneConfig()
	if cfg.PeriodFrames <= 0 {
		cfg.PeriodFrames = def.PeriodFrames
	}
	if cfg.Buffer <= 0 {
		cfg.Buffer = def.Buffer
	}
	return &Microphone{cfg: cfg}
}

// Start opens the device. Failures, including denied access, wrap
// ErrUnavailable and leave nothing open.
func (m *Microphone) Start(ctx context.Context) (<-chan []float32, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.started {
		return nil, ErrStarted
	}

	mctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to initialize context: %v", ErrUnavailable, err)
	}

	out := make(chan []float32, m.cfg.Buffer)

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Capture)
	deviceConfig.PeriodSizeInFrames = uint32(m.cfg.PeriodFrames)
	deviceConfig.Capture.Format = malgo.FormatF32
	deviceConfig.Capture.Channels = 1
	deviceConfig.SampleRate = SampleRate
	deviceConfig.Alsa.NoMMap = 1

	device, err := malgo.InitDevice(mctx.Context, deviceConfig, malgo.DeviceCallbacks{
		Data: func(_, inputSamples []byte, _ uint32) {
			chunk := audio.F32LEToFloat32(inputSamples)
			select {
			case out <- chunk:
			default:
				m.dropped.Add(1)
			}
		},
		Stop: func() {
			if m.closing.Load() {
				return
			}
			m.revoked.Store(true)
			go m.Close()
		},
	})
	if err != nil {
		mctx.Uninit()
		mctx.Free()
		return nil, fmt.Errorf("%w: failed to initialize capture device: %v", ErrUnavailable, err)
	}

	if err := device.Start(); err != nil {
		device.Uninit()
		mctx.Uninit()
		mctx.Free()
		return nil, fmt.Errorf("%w: failed to start capture device: %v", ErrUnavailable, err)
	}

	m.mctx = mctx
	m.device = device
	m.out = out
	m.started = true

	log.Info().
		Str("component", "capture").
		Int("sample_rate", SampleRate).
		Int("period_frames", m.cfg.PeriodFrames).
		Msg("microphone started")

	go func() {
		<-ctx.Done()
		m.Close()
	}()
	return out, nil
}

// Close stops the device and closes the chunk channel. It is idempotent.
func (m *Microphone) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.started || m.closed {
		return nil
	}
	m.closed = true
	m.closing.Store(true)

	// Uninit waits for an in-flight callback, so out has no writer after it.
	if m.device != nil {
		m.device.Stop()
		m.device.Uninit()
		m.device = nil
	}
	if m.mctx != nil {
		m.mctx.Uninit()
		m.mctx.Free()
		m.mctx = nil
	}
	close(m.out)

	logger := log.Info()
	if m.revoked.Load() {
		logger = log.Warn().Err(ErrRevoked)
	}
	logger.
		Str("component", "capture").
		Uint64("dropped", m.dropped.Load()).
		Msg("microphone closed")
	return nil
}

// Err returns ErrRevoked if the device stopped on its own.
func (m *Microphone) Err() error {
	if m.revoked.Load() {
		return ErrRevoked
	}
	return nil
}

// Dropped returns the number of chunks dropped because the consumer lagged.
func (m *Microphone) Dropped() uint64 { return m.dropped.Load() }

var (
	_ Source      = (*Microphone)(nil)
	_ DropCounter = (*Microphone)(nil)
	_ Failer      = (*Microphone)(nil)
)
