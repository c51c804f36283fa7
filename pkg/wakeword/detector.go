// Package wakeword runs the detection cycle over a stream of audio chunks.
//
// A Detector owns one rolling buffer, one feature extractor, one model and
// one trigger machine. Each chunk is absorbed into the buffer; unless the
// trigger is cooling down, features are extracted from the last second of
// audio, the model scores them and the trigger decides. Cycles run one at a
// time, so the buffer is never read while it is being written.
//
// Usage:
//
//	det, err := wakeword.NewDetector(wakeword.DefaultConfig("model.onnx"), engine)
//	det.SetBus(bus)
//	err = det.Start(ctx, capture.NewMicrophone(capture.DefaultMicrophoneConfig()))
//	defer det.Close()
package wakeword

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	oteltrace "go.opentelemetry.io/otel/trace"

	"github.com/realtime-ai/wakeword/pkg/audio"
	"github.com/realtime-ai/wakeword/pkg/capture"
	"github.com/realtime-ai/wakeword/pkg/dsp"
	"github.com/realtime-ai/wakeword/pkg/events"
	"github.com/realtime-ai/wakeword/pkg/inference"
	"github.com/realtime-ai/wakeword/pkg/trace"
	"github.com/realtime-ai/wakeword/pkg/trigger"
)

// Result describes one processed chunk.
type Result struct {
	trigger.Result
	// Cycle counts chunks since the detector was created, starting at 1.
	Cycle uint64
	// Probs is the class distribution, nil for skipped cycles.
	Probs []float64
	// Latency covers feature extraction and inference.
	Latency time.Duration
}

// Detector is the detection controller.
type Detector struct {
	id     string
	cfg    Config
	logger zerolog.Logger

	// cycle state, guarded by cycleMu
	cycleMu   sync.Mutex
	model     inference.Model
	adapter   *inference.Adapter
	extractor *dsp.Extractor
	machine   *trigger.Machine
	buffer    *audio.RollingBuffer
	window    []float32
	cycle     uint64

	// lifecycle state, guarded by mu
	mu        sync.Mutex
	bus       events.Bus
	status    events.Status
	listening bool
	closed    bool
	src       capture.Source
	cancel    context.CancelFunc
	wg        sync.WaitGroup
}

// NewDetector loads the model through engine and builds the pipeline. Any
// load failure is wrapped in ErrModelLoad.
func NewDetector(cfg Config, engine inference.Engine) (*Detector, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	_, span := trace.InstrumentModelLoad(context.Background(), cfg.ModelPath)
	model, err := engine.Load(cfg.ModelPath)
	if err != nil {
		err = fmt.Errorf("%w: %w", ErrModelLoad, err)
		trace.RecordError(span, err)
		span.End()
		return nil, err
	}
	span.End()

	d, err := NewDetectorWithModel(cfg, model)
	if err != nil {
		model.Close()
		return nil, err
	}
	return d, nil
}

// NewDetectorWithModel builds a detector around an already loaded model.
// The detector takes ownership of model.
func NewDetectorWithModel(cfg Config, model inference.Model) (*Detector, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	adapter, err := inference.NewAdapter(model)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrModelLoad, err)
	}
	extractor, err := dsp.NewExtractor(cfg.Features)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	machine, err := trigger.NewMachine(cfg.Trigger)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	id := uuid.New().String()
	d := &Detector{
		id:        id,
		cfg:       cfg,
		logger:    log.With().Str("component", "wakeword").Str("detector_id", id).Logger(),
		model:     model,
		adapter:   adapter,
		extractor: extractor,
		machine:   machine,
		buffer:    audio.NewRollingBuffer(cfg.Features.WindowLength),
		window:    make([]float32, cfg.Features.WindowLength),
		status:    events.StatusPaused,
	}

	d.logger.Info().
		Str("model", cfg.ModelPath).
		Strs("inputs", adapter.InputNames()).
		Str("policy", cfg.Trigger.Policy.String()).
		Float64("threshold", cfg.Trigger.Threshold).
		Msg("detector ready")
	return d, nil
}

// ID returns the detector id carried in every event.
func (d *Detector) ID() string { return d.id }

// Config returns the detector configuration.
func (d *Detector) Config() Config { return d.cfg }

// InputNames returns the model's declared inputs.
func (d *Detector) InputNames() []string { return d.adapter.InputNames() }

// SetBus sets where events are published. A nil bus disables publishing.
func (d *Detector) SetBus(bus events.Bus) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.bus = bus
}

// Status returns the lifecycle status.
func (d *Detector) Status() events.Status {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.status
}

// Listening reports whether a source is attached.
func (d *Detector) Listening() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.listening
}

// Start opens src and processes its chunks on a new goroutine until Stop,
// Close, ctx cancellation or the end of the source.
func (d *Detector) Start(ctx context.Context, src capture.Source) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return ErrClosed
	}
	if d.listening {
		return ErrAlreadyListening
	}

	ctx, cancel := context.WithCancel(ctx)
	chunks, err := src.Start(ctx)
	if err != nil {
		cancel()
		src.Close()
		err = fmt.Errorf("%w: %w", ErrCaptureUnavailable, err)
		d.failLocked(err)
		d.logger.Error().Err(err).Msg("failed to start capture")
		return err
	}

	d.src = src
	d.cancel = cancel
	d.listening = true
	d.setStatusLocked(events.StatusListening, "")

	d.wg.Add(1)
	go d.run(ctx, chunks, src)
	return nil
}

// Stop detaches and closes the source. No event from an in-flight cycle
// is published after Stop returns. Stop on a stopped detector is a no-op.
func (d *Detector) Stop() error {
	d.mu.Lock()
	if !d.listening {
		d.mu.Unlock()
		return nil
	}
	d.listening = false
	cancel, src := d.cancel, d.src
	d.cancel, d.src = nil, nil
	d.setStatusLocked(events.StatusPaused, "stopped")
	d.mu.Unlock()

	cancel()
	d.wg.Wait()
	return src.Close()
}

// Close stops the detector and releases the model. It is idempotent.
func (d *Detector) Close() error {
	if err := d.Stop(); err != nil {
		d.logger.Warn().Err(err).Msg("failed to close capture")
	}

	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	d.mu.Unlock()

	d.cycleMu.Lock()
	defer d.cycleMu.Unlock()
	return d.model.Close()
}

// Prime absorbs chunk into the buffer without running a cycle.
func (d *Detector) Prime(chunk []float32) {
	d.cycleMu.Lock()
	defer d.cycleMu.Unlock()
	d.buffer.Absorb(chunk)
}

// Reset zeroes the buffer and returns the trigger to IDLE.
func (d *Detector) Reset() {
	d.cycleMu.Lock()
	defer d.cycleMu.Unlock()
	d.buffer.Reset()
	d.machine.Reset()
}

// Process runs one cycle over chunk. It is safe to call directly, without
// Start, to drive the detector synchronously; events are only published
// while listening.
//
// An inference failure returns an error wrapping ErrInference and leaves
// the trigger untouched. If ctx is cancelled while the model runs, the
// result is discarded and ctx.Err() is returned.
func (d *Detector) Process(ctx context.Context, chunk []float32) (Result, error) {
	d.cycleMu.Lock()
	defer d.cycleMu.Unlock()

	d.cycle++
	cycle := d.cycle

	ctx, span := trace.InstrumentCycle(ctx, d.id, cycle, len(chunk))
	defer span.End()

	d.buffer.Absorb(chunk)
	if d.machine.Cooling() {
		return Result{Result: d.machine.Tick(), Cycle: cycle}, nil
	}

	start := time.Now()
	d.buffer.CopyTo(d.window)
	feats, err := d.extractor.Compute(d.window)
	if err != nil {
		return d.abandon(span, cycle, err)
	}
	probs, err := d.adapter.Infer(ctx, feats.Standardized())
	if ctxErr := ctx.Err(); ctxErr != nil {
		return Result{Result: trigger.Result{State: d.machine.State()}, Cycle: cycle}, ctxErr
	}
	if err != nil {
		return d.abandon(span, cycle, err)
	}
	latency := time.Since(start)

	tr, err := d.machine.Update(probs)
	if err != nil {
		return d.abandon(span, cycle, err)
	}
	span.SetAttributes(trace.TriggerAttrs(tr.State.String(), tr.Score, tr.Smoothed, tr.Armed, tr.Detected)...)

	res := Result{Result: tr, Cycle: cycle, Probs: probs, Latency: latency}
	d.logger.Debug().
		Uint64("cycle", cycle).
		Float64("score", tr.Score).
		Float64("smoothed", tr.Smoothed).
		Str("state", tr.State.String()).
		Dur("latency", latency).
		Msg("cycle")

	if tr.Armed {
		d.emit(events.EventWakeWordArmed, events.Armed{DetectorID: d.id, Smoothed: tr.Smoothed, Cycle: cycle})
	}
	if tr.Detected {
		d.buffer.Reset()
		d.logger.Info().Uint64("cycle", cycle).Float64("confidence", tr.Smoothed).Msg("wake word detected")
		d.emit(events.EventWakeWordDetected, events.Detection{
			DetectorID: d.id,
			Confidence: tr.Smoothed,
			Cycle:      cycle,
			At:         time.Now(),
		})
	}
	return res, nil
}

// abandon reports a failed cycle without touching the trigger.
func (d *Detector) abandon(span oteltrace.Span, cycle uint64, cause error) (Result, error) {
	err := fmt.Errorf("%w: %w", ErrInference, cause)
	trace.RecordError(span, err)
	d.logger.Warn().Err(err).Uint64("cycle", cycle).Msg("inference cycle abandoned")
	d.emit(events.EventInferenceError, events.CycleError{DetectorID: d.id, Cycle: cycle, Err: err})
	return Result{Result: trigger.Result{State: d.machine.State(), Cooldown: d.machine.Cooldown()}, Cycle: cycle}, err
}

func (d *Detector) run(ctx context.Context, chunks <-chan []float32, src capture.Source) {
	defer d.wg.Done()

	var dropped uint64
	for {
		select {
		case <-ctx.Done():
			return
		case chunk, ok := <-chunks:
			if !ok {
				d.sourceEnded(src)
				return
			}
			d.Process(ctx, chunk)

			if dc, ok := src.(capture.DropCounter); ok {
				if n := dc.Dropped(); n > dropped {
					d.logger.Warn().Uint64("dropped", n-dropped).Uint64("total", n).Msg("capture overrun, chunks dropped")
					dropped = n
				}
			}
		}
	}
}

// sourceEnded pauses the detector when its source closes on its own, or
// moves it to ERROR when the source reports a failure.
func (d *Detector) sourceEnded(src capture.Source) {
	d.mu.Lock()
	if !d.listening || d.src != src {
		d.mu.Unlock()
		return
	}
	d.listening = false
	d.cancel()
	d.cancel, d.src = nil, nil
	if f, ok := src.(capture.Failer); ok && f.Err() != nil {
		err := fmt.Errorf("%w: %w", ErrCaptureUnavailable, f.Err())
		d.failLocked(err)
		d.logger.Error().Err(err).Msg("capture failed")
	} else {
		d.setStatusLocked(events.StatusPaused, "capture ended")
	}
	d.mu.Unlock()

	if err := src.Close(); err != nil {
		d.logger.Warn().Err(err).Msg("failed to close capture")
	}
}

// emit publishes a cycle event if the detector is still listening.
func (d *Detector) emit(t events.EventType, payload any) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.listening {
		return
	}
	d.publishLocked(t, payload)
}

func (d *Detector) publishLocked(t events.EventType, payload any) {
	if d.bus == nil {
		return
	}
	if !d.bus.Publish(events.NewEvent(t, payload)) {
		d.logger.Warn().Str("event", t.String()).Msg("event not delivered")
	}
}

func (d *Detector) setStatusLocked(status events.Status, reason string) {
	d.status = status
	d.publishLocked(events.EventStatusChanged, events.StatusChange{
		DetectorID: d.id,
		Status:     status,
		Reason:     reason,
	})
}

// failLocked reports a capture failure: status ERROR, then EventError.
func (d *Detector) failLocked(err error) {
	d.setStatusLocked(events.StatusError, err.Error())
	d.publishLocked(events.EventError, events.CycleError{DetectorID: d.id, Err: err})
}
