package wakeword

import (
	"errors"
	"fmt"

	"github.com/realtime-ai/wakeword/pkg/dsp"
	"github.com/realtime-ai/wakeword/pkg/trigger"
)

var (
	// ErrModelLoad is fatal: the model could not be loaded and the
	// detector was not created.
	ErrModelLoad = errors.New("wakeword: model load failed")
	// ErrInference marks an abandoned cycle. The trigger state is
	// unchanged and the next chunk runs normally.
	ErrInference = errors.New("wakeword: inference failed")
	// ErrCaptureUnavailable is returned by Start when the source cannot
	// be opened. The detector stays stopped.
	ErrCaptureUnavailable = errors.New("wakeword: capture unavailable")
	// ErrAlreadyListening is returned by Start on a listening detector.
	ErrAlreadyListening = errors.New("wakeword: already listening")
	// ErrInvalidConfig is returned by NewDetector for a bad Config.
	ErrInvalidConfig = errors.New("wakeword: invalid config")
	// ErrClosed is returned by Start after Close.
	ErrClosed = errors.New("wakeword: detector closed")
)

// Config configures a Detector.
type Config struct {
	// ModelPath is handed to the inference engine.
	ModelPath string
	Features  dsp.Config
	Trigger   trigger.Config
}

// DefaultConfig returns the center-class preset for modelPath.
func DefaultConfig(modelPath string) Config {
	return Config{
		ModelPath: modelPath,
		Features:  dsp.DefaultConfig(),
		Trigger:   trigger.DefaultConfig(),
	}
}

// Validate checks every part of the configuration.
func (c Config) Validate() error {
	if c.ModelPath == "" {
		return fmt.Errorf("%w: model path is required", ErrInvalidConfig)
	}
	if err := c.Features.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if err := c.Trigger.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return nil
}
