//go:build !onnx

package inference

import (
	"errors"
	"fmt"
	"os"
)

// ShutdownRuntime is a no-op without the onnx tag.
func ShutdownRuntime() error { return nil }

// ONNXEngine is unavailable without the onnx build tag.
type ONNXEngine struct {
	cfg ONNXConfig
}

// NewONNXEngine returns an engine whose Load always fails.
func NewONNXEngine(cfg ONNXConfig) *ONNXEngine {
	return &ONNXEngine{cfg: cfg}
}

// Load distinguishes a missing model from a missing runtime.
func (e *ONNXEngine) Load(path string) (Model, error) {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrModelNotFound, path)
	}
	return nil, fmt.Errorf("%w: built without the onnx tag", ErrRuntimeUnavailable)
}

var _ Engine = (*ONNXEngine)(nil)
