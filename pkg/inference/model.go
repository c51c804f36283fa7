// Package inference bridges extracted features to a neural inference engine.
//
// The engine is an external dependency behind two small interfaces: an
// Engine loads a model file into a Model, and a Model runs named float32
// tensors. The ONNX Runtime engine is compiled with the "onnx" build tag;
// tests use MockModel.
//
// Usage:
//
//	model, err := inference.NewONNXEngine(inference.ONNXConfig{}).Load("wakeword.onnx")
//	adapter, err := inference.NewAdapter(model)
//	probs, err := adapter.Infer(ctx, feats.Standardized())
package inference

import (
	"context"
	"errors"
)

var (
	// ErrModelNotFound is returned when the model file does not exist.
	ErrModelNotFound = errors.New("inference: model not found")
	// ErrRuntimeUnavailable is returned when no inference runtime can be used.
	ErrRuntimeUnavailable = errors.New("inference: runtime unavailable")
	// ErrNoInputs is returned for models that declare no input or output.
	ErrNoInputs = errors.New("inference: model declares no inputs")
	// ErrEmptyOutput is returned when the model produced no values.
	ErrEmptyOutput = errors.New("inference: empty model output")
)

// Tensor is a dense float32 buffer with its shape.
type Tensor struct {
	Shape []int64
	Data  []float32
}

// NewTensor wraps data with shape. The data is not copied.
func NewTensor(data []float32, shape ...int64) Tensor {
	return Tensor{Shape: shape, Data: data}
}

// Model is a loaded inference graph.
type Model interface {
	// InputNames returns the declared input names in model order.
	InputNames() []string
	// OutputNames returns the declared output names in model order.
	OutputNames() []string
	// Run executes the graph. Inputs not declared by the model are ignored.
	Run(ctx context.Context, inputs map[string]Tensor) (map[string]Tensor, error)
	// Close releases the model. The model must not be used afterwards.
	Close() error
}

// Engine loads models from a path.
type Engine interface {
	Load(path string) (Model, error)
}

// EngineFunc adapts a function to the Engine interface.
type EngineFunc func(path string) (Model, error)

// Load calls f(path).
func (f EngineFunc) Load(path string) (Model, error) { return f(path) }
