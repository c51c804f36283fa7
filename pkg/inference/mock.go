package inference

import (
	"context"
	"sync"
)

// MockModel is a Model for tests. RunFunc decides the output; when nil the
// model returns uniform logits over two classes.
type MockModel struct {
	Inputs  []string
	Outputs []string

	// RunFunc is called when Run is invoked.
	RunFunc func(inputs map[string]Tensor) (map[string]Tensor, error)

	// RunCalls records the shapes fed on each call, keyed by input name.
	RunCalls []map[string][]int64

	// CloseCalled tracks if Close was called.
	CloseCalled bool

	mu sync.Mutex
}

// NewMockModel creates a MockModel declaring the given inputs and one
// output named "logits".
func NewMockModel(inputs ...string) *MockModel {
	if len(inputs) == 0 {
		inputs = []string{"mfcc"}
	}
	return &MockModel{
		Inputs:  inputs,
		Outputs: []string{"logits"},
	}
}

// NewMockModelWithProbs creates a single-input MockModel whose softmax
// output always equals probs.
func NewMockModelWithProbs(probs ...float64) *MockModel {
	return NewMockModelWithSequence([][]float64{probs})
}

// NewMockModelWithSequence creates a MockModel returning the given
// distributions in order, cycling back to the first after the last.
func NewMockModelWithSequence(seq [][]float64) *MockModel {
	m := NewMockModel()
	idx := 0
	m.RunFunc = func(map[string]Tensor) (map[string]Tensor, error) {
		if len(seq) == 0 {
			return map[string]Tensor{"logits": NewTensor([]float32{0, 0}, 1, 2)}, nil
		}
		probs := seq[idx]
		idx = (idx + 1) % len(seq)
		return map[string]Tensor{"logits": NewTensor(Logits(probs), 1, int64(len(probs)))}, nil
	}
	return m
}

// InputNames implements Model.
func (m *MockModel) InputNames() []string { return m.Inputs }

// OutputNames implements Model.
func (m *MockModel) OutputNames() []string { return m.Outputs }

// Run implements Model.
func (m *MockModel) Run(ctx context.Context, inputs map[string]Tensor) (map[string]Tensor, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	shapes := make(map[string][]int64, len(inputs))
	for name, t := range inputs {
		shapes[name] = append([]int64(nil), t.Shape...)
	}
	m.RunCalls = append(m.RunCalls, shapes)
	fn := m.RunFunc
	m.mu.Unlock()

	if fn != nil {
		return fn(inputs)
	}
	return map[string]Tensor{m.Outputs[0]: NewTensor([]float32{0, 0}, 1, 2)}, nil
}

// Close implements Model.
func (m *MockModel) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.CloseCalled = true
	return nil
}

// GetRunCallCount returns the number of times Run was called.
func (m *MockModel) GetRunCallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.RunCalls)
}

// Ensure MockModel implements Model at compile time.
var _ Model = (*MockModel)(nil)
