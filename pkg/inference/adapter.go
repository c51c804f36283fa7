package inference

import (
	"context"
	"fmt"
	"math"

	"github.com/realtime-ai/wakeword/pkg/dsp"
)

// Adapter packages features into the model's input tensors and turns the
// first output into a probability distribution.
type Adapter struct {
	model  Model
	inputs []string
	output string
}

// NewAdapter inspects the declared inputs and outputs of model.
func NewAdapter(model Model) (*Adapter, error) {
	inputs := model.InputNames()
	outputs := model.OutputNames()
	if len(inputs) == 0 || len(outputs) == 0 {
		return nil, ErrNoInputs
	}
	return &Adapter{
		model:  model,
		inputs: append([]string(nil), inputs...),
		output: outputs[0],
	}, nil
}

// InputNames returns the model's declared inputs.
func (a *Adapter) InputNames() []string {
	return append([]string(nil), a.inputs...)
}

// Model returns the wrapped model.
func (a *Adapter) Model() Model { return a.model }

// Infer runs one inference cycle over already standardized features. The
// cepstral matrix is fed as (1, coefficients, frames) under the first
// declared input; the mel matrix as (1, bands, frames) under the second,
// only when the model declares one.
func (a *Adapter) Infer(ctx context.Context, feats *dsp.Features) ([]float64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	frames := int64(feats.Frames)
	feeds := map[string]Tensor{
		a.inputs[0]: NewTensor(feats.Cepstral, 1, int64(feats.Coefficients), frames),
	}
	if len(a.inputs) > 1 {
		feeds[a.inputs[1]] = NewTensor(feats.MelEnergy, 1, int64(feats.MelBands), frames)
	}

	outputs, err := a.model.Run(ctx, feeds)
	if err != nil {
		return nil, err
	}
	out, ok := outputs[a.output]
	if !ok {
		return nil, fmt.Errorf("%w: missing output %q", ErrEmptyOutput, a.output)
	}

	logits := firstRow(out)
	if len(logits) == 0 {
		return nil, ErrEmptyOutput
	}
	return Softmax(logits), nil
}

// firstRow returns the logits of the first batch entry.
func firstRow(t Tensor) []float32 {
	if len(t.Shape) >= 2 {
		if n := t.Shape[len(t.Shape)-1]; n > 0 && int(n) <= len(t.Data) {
			return t.Data[:n]
		}
	}
	return t.Data
}

// Softmax returns exp(x - max) normalized to sum to one.
func Softmax(logits []float32) []float64 {
	if len(logits) == 0 {
		return nil
	}
	peak := float64(logits[0])
	for _, v := range logits[1:] {
		if float64(v) > peak {
			peak = float64(v)
		}
	}

	probs := make([]float64, len(logits))
	var sum float64
	for i, v := range logits {
		probs[i] = math.Exp(float64(v) - peak)
		sum += probs[i]
	}
	for i := range probs {
		probs[i] /= sum
	}
	return probs
}

// Logits returns log-probabilities that Softmax maps back to probs.
func Logits(probs []float64) []float32 {
	out := make([]float32, len(probs))
	for i, p := range probs {
		out[i] = float32(math.Log(p + 1e-12))
	}
	return out
}
