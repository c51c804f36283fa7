//go:build onnx

package inference

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/rs/zerolog/log"
	ort "github.com/yalue/onnxruntime_go"
)

// ortEnv tracks the process-wide onnxruntime environment. onnxruntime_go
// loads one shared library per process, so the first Load picks it.
type ortEnv struct {
	mu      sync.Mutex
	ready   bool
	library string
}

var env ortEnv

func (o *ortEnv) acquire(cfg ONNXConfig) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	lib := cfg.ResolveLibrary()
	if o.ready {
		if lib != "" && lib != o.library {
			log.Warn().Str("loaded", o.library).Str("requested", lib).Msg("onnxruntime already loaded, ignoring library path")
		}
		return nil
	}

	if lib != "" {
		ort.SetSharedLibraryPath(lib)
	}
	if err := ort.InitializeEnvironment(); err != nil {
		return fmt.Errorf("%w: %v", ErrRuntimeUnavailable, err)
	}
	o.ready = true
	o.library = lib
	log.Debug().Str("library", lib).Msg("onnxruntime initialized")
	return nil
}

func (o *ortEnv) release() error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if !o.ready {
		return nil
	}
	o.ready = false
	if err := ort.DestroyEnvironment(); err != nil {
		return fmt.Errorf("inference: release onnxruntime: %w", err)
	}
	return nil
}

// ShutdownRuntime releases the onnxruntime environment once every model
// is closed. Later Loads initialize it again.
func ShutdownRuntime() error {
	return env.release()
}

// ONNXEngine loads models with ONNX Runtime.
type ONNXEngine struct {
	cfg ONNXConfig
}

// NewONNXEngine returns an engine that initializes the runtime on first Load.
func NewONNXEngine(cfg ONNXConfig) *ONNXEngine {
	if cfg.IntraOpThreads <= 0 {
		cfg.IntraOpThreads = 1
	}
	if cfg.InterOpThreads <= 0 {
		cfg.InterOpThreads = 1
	}
	return &ONNXEngine{cfg: cfg}
}

// Load opens path and creates a session for all declared inputs and outputs.
func (e *ONNXEngine) Load(path string) (Model, error) {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrModelNotFound, path)
		}
		return nil, err
	}
	if err := env.acquire(e.cfg); err != nil {
		return nil, err
	}

	inInfo, outInfo, err := ort.GetInputOutputInfo(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read model info: %w", err)
	}
	if len(inInfo) == 0 || len(outInfo) == 0 {
		return nil, ErrNoInputs
	}
	m := &onnxModel{}
	for _, info := range inInfo {
		m.inputNames = append(m.inputNames, info.Name)
	}
	for _, info := range outInfo {
		m.outputNames = append(m.outputNames, info.Name)
	}

	options, err := ort.NewSessionOptions()
	if err != nil {
		return nil, fmt.Errorf("failed to create session options: %w", err)
	}
	defer options.Destroy()

	if err := options.SetGraphOptimizationLevel(ort.GraphOptimizationLevelEnableAll); err != nil {
		return nil, fmt.Errorf("failed to set graph optimization level: %w", err)
	}
	if err := options.SetIntraOpNumThreads(e.cfg.IntraOpThreads); err != nil {
		return nil, fmt.Errorf("failed to set intra-op threads: %w", err)
	}
	if err := options.SetInterOpNumThreads(e.cfg.InterOpThreads); err != nil {
		return nil, fmt.Errorf("failed to set inter-op threads: %w", err)
	}

	session, err := ort.NewDynamicAdvancedSession(path, m.inputNames, m.outputNames, options)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	m.session = session
	return m, nil
}

type onnxModel struct {
	mu          sync.Mutex
	session     *ort.DynamicAdvancedSession
	inputNames  []string
	outputNames []string
}

func (m *onnxModel) InputNames() []string  { return m.inputNames }
func (m *onnxModel) OutputNames() []string { return m.outputNames }

func (m *onnxModel) Run(ctx context.Context, inputs map[string]Tensor) (map[string]Tensor, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.session == nil {
		return nil, fmt.Errorf("model closed")
	}

	// Only the declared inputs that were supplied are fed.
	var (
		names  []string
		values []ort.Value
	)
	defer func() {
		for _, v := range values {
			v.Destroy()
		}
	}()
	for _, name := range m.inputNames {
		in, ok := inputs[name]
		if !ok {
			continue
		}
		tensor, err := ort.NewTensor(ort.NewShape(in.Shape...), in.Data)
		if err != nil {
			return nil, fmt.Errorf("failed to create tensor %q: %w", name, err)
		}
		names = append(names, name)
		values = append(values, tensor)
	}
	if len(names) != len(m.inputNames) {
		return nil, fmt.Errorf("model needs inputs %v, got %d", m.inputNames, len(names))
	}

	outputs := make([]ort.Value, len(m.outputNames))
	if err := m.session.Run(values, outputs); err != nil {
		return nil, fmt.Errorf("failed to run inference: %w", err)
	}

	result := make(map[string]Tensor, len(outputs))
	for i, out := range outputs {
		if out == nil {
			continue
		}
		if t, ok := out.(*ort.Tensor[float32]); ok {
			result[m.outputNames[i]] = Tensor{
				Shape: append([]int64(nil), t.GetShape()...),
				Data:  append([]float32(nil), t.GetData()...),
			}
		}
		out.Destroy()
	}
	return result, nil
}

func (m *onnxModel) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.session == nil {
		return nil
	}
	if err := m.session.Destroy(); err != nil {
		return fmt.Errorf("failed to destroy session: %w", err)
	}
	m.session = nil
	return nil
}

var (
	_ Engine = (*ONNXEngine)(nil)
	_ Model  = (*onnxModel)(nil)
)
