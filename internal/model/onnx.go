package model

import (
	"context"
	"fmt"
	"sync"

	ort "github.com/yalue/onnxruntime_go"
)

type ONNXConfig struct {
	ModelPath string
	// LibraryPath points at the onnxruntime shared library. Empty uses the
	// platform default lookup.
	LibraryPath string
}

// ONNXEngine owns one ONNX Runtime session with preallocated input and
// output tensors. Run calls are serialized.
type ONNXEngine struct {
	mu           sync.Mutex
	session      *ort.AdvancedSession
	inputName    string
	outputName   string
	inputShape   []int64
	outputShape  []int64
	inputTensor  *ort.Tensor[float32]
	outputTensor *ort.Tensor[float32]
	ownsEnv      bool
}

func NewONNXEngine(cfg ONNXConfig) (*ONNXEngine, error) {
	if cfg.ModelPath == "" {
		return nil, fmt.Errorf("%w: empty model path", ErrModelLoad)
	}
	if cfg.LibraryPath != "" {
		ort.SetSharedLibraryPath(cfg.LibraryPath)
	}

	e := &ONNXEngine{}
	if !ort.IsInitialized() {
		if err := ort.InitializeEnvironment(); err != nil {
			return nil, fmt.Errorf("%w: failed to initialize ONNX environment: %v", ErrModelLoad, err)
		}
		e.ownsEnv = true
	}

	if err := e.open(cfg.ModelPath); err != nil {
		e.Close()
		return nil, fmt.Errorf("%w: %v", ErrModelLoad, err)
	}
	return e, nil
}

func (e *ONNXEngine) open(modelPath string) error {
	inputs, outputs, err := ort.GetInputOutputInfo(modelPath)
	if err != nil {
		return fmt.Errorf("failed to read model info: %w", err)
	}
	if len(inputs) != 1 || len(outputs) != 1 {
		return fmt.Errorf("model must have one input and one output, has %d and %d", len(inputs), len(outputs))
	}

	e.inputName = inputs[0].Name
	e.outputName = outputs[0].Name
	e.inputShape = pinDynamic(inputs[0].Dimensions)
	e.outputShape = pinDynamic(outputs[0].Dimensions)

	if !SameShape(e.inputShape, InputShape()) {
		return fmt.Errorf("model input %q has shape %s, want %s",
			e.inputName, FormatShape(e.inputShape), FormatShape(InputShape()))
	}

	inputTensor, err := ort.NewEmptyTensor[float32](ort.NewShape(e.inputShape...))
	if err != nil {
		return fmt.Errorf("failed to create input tensor: %w", err)
	}
	e.inputTensor = inputTensor

	outputTensor, err := ort.NewEmptyTensor[float32](ort.NewShape(e.outputShape...))
	if err != nil {
		return fmt.Errorf("failed to create output tensor: %w", err)
	}
	e.outputTensor = outputTensor

	session, err := ort.NewAdvancedSession(modelPath,
		[]string{e.inputName}, []string{e.outputName},
		[]ort.ArbitraryTensor{inputTensor}, []ort.ArbitraryTensor{outputTensor},
		nil)
	if err != nil {
		return fmt.Errorf("failed to create ONNX session: %w", err)
	}
	e.session = session
	return nil
}

// pinDynamic replaces dynamic (non-positive) dimensions with 1.
func pinDynamic(dims ort.Shape) []int64 {
	shape := make([]int64, len(dims))
	for i, d := range dims {
		if d <= 0 {
			d = 1
		}
		shape[i] = d
	}
	return shape
}

func (e *ONNXEngine) InputName() string  { return e.inputName }
func (e *ONNXEngine) OutputName() string { return e.outputName }

func (e *ONNXEngine) Run(ctx context.Context, inputs map[string]*Tensor) (map[string]*Tensor, error) {
	in, ok := inputs[e.inputName]
	if !ok || in == nil {
		return nil, fmt.Errorf("%w: missing input %q", ErrInference, e.inputName)
	}
	if !SameShape(in.Shape, e.inputShape) {
		return nil, fmt.Errorf("%w: input shape %s, want %s", ErrInference, FormatShape(in.Shape), FormatShape(e.inputShape))
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInference, err)
	}
	if e.session == nil {
		return nil, fmt.Errorf("%w: engine is closed", ErrInference)
	}

	copy(e.inputTensor.GetData(), in.Data)
	if err := e.session.Run(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInference, err)
	}

	src := e.outputTensor.GetData()
	data := make([]float32, len(src))
	copy(data, src)
	out, err := NewTensor(e.outputShape, data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInference, err)
	}
	return map[string]*Tensor{e.outputName: out}, nil
}

func (e *ONNXEngine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	var firstErr error
	keep := func(err error) {
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if e.session != nil {
		keep(e.session.Destroy())
		e.session = nil
	}
	if e.inputTensor != nil {
		keep(e.inputTensor.Destroy())
		e.inputTensor = nil
	}
	if e.outputTensor != nil {
		keep(e.outputTensor.Destroy())
		e.outputTensor = nil
	}
	if e.ownsEnv {
		keep(ort.DestroyEnvironment())
		e.ownsEnv = false
	}
	return firstErr
}
