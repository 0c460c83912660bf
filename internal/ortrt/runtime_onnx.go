//go:build onnxruntime

package ortrt

import (
	"context"
	"fmt"
	"os"
	"sync"

	ort "github.com/yalue/onnxruntime_go"
)

// onnxRuntime binds the facade to a real ONNX Runtime shared library. Mirrors
// the teacher's llama_cgo.go + adapter_llama.go split: this file only
// compiles with the 'onnxruntime' build tag, so default builds stay
// CGO-free.

var initOnce sync.Once
var initErr error

func ensureEnv() error {
	initOnce.Do(func() {
		if lib := os.Getenv("ORT_SHARED_LIBRARY_PATH"); lib != "" {
			ort.SetSharedLibraryPath(lib)
		}
		initErr = ort.InitializeEnvironment()
	})
	return initErr
}

type onnxRuntime struct{}

// NewOnnxRuntime constructs the ONNX Runtime binding.
func NewOnnxRuntime() Runtime { return onnxRuntime{} }

func (onnxRuntime) NewSession(modelPath string, providers []Provider) (Session, error) {
	if err := ensureEnv(); err != nil {
		return nil, RuntimeFailureError{Msg: err.Error()}
	}
	if _, err := os.Stat(modelPath); err != nil {
		return nil, NotFoundError{Path: modelPath}
	}

	opts, err := ort.NewSessionOptions()
	if err != nil {
		return nil, RuntimeFailureError{Msg: err.Error()}
	}
	defer opts.Destroy()
	for _, p := range providers {
		if err := appendProvider(opts, p); err != nil {
			return nil, err
		}
	}

	inputInfo, outputInfo, err := ort.GetInputOutputInfo(modelPath)
	if err != nil {
		return nil, RuntimeFailureError{Msg: err.Error()}
	}
	inNames := make([]string, len(inputInfo))
	outNames := make([]string, len(outputInfo))
	for i, in := range inputInfo {
		inNames[i] = in.Name
	}
	for i, out := range outputInfo {
		outNames[i] = out.Name
	}

	sess, err := ort.NewDynamicAdvancedSession(modelPath, inNames, outNames, opts)
	if err != nil {
		return nil, RuntimeFailureError{Msg: err.Error()}
	}

	return &onnxSession{
		sess:    sess,
		inputs:  toSpecs(inputInfo),
		outputs: toSpecs(outputInfo),
	}, nil
}

// appendProvider tries to enable one execution provider on opts. Providers
// this build of onnxruntime_go does not expose a setter for are reported as
// UnsupportedProviderError rather than silently ignored.
func appendProvider(opts *ort.SessionOptions, p Provider) error {
	switch p {
	case ProviderCPU:
		return nil // always available, nothing to append
	case ProviderCUDA:
		cuda, err := ort.NewCUDAProviderOptions()
		if err != nil {
			return UnsupportedProviderError{Provider: p}
		}
		defer cuda.Destroy()
		return opts.AppendExecutionProviderCUDA(cuda)
	case ProviderTensorRT:
		trt, err := ort.NewTensorRTProviderOptions()
		if err != nil {
			return UnsupportedProviderError{Provider: p}
		}
		defer trt.Destroy()
		return opts.AppendExecutionProviderTensorRT(trt)
	case ProviderCoreML:
		return opts.AppendExecutionProviderCoreML(0)
	case ProviderDirectML:
		return opts.AppendExecutionProviderDirectML(0)
	default:
		return UnsupportedProviderError{Provider: p}
	}
}

func toSpecs(infos []ort.InputOutputInfo) []TensorSpec {
	out := make([]TensorSpec, len(infos))
	for i, in := range infos {
		dims := make([]int64, len(in.Dimensions))
		for j, d := range in.Dimensions {
			dims[j] = int64(d)
		}
		out[i] = TensorSpec{Name: in.Name, Type: toElemType(in.DataType), Dims: dims}
	}
	return out
}

func toElemType(dt ort.TensorElementDataType) ElementType {
	switch dt {
	case ort.TensorElementDataTypeFloat:
		return ElemFP32
	case ort.TensorElementDataTypeFloat16:
		return ElemFP16
	case ort.TensorElementDataTypeBFloat16:
		return ElemBF16
	case ort.TensorElementDataTypeInt64:
		return ElemInt64
	default:
		return ElemFP32
	}
}

type onnxSession struct {
	sess    *ort.DynamicAdvancedSession
	inputs  []TensorSpec
	outputs []TensorSpec
}

func (s *onnxSession) Inputs() []TensorSpec  { return s.inputs }
func (s *onnxSession) Outputs() []TensorSpec { return s.outputs }

func (s *onnxSession) AllocateOutput(spec TensorSpec) (Tensor, error) {
	shape := ort.NewShape(spec.Dims...)
	switch spec.Type {
	case ElemFP32:
		t, err := ort.NewEmptyTensor[float32](shape)
		if err != nil {
			return nil, RuntimeFailureError{Msg: err.Error()}
		}
		return &onnxTensor{name: spec.Name, typ: spec.Type, inner: t}, nil
	case ElemInt64:
		t, err := ort.NewEmptyTensor[int64](shape)
		if err != nil {
			return nil, RuntimeFailureError{Msg: err.Error()}
		}
		return &onnxTensor{name: spec.Name, typ: spec.Type, inner: t}, nil
	default:
		// fp16/bf16 outputs are allocated as raw uint16 buffers; widened at
		// the sampling boundary via Widen.
		t, err := ort.NewEmptyTensor[uint16](shape)
		if err != nil {
			return nil, RuntimeFailureError{Msg: err.Error()}
		}
		return &onnxTensor{name: spec.Name, typ: spec.Type, inner: t}, nil
	}
}

func (s *onnxSession) NewInput(spec TensorSpec, data any) (Tensor, error) {
	shape := ort.NewShape(spec.Dims...)
	switch v := data.(type) {
	case []int64:
		t, err := ort.NewTensor(shape, v)
		if err != nil {
			return nil, RuntimeFailureError{Msg: err.Error()}
		}
		return &onnxTensor{name: spec.Name, typ: ElemInt64, inner: t}, nil
	case []float32:
		t, err := ort.NewTensor(shape, v)
		if err != nil {
			return nil, RuntimeFailureError{Msg: err.Error()}
		}
		return &onnxTensor{name: spec.Name, typ: ElemFP32, inner: t}, nil
	default:
		return nil, fmt.Errorf("ortrt: unsupported input data type %T", data)
	}
}

func (s *onnxSession) Run(ctx context.Context, inputs map[string]Tensor, outputs map[string]Tensor) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	inVals := make([]ort.Value, len(s.inputs))
	for i, spec := range s.inputs {
		t, ok := inputs[spec.Name]
		if !ok {
			return ShapeMismatchError{Tensor: spec.Name}
		}
		inVals[i] = t.(*onnxTensor).inner
	}
	outVals := make([]ort.Value, len(s.outputs))
	for i, spec := range s.outputs {
		t, ok := outputs[spec.Name]
		if !ok {
			return ShapeMismatchError{Tensor: spec.Name}
		}
		outVals[i] = t.(*onnxTensor).inner
	}
	if err := s.sess.Run(inVals, outVals); err != nil {
		return RuntimeFailureError{Msg: err.Error()}
	}
	return ctx.Err()
}

func (s *onnxSession) Close() error {
	return s.sess.Destroy()
}

// onnxTensor adapts an onnxruntime_go typed Value to the Tensor interface.
type onnxTensor struct {
	name  string
	typ   ElementType
	inner ort.Value
}

func (t *onnxTensor) Name() string      { return t.name }
func (t *onnxTensor) Type() ElementType { return t.typ }
func (t *onnxTensor) Shape() []int64 {
	info := t.inner.GetShape()
	out := make([]int64, len(info))
	copy(out, info)
	return out
}

func (t *onnxTensor) Float32() []float32 {
	if v, ok := t.inner.(*ort.Tensor[float32]); ok {
		return v.GetData()
	}
	return nil
}

func (t *onnxTensor) Int64() []int64 {
	if v, ok := t.inner.(*ort.Tensor[int64]); ok {
		return v.GetData()
	}
	return nil
}

func (t *onnxTensor) Bytes() []byte {
	if v, ok := t.inner.(*ort.Tensor[uint16]); ok {
		data := v.GetData()
		raw := make([]byte, len(data)*2)
		for i, u := range data {
			raw[i*2] = byte(u)
			raw[i*2+1] = byte(u >> 8)
		}
		return raw
	}
	return nil
}

func (t *onnxTensor) Close() error {
	return t.inner.Destroy()
}
