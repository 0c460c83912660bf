// Package ortrt is the tensor-runtime facade: the thin abstraction over the
// external tensor-graph runtime described in spec.md §4.1. It knows nothing
// about language models, KV caches, or sampling — only sessions, named
// input/output tensor slots, and synchronous execution.
//
// The facade never retains a Tensor past the call that produced it; callers
// own every tensor they allocate or receive from Run.
package ortrt

import (
	"context"
	"fmt"
)

// ElementType is the tagged variant over the dtypes the runtime surfaces.
// Sampling always widens to ElemFP32 at the boundary; KV storage stays in
// whatever dtype the model declares.
type ElementType int

const (
	ElemFP32 ElementType = iota
	ElemFP16
	ElemBF16
	ElemInt64
)

func (t ElementType) String() string {
	switch t {
	case ElemFP32:
		return "fp32"
	case ElemFP16:
		return "fp16"
	case ElemBF16:
		return "bf16"
	case ElemInt64:
		return "int64"
	default:
		return "unknown"
	}
}

// Provider is an execution-provider preference, in the same order ONNX
// Runtime itself enumerates them.
type Provider string

const (
	ProviderCPU      Provider = "cpu"
	ProviderCUDA     Provider = "cuda"
	ProviderROCm     Provider = "rocm"
	ProviderDirectML Provider = "directml"
	ProviderOpenVINO Provider = "openvino"
	ProviderCoreML   Provider = "coreml"
	ProviderMIGraphX Provider = "migraphx"
	ProviderTensorRT Provider = "tensorrt"
	ProviderNNAPI    Provider = "nnapi"
	ProviderOneDNN   Provider = "onednn"
)

// TensorSpec describes one declared input or output slot. Dims entries of
// -1 are symbolic (batch, sequence length, etc.) and only become concrete at
// allocation time.
type TensorSpec struct {
	Name string
	Type ElementType
	Dims []int64
}

// Tensor is a runtime-owned buffer with a name, dtype, and shape. Callers
// read it through the view matching its Type(); reading through the wrong
// view is undefined.
type Tensor interface {
	Name() string
	Type() ElementType
	Shape() []int64
	Float32() []float32
	Int64() []int64
	// Bytes returns the raw little-endian element payload, 2 bytes per
	// element for fp16/bf16. Used by Widen.
	Bytes() []byte
	Close() error
}

// Session is one loaded model graph: its declared inputs/outputs, and the
// ability to allocate new output tensors and run bound input/output sets.
type Session interface {
	Inputs() []TensorSpec
	Outputs() []TensorSpec
	AllocateOutput(spec TensorSpec) (Tensor, error)
	// NewInput wraps caller-provided data as a bound input tensor of the
	// given dtype and shape, without copying the runtime's own memory pool.
	NewInput(spec TensorSpec, data any) (Tensor, error)
	Run(ctx context.Context, inputs map[string]Tensor, outputs map[string]Tensor) error
	Close() error
}

// Runtime constructs sessions from a model file path and an
// preference-ordered list of execution providers. Every listed provider is
// enabled, in list order; one the runtime cannot enable makes NewSession
// fail with UnsupportedProviderError instead of being skipped.
type Runtime interface {
	NewSession(modelPath string, providers []Provider) (Session, error)
}

// Error kinds, matching spec.md §7. These are returned by Runtime/Session
// implementations.
type NotFoundError struct{ Path string }

func (e NotFoundError) Error() string { return fmt.Sprintf("model file not found: %s", e.Path) }

type UnsupportedProviderError struct{ Provider Provider }

func (e UnsupportedProviderError) Error() string {
	return fmt.Sprintf("execution provider not supported: %s", e.Provider)
}

type ShapeMismatchError struct {
	Tensor   string
	Expected []int64
	Got      []int64
}

func (e ShapeMismatchError) Error() string {
	return fmt.Sprintf("shape mismatch on %s: expected %v got %v", e.Tensor, e.Expected, e.Got)
}

type RuntimeFailureError struct{ Msg string }

func (e RuntimeFailureError) Error() string { return e.Msg }
