//go:build !onnxruntime

package ortrt

// This file provides a no-CGO stub for the ONNX Runtime binding. It is
// compiled when the 'onnxruntime' build tag is NOT set, keeping default
// builds and CI CGO-free. The real binding lives in runtime_onnx.go (tag
// 'onnxruntime'), mirroring the teacher's adapter_llama.go /
// adapter_llama_stub.go split exactly.

// onnxRuntime is a stub that satisfies Runtime but refuses to run inference
// without the 'onnxruntime' build tag available. No mocked tensors ship in a
// default production binary.
type onnxRuntime struct{}

// NewOnnxRuntime constructs the ONNX Runtime binding. In this build it always
// fails fast.
func NewOnnxRuntime() Runtime { return onnxRuntime{} }

func (onnxRuntime) NewSession(modelPath string, providers []Provider) (Session, error) {
	return nil, RuntimeFailureError{Msg: "onnxruntime support not built (missing 'onnxruntime' build tag)"}
}
