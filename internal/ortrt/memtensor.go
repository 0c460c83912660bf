package ortrt

// memTensor is a plain heap-backed Tensor, built by NewFloat32Tensor,
// NewInt64Tensor and NewRawTensor for test fakes. Neither the stub runtime
// nor the onnxruntime binding creates one.
type memTensor struct {
	name  string
	typ   ElementType
	shape []int64
	f32   []float32
	i64   []int64
	raw   []byte
}

// NewFloat32Tensor wraps data as a Tensor of type ElemFP32.
func NewFloat32Tensor(name string, shape []int64, data []float32) Tensor {
	return &memTensor{name: name, typ: ElemFP32, shape: shape, f32: data}
}

// NewInt64Tensor wraps data as a Tensor of type ElemInt64.
func NewInt64Tensor(name string, shape []int64, data []int64) Tensor {
	return &memTensor{name: name, typ: ElemInt64, shape: shape, i64: data}
}

// NewRawTensor wraps a raw little-endian byte payload (fp16/bf16) as a Tensor.
func NewRawTensor(name string, typ ElementType, shape []int64, raw []byte) Tensor {
	return &memTensor{name: name, typ: typ, shape: shape, raw: raw}
}

func (t *memTensor) Name() string    { return t.name }
func (t *memTensor) Type() ElementType { return t.typ }
func (t *memTensor) Shape() []int64  { return t.shape }
func (t *memTensor) Float32() []float32 { return t.f32 }
func (t *memTensor) Int64() []int64     { return t.i64 }
func (t *memTensor) Bytes() []byte      { return t.raw }
func (t *memTensor) Close() error       { return nil }
