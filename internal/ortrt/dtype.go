package ortrt

import (
	"encoding/binary"

	"github.com/d4l3k/go-bfloat16"
	"github.com/x448/float16"
)

// Widen converts a tensor's raw payload to a fp32 slice regardless of its
// declared element type, per spec.md §9: the sampling boundary is the only
// place the dtype tag is switched on. fp16 and bf16 are widened
// element-by-element using the same libraries 7blacky7-ollama-reverse pulls
// in for the identical job in its ggml backend.
func Widen(t Tensor) []float32 {
	switch t.Type() {
	case ElemFP32:
		return t.Float32()
	case ElemFP16:
		raw := t.Bytes()
		out := make([]float32, len(raw)/2)
		for i := range out {
			bits := binary.LittleEndian.Uint16(raw[i*2 : i*2+2])
			out[i] = float16.Frombits(bits).Float32()
		}
		return out
	case ElemBF16:
		raw := t.Bytes()
		return bfloat16.DecodeFloat32(raw)
	default:
		panic("ortrt: Widen called on non-float tensor")
	}
}
