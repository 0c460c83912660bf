// Package modelhost implements the generic "encode one text -> one vector"
// path shared by the embedder and reranker (spec.md §4.2).
package modelhost

import (
	"context"
	"fmt"

	"github.com/modeld/inferd/internal/ortrt"
	"github.com/modeld/inferd/internal/tokenize"
)

// Host owns a tokenizer and a single-input tensor-runtime session and
// implements spec.md §4.2's Execute algorithm.
type Host struct {
	tok      tokenize.Tokenizer
	sess     ortrt.Session
	maxChars int
}

// InvalidArgumentError matches spec.md §7's InvalidArgument kind.
type InvalidArgumentError struct{ Msg string }

func (e InvalidArgumentError) Error() string { return e.Msg }

// RuntimeError wraps a tensor-runtime failure, preserving its message
// (spec.md §4.2's "RuntimeError with the original message").
type RuntimeError struct{ Msg string }

func (e RuntimeError) Error() string { return e.Msg }

// New constructs a Host around an already-initialized tokenizer and
// session. maxChars <= 0 disables the oversized-input check.
func New(tok tokenize.Tokenizer, sess ortrt.Session, maxChars int) *Host {
	return &Host{tok: tok, sess: sess, maxChars: maxChars}
}

// Execute tokenizes text, runs one forward pass, and decodes the named
// output tensor to a dense float vector, optionally L2-normalizing it.
// Implements spec.md §4.2's algorithm and failure modes exactly.
func (h *Host) Execute(ctx context.Context, text, outputName string, normalize bool) ([]float32, string, error) {
	if text == "" {
		return nil, "", InvalidArgumentError{Msg: "empty input"}
	}
	if h.maxChars > 0 && len(text) > h.maxChars {
		return nil, "", InvalidArgumentError{Msg: fmt.Sprintf("input exceeds maximum of %d characters", h.maxChars)}
	}

	ids, normalized, err := h.tok.Encode(text)
	if err != nil {
		return nil, "", RuntimeError{Msg: err.Error()}
	}
	l := int64(len(ids))

	inputIDsSpec := ortrt.TensorSpec{Name: "input_ids", Type: ortrt.ElemInt64, Dims: []int64{1, l}}
	inputIDs, err := h.sess.NewInput(inputIDsSpec, ids)
	if err != nil {
		return nil, "", RuntimeError{Msg: err.Error()}
	}
	defer inputIDs.Close()

	mask := make([]int64, l)
	for i := range mask {
		mask[i] = 1
	}
	maskSpec := ortrt.TensorSpec{Name: "attention_mask", Type: ortrt.ElemInt64, Dims: []int64{1, l}}
	attnMask, err := h.sess.NewInput(maskSpec, mask)
	if err != nil {
		return nil, "", RuntimeError{Msg: err.Error()}
	}
	defer attnMask.Close()

	var outSpec ortrt.TensorSpec
	for _, o := range h.sess.Outputs() {
		if o.Name == outputName {
			outSpec = o
			break
		}
	}
	if outSpec.Name == "" {
		return nil, "", RuntimeError{Msg: fmt.Sprintf("model has no output named %q", outputName)}
	}
	out, err := h.sess.AllocateOutput(outSpec)
	if err != nil {
		return nil, "", RuntimeError{Msg: err.Error()}
	}
	defer out.Close()

	inputs := map[string]ortrt.Tensor{"input_ids": inputIDs, "attention_mask": attnMask}
	outputs := map[string]ortrt.Tensor{outputName: out}
	if err := h.sess.Run(ctx, inputs, outputs); err != nil {
		return nil, "", RuntimeError{Msg: err.Error()}
	}

	vec := ortrt.Widen(out)
	if normalize {
		vec = l2Normalize(vec)
	}
	return vec, normalized, nil
}

// l2Normalize scales v to unit length, adding the 1e-9 epsilon spec.md §4.9
// calls for to avoid division by zero on a near-zero vector.
func l2Normalize(v []float32) []float32 {
	var sumSq float64
	for _, x := range v {
		sumSq += float64(x) * float64(x)
	}
	norm := float32(1.0 / sqrtEps(sumSq))
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = x * norm
	}
	return out
}
