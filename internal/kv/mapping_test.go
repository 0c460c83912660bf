package kv

import (
	"testing"

	"github.com/modeld/inferd/internal/ortrt"
)

func TestDiscoverPairsPastAndPresent(t *testing.T) {
	inputs := []ortrt.TensorSpec{
		{Name: "input_ids", Type: ortrt.ElemInt64, Dims: []int64{1, -1}},
		{Name: "attention_mask", Type: ortrt.ElemInt64, Dims: []int64{1, -1}},
		{Name: "past_key_values.0.key", Type: ortrt.ElemFP16, Dims: []int64{1, 8, -1, 64}},
		{Name: "past_key_values.0.value", Type: ortrt.ElemFP16, Dims: []int64{1, 8, -1, 64}},
	}
	outputs := []ortrt.TensorSpec{
		{Name: "logits", Type: ortrt.ElemFP32, Dims: []int64{1, -1, 32000}},
		{Name: "present.0.key", Type: ortrt.ElemFP16, Dims: []int64{1, 8, -1, 64}},
		{Name: "present.0.value", Type: ortrt.ElemFP16, Dims: []int64{1, 8, -1, 64}},
	}

	m, err := Discover(inputs, outputs)
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	if len(m.PastOrder) != 2 {
		t.Fatalf("expected 2 past slots, got %d", len(m.PastOrder))
	}
	present, ok := m.PresentFor("past_key_values.0.key")
	if !ok || present != "present.0.key" {
		t.Fatalf("PresentFor mismatch: %q ok=%v", present, ok)
	}
	past, ok := m.PastFor("present.0.value")
	if !ok || past != "past_key_values.0.value" {
		t.Fatalf("PastFor mismatch: %q ok=%v", past, ok)
	}
}

func TestDiscoverUnpairedPresentIsFatal(t *testing.T) {
	inputs := []ortrt.TensorSpec{
		{Name: "input_ids"}, {Name: "attention_mask"},
	}
	outputs := []ortrt.TensorSpec{
		{Name: "present.0.key"},
	}
	if _, err := Discover(inputs, outputs); err == nil {
		t.Fatal("expected InvariantViolationError for unpaired present output")
	} else if _, ok := err.(InvariantViolationError); !ok {
		t.Fatalf("expected InvariantViolationError, got %T", err)
	}
}

func TestDiscoverUnpairedPastIsFatal(t *testing.T) {
	inputs := []ortrt.TensorSpec{
		{Name: "input_ids"}, {Name: "attention_mask"},
		{Name: "past_key_values.0.key"},
	}
	outputs := []ortrt.TensorSpec{}
	if _, err := Discover(inputs, outputs); err == nil {
		t.Fatal("expected InvariantViolationError for unpaired past input")
	}
}

func TestStateCloseReleasesAllTensors(t *testing.T) {
	closed := map[string]bool{}
	s := State{Seq: 4, Present: map[string]ortrt.Tensor{
		"a": &closeTrackingTensor{name: "a", closed: closed},
		"b": &closeTrackingTensor{name: "b", closed: closed},
	}}
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if !closed["a"] || !closed["b"] {
		t.Fatalf("not all tensors closed: %v", closed)
	}
}

type closeTrackingTensor struct {
	name   string
	closed map[string]bool
}

func (t *closeTrackingTensor) Name() string            { return t.name }
func (t *closeTrackingTensor) Type() ortrt.ElementType { return ortrt.ElemFP32 }
func (t *closeTrackingTensor) Shape() []int64          { return nil }
func (t *closeTrackingTensor) Float32() []float32      { return nil }
func (t *closeTrackingTensor) Int64() []int64          { return nil }
func (t *closeTrackingTensor) Bytes() []byte           { return nil }
func (t *closeTrackingTensor) Close() error {
	t.closed[t.name] = true
	return nil
}
