// Package lm implements the decoder-only causal LM's step driver (spec.md
// §4.4): one input-assembly/output-allocation/run cycle per call, strictly
// sequential per model session.
package lm

import (
	"context"
	"errors"
	"fmt"

	"github.com/modeld/inferd/internal/kv"
	"github.com/modeld/inferd/internal/ortrt"
)

// CancelledError matches spec.md §7's Cancelled kind.
type CancelledError struct{}

func (CancelledError) Error() string { return "step cancelled" }

// InvariantViolationError is raised when the KV state's authoritative
// sequence length disagrees with a declared tensor shape (spec.md §4.4's
// tie-break rule).
type InvariantViolationError struct{ Msg string }

func (e InvariantViolationError) Error() string { return "lm: " + e.Msg }

// RuntimeError wraps a tensor-runtime failure, preserving its message
// (spec.md §7's RuntimeFailure kind).
type RuntimeError struct{ Msg string }

func (e RuntimeError) Error() string { return e.Msg }

const logitsOutputName = "logits"

// Driver runs one session's forward pass per Step call, binding the
// previous KV state's present tensors back as the next step's past inputs
// per the mapping discovered at construction time.
type Driver struct {
	sess    ortrt.Session
	mapping *kv.Mapping
	posIDs  bool
}

// New wraps sess with the KV mapping discovered from its declared
// inputs/outputs. posIDs controls whether a position_ids input is bound;
// spec.md §9 resolves the open question of when to bind it as "iff the
// session declares the slot", so callers pass the result of that check
// rather than this package re-deriving it.
func New(sess ortrt.Session, mapping *kv.Mapping, posIDs bool) *Driver {
	return &Driver{sess: sess, mapping: mapping, posIDs: posIDs}
}

// Step runs one forward pass over inputIDs, binding past's present tensors
// (or zero-seq placeholders on the first step of a session) into the
// model's past-KV slots, and returns the new logits tensor plus the KV
// state that replaces past. The caller owns logits and must Close it after
// sampling; the caller also disposes of past's tensors once next is
// committed (spec.md §4.4 Ownership).
func (d *Driver) Step(ctx context.Context, inputIDs []int64, past kv.State) (ortrt.Tensor, kv.State, error) {
	if err := ctx.Err(); err != nil {
		return nil, kv.State{}, CancelledError{}
	}

	l := int64(len(inputIDs))
	sTotal := past.Seq + l

	inputs := map[string]ortrt.Tensor{}
	var opened []ortrt.Tensor
	closeOpened := func() {
		for _, t := range opened {
			t.Close()
		}
	}

	idsTensor, err := d.sess.NewInput(ortrt.TensorSpec{Name: "input_ids", Type: ortrt.ElemInt64, Dims: []int64{1, l}}, inputIDs)
	if err != nil {
		return nil, kv.State{}, RuntimeError{Msg: err.Error()}
	}
	opened = append(opened, idsTensor)
	inputs["input_ids"] = idsTensor

	mask := make([]int64, sTotal)
	for i := range mask {
		mask[i] = 1
	}
	maskTensor, err := d.sess.NewInput(ortrt.TensorSpec{Name: "attention_mask", Type: ortrt.ElemInt64, Dims: []int64{1, sTotal}}, mask)
	if err != nil {
		closeOpened()
		return nil, kv.State{}, RuntimeError{Msg: err.Error()}
	}
	opened = append(opened, maskTensor)
	inputs["attention_mask"] = maskTensor

	if d.posIDs {
		posIDs := make([]int64, l)
		for i := range posIDs {
			posIDs[i] = past.Seq + int64(i)
		}
		posTensor, err := d.sess.NewInput(ortrt.TensorSpec{Name: "position_ids", Type: ortrt.ElemInt64, Dims: []int64{1, l}}, posIDs)
		if err != nil {
			closeOpened()
			return nil, kv.State{}, RuntimeError{Msg: err.Error()}
		}
		opened = append(opened, posTensor)
		inputs["position_ids"] = posTensor
	}

	for _, pastName := range d.mapping.PastOrder {
		desc, _ := d.mapping.Descriptor(pastName)
		if !past.IsEmpty() {
			presentName, _ := d.mapping.PresentFor(pastName)
			t, ok := past.Present[presentName]
			if !ok {
				closeOpened()
				return nil, kv.State{}, InvariantViolationError{Msg: fmt.Sprintf("kv state missing present tensor %q", presentName)}
			}
			inputs[pastName] = t
			continue
		}
		zeroDims := append([]int64{}, desc.Dims...)
		zeroDims[0] = 1
		zeroDims[len(zeroDims)-2] = 0
		zeroTensor, err := d.sess.AllocateOutput(ortrt.TensorSpec{Name: pastName, Type: desc.Type, Dims: zeroDims})
		if err != nil {
			closeOpened()
			return nil, kv.State{}, RuntimeError{Msg: err.Error()}
		}
		opened = append(opened, zeroTensor)
		inputs[pastName] = zeroTensor
	}

	outputs := map[string]ortrt.Tensor{}
	var logitsSpec ortrt.TensorSpec
	for _, o := range d.sess.Outputs() {
		if o.Name == logitsOutputName {
			logitsSpec = o
		}
	}
	if logitsSpec.Name == "" {
		closeOpened()
		return nil, kv.State{}, InvariantViolationError{Msg: "model declares no logits output"}
	}
	logitsDims := []int64{1, l, logitsSpec.Dims[len(logitsSpec.Dims)-1]}
	logitsTensor, err := d.sess.AllocateOutput(ortrt.TensorSpec{Name: logitsOutputName, Type: logitsSpec.Type, Dims: logitsDims})
	if err != nil {
		closeOpened()
		return nil, kv.State{}, RuntimeError{Msg: err.Error()}
	}
	outputs[logitsOutputName] = logitsTensor

	outSeq := l
	if !past.IsEmpty() {
		outSeq = sTotal
	}
	present := map[string]ortrt.Tensor{}
	for _, pastName := range d.mapping.PastOrder {
		desc, _ := d.mapping.Descriptor(pastName)
		presentName, _ := d.mapping.PresentFor(pastName)
		dims := append([]int64{}, desc.Dims...)
		dims[0] = 1
		dims[len(dims)-2] = outSeq
		t, err := d.sess.AllocateOutput(ortrt.TensorSpec{Name: presentName, Type: desc.Type, Dims: dims})
		if err != nil {
			closeOpened()
			logitsTensor.Close()
			for _, t := range present {
				t.Close()
			}
			return nil, kv.State{}, RuntimeError{Msg: err.Error()}
		}
		present[presentName] = t
		outputs[presentName] = t
	}

	if err := ctx.Err(); err != nil {
		closeOpened()
		logitsTensor.Close()
		for _, t := range present {
			t.Close()
		}
		return nil, kv.State{}, CancelledError{}
	}

	if err := d.sess.Run(ctx, inputs, outputs); err != nil {
		closeOpened()
		logitsTensor.Close()
		for _, t := range present {
			t.Close()
		}
		var shapeErr ortrt.ShapeMismatchError
		if errors.As(err, &shapeErr) {
			return nil, kv.State{}, InvariantViolationError{Msg: err.Error()}
		}
		return nil, kv.State{}, RuntimeError{Msg: err.Error()}
	}

	closeOpened()

	next := kv.State{Seq: sTotal, Present: present}
	if next.Seq != past.Seq+l {
		return nil, kv.State{}, InvariantViolationError{Msg: "sequence-length accounting disagreement"}
	}
	return logitsTensor, next, nil
}
