// Package kv implements the causal LM's KV tensor mapping (spec.md §4.3)
// and the KV state that flows between steps (spec.md §3 "KV state").
package kv

import (
	"fmt"
	"regexp"
	"sort"

	"github.com/modeld/inferd/internal/ortrt"
)

// kvNamePattern matches both "past_key_values.0.key" / "present.0.key" style
// names and the flatter "past_0_key" / "present_0_key" style. Names that put
// key/value before the index, such as "past_key_0", do not match. Groups 2
// and 3 (index, suffix) are the identity two tensors must share to be
// partners.
var kvNamePattern = regexp.MustCompile(`^(past|present)[_.]?(?:key[_.]?values?[_.]?)?(\d+)(.*)$`)

// Descriptor is the per-tensor metadata spec.md §3 defines: dtype,
// dimension vector, and the slot offset within the input vector (offset
// starts after the fixed input_ids and attention_mask slots).
type Descriptor struct {
	Name       string
	Type       ortrt.ElementType
	Dims       []int64
	SlotOffset int
}

// Mapping is the bidirectional map spec.md §4.3 describes, computed once per
// loaded model.
type Mapping struct {
	presentToPast map[string]string
	pastToPresent map[string]string
	pastDescs     map[string]Descriptor
	// PastOrder lists past-input names in ascending slot-offset order, the
	// order the LM step driver binds them in.
	PastOrder []string
}

// PastFor returns the past-input name partnered with a present-output name.
func (m *Mapping) PastFor(presentName string) (string, bool) {
	n, ok := m.presentToPast[presentName]
	return n, ok
}

// PresentFor returns the present-output name partnered with a past-input name.
func (m *Mapping) PresentFor(pastName string) (string, bool) {
	n, ok := m.pastToPresent[pastName]
	return n, ok
}

// Descriptor returns the input-side descriptor for a past slot name.
func (m *Mapping) Descriptor(pastName string) (Descriptor, bool) {
	d, ok := m.pastDescs[pastName]
	return d, ok
}

// InvariantViolationError is raised when an output's present_* name has no
// partner input, or vice versa — spec.md §4.3's fatal configuration error,
// detected once at session construction.
type InvariantViolationError struct {
	Msg string
}

func (e InvariantViolationError) Error() string { return "kv mapping: " + e.Msg }

// kvKey identifies a KV tensor by its (index, suffix) identity.
type kvKey struct {
	index  string
	suffix string
}

// Discover scans a model's declared inputs and outputs for past_*/present_*
// names and builds the bidirectional mapping. Unpaired KV tensors on either
// side are reported as InvariantViolationError. Fixed slots 0 and 1
// (input_ids, attention_mask) plus an optional position_ids slot at index 2
// are excluded from the scan and do not count toward SlotOffset.
func Discover(inputs, outputs []ortrt.TensorSpec) (*Mapping, error) {
	pastByKey := map[kvKey]ortrt.TensorSpec{}
	presentByKey := map[kvKey]ortrt.TensorSpec{}

	fixedSlots := map[string]bool{"input_ids": true, "attention_mask": true, "position_ids": true}

	var pastNames []string
	for _, in := range inputs {
		if fixedSlots[in.Name] {
			continue
		}
		m := kvNamePattern.FindStringSubmatch(in.Name)
		if m == nil || m[1] != "past" {
			continue
		}
		key := kvKey{index: m[2], suffix: m[3]}
		pastByKey[key] = in
		pastNames = append(pastNames, in.Name)
	}
	for _, out := range outputs {
		m := kvNamePattern.FindStringSubmatch(out.Name)
		if m == nil || m[1] != "present" {
			continue
		}
		key := kvKey{index: m[2], suffix: m[3]}
		presentByKey[key] = out
	}

	if len(pastByKey) == 0 && len(presentByKey) == 0 {
		return &Mapping{presentToPast: map[string]string{}, pastToPresent: map[string]string{}, pastDescs: map[string]Descriptor{}}, nil
	}

	mp := &Mapping{
		presentToPast: make(map[string]string, len(presentByKey)),
		pastToPresent: make(map[string]string, len(pastByKey)),
		pastDescs:     make(map[string]Descriptor, len(pastByKey)),
	}

	for key, presentSpec := range presentByKey {
		pastSpec, ok := pastByKey[key]
		if !ok {
			return nil, InvariantViolationError{Msg: fmt.Sprintf("present output %q has no matching past input", presentSpec.Name)}
		}
		mp.presentToPast[presentSpec.Name] = pastSpec.Name
		mp.pastToPresent[pastSpec.Name] = presentSpec.Name
	}
	for key, pastSpec := range pastByKey {
		if _, ok := presentByKey[key]; !ok {
			return nil, InvariantViolationError{Msg: fmt.Sprintf("past input %q has no matching present output", pastSpec.Name)}
		}
	}

	// Sort past-input names by their declared slot order (i.e. index of
	// appearance in `inputs`, after the fixed slots) to assign SlotOffset.
	sort.Slice(pastNames, func(i, j int) bool {
		return indexOf(inputs, pastNames[i]) < indexOf(inputs, pastNames[j])
	})
	offset := 0
	for _, name := range pastNames {
		spec := pastByKey[findKey(pastByKey, name)]
		mp.pastDescs[name] = Descriptor{Name: name, Type: spec.Type, Dims: spec.Dims, SlotOffset: offset}
		mp.PastOrder = append(mp.PastOrder, name)
		offset++
	}
	return mp, nil
}

func indexOf(specs []ortrt.TensorSpec, name string) int {
	for i, s := range specs {
		if s.Name == name {
			return i
		}
	}
	return -1
}

func findKey(m map[kvKey]ortrt.TensorSpec, name string) kvKey {
	for k, v := range m {
		if v.Name == name {
			return k
		}
	}
	return kvKey{}
}
