package kv

import "github.com/modeld/inferd/internal/ortrt"

// State is the authoritative record of accumulated sequence length plus the
// set of just-produced present tensors that become the next step's past
// (spec.md §3). It is treated as a linear (move-only) value per spec.md §9:
// every step that observes a State consumes it and produces a fresh one; the
// caller must not read from a State after passing it to a step that returns
// a replacement.
type State struct {
	Seq int64
	// Present holds the just-produced present tensors, keyed by present
	// output name.
	Present map[string]ortrt.Tensor
}

// Empty returns the initial KV state of a session: zero sequence length, no
// present tensors. The LM step driver recognizes an empty state and binds a
// zero-seq tensor for every past slot instead (spec.md §4.4 step 4).
func Empty() State {
	return State{Seq: 0, Present: nil}
}

// IsEmpty reports whether s is the pre-first-step state.
func (s State) IsEmpty() bool { return len(s.Present) == 0 }

// Close releases every KV tensor owned by s. Safe to call on an empty state.
func (s State) Close() error {
	var firstErr error
	for _, t := range s.Present {
		if err := t.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
