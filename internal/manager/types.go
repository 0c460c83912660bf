package manager

import (
	"time"

	"github.com/modeld/inferd/internal/session"
)

// State is the engine's or one session's lifecycle state.
type State string

const (
	StateLoading  State = "loading"
	StateReady    State = "ready"
	StateError    State = "error"
	StateDraining State = "draining"
)

// sessionInstance wraps one conversation session with the admission
// primitives spec.md §5 requires: a single in-flight slot enforcing "never
// called concurrently on the same session," plus a bounded queue. This is
// the teacher's Instance repurposed per-session instead of per-model
// (queue_admission.go / evict.go carry the same shape).
type sessionInstance struct {
	id       string
	conv     *session.Conversation
	state    State
	lastUsed time.Time

	genCh   chan struct{} // size 1: single in-flight generation
	queueCh chan struct{} // buffered: queue slots
}

// Snapshot is a read-only projection of the engine's top-level state.
type Snapshot struct {
	State State
	Err   string
}
