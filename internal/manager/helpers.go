package manager

import (
	"time"

	"github.com/modeld/inferd/internal/session"
)

// getSession looks up an existing session under a read lock.
func (e *Engine) getSession(id string) (*sessionInstance, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	inst, ok := e.sessions[id]
	return inst, ok
}

// getOrCreateSession returns the named session, constructing a fresh one
// (with its own empty KV state) on first use. spec.md has no explicit
// "create session" call — a session springs into existence on its first
// chat turn.
func (e *Engine) getOrCreateSession(id string) (*sessionInstance, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if inst, ok := e.sessions[id]; ok {
		return inst, nil
	}
	if len(e.sessions) >= e.cfg.MaxSessions {
		if !e.evictOneLocked() {
			return nil, tooBusyError{sessionID: id}
		}
	}
	inst := &sessionInstance{
		id:       id,
		conv:     session.New(id, e.llmDriver, e.llmTok),
		state:    StateReady,
		lastUsed: time.Now(),
		genCh:    make(chan struct{}, 1),
		queueCh:  make(chan struct{}, e.cfg.MaxQueueDepth),
	}
	e.sessions[id] = inst
	return inst, nil
}

// uptime reports the duration since the engine finished construction.
func (e *Engine) uptime() time.Duration {
	return time.Since(e.startTime)
}
