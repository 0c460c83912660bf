// Package manager is the engine's lifecycle and admission layer: it loads
// the LM, embedder, and reranker hosts once at startup, and thereafter
// owns the map of live conversation sessions, admitting calls onto them
// one at a time and evicting idle sessions under a configured budget. It
// is structured into small files by concern, mirroring the teacher's
// split:
//
//   - manager.go: Engine type, constructor, Ready/Snapshot getters.
//   - config.go: EngineConfig and package defaults.
//   - types.go: internal state types (State, sessionInstance).
//   - errors.go: error types and Is* predicates.
//   - helpers.go: small utilities.
//   - queue_admission.go: per-session queueing and generation admission.
//   - evict.go: eviction of idle sessions to fit within a session budget.
//   - status_report.go: Status/Snapshot reporting.
package manager
