package manager

import (
	"time"

	"github.com/modeld/inferd/internal/ortrt"
	"github.com/modeld/inferd/internal/sampling"
)

// Defaults applied when the corresponding EngineConfig fields are unset.
const (
	defaultMaxQueueDepth = 32
	defaultMaxWait       = 30 * time.Second
	defaultMaxSessions   = 64
)

// EngineConfig encapsulates every tunable the CLI and config loader feed
// into the engine at startup.
type EngineConfig struct {
	LLMModelPath        string
	LLMTokenizerPath    string
	EmbedModelPath      string
	EmbedTokenizerPath  string
	RerankModelPath     string
	RerankTokenizerPath string

	Providers []ortrt.Provider

	Sampling sampling.Config

	MaxQueueDepth int
	MaxWait       time.Duration
	MaxSessions   int

	// IdleTimeout is the duration a session may sit unused before
	// cmd/modeld's periodic ticker evicts it via EvictIdle. Zero disables
	// that ticker; EngineConfig itself never starts one.
	IdleTimeout time.Duration

	// PostgresDSN selects the persistent pgvector-backed retrieval store
	// when non-empty; otherwise the engine uses the in-memory store.
	PostgresDSN string
}

// withDefaults returns a copy of cfg with zero-valued tunables replaced by
// package defaults.
func (cfg EngineConfig) withDefaults() EngineConfig {
	if cfg.MaxQueueDepth <= 0 {
		cfg.MaxQueueDepth = defaultMaxQueueDepth
	}
	if cfg.MaxWait <= 0 {
		cfg.MaxWait = defaultMaxWait
	}
	if cfg.MaxSessions <= 0 {
		cfg.MaxSessions = defaultMaxSessions
	}
	if len(cfg.Providers) == 0 {
		cfg.Providers = []ortrt.Provider{ortrt.ProviderCPU}
	}
	if cfg.Sampling.Temperature <= 0 && cfg.Sampling.MaxTokens <= 0 {
		cfg.Sampling = sampling.Defaults()
	}
	return cfg
}
