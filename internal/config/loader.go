// Package config loads the optional on-disk overlay for engine tunables
// cmd/modeld falls back to when a flag isn't given explicitly. Model and
// tokenizer paths are always positional CLI arguments (spec.md §6); this
// file only configures the ambient knobs — providers, admission limits,
// sampling defaults, and the persistent retrieval store's DSN.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Config holds overlay parameters for the engine. Zero values mean
// "unspecified" and are replaced by internal/manager's defaults.
type Config struct {
	Addr string `json:"addr" yaml:"addr" toml:"addr"`

	// Providers is an ordered execution-provider preference list, e.g.
	// ["cuda", "cpu"], handed to the runtime as a whole. If any listed
	// provider cannot be enabled, session creation fails with
	// UnsupportedProviderError; the remaining entries are not tried instead.
	Providers []string `json:"providers" yaml:"providers" toml:"providers"`

	MaxQueueDepth int `json:"max_queue_depth" yaml:"max_queue_depth" toml:"max_queue_depth"`
	MaxWaitMS     int `json:"max_wait_ms" yaml:"max_wait_ms" toml:"max_wait_ms"`
	MaxSessions   int `json:"max_sessions" yaml:"max_sessions" toml:"max_sessions"`

	// IdleTimeoutMS is the duration, in milliseconds, a session may sit
	// unused before the periodic evictor reclaims it. 0 disables idle
	// eviction.
	IdleTimeoutMS int `json:"idle_timeout_ms" yaml:"idle_timeout_ms" toml:"idle_timeout_ms"`

	// LLMFamily selects the LLM's sampling overlay (internal/sampling's
	// family dispatch table) when the CLI's --llm-family flag isn't set.
	LLMFamily string `json:"llm_family" yaml:"llm_family" toml:"llm_family"`

	Sampling SamplingOverlay `json:"sampling" yaml:"sampling" toml:"sampling"`

	// PostgresDSN selects the pgvector-backed retrieval store when set.
	PostgresDSN string `json:"postgres_dsn" yaml:"postgres_dsn" toml:"postgres_dsn"`
}

// SamplingOverlay mirrors the subset of internal/sampling.Config a config
// file may override; zero fields fall back to internal/sampling.Defaults.
type SamplingOverlay struct {
	Temperature       float64 `json:"temperature" yaml:"temperature" toml:"temperature"`
	TopK              int     `json:"top_k" yaml:"top_k" toml:"top_k"`
	TopP              float64 `json:"top_p" yaml:"top_p" toml:"top_p"`
	MinP              float64 `json:"min_p" yaml:"min_p" toml:"min_p"`
	RepetitionPenalty float64 `json:"repetition_penalty" yaml:"repetition_penalty" toml:"repetition_penalty"`
	MaxTokens         int     `json:"max_tokens" yaml:"max_tokens" toml:"max_tokens"`
	Seed              uint64  `json:"seed" yaml:"seed" toml:"seed"`
}

// Load reads a configuration file based on its extension.
// Supports: .yaml/.yml, .json, .toml
func Load(path string) (Config, error) {
	var cfg Config
	if path == "" {
		return cfg, fmt.Errorf("empty config path")
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	case ".json":
		if err := json.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	case ".toml":
		if err := toml.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	default:
		return cfg, fmt.Errorf("unsupported config extension: %s", ext)
	}
	return cfg, nil
}
