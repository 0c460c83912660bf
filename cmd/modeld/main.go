// Command modeld loads an LLM, an embedder, and an optional reranker from
// explicit ONNX model/tokenizer file pairs (spec.md §6), serves a slim
// read-only debug HTTP surface in the background, and drives chat through
// an interactive stdin REPL, one line per turn.
package main

import (
	"bufio"
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/modeld/inferd/internal/config"
	"github.com/modeld/inferd/internal/httpapi"
	"github.com/modeld/inferd/internal/manager"
	"github.com/modeld/inferd/internal/ortrt"
	"github.com/modeld/inferd/internal/registry"
	"github.com/modeld/inferd/internal/retrieval"
	"github.com/modeld/inferd/internal/sampling"
	"github.com/modeld/inferd/pkg/types"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// flags collects every CLI-settable tunable before it's resolved into a
// manager.EngineConfig; most have environment-variable defaults the way
// the teacher's flags did.
type flags struct {
	addr          string
	configPath    string
	providers     []string
	maxQueueDepth int
	maxWaitMS     int
	maxSessions   int
	postgresDSN   string
	logLevel      string
	llmFamily     string
	idleTimeoutMS int
}

func newRootCmd() *cobra.Command {
	f := &flags{}
	root := &cobra.Command{
		Use:   "modeld <llm-model-file> <llm-tokenizer-file> <embedding-model-file> <embedding-tokenizer-file> [reranker-model-file] [reranker-tokenizer-file]",
		Short: "Local ONNX-Runtime inference engine with sessions, retrieval, and tool calling",
		Args:  cobra.RangeArgs(4, 6),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), args, f)
		},
	}

	defaultAddr := envOr("MODELD_ADDR", ":8080")
	root.Flags().StringVar(&f.addr, "addr", defaultAddr, "Debug HTTP surface listen address")
	root.Flags().StringVar(&f.configPath, "config", os.Getenv("MODELD_CONFIG"), "Optional config file overlay (.yaml, .json, .toml)")
	root.Flags().StringSliceVar(&f.providers, "providers", nil, "Execution provider preference, e.g. cuda,cpu")
	root.Flags().IntVar(&f.maxQueueDepth, "max-queue-depth", 0, "Max queued generate calls per session (0=config/default)")
	root.Flags().IntVar(&f.maxWaitMS, "max-wait-ms", 0, "Max wait in milliseconds for an admission slot (0=config/default)")
	root.Flags().IntVar(&f.maxSessions, "max-sessions", 0, "Max concurrently held conversation sessions (0=config/default)")
	root.Flags().StringVar(&f.postgresDSN, "postgres-dsn", os.Getenv("MODELD_POSTGRES_DSN"), "Postgres DSN for the pgvector retrieval store (empty=in-memory)")
	root.Flags().StringVar(&f.logLevel, "log-level", envOr("MODELD_LOG_LEVEL", "info"), "Log level: debug|info|warn|error")
	root.Flags().StringVar(&f.llmFamily, "llm-family", envOr("MODELD_LLM_FAMILY", ""), "LLM family, selects a sampling overlay, e.g. llama3,qwen2,mistral,gemma2")
	root.Flags().IntVar(&f.idleTimeoutMS, "idle-timeout-ms", 0, "Evict an idle session after this many milliseconds (0=config/disabled)")

	return root
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func run(ctx context.Context, args []string, f *flags) error {
	logger := zerolog.New(zerolog.NewConsoleWriter()).With().Timestamp().Logger().Level(parseZerologLevel(f.logLevel))
	httpapi.SetLogger(logger)

	overlay, err := loadOverlay(f.configPath)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	paths := registry.Paths{
		LLMModel:       args[0],
		LLMTokenizer:   args[1],
		EmbedModel:     args[2],
		EmbedTokenizer: args[3],
		LLMFamily:      firstNonEmpty(f.llmFamily, overlay.LLMFamily),
	}
	if len(args) > 4 {
		paths.RerankModel = args[4]
	}
	if len(args) > 5 {
		paths.RerankTokenizer = args[5]
	}
	models, err := registry.Resolve(paths)
	if err != nil {
		return fmt.Errorf("resolve models: %w", err)
	}

	cfg := buildEngineConfig(models, overlay, f)

	logger.Info().Int("models", len(models)).Msg("loading engine")
	engine, err := manager.New(cfg)
	if err != nil {
		return fmt.Errorf("engine init: %w", err)
	}
	defer func() {
		if err := engine.Close(); err != nil {
			logger.Error().Err(err).Msg("engine close")
		}
	}()

	if cfg.PostgresDSN != "" {
		pool, err := pgxpool.New(ctx, cfg.PostgresDSN)
		if err != nil {
			return fmt.Errorf("postgres dial: %w", err)
		}
		defer pool.Close()
		engine.WithStore(retrieval.NewPGStore(pool))
		logger.Info().Msg("using pgvector retrieval store")
	}

	addr := overlayAddr(f.addr, overlay)
	srv := &http.Server{Addr: addr, Handler: httpapi.NewMux(engine)}
	go func() {
		logger.Info().Str("addr", addr).Msg("debug http surface listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error().Err(err).Msg("debug http surface error")
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	if cfg.IdleTimeout > 0 {
		stopEvictor := runIdleEvictor(ctx, engine, cfg.IdleTimeout, logger)
		defer stopEvictor()
	}

	return runREPL(ctx, engine, cfg.Sampling)
}

// runREPL reads one line of user input at a time from stdin, drives it
// through a single persistent session ("repl"), and prints each generated
// fragment as it arrives. An empty line ends the session cleanly.
func runREPL(parent context.Context, engine *manager.Engine, samplingCfg sampling.Config) error {
	ctx, cancel := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	const sessionID = "repl"
	scanner := bufio.NewScanner(os.Stdin)
	fmt.Println("modeld ready. Type a message and press enter; an empty line exits.")
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}
		line := scanner.Text()
		if line == "" {
			break
		}
		if ctx.Err() != nil {
			break
		}
		for r := range engine.ChatTurn(ctx, sessionID, line, samplingCfg) {
			if r.Err != nil {
				fmt.Fprintf(os.Stderr, "\nerror: %v\n", r.Err)
				break
			}
			fmt.Print(r.Fragment)
		}
		fmt.Println()
	}
	return engine.CloseSession(sessionID)
}

// runIdleEvictor starts a background ticker that calls engine.EvictIdle
// once per idle period, releasing long-unused sessions' KV tensors without
// waiting for MaxSessions pressure to force it. The returned func stops the
// ticker; callers should defer it.
func runIdleEvictor(ctx context.Context, engine *manager.Engine, idle time.Duration, logger zerolog.Logger) func() {
	ticker := time.NewTicker(idle)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n := engine.EvictIdle(idle); n > 0 {
					logger.Debug().Int("evicted", n).Msg("idle session eviction")
				}
			}
		}
	}()
	return func() {
		ticker.Stop()
		<-done
	}
}

func loadOverlay(path string) (config.Config, error) {
	if path == "" {
		return config.Config{}, nil
	}
	return config.Load(path)
}

func overlayAddr(flagAddr string, overlay config.Config) string {
	if overlay.Addr != "" {
		return overlay.Addr
	}
	return flagAddr
}

// buildEngineConfig merges the resolved model paths, the optional config
// file overlay, and explicit flags into one manager.EngineConfig. Flags
// win over the overlay; the overlay wins over manager's own defaults.
func buildEngineConfig(models []types.Model, overlay config.Config, f *flags) manager.EngineConfig {
	cfg := manager.EngineConfig{
		Providers:     resolveProviders(f.providers, overlay.Providers),
		MaxQueueDepth: firstNonZero(f.maxQueueDepth, overlay.MaxQueueDepth),
		MaxSessions:   firstNonZero(f.maxSessions, overlay.MaxSessions),
		PostgresDSN:   firstNonEmpty(f.postgresDSN, overlay.PostgresDSN),
		Sampling:      samplingFromOverlay(overlay.Sampling),
	}
	if ms := firstNonZero(f.maxWaitMS, overlay.MaxWaitMS); ms > 0 {
		cfg.MaxWait = time.Duration(ms) * time.Millisecond
	}
	if ms := firstNonZero(f.idleTimeoutMS, overlay.IdleTimeoutMS); ms > 0 {
		cfg.IdleTimeout = time.Duration(ms) * time.Millisecond
	}
	for _, m := range models {
		switch m.Kind {
		case types.KindLLM:
			cfg.LLMModelPath, cfg.LLMTokenizerPath = m.Path, m.TokenizerPath
			cfg.Sampling = sampling.ApplyFamilyOverlay(cfg.Sampling, m.Family)
		case types.KindEmbedder:
			cfg.EmbedModelPath, cfg.EmbedTokenizerPath = m.Path, m.TokenizerPath
		case types.KindReranker:
			cfg.RerankModelPath, cfg.RerankTokenizerPath = m.Path, m.TokenizerPath
		}
	}
	return cfg
}

func resolveProviders(flagProviders, overlayProviders []string) []ortrt.Provider {
	list := flagProviders
	if len(list) == 0 {
		list = overlayProviders
	}
	providers := make([]ortrt.Provider, 0, len(list))
	for _, p := range list {
		providers = append(providers, ortrt.Provider(p))
	}
	return providers
}

func samplingFromOverlay(o config.SamplingOverlay) sampling.Config {
	cfg := sampling.Defaults()
	if o.Temperature > 0 {
		cfg.Temperature = o.Temperature
	}
	if o.TopK > 0 {
		cfg.TopK = o.TopK
	}
	if o.TopP > 0 {
		cfg.TopP = o.TopP
	}
	if o.MinP > 0 {
		cfg.MinP = o.MinP
	}
	if o.RepetitionPenalty > 0 {
		cfg.RepetitionPenalty = o.RepetitionPenalty
	}
	if o.MaxTokens > 0 {
		cfg.MaxTokens = o.MaxTokens
	}
	if o.Seed != 0 {
		seed := o.Seed
		cfg.Seed = &seed
	}
	return cfg
}

func firstNonZero(a, b int) int {
	if a != 0 {
		return a
	}
	return b
}

func firstNonEmpty(a, b string) string {
	if a != "" {
		return a
	}
	return b
}

// splitCSV splits a comma-separated list, trimming whitespace around each
// entry and dropping empty entries. An empty input yields nil.
func splitCSV(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func parseZerologLevel(level string) zerolog.Level {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		return zerolog.InfoLevel
	}
	return lvl
}
