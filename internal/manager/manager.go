package manager

import (
	"context"
	"iter"
	"sync"
	"time"

	"github.com/modeld/inferd/internal/agent"
	"github.com/modeld/inferd/internal/kv"
	"github.com/modeld/inferd/internal/lm"
	"github.com/modeld/inferd/internal/modelhost"
	"github.com/modeld/inferd/internal/ortrt"
	"github.com/modeld/inferd/internal/retrieval"
	"github.com/modeld/inferd/internal/sampling"
	"github.com/modeld/inferd/internal/tokenize"
	"github.com/modeld/inferd/internal/toolcall"
	"github.com/modeld/inferd/pkg/types"
)

// Engine is the top-level object cmd/modeld constructs: it owns the LM,
// embedder, and reranker model hosts, the retrieval store, the tool
// registry, and the live conversation sessions, admitting generate calls
// one at a time per session (spec.md §5).
type Engine struct {
	mu    sync.RWMutex
	state State
	err   string

	cfg EngineConfig

	runtime   ortrt.Runtime
	llmSess   ortrt.Session
	llmDriver *lm.Driver
	llmTok    tokenize.Tokenizer

	embedHost *modelhost.Host
	reranker  *modelhost.Reranker

	store retrieval.Store
	tools *toolcall.Registry
	orch  *agent.Orchestrator

	sessions map[string]*sessionInstance

	startTime time.Time

	stepsTotal      uint64
	tokensTotal     uint64
	toolCallsTotal  uint64
	retrievalsTotal uint64
	evictionsTotal  uint64
}

// New constructs an Engine from cfg, loading every configured model
// eagerly (spec.md's CLI contract has no lazy-load notion: every model
// path given on the command line must resolve or the process exits
// non-zero, per spec.md §6's exit-code contract).
func New(cfg EngineConfig) (*Engine, error) {
	cfg = cfg.withDefaults()
	e := &Engine{
		state:     StateLoading,
		cfg:       cfg,
		sessions:  make(map[string]*sessionInstance),
		startTime: time.Now(),
		runtime:   ortrt.NewOnnxRuntime(),
	}

	llmTok, err := tokenize.Load(cfg.LLMTokenizerPath)
	if err != nil {
		e.fail(err)
		return nil, err
	}
	e.llmTok = llmTok

	llmSess, err := e.runtime.NewSession(cfg.LLMModelPath, cfg.Providers)
	if err != nil {
		e.fail(err)
		return nil, err
	}
	e.llmSess = llmSess

	mapping, err := kv.Discover(llmSess.Inputs(), llmSess.Outputs())
	if err != nil {
		e.fail(err)
		return nil, err
	}
	e.llmDriver = lm.New(llmSess, mapping, declaresPositionIDs(llmSess))

	var embedder *modelhost.Host
	if cfg.EmbedModelPath != "" {
		embedTok, err := tokenize.Load(cfg.EmbedTokenizerPath)
		if err != nil {
			e.fail(err)
			return nil, err
		}
		embedSess, err := e.runtime.NewSession(cfg.EmbedModelPath, cfg.Providers)
		if err != nil {
			e.fail(err)
			return nil, err
		}
		embedder = modelhost.New(embedTok, embedSess, 0)
	}
	e.embedHost = embedder

	var reranker *modelhost.Reranker
	if cfg.RerankModelPath != "" {
		rerankTok, err := tokenize.Load(cfg.RerankTokenizerPath)
		if err != nil {
			e.fail(err)
			return nil, err
		}
		rerankSess, err := e.runtime.NewSession(cfg.RerankModelPath, cfg.Providers)
		if err != nil {
			e.fail(err)
			return nil, err
		}
		host := modelhost.New(rerankTok, rerankSess, 0)
		reranker = modelhost.NewReranker(host, "</s>", "logits")
	}
	e.reranker = reranker

	// Default to the in-memory store. A pgxpool.Pool connection requires a
	// context and can itself fail, so when cfg.PostgresDSN is set,
	// cmd/modeld dials it and calls WithStore after New returns rather than
	// plumbing pool construction through this constructor.
	e.store = retrieval.NewMemoryStore()

	e.tools = toolcall.NewRegistry()

	opts := []agent.Option{}
	if e.reranker != nil {
		opts = append(opts, agent.WithReranker(e.reranker))
	}
	if e.tools != nil {
		opts = append(opts, agent.WithTools(e.tools))
	}
	e.orch = agent.New(e.embedHost, e.store, opts...)

	if err := agent.RegisterRetrieveTool(e.tools, e.orch); err != nil {
		e.fail(err)
		return nil, err
	}

	e.mu.Lock()
	e.state = StateReady
	e.mu.Unlock()
	return e, nil
}

// WithStore swaps the retrieval store after construction (used by
// cmd/modeld when a Postgres DSN is configured and a pgxpool.Pool has
// already been established).
func (e *Engine) WithStore(store retrieval.Store) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.store = store
	opts := []agent.Option{}
	if e.reranker != nil {
		opts = append(opts, agent.WithReranker(e.reranker))
	}
	if e.tools != nil {
		opts = append(opts, agent.WithTools(e.tools))
	}
	e.orch = agent.New(e.embedHost, store, opts...)
}

func (e *Engine) fail(err error) {
	e.mu.Lock()
	e.state = StateError
	e.err = err.Error()
	e.mu.Unlock()
}

// declaresPositionIDs resolves spec.md §9's open question: bind
// position_ids iff the session's declared inputs include the slot.
func declaresPositionIDs(sess ortrt.Session) bool {
	for _, in := range sess.Inputs() {
		if in.Name == "position_ids" {
			return true
		}
	}
	return false
}

// Ready reports whether the engine finished loading without error.
func (e *Engine) Ready() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.state == StateReady
}

// Snapshot returns a read-only view of the engine's top-level state.
func (e *Engine) Snapshot() Snapshot {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return Snapshot{State: e.state, Err: e.err}
}

// ChatTurn admits one call onto the named session (creating it on first
// use), runs it through the agent orchestrator, and releases the
// admission slot when the returned sequence is fully drained or
// abandoned.
func (e *Engine) ChatTurn(ctx context.Context, sessionID, userText string, cfg sampling.Config) iter.Seq[agent.GenResult] {
	return func(yield func(agent.GenResult) bool) {
		inst, release, err := e.beginSession(ctx, sessionID)
		if err != nil {
			yield(agent.GenResult{Err: err})
			return
		}
		defer release()

		count := 0
		for r := range e.orch.ChatTurn(ctx, inst.conv, userText, cfg) {
			if r.Fragment != "" {
				count++
			}
			if !yield(r) {
				break
			}
		}
		e.mu.Lock()
		e.stepsTotal++
		e.tokensTotal += uint64(count)
		e.mu.Unlock()
	}
}

// CloseSession disposes of one conversation session's KV state and
// removes it from the engine.
func (e *Engine) CloseSession(id string) error {
	e.mu.Lock()
	inst, ok := e.sessions[id]
	if ok {
		delete(e.sessions, id)
	}
	e.mu.Unlock()
	if !ok {
		return nil
	}
	return inst.conv.Close()
}

// Close disposes of every live session and the LM's model session. The
// embedder and reranker model sessions are not closed.
func (e *Engine) Close() error {
	e.mu.Lock()
	sessions := e.sessions
	e.sessions = map[string]*sessionInstance{}
	e.mu.Unlock()

	var firstErr error
	for _, inst := range sessions {
		if err := inst.conv.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if e.llmSess != nil {
		if err := e.llmSess.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// ListModels returns the engine's configured models, for the debug HTTP
// surface's informational endpoints.
func (e *Engine) ListModels() []types.Model {
	e.mu.RLock()
	defer e.mu.RUnlock()
	models := []types.Model{{ID: "llm", Path: e.cfg.LLMModelPath, Kind: types.KindLLM}}
	if e.cfg.EmbedModelPath != "" {
		models = append(models, types.Model{ID: "embedder", Path: e.cfg.EmbedModelPath, Kind: types.KindEmbedder})
	}
	if e.cfg.RerankModelPath != "" {
		models = append(models, types.Model{ID: "reranker", Path: e.cfg.RerankModelPath, Kind: types.KindReranker})
	}
	return models
}
