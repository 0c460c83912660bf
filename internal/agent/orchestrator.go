// Package agent implements the per-turn orchestration spec.md §4.8
// describes: retrieval, chat-template rendering, and tool injection
// around a conversation session's generation loop.
package agent

import (
	"context"
	"iter"
	"sort"

	"github.com/modeld/inferd/internal/modelhost"
	"github.com/modeld/inferd/internal/retrieval"
	"github.com/modeld/inferd/internal/sampling"
	"github.com/modeld/inferd/internal/session"
	"github.com/modeld/inferd/internal/toolcall"
)

const (
	defaultTopK  = 10
	defaultFinal = 5
)

// Orchestrator ties retrieval, templating, and tool injection into the
// per-turn operation chat_turn spec.md §4.8 defines.
type Orchestrator struct {
	embedder   *modelhost.Host
	reranker   *modelhost.Reranker
	store      retrieval.Store
	tools      *toolcall.Registry
	parserOpen string
	parserClose string
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithReranker enables the rerank-then-top-5 step of retrieval.
func WithReranker(r *modelhost.Reranker) Option {
	return func(o *Orchestrator) { o.reranker = r }
}

// WithTools enables tool injection using the given registry and the
// delimiters its tool-use block advertises.
func WithTools(reg *toolcall.Registry) Option {
	return func(o *Orchestrator) { o.tools = reg }
}

// New constructs an Orchestrator. embedder and store may both be nil, in
// which case retrieval is skipped entirely (spec.md §4.8 step 1's "else
// retrieved-context is empty").
func New(embedder *modelhost.Host, store retrieval.Store, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		embedder:    embedder,
		store:       store,
		parserOpen:  toolCallOpen,
		parserClose: toolCallClose,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// GenResult mirrors session.GenResult so callers of ChatTurn need not
// import internal/session directly.
type GenResult = session.GenResult

// retrieve implements spec.md §4.8 step 1: embed, top-k, optional rerank,
// keep the final top-5.
func (o *Orchestrator) retrieve(ctx context.Context, userText string) ([]retrieval.Item, error) {
	if o.embedder == nil || o.store == nil {
		return nil, nil
	}
	vec, _, err := o.embedder.Execute(ctx, userText, "embedding", true)
	if err != nil {
		return nil, err
	}
	candidates, err := o.store.TopK(ctx, vec, defaultTopK)
	if err != nil {
		return nil, err
	}
	if o.reranker != nil {
		candidates = o.rerank(ctx, userText, candidates)
	}
	if len(candidates) > defaultFinal {
		candidates = candidates[:defaultFinal]
	}
	return candidates, nil
}

type scoredItem struct {
	item  retrieval.Item
	score float32
}

func (o *Orchestrator) rerank(ctx context.Context, query string, items []retrieval.Item) []retrieval.Item {
	scoredItems := make([]scoredItem, 0, len(items))
	for _, it := range items {
		score, err := o.reranker.Score(ctx, query, it.Content)
		if err != nil {
			continue
		}
		scoredItems = append(scoredItems, scoredItem{item: it, score: score})
	}
	sort.SliceStable(scoredItems, func(i, j int) bool { return scoredItems[i].score > scoredItems[j].score })
	out := make([]retrieval.Item, len(scoredItems))
	for i, s := range scoredItems {
		out[i] = s.item
	}
	return out
}

// ChatTurn runs one turn: retrieval, prompt construction, delegation to
// the conversation's generate loop, and tool injection if a registry was
// supplied (spec.md §4.8).
func (o *Orchestrator) ChatTurn(ctx context.Context, conv *session.Conversation, userText string, cfg sampling.Config) iter.Seq[GenResult] {
	return func(yield func(GenResult) bool) {
		retrieved, err := o.retrieve(ctx, userText)
		if err != nil {
			yield(GenResult{Err: err})
			return
		}

		var prompt string
		if conv.Transcript() == "" {
			prompt = SystemPrompt(userText, retrieved, o.tools != nil)
		} else {
			prompt = TurnPrompt(userText, retrieved)
		}

		if o.tools == nil {
			for r := range conv.Generate(ctx, prompt, cfg) {
				if !yield(r) {
					return
				}
			}
			return
		}

		o.runWithToolInjection(ctx, conv, prompt, cfg, yield)
	}
}

// runWithToolInjection implements spec.md §4.8's tool-injection loop: feed
// every yielded fragment to the tool-call parser, and when a call
// completes, execute it and splice a tool-result block back in as the
// next step's input, continuing generation.
func (o *Orchestrator) runWithToolInjection(ctx context.Context, conv *session.Conversation, prompt string, cfg sampling.Config, yield func(GenResult) bool) {
	parser := toolcall.New(o.parserOpen, o.parserClose)
	current := prompt

	for {
		calledTool := false
		for r := range conv.Generate(ctx, current, cfg) {
			if r.Err != nil {
				yield(r)
				return
			}
			if !yield(r) {
				return
			}
			call, ok := parser.Feed(r.Fragment)
			if !ok {
				continue
			}
			call.State = toolcall.Executing
			result, err := o.tools.Invoke(ctx, call)
			if err != nil {
				call.State = toolcall.Failed
				current = WrapToolResult(err.Error(), true)
			} else {
				call.State = toolcall.Completed
				current = WrapToolResult(result, false)
			}
			calledTool = true
			break
		}
		if !calledTool {
			return
		}
	}
}
