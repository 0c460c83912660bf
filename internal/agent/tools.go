package agent

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/modeld/inferd/internal/retrieval"
	"github.com/modeld/inferd/internal/toolcall"
)

// RetrieveArgs is the schema jsonschema.For infers for the built-in
// "retrieve" tool, letting the model explicitly pull additional context
// mid-turn instead of relying solely on the automatic pre-turn retrieval
// of spec.md §4.8 step 1.
type RetrieveArgs struct {
	Query string `json:"query" jsonschema:"the search query to embed and look up"`
	K     int    `json:"k,omitempty" jsonschema:"number of results to return, default 5"`
}

// RegisterRetrieveTool wires a "retrieve" tool backed by embedder+store
// into reg, so a model with tool access can request extra context
// on demand.
func RegisterRetrieveTool(reg *toolcall.Registry, orch *Orchestrator) error {
	exec := func(ctx context.Context, raw json.RawMessage) (string, error) {
		var args RetrieveArgs
		if err := json.Unmarshal(raw, &args); err != nil {
			return "", fmt.Errorf("decode retrieve args: %w", err)
		}
		if args.K <= 0 {
			args.K = defaultFinal
		}
		items, err := orch.retrieve(ctx, args.Query)
		if err != nil {
			return "", err
		}
		return renderContext(limitItems(items, args.K)), nil
	}
	return toolcall.Register[RetrieveArgs](reg, "retrieve", "Search the retrieval store for relevant context.", exec)
}

func limitItems(items []retrieval.Item, k int) []retrieval.Item {
	if k < len(items) {
		return items[:k]
	}
	return items
}
