package modelhost

import (
	"context"
)

// Reranker specializes Host for cross-encoder relevance scoring: it
// concatenates query and document around a separator token, runs the same
// single-vector pipeline against the model's logits output, and reduces the
// result to a scalar score via sigmoid (spec.md §4.2 reranker
// specialization).
type Reranker struct {
	host       *Host
	sepToken   string
	outputName string
}

// NewReranker wraps host with the reranker's input-shaping and
// output-reduction rules. sepToken is the literal separator text the
// tokenizer's vocabulary recognizes (e.g. "</s>" or "[SEP]"); outputName is
// the logits tensor's name in the model's output list.
func NewReranker(host *Host, sepToken, outputName string) *Reranker {
	return &Reranker{host: host, sepToken: sepToken, outputName: outputName}
}

// Score returns the relevance of document to query as a value in (0, 1).
func (r *Reranker) Score(ctx context.Context, query, document string) (float32, error) {
	combined := query + r.sepToken + document
	vec, _, err := r.host.Execute(ctx, combined, r.outputName, false)
	if err != nil {
		return 0, err
	}
	if len(vec) == 0 {
		return 0, RuntimeError{Msg: "reranker output tensor is empty"}
	}
	return sigmoid(vec[0]), nil
}
