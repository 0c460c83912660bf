//go:build sugarme

package tokenize

import (
	"fmt"

	sgtok "github.com/sugarme/tokenizer"
	"github.com/sugarme/tokenizer/pretrained"
)

// sugarmeTokenizer wraps a real SentencePiece/BPE tokenizer file loaded via
// sugarme/tokenizer, used for both the LM's BPE/tiktoken-style vocabulary and
// the embedder/reranker's SentencePiece-BPE vocabulary (spec.md §6).
type sugarmeTokenizer struct {
	inner *sgtok.Tokenizer
}

// Load reads a tokenizer.json (or equivalent) file and returns a Tokenizer
// bound to it.
func Load(tokenizerPath string) (Tokenizer, error) {
	tk, err := pretrained.FromFile(tokenizerPath)
	if err != nil {
		return nil, fmt.Errorf("load tokenizer %s: %w", tokenizerPath, err)
	}
	return &sugarmeTokenizer{inner: tk}, nil
}

func (t *sugarmeTokenizer) Encode(text string) ([]int64, string, error) {
	input := sgtok.NewSingleEncodeInput(sgtok.NewInputSequence(text))
	enc, err := t.inner.Encode(input, true)
	if err != nil {
		return nil, "", err
	}
	ids32 := enc.GetIds()
	ids := make([]int64, len(ids32))
	for i, v := range ids32 {
		ids[i] = int64(v)
	}
	return ids, text, nil
}

func (t *sugarmeTokenizer) Decode(ids []int64) (string, error) {
	ids32 := make([]int, len(ids))
	for i, v := range ids {
		ids32[i] = int(v)
	}
	return t.inner.Decode(ids32, true), nil
}

func (t *sugarmeTokenizer) VocabSize() int {
	return t.inner.GetVocabSize(true)
}
