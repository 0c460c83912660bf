//go:build !sugarme

package tokenize

// This file provides a no-dependency stub tokenizer, compiled when the
// 'sugarme' build tag is NOT set. The real binding lives in
// sugarme_adapter.go (tag 'sugarme'), mirroring the teacher's
// build-tag-gated adapter split for go-skynet/go-llama.cpp.

type stubTokenizer struct{}

// Load constructs the tokenizer binding. In this build it always fails fast:
// there is no bundled tokenizer implementation to fall back to, by design —
// spec.md treats the tokenizer as an external collaborator, not something
// this engine may approximate.
func Load(tokenizerPath string) (Tokenizer, error) {
	return nil, NotFoundOrNotBuilt(tokenizerPath)
}

// NotFoundOrNotBuilt is split out so tests can assert on the error kind
// without caring about the message.
func NotFoundOrNotBuilt(path string) error {
	return NotBuiltError{Reason: "missing 'sugarme' build tag, requested " + path}
}

func (stubTokenizer) Encode(text string) ([]int64, string, error) {
	return nil, "", NotBuiltError{Reason: "tokenizer not built"}
}
func (stubTokenizer) Decode(ids []int64) (string, error) {
	return "", NotBuiltError{Reason: "tokenizer not built"}
}
func (stubTokenizer) VocabSize() int { return 0 }
