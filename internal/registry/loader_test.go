package registry

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/modeld/inferd/pkg/types"
)

func touch(t *testing.T, dir, name string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, []byte(""), 0o644); err != nil {
		t.Fatalf("write %s: %v", p, err)
	}
	return p
}

func TestResolveMandatoryPairs(t *testing.T) {
	dir := t.TempDir()
	llmModel := touch(t, dir, "llm.onnx")
	llmTok := touch(t, dir, "llm.tokenizer.json")
	embedModel := touch(t, dir, "embed.onnx")
	embedTok := touch(t, dir, "embed.tokenizer.json")

	models, err := Resolve(Paths{
		LLMModel: llmModel, LLMTokenizer: llmTok,
		EmbedModel: embedModel, EmbedTokenizer: embedTok,
	})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if len(models) != 2 {
		t.Fatalf("expected 2 models without a reranker pair, got %d", len(models))
	}
	if models[0].Kind != types.KindLLM || models[1].Kind != types.KindEmbedder {
		t.Fatalf("unexpected kinds: %+v", models)
	}
}

func TestResolveSetsLLMFamilyOnLLMModelOnly(t *testing.T) {
	dir := t.TempDir()
	models, err := Resolve(Paths{
		LLMModel: touch(t, dir, "llm.onnx"), LLMTokenizer: touch(t, dir, "llm.tok"),
		EmbedModel: touch(t, dir, "embed.onnx"), EmbedTokenizer: touch(t, dir, "embed.tok"),
		LLMFamily: "llama3",
	})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if models[0].Family != "llama3" {
		t.Fatalf("llm model family = %q, want llama3", models[0].Family)
	}
	if models[1].Family != "" {
		t.Fatalf("embedder model family = %q, want empty", models[1].Family)
	}
}

func TestResolveIncludesRerankerWhenProvided(t *testing.T) {
	dir := t.TempDir()
	p := Paths{
		LLMModel: touch(t, dir, "llm.onnx"), LLMTokenizer: touch(t, dir, "llm.tok"),
		EmbedModel: touch(t, dir, "embed.onnx"), EmbedTokenizer: touch(t, dir, "embed.tok"),
		RerankModel: touch(t, dir, "rerank.onnx"), RerankTokenizer: touch(t, dir, "rerank.tok"),
	}
	models, err := Resolve(p)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if len(models) != 3 || models[2].Kind != types.KindReranker {
		t.Fatalf("expected a reranker entry, got %+v", models)
	}
}

func TestResolveMissingFileFailsWithPath(t *testing.T) {
	dir := t.TempDir()
	_, err := Resolve(Paths{
		LLMModel: filepath.Join(dir, "missing.onnx"), LLMTokenizer: touch(t, dir, "llm.tok"),
		EmbedModel: touch(t, dir, "embed.onnx"), EmbedTokenizer: touch(t, dir, "embed.tok"),
	})
	if err == nil {
		t.Fatal("expected an error for a nonexistent llm model file")
	}
	var missing MissingFileError
	if !asMissingFileError(err, &missing) {
		t.Fatalf("expected MissingFileError, got %T: %v", err, err)
	}
	if missing.Arg != "llm-model-file" {
		t.Fatalf("unexpected arg: %q", missing.Arg)
	}
}

func TestResolveRequiresBothEmbedderPaths(t *testing.T) {
	dir := t.TempDir()
	_, err := Resolve(Paths{
		LLMModel: touch(t, dir, "llm.onnx"), LLMTokenizer: touch(t, dir, "llm.tok"),
		EmbedModel: touch(t, dir, "embed.onnx"),
	})
	if err == nil {
		t.Fatal("expected an error when the embedder tokenizer path is missing")
	}
}

func asMissingFileError(err error, out *MissingFileError) bool {
	if e, ok := err.(MissingFileError); ok {
		*out = e
		return true
	}
	return false
}
