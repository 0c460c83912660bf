// Package registry resolves the explicit model/tokenizer file paths
// spec.md §6's CLI contract takes as positional arguments into the
// []types.Model slice internal/manager.EngineConfig is built from. Unlike
// the teacher's directory-scanning registry, this one never lists a
// directory: every path is named on the command line, so the only job
// left is expanding "~" and checking the file exists before the engine
// tries to load it as a model graph.
package registry

import (
	"fmt"

	"github.com/modeld/inferd/internal/common/fsutil"
	"github.com/modeld/inferd/pkg/types"
)

// Paths mirrors spec.md §6's positional CLI arguments: the LLM and
// embedder are mandatory, the reranker pair is optional.
type Paths struct {
	LLMModel        string
	LLMTokenizer    string
	EmbedModel      string
	EmbedTokenizer  string
	RerankModel     string
	RerankTokenizer string

	// LLMFamily selects the LLM's sampling overlay (internal/sampling's
	// family dispatch table), e.g. "llama3", "qwen2". Empty means "use the
	// global defaults".
	LLMFamily string
}

// MissingFileError names the CLI argument and resolved path that failed
// to resolve to an existing file.
type MissingFileError struct {
	Arg  string
	Path string
}

func (e MissingFileError) Error() string {
	return fmt.Sprintf("%s: no such file: %s", e.Arg, e.Path)
}

// Resolve expands "~" in every configured path, checks each resolves to
// an existing file, and returns the model registry entries the engine
// loads from. The reranker pair is skipped entirely when both of its
// paths are empty.
func Resolve(p Paths) ([]types.Model, error) {
	llmModel, err := resolveRequired("llm-model-file", p.LLMModel)
	if err != nil {
		return nil, err
	}
	llmTok, err := resolveRequired("llm-tokenizer-file", p.LLMTokenizer)
	if err != nil {
		return nil, err
	}
	embedModel, err := resolveRequired("embedding-model-file", p.EmbedModel)
	if err != nil {
		return nil, err
	}
	embedTok, err := resolveRequired("embedding-tokenizer-file", p.EmbedTokenizer)
	if err != nil {
		return nil, err
	}

	models := []types.Model{
		{ID: "llm", Name: "llm", Path: llmModel, TokenizerPath: llmTok, Kind: types.KindLLM, Family: p.LLMFamily},
		{ID: "embedder", Name: "embedder", Path: embedModel, TokenizerPath: embedTok, Kind: types.KindEmbedder},
	}

	if p.RerankModel == "" && p.RerankTokenizer == "" {
		return models, nil
	}
	rerankModel, err := resolveRequired("reranker-model-file", p.RerankModel)
	if err != nil {
		return nil, err
	}
	rerankTok, err := resolveRequired("reranker-tokenizer-file", p.RerankTokenizer)
	if err != nil {
		return nil, err
	}
	models = append(models, types.Model{ID: "reranker", Name: "reranker", Path: rerankModel, TokenizerPath: rerankTok, Kind: types.KindReranker})
	return models, nil
}

func resolveRequired(arg, path string) (string, error) {
	if path == "" {
		return "", MissingFileError{Arg: arg, Path: "(not provided)"}
	}
	expanded, err := fsutil.ExpandHome(path)
	if err != nil {
		return "", fmt.Errorf("%s: %w", arg, err)
	}
	if !fsutil.PathExists(expanded) {
		return "", MissingFileError{Arg: arg, Path: expanded}
	}
	return expanded, nil
}
