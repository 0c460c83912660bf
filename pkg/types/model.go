// Package types holds data shapes shared across the engine: the model
// registry entry, request/response payloads for the debug HTTP surface, and
// the status projections the /status endpoint renders.
package types

// ModelKind distinguishes the three model roles the engine can load.
type ModelKind string

const (
	KindLLM      ModelKind = "llm"
	KindEmbedder ModelKind = "embedder"
	KindReranker ModelKind = "reranker"
)

// Model describes a loadable model file plus its paired tokenizer file.
type Model struct {
	// Stable identifier for the model.
	// example: llama-3.1-8b-instruct
	ID string `json:"id" example:"llama-3.1-8b-instruct"`
	// Human-friendly name.
	Name string `json:"name" example:"Llama 3.1 8B Instruct"`
	// Absolute path to the model graph file on disk (.onnx).
	Path string `json:"path" example:"/models/llama-3.1-8b-instruct.onnx"`
	// Absolute path to the paired tokenizer file.
	TokenizerPath string `json:"tokenizer_path,omitempty" example:"/models/llama-3.1-8b-instruct.tokenizer.json"`
	// Role this model plays: llm, embedder, or reranker.
	Kind ModelKind `json:"kind" example:"llm"`
	// Optional family used to select default sampling overlays (e.g. llama3, qwen2).
	Family string `json:"family,omitempty" example:"llama3"`
}
