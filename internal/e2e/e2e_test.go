// Package e2e wires the stack together without a real ONNX model or
// tokenizer binary, the way internal/manager's own fakes do: it mounts the
// debug HTTP surface in front of a fake service and runs a chat turn
// through agent orchestration, the session's generate loop, and the LM
// step driver over a fake session. It does not construct a manager.Engine.
package e2e

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/modeld/inferd/internal/agent"
	"github.com/modeld/inferd/internal/httpapi"
	"github.com/modeld/inferd/internal/kv"
	"github.com/modeld/inferd/internal/lm"
	"github.com/modeld/inferd/internal/ortrt"
	"github.com/modeld/inferd/internal/sampling"
	"github.com/modeld/inferd/internal/session"
	"github.com/modeld/inferd/internal/tokenize"
	"github.com/modeld/inferd/internal/toolcall"
	"github.com/modeld/inferd/pkg/types"
)

// fakeTokenizer is a no-op tokenize.Tokenizer double: the fake LM session
// below never inspects token IDs, so encode/decode just need to satisfy
// the interface.
type fakeTokenizer struct{}

func (fakeTokenizer) Encode(text string) ([]int64, string, error) { return []int64{1}, text, nil }
func (fakeTokenizer) Decode(ids []int64) (string, error)          { return "ok", nil }
func (fakeTokenizer) VocabSize() int                              { return 1 }

// fakeSession is a single-token-vocabulary ortrt.Session double with no KV
// past/present slots, enough to drive one full generate step without a
// real model file.
type fakeSession struct{}

func (fakeSession) Inputs() []ortrt.TensorSpec { return nil }
func (fakeSession) Outputs() []ortrt.TensorSpec {
	return []ortrt.TensorSpec{{Name: "logits", Type: ortrt.ElemFP32, Dims: []int64{1, -1, 1}}}
}
func (fakeSession) AllocateOutput(spec ortrt.TensorSpec) (ortrt.Tensor, error) {
	return ortrt.NewFloat32Tensor(spec.Name, spec.Dims, []float32{0}), nil
}
func (fakeSession) NewInput(spec ortrt.TensorSpec, data any) (ortrt.Tensor, error) {
	switch v := data.(type) {
	case []int64:
		return ortrt.NewInt64Tensor(spec.Name, spec.Dims, v), nil
	default:
		return ortrt.NewFloat32Tensor(spec.Name, spec.Dims, nil), nil
	}
}
func (fakeSession) Run(ctx context.Context, inputs, outputs map[string]ortrt.Tensor) error {
	return nil
}
func (fakeSession) Close() error { return nil }

// fakeService satisfies httpapi.Service without needing
// ortrt.Runtime.NewSession to load a real model file.
type fakeService struct {
	models []types.Model
}

func (s *fakeService) ListModels() []types.Model    { return s.models }
func (s *fakeService) Status() types.StatusResponse { return types.StatusResponse{State: "ready"} }
func (s *fakeService) Ready() bool                  { return true }

func newFakeConversation(t *testing.T) *session.Conversation {
	t.Helper()
	mapping, err := kv.Discover(nil, []ortrt.TensorSpec{{Name: "logits"}})
	if err != nil {
		t.Fatalf("kv.Discover: %v", err)
	}
	driver := lm.New(fakeSession{}, mapping, false)
	var tok tokenize.Tokenizer = fakeTokenizer{}
	return session.New("e2e", driver, tok)
}

// TestChatTurnThroughDebugHTTPSurface exercises a full, in-process round
// trip: a conversation session generates one fragment through the agent
// orchestrator with tool injection enabled, and the debug HTTP surface
// reports the resulting model list and ready state alongside it.
func TestChatTurnThroughDebugHTTPSurface(t *testing.T) {
	conv := newFakeConversation(t)
	svc := &fakeService{
		models: []types.Model{{ID: "llm", Kind: types.KindLLM}, {ID: "embedder", Kind: types.KindEmbedder}},
	}

	srv := httptest.NewServer(httpapi.NewMux(svc))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/readyz")
	if err != nil {
		t.Fatalf("readyz: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("readyz status=%d", resp.StatusCode)
	}

	resp, err = http.Get(srv.URL + "/models")
	if err != nil {
		t.Fatalf("models: %v", err)
	}
	defer resp.Body.Close()
	var body map[string][]types.Model
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode models: %v", err)
	}
	if len(body["models"]) != 2 {
		t.Fatalf("expected 2 models, got %d", len(body["models"]))
	}

	reg := toolcall.NewRegistry()
	orch := agent.New(nil, nil, agent.WithTools(reg))
	cfg := sampling.Defaults()
	cfg.MaxTokens = 1
	cfg.UseGreedy = true

	var gotFragment bool
	for r := range orch.ChatTurn(context.Background(), conv, "hello", cfg) {
		if r.Err != nil {
			t.Fatalf("ChatTurn: %v", r.Err)
		}
		gotFragment = true
	}
	if !gotFragment {
		t.Fatal("expected at least one generation step")
	}
	if conv.Transcript() == "" {
		t.Fatal("expected a non-empty transcript after the turn")
	}
}
