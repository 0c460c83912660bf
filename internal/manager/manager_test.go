package manager

import (
	"context"
	"testing"
	"time"

	"github.com/modeld/inferd/internal/kv"
	"github.com/modeld/inferd/internal/lm"
	"github.com/modeld/inferd/internal/ortrt"
)

// fakeTokenizer is a trivial tokenize.Tokenizer double; the admission and
// eviction logic under test never drives it through an actual generate
// call, so its behavior doesn't matter beyond satisfying the interface.
type fakeTokenizer struct{}

func (fakeTokenizer) Encode(text string) ([]int64, string, error) { return nil, "", nil }
func (fakeTokenizer) Decode(ids []int64) (string, error)          { return "", nil }
func (fakeTokenizer) VocabSize() int                              { return 0 }

// fakeSession is a minimal ortrt.Session double with no KV slots and a
// single-token vocabulary, enough to exercise admission/eviction without
// a real model file.
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

func newTestEngine(t *testing.T, maxSessions, maxQueue int) *Engine {
	t.Helper()
	mapping, err := kv.Discover(nil, []ortrt.TensorSpec{{Name: "logits"}})
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	tok := fakeTokenizer{}
	driver := lm.New(fakeSession{}, mapping, false)
	e := &Engine{
		state:     StateReady,
		cfg:       EngineConfig{MaxSessions: maxSessions, MaxQueueDepth: maxQueue, MaxWait: 50 * time.Millisecond}.withDefaults(),
		sessions:  make(map[string]*sessionInstance),
		startTime: time.Now(),
		llmDriver: driver,
		llmTok:    tok,
	}
	return e
}

func TestGetOrCreateSessionIsIdempotent(t *testing.T) {
	e := newTestEngine(t, 4, 4)
	a, err := e.getOrCreateSession("s1")
	if err != nil {
		t.Fatalf("getOrCreateSession: %v", err)
	}
	b, err := e.getOrCreateSession("s1")
	if err != nil {
		t.Fatalf("getOrCreateSession: %v", err)
	}
	if a != b {
		t.Fatal("expected the same session instance on repeated calls")
	}
}

func TestBeginSessionSerializesPerSession(t *testing.T) {
	e := newTestEngine(t, 4, 1)
	inst, release, err := e.beginSession(context.Background(), "s1")
	if err != nil {
		t.Fatalf("beginSession: %v", err)
	}
	if inst.id != "s1" {
		t.Fatalf("unexpected session id %q", inst.id)
	}

	_, _, err = e.beginSession(context.Background(), "s1")
	if !IsTooBusy(err) {
		t.Fatalf("expected tooBusyError while the slot is held, got %v", err)
	}

	release()

	if _, release2, err := e.beginSession(context.Background(), "s1"); err != nil {
		t.Fatalf("beginSession after release: %v", err)
	} else {
		release2()
	}
}

func TestBeginSessionRespectsContextCancellation(t *testing.T) {
	e := newTestEngine(t, 4, 1)
	_, release, err := e.beginSession(context.Background(), "s1")
	if err != nil {
		t.Fatalf("beginSession: %v", err)
	}
	defer release()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, _, err := e.beginSession(ctx, "s1"); err == nil {
		t.Fatal("expected an error from a canceled context")
	}
}

func TestGetOrCreateSessionEvictsUnderPressure(t *testing.T) {
	e := newTestEngine(t, 1, 4)
	first, err := e.getOrCreateSession("s1")
	if err != nil {
		t.Fatalf("getOrCreateSession: %v", err)
	}
	first.lastUsed = time.Now().Add(-time.Hour)

	second, err := e.getOrCreateSession("s2")
	if err != nil {
		t.Fatalf("getOrCreateSession under pressure: %v", err)
	}
	if _, ok := e.getSession("s1"); ok {
		t.Fatal("expected s1 to have been evicted to make room for s2")
	}
	if second.id != "s2" {
		t.Fatalf("unexpected session id %q", second.id)
	}
	if e.evictionsTotal != 1 {
		t.Fatalf("expected evictionsTotal=1, got %d", e.evictionsTotal)
	}
}

func TestGetOrCreateSessionTooBusyWhenAllSessionsAreActive(t *testing.T) {
	e := newTestEngine(t, 1, 4)
	inst, err := e.getOrCreateSession("s1")
	if err != nil {
		t.Fatalf("getOrCreateSession: %v", err)
	}
	inst.genCh <- struct{}{} // mark s1 in-flight so it cannot be evicted

	if _, err := e.getOrCreateSession("s2"); !IsTooBusy(err) {
		t.Fatalf("expected tooBusyError, got %v", err)
	}
}

func TestEvictIdleOnlyTouchesSessionsPastTheThreshold(t *testing.T) {
	e := newTestEngine(t, 4, 4)
	old, err := e.getOrCreateSession("old")
	if err != nil {
		t.Fatalf("getOrCreateSession: %v", err)
	}
	old.lastUsed = time.Now().Add(-time.Hour)

	if _, err := e.getOrCreateSession("fresh"); err != nil {
		t.Fatalf("getOrCreateSession: %v", err)
	}

	evicted := e.EvictIdle(time.Minute)
	if evicted != 1 {
		t.Fatalf("expected 1 eviction, got %d", evicted)
	}
	if _, ok := e.getSession("old"); ok {
		t.Fatal("expected old session to be evicted")
	}
	if _, ok := e.getSession("fresh"); !ok {
		t.Fatal("expected fresh session to survive")
	}
}

func TestCloseSessionRemovesItFromTheMap(t *testing.T) {
	e := newTestEngine(t, 4, 4)
	if _, err := e.getOrCreateSession("s1"); err != nil {
		t.Fatalf("getOrCreateSession: %v", err)
	}
	if err := e.CloseSession("s1"); err != nil {
		t.Fatalf("CloseSession: %v", err)
	}
	if _, ok := e.getSession("s1"); ok {
		t.Fatal("expected s1 to be gone after CloseSession")
	}
	if err := e.CloseSession("s1"); err != nil {
		t.Fatalf("CloseSession on an already-closed session should be a no-op: %v", err)
	}
}

func TestStatusReportsSessionsAndCounters(t *testing.T) {
	e := newTestEngine(t, 4, 4)
	if _, err := e.getOrCreateSession("s1"); err != nil {
		t.Fatalf("getOrCreateSession: %v", err)
	}
	e.stepsTotal = 3
	e.tokensTotal = 40

	status := e.Status()
	if len(status.Sessions) != 1 || status.Sessions[0].SessionID != "s1" {
		t.Fatalf("unexpected sessions in status: %+v", status.Sessions)
	}
	if status.StepsTotal != 3 || status.TokensTotal != 40 {
		t.Fatalf("unexpected counters: %+v", status)
	}
}
