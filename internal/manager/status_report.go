package manager

import (
	"time"

	"github.com/modeld/inferd/pkg/types"
)

// Status builds a detailed status response for GET /status.
func (e *Engine) Status() types.StatusResponse {
	e.mu.RLock()
	defer e.mu.RUnlock()

	resp := types.StatusResponse{
		State:           string(e.state),
		Error:           e.err,
		UptimeSeconds:   int64(time.Since(e.startTime).Seconds()),
		ServerTimeUnix:  time.Now().Unix(),
		StepsTotal:      e.stepsTotal,
		TokensTotal:     e.tokensTotal,
		ToolCallsTotal:  e.toolCallsTotal,
		RetrievalsTotal: e.retrievalsTotal,
		EvictionsTotal:  e.evictionsTotal,
	}

	resp.Instances = []types.InstanceStatus{
		{ModelID: "llm", Kind: string(types.KindLLM), State: string(e.state), LastUsed: e.startTime.Unix()},
	}
	if e.embedHost != nil {
		resp.Instances = append(resp.Instances, types.InstanceStatus{ModelID: "embedder", Kind: string(types.KindEmbedder), State: string(e.state)})
	}
	if e.reranker != nil {
		resp.Instances = append(resp.Instances, types.InstanceStatus{ModelID: "reranker", Kind: string(types.KindReranker), State: string(e.state)})
	}

	resp.Sessions = make([]types.SessionStatus, 0, len(e.sessions))
	for _, inst := range e.sessions {
		resp.Sessions = append(resp.Sessions, types.SessionStatus{
			SessionID:      inst.id,
			Seq:            inst.conv.Seq(),
			TranscriptSize: len(inst.conv.Transcript()),
			LastUsed:       inst.lastUsed.Unix(),
			QueueLen:       len(inst.queueCh),
			Inflight:       len(inst.genCh),
		})
	}
	return resp
}
