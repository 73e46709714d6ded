package specdecode

import (
	"context"
	"sync"
)

// scriptedWorker is a cache-less worker whose SamplerOutput is a function of
// the request. It records every call.
type scriptedWorker struct {
	CacheLessDefaults

	script func(req ExecutionRequest, k int) (*DraftOutputs, error)

	mu    sync.Mutex
	reqs  []ExecutionRequest
	ks    []int
	bonus []BonusTokenSet
}

func newScriptedWorker(script func(req ExecutionRequest, k int) (*DraftOutputs, error)) *scriptedWorker {
	if script == nil {
		script = func(ExecutionRequest, int) (*DraftOutputs, error) { return nil, nil }
	}
	return &scriptedWorker{script: script}
}

func (w *scriptedWorker) SamplerOutput(_ context.Context, req ExecutionRequest, k int, bonus BonusTokenSet) (*DraftOutputs, error) {
	w.mu.Lock()
	w.reqs = append(w.reqs, req.Clone())
	w.ks = append(w.ks, k)
	w.bonus = append(w.bonus, bonus)
	w.mu.Unlock()
	return w.script(req, k)
}

func (w *scriptedWorker) GetSpecProposals(ctx context.Context, req ExecutionRequest, bonus BonusTokenSet) (SpeculativeProposals, error) {
	return NewTop1Proposer(w, 0).GetSpecProposals(ctx, req, bonus)
}

var _ ProposerWorker = (*scriptedWorker)(nil)

// countingScript proposes, for every sequence, the k tokens following its
// context length: len, len+1, ... in sequence-major layout.
func countingScript(req ExecutionRequest, k int) (*DraftOutputs, error) {
	seqs := req.Sequences()
	out := &DraftOutputs{Transposed: true, Steps: make([]DraftStepOutput, len(seqs))}
	for i, s := range seqs {
		for j := range k {
			out.Steps[i].Tokens = append(out.Steps[i].Tokens, s.Len()+j)
		}
	}
	return out, nil
}

func testRequest(k int, seqs ...Sequence) ExecutionRequest {
	req := ExecutionRequest{ID: "req-1", NumLookaheadSlots: k}
	for _, s := range seqs {
		req.Groups = append(req.Groups, SequenceGroup{RequestID: "g", Seqs: []Sequence{s}})
	}
	return req
}

func seq(id SequenceID, prompt ...int) Sequence {
	return Sequence{ID: id, PromptTokens: prompt}
}
