// Package multistep implements a cache-backed proposer: a small draft model
// runs autoregressively for several steps per round and keeps one cache entry
// per consumed token so later rounds only encode what changed.
package multistep

import (
	"context"
	"fmt"
	"sync"

	"github.com/samcharles93/specdraft/internal/draftlm"
	"github.com/samcharles93/specdraft/internal/logger"
	"github.com/samcharles93/specdraft/internal/logits"
	"github.com/samcharles93/specdraft/internal/specdecode"
)

type Config struct {
	// BlockSize is the number of tokens per cache block.
	BlockSize int `yaml:"block_size" json:"block_size"`
	// MemoryBudgetBytes and CPUSwapBytes size DetermineNumAvailableBlocks.
	MemoryBudgetBytes int64 `yaml:"memory_budget_bytes" json:"memory_budget_bytes"`
	CPUSwapBytes      int64 `yaml:"cpu_swap_bytes" json:"cpu_swap_bytes"`
	// MaxModelLen bounds context plus lookahead. Zero disables the bound.
	MaxModelLen int `yaml:"max_model_len" json:"max_model_len"`

	Sampler logits.SamplerConfig `yaml:"sampler" json:"sampler"`
}

const DefaultBlockSize = 16

// Stats counts cache maintenance work since the worker was created.
type Stats struct {
	Backfilled int `json:"backfilled"`
	Prefilled  int `json:"prefilled"`
	RolledBack int `json:"rolled_back"`
	Drafted    int `json:"drafted"`
}

// Worker is a cache-backed ProposerWorker. All methods are safe for
// concurrent use; cache-mutating calls are serialised.
type Worker struct {
	specdecode.LoRANotSupported

	model    *draftlm.Model
	cfg      Config
	proposer *specdecode.Top1Proposer

	mu      sync.Mutex
	sampler *logits.Sampler
	cache   *seqCache
	honored specdecode.SamplingOptions
	stats   Stats
}

var (
	_ specdecode.ProposerWorker  = (*Worker)(nil)
	_ specdecode.RequestExtender = (*Worker)(nil)
)

func New(model *draftlm.Model, cfg Config) (*Worker, error) {
	if model == nil {
		return nil, fmt.Errorf("multistep: nil draft model")
	}
	if cfg.BlockSize == 0 {
		cfg.BlockSize = DefaultBlockSize
	}
	if cfg.BlockSize < 0 || cfg.MaxModelLen < 0 {
		return nil, fmt.Errorf("multistep: block_size and max_model_len must be non-negative")
	}
	w := &Worker{
		model:   model,
		cfg:     cfg,
		sampler: logits.NewSampler(cfg.Sampler),
	}
	w.proposer = specdecode.NewTop1Proposer(w, cfg.MaxModelLen)
	return w, nil
}

func (w *Worker) GetSpecProposals(ctx context.Context, req specdecode.ExecutionRequest, bonus specdecode.BonusTokenSet) (specdecode.SpeculativeProposals, error) {
	return w.proposer.GetSpecProposals(ctx, req, bonus)
}

// SamplerOutput drafts sampleLen steps for the batch and returns them
// step-major. Before drafting, each sequence's cache is brought in line with
// its context; for sequences in bonus this backfills the second-to-last
// token, which the previous round never fed to the draft model.
func (w *Worker) SamplerOutput(ctx context.Context, req specdecode.ExecutionRequest, sampleLen int, bonus specdecode.BonusTokenSet) (*specdecode.DraftOutputs, error) {
	if sampleLen < 0 {
		return nil, specdecode.ErrInvalidSampleLen
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.cache == nil {
		return nil, ErrCacheNotInitialized
	}

	seqs := req.Sequences()
	steps := make([]specdecode.DraftStepOutput, sampleLen)
	for k := range steps {
		steps[k].Tokens = make([]int, len(seqs))
		if w.honored.Has(specdecode.IncludeProbs) {
			steps[k].Probs = make([]float32, len(seqs))
		}
	}

	log := logger.FromContext(ctx).With("request_id", req.ID)
	for i, s := range seqs {
		toks, probs, err := w.draftLocked(log, s, sampleLen, bonus.Has(s.ID))
		if err != nil {
			return nil, err
		}
		for k := range steps {
			steps[k].Tokens[i] = specdecode.PadToken
			if k < len(toks) {
				steps[k].Tokens[i] = toks[k]
				if steps[k].Probs != nil {
					steps[k].Probs[i] = probs[k]
				}
			}
		}
	}
	return &specdecode.DraftOutputs{Steps: steps}, nil
}

// draftLocked syncs the cache for s and samples up to k tokens. w.mu must be
// held.
func (w *Worker) draftLocked(log logger.Logger, s specdecode.Sequence, k int, hasBonus bool) ([]int, []float32, error) {
	ctxToks := s.Tokens()
	if len(ctxToks) == 0 {
		log.Debug("multistep: empty context", "seq_id", s.ID)
		return nil, nil, nil
	}
	if err := w.syncLocked(log, s.ID, ctxToks[:len(ctxToks)-1], hasBonus); err != nil {
		return nil, nil, err
	}

	toks := make([]int, 0, k)
	probs := make([]float32, 0, k)
	recent := ctxToks
	last := ctxToks[len(ctxToks)-1]
	state := w.cache.last(s.ID)
	for range k {
		h, logitVec := w.model.Forward(state, last)
		if err := w.cache.push(s.ID, last, h); err != nil {
			return nil, nil, err
		}
		tok, p := w.sampler.SampleWithProb(logitVec, recent, nil)
		if w.honored.Has(specdecode.ModifyGreedyProbsInPlace) && w.sampler.Greedy() {
			p = 1
		}
		toks = append(toks, tok)
		probs = append(probs, p)
		recent = append(recent, tok)
		state, last = h, tok
	}
	w.stats.Drafted += len(toks)
	return toks, probs, nil
}

// syncLocked makes the cache of id hold exactly want: rejected drafts are
// rolled back and missing tokens are encoded.
func (w *Worker) syncLocked(log logger.Logger, id specdecode.SequenceID, want []int, hasBonus bool) error {
	kept, dropped := w.cache.truncate(id, want)
	if dropped > 0 {
		w.stats.RolledBack += dropped
		log.Debug("multistep: rolled back cache", "seq_id", id, "dropped", dropped)
	}

	missing := len(want) - kept
	switch {
	case missing == 0:
		if hasBonus {
			log.Debug("multistep: bonus token with nothing to backfill", "seq_id", id)
		}
		return nil
	case hasBonus && missing == 1:
		w.stats.Backfilled++
		log.Debug("multistep: backfilling bonus position", "seq_id", id, "pos", kept)
	default:
		w.stats.Prefilled += missing
	}

	state := w.cache.last(id)
	for _, tok := range want[kept:] {
		state = w.model.Step(state, tok)
		if err := w.cache.push(id, tok, state); err != nil {
			return err
		}
	}
	return nil
}

// ExecuteModel runs a single draft step for every sequence in req.
func (w *Worker) ExecuteModel(ctx context.Context, req *specdecode.ExecutionRequest) ([]specdecode.DraftStepOutput, error) {
	if req == nil {
		return []specdecode.DraftStepOutput{}, nil
	}
	out, err := w.SamplerOutput(ctx, *req, 1, nil)
	if err != nil {
		return nil, err
	}
	return out.Steps, nil
}

func (w *Worker) CacheBlockSizeBytes() int {
	return w.cfg.BlockSize * w.model.StateBytes()
}

func (w *Worker) DetermineNumAvailableBlocks() (int, int, error) {
	block := int64(w.CacheBlockSizeBytes())
	return int(w.cfg.MemoryBudgetBytes / block), int(w.cfg.CPUSwapBytes / block), nil
}

// InitializeCache sizes the cache to numGPUBlocks blocks and drops every
// tracked sequence. CPU blocks are accepted but unused.
func (w *Worker) InitializeCache(numGPUBlocks, numCPUBlocks int) error {
	if numGPUBlocks <= 0 {
		return fmt.Errorf("multistep: no memory for cache blocks (gpu=%d)", numGPUBlocks)
	}
	if numCPUBlocks < 0 {
		return fmt.Errorf("multistep: negative cpu blocks %d", numCPUBlocks)
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.cache = newSeqCache(numGPUBlocks * w.cfg.BlockSize)
	return nil
}

// Configure honors both sampling options. Honored options accumulate.
func (w *Worker) Configure(opts specdecode.SamplingOptions) specdecode.SamplingOptions {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.honored |= opts & (specdecode.IncludeProbs | specdecode.ModifyGreedyProbsInPlace)
	return w.honored
}

// ExtendRequest grafts level onto req and shrinks the lookahead so that the
// longest sequence which can still draft a token keeps len+k < MaxModelLen.
// Sequences already past that point are left for Top1Proposer to skip; they
// do not shorten the lookahead of the rest of the batch.
func (w *Worker) ExtendRequest(req specdecode.ExecutionRequest, level specdecode.SpeculativeProposals) specdecode.ExecutionRequest {
	out := specdecode.AppendDraftTokens(req, level)
	if w.cfg.MaxModelLen == 0 {
		return out
	}
	longest := -1
	for _, s := range out.Sequences() {
		if s.Len()+1 < w.cfg.MaxModelLen {
			longest = max(longest, s.Len())
		}
	}
	if longest < 0 {
		return out
	}
	out.NumLookaheadSlots = min(out.NumLookaheadSlots, w.cfg.MaxModelLen-longest-1)
	return out
}

// Forget drops finished sequences from the cache.
func (w *Worker) Forget(ids ...specdecode.SequenceID) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.cache == nil {
		return
	}
	for _, id := range ids {
		w.cache.drop(id)
	}
}

func (w *Worker) Stats() Stats {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.stats
}

// CachedTokens returns the number of cache entries held for id.
func (w *Worker) CachedTokens(id specdecode.SequenceID) int {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.cache == nil {
		return 0
	}
	return w.cache.size(id)
}

// CacheUsage returns used and total cache capacity in tokens.
func (w *Worker) CacheUsage() (used, capacity int) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.cache == nil {
		return 0, 0
	}
	return w.cache.used, w.cache.capacity
}
