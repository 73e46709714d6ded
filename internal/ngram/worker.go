// Package ngram implements a cache-less proposer that drafts by prompt
// lookup: the trailing n-gram of each sequence is searched for earlier in its
// own context, and the tokens that followed the match become the draft.
package ngram

import (
	"context"
	"fmt"
	"runtime"
	"slices"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/samcharles93/specdraft/internal/logger"
	"github.com/samcharles93/specdraft/internal/specdecode"
)

// Config bounds the n-gram search.
type Config struct {
	// MinN and MaxN bound the pattern length; longer patterns are tried first.
	MinN int `yaml:"min_n" json:"min_n"`
	MaxN int `yaml:"max_n" json:"max_n"`
	// MaxProposalLen skips sequences whose length plus lookahead reaches it.
	// Zero disables the check.
	MaxProposalLen int `yaml:"max_proposal_len" json:"max_proposal_len"`
	// Parallelism caps concurrent per-sequence searches. Zero means GOMAXPROCS.
	Parallelism int `yaml:"parallelism" json:"parallelism"`
}

func (c Config) Validate() error {
	if c.MinN < 1 {
		return fmt.Errorf("ngram: min_n must be >= 1, got %d", c.MinN)
	}
	if c.MaxN < c.MinN {
		return fmt.Errorf("ngram: max_n (%d) must be >= min_n (%d)", c.MaxN, c.MinN)
	}
	if c.MaxProposalLen < 0 || c.Parallelism < 0 {
		return fmt.Errorf("ngram: max_proposal_len and parallelism must be non-negative")
	}
	return nil
}

// Worker is a cache-less ProposerWorker.
type Worker struct {
	specdecode.CacheLessDefaults

	cfg      Config
	proposer *specdecode.Top1Proposer
}

var _ specdecode.ProposerWorker = (*Worker)(nil)

func New(cfg Config) (*Worker, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Parallelism == 0 {
		cfg.Parallelism = runtime.GOMAXPROCS(0)
	}
	w := &Worker{cfg: cfg}
	w.proposer = specdecode.NewTop1Proposer(w, cfg.MaxProposalLen)
	return w, nil
}

func (w *Worker) GetSpecProposals(ctx context.Context, req specdecode.ExecutionRequest, bonus specdecode.BonusTokenSet) (specdecode.SpeculativeProposals, error) {
	return w.proposer.GetSpecProposals(ctx, req, bonus)
}

// SamplerOutput returns sequence-major outputs holding up to sampleLen tokens
// per sequence, or nil when no sequence matched. The bonus set is ignored.
func (w *Worker) SamplerOutput(ctx context.Context, req specdecode.ExecutionRequest, sampleLen int, _ specdecode.BonusTokenSet) (*specdecode.DraftOutputs, error) {
	if sampleLen < 0 {
		return nil, specdecode.ErrInvalidSampleLen
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	seqs := req.Sequences()
	if sampleLen == 0 || len(seqs) == 0 {
		return nil, nil
	}

	results := make([]specdecode.DraftStepOutput, len(seqs))
	var matched atomic.Int64

	var g errgroup.Group
	g.SetLimit(w.cfg.Parallelism)
	for i, s := range seqs {
		g.Go(func() error {
			toks := Lookup(s.Tokens(), w.cfg.MinN, w.cfg.MaxN, sampleLen)
			results[i] = specdecode.DraftStepOutput{Tokens: toks}
			if len(toks) > 0 {
				matched.Add(1)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	log := logger.FromContext(ctx)
	if matched.Load() == 0 {
		log.Debug("ngram: no match in batch", "request_id", req.ID, "batch", len(seqs))
		return nil, nil
	}
	log.Debug("ngram: drafted", "request_id", req.ID, "matched", matched.Load(), "batch", len(seqs))
	return &specdecode.DraftOutputs{Steps: results, Transposed: true}, nil
}

// Lookup searches tokens for an earlier occurrence of its trailing n-gram,
// trying n from maxN down to minN, and returns up to k tokens that followed
// the most recent match. The result is empty, never nil, when nothing matched.
func Lookup(tokens []int, minN, maxN, k int) []int {
	out := []int{}
	if k <= 0 {
		return out
	}
	for n := min(maxN, len(tokens)-1); n >= minN; n-- {
		pattern := tokens[len(tokens)-n:]
		for start := len(tokens) - n - 1; start >= 0; start-- {
			if !slices.Equal(tokens[start:start+n], pattern) {
				continue
			}
			from := start + n
			to := min(from+k, len(tokens))
			return append(out, tokens[from:to]...)
		}
	}
	return out
}
