package specdecode

import (
	"context"

	"github.com/samcharles93/specdraft/internal/logger"
)

// Top1Proposer builds single-path proposals from a worker's SamplerOutput.
// Every sequence gets at most NumLookaheadSlots tokens; sequences that would
// outgrow MaxProposalLen are skipped and get zero valid tokens.
type Top1Proposer struct {
	worker         SamplerOutputer
	maxProposalLen int
}

// NewTop1Proposer wraps w. A maxProposalLen of zero disables the length check.
func NewTop1Proposer(w SamplerOutputer, maxProposalLen int) *Top1Proposer {
	return &Top1Proposer{worker: w, maxProposalLen: maxProposalLen}
}

func (p *Top1Proposer) GetSpecProposals(ctx context.Context, req ExecutionRequest, bonus BonusTokenSet) (SpeculativeProposals, error) {
	if err := ctx.Err(); err != nil {
		return SpeculativeProposals{}, err
	}
	k := req.NumLookaheadSlots
	if k < 0 {
		return SpeculativeProposals{}, ErrInvalidSampleLen
	}

	seqs := req.Sequences()
	out := emptyProposals(seqs, k)
	if k == 0 || len(seqs) == 0 {
		return out, nil
	}

	log := logger.FromContext(ctx).With("request_id", req.ID)

	keep := make([]int, 0, len(seqs))
	for i, s := range seqs {
		if p.maxProposalLen > 0 && s.Len()+k >= p.maxProposalLen {
			log.Debug("skipping sequence past max proposal length", "seq_id", s.ID, "len", s.Len(), "max", p.maxProposalLen)
			continue
		}
		keep = append(keep, i)
	}
	if len(keep) == 0 {
		return out, nil
	}

	sub := req
	if len(keep) < len(seqs) {
		sub = req.Subset(keep)
	}

	outputs, err := p.worker.SamplerOutput(ctx, sub, k, bonus)
	if err != nil {
		return SpeculativeProposals{}, err
	}
	if outputs == nil {
		log.Debug("proposer declined round", "batch", len(keep))
		return out, nil
	}

	bySeq := outputs.BySequence(len(keep))
	for j, i := range keep {
		n := 0
		for _, tok := range bySeq[j].Tokens {
			if n == k || tok == PadToken {
				break
			}
			out.TokenIDs[i][n] = tok
			n++
		}
		out.Lens[i] = n

		probs := bySeq[j].Probs
		if probs == nil {
			continue
		}
		if out.Probs == nil {
			out.Probs = make([][]float32, len(seqs))
			for r := range out.Probs {
				out.Probs[r] = make([]float32, k)
			}
		}
		copy(out.Probs[i], probs[:min(len(probs), n)])
	}
	return out, nil
}

func emptyProposals(seqs []Sequence, k int) SpeculativeProposals {
	out := SpeculativeProposals{
		SeqIDs:      make([]SequenceID, len(seqs)),
		TokenIDs:    make([][]int, len(seqs)),
		Lens:        make([]int, len(seqs)),
		ProposalLen: k,
	}
	for i, s := range seqs {
		out.SeqIDs[i] = s.ID
		row := make([]int, k)
		for j := range row {
			row[j] = PadToken
		}
		out.TokenIDs[i] = row
	}
	return out
}
