package specdecode

import (
	"context"

	"github.com/samcharles93/specdraft/internal/logger"
)

// RequestExtender derives the next level's request by grafting a level's
// draft tokens onto each sequence's context.
type RequestExtender interface {
	ExtendRequest(req ExecutionRequest, level SpeculativeProposals) ExecutionRequest
}

// RequestExtenderFunc adapts a function to RequestExtender.
type RequestExtenderFunc func(req ExecutionRequest, level SpeculativeProposals) ExecutionRequest

func (f RequestExtenderFunc) ExtendRequest(req ExecutionRequest, level SpeculativeProposals) ExecutionRequest {
	return f(req, level)
}

// AppendDraftTokens returns a copy of req where every sequence present in
// level has its valid draft tokens appended to OutputTokens and counted in
// NumDraftTokens. Sequences the level does not mention are copied unchanged.
func AppendDraftTokens(req ExecutionRequest, level SpeculativeProposals) ExecutionRequest {
	out := req.Clone()
	for gi := range out.Groups {
		seqs := out.Groups[gi].Seqs
		for si := range seqs {
			idx := level.Index(seqs[si].ID)
			if idx < 0 {
				continue
			}
			valid := level.Valid(idx)
			seqs[si].OutputTokens = append(seqs[si].OutputTokens, valid...)
			seqs[si].NumDraftTokens += len(valid)
		}
	}
	return out
}

// Coordinator chains proposals across several speculative levels.
type Coordinator struct {
	Proposer Proposer
	// Extender grafts each level onto the request. When nil the proposer is
	// used if it implements RequestExtender, otherwise AppendDraftTokens.
	Extender RequestExtender
}

func (c *Coordinator) extender() RequestExtender {
	if c.Extender != nil {
		return c.Extender
	}
	if ext, ok := c.Proposer.(RequestExtender); ok {
		return ext
	}
	return RequestExtenderFunc(AppendDraftTokens)
}

// Propose builds a chain of at most numLevels proposals. Each level after the
// first sees the request extended with every draft token produced so far.
// The chain stops early after a level with no valid tokens.
//
// bonus is passed to the first level only; later levels receive a nil set.
// Proposers that count on seeing the same bonus set at every level must not
// rely on Coordinator for that. Later levels start from drafted tokens, so no
// sequence in them can carry a bonus token from verification.
func (c *Coordinator) Propose(ctx context.Context, req ExecutionRequest, bonus BonusTokenSet, numLevels int) (MultiLevelProposals, error) {
	if numLevels < 0 {
		return MultiLevelProposals{}, ErrInvalidNumLevels
	}
	log := logger.FromContext(ctx).With("request_id", req.ID)
	ext := c.extender()

	chain := MultiLevelProposals{Levels: make([]SpeculativeProposals, 0, numLevels)}
	current := req
	currentBonus := bonus
	for level := range numLevels {
		proposals, err := c.Proposer.GetSpecProposals(ctx, current, currentBonus)
		if err != nil {
			log.Debug("chain level failed", "level", level, "error", err)
			return MultiLevelProposals{}, err
		}
		chain.Levels = append(chain.Levels, proposals)

		if proposals.Empty() {
			log.Debug("chain stopped on empty level", "level", level, "levels", numLevels)
			break
		}
		if level == numLevels-1 {
			break
		}
		current = ext.ExtendRequest(current, proposals)
		currentBonus = nil
	}
	return chain, nil
}
