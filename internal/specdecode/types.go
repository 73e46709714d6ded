package specdecode

import (
	"slices"
)

// PadToken fills proposal slots past a sequence's valid length.
const PadToken = -1

// SequenceID identifies one decoding sequence within a batch.
type SequenceID int64

// Sequence is the decoding context of a single sequence.
type Sequence struct {
	ID           SequenceID `json:"id"`
	PromptTokens []int      `json:"prompt_tokens"`
	OutputTokens []int      `json:"output_tokens"`

	// NumDraftTokens counts the trailing output tokens that were grafted on
	// by an earlier chain level and have not been verified yet.
	NumDraftTokens int `json:"num_draft_tokens,omitempty"`
}

// Len returns the number of context tokens (prompt plus output).
func (s Sequence) Len() int {
	return len(s.PromptTokens) + len(s.OutputTokens)
}

// Tokens returns a fresh slice holding the full context.
func (s Sequence) Tokens() []int {
	out := make([]int, 0, s.Len())
	out = append(out, s.PromptTokens...)
	return append(out, s.OutputTokens...)
}

// LastToken returns the final context token, or false for an empty context.
func (s Sequence) LastToken() (int, bool) {
	if n := len(s.OutputTokens); n > 0 {
		return s.OutputTokens[n-1], true
	}
	if n := len(s.PromptTokens); n > 0 {
		return s.PromptTokens[n-1], true
	}
	return 0, false
}

func (s Sequence) clone() Sequence {
	s.PromptTokens = slices.Clone(s.PromptTokens)
	s.OutputTokens = slices.Clone(s.OutputTokens)
	return s
}

type SequenceGroup struct {
	RequestID string     `json:"request_id"`
	Seqs      []Sequence `json:"seqs"`
	IsPrompt  bool       `json:"is_prompt,omitempty"`
}

// ExecutionRequest describes one batch round. The scheduler owns it; proposers
// only read it and derive new values from it.
type ExecutionRequest struct {
	ID                string          `json:"id"`
	Groups            []SequenceGroup `json:"groups"`
	NumLookaheadSlots int             `json:"num_lookahead_slots"`
}

// Sequences returns the batch in its canonical order: groups in order, then
// sequences in order within each group.
func (r ExecutionRequest) Sequences() []Sequence {
	out := make([]Sequence, 0, r.BatchSize())
	for _, g := range r.Groups {
		out = append(out, g.Seqs...)
	}
	return out
}

func (r ExecutionRequest) BatchSize() int {
	n := 0
	for _, g := range r.Groups {
		n += len(g.Seqs)
	}
	return n
}

// Clone returns a deep copy that shares no slices with r.
func (r ExecutionRequest) Clone() ExecutionRequest {
	out := r
	out.Groups = make([]SequenceGroup, len(r.Groups))
	for i, g := range r.Groups {
		ng := g
		ng.Seqs = make([]Sequence, len(g.Seqs))
		for j, s := range g.Seqs {
			ng.Seqs[j] = s.clone()
		}
		out.Groups[i] = ng
	}
	return out
}

// Subset returns a deep copy holding only the sequences at the given batch
// positions. Groups left without sequences are dropped.
func (r ExecutionRequest) Subset(indices []int) ExecutionRequest {
	keep := make(map[int]struct{}, len(indices))
	for _, i := range indices {
		keep[i] = struct{}{}
	}
	out := ExecutionRequest{ID: r.ID, NumLookaheadSlots: r.NumLookaheadSlots}
	pos := 0
	for _, g := range r.Groups {
		ng := SequenceGroup{RequestID: g.RequestID, IsPrompt: g.IsPrompt}
		for _, s := range g.Seqs {
			if _, ok := keep[pos]; ok {
				ng.Seqs = append(ng.Seqs, s.clone())
			}
			pos++
		}
		if len(ng.Seqs) > 0 {
			out.Groups = append(out.Groups, ng)
		}
	}
	return out
}

// BonusTokenSet holds the sequences that received a bonus token in the
// previous round. The zero value is an empty set.
type BonusTokenSet map[SequenceID]struct{}

func NewBonusTokenSet(ids ...SequenceID) BonusTokenSet {
	s := make(BonusTokenSet, len(ids))
	for _, id := range ids {
		s[id] = struct{}{}
	}
	return s
}

func (s BonusTokenSet) Has(id SequenceID) bool {
	_, ok := s[id]
	return ok
}

func (s BonusTokenSet) Len() int { return len(s) }

// IDs returns the members in ascending order.
func (s BonusTokenSet) IDs() []SequenceID {
	ids := make([]SequenceID, 0, len(s))
	for id := range s {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// DraftStepOutput is one sampling step for the batch, or one sequence's
// tokens across all steps when the enclosing DraftOutputs is transposed.
// Probs is nil unless probabilities were negotiated.
type DraftStepOutput struct {
	Tokens []int     `json:"tokens"`
	Probs  []float32 `json:"probs,omitempty"`
}

// DraftOutputs is the result of SamplerOutput. A nil *DraftOutputs means the
// proposer declined the round.
//
// When Transposed is false the outer dimension is the speculative step
// (step-major) and Steps[k].Tokens[i] is sequence i's token at step k. When
// true it is sequence-major and Steps[i].Tokens are sequence i's tokens.
type DraftOutputs struct {
	Steps      []DraftStepOutput `json:"steps"`
	Transposed bool              `json:"transposed"`
}

// BySequence returns the outputs in sequence-major form for a batch of n
// sequences, whatever the layout. Missing entries become empty outputs.
func (o *DraftOutputs) BySequence(n int) []DraftStepOutput {
	out := make([]DraftStepOutput, n)
	if o == nil {
		return out
	}
	if o.Transposed {
		copy(out, o.Steps)
		return out
	}
	for _, step := range o.Steps {
		for i := 0; i < n && i < len(step.Tokens); i++ {
			out[i].Tokens = append(out[i].Tokens, step.Tokens[i])
			if step.Probs != nil && i < len(step.Probs) {
				out[i].Probs = append(out[i].Probs, step.Probs[i])
			}
		}
	}
	return out
}

// SpeculativeProposals is a single-level proposal for a batch. TokenIDs rows
// are padded with PadToken up to ProposalLen; Lens holds the valid lengths.
type SpeculativeProposals struct {
	SeqIDs      []SequenceID `json:"seq_ids"`
	TokenIDs    [][]int      `json:"token_ids"`
	Probs       [][]float32  `json:"probs,omitempty"`
	Lens        []int        `json:"lens"`
	ProposalLen int          `json:"proposal_len"`
}

// Valid returns the valid draft tokens of batch position i.
func (p SpeculativeProposals) Valid(i int) []int {
	return p.TokenIDs[i][:p.Lens[i]]
}

// NumValid returns the total number of valid draft tokens.
func (p SpeculativeProposals) NumValid() int {
	n := 0
	for _, l := range p.Lens {
		n += l
	}
	return n
}

// Empty reports whether no sequence received a valid draft token.
func (p SpeculativeProposals) Empty() bool {
	return p.NumValid() == 0
}

// Index returns the batch position of id, or -1.
func (p SpeculativeProposals) Index(id SequenceID) int {
	return slices.Index(p.SeqIDs, id)
}

// MultiLevelProposals is a single chained draft path, one entry per level.
type MultiLevelProposals struct {
	Levels []SpeculativeProposals `json:"levels"`
}

func (m MultiLevelProposals) Depth() int { return len(m.Levels) }
