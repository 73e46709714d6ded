package specdecode

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestDraftOutputsBySequence(t *testing.T) {
	t.Parallel()

	stepMajor := &DraftOutputs{Steps: []DraftStepOutput{
		{Tokens: []int{1, 10}, Probs: []float32{0.5, 0.25}},
		{Tokens: []int{2, 20}, Probs: []float32{0.5, 0.75}},
	}}
	want := []DraftStepOutput{
		{Tokens: []int{1, 2}, Probs: []float32{0.5, 0.5}},
		{Tokens: []int{10, 20}, Probs: []float32{0.25, 0.75}},
	}
	if diff := cmp.Diff(want, stepMajor.BySequence(2)); diff != "" {
		t.Fatalf("step-major mismatch (-want +got):\n%s", diff)
	}

	seqMajor := &DraftOutputs{Transposed: true, Steps: want}
	if diff := cmp.Diff(want, seqMajor.BySequence(2)); diff != "" {
		t.Fatalf("sequence-major mismatch (-want +got):\n%s", diff)
	}

	var declined *DraftOutputs
	if got := declined.BySequence(3); len(got) != 3 || len(got[0].Tokens) != 0 {
		t.Fatalf("nil outputs: got %#v", got)
	}
}

func TestCloneAndSubsetDoNotAlias(t *testing.T) {
	t.Parallel()
	req := testRequest(2, seq(1, 1, 2, 3), seq(2, 4, 5), seq(3, 6))

	clone := req.Clone()
	clone.Groups[0].Seqs[0].PromptTokens[0] = 99
	if req.Groups[0].Seqs[0].PromptTokens[0] != 1 {
		t.Fatal("Clone shares prompt tokens with the original")
	}

	sub := req.Subset([]int{0, 2})
	if got := sub.BatchSize(); got != 2 {
		t.Fatalf("Subset batch size: got %d want 2", got)
	}
	ids := []SequenceID{}
	for _, s := range sub.Sequences() {
		ids = append(ids, s.ID)
	}
	if diff := cmp.Diff([]SequenceID{1, 3}, ids); diff != "" {
		t.Fatalf("Subset ids (-want +got):\n%s", diff)
	}
	sub.Groups[0].Seqs[0].PromptTokens[0] = 42
	if req.Groups[0].Seqs[0].PromptTokens[0] != 1 {
		t.Fatal("Subset shares prompt tokens with the original")
	}
}

func TestSequenceTokens(t *testing.T) {
	t.Parallel()
	s := Sequence{ID: 1, PromptTokens: []int{1, 2}, OutputTokens: []int{3}}
	if diff := cmp.Diff([]int{1, 2, 3}, s.Tokens()); diff != "" {
		t.Fatalf("Tokens (-want +got):\n%s", diff)
	}
	if tok, ok := s.LastToken(); !ok || tok != 3 {
		t.Fatalf("LastToken: got %d, %v", tok, ok)
	}
	if _, ok := (Sequence{}).LastToken(); ok {
		t.Fatal("LastToken on empty sequence should report false")
	}
}

func TestBonusTokenSet(t *testing.T) {
	t.Parallel()
	var empty BonusTokenSet
	if empty.Has(1) || empty.Len() != 0 {
		t.Fatal("nil set must be empty")
	}
	s := NewBonusTokenSet(5, 1, 3)
	if !s.Has(3) || s.Has(2) {
		t.Fatal("membership mismatch")
	}
	if diff := cmp.Diff([]SequenceID{1, 3, 5}, s.IDs()); diff != "" {
		t.Fatalf("IDs (-want +got):\n%s", diff)
	}
}

func TestSpeculativeProposalsAccessors(t *testing.T) {
	t.Parallel()
	p := SpeculativeProposals{
		SeqIDs:      []SequenceID{7, 8},
		TokenIDs:    [][]int{{1, 2, PadToken}, {PadToken, PadToken, PadToken}},
		Lens:        []int{2, 0},
		ProposalLen: 3,
	}
	if diff := cmp.Diff([]int{1, 2}, p.Valid(0)); diff != "" {
		t.Fatalf("Valid (-want +got):\n%s", diff)
	}
	if p.NumValid() != 2 || p.Empty() {
		t.Fatalf("NumValid=%d Empty=%v", p.NumValid(), p.Empty())
	}
	if p.Index(8) != 1 || p.Index(9) != -1 {
		t.Fatal("Index mismatch")
	}
}
