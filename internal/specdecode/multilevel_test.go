package specdecode

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestChainSingleLevelMatchesDirectCall(t *testing.T) {
	t.Parallel()
	req := testRequest(2, seq(1, 1, 2, 3), seq(2, 7))

	direct, err := newScriptedWorker(countingScript).GetSpecProposals(context.Background(), req, nil)
	if err != nil {
		t.Fatalf("direct: %v", err)
	}

	c := &Coordinator{Proposer: newScriptedWorker(countingScript)}
	chain, err := c.Propose(context.Background(), req, NewBonusTokenSet(), 1)
	if err != nil {
		t.Fatalf("Propose: %v", err)
	}
	if chain.Depth() != 1 {
		t.Fatalf("depth: got %d want 1", chain.Depth())
	}
	if diff := cmp.Diff(direct, chain.Levels[0]); diff != "" {
		t.Fatalf("level 0 differs from direct call (-direct +chain):\n%s", diff)
	}
}

func TestChainStopsAfterEmptyLevel(t *testing.T) {
	t.Parallel()
	w := newScriptedWorker(nil)
	c := &Coordinator{Proposer: w}

	chain, err := c.Propose(context.Background(), testRequest(2, seq(1, 1), seq(2, 2)), nil, 3)
	if err != nil {
		t.Fatalf("Propose: %v", err)
	}
	if chain.Depth() != 1 {
		t.Fatalf("depth: got %d want 1", chain.Depth())
	}
	if !chain.Levels[0].Empty() {
		t.Fatal("level 0 should be empty")
	}
	if len(w.reqs) != 1 {
		t.Fatalf("worker calls: got %d want 1", len(w.reqs))
	}
}

// Regression guard: every level must be produced and must see the drafts of
// all previous levels. Returning after the first iteration breaks this.
func TestChainThreeLevelsExtendsRequest(t *testing.T) {
	t.Parallel()
	w := newScriptedWorker(countingScript)
	c := &Coordinator{Proposer: w}
	req := testRequest(2, seq(1, 10, 11), seq(2, 20, 21, 22))
	before := req.Clone()

	chain, err := c.Propose(context.Background(), req, NewBonusTokenSet(2, 99), 3)
	if err != nil {
		t.Fatalf("Propose: %v", err)
	}
	if chain.Depth() != 3 {
		t.Fatalf("depth: got %d want 3", chain.Depth())
	}
	if len(w.reqs) != 3 {
		t.Fatalf("worker calls: got %d want 3", len(w.reqs))
	}

	for level := 1; level < 3; level++ {
		seqs := w.reqs[level].Sequences()
		for i, s := range seqs {
			var want []int
			for prev := 0; prev < level; prev++ {
				want = append(want, chain.Levels[prev].Valid(i)...)
			}
			if diff := cmp.Diff(want, s.OutputTokens); diff != "" {
				t.Fatalf("level %d seq %d output tokens (-want +got):\n%s", level, s.ID, diff)
			}
			if s.NumDraftTokens != len(want) {
				t.Fatalf("level %d seq %d draft count: got %d want %d", level, s.ID, s.NumDraftTokens, len(want))
			}
		}
	}

	// Seq 1 has 2 prompt tokens, so its levels draft from lengths 2, 4 and 6.
	wantSeq1 := [][]int{{2, 3}, {4, 5}, {6, 7}}
	for level, want := range wantSeq1 {
		if diff := cmp.Diff(want, chain.Levels[level].Valid(0)); diff != "" {
			t.Fatalf("level %d seq 1 (-want +got):\n%s", level, diff)
		}
	}

	if !w.bonus[0].Has(2) || w.bonus[1].Len() != 0 || w.bonus[2].Len() != 0 {
		t.Fatalf("bonus set must only reach the first level: %v", w.bonus)
	}
	if diff := cmp.Diff(before, req); diff != "" {
		t.Fatalf("caller request mutated (-before +after):\n%s", diff)
	}
}

func TestChainZeroLevels(t *testing.T) {
	t.Parallel()
	w := newScriptedWorker(countingScript)
	c := &Coordinator{Proposer: w}

	chain, err := c.Propose(context.Background(), testRequest(2, seq(1, 1)), nil, 0)
	if err != nil {
		t.Fatalf("Propose: %v", err)
	}
	if chain.Depth() != 0 || len(w.reqs) != 0 {
		t.Fatalf("zero levels: depth %d, calls %d", chain.Depth(), len(w.reqs))
	}

	if _, err := c.Propose(context.Background(), testRequest(2, seq(1, 1)), nil, -1); !errors.Is(err, ErrInvalidNumLevels) {
		t.Fatalf("negative levels: want ErrInvalidNumLevels, got %v", err)
	}
}

func TestChainPropagatesError(t *testing.T) {
	t.Parallel()
	boom := errors.New("draft model crashed")
	calls := 0
	w := newScriptedWorker(func(req ExecutionRequest, k int) (*DraftOutputs, error) {
		calls++
		if calls == 2 {
			return nil, boom
		}
		return countingScript(req, k)
	})
	c := &Coordinator{Proposer: w}

	if _, err := c.Propose(context.Background(), testRequest(1, seq(1, 1)), nil, 3); err != boom {
		t.Fatalf("want error unchanged, got %v", err)
	}
}

type extendingWorker struct {
	*scriptedWorker
	extended int
}

func (w *extendingWorker) ExtendRequest(req ExecutionRequest, level SpeculativeProposals) ExecutionRequest {
	w.extended++
	out := AppendDraftTokens(req, level)
	out.NumLookaheadSlots = 1
	return out
}

func TestChainUsesProposerExtender(t *testing.T) {
	t.Parallel()
	w := &extendingWorker{scriptedWorker: newScriptedWorker(countingScript)}
	c := &Coordinator{Proposer: w}

	chain, err := c.Propose(context.Background(), testRequest(3, seq(1, 1)), nil, 3)
	if err != nil {
		t.Fatalf("Propose: %v", err)
	}
	if w.extended != 2 {
		t.Fatalf("extender calls: got %d want 2", w.extended)
	}
	if diff := cmp.Diff([]int{3, 1, 1}, []int{chain.Levels[0].ProposalLen, chain.Levels[1].ProposalLen, chain.Levels[2].ProposalLen}); diff != "" {
		t.Fatalf("proposal lens (-want +got):\n%s", diff)
	}

	explicit := 0
	c.Extender = RequestExtenderFunc(func(req ExecutionRequest, level SpeculativeProposals) ExecutionRequest {
		explicit++
		return AppendDraftTokens(req, level)
	})
	if _, err := c.Propose(context.Background(), testRequest(3, seq(1, 1)), nil, 2); err != nil {
		t.Fatalf("Propose: %v", err)
	}
	if explicit != 1 || w.extended != 2 {
		t.Fatalf("explicit extender must win: explicit=%d proposer=%d", explicit, w.extended)
	}
}

func TestAppendDraftTokens(t *testing.T) {
	t.Parallel()
	req := testRequest(2, seq(1, 1), seq(2, 2), seq(3, 3))
	level := SpeculativeProposals{
		SeqIDs:      []SequenceID{1, 3},
		TokenIDs:    [][]int{{5, 6}, {7, PadToken}},
		Lens:        []int{2, 1},
		ProposalLen: 2,
	}
	out := AppendDraftTokens(req, level)

	got := map[SequenceID][]int{}
	for _, s := range out.Sequences() {
		got[s.ID] = s.Tokens()
	}
	want := map[SequenceID][]int{1: {1, 5, 6}, 2: {2}, 3: {3, 7}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("extended tokens (-want +got):\n%s", diff)
	}
	if len(req.Groups[0].Seqs[0].OutputTokens) != 0 {
		t.Fatal("input request mutated")
	}
}
