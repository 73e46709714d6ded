// Package draftlm is a small recurrent language model used as the draft
// model of the cache-backed proposer. Its per-token State plays the role of
// a KV cache entry: drafting from a position only needs the State recorded
// after the previous token.
package draftlm

import (
	"fmt"

	"github.com/samcharles93/specdraft/internal/tensor"
)

// State is the hidden vector after consuming a token.
type State []float32

// Model computes h' = Decay*h + Emb[tok] and logits = Out*h' + Bias.
type Model struct {
	Vocab  int
	Hidden int
	Decay  float32

	Emb  tensor.Mat // [Vocab x Hidden]
	Out  tensor.Mat // [Vocab x Hidden]
	Bias []float32  // [Vocab]
}

// New builds a model with reproducible random weights derived from seed.
func New(vocab, hidden int, seed int64) (*Model, error) {
	if vocab <= 0 || hidden <= 0 {
		return nil, fmt.Errorf("draftlm: invalid shape vocab=%d hidden=%d", vocab, hidden)
	}
	m := &Model{
		Vocab:  vocab,
		Hidden: hidden,
		Decay:  0.5,
		Emb:    tensor.NewMat(vocab, hidden),
		Out:    tensor.NewMat(vocab, hidden),
		Bias:   make([]float32, vocab),
	}
	tensor.FillRand(&m.Emb, seed+11, 2)
	tensor.FillRand(&m.Out, seed+23, 2)
	return m, nil
}

// InitialState is the state before any token.
func (m *Model) InitialState() State {
	return make(State, m.Hidden)
}

// Step consumes tok from prev and returns a new state. prev is not modified.
// Tokens outside [0, Vocab) are wrapped.
func (m *Model) Step(prev State, tok int) State {
	tok = m.wrap(tok)
	emb := m.Emb.Row(tok)
	h := make(State, m.Hidden)
	for i := range h {
		h[i] = emb[i]
		if prev != nil {
			h[i] += m.Decay * prev[i]
		}
	}
	return h
}

// Logits returns the next-token logits for state h.
func (m *Model) Logits(h State) []float32 {
	logits := make([]float32, m.Vocab)
	tensor.MatVec(logits, &m.Out, h)
	for j := range logits {
		logits[j] += m.Bias[j]
	}
	return logits
}

// Forward is Step followed by Logits.
func (m *Model) Forward(prev State, tok int) (State, []float32) {
	h := m.Step(prev, tok)
	return h, m.Logits(h)
}

// Encode folds tokens into a state starting from the initial state.
func (m *Model) Encode(tokens []int) State {
	h := m.InitialState()
	for _, tok := range tokens {
		h = m.Step(h, tok)
	}
	return h
}

// StateBytes is the resident size of one State.
func (m *Model) StateBytes() int {
	return m.Hidden * 4
}

func (m *Model) wrap(tok int) int {
	if tok >= 0 && tok < m.Vocab {
		return tok
	}
	tok %= m.Vocab
	if tok < 0 {
		tok += m.Vocab
	}
	return tok
}
