package logits

import (
	"math"
	"math/rand"
)

// SamplerConfig configures the behaviour of a Sampler. A Temperature of zero
// or less selects greedy decoding.
type SamplerConfig struct {
	Seed          int64   `yaml:"seed" json:"seed"`
	Temperature   float32 `yaml:"temperature" json:"temperature"`
	TopK          int     `yaml:"top_k" json:"top_k"`
	TopP          float32 `yaml:"top_p" json:"top_p"`
	MinP          float32 `yaml:"min_p" json:"min_p"`
	RepeatPenalty float32 `yaml:"repeat_penalty" json:"repeat_penalty"`
	RepeatLastN   int     `yaml:"repeat_last_n" json:"repeat_last_n"`
}

// Sampler draws token ids from logits. It is not safe for concurrent use.
type Sampler struct {
	rng       *rand.Rand
	cfg       SamplerConfig
	greedy    bool
	topIdx    []int
	topVal    []float32
	prob      []float64
	seenMark  []uint32
	seenEpoch uint32
	seenList  []int
}

// NewSampler returns a new sampler with the provided configuration.
func NewSampler(cfg SamplerConfig) *Sampler {
	greedy := cfg.Temperature <= 0
	if cfg.Temperature <= 0 {
		cfg.Temperature = 1
	}
	if cfg.TopK <= 0 {
		cfg.TopK = 40
	}
	if cfg.TopP <= 0 || cfg.TopP > 1 {
		cfg.TopP = 1
	}
	if cfg.RepeatPenalty <= 0 {
		cfg.RepeatPenalty = 1.0
	}
	if cfg.RepeatLastN <= 0 {
		cfg.RepeatLastN = 64
	}
	return &Sampler{
		rng:    rand.New(rand.NewSource(cfg.Seed)),
		cfg:    cfg,
		greedy: greedy,
	}
}

// Greedy reports whether the sampler always picks the argmax.
func (s *Sampler) Greedy() bool {
	return s.greedy || (s.cfg.TopK == 1 && s.cfg.TopP >= 1 && s.cfg.Temperature == 1)
}

// Sample draws a single index from logits. logits may be modified in place by
// the repetition penalty. Tokens in excludePenalty are never penalised.
func (s *Sampler) Sample(logits []float32, recent []int, excludePenalty []int) int {
	idx, _ := s.SampleWithProb(logits, recent, excludePenalty)
	return idx
}

// SampleWithProb is Sample that also returns the probability the sampler
// assigned to the chosen index. For greedy decoding this is the softmax
// probability of the argmax over the full vocabulary.
//
// The sampling process:
//
//  1. Apply repetition penalty if configured.
//  2. Greedy configurations return the argmax.
//  3. Otherwise scale by the inverse temperature and keep the top k.
//  4. Softmax over the shortlist, then apply min-p and top-p truncation.
//  5. Draw from the truncated distribution.
func (s *Sampler) SampleWithProb(logits []float32, recent []int, excludePenalty []int) (int, float32) {
	s.applyRepeatPenalty(logits, recent, excludePenalty)

	if s.Greedy() {
		idx := argmax(logits)
		return idx, softmaxAt(logits, idx)
	}

	invTemp := float32(1.0) / s.cfg.Temperature
	k := min(s.cfg.TopK, len(logits))

	topIdx, topVal := s.topK(logits, k, invTemp)
	if len(topVal) == 0 {
		return 0, 0
	}

	maxv := topVal[0]
	if cap(s.prob) < len(topVal) {
		s.prob = make([]float64, len(topVal))
	}
	prob := s.prob[:len(topVal)]
	var sum float64
	for i := range topVal {
		e := math.Exp(float64(topVal[i] - maxv))
		prob[i] = e
		sum += e
	}
	if sum == 0 {
		return topIdx[0], 1
	}
	for i := range prob {
		prob[i] /= sum
	}

	if s.cfg.MinP > 0 {
		threshold := prob[0] * float64(s.cfg.MinP)
		n := 0
		var kept float64
		for i := range prob {
			if prob[i] >= threshold {
				prob[n] = prob[i]
				topIdx[n] = topIdx[i]
				kept += prob[i]
				n++
			}
		}
		prob = prob[:n]
		for i := range prob {
			prob[i] /= kept
		}
	}

	cut := len(prob)
	if s.cfg.TopP < 1 {
		var c float64
		for i := range prob {
			c += prob[i]
			if float32(c) >= s.cfg.TopP {
				cut = i + 1
				break
			}
		}
	}
	var mass float64
	for i := 0; i < cut; i++ {
		mass += prob[i]
	}

	r := s.rng.Float64() * mass
	var c float64
	for i := 0; i < cut; i++ {
		c += prob[i]
		if r <= c {
			return topIdx[i], float32(prob[i] / mass)
		}
	}
	return topIdx[cut-1], float32(prob[cut-1] / mass)
}

func (s *Sampler) applyRepeatPenalty(logits []float32, recent []int, excludePenalty []int) {
	if s.cfg.RepeatPenalty <= 1.0 || len(recent) == 0 {
		return
	}
	start := max(len(recent)-s.cfg.RepeatLastN, 0)
	window := recent[start:]

	if len(s.seenMark) < len(logits) {
		s.seenMark = make([]uint32, len(logits))
	}
	s.seenEpoch++
	if s.seenEpoch == 0 {
		clear(s.seenMark)
		s.seenEpoch = 1
	}
	s.seenList = s.seenList[:0]

	for _, id := range window {
		if id >= 0 && id < len(logits) && s.seenMark[id] != s.seenEpoch {
			s.seenMark[id] = s.seenEpoch
			s.seenList = append(s.seenList, id)
		}
	}
	for _, id := range excludePenalty {
		if id >= 0 && id < len(logits) {
			s.seenMark[id] = 0
		}
	}
	for _, id := range s.seenList {
		if s.seenMark[id] != s.seenEpoch {
			continue
		}
		if logits[id] > 0 {
			logits[id] /= s.cfg.RepeatPenalty
		} else {
			logits[id] *= s.cfg.RepeatPenalty
		}
	}
}

// argmax returns the index of the maximum value in the slice. If the slice is empty it panics.
func argmax(x []float32) int {
	if len(x) == 0 {
		panic("argmax: empty slice")
	}
	bestI := 0
	bestV := x[0]
	for i := 1; i < len(x); i++ {
		if x[i] > bestV {
			bestV = x[i]
			bestI = i
		}
	}
	return bestI
}

// softmaxAt returns softmax(x)[i] without materialising the distribution.
func softmaxAt(x []float32, i int) float32 {
	maxv := x[argmax(x)]
	var sum float64
	for _, v := range x {
		sum += math.Exp(float64(v - maxv))
	}
	return float32(math.Exp(float64(x[i]-maxv)) / sum)
}

// topK returns the indices and values of the k largest elements in logits, scaled by invTemp.
// The returned slices are ordered from largest to smallest by value.
// This is an O(V*K) algorithm suitable for small K.
func (s *Sampler) topK(logits []float32, k int, invTemp float32) ([]int, []float32) {
	if k <= 0 {
		return nil, nil
	}
	if cap(s.topIdx) < k+1 {
		s.topIdx = make([]int, 0, k+1)
		s.topVal = make([]float32, 0, k+1)
	}
	topIdx := s.topIdx[:0]
	topVal := s.topVal[:0]

	for i, l := range logits {
		v := l * invTemp

		pos := len(topVal)
		for pos > 0 && topVal[pos-1] < v {
			pos--
		}
		if pos >= k {
			continue
		}

		topIdx = append(topIdx, 0)
		topVal = append(topVal, 0)

		copy(topIdx[pos+1:], topIdx[pos:])
		copy(topVal[pos+1:], topVal[pos:])
		topIdx[pos] = i
		topVal[pos] = v

		if len(topVal) > k {
			topIdx = topIdx[:k]
			topVal = topVal[:k]
		}
	}
	s.topIdx = topIdx
	s.topVal = topVal
	return topIdx, topVal
}
