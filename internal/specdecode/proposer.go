// Package specdecode defines the proposer side of speculative decoding: the
// data exchanged with the scheduler, the worker contract every drafter
// implements, and the helpers that turn per-step sampler output into
// proposals and chain proposals across several levels.
package specdecode

import (
	"context"
	"fmt"
	"strings"
)

// Proposer drafts speculative tokens for every sequence in a batch.
//
// Implementations must not mutate req. A proposer that has nothing to offer
// for some sequences returns zero valid tokens for them instead of failing;
// errors are reserved for failures of the underlying mechanism.
type Proposer interface {
	GetSpecProposals(ctx context.Context, req ExecutionRequest, bonus BonusTokenSet) (SpeculativeProposals, error)
}

// SamplerOutputer produces raw per-step draft output.
type SamplerOutputer interface {
	// SamplerOutput drafts up to sampleLen tokens per sequence. A nil result
	// with a nil error means the proposer declined the round. Cache-backed
	// implementations may backfill cache entries for sequences in bonus;
	// cache-less implementations ignore it.
	SamplerOutput(ctx context.Context, req ExecutionRequest, sampleLen int, bonus BonusTokenSet) (*DraftOutputs, error)
}

// WorkerLifecycle is the generic worker surface shared with target-model
// workers.
type WorkerLifecycle interface {
	ExecuteModel(ctx context.Context, req *ExecutionRequest) ([]DraftStepOutput, error)
	DetermineNumAvailableBlocks() (numGPUBlocks, numCPUBlocks int, err error)
	InitializeCache(numGPUBlocks, numCPUBlocks int) error
	CacheBlockSizeBytes() int
}

type LoRARequest struct {
	Name string `json:"name"`
	ID   int    `json:"id"`
	Path string `json:"path"`
}

// LoRAManager manages adapters. Proposer workers reject every call.
type LoRAManager interface {
	AddLoRA(req LoRARequest) error
	RemoveLoRA(id int) error
	PinLoRA(id int) error
	ListLoRAs() ([]int, error)
}

// ProposerWorker is the full contract of a draft worker.
type ProposerWorker interface {
	Proposer
	SamplerOutputer
	WorkerLifecycle
	LoRAManager

	// Configure requests optional sampling behaviour and returns every option
	// the worker honors after the call. It never fails; a worker that cannot
	// support an option leaves it out of the result.
	Configure(opts SamplingOptions) SamplingOptions
}

// SamplingOptions is a set of optional sampling behaviours.
type SamplingOptions uint8

const (
	// IncludeProbs asks for per-token probabilities in DraftStepOutput.Probs.
	IncludeProbs SamplingOptions = 1 << iota
	// ModifyGreedyProbsInPlace asks for greedy steps to report one-hot
	// probabilities for the chosen token.
	ModifyGreedyProbsInPlace
)

func (o SamplingOptions) Has(opt SamplingOptions) bool {
	return opt != 0 && o&opt == opt
}

func (o SamplingOptions) String() string {
	if o == 0 {
		return "none"
	}
	var parts []string
	if o.Has(IncludeProbs) {
		parts = append(parts, "include_probs")
	}
	if o.Has(ModifyGreedyProbsInPlace) {
		parts = append(parts, "modify_greedy_probs_inplace")
	}
	return strings.Join(parts, ",")
}

// Names returns the option names, for JSON and logs.
func (o SamplingOptions) Names() []string {
	if o == 0 {
		return []string{}
	}
	return strings.Split(o.String(), ",")
}

// SetIncludeProbs asks w to include probabilities and reports whether it will.
func SetIncludeProbs(w ProposerWorker) bool {
	return w.Configure(IncludeProbs).Has(IncludeProbs)
}

// SetModifyGreedyProbsInPlace asks w for one-hot greedy probabilities and
// reports whether it will.
func SetModifyGreedyProbsInPlace(w ProposerWorker) bool {
	return w.Configure(ModifyGreedyProbsInPlace).Has(ModifyGreedyProbsInPlace)
}

// ParseSamplingOptions is the inverse of Names.
func ParseSamplingOptions(names []string) (SamplingOptions, error) {
	var o SamplingOptions
	for _, name := range names {
		switch strings.TrimSpace(name) {
		case "", "none":
		case "include_probs":
			o |= IncludeProbs
		case "modify_greedy_probs_inplace":
			o |= ModifyGreedyProbsInPlace
		default:
			return 0, fmt.Errorf("unknown sampling option %q", name)
		}
	}
	return o, nil
}
