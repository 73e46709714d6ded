package specdecode

import "context"

// LoRANotSupported rejects every adapter operation. Embed it in draft workers.
type LoRANotSupported struct{}

func (LoRANotSupported) AddLoRA(LoRARequest) error { return ErrLoRANotSupported }
func (LoRANotSupported) RemoveLoRA(int) error      { return ErrLoRANotSupported }
func (LoRANotSupported) PinLoRA(int) error         { return ErrLoRANotSupported }
func (LoRANotSupported) ListLoRAs() ([]int, error) { return nil, ErrLoRANotSupported }

// CacheLessDefaults supplies the lifecycle of a proposer that holds no
// resident cache. Embed it and implement SamplerOutput and GetSpecProposals.
type CacheLessDefaults struct {
	LoRANotSupported
}

// ExecuteModel is inert; drafting goes through GetSpecProposals.
func (CacheLessDefaults) ExecuteModel(context.Context, *ExecutionRequest) ([]DraftStepOutput, error) {
	return []DraftStepOutput{}, nil
}

// DetermineNumAvailableBlocks is only meaningful on the target-model worker.
func (CacheLessDefaults) DetermineNumAvailableBlocks() (int, int, error) {
	return 0, 0, Unsupported("determine_num_available_blocks is never called on a cache-less proposer")
}

func (CacheLessDefaults) InitializeCache(int, int) error { return nil }

// CacheBlockSizeBytes is zero so capacity planning skips this worker.
func (CacheLessDefaults) CacheBlockSizeBytes() int { return 0 }

func (CacheLessDefaults) Configure(SamplingOptions) SamplingOptions { return 0 }
