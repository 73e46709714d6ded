package api

import (
	"github.com/samcharles93/specdraft/internal/specdecode"
	"github.com/samcharles93/specdraft/internal/version"
)

// ProposeRequest is the body of POST /v1/proposals and /v1/proposals/chain.
type ProposeRequest struct {
	Request     specdecode.ExecutionRequest `json:"request"`
	BonusSeqIDs []specdecode.SequenceID     `json:"bonus_seq_ids,omitempty"`
	// SampleLen overrides request.num_lookahead_slots when set.
	SampleLen *int `json:"sample_len,omitempty"`
	// NumLevels is only read by the chain endpoint.
	NumLevels *int `json:"num_levels,omitempty"`
}

type ProposeResponse struct {
	ID        string                          `json:"id"`
	Object    string                          `json:"object"`
	Proposals specdecode.SpeculativeProposals `json:"proposals"`
}

type ChainResponse struct {
	ID     string                            `json:"id"`
	Object string                            `json:"object"`
	Depth  int                               `json:"depth"`
	Levels []specdecode.SpeculativeProposals `json:"levels"`
}

type declinedResponse struct {
	Declined bool `json:"declined"`
}

type WorkerInfo struct {
	Kind                string       `json:"kind"`
	Version             version.Info `json:"version"`
	CacheBlockSizeBytes int          `json:"cache_block_size_bytes"`
	HonoredOptions      []string     `json:"honored_options"`
	CacheUsedTokens     *int         `json:"cache_used_tokens,omitempty"`
	CacheCapacityTokens *int         `json:"cache_capacity_tokens,omitempty"`
}

type ConfigureRequest struct {
	Options []string `json:"options"`
}

type ConfigureResponse struct {
	HonoredOptions []string `json:"honored_options"`
}

type LoRAResponse struct {
	ID     int    `json:"id"`
	Object string `json:"object"`
	Loaded bool   `json:"loaded"`
}

type ForgetResponse struct {
	ID      specdecode.SequenceID `json:"id"`
	Object  string                `json:"object"`
	Deleted bool                  `json:"deleted"`
}

type ErrorBody struct {
	Message string `json:"message"`
	Type    string `json:"type"`
}
