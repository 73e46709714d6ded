// Package api serves a proposer worker over HTTP.
package api

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v5"

	"github.com/samcharles93/specdraft/internal/logger"
	"github.com/samcharles93/specdraft/internal/specdecode"
	"github.com/samcharles93/specdraft/internal/version"
)

type Options struct {
	// Kind names the worker in GET /v1/worker.
	Kind string
	// NumLevels is the chain depth used when a request does not set one.
	// Zero yields an empty chain, as it does for the chain command.
	NumLevels int
	Logger    logger.Logger
}

type Server struct {
	worker    specdecode.ProposerWorker
	chain     *specdecode.Coordinator
	kind      string
	numLevels int
	log       logger.Logger
}

// forgetter is implemented by workers that keep per-sequence state.
type forgetter interface {
	Forget(ids ...specdecode.SequenceID)
}

type cacheReporter interface {
	CacheUsage() (used, capacity int)
}

func NewServer(w specdecode.ProposerWorker, opts Options) *Server {
	log := opts.Logger
	if log == nil {
		log = logger.Nop()
	}
	return &Server{
		worker:    w,
		chain:     &specdecode.Coordinator{Proposer: w},
		kind:      opts.Kind,
		numLevels: opts.NumLevels,
		log:       log,
	}
}

func (s *Server) Register(e *echo.Echo) {
	e.POST("/v1/proposals", s.handlePropose)
	e.POST("/v1/proposals/chain", s.handleChain)
	e.POST("/v1/sampler_output", s.handleSamplerOutput)

	e.GET("/v1/worker", s.handleWorker)
	e.POST("/v1/worker/options", s.handleConfigure)
	e.POST("/v1/worker/loras", s.handleAddLoRA)
	e.DELETE("/v1/sequences/:id", s.handleForget)
}

func (s *Server) decodePropose(c *echo.Context) (ProposeRequest, error) {
	req, err := decodeJSON[ProposeRequest](c.Request().Body)
	if err != nil {
		return req, newInvalidRequest(err.Error())
	}
	if req.SampleLen != nil {
		if *req.SampleLen < 0 {
			return req, newInvalidRequest("sample_len must be non-negative")
		}
		req.Request.NumLookaheadSlots = *req.SampleLen
	}
	return req, prepareRequest(&req.Request)
}

func (s *Server) handlePropose(c *echo.Context) error {
	req, err := s.decodePropose(c)
	if err != nil {
		return writeFailure(c, err)
	}
	bonus := specdecode.NewBonusTokenSet(req.BonusSeqIDs...)
	props, err := s.worker.GetSpecProposals(c.Request().Context(), req.Request, bonus)
	if err != nil {
		s.log.Warn("proposal failed", "request", req.Request.ID, "error", err)
		return writeFailure(c, err)
	}
	s.log.Debug("proposed", "request", req.Request.ID, "seqs", len(props.SeqIDs), "tokens", props.NumValid())
	return writeJSON(c, http.StatusOK, ProposeResponse{
		ID:        req.Request.ID,
		Object:    "speculative_proposals",
		Proposals: props,
	})
}

func (s *Server) handleChain(c *echo.Context) error {
	req, err := s.decodePropose(c)
	if err != nil {
		return writeFailure(c, err)
	}
	levels := s.numLevels
	if req.NumLevels != nil {
		levels = *req.NumLevels
	}
	bonus := specdecode.NewBonusTokenSet(req.BonusSeqIDs...)
	chain, err := s.chain.Propose(c.Request().Context(), req.Request, bonus, levels)
	if err != nil {
		s.log.Warn("chain failed", "request", req.Request.ID, "levels", levels, "error", err)
		return writeFailure(c, err)
	}
	out := ChainResponse{
		ID:     req.Request.ID,
		Object: "proposal_chain",
		Depth:  chain.Depth(),
		Levels: chain.Levels,
	}
	if out.Levels == nil {
		out.Levels = []specdecode.SpeculativeProposals{}
	}
	return writeJSON(c, http.StatusOK, out)
}

func (s *Server) handleSamplerOutput(c *echo.Context) error {
	req, err := s.decodePropose(c)
	if err != nil {
		return writeFailure(c, err)
	}
	bonus := specdecode.NewBonusTokenSet(req.BonusSeqIDs...)
	k := req.Request.NumLookaheadSlots
	out, err := s.worker.SamplerOutput(c.Request().Context(), req.Request, k, bonus)
	if err != nil {
		return writeFailure(c, err)
	}
	if out == nil {
		return writeJSON(c, http.StatusOK, declinedResponse{Declined: true})
	}
	return writeJSON(c, http.StatusOK, out)
}

func (s *Server) handleWorker(c *echo.Context) error {
	info := WorkerInfo{
		Kind:                s.kind,
		Version:             version.Resolve(),
		CacheBlockSizeBytes: s.worker.CacheBlockSizeBytes(),
		HonoredOptions:      s.worker.Configure(0).Names(),
	}
	if cr, ok := s.worker.(cacheReporter); ok {
		used, capacity := cr.CacheUsage()
		info.CacheUsedTokens = &used
		info.CacheCapacityTokens = &capacity
	}
	return writeJSON(c, http.StatusOK, info)
}

func (s *Server) handleConfigure(c *echo.Context) error {
	req, err := decodeJSON[ConfigureRequest](c.Request().Body)
	if err != nil {
		return writeBadRequest(c, err.Error())
	}
	opts, err := specdecode.ParseSamplingOptions(req.Options)
	if err != nil {
		return writeBadRequest(c, err.Error())
	}
	honored := s.worker.Configure(opts)
	if !honored.Has(opts) && opts != 0 {
		s.log.Info("sampling options not honored", "requested", opts, "honored", honored)
	}
	return writeJSON(c, http.StatusOK, ConfigureResponse{HonoredOptions: honored.Names()})
}

func (s *Server) handleAddLoRA(c *echo.Context) error {
	req, err := decodeJSON[specdecode.LoRARequest](c.Request().Body)
	if err != nil {
		return writeBadRequest(c, err.Error())
	}
	if err := s.worker.AddLoRA(req); err != nil {
		return writeFailure(c, err)
	}
	return writeJSON(c, http.StatusOK, LoRAResponse{ID: req.ID, Object: "lora", Loaded: true})
}

func (s *Server) handleForget(c *echo.Context) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return writeBadRequest(c, "sequence id must be an integer")
	}
	if f, ok := s.worker.(forgetter); ok {
		f.Forget(specdecode.SequenceID(id))
	}
	return writeJSON(c, http.StatusOK, ForgetResponse{
		ID:      specdecode.SequenceID(id),
		Object:  "sequence",
		Deleted: true,
	})
}
