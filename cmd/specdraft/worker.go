package main

import (
	"context"
	"fmt"

	"github.com/samcharles93/specdraft/internal/config"
	"github.com/samcharles93/specdraft/internal/draftlm"
	"github.com/samcharles93/specdraft/internal/logger"
	"github.com/samcharles93/specdraft/internal/multistep"
	"github.com/samcharles93/specdraft/internal/ngram"
	"github.com/samcharles93/specdraft/internal/specdecode"
)

// newWorker builds the configured proposer worker and brings its cache up.
func newWorker(ctx context.Context, s config.Settings, probs bool) (specdecode.ProposerWorker, error) {
	log := logger.FromContext(ctx)

	var w specdecode.ProposerWorker
	switch s.Proposer {
	case config.ProposerNGram:
		nw, err := ngram.New(s.NGram)
		if err != nil {
			return nil, err
		}
		w = nw
	case config.ProposerMultiStep:
		mw, err := newMultiStep(s)
		if err != nil {
			return nil, err
		}
		used, capacity := mw.CacheUsage()
		log.Info("draft cache ready",
			"capacity_tokens", capacity,
			"used_tokens", used,
			"block_bytes", mw.CacheBlockSizeBytes(),
		)
		w = mw
	default:
		return nil, fmt.Errorf("unknown proposer %q", s.Proposer)
	}

	if probs && !specdecode.SetIncludeProbs(w) {
		log.Warn("worker does not report draft probabilities", "kind", s.Proposer)
	}
	return w, nil
}

func newMultiStep(s config.Settings) (*multistep.Worker, error) {
	model, err := draftlm.New(s.DraftVocab, s.DraftHidden, s.DraftSeed)
	if err != nil {
		return nil, fmt.Errorf("draft model: %w", err)
	}
	w, err := multistep.New(model, s.MultiStep)
	if err != nil {
		return nil, err
	}
	gpu, cpu, err := w.DetermineNumAvailableBlocks()
	if err != nil {
		return nil, fmt.Errorf("profile draft cache: %w", err)
	}
	if s.NumGPUBlocks > 0 {
		gpu = s.NumGPUBlocks
	}
	if err := w.InitializeCache(gpu, cpu); err != nil {
		return nil, fmt.Errorf("initialize draft cache: %w", err)
	}
	return w, nil
}
