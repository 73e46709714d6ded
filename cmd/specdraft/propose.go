package main

import (
	"context"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/samcharles93/specdraft/internal/api"
	"github.com/samcharles93/specdraft/internal/logger"
	"github.com/samcharles93/specdraft/internal/multistep"
	"github.com/samcharles93/specdraft/internal/specdecode"
)

func requestFlags(requestPath, bonus *string) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "request",
			Aliases:     []string{"r"},
			Usage:       "execution request JSON file (- for stdin)",
			Required:    true,
			Destination: requestPath,
		},
		&cli.StringFlag{
			Name:        "bonus",
			Usage:       "comma separated sequence ids that carry a bonus token",
			Destination: bonus,
		},
	}
}

func proposeCmd() *cli.Command {
	var requestPath, bonus string

	return &cli.Command{
		Name:  "propose",
		Usage: "Draft one round of speculative proposals for a request",
		Flags: commonFlags(requestFlags(&requestPath, &bonus)...),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			ctx, s, err := setup(ctx, cmd)
			if err != nil {
				return err
			}
			req, err := readRequest(requestPath, s.NumLookahead)
			if err != nil {
				return err
			}
			bonusSet, err := parseBonus(bonus)
			if err != nil {
				return err
			}
			w, err := newWorker(ctx, s, includeProbs)
			if err != nil {
				return err
			}

			props, err := w.GetSpecProposals(ctx, req, bonusSet)
			if err != nil {
				return err
			}
			logger.FromContext(ctx).Debug("proposed",
				"request", req.ID,
				"seqs", len(props.SeqIDs),
				"tokens", props.NumValid(),
			)
			logStats(ctx, w)
			return printJSON(os.Stdout, api.ProposeResponse{
				ID:        req.ID,
				Object:    "speculative_proposals",
				Proposals: props,
			})
		},
	}
}

func chainCmd() *cli.Command {
	var (
		requestPath, bonus string
		levels             int64
	)

	return &cli.Command{
		Name:  "chain",
		Usage: "Draft several dependent levels of proposals for a request",
		Flags: commonFlags(append(requestFlags(&requestPath, &bonus),
			&cli.Int64Flag{
				Name:        "levels",
				Aliases:     []string{"n"},
				Usage:       "number of proposal levels",
				Value:       1,
				Destination: &levels,
			},
		)...),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			ctx, s, err := setup(ctx, cmd)
			if err != nil {
				return err
			}
			if cmd.IsSet("levels") {
				s.NumLevels = int(levels)
			}
			req, err := readRequest(requestPath, s.NumLookahead)
			if err != nil {
				return err
			}
			bonusSet, err := parseBonus(bonus)
			if err != nil {
				return err
			}
			w, err := newWorker(ctx, s, includeProbs)
			if err != nil {
				return err
			}

			c := &specdecode.Coordinator{Proposer: w}
			chain, err := c.Propose(ctx, req, bonusSet, s.NumLevels)
			if err != nil {
				return err
			}
			logStats(ctx, w)
			out := api.ChainResponse{
				ID:     req.ID,
				Object: "proposal_chain",
				Depth:  chain.Depth(),
				Levels: chain.Levels,
			}
			if out.Levels == nil {
				out.Levels = []specdecode.SpeculativeProposals{}
			}
			return printJSON(os.Stdout, out)
		},
	}
}

func logStats(ctx context.Context, w specdecode.ProposerWorker) {
	mw, ok := w.(*multistep.Worker)
	if !ok {
		return
	}
	st := mw.Stats()
	logger.FromContext(ctx).Debug("draft cache stats",
		"drafted", st.Drafted,
		"prefilled", st.Prefilled,
		"backfilled", st.Backfilled,
		"rolled_back", st.RolledBack,
	)
}
