package main

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v5"
	"github.com/labstack/echo/v5/middleware"
	"github.com/urfave/cli/v3"

	"github.com/samcharles93/specdraft/internal/api"
	"github.com/samcharles93/specdraft/internal/logger"
)

func serveCmd() *cli.Command {
	var (
		addr        string
		readTimeout time.Duration
	)

	return &cli.Command{
		Name:  "serve",
		Usage: "Serve the proposer worker over HTTP",
		Flags: commonFlags(
			&cli.StringFlag{
				Name:        "addr",
				Usage:       "listen address",
				Value:       "127.0.0.1:8090",
				Destination: &addr,
			},
			&cli.DurationFlag{
				Name:        "read-timeout",
				Usage:       "read timeout",
				Value:       30 * time.Second,
				Destination: &readTimeout,
			},
		),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			ctx, s, err := setup(ctx, cmd)
			if err != nil {
				return err
			}
			if !cmd.IsSet("addr") {
				addr = s.ServerAddress
			}
			log := logger.FromContext(ctx)

			w, err := newWorker(ctx, s, includeProbs)
			if err != nil {
				return err
			}
			server := api.NewServer(w, api.Options{
				Kind:      s.Proposer,
				NumLevels: s.NumLevels,
				Logger:    log,
			})
			e := echo.New()
			e.Use(middleware.RequestLogger())
			e.Use(middleware.Recover())
			server.Register(e)
			log.Info("starting server", "address", addr, "proposer", s.Proposer)
			sc := echo.StartConfig{
				Address: addr,
				BeforeServeFunc: func(srv *http.Server) error {
					srv.ReadHeaderTimeout = readTimeout
					return nil
				},
			}
			return sc.Start(ctx, e)
		},
	}
}
