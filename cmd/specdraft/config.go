package main

import (
	"context"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/samcharles93/specdraft/internal/config"
	"github.com/samcharles93/specdraft/internal/logger"
)

// loadSettings reads the config file and layers explicitly set flags on top.
func loadSettings(c *cli.Command) (config.Settings, error) {
	path := configFile
	if path == "" {
		path = config.Path()
	}
	cfg, err := config.Load(path)
	if err != nil {
		return config.Settings{}, err
	}
	s, err := cfg.Resolve()
	if err != nil {
		return config.Settings{}, err
	}
	applyFlags(c, &s)
	return s, s.Validate()
}

func applyFlags(c *cli.Command, s *config.Settings) {
	if c.IsSet("kind") {
		s.Proposer = proposerKind
	}
	if c.IsSet("lookahead") {
		s.NumLookahead = int(lookahead)
	}
	if c.IsSet("log-level") {
		s.LogLevel = logLevel
	}
	if c.IsSet("log-format") {
		s.LogFormat = logFormat
	}
	if debug {
		s.LogLevel = "debug"
	}
}

// setup resolves settings and attaches the configured logger to ctx.
func setup(ctx context.Context, c *cli.Command) (context.Context, config.Settings, error) {
	s, err := loadSettings(c)
	if err != nil {
		return ctx, s, err
	}
	log := logger.ForFormat(os.Stderr, s.LogFormat, logger.ParseLevel(s.LogLevel))
	return logger.WithContext(ctx, log), s, nil
}
