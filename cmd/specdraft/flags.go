package main

import "github.com/urfave/cli/v3"

var (
	configFile string
	logLevel   string
	logFormat  string
	debug      bool

	proposerKind string
	lookahead    int64
	includeProbs bool
)

func loggingFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "config",
			Usage:       "path to config.yaml (default: user config dir)",
			Destination: &configFile,
		},
		&cli.StringFlag{
			Name:        "log-level",
			Usage:       "log level (debug, info, warn, error)",
			Value:       "info",
			Destination: &logLevel,
		},
		&cli.StringFlag{
			Name:        "log-format",
			Usage:       "log format (pretty, json, text)",
			Value:       "pretty",
			Destination: &logFormat,
		},
		&cli.BoolFlag{
			Name:        "debug",
			Usage:       "enable debug logging (shorthand for --log-level=debug)",
			Destination: &debug,
		},
	}
}

func workerFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "kind",
			Usage:       "proposer worker (ngram, multistep)",
			Value:       "ngram",
			Destination: &proposerKind,
		},
		&cli.Int64Flag{
			Name:        "lookahead",
			Aliases:     []string{"k"},
			Usage:       "draft tokens per sequence when the request sets none",
			Value:       4,
			Destination: &lookahead,
		},
		&cli.BoolFlag{
			Name:        "probs",
			Usage:       "ask the worker to report draft probabilities",
			Destination: &includeProbs,
		},
	}
}

func commonFlags(extra ...cli.Flag) []cli.Flag {
	flags := append(loggingFlags(), workerFlags()...)
	return append(flags, extra...)
}
