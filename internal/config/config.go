// Package config loads the specdraft configuration file
// (~/.config/specdraft/config.yaml) and resolves it into worker settings.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/samcharles93/specdraft/internal/logits"
	"github.com/samcharles93/specdraft/internal/multistep"
	"github.com/samcharles93/specdraft/internal/ngram"
)

const (
	ProposerNGram     = "ngram"
	ProposerMultiStep = "multistep"
)

// Config mirrors the YAML file. Pointer fields distinguish "not set" from
// zero values so that defaults and command line flags can be layered.
type Config struct {
	Proposer     string `yaml:"proposer"`
	NumLookahead *int   `yaml:"num_lookahead"`
	NumLevels    *int   `yaml:"num_levels"`

	NGram NGram `yaml:"ngram"`
	Draft Draft `yaml:"draft"`

	LogLevel      string `yaml:"log_level"`
	LogFormat     string `yaml:"log_format"`
	ServerAddress string `yaml:"server_address"`
}

type NGram struct {
	MinN           *int `yaml:"min_n"`
	MaxN           *int `yaml:"max_n"`
	MaxProposalLen *int `yaml:"max_proposal_len"`
	Parallelism    *int `yaml:"parallelism"`
}

type Draft struct {
	Vocab  *int   `yaml:"vocab"`
	Hidden *int   `yaml:"hidden"`
	Seed   *int64 `yaml:"seed"`

	BlockSize         *int   `yaml:"block_size"`
	NumGPUBlocks      *int   `yaml:"num_gpu_blocks"`
	MemoryBudgetBytes *int64 `yaml:"memory_budget_bytes"`
	CPUSwapBytes      *int64 `yaml:"cpu_swap_bytes"`
	MaxModelLen       *int   `yaml:"max_model_len"`

	Temperature   *float64 `yaml:"temperature"`
	TopK          *int     `yaml:"top_k"`
	TopP          *float64 `yaml:"top_p"`
	MinP          *float64 `yaml:"min_p"`
	RepeatPenalty *float64 `yaml:"repeat_penalty"`
	SamplerSeed   *int64   `yaml:"sampler_seed"`
}

// Settings is a fully resolved configuration.
type Settings struct {
	Proposer     string
	NumLookahead int
	NumLevels    int

	NGram ngram.Config

	DraftVocab   int
	DraftHidden  int
	DraftSeed    int64
	NumGPUBlocks int
	MultiStep    multistep.Config

	LogLevel      string
	LogFormat     string
	ServerAddress string
}

// Defaults returns the settings used when nothing is configured.
func Defaults() Settings {
	return Settings{
		Proposer:     ProposerNGram,
		NumLookahead: 4,
		NumLevels:    1,
		NGram: ngram.Config{
			MinN: 1,
			MaxN: 3,
		},
		DraftVocab:  256,
		DraftHidden: 32,
		DraftSeed:   1,
		MultiStep: multistep.Config{
			BlockSize:         multistep.DefaultBlockSize,
			MemoryBudgetBytes: 64 << 20,
			MaxModelLen:       4096,
			Sampler:           logits.SamplerConfig{Temperature: 0},
		},
		LogLevel:      "info",
		LogFormat:     "pretty",
		ServerAddress: "127.0.0.1:8090",
	}
}

// Path returns the default config file location, or "" if unknown.
func Path() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "specdraft", "config.yaml")
}

// Load reads path. A missing file yields a zero Config and no error.
func Load(path string) (Config, error) {
	if path == "" {
		return Config{}, nil
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return Config{}, nil
	}
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// Resolve overlays c on Defaults and validates the result.
func (c Config) Resolve() (Settings, error) {
	s := Defaults()
	setString(&s.Proposer, c.Proposer)
	set(&s.NumLookahead, c.NumLookahead)
	set(&s.NumLevels, c.NumLevels)

	set(&s.NGram.MinN, c.NGram.MinN)
	set(&s.NGram.MaxN, c.NGram.MaxN)
	set(&s.NGram.MaxProposalLen, c.NGram.MaxProposalLen)
	set(&s.NGram.Parallelism, c.NGram.Parallelism)

	d := c.Draft
	set(&s.DraftVocab, d.Vocab)
	set(&s.DraftHidden, d.Hidden)
	set(&s.DraftSeed, d.Seed)
	set(&s.NumGPUBlocks, d.NumGPUBlocks)
	set(&s.MultiStep.BlockSize, d.BlockSize)
	set(&s.MultiStep.MemoryBudgetBytes, d.MemoryBudgetBytes)
	set(&s.MultiStep.CPUSwapBytes, d.CPUSwapBytes)
	set(&s.MultiStep.MaxModelLen, d.MaxModelLen)

	sc := &s.MultiStep.Sampler
	if d.Temperature != nil {
		sc.Temperature = float32(*d.Temperature)
	}
	set(&sc.TopK, d.TopK)
	if d.TopP != nil {
		sc.TopP = float32(*d.TopP)
	}
	if d.MinP != nil {
		sc.MinP = float32(*d.MinP)
	}
	if d.RepeatPenalty != nil {
		sc.RepeatPenalty = float32(*d.RepeatPenalty)
	}
	set(&sc.Seed, d.SamplerSeed)

	setString(&s.LogLevel, c.LogLevel)
	setString(&s.LogFormat, c.LogFormat)
	setString(&s.ServerAddress, c.ServerAddress)

	return s, s.Validate()
}

// Validate reports the first invalid setting.
func (s Settings) Validate() error {
	switch s.Proposer {
	case ProposerNGram:
		if err := s.NGram.Validate(); err != nil {
			return err
		}
	case ProposerMultiStep:
		if s.DraftVocab <= 0 || s.DraftHidden <= 0 {
			return fmt.Errorf("config: draft vocab and hidden must be positive")
		}
		if s.NumGPUBlocks < 0 {
			return fmt.Errorf("config: num_gpu_blocks must be non-negative")
		}
	default:
		return fmt.Errorf("config: unknown proposer %q (want %s or %s)", s.Proposer, ProposerNGram, ProposerMultiStep)
	}
	if s.NumLookahead < 0 {
		return fmt.Errorf("config: num_lookahead must be non-negative, got %d", s.NumLookahead)
	}
	if s.NumLevels < 0 {
		return fmt.Errorf("config: num_levels must be non-negative, got %d", s.NumLevels)
	}
	return nil
}

func set[T any](dst *T, v *T) {
	if v != nil {
		*dst = *v
	}
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}
