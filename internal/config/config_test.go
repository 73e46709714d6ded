package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadMissingFile(t *testing.T) {
	t.Parallel()
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	s, err := cfg.Resolve()
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if diff := cmp.Diff(Defaults(), s); diff != "" {
		t.Fatalf("empty config should resolve to defaults (-want +got):\n%s", diff)
	}
}

func TestLoadOverlaysDefaults(t *testing.T) {
	t.Parallel()
	path := writeConfig(t, `
proposer: multistep
num_lookahead: 0
num_levels: 3
draft:
  vocab: 64
  block_size: 8
  temperature: 0.7
  top_k: 5
log_format: json
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	s, err := cfg.Resolve()
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}

	want := Defaults()
	want.Proposer = ProposerMultiStep
	want.NumLookahead = 0
	want.NumLevels = 3
	want.DraftVocab = 64
	want.MultiStep.BlockSize = 8
	want.MultiStep.Sampler.Temperature = 0.7
	want.MultiStep.Sampler.TopK = 5
	want.LogFormat = "json"
	if diff := cmp.Diff(want, s); diff != "" {
		t.Fatalf("settings (-want +got):\n%s", diff)
	}
}

func TestResolveRejectsInvalid(t *testing.T) {
	t.Parallel()
	cases := []struct {
		body string
		want string
	}{
		{"proposer: lookup\n", "unknown proposer"},
		{"ngram:\n  min_n: 3\n  max_n: 2\n", "max_n"},
		{"num_levels: -1\n", "num_levels"},
		{"num_lookahead: -2\n", "num_lookahead"},
		{"proposer: multistep\ndraft:\n  hidden: 0\n", "draft vocab"},
	}
	for _, tc := range cases {
		body, want := tc.body, tc.want
		cfg, err := Load(writeConfig(t, body))
		if err != nil {
			t.Fatalf("Load(%q): %v", body, err)
		}
		_, err = cfg.Resolve()
		if err == nil || !strings.Contains(err.Error(), want) {
			t.Fatalf("Resolve(%q): want error containing %q, got %v", body, want, err)
		}
	}
}

func TestLoadBadYAML(t *testing.T) {
	t.Parallel()
	if _, err := Load(writeConfig(t, "proposer: [unterminated")); err == nil {
		t.Fatal("expected parse error")
	}
}
