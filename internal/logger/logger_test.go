package logger

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
)

func TestDefault(t *testing.T) {
	t.Parallel()
	log := Default()
	if log == nil {
		t.Fatal("Default() returned nil")
	}
	log.Info("test message")
	log.Debug("debug message")
}

func TestJSON(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	log := JSON(&buf, slog.LevelInfo)
	log.Info("hello", "key", "value")

	output := buf.String()
	if !strings.Contains(output, "hello") {
		t.Fatalf("expected 'hello' in output, got: %s", output)
	}
	if !strings.Contains(output, `"key":"value"`) {
		t.Fatalf("expected key=value in JSON output, got: %s", output)
	}
	if !strings.Contains(output, `"level":"INFO"`) {
		t.Fatalf("expected level INFO in output, got: %s", output)
	}
	if !strings.Contains(output, `"source":`) {
		t.Fatalf("expected source location in JSON output, got: %s", output)
	}

	buf.Reset()
	Text(&buf, slog.LevelInfo).Info("plain")
	if strings.Contains(buf.String(), "source=") {
		t.Fatalf("text output should not carry source, got: %s", buf.String())
	}
}

func TestJSONLevelFiltering(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	log := JSON(&buf, slog.LevelWarn)
	log.Info("should not appear")
	log.Debug("also should not appear")

	if buf.Len() > 0 {
		t.Fatalf("expected no output for info/debug at warn level, got: %s", buf.String())
	}

	log.Warn("should appear")
	if !strings.Contains(buf.String(), "should appear") {
		t.Fatalf("expected warn message in output, got: %s", buf.String())
	}
}

func TestPrettyGroupsAndAttrs(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	log := Pretty(&buf, slog.LevelDebug).With("worker", "ngram").WithGroup("round")
	log.Debug("drafted", "seqs", 3, "note", "two words")

	output := buf.String()
	for _, want := range []string{"DBG", "drafted", "worker=ngram", "round.seqs=3", `round.note="two words"`} {
		if !strings.Contains(output, want) {
			t.Fatalf("expected %q in output, got: %s", want, output)
		}
	}
}

func TestForFormat(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	ForFormat(&buf, "json", slog.LevelInfo).Info("x")
	if !strings.HasPrefix(buf.String(), "{") {
		t.Fatalf("expected JSON record, got: %s", buf.String())
	}

	buf.Reset()
	ForFormat(&buf, "text", slog.LevelInfo).Info("x")
	if !strings.Contains(buf.String(), "msg=x") {
		t.Fatalf("expected text record, got: %s", buf.String())
	}
}

func TestContextRoundTrip(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	ctx := WithContext(context.Background(), Text(&buf, slog.LevelInfo))
	FromContext(ctx).Info("from context")
	if !strings.Contains(buf.String(), "from context") {
		t.Fatalf("context logger not used, got: %s", buf.String())
	}

	Nop().Error("dropped")
}

func TestParseLevel(t *testing.T) {
	t.Parallel()
	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"WARNING": slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"bogus":   slog.LevelInfo,
	}
	for in, want := range cases {
		if got := ParseLevel(in); got != want {
			t.Fatalf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}
