package debug

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestLogWritesCategory(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf, "debug")
	defer Disable()

	Log("transport", "started at beat %d", 4)
	out := buf.String()
	if !strings.Contains(out, `"cat":"transport"`) || !strings.Contains(out, "started at beat 4") {
		t.Fatalf("unexpected log line: %s", out)
	}
}

func TestLogDisabledIsSilent(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf, "debug")
	Disable()

	Log("transport", "nothing")
	if buf.Len() != 0 {
		t.Fatalf("expected no output, got %q", buf.String())
	}
}

func TestLogEvery(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf, "debug")
	defer Disable()

	for i := 0; i < 9; i++ {
		LogEvery(3, "tick", "window")
	}
	if got := strings.Count(buf.String(), "\n"); got != 3 {
		t.Fatalf("expected 3 lines, got %d: %s", got, buf.String())
	}
}

func TestLoggerComponent(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf, "info")
	defer Disable()

	l := Logger("ticker")
	l.Debug().Msg("hidden")
	l.Info().Msg("shown")
	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Fatalf("debug line leaked at info level: %s", out)
	}
	if !strings.Contains(out, `"component":"ticker"`) {
		t.Fatalf("missing component field: %s", out)
	}
}

func TestLimited(t *testing.T) {
	if !Limited("test-key", 0.001) {
		t.Fatal("first call should pass")
	}
	if Limited("test-key", 0.001) {
		t.Fatal("second call should be limited")
	}
}

func TestParseLevel(t *testing.T) {
	tests := map[string]zerolog.Level{
		"trace":   zerolog.TraceLevel,
		"DEBUG":   zerolog.DebugLevel,
		" warn ":  zerolog.WarnLevel,
		"warning": zerolog.WarnLevel,
		"error":   zerolog.ErrorLevel,
		"":        zerolog.InfoLevel,
		"bogus":   zerolog.InfoLevel,
	}
	for in, want := range tests {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestLoggerFollowsSetup(t *testing.T) {
	dir := t.TempDir()
	first := filepath.Join(dir, "a.log")
	second := filepath.Join(dir, "b.log")
	defer Disable()

	if err := Setup(Options{Level: "info", File: first}); err != nil {
		t.Fatal(err)
	}
	l := Logger("transport")
	l.Info().Msg("before reload")

	if err := Setup(Options{Level: "info", File: second}); err != nil {
		t.Fatal(err)
	}
	l.Warn().Msg("after reload")

	a, err := os.ReadFile(first)
	if err != nil {
		t.Fatal(err)
	}
	b, err := os.ReadFile(second)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(a), "before reload") || strings.Contains(string(a), "after reload") {
		t.Fatalf("first file: %s", a)
	}
	if !strings.Contains(string(b), "after reload") || !strings.Contains(string(b), `"component":"transport"`) {
		t.Fatalf("second file: %s", b)
	}
}

func TestDisableSilencesExistingLoggers(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf, "debug")
	l := Logger("midi")
	Disable()
	l.Error().Msg("dropped")
	if buf.Len() != 0 {
		t.Fatalf("expected no output, got %q", buf.String())
	}
}
