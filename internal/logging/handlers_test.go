package logging

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
)

func TestSplitHandlerRoutesByLevel(t *testing.T) {
	var console, file bytes.Buffer
	h := newSplitHandler(
		slog.NewTextHandler(&console, &slog.HandlerOptions{Level: slog.LevelWarn}),
		nil,
		newJSONHandler(&file, slog.LevelDebug, false),
	)
	if !h.Enabled(context.Background(), slog.LevelDebug) {
		t.Fatal("debug should be enabled through the file destination")
	}
	logger := slog.New(h).With(String(FieldRunID, "run-1"))
	logger.Debug("row prepared")
	logger.Warn("row failed")

	if strings.Contains(console.String(), "row prepared") || !strings.Contains(console.String(), "row failed") {
		t.Fatalf("console output %q", console.String())
	}
	if got := strings.Count(file.String(), `"run_id":"run-1"`); got != 2 {
		t.Fatalf("file output has run id %d times: %q", got, file.String())
	}
	if !strings.Contains(file.String(), `"level":"debug"`) {
		t.Fatalf("expected lower case level in %q", file.String())
	}
}

func TestNewSplitHandlerCollapses(t *testing.T) {
	if _, ok := newSplitHandler(nil).(discardHandler); !ok {
		t.Fatal("expected discard handler with no destinations")
	}
	inner := slog.NewTextHandler(&bytes.Buffer{}, nil)
	if newSplitHandler(inner, nil) != inner {
		t.Fatal("single destination should not be wrapped")
	}
}

func TestWithLevelOverrideReplacesFloor(t *testing.T) {
	var buf bytes.Buffer
	base := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	loud := WithLevelOverride(WithLevelOverride(base, slog.LevelError), slog.LevelInfo)
	loud.Info("registry reachable")
	loud.Debug("hidden")
	if !strings.Contains(buf.String(), "registry reachable") || strings.Contains(buf.String(), "hidden") {
		t.Fatalf("unexpected output %q", buf.String())
	}
}

func TestWarnWithContextKeepsCallerFields(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	WarnWithContext(logger, "ead skipped", "ead_skipped", String(FieldImpact, "finding aid ignored"))
	out := buf.String()
	for _, want := range []string{`"event_type":"ead_skipped"`, `"impact":"finding aid ignored"`, `"error_hint":`} {
		if !strings.Contains(out, want) {
			t.Fatalf("missing %s in %q", want, out)
		}
	}
	if strings.Count(out, `"impact"`) != 1 {
		t.Fatalf("impact logged twice: %q", out)
	}
}

func TestConsoleValueQuoting(t *testing.T) {
	tests := []struct {
		value slog.Value
		want  string
	}{
		{slog.StringValue("ark:/99999/fk41"), "ark:/99999/fk41"},
		{slog.StringValue("Annual report"), `"Annual report"`},
		{slog.StringValue(""), `""`},
		{slog.StringValue("a=b"), `"a=b"`},
		{slog.IntValue(42), "42"},
		{slog.Float64Value(0.85), "0.85"},
		{slog.AnyValue(errors.New("bad gateway")), `"bad gateway"`},
	}
	for _, tc := range tests {
		if got := consoleValue(tc.value); got != tc.want {
			t.Errorf("consoleValue(%v) = %s, want %s", tc.value, got, tc.want)
		}
	}
}
