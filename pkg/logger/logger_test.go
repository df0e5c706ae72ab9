package logger

import (
	"bytes"
	"context"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]Level{
		"debug":   DEBUG,
		"info":    INFO,
		"warn":    WARN,
		"error":   ERROR,
		"":        INFO,
		"bogus":   INFO,
		"VERBOSE": INFO,
	}

	for input, want := range cases {
		if got := parseLevel(input); got != want {
			t.Errorf("parseLevel(%q) = %v, want %v", input, got, want)
		}
	}
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	l := newWithWriter(&buf, "warn")

	l.Debug("debug message")
	l.Info("info message")
	l.Warn("warn message")

	out := buf.String()
	if strings.Contains(out, "debug message") || strings.Contains(out, "info message") {
		t.Fatalf("messages below warn should be suppressed, got: %s", out)
	}
	if !strings.Contains(out, "[WARN] warn message") {
		t.Fatalf("expected warn message in output, got: %s", out)
	}
}

func TestKeyValueFormatting(t *testing.T) {
	var buf bytes.Buffer
	l := newWithWriter(&buf, "info")

	l.Info("request served", "path", "/index.html", "status", 200)

	out := buf.String()
	if !strings.Contains(out, "path=/index.html") || !strings.Contains(out, "status=200") {
		t.Fatalf("expected key=value pairs in output, got: %s", out)
	}
}

func TestErrorAppendsError(t *testing.T) {
	var buf bytes.Buffer
	l := newWithWriter(&buf, "error")

	l.Error("open failed", errTest)

	if !strings.Contains(buf.String(), "error=test error") {
		t.Fatalf("expected error field in output, got: %s", buf.String())
	}
}

type capturePublisher struct {
	entries []LogEntry
}

func (p *capturePublisher) PublishEntry(_ context.Context, entry LogEntry) error {
	p.entries = append(p.entries, entry)
	return nil
}

func TestErrorForwardsToPublisher(t *testing.T) {
	var buf bytes.Buffer
	l := newWithWriter(&buf, "info")
	pub := &capturePublisher{}
	l.SetLogPublisher(pub)

	l.Error("open failed", errTest, "path", "/a.txt")

	if len(pub.entries) != 1 {
		t.Fatalf("published entries = %d, want 1", len(pub.entries))
	}
	entry := pub.entries[0]
	if entry.Level != "ERROR" || entry.Message != "open failed" {
		t.Errorf("entry = %+v", entry)
	}
	if entry.Fields["path"] != "/a.txt" {
		t.Errorf("fields = %v", entry.Fields)
	}
	if entry.Fields["error"] != "test error" {
		t.Errorf("error field = %v", entry.Fields["error"])
	}
	if entry.Timestamp.IsZero() {
		t.Error("entry timestamp not set")
	}
}

func TestLowerLevelsDoNotForward(t *testing.T) {
	var buf bytes.Buffer
	l := newWithWriter(&buf, "debug")
	pub := &capturePublisher{}
	l.SetLogPublisher(pub)

	l.Debug("d")
	l.Info("i")
	l.Warn("w")

	if len(pub.entries) != 0 {
		t.Errorf("published entries = %d, only errors forward", len(pub.entries))
	}
}

func TestErrorWithoutPublisher(t *testing.T) {
	var buf bytes.Buffer
	l := newWithWriter(&buf, "error")

	// Must not panic with no publisher configured.
	l.Error("open failed", errTest)

	if !strings.Contains(buf.String(), "[ERROR] open failed") {
		t.Fatalf("expected local output, got: %s", buf.String())
	}
}

var errTest = errorString("test error")

type errorString string

func (e errorString) Error() string { return string(e) }
