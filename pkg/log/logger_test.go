package log

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

func newBufLogger(buf *bytes.Buffer, f Formatter, level Level) Logger {
	return NewLogger(WithLevel(level), WithFormatter(f), WithOutput(NewWriterOutput(buf)))
}

func TestTextFormatterFieldsSorted(t *testing.T) {
	var buf bytes.Buffer
	l := newBufLogger(&buf, &TextFormatter{DisableTimestamp: true}, InfoLevel)
	l.With(Component("stream")).Info("stream.write", Str("stream", "prices"), Int("bytes", 12))
	got := buf.String()
	want := "INFO  stream.write bytes=12 component=stream stream=prices\n"
	if got != want {
		t.Fatalf("got %q want %q", got, want)
	}
}

func TestLevelGate(t *testing.T) {
	var buf bytes.Buffer
	l := newBufLogger(&buf, &TextFormatter{DisableTimestamp: true}, WarnLevel)
	l.Info("hidden")
	l.Debug("hidden")
	if buf.Len() != 0 {
		t.Fatalf("expected nothing, got %q", buf.String())
	}
	l.Warn("shown")
	if !strings.Contains(buf.String(), "shown") {
		t.Fatalf("expected warn line")
	}
}

func TestSetLevelSharedWithChildren(t *testing.T) {
	var buf bytes.Buffer
	l := newBufLogger(&buf, &TextFormatter{DisableTimestamp: true}, ErrorLevel)
	child := l.With(Str("k", "v"))
	l.SetLevel(DebugLevel)
	child.Debug("now visible")
	if !strings.Contains(buf.String(), "now visible") {
		t.Fatalf("child did not observe level change: %q", buf.String())
	}
	if child.GetLevel() != DebugLevel {
		t.Fatalf("child level %v", child.GetLevel())
	}
}

func TestJSONFormatterError(t *testing.T) {
	var buf bytes.Buffer
	l := newBufLogger(&buf, &JSONFormatter{}, InfoLevel)
	l.Error("stream.write_failed", Err(errors.New("boom")), Int64("max_len", 5))
	var m map[string]any
	if err := json.Unmarshal(buf.Bytes(), &m); err != nil {
		t.Fatalf("unmarshal: %v (%q)", err, buf.String())
	}
	if m["error"] != "boom" || m["level"] != "error" || m["msg"] != "stream.write_failed" {
		t.Fatalf("unexpected json: %v", m)
	}
}

func TestRedactionAndKV(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(WithLevel(InfoLevel), WithFormatter(&TextFormatter{DisableTimestamp: true}),
		WithOutput(NewWriterOutput(&buf)), WithRedactions("password"))
	l.Infof("connect", "addr", "localhost:6379", "password", "hunter2")
	got := buf.String()
	if strings.Contains(got, "hunter2") || !strings.Contains(got, "password=[REDACTED]") {
		t.Fatalf("redaction failed: %q", got)
	}
}

func TestSampling(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(WithLevel(InfoLevel), WithFormatter(&TextFormatter{DisableTimestamp: true}),
		WithOutput(NewWriterOutput(&buf)), WithSampling(1, 3))
	for i := 0; i < 7; i++ {
		l.Info("tick")
	}
	// first one, then every third of the rest: n=0,1,4 -> 3 lines
	if n := strings.Count(buf.String(), "tick"); n != 3 {
		t.Fatalf("expected 3 sampled lines, got %d", n)
	}
}

func TestParseLevelAndApplyConfig(t *testing.T) {
	if lvl, err := ParseLevel("WARN"); err != nil || lvl != WarnLevel {
		t.Fatalf("parse warn: %v %v", lvl, err)
	}
	if _, err := ParseLevel("loud"); err == nil {
		t.Fatalf("expected error")
	}
	if _, err := ApplyConfig(&Config{Level: "debug", Format: "yaml"}); err == nil {
		t.Fatalf("expected format error")
	}
	l, err := ApplyConfig(&Config{Level: "error", Format: "json", Outputs: []OutputConfig{{Type: "null"}}})
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if l.GetLevel() != ErrorLevel {
		t.Fatalf("level %v", l.GetLevel())
	}
}

func TestToStdLogger(t *testing.T) {
	var buf bytes.Buffer
	l := newBufLogger(&buf, &TextFormatter{DisableTimestamp: true}, InfoLevel)
	std := ToStdLogger(l, WarnLevel)
	std.Printf("pebble: compaction %d", 3)
	if got := buf.String(); got != "WARN  \"pebble: compaction 3\"\n" && got != "WARN  pebble: compaction 3\n" {
		t.Fatalf("unexpected std bridge line %q", got)
	}
}
