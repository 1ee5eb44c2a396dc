package log

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(
		WithLevel(WarnLevel),
		WithFormatter(&TextFormatter{}),
		WithOutput(NewWriterOutput(&buf)),
	)
	l.Info("dropped")
	l.Warn("kept")
	out := buf.String()
	if strings.Contains(out, "dropped") {
		t.Fatalf("info line should be filtered: %q", out)
	}
	if !strings.Contains(out, "kept") {
		t.Fatalf("warn line missing: %q", out)
	}
}

func TestWithFieldsPropagate(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(WithFormatter(&TextFormatter{}), WithOutput(NewWriterOutput(&buf)))
	l = l.With(Component("store"), Str("task", "t1"))
	l.Info("saved", Bool("final", true))
	out := buf.String()
	for _, want := range []string{"component=store", "task=t1", "final=true", "saved"} {
		if !strings.Contains(out, want) {
			t.Fatalf("missing %q in %q", want, out)
		}
	}
}

func TestJSONFormatter(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(WithFormatter(&JSONFormatter{}), WithOutput(NewWriterOutput(&buf)))
	l.Error("boom", Err(errFake{}))
	var obj map[string]any
	if err := json.Unmarshal(buf.Bytes(), &obj); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if obj["level"] != "ERROR" || obj["msg"] != "boom" {
		t.Fatalf("unexpected object: %v", obj)
	}
	if obj["error"] != "fake" {
		t.Fatalf("error field missing: %v", obj)
	}
}

func TestParseLevel(t *testing.T) {
	if lvl, err := ParseLevel("debug"); err != nil || lvl != DebugLevel {
		t.Fatalf("debug: %v %v", lvl, err)
	}
	if _, err := ParseLevel("nope"); err == nil {
		t.Fatalf("expected error for unknown level")
	}
	if lvl, _ := ParseLevel(""); lvl != InfoLevel {
		t.Fatalf("empty should default to info")
	}
}

type errFake struct{}

func (errFake) Error() string { return "fake" }
