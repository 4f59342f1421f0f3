package logger

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestNewWithFile(t *testing.T) {
	c := DefaultConfig()
	c.Console.Enabled = false
	c.File.Enabled = true
	c.File.Filename = filepath.Join(t.TempDir(), "out.log")

	l, err := New(c)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	l.Info("reading published", "bpm", 72)

	data, err := os.ReadFile(c.File.Filename)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if !strings.Contains(string(data), `"bpm":72`) {
		t.Errorf("log file = %s", data)
	}
}

func TestNewInvalid(t *testing.T) {
	c := DefaultConfig()
	c.Console.Format = "xml"
	if _, err := New(c); err == nil {
		t.Error("New() expected error")
	}
}

func TestNewNoOutputs(t *testing.T) {
	c := DefaultConfig()
	c.Console.Enabled = false
	l, err := New(c)
	if err != nil || l == nil {
		t.Fatalf("New() = %v, %v", l, err)
	}
}

func TestComponentLogger(t *testing.T) {
	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(&buf, nil)))
	defer slog.SetDefault(prev)

	ComponentLogger("observer").Info("hello")
	if !strings.Contains(buf.String(), "component=observer") {
		t.Errorf("output = %q", buf.String())
	}
}

type failingHandler struct{ slog.Handler }

func (failingHandler) Handle(context.Context, slog.Record) error { return errors.New("disk full") }

func TestMultiHandler(t *testing.T) {
	var debug, warn bytes.Buffer
	h := NewMultiHandler(
		failingHandler{slog.NewTextHandler(&bytes.Buffer{}, nil)},
		slog.NewTextHandler(&debug, &slog.HandlerOptions{Level: slog.LevelDebug}),
		slog.NewJSONHandler(&warn, &slog.HandlerOptions{Level: slog.LevelWarn}),
	)
	if !h.Enabled(context.Background(), slog.LevelDebug) {
		t.Error("Enabled(debug) = false")
	}

	l := slog.New(h).With("device", "watch-1").WithGroup("reading")
	l.Debug("sample", "bpm", 70)
	l.Warn("fault", "stage", "query")

	if got := debug.String(); !strings.Contains(got, "device=watch-1") || !strings.Contains(got, "reading.bpm=70") {
		t.Errorf("debug output = %q", got)
	}
	if got := warn.String(); strings.Contains(got, "sample") || !strings.Contains(got, `"stage":"query"`) {
		t.Errorf("warn output = %q", got)
	}

	rec := slog.NewRecord(time.Time{}, slog.LevelInfo, "x", 0)
	if err := h.Handle(context.Background(), rec); err == nil {
		t.Error("Handle() should report the failing handler")
	}
	if !strings.Contains(debug.String(), "msg=x") {
		t.Error("failing handler should not block the others")
	}
}
