package logging

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"
)

func resetState() {
	mutex.Lock()
	moduleLoggers = make(map[string]*slog.Logger)
	moduleLevelVars = make(map[string]*slog.LevelVar)
	isInitialized = false
	logBuffer = nil
	mutex.Unlock()
}

func TestModuleLevelOverride(t *testing.T) {
	resetState()

	Initialize(Config{
		Level:  "info",
		Format: "text",
		Modules: map[string]string{
			"flash":  "debug",
			"server": "warn",
		},
	})

	tests := []struct {
		module    string
		wantDebug bool
		wantInfo  bool
		wantWarn  bool
	}{
		{"flash", true, true, true},
		{"server", false, false, true},
		{"other", false, true, true},
	}

	for _, tt := range tests {
		t.Run(tt.module, func(t *testing.T) {
			handler := GetLogger(tt.module).Handler()
			ctx := context.Background()

			if got := handler.Enabled(ctx, slog.LevelDebug); got != tt.wantDebug {
				t.Errorf("Debug enabled = %v, want %v", got, tt.wantDebug)
			}
			if got := handler.Enabled(ctx, slog.LevelInfo); got != tt.wantInfo {
				t.Errorf("Info enabled = %v, want %v", got, tt.wantInfo)
			}
			if got := handler.Enabled(ctx, slog.LevelWarn); got != tt.wantWarn {
				t.Errorf("Warn enabled = %v, want %v", got, tt.wantWarn)
			}
		})
	}
}

func TestLoggerCreatedBeforeInitialize(t *testing.T) {
	resetState()

	early := GetLogger("gpio")
	if early.Handler().Enabled(context.Background(), slog.LevelDebug) {
		t.Error("pre-initialize logger should default to info")
	}

	Initialize(Config{Level: "info", Modules: map[string]string{"gpio": "debug"}})

	if !GetLogger("gpio").Handler().Enabled(context.Background(), slog.LevelDebug) {
		t.Error("Initialize() did not apply the module level to an existing logger")
	}
}

func TestReconfigure(t *testing.T) {
	resetState()
	Initialize(Config{Level: "info"})

	logger := GetLogger("led")
	if logger.Handler().Enabled(context.Background(), slog.LevelDebug) {
		t.Fatal("debug enabled before Reconfigure")
	}

	Reconfigure(Config{Level: "info", Modules: map[string]string{"led": "debug"}})

	// The same logger value picks up the new level.
	if !logger.Handler().Enabled(context.Background(), slog.LevelDebug) {
		t.Error("Reconfigure() did not raise the led module to debug")
	}
	if got := Levels()["led"]; got != "debug" {
		t.Errorf("Levels()[led] = %q, want debug", got)
	}

	Reconfigure(Config{Level: "error"})
	if logger.Handler().Enabled(context.Background(), slog.LevelWarn) {
		t.Error("Reconfigure() did not lower the led module to error")
	}
}

func TestBufferReceivesEntries(t *testing.T) {
	resetState()
	Initialize(Config{Level: "debug"})

	GetLogger("command").Info("Command handled", "command", "get_mac", "duration", time.Millisecond)

	entries := GetBuffer().Query(Filter{Module: "command"})
	if len(entries) != 1 {
		t.Fatalf("got %d entries, want 1", len(entries))
	}
	e := entries[0]
	if e.Message != "Command handled" || e.Level != "info" {
		t.Errorf("entry = %+v", e)
	}
	if e.Attributes["command"] != "get_mac" {
		t.Errorf("command attribute = %v", e.Attributes["command"])
	}
	if e.Attributes["duration"] != "1ms" {
		t.Errorf("duration attribute = %v", e.Attributes["duration"])
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in     string
		want   slog.Level
		wantOK bool
	}{
		{"debug", slog.LevelDebug, true},
		{"INFO", slog.LevelInfo, true},
		{"warning", slog.LevelWarn, true},
		{" error ", slog.LevelError, true},
		{"trace", 0, false},
		{"", 0, false},
	}
	for _, tt := range tests {
		got, ok := ParseLevel(tt.in)
		if ok != tt.wantOK || (ok && got != tt.want) {
			t.Errorf("ParseLevel(%q) = %v, %v; want %v, %v", tt.in, got, ok, tt.want, tt.wantOK)
		}
	}
}

type failingHandler struct{ slog.Handler }

func (failingHandler) Handle(context.Context, slog.Record) error { return errors.New("journal down") }

func TestMultiHandlerContinuesAfterError(t *testing.T) {
	var buf bytes.Buffer
	text := slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})

	h := NewMultiHandler(failingHandler{text}, text)
	err := slog.New(h).Handler().Handle(context.Background(), slog.NewRecord(time.Now(), slog.LevelInfo, "hello", 0))

	if err == nil {
		t.Error("Handle() should report the failing handler")
	}
	if !strings.Contains(buf.String(), "msg=hello") {
		t.Errorf("second handler did not receive the record: %q", buf.String())
	}
}

func TestJournalFieldName(t *testing.T) {
	tests := []struct {
		parts []string
		want  string
	}{
		{[]string{"module"}, "MODULE"},
		{[]string{"req", "remote_addr"}, "REQ_REMOTE_ADDR"},
		{[]string{"user-agent"}, "USER_AGENT"},
		{[]string{"_private"}, "PRIVATE"},
	}
	for _, tt := range tests {
		if got := journalFieldName(tt.parts); got != tt.want {
			t.Errorf("journalFieldName(%v) = %q, want %q", tt.parts, got, tt.want)
		}
	}
}

func TestFormatLogLine(t *testing.T) {
	entry := LogEntry{
		Timestamp:  time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC),
		Level:      "warn",
		Module:     "flash",
		Message:    "Unlock failed",
		Attributes: map[string]any{"offset": 0, "device": "/dev/mtd5"},
	}

	want := "2024-01-02T03:04:05Z [WARN] [flash] Unlock failed device=/dev/mtd5 offset=0"
	if got := FormatLogLine(entry); got != want {
		t.Errorf("FormatLogLine() = %q, want %q", got, want)
	}
}
