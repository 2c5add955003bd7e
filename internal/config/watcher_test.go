package config

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pelletier/go-toml/v2"
	"github.com/smazurov/factoryd/internal/logging"
)

type serverSection struct {
	Server struct {
		Port        string `toml:"port"`
		IdleTimeout int    `toml:"idle_timeout"`
	} `toml:"server"`
}

func loadServerSection(path string) (serverSection, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return serverSection{}, err
	}
	var cfg serverSection
	err = toml.Unmarshal(data, &cfg)
	return cfg, err
}

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func writeConfig(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func startWatcher(t *testing.T, path string, opts ...WatcherOption[serverSection]) *Watcher[serverSection] {
	t.Helper()
	opts = append([]WatcherOption[serverSection]{WithDebounce[serverSection](50 * time.Millisecond)}, opts...)
	w := NewConfigWatcher(path, loadServerSection, newTestLogger(), opts...)
	t.Cleanup(func() {
		if err := w.Stop(); err != nil {
			t.Errorf("watcher.Stop failed: %v", err)
		}
	})
	return w
}

func TestConfigWatcher_Reload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "factoryd.toml")
	writeConfig(t, path, "[server]\nport = \":4415\"\n")

	received := make(chan serverSection, 1)
	w := startWatcher(t, path)
	w.OnReload(func(cfg serverSection) { received <- cfg })
	if err := w.Start(); err != nil {
		t.Fatal(err)
	}

	time.Sleep(100 * time.Millisecond)
	writeConfig(t, path, "[server]\nport = \":5000\"\nidle_timeout = 30\n")

	select {
	case cfg := <-received:
		if cfg.Server.Port != ":5000" || cfg.Server.IdleTimeout != 30 {
			t.Errorf("got %+v", cfg)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for config reload")
	}
}

func TestConfigWatcher_ReplacedByRename(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "factoryd.toml")
	writeConfig(t, path, "[server]\nport = \":4415\"\n")

	received := make(chan serverSection, 4)
	w := startWatcher(t, path)
	w.OnReload(func(cfg serverSection) { received <- cfg })
	if err := w.Start(); err != nil {
		t.Fatal(err)
	}

	time.Sleep(100 * time.Millisecond)
	tmp := filepath.Join(dir, ".factoryd.toml.swp")
	writeConfig(t, tmp, "[server]\nport = \":6000\"\n")
	if err := os.Rename(tmp, path); err != nil {
		t.Fatal(err)
	}

	deadline := time.After(2 * time.Second)
	for {
		select {
		case cfg := <-received:
			if cfg.Server.Port == ":6000" {
				return
			}
		case <-deadline:
			t.Fatal("replaced config was not reloaded")
		}
	}
}

func TestConfigWatcher_IgnoresSiblings(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "factoryd.toml")
	writeConfig(t, path, "[server]\nport = \":4415\"\n")

	var count atomic.Int32
	w := startWatcher(t, path)
	w.OnReload(func(serverSection) { count.Add(1) })
	if err := w.Start(); err != nil {
		t.Fatal(err)
	}

	time.Sleep(100 * time.Millisecond)
	writeConfig(t, filepath.Join(dir, "other.toml"), "x = 1\n")
	time.Sleep(200 * time.Millisecond)

	if got := count.Load(); got != 0 {
		t.Errorf("sibling change triggered %d reloads", got)
	}
}

func TestConfigWatcher_Unsubscribe(t *testing.T) {
	path := filepath.Join(t.TempDir(), "factoryd.toml")
	writeConfig(t, path, "[server]\nport = \":1\"\n")

	var count1, count2 atomic.Int32
	w := startWatcher(t, path)
	w.OnReload(func(serverSection) { count1.Add(1) })
	unsub2 := w.OnReload(func(serverSection) { count2.Add(1) })
	if err := w.Start(); err != nil {
		t.Fatal(err)
	}

	time.Sleep(100 * time.Millisecond)
	writeConfig(t, path, "[server]\nport = \":2\"\n")
	time.Sleep(200 * time.Millisecond)

	unsub2()

	writeConfig(t, path, "[server]\nport = \":3\"\n")
	time.Sleep(200 * time.Millisecond)

	if got := count1.Load(); got != 2 {
		t.Errorf("handler1: expected 2 calls, got %d", got)
	}
	if got := count2.Load(); got != 1 {
		t.Errorf("handler2: expected 1 call, got %d", got)
	}
}

func TestConfigWatcher_ErrorHandler(t *testing.T) {
	path := filepath.Join(t.TempDir(), "factoryd.toml")
	writeConfig(t, path, "[server]\nport = \":4415\"\n")

	errorReceived := make(chan error, 1)
	configReceived := make(chan serverSection, 1)

	w := startWatcher(t, path, WithErrorHandler[serverSection](func(err error) {
		errorReceived <- err
	}))
	w.OnReload(func(cfg serverSection) { configReceived <- cfg })
	if err := w.Start(); err != nil {
		t.Fatal(err)
	}

	time.Sleep(100 * time.Millisecond)
	writeConfig(t, path, "invalid toml [[[")

	select {
	case <-errorReceived:
	case <-configReceived:
		t.Fatal("config handler should not be called on error")
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for error handler")
	}
}

func TestConfigWatcher_Debounce(t *testing.T) {
	path := filepath.Join(t.TempDir(), "factoryd.toml")
	writeConfig(t, path, "[server]\nidle_timeout = 0\n")

	var count, last atomic.Int32
	w := startWatcher(t, path, WithDebounce[serverSection](200*time.Millisecond))
	w.OnReload(func(cfg serverSection) {
		count.Add(1)
		last.Store(int32(cfg.Server.IdleTimeout))
	})
	if err := w.Start(); err != nil {
		t.Fatal(err)
	}

	time.Sleep(100 * time.Millisecond)
	for i := 1; i <= 5; i++ {
		writeConfig(t, path, fmt.Sprintf("[server]\nidle_timeout = %d\n", i))
		time.Sleep(50 * time.Millisecond)
	}
	time.Sleep(500 * time.Millisecond)

	if got := count.Load(); got != 1 {
		t.Errorf("expected 1 debounced call, got %d", got)
	}
	if got := last.Load(); got != 5 {
		t.Errorf("expected final value 5, got %d", got)
	}
}

func TestWatchLogging(t *testing.T) {
	path := filepath.Join(t.TempDir(), "factoryd.toml")
	writeConfig(t, path, "[logging]\nlevel = \"info\"\n")

	logging.Initialize(logging.Config{Level: "info"})
	logger := logging.GetLogger("watched")

	w, err := WatchLogging(path, newTestLogger())
	if err != nil {
		t.Fatal(err)
	}
	defer w.Stop()

	// WatchLogging uses the default debounce.
	time.Sleep(100 * time.Millisecond)
	writeConfig(t, path, "[logging]\nlevel = \"info\"\nwatched = \"debug\"\n")

	deadline := time.Now().Add(4 * time.Second)
	for time.Now().Before(deadline) {
		if logger.Handler().Enabled(context.Background(), slog.LevelDebug) {
			return
		}
		time.Sleep(50 * time.Millisecond)
	}
	t.Fatal("module level was not reloaded")
}
