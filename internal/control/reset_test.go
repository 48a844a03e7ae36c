package control

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"poly-hft-go/infrastructure/logger"
)

type countingResetter struct{ n atomic.Int32 }

func (c *countingResetter) ResetHalt() { c.n.Add(1) }

func newWatcher(t *testing.T, target HaltResetter, cooldown time.Duration) (*ResetWatcher, string) {
	t.Helper()
	log, err := logger.New(logger.Config{Level: "error", Format: "json"})
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	path := filepath.Join(t.TempDir(), "reset-halt")
	w, err := NewResetWatcher(path, target, log, cooldown)
	if err != nil {
		t.Fatalf("new watcher: %v", err)
	}
	return w, path
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) bool {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(10 * time.Millisecond)
	}
	return cond()
}

func TestResetWatcher_TriggersOnTouch(t *testing.T) {
	target := &countingResetter{}
	w, path := newWatcher(t, target, 10*time.Millisecond)
	defer w.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}

	if err := os.WriteFile(path, []byte("reset"), 0o644); err != nil {
		t.Fatalf("touch: %v", err)
	}
	if !waitFor(t, 2*time.Second, func() bool { return target.n.Load() == 1 }) {
		t.Fatalf("reset count = %d, want 1", target.n.Load())
	}

	// 触发文件被消费
	if !waitFor(t, time.Second, func() bool {
		_, err := os.Stat(path)
		return os.IsNotExist(err)
	}) {
		t.Error("trigger file not removed")
	}
}

func TestResetWatcher_IgnoresOtherFiles(t *testing.T) {
	target := &countingResetter{}
	w, path := newWatcher(t, target, 10*time.Millisecond)
	defer w.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}

	other := filepath.Join(filepath.Dir(path), "unrelated")
	if err := os.WriteFile(other, []byte("x"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	time.Sleep(200 * time.Millisecond)
	if target.n.Load() != 0 {
		t.Fatalf("reset count = %d, want 0", target.n.Load())
	}
}

func TestResetWatcher_CooldownSuppressesBursts(t *testing.T) {
	target := &countingResetter{}
	w, path := newWatcher(t, target, 10*time.Second)
	defer w.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}

	for i := 0; i < 3; i++ {
		if err := os.WriteFile(path, []byte("reset"), 0o644); err != nil {
			t.Fatalf("touch: %v", err)
		}
		time.Sleep(50 * time.Millisecond)
	}
	if !waitFor(t, 2*time.Second, func() bool { return target.n.Load() >= 1 }) {
		t.Fatal("watcher never triggered")
	}
	if n := target.n.Load(); n != 1 {
		t.Fatalf("reset count = %d, want 1 (cooldown)", n)
	}
}

func TestNewResetWatcher_RequiresPath(t *testing.T) {
	log, err := logger.New(logger.Config{Level: "error", Format: "json"})
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	if _, err := NewResetWatcher("", &countingResetter{}, log, 0); err == nil {
		t.Fatal("empty path must error")
	}
}
