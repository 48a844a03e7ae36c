// Package control 提供运行时的人工干预入口。
// 熔断（回撤、敞口）不会自动恢复，操作员 touch 触发文件即清除。
package control

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"poly-hft-go/infrastructure/logger"
)

// HaltResetter 清除熔断状态的目标，通常是引擎。
type HaltResetter interface {
	ResetHalt()
}

// ResetWatcher 监听触发文件，文件被写入或创建时调用 ResetHalt。
// 冷却时间内的重复触发被忽略，避免编辑器多次写入引起抖动。
type ResetWatcher struct {
	path     string
	target   HaltResetter
	log      *logger.Logger
	cooldown time.Duration

	mu        sync.Mutex
	lastReset time.Time
	watcher   *fsnotify.Watcher
	stopChan  chan struct{}
	doneChan  chan struct{}
}

// NewResetWatcher 创建监听器；cooldown 为 0 取 2 秒。
func NewResetWatcher(path string, target HaltResetter, log *logger.Logger, cooldown time.Duration) (*ResetWatcher, error) {
	if path == "" {
		return nil, fmt.Errorf("reset file path required")
	}
	if cooldown <= 0 {
		cooldown = 2 * time.Second
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	return &ResetWatcher{
		path:     path,
		target:   target,
		log:      log,
		cooldown: cooldown,
		watcher:  watcher,
		stopChan: make(chan struct{}),
		doneChan: make(chan struct{}),
	}, nil
}

// Start 开始监听。监听所在目录而不是文件本身，
// 这样触发文件不存在时 touch 创建也能收到事件。
func (w *ResetWatcher) Start(ctx context.Context) error {
	dir := filepath.Dir(w.path)
	if err := w.watcher.Add(dir); err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}
	go w.loop(ctx)
	return nil
}

// Stop 停止监听并关闭底层 watcher。
func (w *ResetWatcher) Stop() error {
	select {
	case <-w.stopChan:
	default:
		close(w.stopChan)
	}
	select {
	case <-w.doneChan:
	case <-time.After(time.Second):
	}
	return w.watcher.Close()
}

func (w *ResetWatcher) loop(ctx context.Context) {
	defer close(w.doneChan)
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopChan:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Name != w.path {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			w.trigger()
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.log.Warn("reset watcher error", zap.Error(err))
		}
	}
}

func (w *ResetWatcher) trigger() {
	w.mu.Lock()
	if time.Since(w.lastReset) < w.cooldown {
		w.mu.Unlock()
		return
	}
	w.lastReset = time.Now()
	w.mu.Unlock()

	w.target.ResetHalt()
	w.log.Info("halt cleared by operator", zap.String("trigger", w.path))
	// 消费掉触发文件，下次 touch 重新生效
	_ = os.Remove(w.path)
}

// LastReset 最近一次人工清除的时间，测试用。
func (w *ResetWatcher) LastReset() time.Time {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.lastReset
}
