package config

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watcher 基于 fsnotify 监听配置文件变更，带冷却时间，
// 避免编辑器多次写入触发重复加载。
type Watcher struct {
	path     string
	cooldown time.Duration
	fsw      *fsnotify.Watcher
	stopChan chan struct{}
	doneChan chan struct{}
}

// NewWatcher 创建配置监听器；cooldown <= 0 时取默认 2 秒。
func NewWatcher(path string, cooldown time.Duration) (*Watcher, error) {
	if cooldown <= 0 {
		cooldown = 2 * time.Second
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	// 监听目录而不是文件：很多编辑器用重命名方式保存
	if err := fsw.Add(filepath.Dir(path)); err != nil {
		fsw.Close()
		return nil, fmt.Errorf("watch %s: %w", path, err)
	}
	return &Watcher{
		path:     path,
		cooldown: cooldown,
		fsw:      fsw,
		stopChan: make(chan struct{}),
		doneChan: make(chan struct{}),
	}, nil
}

// Start 后台监听；每次有效变更回调最新配置。加载失败只记跳过。
func (w *Watcher) Start(ctx context.Context, onUpdate func(AppConfig)) {
	go w.loop(ctx, onUpdate)
}

func (w *Watcher) loop(ctx context.Context, onUpdate func(AppConfig)) {
	defer close(w.doneChan)
	var lastReload time.Time

	base := filepath.Base(w.path)
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopChan:
			return
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if filepath.Base(ev.Name) != base {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
				continue
			}
			if time.Since(lastReload) < w.cooldown {
				continue
			}
			cfg, err := LoadWithEnvOverrides(w.path)
			if err != nil {
				continue
			}
			lastReload = time.Now()
			if onUpdate != nil {
				onUpdate(cfg)
			}
		case _, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
		}
	}
}

// Stop 停止监听并等待循环退出；必须在 Start 之后调用。
func (w *Watcher) Stop() error {
	close(w.stopChan)
	err := w.fsw.Close()
	<-w.doneChan
	return err
}
