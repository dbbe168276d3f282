package config

import (
	"context"
	"hash/fnv"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	logx "pirbot/pkg/logx"
)

// Watcher reloads the config file on change and pushes the parsed result to
// a single consumer. Reload is debounced because editors tend to emit
// several write events per save, and the first one may observe a partially
// written file.
type Watcher struct {
	path string
	log  logx.Logger

	mu       sync.Mutex
	lastHash uint64
}

func NewWatcher(path string, log logx.Logger) *Watcher {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Watcher{path: path, log: log}
}

// Run watches the config file until ctx is cancelled. Each successfully
// parsed, content-changed config is passed to onChange. Parse failures are
// logged and the previous config stays in effect.
func (w *Watcher) Run(ctx context.Context, onChange func(*Config)) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer fw.Close()

	// Watch the directory, not the file: editors replace files by rename,
	// which drops a direct file watch.
	dir := filepath.Dir(w.path)
	if err := fw.Add(dir); err != nil {
		return err
	}

	if b, err := os.ReadFile(w.path); err == nil {
		w.setHash(hashBytes(b))
	}

	var (
		timerMu sync.Mutex
		timer   *time.Timer
	)
	reload := func() {
		timerMu.Lock()
		defer timerMu.Unlock()
		if timer != nil {
			timer.Stop()
		}
		timer = time.AfterFunc(250*time.Millisecond, func() {
			if ctx.Err() != nil {
				return
			}
			b, err := os.ReadFile(w.path)
			if err != nil {
				w.log.Warn("config reload read failed", logx.String("path", w.path), logx.Err(err))
				return
			}
			h := hashBytes(b)
			if w.sameHash(h) {
				w.log.Debug("config unchanged; skipping reload", logx.String("path", w.path))
				return
			}
			cfg, err := Parse(b)
			if err != nil {
				w.log.Warn("config reload rejected", logx.String("path", w.path), logx.Err(err))
				return
			}
			w.setHash(h)
			w.log.Info("config reloaded", logx.String("path", w.path))
			onChange(cfg)
		})
	}

	target := filepath.Clean(w.path)
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != target {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0 {
				reload()
			}
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.log.Warn("config watch error", logx.Err(err))
		}
	}
}

func (w *Watcher) sameHash(h uint64) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return h != 0 && h == w.lastHash
}

func (w *Watcher) setHash(h uint64) {
	w.mu.Lock()
	w.lastHash = h
	w.mu.Unlock()
}

func hashBytes(b []byte) uint64 {
	h := fnv.New64a()
	_, _ = h.Write(b)
	return h.Sum64()
}
