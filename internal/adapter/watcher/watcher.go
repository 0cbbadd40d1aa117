package watcher

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/bnema/captioner/internal/infrastructure/logger"
)

// SubmitFunc hands a fully written video file to the pipeline.
type SubmitFunc func(ctx context.Context, path string) error

var videoExtensions = map[string]bool{
	".mp4": true, ".mov": true, ".avi": true, ".mkv": true,
	".webm": true, ".m4v": true, ".flv": true,
}

func IsVideoFile(path string) bool {
	return videoExtensions[strings.ToLower(filepath.Ext(path))]
}

// Watcher submits video files created in a drop folder.
type Watcher struct {
	dir     string
	submit  SubmitFunc
	watcher *fsnotify.Watcher
	// settle is how long a file size must stay unchanged before submission.
	settle time.Duration

	mu      sync.Mutex
	pending map[string]bool
	wg      sync.WaitGroup
}

func New(dir string, submit SubmitFunc) (*Watcher, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create watch dir: %w", err)
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	if err := fw.Add(dir); err != nil {
		_ = fw.Close()
		return nil, fmt.Errorf("watch %s: %w", dir, err)
	}
	return &Watcher{
		dir:     dir,
		submit:  submit,
		watcher: fw,
		settle:  time.Second,
		pending: make(map[string]bool),
	}, nil
}

// Run blocks until ctx is cancelled or the watcher is closed, then waits for
// files being settled.
func (w *Watcher) Run(ctx context.Context) error {
	logger.Info.Printf("watching %s for new videos", w.dir)
	defer w.wg.Wait()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Create) {
				continue
			}
			if !IsVideoFile(event.Name) {
				logger.Debug.Printf("ignoring non-video file: %s", logger.SanitizeForLog(filepath.Base(event.Name)))
				continue
			}
			w.track(ctx, event.Name)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			logger.Error.Printf("watcher error: %v", err)
		}
	}
}

func (w *Watcher) Close() error {
	return w.watcher.Close()
}

func (w *Watcher) track(ctx context.Context, path string) {
	w.mu.Lock()
	if w.pending[path] {
		w.mu.Unlock()
		return
	}
	w.pending[path] = true
	w.mu.Unlock()

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		defer func() {
			w.mu.Lock()
			delete(w.pending, path)
			w.mu.Unlock()
		}()

		if err := w.waitStable(ctx, path); err != nil {
			if !errors.Is(err, context.Canceled) {
				logger.Warn.Printf("dropped %s: %v", logger.SanitizeForLog(filepath.Base(path)), err)
			}
			return
		}
		logger.Info.Printf("new video detected: %s", logger.SanitizeForLog(filepath.Base(path)))
		if err := w.submit(ctx, path); err != nil {
			logger.Error.Printf("failed to submit %s: %v", logger.SanitizeForLog(filepath.Base(path)), err)
		}
	}()
}

// waitStable returns once the file is non-empty and its size has not changed
// for the settle period.
func (w *Watcher) waitStable(ctx context.Context, path string) error {
	tick := w.settle / 4
	if tick <= 0 {
		tick = 10 * time.Millisecond
	}
	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	var lastSize int64 = -1
	var stableSince time.Time
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}

		info, err := os.Stat(path)
		if err != nil {
			return err
		}
		if info.Size() != lastSize || info.Size() == 0 {
			lastSize = info.Size()
			stableSince = time.Now()
			continue
		}
		if time.Since(stableSince) >= w.settle {
			return nil
		}
	}
}
