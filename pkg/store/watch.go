package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// DefaultDebounce is how long Watch waits after the last file event before reloading.
const DefaultDebounce = 500 * time.Millisecond

// Watch reloads the collection whenever the backing file changes, until ctx is done.
// It only works with a FileSource and a cached refresh policy.
// The parent directory is watched instead of the file, so editors that save by renaming are covered as well.
func (s *Store) Watch(ctx context.Context, debounce time.Duration) error {
	fileSource, ok := s.source.(FileSource)
	if !ok {
		return fmt.Errorf("watching is only supported for files, not for %v", s.source)
	}
	if s.opts.Refresh == RefreshPerRequest {
		return errors.New("watching makes no sense when reading the file on every request")
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("couldn't create file watcher: %w", err)
	}
	path, err := filepath.Abs(fileSource.Path)
	if err != nil {
		watcher.Close()
		return fmt.Errorf("couldn't resolve path %q: %w", fileSource.Path, err)
	}
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		watcher.Close()
		return fmt.Errorf("couldn't watch directory of %q: %w", path, err)
	}

	go s.watchLoop(ctx, watcher, path, debounce)
	s.logger.Info("Watching record file for changes", zap.Duration("debounce", debounce))
	return nil
}

func (s *Store) watchLoop(ctx context.Context, watcher *fsnotify.Watcher, path string, debounce time.Duration) {
	defer watcher.Close()

	var timer *time.Timer
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Stopped watching record file")
			return
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != path || event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) == 0 {
				continue
			}
			s.logger.Debug("Record file changed", zap.Stringer("op", event.Op))
			if timer == nil {
				timer = time.AfterFunc(debounce, func() {
					s.reload(ctx, path)
				})
			} else {
				timer.Reset(debounce)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			s.logger.Warn("File watcher error", zap.Error(err))
		}
	}
}

// reload refreshes the collection after a file event.
// A missing or broken file leaves the collection empty until the next event.
func (s *Store) reload(ctx context.Context, path string) {
	if records := s.Refresh(ctx); len(records) > 0 {
		return
	}
	_, err := os.Stat(path)
	s.logger.Warn("Collection is empty after the record file changed",
		zap.String("path", path), zap.Bool("fileExists", err == nil))
}
