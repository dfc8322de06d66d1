package automation

import (
	"context"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/siherrmann/homegraph/helper"
)

// DefaultDebounce is the quiet period before a changed directory is reloaded.
const DefaultDebounce = 500 * time.Millisecond

// Watch reloads the store whenever one of its configuration files changes.
// Bursts of events are debounced. Watch blocks until ctx is done.
func (s *FileStore) Watch(ctx context.Context, debounce time.Duration) error {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return helper.NewError("create watcher", err)
	}
	defer watcher.Close()

	err = watcher.Add(s.dir)
	if err != nil {
		return helper.NewError("watch "+s.dir, err)
	}
	s.log.Info("Watching configuration", slog.String("dir", s.dir))

	var timer *time.Timer
	var fire <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !isConfigFile(event.Name) || event.Op == fsnotify.Chmod {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(debounce)
			} else {
				timer.Reset(debounce)
			}
			fire = timer.C
		case <-fire:
			fire = nil
			if err := s.Reload(); err != nil {
				s.log.Error("Failed to reload configuration", slog.String("error", err.Error()))
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			s.log.Warn("Watcher error", slog.String("error", err.Error()))
		}
	}
}

func isConfigFile(path string) bool {
	name := filepath.Base(path)
	for _, file := range ConfigFiles {
		if file.Name == name {
			return true
		}
	}
	return false
}
