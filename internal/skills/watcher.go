package skills

import (
	"context"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"raven/internal/logging"
)

// Watch reloads the catalog when skill files change on disk. It blocks until
// ctx is cancelled. Reloads are debounced so editors that write in bursts
// trigger a single rescan.
func (s *Store) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	if err := watcher.Add(s.dir); err != nil {
		return err
	}

	const debounce = 250 * time.Millisecond
	var timer *time.Timer
	reload := make(chan struct{}, 1)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !strings.HasSuffix(event.Name, ".md") {
				continue
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(debounce, func() {
				select {
				case reload <- struct{}{}:
				default:
				}
			})

		case <-reload:
			if err := s.Reload(); err != nil {
				logging.Warn("skill reload failed", "error", err)
			} else {
				logging.Info("skill catalog reloaded", "dir", s.dir)
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logging.Warn("skill watcher error", "error", err)
		}
	}
}
