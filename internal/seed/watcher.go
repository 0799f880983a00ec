package seed

import (
	"context"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

const debounce = 200 * time.Millisecond

// Watch re-syncs the seed file whenever it changes, until ctx is cancelled.
// onSync (if non-nil) is called with the number of places applied after each
// sync that changed something.
//
// The parent directory is watched rather than the file itself so editors that
// save by writing a temp file and renaming it over the original are picked up.
// Bursts of events are debounced into a single sync.
func (s *Syncer) Watch(ctx context.Context, onSync func(n int)) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	abs, err := filepath.Abs(s.path)
	if err != nil {
		return err
	}
	if err := w.Add(filepath.Dir(abs)); err != nil {
		return err
	}

	s.logger.Info("seed watcher: started", slog.String("path", abs))

	var timer *time.Timer
	var timerCh <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			s.logger.Info("seed watcher: stopped")
			return nil

		case <-timerCh:
			timerCh = nil
			n, syncErr := s.Sync(ctx)
			if syncErr != nil {
				s.logger.Warn("seed watcher: sync failed", slog.String("error", syncErr.Error()))
				continue
			}
			if n > 0 && onSync != nil {
				onSync(n)
			}

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != abs {
				continue
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) == 0 {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(debounce)
			} else {
				timer.Reset(debounce)
			}
			timerCh = timer.C

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			s.logger.Error("seed watcher: error", slog.String("error", watchErr.Error()))
		}
	}
}
