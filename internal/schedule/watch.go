package schedule

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// Watch reloads the schedule file at path whenever it is written or
// recreated, and hands each successfully parsed set of entries to apply. A
// file that fails to parse is logged and skipped, so whatever apply last
// received stays in effect. A zero-length file is treated as a write in
// progress and skipped too; write "[]" to clear a schedule.
//
// The containing directory is watched rather than the file, so editors that
// save by renaming are handled. Watching stops when ctx is cancelled; the
// returned channel is closed once the watcher has been released.
func Watch(ctx context.Context, path string, apply func([]Entry), opts ...Option) (<-chan struct{}, error) {
	o, err := newOptions(opts)
	if err != nil {
		return nil, err
	}
	path, err = filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve schedule path: %w", err)
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create fsnotify watcher: %w", err)
	}
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		_ = watcher.Close()
		return nil, fmt.Errorf("watch %s: %w", filepath.Dir(path), err)
	}

	logger := o.logger
	done := make(chan struct{})
	go func() {
		defer close(done)
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != path {
					continue
				}
				if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
					continue
				}
				logger.Debug("[Schedule] file event", "op", event.Op.String(), "path", path)
				if info, err := os.Stat(path); err != nil || info.Size() == 0 {
					continue
				}
				entries, err := Load(path)
				if err != nil {
					logger.Warn("[Schedule] reload failed, keeping previous schedule", "path", path, "error", err)
					continue
				}
				apply(entries)
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				logger.Error("[Schedule] watcher error", "error", err)
			}
		}
	}()
	return done, nil
}

// WatchSchedule is Watch wired to s.Replace.
func WatchSchedule(ctx context.Context, path string, s *Schedule) (<-chan struct{}, error) {
	return Watch(ctx, path, func(entries []Entry) {
		if err := s.Replace(entries); err != nil {
			s.logger.Warn("[Schedule] rejected reloaded entries", "path", path, "error", err)
		}
	}, WithLogger(s.logger))
}
