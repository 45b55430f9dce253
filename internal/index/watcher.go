package index

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

// ChangeCallback is called once per debounced burst of vault changes.
type ChangeCallback func(ctx context.Context)

// WatchOptions configures Watch.
type WatchOptions struct {
	Root     string
	Ignore   []string
	Debounce time.Duration
	Logger   *slog.Logger
}

// Watch starts an fsnotify watcher on the vault root and calls onChange
// after every burst of file events, once no further event has arrived for
// the debounce interval. It returns when ctx is cancelled.
//
// New directories created at runtime are automatically added to the watch
// list. Paths with an ignored component never trigger a callback.
func Watch(ctx context.Context, opts WatchOptions, onChange ChangeCallback) error {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	debounce := opts.Debounce
	if debounce <= 0 {
		debounce = 300 * time.Millisecond
	}
	root, err := filepath.Abs(opts.Root)
	if err != nil {
		return err
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	if err := addDirsRecursive(w, root, opts.Ignore); err != nil {
		return err
	}

	logger.Info("watcher: started", slog.String("root", root))

	var timer *time.Timer
	var fire <-chan time.Time

	schedule := func() {
		if timer == nil {
			timer = time.NewTimer(debounce)
			fire = timer.C
		} else {
			timer.Reset(debounce)
		}
	}

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			logger.Info("watcher: stopped")
			return nil

		case <-fire:
			logger.Debug("watcher: change settled, rescanning")
			onChange(ctx)

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if ignoredPath(root, ev.Name, opts.Ignore) {
				continue
			}
			if ev.Op == fsnotify.Chmod {
				continue
			}

			if ev.Op&fsnotify.Create != 0 {
				if info, statErr := os.Stat(ev.Name); statErr == nil && info.IsDir() {
					if addErr := addDirsRecursive(w, ev.Name, opts.Ignore); addErr != nil {
						logger.Warn("watcher: add new dir failed",
							slog.String("path", ev.Name),
							slog.String("error", addErr.Error()))
					} else {
						logger.Debug("watcher: watching new dir", slog.String("path", ev.Name))
					}
				}
			}

			logger.Debug("watcher: change detected",
				slog.String("path", ev.Name),
				slog.String("op", ev.Op.String()))
			schedule()

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Error("watcher: error", slog.String("error", watchErr.Error()))
		}
	}
}

// ignoredPath reports whether any component of p below root is ignored.
func ignoredPath(root, p string, ignore []string) bool {
	rel, err := filepath.Rel(root, p)
	if err != nil {
		return false
	}
	for _, part := range strings.Split(filepath.ToSlash(rel), "/") {
		for _, ig := range ignore {
			if part == ig {
				return true
			}
		}
	}
	return false
}

// addDirsRecursive adds dir and all its non-ignored subdirectories to the watcher.
func addDirsRecursive(w *fsnotify.Watcher, dir string, ignore []string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != dir {
			for _, ig := range ignore {
				if d.Name() == ig {
					return filepath.SkipDir
				}
			}
		}
		return w.Add(path)
	})
}
