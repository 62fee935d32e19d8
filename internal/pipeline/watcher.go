package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Reloader is triggered once a burst of source changes has settled.
type Reloader interface {
	Reload(ctx context.Context)
}

// Watcher observes the data sources and reloads the catalog after changes.
// Rapid saves are coalesced: a reload runs once no relevant event has arrived for
// the debounce period.
type Watcher struct {
	fs       *fsnotify.Watcher
	dirs     map[string]bool // every CSV inside is relevant
	files    map[string]bool // only this exact path is relevant
	debounce time.Duration
	reloader Reloader
	logger   *slog.Logger
}

// NewWatcher watches each path. Files are watched through their parent directory so
// that editors replacing a file by rename are still seen.
func NewWatcher(paths []string, debounce time.Duration, reloader Reloader, logger *slog.Logger) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	w := &Watcher{
		fs:       fw,
		dirs:     make(map[string]bool),
		files:    make(map[string]bool),
		debounce: debounce,
		reloader: reloader,
		logger:   logger,
	}

	added := make(map[string]bool)
	for _, p := range paths {
		p = filepath.Clean(p)
		dir := p
		if info, err := os.Stat(p); err == nil && info.IsDir() {
			w.dirs[p] = true
		} else {
			w.files[p] = true
			dir = filepath.Dir(p)
		}
		if added[dir] {
			continue
		}
		if err := fw.Add(dir); err != nil {
			fw.Close()
			return nil, fmt.Errorf("watch %s: %w", dir, err)
		}
		added[dir] = true
	}
	return w, nil
}

// Run processes events until ctx is cancelled, then releases the watcher.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.fs.Close()

	timer := time.NewTimer(w.debounce)
	timer.Stop()
	defer timer.Stop()

	w.logger.Info("data watcher started", "dirs", len(w.dirs), "files", len(w.files), "debounce", w.debounce)
	for {
		select {
		case <-ctx.Done():
			w.logger.Info("data watcher stopping", "reason", ctx.Err())
			return nil

		case event, ok := <-w.fs.Events:
			if !ok {
				return nil
			}
			if !w.relevant(event) {
				continue
			}
			w.logger.Debug("data source changed", "path", event.Name, "op", event.Op.String())
			timer.Reset(w.debounce)

		case err, ok := <-w.fs.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("data watcher error", "error", err)

		case <-timer.C:
			w.logger.Info("reloading catalog after source change")
			w.reloader.Reload(ctx)
		}
	}
}

func (w *Watcher) relevant(event fsnotify.Event) bool {
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) &&
		!event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
		return false
	}
	name := filepath.Clean(event.Name)
	if w.files[name] {
		return true
	}
	return w.dirs[filepath.Dir(name)] && IsCSV(name)
}
