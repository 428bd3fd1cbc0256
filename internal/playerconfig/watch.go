package playerconfig

import (
	"log/slog"
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"playercore/internal/home"
)

// Watcher reloads the persisted Document whenever it changes on disk,
// for deployments where credentials are rotated by a provisioning agent
// rather than a CMS rekey push.
type Watcher struct {
	watcher *fsnotify.Watcher
	stop    chan struct{}
}

// Watch starts watching dir's configuration file and calls onReload
// with the freshly parsed Document each time it is written. onReload is
// invoked from the watcher's own goroutine. Returns a Watcher whose
// Close stops it.
func Watch(dir home.Dir, logger *slog.Logger, onReload func(*Document)) (*Watcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	path := dir.ConfigPath()
	// Save replaces the file by renaming a temp file over it, so the
	// directory is watched and events are matched by file name.
	if err := w.Add(filepath.Dir(path)); err != nil {
		w.Close()
		return nil, err
	}

	stop := make(chan struct{})
	go func() {
		defer w.Close()
		for {
			select {
			case <-stop:
				return
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				logger.Warn("player config watcher error", "error", err)
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if filepath.Base(ev.Name) != Filename(dir) {
					continue
				}
				if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}
				doc, err := read(path)
				if err != nil {
					logger.Warn("player config reload failed", "error", err)
					continue
				}
				if doc != nil {
					onReload(doc)
				}
			}
		}
	}()

	return &Watcher{watcher: w, stop: stop}, nil
}

// Close stops the watcher.
func (w *Watcher) Close() {
	close(w.stop)
}
