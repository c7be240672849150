// Package watcher rebuilds the index when the memes folder changes.
package watcher

import (
	"context"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"

	"github.com/perbu/memesearch/pkg/loader"
)

// DefaultDebounce is how long the folder must be quiet before a rebuild.
const DefaultDebounce = 2 * time.Second

// Watcher calls Rebuild once per burst of changes to supported image files.
type Watcher struct {
	Folder   string
	Debounce time.Duration
	Rebuild  func(ctx context.Context) error
	Logger   logrus.FieldLogger
}

// relevant reports whether an fsnotify event should trigger a rebuild.
func relevant(ev fsnotify.Event) bool {
	if !loader.IsSupported(ev.Name) {
		return false
	}
	return ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) != 0
}

// Run blocks until ctx is cancelled or the underlying watcher fails.
// Rebuild errors are logged; they do not stop the watch.
func (w *Watcher) Run(ctx context.Context) error {
	log := w.Logger
	if log == nil {
		log = logrus.StandardLogger()
	}
	debounce := w.Debounce
	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer fw.Close()

	if err := fw.Add(w.Folder); err != nil {
		return err
	}
	log.WithField("folder", w.Folder).Info("watching for changes")

	timer := time.NewTimer(debounce)
	timer.Stop()
	pending := false

	for {
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if !relevant(ev) {
				continue
			}
			log.WithFields(logrus.Fields{"file": ev.Name, "op": ev.Op.String()}).Debug("change detected")
			timer.Reset(debounce)
			pending = true
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			log.WithError(err).Warn("watch error")
		case <-timer.C:
			if !pending {
				continue
			}
			pending = false
			log.Info("rebuilding index")
			if err := w.Rebuild(ctx); err != nil {
				log.WithError(err).Error("rebuild failed")
			}
		}
	}
}
