package adapters

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/go-logr/logr"
)

// reloadDelay lets bursts of file events settle before a reload.
const reloadDelay = 100 * time.Millisecond

// Watch reloads c from path whenever the file is written or replaced, until
// ctx is done. A file that fails to parse leaves the catalog unchanged.
// reloaded, if not nil, is called after every successful reload.
func (c *Catalog) Watch(ctx context.Context, path string, log logr.Logger, reloaded func([]Tool)) error {
	if log.GetSink() == nil {
		log = logr.Discard()
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	// Editors often replace files instead of writing them, so watch the
	// directory and filter by name.
	if err := w.Add(filepath.Dir(abs)); err != nil {
		_ = w.Close()
		return fmt.Errorf("watch %s: %w", filepath.Dir(abs), err)
	}

	reload := newDebouncer(reloadDelay, func() {
		tools, err := LoadFile(abs)
		if err != nil {
			log.Error(err, "Could not reload tool catalog", "path", abs)
			return
		}
		c.Replace(tools)
		log.Info("Reloaded tool catalog", "path", abs, "tools", len(tools))
		if reloaded != nil {
			reloaded(tools)
		}
	})

	go func() {
		defer w.Close()
		defer reload.Cancel()
		for {
			select {
			case <-ctx.Done():
				return

			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if filepath.Clean(ev.Name) != abs {
					continue
				}
				if !ev.Op.Has(fsnotify.Write) && !ev.Op.Has(fsnotify.Create) && !ev.Op.Has(fsnotify.Rename) {
					continue
				}
				reload.Call()

			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				log.Error(err, "Catalog watcher error", "path", abs)
			}
		}
	}()
	return nil
}
