package kb

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/signalsfoundry/drift-predictor/internal/logging"
)

// reloadDebounce coalesces the burst of events editors emit for one save.
const reloadDebounce = 100 * time.Millisecond

// Watch reloads the registry from path whenever the file changes, until ctx
// is done. The parent directory is watched so that atomic rename-into-place
// saves are seen. A file that fails to parse is logged and the previous
// profiles stay active.
func (r *Registry) Watch(ctx context.Context, path string, log logging.Logger) error {
	if log == nil {
		log = logging.Noop()
	}
	path = filepath.Clean(path)

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create profile watcher: %w", err)
	}
	defer w.Close()
	if err := w.Add(filepath.Dir(path)); err != nil {
		return fmt.Errorf("watch %s: %w", filepath.Dir(path), err)
	}

	timer := time.NewTimer(reloadDebounce)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != path {
				continue
			}
			if ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) || ev.Has(fsnotify.Rename) {
				timer.Reset(reloadDebounce)
			}
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			log.Warn(ctx, "profile watcher error", logging.Err(err))
		case <-timer.C:
			if err := r.Reload(path); err != nil {
				log.Warn(ctx, "profile reload failed; keeping previous profiles",
					logging.String("path", path), logging.Err(err))
				continue
			}
			log.Info(ctx, "profiles reloaded",
				logging.String("path", path), logging.Int("profiles", r.Len()))
		}
	}
}
