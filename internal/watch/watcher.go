package watch

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/DarkPhilosophy/snapify/pkg/log"
)

// Change is one platform change signal, pushed onto a channel the
// ingestion pipeline consumes single-threadedly.
type Change struct {
	Path string
	Op   fsnotify.Op
	At   time.Time
}

// Watcher subscribes to filesystem notifications for the watched folders
// and forwards relevant events as Change messages.
type Watcher struct {
	mutex   sync.Mutex
	fw      *fsnotify.Watcher
	folders []string
	changes chan Change
	log     log.LoggerService
}

func NewWatcher(logger log.LoggerService) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create filesystem watcher: %w", err)
	}

	return &Watcher{
		fw:      fw,
		changes: make(chan Change, 64),
		log:     logger.Named("watch"),
	}, nil
}

// Changes returns the channel change signals are delivered on. The channel
// is closed when the watcher stops.
func (w *Watcher) Changes() <-chan Change {
	return w.changes
}

// SetFolders replaces the set of watched folders. Folders that cannot be
// subscribed (missing, permission denied) fail the call; already-added
// folders stay registered.
func (w *Watcher) SetFolders(folders []string) error {
	w.mutex.Lock()
	defer w.mutex.Unlock()

	current := make(map[string]bool, len(w.folders))
	for _, folder := range w.folders {
		current[folder] = true
	}

	next := make(map[string]bool, len(folders))
	for _, folder := range folders {
		next[folder] = true
	}

	for folder := range current {
		if !next[folder] {
			if err := w.fw.Remove(folder); err != nil {
				w.log.Warn("Failed to unwatch folder '%s': %v", folder, err)
			}
		}
	}

	for folder := range next {
		if current[folder] {
			continue
		}
		if _, err := os.Stat(folder); err != nil {
			return fmt.Errorf("cannot watch folder '%s': %w", folder, err)
		}
		if err := w.fw.Add(folder); err != nil {
			return fmt.Errorf("cannot subscribe to folder '%s': %w", folder, err)
		}
		w.log.Info("Watching folder '%s'", folder)
	}

	w.folders = append(w.folders[:0], folders...)
	return nil
}

// Run forwards filesystem events until the context is cancelled, then
// closes the change channel.
func (w *Watcher) Run(ctx context.Context) {
	defer close(w.changes)

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-w.fw.Events:
			if !ok {
				return
			}
			// Chmod carries no content change; skip it.
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) == 0 {
				continue
			}
			change := Change{Path: event.Name, Op: event.Op, At: time.Now()}
			select {
			case w.changes <- change:
			case <-ctx.Done():
				return
			}
		case err, ok := <-w.fw.Errors:
			if !ok {
				return
			}
			w.log.Error("Watcher error: %v", err)
		}
	}
}

// Close releases the underlying filesystem watcher.
func (w *Watcher) Close() error {
	return w.fw.Close()
}
