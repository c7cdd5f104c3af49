package project

import (
	"fmt"
	"path/filepath"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/fsnotify/fsnotify"

	"github.com/mpykit/mpykit/internal/config"
)

// Watcher observes discovered .mpyproject files and reports when one
// disappears, so a sticky manual selection pointing at it can revert to
// auto mode.
type Watcher struct {
	fw       *fsnotify.Watcher
	onRemove func(root string)

	mu    sync.Mutex
	roots map[string]bool

	done chan struct{}
}

// WatchProjects starts a watcher over the directories of the given
// project roots. onRemove is called with the project root whenever its
// config file is deleted or renamed away.
//
// Parameters:
//   - roots: Project root directories to observe
//   - onRemove: Callback invoked per disappeared project
//
// Returns:
//   - *Watcher: The running watcher; callers must Close it
//   - error: Any fsnotify setup error
func WatchProjects(roots []string, onRemove func(root string)) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}

	w := &Watcher{
		fw:       fw,
		onRemove: onRemove,
		roots:    make(map[string]bool),
		done:     make(chan struct{}),
	}
	for _, root := range roots {
		if err := w.Add(root); err != nil {
			fw.Close()
			return nil, err
		}
	}

	go w.loop()
	return w, nil
}

// Add registers one more project root with the watcher.
func (w *Watcher) Add(root string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.roots[root] {
		return nil
	}
	if err := w.fw.Add(root); err != nil {
		return fmt.Errorf("failed to watch %s: %w", root, err)
	}
	w.roots[root] = true
	return nil
}

// Close stops the watcher.
func (w *Watcher) Close() error {
	close(w.done)
	return w.fw.Close()
}

// loop dispatches fsnotify events until Close.
func (w *Watcher) loop() {
	for {
		select {
		case <-w.done:
			return
		case ev, ok := <-w.fw.Events:
			if !ok {
				return
			}
			if filepath.Base(ev.Name) != config.FileName {
				continue
			}
			if ev.Op&(fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			root := filepath.Dir(ev.Name)

			w.mu.Lock()
			known := w.roots[root]
			if known {
				delete(w.roots, root)
				w.fw.Remove(root)
			}
			w.mu.Unlock()

			if known {
				log.Debug("project file removed", "root", root)
				if w.onRemove != nil {
					w.onRemove(root)
				}
			}
		case err, ok := <-w.fw.Errors:
			if !ok {
				return
			}
			log.Warn("project watcher error", "error", err)
		}
	}
}
