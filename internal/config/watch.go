package config

import (
	"log"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// watcher reloads current.json when it is rewritten by another process.
type watcher struct {
	fs   *fsnotify.Watcher
	done chan struct{}
}

// Watch starts watching current.json for external edits and reloads the
// configuration when one lands. Events fired within a short window of our
// own Save are skipped.
func (m *Manager) Watch() error {
	fs, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	// Watch the directory: editors and our atomic save replace the file,
	// which would invalidate a watch on the file itself.
	if err := fs.Add(filepath.Dir(m.configPath)); err != nil {
		fs.Close()
		return err
	}

	w := &watcher{fs: fs, done: make(chan struct{})}
	m.mu.Lock()
	m.watcher = w
	m.mu.Unlock()

	go m.watchLoop(w)
	return nil
}

// CloseWatch stops the config watcher if one is running.
func (m *Manager) CloseWatch() {
	m.mu.Lock()
	w := m.watcher
	m.watcher = nil
	m.mu.Unlock()

	if w != nil {
		close(w.done)
		w.fs.Close()
	}
}

func (m *Manager) watchLoop(w *watcher) {
	for {
		select {
		case <-w.done:
			return

		case event, ok := <-w.fs.Events:
			if !ok {
				return
			}
			if event.Name != m.configPath {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}

			m.mu.Lock()
			ours := time.Since(m.lastSave) < 500*time.Millisecond
			m.mu.Unlock()
			if ours {
				continue
			}

			log.Printf("Config: %s changed externally, reloading", filepath.Base(m.configPath))
			if err := m.Load(); err != nil {
				log.Printf("Config: reload failed: %v", err)
			}

		case err, ok := <-w.fs.Errors:
			if !ok {
				return
			}
			log.Printf("Config: watch error: %v", err)
		}
	}
}
